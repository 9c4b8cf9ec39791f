// Package docs is generated by swaggo/swag. Regenerate with `swag init`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["auth"], "summary": "Log in and receive a bearer token",
                "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/users.LoginRequest"}}],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthenticated"}}
            }
        },
        "/auth/register": {
            "post": {
                "tags": ["auth"], "summary": "Register a user",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/users.RegisterRequest"}}],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Username taken"}}
            }
        },
        "/student/attendance": {
            "get": {"tags": ["attendance"], "summary": "Own captures grouped by five days", "responses": {"200": {"description": "OK"}}},
            "post": {
                "tags": ["attendance"], "summary": "Capture attendance photo (data URL)",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/attendance.CaptureRequest"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Invalid image"}, "409": {"description": "Day already has 4 captures"}}
            }
        },
        "/hte/attendance/{id}/mark": {
            "post": {
                "tags": ["attendance"], "summary": "Mark a capture present or absent",
                "parameters": [{"in": "path", "name": "id", "type": "integer", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Student not assigned"}}
            }
        },
        "/attendance/{student_id}/calendar": {
            "get": {
                "tags": ["attendance"], "summary": "Month calendar grid",
                "parameters": [
                    {"in": "path", "name": "student_id", "type": "integer", "required": true},
                    {"in": "query", "name": "year", "type": "integer"},
                    {"in": "query", "name": "month", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/student/daily-logs": {
            "get": {"tags": ["daily-logs"], "summary": "Own daily logs with hour summary", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["daily-logs"], "summary": "Add a manual daily log", "responses": {"201": {"description": "Created"}}}
        },
        "/student/dar": {
            "post": {"tags": ["dar"], "summary": "Upload daily accomplishment report files", "consumes": ["multipart/form-data"], "responses": {"201": {"description": "Created"}}}
        },
        "/endorsements": {
            "get": {"tags": ["endorsements"], "summary": "Endorsements visible to the caller", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["endorsements"], "summary": "Request an endorsement", "responses": {"201": {"description": "Created"}}}
        },
        "/endorsements/{id}/advance": {
            "post": {
                "tags": ["endorsements"], "summary": "Move an endorsement to its next status",
                "consumes": ["multipart/form-data"],
                "parameters": [{"in": "path", "name": "id", "type": "integer", "required": true}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Wrong status for this role"}}
            }
        },
        "/chat/{partner_id}": {
            "get": {"tags": ["chat"], "summary": "Conversation with a partner", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["chat"], "summary": "Send a message", "responses": {"201": {"description": "Created"}}}
        },
        "/admin/exports/hours.xlsx": {
            "get": {"tags": ["exports"], "summary": "Hours workbook for all students", "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"], "responses": {"200": {"description": "OK"}}}
        }
    },
    "definitions": {
        "users.LoginRequest": {
            "type": "object", "required": ["username", "password"],
            "properties": {"username": {"type": "string"}, "password": {"type": "string"}, "role": {"type": "string", "enum": ["admin", "student", "hte", "parent"]}}
        },
        "users.RegisterRequest": {
            "type": "object", "required": ["username", "password", "role"],
            "properties": {"name": {"type": "string"}, "username": {"type": "string"}, "password": {"type": "string"}, "role": {"type": "string", "enum": ["admin", "student", "hte", "parent"]}}
        },
        "attendance.CaptureRequest": {
            "type": "object", "required": ["attendance_file"],
            "properties": {"attendance_file": {"type": "string", "description": "data:image/...;base64,..."}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "OJT Internship Management API",
	Description:      "Attendance, daily logs, endorsements and chat for OJT programs.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
