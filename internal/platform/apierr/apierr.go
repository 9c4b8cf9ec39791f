package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// ===== Error model (各 feature パッケージ共通) =====
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func Invalid(msg string) *APIError         { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func Unauthenticated(msg string) *APIError { return &APIError{Code: CodeUnauthenticated, Message: msg} }
func Forbidden(msg string) *APIError       { return &APIError{Code: CodeForbidden, Message: msg} }
func NotFound(msg string) *APIError        { return &APIError{Code: CodeNotFound, Message: msg} }
func Conflict(msg string) *APIError        { return &APIError{Code: CodeConflict, Message: msg} }
func Internal(msg string) *APIError        { return &APIError{Code: CodeInternal, Message: msg} }

func HTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return http.StatusBadRequest
		case CodeUnauthenticated:
			return http.StatusUnauthorized
		case CodeForbidden:
			return http.StatusForbidden
		case CodeNotFound:
			return http.StatusNotFound
		case CodeConflict:
			return http.StatusConflict
		}
	}
	return http.StatusInternalServerError
}

func CodeOf(err error) Code {
	var api *APIError
	if errors.As(err, &api) {
		return api.Code
	}
	return CodeInternal
}

// レスポンスボディ: {"error":{"code":"...","message":"..."}}
type errorDTO struct {
	Error *APIError `json:"error"`
}

// Body: APIError 以外は中身を出さない
func Body(err error) any {
	var api *APIError
	if errors.As(err, &api) {
		return errorDTO{Error: api}
	}
	return errorDTO{Error: Internal("internal error")}
}

func BodyOf(code Code, msg string) any {
	return errorDTO{Error: &APIError{Code: code, Message: msg}}
}

// Message: フラッシュ表示用
func Message(err error) string {
	var api *APIError
	if errors.As(err, &api) {
		return api.Message
	}
	return "Something went wrong. Please try again."
}
