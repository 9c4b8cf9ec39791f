package endorsement

import (
	"database/sql"
	"time"
)

type Endorsement struct {
	EndorsementID int64
	StudentID     int64
	StudentName   string
	HTEID         sql.NullInt64
	Title         string
	Description   string
	Status        Status
	AdminComment  sql.NullString
	HTEFile       sql.NullString
	AdminFile     sql.NullString
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (e Endorsement) file(slot FileSlot) string {
	switch slot {
	case SlotAdmin:
		return e.AdminFile.String
	case SlotHTE:
		return e.HTEFile.String
	}
	return ""
}

type EndorsementResponse struct {
	EndorsementID int64     `json:"endorsement_id"`
	StudentID     int64     `json:"student_id"`
	StudentName   string    `json:"student_name"`
	HTEID         *int64    `json:"hte_id,omitempty"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Status        Status    `json:"status"`
	NextActor     string    `json:"next_actor,omitempty"`
	AdminComment  string    `json:"admin_comment,omitempty"`
	HTEFile       string    `json:"hte_file,omitempty"`
	AdminFile     string    `json:"admin_file,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (e Endorsement) toDTO() EndorsementResponse {
	res := EndorsementResponse{
		EndorsementID: e.EndorsementID,
		StudentID:     e.StudentID,
		StudentName:   e.StudentName,
		Title:         e.Title,
		Description:   e.Description,
		Status:        e.Status,
		AdminComment:  e.AdminComment.String,
		HTEFile:       e.HTEFile.String,
		AdminFile:     e.AdminFile.String,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
	if e.HTEID.Valid {
		id := e.HTEID.Int64
		res.HTEID = &id
	}
	if r, ok := ActorFor(e.Status); ok {
		res.NextActor = string(r)
	}
	return res
}

func toDTOs(list []Endorsement) []EndorsementResponse {
	out := make([]EndorsementResponse, 0, len(list))
	for i := range list {
		out = append(out, list[i].toDTO())
	}
	return out
}

type CreateRequest struct {
	Title       string `json:"title" form:"title"`
	Description string `json:"description" form:"description"`
}
