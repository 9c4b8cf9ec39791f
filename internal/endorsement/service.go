package endorsement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"go.uber.org/zap"

	"IMS-backend/internal/platform/apierr"
	"IMS-backend/internal/platform/auth"
	"IMS-backend/internal/users"
)

type FileStore interface {
	SaveUpload(prefix string, fh *multipart.FileHeader) (string, error)
	Remove(name string) error
	Path(name string) (string, error)
}

type Roster interface {
	GetStudent(ctx context.Context, id int64) (*users.User, error)
}

type Service struct {
	store  EndorsementStore
	files  FileStore
	roster Roster
	log    *zap.Logger
}

func NewService(conn *sql.DB, files FileStore, roster Roster, log *zap.Logger) *Service {
	return NewServiceWithStore(NewStore(conn), files, roster, log)
}

func NewServiceWithStore(store EndorsementStore, files FileStore, roster Roster, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, files: files, roster: roster, log: log}
}

func (s *Service) get(ctx context.Context, id int64) (*Endorsement, error) {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, apierr.NotFound("endorsement not found")
	}
	return e, nil
}

// POST /student/endorsements
func (s *Service) Create(ctx context.Context, studentID int64, in CreateRequest) (EndorsementResponse, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return EndorsementResponse{}, apierr.Invalid("Title is required!")
	}
	st, err := s.roster.GetStudent(ctx, studentID)
	if err != nil {
		return EndorsementResponse{}, err
	}
	if !st.HTEID.Valid {
		return EndorsementResponse{}, apierr.Conflict("No HTE assigned by admin.")
	}
	e := Endorsement{
		StudentID:   studentID,
		StudentName: st.DisplayName(),
		HTEID:       st.HTEID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Status:      StatusRequested,
	}
	id, err := s.store.Create(ctx, &e)
	if err != nil {
		return EndorsementResponse{}, err
	}
	created, err := s.get(ctx, id)
	if err != nil {
		return EndorsementResponse{}, err
	}
	return created.toDTO(), nil
}

// canSee: 管理者は全件、学生は自分の、HTE は担当の申請
func canSee(p auth.Principal, e *Endorsement) bool {
	switch p.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleStudent:
		return e.StudentID == p.UserID
	case auth.RoleHTE:
		return e.HTEID.Valid && e.HTEID.Int64 == p.UserID
	}
	return false
}

// GET /endorsements
func (s *Service) List(ctx context.Context, p auth.Principal) ([]EndorsementResponse, error) {
	var f ListFilter
	switch p.Role {
	case auth.RoleAdmin:
	case auth.RoleStudent:
		f.StudentID = &p.UserID
	case auth.RoleHTE:
		f.HTEID = &p.UserID
	default:
		return nil, apierr.Forbidden("Access denied.")
	}
	list, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return toDTOs(list), nil
}

// AdvanceInput: 遷移時のアップロードと管理者コメント
type AdvanceInput struct {
	File    *multipart.FileHeader
	Comment string
}

// POST /endorsements/:id/advance
func (s *Service) Advance(ctx context.Context, p auth.Principal, id int64, in AdvanceInput) (EndorsementResponse, error) {
	e, err := s.get(ctx, id)
	if err != nil {
		return EndorsementResponse{}, err
	}
	if !canSee(p, e) {
		return EndorsementResponse{}, apierr.Forbidden("Not authorized for this endorsement")
	}
	to, slot, needsFile, err := Next(e.Status, p.Role)
	if errors.Is(err, ErrTransition) {
		return EndorsementResponse{}, apierr.Conflict(fmt.Sprintf("Endorsement is %q and cannot be advanced by %s.", e.Status, p.Role))
	}
	hasFile := in.File != nil && in.File.Filename != ""
	if needsFile && !hasFile {
		return EndorsementResponse{}, apierr.Invalid("No file uploaded")
	}

	var name string
	if hasFile {
		if name, err = s.files.SaveUpload(fmt.Sprintf("%s_%d", slot, id), in.File); err != nil {
			return EndorsementResponse{}, err
		}
	}
	var comment *string
	if c := strings.TrimSpace(in.Comment); c != "" && p.Role == auth.RoleAdmin {
		comment = &c
	}

	ok, err := s.store.Advance(ctx, id, e.Status, to, slot, name, comment)
	if err != nil || !ok {
		if name != "" {
			_ = s.files.Remove(name)
		}
		if err != nil {
			return EndorsementResponse{}, err
		}
		return EndorsementResponse{}, apierr.Conflict("Endorsement was updated by someone else. Please reload.")
	}
	// 上書きされた旧ファイルは消す
	if old := e.file(slot); name != "" && old != "" && old != name {
		if err := s.files.Remove(old); err != nil {
			s.log.Warn("remove replaced endorsement file failed", zap.String("file", old), zap.Error(err))
		}
	}
	s.log.Info("endorsement advanced",
		zap.Int64("endorsement_id", id), zap.String("from", string(e.Status)), zap.String("to", string(to)),
		zap.String("actor", string(p.Role)))

	updated, err := s.get(ctx, id)
	if err != nil {
		return EndorsementResponse{}, err
	}
	return updated.toDTO(), nil
}

// POST /endorsements/:id/delete: 管理者は全件、学生は自分のものだけ
func (s *Service) Delete(ctx context.Context, p auth.Principal, id int64) error {
	e, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case p.Role == auth.RoleAdmin:
	case p.Role == auth.RoleStudent && e.StudentID == p.UserID:
	default:
		return apierr.Forbidden("Unauthorized")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	for _, name := range []string{e.AdminFile.String, e.HTEFile.String} {
		if err := s.files.Remove(name); err != nil {
			s.log.Warn("remove endorsement file failed", zap.String("file", name), zap.Error(err))
		}
	}
	return nil
}

// FilePath: ダウンロード対象の保存名と実パス。slot 未指定なら最新のファイル
func (s *Service) FilePath(ctx context.Context, p auth.Principal, id int64, slot FileSlot) (string, string, error) {
	e, err := s.get(ctx, id)
	if err != nil {
		return "", "", err
	}
	if !canSee(p, e) {
		return "", "", apierr.Forbidden("Unauthorized access!")
	}
	if slot == "" {
		slot = SlotAdmin
		if e.HTEFile.String != "" {
			slot = SlotHTE
		}
	}
	name := e.file(slot)
	if name == "" {
		return "", "", apierr.NotFound("No endorsement file available for download.")
	}
	path, err := s.files.Path(name)
	if err != nil {
		return "", "", apierr.NotFound("No endorsement file available for download.")
	}
	return name, path, nil
}
