package endorsement

import (
	"context"
	"database/sql"
	"mime/multipart"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IMS-backend/internal/platform/apierr"
	"IMS-backend/internal/platform/auth"
	"IMS-backend/internal/users"
)

type memStore struct {
	rows   map[int64]*Endorsement
	nextID int64
}

func newMemStore() *memStore { return &memStore{rows: map[int64]*Endorsement{}} }

func (m *memStore) Create(_ context.Context, e *Endorsement) (int64, error) {
	m.nextID++
	cp := *e
	cp.EndorsementID = m.nextID
	m.rows[cp.EndorsementID] = &cp
	return cp.EndorsementID, nil
}

func (m *memStore) Get(_ context.Context, id int64) (*Endorsement, error) {
	if e, ok := m.rows[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) List(_ context.Context, f ListFilter) ([]Endorsement, error) {
	var out []Endorsement
	for _, e := range m.rows {
		if f.StudentID != nil && e.StudentID != *f.StudentID {
			continue
		}
		if f.HTEID != nil && (!e.HTEID.Valid || e.HTEID.Int64 != *f.HTEID) {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndorsementID > out[j].EndorsementID })
	return out, nil
}

func (m *memStore) Advance(_ context.Context, id int64, from, to Status, slot FileSlot, file string, comment *string) (bool, error) {
	e := m.rows[id]
	if e == nil || e.Status != from {
		return false, nil
	}
	e.Status = to
	if file != "" {
		v := sql.NullString{String: file, Valid: true}
		if slot == SlotAdmin {
			e.AdminFile = v
		} else {
			e.HTEFile = v
		}
	}
	if comment != nil {
		e.AdminComment = sql.NullString{String: *comment, Valid: true}
	}
	return true, nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	delete(m.rows, id)
	return nil
}

type fakeFiles struct {
	n       int
	removed []string
}

func (f *fakeFiles) SaveUpload(prefix string, fh *multipart.FileHeader) (string, error) {
	f.n++
	return prefix + "_" + fh.Filename, nil
}

func (f *fakeFiles) Remove(name string) error {
	if name != "" {
		f.removed = append(f.removed, name)
	}
	return nil
}

func (f *fakeFiles) Path(name string) (string, error) { return "/uploads/" + name, nil }

type fakeRoster map[int64]*users.User

func (r fakeRoster) GetStudent(_ context.Context, id int64) (*users.User, error) {
	if u, ok := r[id]; ok {
		return u, nil
	}
	return nil, apierr.NotFound("student not found")
}

var (
	admin    = auth.Principal{UserID: 1, Role: auth.RoleAdmin}
	hte      = auth.Principal{UserID: 3, Role: auth.RoleHTE}
	otherHTE = auth.Principal{UserID: 4, Role: auth.RoleHTE}
	student  = auth.Principal{UserID: 7, Role: auth.RoleStudent}
	loner    = auth.Principal{UserID: 8, Role: auth.RoleStudent}
)

func newSvc() (*Service, *memStore, *fakeFiles) {
	st := newMemStore()
	fs := &fakeFiles{}
	roster := fakeRoster{
		7: {UserID: 7, Name: "Ana", Role: auth.RoleStudent, HTEID: sql.NullInt64{Int64: 3, Valid: true}},
		8: {UserID: 8, Name: "Ben", Role: auth.RoleStudent},
	}
	return NewServiceWithStore(st, fs, roster, nil), st, fs
}

func upload(name string) AdvanceInput {
	return AdvanceInput{File: &multipart.FileHeader{Filename: name, Size: 1}}
}

func TestCreateRequiresTitleAndHTE(t *testing.T) {
	svc, _, _ := newSvc()
	ctx := context.Background()

	_, err := svc.Create(ctx, student.UserID, CreateRequest{})
	assert.Equal(t, "Title is required!", apierr.Message(err))

	_, err = svc.Create(ctx, loner.UserID, CreateRequest{Title: "OJT"})
	assert.Equal(t, apierr.CodeConflict, apierr.CodeOf(err))

	res, err := svc.Create(ctx, student.UserID, CreateRequest{Title: " OJT ", Description: "please"})
	require.NoError(t, err)
	assert.Equal(t, StatusRequested, res.Status)
	assert.Equal(t, "OJT", res.Title)
	require.NotNil(t, res.HTEID)
	assert.Equal(t, int64(3), *res.HTEID)
	assert.Equal(t, "admin", res.NextActor)
}

func TestAdvanceFullWorkflow(t *testing.T) {
	svc, _, fs := newSvc()
	ctx := context.Background()
	e, err := svc.Create(ctx, student.UserID, CreateRequest{Title: "OJT"})
	require.NoError(t, err)
	id := e.EndorsementID

	// 学生は Requested を進められない
	_, err = svc.Advance(ctx, student, id, upload("x.pdf"))
	assert.Equal(t, apierr.CodeConflict, apierr.CodeOf(err))

	res, err := svc.Advance(ctx, admin, id, AdvanceInput{Comment: "looks good"})
	require.NoError(t, err)
	assert.Equal(t, StatusForHTE, res.Status)
	assert.Equal(t, "looks good", res.AdminComment)

	_, err = svc.Advance(ctx, otherHTE, id, upload("h.pdf"))
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))
	_, err = svc.Advance(ctx, hte, id, AdvanceInput{})
	assert.Equal(t, apierr.CodeInvalidArgument, apierr.CodeOf(err))

	res, err = svc.Advance(ctx, hte, id, upload("signed.pdf"))
	require.NoError(t, err)
	assert.Equal(t, StatusForStudent, res.Status)
	assert.Equal(t, "hte_1_signed.pdf", res.HTEFile)

	_, err = svc.Advance(ctx, loner, id, upload("x.pdf"))
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))

	res, err = svc.Advance(ctx, student, id, upload("final.pdf"))
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, res.Status)
	assert.Equal(t, "hte_1_final.pdf", res.HTEFile)
	assert.Contains(t, fs.removed, "hte_1_signed.pdf")
	assert.Empty(t, res.NextActor)

	_, err = svc.Advance(ctx, admin, id, AdvanceInput{})
	assert.Equal(t, apierr.CodeConflict, apierr.CodeOf(err))
}

func TestListScopesByRole(t *testing.T) {
	svc, _, _ := newSvc()
	ctx := context.Background()
	_, err := svc.Create(ctx, student.UserID, CreateRequest{Title: "OJT"})
	require.NoError(t, err)

	for _, tc := range []struct {
		p    auth.Principal
		want int
	}{{admin, 1}, {student, 1}, {hte, 1}, {otherHTE, 0}, {loner, 0}} {
		list, err := svc.List(ctx, tc.p)
		require.NoError(t, err)
		assert.Len(t, list, tc.want, "%s %d", tc.p.Role, tc.p.UserID)
	}

	_, err = svc.List(ctx, auth.Principal{UserID: 9, Role: auth.RoleParent})
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))
}

func TestDeleteRemovesFiles(t *testing.T) {
	svc, st, fs := newSvc()
	ctx := context.Background()
	e, _ := svc.Create(ctx, student.UserID, CreateRequest{Title: "OJT"})
	_, err := svc.Advance(ctx, admin, e.EndorsementID, upload("memo.pdf"))
	require.NoError(t, err)

	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(svc.Delete(ctx, loner, e.EndorsementID)))
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(svc.Delete(ctx, hte, e.EndorsementID)))

	require.NoError(t, svc.Delete(ctx, student, e.EndorsementID))
	assert.Empty(t, st.rows)
	assert.Equal(t, []string{"admin_1_memo.pdf"}, fs.removed)
}

func TestFilePathAccess(t *testing.T) {
	svc, _, _ := newSvc()
	ctx := context.Background()
	e, _ := svc.Create(ctx, student.UserID, CreateRequest{Title: "OJT"})

	_, _, err := svc.FilePath(ctx, student, e.EndorsementID, "")
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))

	_, err = svc.Advance(ctx, admin, e.EndorsementID, upload("memo.pdf"))
	require.NoError(t, err)

	name, path, err := svc.FilePath(ctx, hte, e.EndorsementID, "")
	require.NoError(t, err)
	assert.Equal(t, "admin_1_memo.pdf", name)
	assert.Equal(t, "/uploads/admin_1_memo.pdf", path)

	_, _, err = svc.FilePath(ctx, otherHTE, e.EndorsementID, SlotAdmin)
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))
	_, _, err = svc.FilePath(ctx, student, e.EndorsementID, SlotHTE)
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))
}
