package export

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"IMS-backend/internal/dailylog"
	"IMS-backend/internal/platform/apierr"
	"IMS-backend/internal/platform/auth"
	"IMS-backend/internal/platform/session"
	"IMS-backend/internal/users"
)

var manila = time.FixedZone("PHT", 8*3600)

type fakeRoster struct{ students []users.User }

func (f fakeRoster) ListByRole(_ context.Context, role auth.Role) ([]users.User, error) {
	if role != auth.RoleStudent {
		return nil, nil
	}
	return f.students, nil
}

func (f fakeRoster) ViewStudent(_ context.Context, viewerID int64, role auth.Role, studentID int64) (*users.User, error) {
	for _, s := range f.students {
		if s.UserID == studentID && (role == auth.RoleAdmin || viewerID == studentID) {
			cp := s
			return &cp, nil
		}
	}
	return nil, apierr.Forbidden("Access denied.")
}

type fakeLogs map[int64][]dailylog.DailyLog

func (f fakeLogs) Logs(_ context.Context, id int64) ([]dailylog.DailyLog, error) { return f[id], nil }

func at(h, m int) sql.NullTime {
	return sql.NullTime{Time: time.Date(2026, time.March, 2, h, m, 0, 0, manila), Valid: true}
}

func newService() *Service {
	roster := fakeRoster{students: []users.User{
		{UserID: 7, Name: "Ana Cruz", Username: "ana", Role: auth.RoleStudent, TotalHours: 150,
			HTEID: sql.NullInt64{Int64: 3, Valid: true}},
		{UserID: 8, Username: "ben", Role: auth.RoleStudent},
	}}
	logs := fakeLogs{7: {{
		LogID: 1, StudentID: 7, LogDate: time.Date(2026, time.March, 2, 0, 0, 0, 0, manila),
		InAM: at(8, 0), OutAM: at(12, 0), InPM: at(13, 0), OutPM: at(17, 30),
		TotalHours: 8.5, Description: "Wiring, cabling", VisibleToAdmin: true,
	}}}
	svc := NewService(roster, logs, manila, nil)
	svc.now = func() time.Time { return time.Date(2026, time.March, 3, 9, 0, 0, 0, manila) }
	return svc
}

func TestColName(t *testing.T) {
	assert.Equal(t, "A", colName(1))
	assert.Equal(t, "Z", colName(26))
	assert.Equal(t, "AA", colName(27))
	assert.Equal(t, "AZ", colName(52))
}

func TestUniqueSheetName(t *testing.T) {
	used := map[string]struct{}{}
	assert.Equal(t, "a_b", uniqueSheetName("a/b", used))
	assert.Equal(t, "A_B (2)", uniqueSheetName("A/B", used))
	long := strings.Repeat("x", 40)
	assert.Len(t, uniqueSheetName(long, used), maxSheetName)
	assert.Equal(t, "Sheet", uniqueSheetName("  ", used))
}

func TestHoursWorkbook(t *testing.T) {
	body, name, err := newService().HoursWorkbook(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ojt_hours_2026-03-03.xlsx", name)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "7 Ana Cruz", "8 ben"}, f.GetSheetList())

	rows, err := f.GetRows("Summary")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, summaryHeader, rows[0])
	assert.Equal(t, []string{"7", "Ana Cruz", "ana", "3", "150.00", "450.00", "25.00"}, rows[1])
	assert.Equal(t, "600.00", rows[2][5])

	logs, err := f.GetRows("7 Ana Cruz")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, []string{"2026-03-02", "08:00", "12:00", "13:00", "17:30", "8.50", "Wiring, cabling", "Yes", "No"}, logs[1])
}

func TestDailyLogCSVHasBOM(t *testing.T) {
	svc := newService()
	body, name, err := svc.DailyLogCSV(context.Background(), auth.Principal{UserID: 7, Role: auth.RoleStudent}, 7)
	require.NoError(t, err)
	assert.Equal(t, "daily_logs_ana.csv", name)
	require.True(t, bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}))

	recs, err := csv.NewReader(bytes.NewReader(body[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, logHeader, recs[0])
	assert.Equal(t, "Wiring, cabling", recs[1][6])

	_, _, err = svc.DailyLogCSV(context.Background(), auth.Principal{UserID: 8, Role: auth.RoleStudent}, 7)
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))
}

func TestHoursWorkbookAdminOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := auth.NewTokens("test", time.Hour)
	r := gin.New()
	r.Use(session.Middleware(session.Options{Secret: "s", MaxAge: 60}))
	RegisterRoutes(r.Group("/api/v1", auth.RequireAuth(tokens)), newService())

	get := func(id int64, role auth.Role) *httptest.ResponseRecorder {
		tok, _, err := tokens.Issue(auth.Principal{UserID: id, Role: role})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/exports/hours.xlsx", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusForbidden, get(7, auth.RoleStudent).Code)

	w := get(1, auth.RoleAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxMIME, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "ojt_hours_2026-03-03.xlsx")
}
