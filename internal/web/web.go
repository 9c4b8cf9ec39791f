package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"IMS-backend/internal/accomplishment"
	"IMS-backend/internal/attendance"
	"IMS-backend/internal/chat"
	"IMS-backend/internal/dailylog"
	"IMS-backend/internal/endorsement"
	"IMS-backend/internal/hours"
	"IMS-backend/internal/platform/auth"
	"IMS-backend/internal/platform/session"
	"IMS-backend/internal/users"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"login", "register", "admin", "student", "hte", "parent", "calendar", "chat", "error"}

type Users interface {
	Get(ctx context.Context, id int64) (*users.User, error)
	ListByRole(ctx context.Context, role auth.Role) ([]users.User, error)
	AssignedStudents(ctx context.Context, hteID int64) ([]users.User, error)
	SelectedChild(ctx context.Context, parentID int64) (*users.User, []users.User, error)
	DefaultAdmin(ctx context.Context) (*users.User, error)
	ViewStudent(ctx context.Context, viewerID int64, viewerRole auth.Role, studentID int64) (*users.User, error)
}

type Attendance interface {
	StudentView(ctx context.Context, studentID int64) (attendance.StudentView, error)
	ListForHTE(ctx context.Context, hteID int64) ([]hours.StudentGroup[attendance.AttendanceResponse], error)
	Calendar(ctx context.Context, viewer auth.Principal, studentID int64, year int, month time.Month) (hours.Calendar[attendance.AttendanceResponse], *users.User, error)
	ByMonth(ctx context.Context, viewer auth.Principal, studentID int64, filter attendance.MonthFilter) ([]hours.Bucket[attendance.AttendanceResponse], hours.Summary, error)
}

type DailyLogs interface {
	List(ctx context.Context, studentID int64) (dailylog.ListResponse, error)
	ListVisible(ctx context.Context, studentID int64) (dailylog.ListResponse, error)
}

type Reports interface {
	List(ctx context.Context, viewer auth.Principal, studentID int64) ([]accomplishment.ReportResponse, error)
}

type Endorsements interface {
	List(ctx context.Context, p auth.Principal) ([]endorsement.EndorsementResponse, error)
}

type Chat interface {
	Conversation(ctx context.Context, userID, partnerID, afterID int64) ([]chat.MessageResponse, error)
	Unread(ctx context.Context, receiverID int64, fromRole auth.Role) (int64, error)
}

type Files interface {
	Path(name string) (string, error)
	Exists(name string) bool
}

type Deps struct {
	Users        Users
	Attendance   Attendance
	DailyLogs    DailyLogs
	Reports      Reports
	Endorsements Endorsements
	Chat         Chat
	Files        Files
}

type Pages struct {
	Deps
	tmpl map[string]*template.Template
	loc  *time.Location
	now  func() time.Time
	log  *zap.Logger
}

func New(d Deps, loc *time.Location, log *zap.Logger) (*Pages, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	p := &Pages{Deps: d, tmpl: make(map[string]*template.Template, len(pageNames)), loc: loc, now: time.Now, log: log}
	funcs := p.funcs()
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(funcs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		p.tmpl[name] = t
	}
	return p, nil
}

func (p *Pages) funcs() template.FuncMap {
	return template.FuncMap{
		"clock": func(t *time.Time) string {
			if t == nil {
				return "—"
			}
			return t.In(p.loc).Format("3:04 PM")
		},
		"stamp": func(t time.Time) string { return t.In(p.loc).Format("Jan 02, 2006 3:04 PM") },
		"ymd":   func(t time.Time) string { return t.Format(hours.DateLayout) },
		"hrs":   func(f float64) string { return strconv.FormatFloat(hours.Round2(f), 'f', 2, 64) },
	}
}

// render: バッファに書いてから返す（途中で失敗しても壊れた HTML を出さない）
func (p *Pages) render(c *gin.Context, status int, name string, data gin.H) {
	t, ok := p.tmpl[name]
	if !ok {
		c.String(http.StatusInternalServerError, "template not found")
		return
	}
	if data == nil {
		data = gin.H{}
	}
	data["Flashes"] = session.Flashes(c)
	if cur, ok := auth.Current(c); ok {
		data["Me"] = cur
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		p.log.Error("render template", zap.String("page", name), zap.Error(err))
		c.String(http.StatusInternalServerError, "failed to render page")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}
