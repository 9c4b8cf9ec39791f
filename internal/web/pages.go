package web

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"IMS-backend/internal/attendance"
	"IMS-backend/internal/dailylog"
	"IMS-backend/internal/hours"
	"IMS-backend/internal/platform/apierr"
	"IMS-backend/internal/platform/auth"
	"IMS-backend/internal/platform/render"
	"IMS-backend/internal/platform/session"
)

func RegisterRoutes(r *gin.Engine, p *Pages, tokens *auth.Tokens) {
	r.GET("/", p.Login)
	r.GET("/register", p.Register)

	g := r.Group("/", auth.RequireAuth(tokens))
	g.GET("/admin", auth.RequireRole(auth.RoleAdmin), p.Admin)
	g.GET("/student", auth.RequireRole(auth.RoleStudent), p.Student)
	g.GET("/hte", auth.RequireRole(auth.RoleHTE), p.HTE)
	g.GET("/parent", auth.RequireRole(auth.RoleParent), p.Parent)
	g.GET("/attendance/:student_id/calendar", p.Calendar)
	g.GET("/chat/:partner_id", p.Chat)
	g.GET("/uploads/:filename", p.Upload)
}

// fail: ページ系のエラーはフラッシュを積んでダッシュボードへ戻す
func (p *Pages) fail(c *gin.Context, err error) {
	if apierr.HTTPStatus(err) >= http.StatusInternalServerError {
		p.log.Error("page failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	back := "/"
	if cur, ok := auth.Current(c); ok {
		back = cur.Role.Dashboard()
	}
	// 自分のダッシュボード自体が失敗したらループさせない
	if back == c.Request.URL.Path {
		p.render(c, apierr.HTTPStatus(err), "error", gin.H{"Message": apierr.Message(err)})
		return
	}
	session.AddFlash(c, "danger", apierr.Message(err))
	c.Redirect(http.StatusSeeOther, back)
}

// GET /
func (p *Pages) Login(c *gin.Context) {
	if cur, ok := session.Current(c); ok && auth.Role(cur.Role).Valid() {
		c.Redirect(http.StatusSeeOther, auth.Role(cur.Role).Dashboard())
		return
	}
	p.render(c, http.StatusOK, "login", gin.H{"Roles": auth.Roles()})
}

// GET /register
func (p *Pages) Register(c *gin.Context) {
	p.render(c, http.StatusOK, "register", gin.H{"Roles": auth.Roles()})
}

type studentRow struct {
	ID       int64
	Name     string
	Username string
	HTEID    int64
	Summary  hours.Summary
	Months   []hours.Bucket[attendance.AttendanceResponse]
	Logs     []dailylog.LogResponse
}

// GET /admin
func (p *Pages) Admin(c *gin.Context) {
	ctx := c.Request.Context()
	me := auth.MustCurrent(c)

	students, err := p.Users.ListByRole(ctx, auth.RoleStudent)
	if err != nil {
		p.fail(c, err)
		return
	}
	parents, err := p.Users.ListByRole(ctx, auth.RoleParent)
	if err != nil {
		p.fail(c, err)
		return
	}
	htes, err := p.Users.ListByRole(ctx, auth.RoleHTE)
	if err != nil {
		p.fail(c, err)
		return
	}
	ends, err := p.Endorsements.List(ctx, me)
	if err != nil {
		p.fail(c, err)
		return
	}
	unread, err := p.Deps.Chat.Unread(ctx, me.UserID, "")
	if err != nil {
		p.fail(c, err)
		return
	}

	rows := make([]studentRow, 0, len(students))
	for _, s := range students {
		months, _, err := p.Attendance.ByMonth(ctx, me, s.UserID, attendance.FilterApproved)
		if err != nil {
			p.fail(c, err)
			return
		}
		logs, err := p.DailyLogs.ListVisible(ctx, s.UserID)
		if err != nil {
			p.fail(c, err)
			return
		}
		row := studentRow{
			ID: s.UserID, Name: s.DisplayName(), Username: s.Username,
			Summary: hours.Summarize(s.TotalHours), Months: months, Logs: logs.Items,
		}
		if s.HTEID.Valid {
			row.HTEID = s.HTEID.Int64
		}
		rows = append(rows, row)
	}

	p.render(c, http.StatusOK, "admin", gin.H{
		"Students":     rows,
		"Parents":      parents,
		"HTEs":         htes,
		"Endorsements": ends,
		"Unread":       unread,
	})
}

// GET /student
func (p *Pages) Student(c *gin.Context) {
	ctx := c.Request.Context()
	me := auth.MustCurrent(c)

	self, err := p.Users.Get(ctx, me.UserID)
	if err != nil {
		p.fail(c, err)
		return
	}
	view, err := p.Attendance.StudentView(ctx, me.UserID)
	if err != nil {
		p.fail(c, err)
		return
	}
	ends, err := p.Endorsements.List(ctx, me)
	if err != nil {
		p.fail(c, err)
		return
	}
	dars, err := p.Reports.List(ctx, me, me.UserID)
	if err != nil {
		p.fail(c, err)
		return
	}
	logs, err := p.DailyLogs.List(ctx, me.UserID)
	if err != nil {
		p.fail(c, err)
		return
	}
	fromAdmin, err := p.Deps.Chat.Unread(ctx, me.UserID, auth.RoleAdmin)
	if err != nil {
		p.fail(c, err)
		return
	}
	fromHTE, err := p.Deps.Chat.Unread(ctx, me.UserID, auth.RoleHTE)
	if err != nil {
		p.fail(c, err)
		return
	}

	data := gin.H{
		"Self":            self,
		"Attendance":      view,
		"Endorsements":    ends,
		"Reports":         dars,
		"Logs":            logs,
		"UnreadFromAdmin": fromAdmin,
		"UnreadFromHTE":   fromHTE,
		"Today":           p.now().In(p.loc).Format(hours.DateLayout),
	}
	// 管理者が未登録でもダッシュボードは表示する
	if admin, err := p.Users.DefaultAdmin(ctx); err == nil {
		data["AdminID"] = admin.UserID
	}
	if self.HTEID.Valid {
		data["HTEID"] = self.HTEID.Int64
	}
	p.render(c, http.StatusOK, "student", data)
}

// GET /hte
func (p *Pages) HTE(c *gin.Context) {
	ctx := c.Request.Context()
	me := auth.MustCurrent(c)

	ends, err := p.Endorsements.List(ctx, me)
	if err != nil {
		p.fail(c, err)
		return
	}
	groups, err := p.Attendance.ListForHTE(ctx, me.UserID)
	if err != nil {
		p.fail(c, err)
		return
	}
	students, err := p.Users.AssignedStudents(ctx, me.UserID)
	if err != nil {
		p.fail(c, err)
		return
	}
	unread, err := p.Deps.Chat.Unread(ctx, me.UserID, "")
	if err != nil {
		p.fail(c, err)
		return
	}
	data := gin.H{
		"Endorsements": ends,
		"Groups":       groups,
		"Students":     students,
		"Unread":       unread,
	}
	if admin, err := p.Users.DefaultAdmin(ctx); err == nil {
		data["AdminID"] = admin.UserID
	}
	p.render(c, http.StatusOK, "hte", data)
}

// GET /parent
func (p *Pages) Parent(c *gin.Context) {
	ctx := c.Request.Context()
	me := auth.MustCurrent(c)

	selected, children, err := p.Users.SelectedChild(ctx, me.UserID)
	if err != nil {
		p.fail(c, err)
		return
	}
	data := gin.H{"Children": children, "Selected": selected}
	if selected != nil {
		months, summary, err := p.Attendance.ByMonth(ctx, me, selected.UserID, attendance.FilterPresent)
		if err != nil {
			p.fail(c, err)
			return
		}
		dars, err := p.Reports.List(ctx, me, selected.UserID)
		if err != nil {
			p.fail(c, err)
			return
		}
		data["Months"] = months
		data["Summary"] = summary
		data["Reports"] = dars
	}
	p.render(c, http.StatusOK, "parent", data)
}

// GET /attendance/:student_id/calendar?year=&month=
func (p *Pages) Calendar(c *gin.Context) {
	me := auth.MustCurrent(c)
	id, err := render.PathID(c, "student_id")
	if err != nil {
		p.fail(c, err)
		return
	}
	now := p.now().In(p.loc)
	year, month := now.Year(), now.Month()
	if v := c.Query("year"); v != "" {
		if year, err = strconv.Atoi(v); err != nil || year < 1 || year > 9999 {
			p.fail(c, apierr.Invalid("year must be a valid year"))
			return
		}
	}
	if v := c.Query("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			p.fail(c, apierr.Invalid("month must be between 1 and 12"))
			return
		}
		month = time.Month(m)
	}

	cal, student, err := p.Attendance.Calendar(c.Request.Context(), me, id, year, month)
	if err != nil {
		p.fail(c, err)
		return
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, p.loc)
	prev, next := first.AddDate(0, -1, 0), first.AddDate(0, 1, 0)
	p.render(c, http.StatusOK, "calendar", gin.H{
		"Calendar":  cal,
		"Student":   student,
		"Weekdays":  []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
		"PrevYear":  prev.Year(),
		"PrevMonth": int(prev.Month()),
		"NextYear":  next.Year(),
		"NextMonth": int(next.Month()),
	})
}

// GET /chat/:partner_id
func (p *Pages) Chat(c *gin.Context) {
	ctx := c.Request.Context()
	me := auth.MustCurrent(c)
	id, err := render.PathID(c, "partner_id")
	if err != nil {
		p.fail(c, err)
		return
	}
	msgs, err := p.Deps.Chat.Conversation(ctx, me.UserID, id, 0)
	if err != nil {
		p.fail(c, err)
		return
	}
	partner, err := p.Users.Get(ctx, id)
	if err != nil {
		p.fail(c, err)
		return
	}
	var last int64
	if n := len(msgs); n > 0 {
		last = msgs[n-1].MessageID
	}
	p.render(c, http.StatusOK, "chat", gin.H{"Partner": partner, "Messages": msgs, "LastID": last})
}

// uploadKinds: /uploads から配れる保存名の接頭辞。推薦状は /api/v1/endorsements/:id/file 経由
var uploadKinds = map[string]bool{"attendance": true, "dar": true}

// uploadOwner: "<kind>_<student_id>_…" から学生IDを取り出す
func uploadOwner(name string) (int64, bool) {
	parts := strings.SplitN(name, "_", 3)
	if len(parts) < 3 || !uploadKinds[parts[0]] {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// GET /uploads/:filename
// その学生を閲覧できる人（管理者・担当HTE・保護者・本人）だけがダウンロードできる
func (p *Pages) Upload(c *gin.Context) {
	name := c.Param("filename")
	studentID, ok := uploadOwner(name)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	path, err := p.Files.Path(name)
	if err != nil || !p.Files.Exists(name) {
		c.Status(http.StatusNotFound)
		return
	}
	me := auth.MustCurrent(c)
	if _, err := p.Users.ViewStudent(c.Request.Context(), me.UserID, me.Role, studentID); err != nil {
		status := apierr.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			p.log.Error("upload access check failed", zap.String("file", name), zap.Error(err))
		}
		c.Status(status)
		return
	}
	c.FileAttachment(path, filepath.Base(name))
}
