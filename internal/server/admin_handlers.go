package server

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aioptimizer/frontend/internal/models"
)

const usersPerPage = 10

// adminData is the Data of admin.tmpl
type adminData struct {
	Users    []models.User
	Query    string
	Sort     string
	Dir      string
	Page     int
	Pages    int
	Total    int
	SelfID   string
	PrevPage int
	NextPage int
}

var adminNotices = map[string]string{
	"promoted": "User promoted to admin.",
	"demoted":  "Admin rights removed.",
	"deleted":  "User deleted.",
}

var adminErrors = map[string]string{
	"self": "You cannot change or delete your own account here.",
}

// userListQuery is the search, sort and paging state of the user table
type userListQuery struct {
	Search string `form:"q"`
	Sort   string `form:"sort"`
	Dir    string `form:"dir"`
	Page   int    `form:"page"`
}

func (q *userListQuery) normalize() {
	q.Search = strings.TrimSpace(q.Search)
	switch q.Sort {
	case "name", "email", "role", "createdAt":
	default:
		q.Sort = "createdAt"
	}
	if q.Dir != "asc" {
		q.Dir = "desc"
	}
	if q.Page < 1 {
		q.Page = 1
	}
}

// filterUsers applies search and sort to the full user list
func filterUsers(users []models.User, q userListQuery) []models.User {
	needle := strings.ToLower(q.Search)

	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if needle == "" ||
			strings.Contains(strings.ToLower(u.Name), needle) ||
			strings.Contains(strings.ToLower(u.Email), needle) {
			out = append(out, u)
		}
	}

	less := func(a, b models.User) bool {
		switch q.Sort {
		case "name":
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		case "email":
			return strings.ToLower(a.Email) < strings.ToLower(b.Email)
		case "role":
			return a.Role < b.Role
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if q.Dir == "asc" {
			return less(out[i], out[j])
		}
		return less(out[j], out[i])
	})
	return out
}

// paginate returns one page of users and the page count
func paginate(users []models.User, page int) ([]models.User, int, int) {
	pages := (len(users) + usersPerPage - 1) / usersPerPage
	if pages == 0 {
		pages = 1
	}
	if page > pages {
		page = pages
	}

	start := (page - 1) * usersPerPage
	end := start + usersPerPage
	if end > len(users) {
		end = len(users)
	}
	return users[start:end], page, pages
}

func (s *Server) adminPage(c *gin.Context) {
	var q userListQuery
	_ = c.ShouldBindQuery(&q)
	q.normalize()

	current := storeFrom(c).State().User
	p := page{
		Title: "Admin",
		Flash: adminNotices[c.Query("notice")],
		Error: adminErrors[c.Query("error")],
		Data:  adminData{Query: q.Search, Sort: q.Sort, Dir: q.Dir, Page: 1, Pages: 1, SelfID: current.ID},
	}

	users, err := apiFrom(c).ListUsers(c.Request.Context())
	if err != nil {
		if sessionRejected(err) {
			s.sessionExpired(c)
			return
		}
		s.dropStaleRole(c, err)
		s.renderFailure(c, "admin.tmpl", p, err, "")
		return
	}

	filtered := filterUsers(users, q)
	visible, pageNum, pages := paginate(filtered, q.Page)

	data := adminData{
		Users:  visible,
		Query:  q.Search,
		Sort:   q.Sort,
		Dir:    q.Dir,
		Page:   pageNum,
		Pages:  pages,
		Total:  len(filtered),
		SelfID: current.ID,
	}
	if pageNum > 1 {
		data.PrevPage = pageNum - 1
	}
	if pageNum < pages {
		data.NextPage = pageNum + 1
	}
	p.Data = data

	s.render(c, http.StatusOK, "admin.tmpl", p)
}

func (s *Server) promoteUser(c *gin.Context) {
	s.adminAction(c, "promoted", false, apiFrom(c).PromoteUser)
}

func (s *Server) demoteUser(c *gin.Context) {
	s.adminAction(c, "demoted", true, apiFrom(c).DemoteUser)
}

func (s *Server) deleteUser(c *gin.Context) {
	s.adminAction(c, "deleted", true, apiFrom(c).DeleteUser)
}

// adminAction runs one user mutation and returns to the user table. Admins
// cannot demote or delete themselves.
func (s *Server) adminAction(c *gin.Context, notice string, forbidSelf bool, action func(ctx context.Context, userID string) error) {
	userID := c.Param("id")
	current := storeFrom(c).State().User

	if forbidSelf && userID == current.ID {
		c.Redirect(http.StatusSeeOther, "/admin?error=self")
		return
	}

	if err := action(c.Request.Context(), userID); err != nil {
		if sessionRejected(err) {
			s.sessionExpired(c)
			return
		}
		s.dropStaleRole(c, err)
		s.logger.Error().
			Err(err).
			Str("request_id", requestID(c)).
			Str("user_id", userID).
			Str("action", notice).
			Msg("Admin action failed")
		p := page{Title: "Admin", Data: adminData{Page: 1, Pages: 1, SelfID: current.ID}}
		s.renderFailure(c, "admin.tmpl", p, err, "")
		return
	}

	s.logger.Info().
		Str("request_id", requestID(c)).
		Str("user_id", userID).
		Str("by", current.ID).
		Str("action", notice).
		Msg("Admin action applied")

	c.Redirect(http.StatusSeeOther, "/admin?notice="+notice)
}
