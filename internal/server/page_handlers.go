package server

import (
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aioptimizer/frontend/internal/client"
	"github.com/aioptimizer/frontend/internal/models"
)

// profileForm represents the editable profile fields
type profileForm struct {
	Name string `form:"name" binding:"required,max=100"`
}

// sessionResponse is the JSON shape of /api/session
type sessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	Loading       bool         `json:"loading"`
	User          *models.User `json:"user"`
}

func (s *Server) homePage(c *gin.Context) {
	// The landing page is public; a backend hiccup only hides the user menu
	if _, err := storeFrom(c).Resolve(c.Request.Context()); err != nil {
		s.logger.Debug().Err(err).Msg("Session unavailable on home page")
	}
	s.render(c, http.StatusOK, "home.tmpl", page{Title: "AI Optimizer", Data: models.Modes})
}

// sessionInfo answers "who am I" for scripts running in the browser
func (s *Server) sessionInfo(c *gin.Context) {
	state, err := storeFrom(c).Resolve(c.Request.Context())
	if err != nil {
		c.Header("Retry-After", "2")
		c.JSON(http.StatusServiceUnavailable, sessionResponse{Loading: true})
		return
	}

	c.JSON(http.StatusOK, sessionResponse{
		Authenticated: state.IsAuthenticated(),
		Loading:       state.Loading,
		User:          state.User,
	})
}

const (
	recentOptimizations = 5
	statsWindow         = 7 * 24 * time.Hour
)

// dashboardData is the Data of dashboard.tmpl
type dashboardData struct {
	Modes    []models.Mode
	Total    int
	AvgScore int
	ThisWeek int
	Recent   []models.Optimization
}

// dashboardStats summarizes the optimization history as of now
func dashboardStats(items []models.Optimization, now time.Time) dashboardData {
	d := dashboardData{Modes: models.Modes, Total: len(items)}
	if len(items) == 0 {
		return d
	}

	weekAgo := now.Add(-statsWindow)
	var sum float64
	for _, item := range items {
		sum += item.Score
		if item.CreatedAt.After(weekAgo) {
			d.ThisWeek++
		}
	}
	d.AvgScore = int(math.Round(sum / float64(len(items))))

	recent := append([]models.Optimization(nil), items...)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].CreatedAt.After(recent[j].CreatedAt) })
	if len(recent) > recentOptimizations {
		recent = recent[:recentOptimizations]
	}
	d.Recent = recent
	return d
}

func (s *Server) dashboardPage(c *gin.Context) {
	items, err := apiFrom(c).ListOptimizations(c.Request.Context())
	if err != nil {
		if sessionRejected(err) {
			s.sessionExpired(c)
			return
		}
		// Without history the page still renders, with empty stats
		s.logger.Warn().Err(err).Str("request_id", requestID(c)).Msg("Failed to load dashboard stats")
		items = nil
	}

	s.render(c, http.StatusOK, "dashboard.tmpl", page{Title: "Dashboard", Data: dashboardStats(items, time.Now())})
}

func (s *Server) profilePage(c *gin.Context) {
	user := storeFrom(c).State().User
	s.render(c, http.StatusOK, "profile.tmpl", page{Title: "Profile", Form: profileForm{Name: user.Name}})
}

func (s *Server) updateProfile(c *gin.Context) {
	var form profileForm
	if err := c.ShouldBind(&form); err != nil {
		s.renderInvalid(c, "profile.tmpl", page{Title: "Profile", Form: form}, err)
		return
	}

	store := storeFrom(c)
	user, err := store.UpdateProfile(c.Request.Context(), client.ProfileUpdate{Name: form.Name})
	if err != nil {
		if sessionRejected(err) {
			s.sessionExpired(c)
			return
		}
		s.renderFailure(c, "profile.tmpl", page{Title: "Profile", Form: form}, err, "name")
		return
	}

	s.render(c, http.StatusOK, "profile.tmpl", page{
		Title: "Profile",
		User:  user,
		Flash: "Profile updated.",
		Form:  profileForm{Name: user.Name},
	})
}
