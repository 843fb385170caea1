package server

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aioptimizer/frontend/internal/models"
)

// optimizeForm represents an optimizer submission; which fields matter depends on the mode
type optimizeForm struct {
	Content        string `form:"content"`
	URL            string `form:"url" binding:"omitempty,url"`
	Keywords       string `form:"keywords"`
	TargetAudience string `form:"target_audience"`
	VideoURL       string `form:"video_url" binding:"omitempty,url"`
	Title          string `form:"title" binding:"max=200"`
	Description    string `form:"description"`
}

func (f optimizeForm) request() models.OptimizeRequest {
	var keywords []string
	for _, k := range strings.Split(f.Keywords, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}

	return models.OptimizeRequest{
		Content:        strings.TrimSpace(f.Content),
		URL:            strings.TrimSpace(f.URL),
		Keywords:       keywords,
		TargetAudience: strings.TrimSpace(f.TargetAudience),
		VideoURL:       strings.TrimSpace(f.VideoURL),
		Title:          strings.TrimSpace(f.Title),
		Description:    strings.TrimSpace(f.Description),
	}
}

// optimizeData is the Data of optimize.tmpl
type optimizeData struct {
	Mode   models.Mode
	Result *models.Optimization
}

// historyData is the Data of history.tmpl
type historyData struct {
	Mode  models.Mode
	Items []models.Optimization
}

// modeParam resolves :mode, sending unknown modes back to the dashboard
func (s *Server) modeParam(c *gin.Context) (models.Mode, bool) {
	mode, err := models.ParseMode(c.Param("mode"))
	if err != nil {
		c.Redirect(http.StatusFound, s.policy.DefaultPath)
		return "", false
	}
	return mode, true
}

func optimizeTitle(mode models.Mode) string {
	return fmt.Sprintf("%s optimizer", mode.Label())
}

func (s *Server) optimizePage(c *gin.Context) {
	mode, ok := s.modeParam(c)
	if !ok {
		return
	}
	s.render(c, http.StatusOK, "optimize.tmpl", page{
		Title: optimizeTitle(mode),
		Form:  optimizeForm{},
		Data:  optimizeData{Mode: mode},
	})
}

func (s *Server) optimize(c *gin.Context) {
	mode, ok := s.modeParam(c)
	if !ok {
		return
	}

	p := page{Title: optimizeTitle(mode), Data: optimizeData{Mode: mode}}

	var form optimizeForm
	if err := c.ShouldBind(&form); err != nil {
		p.Form = form
		s.renderInvalid(c, "optimize.tmpl", p, err)
		return
	}
	p.Form = form

	req := form.request()
	if err := req.Validate(mode); err != nil {
		p.Error = err.Error()
		s.render(c, http.StatusBadRequest, "optimize.tmpl", p)
		return
	}

	result, err := apiFrom(c).Optimize(c.Request.Context(), mode, req)
	if err != nil {
		if sessionRejected(err) {
			s.sessionExpired(c)
			return
		}
		s.renderFailure(c, "optimize.tmpl", p, err, "")
		return
	}

	// Runs cost credits, so the header should show the new balance
	if err := storeFrom(c).RefreshUser(c.Request.Context()); err != nil {
		s.logger.Warn().Err(err).Str("request_id", requestID(c)).Msg("Failed to refresh user after optimization")
	}

	s.logger.Info().
		Str("request_id", requestID(c)).
		Str("mode", string(mode)).
		Str("optimization_id", result.ID).
		Msg("Optimization completed")

	p.Data = optimizeData{Mode: mode, Result: result}
	s.render(c, http.StatusOK, "optimize.tmpl", p)
}

func (s *Server) historyPage(c *gin.Context) {
	p := page{Title: "History"}

	var filter models.Mode
	if raw := c.Query("mode"); raw != "" {
		if mode, err := models.ParseMode(raw); err == nil {
			filter = mode
		}
	}

	items, err := apiFrom(c).ListOptimizations(c.Request.Context())
	if err != nil {
		if sessionRejected(err) {
			s.sessionExpired(c)
			return
		}
		p.Data = historyData{Mode: filter}
		s.renderFailure(c, "history.tmpl", p, err, "")
		return
	}

	if filter != "" {
		filtered := items[:0]
		for _, item := range items {
			if item.Mode == filter {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	p.Data = historyData{Mode: filter, Items: items}
	s.render(c, http.StatusOK, "history.tmpl", p)
}

func (s *Server) downloadReport(c *gin.Context) {
	report, err := apiFrom(c).DownloadReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		if sessionRejected(err) {
			s.sessionExpired(c)
			return
		}
		s.renderFailure(c, "history.tmpl", page{Title: "History", Data: historyData{}}, err, "")
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": report.Filename}))
	c.Data(http.StatusOK, report.ContentType, report.Body)
}
