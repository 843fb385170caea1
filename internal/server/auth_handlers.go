package server

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/aioptimizer/frontend/internal/client"
	"github.com/aioptimizer/frontend/internal/guard"
)

// loginForm represents a login submission
type loginForm struct {
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required"`
	Next     string `form:"next"`
}

// registerForm represents a signup submission
type registerForm struct {
	Name            string `form:"name" binding:"required,max=100"`
	Email           string `form:"email" binding:"required,email"`
	Password        string `form:"password" binding:"required,password"`
	ConfirmPassword string `form:"confirm_password" binding:"required,eqfield=Password"`
}

// verifyForm represents an email verification submission
type verifyForm struct {
	Email string `form:"email" binding:"required,email"`
	Code  string `form:"code" binding:"required,len=6,numeric"`
}

// emailForm is used by resend-verification and forgot-password
type emailForm struct {
	Email string `form:"email" binding:"required,email"`
}

// resetPasswordForm represents a password reset submission
type resetPasswordForm struct {
	Email           string `form:"email" binding:"required,email"`
	Code            string `form:"code" binding:"required,len=6,numeric"`
	Password        string `form:"password" binding:"required,password"`
	ConfirmPassword string `form:"confirm_password" binding:"required,eqfield=Password"`
}

// afterLogin is where a fresh session lands: next when local, else the default page
func (s *Server) afterLogin(next string) string {
	if safe := guard.SafeNext(next); safe != "" {
		return safe
	}
	return s.policy.DefaultPath
}

func (s *Server) loginPage(c *gin.Context) {
	next := c.Query("next")

	// Already logged in: skip the form
	if state, err := storeFrom(c).Resolve(c.Request.Context()); err == nil && state.IsAuthenticated() {
		c.Redirect(http.StatusFound, s.afterLogin(next))
		return
	}

	p := page{Title: "Log in", Form: loginForm{Next: next}}
	switch {
	case c.Query("verified") != "":
		p.Flash = "Email verified. You can log in now."
	case c.Query("reset") != "":
		p.Flash = "Password updated. Log in with your new password."
	case c.Query("logged_out") != "":
		p.Flash = "You have been logged out."
	}
	s.render(c, http.StatusOK, "login.tmpl", p)
}

func (s *Server) login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		form.Password = ""
		s.renderInvalid(c, "login.tmpl", page{Title: "Log in", Form: form}, err)
		return
	}

	user, err := storeFrom(c).Login(c.Request.Context(), form.Email, form.Password)
	if err != nil {
		form.Password = ""
		s.renderFailure(c, "login.tmpl", page{Title: "Log in", Form: form}, err, "email")
		return
	}

	s.syncCredential(c)

	s.logger.Info().Str("request_id", requestID(c)).Str("user_id", user.ID).Msg("User logged in")
	c.Redirect(http.StatusSeeOther, s.afterLogin(form.Next))
}

func (s *Server) logout(c *gin.Context) {
	storeFrom(c).Logout(c.Request.Context())
	s.syncCredential(c)
	c.Redirect(http.StatusSeeOther, "/login?logged_out=1")
}

func (s *Server) registerPage(c *gin.Context) {
	s.render(c, http.StatusOK, "register.tmpl", page{Title: "Create account", Form: registerForm{}})
}

func (s *Server) register(c *gin.Context) {
	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		form.Password, form.ConfirmPassword = "", ""
		s.renderInvalid(c, "register.tmpl", page{Title: "Create account", Form: form}, err)
		return
	}

	_, err := storeFrom(c).Register(c.Request.Context(), client.RegisterRequest{
		Name:     form.Name,
		Email:    form.Email,
		Password: form.Password,
	})
	if err != nil {
		form.Password, form.ConfirmPassword = "", ""
		s.renderFailure(c, "register.tmpl", page{Title: "Create account", Form: form}, err, "email")
		return
	}

	c.Redirect(http.StatusSeeOther, "/verify?email="+url.QueryEscape(form.Email))
}

func (s *Server) verifyPage(c *gin.Context) {
	p := page{Title: "Verify email", Form: verifyForm{Email: c.Query("email")}}
	if c.Query("email") != "" {
		p.Flash = "We sent a 6-digit code to your email."
	}
	s.render(c, http.StatusOK, "verify.tmpl", p)
}

func (s *Server) verify(c *gin.Context) {
	var form verifyForm
	if err := c.ShouldBind(&form); err != nil {
		s.renderInvalid(c, "verify.tmpl", page{Title: "Verify email", Form: form}, err)
		return
	}

	if _, err := storeFrom(c).Verify(c.Request.Context(), form.Email, form.Code); err != nil {
		s.renderFailure(c, "verify.tmpl", page{Title: "Verify email", Form: form}, err, "email")
		return
	}

	c.Redirect(http.StatusSeeOther, "/login?verified=1")
}

func (s *Server) resendVerification(c *gin.Context) {
	var form emailForm
	if err := c.ShouldBind(&form); err != nil {
		s.renderInvalid(c, "verify.tmpl", page{Title: "Verify email", Form: verifyForm{Email: form.Email}}, err)
		return
	}

	p := page{Title: "Verify email", Form: verifyForm{Email: form.Email}}
	msg, err := storeFrom(c).ResendVerification(c.Request.Context(), form.Email)
	if err != nil {
		s.renderFailure(c, "verify.tmpl", p, err, "email")
		return
	}

	p.Flash = msg.Message
	s.render(c, http.StatusOK, "verify.tmpl", p)
}

func (s *Server) forgotPasswordPage(c *gin.Context) {
	s.render(c, http.StatusOK, "forgot_password.tmpl", page{Title: "Forgot password", Form: emailForm{}})
}

func (s *Server) forgotPassword(c *gin.Context) {
	var form emailForm
	if err := c.ShouldBind(&form); err != nil {
		s.renderInvalid(c, "forgot_password.tmpl", page{Title: "Forgot password", Form: form}, err)
		return
	}

	if _, err := storeFrom(c).ForgotPassword(c.Request.Context(), form.Email); err != nil {
		s.renderFailure(c, "forgot_password.tmpl", page{Title: "Forgot password", Form: form}, err, "email")
		return
	}

	c.Redirect(http.StatusSeeOther, "/reset-password?email="+url.QueryEscape(form.Email))
}

func (s *Server) resetPasswordPage(c *gin.Context) {
	p := page{Title: "Reset password", Form: resetPasswordForm{Email: c.Query("email")}}
	if c.Query("email") != "" {
		p.Flash = "We sent a reset code to your email."
	}
	s.render(c, http.StatusOK, "reset_password.tmpl", p)
}

func (s *Server) resetPassword(c *gin.Context) {
	var form resetPasswordForm
	if err := c.ShouldBind(&form); err != nil {
		form.Password, form.ConfirmPassword = "", ""
		s.renderInvalid(c, "reset_password.tmpl", page{Title: "Reset password", Form: form}, err)
		return
	}

	_, err := storeFrom(c).ResetPassword(c.Request.Context(), client.ResetPasswordRequest{
		Email:       form.Email,
		Code:        form.Code,
		NewPassword: form.Password,
	})
	if err != nil {
		form.Password, form.ConfirmPassword = "", ""
		s.renderFailure(c, "reset_password.tmpl", page{Title: "Reset password", Form: form}, err, "email")
		return
	}

	c.Redirect(http.StatusSeeOther, "/login?reset=1")
}
