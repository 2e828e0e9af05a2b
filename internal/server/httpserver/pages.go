package httpserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/cinecritic/internal/common"
	"github.com/dmitrijs2005/cinecritic/internal/server/models"
	"github.com/dmitrijs2005/cinecritic/internal/server/services"
	"github.com/gin-gonic/gin"
)

// pageData adds the caller's identity to template data.
func pageData(c *gin.Context, data gin.H) gin.H {
	if data == nil {
		data = gin.H{}
	}
	if identity, ok := IdentityFromContext(c.Request.Context()); ok {
		data["Identity"] = identity
	}
	return data
}

func homePath(identity models.Identity) string {
	if identity.IsAdmin() {
		return "/admin"
	}
	return "/user/dashboard"
}

func (s *Server) handleHome(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", pageData(c, gin.H{"Title": "CineCritic"}))
}

func (s *Server) handleLoginPage(c *gin.Context) {
	if _, ok := IdentityFromContext(c.Request.Context()); ok {
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.HTML(http.StatusOK, "login.html", pageData(c, gin.H{"Title": "Log in", "Username": ""}))
}

type loginForm struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

func (s *Server) handleLoginForm(c *gin.Context) {
	var form loginForm
	_ = c.ShouldBind(&form)

	issued, err := s.auth.Login(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			requestLogger(c, s.logger).Error(c.Request.Context(), "login failed", "error", err)
		}
		c.HTML(status, "login.html", pageData(c, gin.H{"Title": "Log in", "Error": msg, "Username": form.Username}))
		return
	}

	returnTo := s.replaceSession(c, issued)
	if returnTo == "" {
		returnTo = homePath(issued.Identity())
	}
	c.Redirect(http.StatusFound, returnTo)
}

func (s *Server) handleRegisterPage(c *gin.Context) {
	if _, ok := IdentityFromContext(c.Request.Context()); ok {
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.HTML(http.StatusOK, "register.html", pageData(c, gin.H{"Title": "Sign up", "Username": "", "Email": ""}))
}

func (s *Server) handleRegisterForm(c *gin.Context) {
	var in services.RegisterInput
	_ = c.ShouldBind(&in)

	issued, err := s.auth.Register(c.Request.Context(), in)
	if err != nil {
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			requestLogger(c, s.logger).Error(c.Request.Context(), "registration failed", "error", err)
		}
		c.HTML(status, "register.html", pageData(c, gin.H{
			"Title": "Sign up", "Error": msg, "Username": in.Username, "Email": in.Email,
		}))
		return
	}

	s.replaceSession(c, issued)
	c.Redirect(http.StatusFound, homePath(issued.Identity()))
}

// replaceSession sets both auth cookies from issued and drops the session the
// caller arrived with. It returns the page remembered in that session.
func (s *Server) replaceSession(c *gin.Context, issued *services.Issued) string {
	var returnTo string

	res := s.gate.resolution(c)
	if prev := res.Session; prev != nil && prev.ID != issued.Session.ID {
		returnTo = safeReturnTo(prev.ReturnTo)
		if err := s.gate.sessions.Delete(c.Request.Context(), prev.ID); err != nil {
			requestLogger(c, s.logger).Warn(c.Request.Context(), "previous session not deleted", "error", err)
		}
	}

	s.cookies.setSession(c, issued.Session.ID, issued.Session.ExpiresAt)
	s.cookies.setToken(c, issued.Token)
	return returnTo
}

// handleLogout serves both the page and the API logout.
func (s *Server) handleLogout(c *gin.Context) {
	if err := s.auth.Logout(c.Request.Context(), cookieValue(c, common.SessionCookieName)); err != nil {
		requestLogger(c, s.logger).Error(c.Request.Context(), "logout failed", "error", err)
	}
	s.cookies.clearAll(c)

	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (s *Server) handleDashboard(c *gin.Context) {
	c.HTML(http.StatusOK, "dashboard.html", pageData(c, gin.H{"Title": "Dashboard"}))
}

var adminNotices = map[string]string{
	"created": "User created.",
	"updated": "User updated.",
	"deleted": "User deleted.",
}

func (s *Server) handleAdminPage(c *gin.Context) {
	s.renderAdmin(c, http.StatusOK, gin.H{"Notice": adminNotices[c.Query("notice")]})
}

func (s *Server) renderAdmin(c *gin.Context, status int, data gin.H) {
	list, err := s.users.List(c.Request.Context())
	if err != nil {
		requestLogger(c, s.logger).Error(c.Request.Context(), "user list failed", "error", err)
		status = http.StatusInternalServerError
		data["Error"] = "internal server error"
	}
	data["Title"] = "Users"
	data["Users"] = list
	c.HTML(status, "admin.html", pageData(c, data))
}

func (s *Server) adminFailed(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		requestLogger(c, s.logger).Error(c.Request.Context(), "admin action failed", "error", err)
	}
	s.renderAdmin(c, status, gin.H{"Error": msg})
}

func (s *Server) handleAdminCreate(c *gin.Context) {
	var in services.CreateUserInput
	_ = c.ShouldBind(&in)

	if _, err := s.users.Create(c.Request.Context(), in); err != nil {
		s.adminFailed(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/admin?notice=created")
}

type updateForm struct {
	Username string `form:"username"`
	Email    string `form:"email"`
	Password string `form:"password"`
	Role     string `form:"role"`
}

// input maps the edit form to a partial update; blank fields are unchanged.
func (f updateForm) input() services.UpdateUserInput {
	var in services.UpdateUserInput
	if v := strings.TrimSpace(f.Username); v != "" {
		in.Username = &v
	}
	if v := strings.TrimSpace(f.Email); v != "" {
		in.Email = &v
	}
	if f.Password != "" {
		v := f.Password
		in.Password = &v
	}
	if f.Role != "" {
		v := models.Role(f.Role)
		in.Role = &v
	}
	return in
}

func (s *Server) handleAdminUpdate(c *gin.Context) {
	id, err := userID(c)
	if err != nil {
		s.adminFailed(c, err)
		return
	}

	var form updateForm
	_ = c.ShouldBind(&form)

	if _, err := s.users.Update(c.Request.Context(), id, form.input()); err != nil {
		s.adminFailed(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/admin?notice=updated")
}

func (s *Server) handleAdminDelete(c *gin.Context) {
	id, err := userID(c)
	if err != nil {
		s.adminFailed(c, err)
		return
	}

	actor, _ := IdentityFromContext(c.Request.Context())
	if err := s.users.Delete(c.Request.Context(), actor, id); err != nil {
		s.adminFailed(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/admin?notice=deleted")
}

func userID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.NewValidationError("invalid user id")
	}
	return id, nil
}
