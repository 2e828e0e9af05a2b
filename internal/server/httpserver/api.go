package httpserver

import (
	"net/http"

	"github.com/dmitrijs2005/cinecritic/internal/common"
	"github.com/dmitrijs2005/cinecritic/internal/server/models"
	"github.com/dmitrijs2005/cinecritic/internal/server/services"
	"github.com/gin-gonic/gin"
)

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

var errBadBody = common.NewValidationError("invalid request body")

func (s *Server) handleAPILogin(c *gin.Context) {
	var req loginForm
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errBadBody)
		return
	}

	issued, err := s.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.replaceSession(c, issued)
	c.JSON(http.StatusOK, authResponse{Token: issued.Token, User: issued.User})
}

func (s *Server) handleAPIRegister(c *gin.Context) {
	var in services.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.writeError(c, errBadBody)
		return
	}

	issued, err := s.auth.Register(c.Request.Context(), in)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.replaceSession(c, issued)
	c.JSON(http.StatusCreated, authResponse{Token: issued.Token, User: issued.User})
}

func (s *Server) handleAPIMe(c *gin.Context) {
	identity, _ := IdentityFromContext(c.Request.Context())
	c.JSON(http.StatusOK, identity)
}

func (s *Server) handleAPIListUsers(c *gin.Context) {
	list, err := s.users.List(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": list})
}

func (s *Server) handleAPICreateUser(c *gin.Context) {
	var in services.CreateUserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.writeError(c, errBadBody)
		return
	}

	u, err := s.users.Create(c.Request.Context(), in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (s *Server) handleAPIUpdateUser(c *gin.Context) {
	id, err := userID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	var in services.UpdateUserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.writeError(c, errBadBody)
		return
	}

	u, err := s.users.Update(c.Request.Context(), id, in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) handleAPIDeleteUser(c *gin.Context) {
	id, err := userID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	actor, _ := IdentityFromContext(c.Request.Context())
	if err := s.users.Delete(c.Request.Context(), actor, id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
