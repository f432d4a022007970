package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/encounterscribe/internal/common"
	"github.com/dmitrijs2005/encounterscribe/internal/cryptox"
	"github.com/gin-gonic/gin"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	password := []byte(req.Password)
	defer cryptox.Wipe(password)

	user, err := s.users.Register(c.Request.Context(), req.Email, password)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"message": "email already registered"})
			return
		}
		s.fail(c, err)
		return
	}

	s.logger.Info(c.Request.Context(), "Registered", "user_id", user.ID)
	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "email": user.Email})
}

func (s *Server) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	password := []byte(req.Password)
	defer cryptox.Wipe(password)

	tokens, err := s.users.Login(c.Request.Context(), req.Email, password)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.setRefreshCookie(c, tokens.RefreshToken)
	c.JSON(http.StatusOK, gin.H{"accessToken": tokens.AccessToken})
}

// refresh rotates the refresh cookie and returns a new access token.
func (s *Server) refresh(c *gin.Context) {
	token, err := c.Cookie(common.RefreshCookieName)
	if err != nil || token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "refresh token missing"})
		return
	}

	tokens, err := s.users.RefreshToken(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, common.ErrRefreshTokenExpired) || errors.Is(err, common.ErrInvalidToken) {
			s.clearRefreshCookie(c)
		}
		s.fail(c, err)
		return
	}

	s.setRefreshCookie(c, tokens.RefreshToken)
	c.JSON(http.StatusOK, gin.H{"accessToken": tokens.AccessToken})
}

// logout revokes the refresh cookie if one was sent. It always succeeds.
func (s *Server) logout(c *gin.Context) {
	if token, err := c.Cookie(common.RefreshCookieName); err == nil && token != "" {
		if err := s.users.Logout(c.Request.Context(), token); err != nil {
			s.logger.Warn(c.Request.Context(), "revoke refresh token", "error", err)
		}
	}
	s.clearRefreshCookie(c)
	c.Status(http.StatusNoContent)
}

type authActionRequest struct {
	Action string `json:"action"`
}

// authAction answers the session checks the client makes on start-up. The
// middleware has already rejected a bad token with 401.
func (s *Server) authAction(c *gin.Context) {
	var req authActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Action != "check-validity" {
		badRequest(c, "unknown action")
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (s *Server) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(common.RefreshCookieName, token, int(s.users.RefreshTokenValidity().Seconds()), "/", "", s.secureCookies, true)
}

func (s *Server) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(common.RefreshCookieName, "", -1, "/", "", s.secureCookies, true)
}
