package server

import (
	"context"
	"net/http"

	authdomain "github.com/aestrial/keymaster/internal/auth/domain"
	resellerdomain "github.com/aestrial/keymaster/internal/reseller/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) registerAuthRoutes() {
	api := s.engine.Group("/api/auth")
	api.POST("/admin/login", s.AdminLogin)
	api.POST("/reseller/login", s.ResellerLogin)
	api.POST("/reseller/register", s.ResellerRegister)
	api.POST("/logout", s.Logout)
	api.GET("/session", s.SessionInfo)
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type SessionUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func sessionUserFrom(principal authdomain.Principal) SessionUser {
	return SessionUser{
		ID:       principal.AccountID.String(),
		Username: principal.Username,
		Role:     string(principal.Role),
	}
}

func (s *Server) AdminLogin(c *gin.Context) {
	s.login(c, s.authSvc.LoginAdmin)
}

func (s *Server) ResellerLogin(c *gin.Context) {
	s.login(c, s.authSvc.LoginReseller)
}

func (s *Server) login(c *gin.Context, authenticate func(ctx context.Context, username, password string, meta authdomain.SessionMetadata) (*authdomain.LoginResult, error)) {
	if !s.loginLimiter.Allow(c.ClientIP()) {
		AbortWithError(c, ErrTooManyLogins)
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := authenticate(c.Request.Context(), req.Username, req.Password, authdomain.SessionMetadata{
		UserAgent: c.Request.UserAgent(),
		RemoteIP:  c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.Token, result.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{"user": sessionUserFrom(result.Principal)})
}

type RegisterRequest struct {
	Username      string `json:"username" binding:"required"`
	Password      string `json:"password" binding:"required"`
	ReferralToken string `json:"referralToken" binding:"required"`
}

func (s *Server) ResellerRegister(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	reseller, err := s.resellerSvc.Register(c.Request.Context(), resellerdomain.RegisterRequest{
		Username:      req.Username,
		Password:      req.Password,
		ReferralToken: req.ReferralToken,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Registration successful",
		"reseller": gin.H{
			"id":               reseller.ID.String(),
			"username":         reseller.Username,
			"credits":          reseller.Credits,
			"registrationDate": reseller.RegistrationDate,
		},
	})
}

func (s *Server) Logout(c *gin.Context) {
	if token, ok := s.sessions.ReadToken(c); ok {
		if err := s.authSvc.Logout(c.Request.Context(), token); err != nil {
			AbortWithError(c, err)
			return
		}
	}
	s.sessions.Clear(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) SessionInfo(c *gin.Context) {
	token, ok := s.sessions.ReadToken(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"isAuthenticated": false})
		return
	}

	principal, err := s.authSvc.Authenticate(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"isAuthenticated": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"isAuthenticated": true,
		"user":            sessionUserFrom(*principal),
	})
}
