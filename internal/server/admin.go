package server

import (
	"net/http"
	"strconv"
	"time"

	authdomain "github.com/aestrial/keymaster/internal/auth/domain"
	referraldomain "github.com/aestrial/keymaster/internal/referral/domain"
	resellerdomain "github.com/aestrial/keymaster/internal/reseller/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin")
	admin.Use(s.AuthRequired(authdomain.RoleAdmin))

	admin.GET("/stats", s.AdminStats)
	admin.GET("/resellers", s.AdminListResellers)
	admin.POST("/resellers/credits", s.AdminGrantCredits)
	admin.POST("/resellers/:id/toggle-status", s.AdminToggleResellerStatus)
	admin.POST("/tokens/generate", s.AdminGenerateToken)
	admin.GET("/tokens", s.AdminListTokens)
}

func (s *Server) AdminStats(c *gin.Context) {
	ctx := c.Request.Context()

	resellers, err := s.resellerSvc.List(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	tokens, err := s.referralSvc.List(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	now := s.clock.Now()
	activeKeys := 0
	for _, reseller := range resellers {
		keys, err := s.keySvc.ListByReseller(ctx, reseller.ID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		for _, key := range keys {
			if !key.IsRevoked && now.Before(key.ExpiresAt) {
				activeKeys++
			}
		}
	}

	availableTokens := 0
	for _, token := range tokens {
		if !token.IsUsed {
			availableTokens++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"totalResellers":  len(resellers),
		"activeKeys":      activeKeys,
		"availableTokens": availableTokens,
	})
}

type ResellerSummary struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Credits          int64     `json:"credits"`
	IsActive         bool      `json:"isActive"`
	RegistrationDate time.Time `json:"registrationDate"`
	TotalKeys        int       `json:"totalKeys"`
	ActiveKeys       int       `json:"activeKeys"`
}

func (s *Server) AdminListResellers(c *gin.Context) {
	ctx := c.Request.Context()

	resellers, err := s.resellerSvc.List(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	now := s.clock.Now()
	out := make([]ResellerSummary, 0, len(resellers))
	for _, reseller := range resellers {
		keys, err := s.keySvc.ListByReseller(ctx, reseller.ID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		active := 0
		for _, key := range keys {
			if !key.IsRevoked && now.Before(key.ExpiresAt) {
				active++
			}
		}
		out = append(out, ResellerSummary{
			ID:               reseller.ID.String(),
			Username:         reseller.Username,
			Credits:          reseller.Credits,
			IsActive:         reseller.IsActive,
			RegistrationDate: reseller.RegistrationDate,
			TotalKeys:        len(keys),
			ActiveKeys:       active,
		})
	}

	c.JSON(http.StatusOK, out)
}

type GrantCreditsRequest struct {
	ResellerID string `json:"resellerId" binding:"required"`
	Amount     int64  `json:"amount" binding:"required"`
}

func (s *Server) AdminGrantCredits(c *gin.Context) {
	var req GrantCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resellerID, err := parseSnowflake(req.ResellerID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	balance, err := s.creditSvc.Grant(c.Request.Context(), resellerID, req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	reseller, err := s.resellerSvc.GetByID(c.Request.Context(), resellerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"reseller": resellerJSON(reseller),
		"credits":  balance,
	})
}

type ToggleStatusRequest struct {
	// Pointer so a missing field is rejected rather than read as false.
	IsActive *bool `json:"isActive" binding:"required"`
}

func (s *Server) AdminToggleResellerStatus(c *gin.Context) {
	resellerID, err := parseSnowflake(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req ToggleStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	reseller, err := s.resellerSvc.SetActive(c.Request.Context(), resellerID, *req.IsActive)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"reseller": resellerJSON(reseller),
	})
}

func (s *Server) AdminGenerateToken(c *gin.Context) {
	token, err := s.referralSvc.Generate(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"token":   tokenJSON(token),
	})
}

func (s *Server) AdminListTokens(c *gin.Context) {
	tokens, err := s.referralSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]gin.H, 0, len(tokens))
	for i := range tokens {
		out = append(out, tokenJSON(&tokens[i]))
	}
	c.JSON(http.StatusOK, out)
}

func resellerJSON(reseller *resellerdomain.Reseller) gin.H {
	return gin.H{
		"id":               reseller.ID.String(),
		"username":         reseller.Username,
		"credits":          reseller.Credits,
		"isActive":         reseller.IsActive,
		"registrationDate": reseller.RegistrationDate,
	}
}

func tokenJSON(token *referraldomain.ReferralToken) gin.H {
	out := gin.H{
		"id":        token.ID.String(),
		"token":     token.Token,
		"isUsed":    token.IsUsed,
		"createdAt": token.CreatedAt,
	}
	if token.UsedBy != nil {
		out["usedBy"] = token.UsedBy.String()
	}
	return out
}

func parseSnowflake(raw string) (snowflake.ID, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return snowflake.ID(id), nil
}
