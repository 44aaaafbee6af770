package server

import (
	"net/http"
	"time"

	authdomain "github.com/aestrial/keymaster/internal/auth/domain"
	"github.com/aestrial/keymaster/internal/catalog"
	devicedomain "github.com/aestrial/keymaster/internal/device/domain"
	issuancedomain "github.com/aestrial/keymaster/internal/issuance/domain"
	licensekeydomain "github.com/aestrial/keymaster/internal/licensekey/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) registerResellerRoutes() {
	api := s.engine.Group("/api/reseller")
	api.Use(s.AuthRequired(authdomain.RoleReseller))

	api.GET("/profile", s.ResellerProfile)
	api.GET("/keys", s.ResellerListKeys)
	api.POST("/keys/generate", s.ResellerGenerateKeys)
	api.GET("/keys/:id", s.ResellerKeyDetail)
	api.POST("/keys/:id/revoke", s.ResellerRevokeKey)
	api.POST("/keys/:id/devices/:deviceId/remove", s.ResellerRemoveDevice)
}

func (s *Server) ResellerProfile(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	ctx := c.Request.Context()

	reseller, err := s.resellerSvc.GetByID(ctx, principal.AccountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	keys, err := s.keySvc.ListByReseller(ctx, reseller.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	now := s.clock.Now()
	active, expired := 0, 0
	for _, key := range keys {
		if key.IsRevoked {
			continue
		}
		if now.Before(key.ExpiresAt) {
			active++
		} else {
			expired++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"id":               reseller.ID.String(),
		"username":         reseller.Username,
		"credits":          reseller.Credits,
		"registrationDate": reseller.RegistrationDate,
		"activeKeys":       active,
		"expiredKeys":      expired,
		"totalKeys":        len(keys),
	})
}

type KeySummary struct {
	ID          string    `json:"id"`
	KeyString   string    `json:"keyString"`
	Game        string    `json:"game"`
	DeviceLimit int       `json:"deviceLimit"`
	ExpiresAt   time.Time `json:"expiryDate"`
	IsRevoked   bool      `json:"isRevoked"`
	CreatedAt   time.Time `json:"createdAt"`
	Devices     int       `json:"devices"`
	Status      string    `json:"status"`
}

func keySummaryFrom(key *licensekeydomain.LicenseKey, deviceCount int, now time.Time) KeySummary {
	return KeySummary{
		ID:          key.ID.String(),
		KeyString:   key.KeyString,
		Game:        string(key.Game),
		DeviceLimit: key.DeviceLimit,
		ExpiresAt:   key.ExpiresAt,
		IsRevoked:   key.IsRevoked,
		CreatedAt:   key.CreatedAt,
		Devices:     deviceCount,
		Status:      key.Status(now),
	}
}

func (s *Server) ResellerListKeys(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	ctx := c.Request.Context()

	keys, err := s.keySvc.ListByReseller(ctx, principal.AccountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	now := s.clock.Now()
	out := make([]KeySummary, 0, len(keys))
	for i := range keys {
		count, err := s.deviceSvc.CountDevices(ctx, keys[i].ID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		out = append(out, keySummaryFrom(&keys[i], count, now))
	}

	c.JSON(http.StatusOK, out)
}

type GenerateKeysRequest struct {
	Game        string    `json:"game" binding:"required"`
	DeviceLimit int       `json:"deviceLimit" binding:"required"`
	ExpiryDate  time.Time `json:"expiryDate" binding:"required"`
	Count       int       `json:"count"`
	KeyString   string    `json:"keyString"`
}

func (s *Server) ResellerGenerateKeys(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req GenerateKeysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}

	result, err := s.issuanceSvc.Issue(c.Request.Context(), issuancedomain.IssueRequest{
		ResellerID:  principal.AccountID,
		Game:        catalog.Game(req.Game),
		DeviceLimit: req.DeviceLimit,
		ExpiresAt:   req.ExpiryDate,
		Count:       req.Count,
		CustomKey:   req.KeyString,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	now := s.clock.Now()
	keys := make([]KeySummary, 0, len(result.Keys))
	for i := range result.Keys {
		keys = append(keys, keySummaryFrom(&result.Keys[i], 0, now))
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":          true,
		"keys":             keys,
		"remainingCredits": result.Balance,
	})
}

// ownedKey loads the path key and enforces that it belongs to the
// calling reseller. Foreign keys read as not found.
func (s *Server) ownedKey(c *gin.Context) (*licensekeydomain.LicenseKey, bool) {
	principal, ok := principalFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return nil, false
	}

	keyID, err := parseSnowflake(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return nil, false
	}

	key, err := s.keySvc.GetByID(c.Request.Context(), keyID)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	if key.ResellerID != principal.AccountID {
		AbortWithError(c, licensekeydomain.ErrNotFound)
		return nil, false
	}
	return key, true
}

func (s *Server) ResellerKeyDetail(c *gin.Context) {
	key, ok := s.ownedKey(c)
	if !ok {
		return
	}

	devices, err := s.deviceSvc.ListDevices(c.Request.Context(), key.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	deviceList := make([]gin.H, 0, len(devices))
	for _, device := range devices {
		deviceList = append(deviceList, gin.H{
			"id":             device.ID.String(),
			"deviceId":       device.DeviceID,
			"firstConnected": device.FirstConnected,
		})
	}

	summary := keySummaryFrom(key, len(devices), s.clock.Now())
	c.JSON(http.StatusOK, gin.H{
		"id":          summary.ID,
		"keyString":   summary.KeyString,
		"game":        summary.Game,
		"deviceLimit": summary.DeviceLimit,
		"expiryDate":  summary.ExpiresAt,
		"isRevoked":   summary.IsRevoked,
		"createdAt":   summary.CreatedAt,
		"status":      summary.Status,
		"devices":     deviceList,
	})
}

func (s *Server) ResellerRevokeKey(c *gin.Context) {
	key, ok := s.ownedKey(c)
	if !ok {
		return
	}

	revoked, err := s.keySvc.Revoke(c.Request.Context(), key.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	count, err := s.deviceSvc.CountDevices(c.Request.Context(), revoked.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"key":     keySummaryFrom(revoked, count, s.clock.Now()),
	})
}

func (s *Server) ResellerRemoveDevice(c *gin.Context) {
	key, ok := s.ownedKey(c)
	if !ok {
		return
	}

	deviceID := c.Param("deviceId")
	removed, err := s.deviceSvc.Remove(c.Request.Context(), key.ID, deviceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !removed {
		AbortWithError(c, devicedomain.ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Device removed successfully",
	})
}
