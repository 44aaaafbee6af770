package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/aestrial/keymaster/internal/catalog"
	verificationdomain "github.com/aestrial/keymaster/internal/verification/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) registerVerifyRoutes() {
	api := s.engine.Group("/api")
	api.POST("/verify", s.VerifyAndRegister)
	api.GET("/verify/:key/:game/:deviceId", s.VerifyReadOnly)
}

type VerifyRequest struct {
	Key      string `json:"key" binding:"required"`
	Game     string `json:"game" binding:"required"`
	DeviceID string `json:"deviceId" binding:"required"`
}

// VerifyResponse is the launcher-facing decision. Invalid keys are a
// 200 with valid=false, not an error status.
type VerifyResponse struct {
	Valid          bool       `json:"valid"`
	Message        string     `json:"message"`
	Expiry         *time.Time `json:"expiry,omitempty"`
	DeviceLimit    int        `json:"deviceLimit,omitempty"`
	CurrentDevices int        `json:"currentDevices,omitempty"`
	CanRegister    *bool      `json:"canRegister,omitempty"`
}

// VerifyAndRegister decides a license and binds the calling device when
// a slot is free.
func (s *Server) VerifyAndRegister(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.verifySvc.Verify(c.Request.Context(), verificationdomain.VerifyRequest{
		KeyString:      req.Key,
		Game:           catalog.Game(strings.TrimSpace(req.Game)),
		DeviceID:       req.DeviceID,
		RegisterDevice: true,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, verifyResponseFrom(result, false))
}

// VerifyReadOnly reports what a registering verification would decide
// without binding the device.
func (s *Server) VerifyReadOnly(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	game := strings.TrimSpace(c.Param("game"))
	deviceID := strings.TrimSpace(c.Param("deviceId"))
	if key == "" || game == "" || deviceID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.verifySvc.Verify(c.Request.Context(), verificationdomain.VerifyRequest{
		KeyString: key,
		Game:      catalog.Game(game),
		DeviceID:  deviceID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, verifyResponseFrom(result, true))
}

func verifyResponseFrom(result *verificationdomain.Result, includeCanRegister bool) VerifyResponse {
	resp := VerifyResponse{
		Valid:   result.Valid,
		Message: result.Message,
		Expiry:  result.Expiry,
	}
	if result.Reason == verificationdomain.ReasonValid || result.Reason == verificationdomain.ReasonDeviceLimit {
		resp.DeviceLimit = result.DeviceLimit
		resp.CurrentDevices = result.CurrentDevices
	}
	if includeCanRegister {
		canRegister := result.CanRegister
		resp.CanRegister = &canRegister
	}
	return resp
}
