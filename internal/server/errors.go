package server

import (
	"errors"
	"net/http"

	authdomain "github.com/aestrial/keymaster/internal/auth/domain"
	creditdomain "github.com/aestrial/keymaster/internal/credit/domain"
	devicedomain "github.com/aestrial/keymaster/internal/device/domain"
	issuancedomain "github.com/aestrial/keymaster/internal/issuance/domain"
	licensekeydomain "github.com/aestrial/keymaster/internal/licensekey/domain"
	referraldomain "github.com/aestrial/keymaster/internal/referral/domain"
	resellerdomain "github.com/aestrial/keymaster/internal/reseller/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrTooManyLogins  = errors.New("too_many_login_attempts")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredential),
		errors.Is(err, resellerdomain.ErrInvalidCredential),
		errors.Is(err, authdomain.ErrSessionNotFound),
		errors.Is(err, authdomain.ErrSessionExpired):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authdomain.ErrAccountSuspended):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, creditdomain.ErrInsufficientCredits):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "insufficient_credits",
			Message: "insufficient credits",
		}
	case errors.Is(err, ErrTooManyLogins):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many attempts, try again later",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, licensekeydomain.ErrInvalidGame),
		errors.Is(err, licensekeydomain.ErrInvalidLimit),
		errors.Is(err, licensekeydomain.ErrInvalidExpiry),
		errors.Is(err, licensekeydomain.ErrInvalidRequest),
		errors.Is(err, issuancedomain.ErrInvalidCount),
		errors.Is(err, creditdomain.ErrInvalidAmount),
		errors.Is(err, devicedomain.ErrInvalidDeviceID),
		errors.Is(err, resellerdomain.ErrInvalidRequest):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, licensekeydomain.ErrNotFound),
		errors.Is(err, devicedomain.ErrNotFound),
		errors.Is(err, resellerdomain.ErrNotFound),
		errors.Is(err, creditdomain.ErrAccountNotFound),
		errors.Is(err, referraldomain.ErrTokenNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, licensekeydomain.ErrDuplicateKey),
		errors.Is(err, resellerdomain.ErrUsernameTaken),
		errors.Is(err, referraldomain.ErrTokenUsed):
		return true
	default:
		return false
	}
}

// classifyErrorForLog buckets handler errors for the request log.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "error", payload.Type
	case status >= http.StatusBadRequest:
		return "warn", payload.Type
	default:
		return "info", payload.Type
	}
}
