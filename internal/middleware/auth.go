package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/realqkqk123fr/temp-backend/internal/security"
	"github.com/realqkqk123fr/temp-backend/internal/token"
	"github.com/realqkqk123fr/temp-backend/pkg/logger"
	"github.com/realqkqk123fr/temp-backend/pkg/response"
)

// IdentityKey is the gin key holding the authenticated *security.Identity
const IdentityKey = "identity"

// Authenticator is satisfied by security.StrictBearerPolicy
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (*security.Identity, error)
}

// AuthFailureObserver is notified of each rejected request, keyed by code
type AuthFailureObserver func(code string)

// Auth guards every non-whitelisted path. A rejected request is aborted with
// 401 before any handler runs and nothing is bound.
func Auth(auth Authenticator, whitelist *security.Whitelist, log *logger.Logger, observe AuthFailureObserver) gin.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || whitelist.Allows(c.Request.URL.Path) {
			c.Next()
			return
		}

		id, err := auth.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			code, message := classifyAuthError(err)
			log.Debug("request rejected",
				zap.String("request_id", GetRequestID(c)),
				zap.String("path", c.Request.URL.Path),
				zap.String("code", code),
				zap.Error(err),
			)
			if observe != nil {
				observe(code)
			}
			response.Abort(c, http.StatusUnauthorized, code, message)
			return
		}

		c.Request = c.Request.WithContext(security.WithIdentity(c.Request.Context(), id))
		c.Set(IdentityKey, id)
		c.Next()
	}
}

func classifyAuthError(err error) (code, message string) {
	switch {
	case errors.Is(err, security.ErrMissingToken):
		return response.CodeMissingToken, "Authorization header with Bearer token is required"
	case errors.Is(err, token.ErrTokenExpired):
		return response.CodeTokenExpired, "Token has expired"
	case errors.Is(err, token.ErrInvalidToken):
		return response.CodeInvalidToken, "Invalid token"
	default:
		return response.CodeUnauthorized, "Authentication failed"
	}
}

// GetIdentity returns the identity bound by Auth
func GetIdentity(c *gin.Context) (*security.Identity, bool) {
	if v, ok := c.Get(IdentityKey); ok {
		if id, ok := v.(*security.Identity); ok && id != nil {
			return id, true
		}
	}
	return security.FromContext(c.Request.Context())
}
