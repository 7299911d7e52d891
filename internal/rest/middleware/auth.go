package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nutriplan/nutriplan/internal/auth"
	"github.com/nutriplan/nutriplan/internal/config"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/logger"
	"github.com/nutriplan/nutriplan/internal/types"
)

// AuthenticateMiddleware requires a valid bearer token and stores the caller
// identity on the request context
func AuthenticateMiddleware(provider auth.Provider, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(types.HeaderAuthorization)
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			abortWithError(c, ierr.NewError("missing bearer token").
				WithHint("An Authorization: Bearer token is required").
				Mark(ierr.ErrUnauthorized))
			return
		}

		claims, err := provider.ValidateToken(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			log.Debugw("rejected bearer token", "error", err)
			abortWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		ctx = types.SetUserID(ctx, claims.UserID)
		ctx = types.SetUserEmail(ctx, claims.Email)
		ctx = types.SetIsAdmin(ctx, claims.IsAdmin)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAdmin rejects callers without an admin role. Add it after AuthenticateMiddleware.
func RequireAdmin(c *gin.Context) {
	if !types.IsAdmin(c.Request.Context()) {
		abortWithError(c, ierr.NewError("admin role required").
			WithHint("This operation is restricted to administrators").
			Mark(ierr.ErrPermissionDenied))
		return
	}
	c.Next()
}

// CronSecretMiddleware guards scheduler endpoints with a shared secret. An
// unset secret closes the endpoints entirely.
func CronSecretMiddleware(cfg *config.Configuration) gin.HandlerFunc {
	secret := []byte(cfg.BillingSync.CronSecret)
	return func(c *gin.Context) {
		provided := []byte(c.GetHeader(types.HeaderCronSecret))
		if len(secret) == 0 || subtle.ConstantTimeCompare(provided, secret) != 1 {
			abortWithError(c, ierr.NewError("invalid cron secret").
				WithHint("A valid X-Cron-Secret header is required").
				Mark(ierr.ErrUnauthorized))
			return
		}
		c.Next()
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(ierr.HTTPStatusFromErr(err), ierr.NewErrorResponse(err))
}
