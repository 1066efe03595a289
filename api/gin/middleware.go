package airformgin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pilab-dev/airform/domain"
	apierrors "github.com/pilab-dev/airform/errors"
	"github.com/pilab-dev/airform/internal/oauthflow"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
)

const AuthUserIDKey = "auth-user-id"

// SessionResolver maps a session token to a local user id.
type SessionResolver interface {
	ResolveSession(token string) (string, error)
}

// extractBearer extracts the token from the Authorization header.
func extractBearer(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):]), true
	}
	return "", false
}

// SessionMiddleware rejects requests without a valid session token and
// stores the user id on the gin and request contexts.
func SessionMiddleware(sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := otel.Tracer("github.com/pilab-dev/airform/api/gin").Start(c.Request.Context(), "SessionMiddleware")
		defer span.End()

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierrors.NewUnauthorized("Missing Authorization header"))
			return
		}

		token, ok := extractBearer(authHeader)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierrors.NewUnauthorized("Invalid Authorization header"))
			return
		}

		userID, err := sessions.ResolveSession(token)
		if err != nil {
			span.RecordError(err)
			if errors.Is(err, oauthflow.ErrExpiredSession) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, apierrors.NewSessionExpired())
				return
			}
			log.Ctx(ctx).Debug().Err(err).Msg("Rejected session token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierrors.NewInvalidSession())
			return
		}

		c.Set(AuthUserIDKey, userID)
		c.Request = c.Request.WithContext(domain.ContextWithUserID(c.Request.Context(), userID))

		c.Next()
	}
}

// currentUserID returns the id stored by SessionMiddleware.
func currentUserID(c *gin.Context) string {
	return c.GetString(AuthUserIDKey)
}
