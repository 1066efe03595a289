package airformgin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pilab-dev/airform/domain"
	apierrors "github.com/pilab-dev/airform/errors"
	"github.com/pilab-dev/airform/internal/airtable"
	"github.com/pilab-dev/airform/internal/credentials"
	"github.com/pilab-dev/airform/internal/formsync"
	"github.com/pilab-dev/airform/internal/oauthflow"
	"github.com/rs/zerolog/log"
)

// writeError maps a service error to its status and body. Provider details
// never reach the client.
func writeError(c *gin.Context, err error) {
	var verr *formsync.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, apierrors.NewValidationFailed(verr.FieldID, verr.FieldName))
	case errors.Is(err, oauthflow.ErrStateMismatch):
		c.JSON(http.StatusBadRequest, apierrors.NewInvalidState())
	case errors.Is(err, oauthflow.ErrExpiredSession):
		c.JSON(http.StatusUnauthorized, apierrors.NewSessionExpired())
	case errors.Is(err, oauthflow.ErrInvalidSession):
		c.JSON(http.StatusUnauthorized, apierrors.NewInvalidSession())
	case errors.Is(err, formsync.ErrOwnerUnauthenticated):
		c.JSON(http.StatusConflict, apierrors.NewOwnerUnauthenticated())
	case errors.Is(err, formsync.ErrSyncFailed):
		c.JSON(http.StatusBadGateway, apierrors.NewSyncFailed())
	case errors.Is(err, airtable.ErrExternalValidation), errors.Is(err, airtable.ErrExternalService):
		c.JSON(http.StatusBadGateway, apierrors.NewUpstreamError())
	case errors.Is(err, domain.ErrFormNotFound):
		c.JSON(http.StatusNotFound, apierrors.NewNotFound("Form not found"))
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, credentials.ErrNotFound):
		c.JSON(http.StatusNotFound, apierrors.NewNotFound("User not found"))
	default:
		log.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, apierrors.NewServerError("Internal server error"))
		return
	}
	log.Ctx(c.Request.Context()).Debug().Err(err).Str("path", c.FullPath()).Msg("Request rejected")
}
