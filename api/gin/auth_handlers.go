package airformgin

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/pilab-dev/airform/api"
	"github.com/pilab-dev/airform/internal/oauthflow"
	"github.com/rs/zerolog/log"
)

const authFailedCode = "authentication_failed"

// BeginAuthHandler returns the Airtable authorization URL for a new attempt.
func (a *API) BeginAuthHandler(c *gin.Context) {
	auth, err := a.flow.BeginAuthorization(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.AuthURLResponse{URL: auth.URL})
}

// CallbackHandler completes the attempt named by the state parameter and
// sends the browser back to the frontend with a session token.
func (a *API) CallbackHandler(c *gin.Context) {
	ctx := c.Request.Context()
	state := c.Query("state")

	if providerErr := c.Query("error"); providerErr != "" {
		if err := a.flow.FailAuthorization(ctx, state, providerErr); errors.Is(err, oauthflow.ErrStateMismatch) {
			log.Ctx(ctx).Warn().Str("provider_error", providerErr).Msg("Provider error on callback with unknown state")
		}
		c.Redirect(http.StatusFound, a.loginRedirect(url.Values{"error": {authFailedCode}}))
		return
	}

	res, err := a.flow.CompleteAuthorization(ctx, c.Query("code"), state)
	if err != nil {
		if errors.Is(err, oauthflow.ErrStateMismatch) {
			writeError(c, err)
			return
		}
		log.Ctx(ctx).Warn().Err(err).Msg("Airtable login failed")
		c.Redirect(http.StatusFound, a.loginRedirect(url.Values{"error": {authFailedCode}}))
		return
	}

	c.Redirect(http.StatusFound, a.loginRedirect(url.Values{"token": {res.SessionToken}}))
}

// MeHandler returns the signed-in user's profile.
func (a *API) MeHandler(c *gin.Context) {
	user, err := a.users.Get(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.NewUserResponse(user))
}

// ListBasesHandler lists the Airtable bases of the signed-in user.
func (a *API) ListBasesHandler(c *gin.Context) {
	bases, err := a.syncer.ListBases(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.BasesResponse{Bases: bases})
}

// ListTablesHandler lists the tables of one base.
func (a *API) ListTablesHandler(c *gin.Context) {
	tables, err := a.syncer.ListTables(c.Request.Context(), currentUserID(c), c.Param("baseId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.TablesResponse{Tables: tables})
}
