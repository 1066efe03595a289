// Package airformgin exposes the service over HTTP using gin.
package airformgin

import (
	"context"
	"net/url"
	"path"

	"github.com/gin-gonic/gin"
	"github.com/pilab-dev/airform/domain"
	"github.com/pilab-dev/airform/internal/airtable"
	"github.com/pilab-dev/airform/internal/formsync"
	"github.com/pilab-dev/airform/internal/oauthflow"
)

// AuthFlow runs the Airtable login.
type AuthFlow interface {
	BeginAuthorization(ctx context.Context) (*oauthflow.Authorization, error)
	CompleteAuthorization(ctx context.Context, code, state string) (*oauthflow.Result, error)
	FailAuthorization(ctx context.Context, state, reason string) error
	SessionResolver
}

// Syncer writes submissions and reads the Airtable schema of a user.
type Syncer interface {
	Submit(ctx context.Context, form *domain.Form, answers map[string]any) (*formsync.Outcome, error)
	ListBases(ctx context.Context, userID string) ([]airtable.Base, error)
	ListTables(ctx context.Context, userID, baseID string) ([]airtable.Table, error)
}

// UserReader loads the signed-in user.
type UserReader interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

// API holds the dependencies of the HTTP handlers.
type API struct {
	flow        AuthFlow
	syncer      Syncer
	users       UserReader
	forms       domain.FormRepository
	submissions domain.SubmissionRepository
	frontendURL string
}

func NewAPI(
	flow AuthFlow,
	syncer Syncer,
	users UserReader,
	forms domain.FormRepository,
	submissions domain.SubmissionRepository,
	frontendURL string,
) *API {
	return &API{
		flow:        flow,
		syncer:      syncer,
		users:       users,
		forms:       forms,
		submissions: submissions,
		frontendURL: frontendURL,
	}
}

// RegisterRoutes registers every route of the service on r.
func (a *API) RegisterRoutes(r gin.IRouter) {
	requireSession := SessionMiddleware(a.flow)

	auth := r.Group("/auth")
	auth.GET("/airtable", a.BeginAuthHandler)
	auth.GET("/airtable/callback", a.CallbackHandler)
	auth.GET("/me", requireSession, a.MeHandler)

	apiGroup := r.Group("/api")
	apiGroup.GET("/airtable/bases", requireSession, a.ListBasesHandler)
	apiGroup.GET("/airtable/bases/:baseId/tables", requireSession, a.ListTablesHandler)

	apiGroup.POST("/forms", requireSession, a.CreateFormHandler)
	apiGroup.GET("/forms", requireSession, a.ListFormsHandler)
	apiGroup.GET("/forms/:id", a.GetFormHandler)
	apiGroup.PUT("/forms/:id", requireSession, a.UpdateFormHandler)
	apiGroup.POST("/forms/:id/submit", a.SubmitHandler)
	apiGroup.GET("/forms/:id/responses", requireSession, a.ListResponsesHandler)
}

// loginRedirect builds FRONTEND_URL/login with the given query.
func (a *API) loginRedirect(query url.Values) string {
	u, err := url.Parse(a.frontendURL)
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	u.Path = path.Join("/", u.Path, "login")
	u.RawQuery = query.Encode()
	return u.String()
}
