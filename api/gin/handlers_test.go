package airformgin_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	airformgin "github.com/pilab-dev/airform/api/gin"
	"github.com/pilab-dev/airform/cache"
	"github.com/pilab-dev/airform/domain"
	"github.com/pilab-dev/airform/internal/airtable"
	mock_airtable "github.com/pilab-dev/airform/internal/airtable/mock"
	"github.com/pilab-dev/airform/internal/credentials"
	"github.com/pilab-dev/airform/internal/formsync"
	"github.com/pilab-dev/airform/internal/memstore"
	"github.com/pilab-dev/airform/internal/oauthflow"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	frontendURL   = "http://frontend.test"
	sessionSecret = "handler-test-secret"
)

type testEnv struct {
	router      *gin.Engine
	client      *mock_airtable.MockClient
	users       *memstore.Users
	forms       *memstore.Forms
	submissions *memstore.Submissions
	sessions    *oauthflow.SessionIssuer
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log.Logger = zerolog.Nop()

	ctrl := gomock.NewController(t)
	client := mock_airtable.NewMockClient(ctrl)
	client.EXPECT().AuthCodeURL(gomock.Any(), gomock.Any()).DoAndReturn(func(state, challenge string) string {
		q := url.Values{"state": {state}, "code_challenge": {challenge}, "code_challenge_method": {"S256"}}
		return "https://airtable.test/oauth2/v1/authorize?" + q.Encode()
	}).AnyTimes()

	users := memstore.NewUsers()
	forms := memstore.NewForms()
	submissions := memstore.NewSubmissions()
	attempts := cache.NewMemoryAttemptStore(time.Minute)
	t.Cleanup(func() { _ = attempts.Close() })

	sessions, err := oauthflow.NewSessionIssuer(sessionSecret, "airform", time.Hour)
	require.NoError(t, err)

	creds := credentials.NewStore(users, client)
	flow := oauthflow.New(client, attempts, creds, sessions)
	engine := formsync.NewEngine(client, creds, submissions)

	router := gin.New()
	airformgin.NewAPI(flow, engine, creds, forms, submissions, frontendURL).RegisterRoutes(router)

	return &testEnv{
		router:      router,
		client:      client,
		users:       users,
		forms:       forms,
		submissions: submissions,
		sessions:    sessions,
	}
}

func (e *testEnv) seedOwner(t *testing.T, id string) string {
	t.Helper()
	e.users.Put(&domain.User{
		ID:                id,
		ExternalAccountID: "usr-" + id,
		Email:             id + "@example.com",
		DisplayName:       id,
		AccessToken:       "at-secret-" + id,
		RefreshToken:      "rt-secret-" + id,
		TokenExpiresAt:    time.Now().Add(time.Hour),
	})
	token, err := e.sessions.Issue(id)
	require.NoError(t, err)
	return token
}

func (e *testEnv) seedForm(t *testing.T, ownerID string) *domain.Form {
	t.Helper()
	form := &domain.Form{
		OwnerID: ownerID,
		Name:    "Signup",
		BaseID:  "appBase",
		TableID: "tblTable",
		Fields: []domain.FieldBinding{
			{ExternalFieldID: "fldName", ExternalFieldName: "Name", Required: true},
		},
	}
	require.NoError(t, e.forms.CreateForm(t.Context(), form))
	return form
}

func (e *testEnv) do(method, target, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (e *testEnv) beginState(t *testing.T) string {
	t.Helper()
	w := e.do(http.MethodGet, "/auth/airtable", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	authURL, err := url.Parse(decode(t, w)["url"].(string))
	require.NoError(t, err)
	state := authURL.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestBeginAuthHandler(t *testing.T) {
	env := setup(t)

	w := env.do(http.MethodGet, "/auth/airtable", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	authURL, err := url.Parse(decode(t, w)["url"].(string))
	require.NoError(t, err)
	assert.Equal(t, "S256", authURL.Query().Get("code_challenge_method"))
	assert.NotEmpty(t, authURL.Query().Get("code_challenge"))
	assert.NotEmpty(t, authURL.Query().Get("state"))
}

func TestCallbackHandler_Success(t *testing.T) {
	env := setup(t)
	state := env.beginState(t)

	env.client.EXPECT().ExchangeCode(gomock.Any(), "good-code", gomock.Any()).
		Return(&airtable.TokenSet{AccessToken: "at-1", RefreshToken: "rt-1", ExpiresIn: 3600}, nil)
	env.client.EXPECT().WhoAmI(gomock.Any(), "at-1").
		Return(&airtable.Identity{ID: "usrNew", Email: "new.person@example.com"}, nil)

	w := env.do(http.MethodGet, "/auth/airtable/callback?code=good-code&state="+url.QueryEscape(state), "", nil)
	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "frontend.test", loc.Host)
	assert.Equal(t, "/login", loc.Path)
	token := loc.Query().Get("token")
	require.NotEmpty(t, token)

	me := env.do(http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, me.Code)
	body := decode(t, me)
	assert.Equal(t, "usrNew", body["externalAccountId"])
	assert.Equal(t, "new.person", body["displayName"])
	assert.Equal(t, true, body["connected"])
	assert.NotContains(t, me.Body.String(), "at-1")
	assert.NotContains(t, me.Body.String(), "rt-1")
}

func TestCallbackHandler_StateMismatch(t *testing.T) {
	env := setup(t)

	w := env.do(http.MethodGet, "/auth/airtable/callback?code=c&state=forged", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_state", decode(t, w)["error"])
}

func TestCallbackHandler_ProviderError(t *testing.T) {
	env := setup(t)
	state := env.beginState(t)

	w := env.do(http.MethodGet, "/auth/airtable/callback?error=access_denied&state="+url.QueryEscape(state), "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, frontendURL+"/login?error=authentication_failed", w.Header().Get("Location"))

	// The attempt is burned.
	w = env.do(http.MethodGet, "/auth/airtable/callback?code=c&state="+url.QueryEscape(state), "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallbackHandler_ExchangeFailure(t *testing.T) {
	env := setup(t)
	state := env.beginState(t)

	env.client.EXPECT().ExchangeCode(gomock.Any(), "bad", gomock.Any()).Return(nil, airtable.ErrAuthExchange)

	w := env.do(http.MethodGet, "/auth/airtable/callback?code=bad&state="+url.QueryEscape(state), "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, frontendURL+"/login?error=authentication_failed", w.Header().Get("Location"))
	assert.Zero(t, env.users.Len())
}

func TestSessionMiddleware(t *testing.T) {
	env := setup(t)
	env.seedOwner(t, "owner-1")

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "owner-1",
		Issuer:    "airform",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte(sessionSecret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", "unauthorized"},
		{"not bearer", "Basic abc", "unauthorized"},
		{"garbage token", "Bearer nope", "invalid_session"},
		{"expired token", "Bearer " + expired, "session_expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.code, decode(t, w)["error"])
		})
	}
}

func TestFormHandlers_CRUD(t *testing.T) {
	env := setup(t)
	owner := env.seedOwner(t, "owner-1")
	other := env.seedOwner(t, "owner-2")

	w := env.do(http.MethodPost, "/api/forms", owner, map[string]any{"name": "Missing base"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/forms", owner, map[string]any{
		"name":    "Signup",
		"baseId":  "appBase",
		"tableId": "tblTable",
		"fields": []map[string]any{
			{"externalFieldId": "fldName", "externalFieldName": "Name", "required": true},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	formID := created["id"].(string)
	assert.Equal(t, "owner-1", created["ownerId"])

	w = env.do(http.MethodGet, "/api/forms", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = env.do(http.MethodGet, "/api/forms", other, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = env.do(http.MethodGet, "/api/forms/"+formID, "", nil)
	assert.Equal(t, http.StatusOK, w.Code, "form definitions are public")

	update := map[string]any{"name": "Signup v2", "baseId": "appBase", "tableId": "tblTable"}
	w = env.do(http.MethodPut, "/api/forms/"+formID, other, update)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPut, "/api/forms/"+formID, owner, update)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Signup v2", decode(t, w)["name"])

	w = env.do(http.MethodGet, "/api/forms/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode(t, w)["error"])
}

func TestSubmitHandler(t *testing.T) {
	env := setup(t)
	env.seedOwner(t, "owner-1")
	form := env.seedForm(t, "owner-1")
	target := "/api/forms/" + form.ID + "/submit"

	t.Run("created", func(t *testing.T) {
		env.client.EXPECT().
			CreateRecord(gomock.Any(), "at-secret-owner-1", "appBase", "tblTable", map[string]any{"Name": "Ann"}).
			Return(&airtable.Record{ID: "recOK"}, nil)

		w := env.do(http.MethodPost, target, "", map[string]any{"answers": map[string]any{"fldName": "Ann"}})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		body := decode(t, w)
		assert.Equal(t, "recOK", body["externalRecordId"])
		assert.NotEmpty(t, body["id"])
	})

	t.Run("validation", func(t *testing.T) {
		w := env.do(http.MethodPost, target, "", map[string]any{"answers": map[string]any{"fldName": " "}})
		require.Equal(t, http.StatusBadRequest, w.Code)
		body := decode(t, w)
		assert.Equal(t, "validation_failed", body["error"])
		assert.Equal(t, "fldName", body["field"])
	})

	t.Run("sync failure hides provider details", func(t *testing.T) {
		env.client.EXPECT().CreateRecord(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, fmt.Errorf("%w: INVALID_VALUE_FOR_COLUMN: secret internals", airtable.ErrExternalValidation))

		before := env.submissions.Len()
		w := env.do(http.MethodPost, target, "", map[string]any{"answers": map[string]any{"fldName": "Bo"}})
		require.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "sync_failed", decode(t, w)["error"])
		assert.NotContains(t, w.Body.String(), "secret internals")
		assert.NotContains(t, w.Body.String(), "INVALID_VALUE")
		assert.Equal(t, before, env.submissions.Len())
	})

	t.Run("bad body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, target, strings.NewReader("not json"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown form", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/forms/missing/submit", "", map[string]any{"answers": map[string]any{}})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSubmitHandler_OwnerUnauthenticated(t *testing.T) {
	env := setup(t)
	env.users.Put(&domain.User{ID: "owner-1", ExternalAccountID: "usr1"})
	form := env.seedForm(t, "owner-1")

	w := env.do(http.MethodPost, "/api/forms/"+form.ID+"/submit", "", map[string]any{"answers": map[string]any{"fldName": "Ann"}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "owner_unauthenticated", decode(t, w)["error"])
}

func TestListResponsesHandler(t *testing.T) {
	env := setup(t)
	owner := env.seedOwner(t, "owner-1")
	other := env.seedOwner(t, "owner-2")
	form := env.seedForm(t, "owner-1")
	require.NoError(t, env.submissions.CreateSubmission(t.Context(), &domain.Submission{
		FormID: form.ID, ExternalRecordID: "rec1", Answers: map[string]any{"fldName": "Ann"},
	}))

	w := env.do(http.MethodGet, "/api/forms/"+form.ID+"/responses", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "rec1", list[0]["externalRecordId"])

	w = env.do(http.MethodGet, "/api/forms/"+form.ID+"/responses", other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSchemaHandlers(t *testing.T) {
	env := setup(t)
	owner := env.seedOwner(t, "owner-1")

	env.client.EXPECT().ListBases(gomock.Any(), "at-secret-owner-1").
		Return([]airtable.Base{{ID: "app1", Name: "CRM", PermissionLevel: "create"}}, nil)
	w := env.do(http.MethodGet, "/api/airtable/bases", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"bases":[{"id":"app1","name":"CRM","permissionLevel":"create"}]}`, w.Body.String())

	env.client.EXPECT().ListTables(gomock.Any(), "at-secret-owner-1", "app1").Return(nil, airtable.ErrExternalService)
	w = env.do(http.MethodGet, "/api/airtable/bases/app1/tables", owner, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "upstream_error", decode(t, w)["error"])

	w = env.do(http.MethodGet, "/api/airtable/bases", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
