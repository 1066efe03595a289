package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

// Airtable endpoints. Variables so tests can point them at a local server.
var (
	AuthURL  = "https://airtable.com/oauth2/v1/authorize"
	TokenURL = "https://airtable.com/oauth2/v1/token"
	APIURL   = "https://api.airtable.com"
)

// DefaultScopes are the scopes needed to discover schema, write records and
// identify the user.
var DefaultScopes = []string{
	"data.records:read",
	"data.records:write",
	"schema.bases:read",
	"user.email:read",
}

// DefaultTimeout bounds every request made by HTTPClient.
const DefaultTimeout = 15 * time.Second

// Client is the set of Airtable calls the rest of the service depends on.
// Implementations hold no credential state and never retry.
//
//go:generate go run go.uber.org/mock/mockgen -source=$GOFILE -destination=mock/mock_$GOFILE -package=mock_$GOPACKAGE Client
type Client interface {
	// AuthCodeURL builds the authorize URL for one login attempt.
	AuthCodeURL(state, codeChallenge string) string

	// ExchangeCode trades an authorization code and its PKCE verifier for tokens.
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenSet, error)

	// RefreshToken trades a refresh token for a new token pair.
	RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error)

	// WhoAmI returns the Airtable account behind the access token.
	WhoAmI(ctx context.Context, accessToken string) (*Identity, error)

	ListBases(ctx context.Context, accessToken string) ([]Base, error)
	ListTables(ctx context.Context, accessToken, baseID string) ([]Table, error)

	// CreateRecord writes one record, asking Airtable to typecast the values.
	CreateRecord(ctx context.Context, accessToken, baseID, tableID string, fields map[string]any) (*Record, error)
}

// Config holds the OAuth client registration and transport settings.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	AuthURL  string
	TokenURL string
	APIURL   string

	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// HTTPClient implements Client over Airtable's HTTP API.
type HTTPClient struct {
	oauth   *oauth2.Config
	apiURL  string
	http    *http.Client
	limiter *RateLimiter
}

// NewHTTPClient creates a Client from cfg, filling endpoint defaults.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if cfg.ClientID == "" || cfg.RedirectURL == "" {
		return nil, ErrMisconfigured
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = TokenURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = APIURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	// Airtable expects confidential clients to authenticate with HTTP Basic;
	// public clients send client_id in the body.
	authStyle := oauth2.AuthStyleInHeader
	if cfg.ClientSecret == "" {
		authStyle = oauth2.AuthStyleInParams
	}

	return &HTTPClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: authStyle,
			},
		},
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst, cfg.Timeout),
	}, nil
}

func (c *HTTPClient) AuthCodeURL(state, codeChallenge string) string {
	return c.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

func (c *HTTPClient) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenSet, error) {
	tok, err := c.oauth.Exchange(c.oauthContext(ctx), code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, tokenError("exchange_code", ErrAuthExchange, err)
	}
	return tokenSetFrom(tok), nil
}

func (c *HTTPClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	src := c.oauth.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		e := tokenError("refresh_token", ErrAuthRefresh, err)
		// An unavailable token endpoint says nothing about the refresh
		// token itself, so it must not read as a revocation.
		if e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests {
			e.kind = ErrExternalService
		}
		return nil, e
	}
	return tokenSetFrom(tok), nil
}

func (c *HTTPClient) WhoAmI(ctx context.Context, accessToken string) (*Identity, error) {
	var id Identity
	if err := c.do(ctx, "whoami", http.MethodGet, "/v0/meta/whoami", nil, accessToken, nil, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

func (c *HTTPClient) ListBases(ctx context.Context, accessToken string) ([]Base, error) {
	bases := []Base{}
	offset := ""
	for {
		q := url.Values{}
		if offset != "" {
			q.Set("offset", offset)
		}
		var page struct {
			Bases  []Base `json:"bases"`
			Offset string `json:"offset"`
		}
		if err := c.do(ctx, "list_bases", http.MethodGet, "/v0/meta/bases", q, accessToken, nil, &page); err != nil {
			return nil, err
		}
		bases = append(bases, page.Bases...)
		if page.Offset == "" {
			return bases, nil
		}
		offset = page.Offset
	}
}

func (c *HTTPClient) ListTables(ctx context.Context, accessToken, baseID string) ([]Table, error) {
	if baseID == "" {
		return nil, &Error{Op: "list_tables", Message: "base id is required", kind: ErrExternalValidation}
	}
	var resp struct {
		Tables []Table `json:"tables"`
	}
	path := "/v0/meta/bases/" + url.PathEscape(baseID) + "/tables"
	if err := c.do(ctx, "list_tables", http.MethodGet, path, nil, accessToken, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Tables == nil {
		resp.Tables = []Table{}
	}
	return resp.Tables, nil
}

func (c *HTTPClient) CreateRecord(ctx context.Context, accessToken, baseID, tableID string, fields map[string]any) (*Record, error) {
	if baseID == "" || tableID == "" {
		return nil, &Error{Op: "create_record", Message: "base and table ids are required", kind: ErrExternalValidation}
	}
	if fields == nil {
		fields = map[string]any{}
	}
	body := struct {
		Fields   map[string]any `json:"fields"`
		Typecast bool           `json:"typecast"`
	}{Fields: fields, Typecast: true}

	var rec Record
	path := "/v0/" + url.PathEscape(baseID) + "/" + url.PathEscape(tableID)
	if err := c.do(ctx, "create_record", http.MethodPost, path, nil, accessToken, body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *HTTPClient) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.http)
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, query url.Values, accessToken string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &Error{Op: op, kind: ErrExternalService, cause: err}
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, kind: ErrExternalValidation, cause: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(buf)
	}

	target := c.apiURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, kind: ErrExternalService, cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.responseError(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, kind: ErrExternalService, cause: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *HTTPClient) responseError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	e := &Error{Op: op, StatusCode: resp.StatusCode}
	e.Type, e.Message = decodeErrorBody(raw)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		e.kind = ErrAuthExpired
	case resp.StatusCode == http.StatusTooManyRequests:
		c.limiter.RecordRateLimited(resp.Header.Get("Retry-After"))
		e.kind = ErrExternalService
	case resp.StatusCode >= http.StatusInternalServerError:
		e.kind = ErrExternalService
	case resp.StatusCode >= http.StatusBadRequest:
		e.kind = ErrExternalValidation
	default:
		e.kind = ErrExternalService
	}
	return e
}

// decodeErrorBody understands both error shapes Airtable returns:
// {"error":{"type":"…","message":"…"}} and {"error":"NOT_FOUND"}.
func decodeErrorBody(raw []byte) (string, string) {
	var env struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || len(env.Error) == 0 {
		return "", ""
	}
	var detailed struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(env.Error, &detailed); err == nil {
		return detailed.Type, detailed.Message
	}
	var code string
	if err := json.Unmarshal(env.Error, &code); err == nil {
		return code, ""
	}
	return "", ""
}

func tokenError(op string, kind, err error) *Error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		e := &Error{Op: op, Type: re.ErrorCode, Message: re.ErrorDescription, kind: kind}
		if re.Response != nil {
			e.StatusCode = re.Response.StatusCode
		}
		return e
	}
	if isTransportError(err) {
		return &Error{Op: op, kind: ErrExternalService, cause: err}
	}
	return &Error{Op: op, kind: kind, cause: err}
}

func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func tokenSetFrom(tok *oauth2.Token) *TokenSet {
	ts := &TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    tok.ExpiresIn,
	}
	if ts.ExpiresIn == 0 && !tok.Expiry.IsZero() {
		ts.ExpiresIn = int64(time.Until(tok.Expiry).Seconds())
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		ts.Scope = scope
	}
	return ts
}

var _ Client = (*HTTPClient)(nil)
