package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pilab-dev/airform/config"
	"github.com/pilab-dev/airform/log"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.ServerConfig {
	return &config.ServerConfig{
		HTTPPort:            "0",
		OtelServiceName:     "airform-test",
		AirtableHTTPTimeout: 5 * time.Second,
	}
}

func TestRouter_Healthz(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewZerologAdapter(zerolog.New(&buf))

	t.Run("ok", func(t *testing.T) {
		router := NewRouter(testConfig(), logger, nil, func(context.Context) error { return nil })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(requestIDHeader))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	})

	t.Run("database down", func(t *testing.T) {
		router := NewRouter(testConfig(), logger, nil, func(context.Context) error {
			return errors.New("no reachable servers")
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestRouter_Metrics(t *testing.T) {
	router := NewRouter(testConfig(), log.NewZerologAdapter(zerolog.Nop()), nil, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRequestLogger_OmitsQueryAndKeepsRequestID(t *testing.T) {
	var buf bytes.Buffer
	router := NewRouter(testConfig(), log.NewZerologAdapter(zerolog.New(&buf)), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz?code=secret-code&state=secret-state", nil)
	req.Header.Set(requestIDHeader, "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))
	assert.NotContains(t, buf.String(), "secret-code")
	assert.NotContains(t, buf.String(), "secret-state")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "req-42", line["request_id"])
	assert.Equal(t, "/healthz", line["path"])
	assert.EqualValues(t, http.StatusOK, line["status"])
}

func TestNewHTTPServer_Timeouts(t *testing.T) {
	srv := NewHTTPServer(testConfig(), log.NewZerologAdapter(zerolog.Nop()), nil, nil)

	assert.Equal(t, ":0", srv.Addr)
	assert.Equal(t, 25*time.Second, srv.WriteTimeout)
	assert.NotNil(t, srv.Handler)
}
