package server

import (
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oicur0t/ratelog/internal/dispatch"
	"github.com/oicur0t/ratelog/internal/logbuffer"
	"github.com/oicur0t/ratelog/pkg/models"
)

func newTestHandler(t *testing.T, cfg logbuffer.Config) (*Handler, *logbuffer.Buffer) {
	t.Helper()
	buf, err := logbuffer.New(cfg)
	require.NoError(t, err)

	router := dispatch.NewRouter(nil)
	require.NoError(t, router.Register(buf))

	return NewHandler(buf, router, NewCommandParser(1024), zap.NewNop()), buf
}

func doRequest(t *testing.T, h http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeCommand(t *testing.T, rec *httptest.ResponseRecorder) models.CommandResponse {
	t.Helper()
	var resp models.CommandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCommand_LogThenList(t *testing.T) {
	h, buf := newTestHandler(t, logbuffer.DefaultConfig())
	mux := NewMux(h, zap.NewNop(), false)

	rec := doRequest(t, mux, http.MethodPost, commandPath, "application/json", `{"line":"log hello world"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.CommandResponse{Command: "log", OK: true}, decodeCommand(t, rec))
	assert.Equal(t, []string{"hello world"}, buf.Lines())

	rec = doRequest(t, mux, http.MethodPost, commandPath, "text/plain; charset=utf-8", "  log   alpha  beta ")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, mux, http.MethodPost, commandPath, "application/json", `{"tokens":["list","alpha"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.CommandResponse{Command: "list", OK: true, Lines: []string{"alpha beta"}}, decodeCommand(t, rec))
}

func TestCommand_Errors(t *testing.T) {
	h, buf := newTestHandler(t, logbuffer.DefaultConfig())
	mux := NewMux(h, zap.NewNop(), false)

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		status      int
	}{
		{name: "wrong method", method: http.MethodGet, status: http.StatusMethodNotAllowed},
		{name: "bad json", method: http.MethodPost, contentType: "application/json", body: "{", status: http.StatusBadRequest},
		{name: "empty line", method: http.MethodPost, contentType: "text/plain", body: "   ", status: http.StatusBadRequest},
		{name: "unknown command", method: http.MethodPost, contentType: "text/plain", body: "frobnicate", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, mux, tt.method, commandPath, tt.contentType, tt.body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	assert.Equal(t, 0, buf.Len())
}

func TestCommand_LogWithoutArgs(t *testing.T) {
	h, _ := newTestHandler(t, logbuffer.DefaultConfig())

	rec := doRequest(t, http.HandlerFunc(h.Command), http.MethodPost, commandPath, "text/plain", "log")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeCommand(t, rec).OK)
}

func TestIngestLogs(t *testing.T) {
	h, buf := newTestHandler(t, logbuffer.Config{RateLimit: 2})
	mux := NewMux(h, zap.NewNop(), false)

	rec := doRequest(t, mux, http.MethodPost, ingestPath, "application/json",
		`{"module":"web","lines":["GET / 200","GET /a 404","GET /b 500"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(3), resp["received"])
	assert.Equal(t, []string{"[web] GET / 200", "[web] GET /a 404"}, buf.Lines())

	rec = doRequest(t, mux, http.MethodPost, ingestPath, "application/json", `{"lines":["x"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, mux, http.MethodPost, ingestPath, "application/json", `{"module":"web","lines":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	h, buf := newTestHandler(t, logbuffer.DefaultConfig())
	buf.Add("one")

	rec := doRequest(t, NewMux(h, zap.NewNop(), false), http.MethodGet, healthPath, "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, []string{"list", "log"}, resp.Commands)
	assert.Equal(t, 1, resp.Buffer.Stored)
	assert.Equal(t, uint64(1), resp.Buffer.Admitted)
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := RecoveryMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := doRequest(t, h, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h, _ := newTestHandler(t, logbuffer.DefaultConfig())
	mux := NewMux(h, zap.New(core), false)

	doRequest(t, mux, http.MethodGet, healthPath, "", "")
	assert.Equal(t, 0, logs.Len(), "health probes log at debug")

	doRequest(t, mux, http.MethodPost, commandPath, "text/plain", "list")
	entries := logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, commandPath, entries[0].ContextMap()["path"])
	assert.Equal(t, int64(http.StatusOK), entries[0].ContextMap()["status"])
}

func TestMTLSMiddleware(t *testing.T) {
	h, _ := newTestHandler(t, logbuffer.DefaultConfig())
	mux := NewMux(h, zap.NewNop(), true)

	rec := doRequest(t, mux, http.MethodGet, healthPath, "", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, healthPath, nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, healthPath, nil)
	req.TLS = &tls.ConnectionState{PeerCertificates: []*x509.Certificate{{Subject: pkix.Name{CommonName: "console"}}}}
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCommand_BodyTooLarge(t *testing.T) {
	buf, err := logbuffer.New(logbuffer.DefaultConfig())
	require.NoError(t, err)
	router := dispatch.NewRouter(nil)
	require.NoError(t, router.Register(buf))
	h := NewHandler(buf, router, NewCommandParser(12), zap.NewNop())
	mux := NewMux(h, zap.NewNop(), false)

	rec := doRequest(t, mux, http.MethodPost, commandPath, "text/plain", "log deploy finished OK")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, decodeCommand(t, rec).Error, "too large")

	rec = doRequest(t, mux, http.MethodPost, commandPath, "application/json", `{"line":"log deploy finished OK"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, 0, buf.Len(), "an oversized command never runs")

	rec = doRequest(t, mux, http.MethodPost, commandPath, "text/plain", "log ok")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ok"}, buf.Lines())
}

func TestCommand_TokensPassedVerbatim(t *testing.T) {
	h, buf := newTestHandler(t, logbuffer.DefaultConfig())
	mux := NewMux(h, zap.NewNop(), false)
	buf.Add("disk  full on /var")
	buf.Add("disk full on /tmp")

	rec := doRequest(t, mux, http.MethodPost, commandPath, "application/json", `{"tokens":["list","disk  full"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"disk  full on /var"}, decodeCommand(t, rec).Lines)

	rec = doRequest(t, mux, http.MethodPost, commandPath, "application/json", `{"tokens":["","list"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
