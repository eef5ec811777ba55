package admin

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func auditFixture(next http.Handler) (http.Handler, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return AuditMiddleware(logger, next), &buf
}

func TestAuditMiddleware_LogsMutatingRequests(t *testing.T) {
	h, buf := auditFixture(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"address":"kyc-desk"}`, string(body), "body must survive the audit read")
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/admin/v1/verifiers", strings.NewReader(`{"address":"kyc-desk"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	out := buf.String()
	assert.Contains(t, out, "admin API audit")
	assert.Contains(t, out, "method=POST")
	assert.Contains(t, out, "/admin/v1/verifiers")
	assert.Contains(t, out, "response_status=201")
	assert.Contains(t, out, "kyc-desk")
}

func TestAuditMiddleware_SkipsReads(t *testing.T) {
	h, buf := auditFixture(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/v1/escrows", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, buf.String())
}

func TestAuditMiddleware_TruncatesLargeBodies(t *testing.T) {
	h, buf := auditFixture(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	big := strings.Repeat("x", maxAuditBodyBytes*2)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/v1/jobs/purge", strings.NewReader(big)))

	assert.Contains(t, buf.String(), "(truncated)")
}

func TestAuditMiddleware_DefaultStatusIs200(t *testing.T) {
	h, buf := auditFixture(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// handler writes a body without an explicit WriteHeader
		_, _ = w.Write([]byte(`{}`))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/v1/verifiers/x", nil))

	assert.Contains(t, buf.String(), "response_status=200")
}

func TestStatusWriter_FirstHeaderWins(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	sw.WriteHeader(http.StatusConflict)
	sw.WriteHeader(http.StatusOK) // ignored

	assert.Equal(t, http.StatusConflict, sw.statusCode)
}

func TestGenerateRequestID(t *testing.T) {
	a := generateRequestID()
	b := generateRequestID()
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}
