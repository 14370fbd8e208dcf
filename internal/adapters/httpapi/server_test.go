package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mailsift/sender-patterns/internal/adapters/store"
	"github.com/mailsift/sender-patterns/internal/core"
)

type recordingAnalyzer struct {
	accountID   string
	senderEmail string
	calls       int
}

func (a *recordingAnalyzer) Enqueue(accountID, senderEmail string) {
	a.accountID = accountID
	a.senderEmail = senderEmail
	a.calls++
}

func newTestServer(t *testing.T) (*Server, *recordingAnalyzer, *store.MemoryStore) {
	t.Helper()
	analyzer := &recordingAnalyzer{}
	st := store.NewMemoryStore(zap.NewNop())
	srv := NewServer(analyzer, st, "127.0.0.1:0", "s3cret", zap.NewNop())
	return srv, analyzer, st
}

func doRequest(srv *Server, method, path, secret, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Internal-Secret", secret)
	}
	w := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(w, req)
	return w
}

func TestTriggerAnalysis(t *testing.T) {
	srv, analyzer, _ := newTestServer(t)

	w := doRequest(srv, http.MethodPost, "/internal/v1/analyze", "s3cret",
		`{"account_id": "acc-1", "sender_email": "news@example.com"}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "accepted")
	require.Equal(t, 1, analyzer.calls)
	assert.Equal(t, "acc-1", analyzer.accountID)
	assert.Equal(t, "news@example.com", analyzer.senderEmail)
}

func TestTriggerAnalysisRejectsBadSecret(t *testing.T) {
	srv, analyzer, _ := newTestServer(t)

	w := doRequest(srv, http.MethodPost, "/internal/v1/analyze", "wrong",
		`{"account_id": "acc-1", "sender_email": "news@example.com"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, analyzer.calls)

	w = doRequest(srv, http.MethodPost, "/internal/v1/analyze", "",
		`{"account_id": "acc-1", "sender_email": "news@example.com"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTriggerAnalysisValidatesBody(t *testing.T) {
	srv, analyzer, _ := newTestServer(t)

	w := doRequest(srv, http.MethodPost, "/internal/v1/analyze", "s3cret",
		`{"account_id": "acc-1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, analyzer.calls)
}

func TestEmptySecretDisablesInternalEndpoints(t *testing.T) {
	analyzer := &recordingAnalyzer{}
	st := store.NewMemoryStore(zap.NewNop())
	srv := NewServer(analyzer, st, "127.0.0.1:0", "", zap.NewNop())

	w := doRequest(srv, http.MethodPost, "/internal/v1/analyze", "",
		`{"account_id": "acc-1", "sender_email": "news@example.com"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBulkUpsertItems(t *testing.T) {
	srv, _, st := newTestServer(t)

	w := doRequest(srv, http.MethodPost, "/internal/v1/groups/7/items", "s3cret",
		`[{"type": "from", "value": "news@example.com", "exclude": true},
		  {"type": "subject", "value": "digest"}]`)
	require.Equal(t, http.StatusNoContent, w.Code)

	items := st.ItemsForGroup(7)
	assert.Len(t, items, 2)
}

func TestBulkUpsertItemsRejectsUnknownType(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(srv, http.MethodPost, "/internal/v1/groups/7/items", "s3cret",
		`[{"type": "regex", "value": ".*"}]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBulkUpsertItemsRejectsBadGroupID(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(srv, http.MethodPost, "/internal/v1/groups/abc/items", "s3cret",
		`[{"type": "from", "value": "news@example.com"}]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthCheck(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

var _ core.Store = (*store.MemoryStore)(nil)
