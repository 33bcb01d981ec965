package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visamonk/gateway/auth"
	"visamonk/gateway/database"
	"visamonk/gateway/fallback"
	"visamonk/gateway/store"
	"visamonk/gateway/worker"
)

const (
	testSecret   = "test-secret"
	testEmail    = "admin@visamonk.ai"
	testPassword = "admin123"
)

// fakePool scripts worker outcomes per operation.
type fakePool struct {
	outcomes map[worker.Operation]worker.Outcome
	calls    int
}

func (f *fakePool) Invoke(_ context.Context, op worker.Operation, _ any, _ worker.Options) (worker.Outcome, error) {
	f.calls++
	if out, ok := f.outcomes[op]; ok {
		return out, nil
	}
	return worker.Outcome{Status: worker.StatusFailed, Stderr: "worker unavailable"}, nil
}

func okJSON(s string) worker.Outcome {
	return worker.Outcome{Status: worker.StatusOK, Payload: json.RawMessage(s), Raw: []byte(s)}
}

type testEnv struct {
	router  *gin.Engine
	gateway *auth.Gateway
	store   *store.Store
	dataDir string
}

func newTestEnv(t *testing.T, pool worker.Pool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	db, err := database.Init(filepath.Join(root, "chatbot.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dataDir := filepath.Join(root, "data")
	st := store.New(db, pool, dataDir,
		filepath.Join(root, "scraped_data"),
		filepath.Join(root, "vectorstore"),
		logger)
	gw := auth.New(testSecret, testEmail, testPassword, 24*time.Hour)
	fb := fallback.New()

	r := gin.New()
	api := r.Group("/api")
	RegisterAuthRoutes(api, gw)
	RegisterChatRoutes(api, pool, fb, st, logger)
	RegisterTTSRoutes(api, pool, logger)
	RegisterContactRoutes(api, st)
	RegisterAnalyticsRoutes(api, gw, st)
	RegisterAdminRoutes(api, gw, st)

	return &testEnv{router: r, gateway: gw, store: st, dataDir: dataDir}
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	token, _, err := e.gateway.Issue(testEmail, testPassword)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
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
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestLoginIssuesAdminToken(t *testing.T) {
	env := newTestEnv(t, &fakePool{})

	w := env.do(http.MethodPost, "/api/auth/login", "",
		map[string]string{"email": testEmail, "password": testPassword})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	sess, err := env.gateway.Verify(token)
	require.NoError(t, err)
	assert.True(t, sess.IsAdmin)
	assert.Equal(t, testEmail, sess.Email)
}

func TestLoginRejectsWrongCredentials(t *testing.T) {
	env := newTestEnv(t, &fakePool{})

	w := env.do(http.MethodPost, "/api/auth/login", "",
		map[string]string{"email": testEmail, "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, w.Body.String(), "token")
}

func TestVerifyEndpoint(t *testing.T) {
	env := newTestEnv(t, &fakePool{})
	token := env.adminToken(t)

	w := env.do(http.MethodGet, "/api/auth/verify", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, testEmail, body["email"])
	assert.Equal(t, true, body["isAdmin"])
}

func TestAdminEndpointsRequireAuth(t *testing.T) {
	env := newTestEnv(t, &fakePool{})

	// No token at all.
	w := env.do(http.MethodGet, "/api/admin/files", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Garbage token.
	w = env.do(http.MethodGet, "/api/admin/files", "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid admin token proceeds.
	w = env.do(http.MethodGet, "/api/admin/files", env.adminToken(t), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestChatFallsBackWhenWorkerFails(t *testing.T) {
	// Pool fails every operation, as if the inference worker always
	// exited nonzero.
	env := newTestEnv(t, &fakePool{})

	w := env.do(http.MethodPost, "/api/chat", "",
		map[string]any{"message": "hi"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["text"])

	followUps, ok := body["followUps"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{
		"What are the admission requirements?",
		"Tell me about tuition fees",
		"What programs are available?",
	}, followUps)
}

func TestChatPassesWorkerAnswerThrough(t *testing.T) {
	pool := &fakePool{outcomes: map[worker.Operation]worker.Outcome{
		worker.OpChat: okJSON(`{"success": true, "text": "MIT offers 58 programs.", "followUps": ["Which ones?"]}`),
	}}
	env := newTestEnv(t, pool)

	w := env.do(http.MethodPost, "/api/chat", "",
		map[string]any{"message": "programs at MIT", "language": "en"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "MIT offers 58 programs.", body["text"])
}

func TestChatFallsBackOnDegradedOutput(t *testing.T) {
	pool := &fakePool{outcomes: map[worker.Operation]worker.Outcome{
		worker.OpChat: {Status: worker.StatusDegraded, Raw: []byte("Loading model...")},
	}}
	env := newTestEnv(t, pool)

	w := env.do(http.MethodPost, "/api/chat", "", map[string]any{"message": "hi"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.NotEmpty(t, body["text"])
}

func TestChatRejectsMissingMessage(t *testing.T) {
	env := newTestEnv(t, &fakePool{})
	w := env.do(http.MethodPost, "/api/chat", "", map[string]any{"language": "en"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTTSFailsOnEmptyOutput(t *testing.T) {
	pool := &fakePool{outcomes: map[worker.Operation]worker.Outcome{
		worker.OpTTS: {Status: worker.StatusOK, Raw: nil},
	}}
	env := newTestEnv(t, pool)

	w := env.do(http.MethodPost, "/api/tts", "",
		map[string]string{"text": "hello", "language": "en"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to generate audio")
}

func TestTTSReturnsAudioAndCaches(t *testing.T) {
	pool := &fakePool{outcomes: map[worker.Operation]worker.Outcome{
		worker.OpTTS: {Status: worker.StatusOK, Raw: []byte("ID3audio")},
	}}
	env := newTestEnv(t, pool)

	body := map[string]string{"text": "hello", "language": "en"}
	w := env.do(http.MethodPost, "/api/tts", "", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "ID3audio", w.Body.String())

	before := pool.calls
	w = env.do(http.MethodPost, "/api/tts", "", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, before, pool.calls, "second request must hit the cache")
}

func TestDeleteFilesScenario(t *testing.T) {
	env := newTestEnv(t, &fakePool{})
	require.NoError(t, os.MkdirAll(env.dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.dataDir, "a.txt"), []byte("x"), 0o644))

	w := env.do(http.MethodPost, "/api/admin/delete-files", env.adminToken(t),
		map[string]any{"files": []string{"a.txt", "missing.txt"}})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, float64(1), body["deletedCount"])
	assert.Equal(t, []any{"File not found: missing.txt"}, body["errors"])
}

func TestDeleteFilesRejectsMissingArray(t *testing.T) {
	env := newTestEnv(t, &fakePool{})
	w := env.do(http.MethodPost, "/api/admin/delete-files", env.adminToken(t),
		map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid files array")
}

func TestScrapeEndpoint(t *testing.T) {
	pool := &fakePool{outcomes: map[worker.Operation]worker.Outcome{
		worker.OpScrape: okJSON(`{"success": true, "pages": 4}`),
	}}
	env := newTestEnv(t, pool)

	w := env.do(http.MethodPost, "/api/admin/scrape", env.adminToken(t),
		map[string]any{"url": "https://example.com", "keepOldData": true})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, float64(4), body["pages"])
}

func TestScrapeWorkerFailureIs500(t *testing.T) {
	env := newTestEnv(t, &fakePool{})
	w := env.do(http.MethodPost, "/api/admin/scrape", env.adminToken(t),
		map[string]any{"url": "https://example.com"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestReindexEndpoint(t *testing.T) {
	pool := &fakePool{outcomes: map[worker.Operation]worker.Outcome{
		worker.OpReindex: okJSON(`{"success": true, "chunks": 120, "files": 9}`),
	}}
	env := newTestEnv(t, pool)

	w := env.do(http.MethodPost, "/api/admin/reindex", env.adminToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, float64(120), body["chunks"])
	assert.Equal(t, float64(9), body["files"])
}

func TestClearDatabaseEndpoint(t *testing.T) {
	env := newTestEnv(t, &fakePool{})

	w := env.do(http.MethodPost, "/api/admin/clear-database", env.adminToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
}

func TestUploadEndpoint(t *testing.T) {
	pool := &fakePool{outcomes: map[worker.Operation]worker.Outcome{
		worker.OpProcessFile: okJSON(`{"processed": true, "type": "txt"}`),
	}}
	env := newTestEnv(t, pool)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "unis.txt")
	require.NoError(t, err)
	_, err = io.Copy(part, strings.NewReader("MIT, Cambridge"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+env.adminToken(t))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "unis.txt", body["filename"])
	assert.Equal(t, float64(len("MIT, Cambridge")), body["size"])
}

func TestUploadWithoutFileIs400(t *testing.T) {
	env := newTestEnv(t, &fakePool{})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/upload", nil)
	req.Header.Set("Authorization", "Bearer "+env.adminToken(t))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No file provided")
}

func TestContactValidatesFields(t *testing.T) {
	env := newTestEnv(t, &fakePool{})

	w := env.do(http.MethodPost, "/api/contact", "",
		map[string]string{"name": "Asha", "email": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/contact", "",
		map[string]string{"name": "Asha", "email": "a@b.c", "message": "hello"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnalyticsRequiresToken(t *testing.T) {
	env := newTestEnv(t, &fakePool{})

	w := env.do(http.MethodGet, "/api/analytics", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	require.NoError(t, env.store.SaveConversation("visa fees", "answer", nil))
	w = env.do(http.MethodGet, "/api/analytics", env.adminToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "visa fees")
}
