package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pagepilot/pagepilot/internal/api/handlers"
	"github.com/pagepilot/pagepilot/internal/assistant"
	"github.com/pagepilot/pagepilot/internal/config"
	"github.com/pagepilot/pagepilot/internal/forward"
	"github.com/pagepilot/pagepilot/internal/interaction"
	"github.com/pagepilot/pagepilot/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubResponder struct {
	reply string
	err   error
}

func (s stubResponder) Respond(context.Context, string, string) (string, error) {
	return s.reply, s.err
}

type testEnv struct {
	server *Server
	store  *session.Store
	repo   *session.SQLiteRepository
	log    *interaction.FileLog
}

func newTestEnv(t *testing.T, responder assistant.Responder, forwardURL string, opts ...ServerOption) *testEnv {
	t.Helper()
	repo, err := session.OpenSQLite(filepath.Join(t.TempDir(), "pp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	store := session.NewStore(repo)
	history, err := interaction.NewFileLog(interaction.Options{})
	require.NoError(t, err)

	cfg := &config.Config{Debug: true}
	cfg.ApplyDefaults()
	disabled := false
	cfg.Metrics.Enabled = &disabled

	srv := NewServer(cfg, Dependencies{
		Store:     store,
		History:   history,
		Resolver:  assistant.NewResolver(assistant.Options{Responder: responder, Sessions: store}),
		Forwarder: forward.New(forwardURL, time.Second),
	}, opts...)
	return &testEnv{server: srv, store: store, repo: repo, log: history}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func TestEndToEndFlow(t *testing.T) {
	env := newTestEnv(t, nil, "")

	w := env.do(t, http.MethodPost, "/api/summaries", map[string]any{"url": "http://x", "summaryText": "hello world"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "summary_only", gjson.Get(w.Body.String(), "data.sessionType").String())
	id := gjson.Get(w.Body.String(), "data.id").String()
	require.NotEmpty(t, id)

	w = env.do(t, http.MethodGet, "/api/summaries/latest?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "count").Int())
	assert.Equal(t, id, gjson.Get(w.Body.String(), "data.0._id").String())
	assert.Equal(t, id, gjson.Get(w.Body.String(), "data.0.id").String())
	assert.Equal(t, int64(11), gjson.Get(w.Body.String(), "data.0.summaryLength").Int())

	w = env.do(t, http.MethodPost, "/api/chat", map[string]any{"question": "", "sessionId": "s1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, gjson.Get(w.Body.String(), "success").Bool())
	assert.NotEmpty(t, gjson.Get(w.Body.String(), "reply").String())
	assert.Zero(t, env.log.Len())

	w = env.do(t, http.MethodPost, "/api/chat", map[string]any{"question": "hi", "sessionId": "s1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gjson.Get(w.Body.String(), "success").Bool())
	assert.Equal(t, "local", gjson.Get(w.Body.String(), "source").String())

	w = env.do(t, http.MethodGet, "/api/chat/history/s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "count").Int())
	assert.Equal(t, "hi", gjson.Get(w.Body.String(), "history.0.question").String())
}

func TestCreateSession_Validation(t *testing.T) {
	env := newTestEnv(t, nil, "")
	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"missing url", map[string]any{"summaryText": "x"}, "url"},
		{"no text", map[string]any{"url": "https://x"}, "summaryText"},
		{"bad summary type", map[string]any{"url": "https://x", "summaryText": "x", "summaryType": "essay"}, "summaryType"},
		{"wrong json type", map[string]any{"url": "https://x", "summaryText": "x", "summaryLength": "ten"}, "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/summaries", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.field, gjson.Get(w.Body.String(), "field").String())
			assert.False(t, gjson.Get(w.Body.String(), "success").Bool())
		})
	}
	n, err := env.store.CountTotal(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListSessions_PaginationAndFilter(t *testing.T) {
	env := newTestEnv(t, nil, "")
	for i := 0; i < 3; i++ {
		env.do(t, http.MethodPost, "/api/summaries", map[string]any{"url": "u", "summaryText": "s"})
	}
	env.do(t, http.MethodPost, "/api/summaries", map[string]any{"url": "u", "voiceText": "v"})
	env.do(t, http.MethodPost, "/api/summaries", map[string]any{"url": "u", "summaryText": "s", "voiceText": "v"})

	w := env.do(t, http.MethodGet, "/api/summaries?page=2&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, int64(5), gjson.Get(body, "pagination.total").Int())
	assert.Equal(t, int64(3), gjson.Get(body, "pagination.totalPages").Int())
	assert.Len(t, gjson.Get(body, "data").Array(), 2)

	w = env.do(t, http.MethodGet, "/api/summaries?page=9223372036854775807&limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, gjson.Get(w.Body.String(), "data").Array())
	assert.Equal(t, int64(5), gjson.Get(w.Body.String(), "pagination.total").Int())

	w = env.do(t, http.MethodGet, "/api/summaries?sessionType=voice_only,dual", nil)
	assert.Equal(t, int64(2), gjson.Get(w.Body.String(), "pagination.total").Int())

	w = env.do(t, http.MethodGet, "/api/summaries?sessionType=video", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/summaries?page=abc&limit=-3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "pagination.page").Int())
	assert.Equal(t, int64(10), gjson.Get(w.Body.String(), "pagination.limit").Int())

	w = env.do(t, http.MethodGet, "/api/summaries/voice", nil)
	assert.Equal(t, int64(2), gjson.Get(w.Body.String(), "count").Int())
}

func TestGetAndDeleteSession(t *testing.T) {
	env := newTestEnv(t, nil, "")
	w := env.do(t, http.MethodPost, "/api/summaries", map[string]any{"url": "u", "summaryText": "s"})
	id := gjson.Get(w.Body.String(), "data.id").String()

	w = env.do(t, http.MethodGet, "/api/summaries/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u", gjson.Get(w.Body.String(), "data.pageTitle").String())

	w = env.do(t, http.MethodDelete, "/api/summaries/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodDelete, "/api/summaries/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodGet, "/api/summaries/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChat_RemoteAndAnalyse(t *testing.T) {
	env := newTestEnv(t, stubResponder{reply: "from model"}, "")

	w := env.do(t, http.MethodPost, "/api/chat", map[string]any{"question": "what is a tide?"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "from model", gjson.Get(w.Body.String(), "reply").String())
	assert.Equal(t, "remote", gjson.Get(w.Body.String(), "source").String())
	assert.Equal(t, handlers.DefaultChatSessionID, gjson.Get(w.Body.String(), "sessionId").String())

	w = env.do(t, http.MethodGet, "/api/analyse/latest", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.do(t, http.MethodPost, "/api/summaries", map[string]any{"url": "u", "summaryText": "  ", "voiceText": "notes"})
	w = env.do(t, http.MethodGet, "/api/analyse/latest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "from model", gjson.Get(w.Body.String(), "analysis").String())
	assert.NotEmpty(t, gjson.Get(w.Body.String(), "recordId").String())

	w = env.do(t, http.MethodPost, "/api/chat", map[string]any{"question": "summarise", "analyse": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gjson.Get(w.Body.String(), "success").Bool())
}

func TestAnalyseLatest_NothingToAnalyse(t *testing.T) {
	env := newTestEnv(t, nil, "")
	// Written straight to the repository so both texts are blank.
	require.NoError(t, env.repo.Put(context.Background(), &session.Record{
		ID: "01J0000000000000000000000Z", URL: "u", SessionType: session.TypeSummaryOnly, Timestamp: time.Now(),
	}))
	w := env.do(t, http.MethodGet, "/api/analyse/latest", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChat_FailingRemoteFallsBack(t *testing.T) {
	env := newTestEnv(t, stubResponder{err: errors.New("boom")}, "")
	w := env.do(t, http.MethodPost, "/api/chat", map[string]any{"question": "I have a fever"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "local", gjson.Get(w.Body.String(), "source").String())
	assert.Contains(t, gjson.Get(w.Body.String(), "reply").String(), "Fever")
}

func TestClearHistory(t *testing.T) {
	env := newTestEnv(t, nil, "")
	env.do(t, http.MethodPost, "/api/chat", map[string]any{"question": "hi", "sessionId": "a"})
	env.do(t, http.MethodPost, "/api/chat", map[string]any{"question": "hello", "sessionId": "a"})
	env.do(t, http.MethodPost, "/api/chat", map[string]any{"question": "hi", "sessionId": "b"})

	w := env.do(t, http.MethodDelete, "/api/chat/history/a", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), gjson.Get(w.Body.String(), "removed").Int())
	assert.Equal(t, 1, env.log.Len())
}

func TestStatsAndHealth(t *testing.T) {
	env := newTestEnv(t, nil, "")
	env.do(t, http.MethodPost, "/api/summaries", map[string]any{"url": "u", "voiceText": "v"})
	env.do(t, http.MethodPost, "/api/chat", map[string]any{"question": "hi"})

	w := env.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, int64(1), gjson.Get(body, "data.total").Int())
	assert.Equal(t, int64(1), gjson.Get(body, "data.today").Int())
	assert.Equal(t, int64(1), gjson.Get(body, "data.voice").Int())
	assert.Equal(t, int64(1), gjson.Get(body, "data.interactions").Int())

	w = env.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", gjson.Get(w.Body.String(), "status").String())
	assert.True(t, gjson.Get(w.Body.String(), "store.connected").Bool())
	assert.Equal(t, "sqlite", gjson.Get(w.Body.String(), "store.driver").String())

	require.NoError(t, env.repo.Close())
	w = env.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.False(t, gjson.Get(w.Body.String(), "store.connected").Bool())
}

func TestLegacySummarize(t *testing.T) {
	var forwarded []byte
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwarded, _ = io.ReadAll(r.Body)
	}))
	defer target.Close()

	env := newTestEnv(t, nil, target.URL)

	w := env.do(t, http.MethodPost, "/summarize", map[string]any{"url": "https://x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No summary received", gjson.Get(w.Body.String(), "error").String())

	w = env.do(t, http.MethodPost, "/summarize", map[string]any{"content": "full summary"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "full summary", gjson.Get(w.Body.String(), "summary").String())
	assert.Equal(t, "full summary", gjson.GetBytes(forwarded, "summary").String())

	latest, err := env.store.Latest(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, handlers.UnknownURL, latest[0].URL)
}

func TestLegacySummarize_ForwardFailure(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := target.URL
	target.Close()

	env := newTestEnv(t, nil, url)
	w := env.do(t, http.MethodPost, "/summarize", map[string]any{"content": "x", "url": "https://x"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to forward to RequestBin", gjson.Get(w.Body.String(), "error").String())
}

func TestLegacySummarize_Non2xxWebhookStillEchoes(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer target.Close()

	env := newTestEnv(t, nil, target.URL)
	w := env.do(t, http.MethodPost, "/summarize", map[string]any{"content": "x", "url": "https://x"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "x", gjson.Get(w.Body.String(), "summary").String())
}

func TestNoRouteListsRoutes(t *testing.T) {
	env := newTestEnv(t, nil, "")
	w := env.do(t, http.MethodGet, "/api/nope", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, gjson.Get(w.Body.String(), "success").Bool())
	routes := gjson.Get(w.Body.String(), "routes").Array()
	assert.NotEmpty(t, routes)
	found := false
	for _, r := range routes {
		if r.String() == "POST /api/chat" {
			found = true
		}
	}
	assert.True(t, found, "route directory should list POST /api/chat")
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil, "")
	req := httptest.NewRequest(http.MethodOptions, "/api/summaries", nil)
	req.Header.Set("Origin", "chrome-extension://abc")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryReply_ChatPanic(t *testing.T) {
	panicky := func(c *gin.Context) {
		if c.GetHeader("X-Fail") != "" {
			c.Set(handlers.QuestionContextKey, "I have a headache")
			panic("boom")
		}
		c.Next()
	}
	env := newTestEnv(t, nil, "", WithMiddleware(panicky))

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader([]byte(`{"question":"x"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Fail", "1")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, gjson.Get(w.Body.String(), "success").Bool())
	assert.Contains(t, gjson.Get(w.Body.String(), "reply").String(), "Headache")

	req = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("X-Fail", "1")
	w = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, gjson.Get(w.Body.String(), "reply").Exists())
}

func TestEngineConfigurator(t *testing.T) {
	configured := false
	env := newTestEnv(t, nil, "", WithEngineConfigurator(func(e *gin.Engine) {
		configured = true
		e.RedirectTrailingSlash = false
	}))
	require.True(t, configured)

	w := env.do(t, http.MethodGet, "/api/stats/", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
