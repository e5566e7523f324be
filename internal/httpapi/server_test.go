package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riverbend-labs/canvas-agent/internal/agent"
	"github.com/riverbend-labs/canvas-agent/internal/canvas"
	"github.com/riverbend-labs/canvas-agent/internal/ingestion"
	"github.com/riverbend-labs/canvas-agent/internal/knowledgebase"
	"github.com/riverbend-labs/canvas-agent/internal/sessions"
)

type scriptedProvider struct {
	text string
	err  error
}

func (p *scriptedProvider) Name() string { return "scripted" }
func (p *scriptedProvider) Generate(_ context.Context, _ agent.ModelHandle, _ agent.GenerateRequest) (*agent.GenerateResponse, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &agent.GenerateResponse{Text: p.text, Final: true}, nil
}

type fakeKnowledge struct {
	results []knowledgebase.SearchResult
	err     error
}

func (f *fakeKnowledge) SearchKnowledgeBase(_ context.Context, _, _ string, _ int) ([]knowledgebase.SearchResult, error) {
	return f.results, f.err
}
func (f *fakeKnowledge) FetchDocuments(_ context.Context, _ string, _ []string, _ int) ([]knowledgebase.Document, error) {
	return nil, nil
}

func newTestServer(t *testing.T, providerErr error, knowledge knowledgebase.Client) *Server {
	t.Helper()
	svc := canvas.NewService(canvas.NewMemoryStore(), nil)
	root := &agent.Agent{Name: "orchestrator", Model: "test-model"}
	runner, err := agent.NewRunner(root, &scriptedProvider{text: "ack", err: providerErr}, sessions.NewMemoryStore(), nil, nil)
	require.NoError(t, err)

	pipeline := ingestion.New(ingestion.Config{
		Canvas:    svc,
		Runner:    runner,
		ImagesDir: t.TempDir(),
		MediaDir:  t.TempDir(),
	})

	return NewServer(Config{
		Pipeline:  pipeline,
		Runner:    runner,
		Knowledge: knowledge,
	})
}

func TestHandleHealthzReportsOK(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleMetricsServesPerInstanceRegistry(t *testing.T) {
	srvA := newTestServer(t, nil, nil)
	srvB := newTestServer(t, nil, nil)

	for _, srv := range []*Server{srvA, srvB} {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rec := httptest.NewRecorder()
		srv.Mux().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestHandleIngestCreatesElement(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	meta, err := json.Marshal(map[string]string{"chat_id": "chat:1", "user_name": "Alice"})
	require.NoError(t, err)
	require.NoError(t, w.WriteField("metadata", string(meta)))
	require.NoError(t, w.WriteField("text", "hello"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/ingest", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp["id"])
	require.Equal(t, "ack", resp["text"])
}

func TestHandleIngestRequiresChatID(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("metadata", `{}`))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/ingest", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSummarizeReturnsOrchestratorReply(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	body, _ := json.Marshal(summarizeRequest{ChatID: "chat:1", Limit: 10, Scope: "today"})
	req := httptest.NewRequest(http.MethodPost, "/summarize", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "ack", resp["summary"])
}

func TestHandleAskIncludesKnowledgeSources(t *testing.T) {
	knowledge := &fakeKnowledge{results: []knowledgebase.SearchResult{
		{Document: knowledgebase.Document{Title: "doc-a"}, Score: 0.9},
	}}
	srv := newTestServer(t, nil, knowledge)

	body, _ := json.Marshal(askRequest{Query: "what happened?", ChatID: "chat:1"})
	req := httptest.NewRequest(http.MethodPost, "/ask", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "ack", resp["answer"])
	sources, ok := resp["sources"].([]any)
	require.True(t, ok)
	require.Equal(t, "doc-a", sources[0])
}

func TestHandleAskSurvivesKnowledgeFailure(t *testing.T) {
	knowledge := &fakeKnowledge{err: io.ErrUnexpectedEOF}
	srv := newTestServer(t, nil, knowledge)

	body, _ := json.Marshal(askRequest{Query: "what happened?", ChatID: "chat:1"})
	req := httptest.NewRequest(http.MethodPost, "/ask", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleChatMessageSkipSaveBypassesPipeline(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	body, _ := json.Marshal(chatMessageRequest{ChatID: "chat:1", Text: "preview this", SkipSave: true})
	req := httptest.NewRequest(http.MethodPost, "/chat/message", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "ack", resp["reply"])
}

func TestHandleChatMessagePersistsByDefault(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	body, _ := json.Marshal(chatMessageRequest{ChatID: "chat:1", Text: "remember this"})
	req := httptest.NewRequest(http.MethodPost, "/chat/message", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRunOrchestratorRecordsQuotaExhaustion(t *testing.T) {
	quotaErr := agent.NewQuotaExhaustedError("test-model", "requests", 100, "60s")
	srv := newTestServer(t, quotaErr, nil)

	body, _ := json.Marshal(askRequest{Query: "hi", ChatID: "chat:1"})
	req := httptest.NewRequest(http.MethodPost, "/ask", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
