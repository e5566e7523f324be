package ingestion

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riverbend-labs/canvas-agent/internal/agent"
	"github.com/riverbend-labs/canvas-agent/internal/canvas"
	"github.com/riverbend-labs/canvas-agent/internal/sessions"
)

type scriptedProvider struct{ text string }

func (p *scriptedProvider) Name() string { return "scripted" }
func (p *scriptedProvider) Generate(_ context.Context, _ agent.ModelHandle, _ agent.GenerateRequest) (*agent.GenerateResponse, error) {
	return &agent.GenerateResponse{Text: p.text, Final: true}, nil
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(_ io.Reader, _ string, _ string) (string, error) {
	return f.text, f.err
}

type fakeDescriber struct {
	description, slug string
	err                error
}

func (f *fakeDescriber) Describe(_ []byte, _ string) (string, string, error) {
	return f.description, f.slug, f.err
}

func newTestPipeline(t *testing.T, transcriber *fakeTranscriber, describer *fakeDescriber) (*Pipeline, *canvas.Service) {
	t.Helper()
	svc := canvas.NewService(canvas.NewMemoryStore(), nil)
	root := &agent.Agent{Name: "orchestrator", Model: "test-model"}
	runner, err := agent.NewRunner(root, &scriptedProvider{text: "ack"}, sessions.NewMemoryStore(), nil, nil)
	require.NoError(t, err)

	cfg := Config{
		Canvas:    svc,
		Runner:    runner,
		ImagesDir: t.TempDir(),
		MediaDir:  t.TempDir(),
	}
	if transcriber != nil {
		cfg.Transcriber = transcriber
	}
	if describer != nil {
		cfg.Describer = describer
	}
	return New(cfg), svc
}

func newMediaServer(t *testing.T, body []byte, contentType string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIngestTextCreatesElementAndInvokesOrchestrator(t *testing.T) {
	pipeline, svc := newTestPipeline(t, nil, nil)

	result, err := pipeline.Ingest(context.Background(), Message{
		ChatID: "chat:1", UserID: "u1", UserName: "Alice",
		Text: "hello world", MessageID: "m1", MediaType: MediaText,
	})
	require.NoError(t, err)
	require.Equal(t, "ack", result.Reply)

	el, err := svc.GetElement(context.Background(), result.ElementID)
	require.NoError(t, err)
	require.Equal(t, "text", el.Type)
	require.Equal(t, "hello world", el.Content)
	require.Equal(t, "Alice", el.CreatedBy)
}

func TestIngestForwardSetsIsForwardAttribute(t *testing.T) {
	pipeline, svc := newTestPipeline(t, nil, nil)

	result, err := pipeline.Ingest(context.Background(), Message{
		ChatID: "chat:1", UserID: "u1", UserName: "Alice",
		Text: "fwd", MessageID: "m2", MediaType: MediaText,
		IsForward: true, OriginalAuthorName: "Bob",
	})
	require.NoError(t, err)

	el, err := svc.GetElement(context.Background(), result.ElementID)
	require.NoError(t, err)
	require.Equal(t, "Bob", el.CreatedBy)
	require.Equal(t, 1, el.Attributes["is_forward"])
}

func TestIngestVoiceCreatesElementFromTranscript(t *testing.T) {
	srv := newMediaServer(t, []byte("fake-ogg-bytes"), "audio/ogg")
	pipeline, svc := newTestPipeline(t, &fakeTranscriber{text: "hello"}, nil)

	result, err := pipeline.Ingest(context.Background(), Message{
		ChatID: "chat:1", UserID: "u1", UserName: "Alice",
		MessageID: "m3", MediaType: MediaVoice, MediaURL: srv.URL + "/voice.ogg",
	})
	require.NoError(t, err)

	el, err := svc.GetElement(context.Background(), result.ElementID)
	require.NoError(t, err)
	require.Equal(t, "voice", el.Type)
	require.Equal(t, "hello", el.Content)
	require.NotEmpty(t, el.Attributes["media_path"])
}

func TestIngestVoiceFailsOnEmptyTranscription(t *testing.T) {
	srv := newMediaServer(t, []byte("fake-ogg-bytes"), "audio/ogg")
	pipeline, _ := newTestPipeline(t, &fakeTranscriber{text: "   "}, nil)

	_, err := pipeline.Ingest(context.Background(), Message{
		ChatID: "chat:1", UserID: "u1", MessageID: "m4",
		MediaType: MediaVoice, MediaURL: srv.URL + "/voice.ogg",
	})
	require.Error(t, err)
}

func TestIngestImageCreatesShardedPathElement(t *testing.T) {
	srv := newMediaServer(t, []byte("fake-jpeg-bytes"), "image/jpeg")
	pipeline, svc := newTestPipeline(t, nil, &fakeDescriber{
		description: "1) a cat\n5) Slug: cute-cat", slug: "cute-cat",
	})

	result, err := pipeline.Ingest(context.Background(), Message{
		ChatID: "chat:1", UserID: "u1", MessageID: "m5",
		MediaType: MediaImage, MediaURL: srv.URL + "/photo.jpg",
	})
	require.NoError(t, err)

	el, err := svc.GetElement(context.Background(), result.ElementID)
	require.NoError(t, err)
	require.Equal(t, "image", el.Type)
	require.Contains(t, el.Attributes["file_path"], "cute-cat")
}

func TestIngestRequiresMediaURLForVoice(t *testing.T) {
	pipeline, _ := newTestPipeline(t, &fakeTranscriber{text: "hi"}, nil)

	_, err := pipeline.Ingest(context.Background(), Message{
		ChatID: "chat:1", MessageID: "m6", MediaType: MediaVoice,
	})
	require.Error(t, err)
}
