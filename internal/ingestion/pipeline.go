// Package ingestion implements the narrow inbound path (spec §4.6) that
// normalizes a chat message — text, voice, or image — into a Canvas
// Element, performs transcription/vision description when required, and
// hands the result off to the Agent Runtime.
package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/riverbend-labs/canvas-agent/internal/agent"
	"github.com/riverbend-labs/canvas-agent/internal/canvas"
	"github.com/riverbend-labs/canvas-agent/internal/media"
)

// MediaType identifies which leg of the pipeline an inbound message takes.
type MediaType string

const (
	MediaText     MediaType = "text"
	MediaVoice    MediaType = "voice"
	MediaImage    MediaType = "image"
	MediaDocument MediaType = "document"
)

// Message is the inbound chat interface contract spec §6 names: the chat
// adapter calls the pipeline with these fields and any media bytes.
type Message struct {
	ChatID             string
	UserID             string
	UserName           string
	UserNick           string
	Text               string
	MessageID          string
	ReplyToMessageID   string
	MediaType          MediaType
	MediaURL           string // remote URL to download, voice/image/document only
	IsForward          bool
	OriginalAuthorID   string // preferred author for forwards when present
	OriginalAuthorName string
}

// Result is what the pipeline hands back to the chat adapter.
type Result struct {
	ElementID string
	Reply     string
}

// Pipeline wires the Canvas Store, the Agent Runtime, and the media
// adapters (transcription, vision) into spec §4.6's per-media-type ingest
// routes.
type Pipeline struct {
	canvas         *canvas.Service
	runner         *agent.Runner
	transcriber    media.Transcriber
	describer      media.Describer
	httpClient     *http.Client
	mediaDir       string // data/media/voice/<YYYY>/<MM>/<DD>
	imagesDir      string // data/images/<xx>/<yy>
	defaultAgentID string
	logger         *slog.Logger
}

// Config configures a Pipeline.
type Config struct {
	Canvas         *canvas.Service
	Runner         *agent.Runner
	Transcriber    media.Transcriber
	Describer      media.Describer
	MediaDir       string // default "data/media/voice"
	ImagesDir      string // default "data/images"
	DefaultAgentID string // default "orchestrator"
	Logger         *slog.Logger
}

// New creates a Pipeline over cfg.
func New(cfg Config) *Pipeline {
	if cfg.MediaDir == "" {
		cfg.MediaDir = "data/media/voice"
	}
	if cfg.ImagesDir == "" {
		cfg.ImagesDir = "data/images"
	}
	if cfg.DefaultAgentID == "" {
		cfg.DefaultAgentID = "orchestrator"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		canvas:         cfg.Canvas,
		runner:         cfg.Runner,
		transcriber:    cfg.Transcriber,
		describer:      cfg.Describer,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		mediaDir:       cfg.MediaDir,
		imagesDir:      cfg.ImagesDir,
		defaultAgentID: cfg.DefaultAgentID,
		logger:         cfg.Logger.With("component", "ingestion"),
	}
}

// Ingest normalizes msg into a Canvas Element and invokes the orchestrator,
// per spec §4.6. It is not idempotent on retries — callers that retry must
// deduplicate on MessageID before calling Ingest again.
func (p *Pipeline) Ingest(ctx context.Context, msg Message) (*Result, error) {
	cv, err := p.canvas.GetOrCreateCanvasForChat(ctx, canvas.AccessKeyForChat(msg.ChatID))
	if err != nil {
		return nil, fmt.Errorf("ingestion: resolve canvas: %w", err)
	}

	switch msg.MediaType {
	case MediaVoice:
		return p.ingestVoice(ctx, cv.ID, msg)
	case MediaImage:
		return p.ingestImage(ctx, cv.ID, msg)
	case MediaDocument:
		return p.ingestDocument(ctx, cv.ID, msg)
	default:
		return p.ingestText(ctx, cv.ID, msg)
	}
}

// ingestDocument handles the third media class SPEC_FULL.md §4.7 adds
// beyond spec.md's voice/image/text: arbitrary documents get a placeholder
// extraction note (real chunking lives in the external knowledge base, out
// of scope here) and are stored as a `file` element so fetch_elements can
// see them. Nothing here sends them to the external knowledge base that
// fetch_documents queries.
func (p *Pipeline) ingestDocument(ctx context.Context, canvasID string, msg Message) (*Result, error) {
	tempPath, mimeType, err := p.download(ctx, msg.MediaURL, os.TempDir())
	if err != nil {
		return nil, fmt.Errorf("ingestion: download document: %w", err)
	}

	filename := filepath.Base(tempPath)
	finalPath := filepath.Join("data", "docs", filename)
	if err := moveFile(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("ingestion: move document to final path: %w", err)
	}

	attrs := p.baseAttributes(msg)
	attrs["filename"] = filename
	attrs["file_path"] = finalPath
	attrs["mime_type"] = mimeType
	el := &canvas.Element{
		ID:         uuid.NewString(),
		CanvasID:   canvasID,
		Type:       "file",
		Content:    fmt.Sprintf("Document received: %s (extraction pending external indexing)", filename),
		CreatedBy:  authorTrace(msg),
		Attributes: attrs,
	}
	if _, err := p.canvas.AddElement(ctx, el, ""); err != nil {
		return nil, fmt.Errorf("ingestion: create document element: %w", err)
	}

	reply, err := p.invokeOrchestrator(ctx, msg.ChatID, el.Content)
	if err != nil {
		return nil, err
	}
	return &Result{ElementID: el.ID, Reply: reply}, nil
}

func (p *Pipeline) ingestText(ctx context.Context, canvasID string, msg Message) (*Result, error) {
	el := &canvas.Element{
		ID:         uuid.NewString(),
		CanvasID:   canvasID,
		Type:       "text",
		Content:    msg.Text,
		CreatedBy:  authorTrace(msg),
		Attributes: p.baseAttributes(msg),
	}
	if _, err := p.canvas.AddElement(ctx, el, ""); err != nil {
		return nil, fmt.Errorf("ingestion: create text element: %w", err)
	}

	// Non-voice forwards are passed to the orchestrator, whose instruction
	// dictates silence on them (spec §4.6) — the pipeline itself does not
	// special-case the reply here.
	reply, err := p.invokeOrchestrator(ctx, msg.ChatID, msg.Text)
	if err != nil {
		return nil, err
	}
	return &Result{ElementID: el.ID, Reply: reply}, nil
}

func (p *Pipeline) ingestVoice(ctx context.Context, canvasID string, msg Message) (*Result, error) {
	scratchPath, mimeType, err := p.download(ctx, msg.MediaURL, p.voiceScratchDir())
	if err != nil {
		return nil, fmt.Errorf("ingestion: download voice: %w", err)
	}
	defer os.Remove(scratchPath)

	data, err := os.ReadFile(scratchPath)
	if err != nil {
		return nil, fmt.Errorf("ingestion: read voice scratch file: %w", err)
	}

	transcript, err := p.transcriber.Transcribe(bytes.NewReader(data), mimeType, "")
	if err != nil {
		return nil, fmt.Errorf("ingestion: transcribe: %w", err)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, fmt.Errorf("ingestion: empty transcription")
	}

	attrs := p.baseAttributes(msg)
	attrs["media_path"] = scratchPath
	el := &canvas.Element{
		ID:         uuid.NewString(),
		CanvasID:   canvasID,
		Type:       "voice",
		Content:    transcript,
		CreatedBy:  authorTrace(msg),
		Attributes: attrs,
	}
	if _, err := p.canvas.AddElement(ctx, el, ""); err != nil {
		return nil, fmt.Errorf("ingestion: create voice element: %w", err)
	}

	reply, err := p.invokeOrchestrator(ctx, msg.ChatID, transcript)
	if err != nil {
		return nil, err
	}
	return &Result{ElementID: el.ID, Reply: reply}, nil
}

func (p *Pipeline) ingestImage(ctx context.Context, canvasID string, msg Message) (*Result, error) {
	tempPath, mimeType, err := p.download(ctx, msg.MediaURL, os.TempDir())
	if err != nil {
		return nil, fmt.Errorf("ingestion: download image: %w", err)
	}

	data, err := os.ReadFile(tempPath)
	if err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("ingestion: read image temp file: %w", err)
	}

	description, slug, err := p.describer.Describe(data, mimeType)
	if err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("ingestion: describe image: %w", err)
	}

	elementID := uuid.NewString()
	ext := strings.TrimPrefix(media.GetExtension(tempPath), ".")
	if ext == "" {
		ext = "jpg"
	}
	finalPath := media.ShardedImagePath(p.imagesDir, elementID, slug, ext)
	if err := moveFile(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("ingestion: move image to final path: %w", err)
	}

	attrs := p.baseAttributes(msg)
	attrs["file_path"] = finalPath
	attrs["mime_type"] = mimeType
	el := &canvas.Element{
		ID:         elementID,
		CanvasID:   canvasID,
		Type:       "image",
		Content:    description,
		CreatedBy:  authorTrace(msg),
		Attributes: attrs,
	}
	if _, err := p.canvas.AddElement(ctx, el, ""); err != nil {
		return nil, fmt.Errorf("ingestion: create image element: %w", err)
	}

	reply, err := p.invokeOrchestrator(ctx, msg.ChatID, description)
	if err != nil {
		return nil, err
	}
	return &Result{ElementID: el.ID, Reply: reply}, nil
}

func (p *Pipeline) invokeOrchestrator(ctx context.Context, chatID, userText string) (string, error) {
	reply, err := p.runner.Run(ctx, p.defaultAgentID, chatID, userText)
	if err != nil {
		return "", fmt.Errorf("ingestion: orchestrator turn: %w", err)
	}
	return SafeSend(reply), nil
}

func (p *Pipeline) baseAttributes(msg Message) map[string]any {
	attrs := map[string]any{
		"source":     "chat",
		"source_msg_id": msg.MessageID,
		"author_id":  msg.UserID,
		"author_name": msg.UserName,
	}
	if msg.UserNick != "" {
		attrs["author_nick"] = msg.UserNick
	}
	if msg.ReplyToMessageID != "" {
		attrs["reply_to_message_id"] = msg.ReplyToMessageID
	}
	if msg.IsForward {
		attrs["is_forward"] = 1
	}
	return attrs
}

// authorTrace resolves the human-readable creator trace for an Element,
// preferring a forward's original author over the forwarding user (spec
// §4.6).
func authorTrace(msg Message) string {
	if msg.IsForward && msg.OriginalAuthorName != "" {
		return msg.OriginalAuthorName
	}
	if msg.UserName != "" {
		return msg.UserName
	}
	return msg.UserID
}

func (p *Pipeline) voiceScratchDir() string {
	now := time.Now().UTC()
	return filepath.Join(p.mediaDir, fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", now.Month()), fmt.Sprintf("%02d", now.Day()))
}

// download fetches url into a uniquely named file under dir and returns the
// scratch path plus the MIME type inferred from the URL's extension (spec
// §4.6: "MIME inferred from extension").
func (p *Pipeline) download(ctx context.Context, url, dir string) (path string, mimeType string, err error) {
	if url == "" {
		return "", "", fmt.Errorf("no media URL provided")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create scratch dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	ext := media.GetExtension(url)
	if ext == "" {
		ext = media.ExtensionFromMIME(resp.Header.Get("Content-Type"))
	}
	path = filepath.Join(dir, uuid.NewString()+ext)

	f, err := os.Create(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", "", fmt.Errorf("write scratch file: %w", err)
	}

	mimeType = media.MIMEFromExtension(ext)
	if mimeType == "" {
		mimeType = media.DetectMIME(nil, path, resp.Header.Get("Content-Type"))
	}
	return path, mimeType, nil
}

func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// os.Rename fails across filesystem boundaries; fall back to copy+remove.
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return err
	}
	return os.Remove(src)
}
