package canvas

import (
	"context"
	"errors"
	"log/slog"
)

// Service wraps a Store with the higher-level invariants the Canvas Store
// contract requires: frame-ownership checks on linking, idempotent add, and
// structured logging of cross-canvas attempts (spec §7 — logged at WARN as
// a potential tenancy bug, never a panic).
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a canvas Service over the given Store. A nil store
// falls back to an in-memory one, matching the teacher's nil-safe
// constructor convention.
func NewService(store Store, logger *slog.Logger) *Service {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger.With("component", "canvas")}
}

// Store exposes the underlying Store for components (tools, ingestion) that
// need direct access.
func (s *Service) Store() Store {
	if s == nil {
		return nil
	}
	return s.store
}

// GetOrCreateCanvasForChat is the Canvas Store's entry point for every
// inbound chat turn.
func (s *Service) GetOrCreateCanvasForChat(ctx context.Context, accessKey string) (*Canvas, error) {
	if s == nil || s.store == nil {
		return nil, errors.New("canvas service unavailable")
	}
	return s.store.GetOrCreateCanvasForChat(ctx, accessKey)
}

// AddElement validates the frame, if given, belongs to the same canvas
// before delegating to the store; a cross-canvas attempt is logged at WARN
// rather than surfaced as a panic.
func (s *Service) AddElement(ctx context.Context, el *Element, frameID string) (*Element, error) {
	if s == nil || s.store == nil {
		return nil, errors.New("canvas service unavailable")
	}
	canvasID := ""
	if el != nil {
		canvasID = el.CanvasID
	}
	el, err := s.store.AddElement(ctx, el, frameID)
	if errors.Is(err, ErrCrossCanvas) {
		s.logger.Warn("rejected cross-canvas element link", "canvas_id", canvasID, "frame_id", frameID)
	}
	return el, err
}

func (s *Service) GetElement(ctx context.Context, id string) (*Element, error) {
	return s.store.GetElement(ctx, id)
}

func (s *Service) GetElements(ctx context.Context, canvasID string, opts ElementListOptions) ([]*Element, error) {
	return s.store.GetElements(ctx, canvasID, opts)
}

func (s *Service) UpdateElement(ctx context.Context, id string, patch ElementPatch) (*Element, error) {
	return s.store.UpdateElement(ctx, id, patch)
}

func (s *Service) UpdateCanvas(ctx context.Context, id, name string) (*Canvas, error) {
	return s.store.UpdateCanvasName(ctx, id, name)
}

func (s *Service) CreateFrame(ctx context.Context, f *Frame) (*Frame, error) {
	return s.store.CreateFrame(ctx, f)
}

func (s *Service) GetFrame(ctx context.Context, id string) (*Frame, error) {
	return s.store.GetFrame(ctx, id)
}

func (s *Service) GetFrames(ctx context.Context, canvasID string) ([]*Frame, error) {
	return s.store.ListFrames(ctx, canvasID)
}

func (s *Service) UpdateFrame(ctx context.Context, id, name string) (*Frame, error) {
	return s.store.UpdateFrame(ctx, id, name)
}

// DeleteFrame removes a frame and its element links. The store performs the
// link cleanup itself (spec's "cascade is manual, not DB-level", matching
// original_source's CanvasService.delete_frame).
func (s *Service) DeleteFrame(ctx context.Context, id string) error {
	return s.store.DeleteFrame(ctx, id)
}

func (s *Service) AddElementToFrame(ctx context.Context, elementID, frameID string) (bool, error) {
	alreadyLinked, err := s.store.AddElementToFrame(ctx, elementID, frameID)
	if errors.Is(err, ErrCrossCanvas) {
		s.logger.Warn("rejected cross-canvas frame link", "element_id", elementID, "frame_id", frameID)
	}
	return alreadyLinked, err
}

func (s *Service) RemoveElementFromFrame(ctx context.Context, elementID, frameID string) error {
	return s.store.RemoveElementFromFrame(ctx, elementID, frameID)
}
