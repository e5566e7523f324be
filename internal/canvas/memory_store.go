package canvas

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// MemoryStore provides an in-memory Canvas Store for testing and local usage.
type MemoryStore struct {
	mu sync.RWMutex

	canvases       map[string]*Canvas
	canvasByRule   map[string]string // access rule -> canvas id
	frames         map[string]*Frame
	elements       map[string]*Element
	links          map[string]map[string]bool // elementID -> frameID -> true
	createCanvasSF singleflight.Group
}

// NewMemoryStore creates a new in-memory Canvas Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		canvases:     map[string]*Canvas{},
		canvasByRule: map[string]string{},
		frames:       map[string]*Frame{},
		elements:     map[string]*Element{},
		links:        map[string]map[string]bool{},
	}
}

// GetOrCreateCanvasForChat looks up any canvas whose access rules contain
// accessKey; if none exists, it creates one. Concurrent first-access by the
// same key is collapsed onto a single creation via singleflight, giving
// idempotent behavior without a row-level unique-constraint race (spec §8).
func (s *MemoryStore) GetOrCreateCanvasForChat(_ context.Context, accessKey string) (*Canvas, error) {
	v, err, _ := s.createCanvasSF.Do(accessKey, func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if id, ok := s.canvasByRule[accessKey]; ok {
			return cloneCanvas(s.canvases[id]), nil
		}
		now := time.Now()
		c := &Canvas{
			ID:          uuid.NewString(),
			AccessRules: []string{accessKey},
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		s.canvases[c.ID] = cloneCanvas(c)
		s.canvasByRule[accessKey] = c.ID
		return cloneCanvas(c), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Canvas), nil
}

func (s *MemoryStore) GetCanvas(_ context.Context, id string) (*Canvas, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.canvases[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneCanvas(c), nil
}

func (s *MemoryStore) UpdateCanvasName(_ context.Context, id, name string) (*Canvas, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.canvases[id]
	if !ok {
		return nil, ErrNotFound
	}
	c.Name = name
	c.UpdatedAt = time.Now()
	return cloneCanvas(c), nil
}

func (s *MemoryStore) AddElement(_ context.Context, el *Element, frameID string) (*Element, error) {
	if el == nil {
		return nil, ErrNotFound
	}
	if el.Content == "" {
		return nil, ErrEmptyContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.canvases[el.CanvasID]; !ok {
		return nil, ErrNotFound
	}
	if frameID != "" {
		f, ok := s.frames[frameID]
		if !ok {
			return nil, ErrNotFound
		}
		if f.CanvasID != el.CanvasID {
			return nil, ErrCrossCanvas
		}
	}

	now := time.Now()
	if el.ID == "" {
		el.ID = uuid.NewString()
	}
	el.CreatedAt = now
	el.UpdatedAt = now
	stored := cloneElement(el)
	s.elements[stored.ID] = stored

	if frameID != "" {
		s.linkLocked(stored.ID, frameID)
	}

	return s.elementWithLinksLocked(stored.ID), nil
}

func (s *MemoryStore) GetElement(_ context.Context, id string) (*Element, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.elements[id]; !ok {
		return nil, ErrNotFound
	}
	return s.elementWithLinksLocked(id), nil
}

func (s *MemoryStore) GetElements(_ context.Context, canvasID string, opts ElementListOptions) ([]*Element, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var frameMembers map[string]bool
	if opts.FrameID != "" {
		frameMembers = map[string]bool{}
		for elID, frames := range s.links {
			if frames[opts.FrameID] {
				frameMembers[elID] = true
			}
		}
	}

	matches := make([]*Element, 0)
	for _, el := range s.elements {
		if el.CanvasID != canvasID {
			continue
		}
		if opts.Type != "" && el.Type != opts.Type {
			continue
		}
		if !opts.Since.IsZero() && el.CreatedAt.Before(opts.Since) {
			continue
		}
		if frameMembers != nil && !frameMembers[el.ID] {
			continue
		}
		matches = append(matches, s.elementWithLinksLocked(el.ID))
	}

	// Newest first at the store boundary; callers re-sort as needed.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID > matches[j].ID
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(matches) {
			return []*Element{}, nil
		}
		matches = matches[opts.Offset:]
	}
	if opts.Limit > 0 && len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}
	return matches, nil
}

func (s *MemoryStore) UpdateElement(_ context.Context, id string, patch ElementPatch) (*Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.elements[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.Name != nil {
		el.Name = *patch.Name
	}
	if patch.Content != nil {
		if *patch.Content == "" {
			return nil, ErrEmptyContent
		}
		el.Content = *patch.Content
	}
	if patch.Type != nil {
		el.Type = *patch.Type
	}
	if len(patch.AttributesSet) > 0 || len(patch.AttributesRemove) > 0 {
		if el.Attributes == nil {
			el.Attributes = map[string]any{}
		}
		for k, v := range patch.AttributesSet {
			el.Attributes[k] = v
		}
		for _, k := range patch.AttributesRemove {
			delete(el.Attributes, k)
		}
	}
	el.UpdatedAt = time.Now()
	return s.elementWithLinksLocked(id), nil
}

func (s *MemoryStore) CreateFrame(_ context.Context, f *Frame) (*Frame, error) {
	if f == nil {
		return nil, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.canvases[f.CanvasID]; !ok {
		return nil, ErrNotFound
	}
	if f.ParentID != "" {
		parent, ok := s.frames[f.ParentID]
		if !ok {
			return nil, ErrNotFound
		}
		if parent.CanvasID != f.CanvasID {
			return nil, ErrCrossCanvas
		}
	}
	now := time.Now()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.CreatedAt = now
	f.UpdatedAt = now
	s.frames[f.ID] = cloneFrame(f)
	return cloneFrame(f), nil
}

func (s *MemoryStore) GetFrame(_ context.Context, id string) (*Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.frames[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneFrame(f), nil
}

func (s *MemoryStore) ListFrames(_ context.Context, canvasID string) ([]*Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Frame, 0)
	for _, f := range s.frames {
		if f.CanvasID == canvasID {
			out = append(out, cloneFrame(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateFrame(_ context.Context, id, name string) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.frames[id]
	if !ok {
		return nil, ErrNotFound
	}
	f.Name = name
	f.UpdatedAt = time.Now()
	return cloneFrame(f), nil
}

func (s *MemoryStore) DeleteFrame(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.frames[id]; !ok {
		return ErrNotFound
	}
	delete(s.frames, id)
	for elID, frames := range s.links {
		delete(frames, id)
		if len(frames) == 0 {
			delete(s.links, elID)
		}
	}
	return nil
}

func (s *MemoryStore) AddElementToFrame(_ context.Context, elementID, frameID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.elements[elementID]
	if !ok {
		return false, ErrNotFound
	}
	f, ok := s.frames[frameID]
	if !ok {
		return false, ErrNotFound
	}
	if el.CanvasID != f.CanvasID {
		return false, ErrCrossCanvas
	}
	if s.links[elementID][frameID] {
		return true, nil
	}
	s.linkLocked(elementID, frameID)
	return false, nil
}

func (s *MemoryStore) RemoveElementFromFrame(_ context.Context, elementID, frameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.links[elementID] == nil || !s.links[elementID][frameID] {
		return ErrNotFound
	}
	delete(s.links[elementID], frameID)
	if len(s.links[elementID]) == 0 {
		delete(s.links, elementID)
	}
	return nil
}

func (s *MemoryStore) linkLocked(elementID, frameID string) {
	if s.links[elementID] == nil {
		s.links[elementID] = map[string]bool{}
	}
	s.links[elementID][frameID] = true
}

// elementWithLinksLocked returns a clone of the element with FrameIDs
// populated, matching the store's eager-materialisation contract. Caller
// must hold s.mu.
func (s *MemoryStore) elementWithLinksLocked(id string) *Element {
	el := cloneElement(s.elements[id])
	frames := s.links[id]
	if len(frames) == 0 {
		return el
	}
	ids := make([]string, 0, len(frames))
	for fid := range frames {
		ids = append(ids, fid)
	}
	sort.Strings(ids)
	el.FrameIDs = ids
	return el
}

func cloneCanvas(c *Canvas) *Canvas {
	if c == nil {
		return nil
	}
	clone := *c
	clone.AccessRules = append([]string(nil), c.AccessRules...)
	return &clone
}

func cloneFrame(f *Frame) *Frame {
	if f == nil {
		return nil
	}
	clone := *f
	if f.Meta != nil {
		clone.Meta = make(map[string]any, len(f.Meta))
		for k, v := range f.Meta {
			clone.Meta[k] = v
		}
	}
	return &clone
}

func cloneElement(el *Element) *Element {
	if el == nil {
		return nil
	}
	clone := *el
	if el.Attributes != nil {
		clone.Attributes = make(map[string]any, len(el.Attributes))
		for k, v := range el.Attributes {
			clone.Attributes[k] = v
		}
	}
	clone.FrameIDs = append([]string(nil), el.FrameIDs...)
	return &clone
}
