package canvas

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccessKeyForChatFormat(t *testing.T) {
	require.Equal(t, "telegram:chat:-100123", AccessKeyForChat("-100123"))
}

func TestMemoryStoreGetOrCreateCanvasIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	key := AccessKeyForChat("1")
	c1, err := store.GetOrCreateCanvasForChat(ctx, key)
	require.NoError(t, err)

	c2, err := store.GetOrCreateCanvasForChat(ctx, key)
	require.NoError(t, err)

	require.Equal(t, c1.ID, c2.ID)
	require.True(t, c1.HasAccessRule(key))
}

func TestMemoryStoreAddElementRejectsCrossCanvasFrame(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	c1, err := store.GetOrCreateCanvasForChat(ctx, "chat:1")
	require.NoError(t, err)
	c2, err := store.GetOrCreateCanvasForChat(ctx, "chat:2")
	require.NoError(t, err)

	frame, err := store.CreateFrame(ctx, &Frame{CanvasID: c2.ID, Name: "other"})
	require.NoError(t, err)

	_, err = store.AddElement(ctx, &Element{CanvasID: c1.ID, Type: "message", Content: "hi"}, frame.ID)
	require.ErrorIs(t, err, ErrCrossCanvas)
}

func TestMemoryStoreAddElementRejectsEmptyContent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c, err := store.GetOrCreateCanvasForChat(ctx, "chat:1")
	require.NoError(t, err)

	_, err = store.AddElement(ctx, &Element{CanvasID: c.ID, Type: "message", Content: ""}, "")
	require.ErrorIs(t, err, ErrEmptyContent)
}

func TestMemoryStoreGetElementsNewestFirstAndFiltered(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c, err := store.GetOrCreateCanvasForChat(ctx, "chat:1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := store.AddElement(ctx, &Element{CanvasID: c.ID, Type: "message", Content: "m"}, "")
		require.NoError(t, err)
	}
	_, err = store.AddElement(ctx, &Element{CanvasID: c.ID, Type: "note", Content: "n"}, "")
	require.NoError(t, err)

	messages, err := store.GetElements(ctx, c.ID, ElementListOptions{Type: "message"})
	require.NoError(t, err)
	require.Len(t, messages, 3)

	all, err := store.GetElements(ctx, c.ID, ElementListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	// Newest-first: the last-added note comes first.
	require.Equal(t, "note", all[0].Type)
}

func TestMemoryStoreFrameLinkIdempotentAndCascadeDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	c, err := store.GetOrCreateCanvasForChat(ctx, "chat:1")
	require.NoError(t, err)

	frame, err := store.CreateFrame(ctx, &Frame{CanvasID: c.ID, Name: "plan"})
	require.NoError(t, err)
	el, err := store.AddElement(ctx, &Element{CanvasID: c.ID, Type: "task", Content: "do it"}, "")
	require.NoError(t, err)

	alreadyLinked, err := store.AddElementToFrame(ctx, el.ID, frame.ID)
	require.NoError(t, err)
	require.False(t, alreadyLinked)

	alreadyLinked, err = store.AddElementToFrame(ctx, el.ID, frame.ID)
	require.NoError(t, err)
	require.True(t, alreadyLinked)

	require.NoError(t, store.DeleteFrame(ctx, frame.ID))

	got, err := store.GetElement(ctx, el.ID)
	require.NoError(t, err)
	require.Empty(t, got.FrameIDs)
}
