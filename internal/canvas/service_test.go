package canvas

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServiceAddElementLogsCrossCanvas(t *testing.T) {
	ctx := context.Background()
	svc := NewService(nil, nil)

	c1, err := svc.GetOrCreateCanvasForChat(ctx, "chat:1")
	require.NoError(t, err)
	c2, err := svc.GetOrCreateCanvasForChat(ctx, "chat:2")
	require.NoError(t, err)

	frame, err := svc.CreateFrame(ctx, &Frame{CanvasID: c2.ID, Name: "other"})
	require.NoError(t, err)

	_, err = svc.AddElement(ctx, &Element{CanvasID: c1.ID, Type: "message", Content: "hi"}, frame.ID)
	require.ErrorIs(t, err, ErrCrossCanvas)
}

func TestServiceDeleteFrameCascadesLinks(t *testing.T) {
	ctx := context.Background()
	svc := NewService(nil, nil)

	c, err := svc.GetOrCreateCanvasForChat(ctx, "chat:1")
	require.NoError(t, err)
	frame, err := svc.CreateFrame(ctx, &Frame{CanvasID: c.ID, Name: "plan"})
	require.NoError(t, err)
	el, err := svc.AddElement(ctx, &Element{CanvasID: c.ID, Type: "task", Content: "ship it"}, frame.ID)
	require.NoError(t, err)
	require.Equal(t, []string{frame.ID}, el.FrameIDs)

	require.NoError(t, svc.DeleteFrame(ctx, frame.ID))

	got, err := svc.GetElement(ctx, el.ID)
	require.NoError(t, err)
	require.Empty(t, got.FrameIDs)
}
