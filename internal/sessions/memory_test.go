package sessions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riverbend-labs/canvas-agent/pkg/models"
)

func TestMemoryStoreGetOrCreateIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s1, err := store.GetOrCreate(ctx, "telegram:chat:42", "orchestrator")
	require.NoError(t, err)

	s2, err := store.GetOrCreate(ctx, "telegram:chat:42", "orchestrator")
	require.NoError(t, err)

	require.Equal(t, s1.ID, s2.ID)
}

func TestMemoryStoreAppendEventOrdersBySeq(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	sess, err := store.GetOrCreate(ctx, "telegram:chat:7", "orchestrator")
	require.NoError(t, err)

	_, err = store.AppendEvent(ctx, sess.ID, models.ConversationPart{Role: models.RoleUser, Text: "hi"})
	require.NoError(t, err)
	ev2, err := store.AppendEvent(ctx, sess.ID, models.ConversationPart{Role: models.RoleAssistant, Text: "hello"})
	require.NoError(t, err)

	require.Equal(t, int64(2), ev2.Seq)

	events, err := store.GetEvents(ctx, sess.ID, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "hi", events[0].Part.Text)
	require.Equal(t, "hello", events[1].Part.Text)
}

func TestMemoryStoreAppendEventUnknownSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.AppendEvent(ctx, "missing", models.ConversationPart{Role: models.RoleUser, Text: "x"})
	require.ErrorIs(t, err, ErrNotFound)
}
