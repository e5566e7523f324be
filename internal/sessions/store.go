// Package sessions implements the Session Service: per-chat conversational
// state as an append-only event log, created idempotently and guarded by a
// single-writer-per-session lock (spec §5 — parallel across sessions,
// cooperative within one).
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/riverbend-labs/canvas-agent/pkg/models"
)

var (
	// ErrNotFound is returned when a session id/key has no matching row.
	ErrNotFound = errors.New("sessions: not found")
)

// ListOptions configures Store.List.
type ListOptions struct {
	Limit  int
	Offset int
}

// Store persists Sessions and their event logs.
type Store interface {
	GetOrCreate(ctx context.Context, key, agentID string) (*models.Session, error)
	Get(ctx context.Context, id string) (*models.Session, error)
	GetByKey(ctx context.Context, key string) (*models.Session, error)
	List(ctx context.Context, agentID string, opts ListOptions) ([]*models.Session, error)
	Delete(ctx context.Context, id string) error

	// AppendEvent atomically appends one event to the session's log and
	// advances its sequence counter. Events are never mutated; they are
	// removed only by TruncateEvents and Delete.
	AppendEvent(ctx context.Context, sessionID string, part models.ConversationPart) (*models.SessionEvent, error)
	GetEvents(ctx context.Context, sessionID string, limit int) ([]*models.SessionEvent, error)

	// TruncateEvents drops all but the most recent keep events for a
	// session. Returns the number of events removed.
	TruncateEvents(ctx context.Context, sessionID string, keep int) (int, error)

	// Touch refreshes UpdatedAt without appending an event. The retention
	// sweep does not call it.
	Touch(ctx context.Context, sessionID string, at time.Time) error
}

// Key builds the stable lookup key for a session from the tenancy access
// key used by the Canvas Store — one session per chat, matching spec §3's
// "Session" entity being keyed the same way as a Canvas.
func Key(accessKey string) string {
	return accessKey
}
