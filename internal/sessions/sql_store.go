package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/riverbend-labs/canvas-agent/pkg/models"
)

// SQLStore implements Store over database/sql. It works against either
// Postgres/CockroachDB (lib/pq, "$N" placeholders) or the embedded SQLite
// backend (modernc.org/sqlite, "?" placeholders); placeholder holds the
// driver-specific query rewriter.
type SQLStore struct {
	db          *sql.DB
	placeholder func(n int) string
}

// NewSQLStore wraps an already-open *sql.DB. driver is "postgres" or
// "sqlite"; schema is created with IF NOT EXISTS so this is safe to call on
// every startup (spec §9's inline-DDL convention, following the teacher's
// cockroach store).
func NewSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("sessions: db is required")
	}
	s := &SQLStore{db: db}
	switch driver {
	case "postgres":
		s.placeholder = pqPlaceholder
	case "sqlite":
		s.placeholder = questionPlaceholder
	default:
		return nil, errors.New("sessions: unknown driver " + driver)
	}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func pqPlaceholder(n int) string      { return "$" + itoa(n) }
func questionPlaceholder(int) string  { return "?" }
func itoa(n int) string {
	digits := []byte{}
	if n == 0 {
		return "0"
	}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func (s *SQLStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			session_key TEXT NOT NULL UNIQUE,
			agent_id TEXT NOT NULL,
			canvas_id TEXT,
			metadata TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS session_events (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			seq BIGINT NOT NULL,
			part TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS session_locks (
			session_id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			acquired_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) GetOrCreate(ctx context.Context, key, agentID string) (*models.Session, error) {
	existing, err := s.GetByKey(ctx, key)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	sess := &models.Session{
		ID:        uuid.NewString(),
		Key:       key,
		AgentID:   agentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q := `INSERT INTO sessions (id, session_key, agent_id, created_at, updated_at)
		VALUES (` + s.placeholder(1) + `,` + s.placeholder(2) + `,` + s.placeholder(3) + `,` + s.placeholder(4) + `,` + s.placeholder(5) + `)
		ON CONFLICT (session_key) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, q, sess.ID, sess.Key, sess.AgentID, sess.CreatedAt, sess.UpdatedAt); err != nil {
		return nil, err
	}
	// Lost the creation race to a concurrent caller; read back the winner.
	return s.GetByKey(ctx, key)
}

func (s *SQLStore) Get(ctx context.Context, id string) (*models.Session, error) {
	return s.scanOne(ctx, `SELECT id, session_key, agent_id, canvas_id, metadata, created_at, updated_at
		FROM sessions WHERE id = `+s.placeholder(1), id)
}

func (s *SQLStore) GetByKey(ctx context.Context, key string) (*models.Session, error) {
	return s.scanOne(ctx, `SELECT id, session_key, agent_id, canvas_id, metadata, created_at, updated_at
		FROM sessions WHERE session_key = `+s.placeholder(1), key)
}

func (s *SQLStore) scanOne(ctx context.Context, query string, arg any) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, query, arg)
	var sess models.Session
	var canvasID sql.NullString
	var metadataJSON sql.NullString
	if err := row.Scan(&sess.ID, &sess.Key, &sess.AgentID, &canvasID, &metadataJSON, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	sess.CanvasID = canvasID.String
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &sess.Metadata); err != nil {
			return nil, err
		}
	}
	return &sess, nil
}

func (s *SQLStore) List(ctx context.Context, agentID string, opts ListOptions) ([]*models.Session, error) {
	query := `SELECT id, session_key, agent_id, canvas_id, metadata, created_at, updated_at FROM sessions`
	var args []any
	if agentID != "" {
		query += ` WHERE agent_id = ` + s.placeholder(1)
		args = append(args, agentID)
	}
	query += ` ORDER BY created_at DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ` + itoa(opts.Limit)
	}
	if opts.Offset > 0 {
		query += ` OFFSET ` + itoa(opts.Offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*models.Session, 0)
	for rows.Next() {
		var sess models.Session
		var canvasID, metadataJSON sql.NullString
		if err := rows.Scan(&sess.ID, &sess.Key, &sess.AgentID, &canvasID, &metadataJSON, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, err
		}
		sess.CanvasID = canvasID.String
		out = append(out, &sess)
	}
	return out, rows.Err()
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = `+s.placeholder(1), id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	_, _ = s.db.ExecContext(ctx, `DELETE FROM session_events WHERE session_id = `+s.placeholder(1), id)
	return nil
}

// AppendEvent reads MAX(seq) and inserts the next event in one transaction.
// It takes no row lock and session_events has no unique constraint on
// (session_id, seq), so ordering of concurrent appends to one session rests
// on the in-process SessionLocker.
func (s *SQLStore) AppendEvent(ctx context.Context, sessionID string, part models.ConversationPart) (*models.SessionEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var maxSeq sql.NullInt64
	row := tx.QueryRowContext(ctx, `SELECT MAX(seq) FROM session_events WHERE session_id = `+s.placeholder(1), sessionID)
	if err := row.Scan(&maxSeq); err != nil {
		return nil, err
	}
	partJSON, err := json.Marshal(part)
	if err != nil {
		return nil, err
	}
	ev := &models.SessionEvent{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Seq:       maxSeq.Int64 + 1,
		Part:      part,
		CreatedAt: time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO session_events (id, session_id, seq, part, created_at)
		VALUES (`+s.placeholder(1)+`,`+s.placeholder(2)+`,`+s.placeholder(3)+`,`+s.placeholder(4)+`,`+s.placeholder(5)+`)`,
		ev.ID, ev.SessionID, ev.Seq, string(partJSON), ev.CreatedAt)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = `+s.placeholder(1)+` WHERE id = `+s.placeholder(2), ev.CreatedAt, sessionID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *SQLStore) GetEvents(ctx context.Context, sessionID string, limit int) ([]*models.SessionEvent, error) {
	query := `SELECT id, session_id, seq, part, created_at FROM session_events
		WHERE session_id = ` + s.placeholder(1) + ` ORDER BY seq ASC`
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []*models.SessionEvent
	for rows.Next() {
		var ev models.SessionEvent
		var partJSON string
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Seq, &partJSON, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(partJSON), &ev.Part); err != nil {
			return nil, err
		}
		all = append(all, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (s *SQLStore) TruncateEvents(ctx context.Context, sessionID string, keep int) (int, error) {
	if keep < 0 {
		return 0, nil
	}
	var total int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_events WHERE session_id = `+s.placeholder(1), sessionID)
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	if total <= keep {
		return 0, nil
	}
	var cutoffSeq int64
	row = s.db.QueryRowContext(ctx, `SELECT seq FROM session_events WHERE session_id = `+s.placeholder(1)+`
		ORDER BY seq DESC LIMIT 1 OFFSET `+itoa(keep), sessionID)
	if err := row.Scan(&cutoffSeq); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM session_events WHERE session_id = `+s.placeholder(1)+` AND seq <= `+s.placeholder(2),
		sessionID, cutoffSeq)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLStore) Touch(ctx context.Context, sessionID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET updated_at = `+s.placeholder(1)+` WHERE id = `+s.placeholder(2), at, sessionID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
