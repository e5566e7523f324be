package canvas

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// SQLStore implements Store over database/sql, supporting both
// Postgres/CockroachDB (lib/pq) and the embedded SQLite backend
// (modernc.org/sqlite) through a placeholder-rewriting helper, following the
// teacher's inline-DDL CockroachStore.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewSQLStore wraps an open *sql.DB and ensures the schema exists.
// driver is "postgres" or "sqlite".
func NewSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("canvas: db is required")
	}
	s := &SQLStore{db: db, driver: driver}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) ph(n int) string {
	if s.driver == "sqlite" {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

func (s *SQLStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS canvases (
			id TEXT PRIMARY KEY,
			name TEXT,
			access_rules TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS canvas_frames (
			id TEXT PRIMARY KEY,
			canvas_id TEXT NOT NULL,
			parent_id TEXT,
			name TEXT,
			meta TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS canvas_elements (
			id TEXT PRIMARY KEY,
			canvas_id TEXT NOT NULL,
			type TEXT NOT NULL,
			name TEXT,
			content TEXT NOT NULL,
			created_by TEXT,
			attributes TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS canvas_element_frame_links (
			element_id TEXT NOT NULL,
			frame_id TEXT NOT NULL,
			PRIMARY KEY (element_id, frame_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// GetOrCreateCanvasForChat scans for a canvas containing accessKey in its
// access_rules column (JSON array, read back and matched in Go with
// HasAccessRule over every canvases row), matching the original
// service's documented-as-inefficient but correct linear scan; a dedicated
// lookup table would remove the scan but the spec leaves this MVP behavior
// in place (see original_source/ai_core/services/canvas_service.py).
func (s *SQLStore) GetOrCreateCanvasForChat(ctx context.Context, accessKey string) (*Canvas, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, access_rules, created_at, updated_at FROM canvases`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		c, scanErr := scanCanvas(rows)
		if scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		if c.HasAccessRule(accessKey) {
			rows.Close()
			return c, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	now := time.Now().UTC()
	c := &Canvas{ID: uuid.NewString(), AccessRules: []string{accessKey}, CreatedAt: now, UpdatedAt: now}
	rulesJSON, _ := json.Marshal(c.AccessRules)
	_, err = s.db.ExecContext(ctx, `INSERT INTO canvases (id, name, access_rules, created_at, updated_at)
		VALUES (`+s.ph(1)+`,`+s.ph(2)+`,`+s.ph(3)+`,`+s.ph(4)+`,`+s.ph(5)+`)`,
		c.ID, c.Name, string(rulesJSON), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return s.GetOrCreateCanvasForChat(ctx, accessKey)
		}
		return nil, err
	}
	return c, nil
}

func scanCanvas(rows *sql.Rows) (*Canvas, error) {
	var c Canvas
	var name sql.NullString
	var rulesJSON string
	if err := rows.Scan(&c.ID, &name, &rulesJSON, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Name = name.String
	if rulesJSON != "" {
		if err := json.Unmarshal([]byte(rulesJSON), &c.AccessRules); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func (s *SQLStore) GetCanvas(ctx context.Context, id string) (*Canvas, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, access_rules, created_at, updated_at FROM canvases WHERE id = `+s.ph(1), id)
	var c Canvas
	var name sql.NullString
	var rulesJSON string
	if err := row.Scan(&c.ID, &name, &rulesJSON, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Name = name.String
	if rulesJSON != "" {
		_ = json.Unmarshal([]byte(rulesJSON), &c.AccessRules)
	}
	return &c, nil
}

func (s *SQLStore) UpdateCanvasName(ctx context.Context, id, name string) (*Canvas, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `UPDATE canvases SET name = `+s.ph(1)+`, updated_at = `+s.ph(2)+` WHERE id = `+s.ph(3), name, now, id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetCanvas(ctx, id)
}

func (s *SQLStore) AddElement(ctx context.Context, el *Element, frameID string) (*Element, error) {
	if el == nil {
		return nil, ErrNotFound
	}
	if el.Content == "" {
		return nil, ErrEmptyContent
	}
	if _, err := s.GetCanvas(ctx, el.CanvasID); err != nil {
		return nil, err
	}
	if frameID != "" {
		frame, err := s.GetFrame(ctx, frameID)
		if err != nil {
			return nil, err
		}
		if frame.CanvasID != el.CanvasID {
			return nil, ErrCrossCanvas
		}
	}

	now := time.Now().UTC()
	if el.ID == "" {
		el.ID = uuid.NewString()
	}
	el.CreatedAt = now
	el.UpdatedAt = now
	attrsJSON, err := json.Marshal(el.Attributes)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO canvas_elements (id, canvas_id, type, name, content, created_by, attributes, created_at, updated_at)
		VALUES (`+s.ph(1)+`,`+s.ph(2)+`,`+s.ph(3)+`,`+s.ph(4)+`,`+s.ph(5)+`,`+s.ph(6)+`,`+s.ph(7)+`,`+s.ph(8)+`,`+s.ph(9)+`)`,
		el.ID, el.CanvasID, el.Type, el.Name, el.Content, el.CreatedBy, string(attrsJSON), el.CreatedAt, el.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if frameID != "" {
		if _, err := s.db.ExecContext(ctx, `INSERT INTO canvas_element_frame_links (element_id, frame_id) VALUES (`+s.ph(1)+`,`+s.ph(2)+`)`, el.ID, frameID); err != nil {
			return nil, err
		}
	}
	return s.GetElement(ctx, el.ID)
}

func (s *SQLStore) GetElement(ctx context.Context, id string) (*Element, error) {
	el, err := s.scanElement(s.db.QueryRowContext(ctx, `SELECT id, canvas_id, type, name, content, created_by, attributes, created_at, updated_at
		FROM canvas_elements WHERE id = `+s.ph(1), id))
	if err != nil {
		return nil, err
	}
	frameIDs, err := s.frameIDsForElement(ctx, id)
	if err != nil {
		return nil, err
	}
	el.FrameIDs = frameIDs
	return el, nil
}

func (s *SQLStore) scanElement(row *sql.Row) (*Element, error) {
	var el Element
	var name, createdBy, attrsJSON sql.NullString
	if err := row.Scan(&el.ID, &el.CanvasID, &el.Type, &name, &el.Content, &createdBy, &attrsJSON, &el.CreatedAt, &el.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	el.Name = name.String
	el.CreatedBy = createdBy.String
	if attrsJSON.Valid && attrsJSON.String != "" && attrsJSON.String != "null" {
		if err := json.Unmarshal([]byte(attrsJSON.String), &el.Attributes); err != nil {
			return nil, err
		}
	}
	return &el, nil
}

func (s *SQLStore) frameIDsForElement(ctx context.Context, elementID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT frame_id FROM canvas_element_frame_links WHERE element_id = `+s.ph(1), elementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLStore) GetElements(ctx context.Context, canvasID string, opts ElementListOptions) ([]*Element, error) {
	query := `SELECT id, canvas_id, type, name, content, created_by, attributes, created_at, updated_at FROM canvas_elements WHERE canvas_id = ` + s.ph(1)
	args := []any{canvasID}
	if opts.Type != "" {
		args = append(args, opts.Type)
		query += fmt.Sprintf(" AND type = %s", s.ph(len(args)))
	}
	if !opts.Since.IsZero() {
		args = append(args, opts.Since)
		query += fmt.Sprintf(" AND created_at >= %s", s.ph(len(args)))
	}
	if opts.FrameID != "" {
		args = append(args, opts.FrameID)
		query += fmt.Sprintf(" AND id IN (SELECT element_id FROM canvas_element_frame_links WHERE frame_id = %s)", s.ph(len(args)))
	}
	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Element
	for rows.Next() {
		var el Element
		var name, createdBy, attrsJSON sql.NullString
		if err := rows.Scan(&el.ID, &el.CanvasID, &el.Type, &name, &el.Content, &createdBy, &attrsJSON, &el.CreatedAt, &el.UpdatedAt); err != nil {
			return nil, err
		}
		el.Name = name.String
		el.CreatedBy = createdBy.String
		if attrsJSON.Valid && attrsJSON.String != "" && attrsJSON.String != "null" {
			_ = json.Unmarshal([]byte(attrsJSON.String), &el.Attributes)
		}
		out = append(out, &el)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateElement(ctx context.Context, id string, patch ElementPatch) (*Element, error) {
	existing, err := s.GetElement(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		existing.Name = *patch.Name
	}
	if patch.Content != nil {
		if *patch.Content == "" {
			return nil, ErrEmptyContent
		}
		existing.Content = *patch.Content
	}
	if patch.Type != nil {
		existing.Type = *patch.Type
	}
	if len(patch.AttributesSet) > 0 || len(patch.AttributesRemove) > 0 {
		if existing.Attributes == nil {
			existing.Attributes = map[string]any{}
		}
		for k, v := range patch.AttributesSet {
			existing.Attributes[k] = v
		}
		for _, k := range patch.AttributesRemove {
			delete(existing.Attributes, k)
		}
	}
	now := time.Now().UTC()
	attrsJSON, err := json.Marshal(existing.Attributes)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE canvas_elements SET type = `+s.ph(1)+`, name = `+s.ph(2)+`, content = `+s.ph(3)+`, attributes = `+s.ph(4)+`, updated_at = `+s.ph(5)+` WHERE id = `+s.ph(6),
		existing.Type, existing.Name, existing.Content, string(attrsJSON), now, id)
	if err != nil {
		return nil, err
	}
	return s.GetElement(ctx, id)
}

func (s *SQLStore) CreateFrame(ctx context.Context, f *Frame) (*Frame, error) {
	if f == nil {
		return nil, ErrNotFound
	}
	if _, err := s.GetCanvas(ctx, f.CanvasID); err != nil {
		return nil, err
	}
	if f.ParentID != "" {
		parent, err := s.GetFrame(ctx, f.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.CanvasID != f.CanvasID {
			return nil, ErrCrossCanvas
		}
	}
	now := time.Now().UTC()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.CreatedAt = now
	f.UpdatedAt = now
	metaJSON, err := json.Marshal(f.Meta)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO canvas_frames (id, canvas_id, parent_id, name, meta, created_at, updated_at)
		VALUES (`+s.ph(1)+`,`+s.ph(2)+`,`+s.ph(3)+`,`+s.ph(4)+`,`+s.ph(5)+`,`+s.ph(6)+`,`+s.ph(7)+`)`,
		f.ID, f.CanvasID, nullString(f.ParentID), f.Name, string(metaJSON), f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s.GetFrame(ctx, f.ID)
}

func (s *SQLStore) GetFrame(ctx context.Context, id string) (*Frame, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, canvas_id, parent_id, name, meta, created_at, updated_at FROM canvas_frames WHERE id = `+s.ph(1), id)
	var f Frame
	var parentID, name, metaJSON sql.NullString
	if err := row.Scan(&f.ID, &f.CanvasID, &parentID, &name, &metaJSON, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	f.ParentID = parentID.String
	f.Name = name.String
	if metaJSON.Valid && metaJSON.String != "" && metaJSON.String != "null" {
		_ = json.Unmarshal([]byte(metaJSON.String), &f.Meta)
	}
	return &f, nil
}

func (s *SQLStore) ListFrames(ctx context.Context, canvasID string) ([]*Frame, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, canvas_id, parent_id, name, meta, created_at, updated_at
		FROM canvas_frames WHERE canvas_id = `+s.ph(1)+` ORDER BY created_at ASC`, canvasID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Frame
	for rows.Next() {
		var f Frame
		var parentID, name, metaJSON sql.NullString
		if err := rows.Scan(&f.ID, &f.CanvasID, &parentID, &name, &metaJSON, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		f.ParentID = parentID.String
		f.Name = name.String
		if metaJSON.Valid && metaJSON.String != "" && metaJSON.String != "null" {
			_ = json.Unmarshal([]byte(metaJSON.String), &f.Meta)
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateFrame(ctx context.Context, id, name string) (*Frame, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `UPDATE canvas_frames SET name = `+s.ph(1)+`, updated_at = `+s.ph(2)+` WHERE id = `+s.ph(3), name, now, id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetFrame(ctx, id)
}

// DeleteFrame removes links first, then the frame row — the cascade is
// performed in application code, not via a DB foreign key, matching
// original_source's delete_frame.
func (s *SQLStore) DeleteFrame(ctx context.Context, id string) error {
	if _, err := s.GetFrame(ctx, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM canvas_element_frame_links WHERE frame_id = `+s.ph(1), id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM canvas_frames WHERE id = `+s.ph(1), id)
	return err
}

func (s *SQLStore) AddElementToFrame(ctx context.Context, elementID, frameID string) (bool, error) {
	el, err := s.GetElement(ctx, elementID)
	if err != nil {
		return false, err
	}
	frame, err := s.GetFrame(ctx, frameID)
	if err != nil {
		return false, err
	}
	if el.CanvasID != frame.CanvasID {
		return false, ErrCrossCanvas
	}
	for _, id := range el.FrameIDs {
		if id == frameID {
			return true, nil
		}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO canvas_element_frame_links (element_id, frame_id) VALUES (`+s.ph(1)+`,`+s.ph(2)+`)`, elementID, frameID)
	if err != nil {
		if isUniqueViolation(err) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

func (s *SQLStore) RemoveElementFromFrame(ctx context.Context, elementID, frameID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM canvas_element_frame_links WHERE element_id = `+s.ph(1)+` AND frame_id = `+s.ph(2), elementID, frameID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique") || strings.Contains(strings.ToLower(err.Error()), "duplicate")
}
