package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agentoven/promptplane/pkg/models"

	// Register modernc SQLite driver with database/sql.
	_ "modernc.org/sqlite"
)

// SQLiteTemplateStore implements TemplateMetaStore on a SQLite database.
type SQLiteTemplateStore struct{ db *sql.DB }

// OpenSQLite opens (creating if needed) the database at path and applies the
// template metadata migrations. ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteTemplateStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	if path == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: busy timeout: %w", err)
	}
	if err := runMigrations(ctx, db, "sqlite3", "sqlite"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return &SQLiteTemplateStore{db: db}, nil
}

const templateColumns = `id, code, interaction_code, name, description, bucket, object_key, version, is_active, created_at, updated_at, created_by, updated_by`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*models.TemplateMetadata, error) {
	var (
		t                    models.TemplateMetadata
		active               int
		createdAt, updatedAt string
	)
	if err := row.Scan(&t.ID, &t.Code, &t.InteractionCode, &t.Name, &t.Description,
		&t.Location.Bucket, &t.Location.Key, &t.Version, &active,
		&createdAt, &updatedAt, &t.CreatedBy, &t.UpdatedBy); err != nil {
		return nil, err
	}
	t.IsActive = active != 0
	var err error
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &t, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteTemplateStore) getOne(ctx context.Context, where string, arg string) (*models.TemplateMetadata, error) {
	q := `SELECT ` + templateColumns + ` FROM template_metadata WHERE ` + where + ` = ?`
	t, err := scanTemplate(s.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &ErrNotFound{Entity: "template", Key: arg}
		}
		return nil, fmt.Errorf("sqlite: get template: %w", err)
	}
	return t, nil
}

func (s *SQLiteTemplateStore) GetTemplate(ctx context.Context, id string) (*models.TemplateMetadata, error) {
	return s.getOne(ctx, "id", id)
}

func (s *SQLiteTemplateStore) GetTemplateByCode(ctx context.Context, code string) (*models.TemplateMetadata, error) {
	return s.getOne(ctx, "code", code)
}

func (s *SQLiteTemplateStore) list(ctx context.Context, q string, args ...any) ([]models.TemplateMetadata, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list templates: %w", err)
	}
	defer rows.Close()
	out := []models.TemplateMetadata{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan template: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter templates: %w", err)
	}
	return out, nil
}

func (s *SQLiteTemplateStore) ListTemplatesByInteraction(ctx context.Context, interactionCode string) ([]models.TemplateMetadata, error) {
	q := `SELECT ` + templateColumns + ` FROM template_metadata WHERE interaction_code = ? ORDER BY code`
	return s.list(ctx, q, interactionCode)
}

func (s *SQLiteTemplateStore) ListTemplates(ctx context.Context, filter ListFilter) ([]models.TemplateMetadata, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	q := `SELECT ` + templateColumns + ` FROM template_metadata ORDER BY code LIMIT ? OFFSET ?`
	return s.list(ctx, q, limit, filter.Offset)
}

func (s *SQLiteTemplateStore) CreateTemplate(ctx context.Context, t *models.TemplateMetadata) error {
	const q = `INSERT INTO template_metadata (` + templateColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, t.ID, t.Code, t.InteractionCode, t.Name, t.Description,
		t.Location.Bucket, t.Location.Key, t.Version, boolInt(t.IsActive),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt), t.CreatedBy, t.UpdatedBy)
	if isUniqueViolation(err) {
		key := t.ID
		if strings.Contains(err.Error(), "template_metadata.code") {
			key = t.Code
		}
		return &ErrAlreadyExists{Entity: "template", Key: key}
	}
	if err != nil {
		return fmt.Errorf("sqlite: create template: %w", err)
	}
	return nil
}

func (s *SQLiteTemplateStore) UpdateTemplate(ctx context.Context, t *models.TemplateMetadata) error {
	const q = `UPDATE template_metadata SET code = ?, interaction_code = ?, name = ?, description = ?,
		bucket = ?, object_key = ?, version = ?, is_active = ?, updated_at = ?, updated_by = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, t.Code, t.InteractionCode, t.Name, t.Description,
		t.Location.Bucket, t.Location.Key, t.Version, boolInt(t.IsActive),
		formatTime(t.UpdatedAt), t.UpdatedBy, t.ID)
	if isUniqueViolation(err) {
		return &ErrAlreadyExists{Entity: "template", Key: t.Code}
	}
	if err != nil {
		return fmt.Errorf("sqlite: update template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ErrNotFound{Entity: "template", Key: t.ID}
	}
	return nil
}

func (s *SQLiteTemplateStore) DeleteTemplate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM template_metadata WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ErrNotFound{Entity: "template", Key: id}
	}
	return nil
}

func (s *SQLiteTemplateStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteTemplateStore) Close() error { return s.db.Close() }

var _ TemplateMetaStore = (*SQLiteTemplateStore)(nil)
