// Package history records completed generations in a local SQLite
// database so past prompts, jobs, and output files can be listed later.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver (pure Go, no CGO required)
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Kind distinguishes the recorded generation types.
type Kind string

const (
	KindVideo          Kind = "video"
	KindRemix          Kind = "remix"
	KindImage          Kind = "image"
	KindImageEdit      Kind = "image_edit"
	KindImageVariation Kind = "image_variation"
)

// Record is one stored generation.
type Record struct {
	ID         int64
	Kind       Kind
	RemoteID   string
	Prompt     string
	Model      string
	Status     string
	OutputPath string
	CreatedAt  time.Time
}

// Store persists generation records.
//
// The underlying database runs in WAL mode with a single writer
// connection, which SQLite handles best.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path and
// applies pending schema migrations. The migrations are embedded in the
// binary, so no external files are required.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history: database path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: pinging database: %w", err)
	}

	// Pragmas apply per connection; the pool is capped at one so these
	// stick for the process lifetime.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: setting pragma: %w", err)
		}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// runMigrations applies all pending up migrations from the embedded
// filesystem. No pending migrations is not an error.
func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("history: loading migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("history: creating sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("history: creating migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("history: applying migrations: %w", err)
	}
	return nil
}

// Add inserts a record and returns it with the assigned ID and creation
// time filled in.
func (s *Store) Add(ctx context.Context, rec Record) (*Record, error) {
	if rec.Kind == "" {
		return nil, fmt.Errorf("history: record kind is required")
	}
	if rec.Prompt == "" {
		return nil, fmt.Errorf("history: record prompt is required")
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO generations (kind, remote_id, prompt, model, status, output_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(rec.Kind), rec.RemoteID, rec.Prompt, rec.Model, rec.Status, rec.OutputPath, now,
	)
	if err != nil {
		return nil, fmt.Errorf("history: inserting record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("history: reading insert id: %w", err)
	}

	rec.ID = id
	rec.CreatedAt = now
	return &rec, nil
}

// UpdateStatus sets the status (and optionally the output path) of the
// record tracking a remote job.
func (s *Store) UpdateStatus(ctx context.Context, remoteID, status, outputPath string) error {
	if remoteID == "" {
		return fmt.Errorf("history: remote id is required")
	}

	var err error
	if outputPath != "" {
		_, err = s.db.ExecContext(ctx,
			`UPDATE generations SET status = ?, output_path = ? WHERE remote_id = ?`,
			status, outputPath, remoteID,
		)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE generations SET status = ? WHERE remote_id = ?`,
			status, remoteID,
		)
	}
	if err != nil {
		return fmt.Errorf("history: updating record: %w", err)
	}
	return nil
}

// ListOptions filters and bounds a listing.
type ListOptions struct {
	// Kind restricts the listing to one kind (empty lists all).
	Kind Kind

	// Limit caps the number of rows (default 50).
	Limit int
}

// List returns records newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, kind, remote_id, prompt, model, status, output_path, created_at
	          FROM generations`
	args := []any{}
	if opts.Kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(opts.Kind))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: listing records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var kind string
		if err := rows.Scan(&rec.ID, &kind, &rec.RemoteID, &rec.Prompt, &rec.Model,
			&rec.Status, &rec.OutputPath, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scanning record: %w", err)
		}
		rec.Kind = Kind(kind)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: reading records: %w", err)
	}
	return records, nil
}

// FindByRemoteID returns the record tracking a remote job, or
// sql.ErrNoRows wrapped when none exists.
func (s *Store) FindByRemoteID(ctx context.Context, remoteID string) (*Record, error) {
	if remoteID == "" {
		return nil, fmt.Errorf("history: remote id is required")
	}

	var rec Record
	var kind string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, kind, remote_id, prompt, model, status, output_path, created_at
		 FROM generations WHERE remote_id = ? ORDER BY id DESC LIMIT 1`,
		remoteID,
	).Scan(&rec.ID, &kind, &rec.RemoteID, &rec.Prompt, &rec.Model,
		&rec.Status, &rec.OutputPath, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("history: finding record %s: %w", remoteID, err)
	}
	rec.Kind = Kind(kind)
	return &rec, nil
}
