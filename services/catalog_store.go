package services

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github/itish2003/admissions/rag"
	"github/itish2003/admissions/services/migrations"
)

// storedTimeLayout has a fixed width so stored timestamps sort as text.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteCatalog keeps source records and leads in one sqlite database.
type SQLiteCatalog struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var (
	_ rag.SourceCatalog = (*SQLiteCatalog)(nil)
	_ LeadStore         = (*SQLiteCatalog)(nil)
)

// OpenSQLiteCatalog opens (creating when needed) the database at path and
// applies pending migrations.
func OpenSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening catalog database: %w", err)
	}

	c := &SQLiteCatalog{db: db, path: path, now: time.Now}
	if err := c.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return c, nil
}

func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

func (c *SQLiteCatalog) Path() string {
	return c.path
}

func (c *SQLiteCatalog) migrate(fsys embed.FS) error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	if err := c.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := c.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}
	return nil
}

// ==================== Sources ====================

func (c *SQLiteCatalog) PutSource(ctx context.Context, rec rag.SourceRecord) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO sources (source_id, origin, raw_text, content_hash, chunk_count, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			origin = excluded.origin,
			raw_text = excluded.raw_text,
			content_hash = excluded.content_hash,
			chunk_count = excluded.chunk_count,
			ingested_at = excluded.ingested_at
	`, rec.SourceID, string(rec.Origin), rec.RawText, rec.ContentHash, rec.ChunkCount, rec.IngestedAt.UTC().Format(storedTimeLayout))
	if err != nil {
		return fmt.Errorf("saving source %q: %w", rec.SourceID, err)
	}
	return nil
}

func (c *SQLiteCatalog) GetSource(ctx context.Context, sourceID string) (*rag.SourceRecord, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT source_id, origin, raw_text, content_hash, chunk_count, ingested_at
		FROM sources WHERE source_id = ?
	`, sourceID)
	rec, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rag.ErrSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting source %q: %w", sourceID, err)
	}
	return rec, nil
}

func (c *SQLiteCatalog) ListSources(ctx context.Context) ([]rag.SourceRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT source_id, origin, raw_text, content_hash, chunk_count, ingested_at
		FROM sources ORDER BY source_id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	out := []rag.SourceRecord{}
	for rows.Next() {
		rec, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (c *SQLiteCatalog) DeleteSource(ctx context.Context, sourceID string) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM sources WHERE source_id = ?", sourceID); err != nil {
		return fmt.Errorf("deleting source %q: %w", sourceID, err)
	}
	return nil
}

func (c *SQLiteCatalog) ClearSources(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM sources"); err != nil {
		return fmt.Errorf("clearing sources: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*rag.SourceRecord, error) {
	var (
		rec        rag.SourceRecord
		origin     string
		ingestedAt string
	)
	if err := row.Scan(&rec.SourceID, &origin, &rec.RawText, &rec.ContentHash, &rec.ChunkCount, &ingestedAt); err != nil {
		return nil, err
	}
	rec.Origin = rag.Origin(origin)
	t, err := time.Parse(storedTimeLayout, ingestedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing ingested_at %q: %w", ingestedAt, err)
	}
	rec.IngestedAt = t
	return &rec, nil
}

// ==================== Leads ====================

// SaveLead validates and stores a lead, returning it with its id and
// timestamp filled in.
func (c *SQLiteCatalog) SaveLead(ctx context.Context, lead Lead) (Lead, error) {
	lead, err := NormalizeLead(lead, c.now())
	if err != nil {
		return Lead{}, err
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO leads (id, name, email, topic, created_at) VALUES (?, ?, ?, ?, ?)
	`, lead.ID, lead.Name, lead.Email, lead.Topic, lead.CreatedAt.UTC().Format(storedTimeLayout))
	if err != nil {
		return Lead{}, fmt.Errorf("saving lead: %w", err)
	}
	return lead, nil
}

// ListLeads returns leads oldest first.
func (c *SQLiteCatalog) ListLeads(ctx context.Context) ([]Lead, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, email, topic, created_at FROM leads ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing leads: %w", err)
	}
	defer rows.Close()

	out := []Lead{}
	for rows.Next() {
		var (
			lead      Lead
			createdAt string
		)
		if err := rows.Scan(&lead.ID, &lead.Name, &lead.Email, &lead.Topic, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning lead: %w", err)
		}
		if lead.CreatedAt, err = time.Parse(storedTimeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
		}
		out = append(out, lead)
	}
	return out, rows.Err()
}

func (c *SQLiteCatalog) ClearLeads(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM leads"); err != nil {
		return fmt.Errorf("clearing leads: %w", err)
	}
	return nil
}
