// Package store keeps persisted snapshots in a SQLite archive.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/ttdsnap/wire"
)

var log = commonlog.GetLogger("ttd.store")

// ErrNotFound indicates the requested archive entry doesn't exist.
var ErrNotFound = errors.New("store: snapshot not found")

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created INTEGER NOT NULL,
	format TEXT NOT NULL,
	compressed INTEGER NOT NULL,
	objects INTEGER NOT NULL,
	data BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_name ON snapshots(name, created);
`

// Entry describes one archived snapshot.
type Entry struct {
	ID         uuid.UUID
	Name       string
	Created    time.Time
	Format     wire.Format
	Compressed bool
	Objects    int
	Size       int
}

// Archive is a SQLite-backed snapshot archive.
type Archive struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the archive at path, creating parent directories.
func Open(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	log.Debugf("opened archive %s", path)
	return &Archive{db: db, path: path}, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Put archives an encoded snapshot under name. The encoding is sniffed from
// data, which must be a snapshot written by wire.NewWriter.
func (a *Archive) Put(ctx context.Context, name string, data []byte, objects int) (Entry, error) {
	format, compressed, err := wire.Sniff(data)
	if err != nil {
		return Entry{}, fmt.Errorf("archiving %q: %w", name, err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Entry{}, fmt.Errorf("allocating snapshot id: %w", err)
	}
	e := Entry{
		ID:         id,
		Name:       name,
		Created:    time.Now().UTC(),
		Format:     format,
		Compressed: compressed,
		Objects:    objects,
		Size:       len(data),
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_, err = a.db.ExecContext(ctx,
		"INSERT INTO snapshots (id, name, created, format, compressed, objects, data) VALUES (?, ?, ?, ?, ?, ?, ?)",
		e.ID.String(), e.Name, e.Created.UnixNano(), string(e.Format), e.Compressed, e.Objects, data,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("saving snapshot: %w", err)
	}
	log.Infof("archived %s as %s (%d objects, %d bytes)", name, e.ID, objects, e.Size)
	return e, nil
}

const entryColumns = "id, name, created, format, compressed, objects, length(data)"

type scanner interface {
	Scan(dest ...any) error
}

// scanEntry scans entryColumns, then any extra columns into extra.
func scanEntry(row scanner, extra ...any) (Entry, error) {
	var (
		e       Entry
		id      string
		created int64
		format  string
	)
	dest := append([]any{&id, &e.Name, &created, &format, &e.Compressed, &e.Objects, &e.Size}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Entry{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Entry{}, fmt.Errorf("corrupt snapshot id %q: %w", id, err)
	}
	e.ID = parsed
	e.Created = time.Unix(0, created).UTC()
	e.Format = wire.Format(format)
	return e, nil
}

// List returns every entry, oldest first.
func (a *Archive) List(ctx context.Context) ([]Entry, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT "+entryColumns+" FROM snapshots ORDER BY created, id")
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("listing snapshots: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// resolve turns a reference into an id. A reference is either an entry id
// or a name; a name picks the newest entry with that name.
func (a *Archive) resolve(ctx context.Context, ref string) (string, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return id.String(), nil
	}
	var id string
	err := a.db.QueryRowContext(ctx,
		"SELECT id FROM snapshots WHERE name = ? ORDER BY created DESC, id DESC LIMIT 1", ref,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", ref, err)
	}
	return id, nil
}

// Get returns an entry and its encoded snapshot.
func (a *Archive) Get(ctx context.Context, ref string) (Entry, []byte, error) {
	id, err := a.resolve(ctx, ref)
	if err != nil {
		return Entry{}, nil, err
	}
	row := a.db.QueryRowContext(ctx, "SELECT "+entryColumns+", data FROM snapshots WHERE id = ?", id)

	var data []byte
	e, err := scanEntry(row, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return Entry{}, nil, fmt.Errorf("querying snapshot: %w", err)
	}
	return e, data, nil
}

// Delete removes an entry.
func (a *Archive) Delete(ctx context.Context, ref string) error {
	id, err := a.resolve(ctx, ref)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	res, err := a.db.ExecContext(ctx, "DELETE FROM snapshots WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	log.Infof("deleted %s", id)
	return nil
}
