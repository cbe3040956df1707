// Package store persists the generation manifest: which inputs produced
// which output, the content hash they had, and the dependency files
// discovered while generating them.
package store

import (
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for the manifest.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return errors.Wrap(err, "migrate")
	}
	return nil
}

const schemaDDL = `
-- Generation tables

CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  hash            TEXT NOT NULL,
  config_hash     TEXT NOT NULL,
  output          TEXT NOT NULL,
  generated_at    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS file_inputs (
  file_id         INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
  path            TEXT NOT NULL,
  PRIMARY KEY (file_id, path)
);

CREATE TABLE IF NOT EXISTS file_dependencies (
  file_id         INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
  dependency      TEXT NOT NULL,
  PRIMARY KEY (file_id, dependency)
);

-- Key/value state

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_file_dependencies_dependency ON file_dependencies(dependency);
`

// File is one generated input.
type File struct {
	ID          int64
	Path        string
	Hash        string
	ConfigHash  string
	Output      string
	GeneratedAt time.Time
}

// Generation is the result of generating one input file.
type Generation struct {
	Path       string
	Hash       string
	ConfigHash string
	Output     string
	// Inputs are every file whose contents went into Hash.
	Inputs []string
	// Dependencies are the files scheduled for generation by this one.
	Dependencies []string
}

// --- File operations ---

// RecordGeneration replaces the manifest entry for g.Path.
func (s *Store) RecordGeneration(g Generation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "record generation: begin")
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRow(
		`INSERT INTO files (path, hash, config_hash, output, generated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET hash = excluded.hash, config_hash = excluded.config_hash,
		   output = excluded.output, generated_at = excluded.generated_at
		 RETURNING id`,
		g.Path, g.Hash, g.ConfigHash, g.Output, time.Now().UTC().Truncate(time.Second),
	).Scan(&id)
	if err != nil {
		return errors.Wrapf(err, "upsert file %s", g.Path)
	}

	for _, q := range []string{
		"DELETE FROM file_inputs WHERE file_id = ?",
		"DELETE FROM file_dependencies WHERE file_id = ?",
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return errors.Wrap(err, "clear file relations")
		}
	}
	for _, p := range g.Inputs {
		if _, err := tx.Exec("INSERT OR IGNORE INTO file_inputs (file_id, path) VALUES (?, ?)", id, p); err != nil {
			return errors.Wrap(err, "insert input")
		}
	}
	for _, d := range g.Dependencies {
		if _, err := tx.Exec("INSERT OR IGNORE INTO file_dependencies (file_id, dependency) VALUES (?, ?)", id, d); err != nil {
			return errors.Wrap(err, "insert dependency")
		}
	}
	return tx.Commit()
}

// FileByPath returns the entry for path, or nil when there is none.
func (s *Store) FileByPath(path string) (*File, error) {
	f := &File{}
	err := s.db.QueryRow(
		"SELECT id, path, hash, config_hash, output, generated_at FROM files WHERE path = ?", path,
	).Scan(&f.ID, &f.Path, &f.Hash, &f.ConfigHash, &f.Output, &f.GeneratedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "file by path")
	}
	return f, nil
}

// Files returns every entry ordered by path.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT id, path, hash, config_hash, output, generated_at FROM files ORDER BY path")
	if err != nil {
		return nil, errors.Wrap(err, "files")
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.Path, &f.Hash, &f.ConfigHash, &f.Output, &f.GeneratedAt); err != nil {
			return nil, errors.Wrap(err, "scan file")
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// Inputs returns the recorded input files of an entry in path order.
func (s *Store) Inputs(fileID int64) ([]string, error) {
	return s.column("SELECT path FROM file_inputs WHERE file_id = ? ORDER BY path", fileID)
}

// Dependencies returns the recorded dependency files of an entry in path order.
func (s *Store) Dependencies(fileID int64) ([]string, error) {
	return s.column("SELECT dependency FROM file_dependencies WHERE file_id = ? ORDER BY dependency", fileID)
}

// Dependents returns the paths of entries that scheduled dependency.
func (s *Store) Dependents(dependency string) ([]string, error) {
	return s.column(
		`SELECT f.path FROM file_dependencies d JOIN files f ON f.id = d.file_id
		 WHERE d.dependency = ? ORDER BY f.path`, dependency)
}

func (s *Store) column(query string, args ...any) ([]string, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query")
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "scan")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// --- Metadata operations ---

// GetMetadata returns the value for key, or "" when unset.
func (s *Store) GetMetadata(key string) (string, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "get metadata %s", key)
	}
	return v, nil
}

// SetMetadata stores value under key.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return errors.Wrapf(err, "set metadata %s", key)
	}
	return nil
}
