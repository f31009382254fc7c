package collection

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	_ "modernc.org/sqlite"
)

// Store is the shared SQLite persistence layer for all collections. Each
// entry row is keyed by (collection, id) so one database file holds every
// user's partitions while queries stay scoped to a single collection name.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the collection database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("collection: open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("collection: pragma failed: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS entries (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			document TEXT,
			embedding BLOB NOT NULL,
			metadata TEXT,
			PRIMARY KEY (collection, id)
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("collection: schema creation failed: %w", err)
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, collection string, e Entry) error {
	var metaJSON []byte
	if e.Metadata != nil {
		var err error
		metaJSON, err = json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO entries (collection, id, document, embedding, metadata)
		 VALUES (?, ?, ?, ?, ?)`,
		collection, e.ID, e.Document, encodeFloat32Slice(e.Embedding), metaJSON)
	return err
}

func (s *Store) delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM entries WHERE collection = ? AND id = ?", collection, id)
	return err
}

func (s *Store) load(ctx context.Context, collection string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, document, embedding, metadata FROM entries WHERE collection = ?", collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var doc sql.NullString
		var embBytes []byte
		var metaJSON sql.NullString

		if err := rows.Scan(&e.ID, &doc, &embBytes, &metaJSON); err != nil {
			return nil, err
		}
		e.Document = doc.String
		e.Embedding = decodeFloat32Slice(embBytes)
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("collection %s: corrupt metadata for %s: %w", collection, e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Names returns the distinct collection names present in the store.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT collection FROM entries ORDER BY collection")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// encodeFloat32Slice converts []float32 to little-endian bytes.
func encodeFloat32Slice(f []float32) []byte {
	buf := make([]byte, len(f)*4)
	for i, v := range f {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeFloat32Slice converts bytes back to []float32.
func decodeFloat32Slice(b []byte) []float32 {
	f := make([]float32, len(b)/4)
	for i := range f {
		f[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return f
}
