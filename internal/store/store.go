// Package store implements the multi-modal content store: per-modality
// ingestion with content-addressed deduplication, similarity search,
// deletion, listing, and the user-facing façade that fans out across
// modalities.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Modality is one of the supported content kinds.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityAudio Modality = "audio"
)

// Item is the atomic stored unit as seen by callers.
type Item struct {
	ID       string         `json:"id"`
	UserID   string         `json:"user_id"`
	Modality Modality       `json:"modality"`
	Content  string         `json:"content,omitempty"`
	URI      string         `json:"uri,omitempty"`
	Metadata map[string]any `json:"metadata"`

	// Degraded marks an item whose metadata references a file that no
	// longer exists on disk. The item is still listed, with no content,
	// rather than failing the whole listing.
	Degraded bool `json:"degraded,omitempty"`
}

// SearchResult is one ranked hit from a similarity query.
type SearchResult struct {
	ID       string         `json:"id"`
	Content  string         `json:"content,omitempty"`
	URI      string         `json:"uri,omitempty"`
	Metadata map[string]any `json:"metadata"`
	Distance float32        `json:"distance"`
}

// ModalityStore is the common contract implemented by the text, image, and
// audio stores. Callers hold this interface, not a concrete store.
//
// The payload handed to Add is modality-encoded: literal text for the text
// store, a base64 data-URI for the image store, and either a filesystem
// path or a data-URI for the audio store.
type ModalityStore interface {
	Modality() Modality
	Add(ctx context.Context, userID, payload string, meta map[string]any) (string, error)
	Search(ctx context.Context, userID, query string, limit int) ([]SearchResult, error)
	Delete(ctx context.Context, userID, id string) error
	List(ctx context.Context, userID string) ([]Item, error)
}

// Sentinel errors.
var (
	// ErrNotFound reports a delete or update referencing an unknown id.
	ErrNotFound = errors.New("store: item not found")

	// ErrUnsupportedType reports a save with an unknown content type.
	// Nothing is stored.
	ErrUnsupportedType = errors.New("store: unsupported content type")
)

// ValidationError reports malformed input, rejected before any side effect.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "store: invalid input: " + e.Reason
}

// Stage identifies which step of ingestion failed.
type Stage string

const (
	StageDecode Stage = "decode"
	StageWrite  Stage = "write"
	StageEmbed  Stage = "embed"
	StageIndex  Stage = "index"
)

// IngestionError reports a failure after validation passed, tagged with the
// failing stage. Ingestion never leaves an orphaned file behind it.
type IngestionError struct {
	Stage Stage
	Err   error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("store: ingestion failed at %s: %v", e.Stage, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

const (
	metaKeyUserID    = "user_id"
	metaKeyTimestamp = "timestamp"
	metaKeyFilePath  = "file_path"
	metaKeyURI       = "uri"
)

// userDir returns (and creates) the per-user folder under base.
func userDir(base, userID string) (string, error) {
	dir := filepath.Join(base, userID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create user folder: %w", err)
	}
	return dir, nil
}

// atomicWrite writes data to path via a temporary file and rename, so a
// crash mid-write never leaves a partial file at the final location.
func atomicWrite(path string, data []byte) error {
	tmp := filepath.Join(filepath.Dir(path), "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// removeIfExists deletes path, tolerating its absence. Reports whether a
// file was actually removed.
func removeIfExists(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// validID reports whether id has the shape of a content hash: 64
// lowercase hex characters. Anything else can never name a stored item
// and must not reach a filesystem path, where separators or glob
// metacharacters could escape the user's partition.
func validID(id string) bool {
	if len(id) != 64 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// findByID locates a stored file for id inside the user folder when the
// index entry that would normally carry the path is gone.
func findByID(base, userID, id string) string {
	if !validID(id) {
		return ""
	}
	matches, err := filepath.Glob(filepath.Join(base, userID, id+".*"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0]
}

// nowTimestamp returns the creation timestamp recorded in item metadata.
func nowTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// metaString fetches a string value from entry metadata.
func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	if s, ok := meta[key].(string); ok {
		return s
	}
	return ""
}
