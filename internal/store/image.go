package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"orbit/internal/collection"
	"orbit/internal/contenthash"
	"orbit/internal/embedding"
	"orbit/internal/metadata"
)

// Compile-time interface check.
var _ ModalityStore = (*ImageStore)(nil)

// ImageStore persists images per user. Ingestion accepts a self-describing
// base64 data-URI; the MIME subtype selects the stored file extension and
// the id is the hash of the decoded image bytes.
type ImageStore struct {
	baseDir  string
	registry *collection.Registry
	provider embedding.Provider
}

// NewImageStore creates an image store rooted at baseDir.
func NewImageStore(baseDir string, registry *collection.Registry, provider embedding.Provider) *ImageStore {
	return &ImageStore{baseDir: baseDir, registry: registry, provider: provider}
}

func (s *ImageStore) Modality() Modality { return ModalityImage }

// parseDataURI splits a "data:<mime>;base64,<payload>" string into raw
// bytes and a file extension. Malformed payloads are rejected before any
// write happens.
func parseDataURI(payload string) ([]byte, string, error) {
	if !strings.HasPrefix(payload, "data:") {
		return nil, "", &ValidationError{Reason: "payload is not a data URI"}
	}

	comma := strings.Index(payload, ",")
	if comma < 0 {
		return nil, "", &ValidationError{Reason: "data URI has no comma separator"}
	}

	header := payload[len("data:"):comma]
	mimeType, _, _ := strings.Cut(header, ";")
	if !strings.Contains(header, "base64") {
		return nil, "", &ValidationError{Reason: "data URI is not base64 encoded"}
	}

	_, subtype, ok := strings.Cut(mimeType, "/")
	if !ok || subtype == "" {
		return nil, "", &ValidationError{Reason: "data URI has no MIME subtype"}
	}
	// "svg+xml" and friends store under their base subtype.
	subtype, _, _ = strings.Cut(subtype, "+")

	raw, err := base64.StdEncoding.DecodeString(payload[comma+1:])
	if err != nil {
		return nil, "", &ValidationError{Reason: "data URI payload is not valid base64"}
	}
	if len(raw) == 0 {
		return nil, "", &ValidationError{Reason: "data URI payload is empty"}
	}

	return raw, subtype, nil
}

// Add stores an image from a data-URI payload, returning its
// content-addressed id. Byte-identical images deduplicate to one file and
// one index entry; the second call replaces the stored metadata.
func (s *ImageStore) Add(ctx context.Context, userID, payload string, meta map[string]any) (string, error) {
	if userID == "" {
		return "", &ValidationError{Reason: "user_id is required"}
	}

	raw, ext, err := parseDataURI(payload)
	if err != nil {
		return "", err
	}

	id := contenthash.Sum(raw)

	coll, err := s.registry.GetOrCreate(ctx, userID, string(ModalityImage))
	if err != nil {
		return "", &IngestionError{Stage: StageIndex, Err: err}
	}

	dir, err := userDir(s.baseDir, userID)
	if err != nil {
		return "", &IngestionError{Stage: StageWrite, Err: err}
	}
	dest := filepath.Join(dir, id+"."+ext)

	merged := make(map[string]any, len(meta)+3)
	for k, v := range meta {
		merged[k] = v
	}
	merged[metaKeyUserID] = userID
	merged[metaKeyTimestamp] = nowTimestamp()
	merged[metaKeyURI] = dest
	sanitized := metadata.Sanitize(merged)

	if existing, getErr := coll.Get(id); getErr == nil {
		existing.Metadata = sanitized
		if err := coll.Upsert(ctx, existing); err != nil {
			return "", &IngestionError{Stage: StageIndex, Err: err}
		}
		return id, nil
	}

	wrote := false
	if _, statErr := os.Stat(dest); os.IsNotExist(statErr) {
		if err := atomicWrite(dest, raw); err != nil {
			return "", &IngestionError{Stage: StageWrite, Err: err}
		}
		wrote = true
	}

	vec, err := s.provider.EmbedContent(ctx, raw)
	if err != nil {
		s.discard(wrote, dest)
		return "", &IngestionError{Stage: StageEmbed, Err: err}
	}

	err = coll.Upsert(ctx, collection.Entry{
		ID:        id,
		Document:  dest,
		Embedding: vec,
		Metadata:  sanitized,
	})
	if err != nil {
		s.discard(wrote, dest)
		return "", &IngestionError{Stage: StageIndex, Err: err}
	}

	return id, nil
}

func (s *ImageStore) discard(wrote bool, path string) {
	if !wrote {
		return
	}
	if _, err := removeIfExists(path); err != nil {
		log.Printf("store: cleanup of %s failed: %v", path, err)
	}
}

// Search embeds the text query into the image space and returns up to
// limit items ranked by ascending distance.
func (s *ImageStore) Search(ctx context.Context, userID, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}

	coll, err := s.registry.GetOrCreate(ctx, userID, string(ModalityImage))
	if err != nil {
		return nil, fmt.Errorf("store: image search: %w", err)
	}

	vec, err := s.provider.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: image search: %w", err)
	}

	results, err := coll.Query(vec, limit)
	if err != nil {
		return nil, fmt.Errorf("store: image search: %w", err)
	}
	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			ID:       r.ID,
			URI:      r.Document,
			Metadata: r.Metadata,
			Distance: r.Distance,
		}
	}
	return out, nil
}

// Delete removes the image file and the index entry; ErrNotFound means
// neither existed.
func (s *ImageStore) Delete(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	coll, err := s.registry.GetOrCreate(ctx, userID, string(ModalityImage))
	if err != nil {
		return fmt.Errorf("store: image delete: %w", err)
	}

	path := ""
	if entry, getErr := coll.Get(id); getErr == nil {
		path = metaString(entry.Metadata, metaKeyURI)
	}
	if path == "" {
		path = findByID(s.baseDir, userID, id)
	}

	removed, rmErr := removeIfExists(path)
	if rmErr != nil {
		return fmt.Errorf("store: image delete %s: %w", id, rmErr)
	}

	delErr := coll.Delete(ctx, id)
	if errors.Is(delErr, collection.ErrNotFound) {
		if !removed {
			return ErrNotFound
		}
		return nil
	}
	return delErr
}

// List returns every image item for the user; items whose backing file is
// missing come back degraded.
func (s *ImageStore) List(ctx context.Context, userID string) ([]Item, error) {
	coll, err := s.registry.GetOrCreate(ctx, userID, string(ModalityImage))
	if err != nil {
		return nil, fmt.Errorf("store: image list: %w", err)
	}

	entries := coll.List()
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		item := Item{
			ID:       e.ID,
			UserID:   userID,
			Modality: ModalityImage,
			URI:      e.Document,
			Metadata: e.Metadata,
		}
		if _, statErr := os.Stat(e.Document); os.IsNotExist(statErr) {
			log.Printf("store: image item %s references missing file %s", e.ID, e.Document)
			item.URI = ""
			item.Degraded = true
		}
		items = append(items, item)
	}
	return items, nil
}
