package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"orbit/internal/collection"
	"orbit/internal/contenthash"
	"orbit/internal/embedding"
	"orbit/internal/metadata"
)

// Compile-time interface check.
var _ ModalityStore = (*TextStore)(nil)

// TextStore persists free text per user. Each item is a JSON sidecar file
// named by the content hash, holding the literal content plus its sanitized
// metadata, mirrored by an entry in the user's text collection.
type TextStore struct {
	baseDir  string
	registry *collection.Registry
	provider embedding.Provider
}

// NewTextStore creates a text store rooted at baseDir.
func NewTextStore(baseDir string, registry *collection.Registry, provider embedding.Provider) *TextStore {
	return &TextStore{baseDir: baseDir, registry: registry, provider: provider}
}

func (s *TextStore) Modality() Modality { return ModalityText }

// sidecar is the on-disk record for one text item.
type sidecar struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// Add stores text content, returning its content-addressed id. Adding
// byte-identical content twice yields the same id and a single file; the
// second call replaces the stored metadata (metadata upsert policy).
func (s *TextStore) Add(ctx context.Context, userID, payload string, meta map[string]any) (string, error) {
	if userID == "" {
		return "", &ValidationError{Reason: "user_id is required"}
	}
	if payload == "" {
		return "", &ValidationError{Reason: "text content is required"}
	}

	id := contenthash.SumString(payload)

	coll, err := s.registry.GetOrCreate(ctx, userID, string(ModalityText))
	if err != nil {
		return "", &IngestionError{Stage: StageIndex, Err: err}
	}

	dir, err := userDir(s.baseDir, userID)
	if err != nil {
		return "", &IngestionError{Stage: StageWrite, Err: err}
	}
	path := filepath.Join(dir, id+".json")

	merged := make(map[string]any, len(meta)+3)
	for k, v := range meta {
		merged[k] = v
	}
	merged[metaKeyUserID] = userID
	merged[metaKeyTimestamp] = nowTimestamp()
	merged[metaKeyFilePath] = path
	sanitized := metadata.Sanitize(merged)

	// Dedup short-circuit: same content already indexed for this user.
	// The embedding is reused; only the metadata (sidecar and index) is
	// refreshed.
	if existing, getErr := coll.Get(id); getErr == nil {
		if err := s.writeSidecar(path, payload, sanitized); err != nil {
			return "", &IngestionError{Stage: StageWrite, Err: err}
		}
		existing.Metadata = sanitized
		if err := coll.Upsert(ctx, existing); err != nil {
			return "", &IngestionError{Stage: StageIndex, Err: err}
		}
		return id, nil
	}

	// An existing file with no index entry is an orphan from a prior
	// partial failure. It is rewritten so its metadata cannot diverge
	// from what the index is about to record, but it is not treated as
	// this call's file for cleanup purposes.
	_, statErr := os.Stat(path)
	wrote := os.IsNotExist(statErr)
	if err := s.writeSidecar(path, payload, sanitized); err != nil {
		return "", &IngestionError{Stage: StageWrite, Err: err}
	}

	vec, err := s.provider.EmbedContent(ctx, []byte(payload))
	if err != nil {
		s.discard(wrote, path)
		return "", &IngestionError{Stage: StageEmbed, Err: err}
	}

	err = coll.Upsert(ctx, collection.Entry{
		ID:        id,
		Document:  payload,
		Embedding: vec,
		Metadata:  sanitized,
	})
	if err != nil {
		s.discard(wrote, path)
		return "", &IngestionError{Stage: StageIndex, Err: err}
	}

	return id, nil
}

func (s *TextStore) writeSidecar(path, content string, meta map[string]any) error {
	data, err := json.MarshalIndent(sidecar{Content: content, Metadata: meta}, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(path, data)
}

// discard removes a file this call created, so a failed embed or index
// stage cannot leave an orphan behind.
func (s *TextStore) discard(wrote bool, path string) {
	if !wrote {
		return
	}
	if _, err := removeIfExists(path); err != nil {
		log.Printf("store: cleanup of %s failed: %v", path, err)
	}
}

// Search returns up to limit text items ranked by ascending distance to
// the query.
func (s *TextStore) Search(ctx context.Context, userID, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}

	coll, err := s.registry.GetOrCreate(ctx, userID, string(ModalityText))
	if err != nil {
		return nil, fmt.Errorf("store: text search: %w", err)
	}

	vec, err := s.provider.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: text search: %w", err)
	}

	results, err := coll.Query(vec, limit)
	if err != nil {
		return nil, fmt.Errorf("store: text search: %w", err)
	}
	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			ID:       r.ID,
			Content:  r.Document,
			Metadata: r.Metadata,
			Distance: r.Distance,
		}
	}
	return out, nil
}

// Delete removes the sidecar file and the index entry. Both removals are
// attempted even when one is already gone, so a partial prior failure can
// always be finished; ErrNotFound means neither existed.
func (s *TextStore) Delete(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	coll, err := s.registry.GetOrCreate(ctx, userID, string(ModalityText))
	if err != nil {
		return fmt.Errorf("store: text delete: %w", err)
	}

	path := ""
	if entry, getErr := coll.Get(id); getErr == nil {
		path = metaString(entry.Metadata, metaKeyFilePath)
	}
	if path == "" {
		path = findByID(s.baseDir, userID, id)
	}

	removed, rmErr := removeIfExists(path)
	if rmErr != nil {
		return fmt.Errorf("store: text delete %s: %w", id, rmErr)
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

// List returns every text item for the user. Items whose sidecar file has
// gone missing are returned degraded, with no content, instead of failing
// the listing.
func (s *TextStore) List(ctx context.Context, userID string) ([]Item, error) {
	coll, err := s.registry.GetOrCreate(ctx, userID, string(ModalityText))
	if err != nil {
		return nil, fmt.Errorf("store: text list: %w", err)
	}

	entries := coll.List()
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		item := Item{
			ID:       e.ID,
			UserID:   userID,
			Modality: ModalityText,
			Content:  e.Document,
			Metadata: e.Metadata,
		}
		path := metaString(e.Metadata, metaKeyFilePath)
		if path != "" {
			if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
				log.Printf("store: text item %s references missing file %s", e.ID, path)
				item.Content = ""
				item.Degraded = true
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// Update rewrites an existing item's content and/or metadata. An empty
// newContent leaves content untouched; a nil newMeta leaves metadata
// untouched (supplied keys are merged over the stored ones). Sidecar file
// and index entry are updated together.
func (s *TextStore) Update(ctx context.Context, userID, id, newContent string, newMeta map[string]any) error {
	if !validID(id) {
		return ErrNotFound
	}
	if newContent == "" && newMeta == nil {
		return nil
	}

	coll, err := s.registry.GetOrCreate(ctx, userID, string(ModalityText))
	if err != nil {
		return fmt.Errorf("store: text update: %w", err)
	}

	entry, err := coll.Get(id)
	if err != nil {
		if errors.Is(err, collection.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("store: text update: %w", err)
	}

	merged := make(map[string]any, len(entry.Metadata)+len(newMeta))
	for k, v := range entry.Metadata {
		merged[k] = v
	}
	for k, v := range metadata.Sanitize(newMeta) {
		merged[k] = v
	}

	content := entry.Document
	if newContent != "" {
		content = newContent
	}

	path := metaString(merged, metaKeyFilePath)
	if path == "" {
		dir, dirErr := userDir(s.baseDir, userID)
		if dirErr != nil {
			return fmt.Errorf("store: text update: %w", dirErr)
		}
		path = filepath.Join(dir, id+".json")
		merged[metaKeyFilePath] = path
	}
	if err := s.writeSidecar(path, content, merged); err != nil {
		return fmt.Errorf("store: text update %s: %w", id, err)
	}

	embeddingVec := entry.Embedding
	if newContent != "" {
		embeddingVec, err = s.provider.EmbedContent(ctx, []byte(content))
		if err != nil {
			return fmt.Errorf("store: text update %s: %w", id, err)
		}
	}

	return coll.Upsert(ctx, collection.Entry{
		ID:        id,
		Document:  content,
		Embedding: embeddingVec,
		Metadata:  merged,
	})
}
