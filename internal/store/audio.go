package store

import (
	"context"
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
	"orbit/internal/waveform"
)

// Compile-time interface check.
var _ ModalityStore = (*AudioStore)(nil)

// AudioStore persists audio clips per user. Ingestion accepts a filesystem
// path or a base64 data-URI. The clip is standardized (canonical sample
// rate, mono) before embedding, but the id is the hash of the ORIGINAL
// bytes: the same recording re-encoded at another sample rate is a
// distinct item, while standardization keeps the embedding space uniform.
type AudioStore struct {
	baseDir  string
	registry *collection.Registry
	provider embedding.Provider
}

// NewAudioStore creates an audio store rooted at baseDir.
func NewAudioStore(baseDir string, registry *collection.Registry, provider embedding.Provider) *AudioStore {
	return &AudioStore{baseDir: baseDir, registry: registry, provider: provider}
}

func (s *AudioStore) Modality() Modality { return ModalityAudio }

// decodePayload resolves an audio payload into raw bytes and an extension.
func decodePayload(payload string) ([]byte, string, error) {
	if strings.HasPrefix(payload, "data:") {
		return parseDataURI(payload)
	}

	raw, err := os.ReadFile(payload)
	if err != nil {
		return nil, "", &ValidationError{Reason: fmt.Sprintf("cannot read audio file %s: %v", payload, err)}
	}
	ext := strings.TrimPrefix(filepath.Ext(payload), ".")
	if ext == "" {
		ext = "wav"
	}
	return raw, ext, nil
}

// Add stores an audio clip, returning its content-addressed id.
func (s *AudioStore) Add(ctx context.Context, userID, payload string, meta map[string]any) (string, error) {
	if userID == "" {
		return "", &ValidationError{Reason: "user_id is required"}
	}
	if payload == "" {
		return "", &ValidationError{Reason: "audio payload is required"}
	}

	raw, ext, err := decodePayload(payload)
	if err != nil {
		return "", err
	}

	// Hash first: identity is the original bytes, untouched by
	// standardization.
	id := contenthash.Sum(raw)

	clip, err := waveform.Standardize(raw)
	if err != nil {
		return "", &IngestionError{Stage: StageDecode, Err: err}
	}

	coll, err := s.registry.GetOrCreate(ctx, userID, string(ModalityAudio))
	if err != nil {
		return "", &IngestionError{Stage: StageIndex, Err: err}
	}

	dir, err := userDir(s.baseDir, userID)
	if err != nil {
		return "", &IngestionError{Stage: StageWrite, Err: err}
	}
	dest := filepath.Join(dir, id+"."+ext)

	merged := make(map[string]any, len(meta)+6)
	for k, v := range meta {
		merged[k] = v
	}
	merged[metaKeyUserID] = userID
	merged[metaKeyTimestamp] = nowTimestamp()
	merged[metaKeyURI] = dest
	merged["original_sample_rate"] = clip.OriginalSampleRate
	merged["target_sample_rate"] = waveform.TargetSampleRate
	merged["duration"] = clip.Duration()
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

	vec, err := s.provider.EmbedContent(ctx, waveform.Encode(clip.Samples))
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

func (s *AudioStore) discard(wrote bool, path string) {
	if !wrote {
		return
	}
	if _, err := removeIfExists(path); err != nil {
		log.Printf("store: cleanup of %s failed: %v", path, err)
	}
}

// Search embeds the text query into the audio space and returns up to
// limit items ranked by ascending distance.
func (s *AudioStore) Search(ctx context.Context, userID, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}

	coll, err := s.registry.GetOrCreate(ctx, userID, string(ModalityAudio))
	if err != nil {
		return nil, fmt.Errorf("store: audio search: %w", err)
	}

	vec, err := s.provider.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: audio search: %w", err)
	}

	return s.collect(coll, vec, limit)
}

// SearchByAudio finds clips similar to a query clip instead of a text
// query. The query payload is decoded and standardized exactly like
// ingested audio.
func (s *AudioStore) SearchByAudio(ctx context.Context, userID, payload string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}

	raw, _, err := decodePayload(payload)
	if err != nil {
		return nil, err
	}
	clip, err := waveform.Standardize(raw)
	if err != nil {
		return nil, fmt.Errorf("store: audio query: %w", err)
	}

	coll, err := s.registry.GetOrCreate(ctx, userID, string(ModalityAudio))
	if err != nil {
		return nil, fmt.Errorf("store: audio search: %w", err)
	}

	vec, err := s.provider.EmbedContent(ctx, waveform.Encode(clip.Samples))
	if err != nil {
		return nil, fmt.Errorf("store: audio search: %w", err)
	}

	return s.collect(coll, vec, limit)
}

func (s *AudioStore) collect(coll *collection.Collection, vec []float32, limit int) ([]SearchResult, error) {
	results, err := coll.Query(vec, limit)
	if err != nil {
		return nil, fmt.Errorf("store: audio search: %w", err)
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

// Delete removes the audio file and the index entry; ErrNotFound means
// neither existed.
func (s *AudioStore) Delete(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	coll, err := s.registry.GetOrCreate(ctx, userID, string(ModalityAudio))
	if err != nil {
		return fmt.Errorf("store: audio delete: %w", err)
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
		return fmt.Errorf("store: audio delete %s: %w", id, rmErr)
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

// List returns every audio item for the user. Items whose backing file is
// missing or unreadable are returned degraded and logged, never raised.
func (s *AudioStore) List(ctx context.Context, userID string) ([]Item, error) {
	coll, err := s.registry.GetOrCreate(ctx, userID, string(ModalityAudio))
	if err != nil {
		return nil, fmt.Errorf("store: audio list: %w", err)
	}

	entries := coll.List()
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		item := Item{
			ID:       e.ID,
			UserID:   userID,
			Modality: ModalityAudio,
			URI:      e.Document,
			Metadata: e.Metadata,
		}
		if _, statErr := os.Stat(e.Document); os.IsNotExist(statErr) {
			log.Printf("store: audio item %s references missing file %s", e.ID, e.Document)
			item.URI = ""
			item.Degraded = true
		}
		items = append(items, item)
	}
	return items, nil
}
