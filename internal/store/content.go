package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"orbit/internal/readability"
)

// Kind names the input shape handed to Save. Text, page, link and video
// all end up in the text partition; page and link are distilled to plain
// text first, video is indexed by its page title.
type Kind string

const (
	KindText  Kind = "text"
	KindLink  Kind = "link"
	KindPage  Kind = "page"
	KindVideo Kind = "video"
	KindImage Kind = "image"
	KindAudio Kind = "audio"
)

const maxPageBytes = 4 << 20

// ContentStore is the single entry point the gateway and channels talk
// to. It routes each request to the right modality store and fans
// searches out across all of them.
type ContentStore struct {
	text   *TextStore
	image  *ImageStore
	audio  *AudioStore
	client *http.Client
}

// NewContentStore wires the three modality stores behind one façade.
func NewContentStore(text *TextStore, image *ImageStore, audio *AudioStore) *ContentStore {
	return &ContentStore{
		text:   text,
		image:  image,
		audio:  audio,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Text exposes the underlying text store.
func (c *ContentStore) Text() *TextStore { return c.text }

// Image exposes the underlying image store.
func (c *ContentStore) Image() *ImageStore { return c.image }

// Audio exposes the underlying audio store.
func (c *ContentStore) Audio() *AudioStore { return c.audio }

// Save ingests one piece of content and returns its id and the modality
// it landed in. Unknown kinds fail with ErrUnsupportedType before any
// side effect. Tags, when present, travel in the item metadata.
func (c *ContentStore) Save(ctx context.Context, userID string, kind Kind, payload string, tags []string, meta map[string]any) (string, Modality, error) {
	merged := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		merged[k] = v
	}
	if len(tags) > 0 {
		merged["tags"] = tags
	}

	switch kind {
	case KindText:
		id, err := c.text.Add(ctx, userID, payload, merged)
		return id, ModalityText, err

	case KindPage:
		page, err := readability.Extract(payload)
		if err != nil {
			return "", ModalityText, &ValidationError{Reason: err.Error()}
		}
		if page.Title != "" {
			merged["title"] = page.Title
		}
		id, err := c.text.Add(ctx, userID, page.Text, merged)
		return id, ModalityText, err

	case KindLink:
		html, err := c.fetch(ctx, payload)
		if err != nil {
			return "", ModalityText, err
		}
		page, err := readability.Extract(html)
		if err != nil {
			return "", ModalityText, &ValidationError{Reason: err.Error()}
		}
		merged["source_url"] = payload
		if page.Title != "" {
			merged["title"] = page.Title
		}
		id, err := c.text.Add(ctx, userID, page.Text, merged)
		return id, ModalityText, err

	case KindVideo:
		// Videos are indexed by their page title: the title plus the URL
		// goes into the text partition, searchable like a note.
		html, err := c.fetch(ctx, payload)
		if err != nil {
			return "", ModalityText, err
		}
		title, err := readability.Title(html)
		if err != nil {
			return "", ModalityText, &ValidationError{Reason: err.Error()}
		}
		content := payload
		if title != "" {
			content = title + " " + payload
			merged["title"] = title
		}
		merged["source_url"] = payload
		id, err := c.text.Add(ctx, userID, content, merged)
		return id, ModalityText, err

	case KindImage:
		id, err := c.image.Add(ctx, userID, payload, merged)
		return id, ModalityImage, err

	case KindAudio:
		id, err := c.audio.Add(ctx, userID, payload, merged)
		return id, ModalityAudio, err

	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedType, kind)
	}
}

func (c *ContentStore) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &ValidationError{Reason: fmt.Sprintf("invalid url %q: %v", url, err)}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", &IngestionError{Stage: StageDecode, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &IngestionError{Stage: StageDecode, Err: fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", &IngestionError{Stage: StageDecode, Err: err}
	}
	return string(body), nil
}

// Search queries the user's modality partitions and returns the
// per-modality rankings. An empty types slice means all modalities. A
// failing modality contributes no results but does not suppress the
// others; its error is joined into the returned error alongside
// whatever succeeded.
func (c *ContentStore) Search(ctx context.Context, userID, query string, types []Modality, limit int) (map[Modality][]SearchResult, error) {
	out := make(map[Modality][]SearchResult, 3)
	var errs []error

	for _, ms := range c.stores() {
		if !modalityWanted(ms.Modality(), types) {
			continue
		}
		results, err := ms.Search(ctx, userID, query, limit)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ms.Modality(), err))
			continue
		}
		out[ms.Modality()] = results
	}

	return out, errors.Join(errs...)
}

// SearchByAudio runs similarity search against the audio partition with
// an audio clip as the query.
func (c *ContentStore) SearchByAudio(ctx context.Context, userID, payload string, limit int) ([]SearchResult, error) {
	return c.audio.SearchByAudio(ctx, userID, payload, limit)
}

// Delete removes an item wherever it lives. Ids are content hashes, so
// at most one partition per modality can hold it; every partition is
// tried and ErrNotFound is returned only when none had it.
func (c *ContentStore) Delete(ctx context.Context, userID, id string) error {
	found := false
	for _, ms := range c.stores() {
		err := ms.Delete(ctx, userID, id)
		switch {
		case err == nil:
			found = true
		case errors.Is(err, ErrNotFound):
			// keep looking
		default:
			return err
		}
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

// UpdateText rewrites a stored text item in place. Only text supports
// updates; binary modalities are immutable apart from deletion.
func (c *ContentStore) UpdateText(ctx context.Context, userID, id, content string, meta map[string]any) error {
	return c.text.Update(ctx, userID, id, content, meta)
}

// ListAll enumerates every item the user has, grouped by modality.
func (c *ContentStore) ListAll(ctx context.Context, userID string) (map[Modality][]Item, error) {
	out := make(map[Modality][]Item, 3)
	for _, ms := range c.stores() {
		items, err := ms.List(ctx, userID)
		if err != nil {
			return nil, err
		}
		out[ms.Modality()] = items
	}
	return out, nil
}

func modalityWanted(m Modality, types []Modality) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == m {
			return true
		}
	}
	return false
}

func (c *ContentStore) stores() []ModalityStore {
	return []ModalityStore{c.text, c.image, c.audio}
}
