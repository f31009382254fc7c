package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"orbit/internal/embedding"
	"orbit/internal/store"
	"orbit/internal/version"
)

// handleHealth handles GET /health
// Response: {"status": "ok", "version": "..."}
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": version.Info(),
	})
}

// handleSave handles POST /api/save
// Request: {"user_id": "u1", "type": "text", "content": "...", "tags": [...], "metadata": {...}}
// Response: {"id": "...", "modality": "text"}
func (g *Gateway) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		UserID   string         `json:"user_id"`
		Type     string         `json:"type"`
		Content  string         `json:"content"`
		Tags     []string       `json:"tags,omitempty"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.UserID == "" {
		writeJSONError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Type == "" {
		writeJSONError(w, http.StatusBadRequest, "type is required")
		return
	}

	id, modality, err := g.store.Save(r.Context(), req.UserID, store.Kind(req.Type), req.Content, req.Tags, req.Metadata)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	g.events.broadcast(Event{Type: EventSaved, UserID: req.UserID, ID: id, Modality: string(modality)})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":       id,
		"modality": modality,
	})
}

// handleSearch handles POST /api/search
// Request: {"user_id": "u1", "query": "...", "limit": 5}
// Response: {"results": {"text": [...], "image": [...], "audio": [...]}}
func (g *Gateway) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		UserID string   `json:"user_id"`
		Query  string   `json:"query"`
		Types  []string `json:"types,omitempty"`
		Limit  int      `json:"limit,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.UserID == "" {
		writeJSONError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Query == "" {
		writeJSONError(w, http.StatusBadRequest, "query is required")
		return
	}

	types := make([]store.Modality, 0, len(req.Types))
	for _, t := range req.Types {
		types = append(types, store.Modality(t))
	}

	results, err := g.store.Search(r.Context(), req.UserID, req.Query, types, req.Limit)
	if err != nil && len(results) == 0 {
		writeStoreError(w, err)
		return
	}

	resp := map[string]interface{}{"results": results}
	// A partially failed search still returns what it has, with a note.
	if err != nil {
		resp["partial"] = true
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSearchAudio handles POST /api/search/audio
// Request: {"user_id": "u1", "audio": "<path or data-URI>", "limit": 5}
// Response: {"results": [...]}
func (g *Gateway) handleSearchAudio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		UserID string `json:"user_id"`
		Audio  string `json:"audio"`
		Limit  int    `json:"limit,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.UserID == "" {
		writeJSONError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Audio == "" {
		writeJSONError(w, http.StatusBadRequest, "audio is required")
		return
	}

	results, err := g.store.SearchByAudio(r.Context(), req.UserID, req.Audio, req.Limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// handleItems handles GET /api/items?user_id=u1&page=1&page_size=5 (paged
// listing in the user's stable order) and DELETE /api/items with body
// {"user_id": "u1", "id": "..."}.
func (g *Gateway) handleItems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		g.listItems(w, r)
	case http.MethodDelete:
		g.deleteItem(w, r)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (g *Gateway) listItems(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 5)

	items, err := g.collectItems(r, userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, store.Paginate(userID, items, page, pageSize))
}

// collectItems flattens the per-modality listings into one id-ordered
// slice, the stable input the paginator's shuffle expects.
func (g *Gateway) collectItems(r *http.Request, userID string) ([]store.Item, error) {
	byModality, err := g.store.ListAll(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	var items []store.Item
	for _, modality := range []store.Modality{store.ModalityText, store.ModalityImage, store.ModalityAudio} {
		items = append(items, byModality[modality]...)
	}
	return items, nil
}

func (g *Gateway) deleteItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		ID     string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.UserID == "" || req.ID == "" {
		writeJSONError(w, http.StatusBadRequest, "user_id and id are required")
		return
	}

	if err := g.store.Delete(r.Context(), req.UserID, req.ID); err != nil {
		writeStoreError(w, err)
		return
	}

	g.events.broadcast(Event{Type: EventDeleted, UserID: req.UserID, ID: req.ID})
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "deleted"})
}

// handleUpdate handles POST /api/items/update
// Request: {"user_id": "u1", "id": "...", "content": "...", "metadata": {...}}
func (g *Gateway) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		UserID   string         `json:"user_id"`
		ID       string         `json:"id"`
		Content  string         `json:"content,omitempty"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.UserID == "" || req.ID == "" {
		writeJSONError(w, http.StatusBadRequest, "user_id and id are required")
		return
	}

	if err := g.store.UpdateText(r.Context(), req.UserID, req.ID, req.Content, req.Metadata); err != nil {
		writeStoreError(w, err)
		return
	}

	g.events.broadcast(Event{Type: EventUpdated, UserID: req.UserID, ID: req.ID, Modality: string(store.ModalityText)})
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "updated"})
}

// handleSample handles GET /api/sample?user_id=u1&n=5
// Response: {"items": [...], "count": N}
func (g *Gateway) handleSample(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	n := queryInt(r, "n", 5)

	items, err := g.collectItems(r, userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	sampled := store.Sample(items, n)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": sampled,
		"count": len(sampled),
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// writeStoreError maps the store error taxonomy onto HTTP status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	var verr *store.ValidationError
	var ierr *store.IngestionError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrUnsupportedType):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &verr):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &ierr):
		if ierr.Stage == store.StageEmbed {
			writeJSONError(w, http.StatusBadGateway, err.Error())
		} else {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
		}
	case embedding.IsFailure(err):
		// Query-time embedding failures surface unwrapped.
		writeJSONError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
