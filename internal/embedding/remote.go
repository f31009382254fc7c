package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Compile-time interface check.
var _ Provider = (*Remote)(nil)

// Remote calls an embedding inference server over HTTP. The server hosts
// the actual encoder model (CLIP for images, CLAP for audio, a sentence
// encoder for text) and exposes one JSON endpoint:
//
//	POST {baseURL}/embed
//	{"model": "...", "kind": "content"|"query", "data": "<base64>", "text": "..."}
//	-> {"embedding": [0.1, ...]}
type Remote struct {
	baseURL string
	model   string
	dims    int
	client  *http.Client
}

// NewRemote creates a provider backed by the inference server at baseURL.
func NewRemote(baseURL, model string, dims int) *Remote {
	return &Remote{
		baseURL: baseURL,
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (r *Remote) Name() string    { return "remote:" + r.model }
func (r *Remote) Dimensions() int { return r.dims }

// EmbedContent embeds raw content bytes through the inference server.
func (r *Remote) EmbedContent(ctx context.Context, content []byte) ([]float32, error) {
	return r.embed(ctx, embedRequest{
		Model: r.model,
		Kind:  "content",
		Data:  base64.StdEncoding.EncodeToString(content),
	})
}

// EmbedQuery embeds a text query through the inference server.
func (r *Remote) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return r.embed(ctx, embedRequest{
		Model: r.model,
		Kind:  "query",
		Text:  text,
	})
}

func (r *Remote) embed(ctx context.Context, reqBody embedRequest) ([]float32, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("remote embed: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("remote embed: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote embed: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote embed: read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote embed: server error %d: %s", httpResp.StatusCode, string(respBody))
	}

	var resp embedResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("remote embed: unmarshal response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("remote embed: server returned empty embedding")
	}
	if r.dims > 0 && len(resp.Embedding) != r.dims {
		return nil, fmt.Errorf("remote embed: got %d dimensions, want %d", len(resp.Embedding), r.dims)
	}

	return resp.Embedding, nil
}

type embedRequest struct {
	Model string `json:"model"`
	Kind  string `json:"kind"`
	Data  string `json:"data,omitempty"`
	Text  string `json:"text,omitempty"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}
