// Package gateway exposes the content store over HTTP: ingestion, search,
// listing, deletion, and a WebSocket feed of store events.
package gateway

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"orbit/internal/config"
	"orbit/internal/store"
)

// Gateway is the HTTP front of the content store.
type Gateway struct {
	config *config.Config
	store  *store.ContentStore
	events *Hub

	// ctx is the gateway lifecycle context. WebSocket goroutines outlive
	// their HTTP request context, so they hang off this one instead.
	ctx context.Context
}

// New creates a gateway serving the given store.
func New(cfg *config.Config, cs *store.ContentStore) *Gateway {
	return &Gateway{
		config: cfg,
		store:  cs,
		events: newHub(),
	}
}

// Handler builds the route table.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", g.handleHealth)

	mux.HandleFunc("/api/save", g.handleSave)
	mux.HandleFunc("/api/search", g.handleSearch)
	mux.HandleFunc("/api/search/audio", g.handleSearchAudio)
	mux.HandleFunc("/api/items", g.handleItems)
	mux.HandleFunc("/api/items/update", g.handleUpdate)
	mux.HandleFunc("/api/sample", g.handleSample)

	mux.HandleFunc("/ws", g.handleWebSocket)

	return mux
}

// Start runs the HTTP server until ctx is cancelled.
func (g *Gateway) Start(ctx context.Context) error {
	g.ctx = ctx

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", g.config.Port),
		Handler: g.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Gateway listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("gateway shutdown: %w", err)
		}
		g.events.closeAll()
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
