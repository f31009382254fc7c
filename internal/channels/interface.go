// Package channels manages capture channel adapters: external surfaces
// (Telegram, and whatever comes next) through which users feed content
// into the store.
package channels

import (
	"context"
	"time"
)

// ChannelAdapter defines the interface for all capture channel implementations.
// Adapters ingest content directly into the store; they have no outbound
// message routing beyond their own acknowledgements.
type ChannelAdapter interface {
	// ID returns the unique identifier for this adapter
	ID() string

	// Name returns the human-readable name for this adapter
	Name() string

	// Type returns the adapter type (e.g., "telegram")
	Type() string

	// Start initializes and starts the adapter
	Start(ctx context.Context) error

	// Stop gracefully shuts down the adapter
	Stop() error

	// Status returns the current adapter status
	Status() ChannelStatus

	// IsHealthy returns whether the adapter is functioning properly
	IsHealthy() bool
}

// ChannelStatus represents the current status of a channel adapter
type ChannelStatus struct {
	Status    StatusCode             `json:"status"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// StatusCode represents the various states an adapter can be in
type StatusCode string

const (
	StatusInitializing StatusCode = "initializing"
	StatusOnline       StatusCode = "online"
	StatusOffline      StatusCode = "offline"
	StatusError        StatusCode = "error"
)

// ChannelConfig contains configuration for channel adapters
type ChannelConfig struct {
	ID      string            `json:"id"`
	Type    string            `json:"type"`
	Name    string            `json:"name"`
	Enabled bool              `json:"enabled"`
	Config  map[string]string `json:"config"`
}

// ChannelFactory creates adapters of the types it supports
type ChannelFactory interface {
	SupportsType(adapterType string) bool
	CreateAdapter(config ChannelConfig) (ChannelAdapter, error)
	GetSupportedTypes() []string
}
