package channels

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Manager manages all capture channel adapters
type Manager struct {
	adapters  map[string]ChannelAdapter
	factories map[string]ChannelFactory
	ctx       context.Context
	cancel    context.CancelFunc
	mutex     sync.RWMutex
}

// NewManager creates a new channel manager
func NewManager() *Manager {
	return &Manager{
		adapters:  make(map[string]ChannelAdapter),
		factories: make(map[string]ChannelFactory),
	}
}

// RegisterFactory registers a channel adapter factory
func (m *Manager) RegisterFactory(factory ChannelFactory) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, adapterType := range factory.GetSupportedTypes() {
		m.factories[adapterType] = factory
		log.Printf("[ChannelManager] Registered factory for type: %s", adapterType)
	}
}

// Start initializes and starts the channel manager
func (m *Manager) Start(ctx context.Context, configs []ChannelConfig) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	for _, config := range configs {
		if !config.Enabled {
			log.Printf("[ChannelManager] Skipping disabled adapter: %s", config.ID)
			continue
		}

		if err := m.CreateAdapter(config); err != nil {
			log.Printf("[ChannelManager] Failed to create adapter %s: %v", config.ID, err)
			continue
		}
	}

	log.Printf("[ChannelManager] Started with %d adapters", len(m.adapters))
	return nil
}

// Stop gracefully shuts down all adapters
func (m *Manager) Stop() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.cancel != nil {
		m.cancel()
	}

	for id, adapter := range m.adapters {
		if err := adapter.Stop(); err != nil {
			log.Printf("[ChannelManager] Error stopping adapter %s: %v", id, err)
		}
	}

	log.Printf("[ChannelManager] Stopped")
	return nil
}

// CreateAdapter creates and starts a new adapter
func (m *Manager) CreateAdapter(config ChannelConfig) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	factory, exists := m.factories[config.Type]
	if !exists {
		return fmt.Errorf("no factory found for adapter type: %s", config.Type)
	}

	adapter, err := factory.CreateAdapter(config)
	if err != nil {
		return fmt.Errorf("failed to create adapter: %w", err)
	}

	if err := adapter.Start(m.ctx); err != nil {
		return fmt.Errorf("failed to start adapter: %w", err)
	}

	m.adapters[config.ID] = adapter
	log.Printf("[ChannelManager] Created and started adapter: %s (%s)", config.ID, config.Type)
	return nil
}

// RemoveAdapter removes and stops an adapter
func (m *Manager) RemoveAdapter(id string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	adapter, exists := m.adapters[id]
	if !exists {
		return fmt.Errorf("adapter not found: %s", id)
	}

	if err := adapter.Stop(); err != nil {
		log.Printf("[ChannelManager] Error stopping adapter %s: %v", id, err)
	}

	delete(m.adapters, id)
	log.Printf("[ChannelManager] Removed adapter: %s", id)
	return nil
}

// GetAdapter returns a specific adapter by ID
func (m *Manager) GetAdapter(id string) (ChannelAdapter, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	adapter, exists := m.adapters[id]
	return adapter, exists
}

// GetAdapters returns all active adapters
func (m *Manager) GetAdapters() map[string]ChannelAdapter {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make(map[string]ChannelAdapter)
	for id, adapter := range m.adapters {
		result[id] = adapter
	}
	return result
}

// GetStatus returns the status of all adapters
func (m *Manager) GetStatus() map[string]ChannelStatus {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make(map[string]ChannelStatus)
	for id, adapter := range m.adapters {
		result[id] = adapter.Status()
	}
	return result
}

// GetHealthyAdapters returns adapters that are currently healthy
func (m *Manager) GetHealthyAdapters() []ChannelAdapter {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var healthy []ChannelAdapter
	for _, adapter := range m.adapters {
		if adapter.IsHealthy() {
			healthy = append(healthy, adapter)
		}
	}
	return healthy
}

// RestartAdapter stops and restarts a specific adapter
func (m *Manager) RestartAdapter(id string) error {
	m.mutex.RLock()
	adapter, exists := m.adapters[id]
	m.mutex.RUnlock()

	if !exists {
		return fmt.Errorf("adapter not found: %s", id)
	}

	log.Printf("[ChannelManager] Restarting adapter: %s", id)

	if err := adapter.Stop(); err != nil {
		log.Printf("[ChannelManager] Error stopping adapter %s: %v", id, err)
	}

	time.Sleep(1 * time.Second)

	if err := adapter.Start(m.ctx); err != nil {
		return fmt.Errorf("failed to restart adapter %s: %w", id, err)
	}

	log.Printf("[ChannelManager] Successfully restarted adapter: %s", id)
	return nil
}
