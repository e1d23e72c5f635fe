package service

import (
	"ctfbot/app_error"
	"ctfbot/repository"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// ServerConfigCache lazily loads server configurations. Entries are replaced on init and dropped on teardown.
type ServerConfigCache struct {
	mu      sync.RWMutex
	entries map[string]repository.Server
	store   ServerStore
}

func NewServerConfigCache(store ServerStore) *ServerConfigCache {
	return &ServerConfigCache{
		entries: make(map[string]repository.Server),
		store:   store,
	}
}

// Get returns a copy of the configuration. A server that was never initialized is a validation error.
func (c *ServerConfigCache) Get(serverId string) (*repository.Server, error) {
	c.mu.RLock()
	server, ok := c.entries[serverId]
	c.mu.RUnlock()
	if ok {
		return &server, nil
	}
	loaded, err := c.store.GetServerById(serverId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, app_error.Validation("This server is not configured yet, run /init first. ❌")
		}
		return nil, fmt.Errorf("failed to load server %s: %w", serverId, err)
	}
	c.Put(loaded)
	copied := *loaded
	return &copied, nil
}

func (c *ServerConfigCache) Put(server *repository.Server) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[server.ID] = *server
}

func (c *ServerConfigCache) Invalidate(serverId string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, serverId)
}
