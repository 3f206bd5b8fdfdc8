package platform

import (
	"fmt"
	"sort"
	"sync"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/models"
)

// Registry maps a platform to its client. It is filled once at startup.
type Registry struct {
	mu      sync.RWMutex
	clients map[models.Platform]Client
}

func NewRegistry(clients ...Client) (*Registry, error) {
	r := &Registry{clients: make(map[models.Platform]Client)}
	for _, c := range clients {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(c Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := c.Platform()
	if _, exists := r.clients[p]; exists {
		return fmt.Errorf("client for platform %s already registered", p)
	}
	r.clients[p] = c
	return nil
}

func (r *Registry) Get(p models.Platform) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[p]
	if !ok {
		return nil, apperr.Validation("platform.Registry.Get", "platform %s is not supported", p)
	}
	return c, nil
}

func (r *Registry) Platforms() []models.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	platforms := make([]models.Platform, 0, len(r.clients))
	for p := range r.clients {
		platforms = append(platforms, p)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	return platforms
}
