package memory

import (
	"context"
	"fmt"
	"sync"

	"ledger_engine/internal/domain"
	"ledger_engine/internal/repository"
)

// ClientRepository keeps client records in a map keyed by client id, with a
// side slice recording first-appearance order for the final report.
type ClientRepository struct {
	mu      sync.RWMutex
	clients map[uint16]*domain.Client
	order   []uint16
}

func NewClientRepository() *ClientRepository {
	return &ClientRepository{
		clients: make(map[uint16]*domain.Client),
	}
}

func (r *ClientRepository) Create(ctx context.Context, client *domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[client.ID]; exists {
		return fmt.Errorf("%w: client %d", repository.ErrDuplicate, client.ID)
	}

	r.clients[client.ID] = client
	r.order = append(r.order, client.ID)

	return nil
}

func (r *ClientRepository) GetByID(ctx context.Context, id uint16) (*domain.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, exists := r.clients[id]
	if !exists {
		return nil, fmt.Errorf("%w: client %d", repository.ErrNotFound, id)
	}
	return client, nil
}

func (r *ClientRepository) GetAll(ctx context.Context) ([]*domain.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Client, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.clients[id])
	}

	return result, nil
}
