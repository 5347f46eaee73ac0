package memory

import (
	"context"
	"fmt"
	"sync"

	"ledger_engine/internal/domain"
	"ledger_engine/internal/repository"
)

// OperationStore keeps disputable operations in a map keyed by transaction
// id plus an insertion-order slice, so lookups are direct while removal
// preserves the order of the surviving entries.
type OperationStore struct {
	mu         sync.RWMutex
	operations map[uint32]domain.Operation
	order      []uint32
}

func NewOperationStore() *OperationStore {
	return &OperationStore{
		operations: make(map[uint32]domain.Operation),
	}
}

func (s *OperationStore) Add(ctx context.Context, op domain.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !op.Disputable() {
		return fmt.Errorf("operation %s is not disputable", op.Type)
	}
	if _, exists := s.operations[op.TxID]; exists {
		return fmt.Errorf("%w: transaction %d", repository.ErrDuplicate, op.TxID)
	}

	s.operations[op.TxID] = op
	s.order = append(s.order, op.TxID)

	return nil
}

func (s *OperationStore) FindByTxID(ctx context.Context, txID uint32) (domain.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, exists := s.operations[txID]
	if !exists {
		return domain.Operation{}, fmt.Errorf("%w: transaction %d", repository.ErrNotFound, txID)
	}
	return op, nil
}

func (s *OperationStore) RemoveByTxID(ctx context.Context, txID uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.operations[txID]; !exists {
		return fmt.Errorf("%w: transaction %d", repository.ErrNotFound, txID)
	}

	delete(s.operations, txID)
	for i, id := range s.order {
		if id == txID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	return nil
}
