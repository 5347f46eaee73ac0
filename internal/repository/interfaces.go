package repository

import (
	"context"
	"errors"

	"ledger_engine/internal/domain"
)

// ClientRepository is the client ledger: the mapping from client id to its
// mutable balance record. Clients are created lazily and never deleted.
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) error
	GetByID(ctx context.Context, id uint16) (*domain.Client, error)
	// GetAll returns every client in first-appearance order. The output
	// report relies on this ordering.
	GetAll(ctx context.Context) ([]*domain.Client, error)
}

// OperationStore is an ordered collection of disputable operations keyed by
// transaction id. The engine owns two of these: the journal of operations
// still eligible for dispute, and the registry of operations under active
// dispute. A transaction id lives in at most one of them at any time.
type OperationStore interface {
	Add(ctx context.Context, op domain.Operation) error
	FindByTxID(ctx context.Context, txID uint32) (domain.Operation, error)
	// RemoveByTxID deletes the matching entry; the order of the remaining
	// entries is preserved.
	RemoveByTxID(ctx context.Context, txID uint32) error
}

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("duplicate entry")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountLocked     = errors.New("account locked")
	ErrClientMismatch    = errors.New("client id mismatch")
)
