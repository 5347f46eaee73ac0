package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"ledger_engine/internal/domain"
	"ledger_engine/internal/repository"
)

func TestClientRepository_CreateAndGetByID(t *testing.T) {
	repo := NewClientRepository()
	client := domain.NewClient(1, decimal.RequireFromString("5.0"))

	err := repo.Create(context.Background(), client)
	if err != nil {
		t.Fatalf("unexpected error on Create: %v", err)
	}
	got, err := repo.GetByID(context.Background(), 1)

	if err != nil {
		t.Fatalf("unexpected error on GetByID: %v", err)
	}
	if got.ID != client.ID || !got.Available.Equal(client.Available) {
		t.Errorf("expected client %+v, got %+v", client, got)
	}
}

func TestClientRepository_DuplicateCreate(t *testing.T) {
	repo := NewClientRepository()
	_ = repo.Create(context.Background(), domain.NewClient(1, decimal.Zero))

	err := repo.Create(context.Background(), domain.NewClient(1, decimal.Zero))
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestClientRepository_GetByIDNotFound(t *testing.T) {
	repo := NewClientRepository()

	_, err := repo.GetByID(context.Background(), 42)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClientRepository_GetAllPreservesFirstAppearanceOrder(t *testing.T) {
	repo := NewClientRepository()
	ctx := context.Background()

	for _, id := range []uint16{5, 1, 3} {
		_ = repo.Create(ctx, domain.NewClient(id, decimal.Zero))
	}

	all, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 clients, got %d", len(all))
	}
	for i, want := range []uint16{5, 1, 3} {
		if all[i].ID != want {
			t.Errorf("position %d: expected client %d, got %d", i, want, all[i].ID)
		}
	}
}

func TestOperationStore_AddFindRemove(t *testing.T) {
	store := NewOperationStore()
	ctx := context.Background()
	op := domain.NewDeposit(1, 7, decimal.RequireFromString("2.5"))

	if err := store.Add(ctx, op); err != nil {
		t.Fatalf("unexpected error on Add: %v", err)
	}

	got, err := store.FindByTxID(ctx, 7)
	if err != nil {
		t.Fatalf("unexpected error on FindByTxID: %v", err)
	}
	if got.TxID != 7 || got.Type != domain.OpDeposit || !got.Amount.Equal(op.Amount) {
		t.Errorf("expected %+v, got %+v", op, got)
	}

	if err := store.RemoveByTxID(ctx, 7); err != nil {
		t.Fatalf("unexpected error on RemoveByTxID: %v", err)
	}
	if _, err := store.FindByTxID(ctx, 7); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound after removal, got %v", err)
	}
}

func TestOperationStore_RejectsNonDisputable(t *testing.T) {
	store := NewOperationStore()

	err := store.Add(context.Background(), domain.NewDispute(1, 7))
	if err == nil {
		t.Error("expected error adding a non-disputable operation")
	}
}

func TestOperationStore_DuplicateTxID(t *testing.T) {
	store := NewOperationStore()
	ctx := context.Background()

	_ = store.Add(ctx, domain.NewDeposit(1, 7, decimal.NewFromInt(1)))
	err := store.Add(ctx, domain.NewDeposit(2, 7, decimal.NewFromInt(2)))
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	// First entry stays authoritative.
	got, _ := store.FindByTxID(ctx, 7)
	if got.ClientID != 1 {
		t.Errorf("expected first entry to win, got client %d", got.ClientID)
	}
}

func TestOperationStore_RemoveNotFound(t *testing.T) {
	store := NewOperationStore()

	err := store.RemoveByTxID(context.Background(), 99)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
