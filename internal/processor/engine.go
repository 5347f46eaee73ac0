package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"ledger_engine/internal/domain"
	"ledger_engine/internal/repository"
	"ledger_engine/pkg/metrics"
)

// Source yields parsed operations in input order. It returns io.EOF when the
// sequence is exhausted; any other error is fatal to the run.
type Source interface {
	Next(ctx context.Context) (domain.Operation, error)
}

// Alerter receives account events worth surfacing outside the run.
type Alerter interface {
	SendAccountLockedAlert(ctx context.Context, client *domain.Client, txID uint32) error
}

// Engine is the transaction-processing state machine. For the duration of a
// run it exclusively owns the client ledger, the journal of disputable
// operations, and the registry of open disputes.
//
// Per transaction id, a deposit or withdrawal moves through:
// journal (disputable) -> dispute registry (disputed) -> removed
// (resolved or charged back). An id never re-enters the journal.
type Engine struct {
	clients  repository.ClientRepository
	journal  repository.OperationStore
	disputes repository.OperationStore
	checker  *InvariantChecker
	metrics  *metrics.Collector
	alerts   Alerter
	logger   *slog.Logger
}

func NewEngine(
	clients repository.ClientRepository,
	journal repository.OperationStore,
	disputes repository.OperationStore,
	collector *metrics.Collector,
	alerts Alerter,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.NewCollector(logger)
	}

	return &Engine{
		clients:  clients,
		journal:  journal,
		disputes: disputes,
		checker:  NewInvariantChecker(),
		metrics:  collector,
		alerts:   alerts,
		logger:   logger,
	}
}

// Run consumes the source to completion, applying each operation in input
// order. Business-rule rejections are logged and skipped; source errors and
// invariant violations abort the run.
func (e *Engine) Run(ctx context.Context, src Source) error {
	start := time.Now()

	for {
		op, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading operation sequence: %w", err)
		}

		if err := e.Process(ctx, op); err != nil {
			if !IsRejection(err) {
				return err
			}
			e.metrics.RecordRejected(string(op.Type))
			e.logger.Warn("Operation rejected",
				slog.String("type", string(op.Type)),
				slog.Uint64("client", uint64(op.ClientID)),
				slog.Uint64("tx", uint64(op.TxID)),
				slog.String("reason", err.Error()))
			continue
		}
		e.metrics.RecordProcessed(string(op.Type))
	}

	e.updateGauges(ctx)
	e.metrics.ObserveRunDuration(time.Since(start))
	return nil
}

// Process applies a single operation. It returns a rejection error when the
// operation violates a business rule; state is then untouched by this
// operation except that a dispute consumes its journal entry once matched.
func (e *Engine) Process(ctx context.Context, op domain.Operation) error {
	switch op.Type {
	case domain.OpDeposit:
		return e.processDeposit(ctx, op)
	case domain.OpWithdrawal:
		return e.processWithdrawal(ctx, op)
	case domain.OpDispute:
		return e.processDispute(ctx, op)
	case domain.OpResolve:
		return e.processResolve(ctx, op)
	case domain.OpChargeback:
		return e.processChargeback(ctx, op)
	default:
		return fmt.Errorf("unknown operation type: %s", op.Type)
	}
}

func (e *Engine) processDeposit(ctx context.Context, op domain.Operation) error {
	client, err := e.clients.GetByID(ctx, op.ClientID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		// First deposit for an unseen client creates its record.
		client = domain.NewClient(op.ClientID, op.Amount)
		if err := e.clients.Create(ctx, client); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if client.Locked {
			return fmt.Errorf("deposit #%d: %w: client %d", op.TxID, repository.ErrAccountLocked, client.ID)
		}
		client.Available = client.Available.Add(op.Amount)
		client.Total = client.Total.Add(op.Amount)
	}

	// Every accepted deposit is eligible for dispute.
	if err := e.journalize(ctx, op); err != nil {
		return err
	}

	return e.verify(client)
}

func (e *Engine) processWithdrawal(ctx context.Context, op domain.Operation) error {
	client, err := e.clients.GetByID(ctx, op.ClientID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("withdrawal #%d: %w: client %d", op.TxID, repository.ErrNotFound, op.ClientID)
	}
	if err != nil {
		return err
	}

	if client.Locked {
		return fmt.Errorf("withdrawal #%d: %w: client %d", op.TxID, repository.ErrAccountLocked, client.ID)
	}
	if client.Available.LessThan(op.Amount) {
		return fmt.Errorf("withdrawal #%d: %w: %s < %s",
			op.TxID, repository.ErrInsufficientFunds, client.Available, op.Amount)
	}

	client.Available = client.Available.Sub(op.Amount)
	client.Total = client.Total.Sub(op.Amount)

	// Only a successful withdrawal is disputable.
	if err := e.journalize(ctx, op); err != nil {
		return err
	}

	return e.verify(client)
}

// journalize records an applied deposit or withdrawal as disputable. Tx ids
// are assumed unique in a well-formed log; on a duplicate the first entry
// stays authoritative for dispute lookups and the operation itself remains
// applied.
func (e *Engine) journalize(ctx context.Context, op domain.Operation) error {
	err := e.journal.Add(ctx, op)
	if errors.Is(err, repository.ErrDuplicate) {
		e.logger.Warn("Duplicate transaction id, keeping first journal entry",
			slog.Uint64("tx", uint64(op.TxID)))
		return nil
	}
	return err
}

func (e *Engine) processDispute(ctx context.Context, op domain.Operation) error {
	client, err := e.clients.GetByID(ctx, op.ClientID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("dispute: %w: client %d", repository.ErrNotFound, op.ClientID)
	}
	if err != nil {
		return err
	}

	target, err := e.journal.FindByTxID(ctx, op.TxID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("dispute #%d: %w", op.TxID, repository.ErrNotFound)
	}
	if err != nil {
		return err
	}

	effectErr := e.applyDispute(client, target)
	if effectErr == nil {
		if err := e.disputes.Add(ctx, target); err != nil {
			return err
		}
	}

	// A transaction can be challenged only once: the journal entry is
	// consumed whether or not the dispute effect applied.
	if err := e.journal.RemoveByTxID(ctx, op.TxID); err != nil {
		return err
	}

	if effectErr != nil {
		return effectErr
	}
	return e.verify(client)
}

func (e *Engine) applyDispute(client *domain.Client, target domain.Operation) error {
	if target.ClientID != client.ID {
		return fmt.Errorf("dispute #%d: %w: expected %d, got %d",
			target.TxID, repository.ErrClientMismatch, client.ID, target.ClientID)
	}
	if client.Locked {
		return fmt.Errorf("dispute #%d: %w: client %d", target.TxID, repository.ErrAccountLocked, client.ID)
	}

	switch target.Type {
	case domain.OpDeposit:
		// Cannot freeze funds the client has already spent.
		if client.Available.LessThan(target.Amount) {
			return fmt.Errorf("dispute #%d: %w: %s < %s",
				target.TxID, repository.ErrInsufficientFunds, client.Available, target.Amount)
		}
		client.Available = client.Available.Sub(target.Amount)
		client.Held = client.Held.Add(target.Amount)
	case domain.OpWithdrawal:
		// Provisionally re-credit the withdrawn amount into held funds
		// pending adjudication.
		client.Held = client.Held.Add(target.Amount)
		client.Total = client.Total.Add(target.Amount)
	default:
		return fmt.Errorf("dispute #%d: operation %s is not disputable", target.TxID, target.Type)
	}

	return nil
}

func (e *Engine) processResolve(ctx context.Context, op domain.Operation) error {
	client, err := e.clients.GetByID(ctx, op.ClientID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("resolve: %w: client %d", repository.ErrNotFound, op.ClientID)
	}
	if err != nil {
		return err
	}

	target, err := e.disputes.FindByTxID(ctx, op.TxID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("resolve #%d: %w", op.TxID, repository.ErrNotFound)
	}
	if err != nil {
		return err
	}

	// On failure the entry stays in the registry and a later resolve or
	// chargeback may retry it.
	if err := e.applyResolve(client, target); err != nil {
		return err
	}
	if err := e.disputes.RemoveByTxID(ctx, op.TxID); err != nil {
		return err
	}

	return e.verify(client)
}

func (e *Engine) applyResolve(client *domain.Client, target domain.Operation) error {
	if target.ClientID != client.ID {
		return fmt.Errorf("resolve #%d: %w: expected %d, got %d",
			target.TxID, repository.ErrClientMismatch, client.ID, target.ClientID)
	}
	if client.Locked {
		return fmt.Errorf("resolve #%d: %w: client %d", target.TxID, repository.ErrAccountLocked, client.ID)
	}

	switch target.Type {
	case domain.OpDeposit:
		client.Held = client.Held.Sub(target.Amount)
		client.Available = client.Available.Add(target.Amount)
	case domain.OpWithdrawal:
		// Reverts the provisional re-credit; the withdrawal stands.
		client.Held = client.Held.Sub(target.Amount)
		client.Total = client.Total.Sub(target.Amount)
	default:
		return fmt.Errorf("resolve #%d: operation %s is not disputable", target.TxID, target.Type)
	}

	return nil
}

func (e *Engine) processChargeback(ctx context.Context, op domain.Operation) error {
	client, err := e.clients.GetByID(ctx, op.ClientID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("chargeback: %w: client %d", repository.ErrNotFound, op.ClientID)
	}
	if err != nil {
		return err
	}

	target, err := e.disputes.FindByTxID(ctx, op.TxID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("chargeback #%d: %w", op.TxID, repository.ErrNotFound)
	}
	if err != nil {
		return err
	}

	if err := e.applyChargeback(client, target); err != nil {
		return err
	}
	if err := e.disputes.RemoveByTxID(ctx, op.TxID); err != nil {
		return err
	}

	e.logger.Info("Account locked by chargeback",
		slog.Uint64("client", uint64(client.ID)),
		slog.Uint64("tx", uint64(op.TxID)))

	if e.alerts != nil {
		if err := e.alerts.SendAccountLockedAlert(ctx, client, op.TxID); err != nil {
			e.logger.Error("Failed to queue account lock alert",
				slog.Uint64("client", uint64(client.ID)),
				slog.String("error", err.Error()))
		}
	}

	return e.verify(client)
}

func (e *Engine) applyChargeback(client *domain.Client, target domain.Operation) error {
	if target.ClientID != client.ID {
		return fmt.Errorf("chargeback #%d: %w: expected %d, got %d",
			target.TxID, repository.ErrClientMismatch, client.ID, target.ClientID)
	}
	if client.Locked {
		return fmt.Errorf("chargeback #%d: %w: client %d", target.TxID, repository.ErrAccountLocked, client.ID)
	}

	switch target.Type {
	case domain.OpDeposit:
		client.Held = client.Held.Sub(target.Amount)
		client.Total = client.Total.Sub(target.Amount)
	case domain.OpWithdrawal:
		client.Held = client.Held.Sub(target.Amount)
		client.Available = client.Available.Add(target.Amount)
	default:
		return fmt.Errorf("chargeback #%d: operation %s is not disputable", target.TxID, target.Type)
	}

	client.Locked = true
	return nil
}

// verify runs the account invariants after an applied operation. A violation
// means an engine bug and aborts the run.
func (e *Engine) verify(client *domain.Client) error {
	flags, err := e.checker.Inspect(client)
	for _, flag := range flags {
		e.logger.Warn("Account flagged",
			slog.Uint64("client", uint64(client.ID)),
			slog.String("flag", flag))
	}
	return err
}

func (e *Engine) updateGauges(ctx context.Context) {
	clients, err := e.clients.GetAll(ctx)
	if err != nil {
		return
	}

	locked := 0
	for _, c := range clients {
		if c.Locked {
			locked++
		}
	}
	e.metrics.SetClientsTracked(len(clients))
	e.metrics.SetAccountsLocked(locked)
}

// IsRejection reports whether err is a recoverable business-rule rejection,
// as opposed to a fault in the run itself.
func IsRejection(err error) bool {
	return errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, repository.ErrAccountLocked) ||
		errors.Is(err, repository.ErrInsufficientFunds) ||
		errors.Is(err, repository.ErrClientMismatch)
}
