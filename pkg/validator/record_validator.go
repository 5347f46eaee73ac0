package validator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"ledger_engine/internal/domain"
)

var (
	ErrUnknownType   = errors.New("unknown operation type")
	ErrMissingAmount = errors.New("missing amount")
)

// amountDigits is the fixed-point precision of ledger amounts. Input values
// are truncated, not rounded, to this many fractional digits.
const amountDigits = 4

// Record is one raw input record after field parsing but before business
// validation. Amount is nil when the column was absent or empty.
type Record struct {
	Type   string
	Client uint16
	Tx     uint32
	Amount *decimal.Decimal
}

type OperationValidator struct{}

func NewOperationValidator() *OperationValidator {
	return &OperationValidator{}
}

// Validate checks a raw record and converts it into an Operation. Deposits
// and withdrawals must carry an amount; the dispute family ignores one if
// present.
func (v *OperationValidator) Validate(rec Record) (domain.Operation, error) {
	op := domain.Operation{
		Type:     domain.OpType(rec.Type),
		ClientID: rec.Client,
		TxID:     rec.Tx,
	}

	switch op.Type {
	case domain.OpDeposit, domain.OpWithdrawal, domain.OpDispute, domain.OpResolve, domain.OpChargeback:
	default:
		return domain.Operation{}, fmt.Errorf("%w: %q", ErrUnknownType, rec.Type)
	}

	if op.HasAmount() {
		if rec.Amount == nil {
			return domain.Operation{}, fmt.Errorf("%s #%d: %w", rec.Type, rec.Tx, ErrMissingAmount)
		}
		op.Amount = Truncate(*rec.Amount)
	}

	return op, nil
}

// Truncate trims an amount toward zero to the ledger's fixed precision.
func Truncate(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(amountDigits)
}
