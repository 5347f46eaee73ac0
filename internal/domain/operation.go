package domain

import (
	"github.com/shopspring/decimal"
)

type OpType string

const (
	OpDeposit    OpType = "deposit"
	OpWithdrawal OpType = "withdrawal"
	OpDispute    OpType = "dispute"
	OpResolve    OpType = "resolve"
	OpChargeback OpType = "chargeback"
)

// Operation is one parsed record of the input log. It is a tagged union over
// the five operation types: deposits and withdrawals carry an amount, the
// dispute family (dispute, resolve, chargeback) only references the
// transaction id of a prior deposit or withdrawal.
type Operation struct {
	Type     OpType          `json:"type"`
	ClientID uint16          `json:"client"`
	TxID     uint32          `json:"tx"`
	Amount   decimal.Decimal `json:"amount,omitempty"`
}

func NewDeposit(clientID uint16, txID uint32, amount decimal.Decimal) Operation {
	return Operation{Type: OpDeposit, ClientID: clientID, TxID: txID, Amount: amount}
}

func NewWithdrawal(clientID uint16, txID uint32, amount decimal.Decimal) Operation {
	return Operation{Type: OpWithdrawal, ClientID: clientID, TxID: txID, Amount: amount}
}

func NewDispute(clientID uint16, txID uint32) Operation {
	return Operation{Type: OpDispute, ClientID: clientID, TxID: txID}
}

func NewResolve(clientID uint16, txID uint32) Operation {
	return Operation{Type: OpResolve, ClientID: clientID, TxID: txID}
}

func NewChargeback(clientID uint16, txID uint32) Operation {
	return Operation{Type: OpChargeback, ClientID: clientID, TxID: txID}
}

// Disputable reports whether the operation type can itself be the target of
// a dispute. Only deposits and withdrawals enter the journal.
func (op Operation) Disputable() bool {
	return op.Type == OpDeposit || op.Type == OpWithdrawal
}

// HasAmount reports whether the operation type carries an amount field.
func (op Operation) HasAmount() bool {
	return op.Type == OpDeposit || op.Type == OpWithdrawal
}
