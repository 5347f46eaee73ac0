package domain

import (
	"github.com/shopspring/decimal"
)

// Client is the balance record for a single account. It is the system of
// record for the funds a client can spend (Available), the funds frozen
// pending dispute adjudication (Held), and their sum (Total).
type Client struct {
	ID        uint16          `json:"client"`
	Available decimal.Decimal `json:"available"`
	Held      decimal.Decimal `json:"held"`
	Total     decimal.Decimal `json:"total"`
	Locked    bool            `json:"locked"`
}

// NewClient creates a client record from its first deposit. Clients only
// come into existence through a deposit, so the initial available and total
// balances are the deposit amount.
func NewClient(id uint16, initial decimal.Decimal) *Client {
	return &Client{
		ID:        id,
		Available: initial,
		Held:      decimal.Zero,
		Total:     initial,
	}
}
