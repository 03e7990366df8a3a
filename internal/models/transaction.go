package models

import "time"

// Transaction types
const (
	TransactionEarn  = "earn"
	TransactionSpend = "spend"
)

// Transaction is a single append-only ledger entry. Rows are never updated
// or deleted; a profile's balance is the running sum of its entries.
type Transaction struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Type        string    `json:"type"`
	Amount      int       `json:"amount"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// SignedAmount returns the amount with the sign implied by the type:
// positive for earn, negative for spend.
func (t *Transaction) SignedAmount() int {
	if t.Type == TransactionSpend {
		return -t.Amount
	}
	return t.Amount
}
