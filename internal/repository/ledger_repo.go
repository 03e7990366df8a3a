package repository

import (
	"fmt"

	"aether/internal/database"
	"aether/internal/models"
)

// LedgerRepository handles database operations for coin transactions.
// Every balance change goes through here so the transactions table stays
// the authoritative record of each profile's balance.
type LedgerRepository struct {
	db *database.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// ListTransactionsForUser retrieves a user's transactions, newest first
func (r *LedgerRepository) ListTransactionsForUser(userID int64, limit int) ([]models.Transaction, error) {
	query := `
		SELECT id, user_id, type, amount, description, created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := r.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// Grant credits coins to a user and records an earn transaction.
// Returns the new balance.
func (r *LedgerRepository) Grant(userID int64, amount int, description string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive, got %d", amount)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := "UPDATE profiles SET balance = balance + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	if _, err := tx.Exec(query, amount, userID); err != nil {
		return 0, fmt.Errorf("failed to credit balance: %w", err)
	}

	query = "INSERT INTO transactions (user_id, type, amount, description) VALUES (?, ?, ?, ?)"
	if _, err := tx.Exec(query, userID, models.TransactionEarn, amount, description); err != nil {
		return 0, fmt.Errorf("failed to record transaction: %w", err)
	}

	var balance int
	if err := tx.QueryRow("SELECT balance FROM profiles WHERE id = ?", userID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return balance, nil
}

// Spend debits coins from a user and records a spend transaction. The
// debit is guarded so a balance can never go below zero, even under
// concurrent spends. Returns the new balance.
func (r *LedgerRepository) Spend(userID int64, amount int, description string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("spend amount must be positive, got %d", amount)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE profiles SET balance = balance - ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND balance >= ?
	`
	result, err := tx.Exec(query, amount, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("failed to debit balance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check debit: %w", err)
	}
	if affected == 0 {
		return 0, ErrInsufficientBalance
	}

	query = "INSERT INTO transactions (user_id, type, amount, description) VALUES (?, ?, ?, ?)"
	if _, err := tx.Exec(query, userID, models.TransactionSpend, amount, description); err != nil {
		return 0, fmt.Errorf("failed to record transaction: %w", err)
	}

	var balance int
	if err := tx.QueryRow("SELECT balance FROM profiles WHERE id = ?", userID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return balance, nil
}

// LedgerSum returns earns minus spends for a user, computed from the
// transactions table. Used by the audit tool to check balances.
func (r *LedgerRepository) LedgerSum(userID int64) (int, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE -amount END), 0)
		FROM transactions
		WHERE user_id = ?
	`
	var sum int
	if err := r.db.QueryRow(query, models.TransactionEarn, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum ledger: %w", err)
	}
	return sum, nil
}
