package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/AlisonTamayo/BancoArcbank/internal/models"
)

// Repository persists transaction records. The transactions table carries a
// UNIQUE constraint on reference; CreateTransaction surfaces a violation as
// models.ErrDuplicateReference so callers can treat the insert race as
// "already applied".
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const transactionColumns = `
	id, reference, type, state, amount, currency,
	source_account_id, dest_account_id, external_account, external_bank_id,
	resulting_balance, resulting_balance_dest, reversal_of_id,
	description, channel, created_at
`

// Nullable text columns come back coalesced so they scan straight into the
// model's plain strings.
const selectTransactionColumns = `
	id, reference, type, state, amount, currency,
	source_account_id, dest_account_id,
	COALESCE(external_account, ''), COALESCE(external_bank_id, ''),
	resulting_balance, resulting_balance_dest, reversal_of_id,
	COALESCE(description, ''), channel, created_at
`

// CreateTransaction inserts a new record, assigning the id when absent.
func (r *Repository) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	return createTransaction(ctx, r.db, t)
}

func createTransaction(ctx context.Context, q querier, t *models.Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
		RETURNING created_at
	`
	err := q.QueryRow(ctx, query,
		t.ID, t.Reference, t.Type, t.State, t.Amount, t.Currency,
		t.SourceAccountID, t.DestAccountID, nullIfEmpty(t.ExternalAccount), nullIfEmpty(t.ExternalBankID),
		t.ResultingBalance, t.ResultingBalanceDest, t.ReversalOfID,
		nullIfEmpty(t.Description), t.Channel,
	).Scan(&t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrDuplicateReference
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetTransaction loads a record by id.
func (r *Repository) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + ` FROM transactions WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

// GetTransactionByReference loads a record by its external correlation token.
// Returns models.ErrTransactionNotFound when no row matches.
func (r *Repository) GetTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + ` FROM transactions WHERE reference = $1`
	return r.scanOne(ctx, query, reference)
}

// UpdateTransactionState flips the lifecycle flag and rewrites the
// description (used for the reversal audit suffix).
func (r *Repository) UpdateTransactionState(ctx context.Context, id uuid.UUID, state domainState, description string) error {
	return updateTransactionState(ctx, r.db, id, state, description)
}

func updateTransactionState(ctx context.Context, q querier, id uuid.UUID, state domainState, description string) error {
	tag, err := q.Exec(ctx,
		`UPDATE transactions SET state = $1, description = $2 WHERE id = $3`,
		state, nullIfEmpty(description), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction state: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update transaction state affected %d rows", tag.RowsAffected())
	}
	return nil
}

// CompleteTransaction flips a PENDING claim to its final state and stores the
// balance snapshots taken while applying the legs.
func (r *Repository) CompleteTransaction(ctx context.Context, id uuid.UUID, state domainState, resultingBalance, resultingBalanceDest *decimal.Decimal) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE transactions SET state = $1, resulting_balance = $2, resulting_balance_dest = $3 WHERE id = $4`,
		state, resultingBalance, resultingBalanceDest, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete transaction: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("complete transaction affected %d rows", tag.RowsAffected())
	}
	return nil
}

// DeleteTransaction removes a PENDING claim after the saga unwound cleanly,
// releasing the reference for a client retry. Never called once money moved
// and stayed moved.
func (r *Repository) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM transactions WHERE id = $1 AND state = 'PENDING'`, id); err != nil {
		return fmt.Errorf("failed to delete transaction claim: %w", err)
	}
	return nil
}

// CreateReversalAndMarkOriginal persists the reversal leg and flips the
// original to its terminal state inside one database transaction, so a crash
// between the two writes cannot leave a reversal row without a terminal
// original.
func (r *Repository) CreateReversalAndMarkOriginal(ctx context.Context, reversal *models.Transaction, originalID uuid.UUID, originalState domainState, originalDescription string) error {
	return r.runInTx(ctx, func(tx pgx.Tx) error {
		if err := createTransaction(ctx, tx, reversal); err != nil {
			return err
		}
		return updateTransactionState(ctx, tx, originalID, originalState, originalDescription)
	})
}

// ListTransactionsByAccount returns every movement touching the account as
// source or destination, newest first.
func (r *Repository) ListTransactionsByAccount(ctx context.Context, accountID int64) ([]models.Transaction, error) {
	query := `
		SELECT ` + selectTransactionColumns + `
		FROM transactions
		WHERE source_account_id = $1 OR dest_account_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// ListStuckPending returns PENDING records older than cutoff. The saga
// completes or compensates synchronously, so anything still PENDING after the
// cutoff indicates a crash mid-flight and needs operator attention.
func (r *Repository) ListStuckPending(ctx context.Context, cutoff time.Time, limit int32) ([]models.Transaction, error) {
	query := `
		SELECT ` + selectTransactionColumns + `
		FROM transactions
		WHERE state = 'PENDING' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck pending transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (r *Repository) scanOne(ctx context.Context, query string, arg any) (*models.Transaction, error) {
	t := &models.Transaction{}
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&t.ID, &t.Reference, &t.Type, &t.State, &t.Amount, &t.Currency,
		&t.SourceAccountID, &t.DestAccountID, &t.ExternalAccount, &t.ExternalBankID,
		&t.ResultingBalance, &t.ResultingBalanceDest, &t.ReversalOfID,
		&t.Description, &t.Channel, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

func scanTransactions(rows pgx.Rows) ([]models.Transaction, error) {
	var out []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(
			&t.ID, &t.Reference, &t.Type, &t.State, &t.Amount, &t.Currency,
			&t.SourceAccountID, &t.DestAccountID, &t.ExternalAccount, &t.ExternalBankID,
			&t.ResultingBalance, &t.ResultingBalanceDest, &t.ReversalOfID,
			&t.Description, &t.Channel, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
