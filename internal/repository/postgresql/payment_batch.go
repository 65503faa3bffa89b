package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payment"
	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/validator"
	"github.com/jackc/pgx/v5"
)

type paymentBatchRepository struct {
	db *database.DB
}

func NewPaymentBatchRepository(db *database.DB) payment.PaymentBatchRepository {
	return &paymentBatchRepository{db: db}
}

const batchColumns = `id, company_id, run_id, external_id, origin_account_id, transfer_count, total_amount, created_at`

const batchItemColumns = `id, batch_id, line_id, position, amount, key_type, key_value, reference, created_at`

func scanBatch(row pgx.Row) (payment.PaymentBatch, error) {
	var b payment.PaymentBatch
	err := row.Scan(&b.ID, &b.CompanyID, &b.RunID, &b.ExternalID, &b.OriginAccountID, &b.TransferCount, &b.TotalAmount, &b.CreatedAt)
	return b, err
}

func scanBatchItem(row pgx.Row) (payment.PaymentBatchItem, error) {
	var i payment.PaymentBatchItem
	err := row.Scan(&i.ID, &i.BatchID, &i.LineID, &i.Position, &i.Amount, &i.KeyType, &i.KeyValue, &i.Reference, &i.CreatedAt)
	return i, err
}

func (r *paymentBatchRepository) CreateBatch(ctx context.Context, batch payment.PaymentBatch) (payment.PaymentBatch, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payment_batches (company_id, run_id, external_id, origin_account_id, transfer_count, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + batchColumns

	created, err := scanBatch(q.QueryRow(ctx, query,
		batch.CompanyID, batch.RunID, batch.ExternalID, batch.OriginAccountID, batch.TransferCount, batch.TotalAmount,
	))
	if err != nil {
		return payment.PaymentBatch{}, fmt.Errorf("failed to create payment batch: %w", err)
	}

	return created, nil
}

func (r *paymentBatchRepository) CreateItems(ctx context.Context, items []payment.PaymentBatchItem) ([]payment.PaymentBatchItem, error) {
	if len(items) == 0 {
		return nil, nil
	}

	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payment_batch_items (batch_id, line_id, position, amount, key_type, key_value, reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, it := range items {
		if _, err := q.Exec(ctx, query, it.BatchID, it.LineID, it.Position, it.Amount, it.KeyType, it.KeyValue, it.Reference); err != nil {
			return nil, fmt.Errorf("failed to create payment batch item: %w", err)
		}
	}

	return r.ListItemsByBatch(ctx, items[0].BatchID)
}

func (r *paymentBatchRepository) GetBatchByID(ctx context.Context, id string) (payment.PaymentBatch, error) {
	if !validator.IsValidUUID(id) {
		return payment.PaymentBatch{}, payment.ErrBatchNotFound
	}

	q := GetQuerier(ctx, r.db)

	batch, err := scanBatch(q.QueryRow(ctx, `SELECT `+batchColumns+` FROM payment_batches WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payment.PaymentBatch{}, payment.ErrBatchNotFound
		}
		return payment.PaymentBatch{}, fmt.Errorf("failed to get payment batch: %w", err)
	}

	return batch, nil
}

func (r *paymentBatchRepository) ListItemsByBatch(ctx context.Context, batchID string) ([]payment.PaymentBatchItem, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT `+batchItemColumns+` FROM payment_batch_items WHERE batch_id = $1 ORDER BY position`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment batch items: %w", err)
	}
	defer rows.Close()

	var items []payment.PaymentBatchItem
	for rows.Next() {
		item, err := scanBatchItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment batch item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment batch items: %w", err)
	}

	return items, nil
}

func (r *paymentBatchRepository) ListBatchesByRun(ctx context.Context, runID string) ([]payment.PaymentBatch, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT `+batchColumns+` FROM payment_batches WHERE run_id = $1 ORDER BY created_at, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment batches: %w", err)
	}
	defer rows.Close()

	var batches []payment.PaymentBatch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment batch: %w", err)
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment batches: %w", err)
	}

	return batches, nil
}
