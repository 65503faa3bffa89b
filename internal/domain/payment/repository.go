package payment

import "context"

type PaymentBatchRepository interface {
	CreateBatch(ctx context.Context, batch PaymentBatch) (PaymentBatch, error)
	// CreateItems inserts items keeping their Position and returns them ordered by position.
	CreateItems(ctx context.Context, items []PaymentBatchItem) ([]PaymentBatchItem, error)
	GetBatchByID(ctx context.Context, id string) (PaymentBatch, error)
	ListItemsByBatch(ctx context.Context, batchID string) ([]PaymentBatchItem, error)
	ListBatchesByRun(ctx context.Context, runID string) ([]PaymentBatch, error)
}

// Lease guards a run against concurrent dispatches.
type Lease interface {
	Acquire(ctx context.Context, runID string) (release func(), err error)
}
