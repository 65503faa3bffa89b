package payment

import "context"

// Gateway submits transfer batches to the bank. Transfers are processed by the
// bank in the order given.
type Gateway interface {
	SubmitTransferBatch(ctx context.Context, originAccountID string, transfers []Transfer) (batchID string, err error)
}
