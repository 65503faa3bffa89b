package payment

import (
	"context"
	"time"
)

type DispatchRequest struct {
	CompanyID       string
	RunID           string
	OriginAccountID string
	PaymentDate     time.Time
}

type DispatchResult struct {
	// NoOp is true when every eligible line was already linked to a batch.
	NoOp      bool
	Batches   []PaymentBatch
	LinesSent int
	// ResumedAfterPartial is true when some lines were linked by an earlier failed attempt.
	ResumedAfterPartial bool
}

// Dispatcher sends the undispatched bank-batch lines of a run to the gateway.
// Calling it again after a full success does nothing.
type Dispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) (DispatchResult, error)
}
