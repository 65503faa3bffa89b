package payroll

import "context"

// PayrollRunRepository persists runs. All reads are scoped by companyID.
type PayrollRunRepository interface {
	CreateRun(ctx context.Context, run PayrollRun) (PayrollRun, error)
	GetRunByID(ctx context.Context, id string, companyID string) (PayrollRun, error)
	// GetRunByIDForUpdate locks the run row until the surrounding transaction ends.
	GetRunByIDForUpdate(ctx context.Context, id string, companyID string) (PayrollRun, error)
	ListRuns(ctx context.Context, companyID string, filter RunFilter) ([]PayrollRun, int64, error)
	UpdateRun(ctx context.Context, run PayrollRun) error
	DeleteRun(ctx context.Context, id string, companyID string) error
}

// PayrollLineRepository is the line store owned by the run manager.
// Lines are always addressed through their run.
type PayrollLineRepository interface {
	CreateLines(ctx context.Context, lines []PayrollLine) ([]PayrollLine, error)
	GetLineByID(ctx context.Context, id string, runID string) (PayrollLine, error)
	ListLinesByRun(ctx context.Context, runID string) ([]PayrollLine, error)
	// ListUnpaidByMethod returns unpaid lines of the run using method, ordered by
	// employee name then id. Both linked and unlinked lines are returned.
	ListUnpaidByMethod(ctx context.Context, runID string, method PaymentMethod) ([]PayrollLine, error)
	UpdateLine(ctx context.Context, line PayrollLine) error
	DeleteLine(ctx context.Context, id string, runID string) error
	DeleteLinesByRun(ctx context.Context, runID string) error
	// LinkBatchItem sets the batch item reference only if the line is still unlinked.
	LinkBatchItem(ctx context.Context, lineID string, batchItemID string, status PaymentStatus) error
}
