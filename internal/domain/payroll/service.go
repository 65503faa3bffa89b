package payroll

import "context"

type PayrollService interface {
	CreateRun(ctx context.Context, req CreateRunRequest) (RunDetailResponse, error)
	ListRuns(ctx context.Context, filter RunFilter) (ListRunResponse, error)
	GetRun(ctx context.Context, id string) (RunDetailResponse, error)
	DeleteRun(ctx context.Context, id string) error

	AddEmployees(ctx context.Context, req AddEmployeesRequest) (RunDetailResponse, error)
	RemoveEmployee(ctx context.Context, runID string, lineID string) (RunDetailResponse, error)
	UpdateLine(ctx context.Context, req UpdateLineRequest) (LineResponse, error)
	MarkLinePayment(ctx context.Context, req MarkPaymentRequest) (LineResponse, error)

	Finalize(ctx context.Context, req FinalizeRequest) (RunDetailResponse, error)
	Reopen(ctx context.Context, id string) (RunDetailResponse, error)
	Release(ctx context.Context, id string) (RunDetailResponse, error)
	Reprocess(ctx context.Context, id string) (RunDetailResponse, error)
	Cancel(ctx context.Context, id string) (RunDetailResponse, error)
}
