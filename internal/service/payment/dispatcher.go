package payment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payment"
	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/database"
	"github.com/shopspring/decimal"
)

// DefaultMaxTransfersPerBatch is the gateway's limit of transfers per call.
const DefaultMaxTransfersPerBatch = 320

type Config struct {
	MaxTransfersPerBatch int
	GatewayTimeout       time.Duration
}

type DispatcherImpl struct {
	logger       *slog.Logger
	tx           database.Transactor
	runRepo      payroll.PayrollRunRepository
	lineRepo     payroll.PayrollLineRepository
	employeeRepo employee.EmployeeRepository
	batchRepo    payment.PaymentBatchRepository
	gateway      payment.Gateway
	cfg          Config
}

func NewDispatcher(
	logger *slog.Logger,
	tx database.Transactor,
	runRepo payroll.PayrollRunRepository,
	lineRepo payroll.PayrollLineRepository,
	employeeRepo employee.EmployeeRepository,
	batchRepo payment.PaymentBatchRepository,
	gateway payment.Gateway,
	cfg Config,
) payment.Dispatcher {
	if cfg.MaxTransfersPerBatch <= 0 {
		cfg.MaxTransfersPerBatch = DefaultMaxTransfersPerBatch
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DispatcherImpl{
		logger:       logger,
		tx:           tx,
		runRepo:      runRepo,
		lineRepo:     lineRepo,
		employeeRepo: employeeRepo,
		batchRepo:    batchRepo,
		gateway:      gateway,
		cfg:          cfg,
	}
}

func (d *DispatcherImpl) Dispatch(ctx context.Context, req payment.DispatchRequest) (payment.DispatchResult, error) {
	run, err := d.runRepo.GetRunByID(ctx, req.RunID, req.CompanyID)
	if err != nil {
		return payment.DispatchResult{}, err
	}

	unpaid, err := d.lineRepo.ListUnpaidByMethod(ctx, req.RunID, payroll.PaymentMethodBankBatch)
	if err != nil {
		return payment.DispatchResult{}, err
	}

	candidates := make([]payroll.PayrollLine, 0, len(unpaid))
	linked := 0
	for _, l := range unpaid {
		if l.IsDispatched() {
			linked++
			continue
		}
		candidates = append(candidates, l)
	}

	if len(candidates) == 0 {
		d.logger.InfoContext(ctx, "nothing to dispatch", "run_id", req.RunID, "linked_lines", linked)
		return payment.DispatchResult{NoOp: true}, nil
	}

	result := payment.DispatchResult{ResumedAfterPartial: linked > 0}
	if linked > 0 {
		d.logger.WarnContext(ctx, "run was partially dispatched before, sending remaining lines",
			"run_id", req.RunID, "linked_lines", linked, "pending_lines", len(candidates))
	}

	transfers, err := d.buildTransfers(ctx, run, candidates)
	if err != nil {
		return payment.DispatchResult{}, err
	}

	chunks := chunkTransfers(transfers, d.cfg.MaxTransfersPerBatch)
	for i, chunk := range chunks {
		batchID, err := d.submit(ctx, req.OriginAccountID, chunk)
		if err != nil {
			d.logger.ErrorContext(ctx, "gateway rejected transfer batch",
				"run_id", req.RunID, "chunk", i+1, "chunks", len(chunks), "lines_sent", result.LinesSent, "error", err)
			return result, &payment.DispatchError{
				Stage:           payment.StageGateway,
				FailedChunk:     i + 1,
				TotalChunks:     len(chunks),
				ChunksCommitted: i,
				LinesSent:       result.LinesSent,
				LinesPending:    len(transfers) - result.LinesSent,
				Cause:           err,
			}
		}

		batch, err := d.recordChunk(ctx, req, batchID, chunk)
		if err != nil {
			d.logger.ErrorContext(ctx, "bank accepted batch but it could not be recorded",
				"run_id", req.RunID, "external_batch_id", batchID, "chunk", i+1, "error", err)
			return result, &payment.DispatchError{
				Stage:           payment.StageRecord,
				ExternalBatchID: batchID,
				FailedChunk:     i + 1,
				TotalChunks:     len(chunks),
				ChunksCommitted: i,
				LinesSent:       result.LinesSent,
				LinesPending:    len(transfers) - result.LinesSent,
				Cause:           err,
			}
		}

		result.Batches = append(result.Batches, batch)
		result.LinesSent += len(chunk)
		d.logger.InfoContext(ctx, "transfer batch dispatched",
			"run_id", req.RunID, "batch_id", batch.ID, "external_batch_id", batchID,
			"chunk", i+1, "chunks", len(chunks), "transfers", len(chunk))
	}

	return result, nil
}

// buildTransfers validates every candidate and returns one transfer per line
// in candidate order. All problems are reported together.
func (d *DispatcherImpl) buildTransfers(ctx context.Context, run payroll.PayrollRun, lines []payroll.PayrollLine) ([]payment.Transfer, error) {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.EmployeeID)
	}

	employees, err := d.employeeRepo.GetByIDs(ctx, ids, run.CompanyID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]employee.Employee, len(employees))
	for _, e := range employees {
		byID[e.ID] = e
	}

	var invalid []payment.InvalidLine
	transfers := make([]payment.Transfer, 0, len(lines))
	for _, l := range lines {
		var reasons []string
		var key payment.TransferKey

		emp, ok := byID[l.EmployeeID]
		switch {
		case !ok:
			reasons = append(reasons, "employee not found")
		case !emp.HasPaymentKey():
			reasons = append(reasons, "missing payment key")
		default:
			shaped, err := shapeKey(*emp.PaymentKeyType, *emp.PaymentKey)
			if err != nil {
				reasons = append(reasons, err.Error())
			}
			key = shaped
		}
		if !l.NetAmount.IsPositive() {
			reasons = append(reasons, "net amount must be positive")
		}

		if len(reasons) > 0 {
			invalid = append(invalid, payment.InvalidLine{
				LineID:       l.ID,
				EmployeeID:   l.EmployeeID,
				EmployeeName: l.EmployeeName,
				Reason:       strings.Join(reasons, "; "),
			})
			continue
		}

		transfers = append(transfers, payment.Transfer{
			LineID:    l.ID,
			Amount:    l.NetAmount,
			Reference: transferReference(run, l.EmployeeName),
			Key:       key,
		})
	}

	if len(invalid) > 0 {
		return nil, &payment.ValidationFailure{Lines: invalid}
	}
	return transfers, nil
}

func (d *DispatcherImpl) submit(ctx context.Context, originAccountID string, chunk []payment.Transfer) (string, error) {
	if d.cfg.GatewayTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.GatewayTimeout)
		defer cancel()
	}
	return d.gateway.SubmitTransferBatch(ctx, originAccountID, chunk)
}

// recordChunk stores the accepted batch, links item i to the line of transfer i
// and returns the batch as stored.
func (d *DispatcherImpl) recordChunk(ctx context.Context, req payment.DispatchRequest, externalID string, chunk []payment.Transfer) (payment.PaymentBatch, error) {
	var batch payment.PaymentBatch

	err := d.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		total := decimal.Zero
		for _, t := range chunk {
			total = total.Add(t.Amount)
		}

		created, err := d.batchRepo.CreateBatch(ctx, payment.PaymentBatch{
			CompanyID:       req.CompanyID,
			RunID:           req.RunID,
			ExternalID:      externalID,
			OriginAccountID: req.OriginAccountID,
			TransferCount:   len(chunk),
			TotalAmount:     total,
		})
		if err != nil {
			return err
		}

		items := make([]payment.PaymentBatchItem, 0, len(chunk))
		for i, t := range chunk {
			items = append(items, payment.PaymentBatchItem{
				BatchID:   created.ID,
				LineID:    t.LineID,
				Position:  i,
				Amount:    t.Amount,
				KeyType:   t.Key.Type,
				KeyValue:  t.Key.Value,
				Reference: t.Reference,
			})
		}

		stored, err := d.batchRepo.CreateItems(ctx, items)
		if err != nil {
			return err
		}
		if len(stored) != len(chunk) {
			return fmt.Errorf("%w: submitted %d, stored %d", payment.ErrItemCountMismatch, len(chunk), len(stored))
		}

		for i, t := range chunk {
			if stored[i].LineID != t.LineID {
				return fmt.Errorf("%w: position %d holds line %s, expected %s",
					payment.ErrItemCountMismatch, i, stored[i].LineID, t.LineID)
			}
			if err := d.lineRepo.LinkBatchItem(ctx, t.LineID, stored[i].ID, payroll.PaymentStatusSent); err != nil {
				return err
			}
		}

		batch, err = d.batchRepo.GetBatchByID(ctx, created.ID)
		return err
	})
	if err != nil {
		return payment.PaymentBatch{}, err
	}

	return batch, nil
}

func chunkTransfers(transfers []payment.Transfer, size int) [][]payment.Transfer {
	var chunks [][]payment.Transfer
	for start := 0; start < len(transfers); start += size {
		end := start + size
		if end > len(transfers) {
			end = len(transfers)
		}
		chunks = append(chunks, transfers[start:end])
	}
	return chunks
}
