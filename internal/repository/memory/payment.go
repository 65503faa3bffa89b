package memory

import (
	"context"
	"sort"

	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payment"
)

func (s *Store) CreateBatch(ctx context.Context, batch payment.PaymentBatch) (payment.PaymentBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch.ID = s.nextID("batch")
	batch.CreatedAt = s.now()
	s.data.batches[batch.ID] = batch
	return batch, nil
}

func (s *Store) CreateItems(ctx context.Context, items []payment.PaymentBatchItem) ([]payment.PaymentBatchItem, error) {
	if len(items) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	for _, it := range items {
		it.ID = s.nextID("item")
		it.CreatedAt = s.now()
		s.data.items[it.ID] = it
	}
	s.mu.Unlock()

	return s.ListItemsByBatch(ctx, items[0].BatchID)
}

func (s *Store) GetBatchByID(ctx context.Context, id string) (payment.PaymentBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.data.batches[id]
	if !ok {
		return payment.PaymentBatch{}, payment.ErrBatchNotFound
	}
	return b, nil
}

func (s *Store) ListItemsByBatch(ctx context.Context, batchID string) ([]payment.PaymentBatchItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []payment.PaymentBatchItem
	for _, it := range s.data.items {
		if it.BatchID == batchID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *Store) ListBatchesByRun(ctx context.Context, runID string) ([]payment.PaymentBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []payment.PaymentBatch
	for _, b := range s.data.batches {
		if b.RunID == runID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
