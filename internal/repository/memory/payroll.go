package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payment"
	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payroll"
)

func (s *Store) CreateRun(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.data.runs {
		if r.CompanyID == run.CompanyID && r.PeriodMonth == run.PeriodMonth &&
			r.PeriodYear == run.PeriodYear && r.Fortnight == run.Fortnight {
			return payroll.PayrollRun{}, payroll.ErrDuplicatePeriod
		}
	}

	run.ID = s.nextID("run")
	now := s.now()
	run.CreatedAt, run.UpdatedAt = now, now
	s.data.runs[run.ID] = run
	return run, nil
}

func (s *Store) GetRunByID(ctx context.Context, id string, companyID string) (payroll.PayrollRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.data.runs[id]
	if !ok || run.CompanyID != companyID {
		return payroll.PayrollRun{}, payroll.ErrRunNotFound
	}
	return run, nil
}

// GetRunByIDForUpdate relies on the store serialising transactions.
func (s *Store) GetRunByIDForUpdate(ctx context.Context, id string, companyID string) (payroll.PayrollRun, error) {
	return s.GetRunByID(ctx, id, companyID)
}

func (s *Store) ListRuns(ctx context.Context, companyID string, filter payroll.RunFilter) ([]payroll.PayrollRun, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []payroll.PayrollRun
	for _, r := range s.data.runs {
		if r.CompanyID != companyID {
			continue
		}
		if filter.PeriodMonth != nil && r.PeriodMonth != *filter.PeriodMonth {
			continue
		}
		if filter.PeriodYear != nil && r.PeriodYear != *filter.PeriodYear {
			continue
		}
		if filter.Status != nil && string(r.Status) != *filter.Status {
			continue
		}
		matched = append(matched, r)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.PeriodYear != b.PeriodYear {
			return a.PeriodYear > b.PeriodYear
		}
		if a.PeriodMonth != b.PeriodMonth {
			return a.PeriodMonth > b.PeriodMonth
		}
		return a.Fortnight > b.Fortnight
	})

	filter.Normalize()
	total := int64(len(matched))
	start := (filter.Page - 1) * filter.Limit
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *Store) UpdateRun(ctx context.Context, run payroll.PayrollRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data.runs[run.ID]
	if !ok || existing.CompanyID != run.CompanyID {
		return payroll.ErrRunNotFound
	}
	run.CreatedAt = existing.CreatedAt
	run.UpdatedAt = s.now()
	s.data.runs[run.ID] = run
	return nil
}

func (s *Store) DeleteRun(ctx context.Context, id string, companyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.data.runs[id]
	if !ok || run.CompanyID != companyID {
		return payroll.ErrRunNotFound
	}
	delete(s.data.runs, id)
	for lid, l := range s.data.lines {
		if l.RunID == id {
			delete(s.data.lines, lid)
		}
	}
	return nil
}

func (s *Store) CreateLines(ctx context.Context, lines []payroll.PayrollLine) ([]payroll.PayrollLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := make([]payroll.PayrollLine, 0, len(lines))
	for _, l := range lines {
		for _, existing := range s.data.lines {
			if existing.RunID == l.RunID && existing.EmployeeID == l.EmployeeID {
				return nil, fmt.Errorf("%w: employee %s", payroll.ErrEmployeeAlreadyInRun, l.EmployeeID)
			}
		}
		l.ID = s.nextID("line")
		now := s.now()
		l.CreatedAt, l.UpdatedAt = now, now
		s.data.lines[l.ID] = l
		created = append(created, l)
	}
	return created, nil
}

func (s *Store) GetLineByID(ctx context.Context, id string, runID string) (payroll.PayrollLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.data.lines[id]
	if !ok || l.RunID != runID {
		return payroll.PayrollLine{}, payroll.ErrLineNotFound
	}
	return l, nil
}

func (s *Store) ListLinesByRun(ctx context.Context, runID string) ([]payroll.PayrollLine, error) {
	return s.listLines(func(l payroll.PayrollLine) bool { return l.RunID == runID }), nil
}

func (s *Store) ListUnpaidByMethod(ctx context.Context, runID string, method payroll.PaymentMethod) ([]payroll.PayrollLine, error) {
	return s.listLines(func(l payroll.PayrollLine) bool {
		return l.RunID == runID && l.PaymentMethod == method && !l.Paid
	}), nil
}

func (s *Store) listLines(match func(payroll.PayrollLine) bool) []payroll.PayrollLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []payroll.PayrollLine
	for _, l := range s.data.lines {
		if match(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeName != out[j].EmployeeName {
			return out[i].EmployeeName < out[j].EmployeeName
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) UpdateLine(ctx context.Context, line payroll.PayrollLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data.lines[line.ID]
	if !ok || existing.RunID != line.RunID {
		return payroll.ErrLineNotFound
	}
	// batch item links are only written through LinkBatchItem
	line.BatchItemID = existing.BatchItemID
	line.CreatedAt = existing.CreatedAt
	line.UpdatedAt = s.now()
	s.data.lines[line.ID] = line
	return nil
}

func (s *Store) DeleteLine(ctx context.Context, id string, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.data.lines[id]
	if !ok || l.RunID != runID {
		return payroll.ErrLineNotFound
	}
	delete(s.data.lines, id)
	return nil
}

func (s *Store) DeleteLinesByRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, l := range s.data.lines {
		if l.RunID == runID {
			delete(s.data.lines, id)
		}
	}
	return nil
}

func (s *Store) LinkBatchItem(ctx context.Context, lineID string, batchItemID string, status payroll.PaymentStatus) error {
	if s.BeforeLink != nil {
		if err := s.BeforeLink(lineID); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.data.lines[lineID]
	if !ok {
		return payroll.ErrLineNotFound
	}
	if l.BatchItemID != nil {
		return fmt.Errorf("%w: line %s", payment.ErrLineAlreadyLinked, lineID)
	}
	l.BatchItemID = &batchItemID
	l.PaymentStatus = status
	l.UpdatedAt = s.now()
	s.data.lines[lineID] = l
	return nil
}
