package employee

import "context"

// EmployeeRepository gives payroll read access to employee contract data.
// All methods are scoped by companyID.
type EmployeeRepository interface {
	GetByID(ctx context.Context, id string, companyID string) (Employee, error)
	GetByIDs(ctx context.Context, ids []string, companyID string) ([]Employee, error)
	GetActiveByCompanyID(ctx context.Context, companyID string) ([]Employee, error)
}
