package payroll

import "time"

// PaymentStatusChange is a requested change to a line's payment state.
// Either field may be nil.
type PaymentStatusChange struct {
	Status   *PaymentStatus
	Paid     *bool
	PaidDate *time.Time
}

// PaymentStatusUpdate is the consistent tuple to write. Nil fields are left unchanged.
type PaymentStatusUpdate struct {
	Status        *PaymentStatus
	Paid          *bool
	PaidDate      *time.Time
	ClearPaidDate bool
}

// ResolvePaymentStatus maps a requested change onto (status, paid, paid date).
// It never fails: unknown combinations leave the paid fields unset.
func ResolvePaymentStatus(change PaymentStatusChange, now time.Time) PaymentStatusUpdate {
	var u PaymentStatusUpdate

	if change.Status != nil {
		status := *change.Status
		u.Status = &status

		switch status {
		case PaymentStatusPaid, PaymentStatusProcessing, PaymentStatusAccepted:
			u.setPaid(change.PaidDate, now)
		case PaymentStatusCancelled, PaymentStatusRejected, PaymentStatusError:
			u.setUnpaid()
		}
	}

	// explicit flag wins over whatever the status implied
	if change.Paid != nil {
		if *change.Paid {
			u.setPaid(change.PaidDate, now)
		} else {
			u.setUnpaid()
		}
	}

	return u
}

func (u *PaymentStatusUpdate) setPaid(date *time.Time, now time.Time) {
	paid := true
	d := now
	if date != nil {
		d = *date
	}
	u.Paid = &paid
	u.PaidDate = &d
	u.ClearPaidDate = false
}

func (u *PaymentStatusUpdate) setUnpaid() {
	paid := false
	u.Paid = &paid
	u.PaidDate = nil
	u.ClearPaidDate = true
}
