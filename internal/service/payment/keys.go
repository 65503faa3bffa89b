package payment

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payment"
	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/validator"
	"github.com/google/uuid"
)

const (
	defaultCountryCode = "55"
	maxReferenceLength = 140
)

var (
	errInvalidPhoneKey  = errors.New("phone key must have 10 or 11 digits, or a +country prefix")
	errInvalidEmailKey  = errors.New("email key is not a valid address")
	errInvalidTaxIDKey  = errors.New("tax id key must have 11 or 14 digits")
	errInvalidRandomKey = errors.New("random key is not a valid uuid")
	errUnknownKeyType   = errors.New("unknown payment key type")
)

// shapeKey turns a stored payment key into the form the bank expects for its type.
func shapeKey(keyType employee.PaymentKeyType, raw string) (payment.TransferKey, error) {
	raw = strings.TrimSpace(raw)

	var value string
	switch keyType {
	case employee.PaymentKeyPhone:
		digits := validator.DigitsOnly(raw)
		switch {
		case strings.HasPrefix(raw, "+") && len(digits) >= 8 && len(digits) <= 15:
			value = "+" + digits
		case !strings.HasPrefix(raw, "+") && (len(digits) == 10 || len(digits) == 11):
			value = "+" + defaultCountryCode + digits
		default:
			return payment.TransferKey{}, errInvalidPhoneKey
		}
	case employee.PaymentKeyEmail:
		value = strings.ToLower(raw)
		if !validator.IsValidEmail(value) {
			return payment.TransferKey{}, errInvalidEmailKey
		}
	case employee.PaymentKeyTaxID:
		if !validator.IsValidTaxID(raw) {
			return payment.TransferKey{}, errInvalidTaxIDKey
		}
		value = validator.DigitsOnly(raw)
	case employee.PaymentKeyRandom:
		id, err := uuid.Parse(raw)
		if err != nil {
			return payment.TransferKey{}, errInvalidRandomKey
		}
		value = id.String()
	default:
		return payment.TransferKey{}, fmt.Errorf("%w: %q", errUnknownKeyType, keyType)
	}

	return payment.TransferKey{Type: keyType, Value: value}, nil
}

// transferReference is the description the employee sees on the bank statement.
func transferReference(run payroll.PayrollRun, employeeName string) string {
	ref := fmt.Sprintf("Payroll %02d/%04d Q%d - %s", run.PeriodMonth, run.PeriodYear, run.Fortnight, strings.TrimSpace(employeeName))
	if utf8.RuneCountInString(ref) <= maxReferenceLength {
		return ref
	}
	return string([]rune(ref)[:maxReferenceLength])
}
