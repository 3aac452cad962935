package enums

import "fmt"

// RentalPaymentStatus tracks payment capture for a rental.
type RentalPaymentStatus string

const (
	RentalPaymentPending   RentalPaymentStatus = "pending"
	RentalPaymentCompleted RentalPaymentStatus = "completed"
	RentalPaymentFailed    RentalPaymentStatus = "failed"
)

var validRentalPaymentStatuses = []RentalPaymentStatus{
	RentalPaymentPending,
	RentalPaymentCompleted,
	RentalPaymentFailed,
}

// String implements fmt.Stringer.
func (s RentalPaymentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s RentalPaymentStatus) IsValid() bool {
	for _, candidate := range validRentalPaymentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRentalPaymentStatus converts raw input into a RentalPaymentStatus.
func ParseRentalPaymentStatus(value string) (RentalPaymentStatus, error) {
	for _, candidate := range validRentalPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid rental payment status %q", value)
}
