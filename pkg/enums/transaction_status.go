package enums

import "fmt"

// TransactionStatus tracks the state of a point-of-sale transaction.
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusVoided    TransactionStatus = "voided"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusCompleted,
	TransactionStatusVoided,
	TransactionStatusRefunded,
}

// String implements fmt.Stringer.
func (s TransactionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TransactionStatus.
func (s TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
