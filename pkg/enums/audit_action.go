package enums

import "fmt"

// AuditAction identifies a recorded payment lifecycle event.
type AuditAction string

const (
	AuditActionIntentCreated           AuditAction = "INTENT_CREATED"
	AuditActionIntentExpired           AuditAction = "INTENT_EXPIRED"
	AuditActionCallbackProcessed       AuditAction = "CALLBACK_PROCESSED"
	AuditActionCallbackRejected        AuditAction = "CALLBACK_REJECTED"
	AuditActionCallbackUnknownRequest  AuditAction = "CALLBACK_UNKNOWN_REQUEST"
	AuditActionCallbackReplayDetected  AuditAction = "CALLBACK_REPLAY_DETECTED"
	AuditActionCallbackAmountMismatch  AuditAction = "CALLBACK_AMOUNT_MISMATCH"
	AuditActionCallbackUnmatchedSaved  AuditAction = "CALLBACK_UNMATCHED_RECEIPT"
	AuditActionCallbackFailed          AuditAction = "CALLBACK_FAILED"
	AuditActionCallbackError           AuditAction = "CALLBACK_ERROR"
	AuditActionManualMatch             AuditAction = "MANUAL_MATCH"
	AuditActionStkPushInitiated        AuditAction = "STK_PUSH_INITIATED"
	AuditActionStkPushInitiateFailed   AuditAction = "STK_PUSH_INITIATE_FAILED"
)

var validAuditActions = []AuditAction{
	AuditActionIntentCreated,
	AuditActionIntentExpired,
	AuditActionCallbackProcessed,
	AuditActionCallbackRejected,
	AuditActionCallbackUnknownRequest,
	AuditActionCallbackReplayDetected,
	AuditActionCallbackAmountMismatch,
	AuditActionCallbackUnmatchedSaved,
	AuditActionCallbackFailed,
	AuditActionCallbackError,
	AuditActionManualMatch,
	AuditActionStkPushInitiated,
	AuditActionStkPushInitiateFailed,
}

// String implements fmt.Stringer.
func (a AuditAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AuditAction.
func (a AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditAction converts raw input into an AuditAction.
func ParseAuditAction(value string) (AuditAction, error) {
	for _, candidate := range validAuditActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit action %q", value)
}
