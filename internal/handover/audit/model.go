package audit

import "time"

// Status marks where a handover attempt is in its lifecycle.
type Status string

const (
	StatusInitiated Status = "INITIATED"
	StatusSuccess   Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
)

// RetentionWindow is how long audit entries stay queryable.
const RetentionWindow = 90 * 24 * time.Hour

// maxReasonLen caps the failure reason so arbitrary upstream error text
// cannot bloat the log.
const maxReasonLen = 500

// Entry is one audit record. A handover attempt produces an INITIATED entry
// and exactly one of SUCCESS or FAILED, correlated by HandoverID.
type Entry struct {
	HandoverID string    `json:"handover_id"`
	Timestamp  time.Time `json:"timestamp"`
	Status     Status    `json:"status"`
	AccountID  string    `json:"account_id"`
	UIN        string    `json:"uin"`
	// PersonalEmail is recorded on the INITIATED entry so a failed attempt
	// can be traced back to the address that requested it.
	PersonalEmail string `json:"personal_email,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

func truncateReason(reason string) string {
	if len(reason) > maxReasonLen {
		return reason[:maxReasonLen]
	}
	return reason
}
