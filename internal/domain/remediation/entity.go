package remediation

import "time"

// ActionType enum
type ActionType string

const (
	ActionSetPrivate        ActionType = "SET_PRIVATE"
	ActionRevokeOpenRule    ActionType = "REVOKE_OPEN_RULE"
	ActionRestrictPrincipal ActionType = "RESTRICT_PRINCIPAL"
	ActionUnknown           ActionType = "UNKNOWN"
)

// ActionStatus enum
type ActionStatus string

const (
	StatusSuccess ActionStatus = "SUCCESS"
	StatusFailed  ActionStatus = "FAILED"
	// StatusNone is only reported for risks with no recorded attempt.
	StatusNone ActionStatus = "NONE"
)

// Action is one recorded remediation attempt. Actions are append-only.
type Action struct {
	ID        int64        `json:"id"`
	RiskID    int64        `json:"riskId"`
	Type      ActionType   `json:"actionType"`
	Status    ActionStatus `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
}

// Status summarises the attempts recorded for a risk.
type Status struct {
	Status       ActionStatus `json:"status"`
	LastAttempt  *time.Time   `json:"lastAttempt"`
	AttemptCount int          `json:"attemptCount"`
}

// Target identifies the cloud object a fix is applied to.
type Target struct {
	ResourceID int64
	Name       string
	Location   string
}
