package risks

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a risk id does not exist.
	ErrNotFound = errors.New("risk not found")
	// ErrInvalidSeverity is returned for a severity outside HIGH/MEDIUM/LOW.
	ErrInvalidSeverity = errors.New("invalid severity")
)

// Severity enum
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// ParseSeverity accepts any letter case. An empty string means "no filter".
func ParseSeverity(s string) (Severity, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch Severity(s) {
	case "":
		return "", nil
	case SeverityHigh, SeverityMedium, SeverityLow:
		return Severity(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, s)
}

// Type enum
type Type string

const (
	TypePublicBucket      Type = "PUBLIC_BUCKET"
	TypeOpenNetworkRule   Type = "OPEN_NETWORK_RULE"
	TypeWildcardPrincipal Type = "WILDCARD_PRINCIPAL"
)

// Risk is a detected misconfiguration on a resource.
type Risk struct {
	ID          int64     `json:"id"`
	ResourceID  int64     `json:"resourceId"`
	Type        Type      `json:"riskType"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	DetectedAt  time.Time `json:"detectedAt"`
}

// Stats value object
type Stats struct {
	Total  int `json:"totalRisks"`
	High   int `json:"highSeverity"`
	Medium int `json:"mediumSeverity"`
	Low    int `json:"lowSeverity"`
}

// PaginatedResult represents a paginated response with data and metadata
type PaginatedResult struct {
	Data       []*Risk `json:"data"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	Total      int64   `json:"totalItems"`
	TotalPages int     `json:"totalPages"`
}
