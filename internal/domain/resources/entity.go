package resources

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a resource id does not exist.
var ErrNotFound = errors.New("resource not found")

// ErrInvalidType is returned when a resource type filter is not recognised.
var ErrInvalidType = errors.New("invalid resource type")

// Type enum
type Type string

const (
	TypeBucket       Type = "BUCKET"
	TypeNetworkRule  Type = "NETWORK_RULE"
	TypeAccessPolicy Type = "ACCESS_POLICY"
)

// ParseType normalises a type filter. An empty string means "all types".
func ParseType(s string) (Type, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch Type(s) {
	case "":
		return "", nil
	case TypeBucket, TypeNetworkRule, TypeAccessPolicy:
		return Type(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
}

// Resource is a mock cloud entity subject to scanning.
type Resource struct {
	ID        int64     `json:"id"`
	Type      Type      `json:"resourceType"`
	Name      string    `json:"resourceName"`
	Location  string    `json:"location"`
	Public    bool      `json:"isPublic"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
