package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	ObservationID ID
	EvaluationID  ID
	SweepID       ID
	ParamName     ID
)

// String conversions for domain IDs
func (id ObservationID) String() string { return ID(id).String() }
func (id EvaluationID) String() string  { return ID(id).String() }
func (id SweepID) String() string       { return ID(id).String() }
func (id ParamName) String() string     { return ID(id).String() }

// ParseParamName parses a string into ParamName
func ParseParamName(s string) (ParamName, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("parameter name cannot be empty")
	}
	return ParamName(s), nil
}

// ParseSweepID parses a string into SweepID
func ParseSweepID(s string) (SweepID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("sweep ID cannot be empty")
	}
	return SweepID(s), nil
}
