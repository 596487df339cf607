package ordering

import "fmt"

// ValidationError means the submitted arrangement is malformed on its own,
// before it is compared with anything persisted.
type ValidationError struct {
	Reason string
	ID     string
}

func (e *ValidationError) Error() string {
	if e.ID == "" {
		return "invalid arrangement: " + e.Reason
	}
	return fmt.Sprintf("invalid arrangement: %s: %s", e.Reason, e.ID)
}

// ReferenceError means the arrangement names a list or card that is not part
// of the target board, or not reachable from the lists it submits.
type ReferenceError struct {
	Kind    Kind
	ID      string
	BoardID string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s %s does not belong to board %s", e.Kind, e.ID, e.BoardID)
}
