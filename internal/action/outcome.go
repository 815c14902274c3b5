package action

import "encoding/json"

// Status is the result of applying (or attempting to apply) one action.
type Status int

const (
	Applied Status = iota
	AlreadySatisfied
	Skipped
	Failed
)

func (s Status) String() string {
	switch s {
	case Applied:
		return "APPLIED"
	case AlreadySatisfied:
		return "ALREADY_SATISFIED"
	case Skipped:
		return "SKIPPED"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ParseStatus maps a status name back to its Status. Unknown names map to
// Failed so a corrupted manifest entry is never treated as revertible.
func ParseStatus(s string) Status {
	switch s {
	case "APPLIED":
		return Applied
	case "ALREADY_SATISFIED":
		return AlreadySatisfied
	case "SKIPPED":
		return Skipped
	default:
		return Failed
	}
}

// MarshalJSON encodes the status by name so manifests stay readable.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	*s = ParseStatus(name)
	return nil
}

// Outcome pairs a Status with its reason (Skipped) or error text (Failed).
type Outcome struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
	Err    string `json:"error,omitempty"`
}

// Mutated reports whether the action changed host state, i.e. whether a
// revert step must restore its snapshot.
func (o Outcome) Mutated() bool { return o.Status == Applied }
