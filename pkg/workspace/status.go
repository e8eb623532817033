package workspace

import "fmt"

// Status is the lifecycle state of a controller.
//
//	Idle ──LoadForUser──▶ Loading ──▶ Ready
//	                         │
//	                         └──────▶ Errored (identity rejected, timeout)
//
// A change of user passes through Cleared before Loading starts, so data of
// two users is never visible together. Signing out ends in Idle.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusErrored
	StatusCleared
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusErrored:
		return "errored"
	case StatusCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for c := StatusIdle; c <= StatusCleared; c++ {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown workspace status %q", text)
}
