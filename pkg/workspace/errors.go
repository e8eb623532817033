package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrTimeout             = errors.New("workspace load timed out")
	ErrNotReady            = errors.New("workspace is not ready")
	ErrDisposed            = errors.New("workspace controller disposed")
	ErrSuperseded          = errors.New("superseded by a newer load")
	ErrUserMismatch        = errors.New("signed-in user does not match requested workspace")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrBlockNotFound       = errors.New("block not found")
	ErrTaskNotFound        = errors.New("task not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrProtocolNotFound    = errors.New("health protocol not found")
	ErrHabitNotFound       = errors.New("quit habit not found")
	ErrCycle               = errors.New("document cannot be moved under itself")
	ErrInvalidOrder        = errors.New("block order must list every block exactly once")
	ErrInvalidBlock        = errors.New("invalid block kind")
)

type FailureKind string

const (
	FailureAuth     FailureKind = "auth"
	FailureFetch    FailureKind = "fetch"
	FailureMutation FailureKind = "mutation"
	FailureTimeout  FailureKind = "timeout"
)

// Failure is the content of the controller's error slot. Pending writes
// resolve with the same value, so errors.Is sees through to the cause.
type Failure struct {
	Kind FailureKind
	Op   string
	Err  error
	At   time.Time
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Kind, f.Op, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Message is the cause as text, for API responses.
func (f *Failure) Message() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

type failureJSON struct {
	Kind    FailureKind `json:"kind"`
	Op      string      `json:"op"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}

// MarshalJSON carries the cause as its message. Decoding restores it as a
// plain error, so errors.Is against sentinels does not survive the trip.
func (f *Failure) MarshalJSON() ([]byte, error) {
	return json.Marshal(failureJSON{Kind: f.Kind, Op: f.Op, Message: f.Message(), At: f.At})
}

func (f *Failure) UnmarshalJSON(data []byte) error {
	var v failureJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Failure{Kind: v.Kind, Op: v.Op, At: v.At}
	if v.Message != "" {
		f.Err = errors.New(v.Message)
	}
	return nil
}
