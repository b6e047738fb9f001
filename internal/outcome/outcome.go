// Package outcome defines why a resource did or did not produce a record.
package outcome

import (
	"errors"
	"fmt"
	"time"

	"github.com/macadmin-tools/jamfkit/internal/resource"
)

// Reason classifies the result of processing one resource.
type Reason string

const (
	Accepted     Reason = "accepted"
	Declined     Reason = "declined"
	FetchFailed  Reason = "fetch_failed"
	Unavailable  Reason = "unavailable"
	DecodeFailed Reason = "decode_failed"
	MissingField Reason = "missing_field"

	// TransformFailed covers any other error raised while transforming.
	TransformFailed Reason = "transform_failed"
)

// Reasons lists every reason in report order.
var Reasons = []Reason{Accepted, Declined, MissingField, TransformFailed, DecodeFailed, Unavailable, FetchFailed}

// Skip is a per-item, recoverable failure. The run continues with the next
// resource.
type Skip struct {
	Ref    resource.Ref
	Reason Reason
	Err    error
}

func (s *Skip) Error() string {
	if s.Err == nil {
		return fmt.Sprintf("%s: %s", s.Ref, s.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", s.Ref, s.Reason, s.Err)
}

func (s *Skip) Unwrap() error { return s.Err }

// Decline builds the skip a transformer returns when its filter rejects a
// resource.
func Decline(format string, args ...interface{}) *Skip {
	return &Skip{Reason: Declined, Err: fmt.Errorf(format, args...)}
}

// Classify turns an error from a fetch or transform into a Skip for ref.
// An error that is already a Skip keeps its reason and field errors become
// MissingField.
func Classify(ref resource.Ref, err error) *Skip {
	var skip *Skip
	if errors.As(err, &skip) {
		out := *skip
		out.Ref = ref
		return &out
	}
	var fe *resource.FieldError
	if errors.As(err, &fe) {
		return &Skip{Ref: ref, Reason: MissingField, Err: err}
	}
	return &Skip{Ref: ref, Reason: TransformFailed, Err: err}
}

// Skipped is the persisted form of a Skip.
type Skipped struct {
	ID     int    `json:"id"`
	Reason Reason `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Summary aggregates the outcome of a run.
type Summary struct {
	Listed      int            `json:"listed"`
	Emitted     int            `json:"emitted"`
	Replaced    int            `json:"replaced,omitempty"`
	ByReason    map[Reason]int `json:"by_reason"`
	Skipped     []Skipped      `json:"skipped,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
}

// NewSummary creates an empty Summary for a run that starts now.
func NewSummary() Summary {
	return Summary{
		ByReason:  make(map[Reason]int),
		StartedAt: time.Now().UTC(),
	}
}

// Accept records an accepted resource.
func (s *Summary) Accept() {
	s.ByReason[Accepted]++
}

// Skip records a skipped resource.
func (s *Summary) Skip(skip *Skip) {
	s.ByReason[skip.Reason]++
	entry := Skipped{ID: skip.Ref.ID, Reason: skip.Reason}
	if skip.Err != nil {
		entry.Detail = skip.Err.Error()
	}
	s.Skipped = append(s.Skipped, entry)
}

// Failed returns the number of resources skipped for any reason other than
// a filter decline.
func (s Summary) Failed() int {
	n := 0
	for reason, count := range s.ByReason {
		if reason != Accepted && reason != Declined {
			n += count
		}
	}
	return n
}
