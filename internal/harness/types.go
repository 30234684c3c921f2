package harness

import (
	"github.com/roach88/deskquery/internal/ir"
	"github.com/roach88/deskquery/internal/testutil"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expectation and assertion holds.
	Pass bool `json:"pass"`

	// Full reports whether the query parsed without recovery or error.
	Full bool `json:"full"`

	// ErrorCode is the structured parse error code, empty on success.
	ErrorCode string `json:"error_code,omitempty"`

	// Skipped lists the text dropped by compact recovery.
	Skipped []string `json:"skipped,omitempty"`

	// Description is the backend query rendered by backend.Describe.
	Description string `json:"description"`

	// Matches lists the URLs of matching scenario documents in id order.
	Matches []string `json:"matches,omitempty"`

	// Events contains every builder call in order.
	Events []testutil.Event `json:"-"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Trace renders the recorded events in canonical form.
func (r *Result) Trace() ir.Array {
	return testutil.Trace(r.Events)
}

// Selections counts the recorded OnSelection events.
func (r *Result) Selections() int {
	n := 0
	for _, e := range r.Events {
		if e.Type == testutil.EventOnSelection {
			n++
		}
	}
	return n
}
