package runner

import (
	"sort"
	"time"

	"github.com/ridoystarlord/mongrato/ledger"
	"github.com/ridoystarlord/mongrato/schema"
)

// Status is the result of applying one definition file.
type Status string

const (
	Created       Status = "created"
	AlreadyExists Status = "already_exists"
	Skipped       Status = "skipped"
	Failed        Status = "failed"
)

// ledgerStatus maps an outcome to the status stored in the ledger.
// Skipped outcomes are not recorded.
func (s Status) ledgerStatus() (string, bool) {
	switch s {
	case Created:
		return ledger.StatusCreated, true
	case AlreadyExists:
		return ledger.StatusExists, true
	case Failed:
		return ledger.StatusFailed, true
	}
	return "", false
}

// Outcome is what happened to one definition file.
type Outcome struct {
	File       string // relative to the project root when possible
	Kind       schema.Kind
	Collection string
	Namespace  string
	Status     Status
	Reason     string
	Err        error
	Duration   time.Duration
}

// Report aggregates the outcomes of one run in enumeration order.
type Report struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Outcomes []Outcome
}

// Count returns the number of outcomes with status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Counts tallies outcomes by status.
func (r *Report) Counts() map[string]int {
	counts := map[string]int{}
	for _, o := range r.Outcomes {
		counts[string(o.Status)]++
	}
	return counts
}

// Failed reports whether any outcome failed.
func (r *Report) Failed() bool {
	return r.Count(Failed) > 0
}

// Failures returns the failed outcomes.
func (r *Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == Failed {
			out = append(out, o)
		}
	}
	return out
}

func sortNewestFirst(recs []ledger.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].AppliedAt.After(recs[j].AppliedAt)
	})
}
