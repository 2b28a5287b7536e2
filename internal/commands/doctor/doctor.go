// Package doctor runs environment checks for `rtscope doctor`.
package doctor

import (
	"context"
	"fmt"
)

// Status is the outcome of one check item.
type Status int

const (
	StatusPass Status = iota
	StatusWarn
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "pass":
		*s = StatusPass
	case "warn":
		*s = StatusWarn
	case "fail":
		*s = StatusFail
	default:
		return fmt.Errorf("unknown status %q", b)
	}
	return nil
}

// CheckItem is a single line within a check result.
type CheckItem struct {
	Label   string `json:"label"`
	Status  Status `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Fixable bool   `json:"fixable,omitempty"`
}

// Result groups the items produced by one check.
type Result struct {
	Name  string      `json:"name"`
	Items []CheckItem `json:"items"`
}

// Worst returns the most severe status among the items.
func (r Result) Worst() Status {
	worst := StatusPass
	for _, item := range r.Items {
		if item.Status > worst {
			worst = item.Status
		}
	}
	return worst
}

// Check is one named group of diagnostics.
type Check interface {
	Name() string
	Run(ctx context.Context) Result
}

// RunAll runs checks in order. Checks left after ctx is done are reported
// as failed without running.
func RunAll(ctx context.Context, checks []Check) []Result {
	results := make([]Result, 0, len(checks))
	for _, check := range checks {
		if err := ctx.Err(); err != nil {
			results = append(results, Result{
				Name:  check.Name(),
				Items: []CheckItem{{Label: "Skipped", Status: StatusFail, Detail: err.Error()}},
			})
			continue
		}
		results = append(results, check.Run(ctx))
	}
	return results
}

// Tally counts items by status.
type Tally struct {
	Passed  int `json:"passed"`
	Warned  int `json:"warned"`
	Failed  int `json:"failed"`
	Fixable int `json:"fixable"`
}

// Summarize tallies the items of all results. Fixable only counts items
// that are not passing.
func Summarize(results []Result) Tally {
	var t Tally
	for _, r := range results {
		for _, item := range r.Items {
			switch item.Status {
			case StatusPass:
				t.Passed++
				continue
			case StatusWarn:
				t.Warned++
			case StatusFail:
				t.Failed++
			}
			if item.Fixable {
				t.Fixable++
			}
		}
	}
	return t
}

// Healthy reports whether no item failed.
func (t Tally) Healthy() bool { return t.Failed == 0 }

// Report is the machine-readable form of a doctor run.
type Report struct {
	Healthy bool     `json:"healthy"`
	Summary Tally    `json:"summary"`
	Checks  []Result `json:"checks"`
}

// NewReport summarizes results into a Report.
func NewReport(results []Result) Report {
	t := Summarize(results)
	return Report{Healthy: t.Healthy(), Summary: t, Checks: results}
}
