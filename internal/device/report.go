package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Outcome labels for a Result.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Result is the outcome of one operation on one device.
type Result struct {
	DeviceID string        `json:"device_id"`
	Kind     Kind          `json:"kind"`
	Op       Op            `json:"op"`
	Err      error         `json:"-"`
	Skipped  bool          `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// Failed reports whether the operation failed. Skipped results are not failures.
func (r Result) Failed() bool {
	return r.Err != nil && !r.Skipped
}

// Outcome returns "ok", "skipped" or "failed".
func (r Result) Outcome() string {
	switch {
	case r.Skipped:
		return OutcomeSkipped
	case r.Err != nil:
		return OutcomeFailed
	default:
		return OutcomeOK
	}
}

// Error returns the error text, or "" for a successful result.
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Report collects the per-device results of one aggregate operation,
// in registry order.
type Report struct {
	Op      Op       `json:"op"`
	Results []Result `json:"results"`
}

// Failures returns the results that failed.
func (r Report) Failures() []Result {
	var failed []Result
	for _, res := range r.Results {
		if res.Failed() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Err joins every failure into one error, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Failures() {
		errs = append(errs, fmt.Errorf("%s %s: %w", res.DeviceID, res.Op, res.Err))
	}
	return errors.Join(errs...)
}

// OK reports whether no device failed.
func (r Report) OK() bool {
	return len(r.Failures()) == 0
}

// Counts returns how many results were ok, skipped and failed.
func (r Report) Counts() (ok, skipped, failed int) {
	for _, res := range r.Results {
		switch res.Outcome() {
		case OutcomeOK:
			ok++
		case OutcomeSkipped:
			skipped++
		default:
			failed++
		}
	}
	return ok, skipped, failed
}

// Pending tracks an aggregate operation whose device jobs are queued.
type Pending struct {
	op        Op
	mu        sync.Mutex
	results   []Result
	completed []bool
	remaining int
	done      chan struct{}
}

func newPending(op Op, n int) *Pending {
	p := &Pending{
		op:        op,
		results:   make([]Result, n),
		completed: make([]bool, n),
		remaining: n,
		done:      make(chan struct{}),
	}
	if n == 0 {
		close(p.done)
	}
	return p
}

// complete records the result at index i.
func (p *Pending) complete(i int, res Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.completed[i] {
		return
	}
	p.results[i] = res
	p.completed[i] = true
	p.remaining--
	if p.remaining == 0 {
		close(p.done)
	}
}

// Done is closed once every device has reported.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until every device has reported or ctx ends. Devices that
// have not reported when ctx ends appear with ErrPending.
func (p *Pending) Wait(ctx context.Context) Report {
	select {
	case <-p.done:
	case <-ctx.Done():
	}
	return p.Report()
}

// Report returns the results gathered so far.
func (p *Pending) Report() Report {
	p.mu.Lock()
	defer p.mu.Unlock()

	report := Report{Op: p.op, Results: make([]Result, len(p.results))}
	for i, res := range p.results {
		if !p.completed[i] {
			res.Err = ErrPending
		}
		report.Results[i] = res
	}
	return report
}
