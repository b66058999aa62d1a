// Package health monitors a remote dependency by running a check at a fixed
// interval.
//
// Checks use failure/success thresholds to avoid flapping: a check must fail
// consecutively FailureThreshold times before the target is reported
// unhealthy, and succeed SuccessThreshold times before it is reported
// healthy again. The first result is reported as-is.
package health

import (
	"context"
	"sync/atomic"
	"time"
)

// CheckFunc is a health check function. It should return nil if the checked
// component is healthy, or an error describing the problem.
type CheckFunc func(ctx context.Context) error

// Transition is a change of reported health.
type Transition struct {
	Healthy bool
	// Err is the error of the check that caused the transition.
	Err error
	At  time.Time
	// Checks is the number of checks run so far, including this one.
	Checks int
}

// Options configures a Monitor. Zero values select defaults.
type Options struct {
	Interval         time.Duration // default 10s
	Timeout          time.Duration // per check, default 5s
	FailureThreshold int           // default 3
	SuccessThreshold int           // default 1

	// OnChange is called from the monitoring goroutine for every transition.
	OnChange func(Transition)

	now func() time.Time
}

func (o *Options) setDefaults() {
	if o.Interval <= 0 {
		o.Interval = 10 * time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = 3
	}
	if o.SuccessThreshold <= 0 {
		o.SuccessThreshold = 1
	}
	if o.OnChange == nil {
		o.OnChange = func(Transition) {}
	}
	if o.now == nil {
		o.now = time.Now
	}
}

// Monitor runs a single check.
//
// Concurrency model: run() is called from exactly one goroutine. The
// counters are only accessed by run(), so they need no synchronization.
// The healthy flag and lastErr may be read from any goroutine.
type Monitor struct {
	check CheckFunc
	opts  Options

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	// counters are only accessed from the single run() goroutine.
	checks           int
	consecutiveFails int
	consecutiveOK    int
}

// NewMonitor creates a Monitor for check.
func NewMonitor(check CheckFunc, opts Options) *Monitor {
	opts.setDefaults()
	return &Monitor{check: check, opts: opts}
}

// Healthy returns the currently reported state.
func (m *Monitor) Healthy() bool {
	return m.healthy.Load()
}

// LastError returns the most recent error from the check, or nil.
func (m *Monitor) LastError() error {
	if p := m.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// run executes the check once and updates thresholds accordingly.
// Must be called from a single goroutine.
func (m *Monitor) run(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	err := m.check(checkCtx)
	m.lastErr.Store(&err)
	m.checks++

	was := m.healthy.Load()
	now := was
	if err != nil {
		m.consecutiveOK = 0
		m.consecutiveFails++
		if m.checks == 1 || m.consecutiveFails >= m.opts.FailureThreshold {
			now = false
		}
	} else {
		m.consecutiveFails = 0
		m.consecutiveOK++
		if m.checks == 1 || m.consecutiveOK >= m.opts.SuccessThreshold {
			now = true
		}
	}

	if m.checks == 1 || now != was {
		m.healthy.Store(now)
		m.opts.OnChange(Transition{
			Healthy: now,
			Err:     err,
			At:      m.opts.now(),
			Checks:  m.checks,
		})
	}
}

// Run checks immediately and then at every interval until ctx is cancelled.
// It returns nil when stopped by cancellation.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	m.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.run(ctx)
		}
	}
}
