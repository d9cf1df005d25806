// Package usage tracks daily consumption of the primary generation
// provider's standard tier.
//
// Kaimu prefers the standard Gemini model for every reply, but the free
// quota is a hard daily cap. The tracker counts successful standard-tier
// calls and, once a configurable threshold is crossed, tells the caller to
// request the reduced tier instead, leaving headroom below the cap for
// retries and clock skew.
//
// The calendar day is evaluated in a fixed reference timezone (Asia/Seoul)
// so rollover matches the crew's local midnight, not UTC. Rollover is
// detected lazily: every access compares the stored date to "today" and
// resets the counter when they differ. No background timer is needed.
package usage

import (
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultThreshold is the standard-tier call count at which Kaimu
	// switches to the reduced tier for the rest of the day.
	DefaultThreshold = 450

	// DefaultDailyCap is the provider's hard daily limit, kept only for
	// the status report; the tracker never blocks calls outright.
	DefaultDailyCap = 500
)

// dateLayout is the calendar-day key used for rollover comparison.
const dateLayout = "2006-01-02"

// Tracker counts standard-tier calls per calendar day in the reference
// timezone. It is safe for concurrent use: webhook deliveries race on it.
type Tracker struct {
	mu        sync.Mutex
	loc       *time.Location
	threshold int
	cap       int

	currentDate string // calendar day the count belongs to
	count       int
}

// Config holds tracker tunables. Zero values fall back to the defaults.
type Config struct {
	// Threshold is the standard-tier count that triggers the downgrade.
	// Must stay strictly below Cap to leave headroom.
	Threshold int
	// Cap is the provider's hard daily limit (reporting only).
	Cap int
	// Location is the reference timezone for date rollover.
	// Defaults to Asia/Seoul.
	Location *time.Location
}

// NewTracker creates a Tracker with the given configuration.
func NewTracker(cfg Config) *Tracker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Cap <= 0 {
		cfg.Cap = DefaultDailyCap
	}
	if cfg.Threshold >= cfg.Cap {
		// Keep the documented headroom even with odd configs.
		cfg.Threshold = cfg.Cap - 1
	}
	if cfg.Location == nil {
		cfg.Location = seoul()
	}
	return &Tracker{
		loc:       cfg.Location,
		threshold: cfg.Threshold,
		cap:       cfg.Cap,
	}
}

// ShouldUseReducedTier reports whether the day's standard-tier allowance is
// spent and the reduced tier should be requested instead.
func (t *Tracker) ShouldUseReducedTier() bool {
	return t.shouldUseReducedTierAt(time.Now())
}

// shouldUseReducedTierAt is the time-injectable core (for testing).
func (t *Tracker) shouldUseReducedTierAt(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked(now)
	return t.count >= t.threshold
}

// RecordPrimaryCall increments the standard-tier counter. Call it exactly
// once per successful primary-provider call; secondary successes are free.
func (t *Tracker) RecordPrimaryCall() {
	t.recordPrimaryCallAt(time.Now())
}

func (t *Tracker) recordPrimaryCallAt(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked(now)
	t.count++
}

// StatusReport returns a one-line human-readable summary for operator
// notices ("standard tier: 123/450 (cap 500), resets at midnight KST").
func (t *Tracker) StatusReport() string {
	return t.statusReportAt(time.Now())
}

func (t *Tracker) statusReportAt(now time.Time) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked(now)
	tier := "standard"
	if t.count >= t.threshold {
		tier = "reduced"
	}
	return fmt.Sprintf("%s: %d/%d standard-tier calls (cap %d, tier %s)",
		t.currentDate, t.count, t.threshold, t.cap, tier)
}

// rolloverLocked resets the counter when the calendar day in the reference
// timezone has changed since the last access. Must be called with mu held.
func (t *Tracker) rolloverLocked(now time.Time) {
	today := now.In(t.loc).Format(dateLayout)
	if t.currentDate != today {
		t.currentDate = today
		t.count = 0
	}
}

// seoul returns the reference timezone. When the tz database is unavailable
// (stripped containers), a fixed UTC+9 zone is used. KST has no DST.
func seoul() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}
