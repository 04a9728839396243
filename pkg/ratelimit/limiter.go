package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Class identifies an endpoint category with independent budget accounting
type Class string

const (
	ClassArchiveSearch Class = "archive-search"
	ClassFollower      Class = "follower"
	ClassTimeline      Class = "timeline"
)

// Response headers carrying the server-side budget
const (
	HeaderLimit     = "x-rate-limit-limit"
	HeaderRemaining = "x-rate-limit-remaining"
	HeaderReset     = "x-rate-limit-reset"
)

// DefaultResetMargin is added to the advertised reset time before calls resume
const DefaultResetMargin = 2 * time.Second

// DefaultSearchSpacing is the minimum gap between archive search calls
const DefaultSearchSpacing = time.Second

// Limiter gates calls for one endpoint class
type Limiter interface {
	// Acquire blocks until a call may proceed
	Acquire(ctx context.Context) error
	// Update records the budget reported by the latest response
	Update(limit, remaining int, resetAt time.Time)
}

// State is a snapshot of an endpoint class budget
type State struct {
	Limit      int
	Remaining  int
	ResetAt    time.Time
	LastCallAt time.Time
}

// WaitEvent describes a pacing decision that made Acquire sleep
type WaitEvent struct {
	Class     Class
	Remaining int
	Wait      time.Duration
	// Exhausted is true when the wait is for a budget reset, false when it
	// only enforces the minimum call spacing.
	Exhausted bool
}

// EndpointLimiter is the header-driven Limiter for one endpoint class.
// Each class is driven by a single pagination loop at a time; the mutex only
// protects State snapshots read from other goroutines (metrics, logging).
type EndpointLimiter struct {
	class   Class
	clock   Clock
	margin  time.Duration
	spacing time.Duration
	observe func(WaitEvent)

	mu    sync.Mutex
	state State
}

// Option configures an EndpointLimiter
type Option func(*EndpointLimiter)

// WithClock replaces the wall clock
func WithClock(c Clock) Option {
	return func(l *EndpointLimiter) { l.clock = c }
}

// WithResetMargin overrides the safety margin added past the reset time
func WithResetMargin(d time.Duration) Option {
	return func(l *EndpointLimiter) { l.margin = d }
}

// WithSpacing sets a minimum gap between consecutive calls while budget remains
func WithSpacing(d time.Duration) Option {
	return func(l *EndpointLimiter) { l.spacing = d }
}

// WithObserver registers a callback invoked before every sleep
func WithObserver(fn func(WaitEvent)) Option {
	return func(l *EndpointLimiter) { l.observe = fn }
}

// New creates a limiter for class seeded with that class's published quota.
// Archive search gets a 1s minimum spacing unless overridden.
func New(class Class, opts ...Option) *EndpointLimiter {
	l := &EndpointLimiter{
		class:  class,
		clock:  SystemClock(),
		margin: DefaultResetMargin,
	}
	if class == ClassArchiveSearch {
		l.spacing = DefaultSearchSpacing
	}
	for _, opt := range opts {
		opt(l)
	}

	quota := DefaultQuota(class)
	l.state = State{
		Limit:     quota,
		Remaining: quota,
		ResetAt:   l.clock.Now(),
	}
	return l
}

// DefaultQuota returns the per-window call budget documented for class
func DefaultQuota(class Class) int {
	switch class {
	case ClassArchiveSearch:
		return 300
	default:
		return 15
	}
}

// Class returns the endpoint class this limiter paces
func (l *EndpointLimiter) Class() Class {
	return l.class
}

// Acquire blocks until the next call for this class may proceed
func (l *EndpointLimiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	st := l.state
	l.mu.Unlock()

	now := l.clock.Now()
	var (
		wait      time.Duration
		exhausted bool
	)
	if st.Remaining > 0 {
		if l.spacing > 0 && !st.LastCallAt.IsZero() {
			if elapsed := now.Sub(st.LastCallAt); elapsed < l.spacing {
				wait = l.spacing - elapsed
			}
		}
	} else {
		exhausted = true
		wait = st.ResetAt.Add(l.margin).Sub(now)
	}

	if wait <= 0 {
		return ctx.Err()
	}
	if l.observe != nil {
		l.observe(WaitEvent{
			Class:     l.class,
			Remaining: st.Remaining,
			Wait:      wait,
			Exhausted: exhausted,
		})
	}
	return l.clock.Sleep(ctx, wait)
}

// Update overwrites the budget and stamps the time of the last call
func (l *EndpointLimiter) Update(limit, remaining int, resetAt time.Time) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = State{
		Limit:      limit,
		Remaining:  remaining,
		ResetAt:    resetAt,
		LastCallAt: now,
	}
}

// UpdateFromHeaders applies the x-rate-limit-* headers of a response. It
// reports false, leaving the state untouched, when any of them is missing
// or malformed.
func (l *EndpointLimiter) UpdateFromHeaders(h http.Header) bool {
	limit, remaining, resetAt, ok := ParseHeaders(h)
	if !ok {
		return false
	}
	l.Update(limit, remaining, resetAt)
	return true
}

// State returns a snapshot of the current budget
func (l *EndpointLimiter) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// ParseHeaders extracts limit, remaining and reset (epoch seconds) from h
func ParseHeaders(h http.Header) (limit, remaining int, resetAt time.Time, ok bool) {
	limit, err := strconv.Atoi(h.Get(HeaderLimit))
	if err != nil {
		return 0, 0, time.Time{}, false
	}
	remaining, err = strconv.Atoi(h.Get(HeaderRemaining))
	if err != nil {
		return 0, 0, time.Time{}, false
	}
	reset, err := strconv.ParseInt(h.Get(HeaderReset), 10, 64)
	if err != nil {
		return 0, 0, time.Time{}, false
	}
	return limit, remaining, time.Unix(reset, 0), true
}
