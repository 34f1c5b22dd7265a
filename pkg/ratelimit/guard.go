package ratelimit

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	errs "tiktokgraph/pkg/errors"
	"tiktokgraph/pkg/logger"
)

// Category identifies a group of API operations sharing one daily quota
type Category string

const (
	CategoryFollowers  Category = "followers"
	CategoryFollowings Category = "followings"
	CategoryUsersInfo  Category = "users_info"
)

// ErrUnknownCategory is wrapped by the configuration error returned for a
// category outside the known set
var ErrUnknownCategory = errors.New("unknown endpoint category")

var defaultQuotas = map[Category]int{
	CategoryFollowers:  20000,
	CategoryFollowings: 20000,
	CategoryUsersInfo:  1000,
}

// Categories returns the known categories in lexical order
func Categories() []Category {
	cats := make([]Category, 0, len(defaultQuotas))
	for c := range defaultQuotas {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}

// DefaultQuotas returns a fresh copy of the daily quota of every category
func DefaultQuotas() map[Category]int {
	quotas := make(map[Category]int, len(defaultQuotas))
	for c, q := range defaultQuotas {
		quotas[c] = q
	}
	return quotas
}

// ParseCategory validates name against the known categories
func ParseCategory(name string) (Category, error) {
	c := Category(name)
	if _, ok := defaultQuotas[c]; !ok {
		return "", errs.NewConfigError(ErrUnknownCategory, "invalid endpoint: %s", name)
	}
	return c, nil
}

// QuotasFromConfig overlays configured quotas, keyed by category name, on the defaults
func QuotasFromConfig(configured map[string]int) (map[Category]int, error) {
	quotas := DefaultQuotas()
	for name, quota := range configured {
		c, err := ParseCategory(name)
		if err != nil {
			return nil, err
		}
		quotas[c] = quota
	}
	return quotas, nil
}

// endpointState is the call counter of one category
type endpointState struct {
	mu    sync.Mutex
	quota int
	count int
}

// Guard counts calls per category and parks callers once a category's
// daily quota is used up. A Guard is safe for concurrent use; callers of the
// same category are serialized through the check, including any wait.
type Guard struct {
	endpoints map[Category]*endpointState
	now       func() time.Time
	sleep     func(time.Duration)
	logger    logger.Logger
	metrics   MetricsCollector
}

// Option configures a Guard
type Option func(*Guard)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// WithSleeper replaces time.Sleep
func WithSleeper(sleep func(time.Duration)) Option {
	return func(g *Guard) { g.sleep = sleep }
}

// WithLogger sets the logger used to report waits
func WithLogger(log logger.Logger) Option {
	return func(g *Guard) { g.logger = log }
}

// WithMetrics sets the metrics collector
func WithMetrics(m MetricsCollector) Option {
	return func(g *Guard) { g.metrics = m }
}

// NewGuard creates a Guard with every counter at zero. Categories missing
// from quotas get their default quota; a nil map means all defaults.
func NewGuard(quotas map[Category]int, opts ...Option) (*Guard, error) {
	merged := DefaultQuotas()
	for c, q := range quotas {
		if _, ok := defaultQuotas[c]; !ok {
			return nil, errs.NewConfigError(ErrUnknownCategory, "invalid endpoint: %s", c)
		}
		if q <= 0 {
			return nil, errs.NewConfigError(nil, "quota for endpoint %s must be positive, got %d", c, q)
		}
		merged[c] = q
	}

	g := &Guard{
		endpoints: make(map[Category]*endpointState, len(merged)),
		now:       time.Now,
		sleep:     time.Sleep,
		logger:    logger.GetLogger(),
		metrics:   disabledMetrics{},
	}
	for c, q := range merged {
		g.endpoints[c] = &endpointState{quota: q}
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = disabledMetrics{}
	}
	if g.logger == nil {
		g.logger = logger.NewNopLogger()
	}

	return g, nil
}

// Endpoint returns the handle used to guard operations of category c.
// An unknown category is a configuration error reported here, before any
// call is attempted.
func (g *Guard) Endpoint(c Category) (*Endpoint, error) {
	state, ok := g.endpoints[c]
	if !ok {
		return nil, errs.NewConfigError(ErrUnknownCategory, "invalid endpoint: %s", c)
	}
	return &Endpoint{guard: g, category: c, state: state}, nil
}

// MustEndpoint is like Endpoint but panics on an unknown category
func (g *Guard) MustEndpoint(c Category) *Endpoint {
	e, err := g.Endpoint(c)
	if err != nil {
		panic(err)
	}
	return e
}

// Count returns the calls made against c since its last reset
func (g *Guard) Count(c Category) int {
	state, ok := g.endpoints[c]
	if !ok {
		return 0
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.count
}

// Quota returns the daily quota of c, or 0 for an unknown category
func (g *Guard) Quota(c Category) int {
	state, ok := g.endpoints[c]
	if !ok {
		return 0
	}
	return state.quota
}

// Reset sets the counter of c back to zero
func (g *Guard) Reset(c Category) {
	state, ok := g.endpoints[c]
	if !ok {
		return
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	state.count = 0
}

// Endpoint guards the operations of one category
type Endpoint struct {
	guard    *Guard
	category Category
	state    *endpointState
}

// Category returns the category this endpoint counts against
func (e *Endpoint) Category() Category {
	return e.category
}

// Do runs op once the quota allows it. The error of op is returned as is;
// a failed op still counts against the quota.
func (e *Endpoint) Do(op func() error) error {
	e.acquire()
	return op()
}

// acquire takes one call from the budget. With the budget spent it sleeps
// until the next reset, zeroes the counter and lets the call through
// without counting it.
func (e *Endpoint) acquire() {
	s := e.state
	s.mu.Lock()
	defer s.mu.Unlock()

	name := string(e.category)
	e.guard.metrics.IncCalls(name)

	if s.count < s.quota {
		s.count++
		return
	}

	now := e.guard.now()
	resetAt := NextReset(now)
	wait := UntilReset(now)

	logger.LogQuotaWait(e.guard.logger, name, wait, resetAt)
	e.guard.metrics.IncWaits(name)
	e.guard.metrics.ObserveWait(name, wait)

	e.guard.sleep(wait)
	s.count = 0
}

// Wrap returns fn guarded by e
func Wrap[R any](e *Endpoint, fn func() (R, error)) func() (R, error) {
	return func() (R, error) {
		e.acquire()
		return fn()
	}
}

// Wrap1 returns fn guarded by e
func Wrap1[A, R any](e *Endpoint, fn func(A) (R, error)) func(A) (R, error) {
	return func(a A) (R, error) {
		e.acquire()
		return fn(a)
	}
}

// Wrap2 returns fn guarded by e
func Wrap2[A, B, R any](e *Endpoint, fn func(A, B) (R, error)) func(A, B) (R, error) {
	return func(a A, b B) (R, error) {
		e.acquire()
		return fn(a, b)
	}
}

// Wrap3 returns fn guarded by e
func Wrap3[A, B, C, R any](e *Endpoint, fn func(A, B, C) (R, error)) func(A, B, C) (R, error) {
	return func(a A, b B, c C) (R, error) {
		e.acquire()
		return fn(a, b, c)
	}
}

// String implements fmt.Stringer for log output
func (e *Endpoint) String() string {
	return fmt.Sprintf("%s (%d/%d)", e.category, e.guard.Count(e.category), e.state.quota)
}
