package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "tiktokgraph/pkg/errors"
	"tiktokgraph/pkg/logger"
)

// recordingSleeper records requested sleeps instead of blocking
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
}

func (s *recordingSleeper) Waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestGuard(t *testing.T, quotas map[Category]int, now time.Time) (*Guard, *recordingSleeper, *logger.TestLogger) {
	t.Helper()
	sleeper := &recordingSleeper{}
	log := logger.NewTestLogger()
	g, err := NewGuard(quotas,
		WithClock(fixedClock(now)),
		WithSleeper(sleeper.Sleep),
		WithLogger(log),
	)
	require.NoError(t, err)
	return g, sleeper, log
}

var afternoon = time.Date(2024, time.March, 1, 13, 0, 0, 0, time.UTC)

func TestGuardStartsAtZero(t *testing.T) {
	g, _, _ := newTestGuard(t, nil, afternoon)

	for _, c := range Categories() {
		assert.Equal(t, 0, g.Count(c), c)
		assert.Equal(t, DefaultQuotas()[c], g.Quota(c), c)
	}
}

func TestGuardCountsCalls(t *testing.T) {
	g, sleeper, _ := newTestGuard(t, nil, afternoon)
	ep := g.MustEndpoint(CategoryUsersInfo)

	for i := 1; i <= 3; i++ {
		require.NoError(t, ep.Do(func() error { return nil }))
		assert.Equal(t, i, g.Count(CategoryUsersInfo))
	}

	assert.Equal(t, 0, g.Count(CategoryFollowers))
	assert.Equal(t, 0, g.Count(CategoryFollowings))
	assert.Empty(t, sleeper.Waits())
}

func TestGuardUnknownCategory(t *testing.T) {
	g, _, _ := newTestGuard(t, nil, afternoon)

	ep, err := g.Endpoint("invalid")
	require.Error(t, err)
	assert.Nil(t, ep)
	assert.Equal(t, "invalid endpoint: invalid", err.Error())
	assert.ErrorIs(t, err, ErrUnknownCategory)

	var typed *errs.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, errs.ErrorTypeConfig, typed.Type)

	assert.Panics(t, func() { g.MustEndpoint("invalid") })
}

func TestNewGuardValidatesQuotas(t *testing.T) {
	_, err := NewGuard(map[Category]int{"comments": 10})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownCategory)
	assert.Contains(t, err.Error(), "comments")

	_, err = NewGuard(map[Category]int{CategoryFollowers: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be positive")
}

func TestQuotasFromConfig(t *testing.T) {
	quotas, err := QuotasFromConfig(map[string]int{"users_info": 5})
	require.NoError(t, err)
	assert.Equal(t, 5, quotas[CategoryUsersInfo])
	assert.Equal(t, 20000, quotas[CategoryFollowers])

	_, err = QuotasFromConfig(map[string]int{"videos": 5})
	require.Error(t, err)
	assert.Equal(t, "invalid endpoint: videos", err.Error())
}

func TestGuardWaitsForResetAtQuota(t *testing.T) {
	g, sleeper, log := newTestGuard(t, map[Category]int{CategoryFollowers: 1}, afternoon)
	ep := g.MustEndpoint(CategoryFollowers)

	var calls int
	var countDuringCall []int
	op := func() error {
		calls++
		countDuringCall = append(countDuringCall, g.Count(CategoryFollowers))
		return nil
	}

	require.NoError(t, ep.Do(op))
	assert.Equal(t, 1, g.Count(CategoryFollowers))
	assert.Empty(t, sleeper.Waits())

	require.NoError(t, ep.Do(op))
	assert.Equal(t, []time.Duration{11 * time.Hour}, sleeper.Waits())
	assert.Equal(t, 0, g.Count(CategoryFollowers))
	assert.Equal(t, []int{1, 0}, countDuringCall, "reset happens before the delegated call")
	assert.Equal(t, 2, calls)

	// counting resumes on the next call
	require.NoError(t, ep.Do(op))
	assert.Equal(t, 1, g.Count(CategoryFollowers))
	assert.Len(t, sleeper.Waits(), 1)

	msgs := log.GetMessagesByLevel("INFO")
	require.Len(t, msgs, 1)
	assert.Equal(t, "followers", msgs[0].Fields["endpoint"])
	assert.Equal(t, 11*time.Hour, msgs[0].Fields["wait"])
	assert.Equal(t, "2024-03-02T00:00:00Z", msgs[0].Fields["reset_at"])
}

func TestGuardMorningWait(t *testing.T) {
	morning := time.Date(2024, time.March, 1, 5, 0, 0, 0, time.UTC)
	g, sleeper, _ := newTestGuard(t, map[Category]int{CategoryUsersInfo: 2}, morning)
	ep := g.MustEndpoint(CategoryUsersInfo)

	for i := 0; i < 3; i++ {
		require.NoError(t, ep.Do(func() error { return nil }))
	}

	assert.Equal(t, []time.Duration{19 * time.Hour}, sleeper.Waits())
	assert.Equal(t, 0, g.Count(CategoryUsersInfo))
}

func TestGuardPropagatesErrors(t *testing.T) {
	g, _, _ := newTestGuard(t, nil, afternoon)
	ep := g.MustEndpoint(CategoryFollowings)

	upstream := &errs.Error{Type: errs.ErrorTypeServerError, Message: "boom", Code: 503}
	err := ep.Do(func() error { return upstream })

	assert.Same(t, upstream, err)
	assert.Equal(t, 1, g.Count(CategoryFollowings), "failed calls consume quota")
}

func TestWrapPreservesSignature(t *testing.T) {
	g, _, _ := newTestGuard(t, nil, afternoon)
	ep := g.MustEndpoint(CategoryUsersInfo)

	zero := Wrap(ep, func() (string, error) { return "zero", nil })
	one := Wrap1(ep, func(a int) (int, error) { return a * 2, nil })
	two := Wrap2(ep, func(a, b string) (string, error) { return a + b, nil })
	three := Wrap3(ep, func(a, b, c int) (int, error) { return a + b + c, nil })
	failing := Wrap1(ep, func(string) (int, error) { return 0, errors.New("nope") })

	v0, err := zero()
	require.NoError(t, err)
	assert.Equal(t, "zero", v0)

	v1, err := one(21)
	require.NoError(t, err)
	assert.Equal(t, 42, v1)

	v2, err := two("a", "b")
	require.NoError(t, err)
	assert.Equal(t, "ab", v2)

	v3, err := three(1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, v3)

	_, err = failing("x")
	assert.EqualError(t, err, "nope")

	assert.Equal(t, 5, g.Count(CategoryUsersInfo))
}

func TestGuardEndpointsAreIndependent(t *testing.T) {
	g, sleeper, _ := newTestGuard(t, map[Category]int{CategoryFollowers: 1, CategoryFollowings: 1}, afternoon)

	require.NoError(t, g.MustEndpoint(CategoryFollowers).Do(func() error { return nil }))
	require.NoError(t, g.MustEndpoint(CategoryFollowings).Do(func() error { return nil }))

	assert.Empty(t, sleeper.Waits())
	assert.Equal(t, 1, g.Count(CategoryFollowers))
	assert.Equal(t, 1, g.Count(CategoryFollowings))
}

func TestGuardInstancesAreIsolated(t *testing.T) {
	a, _, _ := newTestGuard(t, nil, afternoon)
	b, _, _ := newTestGuard(t, nil, afternoon)

	require.NoError(t, a.MustEndpoint(CategoryFollowers).Do(func() error { return nil }))
	assert.Equal(t, 1, a.Count(CategoryFollowers))
	assert.Equal(t, 0, b.Count(CategoryFollowers))
}

func TestGuardConcurrentCallers(t *testing.T) {
	g, sleeper, _ := newTestGuard(t, map[Category]int{CategoryUsersInfo: 5}, afternoon)
	ep := g.MustEndpoint(CategoryUsersInfo)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ep.Do(func() error { return nil })
		}()
	}
	wg.Wait()

	// every sixth call waits: 5 counted calls, then a reset
	assert.Len(t, sleeper.Waits(), 3)
	assert.Equal(t, 2, g.Count(CategoryUsersInfo))
}

func TestGuardReset(t *testing.T) {
	g, _, _ := newTestGuard(t, nil, afternoon)
	ep := g.MustEndpoint(CategoryFollowers)
	require.NoError(t, ep.Do(func() error { return nil }))

	g.Reset(CategoryFollowers)
	assert.Equal(t, 0, g.Count(CategoryFollowers))
	assert.Equal(t, "followers (0/20000)", ep.String())
}

func TestGuardPrometheusMetrics(t *testing.T) {
	metrics := NewPrometheusMetricsCollector("test")
	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)

	sleeper := &recordingSleeper{}
	g, err := NewGuard(map[Category]int{CategoryUsersInfo: 1},
		WithClock(fixedClock(afternoon)),
		WithSleeper(sleeper.Sleep),
		WithLogger(logger.NewNopLogger()),
		WithMetrics(metrics),
	)
	require.NoError(t, err)
	ep := g.MustEndpoint(CategoryUsersInfo)

	require.NoError(t, ep.Do(func() error { return nil }))
	require.NoError(t, ep.Do(func() error { return nil }))

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Calls.WithLabelValues("users_info")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Waits.WithLabelValues("users_info")))
	assert.Equal(t, (11 * time.Hour).Seconds(), testutil.ToFloat64(metrics.WaitSeconds.WithLabelValues("users_info")))

	metrics.Unregister(reg)
}
