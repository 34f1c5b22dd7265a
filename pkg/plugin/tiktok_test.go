package plugin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiktokgraph/pkg/graph"
	"tiktokgraph/pkg/logger"
	"tiktokgraph/pkg/ratelimit"
	"tiktokgraph/pkg/research"
)

// fakeAPI returns canned relations and records user info lookups
type fakeAPI struct {
	mu          sync.Mutex
	relations   []graph.Edge
	relationErr error
	infoErr     map[string]error
	infoCalls   map[string]int
	lastTotal   int
	lastPage    int
}

func newFakeAPI(relations ...graph.Edge) *fakeAPI {
	return &fakeAPI{
		relations: relations,
		infoErr:   map[string]error{},
		infoCalls: map[string]int{},
	}
}

func (f *fakeAPI) UserInfo(_ context.Context, handle string) (*research.UserInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infoCalls[handle]++
	if err := f.infoErr[handle]; err != nil {
		return nil, err
	}
	return &research.UserInfo{Username: handle, DisplayName: "name of " + handle}, nil
}

func (f *fakeAPI) AllFollowers(_ context.Context, _ []string, maxCount, totalCount int) ([]graph.Edge, error) {
	f.lastPage, f.lastTotal = maxCount, totalCount
	return f.relations, f.relationErr
}

func (f *fakeAPI) AllFollowing(_ context.Context, _ []string, maxCount, totalCount int) ([]graph.Edge, error) {
	f.lastPage, f.lastTotal = maxCount, totalCount
	return f.relations, f.relationErr
}

func newTestCrawler(t *testing.T, api API, quotas map[ratelimit.Category]int) (*Crawler, *ratelimit.Guard, *[]time.Duration) {
	t.Helper()
	var waits []time.Duration
	guard, err := ratelimit.NewGuard(quotas,
		ratelimit.WithClock(func() time.Time { return time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC) }),
		ratelimit.WithSleeper(func(d time.Duration) { waits = append(waits, d) }),
		ratelimit.WithLogger(logger.NewNopLogger()),
	)
	require.NoError(t, err)

	factoryCalls := 0
	crawler, err := NewCrawler(guard, func(Options) API {
		factoryCalls++
		return api
	}, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { assert.LessOrEqual(t, factoryCalls, 1) })

	return crawler, guard, &waits
}

var credentialsConfig = Configuration{"client_key": "key", "client_secret": "secret"}

func TestFollowersFetchAll(t *testing.T) {
	api := newFakeAPI(
		graph.Edge{Source: "bob", Target: "alice"},
		graph.Edge{Source: "carol", Target: "alice"},
	)
	crawler, guard, _ := newTestCrawler(t, api, nil)

	edges, nodes, err := crawler.Followers(context.Background(), []string{"alice"}, credentialsConfig.Merge(Configuration{"fetch_all": true}))
	require.NoError(t, err)

	assert.Len(t, edges, 2)
	assert.Equal(t, []string{"bob", "alice", "carol"}, nodes.Names())
	assert.Equal(t, "name of bob", nodes[0].DisplayName)

	assert.Equal(t, 1, guard.Count(ratelimit.CategoryFollowers))
	assert.Equal(t, 0, guard.Count(ratelimit.CategoryFollowings))
	assert.Equal(t, 3, guard.Count(ratelimit.CategoryUsersInfo))
}

func TestFollowingsInputHandlesOnly(t *testing.T) {
	api := newFakeAPI(
		graph.Edge{Source: "alice", Target: "bob"},
		graph.Edge{Source: "alice", Target: "carol"},
	)
	crawler, guard, _ := newTestCrawler(t, api, nil)

	_, nodes, err := crawler.Followings(context.Background(), []string{"alice"}, credentialsConfig.Merge(Configuration{
		"fetch_all":   false,
		"total_count": 10,
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"alice"}, nodes.Names())
	assert.Equal(t, 10, api.lastTotal)
	assert.Equal(t, DefaultPageSize, api.lastPage)
	assert.Equal(t, 1, guard.Count(ratelimit.CategoryFollowings))
	assert.Equal(t, 1, guard.Count(ratelimit.CategoryUsersInfo))
}

func TestUserInfoIsMemoizedAcrossRuns(t *testing.T) {
	api := newFakeAPI(graph.Edge{Source: "bob", Target: "alice"})
	crawler, guard, _ := newTestCrawler(t, api, nil)

	for i := 0; i < 3; i++ {
		_, _, err := crawler.Followers(context.Background(), []string{"alice"}, credentialsConfig)
		require.NoError(t, err)
	}
	_, _, err := crawler.Followings(context.Background(), []string{"alice"}, credentialsConfig)
	require.NoError(t, err)

	assert.Equal(t, 1, api.infoCalls["alice"])
	assert.Equal(t, 1, api.infoCalls["bob"])
	assert.Equal(t, 2, guard.Count(ratelimit.CategoryUsersInfo))
	assert.Equal(t, 3, guard.Count(ratelimit.CategoryFollowers))
}

func TestCrawlerWaitsWhenEntryQuotaIsSpent(t *testing.T) {
	api := newFakeAPI(graph.Edge{Source: "bob", Target: "alice"})
	crawler, guard, waits := newTestCrawler(t, api, map[ratelimit.Category]int{ratelimit.CategoryFollowers: 1})

	_, _, err := crawler.Followers(context.Background(), []string{"alice"}, credentialsConfig)
	require.NoError(t, err)
	assert.Empty(t, *waits)

	_, _, err = crawler.Followers(context.Background(), []string{"alice"}, credentialsConfig)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{11 * time.Hour}, *waits)
	assert.Equal(t, 0, guard.Count(ratelimit.CategoryFollowers))
}

func TestCrawlerPropagatesErrors(t *testing.T) {
	upstream := errors.New("api down")
	api := newFakeAPI()
	api.relationErr = upstream
	crawler, guard, _ := newTestCrawler(t, api, nil)

	edges, nodes, err := crawler.Followers(context.Background(), []string{"alice"}, credentialsConfig)
	assert.Same(t, upstream, err)
	assert.Nil(t, edges)
	assert.Nil(t, nodes)
	assert.Equal(t, 1, guard.Count(ratelimit.CategoryFollowers), "failed calls still count")
}

func TestFollowersConcurrentLookups(t *testing.T) {
	api := newFakeAPI(
		graph.Edge{Source: "bob", Target: "alice"},
		graph.Edge{Source: "carol", Target: "alice"},
		graph.Edge{Source: "dave", Target: "alice"},
		graph.Edge{Source: "bob", Target: "erin"},
	)
	crawler, guard, _ := newTestCrawler(t, api, nil)

	_, nodes, err := crawler.Followers(context.Background(), []string{"alice", "erin"}, credentialsConfig.Merge(Configuration{"workers": 3}))
	require.NoError(t, err)

	assert.Equal(t, []string{"bob", "alice", "carol", "dave", "erin"}, nodes.Names())
	assert.Equal(t, 5, guard.Count(ratelimit.CategoryUsersInfo))
	for _, n := range nodes.Names() {
		assert.Equal(t, 1, api.infoCalls[n])
	}
}

func TestCrawlerUserInfoFailure(t *testing.T) {
	upstream := errors.New("no such user")
	api := newFakeAPI(graph.Edge{Source: "ghost", Target: "alice"})
	api.infoErr["ghost"] = upstream
	crawler, _, _ := newTestCrawler(t, api, nil)

	_, _, err := crawler.Followers(context.Background(), []string{"alice"}, credentialsConfig)
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream)
	assert.Contains(t, err.Error(), "user info for ghost")
}

func TestCrawlerRejectsMissingCredentials(t *testing.T) {
	crawler, _, _ := newTestCrawler(t, newFakeAPI(), nil)

	_, _, err := crawler.Followers(context.Background(), []string{"alice"}, DefaultConfiguration())
	assert.EqualError(t, err, "client_key is not set")
}

func TestRegisterThroughRegistry(t *testing.T) {
	api := newFakeAPI(graph.Edge{Source: "bob", Target: "alice"})
	crawler, _, _ := newTestCrawler(t, api, nil)
	reg := NewRegistry(logger.NewNopLogger())

	require.NoError(t, Register(reg, crawler))
	assert.Equal(t, []string{FollowersPlugin, FollowingsPlugin}, reg.Names())

	p, err := reg.Get(FollowersPlugin)
	require.NoError(t, err)
	assert.Equal(t, 1500, p.DefaultConfiguration["total_count"])
	assert.Contains(t, p.Tables, "edges")
	assert.Contains(t, p.Tables, "nodes")

	edges, nodes, err := reg.Run(context.Background(), FollowersPlugin, []string{"alice"}, credentialsConfig)
	require.NoError(t, err)
	assert.Len(t, edges, 1)
	assert.Len(t, nodes, 2)

	assert.Error(t, Register(reg, crawler), "plugins are registered once")
}

func TestNewCrawlerValidation(t *testing.T) {
	guard, err := ratelimit.NewGuard(nil)
	require.NoError(t, err)

	_, err = NewCrawler(nil, func(Options) API { return nil }, nil)
	assert.Error(t, err)
	_, err = NewCrawler(guard, nil, nil)
	assert.Error(t, err)
}
