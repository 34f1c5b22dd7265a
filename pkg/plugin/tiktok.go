package plugin

import (
	"context"
	"fmt"
	"sync"

	"tiktokgraph/internal/fetcher"
	"tiktokgraph/pkg/graph"
	"tiktokgraph/pkg/logger"
	"tiktokgraph/pkg/ratelimit"
	"tiktokgraph/pkg/research"
)

const (
	// FollowersPlugin collects the followers of the input handles
	FollowersPlugin = "followers"
	// FollowingsPlugin collects the accounts the input handles follow
	FollowingsPlugin = "followings"
)

// API is the part of the Research API client the plugins use
type API interface {
	UserInfo(ctx context.Context, handle string) (*research.UserInfo, error)
	AllFollowers(ctx context.Context, handles []string, maxCount, totalCount int) ([]graph.Edge, error)
	AllFollowing(ctx context.Context, handles []string, maxCount, totalCount int) ([]graph.Edge, error)
}

// ClientFactory creates an API client for the credentials in opts
type ClientFactory func(opts Options) API

// ResearchClientFactory returns a factory that builds research clients from
// base with the credentials of each Options filled in
func ResearchClientFactory(base research.ClientConfig, log logger.Logger) ClientFactory {
	return func(opts Options) API {
		cfg := base
		cfg.ClientKey = opts.ClientKey
		cfg.ClientSecret = opts.ClientSecret
		return research.NewClient(cfg, log)
	}
}

type credentials struct {
	key    string
	secret string
}

// session is the client and user info cache of one credential pair
type session struct {
	api   API
	nodes *ratelimit.Memo[string, graph.Node]
}

// Crawler implements the followers and followings plugins. Every entry point
// call and every user info lookup is counted by the guard.
type Crawler struct {
	guard      *ratelimit.Guard
	followers  *ratelimit.Endpoint
	followings *ratelimit.Endpoint
	usersInfo  *ratelimit.Endpoint
	newClient  ClientFactory
	logger     logger.Logger

	mu       sync.Mutex
	sessions map[credentials]*session
}

// NewCrawler creates a crawler counting against guard
func NewCrawler(guard *ratelimit.Guard, newClient ClientFactory, log logger.Logger) (*Crawler, error) {
	if guard == nil {
		return nil, fmt.Errorf("crawler needs a guard")
	}
	if newClient == nil {
		return nil, fmt.Errorf("crawler needs a client factory")
	}
	if log == nil {
		log = logger.GetLogger()
	}

	c := &Crawler{
		guard:     guard,
		newClient: newClient,
		logger:    log,
		sessions:  make(map[credentials]*session),
	}

	var err error
	if c.followers, err = guard.Endpoint(ratelimit.CategoryFollowers); err != nil {
		return nil, err
	}
	if c.followings, err = guard.Endpoint(ratelimit.CategoryFollowings); err != nil {
		return nil, err
	}
	if c.usersInfo, err = guard.Endpoint(ratelimit.CategoryUsersInfo); err != nil {
		return nil, err
	}

	return c, nil
}

// Followers is the entry point of the followers plugin
func (c *Crawler) Followers(ctx context.Context, handles []string, cfg Configuration) (graph.Edges, graph.Nodes, error) {
	var edges graph.Edges
	var nodes graph.Nodes
	err := c.followers.Do(func() error {
		var err error
		edges, nodes, err = c.crawl(ctx, FollowersPlugin, handles, cfg)
		return err
	})
	return edges, nodes, err
}

// Followings is the entry point of the followings plugin
func (c *Crawler) Followings(ctx context.Context, handles []string, cfg Configuration) (graph.Edges, graph.Nodes, error) {
	var edges graph.Edges
	var nodes graph.Nodes
	err := c.followings.Do(func() error {
		var err error
		edges, nodes, err = c.crawl(ctx, FollowingsPlugin, handles, cfg)
		return err
	})
	return edges, nodes, err
}

func (c *Crawler) crawl(ctx context.Context, kind string, handles []string, cfg Configuration) (graph.Edges, graph.Nodes, error) {
	opts, err := DecodeOptions(cfg)
	if err != nil {
		return nil, nil, err
	}
	s := c.session(opts)

	log := c.logger.WithFields(map[string]interface{}{
		"plugin":  kind,
		"handles": len(handles),
	})
	log.Debug("Collecting edges")

	var raw []graph.Edge
	if kind == FollowersPlugin {
		raw, err = s.api.AllFollowers(ctx, handles, opts.PageSize, opts.TotalCount)
	} else {
		raw, err = s.api.AllFollowing(ctx, handles, opts.PageSize, opts.TotalCount)
	}
	if err != nil {
		return nil, nil, err
	}
	edges := graph.Edges(raw)

	targets := handles
	if opts.FetchAll {
		targets = edges.Handles()
	}

	nodes, err := fetcher.Resolve(ctx, targets, opts.Workers, s.nodes.Get, c.logger)
	if err != nil {
		return nil, nil, err
	}

	log.DebugWithFields("Crawl finished", map[string]interface{}{
		"edges": len(edges),
		"nodes": len(nodes),
	})

	return edges, nodes, nil
}

// session returns the client and cache for the credentials of opts,
// creating them on first use
func (c *Crawler) session(opts Options) *session {
	key := credentials{key: opts.ClientKey, secret: opts.ClientSecret}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.sessions[key]; ok {
		return s
	}

	c.logger.Info("Creating Research API client")
	api := c.newClient(opts)
	lookup := ratelimit.Wrap2(c.usersInfo, func(ctx context.Context, handle string) (graph.Node, error) {
		info, err := api.UserInfo(ctx, handle)
		if err != nil {
			return graph.Node{}, err
		}
		return info.Node(), nil
	})

	s := &session{api: api, nodes: ratelimit.NewMemo(lookup)}
	c.sessions[key] = s
	return s
}

// Register adds the followers and followings plugins backed by c to reg
func Register(reg *Registry, c *Crawler) error {
	plugins := []*PlugIn{
		{
			Name:                 FollowersPlugin,
			DefaultConfiguration: DefaultConfiguration(),
			Callable:             c.Followers,
			Tables:               map[string]map[string]string{"edges": {}, "nodes": {}},
			Metadata:             map[string]any{},
		},
		{
			Name:                 FollowingsPlugin,
			DefaultConfiguration: DefaultConfiguration(),
			Callable:             c.Followings,
			Tables:               map[string]map[string]string{"edges": {}, "nodes": {}},
			Metadata:             map[string]any{},
		},
	}

	for _, p := range plugins {
		if err := reg.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// Guard returns the guard the crawler counts against
func (c *Crawler) Guard() *ratelimit.Guard {
	return c.guard
}
