package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tiktokgraph/pkg/graph"
	"tiktokgraph/pkg/logger"
)

// Configuration is the free-form configuration a host hands to a plugin
type Configuration map[string]any

// Merge returns a copy of c with every key of over applied on top
func (c Configuration) Merge(over Configuration) Configuration {
	merged := make(Configuration, len(c)+len(over))
	for k, v := range c {
		merged[k] = v
	}
	for k, v := range over {
		merged[k] = v
	}
	return merged
}

// Callable is a plugin entry point: it crawls from handles and returns the
// edge and node tables
type Callable func(ctx context.Context, handles []string, cfg Configuration) (graph.Edges, graph.Nodes, error)

// PlugIn describes one entry point offered to the host
type PlugIn struct {
	Name                 string
	DefaultConfiguration Configuration
	Callable             Callable
	// Tables names the tables the plugin produces, mapped to their column types
	Tables   map[string]map[string]string
	Metadata map[string]any
}

// Registry holds the plugins known to the host
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]*PlugIn
	logger  logger.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(log logger.Logger) *Registry {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Registry{
		plugins: make(map[string]*PlugIn),
		logger:  log,
	}
}

// Register adds p under its name
func (r *Registry) Register(p *PlugIn) error {
	if p == nil || p.Name == "" {
		return fmt.Errorf("plugin must have a name")
	}
	if p.Callable == nil {
		return fmt.Errorf("plugin %s has no callable", p.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[p.Name]; exists {
		return fmt.Errorf("plugin %s already registered", p.Name)
	}
	r.plugins[p.Name] = p
	return nil
}

// Get returns the plugin registered under name
func (r *Registry) Get(name string) (*PlugIn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[name]
	if !ok {
		return nil, fmt.Errorf("unknown plugin: %s", name)
	}
	return p, nil
}

// Names returns the registered plugin names in lexical order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run invokes the plugin name with cfg merged over its default configuration
func (r *Registry) Run(ctx context.Context, name string, handles []string, cfg Configuration) (graph.Edges, graph.Nodes, error) {
	p, err := r.Get(name)
	if err != nil {
		return nil, nil, err
	}

	edges, nodes, err := p.Callable(ctx, handles, p.DefaultConfiguration.Merge(cfg))
	logger.LogPluginRun(r.logger, name, len(handles), len(edges), len(nodes), err)
	return edges, nodes, err
}
