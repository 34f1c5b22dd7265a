package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiktokgraph/pkg/graph"
	"tiktokgraph/pkg/logger"
)

func TestConfigurationMerge(t *testing.T) {
	base := Configuration{"a": 1, "b": 2}
	merged := base.Merge(Configuration{"b": 3, "c": 4})

	assert.Equal(t, Configuration{"a": 1, "b": 3, "c": 4}, merged)
	assert.Equal(t, Configuration{"a": 1, "b": 2}, base, "merge does not modify the receiver")
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(logger.NewNopLogger())
	noop := func(context.Context, []string, Configuration) (graph.Edges, graph.Nodes, error) {
		return nil, nil, nil
	}

	require.NoError(t, reg.Register(&PlugIn{Name: "b", Callable: noop}))
	require.NoError(t, reg.Register(&PlugIn{Name: "a", Callable: noop}))

	assert.Error(t, reg.Register(&PlugIn{Name: "a", Callable: noop}), "duplicate name")
	assert.Error(t, reg.Register(&PlugIn{Name: "", Callable: noop}))
	assert.Error(t, reg.Register(&PlugIn{Name: "c"}))

	assert.Equal(t, []string{"a", "b"}, reg.Names())

	p, err := reg.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", p.Name)

	_, err = reg.Get("missing")
	assert.EqualError(t, err, "unknown plugin: missing")
}

func TestRegistryRunMergesDefaults(t *testing.T) {
	log := logger.NewTestLogger()
	reg := NewRegistry(log)

	var got Configuration
	require.NoError(t, reg.Register(&PlugIn{
		Name:                 "echo",
		DefaultConfiguration: Configuration{"total_count": 1500, "fetch_all": true},
		Callable: func(_ context.Context, handles []string, cfg Configuration) (graph.Edges, graph.Nodes, error) {
			got = cfg
			return graph.Edges{{Source: "b", Target: handles[0]}}, graph.Nodes{{Name: handles[0]}}, nil
		},
	}))

	edges, nodes, err := reg.Run(context.Background(), "echo", []string{"alice"}, Configuration{"fetch_all": false})
	require.NoError(t, err)
	assert.Len(t, edges, 1)
	assert.Len(t, nodes, 1)
	assert.Equal(t, Configuration{"total_count": 1500, "fetch_all": false}, got)

	msgs := log.GetMessagesByLevel("INFO")
	require.Len(t, msgs, 1)
	assert.Equal(t, "Plugin run completed", msgs[0].Message)
	assert.Equal(t, "echo", msgs[0].Fields["plugin"])
	assert.Equal(t, 1, msgs[0].Fields["edges"])
}

func TestRegistryRunLogsFailure(t *testing.T) {
	log := logger.NewTestLogger()
	reg := NewRegistry(log)
	boom := errors.New("boom")

	require.NoError(t, reg.Register(&PlugIn{
		Name: "fail",
		Callable: func(context.Context, []string, Configuration) (graph.Edges, graph.Nodes, error) {
			return nil, nil, boom
		},
	}))

	_, _, err := reg.Run(context.Background(), "fail", nil, nil)
	assert.Same(t, boom, err)
	assert.True(t, log.HasError())
}
