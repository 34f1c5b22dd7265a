package plugin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "tiktokgraph/pkg/errors"
)

func TestDecodeOptions(t *testing.T) {
	opts, err := DecodeOptions(DefaultConfiguration().Merge(Configuration{
		"client_key":    "key",
		"client_secret": "secret",
	}))
	require.NoError(t, err)
	assert.Equal(t, Options{
		ClientKey:    "key",
		ClientSecret: "secret",
		TotalCount:   1500,
		FetchAll:     true,
		PageSize:     DefaultPageSize,
		Workers:      1,
	}, opts)
}

func TestDecodeOptionsWeakTypes(t *testing.T) {
	opts, err := DecodeOptions(Configuration{
		"client_key":    "key",
		"client_secret": "secret",
		"total_count":   "200",
		"fetch_all":     "false",
		"page_size":     50,
		"workers":       "0",
		"unrelated":     []string{"ignored"},
	})
	require.NoError(t, err)
	assert.Equal(t, 200, opts.TotalCount)
	assert.False(t, opts.FetchAll)
	assert.Equal(t, 50, opts.PageSize)
	assert.Equal(t, 1, opts.Workers)
}

func TestDecodeOptionsErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Configuration
		want string
	}{
		{"placeholder key", DefaultConfiguration(), "client_key is not set"},
		{"missing secret", Configuration{"client_key": "key"}, "client_secret is not set"},
		{"zero total", Configuration{"client_key": "k", "client_secret": "s", "total_count": 0}, "total_count must be positive, got 0"},
		{"bad total", Configuration{"client_key": "k", "client_secret": "s", "total_count": "many"}, "invalid plugin configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeOptions(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			var typed *errs.Error
			require.True(t, errors.As(err, &typed))
			assert.Equal(t, errs.ErrorTypeConfig, typed.Type)
		})
	}
}
