package plugin

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	errs "tiktokgraph/pkg/errors"
)

const (
	placeholderClientKey    = "INSERT_YOUR_CLIENT_KEY"
	placeholderClientSecret = "INSERT_YOUR_CLIENT_SECRET"

	// DefaultTotalCount caps the relations collected per handle
	DefaultTotalCount = 1500
	// DefaultPageSize is the page size requested from the API
	DefaultPageSize = 100
)

// Options are the typed settings of the TikTok plugins
type Options struct {
	ClientKey    string `mapstructure:"client_key"`
	ClientSecret string `mapstructure:"client_secret"`
	TotalCount   int    `mapstructure:"total_count"`
	FetchAll     bool   `mapstructure:"fetch_all"`
	PageSize     int    `mapstructure:"page_size"`
	// Workers is the number of concurrent user info lookups
	Workers int `mapstructure:"workers"`
}

// DefaultConfiguration is the configuration the TikTok plugins advertise
func DefaultConfiguration() Configuration {
	return Configuration{
		"client_key":    placeholderClientKey,
		"client_secret": placeholderClientSecret,
		"total_count":   DefaultTotalCount,
		"fetch_all":     true,
	}
}

// DecodeOptions converts a host configuration into Options. Values may be
// given as strings ("1500", "true"); unknown keys are ignored.
func DecodeOptions(cfg Configuration) (Options, error) {
	opts := Options{
		TotalCount: DefaultTotalCount,
		FetchAll:   true,
		PageSize:   DefaultPageSize,
		Workers:    1,
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opts,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Options{}, fmt.Errorf("failed to create options decoder: %w", err)
	}
	if err := decoder.Decode(map[string]any(cfg)); err != nil {
		return Options{}, errs.NewConfigError(err, "invalid plugin configuration: %v", err)
	}

	opts.ClientKey = strings.TrimSpace(opts.ClientKey)
	opts.ClientSecret = strings.TrimSpace(opts.ClientSecret)

	if opts.ClientKey == "" || opts.ClientKey == placeholderClientKey {
		return Options{}, errs.NewConfigError(nil, "client_key is not set")
	}
	if opts.ClientSecret == "" || opts.ClientSecret == placeholderClientSecret {
		return Options{}, errs.NewConfigError(nil, "client_secret is not set")
	}
	if opts.TotalCount <= 0 {
		return Options{}, errs.NewConfigError(nil, "total_count must be positive, got %d", opts.TotalCount)
	}

	if opts.Workers < 1 {
		opts.Workers = 1
	}

	return opts, nil
}
