package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"tiktokgraph/pkg/auth"
	"tiktokgraph/pkg/config"
	"tiktokgraph/pkg/graph"
	"tiktokgraph/pkg/logger"
	"tiktokgraph/pkg/plugin"
	"tiktokgraph/pkg/ratelimit"
	"tiktokgraph/pkg/research"
	"tiktokgraph/pkg/retry"
	"tiktokgraph/pkg/ui"
)

var (
	// Crawl command flags
	accountName string
	totalCount  int
	fetchAll    bool
	pageSize    int
	metricsAddr string
	workers     int
	format      string
	skipNodes   bool
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl <followers|followings> <handle>...",
	Short: "Collect followers or followings of TikTok accounts",
	Long: `Collect the followers or the followings of one or more TikTok accounts.

The result is printed as two tables:
  - edges: one row per relation (username -> target_account)
  - nodes: user info of the input handles, or of every handle in the
    edges table when --fetch-all is set

Credentials are read from, in order:
  - the --account flag (a stored account)
  - the configuration file or TIKTOKGRAPH_CLIENT_KEY / TIKTOKGRAPH_CLIENT_SECRET
  - the default stored account (see 'tiktokgraph auth login')`,
	Example: `  # Followers of one account with user info for every follower
  tiktokgraph crawl followers tiktok

  # Followings of two accounts, at most 200 each, user info for the inputs only
  tiktokgraph crawl followings alice bob --total-count 200 --fetch-all=false

  # Expose quota counters for Prometheus while crawling
  tiktokgraph crawl followers tiktok --metrics-addr :9090`,
	Args:      cobra.MinimumNArgs(2),
	ValidArgs: []string{plugin.FollowersPlugin, plugin.FollowingsPlugin},
	RunE:      runCrawl,
}

// pluginsCmd lists the registered plugins and their default configuration
var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List available crawler plugins",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, _, err := newRegistry(config.DefaultConfig(), logger.NewNopLogger(), nil)
		if err != nil {
			return err
		}

		ui.PrintHighlight("Plugins")
		for _, name := range reg.Names() {
			p, _ := reg.Get(name)
			ui.PrintInfo(name, formatConfiguration(p.DefaultConfiguration))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(pluginsCmd)

	crawlCmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored account")
	crawlCmd.Flags().IntVar(&totalCount, "total-count", 0, "maximum relations collected per handle (default from config)")
	crawlCmd.Flags().BoolVar(&fetchAll, "fetch-all", true, "fetch user info for every handle in the edges table")
	crawlCmd.Flags().IntVar(&pageSize, "page-size", 0, "relations requested per API call, 1-100 (default from config)")
	crawlCmd.Flags().IntVar(&workers, "workers", 0, "concurrent user info lookups (default from config)")
	crawlCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	crawlCmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table, csv, json, yaml)")
	crawlCmd.Flags().BoolVar(&skipNodes, "edges-only", false, "print only the edges table")
}

// crawlFlags collects the crawl flags set on the command line for config.Load
func crawlFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if totalCount > 0 {
		flags["total-count"] = totalCount
	}
	if cmd.Flags().Changed("page-size") {
		flags["page-size"] = pageSize
	}
	if workers > 0 {
		flags["workers"] = workers
	}
	if cmd.Flags().Changed("fetch-all") {
		flags["fetch-all"] = fetchAll
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if metricsAddr != "" {
		flags["metrics-addr"] = metricsAddr
	}
	if accountName != "" {
		flags["account"] = accountName
	}
	return flags
}

func runCrawl(cmd *cobra.Command, args []string) error {
	name := strings.ToLower(args[0])
	handles, err := parseHandles(args[1:])
	if err != nil {
		return err
	}

	flags := crawlFlags(cmd)

	outputFormat, err := graph.ParseFormat(format)
	if err != nil {
		return err
	}
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.WithField("version", version)

	key, secret, err := resolveCredentials(cfg, log)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	metrics := ratelimit.NewPrometheusMetricsCollector("tiktokgraph")
	metrics.MustRegister(registry)

	reg, crawler, err := newRegistry(cfg, log, metrics)
	if err != nil {
		return err
	}
	if _, err := reg.Get(name); err != nil {
		return fmt.Errorf("%w (available: %s)", err, strings.Join(reg.Names(), ", "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Address != "" {
		srv := serveMetrics(cfg.Metrics.Address, registry, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	ui.PrintInfo("Plugin", name)
	ui.PrintInfo("Handles", strings.Join(handles, ", "))

	edges, nodes, err := reg.Run(ctx, name, handles, plugin.Configuration{
		"client_key":    key,
		"client_secret": secret,
		"total_count":   cfg.Crawl.TotalCount,
		"fetch_all":     cfg.Crawl.FetchAll,
		"page_size":     cfg.Crawl.PageSize,
		"workers":       cfg.Crawl.Workers,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			ui.PrintWarning("Crawl interrupted")
		}
		return err
	}

	if err := writeTables(ui.Output(), edges, nodes, outputFormat); err != nil {
		return err
	}

	guard := crawler.Guard()
	for _, c := range ratelimit.Categories() {
		ui.PrintInfo("Quota used", guard.MustEndpoint(c).String())
	}
	ui.PrintSuccess("Crawl completed")
	return nil
}

// newRegistry wires the guard, the research client factory and the plugins
// from cfg. metrics may be nil.
func newRegistry(cfg *config.Config, log logger.Logger, metrics ratelimit.MetricsCollector) (*plugin.Registry, *plugin.Crawler, error) {
	quotas, err := ratelimit.QuotasFromConfig(cfg.Quotas)
	if err != nil {
		return nil, nil, err
	}

	opts := []ratelimit.Option{ratelimit.WithLogger(log)}
	if metrics != nil {
		opts = append(opts, ratelimit.WithMetrics(metrics))
	}
	guard, err := ratelimit.NewGuard(quotas, opts...)
	if err != nil {
		return nil, nil, err
	}

	factory := plugin.ResearchClientFactory(research.ClientConfig{
		BaseURL:           cfg.Research.BaseURL,
		Timeout:           cfg.Research.Timeout,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		BurstSize:         cfg.RateLimit.BurstSize,
		Retry:             retry.FromSettings(cfg.Retry, log),
	}, log)

	crawler, err := plugin.NewCrawler(guard, factory, log)
	if err != nil {
		return nil, nil, err
	}

	reg := plugin.NewRegistry(log)
	if err := plugin.Register(reg, crawler); err != nil {
		return nil, nil, err
	}
	return reg, crawler, nil
}

// resolveCredentials picks the client credentials for a crawl
func resolveCredentials(cfg *config.Config, log logger.Logger) (string, string, error) {
	if cfg.Research.Account == "" && cfg.Research.ClientKey != "" && cfg.Research.ClientSecret != "" {
		log.Info("Using credentials from configuration")
		return cfg.Research.ClientKey, cfg.Research.ClientSecret, nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return "", "", fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var account *auth.Account
	if cfg.Research.Account != "" {
		account, err = manager.Retrieve(cfg.Research.Account)
	} else {
		account, err = manager.RetrieveDefault()
	}
	if err != nil {
		log.WithError(err).Error("No credentials found")
		return "", "", fmt.Errorf("no Research API credentials found, run 'tiktokgraph auth login': %w", err)
	}

	log.WithField("account", account.Name).Info("Using stored credentials")
	ui.PrintInfo("Using account", account.Name)
	return account.ClientKey, account.ClientSecret, nil
}

// parseHandles sanitizes and validates the handles given on the command line
func parseHandles(args []string) ([]string, error) {
	handles := make([]string, 0, len(args))
	for _, arg := range args {
		handle := research.SanitizeHandle(arg)
		if !research.IsValidHandle(handle) {
			return nil, fmt.Errorf("invalid handle: %q", arg)
		}
		handles = append(handles, handle)
	}
	return handles, nil
}

func serveMetrics(addr string, registry *prometheus.Registry, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server failed")
		}
	}()
	log.WithField("addr", addr).Info("Serving metrics")
	return srv
}

// writeTables prints the edge table and, unless --edges-only is set, the node table
func writeTables(w io.Writer, edges graph.Edges, nodes graph.Nodes, format graph.Format) error {
	ui.PrintHighlight(fmt.Sprintf("Edges (%d)", len(edges)))
	if err := graph.WriteEdges(w, edges, format); err != nil {
		return fmt.Errorf("failed to write edges: %w", err)
	}
	if skipNodes {
		return nil
	}

	ui.PrintHighlight(fmt.Sprintf("Nodes (%d)", len(nodes)))
	if err := graph.WriteNodes(w, nodes, format); err != nil {
		return fmt.Errorf("failed to write nodes: %w", err)
	}
	return nil
}

func formatConfiguration(cfg plugin.Configuration) string {
	keys := []string{"client_key", "client_secret", "total_count", "fetch_all"}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v, ok := cfg[k]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	return strings.Join(parts, " ")
}
