// Package cmd defines and implements the commands of the spider executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/spider-client/internal/config"
	"github.com/JakeFAU/spider-client/internal/credentials"
	"github.com/JakeFAU/spider-client/internal/logging"
	"github.com/JakeFAU/spider-client/internal/metrics"
	"github.com/JakeFAU/spider-client/pkg/spider"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// skipClient marks commands that must not build an API client.
const skipClient = "skip-client"

// rootOptions holds the persistent flags.
type rootOptions struct {
	cfgFile      string
	apiKey       string
	contentType  string
	development  bool
	printMetrics bool
}

// App bundles what subcommands need.
type App struct {
	Config config.Config
	Logger *zap.Logger
	Client *spider.Client
}

// Close flushes the logger.
func (a *App) Close() {
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

// newApp is the application factory. It's a variable so tests can swap it.
var newApp = func(cmd *cobra.Command, opts *rootOptions) (*App, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewCLI(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}

	store := credentials.NewKeyringStore(cfg.Keyring.Service, cfg.Keyring.User)
	explicit := opts.apiKey
	if explicit == "" {
		explicit = cfg.APIKey
	}
	apiKey, err := credentials.Resolve(explicit, store)
	if err != nil {
		return nil, err
	}

	clientOpts := []spider.Option{
		spider.WithLogger(logger),
		spider.WithHTTPTimeout(cfg.HTTPTimeout()),
		spider.WithRetryPolicy(spider.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.BaseDelay(),
			Multiplier:  spider.DefaultRetryPolicy().Multiplier,
			MaxDelay:    cfg.MaxDelay(),
		}),
	}
	if cfg.APIURL != "" {
		clientOpts = append(clientOpts, spider.WithBaseURL(cfg.APIURL))
	}
	if cfg.Metrics.Enabled {
		metrics.Init()
		clientOpts = append(clientOpts, spider.WithObserver(metrics.Observer{}))
	}

	client, err := spider.New(apiKey, clientOpts...)
	if err != nil {
		return nil, err
	}
	logger.Debug("Spider client ready", zap.String("base_url", client.BaseURL()))
	return &App{Config: cfg, Logger: logger, Client: client}, nil
}

// loadConfig reads the configuration file and environment, then applies the
// persistent flags that were set explicitly.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("dev") {
		cfg.Logging.Development = opts.development
	}
	if flags.Changed("content-type") {
		cfg.ContentType = opts.contentType
	}
	return cfg, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "spider",
		Short: "Command line client for the Spider web crawling API.",
		Long: `spider calls the Spider API to scrape, crawl, search and transform web
pages. Results are printed to stdout as JSON; diagnostics go to stderr.

The API key is read from --api-key, SPIDER_API_KEY or the OS keychain entry
written by 'spider auth'.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if _, ok := cmd.Annotations[skipClient]; ok {
				return nil
			}
			appInstance, err := newApp(cmd, opts)
			if err != nil {
				return fmt.Errorf("initializing client: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, ok := cmd.Context().Value(appKey).(*App)
			if !ok || appInstance == nil {
				return nil
			}
			defer appInstance.Close()
			if opts.printMetrics && appInstance.Config.Metrics.Enabled {
				if err := metrics.WriteText(cmd.ErrOrStderr()); err != nil {
					return fmt.Errorf("printing metrics: %w", err)
				}
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.cfgFile, "config", "", "config file (YAML, TOML or JSON)")
	pf.StringVar(&opts.apiKey, "api-key", "", "Spider API key (overrides SPIDER_API_KEY and the keychain)")
	pf.StringVar(&opts.contentType, "content-type", spider.ContentTypeJSON, "response content type to request")
	pf.BoolVar(&opts.development, "dev", false, "verbose development logging")
	pf.BoolVar(&opts.printMetrics, "print-metrics", false, "dump client metrics to stderr on exit")

	cmd.AddCommand(
		newScrapeCmd(),
		newCrawlCmd(),
		newLinksCmd(),
		newScreenshotCmd(),
		newSearchCmd(),
		newTransformCmd(),
		newExtractLeadsCmd(),
		newLabelCmd(),
		newGetCrawlStateCmd(),
		newUnblockCmd(),
		newQueryCmd(),
		newGetCreditsCmd(),
		newDownloadCmd(),
		newAuthCmd(),
	)
	return cmd
}

func resolveApp(ctx context.Context) (*App, error) {
	appInstance, ok := ctx.Value(appKey).(*App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// run executes the command tree and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error %v\n", err)
		return 1
	}
	return 0
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
