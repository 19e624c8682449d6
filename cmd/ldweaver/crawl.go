package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/alvmarrod/ld-weaver/internal/config"
	"github.com/alvmarrod/ld-weaver/internal/crawler"
	"github.com/alvmarrod/ld-weaver/internal/graph"
	"github.com/alvmarrod/ld-weaver/internal/metrics"
	"github.com/alvmarrod/ld-weaver/internal/observer"
	"github.com/alvmarrod/ld-weaver/internal/pipeline"
	"github.com/alvmarrod/ld-weaver/internal/storage"
	"github.com/alvmarrod/ld-weaver/internal/urlsource"
	"github.com/alvmarrod/ld-weaver/internal/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type crawlFlags struct {
	configPath  string
	output      string
	urlsFile    string
	urlSource   string
	dbPath      string
	concurrency int
	plain       bool
}

func newCrawlCmd() *cobra.Command {
	var flags crawlFlags

	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl the URL list and write the merged graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, flags, args)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "config.json", "configuration file (JSON or YAML)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "destination RDF/XML file")
	cmd.Flags().StringVar(&flags.urlsFile, "urls-file", "", "read URLs from a newline-delimited file")
	cmd.Flags().StringVar(&flags.urlSource, "url-source", "", "fetch URLs from the directory service endpoint")
	cmd.Flags().StringVar(&flags.dbPath, "db", "", `run journal database ("-" disables)`)
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, "number of pages fetched ahead in parallel")
	cmd.Flags().BoolVar(&flags.plain, "plain", false, "also print progress and log lines to stdout")

	return cmd
}

func loadConfig(cmd *cobra.Command, flags crawlFlags) (*config.Config, error) {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		// The default config file is optional
		if cmd.Flags().Changed("config") || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		logrus.Infof("No %s found, using defaults", flags.configPath)
		cfg = &config.Config{}
	}

	if flags.output != "" {
		cfg.OutputPath = flags.output
	}
	if flags.urlsFile != "" {
		cfg.URLsFile = flags.urlsFile
		cfg.URLSource = ""
	}
	if flags.urlSource != "" {
		cfg.URLSource = flags.urlSource
		cfg.URLsFile = ""
	}
	if flags.dbPath != "" {
		cfg.DBPath = flags.dbPath
	}
	if flags.concurrency != 0 {
		cfg.FetchConcurrency = flags.concurrency
	}

	return config.Finalize(cfg)
}

func loadURLs(ctx context.Context, cfg *config.Config, fetcher *crawler.Fetcher, args []string) ([]string, error) {
	urls := append([]string{}, cfg.URLs...)
	urls = append(urls, args...)

	switch {
	case cfg.URLsFile != "":
		fromFile, err := urlsource.FromFile(cfg.URLsFile)
		if err != nil {
			return nil, err
		}
		urls = append(urls, fromFile...)
	case cfg.URLSource != "":
		fromService, err := urlsource.FromEndpoint(ctx, fetcher, cfg.URLSource)
		if err != nil {
			return nil, err
		}
		urls = append(urls, fromService...)
	}

	return urls, nil
}

func runCrawl(cmd *cobra.Command, flags crawlFlags, args []string) error {
	logrus.Infof("ld-weaver v%s starting...", version.Version)

	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	} else {
		logrus.Warnf("Unknown log_level %q, keeping info", cfg.LogLevel)
	}

	logrus.Infof("Configuration loaded: output=%s, timeout=%dms, concurrency=%d",
		cfg.OutputPath, cfg.RequestTimeoutMs, cfg.FetchConcurrency)

	timeout := time.Duration(cfg.RequestTimeoutMs) * time.Millisecond
	fetcher := crawler.NewFetcher(crawler.FetcherOptions{
		Timeout:           timeout,
		UserAgent:         cfg.UserAgent,
		RequestsPerSecond: cfg.RequestsPerSecond,
		MaxBodySize:       cfg.MaxBodyBytes,
	})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	urls, err := loadURLs(ctx, cfg, fetcher, args)
	if err != nil {
		return err
	}
	logrus.Infof("%d URLs loaded", len(urls))

	tracker := metrics.NewTracker()
	opts := pipeline.Options{
		OutputPath:       cfg.OutputPath,
		FallbackVocab:    cfg.FallbackVocab,
		FetchConcurrency: cfg.FetchConcurrency,
		Graph: graph.Options{
			AllowRemoteContexts: cfg.AllowRemoteContexts,
		},
		Tracker: tracker,
	}

	if cfg.JournalEnabled() {
		store, err := storage.NewStorage(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()
		opts.Journal = store
		logrus.Infof("Run journal: %s", cfg.DBPath)
	}

	observers := observer.Multi{observer.NewLogger(logrus.StandardLogger())}
	if flags.plain {
		observers = append(observers, observer.NewWriter(cmd.OutOrStdout()))
	}

	result := pipeline.NewRunner(fetcher, observers, opts).Run(ctx, urls)

	logrus.Info("Final stats: " + tracker.LogProgress())

	if err := tracker.WriteToFile(cfg.MetricsPath); err != nil {
		logrus.Errorf("Failed to write metrics: %v", err)
	} else {
		logrus.Infof("Metrics written to %s", cfg.MetricsPath)
	}
	if cfg.PromPath != "" {
		if err := tracker.WriteTextfile(cfg.PromPath); err != nil {
			logrus.Errorf("%v", err)
		}
	}

	if result.WriteErr != nil {
		return result.WriteErr
	}
	return nil
}
