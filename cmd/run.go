package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/lukewwww/community-intern/pkg/config"
	"github.com/lukewwww/community-intern/pkg/extractor/httpextractor"
	"github.com/lukewwww/community-intern/pkg/index"
	"github.com/lukewwww/community-intern/pkg/index/fileprovider"
	"github.com/lukewwww/community-intern/pkg/index/urlprovider"
	"github.com/lukewwww/community-intern/pkg/lock/local"
	"github.com/lukewwww/community-intern/pkg/opsserver"
	"github.com/lukewwww/community-intern/pkg/prometheus"
	"github.com/lukewwww/community-intern/pkg/runtime"
	"github.com/lukewwww/community-intern/pkg/summarizer/httpsummarizer"
)

func runCommand(flagSources flagSourcesFn) *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "discover sources, refresh the cache, and serve operational endpoints",
		Action: runAction(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "sources-dir",
				Usage:    "Root directory of local text sources",
				Sources:  flagSources("sources.dir", "SOURCES_DIR"),
				Required: true,
			},
			&cli.StringFlag{
				Name:    "links-file-path",
				Usage:   "Path to a newline-delimited list of URLs to index",
				Sources: flagSources("sources.links-file-path", "LINKS_FILE_PATH"),
			},
			&cli.StringFlag{
				Name:     "index-cache-path",
				Usage:    "Path to the JSON cache file",
				Sources:  flagSources("index.cache-path", "INDEX_CACHE_PATH"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "index-path",
				Usage:    "Path to the rendered index artifact",
				Sources:  flagSources("index.path", "INDEX_PATH"),
				Required: true,
			},
			&cli.StringFlag{
				Name:    "index-prefix",
				Usage:   "Single line prepended to the rendered index artifact",
				Sources: flagSources("index.prefix", "INDEX_PREFIX"),
			},
			&cli.DurationFlag{
				Name:    "runtime-refresh-tick",
				Usage:   "Interval between refresh cycles, used when --refresh-schedule is unset",
				Sources: flagSources("runtime.refresh-tick", "RUNTIME_REFRESH_TICK"),
				Value:   config.DefaultRuntimeRefreshTick,
			},
			&cli.StringFlag{
				Name:    "refresh-schedule",
				Usage:   "Optional cron expression (5-field standard syntax) overriding the fixed refresh tick",
				Sources: flagSources("runtime.refresh-schedule", "REFRESH_SCHEDULE"),
				Validator: func(s string) error {
					if s == "" {
						return nil
					}

					_, err := cron.ParseStandard(s)

					return err
				},
			},
			&cli.DurationFlag{
				Name:    "url-refresh-min-interval",
				Usage:   "Minimum gap between successful checks of the same URL",
				Sources: flagSources("sources.url-refresh-min-interval", "URL_REFRESH_MIN_INTERVAL"),
				Value:   config.DefaultURLRefreshMinInterval,
			},
			&cli.IntFlag{
				Name:    "url-download-concurrency",
				Usage:   "Max parallel HTTP operations for the URL provider",
				Sources: flagSources("sources.url-download-concurrency", "URL_DOWNLOAD_CONCURRENCY"),
				Value:   int64(config.DefaultURLDownloadConcurrency),
			},
			&cli.IntFlag{
				Name:    "summarization-concurrency",
				Usage:   "Max parallel summarizer calls",
				Sources: flagSources("summarizer.concurrency", "SUMMARIZATION_CONCURRENCY"),
				Value:   int64(config.DefaultSummarizationConcurrency),
			},
			&cli.DurationFlag{
				Name:    "web-fetch-timeout",
				Usage:   "Timeout for a single URL provider HTTP round trip",
				Sources: flagSources("sources.web-fetch-timeout", "WEB_FETCH_TIMEOUT"),
				Value:   config.DefaultWebFetchTimeout,
			},
			&cli.StringSliceFlag{
				Name:    "source-type-order",
				Usage:   "Order source types are grouped in the index artifact, default [file url]",
				Sources: flagSources("index.source-type-order", "SOURCE_TYPE_ORDER"),
			},
			&cli.StringFlag{
				Name:    "base-summarization-prompt",
				Usage:   "System prompt prefix sent to the summarizer",
				Sources: flagSources("summarizer.base-prompt", "BASE_SUMMARIZATION_PROMPT"),
			},
			&cli.StringFlag{
				Name:    "project-introduction",
				Usage:   "Project introduction appended to the summarizer system prompt",
				Sources: flagSources("summarizer.project-introduction", "PROJECT_INTRODUCTION"),
			},
			&cli.StringFlag{
				Name:     "summarizer-url",
				Usage:    "HTTP endpoint the Summarizer Gate POSTs (system_prompt, text) to",
				Sources:  flagSources("summarizer.url", "SUMMARIZER_URL"),
				Required: true,
			},
			&cli.StringFlag{
				Name:    "ops-addr",
				Usage:   "Listen address for the /healthz and /metrics endpoints",
				Sources: flagSources("ops.addr", "OPS_ADDR"),
				Value:   ":9090",
			},
		},
	}
}

func buildConfig(cmd *cli.Command) (*config.Config, error) {
	cfg := &config.Config{
		SourcesDir:               cmd.String("sources-dir"),
		LinksFilePath:            cmd.String("links-file-path"),
		IndexCachePath:           cmd.String("index-cache-path"),
		IndexPath:                cmd.String("index-path"),
		IndexPrefix:              cmd.String("index-prefix"),
		RuntimeRefreshTick:       cmd.Duration("runtime-refresh-tick"),
		RefreshSchedule:          cmd.String("refresh-schedule"),
		URLRefreshMinInterval:    cmd.Duration("url-refresh-min-interval"),
		URLDownloadConcurrency:   int(cmd.Int("url-download-concurrency")),
		SummarizationConcurrency: int(cmd.Int("summarization-concurrency")),
		WebFetchTimeout:          cmd.Duration("web-fetch-timeout"),
		SourceTypeOrder:          cmd.StringSlice("source-type-order"),
		BaseSummarizationPrompt:  cmd.String("base-summarization-prompt"),
		ProjectIntroduction:      cmd.String("project-introduction"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func sourceTypeOrderOf(cfg *config.Config) []index.SourceType {
	order := make([]index.SourceType, len(cfg.SourceTypeOrder))
	for i, s := range cfg.SourceTypeOrder {
		order[i] = index.SourceType(s)
	}

	return order
}

func runAction() cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		logger := zerolog.Ctx(ctx).With().Str("cmd", "run").Logger()
		ctx = logger.WithContext(ctx)

		cfg, err := buildConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)

		defer func() {
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("error returned from background tasks")
			}
		}()

		g.Go(func() error {
			return autoMaxProcs(ctx, 30*time.Second, logger)
		})

		var gatherer promclient.Gatherer = promclient.NewRegistry()

		if cmd.Root().Bool("prometheus-enabled") {
			reg, shutdown, err := prometheus.Setup(ctx, cmd.Root().Name, Version)
			if err != nil {
				return err
			}

			gatherer = reg

			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("error shutting down Prometheus metrics")
				}
			}()

			logger.Info().Msg("Prometheus metrics enabled at /metrics")
		}

		store := index.NewStore(cfg.IndexCachePath)
		writer := index.NewWriter(cfg.IndexPath, cfg.IndexPrefix, sourceTypeOrderOf(cfg))

		ext := httpextractor.New(cfg.WebFetchTimeout)

		fp := fileprovider.New(cfg.SourcesDir)

		providers := []index.Provider{fp}

		if cfg.LinksFilePath != "" {
			up, err := urlprovider.New(cfg.LinksFilePath, ext, urlprovider.Options{
				DownloadConcurrency: cfg.URLDownloadConcurrency,
				RefreshMinInterval:  cfg.URLRefreshMinInterval,
				RetryBackoff:        cfg.RuntimeRefreshTick,
				FetchTimeout:        cfg.WebFetchTimeout,
			})
			if err != nil {
				return err
			}

			providers = append(providers, up)
		}

		summ := httpsummarizer.New(cmd.String("summarizer-url"), cfg.WebFetchTimeout)

		gate := index.NewSummarizerGate(
			summ, store, writer, cfg.SummarizationConcurrency, cfg.BaseSummarizationPrompt, cfg.ProjectIntroduction,
		)

		orch := index.NewOrchestrator(store, writer, providers, gate, local.NewLocker())

		var schedule cron.Schedule
		if cfg.RefreshSchedule != "" {
			schedule, err = cron.ParseStandard(cfg.RefreshSchedule)
			if err != nil {
				return err
			}
		}

		ops := opsserver.New(logger, gatherer)

		refresher := runtime.New(orch, cfg.RuntimeRefreshTick, schedule, ops.MarkReady)

		g.Go(func() error {
			refresher.Start(ctx)
			<-ctx.Done()
			refresher.Stop()

			return nil
		})

		httpSrv := &http.Server{
			BaseContext:       func(net.Listener) context.Context { return ctx },
			Addr:              cmd.String("ops-addr"),
			Handler:           ops,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			return httpSrv.Shutdown(shutdownCtx)
		})

		logger.Info().Str("ops_addr", cmd.String("ops-addr")).Msg("ops server started")

		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	}
}
