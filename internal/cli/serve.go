package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dyike/CortexTrade/internal/debug"
	"github.com/dyike/CortexTrade/internal/decision"
	"github.com/dyike/CortexTrade/internal/feeds"
	"github.com/dyike/CortexTrade/internal/priority"
	"github.com/dyike/CortexTrade/internal/scheduler"
	"github.com/dyike/CortexTrade/internal/server"
	"github.com/dyike/CortexTrade/internal/stream"
	"github.com/dyike/CortexTrade/models"
	"github.com/dyike/CortexTrade/pkg/app"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		einoDebug bool
		noFeeds   bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run ingestion, the decision schedule and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			cfg := e.cfg
			log := e.log
			if einoDebug {
				cfg.EinoDebugEnabled = true
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := debug.NewEinoDebugger(cfg, log).Initialize(ctx); err != nil {
				return err
			}

			enricher := stream.NewEnricher()
			df := stream.NewDataflow(enricher, 256, log)

			recs, store, err := recorders(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			onchain, err := openChain(ctx, cfg, log)
			if err != nil {
				log.Warn().Err(err).Msg("chain unavailable, oracle and trades disabled")
			}
			defer onchain.close()

			rt, err := app.NewRuntime(e.mgr,
				app.WithBuilder(app.NewBuilder(ctx, app.Components{
					View:      enricher,
					Recorders: recs,
					Executor:  onchain.executor,
					ChatModel: newChatModel,
					Log:       log,
				})),
				app.WithLogger(log),
			)
			if err != nil {
				return err
			}
			defer rt.Close()

			var wg sync.WaitGroup
			goRun := func(name string, fn func(context.Context) error) {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := fn(ctx); err != nil && ctx.Err() == nil {
						log.Error().Err(err).Str("task", name).Msg("task stopped")
					}
				}()
			}

			goRun("dataflow", df.Run)
			goRun("portfolio-log", func(ctx context.Context) error {
				return stream.TailJSONL[models.Holding](ctx, cfg.PortfolioLog, df.Holdings(), log)
			})
			goRun("tick-log", func(ctx context.Context) error {
				return stream.TailJSONL[models.Tick](ctx, cfg.TickLog, df.Ticks(), log)
			})
			goRun("news-log", func(ctx context.Context) error {
				return stream.TailJSONL[models.NewsItem](ctx, cfg.NewsLog, df.News(), log)
			})

			if !noFeeds {
				set, err := feeds.Build(cfg, onchain.oracle, log)
				if err != nil {
					return err
				}
				log.Info().Strs("feeds", set.Names()).Msg("starting feeds")
				goRun("feeds", func(ctx context.Context) error {
					set.Run(ctx, df.Ticks(), df.News(), log)
					return nil
				})
			}

			sched := scheduler.New(ctx, rt, log.With().Str("component", "scheduler").Logger())
			if err := sched.Register(cfg.DecisionSchedule); err != nil {
				return err
			}
			sched.OnReport(func(r *decision.Report) {
				for _, d := range r.Decisions {
					log.Info().Str("symbol", d.Symbol).Str("action", string(d.Action)).Str("tx", d.TxHash).Msg("decision")
				}
			})
			sched.Start()
			defer sched.Stop()

			srv := server.New(cfg.HTTPAddr, server.Deps{
				Answerer:     rt,
				View:         enricher,
				PortfolioLog: cfg.PortfolioLog,
				History:      store,
				Scorer:       priority.NewScorer(cfg.FreshnessWindow),
			}, log)
			err = srv.ListenAndServe(ctx)
			stop()
			wg.Wait()
			return err
		},
	}
	cmd.Flags().BoolVar(&einoDebug, "eino-debug", false, "Start the eino visual debug server")
	cmd.Flags().BoolVar(&noFeeds, "no-feeds", false, "Only ingest the JSONL fact files")
	return cmd
}

// NewCollectCmd runs only the market feeds and appends what they emit to
// the tick and news logs.
func NewCollectCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := newCollectCmd(opts)
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Configuration file path")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.SilenceUsage = true
	return cmd
}

func newCollectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Run the market feeds and append ticks and news to the JSONL logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			onchain, err := openChain(ctx, e.cfg, e.log)
			if err != nil {
				e.log.Warn().Err(err).Msg("chain unavailable, oracle disabled")
			}
			defer onchain.close()

			set, err := feeds.Build(e.cfg, onchain.oracle, e.log)
			if err != nil {
				return err
			}
			e.log.Info().Strs("feeds", set.Names()).Str("ticks", e.cfg.TickLog).Str("news", e.cfg.NewsLog).Msg("collecting")
			err = feeds.Collect(ctx, set, e.cfg.TickLog, e.cfg.NewsLog, e.log)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
