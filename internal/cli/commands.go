package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyike/CortexTrade/config"
	"github.com/dyike/CortexTrade/internal/audit"
	"github.com/dyike/CortexTrade/internal/display"
	"github.com/dyike/CortexTrade/internal/priority"
	"github.com/dyike/CortexTrade/internal/storage/sqlite"
	"github.com/dyike/CortexTrade/internal/stream"
	"github.com/dyike/CortexTrade/internal/utils"
	"github.com/dyike/CortexTrade/models"
	"github.com/dyike/CortexTrade/pkg/app"
	mdutil "github.com/dyike/CortexTrade/pkg/utils"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "cortextrade",
		Short: "CortexTrade - streaming portfolio enrichment and multi-agent trade decisions",
		Long: `CortexTrade joins market ticks, news sentiment and portfolio holdings into one
enriched view, lets a panel of LLM personas vote on every holding, and records
each decision to an audit log and, optionally, an on-chain trade contract.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newCollectCmd(opts))
	rootCmd.AddCommand(newDecideCmd(opts))
	rootCmd.AddCommand(newQueryCmd(opts))
	rootCmd.AddCommand(newPortfolioCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "CortexTrade %s\n", Version)
		},
	}
}

// newDecideCmd runs a single decision cycle over the recorded facts.
func newDecideCmd(opts *rootOptions) *cobra.Command {
	var execute, yes, markdown bool
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Run one decision cycle over the recorded portfolio, ticks and news",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			cfg := e.cfg
			if cmd.Flags().Changed("execute") {
				cfg.ExecuteDecisions = execute
			}
			ctx := cmd.Context()

			view, err := snapshot(cfg, e.log)
			if err != nil {
				return err
			}
			recs, store, err := recorders(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			comps := app.Components{View: view, Recorders: recs, ChatModel: newChatModel, Log: e.log}
			onchain, err := openChain(ctx, cfg, e.log)
			if err != nil {
				e.log.Warn().Err(err).Msg("chain unavailable, trades disabled")
			} else {
				defer onchain.close()
				comps.Executor = onchain.executor
			}
			if cfg.ExecuteDecisions && comps.Executor != nil && !yes {
				ok, err := PromptForExecution(cfg.ContractAddress)
				if err != nil {
					return err
				}
				if !ok {
					cfg.ExecuteDecisions = false
				}
			}

			engine, err := app.BuildEngine(ctx, cfg, comps)
			if err != nil {
				return err
			}
			report, err := engine.Decisions.RunCycle(ctx)
			if err != nil {
				return err
			}
			display.Report(cmd.OutOrStdout(), report)
			if markdown {
				path, err := mdutil.WriteMarkdown(filepath.Join(cfg.ResultsDir, "reports"), "cycle_"+report.CycleID+".md", display.Markdown(report))
				if err != nil {
					return err
				}
				display.Success(cmd.OutOrStdout(), "report written to "+path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&execute, "execute", false, "Submit final buy/sell decisions on-chain")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Also write the cycle report as markdown under the results directory")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the execution confirmation prompt")
	return cmd
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query [QUESTION...]",
		Short: "Ask a question about the portfolio",
		Long: `Answer a free-text question using the most relevant enriched holdings as context.
Without arguments an interactive prompt asks for the question.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := strings.TrimSpace(strings.Join(args, " "))
			if q == "" {
				var err error
				if q, err = PromptForQuery(); err != nil {
					return err
				}
			}
			e, err := opts.load()
			if err != nil {
				return err
			}
			view, err := snapshot(e.cfg, e.log)
			if err != nil {
				return err
			}
			engine, err := app.BuildEngine(cmd.Context(), e.cfg, app.Components{View: view, ChatModel: newChatModel, Log: e.log})
			if err != nil {
				return err
			}
			answer, err := engine.Answerer.Answer(cmd.Context(), q)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}
}

func newPortfolioCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Show the enriched portfolio ranked by priority",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			view, err := snapshot(e.cfg, e.log)
			if err != nil {
				return err
			}
			assets := view.Snapshot()
			if len(assets) == 0 {
				display.Info(cmd.OutOrStdout(), "no holdings in "+e.cfg.PortfolioLog)
				return nil
			}
			records := priority.NewScorer(e.cfg.FreshnessWindow).Records(assets)
			sortByPriority(records)
			display.Portfolio(cmd.OutOrStdout(), records)
			return nil
		},
	}
	cmd.AddCommand(newPortfolioImportCmd(opts))
	return cmd
}

func newPortfolioImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Append holdings from a CSV file to the portfolio log",
		Long: `Read symbol,quantity,purchase_price rows and append them to the portfolio
log. A running server picks them up through its tail of the same file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			holdings, err := utils.ParseHoldingsCSV(f)
			if err != nil {
				return err
			}
			for _, h := range holdings {
				if err := stream.AppendJSONL(e.cfg.PortfolioLog, h); err != nil {
					return err
				}
			}
			display.Success(cmd.OutOrStdout(), fmt.Sprintf("imported %d holdings into %s", len(holdings), e.cfg.PortfolioLog))
			return nil
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		symbol    string
		limit     int
		cursor    int64
		fromAudit bool
		exportCSV bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if fromAudit {
				entries, err := audit.Read(e.cfg.AuditLogPath, limit)
				if err != nil {
					return err
				}
				display.AuditEntries(out, entries)
				return nil
			}
			store, err := sqlite.Open(e.cfg.SQLitePath)
			if err != nil {
				return err
			}
			defer store.Close()
			items, err := store.ListDecisions(cmd.Context(), symbol, cursor, limit)
			if err != nil {
				return err
			}
			display.History(out, items)
			if exportCSV && len(items) > 0 {
				decisions := make([]models.Decision, len(items))
				for i, it := range items {
					decisions[i] = it.Decision
				}
				path, err := utils.NewCSVManager(e.cfg.ResultsDir).WriteDecisionsCSV(decisions)
				if err != nil {
					return err
				}
				display.Success(out, "exported to "+path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "Only show decisions for this symbol")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of decisions")
	cmd.Flags().Int64Var(&cursor, "cursor", 0, "Show decisions older than this row id")
	cmd.Flags().BoolVar(&fromAudit, "audit", false, "Read the audit log instead of the history database")
	cmd.Flags().BoolVar(&exportCSV, "csv", false, "Export the listed decisions to a CSV file under the results directory")
	return cmd
}

// newConfigCmd creates the config command
func newConfigCmd(opts *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "Manage CortexTrade configuration settings",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			showConfig(cmd.OutOrStdout(), e.mgr.Path(), e.cfg)
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			return validateConfig(cmd.Context(), cmd.OutOrStdout(), e.cfg)
		},
	})

	return configCmd
}

func showConfig(w io.Writer, path string, cfg config.Config) {
	fmt.Fprintln(w, "Current CortexTrade Configuration:")
	fmt.Fprintf(w, "Config File:          %s\n", path)
	fmt.Fprintf(w, "Data Directory:       %s\n", cfg.DataDir)
	fmt.Fprintf(w, "Results Directory:    %s\n", cfg.ResultsDir)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "LLM Provider:         %s\n", cfg.LLMProvider)
	fmt.Fprintf(w, "LLM Model:            %s\n", cfg.LLMModel)
	fmt.Fprintf(w, "Backend URL:          %s\n", cfg.BackendURL)
	fmt.Fprintf(w, "LLM Timeout:          %s\n", cfg.LLMTimeout)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stock Symbols:        %s (%s)\n", strings.Join(cfg.StockSymbols, ", "), cfg.StockProvider)
	fmt.Fprintf(w, "Crypto Symbols:       %s\n", strings.Join(cfg.CryptoSymbols, ", "))
	fmt.Fprintf(w, "Decision Schedule:    %s\n", cfg.DecisionSchedule)
	fmt.Fprintf(w, "Arbitrage:            %s %s vs %s above %.2f%% for *%s*\n",
		cfg.OracleSymbol, cfg.OracleSource, cfg.SecondarySource, cfg.ArbitrageThreshold*100, cfg.ArbitrageKeyword)
	fmt.Fprintf(w, "Execute Decisions:    %t\n", cfg.ExecuteDecisions)
	fmt.Fprintf(w, "HTTP Address:         %s\n", cfg.HTTPAddr)
	fmt.Fprintf(w, "Eino Debug:           %t\n", cfg.EinoDebugEnabled)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "API Configuration:")
	for _, k := range []struct {
		name string
		set  bool
	}{
		{"OpenAI", cfg.OpenAIAPIKey != ""},
		{"DeepSeek", cfg.DeepSeekAPIKey != ""},
		{"Alpha Vantage", cfg.AlphaVantageAPIKey != ""},
		{"NewsAPI", cfg.NewsAPIKey != ""},
		{"Longport", cfg.LongportAppKey != "" && cfg.LongportAccessToken != ""},
		{"Trade signer", cfg.PrivateKey != "" && cfg.ContractAddress != ""},
	} {
		status := "not configured"
		if k.set {
			status = "configured"
		}
		fmt.Fprintf(w, "  %-20s%s\n", k.name+":", status)
	}
}

func validateConfig(ctx context.Context, w io.Writer, cfg config.Config) error {
	var problems []error
	if err := cfg.Validate(); err != nil {
		problems = append(problems, err)
	}
	if cfg.LLMProvider == "openai" && cfg.OpenAIAPIKey == "" && cfg.DeepSeekAPIKey == "" {
		problems = append(problems, errors.New("no LLM API key configured (OPENAI_API_KEY or DEEPSEEK_API_KEY)"))
	}
	if cfg.LLMProvider == "deepseek" && cfg.DeepSeekAPIKey == "" {
		problems = append(problems, errors.New("DEEPSEEK_API_KEY is required for the deepseek provider"))
	}
	if cfg.ExecuteDecisions && (cfg.PrivateKey == "" || cfg.ContractAddress == "") {
		problems = append(problems, errors.New("execute_decisions needs PRIVATE_KEY and CONTRACT_ADDRESS"))
	}
	if len(problems) == 0 {
		if _, err := newChatModel(ctx, cfg); err != nil {
			problems = append(problems, err)
		}
	}
	if err := errors.Join(problems...); err != nil {
		display.Error(w, err)
		return fmt.Errorf("configuration invalid")
	}
	display.Success(w, "configuration is valid")
	return nil
}

func sortByPriority(records []models.PriorityRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Priority > records[j].Priority
	})
}
