package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dyike/CortexTrade/config"
	"github.com/dyike/CortexTrade/internal/agents"
	"github.com/dyike/CortexTrade/internal/audit"
	"github.com/dyike/CortexTrade/internal/chain"
	"github.com/dyike/CortexTrade/internal/decision"
	"github.com/dyike/CortexTrade/internal/feeds"
	"github.com/dyike/CortexTrade/internal/logger"
	"github.com/dyike/CortexTrade/internal/storage/sqlite"
	"github.com/dyike/CortexTrade/internal/stream"
	"github.com/dyike/CortexTrade/pkg/app"
)

// newChatModel is swapped in tests.
var newChatModel app.ChatModelFactory = agents.NewChatModel

type rootOptions struct {
	configPath string
	logLevel   string
}

type env struct {
	mgr *config.Manager
	cfg config.Config
	log zerolog.Logger
}

func (o *rootOptions) load() (*env, error) {
	level := o.logLevel
	if level == "" {
		level = "info"
	}
	log := logger.Console(level)

	initial := config.DefaultConfig()
	opts := []config.ManagerOption{config.WithLogger(log)}
	if o.configPath != "" {
		opts = append(opts, config.WithConfigPath(o.configPath))
		initial = config.FromEnv(filepath.Dir(o.configPath))
	}
	opts = append(opts, config.WithInitialConfig(initial))

	mgr, err := config.NewManager(opts...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := mgr.Get()
	if o.logLevel == "" && cfg.LogLevel != "" {
		log = logger.Console(cfg.LogLevel)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	return &env{mgr: mgr, cfg: cfg, log: log}, nil
}

// chainDeps holds the optional on-chain collaborators.
type chainDeps struct {
	executor decision.Executor
	oracle   feeds.RoundReader
	close    func()
}

// openChain dials the RPC endpoint when one is configured. The executor is
// only built when both a contract and a signing key are present.
func openChain(ctx context.Context, cfg config.Config, log zerolog.Logger) (chainDeps, error) {
	deps := chainDeps{close: func() {}}
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return deps, nil
	}
	client, err := chain.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return deps, err
	}
	deps.close = client.Close

	if cfg.OracleFeedAddress != "" {
		oracle, err := chain.NewOracle(client, cfg.OracleFeedAddress)
		if err != nil {
			log.Warn().Err(err).Msg("oracle disabled")
		} else {
			deps.oracle = oracle
		}
	}
	if cfg.ContractAddress != "" && cfg.PrivateKey != "" {
		exec, err := chain.NewExecutor(client, cfg.ContractAddress, cfg.PrivateKey, log.With().Str("component", "executor").Logger())
		if err != nil {
			log.Warn().Err(err).Msg("trade executor disabled")
		} else {
			deps.executor = exec
			log.Info().Str("from", exec.From().Hex()).Msg("trade executor ready")
		}
	}
	return deps, nil
}

// recorders opens the audit log and decision history.
func recorders(cfg config.Config) ([]decision.Recorder, *sqlite.Store, error) {
	auditLog, err := audit.New(cfg.AuditLogPath)
	if err != nil {
		return nil, nil, err
	}
	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	return []decision.Recorder{auditLog, store}, store, nil
}

// snapshot rebuilds the enriched view from the recorded fact files.
func snapshot(cfg config.Config, log zerolog.Logger) (*stream.Enricher, error) {
	e := stream.NewEnricher()
	n, err := stream.Replay(e, cfg.PortfolioLog, cfg.TickLog, cfg.NewsLog)
	if err != nil {
		return nil, fmt.Errorf("replay facts: %w", err)
	}
	log.Debug().Int("facts", n).Msg("snapshot replayed")
	return e, nil
}
