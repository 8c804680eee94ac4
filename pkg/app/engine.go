package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog"

	"github.com/dyike/CortexTrade/config"
	"github.com/dyike/CortexTrade/internal/agents"
	"github.com/dyike/CortexTrade/internal/decision"
	"github.com/dyike/CortexTrade/internal/priority"
	"github.com/dyike/CortexTrade/internal/query"
	"github.com/dyike/CortexTrade/internal/retrieval"
	"github.com/dyike/CortexTrade/internal/stream"
	"github.com/dyike/CortexTrade/models"
)

// Engine is everything derived from one configuration value. The enriched
// view, recorders and executor live outside it and survive reloads.
type Engine struct {
	Config  config.Config
	BuiltAt time.Time
	Version uint64

	Panel     *agents.Panel
	Decisions *decision.Engine
	Answerer  *query.Answerer
	Index     *retrieval.Index
	Scorer    *priority.Scorer
}

// ChatModelFactory builds the chat model for a configuration.
type ChatModelFactory func(ctx context.Context, cfg config.Config) (model.ChatModel, error)

// Components are the long-lived collaborators shared by every engine.
type Components struct {
	View      *stream.Enricher
	Recorders []decision.Recorder
	// Executor is nil when on-chain execution is not configured.
	Executor  decision.Executor
	ChatModel ChatModelFactory
	Log       zerolog.Logger
}

var engineSeq atomic.Uint64

// NewBuilder returns an EngineBuilder bound to the shared components.
func NewBuilder(ctx context.Context, comps Components) EngineBuilder {
	if comps.ChatModel == nil {
		comps.ChatModel = agents.NewChatModel
	}
	return func(cfg config.Config) (*Engine, error) {
		return BuildEngine(ctx, cfg, comps)
	}
}

func BuildEngine(ctx context.Context, cfg config.Config, comps Components) (*Engine, error) {
	if comps.View == nil {
		return nil, fmt.Errorf("enriched view is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	factory := comps.ChatModel
	if factory == nil {
		factory = agents.NewChatModel
	}
	log := comps.Log

	cm, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	personas, err := agents.LoadPersonas(cfg.PersonasFile)
	if err != nil {
		return nil, err
	}
	panel, err := agents.NewPanel(ctx, cm, personas, cfg.LLMTimeout, log.With().Str("component", "panel").Logger())
	if err != nil {
		return nil, err
	}

	scorer := priority.NewScorer(cfg.FreshnessWindow)
	view := comps.View
	index := retrieval.NewIndex(func() []models.PriorityRecord {
		return scorer.Records(view.Snapshot())
	}, retrieval.NewHashEmbedder(0), cfg.RetrievalTopK)

	answerer, err := query.NewAnswerer(ctx, index, cm, cfg.LLMTimeout, log.With().Str("component", "query").Logger())
	if err != nil {
		return nil, err
	}

	opts := []decision.Option{
		decision.WithArbitrage(decision.Arbitrage{
			Threshold:       cfg.ArbitrageThreshold,
			Keyword:         cfg.ArbitrageKeyword,
			OracleSymbol:    cfg.OracleSymbol,
			OracleSource:    cfg.OracleSource,
			SecondarySource: cfg.SecondarySource,
		}),
		decision.WithRecorders(comps.Recorders...),
		decision.WithTradeTimeout(cfg.TradeTimeout),
		decision.WithExecuteDecisions(cfg.ExecuteDecisions),
		decision.WithLogger(log.With().Str("component", "decision").Logger()),
	}
	if comps.Executor != nil {
		opts = append(opts, decision.WithExecutor(comps.Executor))
	}

	return &Engine{
		Config:    cfg,
		BuiltAt:   time.Now(),
		Version:   engineSeq.Add(1),
		Panel:     panel,
		Decisions: decision.NewEngine(view, panel, opts...),
		Answerer:  answerer,
		Index:     index,
		Scorer:    scorer,
	}, nil
}
