package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dyike/CortexTrade/consts"
	"github.com/dyike/CortexTrade/internal/metrics"
	"github.com/dyike/CortexTrade/models"
)

var (
	ErrNoHoldings       = errors.New("no holdings to decide on")
	ErrExecutorDisabled = errors.New("trade executor disabled")
)

// View is the materialized state a decision cycle reads.
type View interface {
	PriceSource
	Snapshot() []models.EnrichedAsset
}

// Voter collects one vote per persona for a situation summary.
type Voter interface {
	Vote(ctx context.Context, symbol, summary string) []models.AgentVote
}

// Executor submits a trade and returns its transaction id.
type Executor interface {
	Submit(ctx context.Context, symbol string, price float64) (string, error)
}

// Recorder persists a finished decision.
type Recorder interface {
	Record(ctx context.Context, d models.Decision) error
}

type Report struct {
	CycleID   string            `json:"cycle_id"`
	PHS       float64           `json:"phs"`
	StartedAt time.Time         `json:"started_at"`
	Decisions []models.Decision `json:"decisions"`
}

type Engine struct {
	view      View
	voter     Voter
	arbitrage Arbitrage
	executor  Executor
	recorders []Recorder

	tradeTimeout     time.Duration
	executeDecisions bool

	log zerolog.Logger
	now func() time.Time
}

type Option func(*Engine)

func WithArbitrage(a Arbitrage) Option {
	return func(e *Engine) { e.arbitrage = a }
}

func WithExecutor(x Executor) Option {
	return func(e *Engine) { e.executor = x }
}

func WithRecorders(rs ...Recorder) Option {
	return func(e *Engine) { e.recorders = append(e.recorders, rs...) }
}

func WithTradeTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.tradeTimeout = d
		}
	}
}

// WithExecuteDecisions makes final buy/sell decisions trade as well.
func WithExecuteDecisions(enabled bool) Option {
	return func(e *Engine) { e.executeDecisions = enabled }
}

func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log.With().Str("component", "decision").Logger() }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(view View, voter Voter, opts ...Option) *Engine {
	e := &Engine{
		view:         view,
		voter:        voter,
		arbitrage:    DefaultArbitrage(),
		tradeTimeout: 60 * time.Second,
		log:          zerolog.Nop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunCycle decides every held asset against the current snapshot. A failing
// asset is logged and skipped.
func (e *Engine) RunCycle(ctx context.Context) (*Report, error) {
	assets := e.view.Snapshot()
	if len(assets) == 0 {
		return nil, ErrNoHoldings
	}

	phs := PortfolioHealth(assets)
	report := &Report{
		CycleID:   uuid.NewString(),
		PHS:       Round2(phs),
		StartedAt: e.now(),
	}
	metrics.PortfolioHealth.Set(report.PHS)
	log := e.log.With().Str("cycle", report.CycleID).Logger()
	log.Info().Int("assets", len(assets)).Float64("phs", report.PHS).Msg("decision cycle started")

	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		d, err := e.decideSafely(ctx, report.CycleID, asset, phs)
		if err != nil {
			log.Error().Err(err).Str("symbol", asset.Symbol).Msg("asset decision failed")
			continue
		}
		e.record(ctx, d)
		report.Decisions = append(report.Decisions, d)
	}

	log.Info().Int("decisions", len(report.Decisions)).Msg("decision cycle finished")
	return report, nil
}

func (e *Engine) decideSafely(ctx context.Context, cycleID string, asset models.EnrichedAsset, phs float64) (d models.Decision, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic deciding %s: %v", asset.Symbol, rec)
		}
	}()
	return e.Decide(ctx, cycleID, asset, phs), nil
}

// Decide runs the persona vote, the arbitrage override and, when enabled,
// trade execution for one asset.
func (e *Engine) Decide(ctx context.Context, cycleID string, asset models.EnrichedAsset, phs float64) models.Decision {
	votes := e.voter.Vote(ctx, asset.Symbol, Summary(asset, phs))
	tally := Count(votes)

	arbitraged := false
	if sig := e.arbitrage.Check(e.view, asset.Symbol); sig.Fire {
		arbitraged = true
		metrics.ArbitrageTotal.WithLabelValues(asset.Symbol).Inc()
		vote := models.AgentVote{
			Agent:       consts.ArbitrageAgent,
			Action:      models.ActionBuy,
			Explanation: e.arbitrage.Explain(sig),
		}
		vote.TxHash = e.submit(ctx, asset.Symbol, sig.OraclePrice)
		e.log.Info().Str("symbol", asset.Symbol).Str("tx", vote.TxHash).
			Float64("oracle", sig.OraclePrice).Float64("secondary", sig.SecondaryPrice).Msg("arbitrage trade")
		votes = append(votes, vote)
		add(&tally, models.ActionBuy)
	}

	d := models.Decision{
		ID:           uuid.NewString(),
		CycleID:      cycleID,
		Symbol:       asset.Symbol,
		Price:        asset.CurrentPrice,
		Action:       Winner(tally),
		Explanations: votes,
		Votes:        tally,
		PHS:          Round2(phs),
		DecidedAt:    e.now(),
	}
	if arbitraged {
		d.TxHash = votes[len(votes)-1].TxHash
	} else if e.executeDecisions && d.Action.IsTrade() && d.Price != nil {
		d.TxHash = e.submit(ctx, d.Symbol, *d.Price)
	}

	metrics.DecisionsTotal.WithLabelValues(string(d.Action)).Inc()
	e.log.Info().Str("symbol", d.Symbol).Str("action", string(d.Action)).
		Int("buy", tally.Buy).Int("sell", tally.Sell).Int("hold", tally.Hold).Msg("decision")
	return d
}

// submit returns an empty id when the executor fails or is missing.
func (e *Engine) submit(ctx context.Context, symbol string, price float64) string {
	if e.executor == nil {
		e.log.Warn().Err(ErrExecutorDisabled).Str("symbol", symbol).Msg("trade skipped")
		return ""
	}
	tradeCtx, cancel := context.WithTimeout(ctx, e.tradeTimeout)
	defer cancel()

	tx, err := e.executor.Submit(tradeCtx, symbol, price)
	if err != nil {
		metrics.ExternalFailures.WithLabelValues("trade").Inc()
		e.log.Error().Err(err).Str("symbol", symbol).Float64("price", price).Msg("trade failed")
		return ""
	}
	return tx
}

func (e *Engine) record(ctx context.Context, d models.Decision) {
	for _, r := range e.recorders {
		if err := r.Record(ctx, d); err != nil {
			e.log.Error().Err(err).Str("symbol", d.Symbol).Msg("record decision failed")
		}
	}
}
