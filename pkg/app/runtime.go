package app

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dyike/CortexTrade/config"
	"github.com/dyike/CortexTrade/internal/decision"
)

type EngineBuilder func(config.Config) (*Engine, error)

type Option func(*Runtime)

func WithBuilder(builder EngineBuilder) Option {
	return func(r *Runtime) {
		if builder != nil {
			r.builder = builder
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(r *Runtime) {
		r.log = log
	}
}

// Runtime holds the current Engine and swaps it when the configuration
// file changes. Callers that already hold an Engine keep using it.
type Runtime struct {
	cfgMgr *config.Manager
	engine atomic.Pointer[Engine]

	builder EngineBuilder
	log     zerolog.Logger
	cancel  context.CancelFunc
}

func NewRuntime(cfgMgr *config.Manager, opts ...Option) (*Runtime, error) {
	if cfgMgr == nil {
		return nil, fmt.Errorf("config manager is required")
	}

	rt := &Runtime{
		cfgMgr: cfgMgr,
		log:    zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(rt)
	}
	if rt.builder == nil {
		return nil, fmt.Errorf("engine builder is required")
	}

	if err := rt.reload(cfgMgr.Get()); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	rt.cancel = cancel
	if err := cfgMgr.Watch(ctx, func(cfg config.Config) {
		if err := rt.reload(cfg); err != nil {
			rt.log.Error().Err(err).Msg("engine reload failed, keeping previous engine")
		}
	}); err != nil {
		cancel()
		return nil, err
	}

	return rt, nil
}

func (r *Runtime) Engine() *Engine {
	return r.engine.Load()
}

func (r *Runtime) Close() {
	if r.cancel != nil {
		r.cancel()
	}
}

// RunCycle runs one decision cycle on the current engine.
func (r *Runtime) RunCycle(ctx context.Context) (*decision.Report, error) {
	return r.Engine().Decisions.RunCycle(ctx)
}

// Answer answers a query with the current engine.
func (r *Runtime) Answer(ctx context.Context, q string) (string, error) {
	return r.Engine().Answerer.Answer(ctx, q)
}

func (r *Runtime) reload(cfg config.Config) error {
	engine, err := r.builder(cfg)
	if err != nil {
		return err
	}
	r.engine.Store(engine)
	r.log.Info().Uint64("version", engine.Version).Time("built_at", engine.BuiltAt).Msg("engine built")
	return nil
}
