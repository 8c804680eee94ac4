package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/dyike/CortexTrade/internal/decision"
)

// Runner runs one decision cycle.
type Runner interface {
	RunCycle(ctx context.Context) (*decision.Report, error)
}

// Scheduler triggers decision cycles on a cron spec. A cycle that is still
// running when the next one is due causes that trigger to be skipped.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	ctx    context.Context
	log    zerolog.Logger

	mu      sync.Mutex
	reports []func(*decision.Report)
}

// New creates a Scheduler. ctx bounds every cycle it starts.
func New(ctx context.Context, runner Runner, log zerolog.Logger) *Scheduler {
	adapter := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(adapter),
			cron.SkipIfStillRunning(adapter),
		)),
		runner: runner,
		ctx:    ctx,
		log:    log,
	}
}

// Register adds the decision cycle under spec ("@every 1m", "*/5 * * * *").
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.RunNow); err != nil {
		return fmt.Errorf("register decision cycle %q: %w", spec, err)
	}
	s.log.Info().Str("schedule", spec).Msg("decision cycle registered")
	return nil
}

// OnReport registers fn to be called with each completed cycle.
func (s *Scheduler) OnReport(fn func(*decision.Report)) {
	s.mu.Lock()
	s.reports = append(s.reports, fn)
	s.mu.Unlock()
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops triggering and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunNow executes one cycle synchronously.
func (s *Scheduler) RunNow() {
	if s.ctx.Err() != nil {
		return
	}
	report, err := s.runner.RunCycle(s.ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("decision cycle skipped")
		return
	}
	s.log.Info().
		Str("cycle_id", report.CycleID).
		Float64("phs", report.PHS).
		Int("decisions", len(report.Decisions)).
		Msg("decision cycle complete")

	s.mu.Lock()
	fns := append([]func(*decision.Report){}, s.reports...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(report)
	}
}

type cronLogger struct {
	log zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
