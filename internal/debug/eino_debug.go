package debug

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/devops"
	"github.com/rs/zerolog"

	"github.com/dyike/CortexTrade/config"
)

// EinoDebugger starts the eino devops server so persona graphs and the
// query chain can be inspected while the process runs.
type EinoDebugger struct {
	enabled bool
	port    int
	log     zerolog.Logger
}

func NewEinoDebugger(cfg config.Config, log zerolog.Logger) *EinoDebugger {
	return &EinoDebugger{
		enabled: cfg.EinoDebugEnabled,
		port:    cfg.EinoDebugPort,
		log:     log.With().Str("component", "eino-debug").Logger(),
	}
}

// Initialize must run before any graph is compiled.
func (d *EinoDebugger) Initialize(ctx context.Context) error {
	if !d.enabled {
		return nil
	}
	if err := devops.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize Eino debug plugin: %w", err)
	}
	d.log.Info().Str("url", d.URL()).Msg("eino debug server initialized")
	return nil
}

func (d *EinoDebugger) IsEnabled() bool {
	return d.enabled
}

func (d *EinoDebugger) URL() string {
	if !d.enabled {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", d.port)
}
