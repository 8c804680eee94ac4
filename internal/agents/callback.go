package agents

import (
	"context"

	"github.com/cloudwego/eino/callbacks"
	"github.com/rs/zerolog"
)

// NewLogHandler logs every component run of a persona or query graph.
func NewLogHandler(log zerolog.Logger) callbacks.Handler {
	return callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *callbacks.RunInfo, _ callbacks.CallbackInput) context.Context {
			if info != nil {
				log.Debug().Str("node", info.Name).Str("component", string(info.Component)).Msg("llm step start")
			}
			return ctx
		}).
		OnEndFn(func(ctx context.Context, info *callbacks.RunInfo, _ callbacks.CallbackOutput) context.Context {
			if info != nil {
				log.Debug().Str("node", info.Name).Str("component", string(info.Component)).Msg("llm step end")
			}
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			name := ""
			if info != nil {
				name = info.Name
			}
			log.Warn().Err(err).Str("node", name).Msg("llm step failed")
			return ctx
		}).
		Build()
}
