package feeds

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dyike/CortexTrade/internal/stream"
	"github.com/dyike/CortexTrade/models"
)

// Collect runs every producer in the set and appends what they emit to the
// tick and news logs, so a separate server can tail them. It returns when
// ctx is cancelled.
func Collect(ctx context.Context, set Set, tickPath, newsPath string, log zerolog.Logger) error {
	ticks := make(chan models.Tick, 64)
	news := make(chan models.NewsItem, 64)

	done := make(chan struct{})
	go func() {
		defer close(done)
		set.Run(ctx, ticks, news, log)
	}()

	var written int
	for {
		select {
		case <-ctx.Done():
			<-done
			log.Info().Int("records", written).Msg("collector stopped")
			return ctx.Err()
		case t := <-ticks:
			if err := stream.AppendJSONL(tickPath, t); err != nil {
				log.Error().Err(err).Str("symbol", t.Symbol).Msg("append tick failed")
				continue
			}
			written++
		case n := <-news:
			if err := stream.AppendJSONL(newsPath, n); err != nil {
				log.Error().Err(err).Str("symbol", n.Symbol).Msg("append news failed")
				continue
			}
			written++
		}
	}
}
