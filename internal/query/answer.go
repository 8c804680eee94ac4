package query

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/dyike/CortexTrade/internal/agents"
	"github.com/dyike/CortexTrade/internal/metrics"
	"github.com/dyike/CortexTrade/internal/retrieval"
	"github.com/dyike/CortexTrade/models"
)

var ErrEmptyQuery = errors.New("query text is required")

const (
	highRelevance = 0.9
	baseRelevance = 0.7
)

var actionWords = []string{"sell", "buy", "price"}

// Answerer answers free-text questions from the top ranked enriched rows.
type Answerer struct {
	retriever retriever.Retriever
	chain     compose.Runnable[map[string]any, *schema.Message]
	handler   callbacks.Handler
	timeout   time.Duration
	log       zerolog.Logger
}

func NewAnswerer(ctx context.Context, r retriever.Retriever, cm model.ChatModel, timeout time.Duration, log zerolog.Logger) (*Answerer, error) {
	tpl, err := agents.LoadPrompt("query")
	if err != nil {
		return nil, err
	}
	chain, err := compose.NewChain[map[string]any, *schema.Message]().
		AppendChatTemplate(prompt.FromMessages(schema.FString, schema.UserMessage(tpl))).
		AppendChatModel(cm).
		Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile query chain: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	log = log.With().Str("component", "query").Logger()
	return &Answerer{
		retriever: r,
		chain:     chain,
		handler:   agents.NewLogHandler(log),
		timeout:   timeout,
		log:       log,
	}, nil
}

// Answer retrieves context for q and asks the model, appending a relevance tag.
func (a *Answerer) Answer(ctx context.Context, q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", ErrEmptyQuery
	}

	docs, err := a.retriever.Retrieve(ctx, q)
	if err != nil {
		return "", fmt.Errorf("retrieve context: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	msg, err := a.chain.Invoke(callCtx, map[string]any{
		"query":   q,
		"context": Context(retrieval.Assets(docs)),
	}, compose.WithCallbacks(a.handler))
	if err != nil {
		metrics.ExternalFailures.WithLabelValues("llm").Inc()
		return "", fmt.Errorf("complete query: %w", err)
	}

	answer := fmt.Sprintf("%s\n(Relevance: %.1f)", msg.Content, Relevance(q))
	a.log.Info().Str("query", q).Int("context_rows", len(docs)).Msg("query answered")
	return answer, nil
}

// Relevance is 0.9 when the query mentions trading or price, else 0.7.
func Relevance(q string) float64 {
	lower := strings.ToLower(q)
	for _, w := range actionWords {
		if strings.Contains(lower, w) {
			return highRelevance
		}
	}
	return baseRelevance
}

// Context renders one "SYMBOL: price, Sentiment: s" line per row.
func Context(assets []models.EnrichedAsset) string {
	lines := make([]string, 0, len(assets))
	for _, a := range assets {
		price, sentiment := "unknown", "unknown"
		if a.CurrentPrice != nil {
			price = strconv.FormatFloat(*a.CurrentPrice, 'f', -1, 64)
		}
		if a.Sentiment != nil {
			sentiment = strconv.FormatFloat(*a.Sentiment, 'f', -1, 64)
		}
		lines = append(lines, fmt.Sprintf("%s: %s, Sentiment: %s", a.Symbol, price, sentiment))
	}
	return strings.Join(lines, "\n")
}
