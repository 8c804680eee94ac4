package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexTrade/internal/llmtest"
	"github.com/dyike/CortexTrade/internal/retrieval"
	"github.com/dyike/CortexTrade/models"
)

func ptr[T any](v T) *T { return &v }

func staticIndex() *retrieval.Index {
	return retrieval.NewIndex(func() []models.PriorityRecord {
		return []models.PriorityRecord{
			{Priority: 2, Data: models.EnrichedAsset{Symbol: "BTCUSDT", Quantity: 1, PurchasePrice: 50000, CurrentPrice: ptr(53000.0), Sentiment: ptr(0.7)}},
			{Priority: 1, Data: models.EnrichedAsset{Symbol: "AAPL", Quantity: 1, PurchasePrice: 180}},
		}
	}, nil, 5)
}

func TestAnswer(t *testing.T) {
	cm := llmtest.Reply("Consider trimming BTC.")
	a, err := NewAnswerer(context.Background(), staticIndex(), cm, time.Second, zerolog.Nop())
	require.NoError(t, err)

	got, err := a.Answer(context.Background(), "Should I sell BTCUSDT?")
	require.NoError(t, err)
	assert.Equal(t, "Consider trimming BTC.\n(Relevance: 0.9)", got)

	prompts := cm.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Query: Should I sell BTCUSDT?\nContext: ")
	assert.Contains(t, prompts[0], "BTCUSDT: 53000, Sentiment: 0.7")
	assert.Contains(t, prompts[0], "AAPL: unknown, Sentiment: unknown")
	assert.Contains(t, prompts[0], "\nResponse:")
}

func TestAnswerEmptyQuery(t *testing.T) {
	a, err := NewAnswerer(context.Background(), staticIndex(), llmtest.Reply("x"), time.Second, zerolog.Nop())
	require.NoError(t, err)
	_, err = a.Answer(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestAnswerCompletionFailure(t *testing.T) {
	cm := &llmtest.ChatModel{Respond: func(string) (string, error) { return "", errors.New("model offline") }}
	a, err := NewAnswerer(context.Background(), staticIndex(), cm, time.Second, zerolog.Nop())
	require.NoError(t, err)
	_, err = a.Answer(context.Background(), "how is my portfolio")
	assert.ErrorContains(t, err, "model offline")
}

type brokenRetriever struct{}

func (brokenRetriever) Retrieve(context.Context, string, ...retriever.Option) ([]*schema.Document, error) {
	return nil, errors.New("index unavailable")
}

func TestAnswerRetrievalFailure(t *testing.T) {
	a, err := NewAnswerer(context.Background(), brokenRetriever{}, llmtest.Reply("x"), time.Second, zerolog.Nop())
	require.NoError(t, err)
	_, err = a.Answer(context.Background(), "price of AAPL")
	assert.ErrorContains(t, err, "index unavailable")
}

func TestRelevance(t *testing.T) {
	assert.Equal(t, 0.9, Relevance("What PRICE is BTC at"))
	assert.Equal(t, 0.9, Relevance("buy?"))
	assert.Equal(t, 0.7, Relevance("how is my portfolio doing"))
}
