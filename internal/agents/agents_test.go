package agents

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexTrade/config"
	"github.com/dyike/CortexTrade/consts"
	"github.com/dyike/CortexTrade/internal/llmtest"
	"github.com/dyike/CortexTrade/models"
)

func TestClassify(t *testing.T) {
	cases := map[string]models.Action{
		"I would BUY more here":                 models.ActionBuy,
		"Sell now.":                             models.ActionSell,
		"Don't buy, sell instead":               models.ActionBuy,
		"Hold and wait for confirmation":        models.ActionHold,
		"The outlook is bleak, reduce exposure": models.ActionHold,
		"":                                      models.ActionHold,
	}
	for text, want := range cases {
		assert.Equal(t, want, Classify(text), text)
	}
}

func TestLoadDefaultPersonas(t *testing.T) {
	personas, err := LoadPersonas("")
	require.NoError(t, err)
	require.Len(t, personas, 3)
	assert.Equal(t, consts.ConservativeAgent, personas[0].Name)
	assert.Equal(t, consts.AggressiveAgent, personas[1].Name)
	assert.Equal(t, consts.BalancedAgent, personas[2].Name)
	for _, p := range personas {
		assert.Contains(t, p.Template, "{data}")
		assert.Contains(t, p.Template, "{symbol}")
	}
}

func TestLoadPersonasOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
personas:
  - name: Contrarian
    template: "Go against the crowd on {symbol}: {data}"
  - name: Balanced
    prompt: balanced
`), 0o644))

	personas, err := LoadPersonas(path)
	require.NoError(t, err)
	require.Len(t, personas, 2)
	assert.Equal(t, "Go against the crowd on {symbol}: {data}", personas[0].Template)
	assert.True(t, strings.HasPrefix(personas[1].Template, "Balanced"))
}

func TestLoadPersonasRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")
	require.NoError(t, os.WriteFile(path, []byte("personas:\n  - name: A\n    template: x\n  - name: A\n    template: y\n"), 0o644))
	_, err := LoadPersonas(path)
	assert.ErrorContains(t, err, "duplicate")
}

func newTestPanel(t *testing.T, cm *llmtest.ChatModel, timeout time.Duration) *Panel {
	t.Helper()
	personas, err := LoadPersonas("")
	require.NoError(t, err)
	p, err := NewPanel(context.Background(), cm, personas, timeout, zerolog.Nop())
	require.NoError(t, err)
	return p
}

func TestPanelVotesInPersonaOrder(t *testing.T) {
	cm := llmtest.ByKeyword(map[string]string{
		"Risk-averse": "Hold, volatility is high.",
		"Aggressive":  "Buy aggressively.",
		"Balanced":    "Sell some to rebalance.",
	}, "hold")
	p := newTestPanel(t, cm, time.Second)

	votes := p.Vote(context.Background(), "AAPL", "Current Price: 190, Purchase Price: 180")
	require.Len(t, votes, 3)
	assert.Equal(t, models.AgentVote{Agent: "Conservative", Action: models.ActionHold, Explanation: "Hold, volatility is high."}, votes[0])
	assert.Equal(t, models.ActionBuy, votes[1].Action)
	assert.Equal(t, models.ActionSell, votes[2].Action)

	prompts := cm.Prompts()
	require.Len(t, prompts, 3)
	for _, prompt := range prompts {
		assert.Contains(t, prompt, "Given Current Price: 190, Purchase Price: 180, recommend buy, sell, or hold for AAPL")
	}
}

func TestPanelFailureVotesHold(t *testing.T) {
	cm := &llmtest.ChatModel{Respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Aggressive") {
			return "", errors.New("rate limited")
		}
		return "buy", nil
	}}
	p := newTestPanel(t, cm, time.Second)

	votes := p.Vote(context.Background(), "TSLA", "data")
	require.Len(t, votes, 3)
	assert.Equal(t, models.ActionBuy, votes[0].Action)
	assert.Equal(t, models.ActionHold, votes[1].Action)
	assert.Contains(t, votes[1].Explanation, "rate limited")
	assert.Equal(t, models.ActionBuy, votes[2].Action)
}

func TestPanelTimeoutVotesHold(t *testing.T) {
	cm := llmtest.Reply("buy")
	cm.Delay = time.Second
	p := newTestPanel(t, cm, 20*time.Millisecond)

	start := time.Now()
	votes := p.Vote(context.Background(), "TSLA", "data")
	assert.Less(t, time.Since(start), 900*time.Millisecond)
	for _, v := range votes {
		assert.Equal(t, models.ActionHold, v.Action)
	}
}

func TestNewChatModelRejectsUnknownProvider(t *testing.T) {
	cfg := *config.DefaultConfigWithRoot(t.TempDir())
	cfg.LLMProvider = "llama"
	_, err := NewChatModel(context.Background(), cfg)
	assert.ErrorContains(t, err, "unsupported")
}
