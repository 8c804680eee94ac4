package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexTrade/config"
	"github.com/dyike/CortexTrade/internal/llmtest"
)

func useModel(t *testing.T, cm model.ChatModel) {
	t.Helper()
	prev := newChatModel
	newChatModel = func(context.Context, config.Config) (model.ChatModel, error) { return cm, nil }
	t.Cleanup(func() { newChatModel = prev })
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// workspace writes fact files under a fresh root and returns the config path.
func workspace(t *testing.T) string {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DEEPSEEK_API_KEY", "")
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(data, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(data, "portfolio.jsonl"), []byte(
		`{"symbol":"BTCUSDT","quantity":2,"price":50000}`+"\n"+
			`{"symbol":"AAPL","quantity":10,"price":150}`+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(data, "ticks.jsonl"), []byte(
		`{"symbol":"BTCUSDT","price":51000,"timestamp":"1700000000","source":"coingecko"}`+"\n"+
			`{"symbol":"AAPL","price":140,"timestamp":"1700000000","source":"alphavantage"}`+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(data, "news.jsonl"), []byte(
		`{"symbol":"AAPL","sentiment":0.25,"headline":"Weak iPhone demand","timestamp":"1700000000"}`+"\n"), 0o644))
	return filepath.Join(dir, "config.json")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "CortexTrade")
}

func TestConfigShow(t *testing.T) {
	path := workspace(t)
	out, err := run(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.Contains(t, out, "@every 1m")
	assert.Contains(t, out, "not configured")
}

func TestConfigValidate(t *testing.T) {
	useModel(t, llmtest.Reply("hold"))

	_, err := run(t, "config", "validate", "--config", workspace(t))
	require.Error(t, err)

	path := workspace(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	out, err := run(t, "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration is valid")
}

func TestDecideThenHistory(t *testing.T) {
	useModel(t, llmtest.ByKeyword(map[string]string{"BTCUSDT": "buy the dip"}, "sell, fundamentals are weak"))
	path := workspace(t)

	out, err := run(t, "decide", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "BTCUSDT")
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "buy")
	assert.Contains(t, out, "sell")

	out, err = run(t, "history", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "BTCUSDT")
	assert.Contains(t, out, "AAPL")

	out, err = run(t, "history", "--config", path, "--symbol", "aapl")
	require.NoError(t, err)
	assert.Contains(t, out, "AAPL")
	assert.NotContains(t, out, "BTCUSDT")

	out, err = run(t, "history", "--config", path, "--audit")
	require.NoError(t, err)
	assert.Contains(t, out, "Conservative")
}

func TestHistoryEmpty(t *testing.T) {
	out, err := run(t, "history", "--config", workspace(t))
	require.NoError(t, err)
	assert.Contains(t, out, "no decisions recorded yet")
}

func TestQueryWithArgs(t *testing.T) {
	cm := llmtest.Reply("Trim AAPL.")
	useModel(t, cm)

	out, err := run(t, "query", "--config", workspace(t), "should", "I", "sell", "aapl?")
	require.NoError(t, err)
	assert.Contains(t, out, "Trim AAPL.\n(Relevance: 0.9)")

	prompts := cm.Prompts()
	require.NotEmpty(t, prompts)
	assert.Contains(t, prompts[len(prompts)-1], "Query: should I sell aapl?")
	assert.Contains(t, prompts[len(prompts)-1], "AAPL: 140, Sentiment: 0.25")
}

func TestPortfolioRanksByPriority(t *testing.T) {
	out, err := run(t, "portfolio", "--config", workspace(t))
	require.NoError(t, err)
	aapl := bytes.Index([]byte(out), []byte("AAPL"))
	btc := bytes.Index([]byte(out), []byte("BTCUSDT"))
	require.True(t, aapl >= 0 && btc >= 0)
	// AAPL moved 6.7% against cost, BTC 2%.
	assert.Less(t, aapl, btc)
	assert.Contains(t, out, "Weak iPhone demand")
}

func TestDecideMarkdownAndHistoryCSV(t *testing.T) {
	useModel(t, llmtest.Reply("hold for now"))
	path := workspace(t)
	results := filepath.Join(filepath.Dir(path), "results")

	out, err := run(t, "decide", "--config", path, "--markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "report written to")
	reports, err := filepath.Glob(filepath.Join(results, "reports", "cycle_*.md"))
	require.NoError(t, err)
	require.Len(t, reports, 1)

	out, err = run(t, "history", "--config", path, "--csv")
	require.NoError(t, err)
	assert.Contains(t, out, "exported to")
	exports, err := filepath.Glob(filepath.Join(results, "csv", "decisions", "decisions_2_records_*.csv"))
	require.NoError(t, err)
	assert.Len(t, exports, 1)
}

func TestPortfolioImportAppendsHoldings(t *testing.T) {
	path := workspace(t)
	csvPath := filepath.Join(t.TempDir(), "holdings.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("symbol,quantity,price\nETHUSDT,5,2500\n"), 0o644))

	out, err := run(t, "portfolio", "import", csvPath, "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 holdings")

	out, err = run(t, "portfolio", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ETHUSDT")
}
