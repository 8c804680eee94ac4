package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerSeedsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	mgr, err := NewManager(WithConfigPath(path))
	require.NoError(t, err)
	assert.Equal(t, path, mgr.Path())

	_, err = os.Stat(path)
	require.NoError(t, err, "config file not created")

	cfg := mgr.Get()
	assert.Equal(t, 0.05, cfg.ArbitrageThreshold)
	assert.Equal(t, 5, cfg.RetrievalTopK)
}

func TestManagerRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"llm_provider":"mystery"}`), 0o644))
	_, err := NewManager(WithConfigPath(path))
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))
	_, err = NewManager(WithConfigPath(path))
	require.Error(t, err)
}

func TestReloadKeepsPreviousOnInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	mgr, err := NewManager(WithConfigPath(path))
	require.NoError(t, err)

	cfg := mgr.Get()
	cfg.StockSymbols = []string{"MSFT"}
	require.NoError(t, writeConfig(path, cfg))
	got, changed, err := mgr.Reload()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"MSFT"}, got.StockSymbols)

	_, changed, err = mgr.Reload()
	require.NoError(t, err)
	assert.False(t, changed)

	cfg.LLMProvider = "mystery"
	require.NoError(t, writeConfig(path, cfg))
	_, changed, err = mgr.Reload()
	require.Error(t, err)
	assert.False(t, changed)
	assert.Equal(t, "openai", mgr.Get().LLMProvider)
	assert.Equal(t, []string{"MSFT"}, mgr.Get().StockSymbols)
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"llm_provider":"deepseek","llm_model":"deepseek-chat"}`), 0o644))

	mgr, err := NewManager(WithConfigPath(path))
	require.NoError(t, err)

	cfg := mgr.Get()
	assert.Equal(t, "deepseek", cfg.LLMProvider)
	assert.Equal(t, "@every 1m", cfg.DecisionSchedule)
	assert.Equal(t, 300*time.Second, cfg.FreshnessWindow)
}

func TestManagerWatchReloads(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigPath(filepath.Join(dir, "config.json")), WithDebounce(50*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan Config, 1)
	require.NoError(t, mgr.Watch(ctx, func(cfg Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	}))

	cfg := mgr.Get()
	cfg.CryptoSymbols = []string{"BTCUSDT"}
	require.NoError(t, writeConfig(mgr.Path(), cfg))

	select {
	case got := <-reloaded:
		assert.Equal(t, []string{"BTCUSDT"}, got.CryptoSymbols)
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not fire on config change")
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfigWithRoot(t.TempDir())
	require.NoError(t, cfg.Validate())

	cfg.StockProvider = "bloomberg"
	cfg.RetrievalTopK = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stock_provider")
	assert.Contains(t, err.Error(), "retrieval_top_k")
}
