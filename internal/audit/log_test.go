package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexTrade/models"
)

func sample(symbol string, tx string) models.Decision {
	return models.Decision{
		CycleID: "c1",
		Symbol:  symbol,
		Action:  models.ActionBuy,
		Explanations: []models.AgentVote{
			{Agent: "Aggressive", Action: models.ActionBuy, Explanation: " Buy now \n"},
			{Agent: "ArbitrageBot", Action: models.ActionBuy, Explanation: "spread", TxHash: tx},
		},
		Votes:     models.VoteTally{Buy: 2},
		PHS:       1.01,
		TxHash:    tx,
		DecidedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestRecordAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "decisions.log")
	l, err := New(path)
	require.NoError(t, err)

	require.NoError(t, l.Record(context.Background(), sample("BTCUSDT", "0xabc")))
	require.NoError(t, l.Record(context.Background(), sample("AAPL", "")))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], `"tx_hash":null`)

	entries, err := Read(path, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "BTCUSDT", entries[0].Symbol)
	require.NotNil(t, entries[0].TxHash)
	assert.Equal(t, "0xabc", *entries[0].TxHash)
	assert.Equal(t, "Aggressive: buy - Buy now | ArbitrageBot: buy - spread", entries[0].Explanation)
	assert.Nil(t, entries[1].TxHash)

	last, err := Read(path, 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "AAPL", last[0].Symbol)
}

func TestConcurrentRecordsStayWhole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.log")
	l, err := New(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, l.Record(context.Background(), sample(fmt.Sprintf("SYM%d", i), "")))
		}(i)
	}
	wg.Wait()

	entries, err := Read(path, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}

func TestReadSkipsPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.log")
	l, err := New(path)
	require.NoError(t, err)
	require.NoError(t, l.Record(context.Background(), sample("BTCUSDT", "")))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"symbol":"HALF`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries, err := Read(path, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReadMissingFile(t *testing.T) {
	entries, err := Read(filepath.Join(t.TempDir(), "none.log"), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
