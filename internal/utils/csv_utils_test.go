package utils

import (
	"encoding/csv"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexTrade/models"
)

func TestParseHoldingsCSV(t *testing.T) {
	got, err := ParseHoldingsCSV(strings.NewReader("Symbol,Quantity,Price\nBTCUSDT,2,50000\nAAPL, 10, 150.5\n"))
	require.NoError(t, err)
	assert.Equal(t, []models.Holding{
		{Symbol: "BTCUSDT", Quantity: 2, PurchasePrice: 50000},
		{Symbol: "AAPL", Quantity: 10, PurchasePrice: 150.5},
	}, got)
}

func TestParseHoldingsCSVErrors(t *testing.T) {
	for _, body := range []string{"", "symbol,quantity,price\n", "BTC,abc,1\n", "BTC,1\n", ",1,1\n", "BTC,1,-5\n", "BTC,-1,5\n", "BTC,1.5,5\n"} {
		_, err := ParseHoldingsCSV(strings.NewReader(body))
		assert.Error(t, err, body)
	}
}

func TestWriteDecisionsCSV(t *testing.T) {
	price := 50000.0
	m := NewCSVManager(t.TempDir())
	path, err := m.WriteDecisionsCSV([]models.Decision{{
		CycleID:   "c1",
		Symbol:    "BTCUSDT",
		Price:     &price,
		Action:    models.ActionBuy,
		Votes:     models.VoteTally{Buy: 2, Hold: 2},
		PHS:       1.01,
		TxHash:    "0xabc",
		DecidedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}, {
		Symbol: "AAPL",
		Action: models.ActionHold,
	}})
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"2024-05-01T12:00:00Z", "c1", "BTCUSDT", "50000", "buy", "2", "0", "2", "1.01", "0xabc"}, rows[1])
	assert.Equal(t, "", rows[2][3])
}
