package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contractAddr = "0x00000000000000000000000000000000000000aa"

type fakeBackend struct {
	chainID  *big.Int
	nonce    uint64
	sent     []*types.Transaction
	sendErr  error
	callOut  []byte
	lastCall ethereum.CallMsg
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return f.chainID, nil }

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	f.nonce++
	return nil
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.lastCall = msg
	return f.callOut, nil
}

func newKeyHex(t *testing.T) string {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return "0x" + hex.EncodeToString(crypto.FromECDSA(key))
}

func TestExecutorSubmit(t *testing.T) {
	backend := &fakeBackend{chainID: big.NewInt(11155111), nonce: 7}
	exec, err := NewExecutor(backend, contractAddr, newKeyHex(t), zerolog.Nop())
	require.NoError(t, err)

	hash, err := exec.Submit(context.Background(), "BTCUSDT", 53000.75)
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	assert.Equal(t, tx.Hash().Hex(), hash)
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(DefaultGasLimit), tx.Gas())
	assert.Equal(t, 0, tx.GasPrice().Cmp(DefaultGasPrice))
	assert.Equal(t, common.HexToAddress(contractAddr), *tx.To())

	sender, err := types.Sender(types.LatestSignerForChainID(backend.chainID), tx)
	require.NoError(t, err)
	assert.Equal(t, exec.From(), sender)

	method, err := exec.abi.MethodById(tx.Data()[:4])
	require.NoError(t, err)
	assert.Equal(t, "executeTrade", method.Name)
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", args[0])
	assert.Equal(t, 0, args[1].(*big.Int).Cmp(big.NewInt(53000)))
}

func TestExecutorSendFailure(t *testing.T) {
	backend := &fakeBackend{chainID: big.NewInt(1), sendErr: errors.New("nonce too low")}
	exec, err := NewExecutor(backend, contractAddr, newKeyHex(t), zerolog.Nop())
	require.NoError(t, err)

	hash, err := exec.Submit(context.Background(), "BTCUSDT", 1)
	assert.ErrorContains(t, err, "nonce too low")
	assert.Empty(t, hash)
}

func TestNewExecutorValidates(t *testing.T) {
	_, err := NewExecutor(&fakeBackend{}, "not-an-address", newKeyHex(t), zerolog.Nop())
	assert.Error(t, err)
	_, err = NewExecutor(&fakeBackend{}, contractAddr, "zz", zerolog.Nop())
	assert.Error(t, err)
}

func TestOracleLatest(t *testing.T) {
	backend := &fakeBackend{}
	oracle, err := NewOracle(backend, "0x1b44F3514812d835EB1BDB0acB33d3fA3351Ee43")
	require.NoError(t, err)

	updated := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	out, err := oracle.abi.Methods["latestRoundData"].Outputs.Pack(
		big.NewInt(42), big.NewInt(312345000000), big.NewInt(updated.Unix()-5), big.NewInt(updated.Unix()), big.NewInt(42),
	)
	require.NoError(t, err)
	backend.callOut = out

	round, err := oracle.Latest(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 3123.45, round.Price, 1e-9)
	assert.Equal(t, updated, round.UpdatedAt)
	assert.Equal(t, int64(42), round.RoundID.Int64())
	assert.Equal(t, common.HexToAddress("0x1b44F3514812d835EB1BDB0acB33d3fA3351Ee43"), *backend.lastCall.To)
}
