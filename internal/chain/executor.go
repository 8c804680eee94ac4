package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const tradeABI = `[{"inputs":[{"internalType":"string","name":"symbol","type":"string"},{"internalType":"uint256","name":"price","type":"uint256"}],"name":"executeTrade","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

const (
	DefaultGasLimit = 200000
)

// DefaultGasPrice is 20 gwei.
var DefaultGasPrice = big.NewInt(20_000_000_000)

// Executor submits executeTrade(symbol, price) transactions to the trade
// contract. The price is truncated to a whole number.
type Executor struct {
	backend  Backend
	contract common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	abi      abi.ABI
	gasLimit uint64
	gasPrice *big.Int
	log      zerolog.Logger

	// serializes nonce lookup and send
	mu sync.Mutex
}

func NewExecutor(backend Backend, contractHex, privateKeyHex string, log zerolog.Logger) (*Executor, error) {
	if !common.IsHexAddress(contractHex) {
		return nil, fmt.Errorf("invalid contract address %q", contractHex)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(tradeABI))
	if err != nil {
		return nil, fmt.Errorf("parse trade abi: %w", err)
	}
	return &Executor{
		backend:  backend,
		contract: common.HexToAddress(contractHex),
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		abi:      parsed,
		gasLimit: DefaultGasLimit,
		gasPrice: new(big.Int).Set(DefaultGasPrice),
		log:      log.With().Str("component", "executor").Logger(),
	}, nil
}

func (e *Executor) From() common.Address { return e.from }

func (e *Executor) Submit(ctx context.Context, symbol string, price float64) (string, error) {
	if price < 0 {
		return "", fmt.Errorf("negative price %v", price)
	}
	data, err := e.abi.Pack("executeTrade", symbol, decimal.NewFromFloat(price).BigInt())
	if err != nil {
		return "", fmt.Errorf("pack executeTrade: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	chainID, err := e.backend.ChainID(ctx)
	if err != nil {
		return "", fmt.Errorf("chain id: %w", err)
	}
	nonce, err := e.backend.PendingNonceAt(ctx, e.from)
	if err != nil {
		return "", fmt.Errorf("pending nonce: %w", err)
	}

	to := e.contract
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: e.gasPrice,
		Gas:      e.gasLimit,
		To:       &to,
		Value:    big.NewInt(0),
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), e.key)
	if err != nil {
		return "", fmt.Errorf("sign tx: %w", err)
	}
	if err := e.backend.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send tx: %w", err)
	}

	hash := signed.Hash().Hex()
	e.log.Info().Str("symbol", symbol).Float64("price", price).Str("tx", hash).Msg("trade submitted")
	return hash, nil
}
