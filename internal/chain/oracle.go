package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const aggregatorABI = `[{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"}]`

// answers carry eight decimals
const feedDecimals = 8

type RoundData struct {
	RoundID   *big.Int
	Price     float64
	UpdatedAt time.Time
}

// Oracle reads a Chainlink aggregator price feed.
type Oracle struct {
	backend Backend
	feed    common.Address
	abi     abi.ABI
}

func NewOracle(backend Backend, feedHex string) (*Oracle, error) {
	if !common.IsHexAddress(feedHex) {
		return nil, fmt.Errorf("invalid feed address %q", feedHex)
	}
	parsed, err := abi.JSON(strings.NewReader(aggregatorABI))
	if err != nil {
		return nil, fmt.Errorf("parse aggregator abi: %w", err)
	}
	return &Oracle{backend: backend, feed: common.HexToAddress(feedHex), abi: parsed}, nil
}

func (o *Oracle) Latest(ctx context.Context) (RoundData, error) {
	input, err := o.abi.Pack("latestRoundData")
	if err != nil {
		return RoundData{}, fmt.Errorf("pack latestRoundData: %w", err)
	}
	to := o.feed
	out, err := o.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return RoundData{}, fmt.Errorf("call latestRoundData: %w", err)
	}
	values, err := o.abi.Unpack("latestRoundData", out)
	if err != nil {
		return RoundData{}, fmt.Errorf("unpack latestRoundData: %w", err)
	}
	if len(values) != 5 {
		return RoundData{}, fmt.Errorf("latestRoundData returned %d values", len(values))
	}
	roundID, ok1 := values[0].(*big.Int)
	answer, ok2 := values[1].(*big.Int)
	updatedAt, ok3 := values[3].(*big.Int)
	if !ok1 || !ok2 || !ok3 {
		return RoundData{}, fmt.Errorf("unexpected latestRoundData types")
	}

	price, _ := decimal.NewFromBigInt(answer, -feedDecimals).Float64()
	return RoundData{
		RoundID:   roundID,
		Price:     price,
		UpdatedAt: time.Unix(updatedAt.Int64(), 0).UTC(),
	}, nil
}
