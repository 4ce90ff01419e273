package protocol

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/poolscan/poolscan/internal/blockchain"
	"github.com/poolscan/poolscan/internal/model"
)

var (
	// slot0Selector slot0() 函数选择器
	slot0Selector = []byte{0x38, 0x50, 0xc7, 0xbd}
	// liquiditySelector liquidity() 函数选择器
	liquiditySelector = []byte{0x1a, 0x68, 0x65, 0x02}
)

// UniswapV3Parser 集中流动性 (V3 式) 协议解码器
//
// PoolCreated(address indexed token0, address indexed token1,
//             uint24 indexed fee, int24 tickSpacing, address pool)
// Swap(address indexed sender, address indexed recipient, int256 amount0,
//      int256 amount1, uint160 sqrtPriceX96, uint128 liquidity, int24 tick)
type UniswapV3Parser struct{}

// NewUniswapV3Parser 创建 V3 解码器
func NewUniswapV3Parser() *UniswapV3Parser {
	return &UniswapV3Parser{}
}

// Protocol 返回协议标签
func (p *UniswapV3Parser) Protocol() string {
	return TagUniswapV3
}

// ParsePoolCreated 解码 PoolCreated 日志
func (p *UniswapV3Parser) ParsePoolCreated(log types.Log, blockTimestamp uint64) (*model.Pool, error) {
	if len(log.Topics) < 4 {
		return nil, decodeErrf(TagUniswapV3, "PoolCreated", "expected 4 topics, got %d", len(log.Topics))
	}

	tickSpacing, ok := dataInt(log.Data, 0)
	if !ok {
		return nil, decodeErrf(TagUniswapV3, "PoolCreated", "data too short for tickSpacing: %d bytes", len(log.Data))
	}
	poolAddr, ok := dataAddress(log.Data, 1)
	if !ok {
		return nil, decodeErrf(TagUniswapV3, "PoolCreated", "data too short for pool address: %d bytes", len(log.Data))
	}

	// fee 是 indexed uint24，从 topics 读
	fee := new(big.Int).SetBytes(log.Topics[3].Bytes())

	return &model.Pool{
		PoolAddress:       poolAddr.Hex(),
		Protocol:          TagUniswapV3,
		Token0Address:     topicAddress(log.Topics[1]).Hex(),
		Token1Address:     topicAddress(log.Topics[2]).Hex(),
		FactoryAddress:    log.Address.Hex(),
		FeeTier:           fee.Int64(),
		TickSpacing:       tickSpacing.Int64(),
		CreationBlock:     int64(log.BlockNumber),
		CreationTxHash:    log.TxHash.Hex(),
		CreationTimestamp: int64(blockTimestamp),
		Status:            model.PoolStatusActive,
	}, nil
}

// ParseSwap 解码 Swap 日志
func (p *UniswapV3Parser) ParseSwap(log types.Log, pool *model.Pool, blockTimestamp uint64) (*model.SwapEvent, error) {
	if len(log.Topics) < 3 {
		return nil, decodeErrf(TagUniswapV3, "Swap", "expected 3 topics, got %d", len(log.Topics))
	}
	if len(log.Data) < 5*wordSize {
		return nil, decodeErrf(TagUniswapV3, "Swap", "expected 5 data words, got %d bytes", len(log.Data))
	}

	amount0, _ := dataInt(log.Data, 0)
	amount1, _ := dataInt(log.Data, 1)
	sqrtPriceX96, _ := dataUint(log.Data, 2)
	liquidity, _ := dataUint(log.Data, 3)
	tick, _ := dataInt(log.Data, 4)

	tickValue := tick.Int64()

	return &model.SwapEvent{
		TxHash:         log.TxHash.Hex(),
		LogIndex:       int(log.Index),
		ChainID:        pool.ChainID,
		PoolAddress:    pool.PoolAddress,
		Protocol:       TagUniswapV3,
		BlockNumber:    int64(log.BlockNumber),
		BlockTimestamp: int64(blockTimestamp),
		Sender:         topicAddress(log.Topics[1]).Hex(),
		Recipient:      topicAddress(log.Topics[2]).Hex(),
		Amount0:        amount0.String(),
		Amount1:        amount1.String(),
		SqrtPriceX96:   sqrtPriceX96.String(),
		Liquidity:      liquidity.String(),
		Tick:           &tickValue,
	}, nil
}

// FetchState 读取 slot0 + liquidity
func (p *UniswapV3Parser) FetchState(ctx context.Context, client *blockchain.Client, pool *model.Pool) (*StateDelta, error) {
	addr := common.HexToAddress(pool.PoolAddress)

	slot0, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: slot0Selector}, nil)
	if err != nil {
		return nil, err
	}
	if len(slot0) < 2*wordSize {
		return nil, fmt.Errorf("%s: slot0 returned %d bytes", TagUniswapV3, len(slot0))
	}

	sqrtPriceX96 := new(big.Int).SetBytes(slot0[:wordSize])
	tick := signedWord(slot0[wordSize : 2*wordSize]).Int64()

	liq, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: liquiditySelector}, nil)
	if err != nil {
		return nil, err
	}
	if len(liq) < wordSize {
		return nil, fmt.Errorf("%s: liquidity returned %d bytes", TagUniswapV3, len(liq))
	}

	return &StateDelta{
		SqrtPriceX96: sqrtPriceX96.String(),
		Tick:         &tick,
		Liquidity:    new(big.Int).SetBytes(liq[:wordSize]).String(),
	}, nil
}

var _ Parser = (*UniswapV3Parser)(nil)
var _ StateFetcher = (*UniswapV3Parser)(nil)
