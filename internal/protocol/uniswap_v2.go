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

// getReservesSelector getReserves() 函数选择器
var getReservesSelector = []byte{0x09, 0x02, 0xf1, 0xac}

// UniswapV2Parser 储备型 (V2 式) 协议解码器
//
// PairCreated(address indexed token0, address indexed token1, address pair, uint256)
// Swap(address indexed sender, uint256 amount0In, uint256 amount1In,
//      uint256 amount0Out, uint256 amount1Out, address indexed to)
//
// 同样的布局被多个分叉协议复用 (sushiswap 等)，标签参数化。
type UniswapV2Parser struct {
	tag string
}

// NewUniswapV2Parser 创建 V2 式解码器
func NewUniswapV2Parser(tag string) *UniswapV2Parser {
	return &UniswapV2Parser{tag: tag}
}

// Protocol 返回协议标签
func (p *UniswapV2Parser) Protocol() string {
	return p.tag
}

// ParsePoolCreated 解码 PairCreated 日志
func (p *UniswapV2Parser) ParsePoolCreated(log types.Log, blockTimestamp uint64) (*model.Pool, error) {
	if len(log.Topics) < 3 {
		return nil, decodeErrf(p.tag, "PairCreated", "expected 3 topics, got %d", len(log.Topics))
	}

	pair, ok := dataAddress(log.Data, 0)
	if !ok {
		return nil, decodeErrf(p.tag, "PairCreated", "data too short for pair address: %d bytes", len(log.Data))
	}

	return &model.Pool{
		PoolAddress:       pair.Hex(),
		Protocol:          p.tag,
		Token0Address:     topicAddress(log.Topics[1]).Hex(),
		Token1Address:     topicAddress(log.Topics[2]).Hex(),
		FactoryAddress:    log.Address.Hex(),
		CreationBlock:     int64(log.BlockNumber),
		CreationTxHash:    log.TxHash.Hex(),
		CreationTimestamp: int64(blockTimestamp),
		Status:            model.PoolStatusActive,
	}, nil
}

// ParseSwap 解码 Swap 日志
func (p *UniswapV2Parser) ParseSwap(log types.Log, pool *model.Pool, blockTimestamp uint64) (*model.SwapEvent, error) {
	if len(log.Topics) < 3 {
		return nil, decodeErrf(p.tag, "Swap", "expected 3 topics, got %d", len(log.Topics))
	}
	if len(log.Data) < 4*wordSize {
		return nil, decodeErrf(p.tag, "Swap", "expected 4 data words, got %d bytes", len(log.Data))
	}

	amount0In, _ := dataUint(log.Data, 0)
	amount1In, _ := dataUint(log.Data, 1)
	amount0Out, _ := dataUint(log.Data, 2)
	amount1Out, _ := dataUint(log.Data, 3)

	// 方向归一化: in 是卖入池子的那侧，out 是买出的那侧
	amountIn := amount0In
	amountOut := amount1Out
	if amount0In.Sign() == 0 {
		amountIn = amount1In
		amountOut = amount0Out
	}

	return &model.SwapEvent{
		TxHash:         log.TxHash.Hex(),
		LogIndex:       int(log.Index),
		ChainID:        pool.ChainID,
		PoolAddress:    pool.PoolAddress,
		Protocol:       p.tag,
		BlockNumber:    int64(log.BlockNumber),
		BlockTimestamp: int64(blockTimestamp),
		Sender:         topicAddress(log.Topics[1]).Hex(),
		Recipient:      topicAddress(log.Topics[2]).Hex(),
		Amount0:        new(big.Int).Sub(amount0In, amount0Out).String(),
		Amount1:        new(big.Int).Sub(amount1In, amount1Out).String(),
		AmountIn:       amountIn.String(),
		AmountOut:      amountOut.String(),
	}, nil
}

// FetchState 读取链上储备
func (p *UniswapV2Parser) FetchState(ctx context.Context, client *blockchain.Client, pool *model.Pool) (*StateDelta, error) {
	addr := common.HexToAddress(pool.PoolAddress)
	result, err := client.CallContract(ctx, ethereum.CallMsg{
		To:   &addr,
		Data: getReservesSelector,
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(result) < 2*wordSize {
		return nil, fmt.Errorf("%s: getReserves returned %d bytes", p.tag, len(result))
	}

	reserve0 := new(big.Int).SetBytes(result[:wordSize])
	reserve1 := new(big.Int).SetBytes(result[wordSize : 2*wordSize])

	return &StateDelta{
		Reserves: []string{reserve0.String(), reserve1.String()},
	}, nil
}

var _ Parser = (*UniswapV2Parser)(nil)
var _ StateFetcher = (*UniswapV2Parser)(nil)
