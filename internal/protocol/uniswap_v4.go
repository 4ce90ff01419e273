package protocol

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/poolscan/poolscan/internal/model"
)

// modifyLiquidityTopic ModifyLiquidity(bytes32,address,int24,int24,int256,bytes32) 的 topic0
const modifyLiquidityTopic = "0xf208f4912782fd25c7f114ca3723a2d5dd6f3bcc3ac8db5af63baa85f711d5ec"

// UniswapV4Parser 单例 + hooks (V4 式) 协议解码器
//
// 所有池由一个 PoolManager 管理，池没有独立合约地址，由
// currencies/fee/tickSpacing/hooks 结构哈希出的不透明 id 标识。
//
// Initialize(PoolId indexed id, Currency indexed currency0, Currency indexed currency1,
//            uint24 fee, int24 tickSpacing, IHooks hooks, uint160 sqrtPriceX96, int24 tick)
// Swap(PoolId indexed id, address indexed sender, int128 amount0, int128 amount1,
//      uint160 sqrtPriceX96, uint128 liquidity, int24 tick, uint24 fee)
// ModifyLiquidity(PoolId indexed id, address indexed sender,
//                 int24 tickLower, int24 tickUpper, int256 liquidityDelta, bytes32 salt)
//
// indexed 参数 (id, currency0, currency1, sender) 必须从 topics 读，
// 非 indexed 参数 (fee, tickSpacing, hooks, sqrtPriceX96, tick) 从 data 读。
// 两者混淆会静默损坏 tick/fee —— int24 的 tick 必须按两补码符号扩展解码，
// 按无符号 256 位解码时负 tick 会变成接近 2^256 的值。
type UniswapV4Parser struct{}

// NewUniswapV4Parser 创建 V4 解码器
func NewUniswapV4Parser() *UniswapV4Parser {
	return &UniswapV4Parser{}
}

// Protocol 返回协议标签
func (p *UniswapV4Parser) Protocol() string {
	return TagUniswapV4
}

// ParsePoolCreated 解码 Initialize 日志
func (p *UniswapV4Parser) ParsePoolCreated(log types.Log, blockTimestamp uint64) (*model.Pool, error) {
	if len(log.Topics) < 4 {
		return nil, decodeErrf(TagUniswapV4, "Initialize", "expected 4 topics, got %d", len(log.Topics))
	}
	if len(log.Data) < 5*wordSize {
		return nil, decodeErrf(TagUniswapV4, "Initialize", "expected 5 data words, got %d bytes", len(log.Data))
	}

	poolID := log.Topics[1].Hex()

	fee, _ := dataUint(log.Data, 0)
	tickSpacing, _ := dataInt(log.Data, 1)
	hooks, _ := dataAddress(log.Data, 2)
	sqrtPriceX96, _ := dataUint(log.Data, 3)
	tick, _ := dataInt(log.Data, 4)

	tickValue := tick.Int64()

	return &model.Pool{
		// 单例协议没有池合约地址，pool_address 存不透明 id
		PoolAddress:       poolID,
		PoolID:            poolID,
		Protocol:          TagUniswapV4,
		Token0Address:     topicAddress(log.Topics[2]).Hex(),
		Token1Address:     topicAddress(log.Topics[3]).Hex(),
		FactoryAddress:    log.Address.Hex(),
		FeeTier:           fee.Int64(),
		TickSpacing:       tickSpacing.Int64(),
		HooksAddress:      hooks.Hex(),
		SqrtPriceX96:      sqrtPriceX96.String(),
		Tick:              &tickValue,
		CreationBlock:     int64(log.BlockNumber),
		CreationTxHash:    log.TxHash.Hex(),
		CreationTimestamp: int64(blockTimestamp),
		Status:            model.PoolStatusActive,
	}, nil
}

// ParseSwap 解码 Swap 日志
func (p *UniswapV4Parser) ParseSwap(log types.Log, pool *model.Pool, blockTimestamp uint64) (*model.SwapEvent, error) {
	if len(log.Topics) < 3 {
		return nil, decodeErrf(TagUniswapV4, "Swap", "expected 3 topics, got %d", len(log.Topics))
	}
	if len(log.Data) < 6*wordSize {
		return nil, decodeErrf(TagUniswapV4, "Swap", "expected 6 data words, got %d bytes", len(log.Data))
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
		Protocol:       TagUniswapV4,
		BlockNumber:    int64(log.BlockNumber),
		BlockTimestamp: int64(blockTimestamp),
		Sender:         topicAddress(log.Topics[2]).Hex(),
		Amount0:        amount0.String(),
		Amount1:        amount1.String(),
		SqrtPriceX96:   sqrtPriceX96.String(),
		Liquidity:      liquidity.String(),
		Tick:           &tickValue,
	}, nil
}

// LiquidityTopic 返回 ModifyLiquidity 事件的 topic0
func (p *UniswapV4Parser) LiquidityTopic() string {
	return modifyLiquidityTopic
}

// ParseLiquidityModified 解码 ModifyLiquidity 日志
func (p *UniswapV4Parser) ParseLiquidityModified(log types.Log, blockTimestamp uint64) (*model.LiquidityModification, error) {
	if len(log.Topics) < 3 {
		return nil, decodeErrf(TagUniswapV4, "ModifyLiquidity", "expected 3 topics, got %d", len(log.Topics))
	}
	if len(log.Data) < 4*wordSize {
		return nil, decodeErrf(TagUniswapV4, "ModifyLiquidity", "expected 4 data words, got %d bytes", len(log.Data))
	}

	tickLower, _ := dataInt(log.Data, 0)
	tickUpper, _ := dataInt(log.Data, 1)
	liquidityDelta, _ := dataInt(log.Data, 2)
	salt, _ := dataWord(log.Data, 3)

	return &model.LiquidityModification{
		TxHash:         log.TxHash.Hex(),
		LogIndex:       int(log.Index),
		PoolID:         log.Topics[1].Hex(),
		Protocol:       TagUniswapV4,
		Sender:         topicAddress(log.Topics[2]).Hex(),
		TickLower:      tickLower.Int64(),
		TickUpper:      tickUpper.Int64(),
		LiquidityDelta: liquidityDelta.String(),
		Salt:           "0x" + common.Bytes2Hex(salt),
		BlockNumber:    int64(log.BlockNumber),
		BlockTimestamp: int64(blockTimestamp),
	}, nil
}

var _ Parser = (*UniswapV4Parser)(nil)
var _ LiquidityParser = (*UniswapV4Parser)(nil)
