package protocol

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolscan/poolscan/internal/model"
)

// word 构造一个 32 字节 ABI 字
func word(v *big.Int) []byte {
	out := make([]byte, wordSize)
	if v.Sign() < 0 {
		// 两补码编码
		max := new(big.Int).Lsh(big.NewInt(1), 256)
		v = new(big.Int).Add(v, max)
	}
	v.FillBytes(out)
	return out
}

func words(vs ...*big.Int) []byte {
	var out []byte
	for _, v := range vs {
		out = append(out, word(v)...)
	}
	return out
}

func addrTopic(hex string) common.Hash {
	return common.BytesToHash(common.HexToAddress(hex).Bytes())
}

func TestSignedWordNegative(t *testing.T) {
	// int24 的 -887272 (V3 最小 tick) 符号扩展到 32 字节
	got := signedWord(word(big.NewInt(-887272)))
	assert.Equal(t, int64(-887272), got.Int64())

	got = signedWord(word(big.NewInt(887272)))
	assert.Equal(t, int64(887272), got.Int64())
}

func TestDataIntShortData(t *testing.T) {
	_, ok := dataInt([]byte{0x01, 0x02}, 0)
	assert.False(t, ok)
}

func TestUniswapV2ParseSwap(t *testing.T) {
	parser := NewUniswapV2Parser(TagUniswapV2)
	pool := &model.Pool{ChainID: 1, PoolAddress: "0x000000000000000000000000000000000000dead"}

	log := types.Log{
		Address: common.HexToAddress("0xdead"),
		Topics: []common.Hash{
			{},
			addrTopic("0x1111111111111111111111111111111111111111"),
			addrTopic("0x2222222222222222222222222222222222222222"),
		},
		// amount0In=1000, amount1In=0, amount0Out=0, amount1Out=500
		Data:        words(big.NewInt(1000), big.NewInt(0), big.NewInt(0), big.NewInt(500)),
		BlockNumber: 123,
		TxHash:      common.HexToHash("0xaa"),
		Index:       7,
	}

	swap, err := parser.ParseSwap(log, pool, 1700000000)
	require.NoError(t, err)

	assert.Equal(t, "1000", swap.Amount0)
	assert.Equal(t, "-500", swap.Amount1)
	assert.Equal(t, "1000", swap.AmountIn)
	assert.Equal(t, "500", swap.AmountOut)
	assert.Equal(t, 7, swap.LogIndex)
	assert.Equal(t, int64(1), swap.ChainID)
}

func TestUniswapV2ParseSwapReverseDirection(t *testing.T) {
	parser := NewUniswapV2Parser(TagUniswapV2)
	pool := &model.Pool{ChainID: 1}

	log := types.Log{
		Topics: []common.Hash{{}, {}, {}},
		// token1 卖入: amount1In=800, amount0Out=400
		Data: words(big.NewInt(0), big.NewInt(800), big.NewInt(400), big.NewInt(0)),
	}

	swap, err := parser.ParseSwap(log, pool, 0)
	require.NoError(t, err)

	assert.Equal(t, "800", swap.AmountIn)
	assert.Equal(t, "400", swap.AmountOut)
	assert.Equal(t, "-400", swap.Amount0)
	assert.Equal(t, "800", swap.Amount1)
}

func TestUniswapV2ParsePoolCreated(t *testing.T) {
	parser := NewUniswapV2Parser(TagSushiswap)

	pair := common.HexToAddress("0x3333333333333333333333333333333333333333")
	log := types.Log{
		Address: common.HexToAddress("0xfac0000000000000000000000000000000000fac"),
		Topics: []common.Hash{
			{},
			addrTopic("0x1111111111111111111111111111111111111111"),
			addrTopic("0x2222222222222222222222222222222222222222"),
		},
		Data:        append(common.BytesToHash(pair.Bytes()).Bytes(), word(big.NewInt(42))...),
		BlockNumber: 999,
	}

	p, err := parser.ParsePoolCreated(log, 1700000001)
	require.NoError(t, err)

	// 分叉协议带自己的标签
	assert.Equal(t, TagSushiswap, p.Protocol)
	assert.Equal(t, pair.Hex(), p.PoolAddress)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", p.Token0Address)
	assert.Equal(t, int64(999), p.CreationBlock)
	assert.Equal(t, int64(1700000001), p.CreationTimestamp)
	assert.Equal(t, model.PoolStatusActive, p.Status)
}

func TestUniswapV2ParseSwapShortData(t *testing.T) {
	parser := NewUniswapV2Parser(TagUniswapV2)
	log := types.Log{
		Topics: []common.Hash{{}, {}, {}},
		Data:   words(big.NewInt(1), big.NewInt(2)),
	}

	_, err := parser.ParseSwap(log, &model.Pool{}, 0)
	require.Error(t, err)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, TagUniswapV2, decodeErr.Protocol)
	assert.Equal(t, "Swap", decodeErr.Event)
}

func TestUniswapV3ParsePoolCreated(t *testing.T) {
	parser := NewUniswapV3Parser()

	pool := common.HexToAddress("0x4444444444444444444444444444444444444444")
	log := types.Log{
		Address: common.HexToAddress("0x1f98431c8ad98523631ae4a59f267346ea31f984"),
		Topics: []common.Hash{
			{},
			addrTopic("0x1111111111111111111111111111111111111111"),
			addrTopic("0x2222222222222222222222222222222222222222"),
			common.BigToHash(big.NewInt(3000)), // indexed fee
		},
		Data: words(big.NewInt(60), new(big.Int).SetBytes(pool.Bytes())),
	}

	p, err := parser.ParsePoolCreated(log, 0)
	require.NoError(t, err)

	assert.Equal(t, int64(3000), p.FeeTier)
	assert.Equal(t, int64(60), p.TickSpacing)
	assert.Equal(t, pool.Hex(), p.PoolAddress)
}

func TestUniswapV3ParseSwapNegativeTick(t *testing.T) {
	parser := NewUniswapV3Parser()
	pool := &model.Pool{ChainID: 137, PoolAddress: "0xpool"}

	log := types.Log{
		Topics: []common.Hash{
			{},
			addrTopic("0x1111111111111111111111111111111111111111"),
			addrTopic("0x2222222222222222222222222222222222222222"),
		},
		Data: words(
			big.NewInt(-1000000),           // amount0 (卖出侧为负)
			big.NewInt(2000000),            // amount1
			big.NewInt(0).SetUint64(1<<62), // sqrtPriceX96
			big.NewInt(777),                // liquidity
			big.NewInt(-887272),            // 负 tick
		),
	}

	swap, err := parser.ParseSwap(log, pool, 1700000002)
	require.NoError(t, err)

	assert.Equal(t, "-1000000", swap.Amount0)
	assert.Equal(t, "2000000", swap.Amount1)
	require.NotNil(t, swap.Tick)
	// 负 tick 必须符号扩展，不能变成接近 2^256 的无符号值
	assert.Equal(t, int64(-887272), *swap.Tick)
	assert.Equal(t, "777", swap.Liquidity)
}

func TestUniswapV4ParsePoolCreated(t *testing.T) {
	parser := NewUniswapV4Parser()

	id := common.HexToHash("0xabcdef0000000000000000000000000000000000000000000000000000000001")
	hooks := common.HexToAddress("0x5555555555555555555555555555555555555555")
	log := types.Log{
		Address: common.HexToAddress("0x000000000004444c5dc75cb358380d2e3de08a90"),
		Topics: []common.Hash{
			{},
			id,
			addrTopic("0x1111111111111111111111111111111111111111"),
			addrTopic("0x2222222222222222222222222222222222222222"),
		},
		Data: words(
			big.NewInt(500),                        // fee
			big.NewInt(10),                         // tickSpacing
			new(big.Int).SetBytes(hooks.Bytes()),   // hooks
			new(big.Int).SetUint64(79228162514264), // sqrtPriceX96
			big.NewInt(-42),                        // tick
		),
		BlockNumber: 1000,
	}

	p, err := parser.ParsePoolCreated(log, 1700000003)
	require.NoError(t, err)

	// 单例协议: pool_address 存不透明 id
	assert.Equal(t, id.Hex(), p.PoolAddress)
	assert.Equal(t, id.Hex(), p.PoolID)
	assert.Equal(t, int64(500), p.FeeTier)
	assert.Equal(t, int64(10), p.TickSpacing)
	assert.Equal(t, hooks.Hex(), p.HooksAddress)
	require.NotNil(t, p.Tick)
	assert.Equal(t, int64(-42), *p.Tick)
}

func TestUniswapV4ParseSwap(t *testing.T) {
	parser := NewUniswapV4Parser()
	pool := &model.Pool{ChainID: 1, PoolAddress: "0xid"}

	log := types.Log{
		Topics: []common.Hash{
			{},
			common.HexToHash("0x01"),
			addrTopic("0x6666666666666666666666666666666666666666"),
		},
		Data: words(
			big.NewInt(-5000), // amount0 int128
			big.NewInt(4900),  // amount1 int128
			big.NewInt(12345), // sqrtPriceX96
			big.NewInt(999),   // liquidity
			big.NewInt(-100),  // tick
			big.NewInt(3000),  // fee
		),
	}

	swap, err := parser.ParseSwap(log, pool, 0)
	require.NoError(t, err)

	assert.Equal(t, "-5000", swap.Amount0)
	assert.Equal(t, "4900", swap.Amount1)
	require.NotNil(t, swap.Tick)
	assert.Equal(t, int64(-100), *swap.Tick)
	assert.Equal(t, "0x6666666666666666666666666666666666666666", common.HexToAddress(swap.Sender).Hex())
}

func TestUniswapV4ParseLiquidityModified(t *testing.T) {
	parser := NewUniswapV4Parser()

	salt := big.NewInt(7)
	log := types.Log{
		Topics: []common.Hash{
			{},
			common.HexToHash("0x02"),
			addrTopic("0x7777777777777777777777777777777777777777"),
		},
		Data: words(
			big.NewInt(-600),   // tickLower
			big.NewInt(600),    // tickUpper
			big.NewInt(-12345), // liquidityDelta (移除流动性)
			salt,
		),
		TxHash: common.HexToHash("0xbb"),
		Index:  3,
	}

	mod, err := parser.ParseLiquidityModified(log, 1700000004)
	require.NoError(t, err)

	assert.Equal(t, int64(-600), mod.TickLower)
	assert.Equal(t, int64(600), mod.TickUpper)
	assert.Equal(t, "-12345", mod.LiquidityDelta)
	assert.Equal(t, 3, mod.LogIndex)
}

func TestBalancerV2ParseSwap(t *testing.T) {
	parser := NewBalancerV2Parser()
	pool := &model.Pool{ChainID: 1, PoolAddress: "0xpool"}

	log := types.Log{
		Topics: []common.Hash{
			{},
			common.HexToHash("0x03"),
			addrTopic("0x8888888888888888888888888888888888888888"),
			addrTopic("0x9999999999999999999999999999999999999999"),
		},
		Data: words(big.NewInt(100000), big.NewInt(99500)),
	}

	swap, err := parser.ParseSwap(log, pool, 0)
	require.NoError(t, err)

	assert.Equal(t, "0x8888888888888888888888888888888888888888", common.HexToAddress(swap.TokenInAddress).Hex())
	assert.Equal(t, "0x9999999999999999999999999999999999999999", common.HexToAddress(swap.TokenOutAddress).Hex())
	assert.Equal(t, "100000", swap.AmountIn)
	assert.Equal(t, "99500", swap.AmountOut)
	// vault 型不填下标型金额
	assert.Empty(t, swap.Amount0)
}

func TestBalancerV2ParsePoolCreated(t *testing.T) {
	parser := NewBalancerV2Parser()

	id := common.HexToHash("0x1234560000000000000000000000000000000000000000000000000000000002")
	log := types.Log{
		Address: common.HexToAddress("0xba12222222228d8ba445958a75a0704d566bf2c8"),
		Topics: []common.Hash{
			{},
			id,
			addrTopic("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		},
	}

	p, err := parser.ParsePoolCreated(log, 0)
	require.NoError(t, err)

	assert.Equal(t, id.Hex(), p.PoolID)
	assert.Equal(t, common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa").Hex(), p.PoolAddress)
}

func TestCurveParseSwap(t *testing.T) {
	parser := NewCurveParser()
	pool := &model.Pool{ChainID: 1, PoolAddress: "0xpool"}

	log := types.Log{
		Topics: []common.Hash{
			{},
			addrTopic("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		},
		Data: words(
			big.NewInt(0),       // sold_id
			big.NewInt(1000000), // tokens_sold
			big.NewInt(2),       // bought_id
			big.NewInt(998000),  // tokens_bought
		),
	}

	swap, err := parser.ParseSwap(log, pool, 0)
	require.NoError(t, err)

	require.NotNil(t, swap.SoldID)
	require.NotNil(t, swap.BoughtID)
	assert.Equal(t, int64(0), *swap.SoldID)
	assert.Equal(t, int64(2), *swap.BoughtID)
	assert.Equal(t, "1000000", swap.AmountIn)
	assert.Equal(t, "998000", swap.AmountOut)
}

func TestDataAddressArray(t *testing.T) {
	// (address[] tokens) 编码: 头部偏移 + 长度 + 元素
	a1 := common.HexToAddress("0x1111111111111111111111111111111111111111")
	a2 := common.HexToAddress("0x2222222222222222222222222222222222222222")
	data := words(
		big.NewInt(wordSize), // 偏移
		big.NewInt(2),        // 长度
		new(big.Int).SetBytes(a1.Bytes()),
		new(big.Int).SetBytes(a2.Bytes()),
	)

	out, ok := dataAddressArray(data, 0)
	require.True(t, ok)
	require.Len(t, out, 2)
	assert.Equal(t, a1, out[0])
	assert.Equal(t, a2, out[1])
}

func TestDataAddressArrayMalformed(t *testing.T) {
	// 长度字段超出实际数据
	data := words(big.NewInt(wordSize), big.NewInt(100))
	_, ok := dataAddressArray(data, 0)
	assert.False(t, ok)
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()

	tags := r.Tags()
	assert.Equal(t, []string{
		TagBalancerV2, TagCurve, TagSushiswap,
		TagUniswapV2, TagUniswapV3, TagUniswapV4,
	}, tags)

	p, ok := r.Get(TagUniswapV4)
	require.True(t, ok)
	assert.Equal(t, TagUniswapV4, p.Protocol())

	_, ok = r.Get("unknown_protocol")
	assert.False(t, ok)

	// 单例协议实现伴生流动性事件接口
	lp, isLiq := p.(LiquidityParser)
	require.True(t, isLiq)
	assert.NotEmpty(t, lp.LiquidityTopic())
}
