package protocol

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/poolscan/poolscan/internal/blockchain"
	"github.com/poolscan/poolscan/internal/model"
)

// getPoolTokensSelector getPoolTokens(bytes32) 函数选择器
var getPoolTokensSelector = []byte{0xf9, 0x4d, 0x46, 0x68}

// vault 型多币池的 token 数量边界
const (
	balancerMinTokens = 2
	balancerMaxTokens = 8
)

// BalancerV2Parser vault 型 (Balancer V2 式) 协议解码器
//
// 所有池的资产托管在一个 Vault 合约里，池由 bytes32 poolId 标识
// (前 20 字节是池合约地址)。一个池持有 2~8 个 token，不是固定两个。
//
// PoolRegistered(bytes32 indexed poolId, address indexed poolAddress, uint8 specialization)
// Swap(bytes32 indexed poolId, address indexed tokenIn, address indexed tokenOut,
//      uint256 amountIn, uint256 amountOut)
//
// 注册事件不携带 token 列表，完整列表在 FetchState 里走
// vault.getPoolTokens(poolId) 读取。
type BalancerV2Parser struct{}

// NewBalancerV2Parser 创建 vault 型解码器
func NewBalancerV2Parser() *BalancerV2Parser {
	return &BalancerV2Parser{}
}

// Protocol 返回协议标签
func (p *BalancerV2Parser) Protocol() string {
	return TagBalancerV2
}

// ParsePoolCreated 解码 PoolRegistered 日志
func (p *BalancerV2Parser) ParsePoolCreated(log types.Log, blockTimestamp uint64) (*model.Pool, error) {
	if len(log.Topics) < 3 {
		return nil, decodeErrf(TagBalancerV2, "PoolRegistered", "expected 3 topics, got %d", len(log.Topics))
	}

	poolID := log.Topics[1].Hex()
	poolAddr := topicAddress(log.Topics[2])

	return &model.Pool{
		PoolAddress:       poolAddr.Hex(),
		PoolID:            poolID,
		Protocol:          TagBalancerV2,
		FactoryAddress:    log.Address.Hex(),
		CreationBlock:     int64(log.BlockNumber),
		CreationTxHash:    log.TxHash.Hex(),
		CreationTimestamp: int64(blockTimestamp),
		Status:            model.PoolStatusActive,
	}, nil
}

// ParseSwap 解码 Swap 日志
//
// vault 型的 swap 按 tokenIn/tokenOut 地址对表达，不是按 token0/token1
// 下标，Amount0/Amount1 留空。
func (p *BalancerV2Parser) ParseSwap(log types.Log, pool *model.Pool, blockTimestamp uint64) (*model.SwapEvent, error) {
	if len(log.Topics) < 4 {
		return nil, decodeErrf(TagBalancerV2, "Swap", "expected 4 topics, got %d", len(log.Topics))
	}
	if len(log.Data) < 2*wordSize {
		return nil, decodeErrf(TagBalancerV2, "Swap", "expected 2 data words, got %d bytes", len(log.Data))
	}

	amountIn, _ := dataUint(log.Data, 0)
	amountOut, _ := dataUint(log.Data, 1)

	return &model.SwapEvent{
		TxHash:          log.TxHash.Hex(),
		LogIndex:        int(log.Index),
		ChainID:         pool.ChainID,
		PoolAddress:     pool.PoolAddress,
		Protocol:        TagBalancerV2,
		BlockNumber:     int64(log.BlockNumber),
		BlockTimestamp:  int64(blockTimestamp),
		TokenInAddress:  topicAddress(log.Topics[2]).Hex(),
		TokenOutAddress: topicAddress(log.Topics[3]).Hex(),
		AmountIn:        amountIn.String(),
		AmountOut:       amountOut.String(),
	}, nil
}

// FetchState 通过 vault.getPoolTokens(poolId) 读取 token 列表与余额
//
// 返回 (address[] tokens, uint256[] balances, uint256 lastChangeBlock)。
// 同时把 token 列表回填到 pool.TokenList / Token0Address / Token1Address，
// 注册事件里拿不到这些。
func (p *BalancerV2Parser) FetchState(ctx context.Context, client *blockchain.Client, pool *model.Pool) (*StateDelta, error) {
	if pool.PoolID == "" {
		return nil, fmt.Errorf("%s: pool %s has no pool id", TagBalancerV2, pool.PoolAddress)
	}

	vault := common.HexToAddress(pool.FactoryAddress)
	calldata := make([]byte, 0, 4+wordSize)
	calldata = append(calldata, getPoolTokensSelector...)
	calldata = append(calldata, common.HexToHash(pool.PoolID).Bytes()...)

	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &vault, Data: calldata}, nil)
	if err != nil {
		return nil, err
	}

	tokens, ok := dataAddressArray(result, 0)
	if !ok {
		return nil, fmt.Errorf("%s: malformed getPoolTokens response: %d bytes", TagBalancerV2, len(result))
	}
	if len(tokens) < balancerMinTokens || len(tokens) > balancerMaxTokens {
		return nil, fmt.Errorf("%s: pool %s reports %d tokens, want %d~%d",
			TagBalancerV2, pool.PoolAddress, len(tokens), balancerMinTokens, balancerMaxTokens)
	}

	balances, ok := dataUintArray(result, 1)
	if !ok || len(balances) != len(tokens) {
		return nil, fmt.Errorf("%s: token/balance arity mismatch for pool %s", TagBalancerV2, pool.PoolAddress)
	}

	list := make([]string, len(tokens))
	reserves := make([]string, len(balances))
	for i, t := range tokens {
		list[i] = t.Hex()
		reserves[i] = balances[i].String()
	}
	pool.TokenList = strings.Join(list, ",")
	pool.Token0Address = list[0]
	pool.Token1Address = list[1]

	return &StateDelta{Reserves: reserves}, nil
}

var _ Parser = (*BalancerV2Parser)(nil)
var _ StateFetcher = (*BalancerV2Parser)(nil)
