package protocol

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/poolscan/poolscan/internal/blockchain"
	"github.com/poolscan/poolscan/internal/model"
)

var (
	// coinsSelector coins(uint256) 函数选择器
	coinsSelector = []byte{0xc6, 0x61, 0x06, 0x57}
	// balancesSelector balances(uint256) 函数选择器
	balancesSelector = []byte{0x49, 0x03, 0xb0, 0xd1}
)

// curveMaxCoins 稳定币池的 coin 数量上限
const curveMaxCoins = 8

// errEmptyCallResult getter 返回不足一个字的数据
var errEmptyCallResult = errors.New("call returned short data")

// CurveParser 稳定币池 (Curve 式) 协议解码器
//
// 池由注册表的 PoolAdded 事件宣告，swap 用 coin 下标对表达:
//
// PoolAdded(address indexed pool)
// TokenExchange(address indexed buyer, int128 sold_id, uint256 tokens_sold,
//               int128 bought_id, uint256 tokens_bought)
//
// coin 列表与余额没有事件可用，FetchState 里按下标轮询
// coins(i)/balances(i) 直到 revert。
type CurveParser struct{}

// NewCurveParser 创建稳定币池解码器
func NewCurveParser() *CurveParser {
	return &CurveParser{}
}

// Protocol 返回协议标签
func (p *CurveParser) Protocol() string {
	return TagCurve
}

// ParsePoolCreated 解码 PoolAdded 日志
func (p *CurveParser) ParsePoolCreated(log types.Log, blockTimestamp uint64) (*model.Pool, error) {
	if len(log.Topics) < 2 {
		return nil, decodeErrf(TagCurve, "PoolAdded", "expected 2 topics, got %d", len(log.Topics))
	}

	return &model.Pool{
		PoolAddress:       topicAddress(log.Topics[1]).Hex(),
		Protocol:          TagCurve,
		FactoryAddress:    log.Address.Hex(),
		CreationBlock:     int64(log.BlockNumber),
		CreationTxHash:    log.TxHash.Hex(),
		CreationTimestamp: int64(blockTimestamp),
		Status:            model.PoolStatusActive,
	}, nil
}

// ParseSwap 解码 TokenExchange 日志
//
// sold_id/bought_id 是池内 coin 下标，不是 token 地址，
// 原样保留，地址解析交给读侧按 token_list 查。
func (p *CurveParser) ParseSwap(log types.Log, pool *model.Pool, blockTimestamp uint64) (*model.SwapEvent, error) {
	if len(log.Topics) < 2 {
		return nil, decodeErrf(TagCurve, "TokenExchange", "expected 2 topics, got %d", len(log.Topics))
	}
	if len(log.Data) < 4*wordSize {
		return nil, decodeErrf(TagCurve, "TokenExchange", "expected 4 data words, got %d bytes", len(log.Data))
	}

	soldID, _ := dataInt(log.Data, 0)
	tokensSold, _ := dataUint(log.Data, 1)
	boughtID, _ := dataInt(log.Data, 2)
	tokensBought, _ := dataUint(log.Data, 3)

	sold := soldID.Int64()
	bought := boughtID.Int64()

	return &model.SwapEvent{
		TxHash:         log.TxHash.Hex(),
		LogIndex:       int(log.Index),
		ChainID:        pool.ChainID,
		PoolAddress:    pool.PoolAddress,
		Protocol:       TagCurve,
		BlockNumber:    int64(log.BlockNumber),
		BlockTimestamp: int64(blockTimestamp),
		Sender:         topicAddress(log.Topics[1]).Hex(),
		AmountIn:       tokensSold.String(),
		AmountOut:      tokensBought.String(),
		SoldID:         &sold,
		BoughtID:       &bought,
	}, nil
}

// FetchState 按下标轮询 coins(i)/balances(i) 读取 coin 列表与余额
//
// 稳定币池没有 token 数量的 getter，下标越界时合约 revert，
// 以第一个 revert 作为列表结束。revert 之外的错误 (超时、端点耗尽)
// 必须向上传播: 当成列表结束会把 3 币池静默截断成 2 币池。
// 同时回填 pool.TokenList。
func (p *CurveParser) FetchState(ctx context.Context, client *blockchain.Client, pool *model.Pool) (*StateDelta, error) {
	addr := common.HexToAddress(pool.PoolAddress)

	var coins []string
	var reserves []string
	for i := 0; i < curveMaxCoins; i++ {
		coin, err := p.callIndexed(ctx, client, addr, coinsSelector, i)
		if err != nil {
			// 部分节点对 revert 返回空数据而不是错误
			if blockchain.IsExecutionRevert(err) || errors.Is(err, errEmptyCallResult) {
				break
			}
			return nil, fmt.Errorf("%s: coins(%d) failed for pool %s: %w", TagCurve, i, pool.PoolAddress, err)
		}
		balance, err := p.callIndexed(ctx, client, addr, balancesSelector, i)
		if err != nil {
			return nil, fmt.Errorf("%s: coins(%d) resolved but balances(%d) failed for pool %s: %w",
				TagCurve, i, i, pool.PoolAddress, err)
		}
		coins = append(coins, common.BytesToAddress(coin[12:wordSize]).Hex())
		reserves = append(reserves, new(big.Int).SetBytes(balance[:wordSize]).String())
	}

	if len(coins) < 2 {
		return nil, fmt.Errorf("%s: pool %s reports %d coins, want at least 2", TagCurve, pool.PoolAddress, len(coins))
	}

	pool.TokenList = strings.Join(coins, ",")
	pool.Token0Address = coins[0]
	pool.Token1Address = coins[1]

	return &StateDelta{Reserves: reserves}, nil
}

// callIndexed 调用 fn(uint256 i) 型 getter
func (p *CurveParser) callIndexed(ctx context.Context, client *blockchain.Client, addr common.Address, selector []byte, i int) ([]byte, error) {
	calldata := make([]byte, 4+wordSize)
	copy(calldata, selector)
	big.NewInt(int64(i)).FillBytes(calldata[4:])

	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: calldata}, nil)
	if err != nil {
		return nil, err
	}
	if len(result) < wordSize {
		return nil, fmt.Errorf("%w: %d bytes", errEmptyCallResult, len(result))
	}
	return result, nil
}

var _ Parser = (*CurveParser)(nil)
var _ StateFetcher = (*CurveParser)(nil)
