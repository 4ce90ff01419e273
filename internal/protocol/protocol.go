// Package protocol 实现各 AMM 协议的事件解码器
//
// 每个协议一个实现 + 一条注册表记录，新增协议不需要改动编排器。
// 解码器拥有自己协议的事件字段布局知识: indexed 参数从 topics 读，
// 非 indexed 参数从 data 读，两者混淆会静默产出错误的 tick/fee。
package protocol

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/poolscan/poolscan/internal/blockchain"
	"github.com/poolscan/poolscan/internal/model"
)

// 协议标签
const (
	TagUniswapV2  = "uniswap_v2"
	TagSushiswap  = "sushiswap"
	TagUniswapV3  = "uniswap_v3"
	TagUniswapV4  = "uniswap_v4"
	TagBalancerV2 = "balancer_v2"
	TagCurve      = "curve"
)

// DecodeError 日志形状与协议预期 ABI 不符
//
// 单条记录跳过并告警，批次其余部分继续。
type DecodeError struct {
	Protocol string
	Event    string
	Reason   string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: cannot decode %s event: %s", e.Protocol, e.Event, e.Reason)
}

func decodeErrf(protocol, event, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Protocol: protocol, Event: event, Reason: fmt.Sprintf(format, args...)}
}

// StateDelta 链上池状态读数
//
// 字段是协议相关的可选项: 储备型填 Reserves，集中流动性型填
// SqrtPriceX96/Tick/Liquidity，两者不会同时出现 (除非协议真的两者都暴露)。
type StateDelta struct {
	Reserves     []string // 十进制字符串，下标与 token 列表对应
	SqrtPriceX96 string
	Tick         *int64
	Liquidity    string
}

// Parser 协议解码器
type Parser interface {
	// Protocol 返回协议标签
	Protocol() string
	// ParsePoolCreated 解码池创建日志为规范池记录
	ParsePoolCreated(log types.Log, blockTimestamp uint64) (*model.Pool, error)
	// ParseSwap 解码 swap 日志为规范交换记录
	ParseSwap(log types.Log, pool *model.Pool, blockTimestamp uint64) (*model.SwapEvent, error)
}

// StateFetcher 支持链上状态读取的协议实现
type StateFetcher interface {
	// FetchState 读取池的当前链上状态
	FetchState(ctx context.Context, client *blockchain.Client, pool *model.Pool) (*StateDelta, error)
}

// LiquidityParser 支持流动性变更伴生事件的协议实现 (V4)
type LiquidityParser interface {
	// LiquidityTopic 返回流动性变更事件的 topic0
	LiquidityTopic() string
	// ParseLiquidityModified 解码流动性变更日志
	ParseLiquidityModified(log types.Log, blockTimestamp uint64) (*model.LiquidityModification, error)
}

// Registry 协议注册表
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register 注册协议实现，重复标签覆盖
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	r.parsers[p.Protocol()] = p
	r.mu.Unlock()
}

// Get 按标签取协议实现
func (r *Registry) Get(tag string) (Parser, bool) {
	r.mu.RLock()
	p, ok := r.parsers[tag]
	r.mu.RUnlock()
	return p, ok
}

// Tags 返回已注册的协议标签 (排序后)
func (r *Registry) Tags() []string {
	r.mu.RLock()
	tags := make([]string, 0, len(r.parsers))
	for tag := range r.parsers {
		tags = append(tags, tag)
	}
	r.mu.RUnlock()
	sort.Strings(tags)
	return tags
}

// DefaultRegistry 注册全部内置协议
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewUniswapV2Parser(TagUniswapV2))
	r.Register(NewUniswapV2Parser(TagSushiswap))
	r.Register(NewUniswapV3Parser())
	r.Register(NewUniswapV4Parser())
	r.Register(NewBalancerV2Parser())
	r.Register(NewCurveParser())
	return r
}
