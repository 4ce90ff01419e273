package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/poolscan/poolscan/internal/metrics"
	"github.com/poolscan/poolscan/pkg/logger"
	"github.com/poolscan/poolscan/pkg/retry"
)

var (
	ErrNoEndpoints = errors.New("no usable RPC endpoint configured")
)

// RPCExhaustedError 所有端点都失败
//
// 只在主端点和全部备用端点都尝试过之后返回，携带尝试过的端点列表。
// 只中止当前批次，不中止进程。
type RPCExhaustedError struct {
	Method    string
	Endpoints []string
	LastErr   error
}

func (e *RPCExhaustedError) Error() string {
	return fmt.Sprintf("rpc exhausted for %s: tried [%s]: %v",
		e.Method, strings.Join(e.Endpoints, ", "), e.LastErr)
}

func (e *RPCExhaustedError) Unwrap() error {
	return e.LastErr
}

// IsExecutionRevert 判断错误是否为合约执行 revert
//
// revert 是确定性结果 (如 getter 下标越界)，换端点重试也不会变，
// 调用方可以把它当业务信号处理。其余错误 (超时、连接失败、限流)
// 是传输故障，必须向上传播。do 会把 revert 也包进 *RPCExhaustedError
// (每个错误都会遍历完所有端点)，所以先剥到最后一个底层错误再判断。
func IsExecutionRevert(err error) bool {
	if err == nil {
		return false
	}
	var exhausted *RPCExhaustedError
	if errors.As(err, &exhausted) && exhausted.LastErr != nil {
		err = exhausted.LastErr
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}

// Endpoint RPC 端点
type Endpoint struct {
	URL string

	mu         sync.Mutex
	client     *ethclient.Client
	healthy    bool
	errorCount int
	lastError  time.Time
}

// dial 惰性连接，连接后复用
func (ep *Endpoint) dial(ctx context.Context) (*ethclient.Client, error) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if ep.client != nil {
		return ep.client, nil
	}

	client, err := ethclient.DialContext(ctx, ep.URL)
	if err != nil {
		return nil, err
	}
	ep.client = client
	return client, nil
}

func (ep *Endpoint) markFailed() {
	ep.mu.Lock()
	ep.healthy = false
	ep.errorCount++
	ep.lastError = time.Now()
	ep.mu.Unlock()
}

func (ep *Endpoint) markHealthy() {
	ep.mu.Lock()
	ep.healthy = true
	ep.mu.Unlock()
}

// EndpointStatus 端点健康快照
type EndpointStatus struct {
	URL        string `json:"url"`
	Healthy    bool   `json:"healthy"`
	ErrorCount int    `json:"error_count"`
}

// Client 链上只读客户端
//
// 包装一个主端点和 N 个备用端点。每次调用按顺序遍历端点，单次调用
// 受超时约束，瞬时失败按 base*2^i 退避后切换到下一个端点，全部失败
// 返回 *RPCExhaustedError。故障切换是必需的运维信号，全部结构化记录。
type Client struct {
	chainID     int64
	endpoints   []*Endpoint
	timeout     time.Duration
	backoffBase time.Duration

	// methodPolicy 是独立于端点切换的第二重试维度，
	// 包裹对失败特别敏感的调用 (如区块时间戳查询)。
	methodPolicy retry.Policy
}

// ClientConfig 客户端配置
type ClientConfig struct {
	ChainID      int64
	RPCURL       string
	BackupURLs   []string
	Timeout      time.Duration
	BackoffBase  time.Duration
	MethodPolicy retry.Policy
}

// NewClient 创建链上客户端
func NewClient(cfg *ClientConfig) (*Client, error) {
	urls := append([]string{cfg.RPCURL}, cfg.BackupURLs...)

	var endpoints []*Endpoint
	for _, url := range urls {
		if isPlaceholderURL(url) {
			continue
		}
		endpoints = append(endpoints, &Endpoint{URL: url, healthy: true})
	}
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	backoffBase := cfg.BackoffBase
	if backoffBase == 0 {
		backoffBase = 200 * time.Millisecond
	}
	methodPolicy := cfg.MethodPolicy
	if methodPolicy.MaxAttempts == 0 {
		methodPolicy = retry.DefaultPolicy()
	}

	return &Client{
		chainID:      cfg.ChainID,
		endpoints:    endpoints,
		timeout:      timeout,
		backoffBase:  backoffBase,
		methodPolicy: methodPolicy,
	}, nil
}

// isPlaceholderURL 过滤未填写的占位 URL
func isPlaceholderURL(url string) bool {
	if url == "" {
		return true
	}
	if strings.Contains(url, "${") || strings.Contains(url, "YOUR_") {
		return true
	}
	return !strings.HasPrefix(url, "http://") &&
		!strings.HasPrefix(url, "https://") &&
		!strings.HasPrefix(url, "ws://") &&
		!strings.HasPrefix(url, "wss://")
}

// ChainID 返回链 ID
func (c *Client) ChainID() int64 {
	return c.chainID
}

// EndpointStatuses 返回端点健康快照
func (c *Client) EndpointStatuses() []EndpointStatus {
	statuses := make([]EndpointStatus, 0, len(c.endpoints))
	for _, ep := range c.endpoints {
		ep.mu.Lock()
		statuses = append(statuses, EndpointStatus{
			URL:        ep.URL,
			Healthy:    ep.healthy,
			ErrorCount: ep.errorCount,
		})
		ep.mu.Unlock()
	}
	return statuses
}

// do 端点遍历 + 退避
func (c *Client) do(ctx context.Context, method string, fn func(ctx context.Context, client *ethclient.Client) error) error {
	chainLabel := strconv.FormatInt(c.chainID, 10)
	start := time.Now()

	var tried []string
	var lastErr error

	for i, ep := range c.endpoints {
		if err := ctx.Err(); err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		client, err := ep.dial(callCtx)
		if err == nil {
			err = fn(callCtx, client)
		}
		cancel()

		if err == nil {
			ep.markHealthy()
			metrics.RPCRequestsTotal.WithLabelValues(chainLabel, method, "success").Inc()
			metrics.RPCDuration.WithLabelValues(chainLabel, method).Observe(time.Since(start).Seconds())
			if i > 0 {
				metrics.RPCFailoversTotal.WithLabelValues(chainLabel, ep.URL).Inc()
				logger.Info("rpc call served by fallback endpoint",
					zap.Int64("chain_id", c.chainID),
					zap.String("method", method),
					zap.String("endpoint", ep.URL),
					zap.Int("attempt", i))
			}
			return nil
		}

		tried = append(tried, ep.URL)
		lastErr = err
		ep.markFailed()

		logger.Warn("rpc endpoint failed",
			zap.Int64("chain_id", c.chainID),
			zap.String("method", method),
			zap.String("endpoint", ep.URL),
			zap.Int("attempt", i),
			zap.Int("remaining_fallbacks", len(c.endpoints)-i-1),
			zap.Error(err))

		if i < len(c.endpoints)-1 {
			delay := c.backoffBase << uint(i)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	metrics.RPCRequestsTotal.WithLabelValues(chainLabel, method, "failed").Inc()
	return &RPCExhaustedError{Method: method, Endpoints: tried, LastErr: lastErr}
}

// LatestBlock 获取最新区块号
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	var blockNum uint64
	err := c.do(ctx, "eth_blockNumber", func(ctx context.Context, client *ethclient.Client) error {
		var err error
		blockNum, err = client.BlockNumber(ctx)
		return err
	})
	return blockNum, err
}

// FilterLogs 按地址/主题/区块范围过滤日志
func (c *Client) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.do(ctx, "eth_getLogs", func(ctx context.Context, client *ethclient.Client) error {
		var err error
		logs, err = client.FilterLogs(ctx, query)
		return err
	})
	return logs, err
}

// BlockTimestamp 获取区块时间戳
//
// 时间戳查询对失败特别敏感 (每个批次都要查)，在端点切换之外再包一层
// 方法级重试，重试可以同时跨越两个维度 (端点 × 尝试次数)。
func (c *Client) BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := c.methodPolicy.Do(ctx, func(ctx context.Context) error {
		return c.do(ctx, "eth_getBlockByNumber", func(ctx context.Context, client *ethclient.Client) error {
			header, err := client.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
			if err != nil {
				return err
			}
			ts = header.Time
			return nil
		})
	})
	return ts, err
}

// CallContract 只读合约调用
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var result []byte
	err := c.do(ctx, "eth_call", func(ctx context.Context, client *ethclient.Client) error {
		var err error
		result, err = client.CallContract(ctx, msg, blockNumber)
		return err
	})
	return result, err
}

// erc20DecimalsSelector decimals() 函数选择器
var erc20DecimalsSelector = []byte{0x31, 0x3c, 0xe5, 0x67}

// TokenDecimals 查询 ERC20 精度，调用方负责失败回退
func (c *Client) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	result, err := c.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: erc20DecimalsSelector,
	}, nil)
	if err != nil {
		return 0, err
	}
	if len(result) < 32 {
		return 0, fmt.Errorf("decimals call returned %d bytes", len(result))
	}

	value := new(big.Int).SetBytes(result[:32])
	if !value.IsUint64() || value.Uint64() > 255 {
		return 0, fmt.Errorf("decimals out of range: %s", value)
	}
	return uint8(value.Uint64()), nil
}

// Close 关闭所有端点连接
func (c *Client) Close() {
	for _, ep := range c.endpoints {
		ep.mu.Lock()
		if ep.client != nil {
			ep.client.Close()
			ep.client = nil
		}
		ep.mu.Unlock()
	}
}
