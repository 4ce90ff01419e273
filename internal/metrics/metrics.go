// Package metrics 提供 poolscan 的 Prometheus 监控指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "poolscan"

// RPC 指标
var (
	// RPCRequestsTotal RPC 调用总数
	RPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "RPC 调用总数",
		},
		[]string{"chain_id", "method", "status"}, // status: success/failed
	)

	// RPCFailoversTotal 端点故障切换次数
	RPCFailoversTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_failovers_total",
			Help:      "成功调用落在备用端点上的次数",
		},
		[]string{"chain_id", "endpoint"},
	)

	// RPCDuration RPC 调用耗时
	RPCDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "RPC 调用耗时(秒)",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
		},
		[]string{"chain_id", "method"},
	)
)

// 索引指标
var (
	// BlocksProcessedTotal 已处理区块数
	BlocksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_processed_total",
			Help:      "已处理区块数",
		},
		[]string{"chain_id", "protocol"},
	)

	// SwapsDecodedTotal 解码的 swap 事件数
	SwapsDecodedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swaps_decoded_total",
			Help:      "解码的 swap 事件数",
		},
		[]string{"chain_id", "protocol"},
	)

	// PoolsCreatedTotal 发现的新池数
	PoolsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pools_created_total",
			Help:      "发现的新池数",
		},
		[]string{"chain_id", "protocol"},
	)

	// DecodeErrorsTotal 解码失败 (跳过) 的日志数
	DecodeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "解码失败被跳过的日志数",
		},
		[]string{"chain_id", "protocol"},
	)

	// IndexerLagBlocks 索引滞后区块数
	IndexerLagBlocks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indexer_lag_blocks",
			Help:      "链头与检查点之间的区块数",
		},
		[]string{"chain_id", "protocol"},
	)
)

// 协调与持久化指标
var (
	// LockAcquisitionsTotal 锁抢占结果
	LockAcquisitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_acquisitions_total",
			Help:      "分布式锁抢占结果",
		},
		[]string{"chain_id", "protocol", "result"}, // acquired/contended
	)

	// UpsertConflictsTotal 自然键冲突 (幂等 no-op) 次数
	UpsertConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upsert_conflicts_total",
			Help:      "写入时命中自然键冲突的次数",
		},
		[]string{"collection"},
	)

	// BatchDuration 一个处理窗口的耗时
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "一个区块窗口处理耗时(秒)",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"chain_id", "protocol"},
	)
)
