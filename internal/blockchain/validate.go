package blockchain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/poolscan/poolscan/pkg/logger"
)

var (
	// ErrNoMatchingLogs 整条链上找不到匹配日志
	ErrNoMatchingLogs = errors.New("no logs matching topic found on chain")
)

// FindFirstLogBlock 二分查找第一个出现匹配日志的区块
//
// 配置里的 creation_block 和 topic 哈希经常是抄错的 (差几百万个块，
// 或者 indexed/非 indexed 字段读反导致 topic 不匹配)，启动校验用这个
// 函数独立求证: 对 [0, head] 二分，每次问"[0, mid] 里有没有日志"。
// 代价是 O(log n) 次 eth_getLogs，只在启动时跑一次。
func FindFirstLogBlock(ctx context.Context, client *Client, address common.Address, topic common.Hash, head uint64) (uint64, error) {
	hasLogs := func(from, to uint64) (bool, uint64, error) {
		logs, err := client.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: []common.Address{address},
			Topics:    [][]common.Hash{{topic}},
		})
		if err != nil {
			return false, 0, err
		}
		if len(logs) == 0 {
			return false, 0, nil
		}
		first := logs[0].BlockNumber
		for _, l := range logs[1:] {
			if l.BlockNumber < first {
				first = l.BlockNumber
			}
		}
		return true, first, nil
	}

	any, firstSeen, err := hasLogs(0, head)
	if err != nil {
		return 0, err
	}
	if !any {
		return 0, ErrNoMatchingLogs
	}

	lo, hi := uint64(0), firstSeen
	for lo < hi {
		mid := lo + (hi-lo)/2
		ok, first, err := hasLogs(lo, mid)
		if err != nil {
			return 0, err
		}
		if ok {
			hi = first
		} else {
			lo = mid + 1
		}
	}
	return lo, nil
}

// ValidateCreationBlock 校验配置的 creation_block
//
// 不一致时只告警不中止: 配置值偏大时会漏索引早期历史，偏小只是
// 浪费一些空扫描，都不是致命错误。
func ValidateCreationBlock(ctx context.Context, client *Client, tag string, address common.Address, topic common.Hash, configured int64, head uint64) {
	actual, err := FindFirstLogBlock(ctx, client, address, topic, head)
	if err != nil {
		logger.Warn("creation block validation skipped",
			zap.Int64("chain_id", client.ChainID()),
			zap.String("protocol", tag),
			zap.Error(err))
		return
	}

	if int64(actual) != configured {
		logger.Warn("configured creation_block does not match chain",
			zap.Int64("chain_id", client.ChainID()),
			zap.String("protocol", tag),
			zap.Int64("configured", configured),
			zap.Uint64("actual", actual))
	}
}
