// Package kafka 提供 Kafka 生产者功能
//
// 索引器是下游交易平台的数据源，解码落库后把事件推到两个 topic:
//
// 1. Topic: swap-events
//    - 消息内容: model.SwapEvent (解码后的交换事件)
//    - Partition Key: tx_hash (同一笔交易的事件落在同一分区)
//
// 2. Topic: price-updates
//    - 消息内容: model.PriceCalculation (计算出的池价格)
//    - Partition Key: pool_address (同一池的价格序列保序)
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/poolscan/poolscan/internal/model"
	"github.com/poolscan/poolscan/pkg/logger"
)

// Kafka 生产者发送的 Topic
const (
	// TopicSwapEvents 交换事件 Topic
	// Partition Key: tx_hash
	// 消息格式: model.SwapEvent
	TopicSwapEvents = "swap-events"

	// TopicPriceUpdates 价格更新 Topic
	// Partition Key: pool_address
	// 消息格式: model.PriceCalculation
	TopicPriceUpdates = "price-updates"
)

// Producer Kafka 生产者
type Producer struct {
	producer sarama.SyncProducer
	mu       sync.RWMutex
	closed   bool
}

// ProducerConfig 生产者配置
type ProducerConfig struct {
	Brokers      []string
	ClientID     string
	RequiredAcks sarama.RequiredAcks
	MaxRetries   int
	RetryBackoff time.Duration
}

// NewProducer 创建生产者
func NewProducer(cfg *ProducerConfig) (*Producer, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_8_0_0
	config.ClientID = cfg.ClientID
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	requiredAcks := cfg.RequiredAcks
	if requiredAcks == 0 {
		requiredAcks = sarama.WaitForAll
	}
	config.Producer.RequiredAcks = requiredAcks

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	config.Producer.Retry.Max = maxRetries

	retryBackoff := cfg.RetryBackoff
	if retryBackoff == 0 {
		retryBackoff = 100 * time.Millisecond
	}
	config.Producer.Retry.Backoff = retryBackoff

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, err
	}

	return &Producer{
		producer: producer,
	}, nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	return p.producer.Close()
}

// send 发送消息
func (p *Producer) send(topic string, key string, value []byte) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return errors.New("producer is closed")
	}
	p.mu.RUnlock()

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		logger.Error("failed to send kafka message",
			zap.String("topic", topic),
			zap.String("key", key),
			zap.Error(err))
		return err
	}

	logger.Debug("kafka message sent",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))

	return nil
}

// SendSwapEvent 发送交换事件
func (p *Producer) SendSwapEvent(ctx context.Context, swap *model.SwapEvent) error {
	data, err := json.Marshal(swap)
	if err != nil {
		return err
	}

	return p.send(TopicSwapEvents, swap.TxHash, data)
}

// SendPriceUpdate 发送价格更新
func (p *Producer) SendPriceUpdate(ctx context.Context, price *model.PriceCalculation) error {
	data, err := json.Marshal(price)
	if err != nil {
		return err
	}

	return p.send(TopicPriceUpdates, price.PoolAddress, data)
}

// EventPublisher 事件发布器接口
//
// 下游投递失败不阻塞索引主路径，调用方按告警处理。
type EventPublisher interface {
	PublishSwap(ctx context.Context, swap *model.SwapEvent) error
	PublishPriceUpdate(ctx context.Context, price *model.PriceCalculation) error
}

// KafkaEventPublisher Kafka 事件发布器
type KafkaEventPublisher struct {
	producer *Producer
}

// NewKafkaEventPublisher 创建 Kafka 事件发布器
func NewKafkaEventPublisher(producer *Producer) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		producer: producer,
	}
}

func (p *KafkaEventPublisher) PublishSwap(ctx context.Context, swap *model.SwapEvent) error {
	return p.producer.SendSwapEvent(ctx, swap)
}

func (p *KafkaEventPublisher) PublishPriceUpdate(ctx context.Context, price *model.PriceCalculation) error {
	return p.producer.SendPriceUpdate(ctx, price)
}
