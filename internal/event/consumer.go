package event

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"commentbox/backend/internal/monitoring"
)

// Handler 消费回调。返回错误时不提交位点，消息会被重新投递，
// 消费端副作用按评论ID幂等，重复投递无害。
type Handler func(ctx context.Context, key, value []byte) error

// messageReader 抽象 kafka.Reader 的取用/提交接口
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer 评论事件消费者（一个消费组一个实例）
type Consumer struct {
	reader  messageReader
	handle  Handler
	metrics *monitoring.Metrics
	group   string
	topic   string
	log     *zap.Logger
}

// NewConsumer 创建消费者
func NewConsumer(brokers []string, groupID, topic string, handle Handler, log *zap.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			GroupID:        groupID,
			Topic:          topic,
			MinBytes:       10e3,
			MaxBytes:       10e6,
			CommitInterval: time.Second,
		}),
		handle: handle,
		group:  groupID,
		topic:  topic,
		log:    log.With(zap.String("group", groupID)),
	}
}

// SetMetrics 设置监控指标
func (c *Consumer) SetMetrics(metrics *monitoring.Metrics) {
	c.metrics = metrics
}

// Run 运行消费循环直到 ctx 取消
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	c.log.Info("event consumer started", zap.String("topic", c.topic))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("event consumer stopped")
				return nil
			}
			c.log.Error("failed to fetch message", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		c.process(ctx, msg)
	}
}

// process 处理单条消息，处理成功才提交位点。
// 失败的消息位点不前移，重启或再均衡后会重新投递（至少一次投递）。
func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	if err := c.handle(ctx, msg.Key, msg.Value); err != nil {
		if c.metrics != nil {
			c.metrics.EventConsumeFailed.WithLabelValues(c.group).Inc()
		}
		c.log.Error("event handler failed",
			zap.Error(err),
			zap.String("key", string(msg.Key)))
		return
	}

	if c.metrics != nil {
		c.metrics.EventsConsumed.WithLabelValues(c.group).Inc()
	}

	if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
		c.log.Error("failed to commit message", zap.Error(err))
	}
}
