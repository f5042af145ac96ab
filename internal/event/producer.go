// Package event 实现评论创建事件的发布与消费。
//
// 写入提交后同步把事件写入 Kafka（只保证持久交接，不等待消费者处理），
// 两个独立的消费组分别做搜索索引和实时广播，彼此隔离，任一失败不影响
// 另一方，也不回滚已提交的写入。
package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"commentbox/backend/internal/domain"
)

// Producer 评论事件生产者
type Producer struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewProducer 创建事件生产者
func NewProducer(brokers []string, topic string, log *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}

	return &Producer{writer: writer, log: log}
}

// PublishCommentCreated 发布评论创建事件。
//
// 以评论 ID 为消息键，同一评论的重复投递落在同一分区，消费端按 ID 幂等。
// 返回错误表示事件未能持久交接给 broker，调用方记录日志但不回滚写入。
func (p *Producer) PublishCommentCreated(ctx context.Context, evt domain.CommentCreatedEvent) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.Comment.ID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.log.Debug("event published",
		zap.String("type", evt.Type),
		zap.String("commentID", evt.Comment.ID))
	return nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	return p.writer.Close()
}
