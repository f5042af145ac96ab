package event

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"commentbox/backend/internal/domain"
)

// Broadcaster 实时广播接口（由 websocket.Hub 实现）
type Broadcaster interface {
	NotifyCommentCreated(comment *domain.Comment)
}

// IndexerHandler 搜索索引消费回调：把事件中的评论覆盖写入索引。
//
// 索引以评论 ID 为键，重复投递是无操作的覆盖写，不会产生重复条目。
func IndexerHandler(index domain.SearchIndex, log *zap.Logger) Handler {
	return func(ctx context.Context, key, value []byte) error {
		evt, err := decodeEvent(value)
		if err != nil {
			return err
		}

		if err := index.IndexComment(ctx, &evt.Comment); err != nil {
			return fmt.Errorf("failed to index comment %s: %w", evt.Comment.ID, err)
		}

		log.Debug("comment indexed", zap.String("commentID", evt.Comment.ID))
		return nil
	}
}

// BroadcastHandler 实时广播消费回调：把评论推送给当前在线的订阅者。
//
// Hub 按评论 ID 去重，重复投递不会二次广播。
func BroadcastHandler(hub Broadcaster, log *zap.Logger) Handler {
	return func(ctx context.Context, key, value []byte) error {
		evt, err := decodeEvent(value)
		if err != nil {
			return err
		}

		hub.NotifyCommentCreated(&evt.Comment)

		log.Debug("comment broadcast", zap.String("commentID", evt.Comment.ID))
		return nil
	}
}

// decodeEvent 解析评论创建事件
func decodeEvent(value []byte) (*domain.CommentCreatedEvent, error) {
	var evt domain.CommentCreatedEvent
	if err := json.Unmarshal(value, &evt); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	if evt.Type != domain.EventCommentCreated {
		return nil, fmt.Errorf("unexpected event type: %s", evt.Type)
	}
	return &evt, nil
}
