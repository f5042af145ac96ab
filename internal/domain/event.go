package domain

import "time"

// EventCommentCreated 评论创建事件类型标识
const EventCommentCreated = "comment_created"

// CommentCreatedEvent 表示"评论 X 已创建"的不可变事实。
//
// 事件携带完整评论（含附件引用），下游消费者无需回查数据库。
// 消费者必须按 Comment.ID 幂等处理：重复投递视为无操作的覆盖写。
type CommentCreatedEvent struct {
	Type       string    `json:"type"`
	Comment    Comment   `json:"comment"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewCommentCreatedEvent 从评论构建创建事件。
func NewCommentCreatedEvent(comment Comment) CommentCreatedEvent {
	return CommentCreatedEvent{
		Type:       EventCommentCreated,
		Comment:    comment,
		OccurredAt: time.Now().UTC(),
	}
}
