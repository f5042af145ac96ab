package storage

import (
	"context"
	"errors"

	"commentbox/backend/internal/domain"
)

var (
	// ErrCommentNotFound 评论未找到错误
	ErrCommentNotFound = errors.New("comment not found")
	// ErrAttachmentNotFound 附件未找到错误
	ErrAttachmentNotFound = errors.New("attachment not found")
	// ErrTxDone 事务已提交或回滚
	ErrTxDone = errors.New("transaction already finished")
	// ErrCacheMiss 缓存未命中
	ErrCacheMiss = errors.New("cache miss")
)

// CommentRepository 定义评论数据存取操作。
type CommentRepository interface {
	// GetComment 按 ID 获取单条评论（不含回复和附件）
	GetComment(ctx context.Context, id string) (*domain.Comment, error)
	// ListTopLevel 分页列出顶级评论，总数只统计顶级行
	ListTopLevel(ctx context.Context, query domain.CommentPageQuery) ([]domain.Comment, int, error)
	// ListChildren 批量获取一组父评论的直接子评论（树组装按层调用，避免 N+1）
	ListChildren(ctx context.Context, parentIDs []string) ([]domain.Comment, error)
	// GetCommentByName 按昵称查任意一条历史评论（大小写不敏感），无则返回 ErrCommentNotFound
	GetCommentByName(ctx context.Context, name string) (*domain.Comment, error)
	// GetCommentByEmail 按邮箱查任意一条历史评论（大小写不敏感），无则返回 ErrCommentNotFound
	GetCommentByEmail(ctx context.Context, email string) (*domain.Comment, error)
}

// AttachmentRepository 定义附件元数据存取操作。
type AttachmentRepository interface {
	// ListAttachmentsByCommentIDs 批量获取一组评论的附件
	ListAttachmentsByCommentIDs(ctx context.Context, commentIDs []string) ([]domain.Attachment, error)
	// GetAttachmentByStoredName 按存储文件名获取附件元数据
	GetAttachmentByStoredName(ctx context.Context, storedName string) (*domain.Attachment, error)
}

// Tx 是一次写入事务：评论与其附件先暂存，Commit 时原子落库。
type Tx interface {
	AddComment(comment *domain.Comment) error
	AddAttachment(attachment *domain.Attachment) error
	Commit() error
	Rollback() error
}

// Store 定义完整的存储接口。
type Store interface {
	CommentRepository
	AttachmentRepository

	// Begin 开启写入事务
	Begin(ctx context.Context) (Tx, error)

	Close() error
	Health() error
}
