package domain

import "context"

// CommentSearchCriteria 评论全文搜索条件
type CommentSearchCriteria struct {
	Query    string // 搜索关键词（匹配昵称、邮箱、正文）
	Page     int    // 页码（默认1）
	PageSize int    // 每页数量（默认25，最大100）
}

// Normalize 修正非法分页参数。
func (c CommentSearchCriteria) Normalize() CommentSearchCriteria {
	if c.Page <= 0 {
		c.Page = 1
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.PageSize > MaxPageSize {
		c.PageSize = MaxPageSize
	}
	return c
}

// CommentSearchResult 评论搜索结果
type CommentSearchResult struct {
	Comments   []Comment `json:"comments"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalPages int       `json:"totalPages"`
}

// SearchIndex 定义搜索索引操作。
//
// 索引滞后于主存储（由事件消费者异步写入），查询只反映索引的当前状态。
// IndexComment 以评论 ID 为键覆盖写，重复索引同一评论是无操作。
type SearchIndex interface {
	IndexComment(ctx context.Context, comment *Comment) error
	Search(ctx context.Context, criteria CommentSearchCriteria) (*CommentSearchResult, error)
}
