package domain

import "time"

// Comment 表示一条评论，ParentID 为空表示顶级评论。
//
// ID 使用 UUIDv7，按创建时间有序，可直接按字典序比较先后。
// 评论一经创建不再修改或删除，回复通过插入新评论引用其 ID 累积。
type Comment struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name      string    `json:"name" gorm:"type:varchar(64);index;not null"`
	Email     string    `json:"email" gorm:"type:varchar(254);index;not null"`
	HomePage  string    `json:"homePage,omitempty" gorm:"type:varchar(256)"`
	Text      string    `json:"text" gorm:"type:text;not null"`
	ParentID  *string   `json:"parentId,omitempty" gorm:"type:varchar(36);index"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	// 附件与回复不存评论表，读取时组装
	Attachment *Attachment `json:"attachment,omitempty" gorm:"-"`
	Replies    []*Comment  `json:"replies,omitempty" gorm:"-"`
}

// IsTopLevel 是否为顶级评论。
func (c *Comment) IsTopLevel() bool {
	return c.ParentID == nil || *c.ParentID == ""
}

// SortField 顶级评论列表的排序字段
type SortField string

const (
	SortByName      SortField = "name"
	SortByEmail     SortField = "email"
	SortByCreatedAt SortField = "createdAt"
)

// SortDirection 排序方向
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// 分页默认值
const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// CommentPageQuery 顶级评论分页查询参数
type CommentPageQuery struct {
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
	Sort     SortField     `json:"sort"`
	Dir      SortDirection `json:"dir"`
}

// Normalize 修正非法分页参数并填充默认排序（创建时间倒序，最新在前）。
func (q CommentPageQuery) Normalize() CommentPageQuery {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	switch q.Sort {
	case SortByName, SortByEmail, SortByCreatedAt:
	default:
		q.Sort = SortByCreatedAt
	}
	switch q.Dir {
	case SortAsc, SortDesc:
	default:
		q.Dir = SortDesc
	}
	return q
}

// Offset 计算偏移量。
func (q CommentPageQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// CommentPage 一页顶级评论及总数（总数只统计顶级评论，不含回复）。
type CommentPage struct {
	Comments   []Comment `json:"comments"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalPages int       `json:"totalPages"`
}
