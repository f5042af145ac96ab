package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"commentbox/backend/internal/domain"
	"commentbox/backend/internal/storage"
)

// Store 内存存储实现（用于开发和测试）
type Store struct {
	mu          sync.RWMutex
	comments    map[string]*domain.Comment    // commentID -> Comment
	attachments map[string]*domain.Attachment // commentID -> Attachment
	order       []string                      // 插入顺序的评论ID
}

// NewStore 创建内存存储实例
func NewStore() *Store {
	return &Store{
		comments:    make(map[string]*domain.Comment),
		attachments: make(map[string]*domain.Attachment),
	}
}

// GetComment 按 ID 获取评论
func (s *Store) GetComment(ctx context.Context, id string) (*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comment, ok := s.comments[id]
	if !ok {
		return nil, storage.ErrCommentNotFound
	}
	clone := *comment
	return &clone, nil
}

// ListTopLevel 分页列出顶级评论
func (s *Store) ListTopLevel(ctx context.Context, query domain.CommentPageQuery) ([]domain.Comment, int, error) {
	query = query.Normalize()

	s.mu.RLock()
	topLevel := make([]domain.Comment, 0)
	for _, id := range s.order {
		c := s.comments[id]
		if c.IsTopLevel() {
			topLevel = append(topLevel, *c)
		}
	}
	s.mu.RUnlock()

	sortComments(topLevel, query.Sort, query.Dir)

	total := len(topLevel)
	start := query.Offset()
	end := start + query.PageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return topLevel[start:end], total, nil
}

// ListChildren 批量获取直接子评论，按创建时间升序
func (s *Store) ListChildren(ctx context.Context, parentIDs []string) ([]domain.Comment, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}

	wanted := make(map[string]bool, len(parentIDs))
	for _, id := range parentIDs {
		wanted[id] = true
	}

	s.mu.RLock()
	children := make([]domain.Comment, 0)
	for _, id := range s.order {
		c := s.comments[id]
		if c.ParentID != nil && wanted[*c.ParentID] {
			children = append(children, *c)
		}
	}
	s.mu.RUnlock()

	sortComments(children, domain.SortByCreatedAt, domain.SortAsc)
	return children, nil
}

// GetCommentByName 按昵称查任意一条历史评论（大小写不敏感）
func (s *Store) GetCommentByName(ctx context.Context, name string) (*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.comments {
		if strings.EqualFold(c.Name, name) {
			clone := *c
			return &clone, nil
		}
	}
	return nil, storage.ErrCommentNotFound
}

// GetCommentByEmail 按邮箱查任意一条历史评论（大小写不敏感）
func (s *Store) GetCommentByEmail(ctx context.Context, email string) (*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.comments {
		if strings.EqualFold(c.Email, email) {
			clone := *c
			return &clone, nil
		}
	}
	return nil, storage.ErrCommentNotFound
}

// ListAttachmentsByCommentIDs 批量获取附件
func (s *Store) ListAttachmentsByCommentIDs(ctx context.Context, commentIDs []string) ([]domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attachments := make([]domain.Attachment, 0)
	for _, id := range commentIDs {
		if a, ok := s.attachments[id]; ok {
			attachments = append(attachments, *a)
		}
	}
	return attachments, nil
}

// GetAttachmentByStoredName 按存储文件名获取附件元数据
func (s *Store) GetAttachmentByStoredName(ctx context.Context, storedName string) (*domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.attachments {
		if a.StoredName == storedName {
			clone := *a
			return &clone, nil
		}
	}
	return nil, storage.ErrAttachmentNotFound
}

// Begin 开启写入事务
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	return &memoryTx{store: s}, nil
}

// Close 关闭存储
func (s *Store) Close() error {
	return nil
}

// Health 健康检查
func (s *Store) Health() error {
	return nil
}

// memoryTx 内存事务：暂存写入，Commit 时在锁内一次性应用
type memoryTx struct {
	store       *Store
	comments    []*domain.Comment
	attachments []*domain.Attachment
	done        bool
}

func (tx *memoryTx) AddComment(comment *domain.Comment) error {
	if tx.done {
		return storage.ErrTxDone
	}
	clone := *comment
	clone.Replies = nil
	clone.Attachment = nil
	tx.comments = append(tx.comments, &clone)
	return nil
}

func (tx *memoryTx) AddAttachment(attachment *domain.Attachment) error {
	if tx.done {
		return storage.ErrTxDone
	}
	clone := *attachment
	tx.attachments = append(tx.attachments, &clone)
	return nil
}

func (tx *memoryTx) Commit() error {
	if tx.done {
		return storage.ErrTxDone
	}
	tx.done = true

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	for _, c := range tx.comments {
		tx.store.comments[c.ID] = c
		tx.store.order = append(tx.store.order, c.ID)
	}
	for _, a := range tx.attachments {
		tx.store.attachments[a.CommentID] = a
	}
	return nil
}

func (tx *memoryTx) Rollback() error {
	if tx.done {
		return storage.ErrTxDone
	}
	tx.done = true
	tx.comments = nil
	tx.attachments = nil
	return nil
}

// sortComments 按指定字段和方向排序
func sortComments(comments []domain.Comment, field domain.SortField, dir domain.SortDirection) {
	less := func(i, j int) bool {
		switch field {
		case domain.SortByName:
			return strings.ToLower(comments[i].Name) < strings.ToLower(comments[j].Name)
		case domain.SortByEmail:
			return strings.ToLower(comments[i].Email) < strings.ToLower(comments[j].Email)
		default:
			if comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
				return comments[i].ID < comments[j].ID
			}
			return comments[i].CreatedAt.Before(comments[j].CreatedAt)
		}
	}

	if dir == domain.SortDesc {
		sort.SliceStable(comments, func(i, j int) bool { return less(j, i) })
		return
	}
	sort.SliceStable(comments, less)
}
