package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commentbox/backend/internal/domain"
	"commentbox/backend/internal/storage"
)

func addComment(t *testing.T, s *Store, name, email string, parentID *string, createdAt time.Time) *domain.Comment {
	t.Helper()

	id, err := uuid.NewV7()
	require.NoError(t, err)

	comment := &domain.Comment{
		ID:        id.String(),
		Name:      name,
		Email:     email,
		Text:      "hello from " + name,
		ParentID:  parentID,
		CreatedAt: createdAt,
	}

	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.AddComment(comment))
	require.NoError(t, tx.Commit())

	return comment
}

func TestGetComment(t *testing.T) {
	s := NewStore()
	c := addComment(t, s, "alice", "a@x.com", nil, time.Now())

	got, err := s.GetComment(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Name)

	_, err = s.GetComment(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrCommentNotFound)
}

func TestListTopLevelPagingAndTotal(t *testing.T) {
	s := NewStore()
	base := time.Now().Add(-time.Hour)

	var first *domain.Comment
	for i := 0; i < 7; i++ {
		c := addComment(t, s, fmt.Sprintf("user%d", i), fmt.Sprintf("u%d@x.com", i), nil, base.Add(time.Duration(i)*time.Minute))
		if i == 0 {
			first = c
		}
	}
	// 回复不应计入顶级总数
	addComment(t, s, "replier", "r@x.com", &first.ID, base.Add(time.Hour))

	page, total, err := s.ListTopLevel(context.Background(), domain.CommentPageQuery{Page: 1, PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, page, 3)
	// 默认创建时间倒序，最新在前
	assert.Equal(t, "user6", page[0].Name)

	page, _, err = s.ListTopLevel(context.Background(), domain.CommentPageQuery{Page: 3, PageSize: 3})
	require.NoError(t, err)
	assert.Len(t, page, 1)

	page, _, err = s.ListTopLevel(context.Background(), domain.CommentPageQuery{Page: 9, PageSize: 3})
	require.NoError(t, err)
	assert.Len(t, page, 0)
}

func TestListTopLevelSortByName(t *testing.T) {
	s := NewStore()
	now := time.Now()
	addComment(t, s, "charlie", "c@x.com", nil, now)
	addComment(t, s, "Alice", "a@x.com", nil, now.Add(time.Second))
	addComment(t, s, "bob", "b@x.com", nil, now.Add(2*time.Second))

	page, _, err := s.ListTopLevel(context.Background(), domain.CommentPageQuery{
		Page: 1, PageSize: 10, Sort: domain.SortByName, Dir: domain.SortAsc,
	})
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "Alice", page[0].Name)
	assert.Equal(t, "bob", page[1].Name)
	assert.Equal(t, "charlie", page[2].Name)
}

func TestListChildren(t *testing.T) {
	s := NewStore()
	now := time.Now()
	root := addComment(t, s, "root", "root@x.com", nil, now)
	c1 := addComment(t, s, "kid1", "k1@x.com", &root.ID, now.Add(time.Minute))
	addComment(t, s, "kid2", "k2@x.com", &root.ID, now.Add(2*time.Minute))
	addComment(t, s, "grandkid", "g@x.com", &c1.ID, now.Add(3*time.Minute))

	children, err := s.ListChildren(context.Background(), []string{root.ID})
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "kid1", children[0].Name)

	children, err = s.ListChildren(context.Background(), []string{c1.ID})
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "grandkid", children[0].Name)

	children, err = s.ListChildren(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestIdentityLookups(t *testing.T) {
	s := NewStore()
	addComment(t, s, "alice", "a@x.com", nil, time.Now())

	got, err := s.GetCommentByName(context.Background(), "ALICE")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)

	got, err = s.GetCommentByEmail(context.Background(), "A@X.COM")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Name)

	_, err = s.GetCommentByName(context.Background(), "nobody")
	assert.ErrorIs(t, err, storage.ErrCommentNotFound)
}

func TestTxAtomicCommitAndRollback(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	id, err := uuid.NewV7()
	require.NoError(t, err)
	comment := &domain.Comment{ID: id.String(), Name: "bob", Email: "b@x.com", Text: "hi", CreatedAt: time.Now()}
	attachment := &domain.Attachment{ID: uuid.NewString(), CommentID: comment.ID, FileName: "cat.png", StoredName: "abc.png", ContentType: "image/png", Size: 42, Kind: domain.AttachmentImage}

	// 回滚后不可见
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.AddComment(comment))
	require.NoError(t, tx.AddAttachment(attachment))
	require.NoError(t, tx.Rollback())

	_, err = s.GetComment(ctx, comment.ID)
	assert.ErrorIs(t, err, storage.ErrCommentNotFound)

	// 提交后评论与附件一起可见
	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.AddComment(comment))
	require.NoError(t, tx.AddAttachment(attachment))
	require.NoError(t, tx.Commit())

	_, err = s.GetComment(ctx, comment.ID)
	require.NoError(t, err)

	attachments, err := s.ListAttachmentsByCommentIDs(ctx, []string{comment.ID})
	require.NoError(t, err)
	require.Len(t, attachments, 1)
	assert.Equal(t, "cat.png", attachments[0].FileName)

	// 事务结束后再次使用返回 ErrTxDone
	assert.ErrorIs(t, tx.Commit(), storage.ErrTxDone)
}

func TestGetAttachmentByStoredName(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	c := addComment(t, s, "bob", "b@x.com", nil, time.Now())

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.AddAttachment(&domain.Attachment{
		ID: uuid.NewString(), CommentID: c.ID, FileName: "notes.txt",
		StoredName: "stored-1.txt", ContentType: "text/plain", Kind: domain.AttachmentTextFile,
	}))
	require.NoError(t, tx.Commit())

	got, err := s.GetAttachmentByStoredName(ctx, "stored-1.txt")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", got.FileName)

	_, err = s.GetAttachmentByStoredName(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrAttachmentNotFound)
}
