package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"commentbox/backend/internal/domain"
	"commentbox/backend/internal/storage"
	"commentbox/backend/internal/storage/filesystem"
	"commentbox/backend/internal/storage/memory"
)

// fakeCache 记录失效次数的内存列表缓存
type fakeCache struct {
	mu          sync.Mutex
	pages       map[string]*domain.CommentPage
	invalidated int
	failReads   bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{pages: make(map[string]*domain.CommentPage)}
}

func (c *fakeCache) key(q domain.CommentPageQuery) string {
	return fmt.Sprintf("%d:%d:%s:%s", q.Page, q.PageSize, q.Sort, q.Dir)
}

func (c *fakeCache) GetCommentPage(_ context.Context, q domain.CommentPageQuery) (*domain.CommentPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failReads {
		return nil, errors.New("cache unavailable")
	}
	page, ok := c.pages[c.key(q)]
	if !ok {
		return nil, storage.ErrCacheMiss
	}
	return page, nil
}

func (c *fakeCache) SetCommentPage(_ context.Context, q domain.CommentPageQuery, page *domain.CommentPage, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[c.key(q)] = page
	return nil
}

func (c *fakeCache) InvalidateCommentPages(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages = make(map[string]*domain.CommentPage)
	c.invalidated++
	return nil
}

// fakePublisher 记录发布的事件
type fakePublisher struct {
	mu     sync.Mutex
	events []domain.CommentCreatedEvent
	fail   bool
}

func (p *fakePublisher) PublishCommentCreated(_ context.Context, evt domain.CommentCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, evt)
	return nil
}

// fakeCaptcha 可配置通过与否
type fakeCaptcha struct {
	pass bool
}

func (c *fakeCaptcha) Validate(_ context.Context, _, _ string) (bool, error) {
	return c.pass, nil
}

func newTestService(t *testing.T) (*CommentService, *memory.Store, *fakeCache, *fakePublisher) {
	t.Helper()
	store := memory.NewStore()
	cache := newFakeCache()
	publisher := &fakePublisher{}

	svc := NewCommentService(store, zap.NewNop())
	svc.SetCache(cache, time.Minute)
	svc.SetPublisher(publisher)
	return svc, store, cache, publisher
}

func validInput(name, email string) CreateCommentInput {
	return CreateCommentInput{
		Name:  name,
		Email: email,
		Text:  "Hello <strong>world</strong>",
	}
}

func TestCreateComment(t *testing.T) {
	svc, _, cache, publisher := newTestService(t)
	ctx := context.Background()

	comment, err := svc.Create(ctx, validInput("alice", "alice@example.com"))
	require.NoError(t, err)
	assert.NotEmpty(t, comment.ID)
	assert.Equal(t, "alice", comment.Name)
	assert.Equal(t, "Hello <strong>world</strong>", comment.Text)
	assert.True(t, comment.IsTopLevel())

	// 写入后列表缓存失效且事件已发布
	assert.Equal(t, 1, cache.invalidated)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, domain.EventCommentCreated, publisher.events[0].Type)
	assert.Equal(t, comment.ID, publisher.events[0].Comment.ID)
}

func TestCreateCommentCaptchaFailed(t *testing.T) {
	svc, store, _, publisher := newTestService(t)
	svc.SetCaptcha(&fakeCaptcha{pass: false})
	ctx := context.Background()

	_, err := svc.Create(ctx, validInput("alice", "alice@example.com"))
	assert.ErrorIs(t, err, ErrCaptchaFailed)

	// 验证码失败时没有任何落库和事件
	_, total, err := store.ListTopLevel(ctx, domain.CommentPageQuery{}.Normalize())
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, publisher.events)
}

func TestCreateCommentInvalidMarkup(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	input := validInput("alice", "alice@example.com")
	input.Text = "broken <strong>bold"

	_, err := svc.Create(ctx, input)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "text", verr.Field)

	_, total, err := store.ListTopLevel(ctx, domain.CommentPageQuery{}.Normalize())
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestCreateCommentIdentityConflict(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, validInput("alice", "alice@example.com"))
	require.NoError(t, err)

	// 同昵称不同邮箱
	_, err = svc.Create(ctx, validInput("alice", "other@example.com"))
	assert.ErrorIs(t, err, ErrIdentityConflict)

	// 同邮箱不同昵称
	_, err = svc.Create(ctx, validInput("bob", "alice@example.com"))
	assert.ErrorIs(t, err, ErrIdentityConflict)

	// 大小写只改变形式，仍视为同一身份
	_, err = svc.Create(ctx, validInput("ALICE", "other2@example.com"))
	assert.ErrorIs(t, err, ErrIdentityConflict)

	// 完整身份复用没有限制
	_, err = svc.Create(ctx, validInput("alice", "alice@example.com"))
	assert.NoError(t, err)

	// 不同身份互不影响
	_, err = svc.Create(ctx, validInput("bob", "bob@example.com"))
	assert.NoError(t, err)
}

func TestCreateReply(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	parent, err := svc.Create(ctx, validInput("alice", "alice@example.com"))
	require.NoError(t, err)

	input := validInput("bob", "bob@example.com")
	input.ParentID = &parent.ID
	reply, err := svc.Create(ctx, input)
	require.NoError(t, err)
	assert.False(t, reply.IsTopLevel())

	// 回复不进入顶级列表
	page, err := svc.List(ctx, domain.CommentPageQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestCreateReplyParentNotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	missing := "00000000-0000-0000-0000-000000000000"
	input := validInput("alice", "alice@example.com")
	input.ParentID = &missing

	_, err := svc.Create(ctx, input)
	assert.ErrorIs(t, err, ErrParentNotFound)
}

func TestListCacheAside(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, validInput("alice", "alice@example.com"))
	require.NoError(t, err)

	query := domain.CommentPageQuery{Page: 1, PageSize: 10}

	first, err := svc.List(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Total)

	// 第二次读命中缓存，返回同一对象
	second, err := svc.List(ctx, query)
	require.NoError(t, err)
	assert.Same(t, first, second)

	// 新写入使缓存失效，读到新数据
	_, err = svc.Create(ctx, validInput("bob", "bob@example.com"))
	require.NoError(t, err)

	third, err := svc.List(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, 2, third.Total)
}

func TestListCacheFailureDegrades(t *testing.T) {
	svc, _, cache, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, validInput("alice", "alice@example.com"))
	require.NoError(t, err)

	cache.failReads = true
	page, err := svc.List(ctx, domain.CommentPageQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestPublishFailureDoesNotFailCreate(t *testing.T) {
	svc, store, _, publisher := newTestService(t)
	publisher.fail = true
	ctx := context.Background()

	comment, err := svc.Create(ctx, validInput("alice", "alice@example.com"))
	require.NoError(t, err)

	// 发布失败不回滚写入
	got, err := store.GetComment(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, comment.ID, got.ID)
}

func TestGetHydratesReplyTree(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	// 构造 alice -> bob -> carol 三层链
	root, err := svc.Create(ctx, validInput("alice", "alice@example.com"))
	require.NoError(t, err)

	input := validInput("bob", "bob@example.com")
	input.ParentID = &root.ID
	mid, err := svc.Create(ctx, input)
	require.NoError(t, err)

	input = validInput("carol", "carol@example.com")
	input.ParentID = &mid.ID
	leaf, err := svc.Create(ctx, input)
	require.NoError(t, err)

	got, err := svc.Get(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, got.Replies, 1)
	assert.Equal(t, mid.ID, got.Replies[0].ID)
	require.Len(t, got.Replies[0].Replies, 1)
	assert.Equal(t, leaf.ID, got.Replies[0].Replies[0].ID)
	assert.Empty(t, got.Replies[0].Replies[0].Replies)
}

func TestGetCommentNotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrCommentNotFound)
}

// fakeFileStore 内存附件存储
type fakeFileStore struct {
	mu    sync.Mutex
	files map[string][]byte
	next  int
}

func (f *fakeFileStore) Save(_ context.Context, reader io.Reader, _, _ string) (string, int64, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.files == nil {
		f.files = make(map[string][]byte)
	}
	f.next++
	name := fmt.Sprintf("stored-%d", f.next)
	f.files[name] = data
	return name, int64(len(data)), nil
}

func (f *fakeFileStore) Open(_ context.Context, storedName string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[storedName]
	if !ok {
		return nil, errors.New("file not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeFileStore) Delete(_ context.Context, storedName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, storedName)
	return nil
}

func (f *fakeFileStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

func TestCreateCommentWithAttachment(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	files := &fakeFileStore{}
	svc.SetFileStore(files, 1024)
	ctx := context.Background()

	input := validInput("alice", "alice@example.com")
	input.File = &AttachmentUpload{
		FileName:    "pic.png",
		ContentType: "image/png",
		Size:        4,
		Reader:      bytes.NewReader([]byte("data")),
	}

	comment, err := svc.Create(ctx, input)
	require.NoError(t, err)
	require.NotNil(t, comment.Attachment)
	assert.Equal(t, domain.AttachmentImage, comment.Attachment.Kind)
	assert.Equal(t, int64(4), comment.Attachment.Size)

	// 附件元数据可按存储名读回
	got, err := store.GetAttachmentByStoredName(ctx, comment.Attachment.StoredName)
	require.NoError(t, err)
	assert.Equal(t, comment.ID, got.CommentID)
}

func TestCreateCommentAttachmentRejections(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	files := &fakeFileStore{}
	svc.SetFileStore(files, 8)
	ctx := context.Background()

	// 不支持的类型
	input := validInput("alice", "alice@example.com")
	input.File = &AttachmentUpload{
		FileName:    "app.exe",
		ContentType: "application/octet-stream",
		Reader:      bytes.NewReader([]byte("data")),
	}
	_, err := svc.Create(ctx, input)
	assert.ErrorIs(t, err, ErrUnsupportedFileType)

	// 实际内容超出限制（声明大小撒谎也拦得住）
	input = validInput("bob", "bob@example.com")
	input.File = &AttachmentUpload{
		FileName:    "note.txt",
		ContentType: "text/plain",
		Size:        4,
		Reader:      bytes.NewReader([]byte("this content is way past the limit")),
	}
	_, err = svc.Create(ctx, input)
	assert.ErrorIs(t, err, ErrAttachmentTooLarge)

	// 拒绝的提交不产生评论，也不残留已落盘的内容
	_, total, err := store.ListTopLevel(ctx, domain.CommentPageQuery{}.Normalize())
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Equal(t, 0, files.count())
}

func TestOversizedAttachmentLeavesNoFileOnDisk(t *testing.T) {
	dir := t.TempDir()
	fileStore, err := filesystem.NewStore(dir)
	require.NoError(t, err)

	svc := NewCommentService(memory.NewStore(), zap.NewNop())
	svc.SetFileStore(fileStore, 8)

	input := validInput("bob", "bob@example.com")
	input.File = &AttachmentUpload{
		FileName:    "note.txt",
		ContentType: "text/plain",
		Size:        4,
		Reader:      bytes.NewReader([]byte("this content is way past the limit")),
	}
	_, err = svc.Create(context.Background(), input)
	assert.ErrorIs(t, err, ErrAttachmentTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// failCommitStore 包装内存存储，事务提交阶段固定失败
type failCommitStore struct {
	*memory.Store
}

func (s *failCommitStore) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &failCommitTx{Tx: tx}, nil
}

type failCommitTx struct {
	storage.Tx
}

func (t *failCommitTx) Commit() error {
	t.Tx.Rollback()
	return errors.New("commit failed")
}

func TestAttachmentCleanupOnCommitFailure(t *testing.T) {
	svc := NewCommentService(&failCommitStore{Store: memory.NewStore()}, zap.NewNop())
	files := &fakeFileStore{}
	svc.SetFileStore(files, 1024)

	input := validInput("alice", "alice@example.com")
	input.File = &AttachmentUpload{
		FileName:    "pic.png",
		ContentType: "image/png",
		Size:        4,
		Reader:      bytes.NewReader([]byte("data")),
	}

	_, err := svc.Create(context.Background(), input)
	require.Error(t, err)
	assert.Equal(t, 0, files.count())
}
