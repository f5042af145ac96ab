package event

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"commentbox/backend/internal/domain"
)

// fakeIndex 记录索引调用的假索引
type fakeIndex struct {
	docs map[string]*domain.Comment
}

func (f *fakeIndex) IndexComment(ctx context.Context, c *domain.Comment) error {
	if f.docs == nil {
		f.docs = make(map[string]*domain.Comment)
	}
	f.docs[c.ID] = c
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, criteria domain.CommentSearchCriteria) (*domain.CommentSearchResult, error) {
	return &domain.CommentSearchResult{}, nil
}

// fakeHub 记录广播调用的假 Hub
type fakeHub struct {
	notified []string
}

func (f *fakeHub) NotifyCommentCreated(c *domain.Comment) {
	f.notified = append(f.notified, c.ID)
}

func encodeEvent(t *testing.T, comment domain.Comment) []byte {
	t.Helper()
	data, err := json.Marshal(domain.NewCommentCreatedEvent(comment))
	require.NoError(t, err)
	return data
}

func TestIndexerHandlerIdempotent(t *testing.T) {
	index := &fakeIndex{}
	handler := IndexerHandler(index, zap.NewNop())

	comment := domain.Comment{ID: "c-1", Name: "bob", Email: "b@y.com", Text: "hi", CreatedAt: time.Now()}
	payload := encodeEvent(t, comment)

	// 重复投递同一事件，索引里仍只有一个文档
	require.NoError(t, handler(context.Background(), []byte(comment.ID), payload))
	require.NoError(t, handler(context.Background(), []byte(comment.ID), payload))

	assert.Len(t, index.docs, 1)
	assert.Equal(t, "bob", index.docs["c-1"].Name)
}

func TestBroadcastHandler(t *testing.T) {
	hub := &fakeHub{}
	handler := BroadcastHandler(hub, zap.NewNop())

	payload := encodeEvent(t, domain.Comment{ID: "c-2", Name: "alice", Email: "a@x.com", Text: "hey"})
	require.NoError(t, handler(context.Background(), []byte("c-2"), payload))

	assert.Equal(t, []string{"c-2"}, hub.notified)
}

func TestHandlerRejectsMalformedEvent(t *testing.T) {
	handler := IndexerHandler(&fakeIndex{}, zap.NewNop())

	assert.Error(t, handler(context.Background(), nil, []byte("not json")))

	wrongType, _ := json.Marshal(map[string]string{"type": "something_else"})
	assert.Error(t, handler(context.Background(), nil, wrongType))
}
