package event

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// fakeReader 记录提交位点的假读取器
type fakeReader struct {
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	return kafka.Message{}, context.Canceled
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func newTestConsumer(handle Handler, reader *fakeReader) *Consumer {
	return &Consumer{
		reader: reader,
		handle: handle,
		group:  "test-group",
		topic:  "test-topic",
		log:    zap.NewNop(),
	}
}

func TestProcessCommitsOnSuccess(t *testing.T) {
	reader := &fakeReader{}
	consumer := newTestConsumer(func(context.Context, []byte, []byte) error {
		return nil
	}, reader)

	msg := kafka.Message{Key: []byte("c-1"), Offset: 7}
	consumer.process(context.Background(), msg)

	assert.Len(t, reader.committed, 1)
	assert.Equal(t, int64(7), reader.committed[0].Offset)
}

func TestProcessSkipsCommitOnHandlerFailure(t *testing.T) {
	reader := &fakeReader{}
	consumer := newTestConsumer(func(context.Context, []byte, []byte) error {
		return errors.New("index unavailable")
	}, reader)

	// 处理失败不提交位点，消息保留待重新投递
	consumer.process(context.Background(), kafka.Message{Key: []byte("c-1")})

	assert.Empty(t, reader.committed)
}
