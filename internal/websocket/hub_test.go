package websocket

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMarkSeenDeduplicates(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())

	assert.True(t, hub.markSeen("c-1"))
	assert.False(t, hub.markSeen("c-1"))
	assert.True(t, hub.markSeen("c-2"))
}

func TestMarkSeenWindowEviction(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())

	for i := 0; i <= seenLimit; i++ {
		assert.True(t, hub.markSeen(fmt.Sprintf("c-%d", i)))
	}

	// 最旧的条目被淘汰后再次出现会被当作新评论
	assert.True(t, hub.markSeen("c-0"))
	// 仍在窗口内的条目继续去重
	assert.False(t, hub.markSeen(fmt.Sprintf("c-%d", seenLimit)))
}
