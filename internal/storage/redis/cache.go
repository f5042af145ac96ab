package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"commentbox/backend/internal/domain"
	"commentbox/backend/internal/storage"
)

// 列表缓存键前缀，写入成功后整个命名空间一次性失效
const listKeyPrefix = "comments:list:"

// Cache Redis 缓存实现
type Cache struct {
	client *redis.Client
}

// NewCache 创建 Redis 缓存实例
func NewCache(addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 测试连接
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close 关闭 Redis 连接
func (c *Cache) Close() error {
	return c.client.Close()
}

// Health 检查 Redis 连接
func (c *Cache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// ========== 顶级评论列表缓存 ==========

// listKey 生成分页列表缓存键：comments:list:{page}:{size}:{sort}:{dir}
func listKey(query domain.CommentPageQuery) string {
	return fmt.Sprintf("%s%d:%d:%s:%s", listKeyPrefix, query.Page, query.PageSize, query.Sort, query.Dir)
}

// SetCommentPage 缓存一页顶级评论
func (c *Cache) SetCommentPage(ctx context.Context, query domain.CommentPageQuery, page *domain.CommentPage, ttl time.Duration) error {
	data, err := json.Marshal(page)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, listKey(query), data, ttl).Err()
}

// GetCommentPage 获取缓存的评论页，未命中返回 ErrCacheMiss
func (c *Cache) GetCommentPage(ctx context.Context, query domain.CommentPageQuery) (*domain.CommentPage, error) {
	data, err := c.client.Get(ctx, listKey(query)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrCacheMiss
		}
		return nil, err
	}

	var page domain.CommentPage
	if err := json.Unmarshal([]byte(data), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// InvalidateCommentPages 按前缀清空全部分页列表缓存。
// 新的顶级评论会移动每一页的内容，所以整体驱逐而不是只驱逐受影响的页。
func (c *Cache) InvalidateCommentPages(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, listKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// ========== 验证码挑战存储 ==========

// SaveChallenge 保存验证码答案，带 TTL
func (c *Cache) SaveChallenge(ctx context.Context, key, answer string, ttl time.Duration) error {
	return c.client.Set(ctx, "captcha:"+key, answer, ttl).Err()
}

// TakeChallenge 取出并删除验证码答案（单次使用），不存在返回 ErrCacheMiss
func (c *Cache) TakeChallenge(ctx context.Context, key string) (string, error) {
	answer, err := c.client.GetDel(ctx, "captcha:"+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", storage.ErrCacheMiss
		}
		return "", err
	}
	return answer, nil
}
