package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/redis/go-redis/v9"

	"commentbox/backend/internal/domain"
	"commentbox/backend/internal/markup"
)

// 搜索索引键
const (
	searchDocPrefix   = "search:comment:" // 文档：按评论ID覆盖写
	searchTokenPrefix = "search:token:"   // 倒排：token -> 评论ID集合
)

// SearchIndex 基于 Redis 的评论搜索索引。
//
// 文档按评论 ID 覆盖写，评论不可变，重复索引同一事件是无操作，
// 满足消费者幂等要求。
type SearchIndex struct {
	client *redis.Client
}

// NewSearchIndex 在已有缓存连接上创建搜索索引
func NewSearchIndex(cache *Cache) *SearchIndex {
	return &SearchIndex{client: cache.client}
}

// IndexComment 将评论写入索引（昵称、邮箱、正文分词）
func (s *SearchIndex) IndexComment(ctx context.Context, comment *domain.Comment) error {
	doc, err := json.Marshal(comment)
	if err != nil {
		return err
	}

	tokens := Tokenize(comment.Name + " " + comment.Email + " " + markup.PlainText(comment.Text))

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, searchDocPrefix+comment.ID, doc, 0)
	for _, token := range tokens {
		pipe.SAdd(ctx, searchTokenPrefix+token, comment.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index comment: %w", err)
	}
	return nil
}

// Search 按关键词搜索索引（多个词取交集），结果按创建顺序倒序分页。
//
// 结果反映索引当前状态，滞后主存储一个事件投递周期。
func (s *SearchIndex) Search(ctx context.Context, criteria domain.CommentSearchCriteria) (*domain.CommentSearchResult, error) {
	criteria = criteria.Normalize()

	empty := &domain.CommentSearchResult{
		Comments: []domain.Comment{},
		Page:     criteria.Page,
		PageSize: criteria.PageSize,
	}

	tokens := Tokenize(criteria.Query)
	if len(tokens) == 0 {
		return empty, nil
	}

	keys := make([]string, len(tokens))
	for i, token := range tokens {
		keys[i] = searchTokenPrefix + token
	}

	ids, err := s.client.SInter(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to intersect token sets: %w", err)
	}
	if len(ids) == 0 {
		return empty, nil
	}

	// UUIDv7 按字典序即按创建顺序，倒序让最新评论在前
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))

	total := len(ids)
	start := (criteria.Page - 1) * criteria.PageSize
	end := start + criteria.PageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	comments := make([]domain.Comment, 0, end-start)
	for _, id := range ids[start:end] {
		data, err := s.client.Get(ctx, searchDocPrefix+id).Result()
		if err != nil {
			// 索引集合与文档可能短暂不一致，跳过缺失文档
			continue
		}
		var c domain.Comment
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			continue
		}
		comments = append(comments, c)
	}

	return &domain.CommentSearchResult{
		Comments:   comments,
		Total:      total,
		Page:       criteria.Page,
		PageSize:   criteria.PageSize,
		TotalPages: (total + criteria.PageSize - 1) / criteria.PageSize,
	}, nil
}

// Tokenize 将文本切分为小写检索词（按非字母数字切分，去重）
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			tokens = append(tokens, f)
		}
	}
	return tokens
}
