package service

import (
	"context"
	"fmt"

	"commentbox/backend/internal/domain"
)

// SearchService 封装评论全文搜索。
type SearchService struct {
	index domain.SearchIndex
}

// NewSearchService 创建搜索服务。
func NewSearchService(index domain.SearchIndex) *SearchService {
	return &SearchService{index: index}
}

// Search 按关键词搜索评论（匹配昵称、邮箱、正文）。
//
// 结果来自异步维护的索引，可能滞后于最新写入。
func (s *SearchService) Search(ctx context.Context, criteria domain.CommentSearchCriteria) (*domain.CommentSearchResult, error) {
	criteria = criteria.Normalize()

	result, err := s.index.Search(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search comments: %w", err)
	}
	return result, nil
}
