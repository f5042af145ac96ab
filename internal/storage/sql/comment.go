package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"commentbox/backend/internal/domain"
	"commentbox/backend/internal/storage"
)

// ========== Comment Repository ==========

const commentColumns = `id, name, email, home_page, text, parent_id, created_at`

// scanComment 从行扫描评论
func scanComment(row interface{ Scan(...interface{}) error }) (*domain.Comment, error) {
	var c domain.Comment
	var homePage sql.NullString
	var parentID sql.NullString

	err := row.Scan(&c.ID, &c.Name, &c.Email, &homePage, &c.Text, &parentID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	if homePage.Valid {
		c.HomePage = homePage.String
	}
	if parentID.Valid {
		c.ParentID = &parentID.String
	}
	return &c, nil
}

// GetComment 按 ID 获取评论
func (s *Store) GetComment(ctx context.Context, id string) (*domain.Comment, error) {
	query := s.rebind(`SELECT ` + commentColumns + ` FROM comments WHERE id = ?`)

	comment, err := scanComment(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrCommentNotFound
		}
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return comment, nil
}

// ListTopLevel 分页列出顶级评论
//
// parent_id 索引使顶级分页开销与回复总量无关；总数只统计 parent_id 为空的行。
func (s *Store) ListTopLevel(ctx context.Context, query domain.CommentPageQuery) ([]domain.Comment, int, error) {
	query = query.Normalize()

	countQuery := `SELECT COUNT(*) FROM comments WHERE parent_id IS NULL`
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count top-level comments: %w", err)
	}

	listQuery := s.rebind(fmt.Sprintf(
		`SELECT %s FROM comments WHERE parent_id IS NULL ORDER BY %s LIMIT ? OFFSET ?`,
		commentColumns, orderClause(query.Sort, query.Dir),
	))

	rows, err := s.db.QueryContext(ctx, listQuery, query.PageSize, query.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list top-level comments: %w", err)
	}
	defer rows.Close()

	comments := make([]domain.Comment, 0, query.PageSize)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return comments, total, nil
}

// ListChildren 批量获取一组父评论的直接子评论（每层一条查询）
func (s *Store) ListChildren(ctx context.Context, parentIDs []string) ([]domain.Comment, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}

	query := s.rebind(fmt.Sprintf(
		`SELECT %s FROM comments WHERE parent_id IN (%s) ORDER BY created_at ASC, id ASC`,
		commentColumns, inPlaceholders(len(parentIDs)),
	))

	args := make([]interface{}, len(parentIDs))
	for i, id := range parentIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	defer rows.Close()

	children := make([]domain.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		children = append(children, *c)
	}
	return children, rows.Err()
}

// GetCommentByName 按昵称查任意一条历史评论（大小写不敏感）
func (s *Store) GetCommentByName(ctx context.Context, name string) (*domain.Comment, error) {
	query := s.rebind(`SELECT ` + commentColumns + ` FROM comments WHERE lower(name) = lower(?) LIMIT 1`)

	comment, err := scanComment(s.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrCommentNotFound
		}
		return nil, fmt.Errorf("failed to get comment by name: %w", err)
	}
	return comment, nil
}

// GetCommentByEmail 按邮箱查任意一条历史评论（大小写不敏感）
func (s *Store) GetCommentByEmail(ctx context.Context, email string) (*domain.Comment, error) {
	query := s.rebind(`SELECT ` + commentColumns + ` FROM comments WHERE lower(email) = lower(?) LIMIT 1`)

	comment, err := scanComment(s.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrCommentNotFound
		}
		return nil, fmt.Errorf("failed to get comment by email: %w", err)
	}
	return comment, nil
}

// orderClause 将排序参数映射为 SQL 排序子句（字段名白名单内拼接，不经用户输入）
func orderClause(field domain.SortField, dir domain.SortDirection) string {
	column := "created_at"
	switch field {
	case domain.SortByName:
		column = "name"
	case domain.SortByEmail:
		column = "email"
	}

	direction := "DESC"
	if dir == domain.SortAsc {
		direction = "ASC"
	}

	// 次级按 id 排序保证分页稳定
	return fmt.Sprintf("%s %s, id %s", column, direction, direction)
}
