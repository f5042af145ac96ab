package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"commentbox/backend/internal/domain"
	"commentbox/backend/internal/storage"
)

// ========== Attachment Repository ==========

const attachmentColumns = `id, comment_id, file_name, stored_name, content_type, size, kind`

// ListAttachmentsByCommentIDs 批量获取一组评论的附件
func (s *Store) ListAttachmentsByCommentIDs(ctx context.Context, commentIDs []string) ([]domain.Attachment, error) {
	if len(commentIDs) == 0 {
		return nil, nil
	}

	query := s.rebind(fmt.Sprintf(
		`SELECT %s FROM attachments WHERE comment_id IN (%s)`,
		attachmentColumns, inPlaceholders(len(commentIDs)),
	))

	args := make([]interface{}, len(commentIDs))
	for i, id := range commentIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	attachments := make([]domain.Attachment, 0)
	for rows.Next() {
		var a domain.Attachment
		if err := rows.Scan(&a.ID, &a.CommentID, &a.FileName, &a.StoredName, &a.ContentType, &a.Size, &a.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

// GetAttachmentByStoredName 按存储文件名获取附件元数据
func (s *Store) GetAttachmentByStoredName(ctx context.Context, storedName string) (*domain.Attachment, error) {
	query := s.rebind(`SELECT ` + attachmentColumns + ` FROM attachments WHERE stored_name = ?`)

	var a domain.Attachment
	err := s.db.QueryRowContext(ctx, query, storedName).
		Scan(&a.ID, &a.CommentID, &a.FileName, &a.StoredName, &a.ContentType, &a.Size, &a.Kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrAttachmentNotFound
		}
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	return &a, nil
}

// ========== 写入事务 ==========

// Begin 开启写入事务，评论与附件在 Commit 时原子落库
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &sqlTx{store: s, tx: tx, ctx: ctx}, nil
}

// sqlTx 数据库事务封装
type sqlTx struct {
	store *Store
	tx    *sql.Tx
	ctx   context.Context
	done  bool
}

func (t *sqlTx) AddComment(comment *domain.Comment) error {
	if t.done {
		return storage.ErrTxDone
	}

	query := t.store.rebind(`
		INSERT INTO comments (id, name, email, home_page, text, parent_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)

	var homePage sql.NullString
	if comment.HomePage != "" {
		homePage = sql.NullString{String: comment.HomePage, Valid: true}
	}
	var parentID sql.NullString
	if comment.ParentID != nil && *comment.ParentID != "" {
		parentID = sql.NullString{String: *comment.ParentID, Valid: true}
	}

	_, err := t.tx.ExecContext(t.ctx, query,
		comment.ID,
		comment.Name,
		comment.Email,
		homePage,
		comment.Text,
		parentID,
		comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

func (t *sqlTx) AddAttachment(attachment *domain.Attachment) error {
	if t.done {
		return storage.ErrTxDone
	}

	query := t.store.rebind(`
		INSERT INTO attachments (id, comment_id, file_name, stored_name, content_type, size, kind)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := t.tx.ExecContext(t.ctx, query,
		attachment.ID,
		attachment.CommentID,
		attachment.FileName,
		attachment.StoredName,
		attachment.ContentType,
		attachment.Size,
		attachment.Kind,
	)
	if err != nil {
		return fmt.Errorf("failed to insert attachment: %w", err)
	}
	return nil
}

func (t *sqlTx) Commit() error {
	if t.done {
		return storage.ErrTxDone
	}
	t.done = true
	return t.tx.Commit()
}

func (t *sqlTx) Rollback() error {
	if t.done {
		return storage.ErrTxDone
	}
	t.done = true
	return t.tx.Rollback()
}
