package filesystem

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store 文件系统附件存储实现
type Store struct {
	basePath string // 附件存储根目录
}

// NewStore 创建文件系统存储实例
func NewStore(basePath string) (*Store, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path is required")
	}

	// 确保基础目录存在
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Store{basePath: filepath.Clean(basePath)}, nil
}

// Save 保存上传流，返回不透明的存储文件名和写入字节数。
//
// 存储文件名为 UUID + 原扩展名，避免冲突且不暴露原始文件名。
func (s *Store) Save(ctx context.Context, reader io.Reader, fileName, contentType string) (string, int64, error) {
	storedName := uuid.NewString() + sanitizeExt(fileName)
	path := filepath.Join(s.basePath, storedName)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create attachment file: %w", err)
	}

	size, err := io.Copy(f, reader)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to write attachment file: %w", err)
	}

	return storedName, size, nil
}

// Open 按存储文件名打开附件内容
func (s *Store) Open(ctx context.Context, storedName string) (io.ReadCloser, error) {
	// 拒绝路径穿越
	if storedName != filepath.Base(storedName) {
		return nil, os.ErrNotExist
	}

	f, err := os.Open(filepath.Join(s.basePath, storedName))
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Delete 按存储文件名删除附件内容，文件不存在视为成功
func (s *Store) Delete(ctx context.Context, storedName string) error {
	if storedName != filepath.Base(storedName) {
		return os.ErrNotExist
	}

	if err := os.Remove(filepath.Join(s.basePath, storedName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete attachment file: %w", err)
	}
	return nil
}

// sanitizeExt 提取并规范原文件的扩展名
func sanitizeExt(fileName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(fileName)))
	if ext == "" || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
