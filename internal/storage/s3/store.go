// Package s3 提供基于 S3 兼容对象存储（MinIO）的附件存储实现，
// 与 filesystem 存储二选一，由配置 storage.type 决定。
package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config S3 存储配置
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// Store S3 附件存储实现
type Store struct {
	cfg    Config
	client *minio.Client
}

// NewStore 创建 S3 存储实例并确保桶存在
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	client, err := minio.New(strings.TrimPrefix(cfg.Endpoint, "http://"), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	store := &Store{cfg: cfg, client: client}
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// ensureBucket 桶不存在则创建
func (s *Store) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

// Save 保存上传流，返回不透明的对象名和写入字节数
func (s *Store) Save(ctx context.Context, reader io.Reader, fileName, contentType string) (string, int64, error) {
	storedName := uuid.NewString() + ext(fileName)

	info, err := s.client.PutObject(ctx, s.cfg.Bucket, storedName, reader, -1,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", 0, fmt.Errorf("failed to put object: %w", err)
	}
	return storedName, info.Size, nil
}

// Open 按对象名读取附件内容
func (s *Store) Open(ctx context.Context, storedName string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, storedName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return obj, nil
}

// Delete 按对象名删除附件内容
func (s *Store) Delete(ctx context.Context, storedName string) error {
	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, storedName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}

// ext 提取原文件扩展名（含点），不合法则为空
func ext(fileName string) string {
	idx := strings.LastIndex(fileName, ".")
	if idx < 0 || idx == len(fileName)-1 || len(fileName)-idx > 10 {
		return ""
	}
	e := strings.ToLower(fileName[idx:])
	for _, r := range e[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return e
}
