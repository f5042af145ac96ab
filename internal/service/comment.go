package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"commentbox/backend/internal/domain"
	"commentbox/backend/internal/markup"
	"commentbox/backend/internal/monitoring"
	"commentbox/backend/internal/storage"
)

// 业务错误定义
var (
	// ErrIdentityConflict 昵称或邮箱与历史记录冲突
	ErrIdentityConflict = errors.New("name and email do not match previous comments")
	// ErrCaptchaFailed 验证码错误
	ErrCaptchaFailed = errors.New("captcha validation failed")
	// ErrParentNotFound 父评论不存在
	ErrParentNotFound = errors.New("parent comment not found")
	// ErrAttachmentTooLarge 附件超出大小限制
	ErrAttachmentTooLarge = errors.New("attachment too large")
	// ErrUnsupportedFileType 附件类型不支持
	ErrUnsupportedFileType = errors.New("unsupported attachment type")
)

// ListingCache 分页列表缓存接口（由 redis.Cache 实现）。
//
// 缓存只是优化，不是正确性依赖：任何错误都降级为直查存储。
type ListingCache interface {
	GetCommentPage(ctx context.Context, query domain.CommentPageQuery) (*domain.CommentPage, error)
	SetCommentPage(ctx context.Context, query domain.CommentPageQuery, page *domain.CommentPage, ttl time.Duration) error
	InvalidateCommentPages(ctx context.Context) error
}

// EventPublisher 评论事件发布接口（由 event.Producer 实现）
type EventPublisher interface {
	PublishCommentCreated(ctx context.Context, evt domain.CommentCreatedEvent) error
}

// FileStore 附件内容存储接口（filesystem 或 s3 实现）
type FileStore interface {
	Save(ctx context.Context, reader io.Reader, fileName, contentType string) (string, int64, error)
	Open(ctx context.Context, storedName string) (io.ReadCloser, error)
	Delete(ctx context.Context, storedName string) error
}

// CaptchaValidator 验证码校验接口
type CaptchaValidator interface {
	Validate(ctx context.Context, key, answer string) (bool, error)
}

// CommentService 封装评论写入/读取一致性管道。
type CommentService struct {
	store       storage.Store
	cache       ListingCache     // 可选
	publisher   EventPublisher   // 可选
	files       FileStore        // 可选（无附件支持时为 nil）
	captcha     CaptchaValidator // 可选（测试中可为 nil）
	metrics     *monitoring.Metrics
	cacheTTL    time.Duration
	maxFileSize int64
	log         *zap.Logger
}

// NewCommentService 创建评论业务服务。
func NewCommentService(store storage.Store, log *zap.Logger) *CommentService {
	return &CommentService{
		store:       store,
		cacheTTL:    5 * time.Minute,
		maxFileSize: 5 * 1024 * 1024,
		log:         log,
	}
}

// SetCache 设置列表缓存
func (s *CommentService) SetCache(cache ListingCache, ttl time.Duration) {
	s.cache = cache
	if ttl > 0 {
		s.cacheTTL = ttl
	}
}

// SetPublisher 设置事件发布器
func (s *CommentService) SetPublisher(publisher EventPublisher) {
	s.publisher = publisher
}

// SetFileStore 设置附件存储
func (s *CommentService) SetFileStore(files FileStore, maxFileSize int64) {
	s.files = files
	if maxFileSize > 0 {
		s.maxFileSize = maxFileSize
	}
}

// SetCaptcha 设置验证码校验器
func (s *CommentService) SetCaptcha(captcha CaptchaValidator) {
	s.captcha = captcha
}

// SetMetrics 设置监控指标
func (s *CommentService) SetMetrics(metrics *monitoring.Metrics) {
	s.metrics = metrics
}

// AttachmentUpload 随评论提交的附件流
type AttachmentUpload struct {
	FileName    string
	ContentType string
	Size        int64 // 客户端声明的大小，可能为 0
	Reader      io.Reader
}

// CreateCommentInput 定义创建评论的输入。
type CreateCommentInput struct {
	Name          string
	Email         string
	HomePage      string
	Text          string
	ParentID      *string
	CaptchaKey    string
	CaptchaAnswer string
	File          *AttachmentUpload
}

// Create 新建一条评论。
//
// 管道：验证码 → 字段验证 → 正文闭合检查与净化 → 身份唯一性检查 →
// 评论+附件单事务落库 → 列表缓存失效 → 发布评论创建事件。
// 缓存失效和事件发布失败只记录日志，不影响已提交的写入。
func (s *CommentService) Create(ctx context.Context, input CreateCommentInput) (*domain.Comment, error) {
	// 验证码先行，失败直接拒绝
	if s.captcha != nil {
		ok, err := s.captcha.Validate(ctx, input.CaptchaKey, input.CaptchaAnswer)
		if err != nil {
			return nil, fmt.Errorf("captcha check failed: %w", err)
		}
		if !ok {
			return nil, ErrCaptchaFailed
		}
	}

	if verr := domain.ValidateName(input.Name); verr != nil {
		return nil, verr
	}
	if verr := domain.ValidateEmail(input.Email); verr != nil {
		return nil, verr
	}
	if verr := domain.ValidateHomePage(input.HomePage); verr != nil {
		return nil, verr
	}

	// 闭合检查在原始输入上进行，不合法的标记被拒绝而不是被修复
	sanitized, err := markup.Prepare(input.Text)
	if err != nil {
		return nil, err
	}
	if verr := domain.ValidateText(sanitized); verr != nil {
		return nil, verr
	}

	// 父评论必须存在
	if input.ParentID != nil && *input.ParentID != "" {
		if _, err := s.store.GetComment(ctx, *input.ParentID); err != nil {
			if errors.Is(err, storage.ErrCommentNotFound) {
				return nil, ErrParentNotFound
			}
			return nil, fmt.Errorf("failed to check parent: %w", err)
		}
	} else {
		input.ParentID = nil
	}

	if err := s.checkIdentity(ctx, input.Name, input.Email); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate comment id: %w", err)
	}

	comment := &domain.Comment{
		ID:        id.String(),
		Name:      input.Name,
		Email:     input.Email,
		HomePage:  input.HomePage,
		Text:      sanitized,
		ParentID:  input.ParentID,
		CreatedAt: time.Now().UTC(),
	}

	// 附件内容先落盘，元数据与评论同事务提交，
	// 不会出现"附件被引用但文件不存在"的状态
	var attachment *domain.Attachment
	if input.File != nil {
		attachment, err = s.saveAttachment(ctx, comment.ID, input.File)
		if err != nil {
			return nil, err
		}
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := tx.AddComment(comment); err != nil {
		tx.Rollback()
		s.discardAttachment(ctx, attachment)
		return nil, err
	}
	if attachment != nil {
		if err := tx.AddAttachment(attachment); err != nil {
			tx.Rollback()
			s.discardAttachment(ctx, attachment)
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		s.discardAttachment(ctx, attachment)
		return nil, fmt.Errorf("failed to commit comment: %w", err)
	}

	comment.Attachment = attachment

	// 提交之后的副作用不再影响写入结果
	s.invalidateListings(ctx)
	s.publishCreated(ctx, comment)

	return comment, nil
}

// checkIdentity 身份唯一性检查：昵称和邮箱互为排他标识。
//
// 先查后写，不加序列化事务保护；两个并发的首次提交可能同时通过，
// 属于接受的竞态（避免误拒合法的同时首发）。
func (s *CommentService) checkIdentity(ctx context.Context, name, email string) error {
	byName, err := s.store.GetCommentByName(ctx, name)
	if err != nil && !errors.Is(err, storage.ErrCommentNotFound) {
		return fmt.Errorf("failed to check name: %w", err)
	}
	if byName != nil && !strings.EqualFold(byName.Email, email) {
		return ErrIdentityConflict
	}

	byEmail, err := s.store.GetCommentByEmail(ctx, email)
	if err != nil && !errors.Is(err, storage.ErrCommentNotFound) {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if byEmail != nil && !strings.EqualFold(byEmail.Name, name) {
		return ErrIdentityConflict
	}

	return nil
}

// saveAttachment 校验并保存附件内容，返回待入库的元数据
func (s *CommentService) saveAttachment(ctx context.Context, commentID string, file *AttachmentUpload) (*domain.Attachment, error) {
	if s.files == nil {
		return nil, ErrUnsupportedFileType
	}
	if !allowedContentType(file.ContentType) {
		return nil, ErrUnsupportedFileType
	}
	if file.Size > s.maxFileSize {
		return nil, ErrAttachmentTooLarge
	}

	// 声明大小不可信，落盘时再次限制
	limited := io.LimitReader(file.Reader, s.maxFileSize+1)
	storedName, size, err := s.files.Save(ctx, limited, file.FileName, file.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store attachment: %w", err)
	}
	if size > s.maxFileSize {
		// 内容已落盘，拒绝时必须回收，否则被拒提交会持续占用存储
		if err := s.files.Delete(ctx, storedName); err != nil {
			s.log.Warn("failed to delete oversized attachment",
				zap.String("storedName", storedName), zap.Error(err))
		}
		return nil, ErrAttachmentTooLarge
	}

	return &domain.Attachment{
		ID:          uuid.NewString(),
		CommentID:   commentID,
		FileName:    file.FileName,
		StoredName:  storedName,
		ContentType: file.ContentType,
		Size:        size,
		Kind:        domain.KindForContentType(file.ContentType),
	}, nil
}

// allowedContentType 附件只接受图片和纯文本
func allowedContentType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") || contentType == "text/plain"
}

// invalidateListings 写入成功后整体失效分页列表缓存
// discardAttachment 回收未入库的附件内容，事务失败时调用
func (s *CommentService) discardAttachment(ctx context.Context, attachment *domain.Attachment) {
	if attachment == nil || s.files == nil {
		return
	}
	if err := s.files.Delete(ctx, attachment.StoredName); err != nil {
		s.log.Warn("failed to delete orphaned attachment",
			zap.String("storedName", attachment.StoredName), zap.Error(err))
	}
}

func (s *CommentService) invalidateListings(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateCommentPages(ctx); err != nil {
		s.log.Warn("failed to invalidate listing cache", zap.Error(err))
	}
}

// publishCreated 发布评论创建事件。
//
// 发布失败是投递缺口：评论已正确落库可直读，只有搜索索引和实时
// 订阅者暂时滞后，记录日志即可，绝不回滚已提交的写入。
func (s *CommentService) publishCreated(ctx context.Context, comment *domain.Comment) {
	if s.publisher == nil {
		return
	}
	evt := domain.NewCommentCreatedEvent(*comment)
	if err := s.publisher.PublishCommentCreated(ctx, evt); err != nil {
		if s.metrics != nil {
			s.metrics.EventPublishFailed.Inc()
		}
		s.log.Error("failed to publish comment created event",
			zap.Error(err),
			zap.String("commentID", comment.ID))
		return
	}
	if s.metrics != nil {
		s.metrics.EventsPublished.Inc()
	}
}

// List 分页列出顶级评论（缓存旁路读）。
func (s *CommentService) List(ctx context.Context, query domain.CommentPageQuery) (*domain.CommentPage, error) {
	query = query.Normalize()

	if s.cache != nil {
		page, err := s.cache.GetCommentPage(ctx, query)
		if err == nil {
			if s.metrics != nil {
				s.metrics.CacheHits.Inc()
			}
			return page, nil
		}
		if s.metrics != nil {
			s.metrics.CacheMisses.Inc()
		}
		if !errors.Is(err, storage.ErrCacheMiss) {
			// 缓存故障降级为直查存储
			s.log.Warn("listing cache read failed", zap.Error(err))
		}
	}

	comments, total, err := s.store.ListTopLevel(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	if err := s.attachFiles(ctx, comments); err != nil {
		return nil, err
	}

	page := &domain.CommentPage{
		Comments:   comments,
		Total:      total,
		Page:       query.Page,
		PageSize:   query.PageSize,
		TotalPages: (total + query.PageSize - 1) / query.PageSize,
	}

	if s.cache != nil {
		if err := s.cache.SetCommentPage(ctx, query, page, s.cacheTTL); err != nil {
			s.log.Warn("listing cache write failed", zap.Error(err))
		}
	}

	return page, nil
}

// Get 获取单条评论及其完整回复树。
func (s *CommentService) Get(ctx context.Context, id string) (*domain.Comment, error) {
	comment, err := s.store.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}

	roots := []domain.Comment{*comment}
	if err := s.attachFiles(ctx, roots); err != nil {
		return nil, err
	}
	comment = &roots[0]

	if err := s.hydrateReplies(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// hydrateReplies 逐层批量加载回复子树。
//
// 每层一条子评论查询加一条附件查询，深度不限；
// 不做跨层 JOIN，避免笛卡尔爆炸和 N+1。
func (s *CommentService) hydrateReplies(ctx context.Context, root *domain.Comment) error {
	level := map[string]*domain.Comment{root.ID: root}

	for len(level) > 0 {
		parentIDs := make([]string, 0, len(level))
		for id := range level {
			parentIDs = append(parentIDs, id)
		}

		children, err := s.store.ListChildren(ctx, parentIDs)
		if err != nil {
			return fmt.Errorf("failed to load replies: %w", err)
		}
		if len(children) == 0 {
			return nil
		}

		if err := s.attachFiles(ctx, children); err != nil {
			return err
		}

		next := make(map[string]*domain.Comment, len(children))
		for i := range children {
			child := &children[i]
			parent := level[*child.ParentID]
			parent.Replies = append(parent.Replies, child)
			next[child.ID] = child
		}
		level = next
	}
	return nil
}

// attachFiles 批量填充一组评论的附件
func (s *CommentService) attachFiles(ctx context.Context, comments []domain.Comment) error {
	if len(comments) == 0 {
		return nil
	}

	ids := make([]string, len(comments))
	for i := range comments {
		ids[i] = comments[i].ID
	}

	attachments, err := s.store.ListAttachmentsByCommentIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load attachments: %w", err)
	}
	if len(attachments) == 0 {
		return nil
	}

	byComment := make(map[string]*domain.Attachment, len(attachments))
	for i := range attachments {
		byComment[attachments[i].CommentID] = &attachments[i]
	}
	for i := range comments {
		if a, ok := byComment[comments[i].ID]; ok {
			comments[i].Attachment = a
		}
	}
	return nil
}

// OpenAttachment 按存储文件名打开附件内容（下载接口用）。
func (s *CommentService) OpenAttachment(ctx context.Context, storedName string) (*domain.Attachment, io.ReadCloser, error) {
	if s.files == nil {
		return nil, nil, storage.ErrAttachmentNotFound
	}

	attachment, err := s.store.GetAttachmentByStoredName(ctx, storedName)
	if err != nil {
		return nil, nil, err
	}

	reader, err := s.files.Open(ctx, storedName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open attachment: %w", err)
	}
	return attachment, reader, nil
}
