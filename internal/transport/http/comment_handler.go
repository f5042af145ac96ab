package httptransport

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"commentbox/backend/internal/domain"
	"commentbox/backend/internal/monitoring"
	"commentbox/backend/internal/service"
)

// CommentHandler 评论 API 处理器
type CommentHandler struct {
	comments *service.CommentService
	search   *service.SearchService
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

// NewCommentHandler 创建评论 API 处理器
func NewCommentHandler(comments *service.CommentService, search *service.SearchService, metrics *monitoring.Metrics, log *zap.Logger) *CommentHandler {
	return &CommentHandler{
		comments: comments,
		search:   search,
		metrics:  metrics,
		log:      log,
	}
}

// createCommentRequest JSON 提交格式（不带附件时可用）
type createCommentRequest struct {
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	HomePage      string  `json:"homePage"`
	Text          string  `json:"text"`
	ParentID      *string `json:"parentId"`
	CaptchaKey    string  `json:"captchaKey"`
	CaptchaAnswer string  `json:"captchaAnswer"`
}

// createComment godoc
// @Summary 提交评论
// @Description 提交一条评论或回复。multipart/form-data 可附带一个文件，application/json 仅文本
// @Tags Comments
// @Accept json,mpfd
// @Produce json
// @Success 201 {object} Response{data=domain.Comment}
// @Router /api/comments [post]
func (h *CommentHandler) createComment(c *gin.Context) {
	input, cleanup, ok := h.parseCreateInput(c)
	if !ok {
		return
	}
	if cleanup != nil {
		defer cleanup()
	}

	comment, err := h.comments.Create(c.Request.Context(), *input)
	if err != nil {
		if h.metrics != nil {
			h.metrics.CommentsRejected.WithLabelValues(rejectionReason(err)).Inc()
		}
		writeServiceError(c, err, MsgCommentCreateFailed)
		return
	}

	if h.metrics != nil {
		h.metrics.CommentsCreated.Inc()
		if comment.Attachment != nil {
			h.metrics.AttachmentsSaved.Inc()
		}
	}
	h.log.Info("comment created",
		zap.String("commentID", comment.ID),
		zap.Bool("reply", !comment.IsTopLevel()),
		zap.Bool("attachment", comment.Attachment != nil))

	Created(c, comment)
}

// parseCreateInput 从 JSON 或 multipart 请求解析创建输入
//
// multipart 请求打开的文件句柄通过 cleanup 返回，由调用方在创建完成后关闭。
func (h *CommentHandler) parseCreateInput(c *gin.Context) (input *service.CreateCommentInput, cleanup func(), ok bool) {
	if c.ContentType() == "application/json" {
		var req createCommentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, MsgInvalidRequest)
			return nil, nil, false
		}
		return &service.CreateCommentInput{
			Name:          strings.TrimSpace(req.Name),
			Email:         strings.TrimSpace(req.Email),
			HomePage:      strings.TrimSpace(req.HomePage),
			Text:          req.Text,
			ParentID:      req.ParentID,
			CaptchaKey:    req.CaptchaKey,
			CaptchaAnswer: req.CaptchaAnswer,
		}, nil, true
	}

	// multipart/form-data，文件字段名为 "file"
	input = &service.CreateCommentInput{
		Name:          strings.TrimSpace(c.PostForm("name")),
		Email:         strings.TrimSpace(c.PostForm("email")),
		HomePage:      strings.TrimSpace(c.PostForm("homePage")),
		Text:          c.PostForm("text"),
		CaptchaKey:    c.PostForm("captchaKey"),
		CaptchaAnswer: c.PostForm("captchaAnswer"),
	}
	if parentID := c.PostForm("parentId"); parentID != "" {
		input.ParentID = &parentID
	}

	fileHeader, err := c.FormFile("file")
	if err != nil || fileHeader == nil {
		return input, nil, true
	}

	file, err := fileHeader.Open()
	if err != nil {
		BadRequest(c, MsgInvalidRequest)
		return nil, nil, false
	}

	input.File = &service.AttachmentUpload{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Reader:      file,
	}
	return input, func() { file.Close() }, true
}

// listComments godoc
// @Summary 分页获取顶级评论
// @Description 按 page/pageSize/sort/dir 分页列出顶级评论，回复需通过详情接口获取
// @Tags Comments
// @Produce json
// @Success 200 {object} Response{data=domain.CommentPage}
// @Router /api/comments [get]
func (h *CommentHandler) listComments(c *gin.Context) {
	query, ok := parsePageQuery(c)
	if !ok {
		return
	}

	page, err := h.comments.List(c.Request.Context(), query)
	if err != nil {
		h.log.Error("failed to list comments", zap.Error(err))
		InternalError(c, MsgCommentListFailed)
		return
	}

	Success(c, page)
}

// getComment godoc
// @Summary 获取评论详情
// @Description 获取单条评论及其完整回复树
// @Tags Comments
// @Produce json
// @Success 200 {object} Response{data=domain.Comment}
// @Router /api/comments/{id} [get]
func (h *CommentHandler) getComment(c *gin.Context) {
	comment, err := h.comments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err, MsgCommentGetFailed)
		return
	}

	Success(c, comment)
}

// searchComments godoc
// @Summary 全文搜索评论
// @Description 按关键词搜索评论（匹配昵称、邮箱、正文），结果来自异步索引
// @Tags Comments
// @Produce json
// @Success 200 {object} Response{data=domain.CommentSearchResult}
// @Router /api/comments/search [get]
func (h *CommentHandler) searchComments(c *gin.Context) {
	if h.search == nil {
		InternalError(c, MsgSearchUnavailable)
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		BadRequest(c, "搜索关键词不能为空")
		return
	}

	criteria := domain.CommentSearchCriteria{
		Query:    query,
		Page:     intQuery(c, "page", 1),
		PageSize: intQuery(c, "pageSize", domain.DefaultPageSize),
	}
	if criteria.Page <= 0 || criteria.PageSize <= 0 {
		BadRequest(c, MsgInvalidPage)
		return
	}

	result, err := h.search.Search(c.Request.Context(), criteria)
	if err != nil {
		h.log.Error("failed to search comments", zap.Error(err), zap.String("query", query))
		InternalError(c, MsgSearchFailed)
		return
	}

	Success(c, result)
}

// parsePageQuery 解析分页排序参数，非法数字直接拒绝
func parsePageQuery(c *gin.Context) (domain.CommentPageQuery, bool) {
	query := domain.CommentPageQuery{
		Page:     intQuery(c, "page", 1),
		PageSize: intQuery(c, "pageSize", domain.DefaultPageSize),
		Sort:     domain.SortField(c.DefaultQuery("sort", string(domain.SortByCreatedAt))),
		Dir:      domain.SortDirection(c.DefaultQuery("dir", string(domain.SortDesc))),
	}
	if query.Page <= 0 || query.PageSize <= 0 {
		BadRequest(c, MsgInvalidPage)
		return domain.CommentPageQuery{}, false
	}
	return query.Normalize(), true
}

// intQuery 解析整型查询参数，缺失时返回默认值，非法时返回 -1
func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return value
}

// rejectionReason 将创建失败归类为指标标签
func rejectionReason(err error) string {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return "validation"
	case errors.Is(err, service.ErrCaptchaFailed):
		return "captcha"
	case errors.Is(err, service.ErrIdentityConflict):
		return "identity_conflict"
	case errors.Is(err, service.ErrParentNotFound):
		return "parent_not_found"
	case errors.Is(err, service.ErrAttachmentTooLarge),
		errors.Is(err, service.ErrUnsupportedFileType):
		return "attachment"
	default:
		return "internal"
	}
}
