package httptransport

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"commentbox/backend/internal/service"
)

// FileHandler 附件下载处理器
type FileHandler struct {
	comments *service.CommentService
	log      *zap.Logger
}

// NewFileHandler 创建附件下载处理器
func NewFileHandler(comments *service.CommentService, log *zap.Logger) *FileHandler {
	return &FileHandler{comments: comments, log: log}
}

// downloadAttachment godoc
// @Summary 下载附件
// @Description 按存储文件名下载评论附件，按原始文件名和类型返回
// @Tags Files
// @Produce octet-stream
// @Router /api/files/{name} [get]
func (h *FileHandler) downloadAttachment(c *gin.Context) {
	attachment, reader, err := h.comments.OpenAttachment(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeServiceError(c, err, MsgAttachmentFailed)
		return
	}
	defer reader.Close()

	c.Header("Content-Type", attachment.ContentType)
	c.Header("Content-Length", strconv.FormatInt(attachment.Size, 10))
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", attachment.FileName))
	c.Header("X-Content-Type-Options", "nosniff")

	if _, err := io.Copy(c.Writer, reader); err != nil {
		// 响应头已发出，只能记录
		h.log.Warn("attachment download interrupted",
			zap.Error(err),
			zap.String("storedName", attachment.StoredName))
	}
}
