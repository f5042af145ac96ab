package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"commentbox/backend/internal/domain"
	"commentbox/backend/internal/service"
	"commentbox/backend/internal/storage"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	service.ErrIdentityConflict:    "昵称或邮箱已被其他身份使用",
	service.ErrCaptchaFailed:       "验证码错误或已过期",
	service.ErrParentNotFound:      "被回复的评论不存在",
	service.ErrAttachmentTooLarge:  "附件超出大小限制",
	service.ErrUnsupportedFileType: "附件类型不支持，仅接受图片和纯文本",
	storage.ErrCommentNotFound:     "评论不存在",
	storage.ErrAttachmentNotFound:  "附件不存在",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	for key, msg := range errorMessages {
		if errors.Is(err, key) {
			return msg
		}
	}
	return err.Error()
}

// 通用错误消息
const (
	MsgInvalidRequest      = "请求参数格式错误"
	MsgInvalidPage         = "分页参数格式错误"
	MsgCommentCreateFailed = "提交评论失败"
	MsgCommentGetFailed    = "获取评论详情失败"
	MsgCommentListFailed   = "获取评论列表失败"
	MsgSearchFailed        = "搜索评论失败"
	MsgSearchUnavailable   = "搜索服务暂不可用"
	MsgCaptchaFailed       = "生成验证码失败"
	MsgAttachmentFailed    = "读取附件失败"
	MsgInternalError       = "服务器内部错误，请稍后重试"
)

// writeServiceError 将业务错误映射为 HTTP 响应
func writeServiceError(c *gin.Context, err error, fallbackMsg string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		UnprocessableEntity(c, verr.Message)
	case errors.Is(err, service.ErrCaptchaFailed):
		BadRequest(c, GetErrorMessage(err))
	case errors.Is(err, service.ErrIdentityConflict):
		Conflict(c, GetErrorMessage(err))
	case errors.Is(err, service.ErrParentNotFound),
		errors.Is(err, storage.ErrCommentNotFound),
		errors.Is(err, storage.ErrAttachmentNotFound):
		NotFound(c, GetErrorMessage(err))
	case errors.Is(err, service.ErrAttachmentTooLarge):
		PayloadTooLarge(c, GetErrorMessage(err))
	case errors.Is(err, service.ErrUnsupportedFileType):
		UnprocessableEntity(c, GetErrorMessage(err))
	default:
		InternalError(c, fallbackMsg)
	}
}
