package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"commentbox/backend/internal/service"
)

// CaptchaHandler 验证码 API 处理器
type CaptchaHandler struct {
	captcha *service.CaptchaService
	log     *zap.Logger
}

// NewCaptchaHandler 创建验证码 API 处理器
func NewCaptchaHandler(captcha *service.CaptchaService, log *zap.Logger) *CaptchaHandler {
	return &CaptchaHandler{captcha: captcha, log: log}
}

// newChallenge godoc
// @Summary 获取验证码挑战
// @Description 生成一道算术题，提交评论时需携带 key 和答案
// @Tags Captcha
// @Produce json
// @Success 200 {object} Response{data=service.Challenge}
// @Router /api/captcha [get]
func (h *CaptchaHandler) newChallenge(c *gin.Context) {
	challenge, err := h.captcha.NewChallenge(c.Request.Context())
	if err != nil {
		h.log.Error("failed to create captcha challenge", zap.Error(err))
		InternalError(c, MsgCaptchaFailed)
		return
	}

	Success(c, challenge)
}
