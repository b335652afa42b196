package response

import (
	"errors"
	"net/http"

	"crowdvote/pkg/apperror"
	"crowdvote/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`    // 业务码
	Message string      `json:"message"` // 提示信息
	Data    interface{} `json:"data"`    // 数据
}

// 存储层错误只返回通用提示，不暴露底层细节
const retryMessage = "Something went wrong while saving your request, please try again"

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, httpCode int, errCode int, msg string) {
	c.JSON(httpCode, Response{
		Code:    errCode,
		Message: msg,
		Data:    nil,
	})
}

// Fail 业务失败响应 (HTTP 200, 业务码非 0)
func Fail(c *gin.Context, errCode int, msg string) {
	c.JSON(http.StatusOK, Response{
		Code:    errCode,
		Message: msg,
		Data:    nil,
	})
}

// FromError 根据业务错误类别返回对应的 HTTP 状态与业务码
func FromError(c *gin.Context, err error) {
	var appErr *apperror.Error
	message := ""
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	switch apperror.KindOf(err) {
	case apperror.KindValidation:
		Error(c, http.StatusBadRequest, ErrInvalidParam, message)
	case apperror.KindNotEligible:
		Error(c, http.StatusForbidden, ErrNotEligible, message)
	case apperror.KindForbidden:
		Error(c, http.StatusForbidden, ErrForbidden, message)
	case apperror.KindNotFound:
		Error(c, http.StatusNotFound, ErrCampaignNotFound, message)
	default:
		logger.Named("response").Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		Error(c, http.StatusInternalServerError, ErrServerInternal, retryMessage)
	}
}
