package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tempmail/disposable/internal/domain"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = []struct {
	err    error
	status int
	msg    string
}{
	{domain.ErrSessionNotFound, http.StatusNotFound, "邮箱不存在或已过期"},
	{domain.ErrNotFound, http.StatusNotFound, "邮件不存在"},
	{domain.ErrProviderNotAvailable, http.StatusBadRequest, "邮件提供商不可用"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "请求参数错误"},
	{domain.ErrDuplicateKey, http.StatusConflict, "邮箱已存在"},
	{domain.ErrProviderUnavailable, http.StatusBadGateway, "邮件提供商请求失败"},
	{domain.ErrUnexpectedResponseShape, http.StatusBadGateway, "邮件提供商响应格式异常"},
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable, "存储不可用"},
	{domain.ErrRecordShapeMismatch, http.StatusInternalServerError, "存储记录格式异常"},
}

// 通用错误消息
const (
	MsgInvalidRequest = "请求参数格式错误"
	MsgInvalidOffset  = "offset 参数无效"
	MsgInvalidSeq     = "seq 参数无效"
	MsgNoNewMessages  = "暂无新邮件"
	MsgInternalError  = "服务器内部错误"
)

// classify 返回错误对应的 HTTP 状态码与中文消息
func classify(err error) (int, string) {
	for _, entry := range errorMessages {
		if errors.Is(err, entry.err) {
			return entry.status, entry.msg
		}
	}
	return http.StatusInternalServerError, MsgInternalError
}

// respondError 按错误类型写出统一错误响应
func respondError(c *gin.Context, err error) {
	status, msg := classify(err)
	_ = c.Error(err)

	switch status {
	case http.StatusBadRequest:
		BadRequest(c, msg)
	case http.StatusNotFound:
		NotFound(c, msg)
	case http.StatusConflict:
		Conflict(c, msg)
	case http.StatusInternalServerError:
		InternalError(c, msg)
	default:
		Error(c, status, msg)
	}
}
