package util

import (
	"ichat_backend/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Kind    ErrorKind   `json:"kind,omitempty"`
	Reason  string      `json:"reason,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

// SuccessMessage 命令类接口：成功时附带一句可读提示
func SuccessMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: message,
		Data:    data,
	})
}

func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: message,
		Data:    data,
	})
}

// Fail 错误到响应的唯一映射点。基础设施错误只写日志，客户端拿到通用提示
func Fail(c *gin.Context, err error) {
	appErr := AsAppError(err)
	status := appErr.Status()
	if appErr.Kind == KindTransientFailure || appErr.Kind == KindStorageFailure {
		logger.Log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", string(appErr.Kind)),
			zap.Error(appErr.Err),
		)
	}
	c.AbortWithStatusJSON(status, Response{
		Code:    status,
		Message: appErr.Message,
		Kind:    appErr.Kind,
		Reason:  appErr.Reason,
	})
}

func Unauthorized(c *gin.Context) {
	Fail(c, ErrUnauthenticated())
}

func BadRequest(c *gin.Context, message string) {
	Fail(c, ErrValidation("", message))
}
