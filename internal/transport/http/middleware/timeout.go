package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketplace-api/internal/core/logger"
	resp "marketplace-api/internal/transport/http/response"
)

// Timeout 给请求 ctx 加截止时间。
// 处理函数按 ctx 退出后，若尚未写响应则补 504；已写出的响应保持不变。
func Timeout(d time.Duration, l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return
		}
		logger.FromContext(ctx, l).Warn("request deadline exceeded",
			zap.String("route", c.FullPath()), zap.Duration("limit", d))
		if !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, resp.Error(resp.CodeTimeout, "timeout"))
		}
	}
}
