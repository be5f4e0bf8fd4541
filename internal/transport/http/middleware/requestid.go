package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketplace-api/internal/core/logger"
)

const KeyRequestID = "X-Request-ID"

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.Request.Header.Get(KeyRequestID)
		if rid == "" || len(rid) > 128 {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(KeyRequestID, rid)
		c.Set(KeyRequestID, rid)
		c.Next()
	}
}

// ContextLogger 把带 request_id 的 logger 放进请求 ctx，需在 RequestID 之后
func ContextLogger(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rl := l.With(zap.String("request_id", c.GetString(KeyRequestID)))
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), rl))
		c.Next()
	}
}
