package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "marketplace-api/internal/transport/http/response"
)

// RecoverJSON 配合 ginzap.CustomRecoveryWithZap：panic 已记录，这里只负责 500 响应体
func RecoverJSON(c *gin.Context, _ any) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, resp.Error(resp.CodeServerError, "internal error"))
}
