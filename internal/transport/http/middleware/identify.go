package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketplace-api/internal/core/auth"
	"marketplace-api/internal/core/logger"
	"marketplace-api/internal/domain"
	"marketplace-api/internal/transport/http/ez"
)

const DefaultSessionCookie = "sid"

// UserFinder 会话路径需要按 id 加载用户
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// Identify 解析调用者身份，不拦截请求；是否必须登录由各 Action 决定。
// 先看会话 cookie，无有效会话再看 Bearer token。
func Identify(sessions auth.SessionStore, jwter *auth.JWTer, users UserFinder, cookie string, l *zap.Logger) gin.HandlerFunc {
	if cookie == "" {
		cookie = DefaultSessionCookie
	}
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if id := fromSession(c, ctx, sessions, users, cookie, l); id != nil {
			ez.SetIdentity(c, id)
		} else if id := fromBearer(c, jwter); id != nil {
			ez.SetIdentity(c, id)
		}
		c.Next()
	}
}

func fromSession(c *gin.Context, ctx context.Context, sessions auth.SessionStore, users UserFinder, cookie string, l *zap.Logger) *auth.Identity {
	if sessions == nil {
		return nil
	}
	sid, err := c.Cookie(cookie)
	if err != nil || sid == "" {
		return nil
	}
	uid, err := sessions.Lookup(ctx, sid)
	if err != nil {
		logger.FromContext(ctx, l).Warn("session lookup failed", zap.Error(err))
		return nil
	}
	if uid == "" {
		return nil
	}
	u, err := users.FindByID(ctx, uid)
	if err != nil {
		logger.FromContext(ctx, l).Warn("session user load failed", zap.Error(err))
		return nil
	}
	if u == nil {
		return nil
	}
	return auth.FromUser(u)
}

func fromBearer(c *gin.Context, jwter *auth.JWTer) *auth.Identity {
	if jwter == nil {
		return nil
	}
	ah := c.GetHeader("Authorization")
	if len(ah) < 7 || !strings.EqualFold(ah[:7], "Bearer ") {
		return nil
	}
	claims, err := jwter.Parse(strings.TrimSpace(ah[7:]))
	if err != nil {
		return nil
	}
	return auth.FromClaims(claims)
}
