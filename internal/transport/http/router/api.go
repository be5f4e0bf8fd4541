package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"marketplace-api/internal/core/auth"
	"marketplace-api/internal/core/config"
	"marketplace-api/internal/core/server"
	mdw "marketplace-api/internal/transport/http/middleware"
)

// Deps 两个 engine 共用的依赖
type Deps struct {
	Log        *zap.Logger
	Mode       string
	Sessions   auth.SessionStore
	JWT        *auth.JWTer
	Users      mdw.UserFinder
	CookieName string
	Limits     config.Limits
	CORS       []string
	// 本地存储时静态暴露上传目录
	UploadsDir  string
	UploadsPath string
}

func (d Deps) base() *gin.Engine {
	r := server.NewRouter(d.Log, server.Options{Mode: d.Mode, CORSOrigins: d.CORS}, mdw.RecoverJSON)

	lim := d.Limits
	if lim.RPS <= 0 {
		lim.RPS, lim.Burst = 200, 400
	}
	if lim.MaxInflight <= 0 {
		lim.MaxInflight = 512
	}
	if lim.MaxBodyMB <= 0 {
		lim.MaxBodyMB = 10
	}
	if lim.TimeoutSec <= 0 {
		lim.TimeoutSec = 10
	}

	// 中间件
	r.Use(
		mdw.RequestID(),
		mdw.ContextLogger(d.Log),
		mdw.AccessLog(d.Log),
		mdw.Metrics(),
		mdw.RateLimit(rate.Limit(lim.RPS), lim.Burst),
		mdw.ConcurrencyLimit(lim.MaxInflight, 2*time.Second),
		mdw.MaxBodyBytes(lim.MaxBodyMB<<20),
		mdw.Timeout(time.Duration(lim.TimeoutSec)*time.Second, d.Log),
		mdw.Identify(d.Sessions, d.JWT, d.Users, d.CookieName, d.Log),
	)

	// 健康检查 / 指标
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// AuthLimiter 注册/登录的每 IP 限速
func (d Deps) AuthLimiter() gin.HandlerFunc {
	rps, burst := d.Limits.AuthRPS, d.Limits.AuthBurst
	if rps <= 0 {
		rps, burst = 1, 10
	}
	return mdw.RateLimitPerIP(rate.Limit(rps), burst)
}

// NewAPIEngine 用户端：/api 前缀
func NewAPIEngine(d Deps, reg *Registry) *gin.Engine {
	r := d.base()
	if d.UploadsDir != "" && d.UploadsPath != "" {
		r.Static(d.UploadsPath, d.UploadsDir)
	}
	api := r.Group("/api")
	reg.MountAllAPI(api)
	return r
}
