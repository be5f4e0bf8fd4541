package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketplace-api/internal/core/auth"
	"marketplace-api/internal/domain"
	"marketplace-api/internal/service"
	"marketplace-api/internal/transport/http/ez"
)

// SessionCookie 会话 cookie 属性
type SessionCookie struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

type AuthHandler struct {
	users    *service.UserService
	sessions auth.SessionStore
	jwter    *auth.JWTer
	cookie   SessionCookie
	limiter  gin.HandlerFunc
	log      *zap.Logger
}

func NewAuthHandler(users *service.UserService, sessions auth.SessionStore, jwter *auth.JWTer,
	cookie SessionCookie, limiter gin.HandlerFunc, l *zap.Logger) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "sid"
	}
	if cookie.TTL <= 0 {
		cookie.TTL = auth.DefaultSessionTTL
	}
	return &AuthHandler{users: users, sessions: sessions, jwter: jwter, cookie: cookie, limiter: limiter, log: l}
}

func (h *AuthHandler) Priority() int { return 10 }

type loginIn struct {
	// 邮箱或用户名
	Identifier string `json:"identifier"`
	Email      string `json:"email"    binding:"omitempty,max=191"`
	Username   string `json:"username" binding:"omitempty,max=64"`
	Password   string `json:"password" binding:"required"`
}

type authOut struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

func (h *AuthHandler) setCookie(c *gin.Context, sid string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, sid, maxAge, "/", "", h.cookie.Secure, true)
}

// issue 同时建立会话并签发 token
func (h *AuthHandler) issue(c *gin.Context, u *domain.User) (authOut, error) {
	sid, err := h.sessions.Create(c.Request.Context(), u.ID)
	if err != nil {
		return authOut{}, err
	}
	tok, err := h.jwter.Issue(u)
	if err != nil {
		return authOut{}, err
	}
	h.setCookie(c, sid, int(h.cookie.TTL/time.Second))
	return authOut{User: u, Token: tok}, nil
}

func (h *AuthHandler) MountAPI(g *gin.RouterGroup) {
	// 只对注册/登录按 IP 限速
	limited := g.Group("/auth")
	if h.limiter != nil {
		limited.Use(h.limiter)
	}
	ezLimited := ez.New(limited, h.log)
	ezAuth := ez.New(g.Group("/auth"), h.log)
	ezAPI := ez.New(g, h.log)

	ez.RegisterAction(ezLimited, ez.Action[service.RegisterInput, authOut]{
		Method: http.MethodPost,
		Path:   "/register",
		Binder: ez.BindJSON,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *service.RegisterInput) (authOut, error) {
			u, err := h.users.Register(c.Request.Context(), *in)
			if err != nil {
				return authOut{}, err
			}
			return h.issue(c, u)
		},
	})

	ez.RegisterAction(ezLimited, ez.Action[loginIn, authOut]{
		Method: http.MethodPost,
		Path:   "/login",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *loginIn) (authOut, error) {
			id := in.Identifier
			if id == "" {
				id = in.Email
			}
			if id == "" {
				id = in.Username
			}
			u, err := h.users.Authenticate(c.Request.Context(), id, in.Password)
			if err != nil {
				return authOut{}, err
			}
			return h.issue(c, u)
		},
	})

	ez.RegisterAction(ezAuth, ez.Action[struct{}, gin.H]{
		Method: http.MethodPost,
		Path:   "/logout",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			if sid, err := c.Cookie(h.cookie.Name); err == nil && sid != "" {
				if err := h.sessions.Destroy(c.Request.Context(), sid); err != nil {
					return nil, err
				}
			}
			h.setCookie(c, "", -1)
			return gin.H{"loggedOut": true}, nil
		},
	})

	ez.RegisterAction(ezAuth, ez.Action[struct{}, *domain.User]{
		Method: http.MethodGet,
		Path:   "/me",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			return h.users.Get(c.Request.Context(), me(c).UserID)
		},
	})

	ez.RegisterAction(ezAPI, ez.Action[service.ProfileInput, *domain.User]{
		Method: http.MethodPut,
		Path:   "/user/profile",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *service.ProfileInput) (*domain.User, error) {
			return h.users.UpdateProfile(c.Request.Context(), me(c).UserID, *in)
		},
	})
}
