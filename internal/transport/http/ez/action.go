package ez

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"marketplace-api/internal/core/auth"
	"marketplace-api/internal/core/logger"
	"marketplace-api/internal/core/validate"
	"marketplace-api/internal/domain"
	resp "marketplace-api/internal/transport/http/response"
)

// gin 上下文中的键
const (
	KeyUserID   = "userId"
	KeyRole     = "role"
	KeyIdentity = "identity"
	keyStatus   = "ez.status"
)

func init() {
	// 与 service 层共用同一个 validator 实例
	binding.Validator = validate.Gin{}
}

type EZ struct {
	g   *gin.RouterGroup
	log *zap.Logger
}

func New(g *gin.RouterGroup, l *zap.Logger) EZ { return EZ{g: g, log: l} }

// 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindForm  Binder = "form"  // multipart / urlencoded 表单
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param / c.FormFile 取
)

// 动作定义：I 入参，O 出参
type Action[I any, O any] struct {
	Method  string        // "GET" | "POST" | "PUT" | "DELETE"
	Path    string        // 例："/auth/login"、"/orders/:id/cancel"
	Binder  Binder        // 绑定方式
	Auth    bool          // 是否要求登录
	Roles   []domain.Role // 限定角色（可选）
	Status  int           // 成功状态码，默认 200
	Handler func(c *gin.Context, in *I) (O, error)
}

// SetIdentity 由鉴权中间件写入
func SetIdentity(c *gin.Context, id *auth.Identity) {
	c.Set(KeyIdentity, id)
	c.Set(KeyUserID, id.UserID)
	c.Set(KeyRole, string(id.Role))
}

// IdentityOf 当前请求的身份；未登录为 nil
func IdentityOf(c *gin.Context) *auth.Identity {
	if v, ok := c.Get(KeyIdentity); ok {
		if id, ok := v.(*auth.Identity); ok {
			return id
		}
	}
	return nil
}

// SetStatus 覆盖本次成功响应的状态码（如幂等重放返回 200）
func SetStatus(c *gin.Context, code int) { c.Set(keyStatus, code) }

// RegisterAction 在当前 EZ 下注册动作接口
func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	h := func(c *gin.Context) {
		// 1) 鉴权/角色
		if a.Auth || len(a.Roles) > 0 {
			id := IdentityOf(c)
			if id == nil {
				Fail(c, e.log, domain.Unauthenticated("authentication required"))
				return
			}
			if len(a.Roles) > 0 && !id.HasRole(a.Roles...) {
				c.AbortWithStatusJSON(http.StatusForbidden,
					resp.Error(resp.CodeForbidden, "insufficient role").WithRole(string(id.Role)))
				return
			}
		}

		// 2) 绑定入参
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		case BindForm:
			bindErr = c.ShouldBind(&in)
		default: // BindNone: 不绑定
		}
		if bindErr != nil {
			Fail(c, e.log, bindError(bindErr))
			return
		}

		// 3) 执行
		out, err := a.Handler(c, &in)
		if err != nil {
			Fail(c, e.log, err)
			return
		}
		status := a.Status
		if status == 0 {
			status = http.StatusOK
		}
		if v, ok := c.Get(keyStatus); ok {
			status = v.(int)
		}
		c.JSON(status, resp.OK(out))
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default: // 默认 POST
		e.g.POST(a.Path, h)
	}
}

// bindError 把 gin/validator 的绑定错误转换为 400 + 字段列表
func bindError(err error) error {
	if fields, ok := validate.Fields(err); ok {
		return domain.Invalid("validation failed", fields...)
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return err
	}
	var se *json.SyntaxError
	var te *json.UnmarshalTypeError
	switch {
	case errors.As(err, &te):
		return domain.Invalid("invalid request body",
			domain.FieldError{Path: te.Field, Message: "must be " + te.Type.String()})
	case errors.As(err, &se), errors.Is(err, http.ErrNotMultipart):
		return domain.Invalid("invalid request body")
	}
	return domain.Invalid("invalid request: " + err.Error())
}

// Fail 统一错误映射：domain 错误类别 -> HTTP 状态码；未知错误记录日志并返回 500
func Fail(c *gin.Context, l *zap.Logger, err error) {
	var (
		de  *domain.Error
		ise *domain.InsufficientStockError
		mbe *http.MaxBytesError
		r   resp.Resp
	)
	switch {
	case errors.As(err, &ise):
		r = resp.Error(resp.CodeConflict, ise.Error())
		r.Data = ise
	case errors.As(err, &mbe):
		r = resp.Error(resp.CodeTooLarge, "request body too large")
	case errors.As(err, &de):
		r = resp.Error(kindCode(de.Kind), de.Error()).Fields(de.Fields)
		if de.Kind == domain.ErrForbidden {
			if id := IdentityOf(c); id != nil {
				r = r.WithRole(string(id.Role))
			}
		}
	case errors.Is(err, domain.ErrConflict):
		r = resp.Error(resp.CodeConflict, "resource already exists")
	default:
		logger.FromContext(c.Request.Context(), l).Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		r = resp.Error(resp.CodeServerError, "internal error")
	}
	c.AbortWithStatusJSON(resp.Status(r.Code), r)
}

func kindCode(kind error) int {
	switch kind {
	case domain.ErrInvalid:
		return resp.CodeBadRequest
	case domain.ErrUnauthenticated:
		return resp.CodeUnauthorized
	case domain.ErrForbidden:
		return resp.CodeForbidden
	case domain.ErrNotFound:
		return resp.CodeNotFound
	case domain.ErrConflict, domain.ErrInsufficientStock:
		return resp.CodeConflict
	}
	return resp.CodeServerError
}
