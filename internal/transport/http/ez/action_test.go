package ez

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marketplace-api/internal/core/auth"
	"marketplace-api/internal/domain"
	resp "marketplace-api/internal/transport/http/response"
)

func init() { gin.SetMode(gin.TestMode) }

type echoIn struct {
	Name  string `json:"name"  binding:"required,max=5"`
	Items []struct {
		Qty int `json:"qty" binding:"gte=1"`
	} `json:"items" binding:"dive"`
}

func engine(as func(e EZ), id *auth.Identity) *gin.Engine {
	r := gin.New()
	if id != nil {
		r.Use(func(c *gin.Context) { SetIdentity(c, id) })
	}
	as(New(r.Group(""), zap.NewNop()))
	return r
}

func call(t *testing.T, r *gin.Engine, method, path, body string) (int, resp.Resp) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out resp.Resp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func TestBindErrorsCarryFieldPaths(t *testing.T) {
	r := engine(func(e EZ) {
		RegisterAction(e, Action[echoIn, string]{
			Method: http.MethodPost, Path: "/echo", Binder: BindJSON,
			Handler: func(c *gin.Context, in *echoIn) (string, error) { return in.Name, nil },
		})
	}, nil)

	code, out := call(t, r, http.MethodPost, "/echo", `{"name":"toolong","items":[{"qty":0}]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	paths := map[string]string{}
	for _, f := range out.Errors {
		paths[f.Path] = f.Message
	}
	assert.Equal(t, "must be at most 5", paths["name"])
	assert.Equal(t, "must be at least 1", paths["items.0.qty"])

	code, out = call(t, r, http.MethodPost, "/echo", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, out.Message, "invalid request")

	code, out = call(t, r, http.MethodPost, "/echo", `{"name":"ok"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", out.Data)
}

func TestAuthAndRoles(t *testing.T) {
	register := func(e EZ) {
		RegisterAction(e, Action[struct{}, string]{
			Method: http.MethodGet, Path: "/seller", Binder: BindNone,
			Roles:   []domain.Role{domain.RoleSeller},
			Handler: func(c *gin.Context, _ *struct{}) (string, error) { return "hi", nil },
		})
	}

	code, out := call(t, engine(register, nil), http.MethodGet, "/seller", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "authentication required", out.Message)

	buyer := &auth.Identity{UserID: "u1", Role: domain.RoleUser}
	code, out = call(t, engine(register, buyer), http.MethodGet, "/seller", "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "user", out.Role)

	seller := &auth.Identity{UserID: "u2", Role: domain.RoleSeller}
	code, _ = call(t, engine(register, seller), http.MethodGet, "/seller", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestStatusOverride(t *testing.T) {
	r := engine(func(e EZ) {
		RegisterAction(e, Action[struct{}, string]{
			Method: http.MethodPost, Path: "/x", Binder: BindNone, Status: http.StatusCreated,
			Handler: func(c *gin.Context, _ *struct{}) (string, error) {
				if c.Query("replay") != "" {
					SetStatus(c, http.StatusOK)
				}
				return "x", nil
			},
		})
	}, nil)
	code, _ := call(t, r, http.MethodPost, "/x", "")
	assert.Equal(t, http.StatusCreated, code)
	code, _ = call(t, r, http.MethodPost, "/x?replay=1", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestFailMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{domain.Invalid("bad"), http.StatusBadRequest, "bad"},
		{domain.Unauthenticated("who"), http.StatusUnauthorized, "who"},
		{domain.NotFound("gone"), http.StatusNotFound, "gone"},
		{domain.Conflict("email already exists"), http.StatusConflict, "email already exists"},
		{domain.ErrDuplicate, http.StatusConflict, "resource already exists"},
		{&domain.InsufficientStockError{ProductID: "p", Available: 1, Requested: 2}, http.StatusConflict, "insufficient stock for product p: available 1, requested 2"},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge, "request body too large"},
		{errors.New("db exploded"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			r := engine(func(e EZ) {
				RegisterAction(e, Action[struct{}, string]{
					Method: http.MethodGet, Path: "/", Binder: BindNone,
					Handler: func(c *gin.Context, _ *struct{}) (string, error) { return "", tc.err },
				})
			}, nil)
			code, out := call(t, r, http.MethodGet, "/", "")
			assert.Equal(t, tc.status, code)
			assert.Equal(t, tc.msg, out.Message)
		})
	}
}

func TestForbiddenCarriesRole(t *testing.T) {
	r := engine(func(e EZ) {
		RegisterAction(e, Action[struct{}, string]{
			Method: http.MethodGet, Path: "/", Binder: BindNone, Auth: true,
			Handler: func(c *gin.Context, _ *struct{}) (string, error) { return "", domain.Forbidden("not your product") },
		})
	}, &auth.Identity{UserID: "u", Role: domain.RoleSeller})
	code, out := call(t, r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "seller", out.Role)
}
