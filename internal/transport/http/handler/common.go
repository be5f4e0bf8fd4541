package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace-api/internal/core/auth"
	"marketplace-api/internal/domain"
	"marketplace-api/internal/service"
	"marketplace-api/internal/transport/http/ez"
)

// Page 列表分页参数
type Page struct {
	Offset int `form:"offset" binding:"omitempty,gte=0"`
	Limit  int `form:"limit"  binding:"omitempty,gte=1,lte=100"`
}

type PageOut[T any] struct {
	Total int64 `json:"total"`
	Items []T   `json:"items"`
}

func pageOf[T any](items []T, total int64) PageOut[T] {
	if items == nil {
		items = []T{}
	}
	return PageOut[T]{Total: total, Items: items}
}

// me Auth=true 的 Action 中身份一定存在
func me(c *gin.Context) *auth.Identity { return ez.IdentityOf(c) }

// openUpload 读取可选的上传文件；未上传返回 nil
func openUpload(c *gin.Context, field string) (*service.Upload, io.Closer, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, domain.Invalid("invalid upload: " + err.Error())
	}
	return open(fh)
}

func open(fh *multipart.FileHeader) (*service.Upload, io.Closer, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &service.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	}, f, nil
}

var (
	sellerOnly = []domain.Role{domain.RoleSeller}
	adminOnly  = []domain.Role{domain.RoleAdmin}
)
