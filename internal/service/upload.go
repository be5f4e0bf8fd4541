package service

import (
	"io"
	"path/filepath"
	"strings"

	"marketplace-api/internal/domain"
)

// MaxLogoBytes 店铺 logo 上限 5MB
const MaxLogoBytes = 5 << 20

var logoExts = map[string]string{
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Upload 一个已打开的上传文件
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// logoExt 校验类型和大小，返回规范化后的扩展名
func (u *Upload) logoExt() (string, error) {
	ext := strings.ToLower(filepath.Ext(u.Filename))
	want, ok := logoExts[ext]
	if !ok {
		return "", domain.Invalid("logo must be jpeg, jpg, png, gif or webp",
			domain.FieldError{Path: "logo", Message: "unsupported file type"})
	}
	if ct := strings.ToLower(u.ContentType); ct != "" && ct != "application/octet-stream" && ct != want {
		return "", domain.Invalid("logo content type does not match its extension",
			domain.FieldError{Path: "logo", Message: "unsupported file type"})
	}
	if u.Size > MaxLogoBytes {
		return "", domain.Invalid("logo must be at most 5MB",
			domain.FieldError{Path: "logo", Message: "file too large"})
	}
	return ext, nil
}
