package service

import (
	"strings"

	"marketplace-api/internal/core/validate"
	"marketplace-api/internal/domain"
)

// fieldErrs 收集字段错误，全部校验完再一起返回
type fieldErrs []domain.FieldError

func (f *fieldErrs) add(path, msg string) { *f = append(*f, domain.FieldError{Path: path, Message: msg}) }

// check 按结构体上的 binding 标签校验，与 gin 绑定使用同一个 validator
func (f *fieldErrs) check(v any) error {
	fields, err := validate.Struct(v)
	if err != nil {
		return err
	}
	*f = append(*f, fields...)
	return nil
}

func (f *fieldErrs) required(path, v string) {
	if strings.TrimSpace(v) == "" {
		f.add(path, "is required")
	}
}

func (f fieldErrs) err(msg string) error {
	if len(f) == 0 {
		return nil
	}
	return domain.Invalid(msg, f...)
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}
