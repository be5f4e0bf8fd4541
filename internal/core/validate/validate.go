// Package validate 唯一的 validator 实例：gin 绑定与 service 层共用同一套 binding 标签
package validate

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"marketplace-api/internal/domain"
)

var (
	once sync.Once
	v    *validator.Validate
)

// Engine 懒加载；标签名 binding，字段路径使用 json/form 名
func Engine() *validator.Validate {
	once.Do(func() {
		v = validator.New()
		v.SetTagName("binding")
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
	})
	return v
}

// Struct 校验结构体，返回字段错误列表；无错误时为 nil
func Struct(s any) ([]domain.FieldError, error) {
	err := Engine().Struct(s)
	if err == nil {
		return nil, nil
	}
	if fields, ok := Fields(err); ok {
		return fields, nil
	}
	return nil, err
}

// Fields 把 validator.ValidationErrors 转换为字段错误
func Fields(err error) ([]domain.FieldError, bool) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil, false
	}
	out := make([]domain.FieldError, 0, len(ve))
	for _, fe := range ve {
		out = append(out, domain.FieldError{Path: path(fe), Message: message(fe)})
	}
	return out, true
}

// path "OrderInput.items[0].quantity" -> "items.0.quantity"
func path(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.NewReplacer("[", ".", "]", "").Replace(ns)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	return "failed " + fe.Tag() + " check"
}

// Gin 实现 binding.StructValidator，替换 gin 自带的 validator 实例
type Gin struct{}

func (Gin) ValidateStruct(obj any) error {
	if obj == nil {
		return nil
	}
	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		return Engine().Struct(obj)
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := (Gin{}).ValidateStruct(rv.Index(i).Interface()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (Gin) Engine() any { return Engine() }
