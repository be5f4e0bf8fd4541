package domain

import (
	"errors"
	"fmt"
)

// 错误类别（transport 层按类别映射 HTTP 状态码）
var (
	ErrInvalid           = errors.New("invalid input")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ErrDuplicate 唯一索引冲突（repo 层翻译驱动错误）
var ErrDuplicate = fmt.Errorf("%w: duplicate record", ErrConflict)

// FieldError 单个字段的校验错误
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error 业务错误：Kind 决定类别，Msg 直接返回给客户端
type Error struct {
	Kind   error
	Msg    string
	Fields []FieldError
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() error { return e.Kind }

func Invalid(msg string, fields ...FieldError) error {
	return &Error{Kind: ErrInvalid, Msg: msg, Fields: fields}
}
func Unauthenticated(msg string) error { return &Error{Kind: ErrUnauthenticated, Msg: msg} }
func Forbidden(msg string) error       { return &Error{Kind: ErrForbidden, Msg: msg} }
func NotFound(msg string) error        { return &Error{Kind: ErrNotFound, Msg: msg} }
func Conflict(msg string) error        { return &Error{Kind: ErrConflict, Msg: msg} }

// InsufficientStockError 某个商品库存不足，整单拒绝
type InsufficientStockError struct {
	ProductID string `json:"productId"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
