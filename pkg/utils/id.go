package utils

import "github.com/google/uuid"

// NewID 生成实体主键（UUID 字符串）
func NewID() string { return uuid.NewString() }

// IsID 判断是否为 NewID 生成的格式
func IsID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
