package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"marketplace-api/internal/domain"
)

// AutoMigrate 建表/补索引
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Store{},
		&domain.Product{},
		&domain.Order{},
		&domain.OrderItem{},
	)
}

// translate 把驱动错误翻译为 domain 错误；唯一索引冲突 -> ErrDuplicate
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isDupKey(err) {
		return domain.ErrDuplicate
	}
	return err
}

// isDupKey 兜底：未开启 TranslateError 时按错误文本识别（pg 23505 / mysql 1062）
func isDupKey(err error) bool {
	s := err.Error()
	return strings.Contains(s, "23505") ||
		strings.Contains(s, "Error 1062") ||
		strings.Contains(strings.ToLower(s), "duplicate key")
}

func notFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }

func clampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return offset, limit
}
