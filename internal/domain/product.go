package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `gorm:"primaryKey;size:36" json:"id"`
	StoreID     string          `gorm:"index;size:36;not null" json:"storeId"`
	Name        string          `gorm:"size:191;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Category    string          `gorm:"index;size:64" json:"category"`
	SKU         string          `gorm:"size:64" json:"sku"`
	Stock       int             `gorm:"not null;default:0" json:"stock"`
	ImageURL    string          `gorm:"size:512" json:"image"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ProductFilter 公开列表的筛选条件
type ProductFilter struct {
	Query    string
	Category string
	StoreID  string
	Offset   int
	Limit    int
}

// ProductRepository 查不到时返回 (nil, nil)
type ProductRepository interface {
	Create(ctx context.Context, p *Product) error
	CreateBatch(ctx context.Context, ps []Product) error
	FindByID(ctx context.Context, id string) (*Product, error)
	FindByIDs(ctx context.Context, ids []string) ([]Product, error)
	List(ctx context.Context, f ProductFilter) ([]Product, int64, error)
	ListByStore(ctx context.Context, storeID string) ([]Product, error)
	CountByStores(ctx context.Context, storeIDs []string) (map[string]int64, error)
	// Update 只写资料字段，不写 stock
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) (bool, error)
	// AdjustStock 单条条件更新：stock+delta 不得小于 0，返回新库存
	AdjustStock(ctx context.Context, id string, delta int) (int, error)
}
