package domain

import (
	"context"
	"time"
)

// FirstStoreCode 第一个店铺的公开编号，之后递增
const FirstStoreCode = 1001

type Store struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Code        string    `gorm:"uniqueIndex;size:16;not null" json:"storeCode"`
	OwnerID     string    `gorm:"uniqueIndex;size:36;not null" json:"ownerId"`
	Name        string    `gorm:"size:128;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	LogoURL     string    `gorm:"size:512" json:"logo"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// StoreRepository 查不到时返回 (nil, nil)
type StoreRepository interface {
	// Create 分配下一个 Code；同一 owner 第二个店铺返回 ErrDuplicate
	Create(ctx context.Context, s *Store) error
	FindByID(ctx context.Context, id string) (*Store, error)
	FindByCode(ctx context.Context, code string) (*Store, error)
	FindByOwner(ctx context.Context, ownerID string) (*Store, error)
	FindByIDs(ctx context.Context, ids []string) ([]Store, error)
	List(ctx context.Context) ([]Store, error)
	Update(ctx context.Context, s *Store) error
	// DeleteCascade 同一事务内删除店铺及其全部商品，返回删除的商品数
	DeleteCascade(ctx context.Context, id string) (int64, error)
}
