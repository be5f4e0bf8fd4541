package repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"marketplace-api/internal/domain"
	"marketplace-api/pkg/utils"
)

// 编号冲突时的重试次数
const storeCodeRetries = 5

type StoreRepo struct{ db *gorm.DB }

func NewStoreRepo(db *gorm.DB) *StoreRepo { return &StoreRepo{db: db} }

var _ domain.StoreRepository = (*StoreRepo)(nil)

func (r *StoreRepo) nextCode(ctx context.Context) (string, error) {
	var codes []string
	// 按长度+字典序取最大编号，避免字符串比较 "999" > "1000"
	err := r.db.WithContext(ctx).Model(&domain.Store{}).
		Order("LENGTH(code) DESC, code DESC").Limit(1).Pluck("code", &codes).Error
	if err != nil {
		return "", err
	}
	if len(codes) == 0 {
		return strconv.Itoa(domain.FirstStoreCode), nil
	}
	n, err := strconv.Atoi(codes[0])
	if err != nil || n < domain.FirstStoreCode {
		return strconv.Itoa(domain.FirstStoreCode), nil
	}
	return strconv.Itoa(n + 1), nil
}

func (r *StoreRepo) Create(ctx context.Context, s *domain.Store) error {
	if s.ID == "" {
		s.ID = utils.NewID()
	}
	for i := 0; i < storeCodeRetries; i++ {
		code, err := r.nextCode(ctx)
		if err != nil {
			return fmt.Errorf("next store code: %w", err)
		}
		s.Code = code
		err = translate(r.db.WithContext(ctx).Create(s).Error)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicate) {
			return fmt.Errorf("create store: %w", err)
		}
		// owner 已有店铺：不是编号冲突，不重试
		if owned, ferr := r.FindByOwner(ctx, s.OwnerID); ferr == nil && owned != nil {
			return domain.ErrDuplicate
		}
	}
	return fmt.Errorf("create store: %w", domain.ErrDuplicate)
}

func (r *StoreRepo) first(ctx context.Context, query string, arg any) (*domain.Store, error) {
	var s domain.Store
	err := r.db.WithContext(ctx).First(&s, query, arg).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find store: %w", err)
	}
	return &s, nil
}

func (r *StoreRepo) FindByID(ctx context.Context, id string) (*domain.Store, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *StoreRepo) FindByCode(ctx context.Context, code string) (*domain.Store, error) {
	return r.first(ctx, "code = ?", code)
}

func (r *StoreRepo) FindByOwner(ctx context.Context, ownerID string) (*domain.Store, error) {
	return r.first(ctx, "owner_id = ?", ownerID)
}

func (r *StoreRepo) FindByIDs(ctx context.Context, ids []string) ([]domain.Store, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []domain.Store
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("find stores: %w", err)
	}
	return out, nil
}

func (r *StoreRepo) List(ctx context.Context) ([]domain.Store, error) {
	var out []domain.Store
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	return out, nil
}

func (r *StoreRepo) Update(ctx context.Context, s *domain.Store) error {
	err := r.db.WithContext(ctx).Model(&domain.Store{}).Where("id = ?", s.ID).
		Updates(map[string]any{"name": s.Name, "description": s.Description, "logo_url": s.LogoURL}).Error
	if err != nil {
		return fmt.Errorf("update store: %w", translate(err))
	}
	return nil
}

func (r *StoreRepo) DeleteCascade(ctx context.Context, id string) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("store_id = ?", id).Delete(&domain.Product{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		res = tx.Where("id = ?", id).Delete(&domain.Store{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.NotFound("store not found")
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete store: %w", err)
	}
	return removed, nil
}
