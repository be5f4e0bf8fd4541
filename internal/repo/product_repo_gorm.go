package repo

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"marketplace-api/internal/domain"
	"marketplace-api/pkg/utils"
)

type ProductRepo struct{ db *gorm.DB }

func NewProductRepo(db *gorm.DB) *ProductRepo { return &ProductRepo{db: db} }

var _ domain.ProductRepository = (*ProductRepo)(nil)

func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == "" {
		p.ID = utils.NewID()
	}
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create product: %w", translate(err))
	}
	return nil
}

func (r *ProductRepo) CreateBatch(ctx context.Context, ps []domain.Product) error {
	if len(ps) == 0 {
		return nil
	}
	for i := range ps {
		if ps[i].ID == "" {
			ps[i].ID = utils.NewID()
		}
	}
	// CreateInBatches 自带事务，整批成功或整批失败
	if err := r.db.WithContext(ctx).CreateInBatches(ps, 200).Error; err != nil {
		return fmt.Errorf("create products: %w", translate(err))
	}
	return nil
}

func (r *ProductRepo) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	return findProduct(r.db.WithContext(ctx), id)
}

func findProduct(tx *gorm.DB, id string) (*domain.Product, error) {
	var p domain.Product
	err := tx.First(&p, "id = ?", id).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}
	return &p, nil
}

func (r *ProductRepo) FindByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []domain.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	return out, nil
}

func (r *ProductRepo) List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int64, error) {
	offset, limit := clampPage(f.Offset, f.Limit)
	tx := r.db.WithContext(ctx).Model(&domain.Product{})
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		tx = tx.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	if f.Category != "" {
		tx = tx.Where("category = ?", f.Category)
	}
	if f.StoreID != "" {
		tx = tx.Where("store_id = ?", f.StoreID)
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}
	var out []domain.Product
	if err := tx.Order("created_at desc").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return out, total, nil
}

func (r *ProductRepo) ListByStore(ctx context.Context, storeID string) ([]domain.Product, error) {
	var out []domain.Product
	err := r.db.WithContext(ctx).Where("store_id = ?", storeID).Order("created_at desc").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list store products: %w", err)
	}
	return out, nil
}

func (r *ProductRepo) CountByStores(ctx context.Context, storeIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(storeIDs))
	if len(storeIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		StoreID string
		N       int64
	}
	err := r.db.WithContext(ctx).Model(&domain.Product{}).
		Select("store_id, COUNT(*) AS n").
		Where("store_id IN ?", storeIDs).
		Group("store_id").Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	for _, row := range rows {
		out[row.StoreID] = row.N
	}
	return out, nil
}

func (r *ProductRepo) Update(ctx context.Context, p *domain.Product) error {
	err := r.db.WithContext(ctx).Model(&domain.Product{}).Where("id = ?", p.ID).
		Updates(map[string]any{
			"name":        p.Name,
			"description": p.Description,
			"price":       p.Price,
			"category":    p.Category,
			"sku":         p.SKU,
			"image_url":   p.ImageURL,
		}).Error
	if err != nil {
		return fmt.Errorf("update product: %w", translate(err))
	}
	return nil
}

func (r *ProductRepo) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Product{})
	if res.Error != nil {
		return false, fmt.Errorf("delete product: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *ProductRepo) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	var stock int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Product{}).
			Where("id = ? AND stock + ? >= 0", id, delta).
			Update("stock", gorm.Expr("stock + ?", delta))
		if res.Error != nil {
			return res.Error
		}
		p, err := findProduct(tx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return domain.NotFound("product not found")
		}
		if res.RowsAffected == 0 {
			return &domain.InsufficientStockError{ProductID: id, Available: p.Stock, Requested: -delta}
		}
		stock = p.Stock
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("adjust stock: %w", err)
	}
	return stock, nil
}
