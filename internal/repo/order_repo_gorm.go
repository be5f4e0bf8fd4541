package repo

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"marketplace-api/internal/domain"
	"marketplace-api/pkg/utils"
)

type OrderRepo struct{ db *gorm.DB }

func NewOrderRepo(db *gorm.DB) *OrderRepo { return &OrderRepo{db: db} }

var _ domain.OrderRepository = (*OrderRepo)(nil)

// sortedLines 按商品 id 排序，保证并发事务以相同顺序加行锁
func sortedLines(lines []domain.OrderLine) []domain.OrderLine {
	out := append([]domain.OrderLine(nil), lines...)
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

func restockLines(items []domain.OrderItem) []domain.OrderLine {
	out := make([]domain.OrderLine, 0, len(items))
	for _, it := range items {
		out = append(out, domain.OrderLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

// finishOrder 补齐 id/快照/总额，两种实现共用
func finishOrder(o *domain.Order, items []domain.OrderItem) {
	if o.ID == "" {
		o.ID = utils.NewID()
	}
	for i := range items {
		items[i].ID = utils.NewID()
		items[i].OrderID = o.ID
	}
	o.Items = items
	o.Total = domain.ComputeTotal(items)
	o.Status = domain.OrderPending
}

func (r *OrderRepo) Place(ctx context.Context, o *domain.Order, lines []domain.OrderLine) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := make([]domain.OrderItem, 0, len(lines))
		for _, ln := range sortedLines(lines) {
			res := tx.Model(&domain.Product{}).
				Where("id = ? AND stock >= ?", ln.ProductID, ln.Quantity).
				Update("stock", gorm.Expr("stock - ?", ln.Quantity))
			if res.Error != nil {
				return res.Error
			}
			p, err := findProduct(tx, ln.ProductID)
			if err != nil {
				return err
			}
			if p == nil {
				return domain.NotFound("product not found: " + ln.ProductID)
			}
			if res.RowsAffected == 0 {
				return &domain.InsufficientStockError{ProductID: ln.ProductID, Available: p.Stock, Requested: ln.Quantity}
			}
			items = append(items, domain.SnapshotItem(p, ln.Quantity))
		}
		finishOrder(o, items)
		return translate(tx.Create(o).Error)
	})
	if err != nil {
		return fmt.Errorf("place order: %w", err)
	}
	return nil
}

func (r *OrderRepo) first(tx *gorm.DB, query string, args ...any) (*domain.Order, error) {
	var o domain.Order
	err := tx.Preload("Items").Where(query, args...).First(&o).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return &o, nil
}

func (r *OrderRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.first(r.db.WithContext(ctx), "id = ?", id)
}

func (r *OrderRepo) FindByIdempotencyKey(ctx context.Context, buyerID, key string) (*domain.Order, error) {
	return r.first(r.db.WithContext(ctx), "buyer_id = ? AND idempotency_key = ?", buyerID, key)
}

func (r *OrderRepo) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	var out []domain.Order
	err := r.db.WithContext(ctx).Preload("Items").
		Where("buyer_id = ?", buyerID).Order("created_at desc").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list buyer orders: %w", err)
	}
	return out, nil
}

func (r *OrderRepo) ListByStore(ctx context.Context, storeID string) ([]domain.Order, error) {
	db := r.db.WithContext(ctx)
	sub := db.Model(&domain.OrderItem{}).Select("order_id").Where("store_id = ?", storeID)
	var out []domain.Order
	err := db.Preload("Items").Where("id IN (?)", sub).Order("created_at desc").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list store orders: %w", err)
	}
	return out, nil
}

func (r *OrderRepo) List(ctx context.Context, offset, limit int) ([]domain.Order, int64, error) {
	offset, limit = clampPage(offset, limit)
	db := r.db.WithContext(ctx)
	var total int64
	if err := db.Model(&domain.Order{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	var out []domain.Order
	if err := db.Preload("Items").Order("created_at desc").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return out, total, nil
}

func (r *OrderRepo) Transition(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	var out *domain.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Order{}).Where("id = ? AND status = ?", id, from).Update("status", to)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.Conflict("order is no longer " + string(from))
		}
		o, err := r.first(tx, "id = ?", id)
		if err != nil {
			return err
		}
		if o == nil {
			return domain.NotFound("order not found")
		}
		if to == domain.OrderCancelled {
			// 回补库存；已删除的商品影响 0 行，直接跳过
			for _, ln := range sortedLines(restockLines(o.Items)) {
				err := tx.Model(&domain.Product{}).Where("id = ?", ln.ProductID).
					Update("stock", gorm.Expr("stock + ?", ln.Quantity)).Error
				if err != nil {
					return err
				}
			}
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("transition order: %w", err)
	}
	return out, nil
}
