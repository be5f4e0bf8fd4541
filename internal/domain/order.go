package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// CanTransition 只允许 pending -> completed / cancelled
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	return s == OrderPending && (to == OrderCompleted || to == OrderCancelled)
}

type Order struct {
	ID             string          `gorm:"primaryKey;size:36" json:"id"`
	BuyerID        string          `gorm:"size:36;not null;index;uniqueIndex:idx_orders_buyer_idem,priority:1" json:"userId"`
	Items          []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	Total          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	Status         OrderStatus     `gorm:"size:16;not null;default:pending" json:"status"`
	IdempotencyKey *string         `gorm:"size:64;uniqueIndex:idx_orders_buyer_idem,priority:2" json:"-"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// OrderItem 下单时的快照，之后商品改价/改名不影响
type OrderItem struct {
	ID        string          `gorm:"primaryKey;size:36" json:"id"`
	OrderID   string          `gorm:"size:36;not null;index" json:"orderId"`
	ProductID string          `gorm:"size:36;not null;index" json:"productId"`
	StoreID   string          `gorm:"size:36;not null;index" json:"storeId"`
	Name      string          `gorm:"size:191;not null" json:"name"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Quantity  int             `gorm:"not null" json:"quantity"`
}

// Subtotal = UnitPrice × Quantity
func (it OrderItem) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// SnapshotItem 从当前商品行生成订单明细
func SnapshotItem(p *Product, qty int) OrderItem {
	return OrderItem{
		ProductID: p.ID,
		StoreID:   p.StoreID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  qty,
	}
}

// ComputeTotal 服务端计算订单总额
func ComputeTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// OrderLine 下单请求中的一行（已合并重复商品）
type OrderLine struct {
	ProductID string
	Quantity  int
}

// OrderRepository 查不到时返回 (nil, nil)
type OrderRepository interface {
	// Place 原子执行：逐行条件扣减库存、快照商品、写订单；任一行失败整体回滚
	Place(ctx context.Context, o *Order, lines []OrderLine) error
	FindByID(ctx context.Context, id string) (*Order, error)
	FindByIdempotencyKey(ctx context.Context, buyerID, key string) (*Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]Order, error)
	// ListByStore 按明细快照的 store_id 查询，商品删除后订单仍可见
	ListByStore(ctx context.Context, storeID string) ([]Order, error)
	List(ctx context.Context, offset, limit int) ([]Order, int64, error)
	// Transition 状态从 from 切换到 to；to 为 cancelled 时同一事务回补库存
	Transition(ctx context.Context, id string, from, to OrderStatus) (*Order, error)
}
