package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"marketplace-api/internal/core/auth"
	"marketplace-api/internal/core/logger"
	"marketplace-api/internal/domain"
)

const (
	MaxOrderLines        = 100
	MaxIdempotencyKeyLen = 64
)

type OrderService struct {
	orders   domain.OrderRepository
	products domain.ProductRepository
	stores   domain.StoreRepository
	users    domain.UserRepository
	log      *zap.Logger
}

func NewOrderService(orders domain.OrderRepository, products domain.ProductRepository,
	stores domain.StoreRepository, users domain.UserRepository, l *zap.Logger) *OrderService {
	return &OrderService{orders: orders, products: products, stores: stores, users: users, log: l}
}

// OrderItemInput 客户端提交的一行；price/name 仅作参考，不落库
type OrderItemInput struct {
	ProductID string           `json:"productId"`
	Quantity  int              `json:"quantity"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Name      string           `json:"name,omitempty"`
}

type PlaceOrderInput struct {
	Items          []OrderItemInput `json:"items"`
	Total          *decimal.Decimal `json:"total,omitempty"`
	IdempotencyKey string           `json:"-"`
}

// normalizeLines 校验并合并同一商品的多行
func normalizeLines(in PlaceOrderInput) ([]domain.OrderLine, error) {
	var fe fieldErrs
	if len(in.Items) == 0 {
		fe.add("items", "must contain at least one item")
	}
	if len(in.Items) > MaxOrderLines {
		fe.add("items", "must contain at most "+strconv.Itoa(MaxOrderLines)+" items")
	}
	if len(in.IdempotencyKey) > MaxIdempotencyKeyLen {
		fe.add("idempotencyKey", "must be at most 64 characters")
	}
	qty := map[string]int{}
	for i, it := range in.Items {
		p := "items." + strconv.Itoa(i) + "."
		id := strings.TrimSpace(it.ProductID)
		if id == "" {
			fe.add(p+"productId", "is required")
		}
		if it.Quantity < 1 {
			fe.add(p+"quantity", "must be >= 1")
		}
		if id != "" && it.Quantity >= 1 {
			qty[id] += it.Quantity
		}
	}
	if err := fe.err("validation failed"); err != nil {
		return nil, err
	}
	lines := make([]domain.OrderLine, 0, len(qty))
	for id, q := range qty {
		lines = append(lines, domain.OrderLine{ProductID: id, Quantity: q})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

// Place 下单。replayed=true 表示命中幂等键，返回的是之前创建的订单
func (s *OrderService) Place(ctx context.Context, buyerID string, in PlaceOrderInput) (o *domain.Order, replayed bool, err error) {
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	lines, err := normalizeLines(in)
	if err != nil {
		return nil, false, err
	}
	l := logger.FromContext(ctx, s.log)

	if in.IdempotencyKey != "" {
		prev, err := s.orders.FindByIdempotencyKey(ctx, buyerID, in.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if prev != nil {
			return prev, true, nil
		}
	}

	o = &domain.Order{BuyerID: buyerID}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		o.IdempotencyKey = &key
	}
	if err := s.orders.Place(ctx, o, lines); err != nil {
		var ise *domain.InsufficientStockError
		switch {
		case errors.As(err, &ise):
			stockRejections.Inc()
			l.Info("order rejected: insufficient stock",
				zap.String("product_id", ise.ProductID),
				zap.Int("available", ise.Available), zap.Int("requested", ise.Requested))
		case errors.Is(err, domain.ErrDuplicate) && o.IdempotencyKey != nil:
			// 同一幂等键并发提交，另一请求已成功
			prev, ferr := s.orders.FindByIdempotencyKey(ctx, buyerID, *o.IdempotencyKey)
			if ferr == nil && prev != nil {
				return prev, true, nil
			}
		}
		return nil, false, err
	}
	ordersPlaced.Inc()
	if in.Total != nil && !in.Total.Equal(o.Total) {
		l.Warn("client total differs from computed total",
			zap.String("order_id", o.ID),
			zap.String("client_total", in.Total.String()),
			zap.String("total", o.Total.String()))
	}
	l.Info("order placed", zap.String("order_id", o.ID),
		zap.Int("lines", len(o.Items)), zap.String("total", o.Total.String()))
	return o, false, nil
}

type ProductDetails struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Category    string `json:"category"`
}

type StoreDetails struct {
	Name string `json:"name"`
	Logo string `json:"logo"`
}

type BuyerItem struct {
	domain.OrderItem
	ProductDetails *ProductDetails `json:"productDetails"`
	StoreDetails   *StoreDetails   `json:"storeDetails"`
}

// BuyerOrder 买家视角：明细附带商品/店铺当前信息（已删除则为 null）
type BuyerOrder struct {
	domain.Order
	Items []BuyerItem `json:"items"`
}

func (s *OrderService) ListForBuyer(ctx context.Context, buyerID string) ([]BuyerOrder, error) {
	orders, err := s.orders.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	return s.enrichForBuyer(ctx, orders)
}

func (s *OrderService) enrichForBuyer(ctx context.Context, orders []domain.Order) ([]BuyerOrder, error) {
	var pids, sids []string
	seenP, seenS := map[string]bool{}, map[string]bool{}
	for _, o := range orders {
		for _, it := range o.Items {
			if !seenP[it.ProductID] {
				seenP[it.ProductID] = true
				pids = append(pids, it.ProductID)
			}
			if !seenS[it.StoreID] {
				seenS[it.StoreID] = true
				sids = append(sids, it.StoreID)
			}
		}
	}
	products, err := s.products.FindByIDs(ctx, pids)
	if err != nil {
		return nil, err
	}
	stores, err := s.stores.FindByIDs(ctx, sids)
	if err != nil {
		return nil, err
	}
	pm := make(map[string]domain.Product, len(products))
	for _, p := range products {
		pm[p.ID] = p
	}
	sm := make(map[string]domain.Store, len(stores))
	for _, st := range stores {
		sm[st.ID] = st
	}

	out := make([]BuyerOrder, 0, len(orders))
	for _, o := range orders {
		bo := BuyerOrder{Order: o, Items: make([]BuyerItem, 0, len(o.Items))}
		for _, it := range o.Items {
			bi := BuyerItem{OrderItem: it}
			if p, ok := pm[it.ProductID]; ok {
				bi.ProductDetails = &ProductDetails{Name: p.Name, Description: p.Description, Image: p.ImageURL, Category: p.Category}
			}
			if st, ok := sm[it.StoreID]; ok {
				bi.StoreDetails = &StoreDetails{Name: st.Name, Logo: st.LogoURL}
			}
			bo.Items = append(bo.Items, bi)
		}
		out = append(out, bo)
	}
	return out, nil
}

// Get 只有下单人和管理员可见；其他人一律 404
func (s *OrderService) Get(ctx context.Context, who *auth.Identity, id string) (*BuyerOrder, error) {
	o, err := s.visible(ctx, who, id)
	if err != nil {
		return nil, err
	}
	out, err := s.enrichForBuyer(ctx, []domain.Order{*o})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (s *OrderService) visible(ctx context.Context, who *auth.Identity, id string) (*domain.Order, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil || who == nil || (o.BuyerID != who.UserID && who.Role != domain.RoleAdmin) {
		return nil, domain.NotFound("order not found")
	}
	return o, nil
}

// Cancel 下单人取消待处理订单，同一事务回补库存
func (s *OrderService) Cancel(ctx context.Context, who *auth.Identity, id string) (*domain.Order, error) {
	o, err := s.visible(ctx, who, id)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != who.UserID {
		return nil, domain.NotFound("order not found")
	}
	return s.transition(ctx, o, domain.OrderCancelled)
}

func (s *OrderService) transition(ctx context.Context, o *domain.Order, to domain.OrderStatus) (*domain.Order, error) {
	if !o.Status.CanTransition(to) {
		return nil, domain.Conflict("cannot change order from " + string(o.Status) + " to " + string(to))
	}
	out, err := s.orders.Transition(ctx, o.ID, o.Status, to)
	if err != nil {
		return nil, err
	}
	if to == domain.OrderCancelled {
		ordersCancelled.Inc()
	}
	logger.FromContext(ctx, s.log).Info("order status changed",
		zap.String("order_id", o.ID), zap.String("from", string(o.Status)), zap.String("to", string(to)))
	return out, nil
}

type UserDetails struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Address  string `json:"address"`
}

// SellerOrder 卖家视角：只含本店明细和买家信息
type SellerOrder struct {
	domain.Order
	Items       []domain.OrderItem `json:"items"`
	StoreTotal  decimal.Decimal    `json:"storeTotal"`
	UserDetails *UserDetails       `json:"userDetails"`
}

func (s *OrderService) ListForSeller(ctx context.Context, sellerID string) ([]SellerOrder, error) {
	st, err := s.stores.FindByOwner(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return []SellerOrder{}, nil
	}
	orders, err := s.orders.ListByStore(ctx, st.ID)
	if err != nil {
		return nil, err
	}

	var buyerIDs []string
	seen := map[string]bool{}
	for _, o := range orders {
		if !seen[o.BuyerID] {
			seen[o.BuyerID] = true
			buyerIDs = append(buyerIDs, o.BuyerID)
		}
	}
	buyers, err := s.users.FindByIDs(ctx, buyerIDs)
	if err != nil {
		return nil, err
	}
	um := make(map[string]domain.User, len(buyers))
	for _, u := range buyers {
		um[u.ID] = u
	}

	out := make([]SellerOrder, 0, len(orders))
	for _, o := range orders {
		so := SellerOrder{Order: o, Items: []domain.OrderItem{}}
		for _, it := range o.Items {
			if it.StoreID == st.ID {
				so.Items = append(so.Items, it)
			}
		}
		if len(so.Items) == 0 {
			continue
		}
		so.StoreTotal = domain.ComputeTotal(so.Items)
		if u, ok := um[o.BuyerID]; ok {
			so.UserDetails = &UserDetails{Username: u.Username, Email: u.Email, FullName: u.FullName, Address: u.Address}
		}
		out = append(out, so)
	}
	return out, nil
}

func (s *OrderService) ListAll(ctx context.Context, offset, limit int) ([]domain.Order, int64, error) {
	return s.orders.List(ctx, offset, limit)
}

// UpdateStatus 管理员推进订单状态
func (s *OrderService) UpdateStatus(ctx context.Context, id string, to domain.OrderStatus) (*domain.Order, error) {
	if !to.Valid() || to == domain.OrderPending {
		return nil, domain.Invalid("status must be completed or cancelled",
			domain.FieldError{Path: "status", Message: "must be completed or cancelled"})
	}
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.NotFound("order not found")
	}
	return s.transition(ctx, o, to)
}
