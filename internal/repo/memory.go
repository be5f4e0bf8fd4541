package repo

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"marketplace-api/internal/domain"
	"marketplace-api/pkg/utils"
)

// Memory 进程内存储（db.driver=memory / 测试），单实例使用。
// 所有实体共用一把锁，下单与回补库存在同一临界区内完成。
type Memory struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	stores   map[string]domain.Store
	products map[string]domain.Product
	orders   map[string]domain.Order
	lastCode int
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:    map[string]domain.User{},
		stores:   map[string]domain.Store{},
		products: map[string]domain.Product{},
		orders:   map[string]domain.Order{},
		lastCode: domain.FirstStoreCode - 1,
		now:      time.Now,
	}
}

func (m *Memory) Users() *MemoryUsers       { return &MemoryUsers{m} }
func (m *Memory) Stores() *MemoryStores     { return &MemoryStores{m} }
func (m *Memory) Products() *MemoryProducts { return &MemoryProducts{m} }
func (m *Memory) Orders() *MemoryOrders     { return &MemoryOrders{m} }

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	if o.IdempotencyKey != nil {
		k := *o.IdempotencyKey
		o.IdempotencyKey = &k
	}
	return o
}

func page[T any](all []T, offset, limit int) []T {
	offset, limit = clampPage(offset, limit)
	if offset >= len(all) {
		return []T{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

// ---- users ----

type MemoryUsers struct{ m *Memory }

var _ domain.UserRepository = (*MemoryUsers)(nil)

func (r *MemoryUsers) Create(_ context.Context, u *domain.User) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.users {
		if x.Email == u.Email || x.Username == u.Username {
			return domain.ErrDuplicate
		}
	}
	if u.ID == "" {
		u.ID = utils.NewID()
	}
	now := m.now()
	u.CreatedAt, u.UpdatedAt = now, now
	m.users[u.ID] = *u
	return nil
}

func (r *MemoryUsers) find(match func(domain.User) bool) *domain.User {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, u := range r.m.users {
		if match(u) {
			return &u
		}
	}
	return nil
}

func (r *MemoryUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	if u, ok := r.m.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (r *MemoryUsers) FindByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var out []domain.User
	for _, id := range ids {
		if u, ok := r.m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *MemoryUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Email == email }), nil
}

func (r *MemoryUsers) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username }), nil
}

func (r *MemoryUsers) List(_ context.Context, offset, limit int) ([]domain.User, int64, error) {
	r.m.mu.RLock()
	all := make([]domain.User, 0, len(r.m.users))
	for _, u := range r.m.users {
		all = append(all, u)
	}
	r.m.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, offset, limit), int64(len(all)), nil
}

func (r *MemoryUsers) UpdateProfile(_ context.Context, id string, p domain.Profile) (*domain.User, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	p.Apply(&u)
	u.UpdatedAt = m.now()
	m.users[id] = u
	return &u, nil
}

// ---- stores ----

type MemoryStores struct{ m *Memory }

var _ domain.StoreRepository = (*MemoryStores)(nil)

func (r *MemoryStores) Create(_ context.Context, s *domain.Store) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.stores {
		if x.OwnerID == s.OwnerID {
			return domain.ErrDuplicate
		}
	}
	if s.ID == "" {
		s.ID = utils.NewID()
	}
	m.lastCode++
	s.Code = strconv.Itoa(m.lastCode)
	now := m.now()
	s.CreatedAt, s.UpdatedAt = now, now
	m.stores[s.ID] = *s
	return nil
}

func (r *MemoryStores) find(match func(domain.Store) bool) *domain.Store {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, s := range r.m.stores {
		if match(s) {
			return &s
		}
	}
	return nil
}

func (r *MemoryStores) FindByID(_ context.Context, id string) (*domain.Store, error) {
	return r.find(func(s domain.Store) bool { return s.ID == id }), nil
}

func (r *MemoryStores) FindByCode(_ context.Context, code string) (*domain.Store, error) {
	return r.find(func(s domain.Store) bool { return s.Code == code }), nil
}

func (r *MemoryStores) FindByOwner(_ context.Context, ownerID string) (*domain.Store, error) {
	return r.find(func(s domain.Store) bool { return s.OwnerID == ownerID }), nil
}

func (r *MemoryStores) FindByIDs(_ context.Context, ids []string) ([]domain.Store, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var out []domain.Store
	for _, id := range ids {
		if s, ok := r.m.stores[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *MemoryStores) List(_ context.Context) ([]domain.Store, error) {
	r.m.mu.RLock()
	out := make([]domain.Store, 0, len(r.m.stores))
	for _, s := range r.m.stores {
		out = append(out, s)
	}
	r.m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.Atoi(out[i].Code)
		b, _ := strconv.Atoi(out[j].Code)
		return a > b
	})
	return out, nil
}

func (r *MemoryStores) Update(_ context.Context, s *domain.Store) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.stores[s.ID]
	if !ok {
		return domain.NotFound("store not found")
	}
	cur.Name, cur.Description, cur.LogoURL = s.Name, s.Description, s.LogoURL
	cur.UpdatedAt = m.now()
	m.stores[s.ID] = cur
	return nil
}

func (r *MemoryStores) DeleteCascade(_ context.Context, id string) (int64, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stores[id]; !ok {
		return 0, domain.NotFound("store not found")
	}
	var n int64
	for pid, p := range m.products {
		if p.StoreID == id {
			delete(m.products, pid)
			n++
		}
	}
	delete(m.stores, id)
	return n, nil
}

// ---- products ----

type MemoryProducts struct{ m *Memory }

var _ domain.ProductRepository = (*MemoryProducts)(nil)

func (r *MemoryProducts) Create(_ context.Context, p *domain.Product) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	r.insert(p)
	return nil
}

func (r *MemoryProducts) insert(p *domain.Product) {
	if p.ID == "" {
		p.ID = utils.NewID()
	}
	now := r.m.now()
	p.CreatedAt, p.UpdatedAt = now, now
	r.m.products[p.ID] = *p
}

func (r *MemoryProducts) CreateBatch(_ context.Context, ps []domain.Product) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range ps {
		r.insert(&ps[i])
	}
	return nil
}

func (r *MemoryProducts) FindByID(_ context.Context, id string) (*domain.Product, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	if p, ok := r.m.products[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (r *MemoryProducts) FindByIDs(_ context.Context, ids []string) ([]domain.Product, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var out []domain.Product
	for _, id := range ids {
		if p, ok := r.m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *MemoryProducts) sorted(match func(domain.Product) bool) []domain.Product {
	r.m.mu.RLock()
	var out []domain.Product
	for _, p := range r.m.products {
		if match(p) {
			out = append(out, p)
		}
	}
	r.m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *MemoryProducts) List(_ context.Context, f domain.ProductFilter) ([]domain.Product, int64, error) {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	all := r.sorted(func(p domain.Product) bool {
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) &&
			!strings.Contains(strings.ToLower(p.Description), q) {
			return false
		}
		if f.Category != "" && p.Category != f.Category {
			return false
		}
		return f.StoreID == "" || p.StoreID == f.StoreID
	})
	return page(all, f.Offset, f.Limit), int64(len(all)), nil
}

func (r *MemoryProducts) ListByStore(_ context.Context, storeID string) ([]domain.Product, error) {
	return r.sorted(func(p domain.Product) bool { return p.StoreID == storeID }), nil
}

func (r *MemoryProducts) CountByStores(_ context.Context, storeIDs []string) (map[string]int64, error) {
	want := make(map[string]bool, len(storeIDs))
	for _, id := range storeIDs {
		want[id] = true
	}
	out := make(map[string]int64, len(storeIDs))
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, p := range r.m.products {
		if want[p.StoreID] {
			out[p.StoreID]++
		}
	}
	return out, nil
}

func (r *MemoryProducts) Update(_ context.Context, p *domain.Product) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.products[p.ID]
	if !ok {
		return domain.NotFound("product not found")
	}
	cur.Name, cur.Description, cur.Price = p.Name, p.Description, p.Price
	cur.Category, cur.SKU, cur.ImageURL = p.Category, p.SKU, p.ImageURL
	cur.UpdatedAt = m.now()
	m.products[p.ID] = cur
	return nil
}

func (r *MemoryProducts) Delete(_ context.Context, id string) (bool, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return false, nil
	}
	delete(m.products, id)
	return true, nil
}

func (r *MemoryProducts) AdjustStock(_ context.Context, id string, delta int) (int, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return 0, domain.NotFound("product not found")
	}
	if p.Stock+delta < 0 {
		return 0, &domain.InsufficientStockError{ProductID: id, Available: p.Stock, Requested: -delta}
	}
	p.Stock += delta
	p.UpdatedAt = m.now()
	m.products[id] = p
	return p.Stock, nil
}

// ---- orders ----

type MemoryOrders struct{ m *Memory }

var _ domain.OrderRepository = (*MemoryOrders)(nil)

func (r *MemoryOrders) Place(_ context.Context, o *domain.Order, lines []domain.OrderLine) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.IdempotencyKey != nil {
		for _, x := range m.orders {
			if x.BuyerID == o.BuyerID && x.IdempotencyKey != nil && *x.IdempotencyKey == *o.IdempotencyKey {
				return domain.ErrDuplicate
			}
		}
	}
	// 先整体校验，再统一扣减：校验失败时不留下任何修改
	lines = sortedLines(lines)
	items := make([]domain.OrderItem, 0, len(lines))
	for _, ln := range lines {
		p, ok := m.products[ln.ProductID]
		if !ok {
			return domain.NotFound("product not found: " + ln.ProductID)
		}
		if p.Stock < ln.Quantity {
			return &domain.InsufficientStockError{ProductID: ln.ProductID, Available: p.Stock, Requested: ln.Quantity}
		}
		items = append(items, domain.SnapshotItem(&p, ln.Quantity))
	}
	now := m.now()
	for _, ln := range lines {
		p := m.products[ln.ProductID]
		p.Stock -= ln.Quantity
		p.UpdatedAt = now
		m.products[ln.ProductID] = p
	}
	finishOrder(o, items)
	o.CreatedAt, o.UpdatedAt = now, now
	m.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r *MemoryOrders) FindByID(_ context.Context, id string) (*domain.Order, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	if o, ok := r.m.orders[id]; ok {
		c := cloneOrder(o)
		return &c, nil
	}
	return nil, nil
}

func (r *MemoryOrders) FindByIdempotencyKey(_ context.Context, buyerID, key string) (*domain.Order, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, o := range r.m.orders {
		if o.BuyerID == buyerID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			c := cloneOrder(o)
			return &c, nil
		}
	}
	return nil, nil
}

func (r *MemoryOrders) sorted(match func(domain.Order) bool) []domain.Order {
	r.m.mu.RLock()
	var out []domain.Order
	for _, o := range r.m.orders {
		if match(o) {
			out = append(out, cloneOrder(o))
		}
	}
	r.m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *MemoryOrders) ListByBuyer(_ context.Context, buyerID string) ([]domain.Order, error) {
	return r.sorted(func(o domain.Order) bool { return o.BuyerID == buyerID }), nil
}

func (r *MemoryOrders) ListByStore(_ context.Context, storeID string) ([]domain.Order, error) {
	return r.sorted(func(o domain.Order) bool {
		for _, it := range o.Items {
			if it.StoreID == storeID {
				return true
			}
		}
		return false
	}), nil
}

func (r *MemoryOrders) List(_ context.Context, offset, limit int) ([]domain.Order, int64, error) {
	all := r.sorted(func(domain.Order) bool { return true })
	return page(all, offset, limit), int64(len(all)), nil
}

func (r *MemoryOrders) Transition(_ context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.NotFound("order not found")
	}
	if o.Status != from {
		return nil, domain.Conflict("order is no longer " + string(from))
	}
	now := m.now()
	if to == domain.OrderCancelled {
		for _, it := range o.Items {
			p, ok := m.products[it.ProductID]
			if !ok {
				continue
			}
			p.Stock += it.Quantity
			p.UpdatedAt = now
			m.products[it.ProductID] = p
		}
	}
	o.Status = to
	o.UpdatedAt = now
	m.orders[id] = o
	c := cloneOrder(o)
	return &c, nil
}
