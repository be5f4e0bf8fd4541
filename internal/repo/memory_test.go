package repo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-api/internal/domain"
)

func seedProduct(t *testing.T, m *Memory, storeID string, price string, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{StoreID: storeID, Name: "item-" + price, Price: decimal.RequireFromString(price), Stock: stock}
	require.NoError(t, m.Products().Create(context.Background(), p))
	return p
}

func TestMemoryPlaceNoOversell(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedProduct(t, m, "s1", "9.99", 5)

	var ok, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o := &domain.Order{BuyerID: "buyer"}
			err := m.Orders().Place(ctx, o, []domain.OrderLine{{ProductID: p.ID, Quantity: 1}})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), ok.Load())
	assert.Equal(t, int32(15), rejected.Load())
	got, err := m.Products().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
}

func TestMemoryPlaceAllOrNothing(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	a := seedProduct(t, m, "s1", "10.00", 10)
	b := seedProduct(t, m, "s1", "20.00", 1)

	o := &domain.Order{BuyerID: "buyer"}
	err := m.Orders().Place(ctx, o, []domain.OrderLine{
		{ProductID: a.ID, Quantity: 3},
		{ProductID: b.ID, Quantity: 2},
	})
	var ise *domain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, b.ID, ise.ProductID)
	assert.Equal(t, 1, ise.Available)
	assert.Equal(t, 2, ise.Requested)

	ga, _ := m.Products().FindByID(ctx, a.ID)
	gb, _ := m.Products().FindByID(ctx, b.ID)
	assert.Equal(t, 10, ga.Stock)
	assert.Equal(t, 1, gb.Stock)
	orders, _ := m.Orders().ListByBuyer(ctx, "buyer")
	assert.Empty(t, orders)
}

func TestMemoryPlaceMissingProduct(t *testing.T) {
	m := NewMemory()
	err := m.Orders().Place(context.Background(), &domain.Order{BuyerID: "b"},
		[]domain.OrderLine{{ProductID: "nope", Quantity: 1}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryPlaceSnapshotAndTotal(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	a := seedProduct(t, m, "s1", "2.50", 10)
	b := seedProduct(t, m, "s2", "1.25", 10)

	o := &domain.Order{BuyerID: "buyer"}
	require.NoError(t, m.Orders().Place(ctx, o, []domain.OrderLine{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 4},
	}))
	assert.Equal(t, domain.OrderPending, o.Status)
	assert.True(t, decimal.RequireFromString("10.00").Equal(o.Total), o.Total.String())

	// 改价后历史订单不变
	a.Price = decimal.RequireFromString("99.00")
	a.Name = "renamed"
	require.NoError(t, m.Products().Update(ctx, a))

	got, err := m.Orders().FindByID(ctx, o.ID)
	require.NoError(t, err)
	for _, it := range got.Items {
		if it.ProductID == a.ID {
			assert.True(t, decimal.RequireFromString("2.50").Equal(it.UnitPrice))
			assert.Equal(t, "item-2.50", it.Name)
			assert.Equal(t, "s1", it.StoreID)
		}
	}
	assert.True(t, decimal.RequireFromString("10.00").Equal(got.Total))
}

func TestMemoryIdempotencyKeyUnique(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedProduct(t, m, "s1", "1.00", 10)
	key := "k-1"

	require.NoError(t, m.Orders().Place(ctx, &domain.Order{BuyerID: "b", IdempotencyKey: &key},
		[]domain.OrderLine{{ProductID: p.ID, Quantity: 1}}))
	err := m.Orders().Place(ctx, &domain.Order{BuyerID: "b", IdempotencyKey: &key},
		[]domain.OrderLine{{ProductID: p.ID, Quantity: 1}})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	got, _ := m.Products().FindByID(ctx, p.ID)
	assert.Equal(t, 9, got.Stock)

	// 其它买家可以使用相同 key
	require.NoError(t, m.Orders().Place(ctx, &domain.Order{BuyerID: "c", IdempotencyKey: &key},
		[]domain.OrderLine{{ProductID: p.ID, Quantity: 1}}))
}

func TestMemoryTransitionCancelRestocks(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	a := seedProduct(t, m, "s1", "1.00", 5)
	b := seedProduct(t, m, "s1", "1.00", 5)

	o := &domain.Order{BuyerID: "buyer"}
	require.NoError(t, m.Orders().Place(ctx, o, []domain.OrderLine{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 3},
	}))
	// b 被删除后取消，跳过 b
	_, err := m.Products().Delete(ctx, b.ID)
	require.NoError(t, err)

	got, err := m.Orders().Transition(ctx, o.ID, domain.OrderPending, domain.OrderCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, got.Status)
	ga, _ := m.Products().FindByID(ctx, a.ID)
	assert.Equal(t, 5, ga.Stock)

	_, err = m.Orders().Transition(ctx, o.ID, domain.OrderPending, domain.OrderCompleted)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestMemoryAdjustStock(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedProduct(t, m, "s1", "1.00", 3)

	n, err := m.Products().AdjustStock(ctx, p.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = m.Products().AdjustStock(ctx, p.ID, -8)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	n, err = m.Products().AdjustStock(ctx, p.ID, -7)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = m.Products().AdjustStock(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStoresCodesAndCascade(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	s1 := &domain.Store{OwnerID: "u1", Name: "one"}
	s2 := &domain.Store{OwnerID: "u2", Name: "two"}
	require.NoError(t, m.Stores().Create(ctx, s1))
	require.NoError(t, m.Stores().Create(ctx, s2))
	assert.Equal(t, "1001", s1.Code)
	assert.Equal(t, "1002", s2.Code)

	assert.ErrorIs(t, m.Stores().Create(ctx, &domain.Store{OwnerID: "u1"}), domain.ErrDuplicate)

	seedProduct(t, m, s1.ID, "1.00", 1)
	seedProduct(t, m, s1.ID, "2.00", 1)
	keep := seedProduct(t, m, s2.ID, "3.00", 1)

	n, err := m.Stores().DeleteCascade(ctx, s1.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	left, _, _ := m.Products().List(ctx, domain.ProductFilter{})
	require.Len(t, left, 1)
	assert.Equal(t, keep.ID, left[0].ID)

	got, err := m.Stores().FindByCode(ctx, "1001")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryUsersUnique(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Users().Create(ctx, &domain.User{Username: "a", Email: "a@x.io"}))
	assert.ErrorIs(t, m.Users().Create(ctx, &domain.User{Username: "b", Email: "a@x.io"}), domain.ErrDuplicate)
	assert.ErrorIs(t, m.Users().Create(ctx, &domain.User{Username: "a", Email: "b@x.io"}), domain.ErrDuplicate)

	u, err := m.Users().FindByEmail(ctx, "a@x.io")
	require.NoError(t, err)
	name := "Alice"
	got, err := m.Users().UpdateProfile(ctx, u.ID, domain.Profile{FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.FullName)
	assert.Equal(t, "a", got.Username)
}
