package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"marketplace-api/internal/domain"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func productRow(id string, stock int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "store_id", "name", "price", "stock"}).
		AddRow(id, "s1", "lamp", "12.50", stock)
}

func TestProductRepoAdjustStock(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewProductRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "products" SET "stock"=stock \+ \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "products" WHERE id = \$1`).
		WillReturnRows(productRow("p1", 7))
	mock.ExpectCommit()

	n, err := r.AdjustStock(context.Background(), "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepoAdjustStockInsufficient(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewProductRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "products" SET "stock"=stock \+ \$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "products" WHERE id = \$1`).
		WillReturnRows(productRow("p1", 1))
	mock.ExpectRollback()

	_, err := r.AdjustStock(context.Background(), "p1", -3)
	var ise *domain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 1, ise.Available)
	assert.Equal(t, 3, ise.Requested)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepoAdjustStockNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewProductRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "products"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "products"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := r.AdjustStock(context.Background(), "p1", -1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepoPlaceRollsBackOnShortStock(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewOrderRepo(db)

	mock.ExpectBegin()
	// 按 id 排序：a 先扣减成功，b 失败导致整体回滚
	mock.ExpectExec(`UPDATE "products" SET "stock"=stock - \$1`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "products"`).WillReturnRows(productRow("a", 0))
	mock.ExpectExec(`UPDATE "products" SET "stock"=stock - \$1`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "products"`).WillReturnRows(productRow("b", 1))
	mock.ExpectRollback()

	err := r.Place(context.Background(), &domain.Order{BuyerID: "u"}, []domain.OrderLine{
		{ProductID: "b", Quantity: 5},
		{ProductID: "a", Quantity: 1},
	})
	var ise *domain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, "b", ise.ProductID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepoPlaceCommitsSnapshot(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewOrderRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "products" SET "stock"=stock - \$1`).
		WithArgs(2, sqlmock.AnyArg(), "a", 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "products" WHERE id = \$1`).WillReturnRows(productRow("a", 3))
	mock.ExpectExec(`INSERT INTO "orders"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "order_items"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	o := &domain.Order{BuyerID: "u"}
	require.NoError(t, r.Place(context.Background(), o, []domain.OrderLine{{ProductID: "a", Quantity: 2}}))
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, domain.OrderPending, o.Status)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "s1", o.Items[0].StoreID)
	assert.Equal(t, "lamp", o.Items[0].Name)
	assert.Equal(t, "25", o.Total.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepoCancelRestocks(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewOrderRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "orders" SET "status"=\$1`).
		WithArgs(domain.OrderCancelled, sqlmock.AnyArg(), "o1", domain.OrderPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "buyer_id", "total", "status"}).
			AddRow("o1", "u", "7.00", "cancelled"))
	mock.ExpectQuery(`SELECT \* FROM "order_items" WHERE "order_items"."order_id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "store_id", "name", "unit_price", "quantity"}).
			AddRow("i2", "o1", "b", "s1", "mug", "1.00", 3).
			AddRow("i1", "o1", "a", "s1", "lamp", "2.00", 2))
	// 按商品 id 顺序回补
	mock.ExpectExec(`UPDATE "products" SET "stock"=stock \+ \$1`).
		WithArgs(2, sqlmock.AnyArg(), "a").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "products" SET "stock"=stock \+ \$1`).
		WithArgs(3, sqlmock.AnyArg(), "b").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	o, err := r.Transition(context.Background(), "o1", domain.OrderPending, domain.OrderCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, o.Status)
	assert.Len(t, o.Items, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepoTransitionLostRace(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewOrderRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "orders" SET "status"=\$1`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := r.Transition(context.Background(), "o1", domain.OrderPending, domain.OrderCancelled)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoCreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewUserRepo(db)

	mock.ExpectExec(`INSERT INTO "users"`).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "idx_users_email" (SQLSTATE 23505)`))

	err := r.Create(context.Background(), &domain.User{ID: "u1", Username: "a", Email: "a@x.io", Role: domain.RoleUser})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoFindMissing(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewUserRepo(db)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	u, err := r.FindByEmail(context.Background(), "nobody@x.io")
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRepoDeleteCascade(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewStoreRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "products" WHERE store_id = \$1`).WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM "stores" WHERE id = \$1`).WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := r.DeleteCascade(context.Background(), "s1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
