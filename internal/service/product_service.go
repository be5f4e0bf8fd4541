package service

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"marketplace-api/internal/core/logger"
	"marketplace-api/internal/domain"
	"marketplace-api/pkg/utils"
)

const (
	recentProducts  = 8
	defaultPageSize = 20
	maxPageSize     = 100
)

type ProductService struct {
	products domain.ProductRepository
	stores   *StoreService
	log      *zap.Logger
}

func NewProductService(products domain.ProductRepository, stores *StoreService, l *zap.Logger) *ProductService {
	return &ProductService{products: products, stores: stores, log: l}
}

type ProductInput struct {
	Name        string           `json:"name"        binding:"required,max=191"`
	Description string           `json:"description" binding:"omitempty,max=5000"`
	Price       *decimal.Decimal `json:"price"       binding:"required"`
	Category    string           `json:"category"    binding:"omitempty,max=64"`
	SKU         string           `json:"sku"         binding:"omitempty,max=64"`
	Stock       int              `json:"stock"       binding:"gte=0"`
	Image       string           `json:"image"       binding:"omitempty,max=512"`
}

type ProductPatch struct {
	Name        *string          `json:"name"        binding:"omitempty,max=191"`
	Description *string          `json:"description" binding:"omitempty,max=5000"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category"    binding:"omitempty,max=64"`
	SKU         *string          `json:"sku"         binding:"omitempty,max=64"`
	Image       *string          `json:"image"       binding:"omitempty,max=512"`
}

type ProductQuery struct {
	Q        string `form:"q"`
	Category string `form:"category"`
	StoreID  string `form:"storeId"`
	Page     int    `form:"page"`
	Size     int    `form:"size"`
}

type ProductPage struct {
	Items []domain.Product `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Size  int              `json:"size"`
}

// validPrice 表单、JSON 与 CSV 导入共用；不做四舍五入
func validPrice(fe *fieldErrs, path string, p decimal.Decimal) {
	if p.IsNegative() {
		fe.add(path, "must be >= 0")
	}
	if !p.Equal(p.Round(2)) {
		fe.add(path, "must have at most 2 decimal places")
	}
}

// ownedStore 卖家自己的店铺
func (s *ProductService) ownedStore(ctx context.Context, sellerID string) (*domain.Store, error) {
	st, err := s.stores.Mine(ctx, sellerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound("create a store first")
		}
		return nil, err
	}
	return st, nil
}

// ownedProduct 商品必须属于卖家的店铺，否则 403
func (s *ProductService) ownedProduct(ctx context.Context, sellerID, id string) (*domain.Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	st, err := s.stores.stores.FindByOwner(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if st == nil || st.ID != p.StoreID {
		return nil, domain.Forbidden("you do not own this product")
	}
	return p, nil
}

func (s *ProductService) Create(ctx context.Context, sellerID string, in ProductInput) (*domain.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	var fe fieldErrs
	if err := fe.check(in); err != nil {
		return nil, err
	}
	if in.Price != nil {
		validPrice(&fe, "price", *in.Price)
	}
	if err := fe.err("validation failed"); err != nil {
		return nil, err
	}
	st, err := s.ownedStore(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	p := &domain.Product{
		ID:          utils.NewID(),
		StoreID:     st.ID,
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price.Round(2),
		Category:    strings.TrimSpace(in.Category),
		SKU:         strings.TrimSpace(in.SKU),
		Stock:       in.Stock,
		ImageURL:    strings.TrimSpace(in.Image),
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}
	s.stores.invalidate(ctx)
	return p, nil
}

func (s *ProductService) Update(ctx context.Context, sellerID, id string, in ProductPatch) (*domain.Product, error) {
	in.Name = trimPtr(in.Name)
	var fe fieldErrs
	if err := fe.check(in); err != nil {
		return nil, err
	}
	if in.Name != nil {
		fe.required("name", *in.Name)
	}
	if in.Price != nil {
		validPrice(&fe, "price", *in.Price)
	}
	if err := fe.err("validation failed"); err != nil {
		return nil, err
	}
	p, err := s.ownedProduct(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		p.Price = in.Price.Round(2)
	}
	if in.Category != nil {
		p.Category = strings.TrimSpace(*in.Category)
	}
	if in.SKU != nil {
		p.SKU = strings.TrimSpace(*in.SKU)
	}
	if in.Image != nil {
		p.ImageURL = strings.TrimSpace(*in.Image)
	}
	if err := s.products.Update(ctx, p); err != nil {
		return nil, err
	}
	s.stores.invalidate(ctx)
	return s.Get(ctx, id)
}

func (s *ProductService) Delete(ctx context.Context, sellerID, id string) error {
	if _, err := s.ownedProduct(ctx, sellerID, id); err != nil {
		return err
	}
	ok, err := s.products.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound("product not found")
	}
	s.stores.invalidate(ctx)
	return nil
}

// AdjustStock 卖家补货/扣减，单条条件更新
func (s *ProductService) AdjustStock(ctx context.Context, sellerID, id string, delta int) (*domain.Product, error) {
	if delta == 0 {
		return nil, domain.Invalid("delta must not be zero", domain.FieldError{Path: "delta", Message: "must not be zero"})
	}
	p, err := s.ownedProduct(ctx, sellerID, id)
	if err != nil {
		return nil, err
	}
	n, err := s.products.AdjustStock(ctx, id, delta)
	if err != nil {
		return nil, err
	}
	p.Stock = n
	logger.FromContext(ctx, s.log).Info("stock adjusted",
		zap.String("product_id", id), zap.Int("delta", delta), zap.Int("stock", n))
	return p, nil
}

func (s *ProductService) Get(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.NotFound("product not found")
	}
	return p, nil
}

func (s *ProductService) List(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Size < 1 {
		q.Size = defaultPageSize
	}
	if q.Size > maxPageSize {
		q.Size = maxPageSize
	}
	items, total, err := s.products.List(ctx, domain.ProductFilter{
		Query:    q.Q,
		Category: strings.TrimSpace(q.Category),
		StoreID:  strings.TrimSpace(q.StoreID),
		Offset:   (q.Page - 1) * q.Size,
		Limit:    q.Size,
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Product{}
	}
	return &ProductPage{Items: items, Total: total, Page: q.Page, Size: q.Size}, nil
}

func (s *ProductService) Recent(ctx context.Context) ([]domain.Product, error) {
	page, err := s.List(ctx, ProductQuery{Size: recentProducts})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// ListByStore 店铺 id 或编号
func (s *ProductService) ListByStore(ctx context.Context, idOrCode string) ([]domain.Product, error) {
	st, err := s.stores.Get(ctx, idOrCode)
	if err != nil {
		return nil, err
	}
	return s.nonNil(s.products.ListByStore(ctx, st.ID))
}

func (s *ProductService) Mine(ctx context.Context, sellerID string) ([]domain.Product, error) {
	st, err := s.ownedStore(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	return s.nonNil(s.products.ListByStore(ctx, st.ID))
}

func (s *ProductService) nonNil(ps []domain.Product, err error) ([]domain.Product, error) {
	if err != nil {
		return nil, err
	}
	if ps == nil {
		ps = []domain.Product{}
	}
	return ps, nil
}

// ImportCSV 校验全部行后整批写入；任一行不合法则整个文件拒绝
func (s *ProductService) ImportCSV(ctx context.Context, sellerID, storeID string, r io.Reader) (int, error) {
	st, err := s.stores.Get(ctx, storeID)
	if err != nil {
		return 0, err
	}
	if st.OwnerID != sellerID {
		return 0, domain.Forbidden("you do not own this store")
	}
	rows, err := ParseProductCSV(r)
	if err != nil {
		return 0, err
	}
	ps := make([]domain.Product, len(rows))
	for i, row := range rows {
		ps[i] = domain.Product{
			ID:          utils.NewID(),
			StoreID:     st.ID,
			Name:        row.Name,
			Description: row.Description,
			Price:       row.Price,
			Category:    row.Category,
			SKU:         row.SKU,
			Stock:       row.Stock,
			ImageURL:    row.Image,
		}
	}
	if err := s.products.CreateBatch(ctx, ps); err != nil {
		return 0, err
	}
	s.stores.invalidate(ctx)
	logger.FromContext(ctx, s.log).Info("products imported",
		zap.String("store_id", st.ID), zap.Int("count", len(ps)))
	return len(ps), nil
}
