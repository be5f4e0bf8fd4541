package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"marketplace-api/internal/core/cache"
	"marketplace-api/internal/core/logger"
	"marketplace-api/internal/core/storage"
	"marketplace-api/internal/domain"
	"marketplace-api/pkg/utils"
)

const (
	storeListKey    = "stores:list"
	storePreviewLen = 4
)

type StoreService struct {
	stores   domain.StoreRepository
	products domain.ProductRepository
	files    storage.ObjectStore
	cache    *cache.Cache
	listTTL  time.Duration
	log      *zap.Logger
}

func NewStoreService(stores domain.StoreRepository, products domain.ProductRepository,
	files storage.ObjectStore, c *cache.Cache, listTTL time.Duration, l *zap.Logger) *StoreService {
	return &StoreService{stores: stores, products: products, files: files, cache: c, listTTL: listTTL, log: l}
}

type StoreInput struct {
	Name        string `form:"name"        binding:"required,max=128"`
	Description string `form:"description" binding:"omitempty,max=2000"`
}

type StoreUpdate struct {
	Name        *string `form:"name"        binding:"omitempty,max=128"`
	Description *string `form:"description" binding:"omitempty,max=2000"`
}

// StoreSummary 公开列表项
type StoreSummary struct {
	domain.Store
	ProductCount int64            `json:"productCount"`
	Products     []ProductPreview `json:"products"`
}

// ProductPreview 列表缓存里的商品预览；不含库存，下单/取消无需失效缓存
type ProductPreview struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	ImageURL string          `json:"image"`
}

func (s *StoreService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, storeListKey); err != nil {
		logger.FromContext(ctx, s.log).Warn("store list cache invalidate failed", zap.Error(err))
	}
}

func (s *StoreService) putLogo(ctx context.Context, logo *Upload) (string, error) {
	if logo == nil {
		return "", nil
	}
	ext, err := logo.logoExt()
	if err != nil {
		return "", err
	}
	return s.files.Put(ctx, "logos/"+utils.NewID()+ext, logoExts[ext], logo.Body, logo.Size)
}

func (s *StoreService) dropLogo(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := s.files.Delete(ctx, url); err != nil {
		logger.FromContext(ctx, s.log).Warn("logo delete failed", zap.String("url", url), zap.Error(err))
	}
}

func (s *StoreService) Create(ctx context.Context, ownerID string, in StoreInput, logo *Upload) (*domain.Store, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	var fe fieldErrs
	if err := fe.check(in); err != nil {
		return nil, err
	}
	if err := fe.err("validation failed"); err != nil {
		return nil, err
	}
	if logo != nil {
		if _, err := logo.logoExt(); err != nil {
			return nil, err
		}
	}

	if cur, err := s.stores.FindByOwner(ctx, ownerID); err != nil {
		return nil, err
	} else if cur != nil {
		return nil, domain.Conflict("user already has a store")
	}

	url, err := s.putLogo(ctx, logo)
	if err != nil {
		return nil, err
	}
	st := &domain.Store{ID: utils.NewID(), OwnerID: ownerID, Name: in.Name, Description: in.Description, LogoURL: url}
	if err := s.stores.Create(ctx, st); err != nil {
		s.dropLogo(ctx, url)
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.Conflict("user already has a store")
		}
		return nil, err
	}
	s.invalidate(ctx)
	logger.FromContext(ctx, s.log).Info("store created",
		zap.String("store_id", st.ID), zap.String("code", st.Code))
	return st, nil
}

func (s *StoreService) Mine(ctx context.Context, ownerID string) (*domain.Store, error) {
	st, err := s.stores.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, domain.NotFound("store not found")
	}
	return st, nil
}

func (s *StoreService) Update(ctx context.Context, ownerID string, in StoreUpdate, logo *Upload) (*domain.Store, error) {
	in.Name, in.Description = trimPtr(in.Name), trimPtr(in.Description)
	var fe fieldErrs
	if err := fe.check(in); err != nil {
		return nil, err
	}
	if in.Name != nil {
		fe.required("name", *in.Name)
	}
	if err := fe.err("validation failed"); err != nil {
		return nil, err
	}
	if logo != nil {
		if _, err := logo.logoExt(); err != nil {
			return nil, err
		}
	}

	st, err := s.Mine(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		st.Name = *in.Name
	}
	if in.Description != nil {
		st.Description = *in.Description
	}
	oldLogo := ""
	if logo != nil {
		url, err := s.putLogo(ctx, logo)
		if err != nil {
			return nil, err
		}
		oldLogo, st.LogoURL = st.LogoURL, url
	}
	if err := s.stores.Update(ctx, st); err != nil {
		return nil, err
	}
	s.dropLogo(ctx, oldLogo)
	s.invalidate(ctx)
	return s.stores.FindByID(ctx, st.ID)
}

// Get 支持 id 或店铺编号
func (s *StoreService) Get(ctx context.Context, idOrCode string) (*domain.Store, error) {
	var (
		st  *domain.Store
		err error
	)
	if utils.IsID(idOrCode) {
		st, err = s.stores.FindByID(ctx, idOrCode)
	} else {
		st, err = s.stores.FindByCode(ctx, idOrCode)
	}
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, domain.NotFound("store not found")
	}
	return st, nil
}

// List 公开店铺列表（带商品数和预览），结果短暂缓存
func (s *StoreService) List(ctx context.Context) ([]StoreSummary, error) {
	out, err := cache.Remember(ctx, s.cache, storeListKey, s.listTTL, s.summaries)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []StoreSummary{}
	}
	return out, nil
}

func (s *StoreService) summaries(ctx context.Context) ([]StoreSummary, error) {
	stores, err := s.stores.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(stores))
	for i, st := range stores {
		ids[i] = st.ID
	}
	counts, err := s.products.CountByStores(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]StoreSummary, 0, len(stores))
	for _, st := range stores {
		sum := StoreSummary{Store: st, ProductCount: counts[st.ID], Products: []ProductPreview{}}
		if sum.ProductCount > 0 {
			ps, _, err := s.products.List(ctx, domain.ProductFilter{StoreID: st.ID, Limit: storePreviewLen})
			if err != nil {
				return nil, err
			}
			for _, p := range ps {
				sum.Products = append(sum.Products, ProductPreview{
					ID: p.ID, Name: p.Name, Price: p.Price, Category: p.Category, ImageURL: p.ImageURL,
				})
			}
		}
		out = append(out, sum)
	}
	return out, nil
}

// Delete 管理员删除店铺及其全部商品
func (s *StoreService) Delete(ctx context.Context, id string) (int64, error) {
	st, err := s.stores.FindByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if st == nil {
		return 0, domain.NotFound("store not found")
	}
	n, err := s.stores.DeleteCascade(ctx, id)
	if err != nil {
		return 0, err
	}
	s.dropLogo(ctx, st.LogoURL)
	s.invalidate(ctx)
	logger.FromContext(ctx, s.log).Info("store deleted",
		zap.String("store_id", id), zap.Int64("products_removed", n))
	return n, nil
}
