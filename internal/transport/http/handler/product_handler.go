package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketplace-api/internal/domain"
	"marketplace-api/internal/service"
	"marketplace-api/internal/transport/http/ez"
)

type ProductHandler struct {
	products *service.ProductService
	log      *zap.Logger
}

func NewProductHandler(products *service.ProductService, l *zap.Logger) *ProductHandler {
	return &ProductHandler{products: products, log: l}
}

func (h *ProductHandler) Priority() int { return 30 }

type stockIn struct {
	Delta int `json:"delta" binding:"required"`
}

type importOut struct {
	Imported int `json:"imported"`
}

func (h *ProductHandler) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g, h.log)

	ez.RegisterAction(e, ez.Action[service.ProductQuery, *service.ProductPage]{
		Method: http.MethodGet,
		Path:   "/products",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *service.ProductQuery) (*service.ProductPage, error) {
			return h.products.List(c.Request.Context(), *in)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, []domain.Product]{
		Method: http.MethodGet,
		Path:   "/products/recent",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.Product, error) {
			return h.products.Recent(c.Request.Context())
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, []domain.Product]{
		Method: http.MethodGet,
		Path:   "/products/mine",
		Binder: ez.BindNone,
		Roles:  sellerOnly,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.Product, error) {
			return h.products.Mine(c.Request.Context(), me(c).UserID)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, []domain.Product]{
		Method: http.MethodGet,
		Path:   "/products/store/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.Product, error) {
			return h.products.ListByStore(c.Request.Context(), c.Param("id"))
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Product]{
		Method: http.MethodGet,
		Path:   "/products/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Product, error) {
			return h.products.Get(c.Request.Context(), c.Param("id"))
		},
	})

	ez.RegisterAction(e, ez.Action[service.ProductInput, *domain.Product]{
		Method: http.MethodPost,
		Path:   "/products",
		Binder: ez.BindJSON,
		Roles:  sellerOnly,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *service.ProductInput) (*domain.Product, error) {
			return h.products.Create(c.Request.Context(), me(c).UserID, *in)
		},
	})

	ez.RegisterAction(e, ez.Action[service.ProductPatch, *domain.Product]{
		Method: http.MethodPut,
		Path:   "/products/:id",
		Binder: ez.BindJSON,
		Roles:  sellerOnly,
		Handler: func(c *gin.Context, in *service.ProductPatch) (*domain.Product, error) {
			return h.products.Update(c.Request.Context(), me(c).UserID, c.Param("id"), *in)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/products/:id",
		Binder: ez.BindNone,
		Roles:  sellerOnly,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			if err := h.products.Delete(c.Request.Context(), me(c).UserID, c.Param("id")); err != nil {
				return nil, err
			}
			return gin.H{"deleted": true}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[stockIn, *domain.Product]{
		Method: http.MethodPost,
		Path:   "/products/:id/stock",
		Binder: ez.BindJSON,
		Roles:  sellerOnly,
		Handler: func(c *gin.Context, in *stockIn) (*domain.Product, error) {
			return h.products.AdjustStock(c.Request.Context(), me(c).UserID, c.Param("id"), in.Delta)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, importOut]{
		Method: http.MethodPost,
		Path:   "/products/csv-upload/:storeId",
		Binder: ez.BindNone,
		Roles:  sellerOnly,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, _ *struct{}) (importOut, error) {
			fh, err := c.FormFile("csvFile")
			if err != nil {
				return importOut{}, domain.Invalid("csvFile is required",
					domain.FieldError{Path: "csvFile", Message: "is required"})
			}
			if !strings.EqualFold(filepath.Ext(fh.Filename), ".csv") {
				return importOut{}, domain.Invalid("only .csv files are allowed",
					domain.FieldError{Path: "csvFile", Message: "must be a .csv file"})
			}
			up, closer, err := open(fh)
			if err != nil {
				return importOut{}, err
			}
			defer closer.Close()
			n, err := h.products.ImportCSV(c.Request.Context(), me(c).UserID, c.Param("storeId"), up.Body)
			if err != nil {
				return importOut{}, err
			}
			return importOut{Imported: n}, nil
		},
	})
}
