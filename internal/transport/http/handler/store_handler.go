package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketplace-api/internal/domain"
	"marketplace-api/internal/service"
	"marketplace-api/internal/transport/http/ez"
)

type StoreHandler struct {
	stores *service.StoreService
	log    *zap.Logger
}

func NewStoreHandler(stores *service.StoreService, l *zap.Logger) *StoreHandler {
	return &StoreHandler{stores: stores, log: l}
}

func (h *StoreHandler) Priority() int { return 20 }

func (h *StoreHandler) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g, h.log)

	ez.RegisterAction(e, ez.Action[service.StoreInput, *domain.Store]{
		Method: http.MethodPost,
		Path:   "/store/create",
		Binder: ez.BindForm,
		Roles:  sellerOnly,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *service.StoreInput) (*domain.Store, error) {
			logo, closer, err := openUpload(c, "logo")
			if err != nil {
				return nil, err
			}
			if closer != nil {
				defer closer.Close()
			}
			return h.stores.Create(c.Request.Context(), me(c).UserID, *in, logo)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Store]{
		Method: http.MethodGet,
		Path:   "/store/seller",
		Binder: ez.BindNone,
		Roles:  sellerOnly,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Store, error) {
			return h.stores.Mine(c.Request.Context(), me(c).UserID)
		},
	})

	ez.RegisterAction(e, ez.Action[service.StoreUpdate, *domain.Store]{
		Method: http.MethodPut,
		Path:   "/store",
		Binder: ez.BindForm,
		Roles:  sellerOnly,
		Handler: func(c *gin.Context, in *service.StoreUpdate) (*domain.Store, error) {
			logo, closer, err := openUpload(c, "logo")
			if err != nil {
				return nil, err
			}
			if closer != nil {
				defer closer.Close()
			}
			return h.stores.Update(c.Request.Context(), me(c).UserID, *in, logo)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, []service.StoreSummary]{
		Method: http.MethodGet,
		Path:   "/stores",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]service.StoreSummary, error) {
			return h.stores.List(c.Request.Context())
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Store]{
		Method: http.MethodGet,
		Path:   "/stores/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Store, error) {
			return h.stores.Get(c.Request.Context(), c.Param("id"))
		},
	})
}
