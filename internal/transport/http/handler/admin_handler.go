package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketplace-api/internal/domain"
	"marketplace-api/internal/service"
	"marketplace-api/internal/transport/http/ez"
)

// AdminHandler 管理端接口，全部要求 admin 角色
type AdminHandler struct {
	users  *service.UserService
	stores *service.StoreService
	orders *service.OrderService
	log    *zap.Logger
}

func NewAdminHandler(users *service.UserService, stores *service.StoreService, orders *service.OrderService, l *zap.Logger) *AdminHandler {
	return &AdminHandler{users: users, stores: stores, orders: orders, log: l}
}

type statusIn struct {
	Status domain.OrderStatus `json:"status" binding:"required,oneof=completed cancelled"`
}

type deleteStoreOut struct {
	Deleted         bool  `json:"deleted"`
	ProductsRemoved int64 `json:"productsRemoved"`
}

func (h *AdminHandler) MountAdmin(g *gin.RouterGroup) {
	e := ez.New(g, h.log)

	ez.RegisterAction(e, ez.Action[Page, PageOut[domain.User]]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: ez.BindQuery,
		Roles:  adminOnly,
		Handler: func(c *gin.Context, in *Page) (PageOut[domain.User], error) {
			us, total, err := h.users.List(c.Request.Context(), in.Offset, in.Limit)
			if err != nil {
				return PageOut[domain.User]{}, err
			}
			return pageOf(us, total), nil
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, []service.StoreSummary]{
		Method: http.MethodGet,
		Path:   "/stores",
		Binder: ez.BindNone,
		Roles:  adminOnly,
		Handler: func(c *gin.Context, _ *struct{}) ([]service.StoreSummary, error) {
			return h.stores.List(c.Request.Context())
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, deleteStoreOut]{
		Method: http.MethodDelete,
		Path:   "/stores/:id",
		Binder: ez.BindNone,
		Roles:  adminOnly,
		Handler: func(c *gin.Context, _ *struct{}) (deleteStoreOut, error) {
			n, err := h.stores.Delete(c.Request.Context(), c.Param("id"))
			if err != nil {
				return deleteStoreOut{}, err
			}
			return deleteStoreOut{Deleted: true, ProductsRemoved: n}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[Page, PageOut[domain.Order]]{
		Method: http.MethodGet,
		Path:   "/orders",
		Binder: ez.BindQuery,
		Roles:  adminOnly,
		Handler: func(c *gin.Context, in *Page) (PageOut[domain.Order], error) {
			list, total, err := h.orders.ListAll(c.Request.Context(), in.Offset, in.Limit)
			if err != nil {
				return PageOut[domain.Order]{}, err
			}
			return pageOf(list, total), nil
		},
	})

	ez.RegisterAction(e, ez.Action[statusIn, *domain.Order]{
		Method: http.MethodPost,
		Path:   "/orders/:id/status",
		Binder: ez.BindJSON,
		Roles:  adminOnly,
		Handler: func(c *gin.Context, in *statusIn) (*domain.Order, error) {
			return h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), in.Status)
		},
	})
}
