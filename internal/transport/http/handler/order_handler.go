package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketplace-api/internal/domain"
	"marketplace-api/internal/service"
	"marketplace-api/internal/transport/http/ez"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type OrderHandler struct {
	orders *service.OrderService
	log    *zap.Logger
}

func NewOrderHandler(orders *service.OrderService, l *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, log: l}
}

func (h *OrderHandler) Priority() int { return 40 }

func (h *OrderHandler) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g, h.log)

	ez.RegisterAction(e, ez.Action[service.PlaceOrderInput, *domain.Order]{
		Method: http.MethodPost,
		Path:   "/orders",
		Binder: ez.BindJSON,
		Auth:   true,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *service.PlaceOrderInput) (*domain.Order, error) {
			in.IdempotencyKey = c.GetHeader(HeaderIdempotencyKey)
			o, replayed, err := h.orders.Place(c.Request.Context(), me(c).UserID, *in)
			if err != nil {
				return nil, err
			}
			if replayed {
				ez.SetStatus(c, http.StatusOK)
			}
			return o, nil
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, []service.BuyerOrder]{
		Method: http.MethodGet,
		Path:   "/orders",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) ([]service.BuyerOrder, error) {
			return h.orders.ListForBuyer(c.Request.Context(), me(c).UserID)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *service.BuyerOrder]{
		Method: http.MethodGet,
		Path:   "/orders/:id",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*service.BuyerOrder, error) {
			return h.orders.Get(c.Request.Context(), me(c), c.Param("id"))
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Order]{
		Method: http.MethodPost,
		Path:   "/orders/:id/cancel",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Order, error) {
			return h.orders.Cancel(c.Request.Context(), me(c), c.Param("id"))
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, []service.SellerOrder]{
		Method: http.MethodGet,
		Path:   "/seller/orders",
		Binder: ez.BindNone,
		Roles:  sellerOnly,
		Handler: func(c *gin.Context, _ *struct{}) ([]service.SellerOrder, error) {
			return h.orders.ListForSeller(c.Request.Context(), me(c).UserID)
		},
	})
}
