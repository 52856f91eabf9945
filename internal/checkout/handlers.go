package checkout

//go:generate mockgen -source=handlers.go -destination=mock_order_service.go -package=checkout

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/ksred/curio-api/internal/types"
	"github.com/ksred/curio-api/pkg/middleware"
	"github.com/ksred/curio-api/pkg/response"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// OrderService is the part of Service the HTTP layer depends on
type OrderService interface {
	Checkout(ctx context.Context, principal types.Principal, req Request) (*Result, error)
	GetOrder(ctx context.Context, principal types.Principal, orderID uint) (*types.Order, error)
	ListOrders(ctx context.Context, principal types.Principal) ([]types.Order, error)
}

// GinHandlers contains HTTP handlers for buyer order endpoints
type GinHandlers struct {
	service OrderService
}

func NewGinHandlers(service OrderService) *GinHandlers {
	return &GinHandlers{service: service}
}

// CreateOrderHandler handles POST /orders. The Idempotency-Key header is
// optional; repeating it returns the original order.
func (h *GinHandlers) CreateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.GetPrincipal(c)
		if !ok {
			response.Unauthorized(c, "Missing authentication")
			return
		}

		var req Request
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
		req.IdempotencyKey = c.GetHeader(IdempotencyKeyHeader)

		result, err := h.service.Checkout(c.Request.Context(), principal, req)
		response.Handle(c, result, err)
	}
}

// GetOrderHandler handles GET /orders/:order_id
func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.GetPrincipal(c)
		if !ok {
			response.Unauthorized(c, "Missing authentication")
			return
		}

		orderID, ok := middleware.ParamID(c, "order_id")
		if !ok {
			return
		}

		order, err := h.service.GetOrder(c.Request.Context(), principal, orderID)
		response.Handle(c, order, err)
	}
}

// ListOrdersHandler handles GET /orders
func (h *GinHandlers) ListOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.GetPrincipal(c)
		if !ok {
			response.Unauthorized(c, "Missing authentication")
			return
		}

		orders, err := h.service.ListOrders(c.Request.Context(), principal)
		response.Handle(c, orders, err)
	}
}
