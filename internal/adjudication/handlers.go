package adjudication

//go:generate mockgen -source=handlers.go -destination=mock_adjudicator.go -package=adjudication

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/ksred/curio-api/internal/types"
	"github.com/ksred/curio-api/pkg/middleware"
	"github.com/ksred/curio-api/pkg/response"
)

// Adjudicator is the part of Service the HTTP layer depends on
type Adjudicator interface {
	SetBidStatus(ctx context.Context, principal types.Principal, bidID uint, status types.BidStatus) (*BidStatusResult, error)
	CancelOrder(ctx context.Context, principal types.Principal, orderID uint) (*types.Order, error)
	ShipOrder(ctx context.Context, principal types.Principal, orderID uint, trackingID *string) (*types.Order, error)
	SetOrderStatus(ctx context.Context, principal types.Principal, orderID uint, status types.OrderStatus, trackingID *string) (*types.Order, error)
}

type BidStatusRequest struct {
	Status types.BidStatus `json:"status" binding:"required"`
}

type ShipOrderRequest struct {
	TrackingID *string `json:"tracking_id"`
}

type OrderStatusRequest struct {
	Status     types.OrderStatus `json:"status" binding:"required"`
	TrackingID *string           `json:"tracking_id"`
}

// GinHandlers contains HTTP handlers for admin endpoints
type GinHandlers struct {
	service Adjudicator
}

func NewGinHandlers(service Adjudicator) *GinHandlers {
	return &GinHandlers{service: service}
}

// SetBidStatusHandler handles PUT /admin/bids/:bid_id/status
func (h *GinHandlers) SetBidStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.GetPrincipal(c)
		if !ok {
			response.Unauthorized(c, "Missing authentication")
			return
		}

		bidID, ok := middleware.ParamID(c, "bid_id")
		if !ok {
			return
		}

		var req BidStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		result, err := h.service.SetBidStatus(c.Request.Context(), principal, bidID, req.Status)
		response.Handle(c, result, err)
	}
}

// CancelOrderHandler handles POST /admin/orders/:order_id/cancel
func (h *GinHandlers) CancelOrderHandler() gin.HandlerFunc {
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

		order, err := h.service.CancelOrder(c.Request.Context(), principal, orderID)
		response.Handle(c, order, err)
	}
}

// ShipOrderHandler handles POST /admin/orders/:order_id/ship. The body is
// optional.
func (h *GinHandlers) ShipOrderHandler() gin.HandlerFunc {
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

		var req ShipOrderRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				response.BadRequest(c, "Invalid request body")
				return
			}
		}

		order, err := h.service.ShipOrder(c.Request.Context(), principal, orderID, req.TrackingID)
		response.Handle(c, order, err)
	}
}

// SetOrderStatusHandler handles PUT /admin/orders/:order_id/status
func (h *GinHandlers) SetOrderStatusHandler() gin.HandlerFunc {
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

		var req OrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		order, err := h.service.SetOrderStatus(c.Request.Context(), principal, orderID, req.Status, req.TrackingID)
		response.Handle(c, order, err)
	}
}
