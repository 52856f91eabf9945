package auction

//go:generate mockgen -source=handlers.go -destination=mock_bidder.go -package=auction

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/ksred/curio-api/internal/types"
	"github.com/ksred/curio-api/pkg/middleware"
	"github.com/ksred/curio-api/pkg/response"
)

// Bidder is the part of Service the HTTP layer depends on
type Bidder interface {
	PlaceBid(ctx context.Context, principal types.Principal, productID uint, amount decimal.Decimal) (*BidResult, error)
	ListBids(ctx context.Context, productID uint) ([]types.Bid, error)
}

type PlaceBidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// GinHandlers contains HTTP handlers for bidding endpoints
type GinHandlers struct {
	service Bidder
}

func NewGinHandlers(service Bidder) *GinHandlers {
	return &GinHandlers{service: service}
}

// PlaceBidHandler handles POST /products/:product_id/bids
func (h *GinHandlers) PlaceBidHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.GetPrincipal(c)
		if !ok {
			response.Unauthorized(c, "Missing authentication")
			return
		}

		productID, ok := middleware.ParamID(c, "product_id")
		if !ok {
			return
		}

		var req PlaceBidRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		result, err := h.service.PlaceBid(c.Request.Context(), principal, productID, req.Amount)
		response.Handle(c, result, err)
	}
}

// ListBidsHandler handles GET /products/:product_id/bids
func (h *GinHandlers) ListBidsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, ok := middleware.ParamID(c, "product_id")
		if !ok {
			return
		}

		bids, err := h.service.ListBids(c.Request.Context(), productID)
		response.Handle(c, bids, err)
	}
}
