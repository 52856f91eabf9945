package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ksred/curio-api/internal/adjudication"
	"github.com/ksred/curio-api/internal/auction"
	"github.com/ksred/curio-api/internal/auth"
	"github.com/ksred/curio-api/internal/checkout"
	"github.com/ksred/curio-api/pkg/middleware"
	"github.com/ksred/curio-api/pkg/response"
)

// Pinger reports whether the store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the router is wired from
type Deps struct {
	Auth         *auth.Service
	Auction      auction.Bidder
	Checkout     checkout.OrderService
	Adjudication adjudication.Adjudicator
	Store        Pinger
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(deps Deps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())

	authHandlers := auth.NewGinHandlers(deps.Auth)
	auctionHandlers := auction.NewGinHandlers(deps.Auction)
	checkoutHandlers := checkout.NewGinHandlers(deps.Checkout)
	adminHandlers := adjudication.NewGinHandlers(deps.Adjudication)

	router.GET("/healthz", healthHandler(deps.Store))

	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		authGroup.Use(middleware.RateLimit())
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		products := v1.Group("/products/:product_id")
		{
			products.GET("/bids", middleware.RateLimit(), auctionHandlers.ListBidsHandler())
			products.POST("/bids", middleware.JWTAuth(deps.Auth), middleware.RateLimit(), auctionHandlers.PlaceBidHandler())
		}

		orders := v1.Group("/orders")
		orders.Use(middleware.JWTAuth(deps.Auth), middleware.RateLimit())
		{
			orders.POST("", checkoutHandlers.CreateOrderHandler())
			orders.GET("", checkoutHandlers.ListOrdersHandler())
			orders.GET("/:order_id", checkoutHandlers.GetOrderHandler())
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.JWTAuth(deps.Auth), middleware.RequireAdmin(), middleware.RateLimit())
		{
			admin.PUT("/bids/:bid_id/status", adminHandlers.SetBidStatusHandler())
			admin.POST("/orders/:order_id/cancel", adminHandlers.CancelOrderHandler())
			admin.POST("/orders/:order_id/ship", adminHandlers.ShipOrderHandler())
			admin.PUT("/orders/:order_id/status", adminHandlers.SetOrderStatusHandler())
		}
	}

	return router
}

func healthHandler(store Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			response.Fail(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "store is unreachable")
			return
		}
		response.Success(c, gin.H{"status": "ok"})
	}
}
