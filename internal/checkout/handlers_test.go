package checkout

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ksred/curio-api/internal/types"
	"github.com/ksred/curio-api/pkg/middleware"
)

type requestMatcher struct {
	key   string
	lines int
}

func (m requestMatcher) Matches(x interface{}) bool {
	req, ok := x.(Request)
	return ok && req.IdempotencyKey == m.key && len(req.Items) == m.lines
}

func (m requestMatcher) String() string {
	return "request with matching idempotency key and line count"
}

func newRouter(h *GinHandlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		middleware.SetPrincipal(c, alice)
		c.Next()
	})
	router.POST("/orders", h.CreateOrderHandler())
	router.GET("/orders", h.ListOrdersHandler())
	router.GET("/orders/:order_id", h.GetOrderHandler())
	return router
}

func TestCreateOrderHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockOrderService(ctrl)
	router := newRouter(NewGinHandlers(mockService))

	body := `{"items":[{"product_id":3,"quantity":1,"price":"100.00"}],"shipping_address":"12 Numismatist Lane"}`

	tests := []struct {
		name           string
		body           string
		key            string
		mockSetup      func()
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "created",
			body: body,
			key:  "abc-123",
			mockSetup: func() {
				mockService.EXPECT().
					Checkout(gomock.Any(), alice, requestMatcher{key: "abc-123", lines: 1}).
					Return(&Result{OrderID: 10, TotalAmount: decimal.NewFromInt(100)}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "without idempotency key",
			body: body,
			mockSetup: func() {
				mockService.EXPECT().
					Checkout(gomock.Any(), alice, requestMatcher{lines: 1}).
					Return(&Result{OrderID: 11, TotalAmount: decimal.NewFromInt(100)}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "malformed body",
			body:           `{"items": "nope"}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "BAD_REQUEST",
		},
		{
			name: "empty cart",
			body: `{"items":[],"shipping_address":"x"}`,
			mockSetup: func() {
				mockService.EXPECT().
					Checkout(gomock.Any(), alice, gomock.Any()).
					Return(nil, types.ErrEmptyCart)
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "EMPTY_CART",
		},
		{
			name: "sold out",
			body: body,
			mockSetup: func() {
				mockService.EXPECT().
					Checkout(gomock.Any(), alice, gomock.Any()).
					Return(nil, types.ErrInsufficientStock.Withf("insufficient stock for Penny Black: 0 available"))
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   "INSUFFICIENT_STOCK",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			if tc.key != "" {
				req.Header.Set(IdempotencyKeyHeader, tc.key)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)
			require.Equal(t, tc.expectedStatus, w.Code)

			var resp map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			if tc.expectedCode == "" {
				data := resp["data"].(map[string]any)
				require.NotZero(t, data["order_id"])
				return
			}
			require.Equal(t, tc.expectedCode, resp["error"].(map[string]any)["code"])
		})
	}
}

func TestGetOrderHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockOrderService(ctrl)
	router := newRouter(NewGinHandlers(mockService))

	mockService.EXPECT().
		GetOrder(gomock.Any(), alice, uint(5)).
		Return(&types.Order{ID: 5, UserID: alice.UserID, Status: types.OrderPending}, nil)
	mockService.EXPECT().
		GetOrder(gomock.Any(), alice, uint(6)).
		Return(nil, types.ErrOrderNotFound)

	tests := []struct {
		path string
		want int
	}{
		{path: "/orders/5", want: http.StatusOK},
		{path: "/orders/6", want: http.StatusNotFound},
		{path: "/orders/zero", want: http.StatusBadRequest},
	}
	for _, tc := range tests {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
		require.Equal(t, tc.want, w.Code, tc.path)
	}
}

func TestListOrdersHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockOrderService(ctrl)
	router := newRouter(NewGinHandlers(mockService))

	mockService.EXPECT().
		ListOrders(gomock.Any(), alice).
		Return([]types.Order{{ID: 2}, {ID: 1}}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []types.Order `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
}
