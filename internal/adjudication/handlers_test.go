package adjudication

import (
	"bytes"
	"io"
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

type trackingMatcher struct{ want *string }

func (m trackingMatcher) Matches(x interface{}) bool {
	got, ok := x.(*string)
	if !ok {
		return false
	}
	if m.want == nil || got == nil {
		return m.want == nil && got == nil
	}
	return *got == *m.want
}

func (m trackingMatcher) String() string { return "matches tracking id" }

func strPtr(s string) *string { return &s }

func TestAdminHandlers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockAdjudicator(ctrl)
	h := NewGinHandlers(mockService)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		middleware.SetPrincipal(c, admin)
		c.Next()
	})
	router.PUT("/admin/bids/:bid_id/status", h.SetBidStatusHandler())
	router.POST("/admin/orders/:order_id/cancel", h.CancelOrderHandler())
	router.POST("/admin/orders/:order_id/ship", h.ShipOrderHandler())
	router.PUT("/admin/orders/:order_id/status", h.SetOrderStatusHandler())

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		mockSetup      func()
		expectedStatus int
	}{
		{
			name:   "disqualify bid",
			method: http.MethodPut,
			path:   "/admin/bids/4/status",
			body:   `{"status":"disqualified"}`,
			mockSetup: func() {
				mockService.EXPECT().
					SetBidStatus(gomock.Any(), admin, uint(4), types.BidDisqualified).
					Return(&BidStatusResult{BidID: 4, CurrentPrice: decimal.NewFromInt(60)}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "bid status missing",
			method:         http.MethodPut,
			path:           "/admin/bids/4/status",
			body:           `{}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "bid status rejected by service",
			method: http.MethodPut,
			path:   "/admin/bids/4/status",
			body:   `{"status":"banned"}`,
			mockSetup: func() {
				mockService.EXPECT().
					SetBidStatus(gomock.Any(), admin, uint(4), types.BidStatus("banned")).
					Return(nil, types.ErrInvalidStatus)
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "cancel order",
			method: http.MethodPost,
			path:   "/admin/orders/8/cancel",
			mockSetup: func() {
				mockService.EXPECT().
					CancelOrder(gomock.Any(), admin, uint(8)).
					Return(&types.Order{ID: 8, Status: types.OrderCancelled}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:   "cancel twice",
			method: http.MethodPost,
			path:   "/admin/orders/8/cancel",
			mockSetup: func() {
				mockService.EXPECT().
					CancelOrder(gomock.Any(), admin, uint(8)).
					Return(nil, types.ErrOrderAlreadyClosed)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name:   "ship without body",
			method: http.MethodPost,
			path:   "/admin/orders/8/ship",
			mockSetup: func() {
				mockService.EXPECT().
					ShipOrder(gomock.Any(), admin, uint(8), trackingMatcher{}).
					Return(&types.Order{ID: 8, Status: types.OrderShipped}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:   "ship with tracking",
			method: http.MethodPost,
			path:   "/admin/orders/8/ship",
			body:   `{"tracking_id":"RM1"}`,
			mockSetup: func() {
				mockService.EXPECT().
					ShipOrder(gomock.Any(), admin, uint(8), trackingMatcher{want: strPtr("RM1")}).
					Return(&types.Order{ID: 8, Status: types.OrderShipped}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:   "set delivered",
			method: http.MethodPut,
			path:   "/admin/orders/8/status",
			body:   `{"status":"delivered"}`,
			mockSetup: func() {
				mockService.EXPECT().
					SetOrderStatus(gomock.Any(), admin, uint(8), types.OrderDelivered, trackingMatcher{}).
					Return(&types.Order{ID: 8, Status: types.OrderDelivered}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "bad order id",
			method:         http.MethodPut,
			path:           "/admin/orders/x/status",
			body:           `{"status":"delivered"}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "order missing",
			method: http.MethodPost,
			path:   "/admin/orders/77/cancel",
			mockSetup: func() {
				mockService.EXPECT().
					CancelOrder(gomock.Any(), admin, uint(77)).
					Return(nil, types.ErrOrderNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			var body io.Reader
			if tc.body != "" {
				body = bytes.NewBufferString(tc.body)
			}
			req := httptest.NewRequest(tc.method, tc.path, body)
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)
			require.Equal(t, tc.expectedStatus, w.Code, w.Body.String())
		})
	}
}
