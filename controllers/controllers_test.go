package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "checkout-service/common/errors"
	"checkout-service/controllers"
	"checkout-service/models"
	"checkout-service/providers"
	"checkout-service/services"
)

// ---- mocks ----

type mockCheckoutService struct {
	mock.Mock
}

func (m *mockCheckoutService) Create(ctx context.Context, req models.CreateCheckoutRequest) (*models.CheckoutResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*models.CheckoutResponse)
	return resp, args.Error(1)
}

func (m *mockCheckoutService) UpdatePaymentStatus(ctx context.Context, slug string, status models.PaymentStatus) (*models.Checkout, error) {
	args := m.Called(ctx, slug, status)
	c, _ := args.Get(0).(*models.Checkout)
	return c, args.Error(1)
}

func (m *mockCheckoutService) UpdateByOrderCode(ctx context.Context, orderCode string, status models.PaymentStatus, payload services.ProviderPayload) (*models.Checkout, bool, error) {
	args := m.Called(ctx, orderCode, status, payload)
	c, _ := args.Get(0).(*models.Checkout)
	return c, args.Bool(1), args.Error(2)
}

func (m *mockCheckoutService) GetBySlug(ctx context.Context, slug string) (*models.Checkout, error) {
	args := m.Called(ctx, slug)
	c, _ := args.Get(0).(*models.Checkout)
	return c, args.Error(1)
}

func (m *mockCheckoutService) List(ctx context.Context, page, limit int) (*models.ListResult, error) {
	args := m.Called(ctx, page, limit)
	r, _ := args.Get(0).(*models.ListResult)
	return r, args.Error(1)
}

func (m *mockCheckoutService) GetPaymentStatusByOrderCode(ctx context.Context, orderCode string) (models.PaymentStatus, bool, error) {
	args := m.Called(ctx, orderCode)
	return args.Get(0).(models.PaymentStatus), args.Bool(1), args.Error(2)
}

func (m *mockCheckoutService) GetWalletPaymentInfo(ctx context.Context, slug string) (*models.WalletInfo, error) {
	args := m.Called(ctx, slug)
	w, _ := args.Get(0).(*models.WalletInfo)
	return w, args.Error(1)
}

func (m *mockCheckoutService) VerifyWalletTransaction(ctx context.Context, slug string, claim providers.WalletClaim) (*models.Checkout, error) {
	args := m.Called(ctx, slug, claim)
	c, _ := args.Get(0).(*models.Checkout)
	return c, args.Error(1)
}

type stubWebhooks struct {
	result *services.WebhookResult
	err    error
	calls  int
}

func (s *stubWebhooks) HandlePayosWebhook(context.Context, models.WebhookPayload) (*services.WebhookResult, error) {
	s.calls++
	return s.result, s.err
}

// ---- helpers ----

func setupRouter(svc services.CheckoutService, hooks controllers.WebhookHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	controllers.RegisterValidators()

	r := gin.New()
	r.Use(apperrors.ErrorMiddleware())
	cc := controllers.NewCheckoutController(svc, nil)
	pc := controllers.NewPayosController(hooks, svc, nil)

	r.POST("/checkoutapi", cc.CreateCheckout)
	r.GET("/checkoutapi", cc.ListCheckouts)
	r.GET("/checkoutapi/:slug", cc.GetCheckout)
	r.PUT("/checkoutapi/:slug/payment-status", cc.UpdatePaymentStatus)
	r.GET("/checkoutapi/metamask/:slug/payment-info", cc.GetWalletPaymentInfo)
	r.POST("/checkoutapi/metamask/:slug/verify", cc.VerifyWalletTransaction)
	r.POST("/payos/webhook", pc.Webhook)
	r.GET("/payos/check-payment-status", pc.CheckPaymentStatus)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

const validCreateBody = `{
	"orderId": "6f1c2a9e-3b4d-4c5e-8f70-123456789abc",
	"userId": "u-1",
	"name": "Nguyễn Văn Đức",
	"phone": "0901234567",
	"address": "12 Lê Lợi",
	"email": "duc@example.com",
	"paymentMethod": "payos",
	"orderCode": 123456
}`

// ---- tests ----

func TestCreateCheckout_Success(t *testing.T) {
	svc := &mockCheckoutService{}
	checkout := &models.Checkout{ID: uuid.New(), Slug: "nguyen-van-duc-abc123", PaymentMethod: models.PaymentMethodPayos, PaymentStatus: models.PaymentStatusPending}
	svc.On("Create", mock.Anything, mock.MatchedBy(func(req models.CreateCheckoutRequest) bool {
		return req.PaymentMethod == models.PaymentMethodPayos && req.OrderCode.String() == "123456"
	})).Return(&models.CheckoutResponse{Checkout: checkout, PayosPaymentLink: "https://pay.payos.vn/web/x"}, nil)

	w := do(setupRouter(svc, &stubWebhooks{}), http.MethodPost, "/checkoutapi", validCreateBody)

	assert.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, "nguyen-van-duc-abc123", body["slug"])
	assert.Equal(t, "https://pay.payos.vn/web/x", body["payosPaymentLink"])
	svc.AssertExpectations(t)
}

func TestCreateCheckout_BindingErrors(t *testing.T) {
	cases := map[string]struct {
		body string
		msg  string
	}{
		"not json":       {`not-json`, "Invalid request body"},
		"missing name":   {`{"orderId":"x","userId":"u","phone":"1","address":"a","email":"a@b.co"}`, "name is required"},
		"missing order":  {`{"userId":"u","name":"n","phone":"1","address":"a","email":"a@b.co"}`, "orderId is required"},
		"bad email":      {`{"orderId":"x","userId":"u","name":"n","phone":"1","address":"a","email":"nope"}`, "email must be a valid email"},
		"unknown method": {`{"orderId":"x","userId":"u","name":"n","phone":"1","address":"a","email":"a@b.co","paymentMethod":"btc"}`, "paymentMethod must be one of cash, bank, payos, paypal, metamask"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &mockCheckoutService{}
			w := do(setupRouter(svc, &stubWebhooks{}), http.MethodPost, "/checkoutapi", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.msg, decode(t, w)["error"])
			svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateCheckout_ServiceErrors(t *testing.T) {
	cases := map[string]struct {
		err  error
		code int
	}{
		"order missing":  {apperrors.NotFound("Order not found"), http.StatusNotFound},
		"provider down":  {apperrors.BadRequest("Could not start the payment", nil), http.StatusBadRequest},
		"database error": {assert.AnError, http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &mockCheckoutService{}
			svc.On("Create", mock.Anything, mock.Anything).Return(nil, tc.err)
			w := do(setupRouter(svc, &stubWebhooks{}), http.MethodPost, "/checkoutapi", validCreateBody)
			assert.Equal(t, tc.code, w.Code)
			assert.NotContains(t, w.Body.String(), assert.AnError.Error())
		})
	}
}

func TestUpdatePaymentStatus(t *testing.T) {
	svc := &mockCheckoutService{}
	svc.On("UpdatePaymentStatus", mock.Anything, "slug-1", models.PaymentStatusPaid).
		Return(&models.Checkout{Slug: "slug-1", PaymentStatus: models.PaymentStatusPaid}, nil)
	r := setupRouter(svc, &stubWebhooks{})

	w := do(r, http.MethodPut, "/checkoutapi/slug-1/payment-status", `{"paymentStatus":"paid"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paid", decode(t, w)["paymentStatus"])

	w = do(r, http.MethodPut, "/checkoutapi/slug-1/payment-status", `{"paymentStatus":"refunded"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, "/checkoutapi/slug-1/payment-status", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNumberOfCalls(t, "UpdatePaymentStatus", 1)
}

func TestGetCheckout_NotFound(t *testing.T) {
	svc := &mockCheckoutService{}
	svc.On("GetBySlug", mock.Anything, "missing").Return(nil, apperrors.NotFound("Checkout not found"))

	w := do(setupRouter(svc, &stubWebhooks{}), http.MethodGet, "/checkoutapi/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Checkout not found", decode(t, w)["error"])
}

func TestListCheckouts_Pagination(t *testing.T) {
	svc := &mockCheckoutService{}
	svc.On("List", mock.Anything, 2, 5).Return(&models.ListResult{Items: []models.Checkout{}, Total: 7, Page: 2, Limit: 5}, nil)

	w := do(setupRouter(svc, &stubWebhooks{}), http.MethodGet, "/checkoutapi?page=2&limit=5", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(7), decode(t, w)["total"])
	svc.AssertExpectations(t)
}

func TestVerifyWalletTransaction(t *testing.T) {
	svc := &mockCheckoutService{}
	svc.On("VerifyWalletTransaction", mock.Anything, "w-1", providers.WalletClaim{
		TransactionHash: "0xabc",
		Amount:          "12.5",
		WalletAddress:   "0xpayer",
		Network:         "BSC",
		ChainID:         "0x38",
	}).Return(&models.Checkout{Slug: "w-1", PaymentStatus: models.PaymentStatusPaid}, nil)
	r := setupRouter(svc, &stubWebhooks{})

	w := do(r, http.MethodPost, "/checkoutapi/metamask/w-1/verify",
		`{"transactionHash":"0xabc","amount":12.5,"walletAddress":"0xpayer","network":"BSC","chainId":"0x38"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])

	w = do(r, http.MethodPost, "/checkoutapi/metamask/w-1/verify", `{"amount":1,"walletAddress":"0xpayer"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "transactionHash is required", decode(t, w)["error"])
	svc.AssertNumberOfCalls(t, "VerifyWalletTransaction", 1)
}

func TestPayosWebhook(t *testing.T) {
	body := `{"code":"00","desc":"success","data":{"orderCode":1,"status":"PAID"},"signature":"abc"}`

	hooks := &stubWebhooks{result: &services.WebhookResult{Result: services.WebhookResultProcessed}}
	w := do(setupRouter(&mockCheckoutService{}, hooks), http.MethodPost, "/payos/webhook", body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","result":"processed"}`, w.Body.String())

	hooks = &stubWebhooks{result: &services.WebhookResult{Result: services.WebhookResultNotFound}}
	w = do(setupRouter(&mockCheckoutService{}, hooks), http.MethodPost, "/payos/webhook", body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "not_found", decode(t, w)["result"])

	hooks = &stubWebhooks{err: apperrors.Signature("Invalid signature")}
	w = do(setupRouter(&mockCheckoutService{}, hooks), http.MethodPost, "/payos/webhook", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	hooks = &stubWebhooks{}
	w = do(setupRouter(&mockCheckoutService{}, hooks), http.MethodPost, "/payos/webhook", `{"data":{"orderCode":1}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, hooks.calls)
}

func TestCheckPaymentStatus(t *testing.T) {
	svc := &mockCheckoutService{}
	svc.On("GetPaymentStatusByOrderCode", mock.Anything, "42").Return(models.PaymentStatusPaid, true, nil)
	svc.On("GetPaymentStatusByOrderCode", mock.Anything, "43").Return(models.PaymentStatus(""), false, nil)
	r := setupRouter(svc, &stubWebhooks{})

	w := do(r, http.MethodGet, "/payos/check-payment-status?orderCode=42", "")
	assert.JSONEq(t, `{"status":"paid"}`, w.Body.String())

	w = do(r, http.MethodGet, "/payos/check-payment-status?orderCode=43", "")
	assert.JSONEq(t, `{"status":"not_found"}`, w.Body.String())

	w = do(r, http.MethodGet, "/payos/check-payment-status", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
