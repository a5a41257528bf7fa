package providers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "checkout-service/common/errors"
	"checkout-service/models"
	"checkout-service/providers"
	"checkout-service/signature"
)

func newPayos(t *testing.T, handler http.HandlerFunc) *providers.PayosProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return providers.NewPayosProvider(providers.PayosConfig{
		ClientID:    "client-1",
		APIKey:      "api-1",
		ChecksumKey: "checksum",
		BaseURL:     srv.URL,
		ReturnURL:   "https://shop.test/return",
		CancelURL:   "https://shop.test/cancel",
	}, nil)
}

func TestPayos_CreatePaymentLink_Success(t *testing.T) {
	var got providers.PaymentLinkRequest
	p := newPayos(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/payment-requests", r.URL.Path)
		assert.Equal(t, "client-1", r.Header.Get("x-client-id"))
		assert.Equal(t, "api-1", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"00","desc":"success","data":{"paymentLinkId":"pl_1","checkoutUrl":"https://pay.payos.vn/web/pl_1","qrCode":"000201","status":"PENDING"}}`))
	})

	link, err := p.CreatePaymentLink(context.Background(), providers.PaymentLinkRequest{
		OrderCode:   123456,
		Amount:      1000000,
		Description: "a-very-long-order-description-over-limit",
		ReturnURL:   "https://shop.test/return",
		CancelURL:   "https://shop.test/cancel",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://pay.payos.vn/web/pl_1", link.Link)
	assert.Equal(t, "pl_1", link.PaymentLinkID)
	assert.Equal(t, int64(123456), link.OrderCode)
	assert.Len(t, []rune(got.Description), 25)

	want := signature.SignPaymentRequest("checksum", signature.PaymentRequestFields{
		Amount:      1000000,
		CancelURL:   "https://shop.test/cancel",
		Description: got.Description,
		OrderCode:   123456,
		ReturnURL:   "https://shop.test/return",
	})
	assert.Equal(t, want, got.Signature)
	assert.Equal(t, want, link.Signature)
}

func TestPayos_CreatePaymentLink_LinkFallback(t *testing.T) {
	p := newPayos(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"00","data":{"shortLink":"https://payos.vn/s/abc"}}`))
	})

	link, err := p.CreatePaymentLink(context.Background(), providers.PaymentLinkRequest{OrderCode: 1, Amount: 2000})
	require.NoError(t, err)
	assert.Equal(t, "https://payos.vn/s/abc", link.Link)
}

func TestPayos_CreatePaymentLink_Non2xx(t *testing.T) {
	p := newPayos(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"401","desc":"Invalid client id"}`))
	})

	_, err := p.CreatePaymentLink(context.Background(), providers.PaymentLinkRequest{OrderCode: 1, Amount: 2000})
	require.Error(t, err)
	assert.True(t, errors.Is(err, providers.ErrProviderUnavailable))
	assert.True(t, apperrors.IsKind(err, apperrors.KindProvider))
	assert.Equal(t, "Invalid client id", apperrors.From(err).Message)
}

func TestPayos_CreatePaymentLink_RejectedCode(t *testing.T) {
	p := newPayos(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"231","desc":"Đơn thanh toán đã tồn tại"}`))
	})

	_, err := p.CreatePaymentLink(context.Background(), providers.PaymentLinkRequest{OrderCode: 1, Amount: 2000})
	require.Error(t, err)
	assert.True(t, errors.Is(err, providers.ErrProviderUnavailable))
	assert.Equal(t, "Đơn thanh toán đã tồn tại", apperrors.From(err).Message)
}

func TestPayos_CreatePaymentLink_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	p := providers.NewPayosProvider(providers.PayosConfig{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, nil)
	_, err := p.CreatePaymentLink(context.Background(), providers.PaymentLinkRequest{OrderCode: 1, Amount: 2000})
	require.Error(t, err)
	assert.True(t, errors.Is(err, providers.ErrProviderUnavailable))
}

func TestPayos_Initiate(t *testing.T) {
	p := newPayos(t, func(w http.ResponseWriter, r *http.Request) {
		var body providers.PaymentLinkRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "DH-0001", body.Description)
		assert.Equal(t, "https://shop.test/return", body.ReturnURL)
		require.Len(t, body.Items, 1)
		_, _ = w.Write([]byte(`{"code":"00","data":{"paymentUrl":"https://pay.test/1"}}`))
	})

	info, err := p.Initiate(context.Background(), providers.InitiateRequest{
		Order: &models.Order{
			Slug:       "DH-0001",
			OrderItems: models.OrderItems{{ProductID: "p1", Quantity: 2, Price: 500000}},
		},
		Amount:    1000000,
		OrderCode: 777,
	})
	require.NoError(t, err)
	require.NotNil(t, info.Payos)
	assert.Equal(t, models.PaymentMethodPayos, info.Method)
	assert.Equal(t, "https://pay.test/1", info.Payos.CheckoutURL)
	assert.Equal(t, int64(777), info.Payos.OrderCode)
}

func TestPayos_Initiate_FallsBackToCheckoutSlug(t *testing.T) {
	p := newPayos(t, func(w http.ResponseWriter, r *http.Request) {
		var body providers.PaymentLinkRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "an-1f2e3d", body.Description)
		_, _ = w.Write([]byte(`{"code":"00","data":{"checkoutUrl":"https://pay.test/2"}}`))
	})

	info, err := p.Initiate(context.Background(), providers.InitiateRequest{
		Order:        &models.Order{OrderItems: models.OrderItems{{ProductID: "p1", Quantity: 1, Price: 3000}}},
		CheckoutSlug: "an-1f2e3d",
		Amount:       3000,
		OrderCode:    778,
	})
	require.NoError(t, err)
	require.NotNil(t, info.Payos)
	assert.Equal(t, "https://pay.test/2", info.Payos.CheckoutURL)
}

func TestPayos_VerifySignature(t *testing.T) {
	p := providers.NewPayosProvider(providers.PayosConfig{ChecksumKey: "checksum"}, nil)
	data, err := signature.Decode([]byte(`{"orderCode":5,"status":"PAID"}`))
	require.NoError(t, err)

	assert.True(t, p.VerifySignature(data, signature.Sign("checksum", data)))
	assert.False(t, p.VerifySignature(data, signature.Sign("wrong", data)))
}
