package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "checkout-service/common/errors"
	"checkout-service/models"
	"checkout-service/signature"
)

const (
	defaultPayosBaseURL = "https://api-merchant.payos.vn"
	payosSuccessCode    = "00"
	// PayOS rejects descriptions longer than this.
	payosMaxDescription = 25
)

type PayosConfig struct {
	ClientID    string
	APIKey      string
	ChecksumKey string
	BaseURL     string
	ReturnURL   string
	CancelURL   string
	Timeout     time.Duration
}

// PayosProvider creates PayOS payment links and verifies webhook data.
type PayosProvider struct {
	cfg        PayosConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func NewPayosProvider(cfg PayosConfig, logger *zap.Logger) *PayosProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultPayosBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PayosProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// ---- PayOS API request/response structs ----

type PaymentLinkItem struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Price    int64  `json:"price"`
}

type PaymentLinkRequest struct {
	OrderCode   int64             `json:"orderCode"`
	Amount      int64             `json:"amount"`
	Description string            `json:"description"`
	CancelURL   string            `json:"cancelUrl"`
	ReturnURL   string            `json:"returnUrl"`
	BuyerName   string            `json:"buyerName,omitempty"`
	BuyerEmail  string            `json:"buyerEmail,omitempty"`
	BuyerPhone  string            `json:"buyerPhone,omitempty"`
	Items       []PaymentLinkItem `json:"items,omitempty"`
	Signature   string            `json:"signature"`
}

type paymentLinkData struct {
	PaymentLinkID string `json:"paymentLinkId"`
	CheckoutURL   string `json:"checkoutUrl"`
	PaymentURL    string `json:"paymentUrl"`
	ShortLink     string `json:"shortLink"`
	QRCode        string `json:"qrCode"`
	Status        string `json:"status"`
}

type paymentLinkResponse struct {
	Code      string           `json:"code"`
	Desc      string           `json:"desc"`
	Data      *paymentLinkData `json:"data"`
	Signature string           `json:"signature"`
}

// PaymentLink is the created link as stored on the checkout.
type PaymentLink struct {
	OrderCode     int64
	PaymentLinkID string
	Link          string
	QRCode        string
	Status        string
	Signature     string
}

func (p *PayosProvider) Method() models.PaymentMethod { return models.PaymentMethodPayos }

func (p *PayosProvider) Initiate(ctx context.Context, req InitiateRequest) (models.PaymentMethodInfo, error) {
	linkReq := PaymentLinkRequest{
		OrderCode:   req.OrderCode,
		Amount:      req.Amount,
		Description: req.CheckoutSlug,
		ReturnURL:   firstNonEmpty(req.ReturnURL, p.cfg.ReturnURL),
		CancelURL:   firstNonEmpty(req.CancelURL, p.cfg.CancelURL),
	}
	if req.Order != nil {
		if req.Order.Slug != "" {
			linkReq.Description = req.Order.Slug
		}
		for _, it := range req.Order.OrderItems {
			linkReq.Items = append(linkReq.Items, PaymentLinkItem{
				Name:     it.ProductID,
				Quantity: it.Quantity,
				Price:    it.Price,
			})
		}
	}

	link, err := p.CreatePaymentLink(ctx, linkReq)
	if err != nil {
		return models.PaymentMethodInfo{}, err
	}
	return models.NewPayosInfo(models.PayosInfo{
		OrderCode:     link.OrderCode,
		CheckoutURL:   link.Link,
		PaymentLinkID: link.PaymentLinkID,
		QRCode:        link.QRCode,
		Signature:     link.Signature,
		Status:        link.Status,
	}), nil
}

// CreatePaymentLink signs req and posts it to /v2/payment-requests.
func (p *PayosProvider) CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (*PaymentLink, error) {
	if req.OrderCode <= 0 {
		return nil, apperrors.Provider("invalid PayOS order code", ErrProviderUnavailable)
	}
	if req.Amount <= 0 {
		return nil, apperrors.Provider("invalid PayOS amount", ErrProviderUnavailable)
	}
	req.Description = truncateRunes(req.Description, payosMaxDescription)
	req.Signature = signature.SignPaymentRequest(p.cfg.ChecksumKey, signature.PaymentRequestFields{
		Amount:      req.Amount,
		CancelURL:   req.CancelURL,
		Description: req.Description,
		OrderCode:   req.OrderCode,
		ReturnURL:   req.ReturnURL,
	})

	var resp paymentLinkResponse
	if err := p.doRequest(ctx, http.MethodPost, "/v2/payment-requests", req, &resp); err != nil {
		p.logger.Error("PayOS create payment link failed",
			zap.Int64("order_code", req.OrderCode), zap.Error(err))
		return nil, err
	}
	if resp.Code != payosSuccessCode || resp.Data == nil {
		p.logger.Error("PayOS rejected payment link",
			zap.Int64("order_code", req.OrderCode),
			zap.String("code", resp.Code),
			zap.String("desc", resp.Desc))
		return nil, apperrors.Provider(upstreamMessage(resp.Desc, "PayOS rejected the payment request"),
			fmt.Errorf("%w: payos code %s", ErrProviderUnavailable, resp.Code))
	}

	link := firstNonEmpty(resp.Data.CheckoutURL, resp.Data.PaymentURL, resp.Data.ShortLink)
	if link == "" {
		return nil, apperrors.Provider("PayOS response has no payment link",
			fmt.Errorf("%w: empty link", ErrProviderUnavailable))
	}

	return &PaymentLink{
		OrderCode:     req.OrderCode,
		PaymentLinkID: resp.Data.PaymentLinkID,
		Link:          link,
		QRCode:        resp.Data.QRCode,
		Status:        resp.Data.Status,
		Signature:     req.Signature,
	}, nil
}

// VerifySignature checks webhook data against its deep-sorted signature.
func (p *PayosProvider) VerifySignature(data map[string]interface{}, sig string) bool {
	return signature.Verify(p.cfg.ChecksumKey, data, sig)
}

// ---- HTTP helper ----

func (p *PayosProvider) doRequest(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return apperrors.Provider("could not encode PayOS request", fmt.Errorf("%w: %v", ErrProviderUnavailable, err))
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, reqBody)
	if err != nil {
		return apperrors.Provider("could not build PayOS request", fmt.Errorf("%w: %v", ErrProviderUnavailable, err))
	}
	req.Header.Set("x-client-id", p.cfg.ClientID)
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return apperrors.Provider("PayOS is unreachable", fmt.Errorf("%w: %v", ErrProviderUnavailable, err))
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperrors.Provider("could not read PayOS response", fmt.Errorf("%w: %v", ErrProviderUnavailable, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var upstream paymentLinkResponse
		_ = json.Unmarshal(respBytes, &upstream)
		return apperrors.Provider(
			upstreamMessage(upstream.Desc, fmt.Sprintf("PayOS API error (status %d)", resp.StatusCode)),
			fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, resp.StatusCode, string(respBytes)))
	}

	if out != nil {
		if err := json.Unmarshal(respBytes, out); err != nil {
			return apperrors.Provider("could not decode PayOS response", fmt.Errorf("%w: %v", ErrProviderUnavailable, err))
		}
	}
	return nil
}

func upstreamMessage(desc, fallback string) string {
	if strings.TrimSpace(desc) != "" {
		return desc
	}
	return fallback
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
