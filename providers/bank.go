package providers

import (
	"context"
	"fmt"
	"net/url"

	"checkout-service/models"
)

const vietQRImageBase = "https://img.vietqr.io/image"

type BankConfig struct {
	BankID      string
	AccountNo   string
	AccountName string
	// Template is the VietQR image template, e.g. "compact2".
	Template string
}

// BankTransferProvider builds a static VietQR image URL for a manual
// transfer. The transfer note is the order slug.
type BankTransferProvider struct {
	cfg BankConfig
}

func NewBankTransferProvider(cfg BankConfig) *BankTransferProvider {
	if cfg.Template == "" {
		cfg.Template = "compact2"
	}
	return &BankTransferProvider{cfg: cfg}
}

func (p *BankTransferProvider) Method() models.PaymentMethod { return models.PaymentMethodBank }

func (p *BankTransferProvider) Initiate(_ context.Context, req InitiateRequest) (models.PaymentMethodInfo, error) {
	if p.cfg.BankID == "" || p.cfg.AccountNo == "" {
		return models.PaymentMethodInfo{}, fmt.Errorf("%w: bank account not configured", ErrProviderUnavailable)
	}
	if req.Order == nil {
		return models.PaymentMethodInfo{}, fmt.Errorf("%w: order is required", ErrProviderUnavailable)
	}

	description := req.Order.Slug
	return models.NewBankInfo(models.BankInfo{
		BankID:      p.cfg.BankID,
		AccountNo:   p.cfg.AccountNo,
		AccountName: p.cfg.AccountName,
		Amount:      req.Amount,
		Description: description,
		QRDataURL:   p.qrURL(req.Amount, description),
	}), nil
}

func (p *BankTransferProvider) qrURL(amount int64, description string) string {
	q := url.Values{}
	q.Set("amount", fmt.Sprintf("%d", amount))
	q.Set("addInfo", description)
	q.Set("accountName", p.cfg.AccountName)
	return fmt.Sprintf("%s/%s-%s-%s.png?%s",
		vietQRImageBase,
		url.PathEscape(p.cfg.BankID),
		url.PathEscape(p.cfg.AccountNo),
		p.cfg.Template,
		q.Encode())
}
