package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

type CashInfo struct {
	Note string `json:"note,omitempty"`
}

type BankInfo struct {
	BankID      string `json:"bankId"`
	AccountNo   string `json:"accountNo"`
	AccountName string `json:"accountName"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	QRDataURL   string `json:"qrDataUrl"`
}

type PayosInfo struct {
	OrderCode     int64           `json:"orderCode"`
	CheckoutURL   string          `json:"checkoutUrl,omitempty"`
	PaymentLinkID string          `json:"paymentLinkId,omitempty"`
	QRCode        string          `json:"qrCode,omitempty"`
	Signature     string          `json:"signature,omitempty"`
	Status        string          `json:"status,omitempty"`
	LastWebhook   json.RawMessage `json:"lastWebhook,omitempty"`
}

// WalletVerificationClientAsserted marks a wallet payment whose transaction
// was recorded as submitted by the client, without an on-chain lookup.
const WalletVerificationClientAsserted = "client_asserted"

type WalletInfo struct {
	ReceivingAddress string `json:"receivingAddress"`
	TokenAddress     string `json:"tokenAddress"`
	TokenDecimals    int32  `json:"tokenDecimals"`
	Amount           int64  `json:"amount"`
	TokenAmount      string `json:"tokenAmount"`
	TransactionHash  string `json:"transactionHash,omitempty"`
	ClaimedAmount    string `json:"claimedAmount,omitempty"`
	WalletAddress    string `json:"walletAddress,omitempty"`
	Network          string `json:"network,omitempty"`
	ChainID          string `json:"chainId,omitempty"`
	BlockExplorer    string `json:"blockExplorer,omitempty"`
	Verification     string `json:"verification,omitempty"`
}

// PaymentMethodInfo holds the provider artifact of a checkout. Exactly one
// variant is set, selected by Method. Keys not known to the variant are kept
// in Extra and written back unchanged.
type PaymentMethodInfo struct {
	Method PaymentMethod
	Cash   *CashInfo
	Bank   *BankInfo
	Payos  *PayosInfo
	Wallet *WalletInfo
	Extra  map[string]json.RawMessage
}

func NewCashInfo(info CashInfo) PaymentMethodInfo {
	return PaymentMethodInfo{Method: PaymentMethodCash, Cash: &info}
}

func NewBankInfo(info BankInfo) PaymentMethodInfo {
	return PaymentMethodInfo{Method: PaymentMethodBank, Bank: &info}
}

func NewPayosInfo(info PayosInfo) PaymentMethodInfo {
	return PaymentMethodInfo{Method: PaymentMethodPayos, Payos: &info}
}

func NewWalletInfo(info WalletInfo) PaymentMethodInfo {
	return PaymentMethodInfo{Method: PaymentMethodMetamask, Wallet: &info}
}

// IsZero reports whether no variant has been set.
func (p PaymentMethodInfo) IsZero() bool {
	return p.Method == "" && p.variant() == nil && len(p.Extra) == 0
}

func (p PaymentMethodInfo) variant() interface{} {
	switch {
	case p.Cash != nil:
		return p.Cash
	case p.Bank != nil:
		return p.Bank
	case p.Payos != nil:
		return p.Payos
	case p.Wallet != nil:
		return p.Wallet
	}
	return nil
}

func (p PaymentMethodInfo) MarshalJSON() ([]byte, error) {
	if p.IsZero() {
		return []byte("null"), nil
	}

	fields := make(map[string]json.RawMessage, len(p.Extra)+8)
	for k, v := range p.Extra {
		fields[k] = v
	}
	if v := p.variant(); v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		var known map[string]json.RawMessage
		if err := json.Unmarshal(b, &known); err != nil {
			return nil, err
		}
		for k, raw := range known {
			fields[k] = raw
		}
	}
	if p.Method != "" {
		m, _ := json.Marshal(p.Method)
		fields["method"] = m
	}
	return json.Marshal(fields)
}

func (p *PaymentMethodInfo) UnmarshalJSON(data []byte) error {
	*p = PaymentMethodInfo{}
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("payment method info: %w", err)
	}
	if raw, ok := fields["method"]; ok {
		if err := json.Unmarshal(raw, &p.Method); err != nil {
			return fmt.Errorf("payment method info: method: %w", err)
		}
		delete(fields, "method")
	}

	var target interface{}
	switch p.Method {
	case PaymentMethodCash:
		p.Cash = &CashInfo{}
		target = p.Cash
	case PaymentMethodBank:
		p.Bank = &BankInfo{}
		target = p.Bank
	case PaymentMethodPayos:
		p.Payos = &PayosInfo{}
		target = p.Payos
	case PaymentMethodMetamask:
		p.Wallet = &WalletInfo{}
		target = p.Wallet
	}

	if target != nil {
		if err := json.Unmarshal(data, target); err != nil {
			return fmt.Errorf("payment method info: %s: %w", p.Method, err)
		}
		for _, name := range jsonFieldNames(target) {
			delete(fields, name)
		}
	}
	if len(fields) > 0 {
		p.Extra = fields
	}
	return nil
}

// Value stores the union as jsonb.
func (p PaymentMethodInfo) Value() (driver.Value, error) {
	if p.IsZero() {
		return nil, nil
	}
	b, err := p.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *PaymentMethodInfo) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*p = PaymentMethodInfo{}
		return nil
	case []byte:
		return p.UnmarshalJSON(v)
	case string:
		return p.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("payment method info: unsupported scan type %T", src)
	}
}

func jsonFieldNames(v interface{}) []string {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	names := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name := strings.Split(tag, ",")[0]
		if name == "" || name == "-" {
			continue
		}
		names = append(names, name)
	}
	return names
}
