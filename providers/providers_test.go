package providers_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "checkout-service/common/errors"
	"checkout-service/models"
	"checkout-service/providers"
)

const validHash = "0x8f5e2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d6e7f8"

func TestRegistry_Get(t *testing.T) {
	r := providers.NewRegistry(providers.NewCashProvider())

	p, err := r.Get(models.PaymentMethodCash)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodCash, p.Method())

	_, err = r.Get(models.PaymentMethodPaypal)
	assert.True(t, errors.Is(err, providers.ErrProviderUnavailable))
}

func TestCash_Initiate(t *testing.T) {
	info, err := providers.NewCashProvider().Initiate(context.Background(), providers.InitiateRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodCash, info.Method)
	assert.NotNil(t, info.Cash)
}

func TestBank_Initiate(t *testing.T) {
	p := providers.NewBankTransferProvider(providers.BankConfig{
		BankID:      "970422",
		AccountNo:   "0123456789",
		AccountName: "NGUYEN VAN A",
	})

	info, err := p.Initiate(context.Background(), providers.InitiateRequest{
		Order:  &models.Order{Slug: "DH-123"},
		Amount: 500000,
	})
	require.NoError(t, err)
	require.NotNil(t, info.Bank)
	assert.Equal(t, int64(500000), info.Bank.Amount)
	assert.Equal(t, "DH-123", info.Bank.Description)

	u, err := url.Parse(info.Bank.QRDataURL)
	require.NoError(t, err)
	assert.Equal(t, "img.vietqr.io", u.Host)
	assert.True(t, strings.HasSuffix(u.Path, "/970422-0123456789-compact2.png"))
	assert.Equal(t, "500000", u.Query().Get("amount"))
	assert.Equal(t, "DH-123", u.Query().Get("addInfo"))
	assert.Equal(t, "NGUYEN VAN A", u.Query().Get("accountName"))
}

func TestBank_Initiate_NotConfigured(t *testing.T) {
	_, err := providers.NewBankTransferProvider(providers.BankConfig{}).
		Initiate(context.Background(), providers.InitiateRequest{Order: &models.Order{}})
	assert.True(t, errors.Is(err, providers.ErrProviderUnavailable))
}

// EIP-55 reference address.
const payerAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func newWallet() *providers.WalletProvider {
	return providers.NewWalletProvider(providers.WalletConfig{
		ReceivingAddress: "0xreceiver",
		TokenAddress:     "0xtoken",
	})
}

func TestWallet_GeneratePaymentInfo(t *testing.T) {
	info := newWallet().GeneratePaymentInfo(25, "")
	assert.Equal(t, "0xreceiver", info.ReceivingAddress)
	assert.Equal(t, "0xtoken", info.TokenAddress)
	assert.Equal(t, int32(18), info.TokenDecimals)
	assert.Equal(t, "25000000000000000000", info.TokenAmount)
}

func TestWallet_GeneratePaymentInfo_ExchangeRate(t *testing.T) {
	p := providers.NewWalletProvider(providers.WalletConfig{
		TokenAddress:  "0xtoken",
		TokenDecimals: 6,
		ExchangeRate:  decimal.NewFromInt(25000),
	})
	info := p.GeneratePaymentInfo(500000, "0xother")
	assert.Equal(t, "0xother", info.ReceivingAddress)
	assert.Equal(t, "20000000", info.TokenAmount)
}

func TestWallet_VerifyTransaction(t *testing.T) {
	p := newWallet()
	info, err := p.VerifyTransaction(p.GeneratePaymentInfo(25, ""), 25, providers.WalletClaim{
		TransactionHash: validHash,
		Amount:          "25.0",
		WalletAddress:   payerAddress,
		Network:         "BSC",
		ChainID:         "0x38",
	})
	require.NoError(t, err)
	assert.Equal(t, validHash, info.TransactionHash)
	assert.Equal(t, "25", info.ClaimedAmount)
	assert.Equal(t, payerAddress, info.WalletAddress)
	assert.Equal(t, "0x38", info.ChainID)
	assert.Equal(t, models.WalletVerificationClientAsserted, info.Verification)
}

func TestWallet_VerifyTransaction_Rejections(t *testing.T) {
	p := newWallet()
	base := p.GeneratePaymentInfo(25, "")

	cases := map[string]providers.WalletClaim{
		"bad hash":       {TransactionHash: "0x123", Amount: "25", WalletAddress: payerAddress},
		"underpaid":      {TransactionHash: validHash, Amount: "24.99", WalletAddress: payerAddress},
		"non numeric":    {TransactionHash: validHash, Amount: "abc", WalletAddress: payerAddress},
		"missing wallet": {TransactionHash: validHash, Amount: "25"},
		"short wallet":   {TransactionHash: validHash, Amount: "25", WalletAddress: "0x1234"},
		"bad checksum":   {TransactionHash: validHash, Amount: "25", WalletAddress: "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"},
	}
	for name, claim := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := p.VerifyTransaction(base, 25, claim)
			require.Error(t, err)
			assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
			assert.Empty(t, got.TransactionHash)
		})
	}
}

func TestValidAddress(t *testing.T) {
	assert.True(t, providers.ValidAddress(payerAddress))
	assert.True(t, providers.ValidAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"))
	assert.True(t, providers.ValidAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"))
	assert.True(t, providers.ValidAddress("0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB"))
	assert.False(t, providers.ValidAddress("0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
	assert.False(t, providers.ValidAddress("5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"))
	assert.False(t, providers.ValidAddress("0xpayer"))
}
