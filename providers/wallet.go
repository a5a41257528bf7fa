package providers

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"

	apperrors "checkout-service/common/errors"
	"checkout-service/models"
)

const defaultTokenDecimals int32 = 18

var (
	txHashPattern  = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

type WalletConfig struct {
	ReceivingAddress string
	TokenAddress     string
	TokenDecimals    int32
	// ExchangeRate is order currency units per token. Zero means 1.
	ExchangeRate decimal.Decimal
}

// WalletClaim is what the client submits after sending the transfer.
type WalletClaim struct {
	TransactionHash string
	Amount          string
	WalletAddress   string
	Network         string
	ChainID         string
	BlockExplorer   string
}

// WalletProvider handles MetaMask token payments. The chain is never
// queried: a verified claim is stamped client_asserted for manual review.
type WalletProvider struct {
	cfg WalletConfig
}

func NewWalletProvider(cfg WalletConfig) *WalletProvider {
	if cfg.TokenDecimals == 0 {
		cfg.TokenDecimals = defaultTokenDecimals
	}
	if cfg.ExchangeRate.IsZero() {
		cfg.ExchangeRate = decimal.NewFromInt(1)
	}
	return &WalletProvider{cfg: cfg}
}

func (p *WalletProvider) Method() models.PaymentMethod { return models.PaymentMethodMetamask }

func (p *WalletProvider) Initiate(_ context.Context, req InitiateRequest) (models.PaymentMethodInfo, error) {
	if p.cfg.ReceivingAddress == "" || p.cfg.TokenAddress == "" {
		return models.PaymentMethodInfo{}, fmt.Errorf("%w: wallet not configured", ErrProviderUnavailable)
	}
	return models.NewWalletInfo(p.GeneratePaymentInfo(req.Amount, p.cfg.ReceivingAddress)), nil
}

// GeneratePaymentInfo returns the token transfer the customer must make.
func (p *WalletProvider) GeneratePaymentInfo(amount int64, receivingAddress string) models.WalletInfo {
	if receivingAddress == "" {
		receivingAddress = p.cfg.ReceivingAddress
	}
	return models.WalletInfo{
		ReceivingAddress: receivingAddress,
		TokenAddress:     p.cfg.TokenAddress,
		TokenDecimals:    p.cfg.TokenDecimals,
		Amount:           amount,
		TokenAmount:      p.baseUnits(p.tokenAmount(amount)).String(),
	}
}

// VerifyTransaction validates the claim and records it on info. The claimed
// token amount must cover the expected amount.
func (p *WalletProvider) VerifyTransaction(info models.WalletInfo, expectedAmount int64, claim WalletClaim) (models.WalletInfo, error) {
	if !txHashPattern.MatchString(claim.TransactionHash) {
		return info, apperrors.Validation("transactionHash must be 0x followed by 64 hex characters")
	}
	if strings.TrimSpace(claim.WalletAddress) == "" {
		return info, apperrors.Validation("walletAddress is required")
	}
	if !ValidAddress(claim.WalletAddress) {
		return info, apperrors.Validation("walletAddress is not a valid EVM address")
	}
	claimed, err := decimal.NewFromString(strings.TrimSpace(claim.Amount))
	if err != nil || !claimed.IsPositive() {
		return info, apperrors.Validation("amount must be a positive number")
	}

	expected := p.tokenAmount(expectedAmount)
	if p.baseUnits(claimed).LessThan(p.baseUnits(expected)) {
		return info, apperrors.Validation(fmt.Sprintf(
			"claimed amount %s is less than the expected %s", claimed.String(), expected.String()))
	}

	if info.TokenAddress == "" {
		info = p.GeneratePaymentInfo(expectedAmount, info.ReceivingAddress)
	}
	info.TransactionHash = strings.ToLower(claim.TransactionHash)
	info.ClaimedAmount = claimed.String()
	info.WalletAddress = claim.WalletAddress
	info.Network = claim.Network
	info.ChainID = claim.ChainID
	info.BlockExplorer = claim.BlockExplorer
	info.Verification = models.WalletVerificationClientAsserted
	return info, nil
}

func (p *WalletProvider) tokenAmount(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount).Div(p.cfg.ExchangeRate)
}

func (p *WalletProvider) baseUnits(tokens decimal.Decimal) decimal.Decimal {
	return tokens.Shift(p.cfg.TokenDecimals).Truncate(0)
}

// ValidAddress reports whether addr is a 20-byte hex address. Mixed-case
// addresses must carry a valid EIP-55 checksum.
func ValidAddress(addr string) bool {
	if !addressPattern.MatchString(addr) {
		return false
	}
	hexPart := addr[2:]
	lower := strings.ToLower(hexPart)
	if hexPart == lower || hexPart == strings.ToUpper(hexPart) {
		return true
	}
	return checksumAddress(lower) == hexPart
}

func checksumAddress(lowerHex string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lowerHex))
	sum := h.Sum(nil)

	out := []byte(lowerHex)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := sum[i/2] >> 4
		if i%2 == 1 {
			nibble = sum[i/2] & 0x0f
		}
		if nibble >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}
