package services

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "checkout-service/common/errors"
	"checkout-service/locker"
	"checkout-service/models"
	"checkout-service/notifier"
	awspkg "checkout-service/pkg/aws"
	"checkout-service/providers"
	"checkout-service/repository"
)

const (
	maxTransitionAttempts = 5
	defaultPageSize       = 20
	maxPageSize           = 100
)

// ProviderPayload is the provider's view of a payment, as delivered by a
// webhook. Status and Code are the provider's raw values.
type ProviderPayload struct {
	Raw    json.RawMessage
	Status string
	Code   string
}

type CheckoutService interface {
	Create(ctx context.Context, req models.CreateCheckoutRequest) (*models.CheckoutResponse, error)
	UpdatePaymentStatus(ctx context.Context, slug string, status models.PaymentStatus) (*models.Checkout, error)
	// UpdateByOrderCode applies a provider-reported status. found is false,
	// with a nil error, when no checkout carries orderCode.
	UpdateByOrderCode(ctx context.Context, orderCode string, status models.PaymentStatus, payload ProviderPayload) (checkout *models.Checkout, found bool, err error)
	GetBySlug(ctx context.Context, slug string) (*models.Checkout, error)
	List(ctx context.Context, page, limit int) (*models.ListResult, error)
	GetPaymentStatusByOrderCode(ctx context.Context, orderCode string) (status models.PaymentStatus, found bool, err error)
	GetWalletPaymentInfo(ctx context.Context, slug string) (*models.WalletInfo, error)
	VerifyWalletTransaction(ctx context.Context, slug string, claim providers.WalletClaim) (*models.Checkout, error)
}

type checkoutServiceImpl struct {
	checkouts    repository.CheckoutRepository
	orders       repository.OrderRepository
	registry     *providers.Registry
	wallet       *providers.WalletProvider
	notifier     notifier.Notifier
	lock         locker.Locker
	metrics      awspkg.MetricsRecorder
	logger       *zap.Logger
	newOrderCode func() int64
}

func NewCheckoutService(
	checkouts repository.CheckoutRepository,
	orders repository.OrderRepository,
	registry *providers.Registry,
	wallet *providers.WalletProvider,
	n notifier.Notifier,
	lock locker.Locker,
	metrics awspkg.MetricsRecorder,
	logger *zap.Logger,
) CheckoutService {
	if lock == nil {
		lock = locker.NoopLocker{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &checkoutServiceImpl{
		checkouts:    checkouts,
		orders:       orders,
		registry:     registry,
		wallet:       wallet,
		notifier:     n,
		lock:         lock,
		metrics:      metrics,
		logger:       logger,
		newOrderCode: generateOrderCode,
	}
}

// Create validates the request, initiates payment with the selected
// provider and stores a pending checkout.
func (s *checkoutServiceImpl) Create(ctx context.Context, req models.CreateCheckoutRequest) (*models.CheckoutResponse, error) {
	if err := validateCreate(&req); err != nil {
		return nil, err
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return nil, apperrors.Validation("orderId is not a valid id")
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Order not found")
	}
	if err != nil {
		s.logger.Error("order lookup failed", zap.String("order_id", req.OrderID), zap.Error(err))
		return nil, apperrors.Internal("Failed to load order", err)
	}

	existing, err := s.checkouts.GetByOrderID(ctx, orderID)
	switch {
	case err == nil && existing != nil:
		return nil, apperrors.BadRequest("A checkout already exists for this order", nil)
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		s.logger.Error("checkout lookup by order failed", zap.String("order_id", req.OrderID), zap.Error(err))
		return nil, apperrors.Internal("Failed to load checkout", err)
	}

	provider, err := s.registry.Get(req.PaymentMethod)
	if err != nil {
		return nil, apperrors.BadRequest("Selected payment method is not available", err)
	}

	id := uuid.New()
	slug, err := uniqueSlug(ctx, s.checkouts, BaseSlug(req.Name, id))
	if err != nil {
		return nil, apperrors.Internal("Failed to generate checkout code", err)
	}

	orderCode, err := s.resolveOrderCode(req)
	if err != nil {
		return nil, err
	}

	info, err := provider.Initiate(ctx, providers.InitiateRequest{
		Order:        order,
		CheckoutSlug: slug,
		Amount:       order.TotalPrice,
		OrderCode:    orderCode,
		ReturnURL:    req.ReturnURL,
		CancelURL:    req.CancelURL,
	})
	if err != nil {
		s.logger.Error("payment provider initiate failed",
			zap.String("method", string(req.PaymentMethod)),
			zap.String("order_id", req.OrderID),
			zap.Error(err))
		return nil, apperrors.BadRequest("Could not start the payment, please try again or choose another method", err)
	}

	checkout := &models.Checkout{
		ID:                id,
		Slug:              slug,
		OrderID:           order.ID,
		UserID:            req.UserID,
		Name:              req.Name,
		Phone:             req.Phone,
		Address:           req.Address,
		Email:             req.Email,
		PaymentMethod:     req.PaymentMethod,
		PaymentStatus:     models.PaymentStatusPending,
		PaymentMethodInfo: info,
		Amount:            order.TotalPrice,
	}
	if orderCode > 0 {
		checkout.OrderCode = strconv.FormatInt(orderCode, 10)
	}

	if err := s.checkouts.Create(ctx, checkout); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.BadRequest("A checkout already exists for this order", err)
		}
		s.logger.Error("failed to persist checkout", zap.String("slug", slug), zap.Error(err))
		return nil, apperrors.Internal("Failed to save checkout", err)
	}

	s.logger.Info("checkout created",
		zap.String("slug", checkout.Slug),
		zap.String("order_id", checkout.OrderID.String()),
		zap.String("method", string(checkout.PaymentMethod)),
		zap.Int64("amount", checkout.Amount))
	s.count(awspkg.MetricCheckoutsCreated, checkout)
	s.notify(models.EventOrderCreated, checkout)

	resp := &models.CheckoutResponse{Checkout: checkout}
	if info.Payos != nil {
		resp.PayosPaymentLink = info.Payos.CheckoutURL
	}
	return resp, nil
}

func (s *checkoutServiceImpl) UpdatePaymentStatus(ctx context.Context, slug string, status models.PaymentStatus) (*models.Checkout, error) {
	if !status.Valid() {
		return nil, apperrors.Validation("paymentStatus must be one of pending, paid, failed")
	}
	checkout, err := s.getBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	res, err := s.transition(ctx, checkout, status, nil, nil)
	if err != nil {
		return nil, err
	}
	s.afterTransition(res)
	return res.checkout, nil
}

func (s *checkoutServiceImpl) UpdateByOrderCode(ctx context.Context, orderCode string, status models.PaymentStatus, payload ProviderPayload) (*models.Checkout, bool, error) {
	orderCode = strings.TrimSpace(orderCode)
	if payload.Status != "" || payload.Code != "" {
		status = MapPayosStatus(payload.Status, payload.Code)
	}

	release, err := s.lock.Acquire(ctx, "payos:"+orderCode)
	if err != nil {
		s.logger.Warn("order code lock unavailable, relying on conditional update",
			zap.String("order_code", orderCode), zap.Error(err))
	} else {
		defer release()
	}

	checkout, err := s.payosCheckout(ctx, orderCode)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.Internal("Failed to load checkout", err)
	}

	res, err := s.transition(ctx, checkout, status, webhookGuard, func(info *models.PaymentMethodInfo) {
		recordPayosWebhook(info, orderCode, payload)
	})
	if err != nil {
		return nil, true, err
	}

	if res.checkout.PaymentStatus == models.PaymentStatusPaid {
		if err := s.advanceOrder(ctx, res.checkout); err != nil {
			return res.checkout, true, err
		}
	}
	s.afterTransition(res)
	return res.checkout, true, nil
}

func (s *checkoutServiceImpl) GetBySlug(ctx context.Context, slug string) (*models.Checkout, error) {
	return s.getBySlug(ctx, slug)
}

func (s *checkoutServiceImpl) List(ctx context.Context, page, limit int) (*models.ListResult, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	items, total, err := s.checkouts.List(ctx, (page-1)*limit, limit)
	if err != nil {
		s.logger.Error("list checkouts failed", zap.Error(err))
		return nil, apperrors.Internal("Failed to list checkouts", err)
	}
	if items == nil {
		items = []models.Checkout{}
	}
	return &models.ListResult{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func (s *checkoutServiceImpl) GetPaymentStatusByOrderCode(ctx context.Context, orderCode string) (models.PaymentStatus, bool, error) {
	checkout, err := s.payosCheckout(ctx, strings.TrimSpace(orderCode))
	if errors.Is(err, repository.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.Internal("Failed to load checkout", err)
	}
	return checkout.PaymentStatus, true, nil
}

func (s *checkoutServiceImpl) GetWalletPaymentInfo(ctx context.Context, slug string) (*models.WalletInfo, error) {
	checkout, err := s.walletCheckout(ctx, slug)
	if err != nil {
		return nil, err
	}
	if info := checkout.PaymentMethodInfo.Wallet; info != nil {
		return info, nil
	}
	info := s.wallet.GeneratePaymentInfo(checkout.Amount, "")
	return &info, nil
}

// VerifyWalletTransaction records a client-submitted transfer and marks the
// checkout paid. The chain is not consulted; the record is stamped
// client_asserted.
func (s *checkoutServiceImpl) VerifyWalletTransaction(ctx context.Context, slug string, claim providers.WalletClaim) (*models.Checkout, error) {
	checkout, err := s.walletCheckout(ctx, slug)
	if err != nil {
		return nil, err
	}

	if checkout.PaymentStatus == models.PaymentStatusPaid {
		if w := checkout.PaymentMethodInfo.Wallet; w != nil && strings.EqualFold(w.TransactionHash, claim.TransactionHash) {
			return checkout, nil
		}
		return nil, apperrors.Validation("Checkout is already paid")
	}

	current := models.WalletInfo{}
	if checkout.PaymentMethodInfo.Wallet != nil {
		current = *checkout.PaymentMethodInfo.Wallet
	}
	verified, err := s.wallet.VerifyTransaction(current, checkout.Amount, claim)
	if err != nil {
		return nil, err
	}

	res, err := s.transition(ctx, checkout, models.PaymentStatusPaid, webhookGuard, func(info *models.PaymentMethodInfo) {
		extra := info.Extra
		*info = models.NewWalletInfo(verified)
		info.Extra = extra
	})
	if err != nil {
		return nil, err
	}
	if !res.won && res.checkout.PaymentStatus != models.PaymentStatusPaid {
		return nil, apperrors.Validation("Checkout can no longer be paid")
	}

	s.logger.Warn("wallet payment accepted without on-chain verification",
		zap.String("slug", res.checkout.Slug),
		zap.String("tx_hash", verified.TransactionHash),
		zap.String("claimed_amount", verified.ClaimedAmount))

	if err := s.advanceOrder(ctx, res.checkout); err != nil {
		return nil, err
	}
	s.afterTransition(res)
	return res.checkout, nil
}

// ---- transitions ----

type transitionResult struct {
	checkout *models.Checkout
	previous models.PaymentStatus
	won      bool
}

// guard reports whether a checkout in from may move to to.
type guard func(from, to models.PaymentStatus) bool

// webhookGuard keeps provider callbacks monotonic: paid is final and
// nothing returns to pending.
func webhookGuard(from, to models.PaymentStatus) bool {
	if from == models.PaymentStatusPaid {
		return false
	}
	return to != models.PaymentStatusPending
}

// transition moves checkout to status with a conditional write, re-reading
// and retrying when another writer got there first. Only the call that
// performs the write reports won.
func (s *checkoutServiceImpl) transition(
	ctx context.Context,
	checkout *models.Checkout,
	to models.PaymentStatus,
	allow guard,
	mutate func(info *models.PaymentMethodInfo),
) (transitionResult, error) {
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		from := checkout.PaymentStatus
		if from == to || (allow != nil && !allow(from, to)) {
			return transitionResult{checkout: checkout, previous: from}, nil
		}

		info := checkout.PaymentMethodInfo
		if mutate != nil {
			mutate(&info)
		}

		ok, err := s.checkouts.TransitionStatus(ctx, checkout.ID, from, to, info)
		if err != nil {
			s.logger.Error("payment status update failed",
				zap.String("slug", checkout.Slug), zap.Error(err))
			return transitionResult{}, apperrors.Internal("Failed to update payment status", err)
		}
		if ok {
			checkout.PaymentStatus = to
			checkout.PaymentMethodInfo = info
			s.logger.Info("payment status changed",
				zap.String("slug", checkout.Slug),
				zap.String("from", string(from)),
				zap.String("to", string(to)))
			return transitionResult{checkout: checkout, previous: from, won: true}, nil
		}

		fresh, err := s.checkouts.GetByID(ctx, checkout.ID)
		if err != nil {
			return transitionResult{}, apperrors.Internal("Failed to reload checkout", err)
		}
		checkout = fresh
	}
	return transitionResult{}, apperrors.Internal("Payment status changed concurrently, please retry", nil)
}

// afterTransition fires side effects for the call that won the write.
func (s *checkoutServiceImpl) afterTransition(res transitionResult) {
	if !res.won || res.previous == res.checkout.PaymentStatus {
		return
	}
	switch res.checkout.PaymentStatus {
	case models.PaymentStatusPaid:
		s.count(awspkg.MetricPaymentSucceeded, res.checkout)
		s.notify(models.EventPaymentConfirmed, res.checkout)
	case models.PaymentStatusFailed:
		s.count(awspkg.MetricPaymentFailed, res.checkout)
		s.notify(models.EventPaymentFailed, res.checkout)
	}
}

func (s *checkoutServiceImpl) advanceOrder(ctx context.Context, checkout *models.Checkout) error {
	moved, err := s.orders.AdvanceStatus(ctx, checkout.OrderID, models.OrderStatusPending, models.OrderStatusProcessing)
	if err != nil {
		s.logger.Error("failed to advance order",
			zap.String("order_id", checkout.OrderID.String()), zap.Error(err))
		return apperrors.Internal("Failed to update order status", err)
	}
	if moved {
		s.logger.Info("order moved to processing", zap.String("order_id", checkout.OrderID.String()))
	}
	return nil
}

// ---- helpers ----

func (s *checkoutServiceImpl) getBySlug(ctx context.Context, slug string) (*models.Checkout, error) {
	checkout, err := s.checkouts.GetBySlug(ctx, slug)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Checkout not found")
	}
	if err != nil {
		return nil, apperrors.Internal("Failed to load checkout", err)
	}
	return checkout, nil
}

func (s *checkoutServiceImpl) walletCheckout(ctx context.Context, slug string) (*models.Checkout, error) {
	checkout, err := s.getBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if checkout.PaymentMethod != models.PaymentMethodMetamask {
		return nil, apperrors.Validation("Checkout is not a MetaMask payment")
	}
	if s.wallet == nil {
		return nil, apperrors.BadRequest("MetaMask payments are not available", providers.ErrProviderUnavailable)
	}
	return checkout, nil
}

// payosCheckout looks up the checkout a PayOS order code belongs to. Only
// PayOS checkouts correlate by order code; any other match is not found.
func (s *checkoutServiceImpl) payosCheckout(ctx context.Context, orderCode string) (*models.Checkout, error) {
	checkout, err := s.checkouts.GetByOrderCode(ctx, orderCode)
	if err != nil {
		return nil, err
	}
	if checkout.PaymentMethod != models.PaymentMethodPayos {
		s.logger.Warn("order code matched a non-PayOS checkout",
			zap.String("order_code", orderCode),
			zap.String("slug", checkout.Slug),
			zap.String("method", string(checkout.PaymentMethod)))
		return nil, repository.ErrNotFound
	}
	return checkout, nil
}

// resolveOrderCode returns the PayOS order code for a new checkout. A client
// code is validated for every method but kept only for PayOS.
func (s *checkoutServiceImpl) resolveOrderCode(req models.CreateCheckoutRequest) (int64, error) {
	var code int64
	if req.OrderCode != "" {
		var err error
		code, err = strconv.ParseInt(req.OrderCode.String(), 10, 64)
		if err != nil || code <= 0 {
			return 0, apperrors.Validation("orderCode must be a positive integer")
		}
	}
	if req.PaymentMethod != models.PaymentMethodPayos {
		return 0, nil
	}
	if code == 0 {
		code = s.newOrderCode()
	}
	return code, nil
}

func (s *checkoutServiceImpl) notify(t models.EventType, checkout *models.Checkout) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(models.NewPaymentEvent(t, checkout))
}

func (s *checkoutServiceImpl) count(metric string, checkout *models.Checkout) {
	if s.metrics == nil || !s.metrics.IsEnabled() {
		return
	}
	dims := map[string]string{"PaymentMethod": string(checkout.PaymentMethod)}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.metrics.RecordCount(ctx, metric, dims)
	}()
}

func validateCreate(req *models.CreateCheckoutRequest) error {
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.UserID = strings.TrimSpace(req.UserID)
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Address = strings.TrimSpace(req.Address)
	req.Email = strings.TrimSpace(req.Email)

	required := []struct{ field, value string }{
		{"orderId", req.OrderID},
		{"userId", req.UserID},
		{"name", req.Name},
		{"phone", req.Phone},
		{"address", req.Address},
		{"email", req.Email},
	}
	for _, r := range required {
		if r.value == "" {
			return apperrors.Validation(r.field + " is required")
		}
	}

	if req.PaymentMethod == "" {
		req.PaymentMethod = models.PaymentMethodCash
	}
	if !req.PaymentMethod.Valid() {
		return apperrors.Validation("paymentMethod must be one of cash, bank, payos, paypal, metamask")
	}
	return nil
}

// generateOrderCode returns a positive code well below PayOS's
// 9007199254740991 limit.
func generateOrderCode() int64 {
	return time.Now().UnixMilli()*100 + int64(rand.Intn(100))
}
