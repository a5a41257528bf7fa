package services_test

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"checkout-service/models"
	"checkout-service/providers"
	"checkout-service/repository"
)

// memCheckoutRepo is an in-memory CheckoutRepository with the same
// conditional-update semantics as the SQL one.
type memCheckoutRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]models.Checkout
	// transitions counts successful conditional writes
	transitions int
	// lookupErr, when set, fails GetByOrderID
	lookupErr error
}

func newMemCheckoutRepo() *memCheckoutRepo {
	return &memCheckoutRepo{items: make(map[uuid.UUID]models.Checkout)}
}

func (r *memCheckoutRepo) Create(_ context.Context, c *models.Checkout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.OrderID == c.OrderID || existing.Slug == c.Slug ||
			(c.OrderCode != "" && existing.OrderCode == c.OrderCode) {
			return repository.ErrDuplicate
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.items[c.ID] = *c
	return nil
}

func (r *memCheckoutRepo) find(match func(models.Checkout) bool) (*models.Checkout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.items {
		if match(c) {
			cp := c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memCheckoutRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Checkout, error) {
	return r.find(func(c models.Checkout) bool { return c.ID == id })
}

func (r *memCheckoutRepo) GetBySlug(_ context.Context, slug string) (*models.Checkout, error) {
	return r.find(func(c models.Checkout) bool { return c.Slug == slug })
}

func (r *memCheckoutRepo) GetByOrderID(_ context.Context, orderID uuid.UUID) (*models.Checkout, error) {
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	return r.find(func(c models.Checkout) bool { return c.OrderID == orderID })
}

func (r *memCheckoutRepo) GetByOrderCode(_ context.Context, code string) (*models.Checkout, error) {
	if code == "" {
		return nil, repository.ErrNotFound
	}
	return r.find(func(c models.Checkout) bool { return c.OrderCode == code })
}

func (r *memCheckoutRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	_, err := r.GetBySlug(ctx, slug)
	return err == nil, nil
}

func (r *memCheckoutRepo) List(_ context.Context, offset, limit int) ([]models.Checkout, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]models.Checkout, 0, len(r.items))
	for _, c := range r.items {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Slug < all[j].Slug })
	total := int64(len(all))
	if offset >= len(all) {
		return []models.Checkout{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *memCheckoutRepo) TransitionStatus(_ context.Context, id uuid.UUID, from, to models.PaymentStatus, info models.PaymentMethodInfo) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok || c.PaymentStatus != from {
		return false, nil
	}
	c.PaymentStatus = to
	c.PaymentMethodInfo = info
	r.items[id] = c
	r.transitions++
	return true, nil
}

func (r *memCheckoutRepo) get(id uuid.UUID) models.Checkout {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id]
}

type memOrderRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]models.Order
}

func newMemOrderRepo(orders ...models.Order) *memOrderRepo {
	r := &memOrderRepo{items: make(map[uuid.UUID]models.Order)}
	for _, o := range orders {
		o.Recalculate()
		r.items[o.ID] = o
	}
	return r
}

func (r *memOrderRepo) Create(_ context.Context, o *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o.Recalculate()
	r.items[o.ID] = *o
	return nil
}

func (r *memOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &o, nil
}

func (r *memOrderRepo) AdvanceStatus(_ context.Context, id uuid.UUID, from, to models.OrderStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.items[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	r.items[id] = o
	return true, nil
}

func (r *memOrderRepo) status(id uuid.UUID) models.OrderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id].Status
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.PaymentEvent
}

func (n *recordingNotifier) Notify(ev models.PaymentEvent) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return true
}

func (n *recordingNotifier) count(t models.EventType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, ev := range n.events {
		if ev.Type == t {
			c++
		}
	}
	return c
}

// failingProvider always fails to initiate.
type failingProvider struct{ method models.PaymentMethod }

func (p failingProvider) Method() models.PaymentMethod { return p.method }

func (p failingProvider) Initiate(context.Context, providers.InitiateRequest) (models.PaymentMethodInfo, error) {
	return models.PaymentMethodInfo{}, providers.ErrProviderUnavailable
}

func newOrder(total int64) models.Order {
	return models.Order{
		ID:         uuid.New(),
		Slug:       "DH-" + uuid.NewString()[:8],
		UserID:     "user-1",
		OrderItems: models.OrderItems{{ProductID: "p-1", Quantity: 1, Price: total}},
		Status:     models.OrderStatusPending,
	}
}

func createRequest(orderID uuid.UUID, method models.PaymentMethod) models.CreateCheckoutRequest {
	return models.CreateCheckoutRequest{
		OrderID:       orderID.String(),
		UserID:        "user-1",
		Name:          "Nguyễn Văn Đức",
		Phone:         "0901234567",
		Address:       "12 Lê Lợi, Quận 1",
		Email:         "duc@example.com",
		PaymentMethod: method,
	}
}
