package cartclient

import (
	"context"
	"errors"
	"sync"

	"github.com/mercadito/storefront-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

var (
	// ErrBusy is returned by AddProduct while a previous add is in flight
	ErrBusy = errors.New("cartclient: add already in progress")

	// ErrSessionClosed is returned by every action after Close
	ErrSessionClosed = errors.New("cartclient: session closed")
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// Snapshot is the view state of a cart session.
type Snapshot struct {
	ClientID uint
	CartID   uint // 0 until the cart has a line
	Items    []CartItem
	Count    int // sum of quantities, shown on the badge
	Total    decimal.Decimal
	Status   Status
	Err      error
}

type SessionOption func(*Session)

// WithOnChange registers fn to receive a snapshot after every state change.
// fn runs on the goroutine that caused the change.
func WithOnChange(fn func(Snapshot)) SessionOption {
	return func(s *Session) { s.onChange = fn }
}

// Session drives one client's cart the way the storefront UI does: every
// successful mutation is followed by a full refetch.
type Session struct {
	api      API
	clientID uint
	onChange func(Snapshot)

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	items      []CartItem
	status     Status
	lastErr    error
	generation uint64
	adding     bool
}

func NewSession(api API, clientID uint, opts ...SessionOption) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		api:      api,
		clientID: clientID,
		ctx:      ctx,
		cancel:   cancel,
		items:    []CartItem{},
		status:   StatusIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close cancels every in-flight request. Responses arriving afterwards are
// discarded.
func (s *Session) Close() {
	s.cancel()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ClientID: s.clientID,
		Items:    make([]CartItem, len(s.items)),
		Total:    decimal.Zero,
		Status:   s.status,
		Err:      s.lastErr,
	}
	copy(snap.Items, s.items)
	for _, item := range s.items {
		snap.Count += item.Quantity
		snap.Total = snap.Total.Add(item.SubTotal)
	}
	if len(s.items) > 0 {
		snap.CartID = s.items[0].CartID
	}
	return snap
}

// Refresh refetches the cart. A result is applied only when no newer fetch
// started meanwhile.
func (s *Session) Refresh(ctx context.Context) error {
	ctx, done, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer done()
	return s.refresh(ctx)
}

func (s *Session) refresh(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.status = StatusLoading
	s.mu.Unlock()
	s.notify()

	items, err := s.api.GetCart(ctx, s.clientID)

	s.mu.Lock()
	if gen != s.generation || s.ctx.Err() != nil {
		s.mu.Unlock()
		logger.Debug("Discarding stale cart response", map[string]interface{}{
			"client_id":  s.clientID,
			"generation": gen,
		})
		if s.ctx.Err() != nil {
			return ErrSessionClosed
		}
		return nil
	}
	if err != nil {
		s.status = StatusError
		s.lastErr = err
	} else {
		s.items = items
		s.status = StatusReady
		s.lastErr = nil
	}
	s.mu.Unlock()
	s.notify()
	return err
}

// AddProduct adds exactly one unit of productID.
func (s *Session) AddProduct(ctx context.Context, productID uint) error {
	s.mu.Lock()
	if s.adding {
		s.mu.Unlock()
		return ErrBusy
	}
	s.adding = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.adding = false
		s.mu.Unlock()
	}()

	return s.mutate(ctx, func(ctx context.Context) error {
		_, err := s.api.InsertItem(ctx, s.clientID, productID, 1)
		return err
	})
}

// SetQuantity sets the quantity of a line already in the cart. Zero removes it.
func (s *Session) SetQuantity(ctx context.Context, productID uint, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	cartID, err := s.cartFor(productID)
	if err != nil {
		return err
	}
	return s.mutate(ctx, func(ctx context.Context) error {
		_, err := s.api.UpdateQuantity(ctx, cartID, productID, quantity)
		return err
	})
}

func (s *Session) RemoveItem(ctx context.Context, productID uint) error {
	cartID, err := s.cartFor(productID)
	if err != nil {
		return err
	}
	return s.mutate(ctx, func(ctx context.Context) error {
		_, err := s.api.DeleteItem(ctx, cartID, productID)
		return err
	})
}

// Checkout converts the cart into an order. An empty cart fails without a
// request.
func (s *Session) Checkout(ctx context.Context) (*Order, error) {
	snap := s.Snapshot()
	if len(snap.Items) == 0 {
		return nil, ErrEmptyCart
	}

	var order *Order
	err := s.mutate(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.api.ConvertCartToOrder(ctx, snap.CartID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Session) cartFor(productID uint) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.ProductID == productID {
			return item.CartID, nil
		}
	}
	return 0, ErrCartItemNotFound
}

func (s *Session) mutate(ctx context.Context, call func(ctx context.Context) error) error {
	ctx, done, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	s.mu.Lock()
	s.status = StatusLoading
	s.mu.Unlock()
	s.notify()

	if err := call(ctx); err != nil {
		s.mu.Lock()
		if s.ctx.Err() != nil {
			s.mu.Unlock()
			return ErrSessionClosed
		}
		// a fetch already in flight must not clear the error
		s.generation++
		s.status = StatusError
		s.lastErr = err
		s.mu.Unlock()
		s.notify()
		return err
	}

	return s.refresh(ctx)
}

// begin derives a request context that is also cancelled by Close.
func (s *Session) begin(ctx context.Context) (context.Context, func(), error) {
	if s.ctx.Err() != nil {
		return nil, nil, ErrSessionClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}, nil
}

func (s *Session) notify() {
	if s.onChange == nil {
		return
	}
	s.onChange(s.Snapshot())
}
