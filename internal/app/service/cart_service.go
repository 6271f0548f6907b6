package service

import (
	"context"
	"errors"
	"time"

	"github.com/mercadito/storefront-backend/internal/app/model"
	"github.com/mercadito/storefront-backend/internal/app/repository"
	"github.com/mercadito/storefront-backend/pkg/events"
	"github.com/mercadito/storefront-backend/pkg/logger"
)

const sideEffectTimeout = 5 * time.Second

var (
	ErrInvalidClientID  = errors.New("client id must be positive")
	ErrInvalidCartID    = errors.New("cart id must be positive")
	ErrInvalidProductID = errors.New("product id must be positive")

	ErrCartNotFound      = repository.ErrCartNotFound
	ErrCartItemNotFound  = repository.ErrCartItemNotFound
	ErrCartEmpty         = repository.ErrCartEmpty
	ErrCartClosed        = repository.ErrCartClosed
	ErrProductNotFound   = repository.ErrProductNotFound
	ErrInsufficientStock = repository.ErrInsufficientStock
	ErrInvalidQuantity   = repository.ErrInvalidQuantity
)

// CartCache holds the rows of a client's open cart between mutations.
//
// Get reports the cache version current at read time, even on a miss. Set
// stores rows for that version only; once Invalidate has moved the version
// on, rows set for an older version are never returned.
type CartCache interface {
	Get(ctx context.Context, clientID uint) (items []model.CartItem, version int64, found bool, err error)
	Set(ctx context.Context, clientID uint, version int64, items []model.CartItem) error
	Invalidate(ctx context.Context, clientID uint) error
}

// CartNotifier pushes cart state to live subscribers.
type CartNotifier interface {
	HasSubscribers(clientID uint) bool
	NotifyCart(clientID uint, payload interface{}) error
}

type ImageResolver interface {
	ResolveImageURL(ctx context.Context, ref string) (string, error)
}

type CartService interface {
	GetCart(ctx context.Context, clientID uint) ([]model.CartItem, error)
	GetCartSummary(ctx context.Context, clientID uint) (*model.CartSummary, error)
	AddItem(ctx context.Context, input model.InsertItemInput) (*model.CartItem, error)
	UpdateQuantity(ctx context.Context, input model.UpdateQuantityInput) (*model.CartItemUpdate, error)
	RemoveItem(ctx context.Context, cartID, productID uint) (*model.RemovedCartItem, error)
	Checkout(ctx context.Context, cartID uint) (*model.Order, error)
	PushSummary(ctx context.Context, clientID uint)
}

type CartServiceOption func(*cartService)

func WithCache(cache CartCache) CartServiceOption {
	return func(s *cartService) { s.cache = cache }
}

func WithPublisher(publisher events.Publisher) CartServiceOption {
	return func(s *cartService) { s.publisher = publisher }
}

func WithNotifier(notifier CartNotifier) CartServiceOption {
	return func(s *cartService) { s.notifier = notifier }
}

func WithImageResolver(images ImageResolver) CartServiceOption {
	return func(s *cartService) { s.images = images }
}

type cartService struct {
	gateway   repository.CartGateway
	cache     CartCache
	publisher events.Publisher
	notifier  CartNotifier
	images    ImageResolver
}

func NewCartService(gateway repository.CartGateway, opts ...CartServiceOption) CartService {
	s := &cartService{gateway: gateway}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *cartService) GetCart(ctx context.Context, clientID uint) ([]model.CartItem, error) {
	logger.Debug("Fetching client cart", map[string]interface{}{
		"client_id": clientID,
	})

	if clientID == 0 {
		return nil, ErrInvalidClientID
	}

	var (
		version   int64
		cacheable bool
	)
	if s.cache != nil {
		items, ver, found, err := s.cache.Get(ctx, clientID)
		switch {
		case err != nil:
			logger.Warn("Cart cache read failed, falling back to database", map[string]interface{}{
				"client_id": clientID,
				"error":     err.Error(),
			})
		case found:
			logger.Debug("Cart served from cache", map[string]interface{}{
				"client_id": clientID,
				"count":     len(items),
			})
			return s.present(ctx, items), nil
		default:
			version, cacheable = ver, true
		}
	}

	items, err := s.gateway.GetCart(ctx, clientID)
	if err != nil {
		logger.Error("Failed to fetch client cart", err, map[string]interface{}{
			"client_id": clientID,
		})
		return nil, err
	}

	if cacheable {
		if err := s.cache.Set(ctx, clientID, version, items); err != nil {
			logger.Warn("Failed to cache cart", map[string]interface{}{
				"client_id": clientID,
				"error":     err.Error(),
			})
		}
	}

	logger.Info("Client cart fetched successfully", map[string]interface{}{
		"client_id": clientID,
		"count":     len(items),
	})
	return s.present(ctx, items), nil
}

func (s *cartService) GetCartSummary(ctx context.Context, clientID uint) (*model.CartSummary, error) {
	items, err := s.GetCart(ctx, clientID)
	if err != nil {
		return nil, err
	}
	summary := model.Summarize(clientID, items)
	return &summary, nil
}

func (s *cartService) AddItem(ctx context.Context, input model.InsertItemInput) (*model.CartItem, error) {
	logger.Info("Adding item to cart", map[string]interface{}{
		"client_id":  input.ClientID,
		"product_id": input.ProductID,
		"quantity":   input.Quantity,
	})

	switch {
	case input.ClientID == 0:
		return nil, ErrInvalidClientID
	case input.ProductID == 0:
		return nil, ErrInvalidProductID
	case input.Quantity < 1:
		return nil, ErrInvalidQuantity
	}

	item, err := s.gateway.InsertItem(ctx, input)
	if err != nil {
		logger.Error("Failed to add item to cart", err, map[string]interface{}{
			"client_id":  input.ClientID,
			"product_id": input.ProductID,
		})
		return nil, err
	}

	s.normalize(ctx, item)
	s.afterMutation(ctx, events.CartItemAdded, item.ClientID, item.CartID, item)

	logger.Info("Item added to cart successfully", map[string]interface{}{
		"client_id":    item.ClientID,
		"cart_id":      item.CartID,
		"cart_item_id": item.CartItemID,
		"quantity":     item.Quantity,
	})
	return item, nil
}

// UpdateQuantity sets the quantity of a cart line. Zero removes the line.
func (s *cartService) UpdateQuantity(ctx context.Context, input model.UpdateQuantityInput) (*model.CartItemUpdate, error) {
	logger.Info("Updating cart item quantity", map[string]interface{}{
		"cart_id":    input.CartID,
		"product_id": input.ProductID,
		"quantity":   input.Quantity,
	})

	switch {
	case input.CartID == 0:
		return nil, ErrInvalidCartID
	case input.ProductID == 0:
		return nil, ErrInvalidProductID
	case input.Quantity < 0:
		return nil, ErrInvalidQuantity
	}

	if input.Quantity == 0 {
		removed, err := s.RemoveItem(ctx, input.CartID, input.ProductID)
		if err != nil {
			return nil, err
		}
		return &model.CartItemUpdate{Removal: removed}, nil
	}

	item, err := s.gateway.UpdateQuantity(ctx, input)
	if err != nil {
		logger.Error("Failed to update cart item quantity", err, map[string]interface{}{
			"cart_id":    input.CartID,
			"product_id": input.ProductID,
		})
		return nil, err
	}

	s.normalize(ctx, item)
	s.afterMutation(ctx, events.CartItemUpdated, item.ClientID, item.CartID, item)

	logger.Info("Cart item quantity updated successfully", map[string]interface{}{
		"cart_id":    item.CartID,
		"product_id": item.ProductID,
		"quantity":   item.Quantity,
	})
	return &model.CartItemUpdate{Item: item}, nil
}

func (s *cartService) RemoveItem(ctx context.Context, cartID, productID uint) (*model.RemovedCartItem, error) {
	logger.Info("Removing item from cart", map[string]interface{}{
		"cart_id":    cartID,
		"product_id": productID,
	})

	switch {
	case cartID == 0:
		return nil, ErrInvalidCartID
	case productID == 0:
		return nil, ErrInvalidProductID
	}

	removed, err := s.gateway.DeleteItem(ctx, cartID, productID)
	if err != nil {
		logger.Error("Failed to remove item from cart", err, map[string]interface{}{
			"cart_id":    cartID,
			"product_id": productID,
		})
		return nil, err
	}

	s.afterMutation(ctx, events.CartItemRemoved, removed.ClientID, removed.CartID, removed)

	logger.Info("Item removed from cart successfully", map[string]interface{}{
		"cart_id":    cartID,
		"product_id": productID,
		"client_id":  removed.ClientID,
	})
	return removed, nil
}

func (s *cartService) Checkout(ctx context.Context, cartID uint) (*model.Order, error) {
	logger.Info("Converting cart to order", map[string]interface{}{
		"cart_id": cartID,
	})

	if cartID == 0 {
		return nil, ErrInvalidCartID
	}

	order, err := s.gateway.ConvertCartToOrder(ctx, cartID)
	if err != nil {
		logger.Error("Failed to convert cart to order", err, map[string]interface{}{
			"cart_id": cartID,
		})
		return nil, err
	}

	s.afterMutation(ctx, events.CartConverted, order.ClientID, order.CartID, order)

	logger.Info("Cart converted to order successfully", map[string]interface{}{
		"cart_id":    cartID,
		"order_id":   order.ID,
		"client_id":  order.ClientID,
		"total":      order.Total.String(),
		"item_count": order.ItemCount,
	})
	return order, nil
}

// PushSummary sends the current cart summary to clientID's live sessions.
func (s *cartService) PushSummary(ctx context.Context, clientID uint) {
	if s.notifier == nil || !s.notifier.HasSubscribers(clientID) {
		return
	}

	summary, err := s.GetCartSummary(ctx, clientID)
	if err != nil {
		logger.Warn("Failed to build cart summary for subscribers", map[string]interface{}{
			"client_id": clientID,
			"error":     err.Error(),
		})
		return
	}
	if err := s.notifier.NotifyCart(clientID, summary); err != nil {
		logger.Warn("Failed to notify cart subscribers", map[string]interface{}{
			"client_id": clientID,
			"error":     err.Error(),
		})
	}
}

// afterMutation runs the side effects of a successful mutation. None of them
// can fail the request.
func (s *cartService) afterMutation(ctx context.Context, eventType events.Type, clientID, cartID uint, payload interface{}) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, clientID); err != nil {
			logger.Warn("Failed to invalidate cart cache", map[string]interface{}{
				"client_id": clientID,
				"error":     err.Error(),
			})
		}
	}

	if s.publisher != nil {
		event, err := events.New(eventType, clientID, cartID, payload)
		if err == nil {
			err = s.publisher.Publish(ctx, event)
		}
		if err != nil {
			logger.Warn("Failed to publish cart event", map[string]interface{}{
				"event_type": string(eventType),
				"client_id":  clientID,
				"cart_id":    cartID,
				"error":      err.Error(),
			})
		}
	}

	s.PushSummary(ctx, clientID)
}

func (s *cartService) present(ctx context.Context, items []model.CartItem) []model.CartItem {
	out := make([]model.CartItem, len(items))
	copy(out, items)
	for i := range out {
		s.normalize(ctx, &out[i])
	}
	return out
}

// normalize re-derives SubTotal and resolves the image reference.
func (s *cartService) normalize(ctx context.Context, item *model.CartItem) {
	item.SubTotal = item.ComputeSubTotal()

	if s.images == nil || item.ImageURL == "" {
		return
	}
	url, err := s.images.ResolveImageURL(ctx, item.ImageURL)
	if err != nil {
		logger.Warn("Failed to resolve product image", map[string]interface{}{
			"product_id": item.ProductID,
			"error":      err.Error(),
		})
		return
	}
	item.ImageURL = url
}
