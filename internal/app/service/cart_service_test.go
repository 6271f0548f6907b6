package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mercadito/storefront-backend/internal/app/model"
	"github.com/mercadito/storefront-backend/internal/app/repository"
	"github.com/mercadito/storefront-backend/internal/db"
	"github.com/mercadito/storefront-backend/pkg/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type cachedRows struct {
	version int64
	items   []model.CartItem
}

type memoryCache struct {
	mu          sync.Mutex
	versions    map[uint]int64
	rows        map[uint]cachedRows
	gets        int
	hits        int
	invalidated []uint
}

func newMemoryCache() *memoryCache {
	return &memoryCache{versions: map[uint]int64{}, rows: map[uint]cachedRows{}}
}

func (c *memoryCache) Get(ctx context.Context, clientID uint) ([]model.CartItem, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	version := c.versions[clientID]
	entry, ok := c.rows[clientID]
	if !ok || entry.version != version {
		return nil, version, false, nil
	}
	c.hits++
	return entry.items, version, true, nil
}

func (c *memoryCache) Set(ctx context.Context, clientID uint, version int64, items []model.CartItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if version != c.versions[clientID] {
		return nil
	}
	c.rows[clientID] = cachedRows{version: version, items: items}
	return nil
}

func (c *memoryCache) Invalidate(ctx context.Context, clientID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[clientID]++
	delete(c.rows, clientID)
	c.invalidated = append(c.invalidated, clientID)
	return nil
}

func (c *memoryCache) cached(clientID uint) []model.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows[clientID].items
}

// pausingGateway holds the next GetCart after its rows were read until
// release is closed.
type pausingGateway struct {
	repository.CartGateway
	mu      sync.Mutex
	pause   bool
	read    chan struct{}
	release chan struct{}
}

func (g *pausingGateway) GetCart(ctx context.Context, clientID uint) ([]model.CartItem, error) {
	items, err := g.CartGateway.GetCart(ctx, clientID)

	g.mu.Lock()
	pause := g.pause
	g.pause = false
	g.mu.Unlock()

	if pause {
		g.read <- struct{}{}
		<-g.release
	}
	return items, err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type recordingNotifier struct {
	subscribed map[uint]bool
	summaries  []*model.CartSummary
}

func (n *recordingNotifier) HasSubscribers(clientID uint) bool {
	return n.subscribed[clientID]
}

func (n *recordingNotifier) NotifyCart(clientID uint, payload interface{}) error {
	n.summaries = append(n.summaries, payload.(*model.CartSummary))
	return nil
}

type prefixResolver struct{}

func (prefixResolver) ResolveImageURL(ctx context.Context, ref string) (string, error) {
	return "resolved:" + ref, nil
}

type cartServiceFixture struct {
	service   CartService
	db        *gorm.DB
	product   *model.Product
	cache     *memoryCache
	publisher *recordingPublisher
	notifier  *recordingNotifier
}

func setupCartServiceTest(t *testing.T) *cartServiceFixture {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	product, err := db.SeedTestProduct(testDB, "dulce", "4.75", 10)
	require.NoError(t, err)

	gateway := repository.NewCartGateway(db.NewEmbeddedExecutor(testDB), repository.NewErrorLogRepository(testDB))
	f := &cartServiceFixture{
		db:        testDB,
		product:   product,
		cache:     newMemoryCache(),
		publisher: &recordingPublisher{},
		notifier:  &recordingNotifier{subscribed: map[uint]bool{}},
	}
	f.service = NewCartService(gateway,
		WithCache(f.cache),
		WithPublisher(f.publisher),
		WithNotifier(f.notifier),
		WithImageResolver(prefixResolver{}),
	)
	return f
}

func (f *cartServiceFixture) add(t *testing.T, clientID uint, quantity int) *model.CartItem {
	t.Helper()
	item, err := f.service.AddItem(context.Background(), model.InsertItemInput{
		ClientID:  clientID,
		ProductID: f.product.ID,
		Quantity:  quantity,
	})
	require.NoError(t, err)
	return item
}

func TestCartService_GetCart_Empty(t *testing.T) {
	f := setupCartServiceTest(t)

	items, err := f.service.GetCart(context.Background(), 1)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestCartService_GetCart_InvalidClient(t *testing.T) {
	f := setupCartServiceTest(t)

	_, err := f.service.GetCart(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidClientID)
}

func TestCartService_AddItem(t *testing.T) {
	f := setupCartServiceTest(t)

	item := f.add(t, 1, 2)
	assert.Equal(t, 2, item.Quantity)
	assert.True(t, decimal.RequireFromString("9.5").Equal(item.SubTotal))
	assert.Equal(t, "resolved:https://cdn.example.com/dulce.jpg", item.ImageURL)
	assert.Equal(t, []events.Type{events.CartItemAdded}, f.publisher.types())
	assert.Equal(t, []uint{1}, f.cache.invalidated)
}

func TestCartService_AddItem_Validation(t *testing.T) {
	f := setupCartServiceTest(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input model.InsertItemInput
		want  error
	}{
		{"missing client", model.InsertItemInput{ProductID: f.product.ID, Quantity: 1}, ErrInvalidClientID},
		{"missing product", model.InsertItemInput{ClientID: 1, Quantity: 1}, ErrInvalidProductID},
		{"zero quantity", model.InsertItemInput{ClientID: 1, ProductID: f.product.ID}, ErrInvalidQuantity},
		{"negative quantity", model.InsertItemInput{ClientID: 1, ProductID: f.product.ID, Quantity: -2}, ErrInvalidQuantity},
		{"unknown product", model.InsertItemInput{ClientID: 1, ProductID: 999, Quantity: 1}, ErrProductNotFound},
		{"over stock", model.InsertItemInput{ClientID: 1, ProductID: f.product.ID, Quantity: 11}, ErrInsufficientStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.AddItem(ctx, tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.publisher.types())
}

func TestCartService_SubTotalInvariant(t *testing.T) {
	f := setupCartServiceTest(t)
	f.add(t, 1, 3)

	items, err := f.service.GetCart(context.Background(), 1)
	require.NoError(t, err)
	for _, item := range items {
		assert.True(t, item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Equal(item.SubTotal))
	}
}

func TestCartService_GetCart_UsesCache(t *testing.T) {
	f := setupCartServiceTest(t)
	f.add(t, 1, 1)
	ctx := context.Background()

	first, err := f.service.GetCart(ctx, 1)
	require.NoError(t, err)
	second, err := f.service.GetCart(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.cache.hits)

	// cached rows stay unresolved
	assert.Equal(t, "https://cdn.example.com/dulce.jpg", f.cache.cached(1)[0].ImageURL)

	f.add(t, 1, 1)
	_, _, found, _ := f.cache.Get(ctx, 1)
	assert.False(t, found)
}

func TestCartService_GetCart_StaleFillAfterRemove(t *testing.T) {
	f := setupCartServiceTest(t)
	item := f.add(t, 7, 1)
	ctx := context.Background()

	gateway := &pausingGateway{
		CartGateway: repository.NewCartGateway(db.NewEmbeddedExecutor(f.db), repository.NewErrorLogRepository(f.db)),
		pause:       true,
		read:        make(chan struct{}),
		release:     make(chan struct{}),
	}
	svc := NewCartService(gateway, WithCache(newMemoryCache()))

	done := make(chan error, 1)
	go func() {
		_, err := svc.GetCart(ctx, 7)
		done <- err
	}()

	// the read has its rows but has not filled the cache yet
	<-gateway.read
	_, err := svc.RemoveItem(ctx, item.CartID, f.product.ID)
	require.NoError(t, err)
	close(gateway.release)
	require.NoError(t, <-done)

	items, err := svc.GetCart(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCartService_UpdateQuantity(t *testing.T) {
	f := setupCartServiceTest(t)
	item := f.add(t, 1, 1)

	update, err := f.service.UpdateQuantity(context.Background(), model.UpdateQuantityInput{
		CartID:    item.CartID,
		ProductID: f.product.ID,
		Quantity:  5,
	})
	require.NoError(t, err)
	assert.False(t, update.Removed())
	assert.Equal(t, 5, update.Item.Quantity)
	assert.Equal(t, []events.Type{events.CartItemAdded, events.CartItemUpdated}, f.publisher.types())
}

func TestCartService_UpdateQuantityToZeroRemoves(t *testing.T) {
	f := setupCartServiceTest(t)
	item := f.add(t, 1, 2)
	ctx := context.Background()

	update, err := f.service.UpdateQuantity(ctx, model.UpdateQuantityInput{
		CartID:    item.CartID,
		ProductID: f.product.ID,
		Quantity:  0,
	})
	require.NoError(t, err)
	require.True(t, update.Removed())
	assert.Equal(t, f.product.ID, update.Removal.ProductID)

	items, err := f.service.GetCart(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCartService_UpdateQuantity_Negative(t *testing.T) {
	f := setupCartServiceTest(t)
	item := f.add(t, 1, 2)

	_, err := f.service.UpdateQuantity(context.Background(), model.UpdateQuantityInput{
		CartID:    item.CartID,
		ProductID: f.product.ID,
		Quantity:  -1,
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCartService_RemoveItem(t *testing.T) {
	f := setupCartServiceTest(t)
	item := f.add(t, 1, 2)
	ctx := context.Background()

	removed, err := f.service.RemoveItem(ctx, item.CartID, f.product.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(1), removed.ClientID)

	items, err := f.service.GetCart(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = f.service.RemoveItem(ctx, item.CartID, f.product.ID)
	assert.ErrorIs(t, err, ErrCartItemNotFound)
}

func TestCartService_Checkout(t *testing.T) {
	f := setupCartServiceTest(t)
	item := f.add(t, 1, 2)
	ctx := context.Background()

	order, err := f.service.Checkout(ctx, item.CartID)
	require.NoError(t, err)
	assert.Equal(t, uint(1), order.ClientID)
	assert.True(t, decimal.RequireFromString("9.5").Equal(order.Total))

	items, err := f.service.GetCart(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = f.service.Checkout(ctx, item.CartID)
	assert.ErrorIs(t, err, ErrCartClosed)
}

func TestCartService_CheckoutEmptyCart(t *testing.T) {
	f := setupCartServiceTest(t)
	item := f.add(t, 1, 1)
	ctx := context.Background()

	_, err := f.service.RemoveItem(ctx, item.CartID, f.product.ID)
	require.NoError(t, err)

	_, err = f.service.Checkout(ctx, item.CartID)
	assert.ErrorIs(t, err, ErrCartEmpty)

	_, err = f.service.Checkout(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidCartID)
}

func TestCartService_NotifiesSubscribers(t *testing.T) {
	f := setupCartServiceTest(t)
	f.notifier.subscribed[1] = true

	f.add(t, 1, 2)
	f.add(t, 2, 1)

	require.Len(t, f.notifier.summaries, 1)
	summary := f.notifier.summaries[0]
	assert.Equal(t, uint(1), summary.ClientID)
	assert.Equal(t, 2, summary.ItemCount)
	assert.Equal(t, 1, summary.LineCount)
	require.NotNil(t, summary.CartID)
}

func TestCartService_PublishFailureDoesNotFailRequest(t *testing.T) {
	f := setupCartServiceTest(t)
	f.publisher.err = errors.New("broker down")

	item := f.add(t, 1, 1)
	assert.NotZero(t, item.CartItemID)
}

func TestCartService_GetCartSummary(t *testing.T) {
	f := setupCartServiceTest(t)
	ctx := context.Background()

	summary, err := f.service.GetCartSummary(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, summary.CartID)
	assert.Zero(t, summary.ItemCount)
	assert.True(t, summary.Total.IsZero())

	f.add(t, 1, 3)
	summary, err = f.service.GetCartSummary(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.ItemCount)
	assert.True(t, decimal.RequireFromString("14.25").Equal(summary.Total))
}
