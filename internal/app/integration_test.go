package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/mercadito/storefront-backend/config"
	"github.com/mercadito/storefront-backend/internal/app/controller"
	"github.com/mercadito/storefront-backend/internal/app/model"
	"github.com/mercadito/storefront-backend/internal/app/repository"
	"github.com/mercadito/storefront-backend/internal/app/service"
	"github.com/mercadito/storefront-backend/internal/db"
	"github.com/mercadito/storefront-backend/internal/router"
	"github.com/mercadito/storefront-backend/internal/websocket"
	"github.com/mercadito/storefront-backend/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func (p *capturingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type TestServer struct {
	Server    *httptest.Server
	DB        *gorm.DB
	Publisher *capturingPublisher
	Hub       *websocket.Hub
}

func setupIntegrationTest(t *testing.T) *TestServer {
	gin.SetMode(gin.TestMode)
	model.UseNumericMoneyJSON()

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)

	errorLogs := repository.NewErrorLogRepository(testDB)
	gateway := repository.NewCartGateway(db.NewEmbeddedExecutor(testDB), errorLogs)
	productRepo := repository.NewProductRepository(testDB)

	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	publisher := &capturingPublisher{}
	cartService := service.NewCartService(gateway,
		service.WithPublisher(publisher),
		service.WithNotifier(hub),
	)
	hub.OnRefresh(func(clientID uint) {
		cartService.PushSummary(context.Background(), clientID)
	})

	cfg := &config.Config{
		Server: config.ServerConfig{GinMode: gin.TestMode},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"*"}},
	}
	r := router.NewRouter(
		controller.NewProductController(service.NewProductService(productRepo, nil)),
		controller.NewCartController(cartService),
		controller.NewCartStreamController(hub, cartService, cfg.CORS.AllowedOrigins),
		cfg,
	)

	server := httptest.NewServer(r.Setup())
	t.Cleanup(func() {
		server.Close()
		cancel()
		<-stopped
		db.CleanupTestDB(testDB)
	})

	return &TestServer{Server: server, DB: testDB, Publisher: publisher, Hub: hub}
}

func (ts *TestServer) do(t *testing.T, method, path string, body interface{}, out interface{}) int {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.Server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestIntegration_HealthAndRequestID(t *testing.T) {
	ts := setupIntegrationTest(t)

	resp, err := http.Get(ts.Server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestIntegration_CartLifecycle(t *testing.T) {
	ts := setupIntegrationTest(t)

	mate, err := db.SeedTestProduct(ts.DB, "mate", "12.50", 10)
	require.NoError(t, err)
	yerba, err := db.SeedTestProduct(ts.DB, "yerba", "3.00", 10)
	require.NoError(t, err)

	var products service.ProductPage
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/products", nil, &products))
	assert.Len(t, products.Products, 2)

	var item model.CartItem
	status := ts.do(t, http.MethodPost, "/api/cart", map[string]interface{}{
		"ClientId": 31, "ProductId": mate.ID, "Quantity": 1,
	}, &item)
	require.Equal(t, http.StatusCreated, status)
	cartID := item.CartID

	status = ts.do(t, http.MethodPost, "/api/cart", map[string]interface{}{
		"ClientId": 31, "ProductId": yerba.ID, "Quantity": 2,
	}, &item)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, cartID, item.CartID)

	status = ts.do(t, http.MethodPut, "/api/cart", map[string]interface{}{
		"CartId": cartID, "ProductId": mate.ID, "Quantity": 3,
	}, &item)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "37.5", item.SubTotal.String())

	var removed model.RemovedCartItem
	status = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/cart/%d/%d", cartID, yerba.ID), nil, &removed)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, yerba.ID, removed.ProductID)

	var items []model.CartItem
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/carts/31", nil, &items))
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)

	var order model.Order
	status = ts.do(t, http.MethodPost, "/api/cart/convert", map[string]interface{}{"CartId": cartID}, &order)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "37.5", order.Total.String())
	assert.Equal(t, 3, order.ItemCount)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/carts/31", nil, &items))
	assert.Empty(t, items)

	assert.Equal(t, []events.Type{
		events.CartItemAdded,
		events.CartItemAdded,
		events.CartItemUpdated,
		events.CartItemRemoved,
		events.CartConverted,
	}, ts.Publisher.types())
}

func TestIntegration_MoneyIsEncodedAsNumbers(t *testing.T) {
	ts := setupIntegrationTest(t)

	mate, err := db.SeedTestProduct(ts.DB, "mate", "12.50", 10)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/cart", map[string]interface{}{
		"ClientId": 5, "ProductId": mate.ID, "Quantity": 2,
	}, nil))

	var raw []map[string]interface{}
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/carts/5", nil, &raw))
	require.Len(t, raw, 1)
	assert.Equal(t, 25.0, raw[0]["SubTotal"])
	assert.Equal(t, 12.5, raw[0]["UnitPrice"])
}

func TestIntegration_CartStream(t *testing.T) {
	ts := setupIntegrationTest(t)

	product, err := db.SeedTestProduct(ts.DB, "alfajor", "2.00", 10)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(ts.Server.URL, "http") + "/api/carts/44/ws"
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	readSummary := func() model.CartSummary {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg struct {
			Type    string            `json:"type"`
			Payload model.CartSummary `json:"payload"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "cart_updated", msg.Type)
		return msg.Payload
	}

	initial := readSummary()
	assert.Equal(t, 0, initial.ItemCount)
	assert.Nil(t, initial.CartID)

	require.Eventually(t, func() bool { return ts.Hub.HasSubscribers(44) }, time.Second, 10*time.Millisecond)

	status := ts.do(t, http.MethodPost, "/api/cart", map[string]interface{}{
		"ClientId": 44, "ProductId": product.ID, "Quantity": 2,
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	updated := readSummary()
	assert.Equal(t, 2, updated.ItemCount)
	assert.Equal(t, "4", updated.Total.String())

	require.NoError(t, conn.WriteJSON(websocket.ClientMessage{Type: "refresh"}))
	refreshed := readSummary()
	assert.Equal(t, updated.ItemCount, refreshed.ItemCount)
}

func TestIntegration_FailuresAreLogged(t *testing.T) {
	ts := setupIntegrationTest(t)

	status := ts.do(t, http.MethodPost, "/api/cart/convert", map[string]interface{}{"CartId": 777}, nil)
	assert.Equal(t, http.StatusNotFound, status)

	entries, err := repository.NewErrorLogRepository(ts.DB).FindRecent(context.Background(), "CartGateway", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ConvertCartToOrder", entries[0].Operation)
}
