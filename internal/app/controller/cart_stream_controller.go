package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mercadito/storefront-backend/internal/app/service"
	"github.com/mercadito/storefront-backend/internal/middleware"
	ws "github.com/mercadito/storefront-backend/internal/websocket"
)

type CartStreamController struct {
	hub         *ws.Hub
	cartService service.CartService
	upgrader    websocket.Upgrader
}

func NewCartStreamController(hub *ws.Hub, cartService service.CartService, allowedOrigins []string) *CartStreamController {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return &CartStreamController{
		hub:         hub,
		cartService: cartService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// non-browser clients send no Origin
				return origin == "" || allowed[origin] || allowed["*"]
			},
		},
	}
}

// Stream subscribes to live summaries of a client's cart
// GET /api/carts/:clientId/ws
func (ctrl *CartStreamController) Stream(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	clientID, ok := parseIDParam(c, "clientId")
	if !ok {
		return
	}

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade to WebSocket", err, map[string]interface{}{
			"client_id": clientID,
		})
		return
	}

	client := ws.NewClient(ctrl.hub, conn, clientID)

	// first frame is the current state
	summary, err := ctrl.cartService.GetCartSummary(c.Request.Context(), clientID)
	if err != nil {
		log.Warn("Failed to load initial cart summary", map[string]interface{}{
			"client_id": clientID,
			"error":     err.Error(),
		})
	} else if err := client.Queue(summary); err != nil {
		log.Warn("Failed to queue initial cart summary", map[string]interface{}{
			"client_id": clientID,
			"error":     err.Error(),
		})
	}

	ctrl.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	log.Info("Cart stream established", map[string]interface{}{
		"client_id": clientID,
	})
}
