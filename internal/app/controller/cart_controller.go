package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mercadito/storefront-backend/internal/app/model"
	"github.com/mercadito/storefront-backend/internal/app/service"
	apperrors "github.com/mercadito/storefront-backend/internal/errors"
	"github.com/mercadito/storefront-backend/internal/middleware"
	"github.com/mercadito/storefront-backend/pkg/logger"
)

type CartController struct {
	cartService service.CartService
}

func NewCartController(cartService service.CartService) *CartController {
	return &CartController{
		cartService: cartService,
	}
}

// Field names are matched case-insensitively, so cartID and productId work too.
type AddToCartRequest struct {
	ClientID  uint `json:"ClientId" binding:"required"`
	ProductID uint `json:"ProductId" binding:"required"`
	Quantity  *int `json:"Quantity"` // defaults to 1
}

type UpdateCartRequest struct {
	CartID    uint `json:"CartId" binding:"required"`
	ProductID uint `json:"ProductId" binding:"required"`
	Quantity  *int `json:"Quantity" binding:"required"`
}

type ConvertCartRequest struct {
	CartID uint `json:"CartId" binding:"required"`
}

// GetCart returns the rows of a client's open cart
// GET /api/carts/:clientId
func (ctrl *CartController) GetCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	clientID, ok := parseIDParam(c, "clientId")
	if !ok {
		return
	}

	items, err := ctrl.cartService.GetCart(c.Request.Context(), clientID)
	if err != nil {
		respondCartError(c, log, err, map[string]interface{}{
			"client_id": clientID,
		})
		return
	}

	log.Info("Cart fetched successfully", map[string]interface{}{
		"client_id": clientID,
		"count":     len(items),
	})
	c.JSON(http.StatusOK, items)
}

// GetCartSummary returns counts and total for the navbar badge
// GET /api/carts/:clientId/summary
func (ctrl *CartController) GetCartSummary(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	clientID, ok := parseIDParam(c, "clientId")
	if !ok {
		return
	}

	summary, err := ctrl.cartService.GetCartSummary(c.Request.Context(), clientID)
	if err != nil {
		respondCartError(c, log, err, map[string]interface{}{
			"client_id": clientID,
		})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// AddToCart adds units of a product to the client's open cart
// POST /api/cart
func (ctrl *CartController) AddToCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add to cart request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "ClientId and ProductId are required")
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	item, err := ctrl.cartService.AddItem(c.Request.Context(), model.InsertItemInput{
		ClientID:  req.ClientID,
		ProductID: req.ProductID,
		Quantity:  quantity,
	})
	if err != nil {
		respondCartError(c, log, err, map[string]interface{}{
			"client_id":  req.ClientID,
			"product_id": req.ProductID,
			"quantity":   quantity,
		})
		return
	}

	log.Info("Item added to cart successfully", map[string]interface{}{
		"client_id":  item.ClientID,
		"cart_id":    item.CartID,
		"product_id": item.ProductID,
		"quantity":   item.Quantity,
	})
	c.JSON(http.StatusCreated, item)
}

// UpdateCartItem sets the quantity of a cart line; 0 removes it
// PUT /api/cart
func (ctrl *CartController) UpdateCartItem(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req UpdateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid update cart request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "CartId, ProductId and Quantity are required")
		return
	}

	update, err := ctrl.cartService.UpdateQuantity(c.Request.Context(), model.UpdateQuantityInput{
		CartID:    req.CartID,
		ProductID: req.ProductID,
		Quantity:  *req.Quantity,
	})
	if err != nil {
		respondCartError(c, log, err, map[string]interface{}{
			"cart_id":    req.CartID,
			"product_id": req.ProductID,
			"quantity":   *req.Quantity,
		})
		return
	}

	if update.Removed() {
		log.Info("Cart item removed by quantity update", map[string]interface{}{
			"cart_id":    req.CartID,
			"product_id": req.ProductID,
		})
		c.JSON(http.StatusOK, update.Removal)
		return
	}

	log.Info("Cart item updated successfully", map[string]interface{}{
		"cart_id":    req.CartID,
		"product_id": req.ProductID,
		"quantity":   update.Item.Quantity,
	})
	c.JSON(http.StatusOK, update.Item)
}

// RemoveFromCart deletes a product from a cart
// DELETE /api/cart/:cartId/:productId
func (ctrl *CartController) RemoveFromCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	cartID, ok := parseIDParam(c, "cartId")
	if !ok {
		return
	}
	productID, ok := parseIDParam(c, "productId")
	if !ok {
		return
	}

	removed, err := ctrl.cartService.RemoveItem(c.Request.Context(), cartID, productID)
	if err != nil {
		respondCartError(c, log, err, map[string]interface{}{
			"cart_id":    cartID,
			"product_id": productID,
		})
		return
	}

	log.Info("Item removed from cart successfully", map[string]interface{}{
		"cart_id":    cartID,
		"product_id": productID,
	})
	c.JSON(http.StatusOK, removed)
}

// ConvertCart checks a cart out into an order
// POST /api/cart/convert
func (ctrl *CartController) ConvertCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req ConvertCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid convert cart request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "CartId is required")
		return
	}

	order, err := ctrl.cartService.Checkout(c.Request.Context(), req.CartID)
	if err != nil {
		respondCartError(c, log, err, map[string]interface{}{
			"cart_id": req.CartID,
		})
		return
	}

	log.Info("Cart converted to order successfully", map[string]interface{}{
		"cart_id":  req.CartID,
		"order_id": order.ID,
	})
	c.JSON(http.StatusCreated, order)
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		middleware.GetLoggerFromContext(c).Warn("Invalid ID parameter", map[string]interface{}{
			"param": name,
			"value": raw,
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

type cartErrorMapping struct {
	err     error
	status  int
	code    string
	message string
}

var cartErrorMappings = []cartErrorMapping{
	{service.ErrInvalidClientID, http.StatusBadRequest, apperrors.ValidationInvalidID, "ClientId must be a positive integer"},
	{service.ErrInvalidCartID, http.StatusBadRequest, apperrors.ValidationInvalidID, "CartId must be a positive integer"},
	{service.ErrInvalidProductID, http.StatusBadRequest, apperrors.ValidationInvalidID, "ProductId must be a positive integer"},
	{service.ErrInvalidQuantity, http.StatusBadRequest, apperrors.CartInvalidAmount, "Quantity is out of range"},
	{service.ErrCartNotFound, http.StatusNotFound, apperrors.CartNotFound, "Cart not found"},
	{service.ErrCartItemNotFound, http.StatusNotFound, apperrors.CartItemNotFound, "Product is not in the cart"},
	{service.ErrProductNotFound, http.StatusNotFound, apperrors.ProductNotFound, "Product not found"},
	{service.ErrCartEmpty, http.StatusConflict, apperrors.CartEmpty, "Cannot check out an empty cart"},
	{service.ErrCartClosed, http.StatusConflict, apperrors.CartClosed, "Cart has already been checked out"},
	{service.ErrInsufficientStock, http.StatusConflict, apperrors.ProductInsufficientStock, "Not enough stock for the requested quantity"},
}

func respondCartError(c *gin.Context, log *logger.Logger, err error, fields map[string]interface{}) {
	for _, m := range cartErrorMappings {
		if errors.Is(err, m.err) {
			fields["error"] = err.Error()
			log.Warn("Cart request rejected", fields)
			apperrors.RespondWithError(c, m.status, m.code, m.message)
			return
		}
	}

	info := apperrors.ParseError(err, "cart")
	log.Error("Cart request failed", err, fields)
	apperrors.RespondWithError(c, info.Status, info.Code, info.Message)
}
