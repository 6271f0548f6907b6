package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/mercadito/storefront-backend/internal/app/model"
	"github.com/mercadito/storefront-backend/internal/db"
	"github.com/mercadito/storefront-backend/pkg/logger"
)

const (
	gatewaySource   = "CartGateway"
	errorLogTimeout = 3 * time.Second
)

var (
	ErrCartNotFound      = errors.New("cart not found")
	ErrCartItemNotFound  = errors.New("cart item not found")
	ErrCartEmpty         = errors.New("cart is empty")
	ErrCartClosed        = errors.New("cart is already converted")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrNoResult          = errors.New("procedure returned no rows")
)

var procedureMarkers = []struct {
	code string
	err  error
}{
	{db.CodeCartItemNotFound, ErrCartItemNotFound},
	{db.CodeCartNotFound, ErrCartNotFound},
	{db.CodeCartEmpty, ErrCartEmpty},
	{db.CodeCartClosed, ErrCartClosed},
	{db.CodeProductNotFound, ErrProductNotFound},
	{db.CodeInsufficientStock, ErrInsufficientStock},
	{db.CodeInvalidQuantity, ErrInvalidQuantity},
}

// CartGateway forwards each cart operation to exactly one stored procedure.
type CartGateway interface {
	GetCart(ctx context.Context, clientID uint) ([]model.CartItem, error)
	InsertItem(ctx context.Context, input model.InsertItemInput) (*model.CartItem, error)
	UpdateQuantity(ctx context.Context, input model.UpdateQuantityInput) (*model.CartItem, error)
	DeleteItem(ctx context.Context, cartID, productID uint) (*model.RemovedCartItem, error)
	ConvertCartToOrder(ctx context.Context, cartID uint) (*model.Order, error)
}

type cartGateway struct {
	exec      db.ProcedureExecutor
	errorLogs ErrorLogRepository
}

// NewCartGateway returns a gateway over exec. Failures are recorded in
// errorLogs when it is non-nil.
func NewCartGateway(exec db.ProcedureExecutor, errorLogs ErrorLogRepository) CartGateway {
	return &cartGateway{exec: exec, errorLogs: errorLogs}
}

func (g *cartGateway) GetCart(ctx context.Context, clientID uint) ([]model.CartItem, error) {
	logger.Debug("Calling getCartClient", map[string]interface{}{
		"client_id": clientID,
	})

	var items []model.CartItem
	if err := g.call(ctx, "GetCart", db.ProcGetCartClient, &items,
		sql.Named("ClientId", clientID),
	); err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.CartItem{}
	}

	logger.Debug("getCartClient returned", map[string]interface{}{
		"client_id": clientID,
		"count":     len(items),
	})
	return items, nil
}

func (g *cartGateway) InsertItem(ctx context.Context, input model.InsertItemInput) (*model.CartItem, error) {
	logger.Debug("Calling AddItemToCart", map[string]interface{}{
		"client_id":  input.ClientID,
		"product_id": input.ProductID,
		"quantity":   input.Quantity,
	})

	var rows []model.CartItem
	if err := g.call(ctx, "InsertItem", db.ProcAddItemToCart, &rows,
		sql.Named("ClientId", input.ClientID),
		sql.Named("ProductId", input.ProductID),
		sql.Named("Quantity", input.Quantity),
	); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, g.noResult(ctx, "InsertItem")
	}

	logger.Debug("AddItemToCart returned", map[string]interface{}{
		"cart_id":      rows[0].CartID,
		"cart_item_id": rows[0].CartItemID,
		"quantity":     rows[0].Quantity,
	})
	return &rows[0], nil
}

func (g *cartGateway) UpdateQuantity(ctx context.Context, input model.UpdateQuantityInput) (*model.CartItem, error) {
	logger.Debug("Calling UpdateCartItemQuantity", map[string]interface{}{
		"cart_id":    input.CartID,
		"product_id": input.ProductID,
		"quantity":   input.Quantity,
	})

	var rows []model.CartItem
	if err := g.call(ctx, "UpdateQuantity", db.ProcUpdateCartItemQuantity, &rows,
		sql.Named("CartId", input.CartID),
		sql.Named("ProductId", input.ProductID),
		sql.Named("Quantity", input.Quantity),
	); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, g.noResult(ctx, "UpdateQuantity")
	}
	return &rows[0], nil
}

func (g *cartGateway) DeleteItem(ctx context.Context, cartID, productID uint) (*model.RemovedCartItem, error) {
	logger.Debug("Calling DeleteCartItem", map[string]interface{}{
		"cart_id":    cartID,
		"product_id": productID,
	})

	var rows []model.RemovedCartItem
	if err := g.call(ctx, "DeleteItem", db.ProcDeleteCartItem, &rows,
		sql.Named("CartId", cartID),
		sql.Named("ProductId", productID),
	); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, g.noResult(ctx, "DeleteItem")
	}
	return &rows[0], nil
}

func (g *cartGateway) ConvertCartToOrder(ctx context.Context, cartID uint) (*model.Order, error) {
	logger.Debug("Calling ConvertCartToOrder", map[string]interface{}{
		"cart_id": cartID,
	})

	var rows []model.Order
	if err := g.call(ctx, "ConvertCartToOrder", db.ProcConvertCartToOrder, &rows,
		sql.Named("CartId", cartID),
	); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, g.noResult(ctx, "ConvertCartToOrder")
	}

	logger.Debug("ConvertCartToOrder returned", map[string]interface{}{
		"cart_id":  cartID,
		"order_id": rows[0].ID,
		"total":    rows[0].Total.String(),
	})
	return &rows[0], nil
}

func (g *cartGateway) call(ctx context.Context, operation string, proc db.Procedure, dest interface{}, args ...sql.NamedArg) error {
	err := g.exec.Call(ctx, proc, dest, args...)
	if err == nil {
		return nil
	}
	g.track(ctx, operation, err)
	return classifyProcedureError(operation, err)
}

func (g *cartGateway) noResult(ctx context.Context, operation string) error {
	err := fmt.Errorf("%s: %w", operation, ErrNoResult)
	g.track(ctx, operation, err)
	return err
}

// track records a failure in the error-tracking store. The write uses a
// context detached from the caller so a cancelled request is still recorded.
func (g *cartGateway) track(ctx context.Context, operation string, err error) {
	logger.Error("Cart procedure failed", err, map[string]interface{}{
		"source":    gatewaySource,
		"operation": operation,
	})
	if g.errorLogs == nil {
		return
	}

	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), errorLogTimeout)
	defer cancel()

	entry := &model.ErrorLog{
		Source:    gatewaySource,
		Operation: operation,
		Message:   err.Error(),
		Stack:     string(debug.Stack()),
	}
	if logErr := g.errorLogs.Create(logCtx, entry); logErr != nil {
		logger.Warn("Failed to record cart procedure failure", map[string]interface{}{
			"operation": operation,
			"error":     logErr.Error(),
		})
	}
}

func classifyProcedureError(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", operation, err)
	}

	code := ""
	var procErr *db.ProcedureError
	if errors.As(err, &procErr) {
		code = procErr.Code
	}
	message := err.Error()
	for _, marker := range procedureMarkers {
		if code == marker.code || strings.Contains(message, marker.code) {
			return fmt.Errorf("%s: %w: %v", operation, marker.err, err)
		}
	}
	return fmt.Errorf("%s: %w", operation, err)
}
