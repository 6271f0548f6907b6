package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mercadito/storefront-backend/internal/app/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const removedMessage = "Product removed from cart"

const cartItemSelect = `
SELECT ci.id AS cart_item_id, c.id AS cart_id, c.client_id AS client_id, ci.product_id AS product_id,
       p.name AS name, COALESCE(p.image_url, '') AS image_url, ci.quantity AS quantity,
       ci.unit_price AS unit_price, ci.unit_price * ci.quantity AS sub_total
FROM cart_items ci
JOIN carts c ON c.id = ci.cart_id
JOIN products p ON p.id = ci.product_id`

type embeddedExecutor struct {
	db *gorm.DB
}

// NewEmbeddedExecutor runs the cart procedures as gorm transactions. It works
// on any gorm dialector and takes row locks where the dialector supports them.
func NewEmbeddedExecutor(conn *gorm.DB) ProcedureExecutor {
	return &embeddedExecutor{db: conn}
}

func (e *embeddedExecutor) Call(ctx context.Context, proc Procedure, dest interface{}, args ...sql.NamedArg) error {
	in := namedArgs(args)

	switch proc {
	case ProcGetCartClient:
		clientID, err := in.uintArg("ClientId")
		if err != nil {
			return err
		}
		rows, err := e.getCartClient(ctx, clientID)
		if err != nil {
			return err
		}
		return assign(dest, rows)

	case ProcAddItemToCart:
		clientID, err := in.uintArg("ClientId")
		if err != nil {
			return err
		}
		productID, err := in.uintArg("ProductId")
		if err != nil {
			return err
		}
		quantity, err := in.intArg("Quantity")
		if err != nil {
			return err
		}
		rows, err := e.addItemToCart(ctx, clientID, productID, quantity)
		if err != nil {
			return err
		}
		return assign(dest, rows)

	case ProcUpdateCartItemQuantity:
		cartID, err := in.uintArg("CartId")
		if err != nil {
			return err
		}
		productID, err := in.uintArg("ProductId")
		if err != nil {
			return err
		}
		quantity, err := in.intArg("Quantity")
		if err != nil {
			return err
		}
		rows, err := e.updateCartItemQuantity(ctx, cartID, productID, quantity)
		if err != nil {
			return err
		}
		return assign(dest, rows)

	case ProcDeleteCartItem:
		cartID, err := in.uintArg("CartId")
		if err != nil {
			return err
		}
		productID, err := in.uintArg("ProductId")
		if err != nil {
			return err
		}
		rows, err := e.deleteCartItem(ctx, cartID, productID)
		if err != nil {
			return err
		}
		return assign(dest, rows)

	case ProcConvertCartToOrder:
		cartID, err := in.uintArg("CartId")
		if err != nil {
			return err
		}
		rows, err := e.convertCartToOrder(ctx, cartID)
		if err != nil {
			return err
		}
		return assign(dest, rows)
	}

	return fmt.Errorf("unknown procedure %q", proc)
}

func (e *embeddedExecutor) getCartClient(ctx context.Context, clientID uint) ([]model.CartItem, error) {
	var rows []model.CartItem
	err := e.db.WithContext(ctx).
		Raw(cartItemSelect+" WHERE c.client_id = ? AND c.status = ? ORDER BY ci.id", clientID, model.CartStatusOpen).
		Scan(&rows).Error
	return rows, err
}

func (e *embeddedExecutor) addItemToCart(ctx context.Context, clientID, productID uint, quantity int) ([]model.CartItem, error) {
	if quantity < 1 {
		return nil, procErr(ProcAddItemToCart, CodeInvalidQuantity)
	}

	var rows []model.CartItem
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product model.Product
		if err := forUpdate(tx).First(&product, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return procErr(ProcAddItemToCart, CodeProductNotFound)
			}
			return err
		}

		var cart model.Cart
		err := forUpdate(tx).
			Where("client_id = ? AND status = ?", clientID, model.CartStatusOpen).
			Order("id DESC").
			First(&cart).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			cart = model.Cart{ClientID: clientID, Status: model.CartStatusOpen}
			err = tx.Create(&cart).Error
		}
		if err != nil {
			return err
		}

		var line model.CartLine
		err = forUpdate(tx).
			Where("cart_id = ? AND product_id = ?", cart.ID, productID).
			First(&line).Error
		exists := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		newQuantity := quantity
		if exists {
			newQuantity += line.Quantity
		}
		if product.Stock < newQuantity {
			return procErr(ProcAddItemToCart, CodeInsufficientStock)
		}

		if exists {
			err = tx.Model(&line).Update("quantity", newQuantity).Error
		} else {
			line = model.CartLine{
				CartID:    cart.ID,
				ProductID: productID,
				Quantity:  newQuantity,
				UnitPrice: product.Price,
			}
			err = tx.Create(&line).Error
		}
		if err != nil {
			return err
		}

		if err := touchCart(tx, cart.ID); err != nil {
			return err
		}

		rows, err = selectLine(tx, line.ID)
		return err
	})
	return rows, err
}

func (e *embeddedExecutor) updateCartItemQuantity(ctx context.Context, cartID, productID uint, quantity int) ([]model.CartItem, error) {
	if quantity < 1 {
		return nil, procErr(ProcUpdateCartItemQuantity, CodeInvalidQuantity)
	}

	var rows []model.CartItem
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := openCart(tx, ProcUpdateCartItemQuantity, cartID); err != nil {
			return err
		}

		line, err := findLine(tx, ProcUpdateCartItemQuantity, cartID, productID)
		if err != nil {
			return err
		}

		var product model.Product
		if err := tx.Unscoped().First(&product, productID).Error; err != nil {
			return err
		}
		if product.Stock < quantity {
			return procErr(ProcUpdateCartItemQuantity, CodeInsufficientStock)
		}

		if err := tx.Model(&line).Update("quantity", quantity).Error; err != nil {
			return err
		}
		if err := touchCart(tx, cartID); err != nil {
			return err
		}

		rows, err = selectLine(tx, line.ID)
		return err
	})
	return rows, err
}

func (e *embeddedExecutor) deleteCartItem(ctx context.Context, cartID, productID uint) ([]model.RemovedCartItem, error) {
	var rows []model.RemovedCartItem
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := openCart(tx, ProcDeleteCartItem, cartID)
		if err != nil {
			return err
		}

		line, err := findLine(tx, ProcDeleteCartItem, cartID, productID)
		if err != nil {
			return err
		}
		if err := tx.Delete(&line).Error; err != nil {
			return err
		}
		if err := touchCart(tx, cartID); err != nil {
			return err
		}

		rows = []model.RemovedCartItem{{
			CartID:    cartID,
			ProductID: productID,
			ClientID:  cart.ClientID,
			Message:   removedMessage,
		}}
		return nil
	})
	return rows, err
}

func (e *embeddedExecutor) convertCartToOrder(ctx context.Context, cartID uint) ([]model.Order, error) {
	var rows []model.Order
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := openCart(tx, ProcConvertCartToOrder, cartID)
		if err != nil {
			return err
		}

		var lines []model.CartLine
		if err := tx.Where("cart_id = ?", cartID).Order("id").Find(&lines).Error; err != nil {
			return err
		}
		if len(lines) == 0 {
			return procErr(ProcConvertCartToOrder, CodeCartEmpty)
		}

		order := model.Order{
			CartID:   cartID,
			ClientID: cart.ClientID,
			Total:    decimal.Zero,
			Status:   model.OrderStatusPending,
		}
		for _, line := range lines {
			var product model.Product
			if err := forUpdate(tx.Unscoped()).First(&product, line.ProductID).Error; err != nil {
				return err
			}
			if product.Stock < line.Quantity {
				return procErr(ProcConvertCartToOrder, CodeInsufficientStock)
			}

			subTotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
			order.Items = append(order.Items, model.OrderItem{
				ProductID:   line.ProductID,
				ProductName: product.Name,
				Quantity:    line.Quantity,
				UnitPrice:   line.UnitPrice,
				SubTotal:    subTotal,
			})
			order.Total = order.Total.Add(subTotal)
			order.ItemCount += line.Quantity
		}

		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		for _, line := range lines {
			err := tx.Unscoped().Model(&model.Product{}).
				Where("id = ?", line.ProductID).
				Update("stock", gorm.Expr("stock - ?", line.Quantity)).Error
			if err != nil {
				return err
			}
		}

		now := time.Now()
		err = tx.Model(&model.Cart{}).Where("id = ?", cartID).Updates(map[string]interface{}{
			"status":       model.CartStatusConverted,
			"converted_at": now,
		}).Error
		if err != nil {
			return err
		}

		order.Items = nil
		rows = []model.Order{order}
		return nil
	})
	return rows, err
}

// openCart loads and locks a cart that still accepts changes.
func openCart(tx *gorm.DB, proc Procedure, cartID uint) (*model.Cart, error) {
	var cart model.Cart
	if err := forUpdate(tx).First(&cart, cartID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, procErr(proc, CodeCartNotFound)
		}
		return nil, err
	}
	if cart.Status != model.CartStatusOpen {
		return nil, procErr(proc, CodeCartClosed)
	}
	return &cart, nil
}

func findLine(tx *gorm.DB, proc Procedure, cartID, productID uint) (model.CartLine, error) {
	var line model.CartLine
	err := forUpdate(tx).Where("cart_id = ? AND product_id = ?", cartID, productID).First(&line).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return line, procErr(proc, CodeCartItemNotFound)
	}
	return line, err
}

func touchCart(tx *gorm.DB, cartID uint) error {
	return tx.Model(&model.Cart{}).Where("id = ?", cartID).Update("updated_at", time.Now()).Error
}

func selectLine(tx *gorm.DB, lineID uint) ([]model.CartItem, error) {
	var rows []model.CartItem
	err := tx.Raw(cartItemSelect+" WHERE ci.id = ?", lineID).Scan(&rows).Error
	return rows, err
}

// forUpdate adds SELECT ... FOR UPDATE on dialectors that support row locks.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func assign[T any](dest interface{}, value T) error {
	target, ok := dest.(*T)
	if !ok {
		return fmt.Errorf("cannot scan %T into %T", value, dest)
	}
	*target = value
	return nil
}

type namedArgs []sql.NamedArg

func (a namedArgs) lookup(name string) (interface{}, error) {
	for _, arg := range a {
		if arg.Name == name {
			return arg.Value, nil
		}
	}
	return nil, fmt.Errorf("missing procedure argument %s", name)
}

func (a namedArgs) intArg(name string) (int, error) {
	v, err := a.lookup(name)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint:
		return int(n), nil
	case uint64:
		return int(n), nil
	}
	return 0, fmt.Errorf("argument %s: unexpected type %T", name, v)
}

func (a namedArgs) uintArg(name string) (uint, error) {
	n, err := a.intArg(name)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("argument %s: negative id %d", name, n)
	}
	return uint(n), nil
}
