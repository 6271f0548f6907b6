package cartclient

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is one line of a client's cart.
type CartItem struct {
	CartItemID uint            `json:"CartItemId"`
	CartID     uint            `json:"CartId"`
	ClientID   uint            `json:"ClientId"`
	ProductID  uint            `json:"ProductId"`
	Name       string          `json:"Name"`
	ImageURL   string          `json:"ImageUrl"`
	Quantity   int             `json:"Quantity"`
	UnitPrice  decimal.Decimal `json:"UnitPrice"`
	SubTotal   decimal.Decimal `json:"SubTotal"`
}

// RemovedCartItem acknowledges a deleted line.
type RemovedCartItem struct {
	CartID    uint   `json:"CartId"`
	ProductID uint   `json:"ProductId"`
	ClientID  uint   `json:"ClientId"`
	Message   string `json:"Message"`
}

// QuantityUpdate holds exactly one of Item or Removed. Removed is set when
// the quantity was set to zero.
type QuantityUpdate struct {
	Item    *CartItem
	Removed *RemovedCartItem
}

type CartSummary struct {
	ClientID  uint            `json:"ClientId"`
	CartID    *uint           `json:"CartId"`
	ItemCount int             `json:"ItemCount"`
	LineCount int             `json:"LineCount"`
	Total     decimal.Decimal `json:"Total"`
	Items     []CartItem      `json:"Items"`
}

type Order struct {
	ID        uint            `json:"OrderId"`
	CartID    uint            `json:"CartId"`
	ClientID  uint            `json:"ClientId"`
	Total     decimal.Decimal `json:"Total"`
	ItemCount int             `json:"ItemCount"`
	Status    string          `json:"Status"`
	CreatedAt time.Time       `json:"CreatedAt"`
}

type insertItemRequest struct {
	ClientID  uint `json:"ClientId"`
	ProductID uint `json:"ProductId"`
	Quantity  int  `json:"Quantity"`
}

type updateQuantityRequest struct {
	CartID    uint `json:"CartId"`
	ProductID uint `json:"ProductId"`
	Quantity  int  `json:"Quantity"`
}

type convertRequest struct {
	CartID uint `json:"CartId"`
}

// ErrorResponse is the body of a non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
