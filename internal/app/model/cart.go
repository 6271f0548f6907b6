package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartStatus string

const (
	CartStatusOpen      CartStatus = "open"      // accepting changes
	CartStatusConverted CartStatus = "converted" // checked out, immutable
)

// Cart is a client's pre-checkout basket. At most one open cart exists per client.
type Cart struct {
	ID          uint       `gorm:"primarykey" json:"CartId"`
	ClientID    uint       `gorm:"not null;index" json:"ClientId"`
	Status      CartStatus `gorm:"type:varchar(20);not null;default:'open';index" json:"Status"`
	ConvertedAt *time.Time `json:"ConvertedAt,omitempty"`
	CreatedAt   time.Time  `json:"CreatedAt"`
	UpdatedAt   time.Time  `json:"UpdatedAt"`

	Lines []CartLine `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Cart) TableName() string {
	return "carts"
}

// CartLine is the stored row behind a CartItem. Quantity is always >= 1;
// the last unit is removed by deleting the row.
type CartLine struct {
	ID        uint            `gorm:"primarykey"`
	CartID    uint            `gorm:"not null;uniqueIndex:idx_cart_items_cart_product"`
	ProductID uint            `gorm:"not null;uniqueIndex:idx_cart_items_cart_product;index"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CartLine) TableName() string {
	return "cart_items"
}

// CartItem is one row returned by the cart procedures.
type CartItem struct {
	CartItemID uint            `gorm:"column:cart_item_id" json:"CartItemId"`
	CartID     uint            `gorm:"column:cart_id" json:"CartId"`
	ClientID   uint            `gorm:"column:client_id" json:"ClientId"`
	ProductID  uint            `gorm:"column:product_id" json:"ProductId"`
	Name       string          `gorm:"column:name" json:"Name"`
	ImageURL   string          `gorm:"column:image_url" json:"ImageUrl"`
	Quantity   int             `gorm:"column:quantity" json:"Quantity"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price" json:"UnitPrice"`
	SubTotal   decimal.Decimal `gorm:"column:sub_total" json:"SubTotal"`
}

// ComputeSubTotal returns UnitPrice x Quantity.
func (i CartItem) ComputeSubTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// RemovedCartItem is returned by DeleteCartItem.
type RemovedCartItem struct {
	CartID    uint   `gorm:"column:cart_id" json:"CartId"`
	ProductID uint   `gorm:"column:product_id" json:"ProductId"`
	ClientID  uint   `gorm:"column:client_id" json:"ClientId"`
	Message   string `gorm:"column:message" json:"Message"`
}

type InsertItemInput struct {
	ClientID  uint
	ProductID uint
	Quantity  int
}

type UpdateQuantityInput struct {
	CartID    uint
	ProductID uint
	Quantity  int
}

// CartItemUpdate is the outcome of a quantity change: either the updated
// row or, when the quantity dropped to zero, the removal.
type CartItemUpdate struct {
	Item    *CartItem
	Removal *RemovedCartItem
}

func (u CartItemUpdate) Removed() bool {
	return u.Removal != nil
}

// CartSummary backs the navbar badge and live updates.
type CartSummary struct {
	ClientID  uint            `json:"ClientId"`
	CartID    *uint           `json:"CartId"`
	ItemCount int             `json:"ItemCount"` // sum of quantities
	LineCount int             `json:"LineCount"`
	Total     decimal.Decimal `json:"Total"`
	Items     []CartItem      `json:"Items"`
}

// Summarize builds a CartSummary from the rows of one client's cart.
func Summarize(clientID uint, items []CartItem) CartSummary {
	summary := CartSummary{
		ClientID:  clientID,
		LineCount: len(items),
		Total:     decimal.Zero,
		Items:     items,
	}
	if summary.Items == nil {
		summary.Items = []CartItem{}
	}
	for _, item := range items {
		summary.ItemCount += item.Quantity
		summary.Total = summary.Total.Add(item.SubTotal)
	}
	if len(items) > 0 {
		id := items[0].CartID
		summary.CartID = &id
	}
	return summary
}
