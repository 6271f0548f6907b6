package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is created by converting a cart; the cart is closed in the same transaction.
type Order struct {
	ID        uint            `gorm:"primarykey" json:"OrderId"`
	CartID    uint            `gorm:"not null;uniqueIndex" json:"CartId"`
	ClientID  uint            `gorm:"not null;index" json:"ClientId"`
	Total     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"Total"`
	ItemCount int             `gorm:"not null" json:"ItemCount"`
	Status    OrderStatus     `gorm:"type:varchar(20);not null;default:'pending'" json:"Status"`
	CreatedAt time.Time       `json:"CreatedAt"`
	UpdatedAt time.Time       `json:"-"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"Items,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem snapshots a cart line at checkout time.
type OrderItem struct {
	ID          uint            `gorm:"primarykey" json:"OrderItemId"`
	OrderID     uint            `gorm:"not null;index" json:"OrderId"`
	ProductID   uint            `gorm:"not null;index" json:"ProductId"`
	ProductName string          `gorm:"not null" json:"Name"`
	Quantity    int             `gorm:"not null" json:"Quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"UnitPrice"`
	SubTotal    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"SubTotal"`
	CreatedAt   time.Time       `json:"-"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
