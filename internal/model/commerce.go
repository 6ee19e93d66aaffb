package model

import "time"

// UsedItemStatus is the marketplace lifecycle of a secondhand listing.
type UsedItemStatus string

const (
	UsedPending UsedItemStatus = "pending"
	UsedListed  UsedItemStatus = "listed"
	UsedSold    UsedItemStatus = "sold"
	UsedRemoved UsedItemStatus = "removed"
)

// UsedItem is a secondhand marketplace listing, either personal or official
// (platform-inspected) stock.
type UsedItem struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"` // personal | official
	SellerID      string         `json:"sellerId"`
	SellerName    string         `json:"sellerName"`
	Contact       string         `json:"contact,omitempty"`
	Category      Category       `json:"category"`
	Brand         string         `json:"brand"`
	Model         string         `json:"model"`
	Price         float64        `json:"price"`
	OriginalPrice *float64       `json:"originalPrice,omitempty"`
	Condition     string         `json:"condition"`
	Images        []string       `json:"images"`
	Description   string         `json:"description"`
	Status        UsedItemStatus `json:"status"`
	CreatedAt     time.Time      `json:"createdAt"`
	SoldAt        *time.Time     `json:"soldAt,omitempty"`
}

// OrderStatus is the payment state of an order.
type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	OrderPaid    OrderStatus = "paid"
	OrderFailed  OrderStatus = "failed"
)

// Order is a payment record. Amount is in cents; the gateway interaction
// itself is out of scope, only the resulting state transitions are stored.
type Order struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	PlanID    string      `json:"planId"`
	Amount    int64       `json:"amount"`
	Status    OrderStatus `json:"status"`
	PayMethod string      `json:"payMethod"`
	CreatedAt time.Time   `json:"createdAt"`
	PaidAt    *time.Time  `json:"paidAt,omitempty"`
}
