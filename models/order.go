package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderPaid       OrderStatus = "PAID"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderShipped    OrderStatus = "SHIPPED"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCanceled   OrderStatus = "CANCELED"
)

// AdminStatuses are the values an admin may set directly. PAID is only
// reachable through a verified payment webhook.
var AdminStatuses = []OrderStatus{OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCanceled}

var AllStatuses = []OrderStatus{OrderPending, OrderPaid, OrderProcessing, OrderShipped, OrderDelivered, OrderCanceled}

func ParseStatus(s string) (OrderStatus, bool) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

func ParseAdminStatus(s string) (OrderStatus, bool) {
	for _, st := range AdminStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

type ShippingDetails struct {
	Name    string `bson:"name" json:"name"`
	Email   string `bson:"email" json:"email"`
	Address string `bson:"address" json:"address"`
	City    string `bson:"city" json:"city"`
	Country string `bson:"country" json:"country"`
	Zip     string `bson:"zip" json:"zip"`
}

type Order struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID           primitive.ObjectID `bson:"userId" json:"userId"`
	Items            []OrderItem        `bson:"items" json:"items"`
	TotalAmount      decimal.Decimal    `bson:"totalAmount" json:"totalAmount"`
	Currency         string             `bson:"currency" json:"currency"`
	Status           OrderStatus        `bson:"status" json:"status"`
	Shipping         ShippingDetails    `bson:"shipping" json:"shipping"`
	PaymentProvider  string             `bson:"paymentProvider" json:"paymentProvider"`
	PaymentSessionID string             `bson:"paymentSessionId,omitempty" json:"paymentSessionId,omitempty"`
	Locale           string             `bson:"locale" json:"-"`
	PaidAt           *time.Time         `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// OrderItem keeps the unit price paid, not a reference to the live catalog price.
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal    `bson:"unitPrice" json:"unitPrice"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type OrderQuery struct {
	UserID *primitive.ObjectID
	Status OrderStatus
	Page   int
	Limit  int
}
