package model

import (
	"errors"
	"time"
)

type OrderStatus string

const (
	OrderPendingPayment OrderStatus = "pending_payment"
	OrderPaid           OrderStatus = "paid"
	OrderFulfilled      OrderStatus = "fulfilled"
	OrderCancelled      OrderStatus = "cancelled"
)

var ErrInvalidOrderTransition = errors.New("invalid order status transition")

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPendingPayment: {OrderPaid, OrderCancelled},
	OrderPaid:           {OrderFulfilled},
}

func CanTransitionOrder(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case OrderPendingPayment, OrderPaid, OrderFulfilled, OrderCancelled:
		return st, true
	}
	return "", false
}

type Order struct {
	ID               string
	UserID           string
	CustomerName     string
	CustomerEmail    string
	ShippingAddress  string
	Status           OrderStatus
	Currency         string
	SubtotalCents    int64
	ShippingCents    int64
	TaxCents         int64
	TotalCents       int64
	PaymentReference string
	PaymentURL       string
	PaidAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Items            []OrderItem
}

type OrderItem struct {
	ProductID      string
	Name           string
	UnitPriceCents int64
	Quantity       int
}

type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}
