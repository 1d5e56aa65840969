// Package events defines the Kafka topics and payloads exchanged between
// salon-service and notification-service. Topic name equals event type.
package events

const (
	ReservationCreated       = "salon.reservation.created.v1"
	ReservationStatusChanged = "salon.reservation.status_changed.v1"
	OrderPaid                = "salon.order.paid.v1"
)

// Topics lists every topic salon-service publishes.
func Topics() []string {
	return []string{ReservationCreated, ReservationStatusChanged, OrderPaid}
}

type Reservation struct {
	ReservationID string `json:"reservation_id"`
	ServiceID     string `json:"service_id"`
	ServiceName   string `json:"service_name"`
	StaffID       string `json:"staff_id"`
	StaffName     string `json:"staff_name"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	Date          string `json:"date"` // YYYY-MM-DD
	Time          string `json:"time"` // HH:MM
	Status        string `json:"status"`
}

type ReservationCreatedPayload struct {
	Reservation
	CreatedAt string `json:"created_at"`
}

type ReservationStatusChangedPayload struct {
	Reservation
	PreviousStatus string `json:"previous_status"`
	Reason         string `json:"reason,omitempty"`
	ChangedAt      string `json:"changed_at"`
}

type OrderLine struct {
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type OrderPaidPayload struct {
	OrderID       string      `json:"order_id"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email"`
	Currency      string      `json:"currency"`
	SubtotalCents int64       `json:"subtotal_cents"`
	ShippingCents int64       `json:"shipping_cents"`
	TaxCents      int64       `json:"tax_cents"`
	TotalCents    int64       `json:"total_cents"`
	Lines         []OrderLine `json:"lines"`
	PaidAt        string      `json:"paid_at"`
}
