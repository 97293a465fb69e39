package models

import "time"

// Statuts possibles d'une commande
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

type Order struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	Items           []OrderItem    `json:"items"`
	ShippingAddress Address        `json:"shipping_address"`
	PaymentMethod   string         `json:"payment_method"`
	ItemsPrice      float64        `json:"items_price"`
	TaxPrice        float64        `json:"tax_price"`
	ShippingPrice   float64        `json:"shipping_price"`
	TotalPrice      float64        `json:"total_price"`
	IsPaid          bool           `json:"is_paid"`
	PaidAt          *time.Time     `json:"paid_at,omitempty"`
	IsDelivered     bool           `json:"is_delivered"`
	DeliveredAt     *time.Time     `json:"delivered_at,omitempty"`
	Status          string         `json:"status"`
	PaymentIntentID string         `json:"payment_intent_id,omitempty"`
	PaymentResult   *PaymentResult `json:"payment_result,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// OrderItem est un instantané immuable : une commande ne re-dérive
// jamais ses prix depuis le catalogue après création.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	ImageURL  string  `json:"image_url"`
}

type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// PaymentResult est l'enregistrement opaque renvoyé par la passerelle
type PaymentResult struct {
	TransactionID string    `json:"transaction_id"`
	Status        string    `json:"status"`
	PaidAt        time.Time `json:"paid_at"`
	PayerEmail    string    `json:"payer_email"`
}
