package common

import "time"

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the closing side for a given side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType denotes basic order types.
type OrderType string

const (
	OrderTypeMarket   OrderType = "market"
	OrderTypeLimit    OrderType = "limit"
	OrderTypePostOnly OrderType = "post_only"
)

// OrderStatus normalizes exchange order state into a small set.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusOpen      OrderStatus = "OPEN"
	StatusPartial   OrderStatus = "PARTIALLY_FILLED"
	StatusFilled    OrderStatus = "FILLED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusRejected  OrderStatus = "REJECTED"
	StatusUnknown   OrderStatus = "UNKNOWN"
)

// Terminal reports whether the status is absorbing.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// OrderRequest captures an order intent to be sent to an exchange.
type OrderRequest struct {
	Symbol   string
	Side     Side
	Type     OrderType
	Size     float64
	Price    float64 // required for limit orders, ignored for market
	ClientID string  // optional client order id
}

// OrderResult returns the exchange ack.
type OrderResult struct {
	OrderID  string
	ClientID string
}

// OrderSnapshot is a point-in-time view of an order on the exchange.
type OrderSnapshot struct {
	OrderID    string
	ClientID   string
	Symbol     string
	Side       Side
	Size       float64
	FilledSize float64
	Price      float64
	AvgPrice   float64
	Status     OrderStatus
	CreatedAt  time.Time
}
