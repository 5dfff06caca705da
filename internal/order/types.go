package order

import (
	"time"

	"execution-core/pkg/exchanges/common"
)

// Order is the executor's in-flight view of a placed order.
type Order struct {
	ID        string             `json:"id"`
	ClientID  string             `json:"client_id"`
	Symbol    string             `json:"symbol"`
	Side      common.Side        `json:"side"`
	Type      common.OrderType   `json:"type"`
	Qty       float64            `json:"qty"`
	FilledQty float64            `json:"filled_qty"`
	Price     float64            `json:"price"`
	Status    common.OrderStatus `json:"status"`
	PlacedAt  time.Time          `json:"placed_at"`
}
