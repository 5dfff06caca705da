package db

import "time"

// Order is a persisted order row.
type Order struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Price     float64   `json:"price"`
	Qty       float64   `json:"qty"`
	FilledQty float64   `json:"filled_qty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Position is the net position for a symbol.
type Position struct {
	Symbol      string    `json:"symbol"`
	Qty         float64   `json:"qty"`
	AvgPrice    float64   `json:"avg_price"`
	RealizedPnL float64   `json:"realized_pnl"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RiskDay is one UTC day of risk accounting.
type RiskDay struct {
	Day       string  `json:"day"`
	DailyLoss float64 `json:"daily_loss"`
	Trades    int     `json:"trades"`
	Breached  bool    `json:"breached"`
}
