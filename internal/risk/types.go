package risk

import "time"

// PnL modes. Paper mode draws a simulated per-trade P&L contribution the way
// the legacy system did; fills mode accumulates realized P&L reported from
// observed fills.
const (
	ModePaper = "paper"
	ModeFills = "fills"
)

// Config defines the risk bounds the manager enforces.
type Config struct {
	MinLeverage     float64 `yaml:"min_leverage"`
	MaxLeverage     float64 `yaml:"max_leverage"`
	InitialLeverage float64 `yaml:"initial_leverage"`

	// MaxPosition is an absolute ceiling on a single order's size.
	MaxPosition float64 `yaml:"max_position"`

	// BaseUnit scales leverage into a position size:
	// size = min(MaxPosition, leverage * BaseUnit).
	BaseUnit float64 `yaml:"base_unit"`

	// DailyLossLimit is a fraction (0.05 = 5%). Trading halts once the daily
	// loss accumulator reaches -DailyLossLimit.
	DailyLossLimit float64 `yaml:"daily_loss_limit"`

	// EquityBase converts realized P&L in quote currency into the fractional
	// daily-loss scale. Only used in fills mode.
	EquityBase float64 `yaml:"equity_base"`

	// Mode selects the P&L source: "paper" or "fills".
	Mode string `yaml:"pnl_mode"`
}

// DefaultConfig returns a conservative default configuration.
func DefaultConfig() Config {
	return Config{
		MinLeverage:     1,
		MaxLeverage:     10,
		InitialLeverage: 5,
		MaxPosition:     100,
		BaseUnit:        10,
		DailyLossLimit:  0.05,
		EquityBase:      10000,
		Mode:            ModeFills,
	}
}

// Snapshot is a point-in-time view of risk state for the control surface.
type Snapshot struct {
	CurrentLeverage float64   `json:"current_leverage"`
	DailyLoss       float64   `json:"daily_loss"`
	DailyLossLimit  float64   `json:"daily_loss_limit"`
	Breached        bool      `json:"breached"`
	TradesToday     int       `json:"trades_today"`
	LastReset       time.Time `json:"last_reset"`
	Mode            string    `json:"pnl_mode"`
}
