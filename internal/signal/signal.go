package signal

// Direction is a discrete trading decision.
type Direction int

const (
	DirectionSell Direction = -1
	DirectionHold Direction = 0
	DirectionBuy  Direction = 1
)

func (d Direction) String() string {
	switch d {
	case DirectionBuy:
		return "buy"
	case DirectionSell:
		return "sell"
	default:
		return "hold"
	}
}

// Signal is a single trading decision emitted by the strategy layer.
// Consumed exactly once off the queue, never persisted by the core.
type Signal struct {
	Direction Direction
	Size      float64
	Price     float64 // optional; 0 means execute at market
}
