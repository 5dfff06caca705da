package events

// Event enumerates high-level topics inside the execution core.
type Event string

const (
	EventSignalReceived  Event = "signal.received"
	EventOrderPlaced     Event = "order.placed"
	EventOrderFilled     Event = "order.filled"
	EventOrderCancelled  Event = "order.cancelled"
	EventOrderRejected   Event = "order.rejected"
	EventTradingPaused   Event = "trading.paused"
	EventTradingResumed  Event = "trading.resumed"
	EventLeverageUpdated Event = "leverage.updated"
	EventRiskAlert       Event = "risk.alert"
)
