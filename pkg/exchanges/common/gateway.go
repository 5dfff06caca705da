package common

import "context"

// Gateway abstracts an authenticated trading venue.
//
// OpenOrders is a non-critical path: callers are expected to log failures and
// continue with an empty slice rather than abort.
type Gateway interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	OpenOrders(ctx context.Context, symbol string) ([]OrderSnapshot, error)
	OrderStatus(ctx context.Context, symbol, orderID string) (OrderSnapshot, error)
	SetLeverage(ctx context.Context, symbol string, leverage float64) error
}
