package okx

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"execution-core/pkg/exchanges/common"
)

// Config holds OKX credentials and endpoint settings.
type Config struct {
	APIKey     string
	APISecret  string
	Passphrase string
	BaseURL    string // defaults to production
	Simulated  bool   // demo-trading flag, sent as x-simulated-trading: 1
}

// Client is an authenticated OKX v5 REST client implementing common.Gateway.
type Client struct {
	cfg         Config
	baseURL     string
	httpClient  *http.Client
	timeSync    *common.TimeSync
	rateLimiter *common.RateLimiter
}

// New creates an OKX client. Credentials are validated lazily on first
// signed call so read-only construction stays cheap.
func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = "https://www.okx.com"
	}
	c := &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	c.timeSync = common.NewTimeSync(func(ctx context.Context) (int64, error) {
		return c.ServerTime(ctx)
	})
	// OKX trade endpoints allow 60 requests per 2 seconds per instrument.
	c.rateLimiter = common.NewRateLimiter(60, 2*time.Second)
	return c
}

// StartTimeSync begins periodic clock synchronization with the exchange.
func (c *Client) StartTimeSync(ctx context.Context) {
	c.timeSync.Start(ctx)
}

// apiResponse is the OKX v5 envelope. Code "0" is the success sentinel.
type apiResponse struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// PlaceOrder submits a new order. The returned id is the exchange-assigned
// ordId; open-order bookkeeping lives in the executor.
func (c *Client) PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	if err := c.requireCredentials(); err != nil {
		return common.OrderResult{}, err
	}

	ordType := req.Type
	if ordType == "" {
		ordType = common.OrderTypeLimit
	}
	body := map[string]string{
		"instId":  req.Symbol,
		"tdMode":  "isolated",
		"side":    string(req.Side),
		"ordType": string(ordType),
		"sz":      formatFloat(req.Size),
	}
	if ordType != common.OrderTypeMarket {
		body["px"] = formatFloat(req.Price)
	}
	if req.ClientID != "" {
		body["clOrdId"] = req.ClientID
	}

	const op = "place order"
	data, err := c.doSigned(ctx, http.MethodPost, "/api/v5/trade/order", nil, body, op)
	if err != nil {
		return common.OrderResult{}, err
	}

	var acks []struct {
		OrdID   string `json:"ordId"`
		ClOrdID string `json:"clOrdId"`
		SCode   string `json:"sCode"`
		SMsg    string `json:"sMsg"`
	}
	if err := json.Unmarshal(data, &acks); err != nil {
		return common.OrderResult{}, fmt.Errorf("decode order ack: %w", err)
	}
	if len(acks) == 0 {
		return common.OrderResult{}, fmt.Errorf("empty order ack")
	}
	ack := acks[0]
	// Per-item result code: the envelope can be "0" while the single order
	// inside it was rejected.
	if ack.SCode != "" && ack.SCode != "0" {
		return common.OrderResult{}, &common.APIError{Op: op, Code: ack.SCode, Msg: ack.SMsg}
	}

	return common.OrderResult{OrderID: ack.OrdID, ClientID: ack.ClOrdID}, nil
}

// CancelOrder cancels an order by exchange id. Cancelling an order the
// exchange already considers terminal surfaces as an APIError; callers treat
// that as tolerable.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if err := c.requireCredentials(); err != nil {
		return err
	}

	body := map[string]string{
		"instId": symbol,
		"ordId":  orderID,
	}

	const op = "cancel order"
	data, err := c.doSigned(ctx, http.MethodPost, "/api/v5/trade/cancel-order", nil, body, op)
	if err != nil {
		return err
	}

	var acks []struct {
		SCode string `json:"sCode"`
		SMsg  string `json:"sMsg"`
	}
	if err := json.Unmarshal(data, &acks); err != nil {
		return fmt.Errorf("decode cancel ack: %w", err)
	}
	if len(acks) > 0 && acks[0].SCode != "" && acks[0].SCode != "0" {
		return &common.APIError{Op: op, Code: acks[0].SCode, Msg: acks[0].SMsg}
	}
	return nil
}

// pendingOrder is the OKX pending/detail order payload (numeric fields are
// strings on the wire).
type pendingOrder struct {
	OrdID   string `json:"ordId"`
	ClOrdID string `json:"clOrdId"`
	InstID  string `json:"instId"`
	Side    string `json:"side"`
	Sz      string `json:"sz"`
	FillSz  string `json:"accFillSz"`
	Px      string `json:"px"`
	AvgPx   string `json:"avgPx"`
	State   string `json:"state"`
	CTime   string `json:"cTime"`
}

// OpenOrders returns orders the exchange still considers live for a symbol.
func (c *Client) OpenOrders(ctx context.Context, symbol string) ([]common.OrderSnapshot, error) {
	if err := c.requireCredentials(); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("instId", symbol)

	data, err := c.doSigned(ctx, http.MethodGet, "/api/v5/trade/orders-pending", query, nil, "open orders")
	if err != nil {
		return nil, err
	}

	var orders []pendingOrder
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, fmt.Errorf("decode open orders: %w", err)
	}

	out := make([]common.OrderSnapshot, 0, len(orders))
	for _, o := range orders {
		out = append(out, toSnapshot(o))
	}
	return out, nil
}

// OrderStatus fetches a single order by exchange id.
func (c *Client) OrderStatus(ctx context.Context, symbol, orderID string) (common.OrderSnapshot, error) {
	if err := c.requireCredentials(); err != nil {
		return common.OrderSnapshot{}, err
	}

	query := url.Values{}
	query.Set("instId", symbol)
	query.Set("ordId", orderID)

	data, err := c.doSigned(ctx, http.MethodGet, "/api/v5/trade/order", query, nil, "order status")
	if err != nil {
		return common.OrderSnapshot{}, err
	}

	var orders []pendingOrder
	if err := json.Unmarshal(data, &orders); err != nil {
		return common.OrderSnapshot{}, fmt.Errorf("decode order status: %w", err)
	}
	if len(orders) == 0 {
		return common.OrderSnapshot{}, fmt.Errorf("order %s not found", orderID)
	}
	return toSnapshot(orders[0]), nil
}

// SetLeverage sets isolated-margin leverage for the instrument on the
// exchange side. Called whenever the local leverage value changes so both
// sides stay aligned.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage float64) error {
	if err := c.requireCredentials(); err != nil {
		return err
	}

	body := map[string]string{
		"instId":  symbol,
		"lever":   formatFloat(leverage),
		"mgnMode": "isolated",
	}
	_, err := c.doSigned(ctx, http.MethodPost, "/api/v5/account/set-leverage", nil, body, "set leverage")
	return err
}

// ServerTime fetches the exchange clock (epoch milliseconds). Public
// endpoint, unsigned.
func (c *Client) ServerTime(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v5/public/time", nil)
	if err != nil {
		return 0, err
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &common.NetworkError{Op: "server time", Err: err}
	}
	defer res.Body.Close()

	var env apiResponse
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return 0, fmt.Errorf("decode server time: %w", err)
	}
	var data []struct {
		TS string `json:"ts"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || len(data) == 0 {
		return 0, fmt.Errorf("malformed server time payload")
	}
	return strconv.ParseInt(data[0].TS, 10, 64)
}

// doSigned signs and performs one request, unwraps the envelope and
// translates failures into the gateway error taxonomy.
func (c *Client) doSigned(ctx context.Context, method, path string, query url.Values, body any, op string) (json.RawMessage, error) {
	requestPath := path
	if len(query) > 0 {
		requestPath += "?" + query.Encode()
	}

	var bodyJSON []byte
	if body != nil {
		var err error
		bodyJSON, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	// OKX signs base64(HMAC-SHA256(timestamp + method + path + body)) with
	// an ISO-8601 millisecond timestamp, adjusted for server clock drift.
	timestamp := c.timeSync.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	sig := sign(timestamp+method+requestPath+string(bodyJSON), c.cfg.APISecret)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bytes.NewReader(bodyJSON))
	if err != nil {
		return nil, err
	}
	req.Header.Set("OK-ACCESS-KEY", c.cfg.APIKey)
	req.Header.Set("OK-ACCESS-SIGN", sig)
	req.Header.Set("OK-ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("OK-ACCESS-PASSPHRASE", c.cfg.Passphrase)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Simulated {
		req.Header.Set("x-simulated-trading", "1")
	}

	c.rateLimiter.Record()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &common.NetworkError{Op: op, Err: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &common.NetworkError{Op: op, Err: err}
	}
	if res.StatusCode >= 500 {
		return nil, &common.NetworkError{Op: op, Err: fmt.Errorf("status %d: %s", res.StatusCode, raw)}
	}

	var env apiResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", op, err)
	}
	if env.Code != "0" {
		return nil, &common.APIError{Op: op, Code: env.Code, Msg: env.Msg}
	}
	return env.Data, nil
}

func (c *Client) requireCredentials() error {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" || c.cfg.Passphrase == "" {
		return errors.New("okx: API key, secret and passphrase required")
	}
	return nil
}

func toSnapshot(o pendingOrder) common.OrderSnapshot {
	snap := common.OrderSnapshot{
		OrderID:    o.OrdID,
		ClientID:   o.ClOrdID,
		Symbol:     o.InstID,
		Side:       common.Side(o.Side),
		Size:       parseFloat(o.Sz),
		FilledSize: parseFloat(o.FillSz),
		Price:      parseFloat(o.Px),
		AvgPrice:   parseFloat(o.AvgPx),
		Status:     mapState(o.State),
	}
	if ms, err := strconv.ParseInt(o.CTime, 10, 64); err == nil {
		snap.CreatedAt = time.UnixMilli(ms)
	}
	return snap
}

func mapState(s string) common.OrderStatus {
	switch s {
	case "live":
		return common.StatusOpen
	case "partially_filled":
		return common.StatusPartial
	case "filled":
		return common.StatusFilled
	case "canceled", "mmp_canceled":
		return common.StatusCancelled
	default:
		return common.StatusUnknown
	}
}

func sign(message, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
