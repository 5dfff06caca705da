package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"execution-core/internal/events"
	"execution-core/internal/monitor"
	"execution-core/internal/order"
	"execution-core/internal/risk"
	"execution-core/internal/signal"
	"execution-core/internal/state"
	"execution-core/pkg/exchanges/common"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGateway struct {
	leverage    float64
	leverageErr error
}

func (g *stubGateway) PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	return common.OrderResult{OrderID: "ord-1", ClientID: req.ClientID}, nil
}
func (g *stubGateway) CancelOrder(ctx context.Context, symbol, orderID string) error { return nil }
func (g *stubGateway) OpenOrders(ctx context.Context, symbol string) ([]common.OrderSnapshot, error) {
	return nil, nil
}
func (g *stubGateway) OrderStatus(ctx context.Context, symbol, orderID string) (common.OrderSnapshot, error) {
	return common.OrderSnapshot{}, nil
}
func (g *stubGateway) SetLeverage(ctx context.Context, symbol string, leverage float64) error {
	if g.leverageErr != nil {
		return g.leverageErr
	}
	g.leverage = leverage
	return nil
}

type leverageAdapter struct {
	gw     common.Gateway
	symbol string
}

func (a leverageAdapter) SetLeverage(ctx context.Context, leverage float64) error {
	return a.gw.SetLeverage(ctx, a.symbol, leverage)
}

func newTestServer(t *testing.T) (*Server, *stubGateway) {
	t.Helper()
	gw := &stubGateway{}
	bus := events.NewBus()
	rm := risk.NewManager(risk.Config{
		MinLeverage: 1, MaxLeverage: 10, InitialLeverage: 5,
		MaxPosition: 100, BaseUnit: 10, DailyLossLimit: 0.05,
		EquityBase: 10000, Mode: risk.ModeFills,
	}, bus)
	exec := order.NewExecutor(gw, rm, nil, bus, "BTC-USDT-SWAP")
	rm.Bind(exec, leverageAdapter{gw, "BTC-USDT-SWAP"})

	s := NewServer(bus, nil, rm, exec, state.NewManager(nil),
		monitor.NewSystemMetrics(), signal.NewQueue(10),
		SystemMeta{Venue: "okx", Symbol: "BTC-USDT-SWAP", Version: "test"}, "test-secret")
	return s, gw
}

func doJSON(s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return m
}

func TestControlPauseResume(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(s, http.MethodPost, "/control", `{"command":"pause"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("pause status = %d, body %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["status"]; got != "paused" {
		t.Fatalf("status = %v, want paused", got)
	}
	if s.Executor.TradingActive() {
		t.Fatal("executor still active after pause")
	}

	// Pause is idempotent.
	w = doJSON(s, http.MethodPost, "/control", `{"command":"pause"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("second pause status = %d", w.Code)
	}

	w = doJSON(s, http.MethodPost, "/control", `{"command":"resume"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("resume status = %d", w.Code)
	}
	if got := decode(t, w)["status"]; got != "resumed" {
		t.Fatalf("status = %v, want resumed", got)
	}
	if !s.Executor.TradingActive() {
		t.Fatal("executor not active after resume")
	}
}

func TestControlResumeBlockedWhileBreached(t *testing.T) {
	s, _ := newTestServer(t)
	s.RiskMgr.ApplyFill(context.Background(), -600) // breach

	w := doJSON(s, http.MethodPost, "/control", `{"command":"resume"}`, "")
	if w.Code != http.StatusConflict {
		t.Fatalf("resume while breached = %d, want 409", w.Code)
	}
}

func TestControlUpdateRisk(t *testing.T) {
	s, gw := newTestServer(t)

	w := doJSON(s, http.MethodPost, "/control", `{"command":"update_risk","data":{"new_leverage":3}}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("update_risk status = %d, body %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["status"]; got != "leverage updated to 3x" {
		t.Fatalf("status = %v, want 'leverage updated to 3x'", got)
	}
	if gw.leverage != 3 {
		t.Fatalf("exchange leverage = %v, want 3", gw.leverage)
	}

	// "leverage" alias also works.
	w = doJSON(s, http.MethodPost, "/control", `{"command":"update_risk","data":{"leverage":4}}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("alias status = %d, body %s", w.Code, w.Body.String())
	}
	if gw.leverage != 4 {
		t.Fatalf("exchange leverage = %v, want 4", gw.leverage)
	}
}

func TestControlUpdateRiskMissingLeverage(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(s, http.MethodPost, "/control", `{"command":"update_risk","data":{}}`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if got := decode(t, w)["error"]; got != "No leverage value provided" {
		t.Fatalf("error = %v, want 'No leverage value provided'", got)
	}
}

func TestControlUpdateRiskOutOfRange(t *testing.T) {
	s, gw := newTestServer(t)

	w := doJSON(s, http.MethodPost, "/control", `{"command":"update_risk","data":{"new_leverage":50}}`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if gw.leverage != 0 {
		t.Fatal("rejected leverage reached the exchange")
	}
	if got := s.RiskMgr.Leverage(); got != 5 {
		t.Fatalf("leverage = %v, want unchanged 5", got)
	}
}

func TestControlUnknownCommand(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(s, http.MethodPost, "/control", `{"command":"selfdestruct"}`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if got := decode(t, w)["error"]; got != "Unknown command" {
		t.Fatalf("error = %v, want 'Unknown command'", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(s, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	m := decode(t, w)
	if m["trading_active"] != true {
		t.Fatalf("trading_active = %v, want true", m["trading_active"])
	}
	if m["current_leverage"].(float64) != 5 {
		t.Fatalf("current_leverage = %v, want 5", m["current_leverage"])
	}
	if _, ok := m["daily_loss"]; !ok {
		t.Fatal("metrics missing daily_loss")
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(s, http.MethodGet, "/api/risk", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestLoginAndProtectedAccess(t *testing.T) {
	s, _ := newTestServer(t)
	if err := SetOperatorPassword("hunter2"); err != nil {
		t.Fatalf("SetOperatorPassword: %v", err)
	}

	w := doJSON(s, http.MethodPost, "/api/auth/login", `{"operator":"ops","password":"wrong"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", w.Code)
	}

	w = doJSON(s, http.MethodPost, "/api/auth/login", `{"operator":"ops","password":"hunter2"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body.String())
	}
	token, _ := decode(t, w)["token"].(string)
	if token == "" {
		t.Fatal("login returned empty token")
	}

	w = doJSON(s, http.MethodGet, "/api/risk", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("risk status = %d", w.Code)
	}
	m := decode(t, w)
	if m["current_leverage"].(float64) != 5 {
		t.Fatalf("current_leverage = %v, want 5", m["current_leverage"])
	}
}

func TestRESTPauseResume(t *testing.T) {
	s, _ := newTestServer(t)
	SetOperatorPassword("hunter2")
	w := doJSON(s, http.MethodPost, "/api/auth/login", `{"operator":"ops","password":"hunter2"}`, "")
	token, _ := decode(t, w)["token"].(string)

	w = doJSON(s, http.MethodPost, "/api/trading/pause", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("pause status = %d, body %s", w.Code, w.Body.String())
	}
	if decode(t, w)["trading_active"].(bool) {
		t.Fatal("trading_active = true after pause")
	}
	if s.Executor.TradingActive() {
		t.Fatal("executor still active after pause")
	}

	w = doJSON(s, http.MethodPost, "/api/trading/resume", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("resume status = %d, body %s", w.Code, w.Body.String())
	}
	if !s.Executor.TradingActive() {
		t.Fatal("executor inactive after resume")
	}
}

func TestPostSignalQueues(t *testing.T) {
	s, _ := newTestServer(t)
	SetOperatorPassword("hunter2")
	w := doJSON(s, http.MethodPost, "/api/auth/login", `{"operator":"ops","password":"hunter2"}`, "")
	token, _ := decode(t, w)["token"].(string)

	w = doJSON(s, http.MethodPost, "/api/signal", `{"direction":"buy","size":1}`, token)
	if w.Code != http.StatusAccepted {
		t.Fatalf("signal status = %d, body %s", w.Code, w.Body.String())
	}
	if s.Queue.Len() != 1 {
		t.Fatalf("queue depth = %d, want 1", s.Queue.Len())
	}

	w = doJSON(s, http.MethodPost, "/api/signal", `{"direction":"sideways"}`, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid direction status = %d, want 400", w.Code)
	}
}
