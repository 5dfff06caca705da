package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"execution-core/internal/risk"
	"execution-core/internal/signal"

	"github.com/gin-gonic/gin"
)

type controlRequest struct {
	Command string         `json:"command"`
	Data    map[string]any `json:"data"`
}

// control dispatches legacy operator commands. Response bodies here are part
// of a frozen contract with existing tooling; do not reshape them.
func (s *Server) control(c *gin.Context) {
	var req controlRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	switch req.Command {
	case "pause":
		s.Executor.PauseTrading()
		c.JSON(http.StatusOK, gin.H{"status": "paused"})

	case "resume":
		if err := s.Executor.ResumeTrading(); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "resumed"})

	case "update_risk":
		// Existing clients send "new_leverage"; accept "leverage" as an alias.
		leverage, ok := asFloat(req.Data["new_leverage"])
		if !ok {
			leverage, ok = asFloat(req.Data["leverage"])
		}
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No leverage value provided"})
			return
		}
		if err := s.RiskMgr.UpdateLeverage(c.Request.Context(), leverage); err != nil {
			if errors.Is(err, risk.ErrLeverageOutOfRange) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": fmt.Sprintf("leverage updated to %.0fx", leverage)})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown command"})
	}
}

// getMetrics serves the legacy metrics endpoint.
func (s *Server) getMetrics(c *gin.Context) {
	snap := s.RiskMgr.Snapshot()
	resp := gin.H{
		"trading_active":   s.Executor.TradingActive(),
		"current_leverage": snap.CurrentLeverage,
		"daily_loss":       snap.DailyLoss,
		"daily_loss_limit": snap.DailyLossLimit,
		"breached":         snap.Breached,
		"trades_today":     snap.TradesToday,
		"open_orders":      len(s.Executor.OpenOrders()),
	}
	if s.Metrics != nil {
		resp["system"] = s.Metrics.GetSnapshot()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"venue":          s.Meta.Venue,
		"symbol":         s.Meta.Symbol,
		"simulated":      s.Meta.Simulated,
		"version":        s.Meta.Version,
		"trading_active": s.Executor.TradingActive(),
		"queue_depth":    s.Queue.Len(),
	})
}

func (s *Server) getOrders(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			respondError(c, http.StatusBadRequest, "INVALID_QUERY", "limit must be in [1, 500]")
			return
		}
		limit = n
	}
	if s.DB == nil {
		c.JSON(http.StatusOK, gin.H{"orders": []any{}})
		return
	}
	orders, err := s.DB.RecentOrders(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (s *Server) getOpenOrders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"orders": s.Executor.OpenOrders()})
}

func (s *Server) getPositions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"positions": s.Positions.Positions()})
}

func (s *Server) getRisk(c *gin.Context) {
	c.JSON(http.StatusOK, s.RiskMgr.Snapshot())
}

type signalRequest struct {
	Direction string  `json:"direction" binding:"required,oneof=buy sell hold"`
	Size      float64 `json:"size"`
	Price     float64 `json:"price"`
}

// postSignal injects a signal into the queue, mainly for operational testing.
func (s *Server) postSignal(c *gin.Context) {
	var req signalRequest
	if err := c.BindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "direction must be buy, sell or hold")
		return
	}
	dir := signal.DirectionHold
	switch req.Direction {
	case "buy":
		dir = signal.DirectionBuy
	case "sell":
		dir = signal.DirectionSell
	}
	if !s.Queue.TryPush(signal.Signal{Direction: dir, Size: req.Size, Price: req.Price}) {
		respondError(c, http.StatusServiceUnavailable, "QUEUE_FULL", "signal queue is full")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true, "depth": s.Queue.Len()})
}

func (s *Server) pauseTrading(c *gin.Context) {
	s.Executor.PauseTrading()
	c.JSON(http.StatusOK, gin.H{"trading_active": false})
}

func (s *Server) resumeTrading(c *gin.Context) {
	if err := s.Executor.ResumeTrading(); err != nil {
		respondError(c, http.StatusConflict, "RISK_BREACHED", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"trading_active": true})
}

func (s *Server) cancelAllOrders(c *gin.Context) {
	cancelled, failed := s.Executor.CancelAllOrders(c.Request.Context())
	status := http.StatusOK
	if failed > 0 {
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"cancelled": cancelled, "failed": failed})
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
