package api

import (
	"net/http"
	"time"

	"execution-core/internal/events"
	"execution-core/internal/monitor"
	"execution-core/internal/order"
	"execution-core/internal/risk"
	"execution-core/internal/signal"
	"execution-core/internal/state"
	"execution-core/pkg/db"

	"github.com/gin-gonic/gin"
)

// Server wires the control surface around the execution pipeline.
type Server struct {
	Router    *gin.Engine
	Bus       *events.Bus
	DB        *db.Database
	RiskMgr   *risk.Manager
	Executor  *order.Executor
	Positions *state.Manager
	Metrics   *monitor.SystemMetrics
	Queue     *signal.Queue
	JWTSecret string
	Meta      SystemMeta
}

// SystemMeta describes runtime status exposed to operators.
type SystemMeta struct {
	Venue     string
	Symbol    string
	Simulated bool
	Version   string
}

func NewServer(bus *events.Bus, database *db.Database, riskMgr *risk.Manager, executor *order.Executor, positions *state.Manager, metrics *monitor.SystemMetrics, queue *signal.Queue, meta SystemMeta, jwtSecret string) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Bus:       bus,
		DB:        database,
		RiskMgr:   riskMgr,
		Executor:  executor,
		Positions: positions,
		Metrics:   metrics,
		Queue:     queue,
		JWTSecret: jwtSecret,
		Meta:      meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	// Legacy control surface; payload shapes are frozen for existing clients.
	s.Router.POST("/control", s.control)
	s.Router.GET("/metrics", s.getMetrics)

	api := s.Router.Group("/api")
	{
		api.POST("/auth/login", s.loginOperator)

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/status", s.getStatus)
			protected.GET("/orders", s.getOrders)
			protected.GET("/orders/open", s.getOpenOrders)
			protected.GET("/positions", s.getPositions)
			protected.GET("/risk", s.getRisk)
			protected.POST("/signal", s.postSignal)
			protected.POST("/trading/pause", s.pauseTrading)
			protected.POST("/trading/resume", s.resumeTrading)
			protected.POST("/orders/cancel-all", s.cancelAllOrders)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
