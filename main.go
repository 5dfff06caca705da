package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"execution-core/internal/api"
	"execution-core/internal/events"
	"execution-core/internal/monitor"
	"execution-core/internal/order"
	"execution-core/internal/reconciliation"
	"execution-core/internal/risk"
	sig "execution-core/internal/signal"
	"execution-core/internal/state"
	"execution-core/pkg/config"
	"execution-core/pkg/db"
	"execution-core/pkg/exchanges/common"
	"execution-core/pkg/exchanges/okx"
)

// leverageAdapter binds the gateway's leverage call to the configured symbol.
type leverageAdapter struct {
	gw     common.Gateway
	symbol string
}

func (a leverageAdapter) SetLeverage(ctx context.Context, leverage float64) error {
	return a.gw.SetLeverage(ctx, a.symbol, leverage)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	log.Printf("starting execution core, symbol=%s port=%s", cfg.Trading.Symbol, cfg.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core services
	bus := events.NewBus()
	sysMetrics := monitor.NewSystemMetrics()

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}
	database.SetLatencyHook(sysMetrics.DBLatency.RecordDuration)

	// In-memory state seeded from DB
	positions := state.NewManager(database)
	if err := positions.Load(ctx); err != nil {
		log.Fatalf("load positions: %v", err)
	}

	// Exchange gateway
	gateway := okx.New(okx.Config{
		APIKey:     cfg.Trading.APIKey,
		APISecret:  cfg.Trading.APISecret,
		Passphrase: cfg.Trading.Passphrase,
		BaseURL:    cfg.Trading.BaseURL,
		Simulated:  cfg.Trading.Simulated,
	})
	gateway.StartTimeSync(ctx)

	// Risk manager
	riskMgr := risk.NewManager(risk.Config{
		MinLeverage:     cfg.Trading.Risk.MinLeverage,
		MaxLeverage:     cfg.Trading.Risk.MaxLeverage,
		InitialLeverage: cfg.Trading.InitialLeverage,
		MaxPosition:     cfg.Trading.Risk.MaxPosition,
		BaseUnit:        cfg.Trading.BaseUnit,
		DailyLossLimit:  cfg.Trading.Risk.DailyLossLimit,
		EquityBase:      cfg.Trading.Risk.EquityBase,
		Mode:            cfg.Trading.Risk.PnLMode,
	}, bus)
	if err := riskMgr.SetStore(database); err != nil {
		log.Printf("risk: %v", err)
	}

	// Executor and circuit-breaker wiring
	executor := order.NewExecutor(gateway, riskMgr, database, bus, cfg.Trading.Symbol)
	executor.SetMetrics(sysMetrics)
	riskMgr.Bind(executor, leverageAdapter{gateway, cfg.Trading.Symbol})

	// Push the configured leverage to the exchange before accepting signals.
	// A transient exchange error here is not fatal; the local value stays at
	// the configured default and the operator can re-push via update_risk.
	if err := riskMgr.UpdateLeverage(ctx, cfg.Trading.InitialLeverage); err != nil {
		log.Printf("set initial leverage: %v", err)
	}

	// Signal intake and execution loop
	queue := sig.NewQueue(cfg.Trading.QueueSize)
	go executor.Run(ctx, queue)

	// Single poller for the whole open-order set
	poller := order.NewPoller(executor, positions, bus,
		time.Duration(cfg.Trading.PollIntervalSec)*time.Second,
		time.Duration(cfg.Trading.PollBudgetSec)*time.Second)
	poller.SetMetrics(sysMetrics)
	go poller.Run(ctx)

	// Periodic drift repair against the exchange's open-order list
	recon := reconciliation.NewService(gateway, executor, cfg.Trading.Symbol, 5*time.Minute)
	recon.Start(ctx)

	// Daily rollover check for quiet days with no accounting traffic
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				riskMgr.CheckAndResetDailyLoss()
			}
		}
	}()

	// Event-driven counters and alerting
	mon := &monitor.Monitor{
		Bus:     bus,
		Metrics: sysMetrics,
		AlertFn: func(msg string) { log.Printf("ALERT %s", msg) },
	}
	mon.Start(ctx)

	// Operator auth for the protected API group
	if pw := os.Getenv("OPERATOR_PASSWORD"); pw != "" {
		if err := api.SetOperatorPassword(pw); err != nil {
			log.Fatalf("operator auth: %v", err)
		}
	} else {
		log.Println("OPERATOR_PASSWORD not set, protected API login disabled")
	}

	// Control surface
	version := os.Getenv("APP_VERSION")
	if version == "" {
		version = "dev"
	}
	server := api.NewServer(
		bus,
		database,
		riskMgr,
		executor,
		positions,
		sysMetrics,
		queue,
		api.SystemMeta{
			Venue:     "okx",
			Symbol:    cfg.Trading.Symbol,
			Simulated: cfg.Trading.Simulated,
			Version:   version,
		},
		cfg.Server.JWTSecret,
	)
	go func() {
		if err := server.Start(":" + cfg.Server.Port); err != nil {
			log.Fatalf("api server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down")
	cancel()

	// Give in-flight cancellations a moment before the process exits.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	cancelled, failed := executor.CancelAllOrders(shutdownCtx)
	log.Printf("shutdown: cancelled %d open orders (%d failed)", cancelled, failed)
}
