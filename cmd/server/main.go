package main

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/web3-frozen/yield-optimizer/internal/autopilot"
	"github.com/web3-frozen/yield-optimizer/internal/cache"
	"github.com/web3-frozen/yield-optimizer/internal/chain"
	"github.com/web3-frozen/yield-optimizer/internal/client"
	"github.com/web3-frozen/yield-optimizer/internal/config"
	"github.com/web3-frozen/yield-optimizer/internal/handler"
	"github.com/web3-frozen/yield-optimizer/internal/investment"
	"github.com/web3-frozen/yield-optimizer/internal/middleware"
	"github.com/web3-frozen/yield-optimizer/internal/notify"
	"github.com/web3-frozen/yield-optimizer/internal/protocol"
	"github.com/web3-frozen/yield-optimizer/internal/rebalance"
	"github.com/web3-frozen/yield-optimizer/internal/scheduler"
	"github.com/web3-frozen/yield-optimizer/internal/sim"
	"github.com/web3-frozen/yield-optimizer/internal/yields"
)

const memoryCacheBytes = 64 << 20

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := openCache(cfg, logger)
	defer store.Close()

	// Yield data
	provider := yields.NewProvider(yields.NewClient(cfg.YieldsAPIURL), store, yields.DefaultTTL, logger)

	// Tick simulator
	seed := protocol.Seed()
	if cfg.LiveSeed {
		if live := provider.LiveProtocols(ctx, len(seed)); len(live) > 0 {
			seed = live
			logger.Info("seeded simulator from live yields", "protocols", len(live))
		}
	}
	simulator := sim.New(sim.Options{
		Registry:     protocol.NewRegistry(seed),
		Rand:         rand.New(rand.NewSource(time.Now().UnixNano())),
		TickInterval: cfg.TickInterval,
		LogCapacity:  cfg.ActivityLogCapacity,
		Logger:       logger,
	})
	if cfg.SimAutostart {
		simulator.Start()
	}
	defer simulator.Stop()

	// Scheduled rebalancer on a simulated chain
	chainCfg := chain.DefaultConfig()
	chainCfg.Principal = cfg.DefaultPrincipal
	chainCfg.GasCeilingUSD = cfg.GasPriceLimit
	chainSim := chain.NewSimulator(chainCfg, nil, logger)

	var bot *notify.Bot
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		bot = notify.NewBot(cfg.TelegramToken, cfg.TelegramChatID, simulator.State, logger)
		simulator.Subscribe(bot.OnTick)
		go bot.Run(ctx)
		go bot.Listen(ctx)
		logger.Info("telegram notifications enabled")
	}

	rbOpts := rebalance.Options{
		Policy: sim.Policy{
			Threshold: cfg.RebalanceThreshold,
			Cooldown:  cfg.RebalanceCooldown,
			MaxGasUSD: cfg.GasPriceLimit,
		},
		Principal: cfg.DefaultPrincipal,
		Logger:    logger,
	}
	if bot != nil {
		rbOpts.OnMove = bot.OnRebalance
	}
	workflow := rebalance.New(provider, chainSim, rbOpts)

	sched := scheduler.New(logger)
	if err := sched.Add("yields-refresh", cfg.RefreshSchedule, func(ctx context.Context) {
		if n, err := provider.Refresh(ctx); err != nil {
			logger.Warn("yields refresh failed", "error", err)
		} else {
			logger.Info("yields refreshed", "pools", n)
		}
	}); err != nil {
		logger.Error("invalid refresh schedule", "schedule", cfg.RefreshSchedule, "error", err)
		os.Exit(1)
	}
	if err := sched.Add("rebalance", cfg.RefreshSchedule, workflow.Run); err != nil {
		logger.Error("invalid rebalance schedule", "error", err)
		os.Exit(1)
	}
	sched.Start()

	// Investments
	catalog := investment.NewCatalog()
	investments := investment.NewStore(catalog)

	// Remote autopilot, optional
	var pilot *autopilot.Runner
	if cfg.AutopilotURL != "" {
		pilot = autopilot.New(client.New(cfg.AutopilotURL), autopilot.StaticWallet(cfg.AutopilotWallet), autopilot.Options{
			Interval: cfg.PollInterval,
			Logger:   logger,
		})
	}

	// HTTP routes
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.FrontendOrigin))
	r.NotFound(handler.NotFound())
	r.MethodNotAllowed(handler.MethodNotAllowed())

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", handler.Health())
	r.Get("/readyz", handler.Ready(store))
	r.Post("/simulate", handler.Simulate(provider, logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handler.Health())

		r.Get("/protocols", handler.TopProtocols(provider))
		r.Get("/protocols/{asset}", handler.ProtocolsForAsset(provider))
		r.Get("/apy/{protocol}", handler.ProtocolAPY(provider))

		r.Route("/sim", func(r chi.Router) {
			r.Get("/state", handler.SimState(simulator))
			r.Post("/deposit", handler.SimDeposit(simulator))
			r.Post("/start", handler.SimStart(simulator))
			r.Post("/stop", handler.SimStop(simulator))
			r.Get("/events", handler.SimEvents(simulator))
			r.Get("/stream", handler.SimStream(simulator, streamOrigins(cfg.FrontendOrigin), logger))
		})

		r.Route("/investments", func(r chi.Router) {
			r.Post("/", handler.CreateInvestment(investments))
			r.Get("/user/{userId}", handler.ListUserInvestments(investments))
			r.Get("/{id}", handler.GetInvestment(investments))
			r.Put("/{id}", handler.UpdateInvestment(investments))
			r.Delete("/{id}", handler.DeleteInvestment(investments))
			r.Post("/{id}/check-better-apy", handler.CheckBetterAPY(investments, catalog))
		})

		r.Get("/catalog", handler.ListCatalog(catalog))
		r.Get("/catalog/compare/{asset}", handler.CompareAsset(catalog))
		r.Get("/catalog/{name}", handler.CatalogVenue(catalog))

		r.Get("/rebalance/status", handler.RebalanceStatus(workflow))
		r.Post("/rebalance/run", handler.RebalanceRun(workflow))

		if pilot != nil {
			r.Get("/autopilot", handler.AutopilotStatus(pilot))
			r.Post("/autopilot/start", handler.AutopilotStart(pilot, ctx))
			r.Post("/autopilot/stop", handler.AutopilotStop(pilot))
		}
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")
	if pilot != nil {
		pilot.Stop()
	}
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	sched.Stop(shutdownCtx)
	_ = srv.Shutdown(shutdownCtx)
}

// openCache prefers Redis when configured (retrying while secrets sync) and
// falls back to the in-process cache.
func openCache(cfg config.Config, logger *slog.Logger) cache.Store {
	if cfg.RedisURL != "" {
		var (
			rc  *cache.Redis
			err error
		)
		for i := 0; i < 6; i++ {
			rc, err = cache.NewRedis(cfg.RedisURL, cfg.RedisPassword)
			if err == nil {
				logger.Info("redis connected for yield cache")
				return rc
			}
			logger.Warn("redis not ready, retrying...", "attempt", i+1, "error", err)
			time.Sleep(5 * time.Second)
		}
		logger.Error("redis unavailable, using in-memory cache", "error", err)
	}

	mc, err := cache.NewMemory(memoryCacheBytes)
	if err != nil {
		logger.Error("failed to create memory cache", "error", err)
		os.Exit(1)
	}
	return mc
}

func streamOrigins(origin string) []string {
	if origin == "" || origin == "*" {
		return []string{"*"}
	}
	return []string{origin, "localhost:*", "smart-apy-swap-*.vercel.app"}
}
