package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go-aviator/internal/config"
	"go-aviator/internal/curve"
	"go-aviator/internal/event"
	"go-aviator/internal/fair"
	"go-aviator/internal/game"
	"go-aviator/internal/history"
	place_bet "go-aviator/internal/http-server/handlers/aviator/bet/place"
	"go-aviator/internal/http-server/handlers/aviator/cashout"
	historyhandler "go-aviator/internal/http-server/handlers/aviator/history"
	"go-aviator/internal/http-server/handlers/aviator/state"
	"go-aviator/internal/http-server/handlers/aviator/verify"
	"go-aviator/internal/http-server/handlers/user/balance"
	mwlogger "go-aviator/internal/http-server/middleware/logger"
	"go-aviator/internal/job"
	"go-aviator/internal/ledger"
	"go-aviator/internal/lib/logger/handler/slogpretty"
	"go-aviator/internal/lib/logger/sl"
	"go-aviator/internal/repository"
	"go-aviator/internal/storage/mysql"
	"go-aviator/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

const workerPoolSize = 4

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("starting crash engine", slog.String("env", cfg.Env))
	log.Debug("debug messages are enabled")

	job.Init(256)
	job.NewWorkerPool(workerPoolSize, job.Queue).Start()

	dbHandler, err := mysql.Open(cfg.MySQL.DSN)
	if err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}
	defer dbHandler.Close()

	wallets := ledger.NewSQLLedger(dbHandler, log)
	roundRepo := repository.NewRoundRepository(dbHandler)
	userRepo := repository.NewUserRepository(dbHandler)

	houseEdge := decimal.RequireFromString(cfg.Game.HouseEdge)
	minMultiplier := decimal.RequireFromString(cfg.Game.MinMultiplier)
	maxMultiplier := decimal.RequireFromString(cfg.Game.MaxMultiplier)
	growth := decimal.RequireFromString(cfg.Game.GrowthFactor)

	source := fair.New(houseEdge, minMultiplier, maxMultiplier)
	crv := curve.New(cfg.Game.TickInterval, growth, cfg.Game.GameDuration)

	historyStore, err := history.NewStore(log, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Error("failed to init history store", sl.Err(err))
		os.Exit(1)
	}
	defer historyStore.Close()

	hub := ws.NewHub(log)

	broadcasters := event.Fanout{hub}
	if cfg.Pusher.AppID != "" {
		broadcasters = append(broadcasters, event.NewPusherEvent(
			log, cfg.Pusher.AppID, cfg.Pusher.Key, cfg.Pusher.Secret, cfg.Pusher.Cluster))
	}

	engine, err := game.NewEngine(log, cfg.Game, source, crv, wallets, roundRepo, broadcasters)
	if err != nil {
		log.Error("failed to build engine", sl.Err(err))
		os.Exit(1)
	}

	engine.SetHistory(historyStore)
	hub.SetEngine(engine)
	hub.RunServer()

	if err = engine.Start(); err != nil {
		log.Error("failed to start engine", sl.Err(err))
		os.Exit(1)
	}
	defer engine.Stop()

	betHandler := place_bet.NewBet(log, engine, userRepo)
	cashoutHandler := cashout.New(log, engine)
	stateHandler := state.New(log, engine)
	historyHandler := historyhandler.New(log, historyStore)
	verifyHandler := verify.New(log, source)
	balanceHandler := balance.New(log, wallets, userRepo)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(mwlogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	router.Post("/aviator/place-bet", betHandler.New())
	router.Post("/aviator/cash-out", cashoutHandler.New())
	router.Get("/aviator/state", stateHandler.New())
	router.Get("/aviator/history", historyHandler.New())
	router.Post("/aviator/verify", verifyHandler.New())
	router.Get("/user/{uuid}/balance", balanceHandler.New())

	log.Info("server started", slog.String("address", cfg.HTTPServer.Address))

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	wsMux := http.NewServeMux()
	wsMux.HandleFunc("/ws", hub.HandleConnection)

	wsSrv := &http.Server{
		Addr:        cfg.WSServer.Address,
		Handler:     wsMux,
		ReadTimeout: cfg.WSServer.Timeout,
		IdleTimeout: cfg.WSServer.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", sl.Err(err))
			os.Exit(1)
		}
	}()

	go func() {
		log.Info("ws server started", slog.String("address", cfg.WSServer.Address))

		if err := wsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("ws server failed", sl.Err(err))
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.Timeout)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", sl.Err(err))
	}

	if err = wsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("ws server shutdown failed", sl.Err(err))
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlogLogger()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return log
}

func setupPrettySlogLogger() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
