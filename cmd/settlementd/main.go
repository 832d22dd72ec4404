// Command settlementd runs the energy settlement daemon: the engine, price
// refresher, transaction mirror and the HTTP API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	app "github.com/VoltGrid-Network/settlement_layer/internal/app"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/httpapi"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/metrics"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/storage/postgres"
	"github.com/VoltGrid-Network/settlement_layer/internal/config"
	"github.com/VoltGrid-Network/settlement_layer/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/settlement.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		logger.NewDefault("settlementd").WithError(err).Error("configuration invalid")
		os.Exit(1)
	}

	log := logger.New("settlementd", cfg.LogLevel)

	stores := app.Stores{}
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.WithError(err).Error("open postgres")
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.WithError(err).Error("ping postgres")
			os.Exit(1)
		}
		stores.Transactions = postgres.New(db)
		log.Info("transaction mirror backed by postgres")
	} else {
		log.Warn("postgres_dsn not set; transaction mirror is in-memory")
	}

	application, err := app.New(cfg, stores, log)
	if err != nil {
		log.WithError(err).Error("build application")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start application")
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", httpapi.NewHandler(application, log))

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           metrics.InstrumentHandler(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("http api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application shutdown")
	}
}
