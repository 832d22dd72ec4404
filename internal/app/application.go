// Package app assembles the settlement layer: engine, price cache, event bus,
// transaction mirror and their lifecycles.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/party"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/pricefeed"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/events"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/services/mirror"
	pricefeedsvc "github.com/VoltGrid-Network/settlement_layer/internal/app/services/pricefeed"
	settlementsvc "github.com/VoltGrid-Network/settlement_layer/internal/app/services/settlement"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/storage"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/storage/memory"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/system"
	"github.com/VoltGrid-Network/settlement_layer/internal/config"
	"github.com/VoltGrid-Network/settlement_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Transactions storage.TransactionStore
}

// Application ties the settlement components together and manages their
// lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Config       config.Config
	Bus          *events.Bus
	Engine       *settlementsvc.Engine
	PriceCache   *pricefeedsvc.Cache
	Transactions storage.TransactionStore
}

// New builds a fully initialised application from configuration.
func New(cfg config.Config, stores Stores, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if stores.Transactions == nil {
		stores.Transactions = memory.New()
	}

	bus := events.NewBus()
	manager := system.NewManager()
	httpClient := &http.Client{Timeout: 10 * time.Second}

	var feed pricefeedsvc.RoundFeed
	feedConfigured := cfg.Price.FeedURL != ""
	if feedConfigured {
		httpFeed, err := pricefeedsvc.NewHTTPFeed(httpClient, pricefeedsvc.HTTPFeedConfig{
			Endpoint:      cfg.Price.FeedURL,
			APIKey:        cfg.Price.FeedAPIKey,
			PricePath:     cfg.Price.PricePath,
			UpdatedAtPath: cfg.Price.UpdatedAtPath,
			MaxRPS:        cfg.Price.MaxRPS,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("configure price feed: %w", err)
		}
		feed = httpFeed
	} else {
		log.Warn("price.feed_url not set; settlement will fail until a price is available")
		feed = pricefeedsvc.RoundFeedFunc(func(context.Context) (pricefeed.RoundData, error) {
			return pricefeed.RoundData{}, fmt.Errorf("no price feed configured")
		})
	}

	cache := pricefeedsvc.NewCache(feed, pricefeedsvc.CacheConfig{
		MinPrice:  cfg.Price.MinPriceUSD * 1e8,
		MaxPrice:  cfg.Price.MaxPriceUSD * 1e8,
		Staleness: cfg.Price.Staleness.Std(),
	}, log)

	var transferor settlementsvc.Transferor
	if cfg.Payout.URL != "" {
		httpTransferor, err := settlementsvc.NewHTTPTransferor(httpClient, cfg.Payout.URL, cfg.Payout.APIKey, log)
		if err != nil {
			return nil, fmt.Errorf("configure payout gateway: %w", err)
		}
		transferor = httpTransferor
	} else {
		log.Warn("payout.url not set; refund payouts are log-only")
		transferor = settlementsvc.NewLoggingTransferor(log)
	}

	engine, err := settlementsvc.NewEngine(
		party.Normalize(cfg.OwnerAddress),
		settlementsvc.Config{
			AddDelay:       cfg.Engine.AddDelay.Std(),
			CommitCooldown: cfg.Engine.CommitCooldown.Std(),
			RevealWindow:   cfg.Engine.RevealWindow.Std(),
			UnitPriceCents: cfg.Engine.UnitPriceCents,
		},
		cache,
		transferor,
		log,
		settlementsvc.WithBus(bus),
	)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	services := []system.Service{
		mirror.NewRecorder(bus, stores.Transactions, log),
	}
	if feedConfigured {
		services = append(services, pricefeedsvc.NewRefresher(cache, cfg.Price.RefreshInterval.Std(), log))
	}
	for _, svc := range services {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:      manager,
		log:          log,
		Config:       cfg,
		Bus:          bus,
		Engine:       engine,
		PriceCache:   cache,
		Transactions: stores.Transactions,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services and tears down the event bus.
func (a *Application) Stop(ctx context.Context) error {
	err := a.manager.Stop(ctx)
	a.Bus.Close()
	return err
}
