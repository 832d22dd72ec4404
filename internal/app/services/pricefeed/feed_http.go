package pricefeed

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/pricefeed"
	"github.com/VoltGrid-Network/settlement_layer/pkg/logger"
)

// HTTPFeedConfig describes the JSON endpoint serving the latest round.
type HTTPFeedConfig struct {
	Endpoint      string
	APIKey        string
	PricePath     string  // gjson path to the USD price (number)
	UpdatedAtPath string  // gjson path to the round's unix-seconds timestamp
	RoundIDPath   string  // optional gjson path to the round identifier
	MaxRPS        float64 // request throttle; callers beyond it wait
}

func (c HTTPFeedConfig) withDefaults() HTTPFeedConfig {
	if c.PricePath == "" {
		c.PricePath = "price"
	}
	if c.UpdatedAtPath == "" {
		c.UpdatedAtPath = "updated_at"
	}
	if c.RoundIDPath == "" {
		c.RoundIDPath = "round_id"
	}
	if c.MaxRPS <= 0 {
		c.MaxRPS = 1
	}
	return c
}

// HTTPFeed is a RoundFeed over an HTTP JSON endpoint.
type HTTPFeed struct {
	client  *http.Client
	cfg     HTTPFeedConfig
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewHTTPFeed validates the endpoint and constructs the feed.
func NewHTTPFeed(client *http.Client, cfg HTTPFeedConfig, log *logger.Logger) (*HTTPFeed, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("price feed endpoint is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("pricefeed-http")
	}
	cfg = cfg.withDefaults()
	return &HTTPFeed{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.MaxRPS), 1),
		log:     log,
	}, nil
}

// LatestRoundData fetches and decodes the feed's latest round.
func (f *HTTPFeed) LatestRoundData(ctx context.Context) (pricefeed.RoundData, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return pricefeed.RoundData{}, fmt.Errorf("price feed throttle: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.Endpoint, nil)
	if err != nil {
		return pricefeed.RoundData{}, fmt.Errorf("build feed request: %w", err)
	}
	if f.cfg.APIKey != "" {
		req.Header.Set("X-Api-Key", f.cfg.APIKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return pricefeed.RoundData{}, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return pricefeed.RoundData{}, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pricefeed.RoundData{}, fmt.Errorf("read feed response: %w", err)
	}

	priceResult := gjson.GetBytes(body, f.cfg.PricePath)
	if !priceResult.Exists() {
		return pricefeed.RoundData{}, fmt.Errorf("feed response missing %q", f.cfg.PricePath)
	}

	rd := pricefeed.RoundData{
		// The endpoint reports a plain USD number; scale to 8 decimals.
		Price:   int64(math.Round(priceResult.Float() * 1e8)),
		RoundID: gjson.GetBytes(body, f.cfg.RoundIDPath).Uint(),
	}
	if updated := gjson.GetBytes(body, f.cfg.UpdatedAtPath); updated.Exists() {
		rd.UpdatedAt = time.Unix(updated.Int(), 0).UTC()
		rd.StartedAt = rd.UpdatedAt
	}
	rd.AnsweredInRound = rd.RoundID
	return rd, nil
}
