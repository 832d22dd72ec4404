package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/holiman/uint256"

	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/party"
	"github.com/VoltGrid-Network/settlement_layer/pkg/logger"
)

// TransferorFunc adapts a function to the Transferor interface.
type TransferorFunc func(ctx context.Context, to party.Address, amountWei *uint256.Int) error

func (f TransferorFunc) Transfer(ctx context.Context, to party.Address, amountWei *uint256.Int) error {
	if f == nil {
		return nil
	}
	return f(ctx, to, amountWei)
}

// LoggingTransferor records payouts without moving value. Local development
// only; production wires the payout gateway.
type LoggingTransferor struct {
	log *logger.Logger
}

func NewLoggingTransferor(log *logger.Logger) *LoggingTransferor {
	if log == nil {
		log = logger.NewDefault("transferor")
	}
	return &LoggingTransferor{log: log}
}

func (t *LoggingTransferor) Transfer(_ context.Context, to party.Address, amountWei *uint256.Int) error {
	t.log.WithField("to", to).
		WithField("amount_wei", amountWei.Dec()).
		Info("payout recorded (logging transferor)")
	return nil
}

// HTTPTransferor submits payouts to an external signing gateway. Any non-2xx
// response fails the transfer, which the engine surfaces as a payment failure
// with the ledger balance restored.
type HTTPTransferor struct {
	client   *http.Client
	endpoint string
	apiKey   string
	log      *logger.Logger
}

// NewHTTPTransferor validates the endpoint and constructs the transferor.
func NewHTTPTransferor(client *http.Client, endpoint, apiKey string, log *logger.Logger) (*HTTPTransferor, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("payout endpoint is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logger.NewDefault("transferor")
	}
	return &HTTPTransferor{client: client, endpoint: endpoint, apiKey: apiKey, log: log}, nil
}

func (t *HTTPTransferor) Transfer(ctx context.Context, to party.Address, amountWei *uint256.Int) error {
	payload, err := json.Marshal(map[string]string{
		"to":         to.String(),
		"amount_wei": amountWei.Dec(),
	})
	if err != nil {
		return fmt.Errorf("encode payout: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build payout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("X-Api-Key", t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("payout request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("payout gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
