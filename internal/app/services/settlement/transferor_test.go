package settlement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/holiman/uint256"
)

func TestHTTPTransferor_PostsPayout(t *testing.T) {
	var got map[string]string
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payout: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	transferor, err := NewHTTPTransferor(srv.Client(), srv.URL, "gateway-key", nil)
	if err != nil {
		t.Fatalf("new transferor: %v", err)
	}

	if err := transferor.Transfer(context.Background(), testBuyer, uint256.NewInt(12345)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if gotKey != "gateway-key" {
		t.Fatalf("api key not forwarded, got %q", gotKey)
	}
	if got["to"] != testBuyer.String() || got["amount_wei"] != "12345" {
		t.Fatalf("unexpected payout payload: %v", got)
	}
}

func TestHTTPTransferor_GatewayErrorFailsTransfer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "signer offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	transferor, err := NewHTTPTransferor(srv.Client(), srv.URL, "", nil)
	if err != nil {
		t.Fatalf("new transferor: %v", err)
	}
	if err := transferor.Transfer(context.Background(), testBuyer, uint256.NewInt(1)); err == nil {
		t.Fatal("expected an error for a non-2xx gateway response")
	}
}

func TestNewHTTPTransferor_RequiresEndpoint(t *testing.T) {
	if _, err := NewHTTPTransferor(nil, "  ", "", nil); err == nil {
		t.Fatal("expected an error for a missing endpoint")
	}
}
