package settlement

import (
	"errors"
	"testing"

	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/party"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/settlement"
)

func TestAuthorize_OwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	if err := env.engine.Authorize(testBuyer, testBuyer); !errors.Is(err, settlement.ErrUnauthorizedCaller) {
		t.Fatalf("expected ErrUnauthorizedCaller, got %v", err)
	}
}

func TestAuthorize_RejectsZeroAddress(t *testing.T) {
	env := newTestEnv(t)
	if err := env.engine.Authorize(testOwner, party.Zero); !errors.Is(err, settlement.ErrInvalidPartyAddress) {
		t.Fatalf("expected ErrInvalidPartyAddress, got %v", err)
	}
}

func TestAuthorize_RejectsDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.authorizeBuyer(t, testBuyer)
	if err := env.engine.Authorize(testOwner, testBuyer); !errors.Is(err, settlement.ErrPartyAlreadyAuthorized) {
		t.Fatalf("expected ErrPartyAlreadyAuthorized, got %v", err)
	}
}

func TestUnauthorize_UnknownParty(t *testing.T) {
	env := newTestEnv(t)
	if err := env.engine.Unauthorize(testOwner, testBuyer); !errors.Is(err, settlement.ErrPartyNotFound) {
		t.Fatalf("expected ErrPartyNotFound, got %v", err)
	}
}

func TestUnauthorize_RemovesMembership(t *testing.T) {
	env := newTestEnv(t)

	a := party.Address("0x1111111111111111111111111111111111111111")
	b := party.Address("0x2222222222222222222222222222222222222222")
	c := party.Address("0x3333333333333333333333333333333333333333")
	for _, p := range []party.Address{a, b, c} {
		env.authorizeBuyer(t, p)
	}

	if err := env.engine.Unauthorize(testOwner, a); err != nil {
		t.Fatalf("unauthorize: %v", err)
	}
	if env.engine.IsAuthorized(a) {
		t.Fatal("removed party still authorized")
	}

	// Swap-and-pop does not preserve order, so check membership only.
	parties := env.engine.AuthorizedParties()
	if len(parties) != 3 {
		t.Fatalf("expected 3 parties, got %d: %v", len(parties), parties)
	}
	seen := make(map[party.Address]bool, len(parties))
	for _, p := range parties {
		seen[p] = true
	}
	for _, want := range []party.Address{testOwner, b, c} {
		if !seen[want] {
			t.Fatalf("party %s missing from registry %v", want, parties)
		}
	}

	// Re-authorizing after removal is allowed.
	if err := env.engine.Authorize(testOwner, a); err != nil {
		t.Fatalf("re-authorize: %v", err)
	}
}
