package settlement

import (
	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/party"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/settlement"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/events"
)

// Authorize admits a party to the purchase path. Owner-only.
func (e *Engine) Authorize(caller, p party.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if p.IsZero() {
		return settlement.ErrInvalidPartyAddress
	}
	if e.authorized[p] {
		return settlement.ErrPartyAlreadyAuthorized
	}

	e.authorized[p] = true
	e.parties = append(e.parties, p)

	e.log.WithField("party", p).Info("party authorized")
	e.publish(events.TypeAuthorizationChanged, events.AuthorizationChanged{Party: p, Authorized: true})
	return nil
}

// Unauthorize removes a party from the registry. Owner-only. The enumerable
// list uses swap-and-pop removal, so ordering is not preserved.
func (e *Engine) Unauthorize(caller, p party.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if !e.authorized[p] {
		return settlement.ErrPartyNotFound
	}

	for i, existing := range e.parties {
		if existing == p {
			last := len(e.parties) - 1
			e.parties[i] = e.parties[last]
			e.parties = e.parties[:last]
			break
		}
	}
	delete(e.authorized, p)

	e.log.WithField("party", p).Info("party unauthorized")
	e.publish(events.TypeAuthorizationChanged, events.AuthorizationChanged{Party: p, Authorized: false})
	return nil
}

// IsAuthorized reports whether a party may purchase. Read-only.
func (e *Engine) IsAuthorized(p party.Address) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.authorized[p]
}

// AuthorizedParties returns a copy of the enumerable registry.
func (e *Engine) AuthorizedParties() []party.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]party.Address(nil), e.parties...)
}
