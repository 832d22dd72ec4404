// Package party defines buyer and owner identities for the settlement layer.
package party

import (
	"strings"
	"time"
)

// Address is an opaque, address-like identity. Addresses are compared in
// normalized form (trimmed, lowercase), so two spellings of the same hex
// address are the same party.
type Address string

// Zero is the null identity. It is never a valid party.
const Zero Address = ""

// Normalize canonicalizes a raw address string.
func Normalize(raw string) Address {
	return Address(strings.ToLower(strings.TrimSpace(raw)))
}

// IsZero reports whether the address is the null identity.
func (a Address) IsZero() bool { return a == Zero }

// Bytes returns the canonical byte encoding of the address, used as the first
// field of the commitment digest.
func (a Address) Bytes() []byte { return []byte(a) }

func (a Address) String() string { return string(a) }

// Party is an identity known to the authorization registry.
type Party struct {
	Address      Address
	AuthorizedAt time.Time
}
