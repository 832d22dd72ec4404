package settlement

import (
	"encoding/binary"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/party"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/settlement"
)

// ComputeCommitment derives the canonical commitment digest. The field order
// and encoding are fixed here and nowhere else: Keccak-256 over the buyer
// address bytes, then units and nonce as big-endian 64-bit integers. Both the
// commit and reveal paths use this function, so the two can never disagree on
// the encoding.
func ComputeCommitment(buyer party.Address, units, nonce uint64) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(buyer.Bytes())

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], units)
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], nonce)
	h.Write(buf[:])

	var digest [32]byte
	h.Sum(digest[:0])
	return digest
}

// Commit records the caller's purchase commitment. The caller must be
// authorized and the system not paused. A prior unconsumed commitment is
// overwritten so a committed-but-never-revealed party is not permanently
// stuck; the cooldown prevents rapid hash grinding against the front-running
// protection.
func (e *Engine) Commit(caller party.Address, hash [32]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAuthorized(caller); err != nil {
		return err
	}
	if err := e.requireNotPaused(); err != nil {
		return err
	}

	now := e.clock.Now()
	if last, ok := e.lastCommitAt[caller]; ok && now.Before(last.Add(e.cfg.CommitCooldown)) {
		return settlement.ErrCommitmentCooldownActive
	}

	e.commitments[caller] = settlement.Commitment{Hash: hash, CreatedAt: now}
	e.lastCommitAt[caller] = now

	e.log.WithField("party", caller).Debug("commitment recorded")
	return nil
}

// CommitmentOf returns a party's open commitment, if any.
func (e *Engine) CommitmentOf(p party.Address) (settlement.Commitment, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.commitments[p]
	return c, ok
}

// LastCommitAt returns the timestamp of the party's most recent commit.
func (e *Engine) LastCommitAt(p party.Address) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.lastCommitAt[p]
	return t, ok
}
