package settlement

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cremationLedger/internal/model"
	"cremationLedger/internal/store"
)

// Pending is the persisted record of an in-flight settlement.
type Pending struct {
	Locked        bool
	Actor         common.Address
	Asset         model.AssetInfo
	CorrelationID uint64
	Kind          string
	StartedAt     uint64
	BalanceBefore *big.Int
}

var (
	pendingItem = store.NewItem[Pending]("settlement/pending")
	nonceItem   = store.NewItem[uint64]("settlement/nonce")
)

// Lock serializes settlements for one contract instance. At most one is in
// flight; a second Begin fails instead of queueing.
type Lock struct {
	kv     store.KVStore
	expiry uint64
}

// Open binds the lock to a contract store. A non-zero expiry (seconds) lets
// Begin take over a lock whose continuation never arrived.
func Open(kv store.KVStore, expiry uint64) *Lock {
	return &Lock{kv: kv, expiry: expiry}
}

// Current returns the stored record; the zero value means unlocked.
func (l *Lock) Current() (Pending, error) {
	p, _, err := pendingItem.Load(l.kv)
	return p, err
}

// Stale reports whether p has outlived the configured expiry at now.
func (l *Lock) Stale(p Pending, now uint64) bool {
	return p.Locked && l.expiry > 0 && now >= p.StartedAt+l.expiry
}

// Begin locks the instance for actor and returns the correlation id the
// external call must be tagged with.
func (l *Lock) Begin(actor common.Address, asset model.AssetInfo, kind string, balanceBefore *big.Int, now uint64) (uint64, error) {
	current, err := l.Current()
	if err != nil {
		return 0, err
	}
	if current.Locked && !l.Stale(current, now) {
		return 0, fmt.Errorf("%w: settlement %d for %s in flight", model.ErrLocked, current.CorrelationID, current.Actor.Hex())
	}

	nonce, _, err := nonceItem.Load(l.kv)
	if err != nil {
		return 0, err
	}
	nonce++
	if err := nonceItem.Save(l.kv, nonce); err != nil {
		return 0, err
	}

	if balanceBefore == nil {
		balanceBefore = new(big.Int)
	}
	p := Pending{
		Locked:        true,
		Actor:         actor,
		Asset:         asset,
		CorrelationID: nonce,
		Kind:          kind,
		StartedAt:     now,
		BalanceBefore: new(big.Int).Set(balanceBefore),
	}
	if err := pendingItem.Save(l.kv, p); err != nil {
		return 0, err
	}
	return nonce, nil
}

// Complete consumes the in-flight record for id and unlocks.
func (l *Lock) Complete(id uint64) (Pending, error) {
	current, err := l.Current()
	if err != nil {
		return Pending{}, err
	}
	if !current.Locked {
		return Pending{}, fmt.Errorf("%w: %w", model.ErrInvalidContinuation, model.ErrAlreadyUnlocked)
	}
	if current.CorrelationID != id {
		return Pending{}, fmt.Errorf("%w: got id %d, want %d", model.ErrInvalidContinuation, id, current.CorrelationID)
	}
	if err := pendingItem.Save(l.kv, Pending{CorrelationID: current.CorrelationID}); err != nil {
		return Pending{}, err
	}
	return current, nil
}

// Release clears a held lock without running its continuation.
func (l *Lock) Release() (Pending, error) {
	current, err := l.Current()
	if err != nil {
		return Pending{}, err
	}
	if !current.Locked {
		return Pending{}, model.ErrAlreadyUnlocked
	}
	if err := pendingItem.Save(l.kv, Pending{CorrelationID: current.CorrelationID}); err != nil {
		return Pending{}, err
	}
	return current, nil
}

// Status is the query view of the lock.
type Status struct {
	Locked        bool             `json:"locked"`
	Actor         *common.Address  `json:"actor,omitempty"`
	Asset         *model.AssetInfo `json:"asset,omitempty"`
	CorrelationID uint64           `json:"correlation_id"`
	Kind          string           `json:"kind,omitempty"`
	StartedAt     uint64           `json:"started_at,omitempty"`
	Stale         bool             `json:"stale"`
}

// StatusAt reports the lock as seen at now.
func (l *Lock) StatusAt(now uint64) (Status, error) {
	p, err := l.Current()
	if err != nil {
		return Status{}, err
	}
	s := Status{Locked: p.Locked, CorrelationID: p.CorrelationID}
	if !p.Locked {
		return s, nil
	}
	actor, asset := p.Actor, p.Asset
	s.Actor = &actor
	s.Asset = &asset
	s.Kind = p.Kind
	s.StartedAt = p.StartedAt
	s.Stale = l.Stale(p, now)
	return s, nil
}
