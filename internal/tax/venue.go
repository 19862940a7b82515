package tax

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"cremationLedger/internal/model"
	"cremationLedger/internal/store"
)

// Venue is one trading venue: a router and the pools it routes through.
type Venue struct {
	Name   string           `json:"name"`
	Router common.Address   `json:"router"`
	Pools  []common.Address `json:"pools"`
}

func (v Venue) HasPool(addr common.Address) bool {
	for _, p := range v.Pools {
		if p == addr {
			return true
		}
	}
	return false
}

// Registry holds the venues in the order they were configured.
type Registry struct {
	Venues []Venue `json:"venues"`
}

func (r Registry) Venue(name string) (Venue, bool) {
	for _, v := range r.Venues {
		if v.Name == name {
			return v, true
		}
	}
	return Venue{}, false
}

// IsVenueAddress reports whether addr is a pool or router of any venue.
func (r Registry) IsVenueAddress(addr common.Address) bool {
	for _, v := range r.Venues {
		if v.Router == addr || v.HasPool(addr) {
			return true
		}
	}
	return false
}

// VenueOf returns the first venue that lists addr as a pool or router.
func (r Registry) VenueOf(addr common.Address) (Venue, bool) {
	for _, v := range r.Venues {
		if v.Router == addr || v.HasPool(addr) {
			return v, true
		}
	}
	return Venue{}, false
}

func (r Registry) Initialized() bool {
	return len(r.Venues) > 0
}

var registryItem = store.NewItem[Registry]("venues")

// LoadRegistry returns the stored registry, empty if none was set.
func LoadRegistry(kv store.KVStore) (Registry, error) {
	reg, _, err := registryItem.Load(kv)
	return reg, err
}

// SetVenues performs the one-time wiring of the registry.
func SetVenues(kv store.KVStore, venues []Venue) error {
	exists, err := registryItem.Exists(kv)
	if err != nil {
		return err
	}
	if exists {
		return model.ErrAlreadyInitialized
	}
	reg := Registry{}
	for _, v := range venues {
		if v.Name == "" {
			return fmt.Errorf("%w: venue name is empty", model.ErrInvalidAddress)
		}
		if _, dup := reg.Venue(v.Name); dup {
			return fmt.Errorf("%w: venue %q", model.ErrAlreadyExists, v.Name)
		}
		reg.Venues = append(reg.Venues, Venue{Name: v.Name, Router: v.Router, Pools: dedupe(nil, v.Pools)})
	}
	return registryItem.Save(kv, reg)
}

// AddPools appends pools to a venue, skipping ones already present.
func AddPools(kv store.KVStore, venue string, pools []common.Address) error {
	reg, err := LoadRegistry(kv)
	if err != nil {
		return err
	}
	idx := reg.index(venue)
	if idx < 0 {
		return fmt.Errorf("%w: venue %q", model.ErrNotFound, venue)
	}
	reg.Venues[idx].Pools = dedupe(reg.Venues[idx].Pools, pools)
	return registryItem.Save(kv, reg)
}

// RemovePool drops one pool from a venue.
func RemovePool(kv store.KVStore, venue string, pool common.Address) error {
	reg, err := LoadRegistry(kv)
	if err != nil {
		return err
	}
	idx := reg.index(venue)
	if idx < 0 {
		return fmt.Errorf("%w: venue %q", model.ErrNotFound, venue)
	}
	pools := reg.Venues[idx].Pools
	kept := pools[:0:0]
	for _, p := range pools {
		if p != pool {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(pools) {
		return fmt.Errorf("%w: pool %s in venue %q", model.ErrNotFound, pool.Hex(), venue)
	}
	reg.Venues[idx].Pools = kept
	return registryItem.Save(kv, reg)
}

func (r Registry) index(name string) int {
	for i, v := range r.Venues {
		if v.Name == name {
			return i
		}
	}
	return -1
}

func dedupe(existing, extra []common.Address) []common.Address {
	out := append([]common.Address(nil), existing...)
	seen := make(map[common.Address]struct{}, len(out)+len(extra))
	for _, a := range out {
		seen[a] = struct{}{}
	}
	for _, a := range extra {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
