package tax

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"cremationLedger/internal/store"
)

// LegacyConfig is the single-pool shape used before venues were split out.
type LegacyConfig struct {
	Pair   common.Address
	Router common.Address
}

// LegacyVenueName is the venue a legacy config is migrated into.
const LegacyVenueName = "terraswap"

var legacyItem = store.NewItem[LegacyConfig]("config")

// SaveLegacyConfig writes the pre-migration shape. Only used to stage state
// for migration.
func SaveLegacyConfig(kv store.KVStore, cfg LegacyConfig) error {
	return legacyItem.Save(kv, cfg)
}

// UpgradeLegacy converts the legacy config into a registry, appending extra
// venues supplied by the migration.
func UpgradeLegacy(legacy LegacyConfig, extra ...Venue) Registry {
	reg := Registry{Venues: []Venue{{
		Name:   LegacyVenueName,
		Router: legacy.Router,
		Pools:  []common.Address{legacy.Pair},
	}}}
	for _, v := range extra {
		if idx := reg.index(v.Name); idx >= 0 {
			reg.Venues[idx].Pools = dedupe(reg.Venues[idx].Pools, v.Pools)
			if v.Router != (common.Address{}) {
				reg.Venues[idx].Router = v.Router
			}
			continue
		}
		reg.Venues = append(reg.Venues, Venue{Name: v.Name, Router: v.Router, Pools: dedupe(nil, v.Pools)})
	}
	return reg
}

// MigrateLegacy rewrites a stored legacy config as a registry. When no legacy
// config exists the extra venues are merged into the current registry.
func MigrateLegacy(kv store.KVStore, extra ...Venue) (Registry, error) {
	legacy, ok, err := legacyItem.Load(kv)
	if err != nil {
		return Registry{}, err
	}
	if ok {
		reg := UpgradeLegacy(legacy, extra...)
		if err := registryItem.Save(kv, reg); err != nil {
			return Registry{}, err
		}
		if err := legacyItem.Remove(kv); err != nil {
			return Registry{}, err
		}
		return reg, nil
	}

	reg, err := LoadRegistry(kv)
	if err != nil {
		return Registry{}, err
	}
	if !reg.Initialized() {
		return Registry{}, fmt.Errorf("nothing to migrate: no legacy config and no venues")
	}
	for _, v := range extra {
		if idx := reg.index(v.Name); idx >= 0 {
			reg.Venues[idx].Pools = dedupe(reg.Venues[idx].Pools, v.Pools)
			continue
		}
		reg.Venues = append(reg.Venues, Venue{Name: v.Name, Router: v.Router, Pools: dedupe(nil, v.Pools)})
	}
	return reg, registryItem.Save(kv, reg)
}
