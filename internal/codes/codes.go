// Package codes registers every contract the ledger host can instantiate.
package codes

import (
	"cremationLedger/internal/burning"
	"cremationLedger/internal/dex"
	"cremationLedger/internal/host"
	"cremationLedger/internal/proxyswap"
	"cremationLedger/internal/rewardburn"
	"cremationLedger/internal/staking"
	"cremationLedger/internal/timelock"
	"cremationLedger/internal/token"
)

const (
	Token      = "token"
	Router     = "router"
	ProxySwap  = "proxy_swap"
	Burning    = "burning"
	RewardBurn = "reward_burn"
	Staking    = "staking"
	Timelock   = "timelock"
)

// Options tune contracts that take host-level settings.
type Options struct {
	// SettlementExpiry lets a stale settlement lock be taken over after this
	// many seconds. Zero keeps locks until their continuation arrives.
	SettlementExpiry uint64
}

// Register binds all code ids on app.
func Register(app *host.App, opts Options) {
	app.Register(Token, token.New)
	app.Register(Router, dex.NewRouter)
	app.Register(ProxySwap, func() host.Contract { return proxyswap.New(opts.SettlementExpiry) })
	app.Register(Burning, func() host.Contract { return burning.New(opts.SettlementExpiry) })
	app.Register(RewardBurn, rewardburn.New)
	app.Register(Staking, staking.New)
	app.Register(Timelock, timelock.New)
}

// Names lists the registered code ids.
func Names() []string {
	return []string{Token, Router, ProxySwap, Burning, RewardBurn, Staking, Timelock}
}
