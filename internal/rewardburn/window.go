package rewardburn

import (
	"fmt"
	"math/big"

	"cremationLedger/internal/model"
)

// Window accumulates burns since Start. It stays open while
// Start+duration > now; after that the next burn starts a new one.
type Window struct {
	Amount *big.Int
	Start  uint64
}

func newWindow(now uint64) Window {
	return Window{Amount: new(big.Int), Start: now}
}

func (w Window) active(duration, now uint64) bool {
	return w.Start+duration > now
}

// Current is the amount counted against the limit at now.
func (w Window) Current(duration, now uint64) *big.Int {
	if w.Amount == nil || !w.active(duration, now) {
		return new(big.Int)
	}
	return new(big.Int).Set(w.Amount)
}

// Add books amount into the window, rolling it first when expired. It does
// not modify w. A burn that opens a fresh window is still held to limit, so
// one oversized burn cannot slip through just because the last window ran
// out.
func (w Window) Add(amount, limit *big.Int, duration, now uint64) (Window, error) {
	if !w.active(duration, now) {
		if amount.Cmp(limit) > 0 {
			return w, fmt.Errorf("%w: %s over limit %s", model.ErrExceedBurnLimit, amount, limit)
		}
		return Window{Amount: new(big.Int).Set(amount), Start: now}, nil
	}
	next := new(big.Int).Add(w.Amount, amount)
	if next.Cmp(limit) > 0 {
		return w, fmt.Errorf("%w: %s + %s over limit %s", model.ErrExceedBurnLimit, w.Amount, amount, limit)
	}
	return Window{Amount: next, Start: w.Start}, nil
}
