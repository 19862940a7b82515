package settlement

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"cremationLedger/internal/cw20"
	"cremationLedger/internal/host"
	"cremationLedger/internal/model"
)

// Handler runs the second phase of a settlement. It must act on the recorded
// Pending, never on whoever delivered the reply.
type Handler func(ctx host.Context, p Pending, reply host.Reply) (*host.Response, error)

// Dispatcher routes continuations to handlers by settlement kind.
type Dispatcher struct {
	expiry   uint64
	handlers map[string]Handler
}

func NewDispatcher(expiry uint64) *Dispatcher {
	return &Dispatcher{expiry: expiry, handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(kind string, h Handler) *Dispatcher {
	d.handlers[kind] = h
	return d
}

// Lock opens the settlement lock of the invoked contract.
func (d *Dispatcher) Lock(ctx host.Context) *Lock {
	return Open(ctx.Store, d.expiry)
}

// Begin locks for actor, snapshots holder's balance of asset, and wraps msg
// as a sub-message tagged with the new correlation id.
func (d *Dispatcher) Begin(ctx host.Context, kind string, actor common.Address, asset model.AssetInfo, msg host.Msg) (host.SubMsg, error) {
	if _, ok := d.handlers[kind]; !ok {
		return host.SubMsg{}, fmt.Errorf("no continuation registered for %q", kind)
	}
	before, err := Balance(ctx.Querier, ctx.Self(), asset)
	if err != nil {
		return host.SubMsg{}, err
	}
	id, err := d.Lock(ctx).Begin(actor, asset, kind, before, ctx.Now())
	if err != nil {
		return host.SubMsg{}, err
	}
	ctx.Log().Debug("settlement begin",
		zap.String("kind", kind),
		zap.Uint64("id", id),
		zap.String("actor", actor.Hex()),
		zap.String("asset", asset.String()),
	)
	return host.SubMsg{ID: id, Msg: msg, ReplyOn: host.ReplySuccess}, nil
}

// Dispatch completes the settlement named by reply.ID and runs its handler.
func (d *Dispatcher) Dispatch(ctx host.Context, reply host.Reply) (*host.Response, error) {
	p, err := d.Lock(ctx).Complete(reply.ID)
	if err != nil {
		return nil, err
	}
	if !reply.Succeeded() {
		return nil, fmt.Errorf("settlement %d external call failed: %s", reply.ID, reply.Err)
	}
	h, ok := d.handlers[p.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", model.ErrInvalidContinuation, p.Kind)
	}
	return h(ctx, p, reply)
}

// Balance reads holder's balance of a native or token asset.
func Balance(q host.Querier, holder common.Address, asset model.AssetInfo) (*big.Int, error) {
	switch asset.Kind {
	case model.AssetNative:
		return q.QueryBalance(holder, asset.Denom)
	case model.AssetToken:
		return cw20.QueryBalance(q, asset.Contract, holder)
	default:
		return nil, asset.Validate()
	}
}

// Observed returns how much of p.Asset arrived since Begin.
func Observed(ctx host.Context, p Pending) (*big.Int, error) {
	after, err := Balance(ctx.Querier, ctx.Self(), p.Asset)
	if err != nil {
		return nil, err
	}
	delta := new(big.Int).Sub(after, p.BalanceBefore)
	if delta.Sign() < 0 {
		return new(big.Int), nil
	}
	return delta, nil
}
