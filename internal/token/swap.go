package token

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"cremationLedger/internal/cw20"
	"cremationLedger/internal/dex"
	"cremationLedger/internal/host"
	"cremationLedger/internal/model"
	"cremationLedger/internal/tax"
)

// swapCollectedTax sells the collector's balance through the venue that
// received a sell, once that balance reaches the configured threshold. The
// collector's whole balance is moved to the venue router and swapped into
// the target asset, paid back to the collector.
func (c *Contract) swapCollectedTax(ctx host.Context, mv movement, to common.Address, resp *host.Response) error {
	if mv.Op != tax.OpSell {
		return nil
	}
	cfg, ok, err := swapItem.Load(ctx.Store)
	if err != nil || !ok || !cfg.Enabled {
		return err
	}
	venue, ok := mv.Registry.VenueOf(to)
	if !ok || venue.Router == (common.Address{}) {
		return nil
	}
	collector, err := collectorItem.MustLoad(ctx.Store)
	if err != nil {
		return err
	}
	collected, err := balanceOf(ctx.Store, collector)
	if err != nil {
		return err
	}
	if collected.Cmp(cfg.Threshold) < 0 {
		return nil
	}

	ops, err := dex.BuildOperations(model.TokenAsset(ctx.Self()), nil, cfg.Target)
	if err != nil {
		return err
	}
	if err := debit(ctx.Store, collector, collected); err != nil {
		return err
	}
	if err := credit(ctx.Store, venue.Router, collected); err != nil {
		return err
	}
	hook, err := host.TaggedJSON("execute_swap_operations", dex.ExecuteSwapOperations{Operations: ops, To: &collector})
	if err != nil {
		return err
	}
	receive, err := host.Execute(venue.Router, "receive", cw20.ReceiveMsg{Sender: collector, Amount: collected, Msg: hook})
	if err != nil {
		return err
	}
	resp.AddMessage(receive).
		AddAttribute("tax_swap_amount", collected.String()).
		AddAttribute("tax_swap_venue", venue.Name)

	ctx.Log().Info("swap collected tax",
		zap.String("venue", venue.Name),
		zap.String("amount", collected.String()),
		zap.String("target", cfg.Target.String()),
	)
	return nil
}
