package host

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"cremationLedger/internal/model"
)

// ContractInfo pairs an address with its metadata.
type ContractInfo struct {
	Address common.Address
	Meta    ContractMeta
}

// Contracts lists every instantiated contract in address order.
func (a *App) Contracts() ([]ContractInfo, error) {
	var out []ContractInfo
	err := metaMap.Range(a.root, func(k []byte, meta ContractMeta) bool {
		out = append(out, ContractInfo{Address: common.BytesToAddress(k), Meta: meta})
		return true
	})
	return out, err
}

// Snapshot emits the current state of the bank and of every contract.
// Contracts implementing Exporter describe themselves; the rest are dumped
// as raw hex key/value pairs.
func (a *App) Snapshot(fn func(model.StateRecord) error) error {
	block, err := a.Block()
	if err != nil {
		return err
	}

	balances, err := a.bank.all(a.root)
	if err != nil {
		return fmt.Errorf("snapshot bank: %w", err)
	}
	for _, b := range balances {
		value, err := json.Marshal(b.Amount)
		if err != nil {
			return err
		}
		if err := fn(model.StateRecord{
			Height:   block.Height,
			Contract: "bank",
			Label:    "bank",
			Kind:     "native_balance",
			Key:      b.Denom + "/" + b.Address.Hex(),
			Value:    value,
		}); err != nil {
			return err
		}
	}

	contracts, err := a.Contracts()
	if err != nil {
		return err
	}
	for _, c := range contracts {
		records, err := a.exportContract(c)
		if err != nil {
			return fmt.Errorf("snapshot %s: %w", c.Meta.Label, err)
		}
		for _, rec := range records {
			value, err := json.Marshal(rec.Value)
			if err != nil {
				return fmt.Errorf("encode %s/%s: %w", rec.Kind, rec.Key, err)
			}
			if err := fn(model.StateRecord{
				Height:   block.Height,
				Contract: c.Address.Hex(),
				Label:    c.Meta.Label,
				Kind:     rec.Kind,
				Key:      rec.Key,
				Value:    value,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *App) exportContract(c ContractInfo) ([]ExportRecord, error) {
	instance, _, err := a.load(a.root, c.Address)
	if err != nil {
		return nil, err
	}
	ctx, err := a.context(a.root, c.Address)
	if err != nil {
		return nil, err
	}
	if exporter, ok := instance.(Exporter); ok {
		return exporter.Export(ctx)
	}

	var out []ExportRecord
	err = ctx.Store.Iterate(nil, func(key, value []byte) bool {
		out = append(out, ExportRecord{
			Kind:  "raw",
			Key:   hexutil.Encode(key),
			Value: hexutil.Bytes(value),
		})
		return true
	})
	return out, err
}
