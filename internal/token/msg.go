package token

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cremationLedger/internal/model"
	"cremationLedger/internal/tax"
)

type InitialBalance struct {
	Address common.Address `json:"address"`
	Amount  *big.Int       `json:"amount"`
}

type MinterMsg struct {
	Minter common.Address `json:"minter"`
	Cap    *big.Int       `json:"cap,omitempty"`
}

type SwapConfigMsg struct {
	Enabled   *bool            `json:"enabled,omitempty"`
	Threshold *big.Int         `json:"threshold,omitempty"`
	Target    *model.AssetInfo `json:"target,omitempty"`
}

type InstantiateMsg struct {
	Name            string           `json:"name"`
	Symbol          string           `json:"symbol"`
	Decimals        uint8            `json:"decimals"`
	InitialBalances []InitialBalance `json:"initial_balances"`
	Mint            *MinterMsg       `json:"mint,omitempty"`
	Owner           common.Address   `json:"owner"`
	TaxInfo         tax.Info         `json:"tax_info"`
	TaxSwap         *SwapConfigMsg   `json:"tax_swap,omitempty"`
}

type SetVenuesMsg struct {
	Venues []tax.Venue `json:"venues"`
}

type AddPoolsMsg struct {
	Venue string           `json:"venue"`
	Pools []common.Address `json:"pools"`
}

type RemovePoolMsg struct {
	Venue string         `json:"venue"`
	Pool  common.Address `json:"pool"`
}

type UpdateOwnerMsg struct {
	Owner common.Address `json:"owner"`
}

type UpdateTaxInfoMsg struct {
	TaxInfo tax.Info `json:"tax_info"`
}

type UpdateCollectTaxAddressMsg struct {
	Address common.Address `json:"address"`
}

type SetTaxFreeAddressMsg struct {
	Address common.Address `json:"address"`
	TaxFree bool           `json:"tax_free"`
}

// MigrateMsg carries venues to merge into the registry during an upgrade.
type MigrateMsg struct {
	Venues []tax.Venue `json:"venues"`
}

type TaxFreeAddressQuery struct {
	Address common.Address `json:"address"`
}

type SimulateTransferQuery struct {
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount *big.Int       `json:"amount"`
}

type SimulateTransferResponse struct {
	Operation string   `json:"operation"`
	Tax       *big.Int `json:"tax"`
	Net       *big.Int `json:"net"`
}

type TaxInfoResponse struct {
	BuyTax      *model.Fraction `json:"buy_tax,omitempty"`
	SellTax     *model.Fraction `json:"sell_tax,omitempty"`
	TransferTax *model.Fraction `json:"transfer_tax,omitempty"`
	Buy         string          `json:"buy"`
	Sell        string          `json:"sell"`
	Transfer    string          `json:"transfer"`
}
