// Package cw20 holds the wire shapes of the fungible-token interface shared by
// the token contract and every module that moves tokens through it.
package cw20

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cremationLedger/internal/host"
)

type TransferMsg struct {
	Recipient common.Address `json:"recipient"`
	Amount    *big.Int       `json:"amount"`
}

type TransferFromMsg struct {
	Owner     common.Address `json:"owner"`
	Recipient common.Address `json:"recipient"`
	Amount    *big.Int       `json:"amount"`
}

// SendMsg moves tokens to a contract and delivers Msg through its receive hook.
type SendMsg struct {
	Contract common.Address `json:"contract"`
	Amount   *big.Int       `json:"amount"`
	Msg      []byte         `json:"msg"`
}

type SendFromMsg struct {
	Owner    common.Address `json:"owner"`
	Contract common.Address `json:"contract"`
	Amount   *big.Int       `json:"amount"`
	Msg      []byte         `json:"msg"`
}

type BurnMsg struct {
	Amount *big.Int `json:"amount"`
}

type BurnFromMsg struct {
	Owner  common.Address `json:"owner"`
	Amount *big.Int       `json:"amount"`
}

type MintMsg struct {
	Recipient common.Address `json:"recipient"`
	Amount    *big.Int       `json:"amount"`
}

type AllowanceMsg struct {
	Spender common.Address `json:"spender"`
	Amount  *big.Int       `json:"amount"`
	Expires uint64         `json:"expires,omitempty"`
}

type UpdateMinterMsg struct {
	NewMinter *common.Address `json:"new_minter"`
}

// ReceiveMsg is what a recipient contract gets under the "receive" tag.
type ReceiveMsg struct {
	Sender common.Address `json:"sender"`
	Amount *big.Int       `json:"amount"`
	Msg    []byte         `json:"msg"`
}

type BalanceQuery struct {
	Address common.Address `json:"address"`
}

type BalanceResponse struct {
	Balance *big.Int `json:"balance"`
}

type TokenInfoResponse struct {
	Name        string   `json:"name"`
	Symbol      string   `json:"symbol"`
	Decimals    uint8    `json:"decimals"`
	TotalSupply *big.Int `json:"total_supply"`
}

type MinterResponse struct {
	Minter common.Address `json:"minter"`
	Cap    *big.Int       `json:"cap,omitempty"`
}

type AllowanceQuery struct {
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
}

type AllowanceResponse struct {
	Allowance *big.Int `json:"allowance"`
	Expires   uint64   `json:"expires,omitempty"`
}

type AllAccountsQuery struct {
	StartAfter *common.Address `json:"start_after,omitempty"`
	Limit      uint32          `json:"limit,omitempty"`
}

type AllAccountsResponse struct {
	Accounts []common.Address `json:"accounts"`
}

// Transfer builds a transfer of amount from the emitting contract.
func Transfer(token, recipient common.Address, amount *big.Int) (host.WasmExecute, error) {
	return host.Execute(token, "transfer", TransferMsg{Recipient: recipient, Amount: amount})
}

// Send builds a send to contract carrying the hook payload {name: body}.
func Send(token, contract common.Address, amount *big.Int, name string, body interface{}) (host.WasmExecute, error) {
	hook, err := host.TaggedJSON(name, body)
	if err != nil {
		return host.WasmExecute{}, err
	}
	return host.Execute(token, "send", SendMsg{Contract: contract, Amount: amount, Msg: hook})
}

func Burn(token common.Address, amount *big.Int) (host.WasmExecute, error) {
	return host.Execute(token, "burn", BurnMsg{Amount: amount})
}

func Mint(token, recipient common.Address, amount *big.Int) (host.WasmExecute, error) {
	return host.Execute(token, "mint", MintMsg{Recipient: recipient, Amount: amount})
}

// QueryBalance asks token for the balance of addr.
func QueryBalance(q host.Querier, token, addr common.Address) (*big.Int, error) {
	var resp BalanceResponse
	if err := host.QueryJSON(q, token, "balance", BalanceQuery{Address: addr}, &resp); err != nil {
		return nil, err
	}
	if resp.Balance == nil {
		return new(big.Int), nil
	}
	return resp.Balance, nil
}

func QueryTokenInfo(q host.Querier, token common.Address) (TokenInfoResponse, error) {
	var resp TokenInfoResponse
	err := host.QueryJSON(q, token, "token_info", nil, &resp)
	return resp, err
}

func QueryMinter(q host.Querier, token common.Address) (MinterResponse, error) {
	var resp MinterResponse
	if err := host.QueryJSON(q, token, "minter", nil, &resp); err != nil {
		return resp, err
	}
	if resp.Minter == (common.Address{}) {
		return resp, fmt.Errorf("token %s has no minter", token.Hex())
	}
	return resp, nil
}
