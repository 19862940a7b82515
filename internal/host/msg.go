package host

import (
	"github.com/ethereum/go-ethereum/common"

	"cremationLedger/internal/model"
)

// Msg is an outbound message a contract asks the host to execute.
type Msg interface {
	msgKind() string
}

// WasmExecute calls another contract.
type WasmExecute struct {
	Contract common.Address
	Msg      []byte
	Funds    []model.Coin
}

// BankSend moves native coins out of the emitting contract.
type BankSend struct {
	To     common.Address
	Amount []model.Coin
}

// BankBurn destroys native coins held by the emitting contract.
type BankBurn struct {
	Amount []model.Coin
}

func (WasmExecute) msgKind() string { return "wasm_execute" }
func (BankSend) msgKind() string    { return "bank_send" }
func (BankBurn) msgKind() string    { return "bank_burn" }

// Execute builds a WasmExecute carrying {name: body}.
func Execute(contract common.Address, name string, body interface{}, funds ...model.Coin) (WasmExecute, error) {
	raw, err := TaggedJSON(name, body)
	if err != nil {
		return WasmExecute{}, err
	}
	return WasmExecute{Contract: contract, Msg: raw, Funds: funds}, nil
}

// ReplyOn selects which outcomes of a sub-message are reported back.
type ReplyOn uint8

const (
	ReplyNever ReplyOn = iota
	ReplySuccess
	ReplyError
	ReplyAlways
)

func (r ReplyOn) onSuccess() bool { return r == ReplySuccess || r == ReplyAlways }
func (r ReplyOn) onError() bool   { return r == ReplyError || r == ReplyAlways }

// SubMsg wraps a Msg with the correlation id echoed in the Reply.
type SubMsg struct {
	ID      uint64
	Msg     Msg
	ReplyOn ReplyOn
}

// Reply is the continuation delivered after a tagged sub-message settles.
type Reply struct {
	ID   uint64
	Err  string
	Data []byte
}

func (r Reply) Succeeded() bool { return r.Err == "" }

type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Response is what an entry point hands back to the host.
type Response struct {
	Messages   []SubMsg
	Attributes []Attribute
	Data       []byte
}

func NewResponse() *Response {
	return &Response{}
}

func (r *Response) AddMessage(msg Msg) *Response {
	r.Messages = append(r.Messages, SubMsg{Msg: msg, ReplyOn: ReplyNever})
	return r
}

func (r *Response) AddSubMessage(sub SubMsg) *Response {
	r.Messages = append(r.Messages, sub)
	return r
}

func (r *Response) AddAttribute(key, value string) *Response {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
	return r
}

func (r *Response) SetData(data []byte) *Response {
	r.Data = data
	return r
}

// Attr returns the first attribute value for key.
func (r *Response) Attr(key string) (string, bool) {
	for _, a := range r.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}
