package host

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"cremationLedger/internal/model"
	"cremationLedger/internal/store"
)

// Env carries the block a message executes in and the receiving contract.
type Env struct {
	BlockHeight uint64
	BlockTime   uint64
	Contract    common.Address
}

// MessageInfo identifies the caller and the native funds it attached.
type MessageInfo struct {
	Sender common.Address
	Funds  []model.Coin
}

// Querier reads other modules' state as of the current message.
type Querier interface {
	QueryBalance(addr common.Address, denom string) (*big.Int, error)
	QueryContract(contract common.Address, msg []byte) ([]byte, error)
}

// Context is handed to every entry point. Store is already scoped to the
// contract being invoked.
type Context struct {
	Store   store.KVStore
	Env     Env
	Querier Querier
	Logger  *zap.Logger
}

func (c Context) Self() common.Address { return c.Env.Contract }

func (c Context) Now() uint64 { return c.Env.BlockTime }

// Log returns the contract logger, or a no-op logger when none was injected.
func (c Context) Log() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// QueryJSON sends {name: body} to contract and decodes the answer into out.
func QueryJSON(q Querier, contract common.Address, name string, body, out interface{}) error {
	raw, err := TaggedJSON(name, body)
	if err != nil {
		return err
	}
	resp, err := q.QueryContract(contract, raw)
	if err != nil {
		return fmt.Errorf("query %s on %s: %w", name, contract.Hex(), err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("decode %s response: %w", name, err)
	}
	return nil
}

// TaggedJSON encodes the externally tagged form {"name": body}.
func TaggedJSON(name string, body interface{}) ([]byte, error) {
	if body == nil {
		body = struct{}{}
	}
	return json.Marshal(map[string]interface{}{name: body})
}

// ParseMessage splits an externally tagged message into its tag and body.
func ParseMessage(raw []byte) (string, json.RawMessage, error) {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return "", nil, fmt.Errorf("%w: %v", model.ErrUnknownMessage, err)
	}
	if len(tagged) != 1 {
		return "", nil, fmt.Errorf("%w: expected exactly one variant, got %d", model.ErrUnknownMessage, len(tagged))
	}
	for name, body := range tagged {
		return name, body, nil
	}
	return "", nil, model.ErrUnknownMessage
}

// Decode unmarshals a message body, treating an empty body as {}.
func Decode(body json.RawMessage, out interface{}) error {
	if len(body) == 0 || string(body) == "null" {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}

// Marshal encodes a query answer.
func Marshal(v interface{}) ([]byte, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}
