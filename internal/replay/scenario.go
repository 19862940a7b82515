package replay

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"gopkg.in/yaml.v3"

	"cremationLedger/internal/model"
)

// Step actions.
const (
	ActionInstantiate = "instantiate"
	ActionExecute     = "execute"
	ActionMigrate     = "migrate"
	ActionQuery       = "query"
	ActionMint        = "mint"
	ActionAdvance     = "advance"
)

// Scenario is a scripted sequence of ledger transactions.
type Scenario struct {
	Name     string            `yaml:"name"`
	Accounts map[string]string `yaml:"accounts"`
	Genesis  Genesis           `yaml:"genesis"`
	Steps    []Step            `yaml:"steps"`
}

// Genesis sets the first block and the initial native balances.
type Genesis struct {
	Height uint64 `yaml:"height"`
	Time   uint64 `yaml:"time"`
	Mints  []Mint `yaml:"mints"`
}

type Mint struct {
	To     string `yaml:"to"`
	Denom  string `yaml:"denom"`
	Amount string `yaml:"amount"`
}

// Step is one transaction. Advance moves the clock that many seconds (and
// one block) before the action runs.
type Step struct {
	Name        string      `yaml:"name"`
	Action      string      `yaml:"action"`
	Advance     uint64      `yaml:"advance"`
	Sender      string      `yaml:"sender"`
	Contract    string      `yaml:"contract"`
	Code        string      `yaml:"code"`
	Label       string      `yaml:"label"`
	Admin       string      `yaml:"admin"`
	Msg         interface{} `yaml:"msg"`
	Funds       []Mint      `yaml:"funds"`
	Expect      interface{} `yaml:"expect"`
	ExpectError string      `yaml:"expect_error"`
}

// LoadScenario reads a YAML scenario from disk.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	for i, step := range sc.Steps {
		if err := step.validate(); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Name, err)
		}
	}
	return &sc, nil
}

func (s Step) validate() error {
	switch s.Action {
	case ActionInstantiate:
		if s.Code == "" || s.Label == "" {
			return fmt.Errorf("instantiate needs code and label")
		}
	case ActionExecute, ActionQuery:
		if s.Contract == "" || s.Msg == nil {
			return fmt.Errorf("%s needs contract and msg", s.Action)
		}
	case ActionMigrate:
		if s.Contract == "" || s.Code == "" {
			return fmt.Errorf("migrate needs contract and code")
		}
	case ActionMint:
		if len(s.Funds) == 0 {
			return fmt.Errorf("mint needs funds")
		}
	case ActionAdvance:
	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}
	if s.Action != ActionExecute && s.Action != ActionInstantiate && s.Action != ActionMigrate && s.ExpectError != "" {
		return fmt.Errorf("expect_error is only valid for transactions")
	}
	return nil
}

// Resolver maps "@name" references to addresses: named accounts first,
// then contract labels.
type Resolver struct {
	accounts map[string]common.Address
	labels   func(label string) (common.Address, bool, error)
}

func NewResolver(accounts map[string]string, labels func(string) (common.Address, bool, error)) (*Resolver, error) {
	r := &Resolver{accounts: make(map[string]common.Address, len(accounts)), labels: labels}
	for name, hex := range accounts {
		if !common.IsHexAddress(hex) {
			return nil, fmt.Errorf("account %s: %w: %s", name, model.ErrInvalidAddress, hex)
		}
		r.accounts[name] = common.HexToAddress(hex)
	}
	return r, nil
}

// Address resolves a hex address or an "@name" reference.
func (r *Resolver) Address(ref string) (common.Address, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return common.Address{}, nil
	}
	if !strings.HasPrefix(ref, "@") {
		if !common.IsHexAddress(ref) {
			return common.Address{}, fmt.Errorf("%w: %s", model.ErrInvalidAddress, ref)
		}
		return common.HexToAddress(ref), nil
	}
	name := ref[1:]
	if addr, ok := r.accounts[name]; ok {
		return addr, nil
	}
	if r.labels != nil {
		addr, ok, err := r.labels(name)
		if err != nil {
			return common.Address{}, err
		}
		if ok {
			return addr, nil
		}
	}
	return common.Address{}, fmt.Errorf("unresolved reference %s: %w", ref, model.ErrNotFound)
}

// Message substitutes references inside a YAML message body and encodes it
// as JSON. Resolved addresses use the lowercase form the host emits.
func (r *Resolver) Message(body interface{}) ([]byte, error) {
	resolved, err := r.substitute(body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resolved)
}

func (r *Resolver) substitute(v interface{}) (interface{}, error) {
	switch typed := v.(type) {
	case string:
		if strings.HasPrefix(typed, "@") {
			addr, err := r.Address(typed)
			if err != nil {
				return nil, err
			}
			return hexutil.Encode(addr.Bytes()), nil
		}
		return typed, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, item := range typed {
			sub, err := r.substitute(item)
			if err != nil {
				return nil, err
			}
			out[k] = sub
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, item := range typed {
			sub, err := r.substitute(item)
			if err != nil {
				return nil, err
			}
			out[i] = sub
		}
		return out, nil
	default:
		return v, nil
	}
}

// Coins converts scenario amounts into coins.
func Coins(mints []Mint) ([]model.Coin, error) {
	out := make([]model.Coin, 0, len(mints))
	for _, m := range mints {
		amount, ok := new(big.Int).SetString(strings.TrimSpace(m.Amount), 10)
		if !ok || amount.Sign() < 0 {
			return nil, fmt.Errorf("invalid amount %q for %s", m.Amount, m.Denom)
		}
		out = append(out, model.NewCoin(m.Denom, amount))
	}
	return out, nil
}
