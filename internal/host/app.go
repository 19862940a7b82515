package host

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"cremationLedger/internal/model"
	"cremationLedger/internal/store"
)

const (
	defaultMaxDepth = 16

	contractMetaPrefix = "host/contract/"
	labelPrefix        = "host/label/"
	contractStorePfx   = "wasm/"
)

var (
	blockItem = store.NewItem[Block]("host/block")
	nonceItem = store.NewItem[uint64]("host/nonce")
	metaMap   = store.NewMap[ContractMeta](contractMetaPrefix)
	labelMap  = store.NewMap[common.Address](labelPrefix)
)

// Block is the host clock.
type Block struct {
	Height uint64
	Time   uint64
}

// ContractMeta records which code backs an address and who may migrate it.
type ContractMeta struct {
	Code    string
	Label   string
	Creator common.Address
	Admin   common.Address
}

// Event groups the attributes one contract emitted during a transaction.
type Event struct {
	Contract   common.Address
	Attributes []Attribute
}

// Result summarizes a committed transaction.
type Result struct {
	Events []Event
	Data   []byte
}

// Attr finds the first attribute named key emitted by contract.
func (r *Result) Attr(contract common.Address, key string) (string, bool) {
	for _, ev := range r.Events {
		if ev.Contract != contract {
			continue
		}
		for _, a := range ev.Attributes {
			if a.Key == key {
				return a.Value, true
			}
		}
	}
	return "", false
}

// Option configures an App.
type Option func(*App)

func WithMetrics(m *Metrics) Option {
	return func(a *App) { a.metrics = m }
}

func WithMaxDepth(depth int) Option {
	return func(a *App) { a.maxDepth = depth }
}

// App executes messages against registered contracts one transaction at a
// time. Every transaction runs in a cache over the root store and is written
// back only when the whole message tree succeeds.
type App struct {
	root     store.KVStore
	codes    map[string]Factory
	bank     bank
	logger   *zap.Logger
	metrics  *Metrics
	maxDepth int
}

func NewApp(root store.KVStore, logger *zap.Logger, opts ...Option) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		root:     root,
		codes:    make(map[string]Factory),
		logger:   logger,
		maxDepth: defaultMaxDepth,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register binds a code id to a contract factory.
func (a *App) Register(code string, factory Factory) {
	a.codes[code] = factory
}

func (a *App) Block() (Block, error) {
	b, _, err := blockItem.Load(a.root)
	return b, err
}

func (a *App) SetBlock(height, ts uint64) error {
	current, err := a.Block()
	if err != nil {
		return err
	}
	if height < current.Height || ts < current.Time {
		return fmt.Errorf("block must not go backwards: %d@%d -> %d@%d", current.Height, current.Time, height, ts)
	}
	a.metrics.setBlockTime(ts)
	return blockItem.Save(a.root, Block{Height: height, Time: ts})
}

// AdvanceBlock moves to the next height, seconds later.
func (a *App) AdvanceBlock(seconds uint64) error {
	b, err := a.Block()
	if err != nil {
		return err
	}
	return a.SetBlock(b.Height+1, b.Time+seconds)
}

// MintNative credits native coins out of thin air. Used for genesis funding.
func (a *App) MintNative(to common.Address, coin model.Coin) error {
	return a.bank.mint(a.root, to, coin)
}

func (a *App) NativeBalance(addr common.Address, denom string) (*big.Int, error) {
	return a.bank.balance(a.root, addr, denom)
}

func (a *App) NativeSupply(denom string) (*big.Int, error) {
	return a.bank.supply(a.root, denom)
}

// ContractByLabel resolves an instantiated contract by its label.
func (a *App) ContractByLabel(label string) (common.Address, bool, error) {
	return labelMap.Load(a.root, []byte(label))
}

func (a *App) ContractMeta(addr common.Address) (ContractMeta, bool, error) {
	return metaMap.Load(a.root, addr.Bytes())
}

// Instantiate creates a new contract from code and runs its constructor.
func (a *App) Instantiate(code string, sender common.Address, msg []byte, funds []model.Coin, label string, admin common.Address) (common.Address, *Result, error) {
	factory, ok := a.codes[code]
	if !ok {
		return common.Address{}, nil, fmt.Errorf("%w: code %q", model.ErrNotFound, code)
	}

	cache := store.NewCacheStore(a.root)
	addr, res, err := a.instantiate(cache, factory, code, sender, msg, funds, label, admin)
	a.metrics.observeExecution("instantiate", err)
	if err != nil {
		a.logger.Debug("instantiate failed", zap.String("code", code), zap.String("label", label), zap.Error(err))
		return common.Address{}, nil, err
	}
	if err := cache.Write(); err != nil {
		return common.Address{}, nil, err
	}
	a.logger.Debug("instantiate", zap.String("code", code), zap.String("label", label), zap.String("address", addr.Hex()))
	return addr, res, nil
}

func (a *App) instantiate(kv *store.CacheStore, factory Factory, code string, sender common.Address, msg []byte, funds []model.Coin, label string, admin common.Address) (common.Address, *Result, error) {
	if label != "" {
		exists, err := labelMap.Has(kv, []byte(label))
		if err != nil {
			return common.Address{}, nil, err
		}
		if exists {
			return common.Address{}, nil, fmt.Errorf("%w: label %q", model.ErrAlreadyExists, label)
		}
	}

	nonce, _, err := nonceItem.Load(kv)
	if err != nil {
		return common.Address{}, nil, err
	}
	addr := crypto.CreateAddress(sender, nonce)
	if err := nonceItem.Save(kv, nonce+1); err != nil {
		return common.Address{}, nil, err
	}

	meta := ContractMeta{Code: code, Label: label, Creator: sender, Admin: admin}
	if err := metaMap.Save(kv, addr.Bytes(), meta); err != nil {
		return common.Address{}, nil, err
	}
	if label != "" {
		if err := labelMap.Save(kv, []byte(label), addr); err != nil {
			return common.Address{}, nil, err
		}
	}

	if err := a.bank.send(kv, sender, addr, funds); err != nil {
		return common.Address{}, nil, err
	}

	instance := factory()
	ctx, err := a.context(kv, addr)
	if err != nil {
		return common.Address{}, nil, err
	}
	resp, err := instance.Instantiate(ctx, MessageInfo{Sender: sender, Funds: funds}, msg)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("instantiate %s: %w", code, err)
	}

	res := &Result{}
	data, err := a.handleResponse(kv, res, 0, addr, resp)
	if err != nil {
		return common.Address{}, nil, err
	}
	res.Data = data
	return addr, res, nil
}

// Execute delivers msg from sender to contract as a single atomic transaction.
func (a *App) Execute(sender, contract common.Address, msg []byte, funds []model.Coin) (*Result, error) {
	cache := store.NewCacheStore(a.root)
	res := &Result{}
	data, err := a.execute(cache, res, 0, sender, contract, msg, funds)
	a.metrics.observeExecution("execute", err)
	if err != nil {
		a.logger.Debug("execute failed", zap.String("contract", contract.Hex()), zap.String("sender", sender.Hex()), zap.Error(err))
		return nil, err
	}
	if err := cache.Write(); err != nil {
		return nil, err
	}
	res.Data = data
	return res, nil
}

// ExecuteJSON is Execute with the message built from {name: body}.
func (a *App) ExecuteJSON(sender, contract common.Address, name string, body interface{}, funds ...model.Coin) (*Result, error) {
	raw, err := TaggedJSON(name, body)
	if err != nil {
		return nil, err
	}
	return a.Execute(sender, contract, raw, funds)
}

// Migrate swaps the code behind contract and runs its migration hook.
func (a *App) Migrate(sender, contract common.Address, code string, msg []byte) (*Result, error) {
	factory, ok := a.codes[code]
	if !ok {
		return nil, fmt.Errorf("%w: code %q", model.ErrNotFound, code)
	}
	cache := store.NewCacheStore(a.root)
	meta, ok, err := metaMap.Load(cache, contract.Bytes())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: contract %s", model.ErrNotFound, contract.Hex())
	}
	if meta.Admin == (common.Address{}) || meta.Admin != sender {
		a.metrics.observeExecution("migrate", model.ErrUnauthorized)
		return nil, fmt.Errorf("%w: only the admin can migrate %s", model.ErrUnauthorized, contract.Hex())
	}

	instance := factory()
	migrator, ok := instance.(Migrator)
	if !ok {
		return nil, fmt.Errorf("code %q has no migrate entry point", code)
	}
	meta.Code = code
	if err := metaMap.Save(cache, contract.Bytes(), meta); err != nil {
		return nil, err
	}

	ctx, err := a.context(cache, contract)
	if err != nil {
		return nil, err
	}
	resp, err := migrator.Migrate(ctx, msg)
	if err != nil {
		a.metrics.observeExecution("migrate", err)
		return nil, fmt.Errorf("migrate %s: %w", contract.Hex(), err)
	}
	res := &Result{}
	data, err := a.handleResponse(cache, res, 0, contract, resp)
	a.metrics.observeExecution("migrate", err)
	if err != nil {
		return nil, err
	}
	if err := cache.Write(); err != nil {
		return nil, err
	}
	res.Data = data
	return res, nil
}

// Query runs a read-only query against committed state.
func (a *App) Query(contract common.Address, msg []byte) ([]byte, error) {
	return a.querier(a.root).QueryContract(contract, msg)
}

// QueryJSON queries {name: body} and decodes the answer into out.
func (a *App) QueryJSON(contract common.Address, name string, body, out interface{}) error {
	return QueryJSON(a.querier(a.root), contract, name, body, out)
}

func (a *App) execute(kv store.KVStore, res *Result, depth int, sender, contract common.Address, msg []byte, funds []model.Coin) ([]byte, error) {
	if depth > a.maxDepth {
		return nil, fmt.Errorf("message depth %d exceeds limit %d", depth, a.maxDepth)
	}
	instance, meta, err := a.load(kv, contract)
	if err != nil {
		return nil, err
	}
	if err := a.bank.send(kv, sender, contract, funds); err != nil {
		return nil, err
	}
	ctx, err := a.context(kv, contract)
	if err != nil {
		return nil, err
	}
	resp, err := instance.Execute(ctx, MessageInfo{Sender: sender, Funds: funds}, msg)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", meta.Label, err)
	}
	return a.handleResponse(kv, res, depth, contract, resp)
}

func (a *App) handleResponse(kv store.KVStore, res *Result, depth int, contract common.Address, resp *Response) ([]byte, error) {
	if resp == nil {
		return nil, nil
	}
	if len(resp.Attributes) > 0 {
		res.Events = append(res.Events, Event{Contract: contract, Attributes: resp.Attributes})
	}

	data := resp.Data
	for _, sub := range resp.Messages {
		subCache := store.NewCacheStore(kv)
		subRes := &Result{}
		subData, err := a.dispatch(subCache, subRes, depth+1, contract, sub.Msg)
		a.metrics.observeSubMsg(sub.Msg.msgKind(), err)
		if err != nil {
			if !sub.ReplyOn.onError() {
				return nil, err
			}
			a.logger.Debug("sub-message failed, delivering reply", zap.Uint64("id", sub.ID), zap.Error(err))
			replyData, err := a.reply(kv, res, depth, contract, Reply{ID: sub.ID, Err: err.Error()})
			if err != nil {
				return nil, err
			}
			if replyData != nil {
				data = replyData
			}
			continue
		}
		if err := subCache.Write(); err != nil {
			return nil, err
		}
		res.Events = append(res.Events, subRes.Events...)
		if sub.ReplyOn.onSuccess() {
			replyData, err := a.reply(kv, res, depth, contract, Reply{ID: sub.ID, Data: subData})
			if err != nil {
				return nil, err
			}
			if replyData != nil {
				data = replyData
			}
		}
	}
	return data, nil
}

func (a *App) reply(kv store.KVStore, res *Result, depth int, contract common.Address, reply Reply) ([]byte, error) {
	instance, meta, err := a.load(kv, contract)
	if err != nil {
		return nil, err
	}
	replier, ok := instance.(Replier)
	if !ok {
		return nil, fmt.Errorf("contract %s cannot receive replies", meta.Label)
	}
	ctx, err := a.context(kv, contract)
	if err != nil {
		return nil, err
	}
	resp, err := replier.Reply(ctx, reply)
	a.metrics.observeReply(err)
	if err != nil {
		return nil, fmt.Errorf("reply %s: %w", meta.Label, err)
	}
	return a.handleResponse(kv, res, depth, contract, resp)
}

func (a *App) dispatch(kv store.KVStore, res *Result, depth int, sender common.Address, msg Msg) ([]byte, error) {
	switch m := msg.(type) {
	case WasmExecute:
		return a.execute(kv, res, depth, sender, m.Contract, m.Msg, m.Funds)
	case BankSend:
		return nil, a.bank.send(kv, sender, m.To, m.Amount)
	case BankBurn:
		return nil, a.bank.burn(kv, sender, m.Amount)
	default:
		return nil, fmt.Errorf("unsupported message %T", msg)
	}
}

func (a *App) load(kv store.KVStore, addr common.Address) (Contract, ContractMeta, error) {
	meta, ok, err := metaMap.Load(kv, addr.Bytes())
	if err != nil {
		return nil, ContractMeta{}, err
	}
	if !ok {
		return nil, ContractMeta{}, fmt.Errorf("%w: contract %s", model.ErrNotFound, addr.Hex())
	}
	factory, ok := a.codes[meta.Code]
	if !ok {
		return nil, ContractMeta{}, fmt.Errorf("%w: code %q for %s", model.ErrNotFound, meta.Code, addr.Hex())
	}
	if meta.Label == "" {
		meta.Label = addr.Hex()
	}
	return factory(), meta, nil
}

func (a *App) context(kv store.KVStore, contract common.Address) (Context, error) {
	b, _, err := blockItem.Load(kv)
	if err != nil {
		return Context{}, err
	}
	return Context{
		Store:   ContractStore(kv, contract),
		Env:     Env{BlockHeight: b.Height, BlockTime: b.Time, Contract: contract},
		Querier: a.querier(kv),
		Logger:  a.logger.With(zap.String("contract", contract.Hex())),
	}, nil
}

// ContractStore scopes kv to the private namespace of contract.
func ContractStore(kv store.KVStore, contract common.Address) store.KVStore {
	return store.NewPrefixStore(kv, append([]byte(contractStorePfx), append(contract.Bytes(), '/')...))
}

func (a *App) querier(kv store.KVStore) Querier {
	return &querier{app: a, kv: kv}
}

// querier answers queries against the state visible to the running message.
// Each query sees a throwaway cache so it cannot write.
type querier struct {
	app *App
	kv  store.KVStore
}

func (q *querier) QueryBalance(addr common.Address, denom string) (*big.Int, error) {
	return q.app.bank.balance(q.kv, addr, denom)
}

func (q *querier) QueryContract(contract common.Address, msg []byte) ([]byte, error) {
	view := store.NewCacheStore(q.kv)
	instance, _, err := q.app.load(view, contract)
	if err != nil {
		return nil, err
	}
	ctx, err := q.app.context(view, contract)
	if err != nil {
		return nil, err
	}
	return instance.Query(ctx, json.RawMessage(msg))
}
