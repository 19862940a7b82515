package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"cremationLedger/internal/host"
	"cremationLedger/internal/model"
	"cremationLedger/internal/storage"
)

// RunConfig holds runtime settings for a replay.
type RunConfig struct {
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	RunID             string
}

// Summary reports what a replay did.
type Summary struct {
	RunID    string
	Executed int
	Expected int
	Height   uint64
	Records  int
}

// Runner applies scenario steps to a host and snapshots the resulting state.
type Runner struct {
	cfg        RunConfig
	app        *host.App
	storage    storage.Storage
	logger     *zap.Logger
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner with its dependencies. storageSink may be nil.
func NewRunner(cfg RunConfig, app *host.App, storageSink storage.Storage, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	return &Runner{
		cfg:        cfg,
		app:        app,
		storage:    storageSink,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run replays sc from the last checkpoint, then writes a snapshot.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (Summary, error) {
	summary := Summary{RunID: r.cfg.RunID}
	if r.app == nil {
		return summary, fmt.Errorf("host app is nil")
	}
	if sc == nil {
		return summary, fmt.Errorf("scenario is nil")
	}
	if r.cfg.BatchSize == 0 {
		return summary, fmt.Errorf("batch size must be greater than zero")
	}

	resolver, err := NewResolver(sc.Accounts, r.app.ContractByLabel)
	if err != nil {
		return summary, err
	}

	var from uint64
	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return summary, err
	}
	if ok && cp.Scenario == sc.Name {
		from = cp.NextStep
		r.logger.Info("resume from checkpoint", zap.String("scenario", sc.Name), zap.Uint64("next_step", from), zap.Uint64("height", cp.Height))
	} else if err := r.genesis(sc.Genesis, resolver); err != nil {
		return summary, fmt.Errorf("genesis: %w", err)
	}

	if from < uint64(len(sc.Steps)) {
		ranges, err := SplitRange(from, uint64(len(sc.Steps))-1, r.cfg.BatchSize)
		if err != nil {
			return summary, err
		}
		for _, batch := range ranges {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			default:
			}

			for i := batch.From; i <= batch.To; i++ {
				expected, err := r.step(i, sc.Steps[i], resolver)
				if err != nil {
					return summary, err
				}
				summary.Executed++
				if expected {
					summary.Expected++
				}
			}

			block, err := r.app.Block()
			if err != nil {
				return summary, err
			}
			if err := r.checkpoint.Save(Checkpoint{Scenario: sc.Name, NextStep: batch.To + 1, Height: block.Height}); err != nil {
				return summary, err
			}
			r.logger.Info("batch complete", zap.Uint64("from", batch.From), zap.Uint64("to", batch.To), zap.Uint64("height", block.Height))
		}
	} else {
		r.logger.Info("nothing to replay", zap.String("scenario", sc.Name), zap.Int("steps", len(sc.Steps)))
	}

	block, err := r.app.Block()
	if err != nil {
		return summary, err
	}
	summary.Height = block.Height

	summary.Records, err = r.Export(ctx)
	if err != nil {
		return summary, err
	}
	return summary, nil
}

// Export snapshots the current state into the storage sink, retrying
// failed writes with backoff. It returns the number of records written.
func (r *Runner) Export(ctx context.Context) (int, error) {
	records, err := r.Snapshot()
	if err != nil {
		return 0, err
	}
	if r.storage != nil {
		err := r.retry(ctx, "put snapshot", func(ctx context.Context) error {
			return r.storage.PutSnapshot(ctx, records)
		})
		if err != nil {
			return 0, fmt.Errorf("store snapshot: %w", err)
		}
	}
	r.logger.Info("snapshot stored", zap.String("run_id", r.cfg.RunID), zap.Int("records", len(records)))
	return len(records), nil
}

// Snapshot collects the current host state stamped with the run id.
func (r *Runner) Snapshot() ([]model.StateRecord, error) {
	takenAt := time.Now().UTC().Format(time.RFC3339Nano)
	var records []model.StateRecord
	err := r.app.Snapshot(func(rec model.StateRecord) error {
		rec.RunID = r.cfg.RunID
		rec.TakenAt = takenAt
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return records, nil
}

func (r *Runner) genesis(g Genesis, resolver *Resolver) error {
	height := g.Height
	if height == 0 {
		height = 1
	}
	if err := r.app.SetBlock(height, g.Time); err != nil {
		return err
	}
	for _, m := range g.Mints {
		if err := r.mint(m, resolver); err != nil {
			return err
		}
	}
	r.logger.Info("genesis applied", zap.Uint64("height", height), zap.Uint64("time", g.Time), zap.Int("mints", len(g.Mints)))
	return nil
}

func (r *Runner) mint(m Mint, resolver *Resolver) error {
	to, err := resolver.Address(m.To)
	if err != nil {
		return err
	}
	if to == (common.Address{}) {
		return fmt.Errorf("%w: mint recipient required", model.ErrInvalidAddress)
	}
	coins, err := Coins([]Mint{m})
	if err != nil {
		return err
	}
	return r.app.MintNative(to, coins[0])
}

// step runs one scenario step. It reports whether the step failed as the
// scenario expected.
func (r *Runner) step(index uint64, s Step, resolver *Resolver) (bool, error) {
	fail := func(err error) error {
		return fmt.Errorf("step %d (%s): %w", index, s.Name, err)
	}

	if s.Advance > 0 || s.Action == ActionAdvance {
		if err := r.app.AdvanceBlock(s.Advance); err != nil {
			return false, fail(err)
		}
	}

	sender, err := resolver.Address(s.Sender)
	if err != nil {
		return false, fail(err)
	}
	funds, err := Coins(s.Funds)
	if err != nil {
		return false, fail(err)
	}
	var msg []byte
	if s.Msg != nil {
		if msg, err = resolver.Message(s.Msg); err != nil {
			return false, fail(err)
		}
	} else {
		msg = []byte("{}")
	}

	log := r.logger.With(zap.Uint64("step", index), zap.String("name", s.Name), zap.String("action", s.Action))

	var (
		res   *host.Result
		txErr error
	)
	switch s.Action {
	case ActionAdvance:
		log.Info("block advanced", zap.Uint64("seconds", s.Advance))
		return false, nil
	case ActionMint:
		for _, m := range s.Funds {
			if err := r.mint(m, resolver); err != nil {
				return false, fail(err)
			}
		}
		log.Info("native minted", zap.Int("coins", len(s.Funds)))
		return false, nil
	case ActionQuery:
		contract, err := resolver.Address(s.Contract)
		if err != nil {
			return false, fail(err)
		}
		out, err := r.app.Query(contract, msg)
		if err != nil {
			return false, fail(err)
		}
		if s.Expect != nil {
			if err := matchJSON(s.Expect, out, resolver); err != nil {
				return false, fail(err)
			}
		}
		log.Info("query", zap.ByteString("result", out))
		return false, nil
	case ActionInstantiate:
		admin, err := resolver.Address(s.Admin)
		if err != nil {
			return false, fail(err)
		}
		var addr common.Address
		addr, res, txErr = r.app.Instantiate(s.Code, sender, msg, funds, s.Label, admin)
		if txErr == nil {
			log = log.With(zap.String("address", addr.Hex()), zap.String("label", s.Label))
		}
	case ActionExecute:
		contract, err := resolver.Address(s.Contract)
		if err != nil {
			return false, fail(err)
		}
		res, txErr = r.app.Execute(sender, contract, msg, funds)
	case ActionMigrate:
		contract, err := resolver.Address(s.Contract)
		if err != nil {
			return false, fail(err)
		}
		res, txErr = r.app.Migrate(sender, contract, s.Code, msg)
	}

	if s.ExpectError != "" {
		if txErr == nil {
			return false, fail(fmt.Errorf("expected error %q, transaction succeeded", s.ExpectError))
		}
		if !strings.Contains(txErr.Error(), s.ExpectError) {
			return false, fail(fmt.Errorf("expected error %q: %w", s.ExpectError, txErr))
		}
		log.Info("transaction rejected as expected", zap.Error(txErr))
		return true, nil
	}
	if txErr != nil {
		return false, fail(txErr)
	}

	events := 0
	if res != nil {
		events = len(res.Events)
	}
	log.Info("transaction committed", zap.String("sender", sender.Hex()), zap.Int("events", events))
	return false, nil
}

func matchJSON(expected interface{}, actual []byte, resolver *Resolver) error {
	want, err := resolver.Message(expected)
	if err != nil {
		return err
	}
	var w, g interface{}
	if err := json.Unmarshal(want, &w); err != nil {
		return err
	}
	if err := json.Unmarshal(actual, &g); err != nil {
		return fmt.Errorf("decode query result: %w", err)
	}
	if !reflect.DeepEqual(w, g) {
		return fmt.Errorf("query result %s, want %s", actual, want)
	}
	return nil
}
