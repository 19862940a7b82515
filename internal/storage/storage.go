package storage

import (
	"context"

	"cremationLedger/internal/model"
)

// Storage defines a sink for ledger state snapshots.
type Storage interface {
	PutSnapshot(ctx context.Context, records []model.StateRecord) error
}

// Multi fans a snapshot out to every sink in order and stops at the first
// failure.
type Multi []Storage

func (m Multi) PutSnapshot(ctx context.Context, records []model.StateRecord) error {
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.PutSnapshot(ctx, records); err != nil {
			return err
		}
	}
	return nil
}
