package model

import "encoding/json"

// StateRecord is one row of a ledger state snapshot.
type StateRecord struct {
	RunID    string          `json:"run_id"`
	Height   uint64          `json:"height"`
	Contract string          `json:"contract"`
	Label    string          `json:"label"`
	Kind     string          `json:"kind"`
	Key      string          `json:"key"`
	Value    json.RawMessage `json:"value"`
	TakenAt  string          `json:"taken_at"`
}
