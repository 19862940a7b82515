package host

import (
	"encoding/json"
	"fmt"

	"cremationLedger/internal/model"
	"cremationLedger/internal/store"
)

// Contract is a module instance the host delivers messages to.
type Contract interface {
	Instantiate(ctx Context, info MessageInfo, msg json.RawMessage) (*Response, error)
	Execute(ctx Context, info MessageInfo, msg json.RawMessage) (*Response, error)
	Query(ctx Context, msg json.RawMessage) ([]byte, error)
}

// Replier receives continuations of sub-messages it tagged.
type Replier interface {
	Reply(ctx Context, reply Reply) (*Response, error)
}

// Migrator upgrades stored state when the admin swaps the code.
type Migrator interface {
	Migrate(ctx Context, msg json.RawMessage) (*Response, error)
}

// ExportRecord is a typed row a contract contributes to a state snapshot.
type ExportRecord struct {
	Kind  string
	Key   string
	Value interface{}
}

// Exporter lets a contract describe its state for snapshots.
type Exporter interface {
	Export(ctx Context) ([]ExportRecord, error)
}

// Factory builds a fresh, stateless contract value for a code id.
type Factory func() Contract

// ContractVersion mirrors the name/version record kept by every contract.
type ContractVersion struct {
	Contract string `json:"contract"`
	Version  string `json:"version"`
}

var contractVersionItem = store.NewItem[ContractVersion]("contract_info")

func SetContractVersion(kv store.KVStore, name, version string) error {
	return contractVersionItem.Save(kv, ContractVersion{Contract: name, Version: version})
}

func GetContractVersion(kv store.KVStore) (ContractVersion, error) {
	return contractVersionItem.MustLoad(kv)
}

// AssertContract fails when the stored record belongs to a different contract.
func AssertContract(kv store.KVStore, name string) error {
	v, err := GetContractVersion(kv)
	if err != nil {
		return err
	}
	if v.Contract != name {
		return fmt.Errorf("%w: stored contract %q, migrating %q", model.ErrUnauthorized, v.Contract, name)
	}
	return nil
}
