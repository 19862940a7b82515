package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"cremationLedger/internal/codes"
	"cremationLedger/internal/config"
	"cremationLedger/internal/host"
	"cremationLedger/internal/replay"
)

func runQuery(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuery(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if !json.Valid([]byte(cfg.Msg)) {
		return fmt.Errorf("msg is not valid JSON")
	}

	kv, closeStore, err := openStore(cfg.DB)
	if err != nil {
		return err
	}
	defer closeStore()

	app := host.NewApp(kv, logger.Named("host"))
	codes.Register(app, codes.Options{})

	resolver, err := replay.NewResolver(nil, app.ContractByLabel)
	if err != nil {
		return err
	}
	contract, err := resolver.Address(cfg.Contract)
	if err != nil {
		return err
	}

	out, err := app.Query(contract, []byte(cfg.Msg))
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, out, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(out)
	}
	fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
	return nil
}
