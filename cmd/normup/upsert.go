package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var upsertTimeout time.Duration

type upsertOutput struct {
	Created bool           `json:"created"`
	Record  map[string]any `json:"record"`
}

var upsertCmd = &cobra.Command{
	Use:   "upsert",
	Short: "Resolve a payload and upsert it into the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), upsertTimeout)
		defer cancel()

		qi, err := openStore(ctx)
		if err != nil {
			return errors.Wrap(err, "open store")
		}
		db, err := loadDB(qi)
		if err != nil {
			return err
		}
		defer db.Close()

		m, err := lookupModel(db, modelName)
		if err != nil {
			return err
		}
		p, err := decodePayload(payloadIn)
		if err != nil {
			return err
		}
		out, err := m.Upsert(ctx, p, upsertOptions(strict, fields, conflict)...)
		if err != nil {
			return errors.Wrapf(err, "upsert %s", m.Name())
		}
		return writeJSON(cmd.OutOrStdout(), upsertOutput{Created: out.Created, Record: out.Record.Values()})
	},
}

func init() {
	rootCmd.AddCommand(upsertCmd)
	addPayloadFlags(upsertCmd)
	upsertCmd.Flags().StringSliceVar(&conflict, "conflict", nil, "attributes the conflict is detected on")
	upsertCmd.Flags().DurationVar(&upsertTimeout, "timeout", 30*time.Second, "upsert deadline")
}
