package main

import (
	"context"

	"github.com/kintsdev/normup"
	"github.com/spf13/cobra"
)

var (
	modelName string
	payloadIn string
	strict    bool
	fields    []string
	conflict  []string
)

// offlineQI lets resolve run without a store
type offlineQI struct{}

func (offlineQI) Upsert(context.Context, normup.ModelDescriptor, *normup.FieldMap, *normup.FieldMap) (normup.Row, bool, error) {
	return nil, false, nil
}
func (offlineQI) Capabilities() normup.Capabilities { return normup.Capabilities{} }

type resolveOutput struct {
	Insert *normup.FieldMap `json:"insert"`
	Update *normup.FieldMap `json:"update"`
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Print the insert and update maps for a payload",
	Long: `The 'resolve' command runs the field-set resolver without touching a database.
Columns are printed in the order the storage engine would receive them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := loadDB(offlineQI{})
		if err != nil {
			return err
		}
		m, err := lookupModel(db, modelName)
		if err != nil {
			return err
		}
		p, err := decodePayload(payloadIn)
		if err != nil {
			return err
		}
		set, err := m.Resolve(p, upsertOptions(strict, fields, nil)...)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), resolveOutput{Insert: set.Insert, Update: set.Update})
	},
}

func addPayloadFlags(c *cobra.Command) {
	c.Flags().StringVar(&modelName, "model", "", "model name")
	c.Flags().StringVarP(&payloadIn, "payload", "p", "{}", "JSON object keyed by attribute name")
	c.Flags().BoolVar(&strict, "strict", false, "fail on attributes missing from the model")
	c.Flags().StringSliceVar(&fields, "fields", nil, "attributes allowed in the update map")
	_ = c.MarkFlagRequired("model")
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	addPayloadFlags(resolveCmd)
}
