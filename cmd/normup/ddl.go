package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kintsdev/normup/migration"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	ddlDialect string
	ddlApply   bool
	ddlScript  string
)

var ddlCmd = &cobra.Command{
	Use:   "ddl",
	Short: "Print CREATE TABLE statements for the models",
	Long: `The 'ddl' command renders a CREATE TABLE IF NOT EXISTS statement for each
model in the model file. With --apply the statements are executed against the
configured store instead of printed. --script runs an extra ';'-separated SQL
file (indexes, seed rows) after the tables exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dialect := ddlDialect
		if dialect == "" {
			dialect = cfg.Dialect
		}
		db, err := loadDB(offlineQI{})
		if err != nil {
			return err
		}
		plan, err := migration.Plan(dialect, db.Models()...)
		if err != nil {
			return err
		}
		if !ddlApply {
			fmt.Fprint(cmd.OutOrStdout(), migration.FormatPlan(plan))
			return nil
		}
		qi, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		exec, ok := qi.(migration.Execer)
		if !ok {
			return errors.Errorf("dialect %q does not run DDL", cfg.Dialect)
		}
		n, err := applyDDL(cmd.Context(), exec, plan, ddlScript)
		if err != nil {
			return err
		}
		logger.Info("ddl applied")
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d statements\n", n)
		return nil
	},
}

// applyDDL runs the plan, then the optional script, and reports how many
// plan statements ran
func applyDDL(ctx context.Context, exec migration.Execer, plan migration.PlanResult, script string) (int, error) {
	if err := migration.Apply(ctx, exec, plan); err != nil {
		return 0, err
	}
	if script == "" {
		return len(plan.Statements), nil
	}
	body, err := os.ReadFile(script)
	if err != nil {
		return len(plan.Statements), errors.Wrapf(err, "read script %s", script)
	}
	return len(plan.Statements), migration.ExecScript(ctx, exec, string(body))
}

func init() {
	rootCmd.AddCommand(ddlCmd)
	ddlCmd.Flags().StringVar(&ddlDialect, "dialect", "", "postgres | mysql | sqlite3 (default NORMUP_DIALECT)")
	ddlCmd.Flags().BoolVar(&ddlApply, "apply", false, "execute the statements against the configured store")
	ddlCmd.Flags().StringVar(&ddlScript, "script", "", "SQL file to run after the tables with --apply")
}
