package main

import (
	"fmt"
	"strconv"

	"github.com/kintsdev/normup"
	"github.com/kintsdev/normup/migration"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	migrationsPath string
	databaseURL    string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <up|down [n]|version|force <v>>",
	Short: "Run versioned SQL migrations",
	Long: `The 'migrate' command applies NNN_name.up.sql and NNN_name.down.sql files
through golang-migrate. The database URL defaults to NORMUP_DSN and must carry
a scheme such as postgres://, mysql:// or sqlite3://.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := databaseURL
		if url == "" {
			url = cfg.DSN
		}
		if url == "" {
			return errors.New("database URL is required (--database or NORMUP_DSN)")
		}
		r, err := migration.NewRunner(migrationsPath, url, normup.NewZapLogger(logger))
		if err != nil {
			return err
		}
		defer r.Close()

		switch args[0] {
		case "up":
			if err := r.Up(); err != nil {
				return err
			}
			logger.Info("migrations: up completed")
		case "down":
			steps := 1
			if len(args) > 1 {
				n, err := strconv.Atoi(args[1])
				if err != nil {
					return errors.Wrapf(err, "down: invalid steps argument %q", args[1])
				}
				steps = n
			}
			if err := r.Down(steps); err != nil {
				return err
			}
			logger.Info("migrations: down completed")
		case "version":
			v, dirty, err := r.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version: %d  dirty: %v\n", v, dirty)
		case "force":
			if len(args) < 2 {
				return errors.New("force: version argument required")
			}
			v, err := strconv.Atoi(args[1])
			if err != nil {
				return errors.Wrapf(err, "force: invalid version %q", args[1])
			}
			if err := r.Force(v); err != nil {
				return err
			}
		default:
			return errors.Errorf("unknown migrate command %q", args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().StringVar(&migrationsPath, "path", "./migrations", "directory holding the migration files")
	migrateCmd.Flags().StringVar(&databaseURL, "database", "", "database URL (default NORMUP_DSN)")
}
