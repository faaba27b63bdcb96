package main

import (
	"fmt"
	"os"

	"github.com/kintsdev/normup"
	"github.com/kintsdev/normup/modelfile"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	envFiles   []string
	modelsPath string
	debug      bool

	cfg    *normup.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "normup",
	Short: "Resolve and run model upserts",
	Long: `
normup resolves upsert payloads against YAML model definitions and runs them
against PostgreSQL, MySQL, SQLite or DynamoDB.

COMMANDS:
  resolve     Print the insert and update maps for a payload
  upsert      Resolve a payload and upsert it into the configured store
  ddl         Print CREATE TABLE statements for the models
  migrate     Run versioned SQL migrations (up, down, version, force)

CONFIGURATION:
  NORMUP_DIALECT   pgx | postgres | mysql | sqlite3 | dynamodb
  NORMUP_DSN       driver connection string
  NORMUP_DEBUG     enable development logging

EXAMPLES:
  normup resolve --models models.yaml --model User --payload '{"name":"x","value":1}'
  NORMUP_DIALECT=sqlite3 NORMUP_DSN=app.db normup upsert --model User --payload '{"name":"x"}'
  normup ddl --dialect mysql
  normup migrate up --path ./migrations
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := normup.LoadConfig(envFiles...)
		if err != nil {
			return errors.Wrap(err, "load config")
		}
		cfg = c
		if os.Getenv("NORMUP_DEBUG") != "" {
			debug = true
		}
		l, err := newZapLogger(debug)
		if err != nil {
			return errors.Wrap(err, "build logger")
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env", []string{".env"}, "dotenv files to load before reading NORMUP_* variables")
	rootCmd.PersistentFlags().StringVarP(&modelsPath, "models", "m", "models.yaml", "YAML model definitions")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "development logging at debug level")
}

func newZapLogger(debug bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if debug {
		zc = zap.NewDevelopmentConfig()
	}
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// loadDB defines every model of the model file on a DB over qi
func loadDB(qi normup.QueryInterface) (*normup.DB, error) {
	f, err := modelfile.Load(modelsPath)
	if err != nil {
		return nil, err
	}
	db, err := normup.New(qi,
		normup.WithConfig(cfg),
		normup.WithLogger(normup.NewZapLogger(logger)),
	)
	if err != nil {
		return nil, err
	}
	if _, err := f.Define(db); err != nil {
		return nil, err
	}
	return db, nil
}

func lookupModel(db *normup.DB, name string) (*normup.Model, error) {
	m, ok := db.Model(name)
	if !ok {
		return nil, errors.Errorf("model %q not found in %s", name, modelsPath)
	}
	return m, nil
}
