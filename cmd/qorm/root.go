package main

import (
	"github.com/hatlonely/qorm/cfg"
	"github.com/hatlonely/qorm/log"
	"github.com/hatlonely/qorm/rdb"
	"github.com/hatlonely/qorm/rdb/conn"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// envPrefix 环境变量前缀，例如 QORM_CONNECTION_PASSWORD
const envPrefix = "QORM"

type globalFlags struct {
	config  string
	envFile string
	verbose bool
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "qorm",
		Short: "Schema migration and inspection for PostgreSQL",
		Long: `qorm synchronizes tables, columns and relations declared in a schema file with a database.

Examples:

  qorm ddl --schema schema.yaml
  qorm migrate --config orm.yaml --schema schema.yaml --dry-run
  qorm tables --config orm.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.config, "config", "c", "", "config file (yaml, json, toml or ini)")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file overriding the config")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log executed statements")

	cmd.AddCommand(
		newMigrateCommand(flags),
		newDDLCommand(),
		newDatabasesCommand(flags),
		newTablesCommand(flags),
	)
	return cmd
}

// loadOptions 依次应用默认值、配置文件和环境变量
func loadOptions(flags *globalFlags) (*rdb.Options, error) {
	options := &rdb.Options{}
	if err := cfg.LoadWithEnv(flags.config, envPrefix, options, flags.envFile); err != nil {
		return nil, errors.WithMessage(err, "failed to load config")
	}
	return options, nil
}

func newLogger(options *rdb.Options, verbose bool) (log.Logger, error) {
	if options.Log == nil {
		options.Log = &log.Options{Level: "warn"}
	}
	if verbose {
		options.Log.Level = "debug"
	}
	return log.NewLoggerWithOptions(options.Log)
}

// connect 创建连接，调用方负责关闭
func connect(flags *globalFlags) (*conn.Connection, *rdb.Options, log.Logger, error) {
	options, err := loadOptions(flags)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := newLogger(options, flags.verbose)
	if err != nil {
		return nil, nil, nil, errors.WithMessage(err, "log.NewLoggerWithOptions failed")
	}
	c, err := conn.NewConnectionWithOptions(&options.Connection)
	if err != nil {
		return nil, nil, nil, errors.WithMessage(err, "conn.NewConnectionWithOptions failed")
	}
	c.SetLogger(logger.WithGroup("conn"))
	return c, options, logger, nil
}
