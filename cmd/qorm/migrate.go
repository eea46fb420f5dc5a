package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/hatlonely/qorm/rdb/migration"
	"github.com/hatlonely/qorm/rdb/schema"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newMigrateCommand(flags *globalFlags) *cobra.Command {
	var schemaFile string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database, tables, columns and relations",
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := schema.LoadFile(schemaFile)
			if err != nil {
				return err
			}
			c, options, logger, err := connect(flags)
			if err != nil {
				return err
			}
			defer c.Close()

			if dryRun {
				options.Migration.DryRun = true
			}
			m := migration.NewMigratorWithOptions(c, &options.Migration)
			m.SetLogger(logger.WithGroup("migration"))
			migrateErr := m.Migrate(cmd.Context(), tables)

			out := cmd.OutOrStdout()
			statements := m.Statements()
			mark := color.New(color.FgGreen)
			if dryRun {
				mark = color.New(color.FgYellow)
			}
			for _, statement := range statements {
				mark.Fprint(out, "> ")
				fmt.Fprintln(out, statement+";")
			}

			if migrateErr != nil {
				return errors.WithMessage(migrateErr, "migration finished with errors")
			}
			switch {
			case len(statements) == 0:
				color.New(color.FgCyan).Fprintln(out, "schema is up to date")
			case dryRun:
				color.New(color.FgYellow, color.Bold).Fprintf(out, "%d statements planned\n", len(statements))
			default:
				color.New(color.FgGreen, color.Bold).Fprintf(out, "%d statements applied\n", len(statements))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&schemaFile, "schema", "s", "schema.yaml", "schema file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the statements without executing them")
	return cmd
}
