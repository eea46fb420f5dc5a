package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/hatlonely/qorm/rdb/conn"
	"github.com/hatlonely/qorm/rdb/migration"
	"github.com/spf13/cobra"
)

func newDatabasesCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "databases",
		Short: "List databases on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, _, err := connect(flags)
			if err != nil {
				return err
			}
			defer c.Close()

			var databases []string
			err = c.DoAdmin(cmd.Context(), func(s *conn.Session) error {
				databases, err = migration.NewIntrospector(s).Databases(cmd.Context())
				return err
			})
			if err != nil {
				return err
			}
			for _, name := range databases {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newTablesCommand(flags *globalFlags) *cobra.Command {
	var columns bool
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List tables of the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, _, err := connect(flags)
			if err != nil {
				return err
			}
			defer c.Close()

			return c.Do(cmd.Context(), func(s *conn.Session) error {
				introspector := migration.NewIntrospector(s)
				tables, err := introspector.Tables(cmd.Context())
				if err != nil {
					return err
				}
				for _, table := range tables {
					color.New(color.Bold).Fprintln(cmd.OutOrStdout(), table)
					if !columns {
						continue
					}
					live, err := introspector.Columns(cmd.Context(), table)
					if err != nil {
						return err
					}
					for _, column := range live {
						writeColumn(cmd.OutOrStdout(), column)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&columns, "columns", false, "also list the columns of each table")
	return cmd
}

func writeColumn(w io.Writer, column migration.LiveColumn) {
	parts := []string{column.Name, column.RawType}
	if column.Size > 0 {
		parts[1] = fmt.Sprintf("%s(%d)", column.RawType, column.Size)
	}
	if !column.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if column.Default != "" {
		parts = append(parts, "DEFAULT "+column.Default)
	}
	if column.Identity {
		parts = append(parts, "IDENTITY")
	}
	fmt.Fprintln(w, "  "+strings.Join(parts, " "))
}
