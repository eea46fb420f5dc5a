package main

import (
	"fmt"

	"github.com/hatlonely/qorm/rdb/ddl"
	"github.com/hatlonely/qorm/rdb/schema"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newDDLCommand() *cobra.Command {
	var schemaFile string
	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Print the statements creating the declared schema on an empty database",
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := schema.LoadFile(schemaFile)
			if err != nil {
				return err
			}
			statements, err := createStatements(tables)
			if err != nil {
				return err
			}
			for _, statement := range statements {
				fmt.Fprintln(cmd.OutOrStdout(), statement+";")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&schemaFile, "schema", "s", "schema.yaml", "schema file")
	return cmd
}

// createStatements 建表语句按依赖顺序排列，所有关系语句在建表之后
func createStatements(tables []schema.Table) ([]string, error) {
	var statements []string
	sorted := schema.SortByDependency(tables)
	for _, table := range sorted {
		statement, err := ddl.CreateTable(table)
		if err != nil {
			return nil, errors.WithMessagef(err, "table %s", table.Name)
		}
		statements = append(statements, statement)
	}
	for _, table := range sorted {
		for _, relation := range table.Relations {
			relationStatements, err := ddl.Relation(relation)
			if err != nil {
				return nil, errors.WithMessagef(err, "relation %s", relation)
			}
			for _, statement := range relationStatements {
				statements = append(statements, statement.SQL)
			}
		}
	}
	return statements, nil
}
