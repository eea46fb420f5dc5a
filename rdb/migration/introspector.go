package migration

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hatlonely/qorm/rdb/conn"
	"github.com/hatlonely/qorm/rdb/ddl"
	"github.com/hatlonely/qorm/rdb/schema"
	"github.com/pkg/errors"
)

// LiveColumn 目录中查到的列
type LiveColumn struct {
	Name     string
	RawType  string
	Type     schema.DataType
	Known    bool
	Size     int
	Nullable bool
	// Default 规整后的默认值，自增列为空
	Default  string
	Identity bool
}

// Introspector 通过目录查询读取实时的库表结构
type Introspector struct {
	session *conn.Session
}

func NewIntrospector(session *conn.Session) *Introspector {
	return &Introspector{session: session}
}

func (i *Introspector) Databases(ctx context.Context) ([]string, error) {
	databases, err := i.session.Strings(ctx, ddl.ListDatabases)
	return databases, errors.WithMessage(err, "failed to list databases")
}

func (i *Introspector) Tables(ctx context.Context) ([]string, error) {
	tables, err := i.session.Strings(ctx, ddl.ListTables)
	return tables, errors.WithMessage(err, "failed to list tables")
}

func (i *Introspector) Columns(ctx context.Context, table string) ([]LiveColumn, error) {
	rows, err := i.session.Query(ctx, ddl.ListColumns, table)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to list columns of %s", table)
	}
	defer rows.Close()

	var columns []LiveColumn
	for rows.Next() {
		var (
			name, dataType, nullable string
			size                     sql.NullInt64
			def, identity            sql.NullString
		)
		if err := rows.Scan(&name, &dataType, &size, &nullable, &def, &identity); err != nil {
			return nil, errors.Wrap(err, "rows.Scan failed")
		}
		column := LiveColumn{
			Name:     name,
			RawType:  dataType,
			Size:     int(size.Int64),
			Nullable: strings.EqualFold(nullable, "YES"),
			Identity: strings.EqualFold(identity.String, "YES"),
		}
		column.Type, column.Known = ddl.ParseCatalogType(dataType)
		value, serial := ddl.NormalizeDefault(def.String)
		column.Default = value
		if serial {
			column.Identity = true
		}
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows.Err")
	}
	return columns, nil
}

func (i *Introspector) ConstraintExists(ctx context.Context, name string) (bool, error) {
	exists, err := i.session.Exists(ctx, ddl.ConstraintExists, name)
	return exists, errors.WithMessagef(err, "failed to check constraint %s", name)
}

// HasNullData 列中是否已经存在 NULL
func (i *Introspector) HasNullData(ctx context.Context, table string, column string) (bool, error) {
	exists, err := i.session.Exists(ctx, ddl.HasNullData(table, column))
	return exists, errors.WithMessagef(err, "failed to check null data of %s.%s", table, column)
}
