// Package ddl 将表、列和关系声明翻译为 PostgreSQL DDL，不做任何 I/O
package ddl

import (
	"fmt"
	"strings"

	"github.com/hatlonely/qorm/rdb/schema"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// Statement 一条 DDL 语句，Constraint 非空时执行前需要检查约束是否已存在
type Statement struct {
	SQL        string
	Constraint string
}

func (s Statement) String() string {
	return s.SQL
}

// Quote 引用标识符
func Quote(name string) string {
	return pq.QuoteIdentifier(name)
}

// TypeName 逻辑类型对应的 PostgreSQL 类型，只有 char 和 varchar 带长度
func TypeName(t schema.DataType, size int) string {
	switch t {
	case schema.Integer:
		return "INTEGER"
	case schema.SmallInt:
		return "SMALLINT"
	case schema.BigInt:
		return "BIGINT"
	case schema.Real:
		return "REAL"
	case schema.Double:
		return "DOUBLE PRECISION"
	case schema.Boolean:
		return "BOOLEAN"
	case schema.Char:
		if size > 0 {
			return fmt.Sprintf("CHAR(%d)", size)
		}
		return "CHAR"
	case schema.Text:
		return "TEXT"
	case schema.Varchar:
		if size > 0 {
			return fmt.Sprintf("VARCHAR(%d)", size)
		}
		return "VARCHAR"
	case schema.Date:
		return "DATE"
	case schema.Timestamp:
		return "TIMESTAMP"
	}
	return "TEXT"
}

// DefaultValue 默认值表达式，数值和布尔类型不加引号，表达式原样输出
func DefaultValue(column schema.Column) string {
	if column.DefaultExpr || column.Type.IsNumeric() {
		return column.Default
	}
	return pq.QuoteLiteral(column.Default)
}

// ColumnDefinition 单列定义
// 自增主键使用 GENERATED ALWAYS AS IDENTITY，其他主键使用 PRIMARY KEY
func ColumnDefinition(column schema.Column) string {
	var b strings.Builder
	b.WriteString(Quote(column.Name))
	b.WriteString(" ")
	b.WriteString(TypeName(column.Type, column.Size))

	if column.IsAutoGenerated() {
		b.WriteString(" GENERATED ALWAYS AS IDENTITY")
		if column.PrimaryKey {
			b.WriteString(" PRIMARY KEY")
		}
		return b.String()
	}

	if column.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	} else if !column.Nullable {
		b.WriteString(" NOT NULL")
	}
	if column.HasDefault() {
		b.WriteString(" DEFAULT ")
		b.WriteString(DefaultValue(column))
	}
	return b.String()
}

// CreateTable 建表语句，列定义以 ", " 连接
func CreateTable(table schema.Table) (string, error) {
	if err := table.Validate(); err != nil {
		return "", err
	}
	definitions := make([]string, 0, len(table.Columns))
	for _, column := range table.Columns {
		definitions = append(definitions, ColumnDefinition(column))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", Quote(table.Name), strings.Join(definitions, ", ")), nil
}

func DropTable(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", Quote(table))
}

func AddColumn(table string, column schema.Column) string {
	return fmt.Sprintf("ALTER TABLE IF EXISTS %s ADD COLUMN %s", Quote(table), ColumnDefinition(column))
}

func DropColumn(table string, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", Quote(table), Quote(column))
}

// AlterColumnType 修改列类型或长度
func AlterColumnType(table string, column schema.Column) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", Quote(table), Quote(column.Name), TypeName(column.Type, column.Size))
}

func SetNotNull(table string, column string) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", Quote(table), Quote(column))
}

func DropNotNull(table string, column string) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", Quote(table), Quote(column))
}

func SetDefault(table string, column schema.Column) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s", Quote(table), Quote(column.Name), DefaultValue(column))
}

func DropDefault(table string, column string) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", Quote(table), Quote(column))
}

// CreateDatabase 建库语句，owner 为空时不指定所有者
func CreateDatabase(name string, owner string) string {
	var b strings.Builder
	b.WriteString("CREATE DATABASE ")
	b.WriteString(Quote(name))
	b.WriteString(" WITH")
	if owner != "" {
		b.WriteString(" OWNER = ")
		b.WriteString(Quote(owner))
	}
	b.WriteString(" ENCODING = 'UTF8' CONNECTION LIMIT = -1 IS_TEMPLATE = False")
	return b.String()
}

// Relation 按关系类型生成约束语句
//   - 一对一：先在外键列上加唯一约束，再加外键约束
//   - 一对多和多对一：base 表的外键列引用 top 表
//   - 多对多：创建 base_top 关联表，两列联合主键，各自级联删除
func Relation(relation schema.Relation) ([]Statement, error) {
	if err := relation.Validate(); err != nil {
		return nil, err
	}

	switch relation.Type {
	case schema.OneToOne:
		return []Statement{
			{
				SQL: fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s)",
					Quote(relation.BaseTable), Quote(relation.UniqueConstraintName()), Quote(relation.ForeignKey)),
				Constraint: relation.UniqueConstraintName(),
			},
			foreignKey(relation),
		}, nil
	case schema.OneToMany, schema.ManyToOne:
		return []Statement{foreignKey(relation)}, nil
	case schema.ManyToMany:
		return junction(relation), nil
	}
	return nil, errors.Wrapf(schema.ErrInvalidRelation, "unknown relation type %d", relation.Type)
}

func foreignKey(relation schema.Relation) Statement {
	name := relation.ConstraintName()
	return Statement{
		SQL: fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE %s ON UPDATE %s",
			Quote(relation.BaseTable), Quote(name), Quote(relation.ForeignKey),
			Quote(relation.TopTable), Quote(relation.ReferenceKey),
			relation.OnDelete.SQL(), relation.OnUpdate.SQL()),
		Constraint: name,
	}
}

func junction(relation schema.Relation) []Statement {
	table := relation.JunctionTable()
	base, top := relation.JunctionColumns()
	return []Statement{
		{SQL: fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s INTEGER NOT NULL, %s INTEGER NOT NULL, PRIMARY KEY (%s, %s))",
			Quote(table), Quote(base), Quote(top), Quote(base), Quote(top))},
		{
			SQL: fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE CASCADE",
				Quote(table), Quote(relation.JunctionConstraintName(base)), Quote(base), Quote(relation.BaseTable), Quote(relation.ForeignKey)),
			Constraint: relation.JunctionConstraintName(base),
		},
		{
			SQL: fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE CASCADE",
				Quote(table), Quote(relation.JunctionConstraintName(top)), Quote(top), Quote(relation.TopTable), Quote(relation.ReferenceKey)),
			Constraint: relation.JunctionConstraintName(top),
		},
	}
}
