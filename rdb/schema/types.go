package schema

import (
	"strings"

	"github.com/pkg/errors"
)

// DataType 列的逻辑类型
type DataType int

const (
	Integer DataType = iota
	SmallInt
	BigInt
	Real
	Double
	Boolean
	Char
	Text
	Varchar
	Date
	Timestamp
)

var dataTypeNames = []string{
	Integer:   "integer",
	SmallInt:  "smallint",
	BigInt:    "bigint",
	Real:      "real",
	Double:    "double",
	Boolean:   "boolean",
	Char:      "char",
	Text:      "text",
	Varchar:   "varchar",
	Date:      "date",
	Timestamp: "timestamp",
}

func (t DataType) String() string {
	if t < 0 || int(t) >= len(dataTypeNames) {
		return "unknown"
	}
	return dataTypeNames[t]
}

// IsNumeric 数值和布尔类型的默认值不加引号
func (t DataType) IsNumeric() bool {
	switch t {
	case Integer, SmallInt, BigInt, Real, Double, Boolean:
		return true
	}
	return false
}

// IsInteger 整数类型可以作为自增主键
func (t DataType) IsInteger() bool {
	return t == Integer || t == SmallInt || t == BigInt
}

// HasSize 只有定长和变长字符串需要长度
func (t DataType) HasSize() bool {
	return t == Char || t == Varchar
}

// ParseDataType 解析类型名，支持常见别名
func ParseDataType(name string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "integer", "int", "int4":
		return Integer, nil
	case "smallint", "int2":
		return SmallInt, nil
	case "bigint", "int8":
		return BigInt, nil
	case "real", "float4", "float":
		return Real, nil
	case "double", "double precision", "float8":
		return Double, nil
	case "boolean", "bool":
		return Boolean, nil
	case "char", "character":
		return Char, nil
	case "text", "string":
		return Text, nil
	case "varchar", "character varying":
		return Varchar, nil
	case "date":
		return Date, nil
	case "timestamp", "datetime", "timestamp without time zone":
		return Timestamp, nil
	}
	return Integer, errors.Errorf("unknown data type: %s", name)
}

func (t DataType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *DataType) UnmarshalText(text []byte) error {
	v, err := ParseDataType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// RelationType 关系的基数
type RelationType int

const (
	OneToOne RelationType = iota
	OneToMany
	ManyToOne
	ManyToMany
)

func (t RelationType) String() string {
	switch t {
	case OneToOne:
		return "one-to-one"
	case OneToMany:
		return "one-to-many"
	case ManyToOne:
		return "many-to-one"
	case ManyToMany:
		return "many-to-many"
	}
	return "unknown"
}

func ParseRelationType(name string) (RelationType, error) {
	switch strings.ToLower(strings.NewReplacer("_", "-", " ", "-").Replace(strings.TrimSpace(name))) {
	case "one-to-one":
		return OneToOne, nil
	case "one-to-many":
		return OneToMany, nil
	case "many-to-one":
		return ManyToOne, nil
	case "many-to-many":
		return ManyToMany, nil
	}
	return OneToOne, errors.Errorf("unknown relation type: %s", name)
}

func (t RelationType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *RelationType) UnmarshalText(text []byte) error {
	v, err := ParseRelationType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Action 外键级联动作
type Action int

const (
	NoAction Action = iota
	Cascade
	SetNull
	SetDefault
	Restrict
)

// SQL 返回 ON DELETE / ON UPDATE 后的关键字
func (a Action) SQL() string {
	switch a {
	case Cascade:
		return "CASCADE"
	case SetNull:
		return "SET NULL"
	case SetDefault:
		return "SET DEFAULT"
	case Restrict:
		return "RESTRICT"
	}
	return "NO ACTION"
}

func (a Action) String() string {
	return strings.ToLower(strings.ReplaceAll(a.SQL(), " ", "-"))
}

func ParseAction(name string) (Action, error) {
	switch strings.ToLower(strings.NewReplacer("_", "-", " ", "-").Replace(strings.TrimSpace(name))) {
	case "", "no-action":
		return NoAction, nil
	case "cascade":
		return Cascade, nil
	case "set-null":
		return SetNull, nil
	case "set-default":
		return SetDefault, nil
	case "restrict":
		return Restrict, nil
	}
	return NoAction, errors.Errorf("unknown action: %s", name)
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(text []byte) error {
	v, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
