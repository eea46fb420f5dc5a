package schema

import (
	"strings"
)

// Column 表中的一列
type Column struct {
	Name       string   `yaml:"name" json:"name" validate:"required"`
	Type       DataType `yaml:"type" json:"type"`
	Size       int      `yaml:"size,omitempty" json:"size,omitempty" validate:"gte=0"`
	Nullable   bool     `yaml:"nullable,omitempty" json:"nullable,omitempty"`
	PrimaryKey bool     `yaml:"primaryKey,omitempty" json:"primaryKey,omitempty"`
	// Default 默认值，按类型决定是否加引号
	Default string `yaml:"default,omitempty" json:"default,omitempty"`
	// DefaultExpr 为 true 时 Default 是 SQL 表达式，原样输出，例如 CURRENT_TIMESTAMP
	DefaultExpr bool `yaml:"defaultExpr,omitempty" json:"defaultExpr,omitempty"`
	Identity    bool `yaml:"identity,omitempty" json:"identity,omitempty"`
}

// Equal 列名忽略大小写相等即视为同一列，类型、长度和可空性的差异由迁移处理
func (c Column) Equal(other Column) bool {
	return strings.EqualFold(c.Name, other.Name)
}

// IsAutoGenerated 显式声明 identity，或者整数主键没有默认值时，由数据库生成值
func (c Column) IsAutoGenerated() bool {
	if c.Identity {
		return true
	}
	return c.PrimaryKey && c.Default == "" && c.Type.IsInteger()
}

// HasDefault 是否声明了默认值
func (c Column) HasDefault() bool {
	return c.Default != ""
}

// IndexOf 按名称查找列，忽略大小写，找不到返回 -1
func IndexOf(columns []Column, name string) int {
	for i, column := range columns {
		if strings.EqualFold(column.Name, name) {
			return i
		}
	}
	return -1
}
