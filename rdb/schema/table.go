package schema

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var ErrInvalidTable = errors.New("invalid table")

var validate = validator.New()

// Table 一张表的声明，构建完成后视为只读
type Table struct {
	Name      string     `yaml:"name" json:"name" validate:"required"`
	Columns   []Column   `yaml:"columns" json:"columns" validate:"required,min=1,dive"`
	Relations []Relation `yaml:"relations,omitempty" json:"relations,omitempty" validate:"dive"`
}

// Validate 表名和列都不能为空，列名不能重复
func (t Table) Validate() error {
	if err := validate.Struct(t); err != nil {
		return errors.Wrapf(ErrInvalidTable, "%s: %v", t.Name, err)
	}
	for i, column := range t.Columns {
		if IndexOf(t.Columns[:i], column.Name) >= 0 {
			return errors.Wrapf(ErrInvalidTable, "%s: duplicate column %s", t.Name, column.Name)
		}
	}
	return nil
}

func (t Table) IsValid() bool {
	return t.Validate() == nil
}

// PrimaryKey 返回第一个主键列
func (t Table) PrimaryKey() (Column, bool) {
	for _, column := range t.Columns {
		if column.PrimaryKey {
			return column, true
		}
	}
	return Column{}, false
}

// Column 按名称查找列，忽略大小写
func (t Table) Column(name string) (Column, bool) {
	if i := IndexOf(t.Columns, name); i >= 0 {
		return t.Columns[i], true
	}
	return Column{}, false
}

func (t Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, column := range t.Columns {
		names = append(names, column.Name)
	}
	return names
}

// RelationTo 返回 TopTable 为 top 的第一个关系
func (t Table) RelationTo(top string) (Relation, bool) {
	for _, relation := range t.Relations {
		if strings.EqualFold(relation.TopTable, top) {
			return relation, true
		}
	}
	return Relation{}, false
}

// SortByDependency 按依赖排序，关系中的 top 表排在 base 表之前
// 同层保持声明顺序，存在环时剩余的表按声明顺序追加
func SortByDependency(tables []Table) []Table {
	index := make(map[string]int, len(tables))
	for i, table := range tables {
		index[strings.ToLower(table.Name)] = i
	}

	deps := make([][]int, len(tables))
	for i, table := range tables {
		for _, relation := range table.Relations {
			if relation.Type == ManyToMany {
				continue
			}
			j, ok := index[strings.ToLower(relation.TopTable)]
			if !ok || j == i {
				continue
			}
			deps[i] = append(deps[i], j)
		}
	}

	sorted := make([]Table, 0, len(tables))
	done := make([]bool, len(tables))
	for len(sorted) < len(tables) {
		progressed := false
		for i := range tables {
			if done[i] {
				continue
			}
			ready := true
			for _, j := range deps[i] {
				if !done[j] {
					ready = false
					break
				}
			}
			if ready {
				done[i] = true
				sorted = append(sorted, tables[i])
				progressed = true
			}
		}
		if !progressed {
			for i := range tables {
				if !done[i] {
					done[i] = true
					sorted = append(sorted, tables[i])
				}
			}
		}
	}
	return sorted
}
