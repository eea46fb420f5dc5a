package schema

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/pkg/errors"
)

// MaxIdentifierLength PostgreSQL 标识符的最大字节数，超出部分会被数据库截断
const MaxIdentifierLength = 63

var ErrInvalidRelation = errors.New("invalid relation")

// Relation 两张表之间的外键关系
// BaseTable 始终持有外键列 ForeignKey，TopTable 的 ReferenceKey 被引用
// 多对多关系不在任意一侧存储外键，而是生成名为 base_top 的关联表
type Relation struct {
	BaseTable    string       `yaml:"baseTable" json:"baseTable" validate:"required"`
	TopTable     string       `yaml:"topTable" json:"topTable" validate:"required"`
	ForeignKey   string       `yaml:"foreignKey" json:"foreignKey" validate:"required"`
	ReferenceKey string       `yaml:"referenceKey" json:"referenceKey" validate:"required"`
	Type         RelationType `yaml:"type" json:"type"`
	OnDelete     Action       `yaml:"onDelete,omitempty" json:"onDelete,omitempty"`
	OnUpdate     Action       `yaml:"onUpdate,omitempty" json:"onUpdate,omitempty"`
	LazyLoad     bool         `yaml:"lazyLoad,omitempty" json:"lazyLoad,omitempty"`
}

// Validate 四个名称字段都不能为空
func (r Relation) Validate() error {
	if err := validate.Struct(r); err != nil {
		return errors.Wrapf(ErrInvalidRelation, "%s -> %s: %v", r.BaseTable, r.TopTable, err)
	}
	return nil
}

func (r Relation) IsValid() bool {
	return r.Validate() == nil
}

// ConstraintName 外键约束名，只依赖 base、top 和外键列，多次运行结果一致
func (r Relation) ConstraintName() string {
	return identifier("fk", r.BaseTable, r.TopTable, r.ForeignKey)
}

// UniqueConstraintName 一对一关系在外键列上的唯一约束名
func (r Relation) UniqueConstraintName() string {
	return identifier("uq", r.BaseTable, r.ForeignKey)
}

// JunctionTable 多对多关系的关联表名
func (r Relation) JunctionTable() string {
	return identifier("", r.BaseTable, r.TopTable)
}

// JunctionColumns 关联表中分别指向 base 和 top 的列名
func (r Relation) JunctionColumns() (base string, top string) {
	return identifier("", r.BaseTable, r.ForeignKey), identifier("", r.TopTable, r.ReferenceKey)
}

// JunctionConstraintName 关联表中某一列的外键约束名
func (r Relation) JunctionConstraintName(column string) string {
	return identifier("fk", r.JunctionTable(), column)
}

// Junction 多对多关系对应的关联表结构，联合主键由 DDL 单独生成
func (r Relation) Junction() Table {
	base, top := r.JunctionColumns()
	return Table{
		Name: r.JunctionTable(),
		Columns: []Column{
			{Name: base, Type: Integer},
			{Name: top, Type: Integer},
		},
	}
}

func (r Relation) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s (%s)", r.BaseTable, r.ForeignKey, r.TopTable, r.ReferenceKey, r.Type)
}

// identifier 以下划线连接并转小写，超长时截断并追加哈希后缀，保证唯一且稳定
func identifier(prefix string, parts ...string) string {
	if prefix != "" {
		parts = append([]string{prefix}, parts...)
	}
	name := strings.ToLower(strings.Join(parts, "_"))
	if len(name) <= MaxIdentifierLength {
		return name
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	suffix := fmt.Sprintf("_%08x", h.Sum32())
	return name[:MaxIdentifierLength-len(suffix)] + suffix
}
