package mapping

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/hatlonely/qorm/rdb/schema"
	"github.com/pkg/errors"
)

// Configurable 实体通过 Configure 声明表名和列，必须使用指针接收者
//
//	func (p *Person) Configure(b *mapping.Builder) {
//		b.ToTable("persons")
//		b.Property(&p.ID, "id", mapping.PrimaryKey())
//		b.Property(&p.Name, "name", mapping.Size(64))
//	}
type Configurable interface {
	Configure(b *Builder)
}

// RelationCreator 实体通过 CreateRelations 声明外键关系
type RelationCreator interface {
	CreateRelations(b *Builder)
}

// Option 列选项
type Option func(*propertyOptions)

type propertyOptions struct {
	column       schema.Column
	explicitType bool
}

func Nullable() Option {
	return func(o *propertyOptions) { o.column.Nullable = true }
}

func PrimaryKey() Option {
	return func(o *propertyOptions) { o.column.PrimaryKey = true }
}

func Identity() Option {
	return func(o *propertyOptions) { o.column.Identity = true }
}

// Default 字面量默认值，字符串等类型会加引号
func Default(value string) Option {
	return func(o *propertyOptions) {
		o.column.Default = value
		o.column.DefaultExpr = false
	}
}

// DefaultExpr SQL 表达式默认值，原样输出
func DefaultExpr(expr string) Option {
	return func(o *propertyOptions) {
		o.column.Default = expr
		o.column.DefaultExpr = true
	}
}

// Size 字符串长度，未显式指定类型时 string 字段会变为 varchar
func Size(n int) Option {
	return func(o *propertyOptions) { o.column.Size = n }
}

// Type 显式指定列类型
func Type(t schema.DataType) Option {
	return func(o *propertyOptions) {
		o.column.Type = t
		o.explicitType = true
	}
}

// RelationOption 关系选项
type RelationOption func(*schema.Relation)

func OnDelete(action schema.Action) RelationOption {
	return func(r *schema.Relation) { r.OnDelete = action }
}

func OnUpdate(action schema.Action) RelationOption {
	return func(r *schema.Relation) { r.OnUpdate = action }
}

func LazyLoad() RelationOption {
	return func(r *schema.Relation) { r.LazyLoad = true }
}

// Builder 在实体初始化时收集表结构，字段通过模板对象上的地址定位
type Builder struct {
	template reflect.Value
	table    schema.Table
	fields   []Field
	err      error
}

func newBuilder(template reflect.Value) *Builder {
	return &Builder{template: template}
}

// ToTable 设置表名
func (b *Builder) ToTable(name string) *Builder {
	b.table.Name = name
	return b
}

// Property 将字段映射到列，field 必须是模板对象上字段的指针
// 同名列重复声明时保留第一次的声明
func (b *Builder) Property(field any, column string, opts ...Option) *Builder {
	fv := reflect.ValueOf(field)
	if fv.Kind() != reflect.Ptr || fv.IsNil() {
		b.fail(errors.Errorf("property %s: field must be a non-nil pointer, got %T", column, field))
		return b
	}

	index, ok := locate(b.template, fv.Pointer(), fv.Type().Elem(), nil)
	if !ok {
		b.fail(errors.Errorf("property %s: pointer does not refer to a field of %v", column, b.template.Type()))
		return b
	}
	b.add(column, index, fv.Type().Elem(), opts...)
	return b
}

// Relation 声明以当前表为 base 的关系，外键列在当前表上
func (b *Builder) Relation(topTable string, typ schema.RelationType, foreignKey string, referenceKey string, opts ...RelationOption) *Builder {
	relation := schema.Relation{
		BaseTable:    b.table.Name,
		TopTable:     topTable,
		ForeignKey:   foreignKey,
		ReferenceKey: referenceKey,
		Type:         typ,
	}
	for _, opt := range opts {
		opt(&relation)
	}
	return b.AddRelation(relation)
}

// AddRelation 添加完整的关系声明，BaseTable 为空时使用当前表名
func (b *Builder) AddRelation(relation schema.Relation) *Builder {
	if relation.BaseTable == "" {
		relation.BaseTable = b.table.Name
	}
	if err := relation.Validate(); err != nil {
		b.fail(err)
		return b
	}
	b.table.Relations = append(b.table.Relations, relation)
	return b
}

// Err 返回构建过程中的第一个错误
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Builder) add(name string, index []int, typ reflect.Type, opts ...Option) {
	if schema.IndexOf(b.table.Columns, name) >= 0 {
		return
	}

	dataType, inferred := InferType(typ)
	o := &propertyOptions{column: schema.Column{Name: name, Type: dataType}}
	if typ.Kind() == reflect.Ptr {
		o.column.Nullable = true
	}
	for _, opt := range opts {
		opt(o)
	}
	if !o.explicitType && !inferred {
		b.fail(errors.Errorf("property %s: cannot infer column type from %v, use mapping.Type", name, typ))
		return
	}
	if !o.explicitType && o.column.Type == schema.Text && o.column.Size > 0 {
		o.column.Type = schema.Varchar
	}

	b.table.Columns = append(b.table.Columns, o.column)
	b.fields = append(b.fields, Field{Column: name, Index: index, Type: typ})
}

// locate 在结构体中查找地址和类型都匹配的字段，递归进入嵌套结构体
// 嵌套结构体的第一个字段和结构体本身地址相同，依靠类型区分
func locate(v reflect.Value, addr uintptr, typ reflect.Type, prefix []int) ([]int, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		fv := v.Field(i)
		index := append(append([]int{}, prefix...), i)
		if fv.UnsafeAddr() == addr && field.Type == typ {
			return index, true
		}
		if field.Type.Kind() == reflect.Struct && field.Type != timeType {
			if found, ok := locate(fv, addr, typ, index); ok {
				return found, true
			}
		}
	}
	return nil, false
}

// parseTag 解析 rdb tag，格式为 name,type=varchar,size=64,default=x,nullable,primary,identity
func parseTag(tag string) (string, []Option, error) {
	parts := strings.Split(tag, ",")
	name := strings.TrimSpace(parts[0])
	var opts []Option
	for _, part := range parts[1:] {
		key, value, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch key {
		case "type":
			t, err := schema.ParseDataType(value)
			if err != nil {
				return "", nil, err
			}
			opts = append(opts, Type(t))
		case "size":
			n, err := strconv.Atoi(value)
			if err != nil {
				return "", nil, errors.Wrapf(err, "invalid size %q", value)
			}
			opts = append(opts, Size(n))
		case "default":
			opts = append(opts, Default(value))
		case "defaultExpr":
			opts = append(opts, DefaultExpr(value))
		case "nullable":
			opts = append(opts, Nullable())
		case "primary":
			opts = append(opts, PrimaryKey())
		case "identity":
			opts = append(opts, Identity())
		case "":
		default:
			return "", nil, errors.Errorf("unknown rdb tag option %q", key)
		}
	}
	return name, opts, nil
}
