package mapping

import (
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-openapi/inflect"
	"github.com/hatlonely/qorm/rdb/schema"
	"github.com/pkg/errors"
)

var ErrNotStruct = errors.New("entity must be a struct")

// Field 列到结构体字段的映射
type Field struct {
	Column string
	Index  []int
	Type   reflect.Type
}

// Entity 一个实体类型的表结构和字段映射，构建后只读，可在多个 goroutine 间共享
type Entity struct {
	typ    reflect.Type
	table  schema.Table
	fields []Field
}

var registry sync.Map

// Of 返回实体类型 T 的映射，首次调用时构建并缓存
func Of[T any]() (*Entity, error) {
	return Register(reflect.TypeOf((*T)(nil)).Elem())
}

// MustOf 构建失败时 panic，适用于包初始化阶段
func MustOf[T any]() *Entity {
	e, err := Of[T]()
	if err != nil {
		panic(err)
	}
	return e
}

// Register 按类型构建映射，同一类型只构建一次
func Register(typ reflect.Type) (*Entity, error) {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if v, ok := registry.Load(typ); ok {
		return v.(*Entity), nil
	}

	e, err := build(typ)
	if err != nil {
		return nil, err
	}
	v, _ := registry.LoadOrStore(typ, e)
	return v.(*Entity), nil
}

func build(typ reflect.Type) (*Entity, error) {
	if typ.Kind() != reflect.Struct {
		return nil, errors.Wrapf(ErrNotStruct, "%v", typ)
	}

	template := reflect.New(typ)
	b := newBuilder(template.Elem())

	configured := false
	if c, ok := template.Interface().(Configurable); ok {
		c.Configure(b)
		configured = true
	}
	if !configured {
		b.fromTags(typ, nil)
	}
	if b.table.Name == "" {
		b.table.Name = DefaultTableName(typ)
	}
	if rc, ok := template.Interface().(RelationCreator); ok {
		rc.CreateRelations(b)
	}
	if b.err != nil {
		return nil, errors.WithMessagef(b.err, "failed to build mapping of %v", typ)
	}
	if err := b.table.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "failed to build mapping of %v", typ)
	}

	return &Entity{typ: typ, table: b.table, fields: b.fields}, nil
}

// fromTags 未实现 Configurable 时按 rdb tag 映射所有导出字段，rdb:"-" 跳过
// 没有 tag 的字段列名取 snake_case，名为 ID 的字段默认作为主键
func (b *Builder) fromTags(typ reflect.Type, prefix []int) {
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		index := append(append([]int{}, prefix...), i)
		tag, hasTag := field.Tag.Lookup("rdb")
		if tag == "-" {
			continue
		}
		if field.Anonymous && field.Type.Kind() == reflect.Struct && !hasTag {
			b.fromTags(field.Type, index)
			continue
		}

		name, opts, err := parseTag(tag)
		if err != nil {
			b.fail(errors.WithMessagef(err, "field %s", field.Name))
			return
		}
		if name == "" {
			name = SnakeCase(field.Name)
		}
		if !hasTag && field.Name == "ID" {
			opts = append(opts, PrimaryKey())
		}
		b.add(name, index, field.Type, opts...)
	}
}

// DefaultTableName 类型名的 snake_case 复数形式，例如 UserProfile 对应 user_profiles
func DefaultTableName(typ reflect.Type) string {
	return inflect.Pluralize(SnakeCase(typ.Name()))
}

// SnakeCase 驼峰转下划线，连续大写视为一个缩写，例如 PersonID 对应 person_id
func SnakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (e *Entity) Type() reflect.Type {
	return e.typ
}

// Table 返回表结构的副本
func (e *Entity) Table() schema.Table {
	t := e.table
	t.Columns = append([]schema.Column(nil), e.table.Columns...)
	t.Relations = append([]schema.Relation(nil), e.table.Relations...)
	return t
}

func (e *Entity) TableName() string {
	return e.table.Name
}

func (e *Entity) Columns() []schema.Column {
	return e.table.Columns
}

func (e *Entity) Relations() []schema.Relation {
	return e.table.Relations
}

func (e *Entity) Fields() []Field {
	return e.fields
}

// Field 按列名查找字段，忽略大小写
func (e *Entity) Field(column string) (Field, bool) {
	for _, f := range e.fields {
		if strings.EqualFold(f.Column, column) {
			return f, true
		}
	}
	return Field{}, false
}

// PrimaryKey 返回主键列和对应字段
func (e *Entity) PrimaryKey() (schema.Column, Field, bool) {
	column, ok := e.table.PrimaryKey()
	if !ok {
		return schema.Column{}, Field{}, false
	}
	f, ok := e.Field(column.Name)
	return column, f, ok
}

// Value 读取对象上某列的值，obj 可以是 T 或 *T
func (e *Entity) Value(obj any, column string) (any, error) {
	rv, err := e.indirect(obj)
	if err != nil {
		return nil, err
	}
	f, ok := e.Field(column)
	if !ok {
		return nil, errors.Errorf("column %s is not mapped on %v", column, e.typ)
	}
	return ToDriver(rv.FieldByIndex(f.Index)), nil
}

// Record 将对象转换为 列名 -> 值 的映射
func (e *Entity) Record(obj any) (map[string]any, error) {
	rv, err := e.indirect(obj)
	if err != nil {
		return nil, err
	}
	record := make(map[string]any, len(e.fields))
	for _, f := range e.fields {
		record[f.Column] = ToDriver(rv.FieldByIndex(f.Index))
	}
	return record, nil
}

// Assign 将数据库返回的值写入对象的对应字段，未映射的列忽略
func (e *Entity) Assign(obj any, column string, value any) error {
	rv, err := e.indirect(obj)
	if err != nil {
		return err
	}
	if !rv.CanSet() {
		return errors.Errorf("cannot assign to non-pointer %v", e.typ)
	}
	f, ok := e.Field(column)
	if !ok {
		return nil
	}
	if err := FromDriver(rv.FieldByIndex(f.Index), value); err != nil {
		return errors.WithMessagef(err, "column %s", column)
	}
	return nil
}

// Load 按记录填充对象
func (e *Entity) Load(obj any, record map[string]any) error {
	for column, value := range record {
		if err := e.Assign(obj, column, value); err != nil {
			return err
		}
	}
	return nil
}

func (e *Entity) indirect(obj any) (reflect.Value, error) {
	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}, errors.Errorf("nil %v", e.typ)
		}
		rv = rv.Elem()
	}
	if rv.Type() != e.typ {
		return reflect.Value{}, errors.Errorf("expected %v, got %v", e.typ, rv.Type())
	}
	return rv, nil
}
