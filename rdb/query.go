package rdb

import (
	"context"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/hatlonely/qorm/rdb/conn"
	"github.com/hatlonely/qorm/rdb/ddl"
	"github.com/hatlonely/qorm/rdb/query"
	"github.com/pkg/errors"
)

// Query 链式查询构建器
//
// 非终结方法只修改状态并返回自身，任何修改都会清除缓存；
// ToList、ToJSON、ShowList 等终结方法在没有修改时复用第一次的结果，不会重复执行查询。
// 聚合方法总是立即执行，不读写缓存。
type Query[T any] struct {
	set *Set[T]
	err error

	where      string
	whereArgs  []any
	orderBy    string
	limit      int
	offset     int
	joins      []string
	groupBy    string
	having     string
	havingArgs []any
	columns    []string
	includes   []string
	distinct   bool

	cached  bool
	list    []*T
	records []map[string]any
	fields  []string
}

func (q *Query[T]) reset() *Query[T] {
	q.cached = false
	q.list = nil
	q.records = nil
	q.fields = nil
	return q
}

// Where 设置过滤条件，覆盖之前的条件以及 Filter 的编译错误，参数使用 ? 占位符
func (q *Query[T]) Where(clause string, args ...any) *Query[T] {
	q.err = nil
	q.where = clause
	q.whereArgs = args
	return q.reset()
}

// Filter 使用条件节点设置过滤条件，编译错误在终结方法中返回
func (q *Query[T]) Filter(node query.Query) *Query[T] {
	clause, args, err := node.ToSQL()
	if err != nil {
		q.err = errors.WithMessage(err, "invalid filter")
		return q.reset()
	}
	return q.Where(clause, args...)
}

// OrderBy 设置排序，覆盖之前的排序
func (q *Query[T]) OrderBy(clause string) *Query[T] {
	q.orderBy = clause
	return q.reset()
}

// OrderByAsc 追加升序列，多次调用按调用顺序组合
func (q *Query[T]) OrderByAsc(column string) *Query[T] {
	return q.appendOrder(column + " ASC")
}

// OrderByDesc 追加降序列
func (q *Query[T]) OrderByDesc(column string) *Query[T] {
	return q.appendOrder(column + " DESC")
}

func (q *Query[T]) appendOrder(fragment string) *Query[T] {
	if q.orderBy == "" {
		q.orderBy = fragment
	} else {
		q.orderBy += ", " + fragment
	}
	return q.reset()
}

// Limit n <= 0 时不限制
func (q *Query[T]) Limit(n int) *Query[T] {
	q.limit = n
	return q.reset()
}

func (q *Query[T]) Offset(n int) *Query[T] {
	q.offset = n
	return q.reset()
}

func (q *Query[T]) InnerJoin(table string, on string) *Query[T] {
	return q.join("INNER JOIN", table, on)
}

func (q *Query[T]) LeftJoin(table string, on string) *Query[T] {
	return q.join("LEFT JOIN", table, on)
}

func (q *Query[T]) RightJoin(table string, on string) *Query[T] {
	return q.join("RIGHT JOIN", table, on)
}

func (q *Query[T]) FullJoin(table string, on string) *Query[T] {
	return q.join("FULL OUTER JOIN", table, on)
}

func (q *Query[T]) join(kind string, table string, on string) *Query[T] {
	q.joins = append(q.joins, kind+" "+quoteTable(table)+" ON "+on)
	return q.reset()
}

// Select 设置查询的列，为空时查询基表的所有列
func (q *Query[T]) Select(columns ...string) *Query[T] {
	q.columns = columns
	return q.reset()
}

func (q *Query[T]) GroupBy(columns ...string) *Query[T] {
	q.groupBy = strings.Join(columns, ", ")
	return q.reset()
}

func (q *Query[T]) Having(condition string, args ...any) *Query[T] {
	q.having = condition
	q.havingArgs = args
	return q.reset()
}

// Distinct 作用于基础查询和聚合函数
func (q *Query[T]) Distinct() *Query[T] {
	q.distinct = true
	return q.reset()
}

// Include 追加需要预加载的关联表
func (q *Query[T]) Include(names ...string) *Query[T] {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name != "" {
			q.includes = append(q.includes, name)
		}
	}
	return q.reset()
}

var plainIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// quoteTable 普通表名加引号，带别名或 schema 的原样保留
func quoteTable(table string) string {
	if plainIdentifier.MatchString(table) {
		return ddl.Quote(table)
	}
	return table
}

func (q *Query[T]) from() string {
	return ddl.Quote(q.set.entity.TableName())
}

// tail FROM 之后、ORDER BY 之前的部分，列表查询和聚合查询共用
func (q *Query[T]) tail() (string, []any) {
	var b strings.Builder
	var args []any
	b.WriteString(" FROM ")
	b.WriteString(q.from())
	for _, join := range q.joins {
		b.WriteString(" ")
		b.WriteString(join)
	}
	if q.where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(q.where)
		args = append(args, q.whereArgs...)
	}
	if q.groupBy != "" {
		b.WriteString(" GROUP BY ")
		b.WriteString(q.groupBy)
	}
	if q.having != "" {
		b.WriteString(" HAVING ")
		b.WriteString(q.having)
		args = append(args, q.havingArgs...)
	}
	return b.String(), args
}

// ToSQL 编译列表查询，子句顺序固定为 WHERE、GROUP BY、HAVING、ORDER BY、LIMIT、OFFSET
func (q *Query[T]) ToSQL() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	if q.distinct {
		b.WriteString("DISTINCT ")
	}
	switch {
	case len(q.columns) > 0:
		b.WriteString(strings.Join(q.columns, ", "))
	case len(q.joins) > 0:
		b.WriteString(q.from() + ".*")
	default:
		b.WriteString("*")
	}

	tail, args := q.tail()
	b.WriteString(tail)
	if q.orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(q.orderBy)
	}
	if q.limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(q.limit))
	}
	if q.offset > 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(q.offset))
	}
	return b.String(), args
}

// execute 执行查询、预加载并物化结果，成功后缓存
func (q *Query[T]) execute(ctx context.Context) error {
	if q.cached {
		return nil
	}
	if q.err != nil {
		return q.set.fail(ctx, q.err, "query failed")
	}

	statement, args := q.ToSQL()
	var records []map[string]any
	var fields []string
	err := q.set.ctx.do(ctx, func(s *conn.Session) error {
		var err error
		records, fields, err = s.Records(ctx, statement, args...)
		if err != nil {
			return err
		}
		return q.set.resolve(ctx, s, q.includes, records)
	})
	if err != nil {
		return q.set.fail(ctx, err, "query failed")
	}

	list := make([]*T, 0, len(records))
	for _, record := range records {
		obj := new(T)
		if err := q.set.entity.Load(obj, record); err != nil {
			return q.set.fail(ctx, err, "failed to load record")
		}
		list = append(list, obj)
	}

	if records == nil {
		records = []map[string]any{}
	}
	q.list, q.records, q.fields, q.cached = list, records, fields, true
	q.set.remember(records)
	return nil
}

// ToList 返回实体列表
func (q *Query[T]) ToList(ctx context.Context) ([]*T, error) {
	if err := q.execute(ctx); err != nil {
		return nil, err
	}
	return q.list, nil
}

// First 返回第一条记录，没有结果时返回 ErrRecordNotFound
func (q *Query[T]) First(ctx context.Context) (*T, error) {
	list, err := q.ToList(ctx)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrRecordNotFound
	}
	return list[0], nil
}

// Records 返回结构化结果，预加载的关联数据以关联表名为键嵌套
func (q *Query[T]) Records(ctx context.Context) ([]map[string]any, error) {
	if err := q.execute(ctx); err != nil {
		return nil, err
	}
	return q.records, nil
}

// ToJSON 返回缩进的 JSON，每条记录的字段按字母序排列，关联数组排在最后
func (q *Query[T]) ToJSON(ctx context.Context) (string, error) {
	if err := q.execute(ctx); err != nil {
		return "", err
	}
	data, err := encodeRecords(q.records, q.includes)
	if err != nil {
		return "", q.set.fail(ctx, err, "failed to encode records")
	}
	return string(data), nil
}

// ShowJSON 将 ToJSON 的结果写入 w，w 为 nil 时写入标准输出
func (q *Query[T]) ShowJSON(ctx context.Context, w io.Writer) error {
	text, err := q.ToJSON(ctx)
	if err != nil {
		return err
	}
	if w == nil {
		w = os.Stdout
	}
	_, err = io.WriteString(w, text+"\n")
	return errors.Wrap(err, "write failed")
}

// ShowList 以表格形式写入 w，预加载的关联数据按行展开，w 为 nil 时写入标准输出
func (q *Query[T]) ShowList(ctx context.Context, w io.Writer) error {
	if err := q.execute(ctx); err != nil {
		return err
	}
	if w == nil {
		w = os.Stdout
	}
	header, rows := flatten(q.records, q.displayColumns(), q.includes)
	return errors.Wrap(writeTable(w, header, rows), "write failed")
}

// displayColumns 显式 Select 时按结果列顺序，否则按字母序
func (q *Query[T]) displayColumns() []string {
	if len(q.columns) > 0 {
		return append([]string(nil), q.fields...)
	}
	return sortedKeys(q.fields)
}
