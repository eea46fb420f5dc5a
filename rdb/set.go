package rdb

import (
	"context"
	"strings"
	"sync"

	"github.com/hatlonely/qorm/log"
	"github.com/hatlonely/qorm/rdb/conn"
	"github.com/hatlonely/qorm/rdb/ddl"
	"github.com/hatlonely/qorm/rdb/mapping"
	"github.com/pkg/errors"
)

// Set 一个实体类型在某个上下文上的数据集，提供增删改和查询构建入口
//
// 所有操作的错误既通过返回值返回，也记录在 LastError 中。
type Set[T any] struct {
	ctx    *Context
	entity *mapping.Entity
	logger log.Logger

	mu          sync.Mutex
	lastErr     error
	lastRecords []map[string]any
}

// NewSet 构建实体映射并注册到上下文
func NewSet[T any](c *Context) (*Set[T], error) {
	entity, err := mapping.Of[T]()
	if err != nil {
		return nil, err
	}
	c.Register(entity)
	return &Set[T]{
		ctx:    c,
		entity: entity,
		logger: c.logger.With("table", entity.TableName()),
	}, nil
}

func MustNewSet[T any](c *Context) *Set[T] {
	s, err := NewSet[T](c)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Set[T]) Entity() *mapping.Entity {
	return s.entity
}

func (s *Set[T]) TableName() string {
	return s.entity.TableName()
}

// LastError 最近一次失败的错误，成功的操作不会清除它
func (s *Set[T]) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// LastRecords 最近一次查询的结构化结果，包含预加载的关联数据
func (s *Set[T]) LastRecords() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRecords
}

func (s *Set[T]) fail(ctx context.Context, err error, msg string) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.logger.ErrorContext(ctx, msg, "error", err)
	return err
}

func (s *Set[T]) remember(records []map[string]any) {
	s.mu.Lock()
	s.lastRecords = records
	s.mu.Unlock()
}

// Query 创建新的查询构建器
func (s *Set[T]) Query() *Query[T] {
	return &Query[T]{set: s}
}

// Where 等价于 Query().Where(clause, args...)
func (s *Set[T]) Where(clause string, args ...any) *Query[T] {
	return s.Query().Where(clause, args...)
}

// Include 等价于 Query().Include(names...)
func (s *Set[T]) Include(names ...string) *Query[T] {
	return s.Query().Include(names...)
}

// Insert 插入一条记录，自增列不写入，由 RETURNING 回填到 obj
func (s *Set[T]) Insert(ctx context.Context, obj *T) error {
	record, err := s.entity.Record(obj)
	if err != nil {
		return s.fail(ctx, err, "insert failed")
	}

	var columns, placeholders, returning []string
	var args []any
	for _, column := range s.entity.Columns() {
		if column.IsAutoGenerated() {
			returning = append(returning, ddl.Quote(column.Name))
			continue
		}
		columns = append(columns, ddl.Quote(column.Name))
		placeholders = append(placeholders, "?")
		args = append(args, record[column.Name])
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(ddl.Quote(s.entity.TableName()))
	if len(columns) == 0 {
		b.WriteString(" DEFAULT VALUES")
	} else {
		b.WriteString(" (" + strings.Join(columns, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")")
	}
	if len(returning) > 0 {
		b.WriteString(" RETURNING " + strings.Join(returning, ", "))
	}
	statement := b.String()

	err = s.ctx.do(ctx, func(session *conn.Session) error {
		if len(returning) == 0 {
			_, err := session.Exec(ctx, statement, args...)
			return err
		}
		records, _, err := session.Records(ctx, statement, args...)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return errors.New("insert returned no rows")
		}
		return s.entity.Load(obj, records[0])
	})
	if err != nil {
		return s.fail(ctx, err, "insert failed")
	}
	return nil
}

// Update 用 obj 的值更新满足 where 的记录，自增列不更新，where 为空时拒绝执行
func (s *Set[T]) Update(ctx context.Context, obj *T, where string, args ...any) (int64, error) {
	if strings.TrimSpace(where) == "" {
		return 0, s.fail(ctx, errors.Wrap(ErrEmptyCondition, "update without condition"), "update refused")
	}
	record, err := s.entity.Record(obj)
	if err != nil {
		return 0, s.fail(ctx, err, "update failed")
	}

	var sets []string
	var values []any
	for _, column := range s.entity.Columns() {
		if column.IsAutoGenerated() {
			continue
		}
		sets = append(sets, ddl.Quote(column.Name)+" = ?")
		values = append(values, record[column.Name])
	}
	if len(sets) == 0 {
		return 0, nil
	}
	statement := "UPDATE " + ddl.Quote(s.entity.TableName()) + " SET " + strings.Join(sets, ", ") + " WHERE " + where
	return s.exec(ctx, "update failed", statement, append(values, args...)...)
}

// Delete 删除满足 where 的记录，where 为空时拒绝执行
func (s *Set[T]) Delete(ctx context.Context, where string, args ...any) (int64, error) {
	if strings.TrimSpace(where) == "" {
		return 0, s.fail(ctx, errors.Wrap(ErrEmptyCondition, "delete without condition"), "delete refused")
	}
	return s.exec(ctx, "delete failed", "DELETE FROM "+ddl.Quote(s.entity.TableName())+" WHERE "+where, args...)
}

// DeleteByID 按主键删除
func (s *Set[T]) DeleteByID(ctx context.Context, id any) (int64, error) {
	where, err := s.primaryKeyCondition()
	if err != nil {
		return 0, s.fail(ctx, err, "delete failed")
	}
	return s.Delete(ctx, where, id)
}

// Find 按主键查找，不存在时返回 ErrRecordNotFound
func (s *Set[T]) Find(ctx context.Context, id any) (*T, error) {
	where, err := s.primaryKeyCondition()
	if err != nil {
		return nil, s.fail(ctx, err, "find failed")
	}
	list, err := s.Query().Where(where, id).Limit(1).ToList(ctx)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrRecordNotFound
	}
	return list[0], nil
}

func (s *Set[T]) primaryKeyCondition() (string, error) {
	column, _, ok := s.entity.PrimaryKey()
	if !ok {
		return "", errors.Errorf("table %s has no primary key", s.entity.TableName())
	}
	return ddl.Quote(column.Name) + " = ?", nil
}

func (s *Set[T]) exec(ctx context.Context, msg string, statement string, args ...any) (int64, error) {
	var affected int64
	err := s.ctx.do(ctx, func(session *conn.Session) error {
		res, err := session.Exec(ctx, statement, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return errors.Wrap(err, "RowsAffected failed")
	})
	if err != nil {
		return 0, s.fail(ctx, err, msg)
	}
	return affected, nil
}
