package conn

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// executor 同时被 *sql.DB 和 *sql.Tx 实现
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Session 一次作用域内的数据库会话，由 Connection.Acquire 创建，使用完必须 Release
type Session struct {
	id       string
	driver   string
	db       *sql.DB
	tx       *sql.Tx
	observer *Observer
	release  func() error
	released bool
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Driver() string {
	return s.driver
}

// InTx 会话是否处于事务中
func (s *Session) InTx() bool {
	return s.tx != nil
}

func (s *Session) executor() (executor, error) {
	if s.released {
		return nil, ErrClosed
	}
	if s.tx != nil {
		return s.tx, nil
	}
	return s.db, nil
}

// Exec 执行语句，? 占位符按驱动改写
func (s *Session) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	e, err := s.executor()
	if err != nil {
		return nil, err
	}
	query = Rebind(s.driver, query)
	var res sql.Result
	err = s.observer.Observe(ctx, s.id, query, func(ctx context.Context) error {
		var err error
		res, err = e.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "exec [%s] failed", query)
	}
	return res, nil
}

// Query 执行查询，调用方负责关闭返回的 rows
func (s *Session) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	e, err := s.executor()
	if err != nil {
		return nil, err
	}
	query = Rebind(s.driver, query)
	var rows *sql.Rows
	err = s.observer.Observe(ctx, s.id, query, func(ctx context.Context) error {
		var err error
		rows, err = e.QueryContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "query [%s] failed", query)
	}
	return rows, nil
}

// Records 执行查询并按列名返回每一行，[]byte 转换为 string
func (s *Session) Records(ctx context.Context, query string, args ...any) ([]map[string]any, []string, error) {
	rows, err := s.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, errors.Wrap(err, "rows.Columns failed")
	}

	var records []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, errors.Wrap(err, "rows.Scan failed")
		}
		record := make(map[string]any, len(columns))
		for i, column := range columns {
			if b, ok := values[i].([]byte); ok {
				record[column] = string(b)
			} else {
				record[column] = values[i]
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "rows.Err")
	}
	return records, columns, nil
}

// Scalar 读取单行单列结果到 dest，没有结果时返回 false
func (s *Session) Scalar(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	rows, err := s.Query(ctx, query, args...)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return false, errors.Wrap(rows.Err(), "rows.Err")
	}
	if err := rows.Scan(dest); err != nil {
		return false, errors.Wrap(err, "rows.Scan failed")
	}
	return true, nil
}

// Exists 查询是否返回至少一行
func (s *Session) Exists(ctx context.Context, query string, args ...any) (bool, error) {
	rows, err := s.Query(ctx, query, args...)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	found := rows.Next()
	if err := rows.Err(); err != nil {
		return false, errors.Wrap(err, "rows.Err")
	}
	return found, nil
}

// Strings 读取单列字符串结果
func (s *Session) Strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "rows.Scan failed")
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows.Err")
	}
	return values, nil
}

// WithTx 在事务中执行 fn，fn 返回错误或 panic 时回滚，已在事务中时直接复用
func (s *Session) WithTx(ctx context.Context, fn func(tx *Session) error) (err error) {
	if s.released {
		return ErrClosed
	}
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "db.BeginTx failed")
	}
	txSession := &Session{
		id:       s.id,
		driver:   s.driver,
		db:       s.db,
		tx:       tx,
		observer: s.observer,
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = errors.Errorf("transaction panic: %v", p)
		} else if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.WithMessagef(err, "rollback failed: %v", rbErr)
			}
		} else {
			if cmErr := tx.Commit(); cmErr != nil {
				err = errors.Wrap(cmErr, "tx.Commit failed")
			}
		}
		txSession.released = true
	}()

	return fn(txSession)
}

// Release 释放会话，重复调用无副作用
func (s *Session) Release() error {
	if s.released {
		return nil
	}
	s.released = true
	if s.release != nil {
		return s.release()
	}
	return nil
}

// Rebind 把 ? 占位符改写为 PostgreSQL 的 $n，忽略引号内的 ?
func Rebind(driver string, query string) string {
	if driver == DriverSqlite3 || !strings.Contains(query, "?") {
		return query
	}

	var buf strings.Builder
	buf.Grow(len(query) + 8)
	n := 0
	var quote rune
	for _, r := range query {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '?':
			n++
			buf.WriteString("$" + strconv.Itoa(n))
			continue
		}
		buf.WriteRune(r)
	}
	return buf.String()
}

func (s *Session) String() string {
	return fmt.Sprintf("session(%s, %s)", s.driver, s.id)
}
