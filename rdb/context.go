package rdb

import (
	"context"
	"strings"
	"sync"

	"github.com/hatlonely/qorm/log"
	"github.com/hatlonely/qorm/rdb/conn"
	"github.com/hatlonely/qorm/rdb/mapping"
	"github.com/hatlonely/qorm/rdb/migration"
	"github.com/hatlonely/qorm/rdb/schema"
	"github.com/pkg/errors"
)

var (
	ErrEmptyCondition = errors.New("empty condition")
	ErrNoConnection   = errors.New("no connection")
	ErrRecordNotFound = errors.New("record not found")
)

// Options 上下文配置
type Options struct {
	Connection conn.Options      `cfg:"connection"`
	Migration  migration.Options `cfg:"migration"`
	// Log 为 nil 时使用 log.Default()
	Log *log.Options `cfg:"log"`
	// AutoMigrate 为 true 时 Initialize 执行迁移
	AutoMigrate bool `cfg:"autoMigrate" def:"true"`
}

// DefaultOptions 代码中构造配置时的默认值，与 def tag 一致
func DefaultOptions() *Options {
	return &Options{
		Connection:  conn.Options{Driver: conn.DriverPgx},
		Migration:   *migration.DefaultOptions(),
		AutoMigrate: true,
	}
}

// entities 按注册顺序保存实体，事务上下文与原上下文共享
type entities struct {
	mu   sync.RWMutex
	list []*mapping.Entity
}

func (e *entities) add(entity *mapping.Entity) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.list {
		if existing == entity {
			return
		}
	}
	e.list = append(e.list, entity)
}

func (e *entities) tables() []schema.Table {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tables := make([]schema.Table, 0, len(e.list))
	for _, entity := range e.list {
		tables = append(tables, entity.Table())
	}
	return tables
}

// Context 持有连接和注册在其上的实体，Initialize 时把实体的表结构同步到数据库
type Context struct {
	conn     *conn.Connection
	session  *conn.Session
	options  *Options
	logger   log.Logger
	migrator *migration.Migrator
	entities *entities
	owned    bool
}

func NewContextWithOptions(options *Options) (*Context, error) {
	if options == nil {
		options = DefaultOptions()
	}
	c, err := conn.NewConnectionWithOptions(&options.Connection)
	if err != nil {
		return nil, errors.WithMessage(err, "conn.NewConnectionWithOptions failed")
	}

	ctx := NewContextWithConnection(c, options)
	ctx.owned = true
	if options.Log != nil {
		logger, err := log.NewLoggerWithOptions(options.Log)
		if err != nil {
			_ = c.Close()
			return nil, errors.WithMessage(err, "log.NewLoggerWithOptions failed")
		}
		ctx.SetLogger(logger)
	}
	return ctx, nil
}

// NewContextWithConnection 使用已有连接，Close 不会关闭该连接
func NewContextWithConnection(c *conn.Connection, options *Options) *Context {
	if options == nil {
		options = DefaultOptions()
	}
	return &Context{
		conn:     c,
		options:  options,
		logger:   log.Default().WithGroup("rdb"),
		migrator: migration.NewMigratorWithOptions(c, &options.Migration),
		entities: &entities{},
	}
}

// SetLogger 同时设置连接和迁移的日志
func (c *Context) SetLogger(logger log.Logger) {
	if logger == nil {
		return
	}
	c.logger = logger.WithGroup("rdb")
	if c.conn != nil {
		c.conn.SetLogger(logger.WithGroup("conn"))
	}
	c.migrator.SetLogger(logger.WithGroup("migration"))
}

func (c *Context) Logger() log.Logger {
	return c.logger
}

func (c *Context) Connection() *conn.Connection {
	return c.conn
}

func (c *Context) Migrator() *migration.Migrator {
	return c.migrator
}

// Register 注册实体，NewSet 会自动调用
func (c *Context) Register(entity *mapping.Entity) {
	c.entities.add(entity)
}

// Tables 已注册实体的表结构，按注册顺序
func (c *Context) Tables() []schema.Table {
	return c.entities.tables()
}

// table 按名称查找已注册的表，忽略大小写
func (c *Context) table(name string) (schema.Table, bool) {
	for _, table := range c.Tables() {
		if strings.EqualFold(table.Name, name) {
			return table, true
		}
	}
	return schema.Table{}, false
}

// Initialize 依次同步数据库、表、列和关系
// 单个步骤的失败记录在 Migrator().LastError() 中，返回最后一个错误
func (c *Context) Initialize(ctx context.Context) error {
	if c.conn == nil {
		return ErrNoConnection
	}
	if !c.options.AutoMigrate {
		c.logger.InfoContext(ctx, "auto migrate disabled")
		return nil
	}
	if !c.conn.Options().IsPostgres() {
		c.logger.WarnContext(ctx, "migration only supports postgres, skipped", "driver", c.conn.Driver())
		return nil
	}
	return c.migrator.Migrate(ctx, c.Tables())
}

// WithTx 在事务中执行 fn，fn 中通过 tx 创建的 Set 共享同一事务
func (c *Context) WithTx(ctx context.Context, fn func(tx *Context) error) error {
	if c.session != nil {
		return fn(c)
	}
	return c.do(ctx, func(s *conn.Session) error {
		return s.WithTx(ctx, func(txs *conn.Session) error {
			tx := *c
			tx.session = txs
			tx.owned = false
			return fn(&tx)
		})
	})
}

// do 在事务上下文中复用事务会话，否则获取一个新会话并在结束后释放
func (c *Context) do(ctx context.Context, fn func(s *conn.Session) error) error {
	if c.session != nil {
		return fn(c.session)
	}
	if c.conn == nil {
		return ErrNoConnection
	}
	return c.conn.Do(ctx, fn)
}

// Close 关闭由 NewContextWithOptions 创建的连接
func (c *Context) Close() error {
	if !c.owned || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
