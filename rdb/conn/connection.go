package conn

import (
	"context"
	"database/sql"
	"sync"

	"github.com/hatlonely/qorm/cfg"
	"github.com/hatlonely/qorm/log"
	"github.com/hatlonely/qorm/uid"
	"github.com/pkg/errors"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

var ErrClosed = errors.New("connection closed")

const (
	targetApp   = "app"
	targetAdmin = "admin"
)

// Connection 管理应用连接和管理连接，所有访问都通过 Acquire 获得的 Session 完成
//
// 非池化模式下每个 Session 独占一个新打开的连接，释放时关闭；池化模式下复用 *sql.DB。
// sqlite3 的内存数据库随连接关闭而消失，因此总是池化。
type Connection struct {
	options  *Options
	logger   log.Logger
	observer *Observer
	ids      uid.Generator

	mu     sync.Mutex
	pools  map[string]*sql.DB
	shared bool
	closed bool
}

// NewConnectionWithOptions 创建连接，不会立即建立网络连接
func NewConnectionWithOptions(options *Options) (*Connection, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	opts := *options
	if err := cfg.SetDefaults(&opts); err != nil {
		return nil, errors.WithMessage(err, "cfg.SetDefaults failed")
	}
	if err := cfg.Validate(&opts); err != nil {
		return nil, errors.WithMessage(err, "invalid connection options")
	}

	logger := log.Default().WithGroup("conn")
	observer, err := NewObserver(&opts, logger)
	if err != nil {
		return nil, err
	}

	return &Connection{
		options:  &opts,
		logger:   logger,
		observer: observer,
		ids:      uid.NewUUIDGeneratorWithOptions(&opts.SessionID),
		pools:    map[string]*sql.DB{},
	}, nil
}

// NewConnectionWithDB 使用外部创建的 *sql.DB，admin 可以为 nil，Close 不会关闭它们
func NewConnectionWithDB(app *sql.DB, admin *sql.DB, options *Options) (*Connection, error) {
	if app == nil {
		return nil, errors.New("db is nil")
	}
	if options == nil {
		options = &Options{Driver: DriverPgx, Database: "postgres"}
	}
	c, err := NewConnectionWithOptions(options)
	if err != nil {
		return nil, err
	}
	c.shared = true
	c.pools[targetApp] = app
	if admin != nil {
		c.pools[targetAdmin] = admin
	}
	return c, nil
}

func (c *Connection) SetLogger(logger log.Logger) {
	if logger == nil {
		return
	}
	c.logger = logger
	c.observer.logger = logger
}

func (c *Connection) Options() *Options {
	return c.options
}

func (c *Connection) Driver() string {
	return c.options.Driver
}

// Acquire 获取应用数据库会话
func (c *Connection) Acquire(ctx context.Context) (*Session, error) {
	return c.acquire(ctx, targetApp)
}

// AcquireAdmin 获取管理数据库会话，用于检查和创建目标数据库
func (c *Connection) AcquireAdmin(ctx context.Context) (*Session, error) {
	return c.acquire(ctx, targetAdmin)
}

// Do 获取会话执行 fn，结束后保证释放
func (c *Connection) Do(ctx context.Context, fn func(s *Session) error) error {
	return c.do(ctx, targetApp, fn)
}

// DoAdmin 同 Do，使用管理连接
func (c *Connection) DoAdmin(ctx context.Context, fn func(s *Session) error) error {
	return c.do(ctx, targetAdmin, fn)
}

func (c *Connection) do(ctx context.Context, target string, fn func(s *Session) error) (err error) {
	s, err := c.acquire(ctx, target)
	if err != nil {
		return err
	}
	defer func() {
		if rErr := s.Release(); rErr != nil && err == nil {
			err = rErr
		}
	}()
	return fn(s)
}

func (c *Connection) acquire(ctx context.Context, target string) (*Session, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	db, pooled := c.pools[target]
	c.mu.Unlock()

	if !pooled {
		var err error
		db, err = c.open(ctx, target)
		if err != nil {
			return nil, err
		}
		if c.options.Pooled || c.options.Driver == DriverSqlite3 {
			c.mu.Lock()
			if existing, ok := c.pools[target]; ok {
				_ = db.Close()
				db = existing
			} else {
				c.pools[target] = db
			}
			c.mu.Unlock()
			pooled = true
		}
	}

	session := &Session{
		id:       c.ids.Generate(),
		driver:   c.options.Driver,
		db:       db,
		observer: c.observer,
	}
	c.observer.sessionAcquired()
	session.release = func() error {
		c.observer.sessionReleased()
		c.logger.Debug("session released", "session", session.id, "target", target)
		if pooled {
			return nil
		}
		return errors.Wrap(db.Close(), "db.Close failed")
	}
	c.logger.Debug("session acquired", "session", session.id, "target", target)
	return session, nil
}

func (c *Connection) open(ctx context.Context, target string) (*sql.DB, error) {
	var dsn string
	var err error
	if target == targetAdmin {
		dsn, err = c.options.AdminDataSourceName()
	} else {
		dsn, err = c.options.DataSourceName()
	}
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(c.options.Driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "sql.Open failed, driver [%s]", c.options.Driver)
	}
	if c.options.Pooled {
		db.SetMaxOpenConns(c.options.MaxConns)
		db.SetMaxIdleConns(c.options.MaxIdle)
	}
	if c.options.Driver == DriverSqlite3 {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "failed to connect to %s database", target)
	}
	return db, nil
}

// Close 关闭池化的连接，外部传入的 *sql.DB 不会被关闭
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.shared {
		return nil
	}

	var firstErr error
	for target, db := range c.pools {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "failed to close %s database", target)
		}
	}
	c.pools = map[string]*sql.DB{}
	return firstErr
}
