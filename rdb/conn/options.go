package conn

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/hatlonely/qorm/uid"
	"github.com/pkg/errors"
)

const (
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
	DriverSqlite3  = "sqlite3"
)

// Options 连接配置
type Options struct {
	// 驱动：pgx, postgres, sqlite3
	Driver string `cfg:"driver" def:"pgx" validate:"oneof=pgx postgres sqlite3"`
	// 完整连接串，设置后忽略 Host 等字段，必须是 URL 形式才能派生管理连接
	DSN      string `cfg:"dsn"`
	Host     string `cfg:"host" def:"localhost"`
	Port     int    `cfg:"port" def:"5432"`
	Database string `cfg:"database" validate:"required"`
	Username string `cfg:"username"`
	Password string `cfg:"password"`
	SSLMode  string `cfg:"sslMode" def:"disable"`
	// 管理连接使用的数据库，用于检查和创建目标数据库
	AdminDatabase string `cfg:"adminDatabase" def:"postgres"`

	// Pooled 为 false 时每次获取会话都新建连接，释放时关闭
	Pooled   bool `cfg:"pooled"`
	MaxConns int  `cfg:"maxConns" def:"10"`
	MaxIdle  int  `cfg:"maxIdle" def:"5"`

	// 观测配置，Name 作为指标前缀和 tracer 名称
	Name          string `cfg:"name" def:"qorm"`
	EnableMetrics bool   `cfg:"enableMetrics"`
	EnableTracing bool   `cfg:"enableTracing"`

	// SessionID 会话标识的生成方式，出现在日志和 span 中
	SessionID uid.UUIDOptions `cfg:"sessionId"`
}

// IsPostgres pgx 和 postgres 驱动都连接 PostgreSQL
func (o *Options) IsPostgres() bool {
	return o.Driver == DriverPgx || o.Driver == DriverPostgres
}

// DataSourceName 应用连接串
func (o *Options) DataSourceName() (string, error) {
	return o.dataSourceName(o.Database)
}

// AdminDataSourceName 管理连接串，只支持 PostgreSQL
func (o *Options) AdminDataSourceName() (string, error) {
	if !o.IsPostgres() {
		return "", errors.Errorf("driver %s does not support admin connection", o.Driver)
	}
	return o.dataSourceName(o.AdminDatabase)
}

func (o *Options) dataSourceName(database string) (string, error) {
	if o.Driver == DriverSqlite3 {
		if o.DSN != "" {
			return o.DSN, nil
		}
		return database, nil
	}

	if o.DSN != "" {
		u, err := url.Parse(o.DSN)
		if err != nil || u.Scheme == "" {
			if database == o.Database {
				return o.DSN, nil
			}
			return "", errors.Errorf("cannot derive dsn for database %s from a non-url dsn", database)
		}
		u.Path = "/" + database
		return u.String(), nil
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%s", o.Host, strconv.Itoa(o.Port)),
		Path:   "/" + database,
	}
	if o.Username != "" {
		if o.Password != "" {
			u.User = url.UserPassword(o.Username, o.Password)
		} else {
			u.User = url.User(o.Username)
		}
	}
	if o.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{o.SSLMode}}.Encode()
	}
	return u.String(), nil
}
