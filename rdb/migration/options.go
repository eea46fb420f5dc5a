package migration

// Options 迁移配置，bool 字段的默认值只在从配置文件加载时生效，代码中构造请使用 DefaultOptions
type Options struct {
	// CreateDatabase 目标数据库不存在时通过管理连接创建
	CreateDatabase bool `cfg:"createDatabase" def:"true"`
	// Owner 新建数据库的所有者，为空时使用连接用户
	Owner string `cfg:"owner"`
	// MigrateColumns 对已存在的表同步列
	MigrateColumns bool `cfg:"migrateColumns" def:"true"`
	// DropUndeclaredTables 删除没有声明的表，关联表视为已声明
	DropUndeclaredTables bool `cfg:"dropUndeclaredTables"`
	// DryRun 只生成语句不执行
	DryRun bool `cfg:"dryRun"`
}

func DefaultOptions() *Options {
	return &Options{
		CreateDatabase: true,
		MigrateColumns: true,
	}
}
