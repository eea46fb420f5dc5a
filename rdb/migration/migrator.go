// Package migration 比较声明的表结构和数据库中的实时结构，生成并执行使两者一致的 DDL
//
// 执行顺序固定：数据库、表、列、关系。单个步骤失败只记录错误并继续，下次迁移会重试。
package migration

import (
	"context"
	"strings"
	"sync"

	"github.com/hatlonely/qorm/log"
	"github.com/hatlonely/qorm/rdb/conn"
	"github.com/hatlonely/qorm/rdb/ddl"
	"github.com/hatlonely/qorm/rdb/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Migrator struct {
	conn    *conn.Connection
	options *Options
	logger  log.Logger
	tracer  trace.Tracer

	mu         sync.Mutex
	statements []string
	lastErr    error
}

// NewMigratorWithOptions options 为 nil 时使用 DefaultOptions
func NewMigratorWithOptions(c *conn.Connection, options *Options) *Migrator {
	if options == nil {
		options = DefaultOptions()
	}
	return &Migrator{
		conn:    c,
		options: options,
		logger:  log.Default().WithGroup("migration"),
		tracer:  otel.Tracer("qorm.migration"),
	}
}

func (m *Migrator) SetLogger(logger log.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Statements 最近一次迁移执行或计划的语句
func (m *Migrator) Statements() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.statements...)
}

// LastError 最近一次失败的错误，没有失败时为 nil
func (m *Migrator) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Migrate 同步声明的表结构，返回最后一个失败步骤的错误
func (m *Migrator) Migrate(ctx context.Context, tables []schema.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statements = nil
	m.lastErr = nil

	ctx, span := m.tracer.Start(ctx, "migration.Migrate", trace.WithAttributes(
		attribute.Int("tables", len(tables)),
		attribute.Bool("dry_run", m.options.DryRun),
	))
	defer span.End()

	declared := make([]schema.Table, 0, len(tables))
	for _, table := range tables {
		if err := table.Validate(); err != nil {
			m.fail(err, "skip invalid table", "table", table.Name)
			continue
		}
		declared = append(declared, table)
	}

	if m.options.CreateDatabase && m.conn.Options().IsPostgres() {
		m.migrateDatabase(ctx)
	}

	err := m.conn.Do(ctx, func(s *conn.Session) error {
		live, err := m.migrateTables(ctx, s, declared)
		if err != nil {
			return err
		}
		m.migrateRelations(ctx, s, declared, live)
		return nil
	})
	if err != nil {
		m.fail(err, "failed to migrate tables")
	}
	if m.lastErr != nil {
		span.RecordError(m.lastErr)
	}
	return m.lastErr
}

func (m *Migrator) migrateDatabase(ctx context.Context) {
	ctx, span := m.tracer.Start(ctx, "migration.Database")
	defer span.End()

	options := m.conn.Options()
	err := m.conn.DoAdmin(ctx, func(s *conn.Session) error {
		databases, err := NewIntrospector(s).Databases(ctx)
		if err != nil {
			return err
		}
		for _, database := range databases {
			if strings.EqualFold(database, options.Database) {
				return nil
			}
		}
		owner := m.options.Owner
		if owner == "" {
			owner = options.Username
		}
		return m.exec(ctx, s, ddl.CreateDatabase(options.Database, owner))
	})
	if err != nil {
		m.fail(err, "failed to migrate database", "database", options.Database)
	}
}

// migrateTables 建表并同步列，返回迁移后存在的表（小写）
func (m *Migrator) migrateTables(ctx context.Context, s *conn.Session, declared []schema.Table) (map[string]bool, error) {
	ctx, span := m.tracer.Start(ctx, "migration.Tables")
	defer span.End()

	in := NewIntrospector(s)
	names, err := in.Tables(ctx)
	if err != nil {
		return nil, err
	}
	live := make(map[string]bool, len(names))
	for _, name := range names {
		live[strings.ToLower(name)] = true
	}

	for _, table := range schema.SortByDependency(declared) {
		key := strings.ToLower(table.Name)
		if !live[key] {
			statement, err := ddl.CreateTable(table)
			if err != nil {
				m.fail(err, "failed to compile table", "table", table.Name)
				continue
			}
			if err := m.exec(ctx, s, statement); err == nil {
				live[key] = true
			}
			continue
		}
		if m.options.MigrateColumns {
			m.migrateColumns(ctx, in, s, table)
		}
	}

	if m.options.DropUndeclaredTables {
		keep := map[string]bool{}
		for _, table := range declared {
			keep[strings.ToLower(table.Name)] = true
			for _, relation := range table.Relations {
				if relation.Type == schema.ManyToMany {
					keep[strings.ToLower(relation.JunctionTable())] = true
				}
			}
		}
		for _, name := range names {
			if keep[strings.ToLower(name)] {
				continue
			}
			if err := m.exec(ctx, s, ddl.DropTable(name)); err == nil {
				delete(live, strings.ToLower(name))
			}
		}
	}
	return live, nil
}

func (m *Migrator) migrateColumns(ctx context.Context, in *Introspector, s *conn.Session, table schema.Table) {
	liveColumns, err := in.Columns(ctx, table.Name)
	if err != nil {
		m.fail(err, "failed to introspect columns", "table", table.Name)
		return
	}

	for _, live := range liveColumns {
		if schema.IndexOf(table.Columns, live.Name) < 0 {
			_ = m.exec(ctx, s, ddl.DropColumn(table.Name, live.Name))
		}
	}

	for _, column := range table.Columns {
		i := -1
		for j := range liveColumns {
			if strings.EqualFold(liveColumns[j].Name, column.Name) {
				i = j
				break
			}
		}
		if i < 0 {
			_ = m.exec(ctx, s, ddl.AddColumn(table.Name, column))
			continue
		}
		m.migrateColumn(ctx, in, s, table.Name, column, liveColumns[i])
	}
}

// declaredSize 未指定长度的 CHAR 在数据库中记录为 1
func declaredSize(column schema.Column) int {
	if column.Type == schema.Char && column.Size <= 0 {
		return 1
	}
	return column.Size
}

// migrateColumn 同步长度、可空性和默认值，类型不一致只记录日志
func (m *Migrator) migrateColumn(ctx context.Context, in *Introspector, s *conn.Session, table string, column schema.Column, live LiveColumn) {
	if live.Known && live.Type != column.Type {
		m.logger.WarnContext(ctx, "column type differs, not altered",
			"table", table, "column", column.Name, "declared", column.Type.String(), "live", live.RawType)
	} else if column.Type.HasSize() && live.Size != declaredSize(column) {
		_ = m.exec(ctx, s, ddl.AlterColumnType(table, column))
	}

	if !column.PrimaryKey {
		switch {
		case !column.Nullable && live.Nullable:
			hasNull, err := in.HasNullData(ctx, table, column.Name)
			if err != nil {
				m.fail(err, "failed to check null data", "table", table, "column", column.Name)
			} else if hasNull {
				m.logger.WarnContext(ctx, "column has null data, not set to not null", "table", table, "column", column.Name)
			} else {
				_ = m.exec(ctx, s, ddl.SetNotNull(table, column.Name))
			}
		case column.Nullable && !live.Nullable:
			_ = m.exec(ctx, s, ddl.DropNotNull(table, column.Name))
		}
	}

	if column.IsAutoGenerated() || live.Identity {
		return
	}
	if column.HasDefault() {
		if !ddl.DefaultsEqual(column, live.Default) {
			_ = m.exec(ctx, s, ddl.SetDefault(table, column))
		}
	} else if live.Default != "" {
		_ = m.exec(ctx, s, ddl.DropDefault(table, column.Name))
	}
}

func (m *Migrator) migrateRelations(ctx context.Context, s *conn.Session, declared []schema.Table, live map[string]bool) {
	ctx, span := m.tracer.Start(ctx, "migration.Relations")
	defer span.End()

	in := NewIntrospector(s)
	for _, table := range declared {
		for _, relation := range table.Relations {
			if err := relation.Validate(); err != nil {
				m.fail(err, "skip invalid relation", "table", table.Name)
				continue
			}
			if !live[strings.ToLower(relation.BaseTable)] || !live[strings.ToLower(relation.TopTable)] {
				m.logger.WarnContext(ctx, "relation table missing, skipped", "relation", relation.String())
				continue
			}
			if relation.Type == schema.ManyToMany && live[strings.ToLower(relation.JunctionTable())] {
				continue
			}
			if err := m.migrateRelation(ctx, in, s, relation); err != nil {
				m.fail(err, "failed to migrate relation", "relation", relation.String())
			}
		}
	}
}

// migrateRelation 一个关系的所有语句在同一事务中执行，已存在的约束跳过
func (m *Migrator) migrateRelation(ctx context.Context, in *Introspector, s *conn.Session, relation schema.Relation) error {
	statements, err := ddl.Relation(relation)
	if err != nil {
		return err
	}

	var pending []string
	for _, statement := range statements {
		if statement.Constraint != "" {
			exists, err := in.ConstraintExists(ctx, statement.Constraint)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
		}
		pending = append(pending, statement.SQL)
	}
	if len(pending) == 0 {
		return nil
	}

	if m.options.DryRun {
		for _, statement := range pending {
			m.plan(ctx, statement)
		}
		return nil
	}

	return s.WithTx(ctx, func(tx *conn.Session) error {
		for _, statement := range pending {
			m.statements = append(m.statements, statement)
			if _, err := tx.Exec(ctx, statement); err != nil {
				return err
			}
			m.logger.InfoContext(ctx, "executed", "sql", statement)
		}
		return nil
	})
}

// exec 执行语句并记录，失败时记录错误后返回
func (m *Migrator) exec(ctx context.Context, s *conn.Session, statement string) error {
	if m.options.DryRun {
		m.plan(ctx, statement)
		return nil
	}
	m.statements = append(m.statements, statement)
	if _, err := s.Exec(ctx, statement); err != nil {
		m.fail(err, "statement failed", "sql", statement)
		return err
	}
	m.logger.InfoContext(ctx, "executed", "sql", statement)
	return nil
}

func (m *Migrator) plan(ctx context.Context, statement string) {
	m.statements = append(m.statements, statement)
	m.logger.InfoContext(ctx, "planned", "sql", statement)
}

func (m *Migrator) fail(err error, msg string, args ...any) {
	m.lastErr = err
	m.logger.Error(msg, append(args, "error", err)...)
}
