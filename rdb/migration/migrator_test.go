package migration

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hatlonely/qorm/log"
	"github.com/hatlonely/qorm/rdb/conn"
	"github.com/hatlonely/qorm/rdb/ddl"
	"github.com/hatlonely/qorm/rdb/schema"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/require"
)

func persons() schema.Table {
	return schema.Table{
		Name: "persons",
		Columns: []schema.Column{
			{Name: "id", Type: schema.Integer, PrimaryKey: true},
			{Name: "name", Type: schema.Varchar, Size: 64},
		},
	}
}

func addresses() schema.Table {
	return schema.Table{
		Name: "addresses",
		Columns: []schema.Column{
			{Name: "id", Type: schema.Integer, PrimaryKey: true},
			{Name: "person_id", Type: schema.Integer},
			{Name: "city", Type: schema.Text, Nullable: true},
		},
		Relations: []schema.Relation{{
			BaseTable: "addresses", TopTable: "persons",
			ForeignKey: "person_id", ReferenceKey: "id",
			Type: schema.OneToMany, OnDelete: schema.Cascade,
		}},
	}
}

func profiles() schema.Table {
	return schema.Table{
		Name: "profiles",
		Columns: []schema.Column{
			{Name: "id", Type: schema.Integer, PrimaryKey: true},
			{Name: "person_id", Type: schema.Integer},
		},
		Relations: []schema.Relation{{
			BaseTable: "profiles", TopTable: "persons",
			ForeignKey: "person_id", ReferenceKey: "id",
			Type: schema.OneToOne,
		}},
	}
}

type mocks struct {
	db    *sql.DB
	admin *sql.DB
	app   sqlmock.Sqlmock
	root  sqlmock.Sqlmock
}

func newMigrator(t *testing.T, options *Options) (*Migrator, *mocks) {
	db, app, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	admin, root, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
		_ = admin.Close()
	})

	c, err := conn.NewConnectionWithDB(db, admin, &conn.Options{Driver: conn.DriverPgx, Database: "app"})
	require.NoError(t, err)
	m := NewMigratorWithOptions(c, options)
	m.SetLogger(log.Discard())
	return m, &mocks{db: db, admin: admin, app: app, root: root}
}

func columnRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"column_name", "data_type", "character_maximum_length", "is_nullable", "column_default", "is_identity"})
}

func tableRows(names ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"table_name"})
	for _, name := range names {
		rows.AddRow(name)
	}
	return rows
}

func noRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"?column?"})
}

func oneRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"?column?"}).AddRow(1)
}

func expectLiveSchema(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(ddl.ListTables).WillReturnRows(tableRows("addresses", "persons"))
	mock.ExpectQuery(ddl.ListColumns).WithArgs("persons").WillReturnRows(columnRows().
		AddRow("id", "integer", nil, "NO", nil, "YES").
		AddRow("name", "character varying", int64(64), "NO", nil, "NO"))
	mock.ExpectQuery(ddl.ListColumns).WithArgs("addresses").WillReturnRows(columnRows().
		AddRow("id", "integer", nil, "NO", nil, "YES").
		AddRow("person_id", "integer", nil, "NO", nil, "NO").
		AddRow("city", "text", nil, "YES", nil, "NO"))
}

func TestMigrateEmptyDatabase(t *testing.T) {
	Convey("空库迁移：先建库，再按依赖顺序建表，最后加外键", t, func() {
		m, mock := newMigrator(t, nil)

		mock.root.ExpectQuery(ddl.ListDatabases).WillReturnRows(sqlmock.NewRows([]string{"datname"}).AddRow("postgres"))
		mock.root.ExpectExec(`CREATE DATABASE "app" WITH ENCODING = 'UTF8' CONNECTION LIMIT = -1 IS_TEMPLATE = False`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		mock.app.ExpectQuery(ddl.ListTables).WillReturnRows(tableRows())
		mock.app.ExpectExec(`CREATE TABLE IF NOT EXISTS "persons" ("id" INTEGER GENERATED ALWAYS AS IDENTITY PRIMARY KEY, "name" VARCHAR(64) NOT NULL)`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.app.ExpectExec(`CREATE TABLE IF NOT EXISTS "addresses" ("id" INTEGER GENERATED ALWAYS AS IDENTITY PRIMARY KEY, "person_id" INTEGER NOT NULL, "city" TEXT)`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.app.ExpectQuery(ddl.ConstraintExists).WithArgs("fk_addresses_persons_person_id").WillReturnRows(noRows())
		mock.app.ExpectBegin()
		mock.app.ExpectExec(`ALTER TABLE "addresses" ADD CONSTRAINT "fk_addresses_persons_person_id" FOREIGN KEY ("person_id") REFERENCES "persons" ("id") ON DELETE CASCADE ON UPDATE NO ACTION`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.app.ExpectCommit()

		err := m.Migrate(context.Background(), []schema.Table{addresses(), persons()})
		So(err, ShouldBeNil)
		So(m.LastError(), ShouldBeNil)
		So(m.Statements(), ShouldHaveLength, 4)
		So(mock.root.ExpectationsWereMet(), ShouldBeNil)
		So(mock.app.ExpectationsWereMet(), ShouldBeNil)
	})
}

func TestMigrateIdempotent(t *testing.T) {
	Convey("结构一致时第二次迁移不产生任何 DDL", t, func() {
		m, mock := newMigrator(t, nil)

		mock.root.ExpectQuery(ddl.ListDatabases).WillReturnRows(sqlmock.NewRows([]string{"datname"}).AddRow("postgres").AddRow("app"))
		expectLiveSchema(mock.app)
		mock.app.ExpectQuery(ddl.ConstraintExists).WithArgs("fk_addresses_persons_person_id").WillReturnRows(oneRow())

		err := m.Migrate(context.Background(), []schema.Table{addresses(), persons()})
		So(err, ShouldBeNil)
		So(m.Statements(), ShouldBeEmpty)
		So(mock.root.ExpectationsWereMet(), ShouldBeNil)
		So(mock.app.ExpectationsWereMet(), ShouldBeNil)
	})

	Convey("未指定长度的 CHAR 列在数据库中长度为 1，不重复修改类型", t, func() {
		options := DefaultOptions()
		options.CreateDatabase = false
		m, mock := newMigrator(t, options)

		table := schema.Table{
			Name: "codes",
			Columns: []schema.Column{
				{Name: "id", Type: schema.Integer, PrimaryKey: true},
				{Name: "flag", Type: schema.Char},
			},
		}

		mock.app.ExpectQuery(ddl.ListTables).WillReturnRows(tableRows("codes"))
		mock.app.ExpectQuery(ddl.ListColumns).WithArgs("codes").WillReturnRows(columnRows().
			AddRow("id", "integer", nil, "NO", nil, "YES").
			AddRow("flag", "character", int64(1), "NO", nil, "NO"))

		So(m.Migrate(context.Background(), []schema.Table{table}), ShouldBeNil)
		So(m.Statements(), ShouldBeEmpty)
		So(mock.app.ExpectationsWereMet(), ShouldBeNil)
	})

	Convey("指定长度的 CHAR 列长度不一致时修改类型", t, func() {
		options := DefaultOptions()
		options.CreateDatabase = false
		m, mock := newMigrator(t, options)

		table := schema.Table{
			Name: "codes",
			Columns: []schema.Column{
				{Name: "id", Type: schema.Integer, PrimaryKey: true},
				{Name: "flag", Type: schema.Char, Size: 2},
			},
		}

		mock.app.ExpectQuery(ddl.ListTables).WillReturnRows(tableRows("codes"))
		mock.app.ExpectQuery(ddl.ListColumns).WithArgs("codes").WillReturnRows(columnRows().
			AddRow("id", "integer", nil, "NO", nil, "YES").
			AddRow("flag", "character", int64(1), "NO", nil, "NO"))
		mock.app.ExpectExec(`ALTER TABLE "codes" ALTER COLUMN "flag" TYPE CHAR(2)`).WillReturnResult(sqlmock.NewResult(0, 0))

		So(m.Migrate(context.Background(), []schema.Table{table}), ShouldBeNil)
		So(m.Statements(), ShouldHaveLength, 1)
		So(mock.app.ExpectationsWereMet(), ShouldBeNil)
	})
}

func TestMigrateOneToOne(t *testing.T) {
	Convey("一对一关系在同一事务中先加唯一约束再加外键", t, func() {
		options := DefaultOptions()
		options.CreateDatabase = false
		options.MigrateColumns = false
		m, mock := newMigrator(t, options)

		mock.app.ExpectQuery(ddl.ListTables).WillReturnRows(tableRows("persons", "profiles"))
		mock.app.ExpectQuery(ddl.ConstraintExists).WithArgs("uq_profiles_person_id").WillReturnRows(noRows())
		mock.app.ExpectQuery(ddl.ConstraintExists).WithArgs("fk_profiles_persons_person_id").WillReturnRows(noRows())
		mock.app.ExpectBegin()
		mock.app.ExpectExec(`ALTER TABLE "profiles" ADD CONSTRAINT "uq_profiles_person_id" UNIQUE ("person_id")`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.app.ExpectExec(`ALTER TABLE "profiles" ADD CONSTRAINT "fk_profiles_persons_person_id" FOREIGN KEY ("person_id") REFERENCES "persons" ("id") ON DELETE NO ACTION ON UPDATE NO ACTION`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.app.ExpectCommit()

		So(m.Migrate(context.Background(), []schema.Table{persons(), profiles()}), ShouldBeNil)
		So(m.Statements(), ShouldHaveLength, 2)
		So(mock.app.ExpectationsWereMet(), ShouldBeNil)
	})

	Convey("关系语句失败时整体回滚并记录错误", t, func() {
		options := DefaultOptions()
		options.CreateDatabase = false
		options.MigrateColumns = false
		m, mock := newMigrator(t, options)

		mock.app.ExpectQuery(ddl.ListTables).WillReturnRows(tableRows("persons", "profiles"))
		mock.app.ExpectQuery(ddl.ConstraintExists).WithArgs("uq_profiles_person_id").WillReturnRows(noRows())
		mock.app.ExpectQuery(ddl.ConstraintExists).WithArgs("fk_profiles_persons_person_id").WillReturnRows(noRows())
		mock.app.ExpectBegin()
		mock.app.ExpectExec(`ALTER TABLE "profiles" ADD CONSTRAINT "uq_profiles_person_id" UNIQUE ("person_id")`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.app.ExpectExec(`ALTER TABLE "profiles" ADD CONSTRAINT "fk_profiles_persons_person_id" FOREIGN KEY ("person_id") REFERENCES "persons" ("id") ON DELETE NO ACTION ON UPDATE NO ACTION`).
			WillReturnError(errors.New("permission denied"))
		mock.app.ExpectRollback()

		err := m.Migrate(context.Background(), []schema.Table{persons(), profiles()})
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "permission denied")
		So(m.LastError(), ShouldEqual, err)
		So(mock.app.ExpectationsWereMet(), ShouldBeNil)
	})
}

func TestMigrateColumns(t *testing.T) {
	Convey("列同步", t, func() {
		options := DefaultOptions()
		options.CreateDatabase = false
		m, mock := newMigrator(t, options)

		table := schema.Table{
			Name: "persons",
			Columns: []schema.Column{
				{Name: "id", Type: schema.Integer, PrimaryKey: true},
				{Name: "name", Type: schema.Varchar, Size: 64},
				{Name: "email", Type: schema.Varchar, Size: 128, Nullable: true},
				{Name: "nickname", Type: schema.Text, Nullable: true},
				{Name: "score", Type: schema.Integer, Default: "0"},
				{Name: "title", Type: schema.Text},
			},
		}

		mock.app.ExpectQuery(ddl.ListTables).WillReturnRows(tableRows("persons"))
		mock.app.ExpectQuery(ddl.ListColumns).WithArgs("persons").WillReturnRows(columnRows().
			AddRow("id", "integer", nil, "NO", nil, "YES").
			AddRow("name", "character varying", int64(32), "YES", nil, "NO").
			AddRow("age", "integer", nil, "YES", nil, "NO").
			AddRow("nickname", "text", nil, "NO", "'x'::text", "NO").
			AddRow("score", "integer", nil, "NO", "1", "NO").
			AddRow("title", "text", nil, "YES", nil, "NO"))

		mock.app.ExpectExec(`ALTER TABLE "persons" DROP COLUMN "age"`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.app.ExpectExec(`ALTER TABLE "persons" ALTER COLUMN "name" TYPE VARCHAR(64)`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.app.ExpectQuery(`SELECT 1 FROM "persons" WHERE "name" IS NULL LIMIT 1`).WillReturnRows(noRows())
		mock.app.ExpectExec(`ALTER TABLE "persons" ALTER COLUMN "name" SET NOT NULL`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.app.ExpectExec(`ALTER TABLE IF EXISTS "persons" ADD COLUMN "email" VARCHAR(128)`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.app.ExpectExec(`ALTER TABLE "persons" ALTER COLUMN "nickname" DROP NOT NULL`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.app.ExpectExec(`ALTER TABLE "persons" ALTER COLUMN "nickname" DROP DEFAULT`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.app.ExpectExec(`ALTER TABLE "persons" ALTER COLUMN "score" SET DEFAULT 0`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.app.ExpectQuery(`SELECT 1 FROM "persons" WHERE "title" IS NULL LIMIT 1`).WillReturnRows(oneRow())

		So(m.Migrate(context.Background(), []schema.Table{table}), ShouldBeNil)
		So(m.Statements(), ShouldHaveLength, 7)
		So(mock.app.ExpectationsWereMet(), ShouldBeNil)
	})

	Convey("关闭列同步时只检查表是否存在", t, func() {
		options := DefaultOptions()
		options.CreateDatabase = false
		options.MigrateColumns = false
		m, mock := newMigrator(t, options)

		mock.app.ExpectQuery(ddl.ListTables).WillReturnRows(tableRows("persons"))
		So(m.Migrate(context.Background(), []schema.Table{persons()}), ShouldBeNil)
		So(m.Statements(), ShouldBeEmpty)
		So(mock.app.ExpectationsWereMet(), ShouldBeNil)
	})
}

func TestMigrateFailureContinues(t *testing.T) {
	Convey("建表失败记录错误后继续，缺表的关系被跳过", t, func() {
		options := DefaultOptions()
		options.CreateDatabase = false
		m, mock := newMigrator(t, options)

		mock.app.ExpectQuery(ddl.ListTables).WillReturnRows(tableRows())
		mock.app.ExpectExec(`CREATE TABLE IF NOT EXISTS "persons" ("id" INTEGER GENERATED ALWAYS AS IDENTITY PRIMARY KEY, "name" VARCHAR(64) NOT NULL)`).
			WillReturnError(errors.New("disk full"))
		mock.app.ExpectExec(`CREATE TABLE IF NOT EXISTS "addresses" ("id" INTEGER GENERATED ALWAYS AS IDENTITY PRIMARY KEY, "person_id" INTEGER NOT NULL, "city" TEXT)`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := m.Migrate(context.Background(), []schema.Table{persons(), addresses()})
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "disk full")
		So(mock.app.ExpectationsWereMet(), ShouldBeNil)
	})

	Convey("非法的表声明被跳过", t, func() {
		options := DefaultOptions()
		options.CreateDatabase = false
		m, mock := newMigrator(t, options)

		mock.app.ExpectQuery(ddl.ListTables).WillReturnRows(tableRows("persons"))
		mock.app.ExpectQuery(ddl.ListColumns).WithArgs("persons").WillReturnRows(columnRows().
			AddRow("id", "integer", nil, "NO", nil, "YES").
			AddRow("name", "character varying", int64(64), "NO", nil, "NO"))

		err := m.Migrate(context.Background(), []schema.Table{{Name: "empty"}, persons()})
		So(errors.Is(err, schema.ErrInvalidTable), ShouldBeTrue)
		So(mock.app.ExpectationsWereMet(), ShouldBeNil)
	})
}

func TestMigrateManyToMany(t *testing.T) {
	Convey("多对多关系创建关联表，关联表已存在时跳过", t, func() {
		students := schema.Table{
			Name:    "students",
			Columns: []schema.Column{{Name: "id", Type: schema.Integer, PrimaryKey: true}},
			Relations: []schema.Relation{{
				BaseTable: "students", TopTable: "courses",
				ForeignKey: "id", ReferenceKey: "id",
				Type: schema.ManyToMany,
			}},
		}
		courses := schema.Table{
			Name:    "courses",
			Columns: []schema.Column{{Name: "id", Type: schema.Integer, PrimaryKey: true}},
		}
		options := DefaultOptions()
		options.CreateDatabase = false
		options.MigrateColumns = false

		Convey("首次创建", func() {
			m, mock := newMigrator(t, options)
			mock.app.ExpectQuery(ddl.ListTables).WillReturnRows(tableRows("courses", "students"))
			mock.app.ExpectQuery(ddl.ConstraintExists).WithArgs("fk_students_courses_students_id").WillReturnRows(noRows())
			mock.app.ExpectQuery(ddl.ConstraintExists).WithArgs("fk_students_courses_courses_id").WillReturnRows(noRows())
			mock.app.ExpectBegin()
			mock.app.ExpectExec(`CREATE TABLE IF NOT EXISTS "students_courses" ("students_id" INTEGER NOT NULL, "courses_id" INTEGER NOT NULL, PRIMARY KEY ("students_id", "courses_id"))`).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.app.ExpectExec(`ALTER TABLE "students_courses" ADD CONSTRAINT "fk_students_courses_students_id" FOREIGN KEY ("students_id") REFERENCES "students" ("id") ON DELETE CASCADE`).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.app.ExpectExec(`ALTER TABLE "students_courses" ADD CONSTRAINT "fk_students_courses_courses_id" FOREIGN KEY ("courses_id") REFERENCES "courses" ("id") ON DELETE CASCADE`).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.app.ExpectCommit()

			So(m.Migrate(context.Background(), []schema.Table{students, courses}), ShouldBeNil)
			So(mock.app.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("关联表已存在，删除未声明表时保留关联表", func() {
			options.DropUndeclaredTables = true
			m, mock := newMigrator(t, options)
			mock.app.ExpectQuery(ddl.ListTables).WillReturnRows(tableRows("courses", "legacy", "students", "students_courses"))
			mock.app.ExpectExec(`DROP TABLE IF EXISTS "legacy"`).WillReturnResult(sqlmock.NewResult(0, 0))

			So(m.Migrate(context.Background(), []schema.Table{students, courses}), ShouldBeNil)
			So(m.Statements(), ShouldResemble, []string{`DROP TABLE IF EXISTS "legacy"`})
			So(mock.app.ExpectationsWereMet(), ShouldBeNil)
		})
	})
}

func TestMigrateDryRun(t *testing.T) {
	Convey("dry run 只生成语句不执行", t, func() {
		options := DefaultOptions()
		options.DryRun = true
		m, mock := newMigrator(t, options)

		mock.root.ExpectQuery(ddl.ListDatabases).WillReturnRows(sqlmock.NewRows([]string{"datname"}).AddRow("app"))
		mock.app.ExpectQuery(ddl.ListTables).WillReturnRows(tableRows())
		mock.app.ExpectQuery(ddl.ConstraintExists).WithArgs("fk_addresses_persons_person_id").WillReturnRows(noRows())

		So(m.Migrate(context.Background(), []schema.Table{addresses(), persons()}), ShouldBeNil)
		statements := m.Statements()
		So(statements, ShouldHaveLength, 3)
		So(statements[0], ShouldStartWith, `CREATE TABLE IF NOT EXISTS "persons"`)
		So(statements[1], ShouldStartWith, `CREATE TABLE IF NOT EXISTS "addresses"`)
		So(regexp.MustCompile(`^ALTER TABLE "addresses" ADD CONSTRAINT`).MatchString(statements[2]), ShouldBeTrue)
		So(mock.root.ExpectationsWereMet(), ShouldBeNil)
		So(mock.app.ExpectationsWereMet(), ShouldBeNil)
	})
}
