package ddl

import (
	"testing"

	"github.com/hatlonely/qorm/rdb/schema"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestColumnDefinition(t *testing.T) {
	Convey("测试列定义", t, func() {
		Convey("自增主键", func() {
			So(ColumnDefinition(schema.Column{Name: "id", Type: schema.Integer, PrimaryKey: true}),
				ShouldEqual, `"id" INTEGER GENERATED ALWAYS AS IDENTITY PRIMARY KEY`)
		})

		Convey("带默认值的主键不自增", func() {
			So(ColumnDefinition(schema.Column{Name: "code", Type: schema.Varchar, Size: 8, PrimaryKey: true, Default: "x"}),
				ShouldEqual, `"code" VARCHAR(8) PRIMARY KEY DEFAULT 'x'`)
		})

		Convey("长度只用于 char 和 varchar", func() {
			So(ColumnDefinition(schema.Column{Name: "name", Type: schema.Varchar, Size: 64}), ShouldEqual, `"name" VARCHAR(64) NOT NULL`)
			So(ColumnDefinition(schema.Column{Name: "flag", Type: schema.Char, Size: 1, Nullable: true}), ShouldEqual, `"flag" CHAR(1)`)
			So(ColumnDefinition(schema.Column{Name: "bio", Type: schema.Text, Size: 64, Nullable: true}), ShouldEqual, `"bio" TEXT`)
		})

		Convey("数值和布尔默认值不加引号", func() {
			So(ColumnDefinition(schema.Column{Name: "age", Type: schema.SmallInt, Default: "18"}), ShouldEqual, `"age" SMALLINT NOT NULL DEFAULT 18`)
			So(ColumnDefinition(schema.Column{Name: "active", Type: schema.Boolean, Default: "true"}), ShouldEqual, `"active" BOOLEAN NOT NULL DEFAULT true`)
			So(ColumnDefinition(schema.Column{Name: "score", Type: schema.Double, Default: "1.5"}), ShouldEqual, `"score" DOUBLE PRECISION NOT NULL DEFAULT 1.5`)
		})

		Convey("其他类型默认值加引号", func() {
			So(ColumnDefinition(schema.Column{Name: "city", Type: schema.Text, Default: "O'Neil"}), ShouldEqual, `"city" TEXT NOT NULL DEFAULT 'O''Neil'`)
			So(ColumnDefinition(schema.Column{Name: "born", Type: schema.Date, Nullable: true, Default: "2000-01-01"}), ShouldEqual, `"born" DATE DEFAULT '2000-01-01'`)
		})

		Convey("表达式默认值原样输出", func() {
			So(ColumnDefinition(schema.Column{Name: "created_at", Type: schema.Timestamp, Default: "CURRENT_TIMESTAMP", DefaultExpr: true}),
				ShouldEqual, `"created_at" TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP`)
		})
	})
}

func TestTypeName(t *testing.T) {
	Convey("测试类型映射", t, func() {
		So(TypeName(schema.Integer, 0), ShouldEqual, "INTEGER")
		So(TypeName(schema.BigInt, 0), ShouldEqual, "BIGINT")
		So(TypeName(schema.Real, 0), ShouldEqual, "REAL")
		So(TypeName(schema.Double, 0), ShouldEqual, "DOUBLE PRECISION")
		So(TypeName(schema.Varchar, 0), ShouldEqual, "VARCHAR")
		So(TypeName(schema.Char, 3), ShouldEqual, "CHAR(3)")
		So(TypeName(schema.Date, 0), ShouldEqual, "DATE")
		So(TypeName(schema.Timestamp, 0), ShouldEqual, "TIMESTAMP")
	})
}

func TestCreateTable(t *testing.T) {
	Convey("测试建表", t, func() {
		sql, err := CreateTable(schema.Table{
			Name: "persons",
			Columns: []schema.Column{
				{Name: "id", Type: schema.Integer, PrimaryKey: true},
				{Name: "name", Type: schema.Varchar, Size: 64},
				{Name: "email", Type: schema.Text, Nullable: true},
			},
		})
		So(err, ShouldBeNil)
		So(sql, ShouldEqual, `CREATE TABLE IF NOT EXISTS "persons" ("id" INTEGER GENERATED ALWAYS AS IDENTITY PRIMARY KEY, "name" VARCHAR(64) NOT NULL, "email" TEXT)`)

		_, err = CreateTable(schema.Table{Name: "empty"})
		So(errors.Is(err, schema.ErrInvalidTable), ShouldBeTrue)
	})
}

func TestAlterStatements(t *testing.T) {
	Convey("测试修改语句", t, func() {
		age := schema.Column{Name: "age", Type: schema.Integer, Default: "0"}
		So(AddColumn("persons", age), ShouldEqual, `ALTER TABLE IF EXISTS "persons" ADD COLUMN "age" INTEGER NOT NULL DEFAULT 0`)
		So(DropColumn("persons", "age"), ShouldEqual, `ALTER TABLE "persons" DROP COLUMN "age"`)
		So(DropTable("persons"), ShouldEqual, `DROP TABLE IF EXISTS "persons"`)
		So(AlterColumnType("persons", schema.Column{Name: "name", Type: schema.Varchar, Size: 128}), ShouldEqual, `ALTER TABLE "persons" ALTER COLUMN "name" TYPE VARCHAR(128)`)
		So(SetNotNull("persons", "name"), ShouldEqual, `ALTER TABLE "persons" ALTER COLUMN "name" SET NOT NULL`)
		So(DropNotNull("persons", "name"), ShouldEqual, `ALTER TABLE "persons" ALTER COLUMN "name" DROP NOT NULL`)
		So(SetDefault("persons", age), ShouldEqual, `ALTER TABLE "persons" ALTER COLUMN "age" SET DEFAULT 0`)
		So(DropDefault("persons", "age"), ShouldEqual, `ALTER TABLE "persons" ALTER COLUMN "age" DROP DEFAULT`)
		So(CreateDatabase("app", "postgres"), ShouldEqual, `CREATE DATABASE "app" WITH OWNER = "postgres" ENCODING = 'UTF8' CONNECTION LIMIT = -1 IS_TEMPLATE = False`)
		So(CreateDatabase("app", ""), ShouldEqual, `CREATE DATABASE "app" WITH ENCODING = 'UTF8' CONNECTION LIMIT = -1 IS_TEMPLATE = False`)
		So(Quote(`we"ird`), ShouldEqual, `"we""ird"`)
	})
}

func TestRelation(t *testing.T) {
	Convey("测试关系约束", t, func() {
		Convey("一对多", func() {
			statements, err := Relation(schema.Relation{
				BaseTable: "addresses", TopTable: "persons", ForeignKey: "person_id", ReferenceKey: "id",
				Type: schema.OneToMany, OnDelete: schema.Cascade,
			})
			So(err, ShouldBeNil)
			So(len(statements), ShouldEqual, 1)
			So(statements[0].Constraint, ShouldEqual, "fk_addresses_persons_person_id")
			So(statements[0].SQL, ShouldEqual, `ALTER TABLE "addresses" ADD CONSTRAINT "fk_addresses_persons_person_id" FOREIGN KEY ("person_id") REFERENCES "persons" ("id") ON DELETE CASCADE ON UPDATE NO ACTION`)
		})

		Convey("多对一和一对多方向一致", func() {
			r := schema.Relation{BaseTable: "addresses", TopTable: "persons", ForeignKey: "person_id", ReferenceKey: "id", Type: schema.ManyToOne}
			many, err := Relation(r)
			So(err, ShouldBeNil)
			r.Type = schema.OneToMany
			one, _ := Relation(r)
			So(many, ShouldResemble, one)
		})

		Convey("一对一先加唯一约束", func() {
			statements, err := Relation(schema.Relation{
				BaseTable: "profiles", TopTable: "persons", ForeignKey: "person_id", ReferenceKey: "id",
				Type: schema.OneToOne, OnDelete: schema.SetNull, OnUpdate: schema.Restrict,
			})
			So(err, ShouldBeNil)
			So(len(statements), ShouldEqual, 2)
			So(statements[0].SQL, ShouldEqual, `ALTER TABLE "profiles" ADD CONSTRAINT "uq_profiles_person_id" UNIQUE ("person_id")`)
			So(statements[0].Constraint, ShouldEqual, "uq_profiles_person_id")
			So(statements[1].SQL, ShouldEqual, `ALTER TABLE "profiles" ADD CONSTRAINT "fk_profiles_persons_person_id" FOREIGN KEY ("person_id") REFERENCES "persons" ("id") ON DELETE SET NULL ON UPDATE RESTRICT`)
		})

		Convey("多对多生成关联表", func() {
			statements, err := Relation(schema.Relation{
				BaseTable: "students", TopTable: "courses", ForeignKey: "id", ReferenceKey: "id", Type: schema.ManyToMany,
			})
			So(err, ShouldBeNil)
			So(len(statements), ShouldEqual, 3)
			So(statements[0].SQL, ShouldEqual, `CREATE TABLE IF NOT EXISTS "students_courses" ("students_id" INTEGER NOT NULL, "courses_id" INTEGER NOT NULL, PRIMARY KEY ("students_id", "courses_id"))`)
			So(statements[0].Constraint, ShouldEqual, "")
			So(statements[1].SQL, ShouldEqual, `ALTER TABLE "students_courses" ADD CONSTRAINT "fk_students_courses_students_id" FOREIGN KEY ("students_id") REFERENCES "students" ("id") ON DELETE CASCADE`)
			So(statements[2].SQL, ShouldEqual, `ALTER TABLE "students_courses" ADD CONSTRAINT "fk_students_courses_courses_id" FOREIGN KEY ("courses_id") REFERENCES "courses" ("id") ON DELETE CASCADE`)
		})

		Convey("非法关系在生成 DDL 前被拒绝", func() {
			_, err := Relation(schema.Relation{BaseTable: "addresses", TopTable: "persons"})
			So(errors.Is(err, schema.ErrInvalidRelation), ShouldBeTrue)
		})
	})
}

func TestCatalog(t *testing.T) {
	Convey("测试目录解析", t, func() {
		Convey("类型", func() {
			typ, ok := ParseCatalogType("character varying")
			So(ok, ShouldBeTrue)
			So(typ, ShouldEqual, schema.Varchar)
			typ, ok = ParseCatalogType("timestamp without time zone")
			So(ok, ShouldBeTrue)
			So(typ, ShouldEqual, schema.Timestamp)
			_, ok = ParseCatalogType("jsonb")
			So(ok, ShouldBeFalse)
		})

		Convey("默认值规整", func() {
			cases := [][2]string{
				{"", ""},
				{"0", "0"},
				{"'-1'::integer", "-1"},
				{"(-1)", "-1"},
				{"true", "true"},
				{"'abc'::character varying", "abc"},
				{"'O''Neil'::text", "O'Neil"},
				{"'2000-01-01'::date", "2000-01-01"},
				{"CURRENT_TIMESTAMP", "CURRENT_TIMESTAMP"},
				{"'x'::character varying(10)", "x"},
				{"'2000-01-01'::timestamp without time zone", "2000-01-01"},
			}
			for _, c := range cases {
				got, serial := NormalizeDefault(c[0])
				So(serial, ShouldBeFalse)
				So(got, ShouldEqual, c[1])
			}

			got, serial := NormalizeDefault("nextval('persons_id_seq'::regclass)")
			So(serial, ShouldBeTrue)
			So(got, ShouldEqual, "")
		})

		Convey("默认值比较", func() {
			So(DefaultsEqual(schema.Column{Type: schema.Boolean, Default: "TRUE"}, "true"), ShouldBeTrue)
			So(DefaultsEqual(schema.Column{Type: schema.Timestamp, Default: "current_timestamp", DefaultExpr: true}, "CURRENT_TIMESTAMP"), ShouldBeTrue)
			So(DefaultsEqual(schema.Column{Type: schema.Text, Default: "abc"}, "abc"), ShouldBeTrue)
			So(DefaultsEqual(schema.Column{Type: schema.Text, Default: "abc"}, "ABC"), ShouldBeFalse)
		})

		So(HasNullData("persons", "name"), ShouldEqual, `SELECT 1 FROM "persons" WHERE "name" IS NULL LIMIT 1`)
	})
}
