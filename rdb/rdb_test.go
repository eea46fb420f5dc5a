package rdb

import (
	"context"
	"testing"

	"github.com/hatlonely/qorm/log"
	"github.com/hatlonely/qorm/rdb/conn"
	"github.com/hatlonely/qorm/rdb/mapping"
	"github.com/hatlonely/qorm/rdb/schema"
	"github.com/stretchr/testify/require"
)

type Country struct {
	ID   int64
	Name string
}

func (c *Country) Configure(b *mapping.Builder) {
	b.ToTable("countries")
	b.Property(&c.ID, "id", mapping.PrimaryKey())
	b.Property(&c.Name, "name", mapping.Size(64))
}

type Person struct {
	ID        int64
	Name      string
	Age       int
	CountryID int64
}

func (p *Person) Configure(b *mapping.Builder) {
	b.ToTable("persons")
	b.Property(&p.ID, "id", mapping.PrimaryKey())
	b.Property(&p.Name, "name", mapping.Size(64))
	b.Property(&p.Age, "age")
	b.Property(&p.CountryID, "country_id")
}

func (p *Person) CreateRelations(b *mapping.Builder) {
	b.Relation("countries", schema.ManyToOne, "country_id", "id")
}

type Student struct {
	ID   int64
	Name string
}

func (s *Student) Configure(b *mapping.Builder) {
	b.ToTable("students")
	b.Property(&s.ID, "id", mapping.PrimaryKey())
	b.Property(&s.Name, "name")
}

func (s *Student) CreateRelations(b *mapping.Builder) {
	b.Relation("courses", schema.ManyToMany, "id", "id")
}

type Course struct {
	ID    int64
	Title string
}

func (c *Course) Configure(b *mapping.Builder) {
	b.ToTable("courses")
	b.Property(&c.ID, "id", mapping.PrimaryKey())
	b.Property(&c.Title, "title")
}

// countries 没有主键约束，用于验证一个外键匹配多条关联记录的情况
var fixture = []string{
	`CREATE TABLE "countries" ("id" INTEGER, "name" TEXT NOT NULL)`,
	`CREATE TABLE "persons" ("id" INTEGER PRIMARY KEY, "name" TEXT NOT NULL, "age" INTEGER NOT NULL, "country_id" INTEGER)`,
	`CREATE TABLE "students" ("id" INTEGER PRIMARY KEY, "name" TEXT)`,
	`CREATE TABLE "courses" ("id" INTEGER PRIMARY KEY, "title" TEXT)`,
	`CREATE TABLE "students_courses" ("students_id" INTEGER NOT NULL, "courses_id" INTEGER NOT NULL, PRIMARY KEY ("students_id", "courses_id"))`,
	`INSERT INTO "countries" ("id", "name") VALUES (1, 'China'), (1, 'PRC'), (2, 'Japan')`,
	`INSERT INTO "persons" ("id", "name", "age", "country_id") VALUES (1, 'alice', 30, 1), (2, 'bob', 25, 1), (3, 'carol', 35, 2), (4, 'dave', 40, 3)`,
	`INSERT INTO "students" ("id", "name") VALUES (1, 'sam'), (2, 'tom')`,
	`INSERT INTO "courses" ("id", "title") VALUES (1, 'math'), (2, 'art')`,
	`INSERT INTO "students_courses" ("students_id", "courses_id") VALUES (1, 1), (1, 2), (2, 2)`,
}

type testSets struct {
	ctx       *Context
	countries *Set[Country]
	persons   *Set[Person]
	students  *Set[Student]
	courses   *Set[Course]
}

func newTestContext(t *testing.T) *testSets {
	c, err := conn.NewConnectionWithOptions(&conn.Options{Driver: conn.DriverSqlite3, Database: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	err = c.Do(context.Background(), func(s *conn.Session) error {
		for _, statement := range fixture {
			if _, err := s.Exec(context.Background(), statement); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	ctx := NewContextWithConnection(c, nil)
	ctx.SetLogger(log.Discard())
	return &testSets{
		ctx:       ctx,
		countries: MustNewSet[Country](ctx),
		persons:   MustNewSet[Person](ctx),
		students:  MustNewSet[Student](ctx),
		courses:   MustNewSet[Course](ctx),
	}
}
