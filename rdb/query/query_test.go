package query

import (
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestColumn(t *testing.T) {
	Convey("测试列名引用", t, func() {
		c, err := Column("name")
		So(err, ShouldBeNil)
		So(c, ShouldEqual, `"name"`)

		c, err = Column("persons.name")
		So(err, ShouldBeNil)
		So(c, ShouldEqual, `"persons"."name"`)

		c, err = Column(`persons.*`)
		So(err, ShouldBeNil)
		So(c, ShouldEqual, `"persons".*`)

		_, err = Column(" ")
		So(errors.Is(err, ErrEmptyField), ShouldBeTrue)
	})
}

func TestLeafQuery(t *testing.T) {
	Convey("测试叶子节点", t, func() {
		Convey("TermQuery", func() {
			sql, args, err := Term("status", "active").ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, `"status" = ?`)
			So(args, ShouldResemble, []any{"active"})

			sql, args, err = Term("deleted_at", nil).ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, `"deleted_at" IS NULL`)
			So(args, ShouldBeEmpty)
		})

		Convey("TermsQuery", func() {
			sql, args, err := Terms("id", 1, 2, 3).ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, `"id" IN (?, ?, ?)`)
			So(args, ShouldResemble, []any{1, 2, 3})

			sql, _, err = Terms("id").ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "1=0")
		})

		Convey("RangeQuery", func() {
			sql, args, err := (&RangeQuery{Field: "age", Gte: 18, Lt: 65}).ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, `"age" >= ? AND "age" < ?`)
			So(args, ShouldResemble, []any{18, 65})

			sql, args, err = (&RangeQuery{Field: "age"}).ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "1=1")
			So(args, ShouldBeEmpty)
		})

		Convey("MatchQuery 转义通配符", func() {
			sql, args, err := Match("name", "50%_off").ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, `LOWER("name") LIKE LOWER(?) ESCAPE '\'`)
			So(args, ShouldResemble, []any{`%50\%\_off%`})
		})

		Convey("PrefixQuery", func() {
			sql, args, err := Prefix("name", "Al").ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, `"name" LIKE ? ESCAPE '\'`)
			So(args, ShouldResemble, []any{"Al%"})
		})

		Convey("WildcardQuery", func() {
			sql, args, err := Wildcard("email", "*@example.?om").ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, `"email" LIKE ? ESCAPE '\'`)
			So(args, ShouldResemble, []any{`%@example._om`})
		})

		Convey("RegexpQuery", func() {
			sql, args, err := Regexp("name", "^A.*").ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, `"name" ~ ?`)
			So(args, ShouldResemble, []any{"^A.*"})
		})

		Convey("ExistsQuery", func() {
			sql, _, err := Exists("email").ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, `"email" IS NOT NULL`)
		})

		Convey("RawQuery", func() {
			sql, args, err := Raw("age > ? OR age IS NULL", 3).ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "(age > ? OR age IS NULL)")
			So(args, ShouldResemble, []any{3})

			_, _, err = Raw("").ToSQL()
			So(err, ShouldNotBeNil)
		})

		Convey("空字段报错", func() {
			for _, q := range []Query{Term("", 1), Terms(""), Match("", "x"), Prefix("", "x"), Wildcard("", "x"), Regexp("", "x"), Exists(""), &RangeQuery{Gt: 1}} {
				_, _, err := q.ToSQL()
				So(err, ShouldNotBeNil)
			}
		})
	})
}

func TestBoolQuery(t *testing.T) {
	Convey("测试 BoolQuery", t, func() {
		Convey("空查询", func() {
			sql, args, err := (&BoolQuery{}).ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "1=1")
			So(args, ShouldBeEmpty)
		})

		Convey("组合 must/filter/should/must_not", func() {
			q := &BoolQuery{
				Must:    []Query{Term("status", "active")},
				Filter:  []Query{&RangeQuery{Field: "age", Gte: 18}},
				Should:  []Query{Term("country_id", 1), Term("country_id", 2)},
				MustNot: []Query{Exists("deleted_at")},
			}
			sql, args, err := q.ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, `("status" = ?) AND ("age" >= ?) AND ("country_id" = ? OR "country_id" = ?) AND (NOT ("deleted_at" IS NOT NULL))`)
			So(args, ShouldResemble, []any{"active", 18, 1, 2})
		})

		Convey("MinShouldMatch 计数", func() {
			two := 2
			q := &BoolQuery{
				Should:         []Query{Term("a", 1), Term("b", 2), Term("c", 3)},
				MinShouldMatch: &two,
			}
			sql, args, err := q.ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, `(CASE WHEN ("a" = ?) THEN 1 ELSE 0 END + CASE WHEN ("b" = ?) THEN 1 ELSE 0 END + CASE WHEN ("c" = ?) THEN 1 ELSE 0 END) >= 2`)
			So(args, ShouldResemble, []any{1, 2, 3})
		})

		Convey("嵌套与辅助函数", func() {
			q := And(Term("a", 1), Or(Term("b", 2), Not(Term("c", 3))))
			sql, args, err := q.ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, `("a" = ? AND ("b" = ? OR (NOT ("c" = ?))))`)
			So(args, ShouldResemble, []any{1, 2, 3})
			So(q.Type(), ShouldEqual, QueryTypeBool)
		})

		Convey("子查询错误向上传递", func() {
			_, _, err := And(Term("", 1)).ToSQL()
			So(err, ShouldNotBeNil)
		})
	})
}
