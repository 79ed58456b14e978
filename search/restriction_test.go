package search

import (
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

// codedDefinition 使用 code 作为 id 字段
type codedDefinition struct {
	definition
}

func (codedDefinition) IdentifierField() string { return "code" }

func TestRestrictionToSQL(t *testing.T) {
	Convey("ToSQL", t, func() {
		Convey("比较条件", func() {
			sql, args, err := Eq("age", 25).ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "age = ?")
			So(args, ShouldResemble, []any{25})

			sql, _, _ = Ne("age", 25).ToSQL()
			So(sql, ShouldEqual, "age <> ?")
			sql, _, _ = Ge("age", 25).ToSQL()
			So(sql, ShouldEqual, "age >= ?")
			sql, _, _ = Lt("age", 25).ToSQL()
			So(sql, ShouldEqual, "age < ?")
		})

		Convey("包含通配符的 Eq 按 LIKE 处理", func() {
			r := Eq("name", "asb%")
			So(r.Operator(), ShouldEqual, OpLike)
			sql, args, err := r.ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "name LIKE ?")
			So(args, ShouldResemble, []any{"asb%"})

			_, args, _ = Eq("name", "a*b").ToSQL()
			So(args, ShouldResemble, []any{"a%b"})
		})

		Convey("IN 与 NULL", func() {
			sql, args, err := In("state", "draft", "accepted").ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "state IN (?, ?)")
			So(args, ShouldResemble, []any{"draft", "accepted"})

			sql, _, _ = In("state").ToSQL()
			So(sql, ShouldEqual, "1=0")

			sql, args, _ = IsNull("parent").ToSQL()
			So(sql, ShouldEqual, "parent IS NULL")
			So(args, ShouldBeNil)
			sql, _, _ = IsNotNull("parent").ToSQL()
			So(sql, ShouldEqual, "parent IS NOT NULL")
		})

		Convey("组合条件", func() {
			sql, args, err := And(Eq("a", 1), Or(Gt("b", 2), Not(IsNull("c")))).ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "(a = ? AND (b > ? OR NOT (c IS NULL)))")
			So(args, ShouldResemble, []any{1, 2})

			sql, _, _ = And().ToSQL()
			So(sql, ShouldEqual, "1=1")
			sql, _, _ = Or().ToSQL()
			So(sql, ShouldEqual, "1=0")
			sql, _, _ = And(IDEq(definition{}, 3)).ToSQL()
			So(sql, ShouldEqual, "id = ?")
			sql, args, _ = IDEq(codedDefinition{}, 3).ToSQL()
			So(sql, ShouldEqual, "code = ?")
			So(args, ShouldResemble, []any{int64(3)})
		})

		Convey("非法字段名", func() {
			_, _, err := Eq("name; DROP TABLE x", 1).ToSQL()
			So(errors.Is(err, ErrIllegalArgument), ShouldBeTrue)
			_, _, err = And(Eq("ok", 1), IsNull("1bad")).ToSQL()
			So(err, ShouldNotBeNil)
		})
	})
}

func TestRestrictionToES(t *testing.T) {
	Convey("ToES", t, func() {
		So(Eq("status", "active").ToES(), ShouldResemble, map[string]any{
			"term": map[string]any{"status": "active"},
		})
		So(Gt("age", 18).ToES(), ShouldResemble, map[string]any{
			"range": map[string]any{"age": map[string]any{"gt": 18}},
		})
		So(Ne("age", 18).ToES(), ShouldResemble, map[string]any{
			"bool": map[string]any{"must_not": []any{map[string]any{"term": map[string]any{"age": 18}}}},
		})
		So(Like("name", "a_c%").ToES(), ShouldResemble, map[string]any{
			"wildcard": map[string]any{"name": "a?c*"},
		})
		So(In("state", "a", "b").ToES(), ShouldResemble, map[string]any{
			"terms": map[string]any{"state": []any{"a", "b"}},
		})
		So(IsNotNull("parent").ToES(), ShouldResemble, map[string]any{
			"exists": map[string]any{"field": "parent"},
		})
		So(And().ToES(), ShouldResemble, map[string]any{"match_all": map[string]any{}})
		So(Or(Eq("a", 1)).ToES(), ShouldResemble, map[string]any{
			"bool": map[string]any{
				"should":               []any{map[string]any{"term": map[string]any{"a": 1}}},
				"minimum_should_match": 1,
			},
		})
	})
}

func TestRestrictionToMongo(t *testing.T) {
	Convey("ToMongo", t, func() {
		m, err := Eq("status", "active").ToMongo()
		So(err, ShouldBeNil)
		So(m, ShouldResemble, map[string]any{"status": "active"})

		m, _ = Le("age", 30).ToMongo()
		So(m, ShouldResemble, map[string]any{"age": map[string]any{"$lte": 30}})

		m, _ = Like("name", "Mr.%").ToMongo()
		So(m, ShouldResemble, map[string]any{"name": map[string]any{"$regex": `^Mr\..*$`}})

		m, _ = IsNull("parent").ToMongo()
		So(m, ShouldResemble, map[string]any{"parent": map[string]any{"$eq": nil}})

		m, _ = And().ToMongo()
		So(m, ShouldResemble, map[string]any{})

		m, _ = Or(Eq("a", 1), Not(Eq("b", 2))).ToMongo()
		So(m, ShouldResemble, map[string]any{"$or": []any{
			map[string]any{"a": 1},
			map[string]any{"$nor": []any{map[string]any{"b": 2}}},
		}})

		So(And(Eq("a", 1), In("b", 2)).Fields(), ShouldResemble, []string{"a", "b"})
	})
}

func TestNilRestriction(t *testing.T) {
	Convey("缺失的子条件", t, func() {
		Convey("And 和 Or 忽略 nil", func() {
			r := And(Eq("a", 1), nil, Or(nil, Gt("b", 2)))
			So(r.Fields(), ShouldResemble, []string{"a", "b"})
			sql, args, err := r.ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "(a = ? AND b > ?)")
			So(args, ShouldResemble, []any{1, 2})

			sql, _, err = (&LogicalRestriction{Op: OpOr, Children: []Restriction{nil}}).ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "1=0")
		})

		Convey("Not(nil) 不能翻译", func() {
			r := Not(nil)
			So(r.Fields(), ShouldBeNil)
			_, _, err := r.ToSQL()
			So(errors.Is(err, ErrNilArgument), ShouldBeTrue)
			_, err = r.ToMongo()
			So(errors.Is(err, ErrNilArgument), ShouldBeTrue)
			So(r.ToES(), ShouldResemble, map[string]any{
				"bool": map[string]any{"must_not": []any{map[string]any{"match_all": map[string]any{}}}},
			})
		})

		Convey("RestrictedWith 拒绝嵌套的 nil", func() {
			c := NewCriteria(definition{})
			_, err := c.RestrictedWith(Not(nil))
			So(errors.Is(err, ErrNilArgument), ShouldBeTrue)
			_, err = c.RestrictedWith(And(Eq("a", 1), Or(Not(nil))))
			So(errors.Is(err, ErrNilArgument), ShouldBeTrue)

			n, err := c.RestrictedWith(And(Eq("a", 1), nil))
			So(err, ShouldBeNil)
			So(len(n.Restrictions()), ShouldEqual, 1)
		})
	})
}
