package executor

import (
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/hatlonely/entmap/search"
)

func TestMongoTranslation(t *testing.T) {
	Convey("过滤器", t, func() {
		c := mustCriteria(search.NewCriteria(definition{}).RestrictedWith(search.Eq("state", "accepted")))
		c = mustCriteria(c.RestrictedWith(search.Ge("quantity", 5)))

		table, filter, err := mongoFilter(c)
		So(err, ShouldBeNil)
		So(table, ShouldEqual, "sales_order")
		So(filter, ShouldResemble, bson.M{"$and": []any{
			map[string]any{"state": "accepted"},
			map[string]any{"quantity": map[string]any{"$gte": 5}},
		}})

		_, filter, err = mongoFilter(search.NewCriteria(definition{}))
		So(err, ShouldBeNil)
		So(filter, ShouldResemble, bson.M{})
	})

	Convey("排序分页和投影", t, func() {
		c := mustCriteria(search.NewCriteria(definition{}).OrderBy(search.Desc("quantity")))
		c = mustCriteria(c.WithFirstResult(5))
		c = mustCriteria(c.WithMaxResults(10))
		c = c.WithGridDefinition(&search.GridDefinition{Columns: []string{"number", "id"}})

		opts, err := mongoFindOptions(c)
		So(err, ShouldBeNil)
		So(opts.Sort, ShouldResemble, bson.D{{Key: "quantity", Value: -1}})
		So(*opts.Skip, ShouldEqual, 5)
		So(*opts.Limit, ShouldEqual, 10)
		So(opts.Projection, ShouldResemble, bson.D{{Key: "id", Value: 1}, {Key: "number", Value: 1}})

		opts, err = mongoFindOptions(search.NewCriteria(definition{}))
		So(err, ShouldBeNil)
		So(opts.Sort, ShouldResemble, bson.D{{Key: "id", Value: 1}})
		So(opts.Projection, ShouldBeNil)
	})

	Convey("不支持的条件", t, func() {
		c := mustCriteria(search.NewCriteria(definition{}).RestrictedWith(&search.CompareRestriction{Field: "a", Op: search.OpLike, Value: 1}))
		_, _, err := mongoFilter(c)
		So(errors.Is(err, search.ErrIllegalArgument), ShouldBeTrue)

		_, _, err = mongoFilter(search.NewCriteria(definition{table: "a b"}))
		So(errors.Is(err, search.ErrIllegalArgument), ShouldBeTrue)
	})
}
