package executor

import (
	"context"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/hatlonely/entmap/search"
)

type indexedExecutor interface {
	Executor
	Indexer
}

// testIndexer 写入的记录能被查询和计数看到
func testIndexer(e indexedExecutor) {
	ctx := context.Background()
	criteria := search.NewCriteria(definition{})
	byNumber := func(number string) *search.Criteria {
		return mustCriteria(criteria.RestrictedWith(search.Eq("number", number)))
	}

	Convey("新增记录", func() {
		So(e.Upsert(ctx, definition{}, Record{"id": int64(9), "number": "D-1", "quantity": 4, "state": "draft"}), ShouldBeNil)
		page, err := e.Find(ctx, byNumber("D-1"))
		So(err, ShouldBeNil)
		So(page.Total, ShouldEqual, 1)
		id, err := RecordID(page.Entities[0], "id")
		So(err, ShouldBeNil)
		So(id, ShouldEqual, 9)

		n, err := e.Count(ctx, criteria)
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 6)
	})

	Convey("按 id 覆盖已有记录", func() {
		So(e.Upsert(ctx, definition{}, Record{"id": int64(1), "number": "A-9", "quantity": 3, "state": "accepted"}), ShouldBeNil)
		n, err := e.Count(ctx, byNumber("A-1"))
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 0)
		n, err = e.Count(ctx, byNumber("A-9"))
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 1)
		n, err = e.Count(ctx, criteria)
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 5)
	})

	Convey("删除记录", func() {
		So(e.Remove(ctx, definition{}, 2), ShouldBeNil)
		So(e.Remove(ctx, definition{}, 42), ShouldBeNil)
		n, err := e.Count(ctx, criteria)
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 4)
	})

	Convey("非法记录", func() {
		err := e.Upsert(ctx, definition{}, Record{"number": "D-2"})
		So(errors.Is(err, ErrInvalidRecord), ShouldBeTrue)

		err = e.Upsert(ctx, definition{}, Record{"id": int64(10), "number; drop table": "x"})
		So(errors.Is(err, search.ErrIllegalArgument), ShouldBeTrue)

		err = e.Remove(ctx, definition{table: "orders--"}, 1)
		So(errors.Is(err, search.ErrIllegalArgument), ShouldBeTrue)
	})

	Convey("写入失败时保留旧记录", func() {
		err := e.Upsert(ctx, definition{}, Record{"id": int64(1), "number": "A-9", "missing": "x"})
		So(err, ShouldNotBeNil)
		n, err := e.Count(ctx, byNumber("A-1"))
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 1)
	})
}

func TestSQLIndexer(t *testing.T) {
	Convey("SQLExecutor 写入记录", t, func() {
		e := newSQLExecutor(t)
		defer e.Close()
		testIndexer(e)
	})
}

func TestGormIndexer(t *testing.T) {
	Convey("GormExecutor 写入记录", t, func() {
		e := newGormExecutor(t)
		defer e.Close()
		testIndexer(e)
	})
}

func TestMongoReplacement(t *testing.T) {
	Convey("按 id 替换文档", t, func() {
		table, filter, doc, err := mongoReplacement(definition{}, Record{"id": "9", "number": "D-1"})
		So(err, ShouldBeNil)
		So(table, ShouldEqual, "sales_order")
		So(filter, ShouldResemble, bson.M{"id": int64(9)})
		So(doc, ShouldResemble, bson.M{"id": int64(9), "number": "D-1"})

		_, _, _, err = mongoReplacement(definition{}, Record{"number": "D-1"})
		So(errors.Is(err, ErrInvalidRecord), ShouldBeTrue)
	})
}

func TestESIndexer(t *testing.T) {
	ctx := context.Background()

	Convey("写入和删除文档", t, func() {
		s := newESServer(http.StatusOK)
		defer s.Close()
		e := newESExecutor(s)

		So(e.Upsert(ctx, definition{}, Record{"id": int64(9), "number": "D-1"}), ShouldBeNil)
		So(e.Remove(ctx, definition{}, 9), ShouldBeNil)
		So(s.paths, ShouldResemble, []string{"/sales_order/_doc/9", "/sales_order/_doc/9"})
		So(s.methods, ShouldResemble, []string{http.MethodPut, http.MethodDelete})
		So(s.bodies[0], ShouldResemble, map[string]any{"id": float64(9), "number": "D-1"})
	})

	Convey("删除不存在的文档", t, func() {
		s := newESServer(http.StatusNotFound)
		defer s.Close()
		e := newESExecutor(s)

		So(e.Remove(ctx, definition{}, 9), ShouldBeNil)
		So(e.Upsert(ctx, definition{}, Record{"id": int64(9)}), ShouldNotBeNil)
	})
}
