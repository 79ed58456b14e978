package store

import (
	"context"
	"reflect"
	"strconv"

	"github.com/pkg/errors"

	"github.com/hatlonely/entmap/schema"
)

var ErrNotFound = errors.New("object not found")

// ObjectStore 按 id 保存具体对象，Lookup 同时作为 belongsTo 字段解析引用的数据源
type ObjectStore interface {
	// Lookup 对象不存在时返回 (nil, nil)
	Lookup(ctx context.Context, rt reflect.Type, id int64) (any, error)
	// Save 保存对象，对象的 id 必须已经分配
	Save(ctx context.Context, dd *schema.DataDefinition, obj any) error
	// Delete 物理删除，对象不存在时也返回成功
	Delete(ctx context.Context, dd *schema.DataDefinition, id int64) error
}

// Get 读取对象，不存在时返回 ErrNotFound
func Get(ctx context.Context, s ObjectStore, dd *schema.DataDefinition, id int64) (any, error) {
	class, err := dd.ClassForEntity()
	if err != nil {
		return nil, err
	}
	obj, err := s.Lookup(ctx, class, id)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.Wrapf(ErrNotFound, "%s #%d", dd.FullName(), id)
	}
	return obj, nil
}

func objectKey(name string, id int64) string {
	return name + ":" + strconv.FormatInt(id, 10)
}

// idForSave 读取待保存对象的 id，未分配时返回错误
func idForSave(dd *schema.DataDefinition, obj any) (int64, error) {
	id, err := dd.IDOf(obj)
	if err != nil {
		return 0, errors.WithMessagef(err, "read id of %s failed", dd.FullName())
	}
	if id == 0 {
		return 0, errors.Errorf("%s: id is not assigned", dd.FullName())
	}
	return id, nil
}
