package executor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/hatlonely/entmap/ref"
	"github.com/hatlonely/entmap/search"
)

var ErrInvalidRecord = errors.New("invalid record")

// Record 一行查询结果，key 为列名
type Record = map[string]any

// Executor 把查询条件翻译成后端查询并执行
// Find 返回的 Total 是满足条件的总数，与分页无关
type Executor interface {
	Find(ctx context.Context, criteria *search.Criteria) (*search.ResultPage[Record], error)
	Count(ctx context.Context, criteria *search.Criteria) (int64, error)
	Close() error
}

func init() {
	ref.MustRegisterT[*SQLExecutor](NewSQLExecutorWithOptions)
	ref.MustRegisterT[*GormExecutor](NewGormExecutorWithOptions)
	ref.MustRegisterT[*MongoExecutor](NewMongoExecutorWithOptions)
	ref.MustRegisterT[*ESExecutor](NewESExecutorWithOptions)
}

// NewExecutorWithOptions 按配置创建执行器，namespace 为 github.com/hatlonely/entmap/executor
func NewExecutorWithOptions(options *ref.TypeOptions) (Executor, error) {
	executor, err := ref.NewWithTypeOptions(options)
	if err != nil {
		return nil, errors.WithMessage(err, "ref.NewWithTypeOptions failed")
	}
	e, ok := executor.(Executor)
	if !ok {
		return nil, errors.Errorf("%T is not an Executor", executor)
	}
	return e, nil
}

// columns grid 选择的列，总是包含 id 列；没有 grid 时返回 nil 表示全部列
func columns(criteria *search.Criteria) ([]string, error) {
	grid := criteria.GridDefinition()
	if grid == nil || len(grid.Columns) == 0 {
		return nil, nil
	}
	idField := criteria.DataDefinition().IdentifierField()
	result := []string{idField}
	for _, column := range grid.Columns {
		if err := search.CheckField(column); err != nil {
			return nil, err
		}
		if column != idField {
			result = append(result, column)
		}
	}
	return result, nil
}

func tableOf(criteria *search.Criteria) (string, error) {
	table := criteria.DataDefinition().TableName()
	if err := search.CheckField(table); err != nil {
		return "", errors.WithMessage(err, "invalid table name")
	}
	return table, nil
}

// RecordID 读取记录中的 id 列，兼容不同后端返回的数值类型
func RecordID(record Record, field string) (int64, error) {
	v, ok := record[field]
	if !ok || v == nil {
		return 0, errors.Wrapf(ErrInvalidRecord, "column %q not found", field)
	}
	switch id := v.(type) {
	case int64:
		return id, nil
	case int:
		return int64(id), nil
	case int32:
		return int64(id), nil
	case uint64:
		return int64(id), nil
	case uint32:
		return int64(id), nil
	case float64:
		if id != float64(int64(id)) {
			return 0, errors.Wrapf(ErrInvalidRecord, "column %q is not an integer: %v", field, id)
		}
		return int64(id), nil
	case []byte:
		return parseID(field, string(id))
	case string:
		return parseID(field, id)
	case fmt.Stringer:
		return parseID(field, id.String())
	}
	return 0, errors.Wrapf(ErrInvalidRecord, "column %q has unsupported type %T", field, v)
}

func parseID(field string, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidRecord, "column %q is not an integer: %q", field, s)
	}
	return id, nil
}
