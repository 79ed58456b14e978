package executor

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/hatlonely/entmap/search"
)

// Indexer 维护执行器后端中的记录，保存对象时写入，删除对象时移除
// 记录的 key 为列名，必须包含 id 列
type Indexer interface {
	Upsert(ctx context.Context, def search.Definition, record Record) error
	Remove(ctx context.Context, def search.Definition, id int64) error
}

var (
	_ Indexer = (*SQLExecutor)(nil)
	_ Indexer = (*GormExecutor)(nil)
	_ Indexer = (*MongoExecutor)(nil)
	_ Indexer = (*ESExecutor)(nil)
)

func tableOfDefinition(def search.Definition) (string, error) {
	table := def.TableName()
	if err := search.CheckField(table); err != nil {
		return "", errors.WithMessage(err, "invalid table name")
	}
	if err := search.CheckField(def.IdentifierField()); err != nil {
		return "", errors.WithMessage(err, "invalid identifier field")
	}
	return table, nil
}

// recordColumns 记录的列名，按字典序排列
func recordColumns(record Record) ([]string, error) {
	cols := make([]string, 0, len(record))
	for col := range record {
		if err := search.CheckField(col); err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols, nil
}

// prepareUpsert 检查表名和列名，返回表名、id 和排好序的列
func prepareUpsert(def search.Definition, record Record) (string, int64, []string, error) {
	table, err := tableOfDefinition(def)
	if err != nil {
		return "", 0, nil, err
	}
	id, err := RecordID(record, def.IdentifierField())
	if err != nil {
		return "", 0, nil, err
	}
	cols, err := recordColumns(record)
	if err != nil {
		return "", 0, nil, err
	}
	return table, id, cols, nil
}
