package dataaccess

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hatlonely/entmap/entity"
	"github.com/hatlonely/entmap/executor"
	"github.com/hatlonely/entmap/schema"
)

// indexRecord 执行器中的一行：id 列加上所有非 hasMany 字段，belongsTo 字段只保留 id
func indexRecord(dd *schema.DataDefinition, e *entity.Entity) (executor.Record, error) {
	record := executor.Record{dd.IdentifierField(): e.ID()}
	for _, fd := range dd.Fields() {
		if fd.Name() == dd.IdentifierField() {
			continue
		}
		v := e.Field(fd.Name())
		switch t := fd.Type().(type) {
		case *schema.HasManyType:
			continue
		case *schema.BelongsToType:
			if v == nil {
				break
			}
			id, err := t.IDOf(v)
			if err != nil {
				return nil, errors.WithMessagef(err, "index %s field %q failed", dd.FullName(), fd.Name())
			}
			v = id
		}
		record[fd.Name()] = v
	}
	return record, nil
}

// index 保存之后同步执行器中的记录，已删除的实体从执行器中移除
func (s *DataAccessService) index(ctx context.Context, dd *schema.DataDefinition, e *entity.Entity) error {
	if s.indexer == nil {
		return nil
	}
	if e.IsDeleted() {
		return s.unindex(ctx, dd, e.ID())
	}
	record, err := indexRecord(dd, e)
	if err != nil {
		return err
	}
	if err := s.indexer.Upsert(ctx, dd, record); err != nil {
		return errors.WithMessagef(err, "index %s #%d failed", dd.FullName(), e.ID())
	}
	return nil
}

func (s *DataAccessService) unindex(ctx context.Context, dd *schema.DataDefinition, id int64) error {
	if s.indexer == nil {
		return nil
	}
	if err := s.indexer.Remove(ctx, dd, id); err != nil {
		return errors.WithMessagef(err, "unindex %s #%d failed", dd.FullName(), id)
	}
	return nil
}
