package executor

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hatlonely/entmap/search"
)

type GormExecutorOptions struct {
	// Driver 数据库驱动：sqlite, mysql
	Driver string `cfg:"driver" def:"mysql"`
	DSN    string `cfg:"dsn" validate:"required"`
	// LogLevel gorm 日志级别：silent, error, warn, info
	LogLevel string `cfg:"logLevel" def:"silent"`
}

// GormExecutor 基于 GORM 的执行器，适合已经使用 GORM 管理表结构的场景
type GormExecutor struct {
	db *gorm.DB
}

var gormLogLevels = map[string]logger.LogLevel{
	"silent": logger.Silent,
	"error":  logger.Error,
	"warn":   logger.Warn,
	"info":   logger.Info,
}

func NewGormExecutorWithOptions(options *GormExecutorOptions) (*GormExecutor, error) {
	if options.DSN == "" {
		return nil, errors.New("database DSN is required")
	}
	level, ok := gormLogLevels[options.LogLevel]
	if !ok {
		level = logger.Silent
	}
	config := &gorm.Config{Logger: logger.Default.LogMode(level)}

	var db *gorm.DB
	var err error
	switch options.Driver {
	case "sqlite", "sqlite3":
		db, err = gorm.Open(sqlite.Open(options.DSN), config)
	case "mysql":
		db, err = gorm.Open(mysql.Open(options.DSN), config)
	default:
		return nil, errors.Errorf("unsupported database driver: %s", options.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "gorm.Open failed")
	}

	return NewGormExecutor(db), nil
}

func NewGormExecutor(db *gorm.DB) *GormExecutor {
	return &GormExecutor{db: db}
}

func (e *GormExecutor) DB() *gorm.DB {
	return e.db
}

func (e *GormExecutor) Close() error {
	sqlDB, err := e.db.DB()
	if err != nil {
		return errors.Wrap(err, "gorm.DB failed")
	}
	return sqlDB.Close()
}

func (e *GormExecutor) scope(ctx context.Context, criteria *search.Criteria) (*gorm.DB, error) {
	table, err := tableOf(criteria)
	if err != nil {
		return nil, err
	}
	where, args, err := criteria.Filter().ToSQL()
	if err != nil {
		return nil, errors.WithMessage(err, "translate criteria failed")
	}
	return e.db.WithContext(ctx).Table(table).Where(where, args...), nil
}

func (e *GormExecutor) Find(ctx context.Context, criteria *search.Criteria) (*search.ResultPage[Record], error) {
	total, err := e.Count(ctx, criteria)
	if err != nil {
		return nil, err
	}

	tx, err := e.scope(ctx, criteria)
	if err != nil {
		return nil, err
	}
	cols, err := columns(criteria)
	if err != nil {
		return nil, err
	}
	if cols != nil {
		tx = tx.Select(cols)
	}
	if order := criteria.Order(); order != nil {
		if err := search.CheckField(order.Field()); err != nil {
			return nil, err
		}
		direction := " ASC"
		if !order.Ascending() {
			direction = " DESC"
		}
		tx = tx.Order(order.Field() + direction)
	}

	var rows []map[string]any
	if err := tx.Offset(criteria.FirstResult()).Limit(criteria.MaxResults()).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "gorm find failed")
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		record := make(Record, len(row))
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			record[k] = v
		}
		records = append(records, record)
	}
	return search.NewResultPage(total, records), nil
}

func (e *GormExecutor) Count(ctx context.Context, criteria *search.Criteria) (int64, error) {
	tx, err := e.scope(ctx, criteria)
	if err != nil {
		return 0, err
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return 0, errors.Wrap(err, "gorm count failed")
	}
	return total, nil
}

// Upsert 在一个事务中按 id 删除旧行并插入新行
func (e *GormExecutor) Upsert(ctx context.Context, def search.Definition, record Record) error {
	table, id, _, err := prepareUpsert(def, record)
	if err != nil {
		return err
	}
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM "+table+" WHERE "+def.IdentifierField()+" = ?", id).Error; err != nil {
			return errors.Wrapf(err, "delete %s %d failed", table, id)
		}
		if err := tx.Table(table).Create(map[string]any(record)).Error; err != nil {
			return errors.Wrapf(err, "insert %s %d failed", table, id)
		}
		return nil
	})
}

// Remove 删除 id 对应的行，行不存在时不报错
func (e *GormExecutor) Remove(ctx context.Context, def search.Definition, id int64) error {
	table, err := tableOfDefinition(def)
	if err != nil {
		return err
	}
	if err := e.db.WithContext(ctx).Exec("DELETE FROM "+table+" WHERE "+def.IdentifierField()+" = ?", id).Error; err != nil {
		return errors.Wrapf(err, "delete %s %d failed", table, id)
	}
	return nil
}
