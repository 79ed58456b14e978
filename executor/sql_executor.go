package executor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/hatlonely/entmap/search"
)

type SQLExecutorOptions struct {
	Driver   string `cfg:"driver" def:"mysql"`
	DSN      string `cfg:"dsn"`
	Host     string `cfg:"host" def:"localhost"`
	Port     string `cfg:"port" def:"3306"`
	Database string `cfg:"database"`
	Username string `cfg:"username"`
	Password string `cfg:"password"`
	Charset  string `cfg:"charset" def:"utf8mb4"`
	MaxConns int    `cfg:"maxConns" def:"10"`
	MaxIdle  int    `cfg:"maxIdle" def:"5"`
}

// SQLExecutor 基于 database/sql 的执行器，条件翻译为 WHERE 子句
type SQLExecutor struct {
	db     *sql.DB
	driver string
}

func NewSQLExecutorWithOptions(options *SQLExecutorOptions) (*SQLExecutor, error) {
	dsn := options.DSN
	if dsn == "" {
		switch options.Driver {
		case "mysql":
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
				options.Username, options.Password, options.Host, options.Port, options.Database, options.Charset)
		case "sqlite3":
			dsn = options.Database
		default:
			return nil, errors.Errorf("unsupported driver: %s", options.Driver)
		}
	}

	db, err := sql.Open(options.Driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sql.Open failed")
	}

	if options.MaxConns > 0 {
		db.SetMaxOpenConns(options.MaxConns)
	}
	if options.MaxIdle > 0 {
		db.SetMaxIdleConns(options.MaxIdle)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "db.Ping failed")
	}

	return NewSQLExecutor(db, options.Driver), nil
}

// NewSQLExecutor 使用已有的连接，driver 决定占位符格式
func NewSQLExecutor(db *sql.DB, driver string) *SQLExecutor {
	return &SQLExecutor{db: db, driver: driver}
}

func (e *SQLExecutor) DB() *sql.DB {
	return e.db
}

func (e *SQLExecutor) Close() error {
	return e.db.Close()
}

// buildWhere 返回 WHERE 子句（不含关键字）和参数
func (e *SQLExecutor) buildWhere(criteria *search.Criteria) (string, string, []any, error) {
	table, err := tableOf(criteria)
	if err != nil {
		return "", "", nil, err
	}
	where, args, err := criteria.Filter().ToSQL()
	if err != nil {
		return "", "", nil, errors.WithMessage(err, "translate criteria failed")
	}
	return table, where, args, nil
}

func (e *SQLExecutor) Find(ctx context.Context, criteria *search.Criteria) (*search.ResultPage[Record], error) {
	total, err := e.Count(ctx, criteria)
	if err != nil {
		return nil, err
	}
	table, where, args, err := e.buildWhere(criteria)
	if err != nil {
		return nil, err
	}
	cols, err := columns(criteria)
	if err != nil {
		return nil, err
	}

	selected := "*"
	if cols != nil {
		selected = strings.Join(cols, ", ")
	}
	sqlStr := fmt.Sprintf("SELECT %s FROM %s WHERE %s", selected, table, where)

	if order := criteria.Order(); order != nil {
		if err := search.CheckField(order.Field()); err != nil {
			return nil, err
		}
		direction := "ASC"
		if !order.Ascending() {
			direction = "DESC"
		}
		sqlStr += fmt.Sprintf(" ORDER BY %s %s", order.Field(), direction)
	}
	sqlStr += fmt.Sprintf(" LIMIT %d OFFSET %d", criteria.MaxResults(), criteria.FirstResult())

	sqlStr, args = e.formatSQL(sqlStr, args)
	rows, err := e.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s failed", table)
	}
	defer rows.Close()

	records := make([]Record, 0, criteria.MaxResults())
	for rows.Next() {
		record, err := scanRowToRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows.Err")
	}

	return search.NewResultPage(total, records), nil
}

func (e *SQLExecutor) Count(ctx context.Context, criteria *search.Criteria) (int64, error) {
	table, where, args, err := e.buildWhere(criteria)
	if err != nil {
		return 0, err
	}
	sqlStr, args := e.formatSQL(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, where), args)

	var total int64
	if err := e.db.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, errors.Wrapf(err, "count %s failed", table)
	}
	return total, nil
}

// Upsert 在一个事务中按 id 删除旧行并插入新行
func (e *SQLExecutor) Upsert(ctx context.Context, def search.Definition, record Record) error {
	table, id, cols, err := prepareUpsert(def, record)
	if err != nil {
		return err
	}
	args := make([]any, 0, len(cols))
	marks := make([]string, 0, len(cols))
	for _, col := range cols {
		args = append(args, record[col])
		marks = append(marks, "?")
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "db.BeginTx failed")
	}
	defer func() { _ = tx.Rollback() }()

	delStr, delArgs := e.formatSQL(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, def.IdentifierField()), []any{id})
	if _, err := tx.ExecContext(ctx, delStr, delArgs...); err != nil {
		return errors.Wrapf(err, "delete %s %d failed", table, id)
	}
	insStr, args := e.formatSQL(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(marks, ", ")), args)
	if _, err := tx.ExecContext(ctx, insStr, args...); err != nil {
		return errors.Wrapf(err, "insert %s %d failed", table, id)
	}
	return errors.Wrap(tx.Commit(), "tx.Commit failed")
}

// Remove 删除 id 对应的行，行不存在时不报错
func (e *SQLExecutor) Remove(ctx context.Context, def search.Definition, id int64) error {
	table, err := tableOfDefinition(def)
	if err != nil {
		return err
	}
	sqlStr, args := e.formatSQL(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, def.IdentifierField()), []any{id})
	if _, err := e.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return errors.Wrapf(err, "delete %s %d failed", table, id)
	}
	return nil
}

func (e *SQLExecutor) formatSQL(sqlStr string, args []any) (string, []any) {
	if e.driver == "postgres" {
		// PostgreSQL 使用 $1, $2, $3... 格式
		count := 1
		for strings.Contains(sqlStr, "?") {
			sqlStr = strings.Replace(sqlStr, "?", fmt.Sprintf("$%d", count), 1)
			count++
		}
	}
	return sqlStr, args
}

func scanRowToRecord(rows *sql.Rows) (Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "rows.Columns failed")
	}

	values := make([]any, len(cols))
	valuePtrs := make([]any, len(cols))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := rows.Scan(valuePtrs...); err != nil {
		return nil, errors.Wrap(err, "rows.Scan failed")
	}

	record := make(Record, len(cols))
	for i, col := range cols {
		// mysql 驱动的文本列返回 []byte
		if b, ok := values[i].([]byte); ok {
			record[col] = string(b)
			continue
		}
		record[col] = values[i]
	}
	return record, nil
}
