package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ruslano69/sqlbulk/pkg/adapters/base"
)

// ErrTableNotFound каталог не вернул ни одной колонки таблицы
var ErrTableNotFound = errors.New("table not found or has no columns")

// ColumnInfo колонка целевой таблицы по данным каталога
type ColumnInfo struct {
	Name              string
	DataType          string // базовый тип в нижнем регистре, например "nvarchar"
	MaxLength         int    // символы или байты, -1 для MAX, 0 если неприменимо
	Precision         int
	Scale             int
	DateTimePrecision int
	Nullable          bool
	Identity          bool
	Computed          bool
}

// TableSchema метаданные целевой таблицы для одного выполнения
type TableSchema struct {
	Schema  string
	Table   string
	Columns []ColumnInfo

	byName map[string]int
}

// Column ищет колонку по имени без учета регистра, как сервер
// при collation по умолчанию
func (s *TableSchema) Column(name string) (ColumnInfo, bool) {
	if s.byName == nil {
		s.byName = make(map[string]int, len(s.Columns))
		for i, c := range s.Columns {
			s.byName[strings.ToLower(c.Name)] = i
		}
	}
	i, ok := s.byName[strings.ToLower(name)]
	if !ok {
		return ColumnInfo{}, false
	}
	return s.Columns[i], true
}

// IdentityColumn возвращает IDENTITY колонку таблицы, если она есть
func (s *TableSchema) IdentityColumn() (ColumnInfo, bool) {
	for _, c := range s.Columns {
		if c.Identity {
			return c, true
		}
	}
	return ColumnInfo{}, false
}

const tableSchemaQuery = `
SELECT
	c.COLUMN_NAME,
	c.DATA_TYPE,
	c.CHARACTER_MAXIMUM_LENGTH,
	c.NUMERIC_PRECISION,
	c.NUMERIC_SCALE,
	c.DATETIME_PRECISION,
	c.IS_NULLABLE,
	COLUMNPROPERTY(OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME)), c.COLUMN_NAME, 'IsIdentity') AS IS_IDENTITY,
	COLUMNPROPERTY(OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME)), c.COLUMN_NAME, 'IsComputed') AS IS_COMPUTED
FROM INFORMATION_SCHEMA.COLUMNS c
WHERE c.TABLE_SCHEMA = @Schema AND c.TABLE_NAME = @Table
ORDER BY c.ORDINAL_POSITION`

// GetTableSchema читает метаданные колонок schema.table.
// Запрашивается при каждом вызове, не кешируется.
func GetTableSchema(ctx context.Context, q base.DBTX, schema, table string) (TableSchema, error) {
	rows, err := q.QueryContext(ctx, tableSchemaQuery,
		sql.Named("Schema", schema),
		sql.Named("Table", table),
	)
	if err != nil {
		return TableSchema{}, fmt.Errorf("failed to query table schema: %w", err)
	}
	defer rows.Close()

	ts := TableSchema{Schema: schema, Table: table}

	for rows.Next() {
		var (
			name       string
			dataType   string
			length     sql.NullInt64
			precision  sql.NullInt64
			scale      sql.NullInt64
			dtPrec     sql.NullInt64
			isNullable string
			isIdentity sql.NullInt64
			isComputed sql.NullInt64
		)

		if err := rows.Scan(&name, &dataType, &length, &precision, &scale, &dtPrec,
			&isNullable, &isIdentity, &isComputed); err != nil {
			return TableSchema{}, fmt.Errorf("failed to scan column info: %w", err)
		}

		ts.Columns = append(ts.Columns, ColumnInfo{
			Name:              name,
			DataType:          strings.ToLower(dataType),
			MaxLength:         int(length.Int64),
			Precision:         int(precision.Int64),
			Scale:             int(scale.Int64),
			DateTimePrecision: int(dtPrec.Int64),
			Nullable:          strings.EqualFold(isNullable, "YES"),
			Identity:          isIdentity.Valid && isIdentity.Int64 == 1,
			Computed:          isComputed.Valid && isComputed.Int64 == 1,
		})
	}

	if err := rows.Err(); err != nil {
		return TableSchema{}, fmt.Errorf("error iterating rows: %w", err)
	}

	if len(ts.Columns) == 0 {
		return TableSchema{}, fmt.Errorf("%s.%s: %w", schema, table, ErrTableNotFound)
	}

	return ts, nil
}
