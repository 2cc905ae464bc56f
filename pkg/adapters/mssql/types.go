package mssql

import (
	"database/sql/driver"
	"reflect"
	"time"

	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ruslano69/sqlbulk/pkg/core/rowset"
	"github.com/ruslano69/sqlbulk/pkg/core/typemap"
)

// Сопоставление значений для SQL Server
//
// Go тип               Параметр         Примечание
// ────────────────────────────────────────────────────────────
// bool                 BIT
// int8, int16          SMALLINT         int8 не помещается в TINYINT
// uint8                TINYINT
// int32, uint16        INT
// int, int64, uint32   BIGINT
// float32 / float64    REAL / FLOAT
// string, []rune       NVARCHAR         []rune передается строкой
// []byte               VARBINARY
// time.Time            DATETIME2
// time.Duration        TIME             время суток на дату 0001-01-01
// uuid.UUID            UNIQUEIDENTIFIER передается как mssql.UniqueIdentifier
// decimal.Decimal      DECIMAL          передается строкой без потери точности
// typemap.XML          XML

// TypeTables возвращает таблицы по умолчанию, дополненные типами
// драйвера и точными десятичными числами.
func TypeTables() typemap.Tables {
	return typemap.DefaultTables().
		With(reflect.TypeOf(mssql.UniqueIdentifier{}), typemap.Param{Type: typemap.UniqueIdentifier}, "uniqueidentifier").
		With(reflect.TypeOf(decimal.Decimal{}), typemap.Param{Type: typemap.Decimal}, "decimal(38,18)").
		With(reflect.TypeOf(decimal.NullDecimal{}), typemap.Param{Type: typemap.Decimal, Nullable: true}, "decimal(38,18)")
}

// copyValue приводит значение к виду, который драйвер отправляет и через
// bulk copy, и через параметризованный INSERT. Valuer разворачивается
// здесь, чтобы NULL обертка оставалась NULL.
func copyValue(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case uuid.UUID:
		return mssql.UniqueIdentifier(val), nil
	case uuid.NullUUID:
		if !val.Valid {
			return nil, nil
		}
		return mssql.UniqueIdentifier(val.UUID), nil
	case mssql.UniqueIdentifier:
		return val, nil
	case typemap.XML:
		return string(val), nil
	case typemap.Geography:
		return []byte(val), nil
	case typemap.Geometry:
		return []byte(val), nil
	case typemap.HierarchyID:
		return []byte(val), nil
	case time.Duration:
		return rowset.DurationToTime(val), nil
	case decimal.Decimal:
		return val.String(), nil
	case decimal.NullDecimal:
		if !val.Valid {
			return nil, nil
		}
		return val.Decimal.String(), nil
	case driver.Valuer:
		return val.Value()
	}
	return v, nil
}

// copyRow применяет copyValue к каждому значению строки
func copyRow(row []any) ([]any, error) {
	out := make([]any, len(row))
	for i, v := range row {
		cv, err := copyValue(v)
		if err != nil {
			return nil, err
		}
		out[i] = cv
	}
	return out, nil
}
