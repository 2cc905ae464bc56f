package mssql

import (
	"database/sql"
	"fmt"
	"strings"
)

// MaxParameters предел SQL Server на число параметров в запросе
const MaxParameters = 2100

// IdentityInsertSQL включает или выключает явные значения IDENTITY для таблицы
func IdentityInsertSQL(table string, on bool) string {
	state := "OFF"
	if on {
		state = "ON"
	}
	return fmt.Sprintf("SET IDENTITY_INSERT %s %s;", table, state)
}

// wrapIdentityInsert оборачивает stmt в IDENTITY_INSERT ON/OFF
func wrapIdentityInsert(table, stmt string) string {
	return IdentityInsertSQL(table, true) + "\n" + stmt + "\n" + IdentityInsertSQL(table, false)
}

// InsertOptions управляют генерацией INSERT ... VALUES.
type InsertOptions struct {
	// IdentityInsert оборачивает запрос в SET IDENTITY_INSERT ON/OFF
	IdentityInsert bool
	// KeepNulls пишет NULL как есть. Без него NULL заменяется на DEFAULT,
	// как это делает INSERT BULK без KEEP_NULLS.
	KeepNulls bool
}

// BuildInsertValuesSQL строит один многострочный INSERT ... VALUES.
// Каждое значение кроме NULL передается именованным параметром
// (@r<строка>c<колонка>); NULL пишется литералом или DEFAULT.
func BuildInsertValuesSQL(table string, columns []string, rows [][]any, opts InsertOptions) (string, []any, error) {
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("insert into %s: no columns", table)
	}
	if len(rows) == 0 {
		return "", nil, fmt.Errorf("insert into %s: no rows", table)
	}

	null := "DEFAULT"
	if opts.KeepNulls {
		null = "NULL"
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES\n", table, strings.Join(quoted, ", "))

	args := make([]any, 0, len(rows)*len(columns))
	for r, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("insert into %s: row %d has %d values, want %d", table, r, len(row), len(columns))
		}
		if r > 0 {
			sb.WriteString(",\n")
		}
		sb.WriteString("(")
		for c, raw := range row {
			if c > 0 {
				sb.WriteString(", ")
			}
			v, err := copyValue(raw)
			if err != nil {
				return "", nil, fmt.Errorf("insert into %s: row %d, column %s: %w", table, r, columns[c], err)
			}
			if v == nil {
				sb.WriteString(null)
				continue
			}
			name := fmt.Sprintf("r%dc%d", r, c)
			sb.WriteString("@" + name)
			args = append(args, sql.Named(name, v))
		}
		sb.WriteString(")")
	}
	sb.WriteString(";")

	if len(args) > MaxParameters {
		return "", nil, fmt.Errorf("insert into %s: %d parameters exceed the limit of %d", table, len(args), MaxParameters)
	}

	stmt := sb.String()
	if opts.IdentityInsert {
		stmt = wrapIdentityInsert(table, stmt)
	}
	return stmt, args, nil
}

// BuildInsertFromStagingSQL копирует строки из staging в целевую таблицу.
// Нужен, когда явные значения IDENTITY сохраняются: bulk copy драйвера
// этого напрямую не умеет.
func BuildInsertFromStagingSQL(table, staging string, columns []string, identityInsert bool) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	list := strings.Join(quoted, ", ")

	stmt := fmt.Sprintf("INSERT INTO %s (%s)\nSELECT %s FROM %s;", table, list, list, staging)
	if identityInsert {
		stmt = wrapIdentityInsert(table, stmt)
	}
	return stmt + fmt.Sprintf("\nDROP TABLE %s;", staging)
}
