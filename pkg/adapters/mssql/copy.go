package mssql

import (
	"context"
	"fmt"

	mssql "github.com/denisenkom/go-mssqldb"

	"github.com/ruslano69/sqlbulk/pkg/adapters/base"
)

// CopyOptions параметры протокола bulk copy
type CopyOptions struct {
	RowsPerBatch      int
	KilobytesPerBatch int
	KeepNulls         bool
	CheckConstraints  bool
	FireTriggers      bool
	Tablock           bool
}

func (o CopyOptions) bulkOptions() mssql.BulkOptions {
	return mssql.BulkOptions{
		RowsPerBatch:      o.RowsPerBatch,
		KilobytesPerBatch: o.KilobytesPerBatch,
		KeepNulls:         o.KeepNulls,
		CheckConstraints:  o.CheckConstraints,
		FireTriggers:      o.FireTriggers,
		Tablock:           o.Tablock,
	}
}

// CopyInStatement возвращает текст команды драйвера для bulk copy
func CopyInStatement(table string, columns []string, opts CopyOptions) string {
	return mssql.CopyIn(table, opts.bulkOptions(), columns...)
}

// BulkCopy передает строки в таблицу по протоколу bulk copy.
// Каждая строка буферизуется вызовом Exec со значениями, финальный Exec
// без аргументов отправляет буфер и возвращает число скопированных строк.
// Вызывать внутри транзакции или соединения вызывающего, иначе временные
// таблицы не видны.
func BulkCopy(ctx context.Context, q base.DBTX, table string, columns []string, rows [][]any, opts CopyOptions) (int64, error) {
	stmt, err := q.PrepareContext(ctx, CopyInStatement(table, columns, opts))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare bulk copy into %s: %w", table, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		values, err := copyRow(row)
		if err != nil {
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}

	res, err := stmt.ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to finalize bulk copy into %s: %w", table, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
