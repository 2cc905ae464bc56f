package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ruslano69/sqlbulk/pkg/adapters/base"
)

// KeyPair строка выходной таблицы: (токен корреляции, сгенерированный ключ)
type KeyPair struct {
	Ordinal int64
	Key     int64
}

// ReadOutputSQL выбирает коррелированные ключи. Строки, удаленные через
// WHEN NOT MATCHED BY SOURCE, не имеют исходной строки и пропускаются.
func ReadOutputSQL(table, ordinalColumn, identityColumn string) string {
	ord := quoteIdent(ordinalColumn)
	id := quoteIdent(identityColumn)
	return fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IS NOT NULL ORDER BY %s;", ord, id, table, ord, ord)
}

// ReadOutput читает ключи, захваченные MERGE ... OUTPUT
func ReadOutput(ctx context.Context, q base.DBTX, table, ordinalColumn, identityColumn string) ([]KeyPair, error) {
	rows, err := q.QueryContext(ctx, ReadOutputSQL(table, ordinalColumn, identityColumn))
	if err != nil {
		return nil, fmt.Errorf("failed to read identity output: %w", err)
	}
	defer rows.Close()

	var pairs []KeyPair
	for rows.Next() {
		var (
			ordinal int64
			key     sql.NullInt64
		)
		if err := rows.Scan(&ordinal, &key); err != nil {
			return nil, fmt.Errorf("failed to scan identity output: %w", err)
		}
		if !key.Valid {
			continue
		}
		pairs = append(pairs, KeyPair{Ordinal: ordinal, Key: key.Int64})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating identity output: %w", err)
	}
	return pairs, nil
}
