package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ruslano69/sqlbulk/pkg/adapters/base"
)

// disableIndexesSQL отключает все включенные некластерные индексы
// @Schema.@Table. Кластерный индекс не трогаем: без него таблица
// становится недоступной для чтения.
const disableIndexesSQL = `DECLARE @sql NVARCHAR(MAX) = N'';
SELECT @sql = @sql + N'ALTER INDEX ' + QUOTENAME(i.name) + N' ON ' + QUOTENAME(s.name) + N'.' + QUOTENAME(o.name) + N' DISABLE;'
FROM sys.indexes i
JOIN sys.objects o ON i.object_id = o.object_id
JOIN sys.schemas s ON o.schema_id = s.schema_id
WHERE i.type_desc = 'NONCLUSTERED'
	AND i.is_disabled = 0
	AND o.type_desc = 'USER_TABLE'
	AND s.name = @Schema
	AND o.name = @Table;
EXEC sp_executesql @sql;`

// DisableIndexes отключает некластерные индексы schema.table
func DisableIndexes(ctx context.Context, q base.DBTX, schema, table string) error {
	_, err := q.ExecContext(ctx, disableIndexesSQL, sql.Named("Schema", schema), sql.Named("Table", table))
	if err != nil {
		return fmt.Errorf("failed to disable indexes on %s.%s: %w", schema, table, err)
	}
	return nil
}

// RebuildIndexesSQL перестраивает все индексы таблицы и тем самым
// включает отключенные
func RebuildIndexesSQL(qualifiedTable string) string {
	return fmt.Sprintf("ALTER INDEX ALL ON %s REBUILD;", qualifiedTable)
}

// RebuildIndexes перестраивает все индексы таблицы
func RebuildIndexes(ctx context.Context, q base.DBTX, qualifiedTable string) error {
	if _, err := q.ExecContext(ctx, RebuildIndexesSQL(qualifiedTable)); err != nil {
		return fmt.Errorf("failed to rebuild indexes on %s: %w", qualifiedTable, err)
	}
	return nil
}
