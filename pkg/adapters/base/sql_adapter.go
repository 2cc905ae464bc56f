package base

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
)

// DBTX исполнитель SQL, на котором выполняется вся операция.
// Реализуется *sql.Conn и *sql.Tx. *sql.DB формально подходит,
// но пул может сменить соединение между запросами, и временные
// таблицы (#Tmp...) станут недоступны.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Dialect правила именования объектов конкретной СУБД
type Dialect interface {
	// QuoteIdentifier квотирует идентификатор
	QuoteIdentifier(identifier string) string
	// QualifiedName возвращает полное имя таблицы schema.table
	QualifiedName(schema, table string) string
	// DefaultSchema схема по умолчанию
	DefaultSchema() string
}

// MSSQLDialect реализует Dialect для MS SQL Server
type MSSQLDialect struct{}

// QuoteIdentifier квотирует идентификатор для SQL Server.
// Закрывающая скобка внутри имени удваивается, как в QUOTENAME.
func (MSSQLDialect) QuoteIdentifier(identifier string) string {
	return "[" + strings.ReplaceAll(identifier, "]", "]]") + "]"
}

// QualifiedName возвращает [schema].[table]
func (d MSSQLDialect) QualifiedName(schema, table string) string {
	if schema == "" {
		schema = d.DefaultSchema()
	}
	return d.QuoteIdentifier(schema) + "." + d.QuoteIdentifier(table)
}

// DefaultSchema схема по умолчанию для SQL Server
func (MSSQLDialect) DefaultSchema() string {
	return "dbo"
}

// GenerateTempTableName генерирует имя локальной временной таблицы.
// Суффикс уникален, чтобы остаток от неудачного вызова на том же
// соединении не конфликтовал со следующим.
func GenerateTempTableName(baseName string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return "#" + baseName + "_" + suffix
}
