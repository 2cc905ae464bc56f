// Package base содержит общие контракты адаптеров БД.
//
// # Основные компоненты
//
// DBTX - минимальный исполнитель SQL (ExecContext, QueryContext, PrepareContext).
// Операции bulk выполняются строго последовательно на одном DBTX, переданном
// вызывающим кодом. Жизненным циклом соединения и транзакции управляет вызывающий.
//
// Dialect - правила квотирования и квалификации имен:
//   - QuoteIdentifier() - [name] с удвоением ] внутри имени
//   - QualifiedName() - [schema].[table]
//   - DefaultSchema() - dbo для SQL Server
//
// GenerateTempTableName() - уникальные имена временных таблиц (#TmpTable_xxxx).
package base
