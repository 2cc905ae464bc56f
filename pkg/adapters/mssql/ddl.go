package mssql

import (
	"fmt"
	"strings"
)

// textTypes получают COLLATE DATABASE_DEFAULT: иначе tempdb задает свою
// collation и соединение с целевой таблицей падает на конфликте.
var textTypes = map[string]bool{
	"char": true, "varchar": true, "nchar": true, "nvarchar": true,
	"text": true, "ntext": true,
}

// ColumnDefinition возвращает объявленный тип колонки с длиной, точностью
// или масштабом, например "nvarchar(50)", "decimal(18,2)", "datetime2(3)".
func ColumnDefinition(c ColumnInfo) string {
	switch c.DataType {
	case "char", "varchar", "nchar", "nvarchar", "binary", "varbinary":
		if c.MaxLength == -1 {
			return c.DataType + "(max)"
		}
		if c.MaxLength > 0 {
			return fmt.Sprintf("%s(%d)", c.DataType, c.MaxLength)
		}
		return c.DataType
	case "decimal", "numeric":
		if c.Precision > 0 {
			return fmt.Sprintf("%s(%d,%d)", c.DataType, c.Precision, c.Scale)
		}
		return c.DataType
	case "datetime2", "datetimeoffset", "time":
		return fmt.Sprintf("%s(%d)", c.DataType, c.DateTimePrecision)
	case "timestamp", "rowversion":
		// rowversion нельзя записать, в staging хранятся сырые байты
		return "binary(8)"
	default:
		return c.DataType
	}
}

// StagingColumn колонка промежуточной таблицы
type StagingColumn struct {
	Name string
	Info ColumnInfo
}

// BuildStagingTableSQL строит CREATE TABLE для локальной временной таблицы.
// Колонки повторяют объявленные типы и nullability целевой таблицы,
// IDENTITY колонки становятся обычными nullable. Непустой ordinalColumn
// добавляется последней колонкой для корреляции строк.
func BuildStagingTableSQL(name string, columns []StagingColumn, ordinalColumn string) string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(name)
	sb.WriteString(" (\n")

	defs := make([]string, 0, len(columns)+1)
	for _, c := range columns {
		def := "\t" + quoteIdent(c.Name) + " " + ColumnDefinition(c.Info)
		if textTypes[c.Info.DataType] {
			def += " COLLATE DATABASE_DEFAULT"
		}
		if c.Info.Nullable || c.Info.Identity || c.Info.Computed {
			def += " NULL"
		} else {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	if ordinalColumn != "" {
		defs = append(defs, "\t"+quoteIdent(ordinalColumn)+" int NOT NULL")
	}

	sb.WriteString(strings.Join(defs, ",\n"))
	sb.WriteString("\n);")
	return sb.String()
}

// BuildOutputTableSQL строит таблицу, в которую MERGE ... OUTPUT пишет
// пары (токен корреляции, сгенерированный ключ).
func BuildOutputTableSQL(name, ordinalColumn string, identity ColumnInfo) string {
	return fmt.Sprintf("CREATE TABLE %s (\n\t%s int NULL,\n\t%s %s NULL\n);",
		name, quoteIdent(ordinalColumn), quoteIdent(identity.Name), ColumnDefinition(identity))
}

// DropTableSQL удаляет временную таблицу, если она еще существует
func DropTableSQL(name string) string {
	return fmt.Sprintf("IF OBJECT_ID('tempdb..%s') IS NOT NULL DROP TABLE %s;", name, name)
}
