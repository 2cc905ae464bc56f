package mssql

import "fmt"

// DeleteAllSQL удаляет строки таблицы без промежуточной таблицы.
// Условие where строится относительно псевдонима Target; пустое
// условие удаляет все строки.
func DeleteAllSQL(table, where string) string {
	if where == "" {
		return fmt.Sprintf("DELETE FROM %s;", table)
	}
	return fmt.Sprintf("DELETE Target FROM %s AS Target WHERE %s;", table, where)
}
