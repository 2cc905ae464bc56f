package rowset

import (
	"fmt"
	"reflect"
)

// OrdinalColumn колонка корреляции для возврата identity
const OrdinalColumn = "BulkRowOrdinal"

// Binding колонка назначения, привязанная к полю строки
type Binding struct {
	Column string
	Field  *Field
}

// Buffer снимок строк, ограниченный набором колонок.
// Порядок строк сохраняется, Rows[i] соответствует i-й входной строке.
type Buffer struct {
	Columns  []string
	Ordinals map[string]int
	Rows     [][]any
}

// Len возвращает количество строк
func (b *Buffer) Len() int {
	return len(b.Rows)
}

// HasOrdinal сообщает, содержит ли буфер колонку корреляции
func (b *Buffer) HasOrdinal() bool {
	_, ok := b.Ordinals[OrdinalColumn]
	return ok
}

// Project возвращает строки только для перечисленных колонок в их порядке
func (b *Buffer) Project(columns []string) ([][]any, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		pos, ok := b.Ordinals[c]
		if !ok {
			return nil, fmt.Errorf("column %q is not staged", c)
		}
		idx[i] = pos
	}

	out := make([][]any, len(b.Rows))
	for r, row := range b.Rows {
		projected := make([]any, len(idx))
		for i, pos := range idx {
			projected[i] = row[pos]
		}
		out[r] = projected
	}
	return out, nil
}

// Materialize читает из строк только указанные поля.
// rows - срез структур или указателей на структуры.
// Если withOrdinal, добавляется колонка OrdinalColumn со значениями 0..n-1.
func Materialize(rows reflect.Value, bindings []Binding, withOrdinal bool) (*Buffer, error) {
	if rows.Kind() != reflect.Slice {
		return nil, fmt.Errorf("rows must be a slice, got %s", rows.Kind())
	}

	width := len(bindings)
	if withOrdinal {
		width++
	}

	buf := &Buffer{
		Columns:  make([]string, 0, width),
		Ordinals: make(map[string]int, width),
		Rows:     make([][]any, 0, rows.Len()),
	}
	for i, b := range bindings {
		buf.Columns = append(buf.Columns, b.Column)
		buf.Ordinals[b.Column] = i
	}
	if withOrdinal {
		buf.Ordinals[OrdinalColumn] = len(buf.Columns)
		buf.Columns = append(buf.Columns, OrdinalColumn)
	}

	for i := 0; i < rows.Len(); i++ {
		row, err := rowAt(rows, i)
		if err != nil {
			return nil, err
		}

		values := make([]any, width)
		for c, b := range bindings {
			v, err := b.Field.get(row)
			if err != nil {
				return nil, fmt.Errorf("row %d, field %s: %w", i, b.Field.Path, err)
			}
			values[c] = v
		}
		if withOrdinal {
			values[width-1] = int64(i)
		}
		buf.Rows = append(buf.Rows, values)
	}

	return buf, nil
}

// SetKey записывает сгенерированный ключ в поле i-й строки
func SetKey(rows reflect.Value, i int, f *Field, key int64) error {
	if f.set == nil {
		return fmt.Errorf("%s: %w", f.Path, ErrNotWritable)
	}
	if i < 0 || i >= rows.Len() {
		return fmt.Errorf("row ordinal %d out of range [0, %d)", i, rows.Len())
	}
	row, err := rowAt(rows, i)
	if err != nil {
		return err
	}
	if err := f.set(row, key); err != nil {
		return fmt.Errorf("%s: %w", f.Path, err)
	}
	return nil
}

func rowAt(rows reflect.Value, i int) (reflect.Value, error) {
	row := rows.Index(i)
	if row.Kind() == reflect.Pointer {
		if row.IsNil() {
			return reflect.Value{}, fmt.Errorf("row %d is nil", i)
		}
		row = row.Elem()
	}
	return row, nil
}
