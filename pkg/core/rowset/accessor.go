package rowset

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"
	"time"
)

// ErrNotWritable поле не может принять сгенерированный ключ
var ErrNotWritable = errors.New("field has no writable accessor")

// Field поле типа строки с заранее построенными функциями доступа.
// Функции строятся один раз на тип и переиспользуются для всех строк.
type Field struct {
	Path   string       // путь в Go: "Estimate.TotalCost"
	Column string       // имя колонки по умолчанию: "Estimate_TotalCost"
	Type   reflect.Type // тип поля как объявлен

	index []int
	get   func(reflect.Value) (any, error)
	set   func(reflect.Value, int64) error
}

// Writable сообщает, может ли поле принять ключ identity
func (f *Field) Writable() bool {
	return f.set != nil
}

// Table таблица функций доступа для одного типа строки
type Table struct {
	Type   reflect.Type
	Fields []*Field

	byPath   map[string]*Field
	byColumn map[string]*Field
}

// Lookup ищет поле по пути Go или по имени колонки по умолчанию
func (t *Table) Lookup(name string) (*Field, bool) {
	if f, ok := t.byPath[name]; ok {
		return f, true
	}
	f, ok := t.byColumn[name]
	return f, ok
}

var cache sync.Map // reflect.Type -> *Table

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	valuerType   = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	scannerType  = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

// Accessors возвращает кешированную таблицу для типа строки.
// Допускается структура или указатель на структуру.
func Accessors(typ reflect.Type) (*Table, error) {
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("row type must be a struct, got %s", typ)
	}

	if cached, ok := cache.Load(typ); ok {
		return cached.(*Table), nil
	}

	t := &Table{
		Type:     typ,
		byPath:   make(map[string]*Field),
		byColumn: make(map[string]*Field),
	}
	collectFields(t, typ, nil, "", "")

	actual, _ := cache.LoadOrStore(typ, t)
	return actual.(*Table), nil
}

// collectFields обходит поля структуры. Вложенные структуры
// разворачиваются, встроенные поднимаются на уровень родителя.
func collectFields(t *Table, typ reflect.Type, index []int, pathPrefix, columnPrefix string) {
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if !sf.IsExported() && !sf.Anonymous {
			continue
		}
		if sf.Tag.Get("bulk") == "-" {
			continue
		}

		idx := append(append([]int(nil), index...), i)
		ft := sf.Type

		if isComposite(ft) {
			if sf.Anonymous {
				collectFields(t, deref(ft), idx, pathPrefix, columnPrefix)
			} else {
				collectFields(t, deref(ft), idx, pathPrefix+sf.Name+".", columnPrefix+sf.Name+"_")
			}
			continue
		}
		if !sf.IsExported() {
			continue
		}

		column := sf.Name
		if tag := sf.Tag.Get("bulk"); tag != "" {
			column = tag
		}

		f := &Field{
			Path:   pathPrefix + sf.Name,
			Column: columnPrefix + column,
			Type:   ft,
			index:  idx,
		}
		f.get = makeGetter(idx, ft)
		f.set = makeSetter(idx, ft)

		t.Fields = append(t.Fields, f)
		t.byPath[f.Path] = f
		t.byColumn[f.Column] = f
	}
}

func deref(typ reflect.Type) reflect.Type {
	if typ.Kind() == reflect.Pointer {
		return typ.Elem()
	}
	return typ
}

// isComposite - вложенная структура, которую нужно развернуть
func isComposite(typ reflect.Type) bool {
	base := deref(typ)
	if base.Kind() != reflect.Struct || base == timeType {
		return false
	}
	if base.Implements(valuerType) || reflect.PointerTo(base).Implements(valuerType) {
		return false
	}
	return true
}

// fieldOf читает поле по индексу. Nil во встроенном указателе дает пустое значение.
func fieldOf(row reflect.Value, index []int) (reflect.Value, bool) {
	v, err := row.FieldByIndexErr(index)
	if err != nil {
		return reflect.Value{}, false
	}
	return v, true
}

func makeGetter(index []int, typ reflect.Type) func(reflect.Value) (any, error) {
	read := valueReader(typ)
	return func(row reflect.Value) (any, error) {
		v, ok := fieldOf(row, index)
		if !ok {
			return nil, nil
		}
		return read(v)
	}
}

// valueReader строит функцию чтения, специализированную под Kind
func valueReader(typ reflect.Type) func(reflect.Value) (any, error) {
	if typ == durationType {
		return func(v reflect.Value) (any, error) {
			return DurationToTime(time.Duration(v.Int())), nil
		}
	}
	if typ == timeType {
		return func(v reflect.Value) (any, error) {
			return v.Interface(), nil
		}
	}
	if typ.Implements(valuerType) {
		return func(v reflect.Value) (any, error) {
			if v.Kind() == reflect.Pointer && v.IsNil() {
				return nil, nil
			}
			return v.Interface(), nil
		}
	}

	switch typ.Kind() {
	case reflect.Pointer:
		elem := valueReader(typ.Elem())
		return func(v reflect.Value) (any, error) {
			if v.IsNil() {
				return nil, nil
			}
			return elem(v.Elem())
		}
	case reflect.Bool:
		return func(v reflect.Value) (any, error) { return v.Bool(), nil }
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return func(v reflect.Value) (any, error) { return v.Int(), nil }
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return func(v reflect.Value) (any, error) { return int64(v.Uint()), nil }
	case reflect.Uint, reflect.Uint64:
		return func(v reflect.Value) (any, error) {
			u := v.Uint()
			if u > math.MaxInt64 {
				return nil, fmt.Errorf("value %d overflows bigint", u)
			}
			return int64(u), nil
		}
	case reflect.Float32, reflect.Float64:
		return func(v reflect.Value) (any, error) { return v.Float(), nil }
	case reflect.String:
		return func(v reflect.Value) (any, error) { return v.String(), nil }
	case reflect.Slice:
		switch typ.Elem().Kind() {
		case reflect.Uint8:
			return func(v reflect.Value) (any, error) {
				if v.IsNil() {
					return nil, nil
				}
				return v.Bytes(), nil
			}
		case reflect.Int32:
			return func(v reflect.Value) (any, error) {
				if v.IsNil() {
					return nil, nil
				}
				return string(v.Convert(reflect.TypeOf([]rune(nil))).Interface().([]rune)), nil
			}
		}
	}

	return func(v reflect.Value) (any, error) {
		return v.Interface(), nil
	}
}

// DurationToTime переводит длительность во время суток для колонки TIME
func DurationToTime(d time.Duration) time.Time {
	return time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC).Add(d)
}

// makeSetter возвращает nil, если поле не может принять целочисленный ключ
func makeSetter(index []int, typ reflect.Type) func(reflect.Value, int64) error {
	if reflect.PointerTo(typ).Implements(scannerType) {
		return func(row reflect.Value, key int64) error {
			v, ok := fieldOf(row, index)
			if !ok || !v.CanAddr() {
				return ErrNotWritable
			}
			return v.Addr().Interface().(sql.Scanner).Scan(key)
		}
	}

	assign := integerAssigner(typ)
	if assign == nil {
		return nil
	}
	return func(row reflect.Value, key int64) error {
		v, ok := fieldOf(row, index)
		if !ok || !v.CanSet() {
			return ErrNotWritable
		}
		return assign(v, key)
	}
}

func integerAssigner(typ reflect.Type) func(reflect.Value, int64) error {
	if typ == durationType {
		return nil
	}

	switch typ.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return func(v reflect.Value, key int64) error {
			if v.OverflowInt(key) {
				return fmt.Errorf("key %d overflows %s", key, v.Type())
			}
			v.SetInt(key)
			return nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return func(v reflect.Value, key int64) error {
			if key < 0 || v.OverflowUint(uint64(key)) {
				return fmt.Errorf("key %d overflows %s", key, v.Type())
			}
			v.SetUint(uint64(key))
			return nil
		}
	case reflect.Pointer:
		elem := integerAssigner(typ.Elem())
		if elem == nil {
			return nil
		}
		return func(v reflect.Value, key int64) error {
			target := reflect.New(typ.Elem())
			if err := elem(target.Elem(), key); err != nil {
				return err
			}
			v.Set(target)
			return nil
		}
	}
	return nil
}

// ColumnName строит имя колонки из пути: "Estimate.TotalCost" -> "Estimate_TotalCost"
func ColumnName(path string) string {
	return strings.ReplaceAll(path, ".", "_")
}
