package typemap

import (
	"database/sql/driver"
	"fmt"
	"reflect"
)

var valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()

// Tag результат сопоставления Go типа
type Tag struct {
	Param    ParamType
	Declared string // тип колонки по умолчанию, например "bigint"
	Nullable bool
}

// UnsupportedTypeError тип поля вне поддерживаемого набора
type UnsupportedTypeError struct {
	Type reflect.Type
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("type %s is not supported for bulk operations", e.Type)
}

// Mapper проверяет и сопоставляет типы полей.
// Таблицы передаются при создании, глобальное состояние не используется.
type Mapper struct {
	tables Tables
}

// New создает Mapper поверх переданных таблиц
func New(tables Tables) *Mapper {
	return &Mapper{tables: tables}
}

// Map возвращает тег для типа или *UnsupportedTypeError.
// Указатели разворачиваются и помечаются как nullable.
func (m *Mapper) Map(typ reflect.Type) (Tag, error) {
	if typ == nil {
		return Tag{}, &UnsupportedTypeError{Type: typ}
	}

	nullable := false
	base := typ
	if base.Kind() == reflect.Pointer {
		nullable = true
		base = base.Elem()
		if base.Kind() == reflect.Pointer {
			return Tag{}, &UnsupportedTypeError{Type: typ}
		}
	}

	// Точное совпадение имеет приоритет над Kind:
	// XML объявлен как string, но должен остаться xml
	if p, ok := m.tables.params[base]; ok {
		return Tag{
			Param:    p.Type,
			Declared: m.tables.columns[base],
			Nullable: nullable || p.Nullable,
		}, nil
	}

	// Незарегистрированная структура с driver.Valuer передается как есть,
	// значение определяет сам Value
	if base.Kind() == reflect.Struct && (typ.Implements(valuerType) || base.Implements(valuerType)) {
		return Tag{Param: Variant, Declared: "sql_variant", Nullable: true}, nil
	}

	switch base.Kind() {
	case reflect.Slice:
		switch base.Elem().Kind() {
		case reflect.Uint8:
			return Tag{Param: VarBinary, Declared: "varbinary(max)", Nullable: true}, nil
		case reflect.Int32:
			return Tag{Param: NChar, Declared: "nvarchar(max)", Nullable: nullable}, nil
		}
		return Tag{}, &UnsupportedTypeError{Type: typ}
	case reflect.Struct, reflect.Array, reflect.Map, reflect.Chan, reflect.Func,
		reflect.Interface, reflect.Complex64, reflect.Complex128,
		reflect.Uint, reflect.Uint64, reflect.Uintptr, reflect.UnsafePointer:
		return Tag{}, &UnsupportedTypeError{Type: typ}
	}

	p, ok := m.tables.kinds[base.Kind()]
	if !ok {
		return Tag{}, &UnsupportedTypeError{Type: typ}
	}
	return Tag{
		Param:    p,
		Declared: m.tables.columns[kindType(base.Kind())],
		Nullable: nullable,
	}, nil
}

// Supported сообщает, поддерживается ли тип
func (m *Mapper) Supported(typ reflect.Type) bool {
	_, err := m.Map(typ)
	return err == nil
}

// IsScalar сообщает, является ли тип листовым значением, а не вложенной
// структурой для разворачивания. time.Time и uuid.UUID - скаляры.
func (m *Mapper) IsScalar(typ reflect.Type) bool {
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if _, ok := m.tables.params[typ]; ok {
		return true
	}
	if typ.Implements(valuerType) || reflect.PointerTo(typ).Implements(valuerType) {
		return true
	}
	return typ.Kind() != reflect.Struct
}

func kindType(k reflect.Kind) reflect.Type {
	switch k {
	case reflect.Bool:
		return typeOf[bool]()
	case reflect.Int8:
		return typeOf[int8]()
	case reflect.Int16:
		return typeOf[int16]()
	case reflect.Int32:
		return typeOf[int32]()
	case reflect.Int:
		return typeOf[int]()
	case reflect.Int64:
		return typeOf[int64]()
	case reflect.Uint8:
		return typeOf[uint8]()
	case reflect.Uint16:
		return typeOf[uint16]()
	case reflect.Uint32:
		return typeOf[uint32]()
	case reflect.Float32:
		return typeOf[float32]()
	case reflect.Float64:
		return typeOf[float64]()
	default:
		return typeOf[string]()
	}
}
