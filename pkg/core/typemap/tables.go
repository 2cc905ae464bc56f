package typemap

import (
	"database/sql"
	"maps"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ParamType тип параметра, под которым значение уходит на сервер
type ParamType int

const (
	Invalid ParamType = iota
	Bit
	TinyInt
	SmallInt
	Int
	BigInt
	Real
	Float
	Decimal
	NVarChar
	NChar
	VarBinary
	DateTime2
	DateTimeOffset
	Time
	UniqueIdentifier
	Xml
	GeographyUDT
	GeometryUDT
	HierarchyIDUDT
	Variant
)

var paramNames = map[ParamType]string{
	Bit:              "bit",
	TinyInt:          "tinyint",
	SmallInt:         "smallint",
	Int:              "int",
	BigInt:           "bigint",
	Real:             "real",
	Float:            "float",
	Decimal:          "decimal",
	NVarChar:         "nvarchar",
	NChar:            "nchar",
	VarBinary:        "varbinary",
	DateTime2:        "datetime2",
	DateTimeOffset:   "datetimeoffset",
	Time:             "time",
	UniqueIdentifier: "uniqueidentifier",
	Xml:              "xml",
	GeographyUDT:     "geography",
	GeometryUDT:      "geometry",
	HierarchyIDUDT:   "hierarchyid",
	Variant:          "sql_variant",
}

func (p ParamType) String() string {
	if name, ok := paramNames[p]; ok {
		return name
	}
	return "invalid"
}

// XML, Geography, Geometry и HierarchyID - явно разрешенные
// не-скалярные типы. Значения передаются как есть (текст XML
// или сериализованное представление CLR-типа).
type (
	XML         string
	Geography   []byte
	Geometry    []byte
	HierarchyID []byte
)

// Param запись таблицы параметров
type Param struct {
	Type     ParamType
	Nullable bool
}

// Tables две неизменяемые таблицы соответствия типов:
//   - Params: Go тип -> тип параметра
//   - Columns: Go тип -> объявленный тип колонки SQL Server
//
// Kinds используется как запасной вариант для именованных типов
// (type Status string и т.п.).
//
// Значение Tables не изменяется после построения; With возвращает копию.
type Tables struct {
	params  map[reflect.Type]Param
	columns map[reflect.Type]string
	kinds   map[reflect.Kind]ParamType
}

var defaultTables = sync.OnceValue(buildDefaultTables)

// DefaultTables возвращает таблицы по умолчанию. Строятся один раз на процесс.
func DefaultTables() Tables {
	return defaultTables()
}

// With возвращает копию таблиц с дополнительным типом.
// Используется адаптерами для регистрации типов драйвера.
func (t Tables) With(typ reflect.Type, p Param, declared string) Tables {
	next := Tables{
		params:  maps.Clone(t.params),
		columns: maps.Clone(t.columns),
		kinds:   t.kinds,
	}
	next.params[typ] = p
	next.columns[typ] = declared
	return next
}

// Len возвращает количество явно зарегистрированных типов
func (t Tables) Len() int {
	return len(t.params)
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func buildDefaultTables() Tables {
	t := Tables{
		params:  make(map[reflect.Type]Param),
		columns: make(map[reflect.Type]string),
		kinds: map[reflect.Kind]ParamType{
			reflect.Bool:    Bit,
			reflect.Int8:    SmallInt,
			reflect.Int16:   SmallInt,
			reflect.Int32:   Int,
			reflect.Int:     BigInt,
			reflect.Int64:   BigInt,
			reflect.Uint8:   TinyInt,
			reflect.Uint16:  Int,
			reflect.Uint32:  BigInt,
			reflect.Float32: Real,
			reflect.Float64: Float,
			reflect.String:  NVarChar,
		},
	}

	add := func(typ reflect.Type, p ParamType, nullable bool, declared string) {
		t.params[typ] = Param{Type: p, Nullable: nullable}
		t.columns[typ] = declared
	}

	add(typeOf[bool](), Bit, false, "bit")
	add(typeOf[int8](), SmallInt, false, "smallint")
	add(typeOf[int16](), SmallInt, false, "smallint")
	add(typeOf[int32](), Int, false, "int")
	add(typeOf[int](), BigInt, false, "bigint")
	add(typeOf[int64](), BigInt, false, "bigint")
	add(typeOf[uint8](), TinyInt, false, "tinyint")
	add(typeOf[uint16](), Int, false, "int")
	add(typeOf[uint32](), BigInt, false, "bigint")
	add(typeOf[float32](), Real, false, "real")
	add(typeOf[float64](), Float, false, "float")
	add(typeOf[string](), NVarChar, false, "nvarchar(max)")
	add(typeOf[[]rune](), NChar, false, "nvarchar(max)")
	add(typeOf[[]byte](), VarBinary, true, "varbinary(max)")
	add(typeOf[time.Time](), DateTime2, false, "datetime2(7)")
	add(typeOf[time.Duration](), Time, false, "time(7)")
	add(typeOf[uuid.UUID](), UniqueIdentifier, false, "uniqueidentifier")

	add(typeOf[sql.NullBool](), Bit, true, "bit")
	add(typeOf[sql.NullByte](), TinyInt, true, "tinyint")
	add(typeOf[sql.NullInt16](), SmallInt, true, "smallint")
	add(typeOf[sql.NullInt32](), Int, true, "int")
	add(typeOf[sql.NullInt64](), BigInt, true, "bigint")
	add(typeOf[sql.NullFloat64](), Float, true, "float")
	add(typeOf[sql.NullString](), NVarChar, true, "nvarchar(max)")
	add(typeOf[sql.NullTime](), DateTime2, true, "datetime2(7)")
	add(typeOf[uuid.NullUUID](), UniqueIdentifier, true, "uniqueidentifier")

	add(typeOf[XML](), Xml, false, "xml")
	add(typeOf[Geography](), GeographyUDT, true, "geography")
	add(typeOf[Geometry](), GeometryUDT, true, "geometry")
	add(typeOf[HierarchyID](), HierarchyIDUDT, true, "hierarchyid")

	return t
}
