package mssql

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ruslano69/sqlbulk/pkg/core/typemap"
)

func TestColumnDefinition(t *testing.T) {
	tests := []struct {
		col  ColumnInfo
		want string
	}{
		{ColumnInfo{DataType: "nvarchar", MaxLength: 50}, "nvarchar(50)"},
		{ColumnInfo{DataType: "varbinary", MaxLength: -1}, "varbinary(max)"},
		{ColumnInfo{DataType: "decimal", Precision: 18, Scale: 2}, "decimal(18,2)"},
		{ColumnInfo{DataType: "datetime2", DateTimePrecision: 3}, "datetime2(3)"},
		{ColumnInfo{DataType: "time", DateTimePrecision: 7}, "time(7)"},
		{ColumnInfo{DataType: "timestamp"}, "binary(8)"},
		{ColumnInfo{DataType: "int"}, "int"},
		{ColumnInfo{DataType: "xml"}, "xml"},
	}

	for _, tt := range tests {
		if got := ColumnDefinition(tt.col); got != tt.want {
			t.Errorf("ColumnDefinition(%+v) = %q, want %q", tt.col, got, tt.want)
		}
	}
}

func TestBuildStagingTableSQL(t *testing.T) {
	columns := []StagingColumn{
		{Name: "Id", Info: ColumnInfo{DataType: "int", Identity: true}},
		{Name: "Title", Info: ColumnInfo{DataType: "nvarchar", MaxLength: 256}},
		{Name: "Price", Info: ColumnInfo{DataType: "decimal", Precision: 10, Scale: 2, Nullable: true}},
	}

	got := BuildStagingTableSQL("#TmpTable_1", columns, "BulkRowOrdinal")
	want := "CREATE TABLE #TmpTable_1 (\n" +
		"\t[Id] int NULL,\n" +
		"\t[Title] nvarchar(256) COLLATE DATABASE_DEFAULT NOT NULL,\n" +
		"\t[Price] decimal(10,2) NULL,\n" +
		"\t[BulkRowOrdinal] int NOT NULL\n" +
		");"

	if got != want {
		t.Errorf("SQL mismatch\n got:\n%s\nwant:\n%s", got, want)
	}

	if strings.Contains(BuildStagingTableSQL("#T", columns[:1], ""), "BulkRowOrdinal") {
		t.Error("ordinal column must be omitted when not requested")
	}
}

func TestBuildOutputTableSQL(t *testing.T) {
	got := BuildOutputTableSQL("#TmpOutput_1", "BulkRowOrdinal", ColumnInfo{Name: "Id", DataType: "bigint"})
	want := "CREATE TABLE #TmpOutput_1 (\n\t[BulkRowOrdinal] int NULL,\n\t[Id] bigint NULL\n);"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDeleteAllSQL(t *testing.T) {
	if got := DeleteAllSQL("[dbo].[T]", ""); got != "DELETE FROM [dbo].[T];" {
		t.Errorf("got %q", got)
	}
	got := DeleteAllSQL("[dbo].[T]", "Target.[Price] > @DeleteWhen1")
	want := "DELETE Target FROM [dbo].[T] AS Target WHERE Target.[Price] > @DeleteWhen1;"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDropTableSQL(t *testing.T) {
	got := DropTableSQL("#TmpTable_1")
	want := "IF OBJECT_ID('tempdb..#TmpTable_1') IS NOT NULL DROP TABLE #TmpTable_1;"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildInsertValuesSQL(t *testing.T) {
	id := uuid.MustParse("6f9619ff-8b86-d011-b42d-00c04fc964ff")
	rows := [][]any{
		{int64(1), "first", id},
		{int64(2), nil, uuid.NullUUID{}},
	}

	stmt, args, err := BuildInsertValuesSQL("[dbo].[T]", []string{"Id", "Name", "Ref"}, rows, InsertOptions{KeepNulls: true})
	if err != nil {
		t.Fatalf("BuildInsertValuesSQL failed: %v", err)
	}

	want := "INSERT INTO [dbo].[T] ([Id], [Name], [Ref]) VALUES\n" +
		"(@r0c0, @r0c1, @r0c2),\n" +
		"(@r1c0, NULL, NULL);"
	if stmt != want {
		t.Errorf("SQL mismatch\n got:\n%s\nwant:\n%s", stmt, want)
	}

	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(args))
	}
	ref, ok := args[2].(sql.NamedArg)
	if !ok || ref.Name != "r0c2" {
		t.Fatalf("unexpected third arg: %#v", args[2])
	}
	if _, ok := ref.Value.(mssql.UniqueIdentifier); !ok {
		t.Errorf("uuid must be sent as UniqueIdentifier, got %T", ref.Value)
	}
}

func TestBuildInsertValuesSQL_NullAsDefault(t *testing.T) {
	rows := [][]any{
		{int64(1), nil},
		{int64(2), sql.NullString{}},
	}
	stmt, args, err := BuildInsertValuesSQL("[dbo].[T]", []string{"Id", "Notes"}, rows, InsertOptions{})
	if err != nil {
		t.Fatalf("BuildInsertValuesSQL failed: %v", err)
	}
	want := "INSERT INTO [dbo].[T] ([Id], [Notes]) VALUES\n" +
		"(@r0c0, DEFAULT),\n" +
		"(@r1c0, DEFAULT);"
	if stmt != want {
		t.Errorf("SQL mismatch\n got:\n%s\nwant:\n%s", stmt, want)
	}
	if len(args) != 2 {
		t.Errorf("expected 2 args, got %d", len(args))
	}
}

func TestBuildInsertValuesSQL_IdentityInsert(t *testing.T) {
	stmt, _, err := BuildInsertValuesSQL("[dbo].[T]", []string{"Id"}, [][]any{{int64(7)}}, InsertOptions{IdentityInsert: true})
	if err != nil {
		t.Fatalf("BuildInsertValuesSQL failed: %v", err)
	}
	if !strings.HasPrefix(stmt, "SET IDENTITY_INSERT [dbo].[T] ON;\n") {
		t.Errorf("missing IDENTITY_INSERT ON:\n%s", stmt)
	}
	if !strings.HasSuffix(stmt, "\nSET IDENTITY_INSERT [dbo].[T] OFF;") {
		t.Errorf("missing IDENTITY_INSERT OFF:\n%s", stmt)
	}
}

func TestBuildInsertValuesSQL_Limits(t *testing.T) {
	columns := make([]string, 10)
	for i := range columns {
		columns[i] = fmt.Sprintf("C%d", i)
	}
	rows := make([][]any, MaxParameters/len(columns)+1)
	for i := range rows {
		row := make([]any, len(columns))
		for j := range row {
			row[j] = int64(j)
		}
		rows[i] = row
	}

	if _, _, err := BuildInsertValuesSQL("[dbo].[T]", columns, rows, InsertOptions{}); err == nil {
		t.Error("expected error above the parameter limit")
	}
	if _, _, err := BuildInsertValuesSQL("[dbo].[T]", columns, rows[:1], InsertOptions{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, _, err := BuildInsertValuesSQL("[dbo].[T]", []string{"A"}, [][]any{{1, 2}}, InsertOptions{}); err == nil {
		t.Error("expected error for row width mismatch")
	}
}

func TestBuildInsertFromStagingSQL(t *testing.T) {
	got := BuildInsertFromStagingSQL("[dbo].[T]", "#S", []string{"Id", "Name"}, true)
	want := "SET IDENTITY_INSERT [dbo].[T] ON;\n" +
		"INSERT INTO [dbo].[T] ([Id], [Name])\nSELECT [Id], [Name] FROM #S;\n" +
		"SET IDENTITY_INSERT [dbo].[T] OFF;\n" +
		"DROP TABLE #S;"
	if got != want {
		t.Errorf("SQL mismatch\n got:\n%s\nwant:\n%s", got, want)
	}
}

func TestCopyValue(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"uuid", id, mssql.UniqueIdentifier(id)},
		{"null uuid", uuid.NullUUID{}, nil},
		{"xml", typemap.XML("<a/>"), "<a/>"},
		{"geography", typemap.Geography{1, 2}, []byte{1, 2}},
		{"null string", sql.NullString{}, nil},
		{"valid string", sql.NullString{String: "x", Valid: true}, "x"},
		{"plain", int64(5), int64(5)},
		{"decimal", decimal.RequireFromString("12345678901234567.89"), "12345678901234567.89"},
		{"null decimal", decimal.NullDecimal{}, nil},
		{"valid null decimal", decimal.NewNullDecimal(decimal.New(105, -1)), "10.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := copyValue(tt.in)
			if err != nil {
				t.Fatalf("copyValue failed: %v", err)
			}
			if fmt.Sprintf("%#v", got) != fmt.Sprintf("%#v", tt.want) {
				t.Errorf("copyValue(%#v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}

	got, err := copyValue(90 * time.Minute)
	if err != nil {
		t.Fatalf("copyValue failed: %v", err)
	}
	tm, ok := got.(time.Time)
	if !ok || tm.Hour() != 1 || tm.Minute() != 30 {
		t.Errorf("duration must become time of day, got %#v", got)
	}
}

func TestTypeTablesMapDecimal(t *testing.T) {
	m := typemap.New(TypeTables())

	tag, err := m.Map(reflect.TypeOf(decimal.Decimal{}))
	if err != nil {
		t.Fatalf("Map(decimal.Decimal) failed: %v", err)
	}
	if tag.Param != typemap.Decimal || tag.Declared != "decimal(38,18)" || tag.Nullable {
		t.Errorf("decimal.Decimal tag = %+v", tag)
	}

	tag, err = m.Map(reflect.TypeOf(decimal.NullDecimal{}))
	if err != nil {
		t.Fatalf("Map(decimal.NullDecimal) failed: %v", err)
	}
	if tag.Param != typemap.Decimal || !tag.Nullable {
		t.Errorf("decimal.NullDecimal tag = %+v", tag)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		class  ErrorClass
		number int32
	}{
		{mssql.Error{Number: 8102}, ClassIdentity, 8102},
		{fmt.Errorf("exec: %w", mssql.Error{Number: 544}), ClassIdentity, 544},
		{&mssql.Error{Number: 2627}, ClassConstraint, 2627},
		{mssql.Error{Number: 208}, ClassMissingObject, 208},
		{mssql.Error{Number: 1205}, ClassDeadlock, 1205},
		{mssql.Error{Number: 50000}, ClassUnknown, 50000},
		{errors.New("network"), ClassUnknown, 0},
	}

	for _, tt := range tests {
		class, number := Classify(tt.err)
		if class != tt.class || number != tt.number {
			t.Errorf("Classify(%v) = (%v, %d), want (%v, %d)", tt.err, class, number, tt.class, tt.number)
		}
	}
}

func TestIndexAndOutputSQL(t *testing.T) {
	if got := RebuildIndexesSQL("[dbo].[T]"); got != "ALTER INDEX ALL ON [dbo].[T] REBUILD;" {
		t.Errorf("unexpected rebuild SQL: %q", got)
	}
	want := "SELECT [BulkRowOrdinal], [Id] FROM #O WHERE [BulkRowOrdinal] IS NOT NULL ORDER BY [BulkRowOrdinal];"
	if got := ReadOutputSQL("#O", "BulkRowOrdinal", "Id"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !strings.Contains(disableIndexesSQL, "'NONCLUSTERED'") {
		t.Error("only non-clustered indexes may be disabled")
	}
}

func TestParseServerVersion(t *testing.T) {
	tests := map[string]int{
		"11.0.2100.60": 11,
		"15.0.2000.5":  15,
		"16.0.1000.6":  16,
		"garbage":      0,
		"":             0,
	}
	for in, want := range tests {
		if got := parseServerVersion(in); got != want {
			t.Errorf("parseServerVersion(%q) = %d, want %d", in, got, want)
		}
	}

	info := ServerInfo{Major: 10, CompatLevel: 90}
	if info.SupportsMerge() {
		t.Error("compatibility level 90 must not support MERGE")
	}
	info.CompatLevel = CompatSQL2008
	if !info.SupportsMerge() {
		t.Error("SQL Server 2008 must support MERGE")
	}
}
