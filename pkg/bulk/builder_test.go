package bulk

import (
	"database/sql/driver"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ruslano69/sqlbulk/pkg/core/predicate"
	"github.com/ruslano69/sqlbulk/pkg/core/typemap"
)

type book struct {
	ID          int64 `bulk:"Id"`
	ISBN        string
	Title       string
	Price       decimal.Decimal
	WarehouseID int32 `bulk:"WarehouseId"`
	Notes       *string
}

type shipment struct {
	Number  int64
	Address address
}

type address struct {
	City string
	Zip  string
}

func testBooks() []book {
	return []book{
		{ISBN: "978-0-00-000001-1", Title: "One", Price: decimal.NewFromInt(10), WarehouseID: 1},
		{ISBN: "978-0-00-000002-2", Title: "Two", Price: decimal.NewFromInt(20), WarehouseID: 1},
		{ISBN: "978-0-00-000003-3", Title: "Three", Price: decimal.NewFromInt(30), WarehouseID: 2},
	}
}

func columnNames(op *Operation) []string {
	var names []string
	for _, c := range op.Columns() {
		names = append(names, c.Name)
	}
	return names
}

func TestBuildSelectsColumns(t *testing.T) {
	op, err := For(testBooks()).
		WithTable("Books").
		AddAllColumns().
		RemoveColumn("Notes").
		AddColumnAs("Title", "BookTitle").
		Insert().
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	got := strings.Join(columnNames(op), ",")
	want := "Id,ISBN,BookTitle,Price,WarehouseId"
	if got != want {
		t.Errorf("columns = %s, want %s", got, want)
	}
	if op.Table() != "[dbo].[Books]" {
		t.Errorf("table = %s", op.Table())
	}
	if op.Kind() != KindInsert || op.Len() != 3 {
		t.Errorf("kind = %v, len = %d", op.Kind(), op.Len())
	}
}

func TestBuildNestedFields(t *testing.T) {
	op, err := For([]*shipment{{Number: 1}}).
		WithTable("sales.Shipments").
		AddColumn("Number").
		AddColumn("Address.City").
		Upsert().
		MatchTargetOn("Number").
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := strings.Join(columnNames(op), ","); got != "Number,Address_City" {
		t.Errorf("columns = %s", got)
	}
	if got := op.updateColumns(); len(got) != 1 || got[0] != "Address_City" {
		t.Errorf("update columns = %v", got)
	}
}

func TestBuildIdentityColumn(t *testing.T) {
	op, err := For(testBooks()).
		WithTable("Books").
		AddColumn("ISBN").
		AddColumn("Title").
		SetIdentityColumn("ID", InputOutput).
		Upsert().
		MatchTargetOn("ISBN").
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	cols := op.Columns()
	last := cols[len(cols)-1]
	if last.Name != "Id" || !last.Identity || last.Direction != InputOutput {
		t.Errorf("identity column not appended: %+v", last)
	}
	if !op.wantsOutput() {
		t.Error("InputOutput identity must request output")
	}
	for _, c := range op.insertColumns() {
		if c == "Id" {
			t.Error("identity must not be inserted without KeepIdentity")
		}
	}

	s := DefaultSettings()
	s.KeepIdentity = true
	op, err = For(testBooks()).WithTable("Books").AddAllColumns().
		SetIdentityColumn("ID", Input).WithSettings(s).Insert().Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := op.insertColumns(); got[0] != "Id" {
		t.Errorf("KeepIdentity must insert the identity column, got %v", got)
	}
}

func TestBuildUpdateColumns(t *testing.T) {
	op, err := For(testBooks()).
		WithTable("Books").
		AddAllColumns().
		SetIdentityColumn("ID", Input).
		Update().
		MatchTargetOn("ISBN").
		ExcludeColumnFromUpdate("Price").
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := strings.Join(op.updateColumns(), ","); got != "Title,WarehouseId,Notes" {
		t.Errorf("update columns = %s", got)
	}
	if op.insertColumns() != nil {
		t.Error("update must not insert")
	}

	op, err = For(testBooks()).WithTable("Books").AddAllColumns().
		Upsert().MatchTargetOn("ISBN").ExcludeAllColumnsFromUpdate().Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if op.updateColumns() != nil {
		t.Error("ExcludeAllColumnsFromUpdate must leave nothing to update")
	}
}

func TestBuildPredicates(t *testing.T) {
	op, err := For(testBooks()).
		WithTable("Books").
		AddColumn("ISBN").
		AddColumn("Title").
		AddColumn("WarehouseID").
		Upsert().
		MatchTargetOn("ISBN").
		UpdateWhen("WarehouseId = ?", 1).
		UpdateWhen("Title <> ?", "draft").
		DeleteWhen("WarehouseID = ?", 1).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	want := "(Target.[WarehouseId] = @UpdateWhen1) AND (Target.[Title] <> @UpdateWhen2)"
	if op.updateWhen.SQL != want {
		t.Errorf("UpdateWhen = %q, want %q", op.updateWhen.SQL, want)
	}
	if op.updateWhen.Kind != predicate.UpdateWhen || len(op.updateWhen.Args) != 2 {
		t.Errorf("unexpected update fragment: %+v", op.updateWhen)
	}
	if op.deleteWhen.SQL != "Target.[WarehouseId] = @DeleteWhen3" {
		t.Errorf("DeleteWhen = %q", op.deleteWhen.SQL)
	}
}

func TestBuildPredicateOnUnselectedField(t *testing.T) {
	op, err := For(testBooks()).
		WithTable("Books").
		AddColumn("ISBN").
		Delete().
		MatchTargetOn("ISBN").
		DeleteWhen("Price > ?", 10).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if op.deleteWhen.SQL != "Target.[Price] > @DeleteWhen1" {
		t.Errorf("DeleteWhen = %q", op.deleteWhen.SQL)
	}
}

func TestBuildErrors(t *testing.T) {
	type withMap struct {
		Key   int64
		Attrs map[string]string
	}

	tests := []struct {
		name  string
		build func() (*Operation, error)
		kind  error
		msg   string
	}{
		{
			name:  "no table",
			build: func() (*Operation, error) { return For(testBooks()).AddAllColumns().Insert().Build() },
			kind:  ErrConfiguration,
			msg:   "WithTable",
		},
		{
			name:  "two periods",
			build: func() (*Operation, error) { return For(testBooks()).WithTable("a.b.c").AddAllColumns().Insert().Build() },
			kind:  ErrConfiguration,
			msg:   "table name can't contain more than one period",
		},
		{
			name: "schema conflict",
			build: func() (*Operation, error) {
				return For(testBooks()).WithTable("sales.Books").WithSchema("dbo").AddAllColumns().Insert().Build()
			},
			kind: ErrConfiguration,
			msg:  "schema has already been defined in WithTable",
		},
		{
			name:  "no kind",
			build: func() (*Operation, error) { return For(testBooks()).WithTable("Books").AddAllColumns().Build() },
			kind:  ErrConfiguration,
			msg:   "operation kind is not set",
		},
		{
			name:  "no columns",
			build: func() (*Operation, error) { return For(testBooks()).WithTable("Books").Insert().Build() },
			kind:  ErrConfiguration,
			msg:   "no columns selected",
		},
		{
			name: "duplicate column",
			build: func() (*Operation, error) {
				return For(testBooks()).WithTable("Books").AddColumn("Title").AddColumnAs("ISBN", "Title").Insert().Build()
			},
			kind: ErrConfiguration,
			msg:  `column "Title" appears more than once`,
		},
		{
			name:  "unknown field",
			build: func() (*Operation, error) { return For(testBooks()).WithTable("Books").AddColumn("Author").Insert().Build() },
			kind:  ErrConfiguration,
			msg:   `field "Author" not found`,
		},
		{
			name:  "missing match keys",
			build: func() (*Operation, error) { return For(testBooks()).WithTable("Books").AddAllColumns().Upsert().Build() },
			kind:  ErrConfiguration,
			msg:   "MatchTargetOn list is empty",
		},
		{
			name:  "delete without DeleteAll needs match keys",
			build: func() (*Operation, error) { return For(testBooks()).WithTable("Books").AddColumn("ISBN").Delete().Build() },
			kind:  ErrConfiguration,
			msg:   "MatchTargetOn list is empty",
		},
		{
			name: "DeleteAll on upsert",
			build: func() (*Operation, error) {
				return For(testBooks()).WithTable("Books").AddAllColumns().Upsert().MatchTargetOn("ISBN").DeleteAll().Build()
			},
			kind: ErrConfiguration,
			msg:  "DeleteAll is only valid for delete",
		},
		{
			name: "DeleteAll with match keys",
			build: func() (*Operation, error) {
				return For(testBooks()).WithTable("Books").AddColumn("ISBN").Delete().MatchTargetOn("ISBN").DeleteAll().Build()
			},
			kind: ErrConfiguration,
			msg:  "DeleteAll cannot be combined with MatchTargetOn",
		},
		{
			name: "match key not selected",
			build: func() (*Operation, error) {
				return For(testBooks()).WithTable("Books").AddColumn("Title").Update().MatchTargetOn("ISBN").Build()
			},
			kind: ErrConfiguration,
			msg:  `match key "ISBN" is not a selected column`,
		},
		{
			name: "unsupported predicate",
			build: func() (*Operation, error) {
				return For(testBooks()).WithTable("Books").AddAllColumns().Update().MatchTargetOn("ISBN").
					UpdateWhen("LEN(Title) > 3").Build()
			},
			kind: ErrConfiguration,
			msg:  "UpdateWhen",
		},
		{
			name: "placeholder mismatch",
			build: func() (*Operation, error) {
				return For(testBooks()).WithTable("Books").AddAllColumns().Update().MatchTargetOn("ISBN").
					UpdateWhen("Price > ?").Build()
			},
			kind: ErrConfiguration,
			msg:  "placeholders",
		},
		{
			name: "predicate on insert",
			build: func() (*Operation, error) {
				return For(testBooks()).WithTable("Books").AddAllColumns().Insert().DeleteWhen("Price > 1").Build()
			},
			kind: ErrConfiguration,
			msg:  "DeleteWhen is not valid for insert",
		},
		{
			name: "unsupported field type",
			build: func() (*Operation, error) {
				return For([]withMap{{Key: 1}}).WithTable("T").AddColumn("Key").AddColumn("Attrs").Insert().Build()
			},
			kind: ErrTypeMapping,
			msg:  "Attrs",
		},
		{
			name:  "row type is not a struct",
			build: func() (*Operation, error) { return For([]int{1, 2}).WithTable("T").AddAllColumns().Insert().Build() },
			kind:  ErrTypeMapping,
			msg:   "unsupported row type",
		},
		{
			name: "invalid settings",
			build: func() (*Operation, error) {
				return For(testBooks()).WithTable("Books").AddAllColumns().Insert().
					WithSettings(Settings{Strategy: "fast"}).Build()
			},
			kind: ErrConfiguration,
			msg:  "invalid settings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := tt.build()
			if err == nil {
				t.Fatalf("expected error, got operation %+v", op)
			}
			if !errors.Is(err, tt.kind) {
				t.Errorf("error %v does not wrap %v", err, tt.kind)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error %q does not mention %q", err, tt.msg)
			}
		})
	}
}

func TestBuildUnsupportedTypeKeepsCause(t *testing.T) {
	type withChan struct {
		Ch chan int
	}
	_, err := For([]withChan{{}}).WithTable("T").AddColumn("Ch").Insert().Build()

	var ute *typemap.UnsupportedTypeError
	if !errors.As(err, &ute) {
		t.Fatalf("expected UnsupportedTypeError in chain, got %v", err)
	}
}

func TestAddAllColumnsSkipsUnmappableFields(t *testing.T) {
	type mixed struct {
		Key   int64
		Attrs map[string]string
	}
	op, err := For([]mixed{{Key: 1}}).WithTable("T").AddAllColumns().Insert().Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := strings.Join(columnNames(op), ","); got != "Key" {
		t.Errorf("columns = %s", got)
	}
}

func TestBuildDeleteAll(t *testing.T) {
	op, err := For(testBooks()).WithTable("Books").AddColumn("ISBN").Delete().DeleteAll().Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !op.deleteAll || len(op.MatchOn()) != 0 {
		t.Errorf("unexpected operation: deleteAll=%v matchOn=%v", op.deleteAll, op.MatchOn())
	}

	op, err = For([]book(nil)).WithTable("Books").Delete().DeleteAll().DeleteWhen("WarehouseID = ?", 2).Build()
	if err != nil {
		t.Fatalf("Build without rows or columns failed: %v", err)
	}
	if op.deleteWhen.SQL != "Target.[WarehouseId] = @DeleteWhen1" {
		t.Errorf("DeleteWhen SQL = %q", op.deleteWhen.SQL)
	}
}

// money is a driver.Valuer the type tables know nothing about.
type money struct{ cents int64 }

func (m money) Value() (driver.Value, error) { return m.cents, nil }

func TestBuildMapsDecimalAndValuerFields(t *testing.T) {
	type invoice struct {
		Number   int64
		Total    decimal.Decimal
		Discount decimal.NullDecimal
		Fee      money
	}
	rows := []invoice{{Number: 1, Total: decimal.New(1999, -2), Fee: money{cents: 50}}}

	op, err := For(rows).WithTable("Invoices").AddAllColumns().Insert().Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := strings.Join(columnNames(op), ","); got != "Number,Total,Discount,Fee" {
		t.Errorf("columns = %s", got)
	}

	if _, err := For(rows).WithTable("Invoices").AddColumn("Fee").Insert().Build(); err != nil {
		t.Errorf("explicit valuer column rejected: %v", err)
	}
}
