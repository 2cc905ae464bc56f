package bulk

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/ruslano69/sqlbulk/pkg/adapters/mssql"
	"github.com/ruslano69/sqlbulk/pkg/core/predicate"
	"github.com/ruslano69/sqlbulk/pkg/core/rowset"
	"github.com/ruslano69/sqlbulk/pkg/core/typemap"
)

// Kind is the reconciliation an operation performs.
type Kind int

const (
	KindInsert Kind = iota + 1
	KindUpdate
	KindUpsert
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindUpsert:
		return "upsert"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// ColumnDirection tells whether the identity column only feeds the
// statement or also receives the generated key back.
type ColumnDirection int

const (
	Input ColumnDirection = iota
	InputOutput
)

// Column is one selected destination column.
type Column struct {
	Name      string // destination column
	Field     string // Go field path on the row type
	Identity  bool
	Direction ColumnDirection
}

type condition struct {
	expr string
	args []any
}

type columnRef struct {
	field  string
	column string // empty means the default column name
}

// Builder collects the configuration of one bulk operation. Methods only
// record; every check runs in Build.
type Builder[T any] struct {
	rows []T

	table  string
	schema string
	kind   Kind

	allColumns bool
	columns    []columnRef
	removed    map[string]bool

	matchOn []string

	identityField string
	identityDir   ColumnDirection

	excluded   []string
	excludeAll bool

	updateWhen       []condition
	deleteWhen       []condition
	deleteNotMatched bool
	deleteAll        bool

	settings Settings
	logger   zerolog.Logger
	transfer TransferFunc
	tables   *typemap.Tables
}

// For starts an operation over rows. T must be a struct or a pointer to
// a struct. Generated identity values are written into the elements of
// rows, so the caller sees them in the same slice.
func For[T any](rows []T) *Builder[T] {
	return &Builder[T]{
		rows:     rows,
		removed:  make(map[string]bool),
		settings: DefaultSettings(),
		logger:   zerolog.Nop(),
	}
}

// WithTable sets the destination: "table", "schema.table" or "[schema].[table]".
func (b *Builder[T]) WithTable(name string) *Builder[T] {
	b.table = name
	return b
}

// WithSchema sets the destination schema. Default is dbo.
func (b *Builder[T]) WithSchema(name string) *Builder[T] {
	b.schema = name
	return b
}

// AddColumn selects a field under its default column name.
func (b *Builder[T]) AddColumn(field string) *Builder[T] {
	b.columns = append(b.columns, columnRef{field: field})
	return b
}

// AddColumnAs selects a field and maps it to a differently named column.
func (b *Builder[T]) AddColumnAs(field, column string) *Builder[T] {
	b.columns = append(b.columns, columnRef{field: field, column: column})
	return b
}

// AddAllColumns selects every mappable field of T.
func (b *Builder[T]) AddAllColumns() *Builder[T] {
	b.allColumns = true
	return b
}

// RemoveColumn drops a field selected by AddAllColumns.
func (b *Builder[T]) RemoveColumn(field string) *Builder[T] {
	b.removed[field] = true
	return b
}

// Insert adds every row. Match keys are ignored.
func (b *Builder[T]) Insert() *Builder[T] {
	b.kind = KindInsert
	return b
}

// Update changes destination rows that match a source row.
func (b *Builder[T]) Update() *Builder[T] {
	b.kind = KindUpdate
	return b
}

// Upsert updates matched rows and inserts the rest.
func (b *Builder[T]) Upsert() *Builder[T] {
	b.kind = KindUpsert
	return b
}

// Delete removes destination rows that match a source row.
func (b *Builder[T]) Delete() *Builder[T] {
	b.kind = KindDelete
	return b
}

// MatchTargetOn adds fields whose columns identify a destination row.
// Multiple keys are ANDed.
func (b *Builder[T]) MatchTargetOn(fields ...string) *Builder[T] {
	b.matchOn = append(b.matchOn, fields...)
	return b
}

// SetIdentityColumn declares the identity column. With InputOutput the
// generated keys are written back into the rows.
func (b *Builder[T]) SetIdentityColumn(field string, direction ColumnDirection) *Builder[T] {
	b.identityField = field
	b.identityDir = direction
	return b
}

// ExcludeColumnFromUpdate keeps a selected column out of UPDATE SET.
// The column is still staged, inserted and usable as a match key.
func (b *Builder[T]) ExcludeColumnFromUpdate(field string) *Builder[T] {
	b.excluded = append(b.excluded, field)
	return b
}

// ExcludeAllColumnsFromUpdate turns an upsert into insert-if-missing.
func (b *Builder[T]) ExcludeAllColumnsFromUpdate() *Builder[T] {
	b.excludeAll = true
	return b
}

// UpdateWhen restricts updates to destination rows matching expr.
// Placeholders '?' bind args in order. Repeated calls are ANDed.
func (b *Builder[T]) UpdateWhen(expr string, args ...any) *Builder[T] {
	b.updateWhen = append(b.updateWhen, condition{expr: expr, args: args})
	return b
}

// DeleteWhen restricts deletes to destination rows matching expr.
// For Delete it filters matched rows; for Update and Upsert it filters
// destination rows that have no source row. Repeated calls are ANDed.
func (b *Builder[T]) DeleteWhen(expr string, args ...any) *Builder[T] {
	b.deleteWhen = append(b.deleteWhen, condition{expr: expr, args: args})
	return b
}

// DeleteWhenNotMatched deletes destination rows that have no source row.
// Valid for Update and Upsert.
func (b *Builder[T]) DeleteWhenNotMatched(flag bool) *Builder[T] {
	b.deleteNotMatched = flag
	return b
}

// DeleteAll removes every destination row, or only those matching
// DeleteWhen. Nothing is staged and no match keys are needed, so rows
// may be empty. Valid for Delete.
func (b *Builder[T]) DeleteAll() *Builder[T] {
	b.deleteAll = true
	return b
}

// WithSettings replaces the execution settings. Build validates them.
func (b *Builder[T]) WithSettings(s Settings) *Builder[T] {
	b.settings = s
	return b
}

// WithLogger sets the logger for Commit. Default discards everything.
func (b *Builder[T]) WithLogger(l zerolog.Logger) *Builder[T] {
	b.logger = l
	return b
}

// WithTransfer replaces the bulk copy channel.
func (b *Builder[T]) WithTransfer(fn TransferFunc) *Builder[T] {
	b.transfer = fn
	return b
}

// WithTypeTables replaces the type tables used to validate row fields.
func (b *Builder[T]) WithTypeTables(t typemap.Tables) *Builder[T] {
	b.tables = &t
	return b
}

// Build validates the configuration and returns an immutable operation.
// It performs no I/O.
func (b *Builder[T]) Build() (*Operation, error) {
	op, err := b.build()
	if err != nil {
		var be *Error
		if errors.As(err, &be) {
			be.Op = b.kind.String()
			be.Table = b.table
		}
		return nil, err
	}
	return op, nil
}

func (b *Builder[T]) build() (*Operation, error) {
	if b.table == "" {
		return nil, configError("WithTable was not called")
	}
	schema, table, err := resolveTable(b.table, b.schema)
	if err != nil {
		return nil, err
	}
	if b.kind == 0 {
		return nil, configError("operation kind is not set, call Insert, Update, Upsert or Delete")
	}
	if err := b.settings.Validate(); err != nil {
		return nil, &Error{Kind: ErrConfiguration, Msg: "invalid settings", Err: err}
	}

	rowType := reflect.TypeFor[T]()
	acc, err := rowset.Accessors(rowType)
	if err != nil {
		return nil, &Error{Kind: ErrTypeMapping, Msg: "unsupported row type", Err: err}
	}

	tables := mssql.TypeTables()
	if b.tables != nil {
		tables = *b.tables
	}
	mapper := typemap.New(tables)

	op := &Operation{
		kind:             b.kind,
		schema:           schema,
		table:            table,
		qualified:        dialect.QualifiedName(schema, table),
		rows:             reflect.ValueOf(b.rows),
		count:            len(b.rows),
		settings:         b.settings,
		log:              b.logger,
		transfer:         b.transfer,
		deleteNotMatched: b.deleteNotMatched,
		deleteAll:        b.deleteAll,
		excludeAll:       b.excludeAll,
		excluded:         make(map[string]bool),
		identity:         -1,
	}
	if op.transfer == nil {
		op.transfer = mssql.BulkCopy
	}

	if err := b.selectColumns(op, acc, mapper); err != nil {
		return nil, err
	}
	if err := b.resolveKeys(op, acc); err != nil {
		return nil, err
	}
	if err := b.compilePredicates(op, acc); err != nil {
		return nil, err
	}

	op.strategy = SelectStrategy(op.count, len(op.columns), op.settings)
	return op, nil
}

// selectColumns builds the ordered column set and its row bindings.
func (b *Builder[T]) selectColumns(op *Operation, acc *rowset.Table, mapper *typemap.Mapper) error {
	var refs []columnRef
	if b.allColumns {
		for _, f := range acc.Fields {
			if b.removed[f.Path] || b.removed[f.Column] {
				continue
			}
			if !mapper.Supported(f.Type) {
				// AddAllColumns skips what cannot be mapped, explicit
				// selection reports it
				continue
			}
			refs = append(refs, columnRef{field: f.Path})
		}
	}
	for _, ref := range b.columns {
		replaced := false
		for i := range refs {
			if refs[i].field == ref.field {
				refs[i] = ref
				replaced = true
				break
			}
		}
		if !replaced {
			refs = append(refs, ref)
		}
	}
	idPath := b.identityField
	if f, ok := acc.Lookup(idPath); ok {
		idPath = f.Path
	}
	if idPath != "" {
		found := false
		for _, ref := range refs {
			if ref.field == idPath {
				found = true
				break
			}
		}
		if !found {
			refs = append(refs, columnRef{field: idPath})
		}
	}

	if len(refs) == 0 && !b.deleteAll {
		return configError("no columns selected")
	}

	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		f, ok := acc.Lookup(ref.field)
		if !ok {
			return configError("field %q not found on %s", ref.field, acc.Type)
		}
		if _, err := mapper.Map(f.Type); err != nil {
			return &Error{Kind: ErrTypeMapping, Msg: fmt.Sprintf("field %s", f.Path), Err: err}
		}

		name := ref.column
		if name == "" {
			name = f.Column
		}
		if seen[name] {
			return configError("column %q appears more than once", name)
		}
		seen[name] = true

		col := Column{Name: name, Field: f.Path}
		if idPath != "" && f.Path == idPath {
			col.Identity = true
			col.Direction = b.identityDir
			op.identity = len(op.columns)
			op.identityField = f
		}
		op.columns = append(op.columns, col)
		op.bindings = append(op.bindings, rowset.Binding{Column: name, Field: f})
	}
	if b.identityField != "" && op.identity < 0 {
		return configError("identity field %q is not a selected column", b.identityField)
	}
	return nil
}

// resolveKeys turns match and exclusion fields into column names.
func (b *Builder[T]) resolveKeys(op *Operation, acc *rowset.Table) error {
	for _, field := range b.matchOn {
		col, ok := op.columnFor(field, acc)
		if !ok {
			return configError("match key %q is not a selected column", field)
		}
		op.matchOn = append(op.matchOn, col)
	}
	if b.deleteAll {
		if op.kind != KindDelete {
			return configError("DeleteAll is only valid for delete")
		}
		if len(op.matchOn) > 0 {
			return configError("DeleteAll cannot be combined with MatchTargetOn")
		}
		if op.wantsOutput() {
			return configError("DeleteAll cannot write identity values back")
		}
	} else if op.kind != KindInsert && len(op.matchOn) == 0 {
		return configError("MatchTargetOn list is empty")
	}

	for _, field := range b.excluded {
		col, ok := op.columnFor(field, acc)
		if !ok {
			return configError("excluded column %q is not a selected column", field)
		}
		op.excluded[col] = true
	}

	if op.kind == KindUpdate && len(op.updateColumns()) == 0 {
		return configError("no columns left to update")
	}
	if b.deleteNotMatched && op.kind != KindUpdate && op.kind != KindUpsert {
		return configError("DeleteWhenNotMatched is only valid for update and upsert")
	}
	return nil
}

// compilePredicates compiles UpdateWhen and DeleteWhen against the
// destination alias.
func (b *Builder[T]) compilePredicates(op *Operation, acc *rowset.Table) error {
	if len(b.updateWhen) > 0 && op.kind != KindUpdate && op.kind != KindUpsert {
		return configError("UpdateWhen is only valid for update and upsert")
	}
	if len(b.deleteWhen) > 0 && op.kind == KindInsert {
		return configError("DeleteWhen is not valid for insert")
	}

	c := &predicate.Compiler{
		Resolve: func(field string) (string, bool) {
			if col, ok := op.columnFor(field, acc); ok {
				return col, true
			}
			if f, ok := acc.Lookup(field); ok {
				return f.Column, true
			}
			return "", false
		},
		Quote: dialect.QuoteIdentifier,
		Alias: "Target",
	}

	compile := func(kind predicate.Kind, conds []condition) (predicate.Fragment, error) {
		frags := make([]predicate.Fragment, 0, len(conds))
		for _, cond := range conds {
			f, err := c.Compile(kind, cond.expr, cond.args...)
			if err != nil {
				return predicate.Fragment{}, &Error{Kind: ErrConfiguration, Msg: kind.String(), Err: err}
			}
			frags = append(frags, f)
		}
		return predicate.Combine(frags), nil
	}

	var err error
	if op.updateWhen, err = compile(predicate.UpdateWhen, b.updateWhen); err != nil {
		return err
	}
	if op.deleteWhen, err = compile(predicate.DeleteWhen, b.deleteWhen); err != nil {
		return err
	}
	return nil
}
