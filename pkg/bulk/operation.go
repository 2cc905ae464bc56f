package bulk

import (
	"context"
	"reflect"
	"slices"

	"github.com/rs/zerolog"

	"github.com/ruslano69/sqlbulk/pkg/adapters/base"
	"github.com/ruslano69/sqlbulk/pkg/adapters/mssql"
	"github.com/ruslano69/sqlbulk/pkg/core/predicate"
	"github.com/ruslano69/sqlbulk/pkg/core/rowset"
)

var dialect = base.MSSQLDialect{}

// TransferFunc streams rows into a table over the bulk copy channel and
// returns the number of rows copied.
type TransferFunc func(ctx context.Context, q base.DBTX, table string, columns []string, rows [][]any, opts mssql.CopyOptions) (int64, error)

// Operation is a validated bulk operation. It is immutable and may be
// committed more than once; each Commit reads the rows again.
type Operation struct {
	kind      Kind
	schema    string
	table     string
	qualified string

	rows  reflect.Value
	count int

	columns  []Column
	bindings []rowset.Binding
	matchOn  []string

	identity      int // index into columns, -1 if none
	identityField *rowset.Field

	excluded   map[string]bool
	excludeAll bool

	updateWhen       predicate.Fragment
	deleteWhen       predicate.Fragment
	deleteNotMatched bool
	deleteAll        bool

	strategy Strategy
	settings Settings
	log      zerolog.Logger
	transfer TransferFunc
}

// Kind returns the operation kind.
func (op *Operation) Kind() Kind { return op.kind }

// Table returns the quoted destination name, e.g. [dbo].[Books].
func (op *Operation) Table() string { return op.qualified }

// Strategy returns the transfer strategy chosen at Build.
func (op *Operation) Strategy() Strategy { return op.strategy }

// Len returns the number of input rows.
func (op *Operation) Len() int { return op.count }

// Columns returns a copy of the selected columns in order.
func (op *Operation) Columns() []Column { return slices.Clone(op.columns) }

// MatchOn returns the match key column names.
func (op *Operation) MatchOn() []string { return slices.Clone(op.matchOn) }

// columnFor finds the selected column for a field path or column name.
func (op *Operation) columnFor(name string, acc *rowset.Table) (string, bool) {
	for _, c := range op.columns {
		if c.Field == name || c.Name == name {
			return c.Name, true
		}
	}
	if f, ok := acc.Lookup(name); ok {
		for _, c := range op.columns {
			if c.Field == f.Path {
				return c.Name, true
			}
		}
	}
	return "", false
}

func (op *Operation) identityColumn() (Column, bool) {
	if op.identity < 0 {
		return Column{}, false
	}
	return op.columns[op.identity], true
}

// wantsOutput reports whether generated keys go back into the rows.
func (op *Operation) wantsOutput() bool {
	c, ok := op.identityColumn()
	return ok && c.Direction == InputOutput
}

func (op *Operation) columnNames() []string {
	names := make([]string, len(op.columns))
	for i, c := range op.columns {
		names[i] = c.Name
	}
	return names
}

// updateColumns are the columns of UPDATE SET: selected columns without
// match keys, exclusions and the declared identity column.
func (op *Operation) updateColumns() []string {
	if (op.kind != KindUpdate && op.kind != KindUpsert) || op.excludeAll {
		return nil
	}
	var cols []string
	for i, c := range op.columns {
		if i == op.identity || op.excluded[c.Name] || slices.Contains(op.matchOn, c.Name) {
			continue
		}
		cols = append(cols, c.Name)
	}
	return cols
}

// insertColumns are the columns of INSERT. The declared identity column
// is written only with KeepIdentity.
func (op *Operation) insertColumns() []string {
	if op.kind != KindInsert && op.kind != KindUpsert {
		return nil
	}
	var cols []string
	for i, c := range op.columns {
		if i == op.identity && !op.settings.KeepIdentity {
			continue
		}
		cols = append(cols, c.Name)
	}
	return cols
}
