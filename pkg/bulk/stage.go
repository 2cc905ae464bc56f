package bulk

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ruslano69/sqlbulk/pkg/adapters/base"
	"github.com/ruslano69/sqlbulk/pkg/adapters/mssql"
	"github.com/ruslano69/sqlbulk/pkg/core/rowset"
)

// checkColumns compares the column set with destination metadata.
// An identity column written without being declared is rejected here,
// before the server would reject it.
func checkColumns(_ context.Context, ex *execution) error {
	op := ex.op
	inserted := op.insertColumns()
	updated := op.updateColumns()
	written := func(name string) bool {
		eq := func(c string) bool { return strings.EqualFold(c, name) }
		return slices.ContainsFunc(inserted, eq) || slices.ContainsFunc(updated, eq)
	}

	for _, c := range op.columns {
		info, ok := ex.meta.Column(c.Name)
		if !ok {
			return configError("column %q does not exist in %s", c.Name, op.qualified)
		}
		if info.Computed && written(c.Name) {
			return configError("column %q is computed and can't be written", c.Name)
		}
	}

	if id, ok := ex.meta.IdentityColumn(); ok {
		declared := false
		if c, ok := op.identityColumn(); ok && strings.EqualFold(c.Name, id.Name) {
			declared = true
		}
		eq := func(c string) bool { return strings.EqualFold(c, id.Name) }
		inInsert := slices.ContainsFunc(inserted, eq)
		inUpdate := slices.ContainsFunc(updated, eq)

		switch {
		case inUpdate:
			return &Error{Kind: ErrIdentityConfiguration, Msg: fmt.Sprintf("identity column %q can't be updated, declare it with SetIdentityColumn or exclude it", id.Name)}
		case inInsert && !declared && !op.settings.KeepIdentity:
			return &Error{Kind: ErrIdentityConfiguration, Msg: fmt.Sprintf("column %q is an identity column, declare it with SetIdentityColumn", id.Name)}
		}
		ex.identityInsert = inInsert
	}

	if c, ok := op.identityColumn(); ok && op.wantsOutput() {
		info, _ := ex.meta.Column(c.Name)
		ex.outputIdentity = info
	}
	return nil
}

func materialize(_ context.Context, ex *execution) error {
	buf, err := rowset.Materialize(ex.op.rows, ex.op.bindings, ex.op.wantsOutput())
	if err != nil {
		return err
	}
	ex.buf = buf
	return nil
}

// insertValues writes rows straight into the destination with multi-row
// INSERT statements. NULL handling matches the streamed counterpart: the
// direct bulk copy puts DEFAULT in place of NULL unless KeepNulls is set,
// the identity insert path goes through staging and keeps NULL.
func insertValues(ctx context.Context, ex *execution) error {
	op := ex.op
	cols := op.insertColumns()
	rows, err := ex.buf.Project(cols)
	if err != nil {
		return err
	}
	opts := mssql.InsertOptions{
		IdentityInsert: ex.identityInsert,
		KeepNulls:      op.settings.KeepNulls || ex.identityInsert,
	}
	if err := execValues(ctx, ex.db, op.qualified, cols, rows, opts); err != nil {
		return err
	}
	ex.rows = int64(len(rows))
	return nil
}

// copyDirect streams rows straight into the destination.
func copyDirect(ctx context.Context, ex *execution) error {
	op := ex.op
	cols := op.insertColumns()
	rows, err := ex.buf.Project(cols)
	if err != nil {
		return err
	}
	n, err := op.transfer(ctx, ex.db, op.qualified, cols, rows, op.settings.copyOptions())
	if err != nil {
		return err
	}
	ex.rows = n
	return nil
}

func createStaging(ctx context.Context, ex *execution) error {
	columns := make([]mssql.StagingColumn, 0, len(ex.op.columns))
	for _, c := range ex.op.columns {
		info, _ := ex.meta.Column(c.Name)
		columns = append(columns, mssql.StagingColumn{Name: c.Name, Info: info})
	}
	ordinal := ""
	if ex.buf.HasOrdinal() {
		ordinal = rowset.OrdinalColumn
	}

	name := base.GenerateTempTableName("TmpTable")
	if _, err := ex.db.ExecContext(ctx, mssql.BuildStagingTableSQL(name, columns, ordinal)); err != nil {
		return err
	}
	ex.staging = name
	ex.track(name)
	return nil
}

func createOutput(ctx context.Context, ex *execution) error {
	name := base.GenerateTempTableName("TmpOutput")
	if _, err := ex.db.ExecContext(ctx, mssql.BuildOutputTableSQL(name, rowset.OrdinalColumn, ex.outputIdentity)); err != nil {
		return err
	}
	ex.output = name
	ex.track(name)
	return nil
}

func stageValues(ctx context.Context, ex *execution) error {
	// staging tables have no defaults
	return execValues(ctx, ex.db, ex.staging, ex.buf.Columns, ex.buf.Rows, mssql.InsertOptions{KeepNulls: true})
}

func stageCopy(ctx context.Context, ex *execution) error {
	n, err := ex.op.transfer(ctx, ex.db, ex.staging, ex.buf.Columns, ex.buf.Rows, ex.op.settings.copyOptions())
	if err != nil {
		return err
	}
	if n != int64(ex.buf.Len()) {
		return fmt.Errorf("staged %d of %d rows", n, ex.buf.Len())
	}
	return nil
}

// execValues sends rows as multi-row inserts, as many statements as the
// parameter limit requires.
func execValues(ctx context.Context, db base.DBTX, table string, cols []string, rows [][]any, opts mssql.InsertOptions) error {
	for chunk := range slices.Chunk(rows, rowsPerStatement(len(cols))) {
		stmt, args, err := mssql.BuildInsertValuesSQL(table, cols, chunk, opts)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, stmt, args...); err != nil {
			return err
		}
	}
	return nil
}

func insertFromStaging(ctx context.Context, ex *execution) error {
	op := ex.op
	stmt := mssql.BuildInsertFromStagingSQL(op.qualified, ex.staging, op.insertColumns(), ex.identityInsert)
	if _, err := ex.db.ExecContext(ctx, stmt); err != nil {
		return err
	}
	ex.untrack(ex.staging)
	ex.rows = int64(ex.buf.Len())
	return nil
}

// mergeSpec describes the reconciliation statement for the operation.
func (ex *execution) mergeSpec() mssql.MergeSpec {
	op := ex.op
	spec := mssql.MergeSpec{
		Target:     op.qualified,
		Source:     ex.staging,
		MatchOn:    op.matchOn,
		DropSource: true,
	}

	switch op.kind {
	case KindInsert:
		spec.MatchOn = nil
		spec.NeverMatch = true
		spec.Insert = op.insertColumns()
	case KindUpdate, KindUpsert:
		spec.Update = op.updateColumns()
		spec.UpdateWhen = op.updateWhen.SQL
		spec.DeleteNotMatched = op.deleteNotMatched || op.deleteWhen.SQL != ""
		spec.DeleteWhen = op.deleteWhen.SQL
		spec.Insert = op.insertColumns()
	case KindDelete:
		spec.Delete = true
		spec.DeleteWhen = op.deleteWhen.SQL
	}

	if c, ok := op.identityColumn(); ok && op.wantsOutput() {
		image := mssql.ImageInserted
		if op.kind == KindDelete {
			image = mssql.ImageDeleted
		}
		spec.Output = &mssql.OutputSpec{
			Table:          ex.output,
			OrdinalColumn:  rowset.OrdinalColumn,
			IdentityColumn: c.Name,
			Image:          image,
		}
	}
	return spec
}

// deleteAll removes destination rows by predicate alone.
func deleteAll(ctx context.Context, ex *execution) error {
	op := ex.op
	args := make([]any, 0, len(op.deleteWhen.Args))
	for _, a := range op.deleteWhen.Args {
		args = append(args, a)
	}
	res, err := ex.db.ExecContext(ctx, mssql.DeleteAllSQL(op.qualified, op.deleteWhen.SQL), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	ex.rows = n
	return nil
}

func merge(ctx context.Context, ex *execution) error {
	op := ex.op
	stmt, err := mssql.BuildMergeSQL(ex.mergeSpec())
	if err != nil {
		return err
	}
	if ex.identityInsert {
		stmt = mssql.IdentityInsertSQL(op.qualified, true) + "\n" + stmt + "\n" + mssql.IdentityInsertSQL(op.qualified, false)
	}

	args := make([]any, 0, len(op.updateWhen.Args)+len(op.deleteWhen.Args))
	for _, a := range op.updateWhen.Args {
		args = append(args, a)
	}
	for _, a := range op.deleteWhen.Args {
		args = append(args, a)
	}

	res, err := ex.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return err
	}
	ex.untrack(ex.staging)

	if op.kind == KindInsert {
		ex.rows = int64(ex.buf.Len())
		return nil
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	ex.rows = n
	return nil
}
