package bulk

import (
	"context"

	"github.com/ruslano69/sqlbulk/pkg/adapters/mssql"
)

// prologue runs before anything depends on destination metadata.
func (ex *execution) prologue() []step {
	s := ex.op.settings
	var steps []step
	if s.DisableIndexes {
		steps = append(steps, step{name: "disable indexes", kind: ErrExecution, timeout: s.CommandTimeout, run: disableIndexes})
	}
	if ex.op.deleteAll {
		return steps
	}
	return append(steps,
		step{name: "fetch schema", kind: ErrExecution, done: StateSchemaFetched, timeout: s.CommandTimeout, run: fetchSchema},
		step{name: "check columns", kind: ErrConfiguration, run: checkColumns},
		step{name: "materialize rows", kind: ErrTypeMapping, run: materialize},
	)
}

// body moves the rows and reconciles them. The path depends on the
// operation kind, the strategy and whether keys go back to the rows.
func (ex *execution) body() []step {
	op := ex.op
	s := op.settings

	if op.deleteAll {
		return []step{{name: "delete all", kind: ErrExecution, done: StateReconciled, timeout: s.CommandTimeout, run: deleteAll}}
	}

	if op.kind == KindInsert && !op.wantsOutput() {
		if op.strategy == GeneratedMultiRowInsert {
			return []step{{name: "insert values", kind: ErrExecution, done: StateReconciled, timeout: s.CommandTimeout, run: insertValues}}
		}
		if !ex.identityInsert {
			return []step{{name: "bulk copy", kind: ErrTransfer, done: StateReconciled, timeout: s.BulkCopyTimeout, run: copyDirect}}
		}
	}

	steps := []step{{name: "create staging table", kind: ErrExecution, timeout: s.CommandTimeout, run: createStaging}}
	if op.wantsOutput() {
		steps = append(steps, step{name: "create output table", kind: ErrExecution, timeout: s.CommandTimeout, run: createOutput})
	}

	if op.strategy == GeneratedMultiRowInsert {
		steps = append(steps, step{name: "stage values", kind: ErrTransfer, done: StateStaged, timeout: s.CommandTimeout, run: stageValues})
	} else {
		steps = append(steps, step{name: "stage copy", kind: ErrTransfer, done: StateStaged, timeout: s.BulkCopyTimeout, run: stageCopy})
	}

	if op.kind == KindInsert && !op.wantsOutput() {
		steps = append(steps, step{name: "insert from staging", kind: ErrExecution, done: StateReconciled, timeout: s.CommandTimeout, run: insertFromStaging})
	} else {
		steps = append(steps, step{name: "merge", kind: ErrExecution, done: StateReconciled, timeout: s.CommandTimeout, run: merge})
	}

	if op.wantsOutput() {
		steps = append(steps,
			step{name: "read identity output", kind: ErrExecution, timeout: s.CommandTimeout, run: readOutput},
			step{name: "drop output table", kind: ErrExecution, timeout: s.CommandTimeout, run: dropOutput},
			step{name: "write back identity", kind: ErrWriteback, done: StateIdentityWrittenBack, run: writeBack},
		)
	}
	return steps
}

// epilogue runs after reconciliation.
func (ex *execution) epilogue() []step {
	if !ex.indexesDisabled {
		return nil
	}
	return []step{{name: "rebuild indexes", kind: ErrExecution, timeout: ex.op.settings.CommandTimeout, run: rebuildIndexes}}
}

func disableIndexes(ctx context.Context, ex *execution) error {
	if err := mssql.DisableIndexes(ctx, ex.db, ex.op.schema, ex.op.table); err != nil {
		return err
	}
	ex.indexesDisabled = true
	return nil
}

func rebuildIndexes(ctx context.Context, ex *execution) error {
	if err := mssql.RebuildIndexes(ctx, ex.db, ex.op.qualified); err != nil {
		return err
	}
	ex.indexesDisabled = false
	return nil
}

func fetchSchema(ctx context.Context, ex *execution) error {
	meta, err := mssql.GetTableSchema(ctx, ex.db, ex.op.schema, ex.op.table)
	if err != nil {
		return err
	}
	ex.meta = meta
	return nil
}
