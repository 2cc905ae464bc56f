package bulk

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ruslano69/sqlbulk/pkg/adapters/base"
	"github.com/ruslano69/sqlbulk/pkg/adapters/mssql"
	"github.com/ruslano69/sqlbulk/pkg/core/rowset"
)

// State is the progress of one Commit.
type State int

const (
	StateValidated State = iota + 1
	StateSchemaFetched
	StateStaged
	StateReconciled
	StateIdentityWrittenBack
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateValidated:
		return "validated"
	case StateSchemaFetched:
		return "schema_fetched"
	case StateStaged:
		return "staged"
	case StateReconciled:
		return "reconciled"
	case StateIdentityWrittenBack:
		return "identity_written_back"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "building"
	}
}

// cleanupTimeout bounds the best-effort drop of staging tables after a
// failure or cancellation.
const cleanupTimeout = 30 * time.Second

// Commit runs the operation on db and returns the number of affected rows.
//
// db must be a *sql.Conn or *sql.Tx: staging tables are local temp tables
// and disappear if the pool hands out another connection between
// statements. Passing a *sql.DB compiles but is unsafe.
//
// An error returned after the reconciliation statement has run still
// carries the affected row count, both as the first result and in
// Error.Rows. This is the case for ErrWriteback: the destination has been
// modified and only the generated keys are missing from the rows.
func (op *Operation) Commit(ctx context.Context, db base.DBTX) (int64, error) {
	return op.run(ctx, db)
}

// Pending is the outcome of CommitAsync.
type Pending struct {
	done chan struct{}
	rows int64
	err  error
}

// CommitAsync runs the operation on a new goroutine. Cancelling ctx stops
// the operation between steps; the returned Pending reports the result.
func (op *Operation) CommitAsync(ctx context.Context, db base.DBTX) *Pending {
	p := &Pending{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.rows, p.err = op.run(ctx, db)
	}()
	return p
}

// Done is closed when the operation has finished.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the operation finishes or ctx is done. Giving up on
// ctx does not cancel the operation itself.
func (p *Pending) Wait(ctx context.Context) (int64, error) {
	select {
	case <-p.done:
		return p.rows, p.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// step is one network round trip or one in-memory stage of a Commit.
type step struct {
	name    string
	kind    error         // error kind reported on failure
	done    State         // state after success, 0 keeps the current one
	timeout time.Duration // 0 = inherit ctx
	run     func(ctx context.Context, ex *execution) error
}

// execution is the per-Commit state. Nothing in it outlives the call.
type execution struct {
	op  *Operation
	db  base.DBTX
	log zerolog.Logger

	state State
	rows  int64

	meta           mssql.TableSchema
	buf            *rowset.Buffer
	identityInsert bool
	outputIdentity mssql.ColumnInfo

	staging string
	output  string
	temps   []string

	indexesDisabled bool
	pairs           []mssql.KeyPair
}

func (op *Operation) run(ctx context.Context, db base.DBTX) (int64, error) {
	log := op.log.With().
		Str("table", op.qualified).
		Str("op", op.kind.String()).
		Str("strategy", op.strategy.String()).
		Int("rows", op.count).
		Logger()

	if op.count == 0 && !op.deleteAll {
		log.Debug().Msg("no rows, nothing to do")
		return 0, nil
	}

	ex := &execution{op: op, db: db, log: log, state: StateValidated}

	start := time.Now()
	err := ex.execute(ctx)
	elapsed := time.Since(start)
	observe(op, ex.rows, elapsed, err)

	if err != nil {
		return ex.rows, err
	}
	log.Info().Int64("affected", ex.rows).Dur("elapsed", elapsed).Msg("bulk operation committed")
	return ex.rows, nil
}

func (ex *execution) execute(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			ex.cleanup(ctx)
		}
	}()

	if err := ex.runSteps(ctx, ex.prologue()); err != nil {
		return err
	}
	if err := ex.runSteps(ctx, ex.body()); err != nil {
		return err
	}
	if err := ex.runSteps(ctx, ex.epilogue()); err != nil {
		return err
	}
	ex.state = StateDone
	return nil
}

func (ex *execution) runSteps(ctx context.Context, steps []step) error {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			ex.log.Warn().Err(err).Str("step", s.name).Stringer("state", ex.state).Msg("bulk operation cancelled")
			return ex.wrap(ErrExecution, "cancelled before "+s.name, err)
		}

		stepCtx, cancel := ctx, context.CancelFunc(func() {})
		if s.timeout > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, s.timeout)
		}
		start := time.Now()
		err := s.run(stepCtx, ex)
		cancel()

		if err != nil {
			ex.log.Warn().Err(err).Str("step", s.name).Stringer("state", ex.state).Msg("bulk step failed")
			return ex.wrap(s.kind, s.name, err)
		}
		if s.done != 0 {
			ex.state = s.done
		}
		ex.log.Debug().
			Str("step", s.name).
			Stringer("state", ex.state).
			Dur("elapsed", time.Since(start)).
			Msg("bulk step done")
	}
	return nil
}

func (ex *execution) wrap(kind error, msg string, err error) *Error {
	e := translate(kind, ex.state, msg, err)
	if e.State == 0 {
		e.State = ex.state
	}
	if e.Op == "" {
		e.Op = ex.op.kind.String()
	}
	if e.Table == "" {
		e.Table = ex.op.qualified
	}
	e.Rows = ex.rows
	return e
}

// cleanup drops staging tables that are still alive and re-enables
// suspended indexes. It runs detached from ctx so a cancelled caller still
// gets its connection back clean. Failures are logged only.
func (ex *execution) cleanup(ctx context.Context) {
	ex.state = StateFailed
	if len(ex.temps) == 0 && !ex.indexesDisabled {
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	for _, name := range ex.temps {
		if _, err := ex.db.ExecContext(cctx, mssql.DropTableSQL(name)); err != nil {
			ex.log.Error().Err(err).Str("temp_table", name).Msg("failed to drop staging table")
		}
	}
	ex.temps = nil

	if ex.indexesDisabled {
		if err := mssql.RebuildIndexes(cctx, ex.db, ex.op.qualified); err != nil {
			ex.log.Error().Err(err).Msg("failed to rebuild indexes")
		}
		ex.indexesDisabled = false
	}
}

func (ex *execution) track(name string) {
	ex.temps = append(ex.temps, name)
}

func (ex *execution) untrack(name string) {
	for i, t := range ex.temps {
		if t == name {
			ex.temps = append(ex.temps[:i], ex.temps[i+1:]...)
			return
		}
	}
}
