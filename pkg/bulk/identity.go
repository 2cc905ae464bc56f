package bulk

import (
	"context"
	"fmt"

	"github.com/ruslano69/sqlbulk/pkg/adapters/mssql"
	"github.com/ruslano69/sqlbulk/pkg/core/rowset"
)

func readOutput(ctx context.Context, ex *execution) error {
	c, _ := ex.op.identityColumn()
	pairs, err := mssql.ReadOutput(ctx, ex.db, ex.output, rowset.OrdinalColumn, c.Name)
	if err != nil {
		return err
	}
	ex.pairs = pairs
	return nil
}

func dropOutput(ctx context.Context, ex *execution) error {
	if _, err := ex.db.ExecContext(ctx, mssql.DropTableSQL(ex.output)); err != nil {
		return err
	}
	ex.untrack(ex.output)
	return nil
}

// writeBack stores each generated key into the row its correlation token
// points at. Rows without a key (not inserted, filtered by UpdateWhen)
// keep their value.
func writeBack(_ context.Context, ex *execution) error {
	op := ex.op
	for _, p := range ex.pairs {
		if err := rowset.SetKey(op.rows, int(p.Ordinal), op.identityField, p.Key); err != nil {
			return fmt.Errorf("row %d: %w", p.Ordinal, err)
		}
	}
	ex.log.Debug().Int("keys", len(ex.pairs)).Msg("identity values written back")
	return nil
}
