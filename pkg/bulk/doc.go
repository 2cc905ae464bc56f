// Package bulk loads in-memory rows into a SQL Server table and reconciles
// them against it with a few set-based statements instead of one
// statement per row.
//
// An operation is described with a Builder and validated once by Build:
//
//	op, err := bulk.For(books).
//	    WithTable("dbo.Books").
//	    AddAllColumns().
//	    Upsert().
//	    MatchTargetOn("ISBN").
//	    SetIdentityColumn("Id", bulk.InputOutput).
//	    UpdateWhen("WarehouseId = ?", 1).
//	    Build()
//	if err != nil {
//	    return err
//	}
//	affected, err := op.Commit(ctx, tx)
//
// Commit fetches destination metadata, stages the rows in a local temp
// table, reconciles them with one MERGE and writes generated identity
// values back into the rows. Small inputs are sent as parameterized
// multi-row inserts, larger ones over the bulk copy protocol; see
// SelectStrategy.
//
// All statements of a Commit run on the DBTX it is given, which must be a
// *sql.Conn or *sql.Tx. Transaction control stays with the caller.
//
// Errors wrap one of ErrConfiguration, ErrIdentityConfiguration,
// ErrTypeMapping, ErrWriteback, ErrTransfer or ErrExecution and are
// returned as *Error.
package bulk
