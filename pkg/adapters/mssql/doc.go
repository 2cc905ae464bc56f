// Package mssql provides the Microsoft SQL Server dialect for bulk
// staging and reconciliation.
//
// SQL Server 2008 is the minimum version (MERGE with OUTPUT).
//
// Features:
//   - Schema introspection from INFORMATION_SCHEMA with identity/computed flags
//   - Staging table DDL that copies destination types, lengths and nullability
//   - MERGE builder for insert, update, upsert and delete reconciliation
//   - Multi-row INSERT ... VALUES with optional IDENTITY_INSERT bracket
//   - Bulk copy through the driver's CopyIn protocol
//   - Identity output capture and read-back (MERGE ... OUTPUT ... INTO)
//   - Non-clustered index disable/rebuild
//   - Static translation of server error numbers into abstract classes
//
// Usage:
//
//	adapter, err := mssql.Open(ctx, "server=localhost;user id=sa;password=pass;database=mydb")
//	if err != nil {
//	    return err
//	}
//	defer adapter.Close()
//
//	tx, err := adapter.BeginTx(ctx)
//	...
//	schema, err := mssql.GetTableSchema(ctx, tx, "dbo", "Books")
//
// Reconciliation statement shape:
//
//	MERGE INTO [dbo].[Books] WITH (HOLDLOCK) AS Target
//	USING #TmpTable_1a2b AS Source
//	ON (Target.[ISBN] = Source.[ISBN] OR (Target.[ISBN] IS NULL AND Source.[ISBN] IS NULL))
//	WHEN MATCHED THEN UPDATE SET Target.[Title] = Source.[Title]
//	WHEN NOT MATCHED BY TARGET THEN INSERT ([ISBN], [Title]) VALUES (Source.[ISBN], Source.[Title])
//	OUTPUT Source.[BulkRowOrdinal], INSERTED.[Id] INTO #TmpOutput_3c4d ([BulkRowOrdinal], [Id])
//	;
//	DROP TABLE #TmpTable_1a2b;
//
// Type Mapping:
//
//	Go Type              SQL Server Type     Notes
//	─────────────────────────────────────────────────
//	int64, int           BIGINT
//	string               NVARCHAR            staging copies destination length
//	bool                 BIT
//	time.Time            DATETIME2
//	uuid.UUID            UNIQUEIDENTIFIER    sent as mssql.UniqueIdentifier
//	[]byte               VARBINARY
package mssql
