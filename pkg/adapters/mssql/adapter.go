package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/denisenkom/go-mssqldb" // MS SQL Server driver

	"github.com/ruslano69/sqlbulk/pkg/adapters/base"
)

// DriverName is the database/sql driver used by Open. The "sqlserver"
// name enables @Name parameters.
const DriverName = "sqlserver"

var dialect = base.MSSQLDialect{}

func quoteIdent(name string) string {
	return dialect.QuoteIdentifier(name)
}

// Compatibility levels
const (
	CompatSQL2008 = 100 // SQL Server 2008, first with MERGE
	CompatSQL2012 = 110 // SQL Server 2012
	CompatSQL2014 = 120 // SQL Server 2014
	CompatSQL2016 = 130 // SQL Server 2016
	CompatSQL2017 = 140 // SQL Server 2017
	CompatSQL2019 = 150 // SQL Server 2019
	CompatSQL2022 = 160 // SQL Server 2022
)

// ServerInfo is the detected server version and database compatibility.
type ServerInfo struct {
	Version     string // full version string, e.g. "15.0.2000.5"
	Major       int    // 10=2008, 11=2012, ..., 16=2022
	CompatLevel int    // database compatibility level
}

// SupportsMerge reports whether MERGE with OUTPUT is available.
func (s ServerInfo) SupportsMerge() bool {
	return s.Major >= 10 && s.CompatLevel >= CompatSQL2008
}

// Name returns a human-readable server version name.
func (s ServerInfo) Name() string {
	switch s.Major {
	case 10:
		return "SQL Server 2008"
	case 11:
		return "SQL Server 2012"
	case 12:
		return "SQL Server 2014"
	case 13:
		return "SQL Server 2016"
	case 14:
		return "SQL Server 2017"
	case 15:
		return "SQL Server 2019"
	case 16:
		return "SQL Server 2022"
	default:
		return fmt.Sprintf("SQL Server (version %d)", s.Major)
	}
}

// Adapter owns a connection pool to SQL Server. Bulk operations run on a
// single connection or transaction taken from it.
type Adapter struct {
	db     *sql.DB
	server ServerInfo
}

// Open connects to SQL Server and performs feature detection.
func Open(ctx context.Context, dsn string) (*Adapter, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	info, err := DetectServer(ctx, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to detect compatibility: %w", err)
	}
	if !info.SupportsMerge() {
		db.Close()
		return nil, fmt.Errorf("%s (compatibility level %d) does not support MERGE", info.Name(), info.CompatLevel)
	}

	return &Adapter{db: db, server: info}, nil
}

// DB returns the underlying pool.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Server returns the detected server information.
func (a *Adapter) Server() ServerInfo {
	return a.server
}

// Conn takes one dedicated connection from the pool. Temp tables created
// by a bulk operation live as long as this connection.
func (a *Adapter) Conn(ctx context.Context) (*sql.Conn, error) {
	conn, err := a.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return conn, nil
}

// BeginTx starts a transaction.
func (a *Adapter) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// Ping tests the database connection.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close closes the database connection.
func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DetectServer detects SQL Server version and database compatibility level.
func DetectServer(ctx context.Context, q queryRower) (ServerInfo, error) {
	var info ServerInfo

	err := q.QueryRowContext(ctx, "SELECT CAST(SERVERPROPERTY('ProductVersion') AS NVARCHAR(128))").Scan(&info.Version)
	if err != nil {
		return ServerInfo{}, fmt.Errorf("failed to get server version: %w", err)
	}
	info.Major = parseServerVersion(info.Version)

	err = q.QueryRowContext(ctx, `
		SELECT compatibility_level
		FROM sys.databases
		WHERE name = DB_NAME()
	`).Scan(&info.CompatLevel)
	if err != nil {
		return ServerInfo{}, fmt.Errorf("failed to get compatibility level: %w", err)
	}

	return info, nil
}

// parseServerVersion parses SQL Server version string to major version number.
// Examples:
//   - "11.0.2100.60" → 11 (SQL Server 2012)
//   - "15.0.2000.5"  → 15 (SQL Server 2019)
func parseServerVersion(version string) int {
	major, _, _ := strings.Cut(version, ".")
	n, err := strconv.Atoi(major)
	if err != nil {
		return 0
	}
	return n
}
