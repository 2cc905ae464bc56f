package bulk

import (
	"github.com/ruslano69/sqlbulk/pkg/adapters/mssql"
)

// Strategy is the way rows travel to the server.
type Strategy int

const (
	// StreamedTransfer uses the bulk copy protocol.
	StreamedTransfer Strategy = iota + 1
	// GeneratedMultiRowInsert sends parameterized INSERT ... VALUES
	// statements. Cheaper than opening a bulk copy for a handful of rows.
	GeneratedMultiRowInsert
)

func (s Strategy) String() string {
	switch s {
	case StreamedTransfer:
		return "streamed"
	case GeneratedMultiRowInsert:
		return "multirow"
	default:
		return "unknown"
	}
}

// DefaultMultiRowThreshold is the largest row count sent as a multi-row
// insert when the strategy is chosen automatically.
const DefaultMultiRowThreshold = 25

const (
	// reservedParameters are kept free of row values in every statement.
	reservedParameters = 100
	// maxValuesRows is the server limit of rows in one VALUES constructor.
	maxValuesRows = 1000
)

// SelectStrategy picks the transfer strategy for rows x cols values.
// A forced mode in s wins over the threshold.
func SelectStrategy(rows, cols int, s Settings) Strategy {
	switch s.Strategy {
	case StrategyStreamed:
		return StreamedTransfer
	case StrategyMultiRow:
		return GeneratedMultiRowInsert
	}
	if rows <= s.MultiRowThreshold && rows*cols <= mssql.MaxParameters-reservedParameters {
		return GeneratedMultiRowInsert
	}
	return StreamedTransfer
}

// rowsPerStatement is how many rows of cols values fit one multi-row
// insert without crossing the parameter limit.
func rowsPerStatement(cols int) int {
	if cols <= 0 {
		return maxValuesRows
	}
	n := (mssql.MaxParameters - reservedParameters) / cols
	return max(1, min(n, maxValuesRows))
}
