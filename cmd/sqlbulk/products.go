package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ruslano69/sqlbulk/pkg/adapters/base"
)

// product is the demo row type. Sku is the natural key, Id is generated.
type product struct {
	ID           int64     `bulk:"Id"`
	SKU          uuid.UUID `bulk:"Sku"`
	Name         string
	Price        decimal.Decimal
	Stock        int32
	Discontinued bool
	UpdatedAt    time.Time
}

var skuSpace = uuid.MustParse("6ba7b812-9dad-11d1-80b4-00c04fd430c8")

// generateProducts returns n rows whose Sku depends only on the row
// number, so repeated runs reconcile the same keys.
func generateProducts(n int, now time.Time) []product {
	rows := make([]product, n)
	for i := range rows {
		rows[i] = product{
			SKU:          uuid.NewSHA1(skuSpace, []byte(strconv.Itoa(i))),
			Name:         fmt.Sprintf("Product %05d", i),
			Price:        decimal.New(int64(i%500)*100+99, -2),
			Stock:        int32(i % 97),
			Discontinued: i%10 == 0,
			UpdatedAt:    now,
		}
	}
	return rows
}

const createProductsSQL = `IF OBJECT_ID(@Name) IS NULL
CREATE TABLE %s (
	Id BIGINT IDENTITY(1,1) PRIMARY KEY,
	Sku UNIQUEIDENTIFIER NOT NULL,
	Name NVARCHAR(200) NOT NULL,
	Price DECIMAL(12,2) NOT NULL,
	Stock INT NOT NULL,
	Discontinued BIT NOT NULL,
	UpdatedAt DATETIME2 NOT NULL,
	CONSTRAINT %s UNIQUE (Sku)
);`

// createProducts creates the demo table unless it exists.
func createProducts(ctx context.Context, db base.DBTX, table string) error {
	dialect := base.MSSQLDialect{}
	schema, name, ok := strings.Cut(table, ".")
	if !ok {
		schema, name = dialect.DefaultSchema(), table
	}
	qualified := dialect.QualifiedName(schema, name)
	constraint := dialect.QuoteIdentifier("UQ_" + name + "_Sku")

	_, err := db.ExecContext(ctx, fmt.Sprintf(createProductsSQL, qualified, constraint), sql.Named("Name", qualified))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", qualified, err)
	}
	return nil
}
