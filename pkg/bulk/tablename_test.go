package bulk

import (
	"errors"
	"testing"
)

func TestParseTableName(t *testing.T) {
	tests := []struct {
		in     string
		schema string
		table  string
	}{
		{"Books", "", "Books"},
		{"dbo.Books", "dbo", "Books"},
		{"[sales].[Order Lines]", "sales", "Order Lines"},
		{"[odd]]name].[a.b]", "odd]name", "a.b"},
		{"  [x].Books ", "x", "Books"},
	}

	for _, tt := range tests {
		schema, table, err := parseTableName(tt.in)
		if err != nil {
			t.Errorf("parseTableName(%q) failed: %v", tt.in, err)
			continue
		}
		if schema != tt.schema || table != tt.table {
			t.Errorf("parseTableName(%q) = (%q, %q), want (%q, %q)", tt.in, schema, table, tt.schema, tt.table)
		}
	}
}

func TestParseTableNameErrors(t *testing.T) {
	tests := []struct {
		in  string
		msg string
	}{
		{"a.b.c", "table name can't contain more than one period"},
		{"[a.b", `table name "[a.b" has an unterminated bracket`},
		{".Books", `table name ".Books" has an empty schema`},
		{"dbo.", "table name is empty"},
	}

	for _, tt := range tests {
		_, _, err := parseTableName(tt.in)
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("parseTableName(%q): expected configuration error, got %v", tt.in, err)
			continue
		}
		var be *Error
		if !errors.As(err, &be) || be.Msg != tt.msg {
			t.Errorf("parseTableName(%q): message = %q, want %q", tt.in, be.Msg, tt.msg)
		}
	}
}

func TestResolveTable(t *testing.T) {
	schema, table, err := resolveTable("Books", "")
	if err != nil || schema != "dbo" || table != "Books" {
		t.Errorf("default schema: got (%q, %q, %v)", schema, table, err)
	}

	schema, _, err = resolveTable("Books", "sales")
	if err != nil || schema != "sales" {
		t.Errorf("explicit schema: got (%q, %v)", schema, err)
	}

	if _, _, err := resolveTable("sales.Books", "sales"); err != nil {
		t.Errorf("agreeing schemas must be accepted: %v", err)
	}

	_, _, err = resolveTable("sales.Books", "dbo")
	var be *Error
	if !errors.As(err, &be) || be.Msg != "schema has already been defined in WithTable" {
		t.Errorf("conflicting schema: got %v", err)
	}
}
