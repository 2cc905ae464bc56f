package bulk

import (
	"strings"
)

// parseTableName splits a destination name into schema and table.
// Accepted forms are "table", "schema.table" and "[schema].[table]";
// inside brackets "]]" stands for "]" and a period is part of the name.
func parseTableName(name string) (schema, table string, err error) {
	var (
		parts     []string
		cur       strings.Builder
		bracketed bool
	)

	runes := []rune(strings.TrimSpace(name))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case bracketed && r == ']':
			if i+1 < len(runes) && runes[i+1] == ']' {
				cur.WriteRune(']')
				i++
				continue
			}
			bracketed = false
		case bracketed:
			cur.WriteRune(r)
		case r == '[':
			bracketed = true
		case r == '.':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if bracketed {
		return "", "", configError("table name %q has an unterminated bracket", name)
	}
	parts = append(parts, cur.String())

	switch len(parts) {
	case 1:
		table = parts[0]
	case 2:
		schema, table = parts[0], parts[1]
		if schema == "" {
			return "", "", configError("table name %q has an empty schema", name)
		}
	default:
		return "", "", configError("table name can't contain more than one period")
	}
	if table == "" {
		return "", "", configError("table name is empty")
	}
	return schema, table, nil
}

// resolveTable combines WithTable and WithSchema. A schema given both ways
// is rejected unless the two agree.
func resolveTable(name, explicitSchema string) (schema, table string, err error) {
	embedded, table, err := parseTableName(name)
	if err != nil {
		return "", "", err
	}

	switch {
	case embedded != "" && explicitSchema != "" && embedded != explicitSchema:
		return "", "", configError("schema has already been defined in WithTable")
	case embedded != "":
		schema = embedded
	case explicitSchema != "":
		schema = explicitSchema
	default:
		schema = dialect.DefaultSchema()
	}
	return schema, table, nil
}
