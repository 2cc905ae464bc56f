package mssql

import (
	"fmt"
	"strings"
)

// Образы строк, доступные в MERGE ... OUTPUT
const (
	ImageInserted = "INSERTED"
	ImageDeleted  = "DELETED"
)

// OutputSpec сохраняет пары (токен корреляции, ключ) во временную таблицу
type OutputSpec struct {
	Table          string // #TmpOutput_...
	OrdinalColumn  string
	IdentityColumn string
	Image          string // ImageInserted или ImageDeleted
}

// MergeSpec описывает один запрос сверки. Набор веток зависит от
// заполненных полей:
//   - Update непустой: WHEN MATCHED [AND UpdateWhen] THEN UPDATE
//   - Delete: WHEN MATCHED [AND DeleteWhen] THEN DELETE
//   - Insert непустой: WHEN NOT MATCHED BY TARGET THEN INSERT
//   - DeleteNotMatched: WHEN NOT MATCHED BY SOURCE [AND DeleteWhen] THEN DELETE
type MergeSpec struct {
	Target string // полное имя цели, например [dbo].[Books]
	Source string // промежуточная таблица

	MatchOn []string
	// NeverMatch дает ON 1 = 2, каждая строка идет в ветку INSERT
	NeverMatch bool

	Update     []string
	UpdateWhen string

	Delete           bool
	DeleteNotMatched bool
	DeleteWhen       string

	Insert []string

	Output *OutputSpec

	// DropSource добавляет в пакет DROP TABLE промежуточной таблицы
	DropSource bool
}

// BuildMergeSQL строит MERGE по описанию spec
func BuildMergeSQL(spec MergeSpec) (string, error) {
	if !spec.NeverMatch && len(spec.MatchOn) == 0 {
		return "", fmt.Errorf("merge into %s: no match columns", spec.Target)
	}
	if len(spec.Update) == 0 && len(spec.Insert) == 0 && !spec.Delete && !spec.DeleteNotMatched {
		return "", fmt.Errorf("merge into %s: statement has no action", spec.Target)
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "MERGE INTO %s WITH (HOLDLOCK) AS Target\n", spec.Target)
	fmt.Fprintf(&sb, "USING %s AS Source\n", spec.Source)
	sb.WriteString("ON ")
	sb.WriteString(matchCondition(spec))
	sb.WriteString("\n")

	if len(spec.Update) > 0 {
		sb.WriteString("WHEN MATCHED")
		if spec.UpdateWhen != "" {
			sb.WriteString(" AND " + spec.UpdateWhen)
		}
		sb.WriteString(" THEN UPDATE SET ")
		sets := make([]string, len(spec.Update))
		for i, col := range spec.Update {
			q := quoteIdent(col)
			sets[i] = fmt.Sprintf("Target.%s = Source.%s", q, q)
		}
		sb.WriteString(strings.Join(sets, ", "))
		sb.WriteString("\n")
	}

	if spec.Delete {
		sb.WriteString("WHEN MATCHED")
		if spec.DeleteWhen != "" {
			sb.WriteString(" AND " + spec.DeleteWhen)
		}
		sb.WriteString(" THEN DELETE\n")
	}

	if len(spec.Insert) > 0 {
		cols := make([]string, len(spec.Insert))
		vals := make([]string, len(spec.Insert))
		for i, col := range spec.Insert {
			q := quoteIdent(col)
			cols[i] = q
			vals[i] = "Source." + q
		}
		fmt.Fprintf(&sb, "WHEN NOT MATCHED BY TARGET THEN INSERT (%s) VALUES (%s)\n",
			strings.Join(cols, ", "), strings.Join(vals, ", "))
	}

	if spec.DeleteNotMatched {
		sb.WriteString("WHEN NOT MATCHED BY SOURCE")
		if spec.DeleteWhen != "" {
			sb.WriteString(" AND " + spec.DeleteWhen)
		}
		sb.WriteString(" THEN DELETE\n")
	}

	if out := spec.Output; out != nil {
		image := out.Image
		if image == "" {
			image = ImageInserted
		}
		ord := quoteIdent(out.OrdinalColumn)
		id := quoteIdent(out.IdentityColumn)
		fmt.Fprintf(&sb, "OUTPUT Source.%s, %s.%s INTO %s (%s, %s)\n",
			ord, image, id, out.Table, ord, id)
	}

	sb.WriteString(";")

	if spec.DropSource {
		fmt.Fprintf(&sb, "\nDROP TABLE %s;", spec.Source)
	}

	return sb.String(), nil
}

// matchCondition строит условие ON. NULL в ключевой колонке совпадает
// с NULL на другой стороне, повторная строка с NULL ключом не создает
// дубликат.
func matchCondition(spec MergeSpec) string {
	if spec.NeverMatch {
		return "1 = 2"
	}
	parts := make([]string, len(spec.MatchOn))
	for i, col := range spec.MatchOn {
		q := quoteIdent(col)
		parts[i] = fmt.Sprintf("(Target.%s = Source.%s OR (Target.%s IS NULL AND Source.%s IS NULL))", q, q, q, q)
	}
	return strings.Join(parts, " AND ")
}
