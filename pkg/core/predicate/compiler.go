package predicate

import (
	"database/sql"
	"fmt"
	"strings"
)

// Kind ветка сверки, к которой относится условие
type Kind int

const (
	UpdateWhen Kind = iota + 1
	DeleteWhen
)

func (k Kind) String() string {
	switch k {
	case UpdateWhen:
		return "UpdateWhen"
	case DeleteWhen:
		return "DeleteWhen"
	default:
		return "Unknown"
	}
}

// Fragment скомпилированное условие: SQL и именованные параметры
type Fragment struct {
	Kind Kind
	SQL  string
	Args []sql.NamedArg
}

// Compiler переводит выражения над полями строки в параметризованный T-SQL.
// Значения никогда не подставляются в текст, только через параметры.
type Compiler struct {
	// Resolve возвращает имя колонки назначения для поля
	Resolve func(field string) (column string, ok bool)
	// Quote экранирует идентификатор
	Quote func(ident string) string
	// Alias префикс колонок, например "Target"
	Alias string

	seq int
}

// Compile разбирает выражение и строит фрагмент.
// Ошибки разбора и неподдерживаемые конструкции возвращаются как *Error.
func (c *Compiler) Compile(kind Kind, expr string, args ...any) (Fragment, error) {
	p := NewParser(expr)
	ast, err := p.Parse()
	if err != nil {
		return Fragment{}, err
	}
	if p.Placeholders() != len(args) {
		return Fragment{}, &Error{
			Expr: expr,
			Pos:  -1,
			Msg:  fmt.Sprintf("expression has %d placeholders but %d arguments were given", p.Placeholders(), len(args)),
		}
	}

	g := &generator{c: c, kind: kind, expr: expr, args: args}
	text, err := g.generate(ast)
	if err != nil {
		return Fragment{}, err
	}

	return Fragment{Kind: kind, SQL: text, Args: g.params}, nil
}

// Combine объединяет фрагменты одного вида через AND
func Combine(fragments []Fragment) Fragment {
	switch len(fragments) {
	case 0:
		return Fragment{}
	case 1:
		return fragments[0]
	}

	parts := make([]string, 0, len(fragments))
	var args []sql.NamedArg
	for _, f := range fragments {
		parts = append(parts, "("+f.SQL+")")
		args = append(args, f.Args...)
	}
	return Fragment{
		Kind: fragments[0].Kind,
		SQL:  strings.Join(parts, " AND "),
		Args: args,
	}
}

type generator struct {
	c      *Compiler
	kind   Kind
	expr   string
	args   []any
	params []sql.NamedArg
}

func (g *generator) fail(format string, args ...any) error {
	return &Error{Expr: g.expr, Pos: -1, Msg: fmt.Sprintf(format, args...)}
}

func (g *generator) generate(expr Expression) (string, error) {
	switch e := expr.(type) {
	case *BinaryExpression:
		left, err := g.generate(e.Left)
		if err != nil {
			return "", err
		}
		right, err := g.generate(e.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s %s %s)", left, e.Operator, right), nil

	case *ParenExpression:
		inner, err := g.generate(e.Expression)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil

	case *NotExpression:
		inner, err := g.generate(e.Expression)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil

	case *IsNullExpression:
		col, err := g.column(e.Field)
		if err != nil {
			return "", err
		}
		if e.Not {
			return col + " IS NOT NULL", nil
		}
		return col + " IS NULL", nil

	case *ComparisonExpression:
		return g.comparison(e)

	case *InExpression:
		col, err := g.column(e.Field)
		if err != nil {
			return "", err
		}
		names := make([]string, 0, len(e.Values))
		for _, v := range e.Values {
			name, isNull, err := g.bind(v)
			if err != nil {
				return "", err
			}
			if isNull {
				return "", g.fail("NULL is not allowed in IN list")
			}
			names = append(names, name)
		}
		op := "IN"
		if e.Not {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", col, op, strings.Join(names, ", ")), nil

	case *BetweenExpression:
		col, err := g.column(e.Field)
		if err != nil {
			return "", err
		}
		low, lowNull, err := g.bind(e.Low)
		if err != nil {
			return "", err
		}
		high, highNull, err := g.bind(e.High)
		if err != nil {
			return "", err
		}
		if lowNull || highNull {
			return "", g.fail("BETWEEN bounds must not be NULL")
		}
		op := "BETWEEN"
		if e.Not {
			op = "NOT BETWEEN"
		}
		return fmt.Sprintf("%s %s %s AND %s", col, op, low, high), nil
	}

	return "", g.fail("unsupported expression %s", expr)
}

func (g *generator) comparison(e *ComparisonExpression) (string, error) {
	col, err := g.column(e.Field)
	if err != nil {
		return "", err
	}

	name, isNull, err := g.bind(e.Value)
	if err != nil {
		return "", err
	}

	// Сравнение с NULL превращается в IS [NOT] NULL
	if isNull {
		switch e.Operator {
		case "=":
			return col + " IS NULL", nil
		case "<>":
			return col + " IS NOT NULL", nil
		default:
			return "", g.fail("operator %s cannot be used with NULL", e.Operator)
		}
	}

	return fmt.Sprintf("%s %s %s", col, e.Operator, name), nil
}

func (g *generator) column(field string) (string, error) {
	name, ok := g.c.Resolve(field)
	if !ok {
		return "", g.fail("unknown field %q", field)
	}
	quoted := g.c.Quote(name)
	if g.c.Alias != "" {
		return g.c.Alias + "." + quoted, nil
	}
	return quoted, nil
}

// bind регистрирует параметр и возвращает его имя в тексте (@UpdateWhen1).
// Для NULL параметр не создается.
func (g *generator) bind(op Operand) (string, bool, error) {
	var value any
	switch o := op.(type) {
	case *Literal:
		value = o.Value
	case *Placeholder:
		if o.Index >= len(g.args) {
			return "", false, g.fail("placeholder #%d has no argument", o.Index+1)
		}
		value = g.args[o.Index]
	default:
		return "", false, g.fail("unsupported operand %s", op)
	}

	if value == nil {
		return "", true, nil
	}

	g.c.seq++
	name := fmt.Sprintf("%s%d", g.kind, g.c.seq)
	g.params = append(g.params, sql.Named(name, value))
	return "@" + name, false, nil
}
