package predicate

import (
	"fmt"
	"strconv"
	"strings"
)

// Error ошибка разбора или компиляции условия
type Error struct {
	Expr string
	Pos  int
	Msg  string
}

func (e *Error) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("predicate %q: %s at pos %d", e.Expr, e.Msg, e.Pos)
	}
	return fmt.Sprintf("predicate %q: %s", e.Expr, e.Msg)
}

// Parser парсер выражений условий
type Parser struct {
	input        string
	lexer        *Lexer
	curToken     Token
	peekToken    Token
	placeholders int
}

// NewParser создает новый парсер
func NewParser(input string) *Parser {
	p := &Parser{
		input: input,
		lexer: NewLexer(input),
	}

	// Читаем два токена для инициализации curToken и peekToken
	p.nextToken()
	p.nextToken()

	return p
}

// Placeholders возвращает количество параметров ? в выражении
func (p *Parser) Placeholders() int {
	return p.placeholders
}

// nextToken продвигает токены
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

func (p *Parser) errorf(format string, args ...any) *Error {
	return &Error{Expr: p.input, Pos: p.curToken.Pos, Msg: fmt.Sprintf(format, args...)}
}

// Parse разбирает выражение целиком
func (p *Parser) Parse() (Expression, error) {
	if p.curToken.Type == TokenEOF {
		return nil, p.errorf("empty expression")
	}

	expr, err := p.parseExpression(0)
	if err != nil {
		return nil, err
	}

	if p.curToken.Type != TokenEOF {
		return nil, p.errorf("unexpected %v %q", p.curToken.Type, p.curToken.Literal)
	}
	return expr, nil
}

// parseExpression парсит выражение с приоритетами
// Приоритет: NOT (3) > AND (2) > OR (1)
func (p *Parser) parseExpression(precedence int) (Expression, error) {
	var left Expression

	switch p.curToken.Type {
	case TokenNot:
		p.nextToken()
		expr, err := p.parseExpression(3)
		if err != nil {
			return nil, err
		}
		left = &NotExpression{Expression: expr}
	case TokenLParen:
		p.nextToken()
		expr, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		if p.curToken.Type != TokenRParen {
			return nil, p.errorf("expected )")
		}
		p.nextToken()
		left = &ParenExpression{Expression: expr}
	default:
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		left = cond
	}

	// Инфиксные операторы (AND, OR)
	for {
		var opPrecedence int
		var operator string

		switch p.curToken.Type {
		case TokenAnd:
			opPrecedence, operator = 2, "AND"
		case TokenOr:
			opPrecedence, operator = 1, "OR"
		default:
			return left, nil
		}

		if opPrecedence <= precedence {
			return left, nil
		}

		p.nextToken()

		right, err := p.parseExpression(opPrecedence)
		if err != nil {
			return nil, err
		}

		left = &BinaryExpression{Left: left, Operator: operator, Right: right}
	}
}

// parseCondition парсит одно условие (field op value)
func (p *Parser) parseCondition() (Expression, error) {
	if p.curToken.Type == TokenIllegal {
		return nil, p.errorf("illegal token %q", p.curToken.Literal)
	}
	if p.curToken.Type != TokenIdent {
		return nil, p.errorf("expected field name, got %v", p.curToken.Type)
	}
	if p.peekToken.Type == TokenLParen {
		return nil, p.errorf("function calls are not supported")
	}

	field := p.curToken.Literal
	p.nextToken()

	switch p.curToken.Type {
	case TokenIs:
		p.nextToken()
		not := false
		if p.curToken.Type == TokenNot {
			not = true
			p.nextToken()
		}
		if p.curToken.Type != TokenNull {
			return nil, p.errorf("expected NULL after IS")
		}
		p.nextToken()
		return &IsNullExpression{Field: field, Not: not}, nil

	case TokenIn:
		p.nextToken()
		return p.parseInExpression(field, false)

	case TokenBetween:
		p.nextToken()
		return p.parseBetweenExpression(field, false)

	case TokenNot:
		p.nextToken()
		switch p.curToken.Type {
		case TokenIn:
			p.nextToken()
			return p.parseInExpression(field, true)
		case TokenBetween:
			p.nextToken()
			return p.parseBetweenExpression(field, true)
		case TokenLike:
			p.nextToken()
			value, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			return &ComparisonExpression{Field: field, Operator: "NOT LIKE", Value: value}, nil
		}
		return nil, p.errorf("expected IN, BETWEEN or LIKE after NOT")
	}

	var operator string
	switch p.curToken.Type {
	case TokenEq:
		operator = "="
	case TokenNotEq:
		operator = "<>"
	case TokenLt:
		operator = "<"
	case TokenLte:
		operator = "<="
	case TokenGt:
		operator = ">"
	case TokenGte:
		operator = ">="
	case TokenLike:
		operator = "LIKE"
	case TokenIllegal:
		return nil, p.errorf("illegal token %q", p.curToken.Literal)
	default:
		return nil, p.errorf("expected operator, got %v", p.curToken.Type)
	}
	p.nextToken()

	value, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	return &ComparisonExpression{Field: field, Operator: operator, Value: value}, nil
}

// parseOperand парсит литерал или параметр
func (p *Parser) parseOperand() (Operand, error) {
	tok := p.curToken

	var op Operand
	switch tok.Type {
	case TokenPlaceholder:
		op = &Placeholder{Index: p.placeholders}
		p.placeholders++
	case TokenString:
		op = &Literal{Value: tok.Literal}
	case TokenNumber:
		v, err := parseNumber(tok.Literal)
		if err != nil {
			return nil, p.errorf("invalid number %q", tok.Literal)
		}
		op = &Literal{Value: v}
	case TokenTrue:
		op = &Literal{Value: true}
	case TokenFalse:
		op = &Literal{Value: false}
	case TokenNull:
		op = &Literal{Value: nil}
	case TokenIdent:
		return nil, p.errorf("comparing field to field %q is not supported", tok.Literal)
	case TokenIllegal:
		return nil, p.errorf("illegal token %q", tok.Literal)
	default:
		return nil, p.errorf("expected value, got %v", tok.Type)
	}

	p.nextToken()
	if p.curToken.Type == TokenIllegal {
		return nil, p.errorf("unsupported operator %q", p.curToken.Literal)
	}
	return op, nil
}

func parseNumber(lit string) (any, error) {
	if strings.Contains(lit, ".") {
		return strconv.ParseFloat(lit, 64)
	}
	return strconv.ParseInt(lit, 10, 64)
}

// parseInExpression парсит IN выражение
func (p *Parser) parseInExpression(field string, not bool) (Expression, error) {
	if p.curToken.Type != TokenLParen {
		return nil, p.errorf("expected ( after IN")
	}
	p.nextToken()

	var values []Operand
	for {
		value, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if lit, ok := value.(*Literal); ok && lit.Value == nil {
			return nil, p.errorf("NULL is not allowed in IN list")
		}
		values = append(values, value)

		if p.curToken.Type == TokenRParen {
			p.nextToken()
			break
		}
		if p.curToken.Type != TokenComma {
			return nil, p.errorf("expected , or ) in IN list, got %v", p.curToken.Type)
		}
		p.nextToken() // пропускаем запятую
	}

	return &InExpression{Field: field, Values: values, Not: not}, nil
}

// parseBetweenExpression парсит BETWEEN выражение
func (p *Parser) parseBetweenExpression(field string, not bool) (Expression, error) {
	low, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	if p.curToken.Type != TokenAnd {
		return nil, p.errorf("expected AND in BETWEEN")
	}
	p.nextToken()

	high, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	return &BetweenExpression{Field: field, Low: low, High: high, Not: not}, nil
}
