package predicate

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenType тип токена
type TokenType int

const (
	// Специальные токены
	TokenEOF TokenType = iota
	TokenIllegal

	// Идентификаторы и литералы
	TokenIdent       // имена полей, допускается путь через точку
	TokenString      // 'строка'
	TokenNumber      // 123, 123.45, -7
	TokenPlaceholder // ?

	// Ключевые слова
	TokenAnd
	TokenOr
	TokenNot
	TokenIn
	TokenBetween
	TokenLike
	TokenIs
	TokenNull
	TokenTrue
	TokenFalse

	// Операторы
	TokenEq     // = или ==
	TokenNotEq  // != или <>
	TokenLt     // <
	TokenLte    // <=
	TokenGt     // >
	TokenGte    // >=
	TokenLParen // (
	TokenRParen // )
	TokenComma  // ,
)

var tokenNames = map[TokenType]string{
	TokenEOF:         "end of expression",
	TokenIllegal:     "illegal token",
	TokenIdent:       "field",
	TokenString:      "string",
	TokenNumber:      "number",
	TokenPlaceholder: "?",
	TokenAnd:         "AND",
	TokenOr:          "OR",
	TokenNot:         "NOT",
	TokenIn:          "IN",
	TokenBetween:     "BETWEEN",
	TokenLike:        "LIKE",
	TokenIs:          "IS",
	TokenNull:        "NULL",
	TokenTrue:        "TRUE",
	TokenFalse:       "FALSE",
	TokenEq:          "=",
	TokenNotEq:       "!=",
	TokenLt:          "<",
	TokenLte:         "<=",
	TokenGt:          ">",
	TokenGte:         ">=",
	TokenLParen:      "(",
	TokenRParen:      ")",
	TokenComma:       ",",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token представляет токен
type Token struct {
	Type    TokenType
	Literal string
	Pos     int // позиция в исходной строке
}

func (t Token) String() string {
	return fmt.Sprintf("Token{Type:%v, Literal:%q, Pos:%d}", t.Type, t.Literal, t.Pos)
}

var keywords = map[string]TokenType{
	"AND":     TokenAnd,
	"OR":      TokenOr,
	"NOT":     TokenNot,
	"IN":      TokenIn,
	"BETWEEN": TokenBetween,
	"LIKE":    TokenLike,
	"IS":      TokenIs,
	"NULL":    TokenNull,
	"TRUE":    TokenTrue,
	"FALSE":   TokenFalse,
}

// Lexer лексический анализатор выражений условий
type Lexer struct {
	input   string
	pos     int  // текущая позиция
	readPos int  // следующая позиция для чтения
	ch      rune // текущий символ
	width   int
}

// NewLexer создает новый лексер
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// NextToken возвращает следующий токен
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	tok := Token{Pos: l.pos}

	switch {
	case l.ch == 0:
		tok.Type = TokenEOF
		return tok
	case l.ch == '?':
		tok.Type, tok.Literal = TokenPlaceholder, "?"
	case l.ch == '=':
		tok.Type, tok.Literal = TokenEq, "="
		if l.peekChar() == '=' {
			l.readChar()
			tok.Literal = "=="
		}
	case l.ch == '!':
		if l.peekChar() != '=' {
			tok.Type, tok.Literal = TokenIllegal, "!"
			break
		}
		l.readChar()
		tok.Type, tok.Literal = TokenNotEq, "!="
	case l.ch == '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok.Type, tok.Literal = TokenLte, "<="
		case '>':
			l.readChar()
			tok.Type, tok.Literal = TokenNotEq, "<>"
		default:
			tok.Type, tok.Literal = TokenLt, "<"
		}
	case l.ch == '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type, tok.Literal = TokenGte, ">="
		} else {
			tok.Type, tok.Literal = TokenGt, ">"
		}
	case l.ch == '(':
		tok.Type, tok.Literal = TokenLParen, "("
	case l.ch == ')':
		tok.Type, tok.Literal = TokenRParen, ")"
	case l.ch == ',':
		tok.Type, tok.Literal = TokenComma, ","
	case l.ch == '\'':
		str, ok := l.readString()
		if !ok {
			tok.Type, tok.Literal = TokenIllegal, "unterminated string"
			return tok
		}
		tok.Type, tok.Literal = TokenString, str
		return tok
	case l.ch == '-' && isDigit(l.peekChar()):
		tok.Type, tok.Literal = TokenNumber, l.readNumber()
		return tok
	case isDigit(l.ch):
		tok.Type, tok.Literal = TokenNumber, l.readNumber()
		return tok
	case isLetter(l.ch):
		tok.Literal = l.readIdentifier()
		tok.Type = lookupKeyword(tok.Literal)
		return tok
	default:
		tok.Type, tok.Literal = TokenIllegal, string(l.ch)
	}

	l.readChar()
	return tok
}

// readChar читает следующий символ
func (l *Lexer) readChar() {
	l.pos = l.readPos
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.width = 0
		return
	}
	r, w := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.width = w
	l.readPos += w
}

// peekChar смотрит следующий символ без продвижения
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// readIdentifier читает идентификатор; точка допустима внутри пути поля
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' || (l.ch == '.' && isLetter(l.peekChar())) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber читает число
func (l *Lexer) readNumber() string {
	start := l.pos
	hasDecimal := false

	// Минус только в начале
	if l.ch == '-' {
		l.readChar()
	}

	for isDigit(l.ch) || (l.ch == '.' && !hasDecimal && isDigit(l.peekChar())) {
		if l.ch == '.' {
			hasDecimal = true
		}
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readString читает строку в одинарных кавычках, '' внутри - экранированная кавычка
func (l *Lexer) readString() (string, bool) {
	l.readChar() // пропускаем открывающую кавычку

	var sb strings.Builder
	for {
		switch l.ch {
		case 0:
			return sb.String(), false
		case '\'':
			if l.peekChar() == '\'' {
				sb.WriteRune('\'')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // закрывающая кавычка
			return sb.String(), true
		default:
			sb.WriteRune(l.ch)
			l.readChar()
		}
	}
}

// skipWhitespace пропускает пробелы
func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func isLetter(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

// lookupKeyword определяет, является ли идентификатор ключевым словом
func lookupKeyword(ident string) TokenType {
	if tok, ok := keywords[strings.ToUpper(ident)]; ok {
		return tok
	}
	return TokenIdent
}

// Tokens возвращает все токены (для отладки и тестов)
func (l *Lexer) Tokens() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenIllegal {
			return tokens
		}
	}
}
