// Package token defines the lexical tokens of the sable language.
package token

type TokenType string

type Token struct {
	Type    TokenType
	Lexeme  string
	Line    int
	Column  int
}

const (
	ILLEGAL = "ILLEGAL"
	EOF     = "EOF"

	// Identifiers and literals
	IDENT  = "IDENT"
	INT    = "INT"
	FLOAT  = "FLOAT"
	STRING = "STRING"

	// Operators
	ASSIGN   = "="
	PLUS     = "+"
	MINUS    = "-"
	ASTERISK = "*"
	SLASH    = "/"
	PERCENT  = "%"
	BANG     = "!"

	EQ     = "=="
	NOT_EQ = "!="
	LT     = "<"
	LE     = "<="
	GT     = ">"
	GE     = ">="

	AND = "&&"
	OR  = "||"

	// Delimiters
	COMMA     = ","
	SEMICOLON = ";"
	COLON     = ":"
	DOT       = "."

	LPAREN   = "("
	RPAREN   = ")"
	LBRACE   = "{"
	RBRACE   = "}"
	LBRACKET = "["
	RBRACKET = "]"

	// Keywords
	VAR     = "VAR"
	FN      = "FN"
	RETURN  = "RETURN"
	IF      = "IF"
	ELSE    = "ELSE"
	WHILE   = "WHILE"
	FOR     = "FOR"
	FOREACH = "FOREACH"
	IN      = "IN"
	STRUCT  = "STRUCT"
	IMPORT  = "IMPORT"
	AS      = "AS"
	ASYNC   = "ASYNC"
	AWAIT   = "AWAIT"
	PRINT   = "PRINT"
	TRUE    = "TRUE"
	FALSE   = "FALSE"
	NIL     = "NIL"
)

var keywords = map[string]TokenType{
	"var":     VAR,
	"fn":      FN,
	"return":  RETURN,
	"if":      IF,
	"else":    ELSE,
	"while":   WHILE,
	"for":     FOR,
	"foreach": FOREACH,
	"in":      IN,
	"struct":  STRUCT,
	"import":  IMPORT,
	"as":      AS,
	"async":   ASYNC,
	"await":   AWAIT,
	"print":   PRINT,
	"true":    TRUE,
	"false":   FALSE,
	"nil":     NIL,
}

// LookupIdent returns the keyword type for ident, or IDENT.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}
