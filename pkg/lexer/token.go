// Package lexer turns Cypher-lite query text into a token stream.
//
// The lexer is a cursor (spec.md §4.2): Peek returns the current token
// without advancing, Next advances and returns it, Reset restarts from
// the beginning. Keywords are matched case-insensitively; identifiers
// remain case-sensitive. Whitespace and comments are skipped
// automatically. Unrecognized characters produce an UNKNOWN token and
// lexing continues — the lexer itself never raises an error, matching
// spec.md §7's "Lex errors: recorded as UNKNOWN tokens; never fatal."
package lexer

import "fmt"

// Kind identifies the lexical category of a Token.
type Kind int

const (
	EOF Kind = iota
	UNKNOWN

	Identifier
	StringLiteral
	NumberLiteral
	BooleanLiteral

	// Keywords
	KwMatch
	KwWhere
	KwCreate
	KwSet
	KwDelete
	KwDetach
	KwReturn
	KwExists
	KwNot
	KwAnd
	KwOr
	KwXor
	KwNull
	KwIn
	KwContains
	KwStarts
	KwEnds
	KwWith
	KwIs
	KwMerge
	KwOn
	KwAs

	// Punctuation
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Colon
	Comma
	Dot
	Semicolon
	Star

	// Operators
	Eq
	Neq
	Lt
	Lte
	Gt
	Gte
	Minus
	Plus
	ArrowRight // ->
	ArrowLeft  // <-
	Dollar     // $param
	Range      // ..
)

var kindNames = map[Kind]string{
	EOF: "EOF", UNKNOWN: "UNKNOWN",
	Identifier: "IDENTIFIER", StringLiteral: "STRING", NumberLiteral: "NUMBER", BooleanLiteral: "BOOLEAN",
	KwMatch: "MATCH", KwWhere: "WHERE", KwCreate: "CREATE", KwSet: "SET", KwDelete: "DELETE",
	KwDetach: "DETACH", KwReturn: "RETURN", KwExists: "EXISTS", KwNot: "NOT", KwAnd: "AND", KwOr: "OR",
	KwXor: "XOR", KwNull: "NULL", KwIn: "IN", KwContains: "CONTAINS", KwStarts: "STARTS", KwEnds: "ENDS",
	KwWith: "WITH", KwIs: "IS", KwMerge: "MERGE", KwOn: "ON", KwAs: "AS",
	LParen: "(", RParen: ")", LBrace: "{", RBrace: "}", LBracket: "[", RBracket: "]",
	Colon: ":", Comma: ",", Dot: ".", Semicolon: ";", Star: "*",
	Eq: "=", Neq: "<>", Lt: "<", Lte: "<=", Gt: ">", Gte: ">=",
	Minus: "-", Plus: "+", ArrowRight: "->", ArrowLeft: "<-", Dollar: "$", Range: "..",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// keywords maps the upper-cased lexeme to its keyword Kind. Matching
// is done case-insensitively by upper-casing the candidate identifier
// before lookup (spec.md §4.2).
var keywords = map[string]Kind{
	"MATCH": KwMatch, "WHERE": KwWhere, "CREATE": KwCreate, "SET": KwSet,
	"DELETE": KwDelete, "DETACH": KwDetach, "RETURN": KwReturn, "EXISTS": KwExists,
	"NOT": KwNot, "AND": KwAnd, "OR": KwOr, "XOR": KwXor, "NULL": KwNull,
	"IN": KwIn, "CONTAINS": KwContains, "STARTS": KwStarts, "ENDS": KwEnds,
	"WITH": KwWith, "IS": KwIs, "TRUE": BooleanLiteral, "FALSE": BooleanLiteral,
	"MERGE": KwMerge, "ON": KwOn, "AS": KwAs,
}

// Token is one lexical unit with its source position.
type Token struct {
	Kind   Kind
	Lexeme string
	Line   int
	Column int
	Offset int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Kind, t.Lexeme, t.Line, t.Column)
}
