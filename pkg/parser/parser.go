package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arborix/graphdb/pkg/lexer"
)

// isTopLevelKeyword reports whether k is one of the clause-starting
// keywords the error-recovery routine resynchronizes on (spec.md §4.3).
func isTopLevelKeyword(k lexer.Kind) bool {
	switch k {
	case lexer.KwMatch, lexer.KwWhere, lexer.KwCreate, lexer.KwSet,
		lexer.KwDelete, lexer.KwDetach, lexer.KwReturn, lexer.KwMerge:
		return true
	default:
		return false
	}
}

// Parser is a recursive-descent parser over a token stream. It never
// returns a Go error for malformed query text — see Parse.
type Parser struct {
	lex   *lexer.Lexer
	diags []Diagnostic
}

// New wraps a token stream for parsing. Most callers should use Parse
// instead, which constructs the Lexer for them.
func New(l *lexer.Lexer) *Parser {
	return &Parser{lex: l}
}

// Parse lexes and parses src into a Statement. Syntax errors are
// recorded as Diagnostics rather than returned as a Go error — the
// statement returned contains every clause that parsed successfully
// (spec.md §4.3). Parse only panics for programmer errors such as a
// nil Lexer, never for malformed input.
func Parse(src string) (*Statement, []Diagnostic) {
	p := New(lexer.New(src))
	stmt := p.parseStatement()
	stmt.Raw = src
	return stmt, p.diags
}

func (p *Parser) errorf(tok lexer.Token, format string, args ...any) {
	p.diags = append(p.diags, Diagnostic{
		Message: fmt.Sprintf(format, args...),
		Line:    tok.Line,
		Column:  tok.Column,
	})
}

// recover consumes tokens up to (not including) the next top-level
// keyword or EOF, so one malformed clause doesn't poison the rest of
// the statement.
func (p *Parser) recover() {
	for {
		k := p.lex.Peek().Kind
		if k == lexer.EOF || isTopLevelKeyword(k) {
			return
		}
		p.lex.Next()
	}
}

func (p *Parser) expect(k lexer.Kind) (lexer.Token, bool) {
	tok := p.lex.Peek()
	if tok.Kind != k {
		p.errorf(tok, "expected %s, found %s %q", k, tok.Kind, tok.Lexeme)
		return tok, false
	}
	return p.lex.Next(), true
}

func (p *Parser) parseStatement() *Statement {
	stmt := &Statement{}
	for {
		tok := p.lex.Peek()
		switch tok.Kind {
		case lexer.EOF:
			return stmt
		case lexer.KwMatch:
			p.lex.Next()
			stmt.Matches = append(stmt.Matches, p.parsePathPatternList()...)
		case lexer.KwWhere:
			p.lex.Next()
			stmt.Where = p.parseOrExpr()
		case lexer.KwCreate:
			p.lex.Next()
			stmt.Actions = append(stmt.Actions, p.parseCreateClause()...)
		case lexer.KwMerge:
			p.lex.Next()
			stmt.Actions = append(stmt.Actions, p.parseMergeClause())
		case lexer.KwSet:
			p.lex.Next()
			stmt.Actions = append(stmt.Actions, p.parseSetClause()...)
		case lexer.KwDetach, lexer.KwDelete:
			stmt.Actions = append(stmt.Actions, p.parseDeleteClause())
		case lexer.KwReturn:
			p.lex.Next()
			stmt.Return = p.parseReturnClause()
		default:
			p.errorf(tok, "unexpected token %s %q", tok.Kind, tok.Lexeme)
			p.lex.Next()
			p.recover()
		}
	}
}

// ---- pattern parsing ----

func (p *Parser) parsePathPatternList() []PathPattern {
	var out []PathPattern
	out = append(out, p.parsePathPattern())
	for p.lex.Peek().Kind == lexer.Comma {
		p.lex.Next()
		out = append(out, p.parsePathPattern())
	}
	return out
}

func (p *Parser) parsePathPattern() PathPattern {
	pp := PathPattern{Start: p.parseNodePattern()}
	for p.lex.Peek().Kind == lexer.Minus || p.lex.Peek().Kind == lexer.ArrowLeft {
		rel := p.parseRelPattern()
		node := p.parseNodePattern()
		pp.Segments = append(pp.Segments, PathSegment{Relationship: rel, Node: node})
	}
	return pp
}

func (p *Parser) parseNodePattern() NodePattern {
	np := NodePattern{}
	if _, ok := p.expect(lexer.LParen); !ok {
		return np
	}
	if p.lex.Peek().Kind == lexer.Identifier {
		np.Variable = p.lex.Next().Lexeme
	}
	for p.lex.Peek().Kind == lexer.Colon {
		p.lex.Next()
		if tok, ok := p.expect(lexer.Identifier); ok {
			np.Labels = append(np.Labels, tok.Lexeme)
		}
	}
	if p.lex.Peek().Kind == lexer.LBrace {
		np.Properties = p.parsePropMap()
	}
	p.expect(lexer.RParen)
	return np
}

// parseRelPattern parses one of:
//
//	-[var:TYPE*min..max {props}]->
//	<-[...]-
//	-[...]-
func (p *Parser) parseRelPattern() RelationshipPattern {
	rel := RelationshipPattern{Direction: Both, MinHops: 1, MaxHops: 1}

	leftArrow := false
	if p.lex.Peek().Kind == lexer.ArrowLeft {
		p.lex.Next()
		leftArrow = true
	} else {
		p.expect(lexer.Minus)
	}

	if p.lex.Peek().Kind == lexer.LBracket {
		p.lex.Next()
		if p.lex.Peek().Kind == lexer.Identifier {
			rel.Variable = p.lex.Next().Lexeme
		}
		if p.lex.Peek().Kind == lexer.Colon {
			p.lex.Next()
			if tok, ok := p.expect(lexer.Identifier); ok {
				rel.Type = tok.Lexeme
			}
		}
		if p.lex.Peek().Kind == lexer.Star {
			p.lex.Next()
			p.parseHopRange(&rel)
		}
		if p.lex.Peek().Kind == lexer.LBrace {
			rel.Properties = p.parsePropMap()
		}
		p.expect(lexer.RBracket)
	}

	rightArrow := false
	if p.lex.Peek().Kind == lexer.ArrowRight {
		p.lex.Next()
		rightArrow = true
	} else {
		p.expect(lexer.Minus)
	}

	switch {
	case leftArrow && !rightArrow:
		rel.Direction = Incoming
	case rightArrow && !leftArrow:
		rel.Direction = Outgoing
	default:
		rel.Direction = Both
	}
	return rel
}

// parseHopRange parses the range grammar following '*':
//
//	(bare)     -> min=1, max=unbounded
//	n          -> min=max=n
//	n..m       -> min=n, max=m
//	..m        -> min=1, max=m
//	n..        -> min=n, max=unbounded
func (p *Parser) parseHopRange(rel *RelationshipPattern) {
	tok := p.lex.Peek()
	switch tok.Kind {
	case lexer.NumberLiteral:
		p.lex.Next()
		n, _ := strconv.Atoi(tok.Lexeme)
		rel.MinHops = n
		rel.MaxHops = n
		rel.Unbounded = false
		if p.lex.Peek().Kind == lexer.Range {
			p.lex.Next()
			if p.lex.Peek().Kind == lexer.NumberLiteral {
				m := p.lex.Next()
				mv, _ := strconv.Atoi(m.Lexeme)
				rel.MaxHops = mv
			} else {
				rel.MaxHops = 0
				rel.Unbounded = true
			}
		}
	case lexer.Range:
		p.lex.Next()
		rel.MinHops = 1
		if p.lex.Peek().Kind == lexer.NumberLiteral {
			m := p.lex.Next()
			mv, _ := strconv.Atoi(m.Lexeme)
			rel.MaxHops = mv
		} else {
			rel.MaxHops = 0
			rel.Unbounded = true
		}
	default:
		// bare '*'
		rel.MinHops = 1
		rel.MaxHops = 0
		rel.Unbounded = true
	}
}

// parsePropMap parses '{' ident ':' literal (',' ident ':' literal)* '}'.
// Property values in patterns are literals only (spec.md §9): an
// expression like "{name: otherVar.name}" is rejected with a
// diagnostic, and the offending property is simply omitted from the
// resulting map.
func (p *Parser) parsePropMap() map[string]any {
	props := map[string]any{}
	p.expect(lexer.LBrace)
	if p.lex.Peek().Kind == lexer.RBrace {
		p.lex.Next()
		return props
	}
	for {
		keyTok, ok := p.expect(lexer.Identifier)
		if !ok {
			break
		}
		p.expect(lexer.Colon)
		val, isLiteral := p.tryParseLiteralValue()
		if !isLiteral {
			p.errorf(p.lex.Peek(), "property map values must be literals, not expressions")
		} else {
			props[keyTok.Lexeme] = val
		}
		if p.lex.Peek().Kind == lexer.Comma {
			p.lex.Next()
			continue
		}
		break
	}
	p.expect(lexer.RBrace)
	return props
}

// tryParseLiteralValue parses a literal scalar or a literal list; it
// reports isLiteral=false (without consuming) if the current token
// cannot start a literal, which is how parsePropMap enforces "literals
// only" in property maps.
func (p *Parser) tryParseLiteralValue() (any, bool) {
	tok := p.lex.Peek()
	switch tok.Kind {
	case lexer.StringLiteral:
		p.lex.Next()
		return tok.Lexeme, true
	case lexer.NumberLiteral:
		p.lex.Next()
		if f, err := strconv.ParseFloat(tok.Lexeme, 64); err == nil {
			return f, true
		}
		return 0.0, true
	case lexer.BooleanLiteral:
		p.lex.Next()
		return strings.EqualFold(tok.Lexeme, "true"), true
	case lexer.KwNull:
		p.lex.Next()
		return nil, true
	case lexer.LBracket:
		p.lex.Next()
		var list []any
		if p.lex.Peek().Kind != lexer.RBracket {
			for {
				v, ok := p.tryParseLiteralValue()
				if ok {
					list = append(list, v)
				}
				if p.lex.Peek().Kind == lexer.Comma {
					p.lex.Next()
					continue
				}
				break
			}
		}
		p.expect(lexer.RBracket)
		return list, true
	default:
		return nil, false
	}
}


// ---- CREATE / MERGE / SET / DELETE clauses ----

func (p *Parser) parseCreateClause() []Action {
	var actions []Action
	for {
		actions = append(actions, p.parsePathAsActions(p.parsePathPattern())...)
		if p.lex.Peek().Kind == lexer.Comma {
			p.lex.Next()
			continue
		}
		break
	}
	return actions
}

// parsePathAsActions translates one CREATE pattern into a sequence of
// CreateNode/CreateRelationship actions: the start node, then for each
// segment the segment's node (created fresh) followed by the
// relationship referencing the previous node's variable and the
// segment's node. Reusing an already-bound variable for a later node
// in the same CREATE pattern (e.g. "CREATE (a)-[:R]->(a)") is not
// given special handling here — pkg/action's CreateNode validation
// rejects rebinding an already-bound variable, matching spec.md §4.6.
func (p *Parser) parsePathAsActions(pp PathPattern) []Action {
	var actions []Action
	startVar := pp.Start.Variable
	actions = append(actions, CreateNode{Variable: startVar, Labels: pp.Start.Labels, Properties: pp.Start.Properties})

	prevVar := startVar
	for _, seg := range pp.Segments {
		nodeVar := seg.Node.Variable
		actions = append(actions, CreateNode{Variable: nodeVar, Labels: seg.Node.Labels, Properties: seg.Node.Properties})

		from, to := prevVar, nodeVar
		if seg.Relationship.Direction == Incoming {
			from, to = nodeVar, prevVar
		}
		actions = append(actions, CreateRelationship{
			FromVar:     from,
			ToVar:       to,
			RelVariable: seg.Relationship.Variable,
			Type:        seg.Relationship.Type,
			Properties:  seg.Relationship.Properties,
			Direction:   seg.Relationship.Direction,
		})
		prevVar = nodeVar
	}
	return actions
}

func (p *Parser) parseMergeClause() Action {
	pp := p.parsePathPattern()
	var onCreate, onMatch []SetProperty
	for p.lex.Peek().Kind == lexer.KwOn {
		p.lex.Next()
		switch p.lex.Peek().Kind {
		case lexer.KwCreate:
			p.lex.Next()
			p.expect(lexer.KwSet)
			items := p.parseSetItems()
			onCreate = append(onCreate, items...)
		case lexer.KwMatch:
			p.lex.Next()
			p.expect(lexer.KwSet)
			items := p.parseSetItems()
			onMatch = append(onMatch, items...)
		default:
			p.errorf(p.lex.Peek(), "expected CREATE or MATCH after ON")
			p.recover()
		}
	}

	if len(pp.Segments) == 0 {
		return MergeNode{Pattern: pp.Start, OnCreate: onCreate, OnMatch: onMatch}
	}
	seg := pp.Segments[0]
	from, to := pp.Start.Variable, seg.Node.Variable
	if seg.Relationship.Direction == Incoming {
		from, to = seg.Node.Variable, pp.Start.Variable
	}
	return MergeRelationship{
		FromVar: from, ToVar: to,
		RelVariable: seg.Relationship.Variable,
		Type:        seg.Relationship.Type,
		Properties:  seg.Relationship.Properties,
		Direction:   seg.Relationship.Direction,
		OnCreate:    onCreate, OnMatch: onMatch,
	}
}

func (p *Parser) parseSetClause() []Action {
	items := p.parseSetItems()
	actions := make([]Action, len(items))
	for i, it := range items {
		actions[i] = it
	}
	return actions
}

func (p *Parser) parseSetItems() []SetProperty {
	var items []SetProperty
	for {
		varTok, ok := p.expect(lexer.Identifier)
		if !ok {
			break
		}
		p.expect(lexer.Dot)
		propTok, ok := p.expect(lexer.Identifier)
		if !ok {
			break
		}
		p.expect(lexer.Eq)
		val := p.parseAtom()
		items = append(items, SetProperty{TargetVar: varTok.Lexeme, Property: propTok.Lexeme, Value: val})
		if p.lex.Peek().Kind == lexer.Comma {
			p.lex.Next()
			continue
		}
		break
	}
	return items
}

func (p *Parser) parseDeleteClause() Action {
	detach := false
	if p.lex.Peek().Kind == lexer.KwDetach {
		p.lex.Next()
		detach = true
	}
	p.expect(lexer.KwDelete)
	var vars []string
	for {
		tok, ok := p.expect(lexer.Identifier)
		if !ok {
			break
		}
		vars = append(vars, tok.Lexeme)
		if p.lex.Peek().Kind == lexer.Comma {
			p.lex.Next()
			continue
		}
		break
	}
	return Delete{Variables: vars, Detach: detach}
}

func (p *Parser) parseReturnClause() []ReturnItem {
	var items []ReturnItem
	for {
		e := p.parseAtom()
		var alias string
		if p.lex.Peek().Kind == lexer.KwAs {
			p.lex.Next()
			aliasTok, _ := p.expect(lexer.Identifier)
			alias = aliasTok.Lexeme
		}
		items = append(items, ReturnItem{Expr: e, Alias: alias})
		if p.lex.Peek().Kind == lexer.Comma {
			p.lex.Next()
			continue
		}
		break
	}
	return items
}

// ---- expression parsing ----

func (p *Parser) parseOrExpr() Expr {
	left := p.parseXorExpr()
	for p.lex.Peek().Kind == lexer.KwOr {
		p.lex.Next()
		right := p.parseXorExpr()
		left = Logical{Op: OpOr, Operands: []Expr{left, right}}
	}
	return left
}

func (p *Parser) parseXorExpr() Expr {
	left := p.parseAndExpr()
	for p.lex.Peek().Kind == lexer.KwXor {
		p.lex.Next()
		right := p.parseAndExpr()
		left = Logical{Op: OpXor, Operands: []Expr{left, right}}
	}
	return left
}

func (p *Parser) parseAndExpr() Expr {
	left := p.parseNotExpr()
	for p.lex.Peek().Kind == lexer.KwAnd {
		p.lex.Next()
		right := p.parseNotExpr()
		left = Logical{Op: OpAnd, Operands: []Expr{left, right}}
	}
	return left
}

func (p *Parser) parseNotExpr() Expr {
	if p.lex.Peek().Kind == lexer.KwNot {
		p.lex.Next()
		operand := p.parseNotExpr()
		if ex, ok := operand.(Exists); ok {
			ex.Positive = !ex.Positive
			return ex
		}
		return Logical{Op: OpNot, Operands: []Expr{operand}}
	}
	return p.parseCmpExpr()
}

var compareOpByKind = map[lexer.Kind]CompareOp{
	lexer.Eq:  OpEq,
	lexer.Neq: OpNeq,
	lexer.Lt:  OpLt,
	lexer.Lte: OpLte,
	lexer.Gt:  OpGt,
	lexer.Gte: OpGte,
}

func (p *Parser) parseCmpExpr() Expr {
	left := p.parseAtom()

	if op, ok := compareOpByKind[p.lex.Peek().Kind]; ok {
		p.lex.Next()
		right := p.parseAtom()
		return Comparison{Op: op, Left: left, Right: right}
	}

	switch p.lex.Peek().Kind {
	case lexer.KwIn:
		p.lex.Next()
		right := p.parseAtom()
		return Comparison{Op: OpIn, Left: left, Right: right}
	case lexer.KwContains:
		p.lex.Next()
		right := p.parseAtom()
		return Comparison{Op: OpContains, Left: left, Right: right}
	case lexer.KwStarts:
		p.lex.Next()
		p.expect(lexer.KwWith)
		right := p.parseAtom()
		return Comparison{Op: OpStartsWith, Left: left, Right: right}
	case lexer.KwEnds:
		p.lex.Next()
		p.expect(lexer.KwWith)
		right := p.parseAtom()
		return Comparison{Op: OpEndsWith, Left: left, Right: right}
	case lexer.KwIs:
		p.lex.Next()
		if p.lex.Peek().Kind == lexer.KwNot {
			p.lex.Next()
			p.expect(lexer.KwNull)
			return Comparison{Op: OpIsNotNull, Left: left}
		}
		p.expect(lexer.KwNull)
		return Comparison{Op: OpIsNull, Left: left}
	}
	return left
}

func (p *Parser) parseAtom() Expr {
	tok := p.lex.Peek()
	switch tok.Kind {
	case lexer.LParen:
		// Ambiguous with a node pattern only inside MATCH/CREATE/EXISTS
		// contexts, which call parseNodePattern directly; here '(' always
		// opens a parenthesized boolean expression.
		p.lex.Next()
		e := p.parseOrExpr()
		p.expect(lexer.RParen)
		return e
	case lexer.KwNot:
		p.lex.Next()
		if p.lex.Peek().Kind == lexer.KwExists {
			p.lex.Next()
			p.expect(lexer.LParen)
			pp := p.parsePathPattern()
			p.expect(lexer.RParen)
			return Exists{Positive: false, Pattern: pp}
		}
		operand := p.parseAtom()
		return Logical{Op: OpNot, Operands: []Expr{operand}}
	case lexer.KwExists:
		p.lex.Next()
		p.expect(lexer.LParen)
		pp := p.parsePathPattern()
		p.expect(lexer.RParen)
		return Exists{Positive: true, Pattern: pp}
	case lexer.StringLiteral:
		p.lex.Next()
		return Literal{Value: tok.Lexeme, Kind: LiteralString}
	case lexer.NumberLiteral:
		p.lex.Next()
		f, _ := strconv.ParseFloat(tok.Lexeme, 64)
		return Literal{Value: f, Kind: LiteralNumber}
	case lexer.BooleanLiteral:
		p.lex.Next()
		return Literal{Value: strings.EqualFold(tok.Lexeme, "true"), Kind: LiteralBoolean}
	case lexer.KwNull:
		p.lex.Next()
		return Literal{Value: nil, Kind: LiteralNull}
	case lexer.LBracket:
		v, _ := p.tryParseLiteralValue()
		return Literal{Value: v, Kind: LiteralList}
	case lexer.Dollar:
		p.lex.Next()
		nameTok, _ := p.expect(lexer.Identifier)
		return Parameter{Name: nameTok.Lexeme}
	case lexer.Identifier:
		p.lex.Next()
		if p.lex.Peek().Kind == lexer.Dot {
			p.lex.Next()
			propTok, _ := p.expect(lexer.Identifier)
			return Property{Object: tok.Lexeme, Property: propTok.Lexeme}
		}
		return Variable{Name: tok.Lexeme}
	default:
		p.errorf(tok, "unexpected token in expression: %s %q", tok.Kind, tok.Lexeme)
		return Literal{Value: nil, Kind: LiteralNull}
	}
}
