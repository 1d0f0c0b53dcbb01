// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

// Package parser is a recursive-descent parser turning a Brane DSL token
// stream into a list of untyped ast.Statement values, per spec.md §4.1.
package parser

import (
	"fmt"

	"github.com/brane-org/brane/internal/diagnostics"
	"github.com/brane-org/brane/internal/dsl/ast"
	"github.com/brane-org/brane/internal/dsl/lexer"
	"github.com/brane-org/brane/internal/dsl/token"
)

// ParseError is returned for an unexpected token encountered mid-production.
type ParseError struct {
	Got     token.Token
	Want    string
	Subject diagnostics.Range
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: unexpected token %s, expected %s", e.Subject, e.Got, e.Want)
}

// EofError is returned when the token stream ends inside a production.
type EofError struct {
	Subject diagnostics.Range
}

func (e *EofError) Error() string {
	return fmt.Sprintf("%s: unexpected end of file", e.Subject)
}

// Parser consumes a token stream produced by lexer.Lexer.
type Parser struct {
	filename string
	toks     []token.Token
	pos      int

	warnings diagnostics.Diagnostics
}

// Parse lexes and parses src, returning the top-level statements, any
// warnings (e.g. deprecated `on` usage), and the first fatal parse error
// encountered, if any.
func Parse(filename, src string) ([]ast.Statement, diagnostics.Diagnostics, error) {
	l := lexer.New(filename, src)
	toks, lexErrs := l.Tokenize()
	if len(lexErrs) > 0 {
		return nil, nil, lexErrs[0]
	}
	p := &Parser{filename: filename, toks: toks}
	stmts, err := p.parseProgram()
	return stmts, p.warnings, err
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) rangeOf(start token.Token) diagnostics.Range {
	end := p.toks[p.pos]
	if p.pos > 0 {
		end = p.toks[p.pos-1]
	}
	return diagnostics.Range{
		Filename:  p.filename,
		StartLine: start.Pos.Line, StartCol: start.Pos.Column,
		EndLine: end.Pos.Line, EndCol: end.Pos.Column + len(end.Literal),
	}
}

func (p *Parser) here() diagnostics.Range {
	t := p.cur()
	return diagnostics.Range{Filename: p.filename, StartLine: t.Pos.Line, StartCol: t.Pos.Column, EndLine: t.Pos.Line, EndCol: t.Pos.Column}
}

func (p *Parser) expect(tt token.Type, want string) (token.Token, error) {
	if p.cur().Type == token.EOF {
		return token.Token{}, &EofError{Subject: p.here()}
	}
	if p.cur().Type != tt {
		return token.Token{}, &ParseError{Got: p.cur(), Want: want, Subject: p.here()}
	}
	return p.advance(), nil
}

func (p *Parser) parseProgram() ([]ast.Statement, error) {
	var stmts []ast.Statement
	for p.cur().Type != token.EOF {
		s, err := p.parseStatement()
		if err != nil {
			return stmts, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

func (p *Parser) parseBlock() (*ast.Block, error) {
	start := p.cur()
	if _, err := p.expect(token.LBrace, "'{'"); err != nil {
		return nil, err
	}
	var stmts []ast.Statement
	for p.cur().Type != token.RBrace {
		if p.cur().Type == token.EOF {
			return nil, &EofError{Subject: p.here()}
		}
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	if _, err := p.expect(token.RBrace, "'}'"); err != nil {
		return nil, err
	}
	return &ast.Block{Base: ast.NewBase(p.rangeOf(start)), Stmts: stmts}, nil
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	start := p.cur()
	switch start.Type {
	case token.LBrace:
		return p.parseBlock()
	case token.KwImport:
		return p.parseImport()
	case token.KwFunc:
		return p.parseFuncDef()
	case token.KwClass:
		return p.parseClassDef()
	case token.KwReturn:
		return p.parseReturn()
	case token.KwIf:
		return p.parseIf()
	case token.KwFor:
		return p.parseFor()
	case token.KwWhile:
		return p.parseWhile()
	case token.KwOn:
		return p.parseOn()
	case token.KwParallel:
		return p.parseParallel(start, "")
	case token.KwLet:
		return p.parseLetOrParallel()
	default:
		return p.parseExprOrAssignStatement()
	}
}

func (p *Parser) parseImport() (ast.Statement, error) {
	start := p.advance() // 'import'
	name, err := p.expect(token.Ident, "package name")
	if err != nil {
		return nil, err
	}
	version := ""
	if p.cur().Type == token.Semver {
		version = p.advance().Literal
	}
	if _, err := p.expect(token.Semicolon, "';'"); err != nil {
		return nil, err
	}
	return &ast.Import{Base: ast.NewBase(p.rangeOf(start)), Name: name.Literal, Version: version}, nil
}

func (p *Parser) parseTypeExpr() (ast.TypeExpr, error) {
	if p.cur().Type == token.LBracket {
		p.advance()
		elem, err := p.parseTypeExpr()
		if err != nil {
			return ast.TypeExpr{}, err
		}
		if _, err := p.expect(token.RBracket, "']'"); err != nil {
			return ast.TypeExpr{}, err
		}
		return ast.TypeExpr{Name: "Array", Elem: &elem}, nil
	}
	name, err := p.expect(token.Ident, "type name")
	if err != nil {
		return ast.TypeExpr{}, err
	}
	return ast.TypeExpr{Name: name.Literal}, nil
}

func (p *Parser) parseFuncDef() (ast.Statement, error) {
	start := p.advance() // 'func'
	name, err := p.expect(token.Ident, "function name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LParen, "'('"); err != nil {
		return nil, err
	}
	var params []ast.Param
	for p.cur().Type != token.RParen {
		pname, err := p.expect(token.Ident, "parameter name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Colon, "':'"); err != nil {
			return nil, err
		}
		ptype, err := p.parseTypeExpr()
		if err != nil {
			return nil, err
		}
		params = append(params, ast.Param{Name: pname.Literal, Type: ptype})
		if p.cur().Type == token.Comma {
			p.advance()
		}
	}
	if _, err := p.expect(token.RParen, "')'"); err != nil {
		return nil, err
	}
	retType := ast.TypeExpr{Name: "Void"}
	if p.cur().Type == token.Colon {
		p.advance()
		retType, err = p.parseTypeExpr()
		if err != nil {
			return nil, err
		}
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FuncDef{Base: ast.NewBase(p.rangeOf(start)), Name: name.Literal, Params: params, ReturnType: retType, Body: body}, nil
}

func (p *Parser) parseClassDef() (ast.Statement, error) {
	start := p.advance() // 'class'
	name, err := p.expect(token.Ident, "class name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace, "'{'"); err != nil {
		return nil, err
	}
	var props []ast.PropertyDef
	var methods []*ast.FuncDef
	for p.cur().Type != token.RBrace {
		if p.cur().Type == token.EOF {
			return nil, &EofError{Subject: p.here()}
		}
		if p.cur().Type == token.KwFunc {
			m, err := p.parseFuncDef()
			if err != nil {
				return nil, err
			}
			methods = append(methods, m.(*ast.FuncDef))
			continue
		}
		pname, err := p.expect(token.Ident, "property name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Colon, "':'"); err != nil {
			return nil, err
		}
		ptype, err := p.parseTypeExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Semicolon, "';'"); err != nil {
			return nil, err
		}
		props = append(props, ast.PropertyDef{Name: pname.Literal, Type: ptype})
	}
	if _, err := p.expect(token.RBrace, "'}'"); err != nil {
		return nil, err
	}
	return &ast.ClassDef{Base: ast.NewBase(p.rangeOf(start)), Name: name.Literal, Props: props, Methods: methods}, nil
}

func (p *Parser) parseReturn() (ast.Statement, error) {
	start := p.advance() // 'return'
	if p.cur().Type == token.Semicolon {
		p.advance()
		return &ast.Return{Base: ast.NewBase(p.rangeOf(start))}, nil
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semicolon, "';'"); err != nil {
		return nil, err
	}
	return &ast.Return{Base: ast.NewBase(p.rangeOf(start)), Value: val}, nil
}

func (p *Parser) parseIf() (ast.Statement, error) {
	start := p.advance() // 'if'
	if _, err := p.expect(token.LParen, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen, "')'"); err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var els *ast.Block
	if p.cur().Type == token.KwElse {
		p.advance()
		if p.cur().Type == token.KwIf {
			elseIf, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			els = &ast.Block{Stmts: []ast.Statement{elseIf}}
		} else {
			els, err = p.parseBlock()
			if err != nil {
				return nil, err
			}
		}
	}
	return &ast.If{Base: ast.NewBase(p.rangeOf(start)), Cond: cond, Then: then, Else: els}, nil
}

// parseFor de-sugars nothing itself; the compiler (spec.md §4.4) lowers
// `for` to `init; while (cond) { body; incr }`.
func (p *Parser) parseFor() (ast.Statement, error) {
	start := p.advance() // 'for'
	if _, err := p.expect(token.LParen, "'('"); err != nil {
		return nil, err
	}
	var init ast.Statement
	var err error
	if p.cur().Type != token.Semicolon {
		init, err = p.parseSimpleStatementNoSemi()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.Semicolon, "';'"); err != nil {
		return nil, err
	}
	var cond ast.Expression
	if p.cur().Type != token.Semicolon {
		cond, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.Semicolon, "';'"); err != nil {
		return nil, err
	}
	var incr ast.Statement
	if p.cur().Type != token.RParen {
		incr, err = p.parseSimpleStatementNoSemi()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.RParen, "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.For{Base: ast.NewBase(p.rangeOf(start)), Init: init, Cond: cond, Incr: incr, Body: body}, nil
}

// parseSimpleStatementNoSemi parses a `let` or assignment/expression
// statement without consuming a trailing ';', for use inside `for(...)`.
func (p *Parser) parseSimpleStatementNoSemi() (ast.Statement, error) {
	start := p.cur()
	if start.Type == token.KwLet {
		p.advance()
		name, err := p.expect(token.Ident, "variable name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.ColonAssign, "':='"); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Let{Base: ast.NewBase(p.rangeOf(start)), Name: name.Literal, Value: val}, nil
	}
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.cur().Type == token.Assign {
		p.advance()
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Assign{Base: ast.NewBase(p.rangeOf(start)), Target: x, Value: val}, nil
	}
	return &ast.ExprStmt{Base: ast.NewBase(p.rangeOf(start)), X: x}, nil
}

func (p *Parser) parseWhile() (ast.Statement, error) {
	start := p.advance() // 'while'
	if _, err := p.expect(token.LParen, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen, "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.While{Base: ast.NewBase(p.rangeOf(start)), Cond: cond, Body: body}, nil
}

// parseOn parses the deprecated `on LOCATION { ... }` statement. Per
// spec.md §9 Open Question 1, the location has no effect at the IR level
// (the compiler lowers the body as ordinary statements), but a Warning
// diagnostic is emitted here during parsing.
func (p *Parser) parseOn() (ast.Statement, error) {
	start := p.advance() // 'on'
	loc, err := p.expect(token.Ident, "location name")
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	rng := p.rangeOf(start)
	p.warnings = p.warnings.Append(diagnostics.Diagnostic{
		Severity: diagnostics.Warning,
		Kind:     "DeprecatedOnStatement",
		Summary:  "`on` statements are deprecated and have no effect",
		Subject:  rng,
	})
	return &ast.On{Base: ast.NewBase(rng), Location: loc.Literal, Body: body}, nil
}

func (p *Parser) parseParallel(start token.Token, resultName string) (ast.Statement, error) {
	p.advance() // 'parallel'
	strategy := ""
	if p.cur().Type == token.LBracket {
		p.advance()
		name, err := p.expect(token.Ident, "merge strategy name")
		if err != nil {
			return nil, err
		}
		strategy = name.Literal
		if _, err := p.expect(token.RBracket, "']'"); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.LBrace, "'{'"); err != nil {
		return nil, err
	}
	var branches []*ast.Block
	for p.cur().Type != token.RBrace {
		if p.cur().Type == token.EOF {
			return nil, &EofError{Subject: p.here()}
		}
		b, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		branches = append(branches, b)
		if p.cur().Type == token.Comma {
			p.advance()
		}
	}
	if _, err := p.expect(token.RBrace, "'}'"); err != nil {
		return nil, err
	}
	return &ast.Parallel{Base: ast.NewBase(p.rangeOf(start)), ResultName: resultName, Strategy: strategy, Branches: branches}, nil
}

func (p *Parser) parseLetOrParallel() (ast.Statement, error) {
	start := p.advance() // 'let'
	name, err := p.expect(token.Ident, "variable name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ColonAssign, "':='"); err != nil {
		return nil, err
	}
	if p.cur().Type == token.KwParallel {
		stmt, err := p.parseParallel(start, name.Literal)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Semicolon, "';'"); err != nil {
			return nil, err
		}
		return stmt, nil
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semicolon, "';'"); err != nil {
		return nil, err
	}
	return &ast.Let{Base: ast.NewBase(p.rangeOf(start)), Name: name.Literal, Value: val}, nil
}

func (p *Parser) parseExprOrAssignStatement() (ast.Statement, error) {
	start := p.cur()
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.cur().Type == token.Assign {
		p.advance()
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Semicolon, "';'"); err != nil {
			return nil, err
		}
		return &ast.Assign{Base: ast.NewBase(p.rangeOf(start)), Target: x, Value: val}, nil
	}
	if _, err := p.expect(token.Semicolon, "';'"); err != nil {
		return nil, err
	}
	return &ast.ExprStmt{Base: ast.NewBase(p.rangeOf(start)), X: x}, nil
}

// ---- Expressions, by precedence (low to high):
// || && equality relational additive multiplicative unary postfix primary

func (p *Parser) parseExpr() (ast.Expression, error) { return p.parseOr() }

func (p *Parser) parseOr() (ast.Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == token.Or {
		start := p.cur()
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Base: ast.NewBase(p.rangeOf(start)), Op: ast.BinOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expression, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == token.And {
		start := p.cur()
		p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Base: ast.NewBase(p.rangeOf(start)), Op: ast.BinAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseEquality() (ast.Expression, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == token.Eq || p.cur().Type == token.Ne {
		opTok := p.advance()
		op := ast.BinEq
		if opTok.Type == token.Ne {
			op = ast.BinNe
		}
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Base: ast.NewBase(p.rangeOf(opTok)), Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseRelational() (ast.Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinaryOp
		switch p.cur().Type {
		case token.Lt:
			op = ast.BinLt
		case token.Le:
			op = ast.BinLe
		case token.Gt:
			op = ast.BinGt
		case token.Ge:
			op = ast.BinGe
		default:
			return left, nil
		}
		opTok := p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Base: ast.NewBase(p.rangeOf(opTok)), Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseAdditive() (ast.Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == token.Plus || p.cur().Type == token.Minus {
		opTok := p.advance()
		op := ast.BinAdd
		if opTok.Type == token.Minus {
			op = ast.BinSub
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Base: ast.NewBase(p.rangeOf(opTok)), Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinaryOp
		switch p.cur().Type {
		case token.Star:
			op = ast.BinMul
		case token.Slash:
			op = ast.BinDiv
		case token.Percent:
			op = ast.BinMod
		default:
			return left, nil
		}
		opTok := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Base: ast.NewBase(p.rangeOf(opTok)), Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() (ast.Expression, error) {
	switch p.cur().Type {
	case token.Not:
		start := p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Base: ast.NewBase(p.rangeOf(start)), Op: ast.UnaryNot, X: x}, nil
	case token.Minus:
		start := p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Base: ast.NewBase(p.rangeOf(start)), Op: ast.UnaryNeg, X: x}, nil
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() (ast.Expression, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		start := p.cur()
		switch p.cur().Type {
		case token.Dot:
			p.advance()
			field, err := p.expect(token.Ident, "field name")
			if err != nil {
				return nil, err
			}
			x = &ast.Proj{Base: ast.NewBase(p.rangeOf(start)), X: x, Field: field.Literal}
		case token.LBracket:
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBracket, "']'"); err != nil {
				return nil, err
			}
			x = &ast.Index{Base: ast.NewBase(p.rangeOf(start)), X: x, Index: idx}
		case token.LParen:
			p.advance()
			var args []ast.Expression
			for p.cur().Type != token.RParen {
				a, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.cur().Type == token.Comma {
					p.advance()
				}
			}
			if _, err := p.expect(token.RParen, "')'"); err != nil {
				return nil, err
			}
			x = &ast.Call{Base: ast.NewBase(p.rangeOf(start)), Callee: x, Args: args}
		default:
			return x, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expression, error) {
	start := p.cur()
	switch start.Type {
	case token.Integer:
		p.advance()
		var v int64
		fmt.Sscanf(start.Literal, "%d", &v)
		return &ast.IntegerLit{Base: ast.NewBase(p.rangeOf(start)), Value: v}, nil
	case token.Real:
		p.advance()
		var v float64
		fmt.Sscanf(start.Literal, "%g", &v)
		return &ast.RealLit{Base: ast.NewBase(p.rangeOf(start)), Value: v}, nil
	case token.String:
		p.advance()
		return &ast.StringLit{Base: ast.NewBase(p.rangeOf(start)), Value: start.Literal}, nil
	case token.Semver:
		p.advance()
		return &ast.SemverLit{Base: ast.NewBase(p.rangeOf(start)), Value: start.Literal}, nil
	case token.True:
		p.advance()
		return &ast.BoolLit{Base: ast.NewBase(p.rangeOf(start)), Value: true}, nil
	case token.False:
		p.advance()
		return &ast.BoolLit{Base: ast.NewBase(p.rangeOf(start)), Value: false}, nil
	case token.Null:
		p.advance()
		return &ast.NullLit{Base: ast.NewBase(p.rangeOf(start))}, nil
	case token.Ident:
		p.advance()
		return &ast.Ident{Base: ast.NewBase(p.rangeOf(start)), Name: start.Literal}, nil
	case token.LParen:
		p.advance()
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen, "')'"); err != nil {
			return nil, err
		}
		return x, nil
	case token.LBracket:
		p.advance()
		var elems []ast.Expression
		for p.cur().Type != token.RBracket {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if p.cur().Type == token.Comma {
				p.advance()
			}
		}
		if _, err := p.expect(token.RBracket, "']'"); err != nil {
			return nil, err
		}
		return &ast.ArrayLit{Base: ast.NewBase(p.rangeOf(start)), Elems: elems}, nil
	case token.KwNew:
		p.advance()
		name, err := p.expect(token.Ident, "class name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.LBrace, "'{'"); err != nil {
			return nil, err
		}
		var fields []ast.FieldInit
		for p.cur().Type != token.RBrace {
			fname, err := p.expect(token.Ident, "field name")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.Colon, "':'"); err != nil {
				return nil, err
			}
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			fields = append(fields, ast.FieldInit{Name: fname.Literal, Value: val})
			if p.cur().Type == token.Comma {
				p.advance()
			}
		}
		if _, err := p.expect(token.RBrace, "'}'"); err != nil {
			return nil, err
		}
		return &ast.New{Base: ast.NewBase(p.rangeOf(start)), ClassName: name.Literal, Fields: fields}, nil
	case token.EOF:
		return nil, &EofError{Subject: p.here()}
	default:
		return nil, &ParseError{Got: start, Want: "expression", Subject: p.here()}
	}
}
