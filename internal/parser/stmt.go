package parser

import (
	"strconv"

	"lkr/internal/ast"
	"lkr/internal/token"
	"lkr/internal/value"
)

// statement parses one statement, folding any expressions it contains.
func (p *Parser) statement() ast.Stmt {
	switch p.cur().Type {
	case token.KwLet:
		return p.letStmt()
	case token.KwIf:
		return p.ifStmt()
	case token.KwFor:
		return p.forRangeStmt()
	case token.KwBreak:
		start := p.curSpan()
		p.advance()
		p.match(token.Semicolon)
		return &ast.BreakStmt{Base: ast.Base{Sp: start}}
	case token.KwContinue:
		start := p.curSpan()
		p.advance()
		p.match(token.Semicolon)
		return &ast.ContinueStmt{Base: ast.Base{Sp: start}}
	case token.KwReturn:
		return p.returnStmt()
	case token.KwFn:
		return p.fnDecl()
	case token.KwStruct:
		return p.structDecl()
	case token.KwTrait:
		return p.traitDecl()
	case token.KwImport, token.KwFrom:
		return p.importStmt()
	case token.LBrace:
		return p.block()
	default:
		return p.exprOrAssignStmt()
	}
}

func (p *Parser) letStmt() ast.Stmt {
	start := p.curSpan()
	p.expect(token.KwLet, "expected 'let'")
	pat := p.bindingPattern()
	p.expect(token.Assign, "expected '=' in let binding")
	val := ast.Fold(p.conditional())
	end := val.Span()
	p.match(token.Semicolon)
	return &ast.LetStmt{Base: joinSpan(start, end), Pattern: pat, Value: val}
}

func (p *Parser) ifStmt() ast.Stmt {
	start := p.curSpan()
	p.expect(token.KwIf, "expected 'if'")
	cond := ast.Fold(p.headExpr())
	then := p.block()
	var els ast.Stmt
	if p.match(token.KwElse) {
		if p.check(token.KwIf) {
			els = p.ifStmt()
		} else {
			els = p.block()
		}
	}
	end := p.curSpan()
	if els != nil {
		end = els.Span()
	} else {
		end = then.Span()
	}
	return &ast.IfStmt{Base: joinSpan(start, end), Cond: cond, Then: then, Else: els}
}

// forRangeStmt := 'for' ident 'in' (range-expr | expr) block
func (p *Parser) forRangeStmt() ast.Stmt {
	start := p.curSpan()
	p.expect(token.KwFor, "expected 'for'")
	induction := p.expect(token.Ident, "expected induction variable name").Lexeme
	p.expect(token.KwIn, "expected 'in'")
	iterable := ast.Fold(p.headExpr())
	body := p.block()
	fr := &ast.ForRange{Base: joinSpan(start, body.Span()), Induction: induction, Body: body}
	if rng, ok := iterable.(*ast.RangeExpr); ok {
		fr.Iterable = rng
	} else {
		fr.Source = iterable
	}
	return fr
}

func (p *Parser) returnStmt() ast.Stmt {
	start := p.curSpan()
	p.expect(token.KwReturn, "expected 'return'")
	var val ast.Expr
	end := start
	if !p.check(token.Semicolon) && !p.check(token.RBrace) && !p.atEnd() {
		val = ast.Fold(p.conditional())
		end = val.Span()
	}
	p.match(token.Semicolon)
	return &ast.ReturnStmt{Base: joinSpan(start, end), Value: val}
}

// exprOrAssignStmt handles both bare expression statements and
// `target = value` assignments (target must be an Ident, Access or Index).
func (p *Parser) exprOrAssignStmt() ast.Stmt {
	start := p.curSpan()
	expr := p.conditional()
	if p.match(token.Assign) {
		val := ast.Fold(p.conditional())
		p.match(token.Semicolon)
		return &ast.AssignStmt{Base: joinSpan(start, val.Span()), Target: expr, Value: val}
	}
	folded := ast.Fold(expr)
	p.match(token.Semicolon)
	return &ast.ExprStmt{Base: joinSpan(start, folded.Span()), X: folded}
}

// ---- declarations ----

// fnDecl parses `fn name(params) { block }`, or — inside a trait body — a
// bare signature `fn name(params);` with no default implementation.
func (p *Parser) fnDecl() ast.Stmt {
	start := p.curSpan()
	p.expect(token.KwFn, "expected 'fn'")
	name := p.expect(token.Ident, "expected function name").Lexeme
	pos, named := p.paramList()
	var body ast.Stmt
	end := p.curSpan()
	if p.check(token.LBrace) {
		b := p.block()
		body = b
		end = b.Span()
	} else {
		p.match(token.Semicolon)
	}
	cl := &ast.Closure{Base: joinSpan(start, end), PosParams: pos, NamedParams: named, Body: body}
	return &ast.FnDecl{Base: cl.Base, Name: name, Closure: cl}
}

func (p *Parser) structDecl() ast.Stmt {
	start := p.curSpan()
	p.expect(token.KwStruct, "expected 'struct'")
	name := p.expect(token.Ident, "expected struct name").Lexeme
	p.expect(token.LBrace, "expected '{'")
	var fields []ast.StructFieldDecl
	for !p.check(token.RBrace) {
		if len(fields) > 0 {
			p.expect(token.Comma, "expected ','")
		}
		if p.check(token.RBrace) {
			break
		}
		fname := p.expect(token.Ident, "expected field name").Lexeme
		p.expect(token.Colon, "expected ':' after field name")
		typeName := p.expect(token.Ident, "expected type name").Lexeme
		optional := p.match(token.Question)
		fields = append(fields, ast.StructFieldDecl{Name: fname, TypeName: typeName, Optional: optional})
	}
	end := p.curSpan()
	p.expect(token.RBrace, "expected '}'")
	return &ast.StructDecl{Base: joinSpan(start, end), Name: name, Fields: fields}
}

func (p *Parser) traitDecl() ast.Stmt {
	start := p.curSpan()
	p.expect(token.KwTrait, "expected 'trait'")
	name := p.expect(token.Ident, "expected trait name").Lexeme
	p.expect(token.LBrace, "expected '{'")
	var methods []ast.FnDecl
	for !p.check(token.RBrace) && !p.atEnd() {
		m := p.fnDecl().(*ast.FnDecl)
		methods = append(methods, *m)
	}
	end := p.curSpan()
	p.expect(token.RBrace, "expected '}'")
	return &ast.TraitDecl{Base: joinSpan(start, end), Name: name, Methods: methods}
}

// importStmt covers both `import "path" as alias` and
// `from "path" import a, b`.
func (p *Parser) importStmt() ast.Stmt {
	start := p.curSpan()
	if p.match(token.KwFrom) {
		path := p.expect(token.Str, "expected import path").Lexeme
		p.expect(token.KwImport, "expected 'import'")
		var names []string
		names = append(names, p.expect(token.Ident, "expected imported name").Lexeme)
		for p.match(token.Comma) {
			names = append(names, p.expect(token.Ident, "expected imported name").Lexeme)
		}
		end := p.curSpan()
		p.match(token.Semicolon)
		return &ast.ImportStmt{Base: joinSpan(start, end), Path: path, Names: names}
	}
	p.expect(token.KwImport, "expected 'import'")
	path := p.expect(token.Str, "expected import path").Lexeme
	alias := ""
	if p.match(token.KwAs) {
		alias = p.expect(token.Ident, "expected import alias").Lexeme
	}
	end := p.curSpan()
	p.match(token.Semicolon)
	return &ast.ImportStmt{Base: joinSpan(start, end), Path: path, Alias: alias}
}

// ---- match ----

func (p *Parser) matchExpr(start token.Span) ast.Expr {
	p.expect(token.KwMatch, "expected 'match'")
	discriminant := ast.Fold(p.headExpr())
	p.expect(token.LBrace, "expected '{'")
	var arms []ast.MatchArm
	for !p.check(token.RBrace) {
		if len(arms) > 0 {
			p.match(token.Comma)
		}
		if p.check(token.RBrace) {
			break
		}
		pat := p.patternTop()
		var guard ast.Expr
		if p.match(token.KwIf) {
			guard = ast.Fold(p.conditional())
		}
		p.expect(token.Arrow, "expected '=>' in match arm")
		body := ast.Fold(p.conditional())
		arms = append(arms, ast.MatchArm{Pattern: pat, Guard: guard, Body: body})
	}
	end := p.curSpan()
	p.expect(token.RBrace, "expected '}'")
	return &ast.Match{Base: joinSpan(start, end), Discriminant: discriminant, Arms: arms}
}

// ---- select ----

// selectExpr covers `select { case ch <- v => body, case x = <-ch => body,
// default => body }` (spec's cooperative-suspension construct).
func (p *Parser) selectExpr(start token.Span) ast.Expr {
	p.expect(token.KwSelect, "expected 'select'")
	p.expect(token.LBrace, "expected '{'")
	var cases []ast.SelectCase
	for !p.check(token.RBrace) {
		if len(cases) > 0 {
			p.match(token.Comma)
		}
		if p.check(token.RBrace) {
			break
		}
		cases = append(cases, p.selectCase())
	}
	end := p.curSpan()
	p.expect(token.RBrace, "expected '}'")
	return &ast.Select{Base: joinSpan(start, end), Cases: cases}
}

func (p *Parser) selectCase() ast.SelectCase {
	if p.match(token.KwDefault) {
		p.expect(token.Arrow, "expected '=>' after default")
		return ast.SelectCase{IsDefault: true, Body: p.selectBody()}
	}
	p.expect(token.KwCase, "expected 'case' or 'default'")
	if p.check(token.Ident) && p.peekIsAssignRecv() {
		bind := p.advance().Lexeme
		p.expect(token.Assign, "expected '='")
		p.expect(token.LeftArrow, "expected '<-'")
		ch := ast.Fold(p.conditional())
		p.expect(token.Arrow, "expected '=>'")
		return ast.SelectCase{IsSend: false, Channel: ch, Bind: bind, Body: p.selectBody()}
	}
	ch := ast.Fold(p.conditional())
	p.expect(token.LeftArrow, "expected '<-'")
	val := ast.Fold(p.conditional())
	p.expect(token.Arrow, "expected '=>'")
	return ast.SelectCase{IsSend: true, Channel: ch, Value: val, Body: p.selectBody()}
}

func (p *Parser) selectBody() ast.Stmt {
	if p.check(token.LBrace) {
		return p.block()
	}
	start := p.curSpan()
	e := ast.Fold(p.conditional())
	return &ast.ExprStmt{Base: joinSpan(start, e.Span()), X: e}
}

// peekIsAssignRecv looks ahead for `ident = <- ...` to disambiguate a
// receive-bind case from a send case.
func (p *Parser) peekIsAssignRecv() bool {
	save := p.pos
	p.advance()
	ok := p.check(token.Assign)
	p.pos = save
	return ok
}

// ---- patterns ----

// bindingPattern parses the pattern grammar used by `let` (no guards, no
// alternation: those are match-only refinements).
func (p *Parser) bindingPattern() ast.Pattern {
	return p.patternAtom()
}

// patternTop parses a full match-arm pattern (alternation); the arm's
// `if` guard is parsed by the caller, not here.
func (p *Parser) patternTop() ast.Pattern {
	first := p.patternOr()
	return first
}

func (p *Parser) patternOr() ast.Pattern {
	first := p.patternAtom()
	if !p.check(token.Pipe) {
		return first
	}
	alts := []ast.Pattern{first}
	for p.match(token.Pipe) {
		alts = append(alts, p.patternAtom())
	}
	return ast.OrPattern{Alts: alts}
}

func (p *Parser) patternAtom() ast.Pattern {
	switch p.cur().Type {
	case token.Ident:
		name := p.advance().Lexeme
		if name == "_" {
			return ast.WildcardPattern{}
		}
		return ast.VariablePattern{Name: name}
	case token.Nil, token.Bool, token.Int, token.Float, token.Str:
		sp := p.curSpan()
		v := p.parseLiteralValue()
		if p.check(token.Range) || p.check(token.RangeInclusive) {
			inclusive := p.check(token.RangeInclusive)
			p.advance()
			endSp := p.curSpan()
			endVal := p.parseLiteralValue()
			return ast.RangePattern{
				Start:     ast.NewConst(v, sp),
				End:       ast.NewConst(endVal, endSp),
				Inclusive: inclusive,
			}
		}
		return ast.LiteralPattern{Value: v}
	case token.LBracket:
		return p.listPattern()
	case token.LBrace:
		return p.mapPattern()
	default:
		p.fail("expected pattern")
		return nil
	}
}

func (p *Parser) parseLiteralValue() value.Val {
	t := p.advance()
	switch t.Type {
	case token.Nil:
		return value.Nil()
	case token.Bool:
		return value.Bool(t.Lexeme == "true")
	case token.Int:
		i, _ := strconv.ParseInt(t.Lexeme, 10, 64)
		return value.Int(i)
	case token.Float:
		f, _ := strconv.ParseFloat(t.Lexeme, 64)
		return value.Float(f)
	case token.Str:
		return value.Str(t.Lexeme)
	default:
		p.fail("expected literal")
		return value.Nil()
	}
}

func (p *Parser) listPattern() ast.Pattern {
	p.expect(token.LBracket, "expected '['")
	var elems []ast.Pattern
	rest := ""
	for !p.check(token.RBracket) {
		if len(elems) > 0 {
			p.expect(token.Comma, "expected ','")
		}
		if p.check(token.RBracket) {
			break
		}
		if p.match(token.Range) {
			rest = p.expect(token.Ident, "expected rest-binding name").Lexeme
			break
		}
		elems = append(elems, p.patternAtom())
	}
	p.expect(token.RBracket, "expected ']'")
	return ast.ListPattern{Elems: elems, Rest: rest}
}

func (p *Parser) mapPattern() ast.Pattern {
	p.expect(token.LBrace, "expected '{'")
	var entries []ast.MapEntryPattern
	rest := ""
	for !p.check(token.RBrace) {
		if len(entries) > 0 {
			p.expect(token.Comma, "expected ','")
		}
		if p.check(token.RBrace) {
			break
		}
		if p.match(token.Range) {
			rest = p.expect(token.Ident, "expected rest-binding name").Lexeme
			break
		}
		key := p.expect(token.Ident, "expected map-pattern key").Lexeme
		p.expect(token.Colon, "expected ':'")
		entries = append(entries, ast.MapEntryPattern{Key: key, Pattern: p.patternAtom()})
	}
	p.expect(token.RBrace, "expected '}'")
	return ast.MapPattern{Entries: entries, Rest: rest}
}
