package parser

import (
	"strconv"

	"lkr/internal/ast"
	"lkr/internal/lexer"
	"lkr/internal/token"
	"lkr/internal/value"
)

// ParseExpr parses a single expression and folds it; used both by the
// statement parser and by template-string interpolation re-tokenization
// (spec §4.1: "a sub-expression which is independently tokenized and
// parsed").
func (p *Parser) ParseExpr() ast.Expr {
	return ast.Fold(p.conditional())
}

// conditional := nullish ('?' expr ':' expr)?   -- right-assoc, lowest prec
func (p *Parser) conditional() ast.Expr {
	cond := p.nullish()
	if p.match(token.Question) {
		start := cond.Span()
		then := p.conditional()
		p.expect(token.Colon, "expected ':' in conditional expression")
		els := p.conditional()
		return &ast.Conditional{Base: joinSpan(start, els.Span()), Cond: cond, Then: then, Else: els}
	}
	return cond
}

func (p *Parser) nullish() ast.Expr {
	left := p.or()
	for p.match(token.NullishCoalesce) {
		right := p.or()
		left = &ast.Nullish{Base: joinSpan(left.Span(), right.Span()), Left: left, Right: right}
	}
	return left
}

func (p *Parser) or() ast.Expr {
	left := p.and()
	for p.match(token.OrOr) {
		right := p.and()
		left = &ast.Logical{Base: joinSpan(left.Span(), right.Span()), Op: "||", Left: left, Right: right}
	}
	return left
}

func (p *Parser) and() ast.Expr {
	left := p.cmp()
	for p.match(token.AndAnd) {
		right := p.cmp()
		left = &ast.Logical{Base: joinSpan(left.Span(), right.Span()), Op: "&&", Left: left, Right: right}
	}
	return left
}

var cmpOps = map[token.Type]string{
	token.Eq: "==", token.Ne: "!=", token.Lt: "<", token.Gt: ">",
	token.Le: "<=", token.Ge: ">=", token.KwIn: "in",
}

func (p *Parser) cmp() ast.Expr {
	left := p.rangeExpr()
	for {
		op, ok := cmpOps[p.cur().Type]
		if !ok {
			return left
		}
		p.advance()
		right := p.rangeExpr()
		left = &ast.Binary{Base: joinSpan(left.Span(), right.Span()), Op: op, Left: left, Right: right}
	}
}

// rangeExpr := addsub ( ('..'|'..=') addsub? ('..' addsub)? )?
func (p *Parser) rangeExpr() ast.Expr {
	start := p.addsub()
	if !p.check(token.Range) && !p.check(token.RangeInclusive) {
		return start
	}
	inclusive := p.check(token.RangeInclusive)
	sp := start.Span()
	p.advance()
	var end ast.Expr
	if !p.atRangeBoundary() {
		end = p.addsub()
	}
	var step ast.Expr
	if p.match(token.Range) {
		step = p.addsub()
	}
	endSpan := sp
	if step != nil {
		endSpan = step.Span()
	} else if end != nil {
		endSpan = end.Span()
	}
	return &ast.RangeExpr{Base: joinSpan(sp, endSpan), Start: start, End: end, Step: step, Inclusive: inclusive}
}

func (p *Parser) atRangeBoundary() bool {
	switch p.cur().Type {
	case token.RParen, token.RBracket, token.RBrace, token.Comma, token.Semicolon, token.LBrace, token.EOF:
		return true
	default:
		return false
	}
}

func (p *Parser) addsub() ast.Expr {
	left := p.muldiv()
	for p.check(token.Plus) || p.check(token.Minus) {
		op := string(p.advance().Type)
		right := p.muldiv()
		left = &ast.Binary{Base: joinSpan(left.Span(), right.Span()), Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) muldiv() ast.Expr {
	left := p.unary()
	for p.check(token.Star) || p.check(token.Slash) || p.check(token.Percent) {
		op := string(p.advance().Type)
		right := p.unary()
		left = &ast.Binary{Base: joinSpan(left.Span(), right.Span()), Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) unary() ast.Expr {
	if p.check(token.Bang) || p.check(token.Minus) {
		start := p.curSpan()
		op := string(p.advance().Type)
		operand := p.unary()
		return &ast.Unary{Base: joinSpan(start, operand.Span()), Op: op, Operand: operand}
	}
	return p.postfix()
}

// postfix := primary ( call | '.' field | '?.' field | '[' expr ']' | '?[' expr ']' | struct_lit )*
func (p *Parser) postfix() ast.Expr {
	expr := p.primary()
	for {
		switch {
		case p.check(token.LParen):
			expr = p.finishCall(expr)
		case p.match(token.Dot):
			name := p.expect(token.Ident, "expected field name after '.'")
			expr = &ast.Access{Base: joinSpan(expr.Span(), p.curSpan()), Object: expr, Field: name.Lexeme}
		case p.match(token.OptDot):
			name := p.expect(token.Ident, "expected field name after '?.'")
			expr = &ast.Access{Base: joinSpan(expr.Span(), p.curSpan()), Object: expr, Field: name.Lexeme, Optional: true}
		case p.match(token.LBracket):
			idx := p.ParseExpr()
			end := p.curSpan()
			p.expect(token.RBracket, "expected ']'")
			expr = &ast.Index{Base: joinSpan(expr.Span(), end), Object: expr, Key: idx}
		case p.match(token.OptBrack):
			idx := p.ParseExpr()
			end := p.curSpan()
			p.expect(token.RBracket, "expected ']'")
			expr = &ast.Index{Base: joinSpan(expr.Span(), end), Object: expr, Key: idx, Optional: true}
		case p.check(token.LBrace) && !p.noStructLit && isBareIdentExpr(expr):
			expr = p.finishStructLit(expr)
		default:
			return expr
		}
	}
}

func isBareIdentExpr(e ast.Expr) bool {
	_, ok := e.(*ast.Ident)
	return ok
}

func (p *Parser) finishCall(callee ast.Expr) ast.Expr {
	p.expect(token.LParen, "expected '('")
	var args []ast.Arg
	sawNamed := false
	for !p.check(token.RParen) {
		if len(args) > 0 {
			p.expect(token.Comma, "expected ',' between arguments")
		}
		if p.check(token.Ident) && p.peekIsColon() {
			name := p.advance().Lexeme
			p.expect(token.Colon, "expected ':' after named argument name")
			args = append(args, ast.Arg{Name: name, Value: p.conditional()})
			sawNamed = true
			continue
		}
		if sawNamed {
			p.fail("positional argument cannot follow a named argument")
		}
		args = append(args, ast.Arg{Value: p.conditional()})
	}
	end := p.curSpan()
	p.expect(token.RParen, "expected ')'")
	return &ast.Call{Base: joinSpan(callee.Span(), end), Callee: callee, Args: args}
}

// peekIsColon looks one token ahead without consuming, to disambiguate
// `name: expr` named arguments from a bare positional identifier.
func (p *Parser) peekIsColon() bool {
	save := p.pos
	p.advance()
	isColon := p.check(token.Colon)
	p.pos = save
	return isColon
}

func (p *Parser) finishStructLit(nameExpr ast.Expr) ast.Expr {
	name := nameExpr.(*ast.Ident).Name
	p.expect(token.LBrace, "expected '{'")
	var fields []ast.StructField
	for !p.check(token.RBrace) {
		if len(fields) > 0 {
			p.expect(token.Comma, "expected ',' between fields")
		}
		if p.check(token.RBrace) {
			break
		}
		fname := p.expect(token.Ident, "expected field name").Lexeme
		p.expect(token.Colon, "expected ':' after field name")
		fields = append(fields, ast.StructField{Name: fname, Value: p.conditional()})
	}
	end := p.curSpan()
	p.expect(token.RBrace, "expected '}'")
	return &ast.StructLit{Base: joinSpan(nameExpr.Span(), end), Name: name, Fields: fields}
}

func (p *Parser) primary() ast.Expr {
	start := p.curSpan()
	t := p.cur()
	switch t.Type {
	case token.Nil:
		p.advance()
		return ast.NewConst(value.Nil(), start)
	case token.Bool:
		p.advance()
		return ast.NewConst(value.Bool(t.Lexeme == "true"), start)
	case token.Int:
		p.advance()
		i, _ := strconv.ParseInt(t.Lexeme, 10, 64)
		return ast.NewConst(value.Int(i), start)
	case token.Float:
		p.advance()
		f, _ := strconv.ParseFloat(t.Lexeme, 64)
		return ast.NewConst(value.Float(f), start)
	case token.Str:
		p.advance()
		return ast.NewConst(value.Str(t.Lexeme), start)
	case token.TmplStr:
		p.advance()
		return p.parseTemplate(t.Lexeme, start)
	case token.Ident:
		p.advance()
		return &ast.Ident{Base: ast.Base{Sp: start}, Name: t.Lexeme}
	case token.LParen:
		p.advance()
		inner := p.conditional()
		p.expect(token.RParen, "expected ')'")
		return inner
	case token.LBracket:
		return p.listLit(start)
	case token.LBrace:
		return p.mapLit(start)
	case token.KwFn:
		return p.closureLit(start)
	case token.Pipe:
		return p.pipeClosureLit(start)
	case token.KwMatch:
		return p.matchExpr(start)
	case token.KwSelect:
		return p.selectExpr(start)
	default:
		p.fail("unexpected token " + string(t.Type))
		return nil
	}
}

func (p *Parser) listLit(start token.Span) ast.Expr {
	p.expect(token.LBracket, "expected '['")
	var elems []ast.Expr
	for !p.check(token.RBracket) {
		if len(elems) > 0 {
			p.expect(token.Comma, "expected ','")
		}
		if p.check(token.RBracket) {
			break
		}
		elems = append(elems, p.conditional())
	}
	end := p.curSpan()
	p.expect(token.RBracket, "expected ']'")
	return &ast.ListLit{Base: joinSpan(start, end), Elems: elems}
}

func (p *Parser) mapLit(start token.Span) ast.Expr {
	p.expect(token.LBrace, "expected '{'")
	var entries []ast.MapEntry
	for !p.check(token.RBrace) {
		if len(entries) > 0 {
			p.expect(token.Comma, "expected ','")
		}
		if p.check(token.RBrace) {
			break
		}
		var key ast.Expr
		if p.check(token.Str) {
			key = p.primary()
		} else {
			key = p.conditional()
		}
		p.expect(token.Colon, "expected ':' in map literal")
		val := p.conditional()
		entries = append(entries, ast.MapEntry{Key: key, Value: val})
	}
	end := p.curSpan()
	p.expect(token.RBrace, "expected '}'")
	return &ast.MapLit{Base: joinSpan(start, end), Entries: entries}
}

// closureLit parses `fn params => expr` or `fn(params) { block }`.
func (p *Parser) closureLit(start token.Span) ast.Expr {
	p.expect(token.KwFn, "expected 'fn'")
	pos, named := p.paramList()
	cl := &ast.Closure{PosParams: pos, NamedParams: named}
	if p.match(token.Arrow) {
		body := p.ParseExpr()
		cl.Body = &ast.ReturnStmt{Value: body}
		cl.IsExprBody = true
	} else {
		cl.Body = p.block()
	}
	cl.Base = joinSpan(start, p.curSpan())
	return cl
}

// pipeClosureLit parses `|params| expr`.
func (p *Parser) pipeClosureLit(start token.Span) ast.Expr {
	p.expect(token.Pipe, "expected '|'")
	var pos []string
	for !p.check(token.Pipe) {
		if len(pos) > 0 {
			p.expect(token.Comma, "expected ','")
		}
		pos = append(pos, p.expect(token.Ident, "expected parameter name").Lexeme)
	}
	p.expect(token.Pipe, "expected closing '|'")
	body := p.ParseExpr()
	return &ast.Closure{
		Base:      joinSpan(start, body.Span()),
		PosParams: pos,
		Body:      &ast.ReturnStmt{Value: body},
		IsExprBody: true,
	}
}

func (p *Parser) paramList() ([]string, []ast.NamedParam) {
	p.expect(token.LParen, "expected '('")
	var pos []string
	var named []ast.NamedParam
	for !p.check(token.RParen) {
		if len(pos)+len(named) > 0 {
			p.expect(token.Comma, "expected ','")
		}
		if p.check(token.RParen) {
			break
		}
		name := p.expect(token.Ident, "expected parameter name").Lexeme
		if p.match(token.Colon) {
			typeName := p.expect(token.Ident, "expected type name").Lexeme
			optional := p.match(token.Question)
			var def ast.Expr
			if p.match(token.Assign) {
				def = p.conditional()
			}
			named = append(named, ast.NamedParam{Name: name, TypeName: typeName, Optional: optional, Default: def})
			continue
		}
		pos = append(pos, name)
	}
	p.expect(token.RParen, "expected ')'")
	return pos, named
}

// parseTemplate independently tokenizes and parses each ${...} segment
// (spec §4.1), tracking nested template depth per SPEC_FULL §12.2.
func (p *Parser) parseTemplate(raw string, sp token.Span) ast.Expr {
	var parts []ast.TemplatePart
	i := 0
	var lit []byte
	for i < len(raw) {
		if raw[i] == '$' && i+1 < len(raw) && raw[i+1] == '{' {
			if len(lit) > 0 {
				parts = append(parts, ast.TemplatePart{Literal: string(lit)})
				lit = nil
			}
			depth := 1
			j := i + 2
			for j < len(raw) && depth > 0 {
				switch raw[j] {
				case '{':
					depth++
				case '}':
					depth--
				}
				if depth > 0 {
					j++
				}
			}
			sub := raw[i+2 : j]
			subExpr := parseSubExpr(sub)
			parts = append(parts, ast.TemplatePart{Expr: subExpr})
			i = j + 1
			continue
		}
		lit = append(lit, raw[i])
		i++
	}
	if len(lit) > 0 {
		parts = append(parts, ast.TemplatePart{Literal: string(lit)})
	}
	return &ast.Template{Base: ast.Base{Sp: sp}, Parts: parts}
}

// parseSubExpr independently tokenizes and parses a `${...}` interpolation
// body, per spec §4.1's template grammar.
func parseSubExpr(src string) ast.Expr {
	stream := lexer.New(src).Scan()
	sub := New(stream, src)
	return sub.ParseExpr()
}
