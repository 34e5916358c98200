package parser

import (
	"strconv"

	"github.com/xplshn/mcc/pkg/ast"
	"github.com/xplshn/mcc/pkg/config"
	"github.com/xplshn/mcc/pkg/diag"
	"github.com/xplshn/mcc/pkg/token"
	"github.com/xplshn/mcc/pkg/types"
)

// Parser holds the state for the parsing process
type Parser struct {
	tokens    []token.Token
	pos       int
	current   token.Token
	previous  token.Token
	cfg       *config.Config
	diags     diag.List
	panicking bool
}

// NewParser creates and initializes a new Parser from a token stream.
// Directive tokens are applied to cfg and removed from the stream.
func NewParser(tokens []token.Token, cfg *config.Config) *Parser {
	p := &Parser{cfg: cfg}
	for _, tok := range tokens {
		if tok.Type == token.Directive {
			p.applyDirective(tok)
			continue
		}
		p.tokens = append(p.tokens, tok)
	}
	if len(p.tokens) == 0 || p.tokens[len(p.tokens)-1].Type != token.EOF {
		p.tokens = append(p.tokens, token.Token{Type: token.EOF})
	}
	p.current = p.tokens[0]
	return p
}

// Diagnostics returns the syntax errors and directive warnings found so far.
func (p *Parser) Diagnostics() []diag.Diagnostic { return p.diags.Items() }

func (p *Parser) applyDirective(tok token.Token) {
	if err := p.cfg.ProcessDirectiveFlags(tok.Value); err != nil && p.cfg.IsWarningEnabled(config.WarnExtra) {
		p.diags.Warnf(diag.UnknownFlag, p.cfg.WarningName(config.WarnExtra), tok, "ignoring directive: %v", err)
	}
}

// Parser helpers
func (p *Parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.previous = p.current
		p.pos++
		p.current = p.tokens[p.pos]
	}
}

func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) check(tokType token.Type) bool {
	return p.current.Type == tokType
}

func (p *Parser) match(tokType token.Type) bool {
	if !p.check(tokType) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(tokType token.Type, message string) bool {
	if p.check(tokType) {
		p.advance()
		return true
	}
	p.errorAt(p.current, "%s", message)
	return false
}

// errorAt reports a syntax error unless one is already being recovered from.
func (p *Parser) errorAt(tok token.Token, format string, args ...interface{}) {
	if p.panicking {
		return
	}
	p.panicking = true
	p.diags.Errorf(diag.Syntax, tok, format, args...)
}

func isStmtStart(t token.Type) bool {
	switch t {
	case token.If, token.While, token.Do, token.For, token.Break, token.Continue,
		token.Return, token.LBrace, token.Int, token.Long, token.Float, token.Double:
		return true
	}
	return false
}

// synchronize skips to the next statement boundary after a syntax error.
func (p *Parser) synchronize() {
	p.panicking = false
	for !p.check(token.EOF) {
		if p.previous.Type == token.Semi || p.check(token.RBrace) || isStmtStart(p.current.Type) {
			return
		}
		p.advance()
	}
}

func isLValue(node *ast.Node) bool {
	switch node.Type {
	case ast.Ident, ast.Subscript:
		return true
	default:
		return false
	}
}

// Expression Parsing
func getBinaryOpPrecedence(op token.Type) int {
	switch op {
	case token.Star, token.Slash, token.Rem:
		return 6
	case token.Plus, token.Minus:
		return 5
	case token.Lt, token.Gt, token.Lte, token.Gte:
		return 4
	case token.EqEq, token.Neq:
		return 3
	case token.AndAnd:
		return 2
	case token.OrOr:
		return 1
	default:
		return -1
	}
}

func (p *Parser) parsePrimaryExpr() *ast.Node {
	tok := p.current
	switch {
	case p.match(token.Number):
		val, _ := strconv.ParseInt(tok.Value, 10, 64)
		return ast.NewNumber(tok, val)
	case p.match(token.FloatNumber):
		val, _ := strconv.ParseFloat(tok.Value, 64)
		return ast.NewFloatNumber(tok, val)
	case p.match(token.True):
		return ast.NewNumber(tok, 1)
	case p.match(token.False):
		return ast.NewNumber(tok, 0)
	case p.match(token.Ident):
		return ast.NewIdent(tok, tok.Value)
	case p.match(token.LParen):
		expr := p.parseExpr()
		p.expect(token.RParen, "expected ')' after expression")
		return expr
	}
	p.errorAt(tok, "expected an expression, found '%s'", tok.Type)
	// a zero constant stands in for the missing operand
	return ast.NewNumber(tok, 0)
}

func (p *Parser) parsePostfixExpr() *ast.Node {
	expr := p.parsePrimaryExpr()
	if !p.check(token.LBracket) {
		return expr
	}
	tok := p.current
	if expr.Type != ast.Ident {
		p.errorAt(tok, "only a named array can be subscripted")
	}
	var indices []*ast.Node
	for p.match(token.LBracket) {
		indices = append(indices, p.parseExpr())
		p.expect(token.RBracket, "expected ']' after array index")
	}
	return ast.NewSubscript(expr.Tok, expr, indices)
}

func (p *Parser) parseUnaryExpr() *ast.Node {
	tok := p.current
	if p.check(token.LParen) && p.peek().Type.IsBasicType() {
		p.advance()
		target := types.FromKeyword(p.current.Type)
		p.advance()
		p.expect(token.RParen, "expected ')' after type in cast")
		return ast.NewTypeCast(tok, p.parseUnaryExpr(), target)
	}
	if p.match(token.Not) || p.match(token.Minus) || p.match(token.Plus) {
		op := p.previous.Type
		return ast.NewUnaryOp(tok, op, p.parseUnaryExpr())
	}
	return p.parsePostfixExpr()
}

func (p *Parser) parseBinaryExpr(minPrec int) *ast.Node {
	left := p.parseUnaryExpr()
	for {
		op := p.current.Type
		prec := getBinaryOpPrecedence(op)
		if prec < minPrec {
			break
		}
		opTok := p.current
		p.advance()
		right := p.parseBinaryExpr(prec + 1)
		left = ast.NewBinaryOp(opTok, op, left, right)
	}
	return left
}

func (p *Parser) parseAssignmentExpr() *ast.Node {
	left := p.parseBinaryExpr(1)
	if p.current.Type.IsAssignment() {
		if !isLValue(left) {
			p.errorAt(p.current, "invalid target for assignment")
		}
		op := p.current.Type
		tok := p.current
		p.advance()
		right := p.parseAssignmentExpr()
		return ast.NewAssign(tok, op, left, right)
	}
	return left
}

func (p *Parser) parseExpr() *ast.Node {
	return p.parseAssignmentExpr()
}

// Statement and Declaration Parsing
func (p *Parser) parseBlockStmt() *ast.Node {
	tok := p.current
	p.expect(token.LBrace, "expected '{' to start a block")
	stmts := p.parseStmtsUntil(token.RBrace)
	p.expect(token.RBrace, "expected '}' after block")
	return ast.NewBlock(tok, stmts, false)
}

func (p *Parser) parseStmtsUntil(end token.Type) []*ast.Node {
	var stmts []*ast.Node
	for !p.check(end) && !p.check(token.EOF) {
		start := p.pos
		if stmt := p.parseStmt(); stmt != nil {
			stmts = append(stmts, stmt)
		}
		if p.panicking {
			p.synchronize()
		}
		if p.pos == start {
			p.advance()
		}
	}
	return stmts
}

// parseDims parses zero or more '[N]' suffixes.
func (p *Parser) parseDims() []int {
	var dims []int
	for p.match(token.LBracket) {
		dimTok := p.current
		n := int64(0)
		if p.match(token.Number) {
			n, _ = strconv.ParseInt(dimTok.Value, 10, 64)
		}
		if n <= 0 {
			p.errorAt(dimTok, "array dimension must be a positive integer constant")
			n = 1
		}
		dims = append(dims, int(n))
		p.expect(token.RBracket, "expected ']' after array dimension")
	}
	return dims
}

// parseDeclarationList parses `T[d]... a[d]... = init, b, ...;` after the
// basic type keyword. The declarations are returned in a synthetic block.
func (p *Parser) parseDeclarationList(declTok token.Token) *ast.Node {
	base := types.FromKeyword(declTok.Type)
	prefixDims := p.parseDims()

	var decls []*ast.Node
	for {
		if !p.expect(token.Ident, "expected identifier in declaration") {
			return nil
		}
		itemToken := p.previous
		dims := p.parseDims()
		if len(prefixDims) > 0 && len(dims) > 0 {
			p.errorAt(itemToken, "array dimensions given both after the type and after '%s'", itemToken.Value)
		}
		if len(dims) == 0 {
			dims = prefixDims
		}
		var init *ast.Node
		if p.match(token.Eq) {
			init = p.parseAssignmentExpr()
		}
		decls = append(decls, ast.NewVarDecl(itemToken, itemToken.Value, types.NewArray(base, dims), init))

		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.Semi, "expected ';' after declaration")
	return ast.NewBlock(declTok, decls, true)
}

func (p *Parser) parseCond(keyword string) *ast.Node {
	p.expect(token.LParen, "expected '(' after '"+keyword+"'")
	cond := p.parseExpr()
	p.expect(token.RParen, "expected ')' after "+keyword+" condition")
	return cond
}

func (p *Parser) parseForStmt(tok token.Token) *ast.Node {
	p.expect(token.LParen, "expected '(' after 'for'")
	var init, cond, post *ast.Node
	switch {
	case p.current.Type.IsBasicType():
		p.advance()
		init = p.parseDeclarationList(p.previous)
	case p.match(token.Semi):
	default:
		init = p.parseExpr()
		p.expect(token.Semi, "expected ';' after for initializer")
	}
	if !p.check(token.Semi) {
		cond = p.parseExpr()
	}
	p.expect(token.Semi, "expected ';' after for condition")
	if !p.check(token.RParen) {
		post = p.parseExpr()
	}
	p.expect(token.RParen, "expected ')' after for clauses")
	body := p.parseStmt()
	return ast.NewFor(tok, init, cond, post, body)
}

func (p *Parser) parseStmt() *ast.Node {
	tok := p.current
	switch {
	case p.match(token.If):
		cond := p.parseCond("if")
		thenBody := p.parseStmt()
		var elseBody *ast.Node
		if p.match(token.Else) {
			elseBody = p.parseStmt()
		}
		return ast.NewIf(tok, cond, thenBody, elseBody)
	case p.match(token.While):
		cond := p.parseCond("while")
		body := p.parseStmt()
		return ast.NewWhile(tok, cond, body)
	case p.match(token.Do):
		body := p.parseStmt()
		p.expect(token.While, "expected 'while' after do body")
		cond := p.parseCond("while")
		p.expect(token.Semi, "expected ';' after do-while statement")
		return ast.NewDoWhile(tok, body, cond)
	case p.match(token.For):
		return p.parseForStmt(tok)
	case p.check(token.LBrace):
		return p.parseBlockStmt()
	case p.current.Type.IsBasicType():
		p.advance()
		return p.parseDeclarationList(tok)
	case p.match(token.Return):
		var expr *ast.Node
		if !p.check(token.Semi) {
			expr = p.parseExpr()
		}
		p.expect(token.Semi, "expected ';' after return statement")
		return ast.NewReturn(tok, expr)
	case p.match(token.Break):
		p.expect(token.Semi, "expected ';' after 'break'")
		return ast.NewBreak(tok)
	case p.match(token.Continue):
		p.expect(token.Semi, "expected ';' after 'continue'")
		return ast.NewContinue(tok)
	case p.match(token.Semi):
		return ast.NewBlock(tok, nil, true)
	default:
		expr := p.parseExpr()
		p.expect(token.Semi, "expected ';' after expression statement")
		return expr
	}
}

// Top-Level Parsing
func (p *Parser) parseFuncDecl() *ast.Node {
	retTok := p.current
	if !p.current.Type.IsBasicType() {
		p.errorAt(retTok, "expected a function definition, found '%s'", retTok.Type)
		return nil
	}
	p.advance()
	if !p.expect(token.Ident, "expected function name") {
		return nil
	}
	nameTok := p.previous
	p.expect(token.LParen, "expected '(' after function name")
	p.expect(token.RParen, "expected ')' after '(': functions take no parameters")
	if !p.check(token.LBrace) {
		p.errorAt(p.current, "expected '{' to start the body of '%s'", nameTok.Value)
		return nil
	}
	body := p.parseBlockStmt()
	return ast.NewFuncDecl(nameTok, nameTok.Value, types.FromKeyword(retTok.Type), body)
}

// Parse parses a translation unit into a synthetic block of functions.
func (p *Parser) Parse() *ast.Node {
	var funcs []*ast.Node
	tok := p.current
	for !p.check(token.EOF) {
		if p.match(token.Semi) {
			continue
		}
		start := p.pos
		if fn := p.parseFuncDecl(); fn != nil {
			funcs = append(funcs, fn)
		}
		if p.panicking {
			p.panicking = false
			for !p.check(token.EOF) && !p.current.Type.IsBasicType() {
				p.advance()
			}
		}
		if p.pos == start {
			p.advance()
		}
	}
	return ast.NewBlock(tok, funcs, true)
}
