package lexer

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/xplshn/mcc/pkg/config"
	"github.com/xplshn/mcc/pkg/diag"
	"github.com/xplshn/mcc/pkg/token"
)

const directivePrefix = "[mcc]:"

type Lexer struct {
	source    []rune
	fileIndex int
	pos       int
	line      int
	column    int
	cfg       *config.Config
	diags     diag.List
}

func NewLexer(source []rune, fileIndex int, cfg *config.Config) *Lexer {
	return &Lexer{
		source: source, fileIndex: fileIndex, line: 1, column: 1, cfg: cfg,
	}
}

// Diagnostics returns the lexical errors found so far.
func (l *Lexer) Diagnostics() []diag.Diagnostic { return l.diags.Items() }

// Tokenize lexes the whole source. The result always ends with EOF.
func (l *Lexer) Tokenize() []token.Token {
	var toks []token.Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks
		}
	}
}

func (l *Lexer) Next() token.Token {
	for {
		l.skipWhitespaceAndComments()
		startPos, startCol, startLine := l.pos, l.column, l.line

		if l.isAtEnd() {
			return l.makeToken(token.EOF, "", startPos, startCol, startLine)
		}

		if l.peek() == '/' && l.peekNext() == '/' {
			if l.cfg.IsFeatureEnabled(config.FeatDirectives) {
				if tok, isDirective := l.lineCommentOrDirective(startPos, startCol, startLine); isDirective {
					return tok
				}
			}
			l.lineComment()
			continue
		}

		ch := l.peek()
		if unicode.IsLetter(ch) || ch == '_' {
			l.advance()
			return l.identifierOrKeyword(startPos, startCol, startLine)
		}
		if unicode.IsDigit(ch) || (ch == '.' && unicode.IsDigit(l.peekNext())) {
			return l.numberLiteral(startPos, startCol, startLine)
		}

		l.advance()
		switch ch {
		case '(': return l.makeToken(token.LParen, "", startPos, startCol, startLine)
		case ')': return l.makeToken(token.RParen, "", startPos, startCol, startLine)
		case '{': return l.makeToken(token.LBrace, "", startPos, startCol, startLine)
		case '}': return l.makeToken(token.RBrace, "", startPos, startCol, startLine)
		case '[': return l.makeToken(token.LBracket, "", startPos, startCol, startLine)
		case ']': return l.makeToken(token.RBracket, "", startPos, startCol, startLine)
		case ';': return l.makeToken(token.Semi, "", startPos, startCol, startLine)
		case ',': return l.makeToken(token.Comma, "", startPos, startCol, startLine)
		case '!': return l.matchThen('=', token.Neq, token.Not, startPos, startCol, startLine)
		case '<': return l.matchThen('=', token.Lte, token.Lt, startPos, startCol, startLine)
		case '>': return l.matchThen('=', token.Gte, token.Gt, startPos, startCol, startLine)
		case '=': return l.matchThen('=', token.EqEq, token.Eq, startPos, startCol, startLine)
		case '+': return l.arith(token.Plus, token.PlusEq, startPos, startCol, startLine)
		case '-': return l.arith(token.Minus, token.MinusEq, startPos, startCol, startLine)
		case '*': return l.arith(token.Star, token.StarEq, startPos, startCol, startLine)
		case '/': return l.arith(token.Slash, token.SlashEq, startPos, startCol, startLine)
		case '%': return l.arith(token.Rem, token.RemEq, startPos, startCol, startLine)
		case '&':
			if l.match('&') {
				return l.makeToken(token.AndAnd, "", startPos, startCol, startLine)
			}
		case '|':
			if l.match('|') {
				return l.makeToken(token.OrOr, "", startPos, startCol, startLine)
			}
		}

		tok := l.makeToken(token.EOF, string(ch), startPos, startCol, startLine)
		l.diags.Errorf(diag.Lexical, tok, "unexpected character '%c'", ch)
	}
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() || l.source[l.pos] != expected {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, value string, startPos, startCol, startLine int) token.Token {
	return token.Token{
		Type: tokType, Value: value, FileIndex: l.fileIndex,
		Line: startLine, Column: startCol, Len: l.pos - startPos,
	}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch l.peek() {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			l.advance()
		case '/':
			if l.peekNext() != '*' {
				return
			}
			l.blockComment()
		default:
			return
		}
	}
}

func (l *Lexer) blockComment() {
	startTok := l.makeToken(token.Comment, "", l.pos, l.column, l.line)
	startTok.Len = 2
	l.advance()
	l.advance()
	for !l.isAtEnd() {
		if l.peek() == '*' && l.peekNext() == '/' {
			l.advance()
			l.advance()
			return
		}
		l.advance()
	}
	l.diags.Errorf(diag.Lexical, startTok, "unterminated block comment")
}

func (l *Lexer) lineComment() {
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
}

// lineCommentOrDirective consumes a `// [mcc]: flags` comment as a
// Directive token. Any other comment is left in place.
func (l *Lexer) lineCommentOrDirective(startPos, startCol, startLine int) (token.Token, bool) {
	preCommentPos, preCommentCol, preCommentLine := l.pos, l.column, l.line
	l.advance()
	l.advance()
	commentStartPos := l.pos
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
	trimmed := strings.TrimSpace(string(l.source[commentStartPos:l.pos]))

	if strings.HasPrefix(trimmed, directivePrefix) {
		content := strings.TrimSpace(strings.TrimPrefix(trimmed, directivePrefix))
		return l.makeToken(token.Directive, content, startPos, startCol, startLine), true
	}

	l.pos, l.column, l.line = preCommentPos, preCommentCol, preCommentLine
	return token.Token{}, false
}

func (l *Lexer) identifierOrKeyword(startPos, startCol, startLine int) token.Token {
	for unicode.IsLetter(l.peek()) || unicode.IsDigit(l.peek()) || l.peek() == '_' {
		l.advance()
	}
	value := string(l.source[startPos:l.pos])
	tok := l.makeToken(token.Ident, value, startPos, startCol, startLine)

	if tokType, isKeyword := token.KeywordMap[value]; isKeyword {
		isBoolLiteral := tokType == token.True || tokType == token.False
		if !isBoolLiteral || l.cfg.IsFeatureEnabled(config.FeatBoolLiterals) {
			tok.Type = tokType
			tok.Value = ""
		}
	}
	return tok
}

func isHexDigit(r rune) bool {
	return unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// numberLiteral lexes decimal, octal (leading 0), binary (0b) and
// hexadecimal (0x) integers, and decimal floating constants with an
// optional exponent. Integer values are normalized to base 10.
func (l *Lexer) numberLiteral(startPos, startCol, startLine int) token.Token {
	isFloat := false
	isPrefixed := false

	if l.peek() == '0' && (l.peekNext() == 'x' || l.peekNext() == 'X' || l.peekNext() == 'b' || l.peekNext() == 'B') {
		isPrefixed = true
		l.advance()
		isHex := l.advance() == 'x' || l.source[l.pos-1] == 'X'
		for isHexDigit(l.peek()) || l.peek() == '_' {
			if !isHex && !unicode.IsDigit(l.peek()) {
				break
			}
			l.advance()
		}
	} else {
		for unicode.IsDigit(l.peek()) {
			l.advance()
		}
		if l.peek() == '.' {
			isFloat = true
			l.advance()
			for unicode.IsDigit(l.peek()) {
				l.advance()
			}
		}
		if l.peek() == 'e' || l.peek() == 'E' {
			isFloat = true
			l.advance()
			if l.peek() == '+' || l.peek() == '-' {
				l.advance()
			}
			if !unicode.IsDigit(l.peek()) {
				tok := l.makeToken(token.FloatNumber, "0", startPos, startCol, startLine)
				l.diags.Errorf(diag.Lexical, tok, "malformed floating constant: exponent has no digits")
				return tok
			}
			for unicode.IsDigit(l.peek()) {
				l.advance()
			}
		}
	}

	// a suffix glued to the number, such as 12abc, is one bad token
	for unicode.IsLetter(l.peek()) || unicode.IsDigit(l.peek()) || l.peek() == '_' {
		l.advance()
	}

	valueStr := string(l.source[startPos:l.pos])

	if isFloat {
		tok := l.makeToken(token.FloatNumber, valueStr, startPos, startCol, startLine)
		if _, err := strconv.ParseFloat(valueStr, 64); err != nil && !errors.Is(err, strconv.ErrRange) {
			l.diags.Errorf(diag.Lexical, tok, "invalid floating constant '%s'", valueStr)
			tok.Value = "0"
		}
		return tok
	}

	tok := l.makeToken(token.Number, "0", startPos, startCol, startLine)
	parseStr := valueStr
	if !isPrefixed && len(parseStr) > 1 && parseStr[0] == '0' {
		parseStr = "0o" + parseStr[1:]
	}
	val, err := strconv.ParseInt(parseStr, 0, 64)
	switch {
	case errors.Is(err, strconv.ErrRange):
		l.diags.Errorf(diag.Lexical, tok, "integer constant '%s' is out of range", valueStr)
	case err != nil:
		l.diags.Errorf(diag.Lexical, tok, "invalid integer constant '%s'", valueStr)
	default:
		tok.Value = strconv.FormatInt(val, 10)
	}
	return tok
}

func (l *Lexer) matchThen(expected rune, thenType, elseType token.Type, sPos, sCol, sLine int) token.Token {
	if l.match(expected) {
		return l.makeToken(thenType, "", sPos, sCol, sLine)
	}
	return l.makeToken(elseType, "", sPos, sCol, sLine)
}

func (l *Lexer) arith(plain, compound token.Type, sPos, sCol, sLine int) token.Token {
	if l.cfg.IsFeatureEnabled(config.FeatCompoundAssign) && l.match('=') {
		return l.makeToken(compound, "", sPos, sCol, sLine)
	}
	return l.makeToken(plain, "", sPos, sCol, sLine)
}
