// Package formula parses alpha formulas into an AST.
//
// A formula is one or more statements separated by ';' or newlines. Each
// statement is either an expression or an assignment `name = expr`. Field
// identifiers (open, high, low, close, volume, vwap) are case-insensitive;
// function names are not.
package formula

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/newthinker/alphalab/internal/core"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokAssign
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokCaret
	tokSep
)

var tokenNames = map[tokenKind]string{
	tokEOF:      "end of formula",
	tokNumber:   "number",
	tokString:   "string",
	tokIdent:    "identifier",
	tokLParen:   "'('",
	tokRParen:   "')'",
	tokLBracket: "'['",
	tokRBracket: "']'",
	tokComma:    "','",
	tokAssign:   "'='",
	tokPlus:     "'+'",
	tokMinus:    "'-'",
	tokStar:     "'*'",
	tokSlash:    "'/'",
	tokCaret:    "'^'",
	tokSep:      "statement separator",
}

func (k tokenKind) String() string { return tokenNames[k] }

type token struct {
	kind tokenKind
	pos  int
	text string
	num  float64
}

// SyntaxError locates a problem in the formula text. Pos is a 0-based byte
// offset.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("offset %d: %s", e.Pos, e.Msg)
}

func parseError(pos int, format string, args ...any) error {
	return core.WrapError(core.ErrParse, &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func unknownError(pos int, format string, args ...any) error {
	return core.WrapError(core.ErrUnknownIdentifier, &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

var singleChar = map[byte]tokenKind{
	'(': tokLParen,
	')': tokRParen,
	'[': tokLBracket,
	']': tokRBracket,
	',': tokComma,
	'=': tokAssign,
	'+': tokPlus,
	'-': tokMinus,
	'*': tokStar,
	'/': tokSlash,
	'^': tokCaret,
	';': tokSep,
}

// lex splits src into tokens. Newlines separate statements only outside
// brackets, so calls may span lines.
func lex(src string) ([]token, error) {
	var toks []token
	depth := 0
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '\n':
			if depth == 0 {
				toks = append(toks, token{kind: tokSep, pos: i, text: "\n"})
			}
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			tok, next, err := lexNumber(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = next
		case c == '"' || c == '\'':
			end := strings.IndexByte(src[i+1:], c)
			if end < 0 {
				return nil, parseError(i, "unterminated string")
			}
			toks = append(toks, token{kind: tokString, pos: i, text: src[i+1 : i+1+end]})
			i += end + 2
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, pos: start, text: src[start:i]})
		default:
			kind, ok := singleChar[c]
			if !ok {
				r, _ := utf8.DecodeRuneInString(src[i:])
				return nil, parseError(i, "unexpected character %q", r)
			}
			switch kind {
			case tokLParen, tokLBracket:
				depth++
			case tokRParen, tokRBracket:
				if depth > 0 {
					depth--
				}
			}
			toks = append(toks, token{kind: kind, pos: i, text: string(c)})
			i++
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

func lexNumber(src string, start int) (token, int, error) {
	i := start
	for i < len(src) && isDigit(src[i]) {
		i++
	}
	if i < len(src) && src[i] == '.' {
		i++
		for i < len(src) && isDigit(src[i]) {
			i++
		}
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && isDigit(src[j]) {
			for j < len(src) && isDigit(src[j]) {
				j++
			}
			i = j
		}
	}
	if i < len(src) && (isIdentPart(src[i]) || src[i] == '.') {
		return token{}, 0, parseError(start, "malformed number %q", src[start:i+1])
	}
	text := src[start:i]
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{}, 0, parseError(start, "malformed number %q", text)
	}
	return token{kind: tokNumber, pos: start, text: text, num: f}, i, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
