package soql

import (
	"regexp"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokDate
	tokDateTime
	tokPunct
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of query"
	case tokIdent:
		return "identifier"
	case tokString:
		return "string literal"
	case tokNumber:
		return "number"
	case tokDate:
		return "date literal"
	case tokDateTime:
		return "datetime literal"
	default:
		return "symbol"
	}
}

// token is one lexeme. Pos and End are byte offsets into the source.
type token struct {
	kind tokenKind
	text string
	pos  int
	end  int
}

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}(T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:?\d{2}))?`)

// lex splits src into tokens. String escapes are kept verbatim; the parser
// only needs the span.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case isSpace(c):
			i++
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start, end: i})
		case isDigit(c):
			start := i
			if m := dateRe.FindString(src[i:]); m != "" {
				kind := tokDate
				if strings.ContainsRune(m, 'T') {
					kind = tokDateTime
				}
				i += len(m)
				toks = append(toks, token{kind: kind, text: m, pos: start, end: i})
				continue
			}
			for i < len(src) && isDigit(src[i]) {
				i++
			}
			if i+1 < len(src) && src[i] == '.' && isDigit(src[i+1]) {
				i++
				for i < len(src) && isDigit(src[i]) {
					i++
				}
			}
			toks = append(toks, token{kind: tokNumber, text: src[start:i], pos: start, end: i})
		case c == '\'':
			start := i
			i++
			closed := false
			for i < len(src) {
				if src[i] == '\\' {
					if i+1 >= len(src) {
						break
					}
					if !validEscape(src[i+1]) {
						return nil, &ParseError{Pos: i, Msg: "invalid escape sequence \\" + string(src[i+1])}
					}
					i += 2
					continue
				}
				if src[i] == '\'' {
					i++
					closed = true
					break
				}
				i++
			}
			if !closed {
				return nil, &ParseError{Pos: start, Msg: "unterminated string literal"}
			}
			toks = append(toks, token{kind: tokString, text: src[start:i], pos: start, end: i})
		default:
			start := i
			var p string
			switch c {
			case '(', ')', ',', '.', ':', '=', '+', '-':
				p = string(c)
			case '!':
				if i+1 < len(src) && src[i+1] == '=' {
					p = "!="
				}
			case '<':
				p = "<"
				if i+1 < len(src) && (src[i+1] == '=' || src[i+1] == '>') {
					p = src[i : i+2]
				}
			case '>':
				p = ">"
				if i+1 < len(src) && src[i+1] == '=' {
					p = ">="
				}
			}
			if p == "" {
				return nil, &ParseError{Pos: start, Msg: "unexpected character " + quoteChar(c)}
			}
			i += len(p)
			toks = append(toks, token{kind: tokPunct, text: p, pos: start, end: i})
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src), end: len(src)})
	return toks, nil
}

func isSpace(c byte) bool      { return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' }
func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }

func validEscape(c byte) bool {
	switch c {
	case 'n', 'N', 'r', 'R', 't', 'T', 'b', 'B', 'f', 'F', '"', '\'', '\\', '_', '%':
		return true
	}
	return false
}

func quoteChar(c byte) string {
	return "'" + string(c) + "'"
}
