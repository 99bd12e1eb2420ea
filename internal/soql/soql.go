// Package soql validates Salesforce Object Query Language statements.
//
// The parser is a syntax check, not an evaluator: it accepts the SELECT
// grammar Salesforce documents (field lists, relationship paths, aggregate
// functions, TYPEOF, parent-to-child sub-queries, WHERE/WITH/GROUP BY/HAVING/
// ORDER BY/LIMIT/OFFSET/FOR clauses) and reports the selected fields in the
// order they were written, which is the column order callers rely on.
package soql

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports a malformed query and the byte offset where parsing stopped.
type ParseError struct {
	Pos  int
	Msg  string
	Near string
}

func (e *ParseError) Error() string {
	if e.Near != "" {
		return fmt.Sprintf("soql: %s at position %d near %q", e.Msg, e.Pos, e.Near)
	}
	return fmt.Sprintf("soql: %s at position %d", e.Msg, e.Pos)
}

// SelectItem is one entry of the SELECT list.
type SelectItem struct {
	// Expr is the item as written, e.g. "Account.Name" or "COUNT(Id)".
	Expr string
	// Alias is the optional alias following an aggregate expression.
	Alias string
	// Subquery is set for parent-to-child relationship queries.
	Subquery *Query
}

// Name is the key Salesforce uses for this item in result records.
func (s SelectItem) Name() string {
	if s.Alias != "" {
		return s.Alias
	}
	if s.Subquery != nil {
		return s.Subquery.Object
	}
	return s.Expr
}

// Query is the parsed form of a SOQL statement.
type Query struct {
	Items   []SelectItem
	Fields  []string
	Object  string
	Alias   string
	Where   string
	GroupBy []string
	Having  string
	OrderBy []string
	Limit   *int
	Offset  *int
}

// Parse checks query for syntactic validity.
func Parse(query string) (*Query, error) {
	toks, err := lex(query)
	if err != nil {
		return nil, err
	}
	p := &parser{src: query, toks: toks}
	q, err := p.parseQuery(false)
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %s", describe(t))
	}
	return q, nil
}

// Validate reports whether query is well formed.
func Validate(query string) error {
	_, err := Parse(query)
	return err
}

var reserved = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "WITH": true, "GROUP": true,
	"HAVING": true, "ORDER": true, "LIMIT": true, "OFFSET": true, "FOR": true,
	"AND": true, "OR": true, "NOT": true, "IN": true, "LIKE": true,
	"INCLUDES": true, "EXCLUDES": true, "USING": true, "TYPEOF": true,
	"WHEN": true, "THEN": true, "ELSE": true, "END": true, "ASC": true,
	"DESC": true, "NULLS": true, "BY": true, "UPDATE": true, "NULL": true,
	"TRUE": true, "FALSE": true, "ROLLUP": true, "CUBE": true,
}

type parser struct {
	src  string
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) peekAt(n int) token {
	if p.i+n < len(p.toks) {
		return p.toks[p.i+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) prev() token {
	if p.i == 0 {
		return p.toks[0]
	}
	return p.toks[p.i-1]
}

func (p *parser) errorf(t token, format string, args ...any) *ParseError {
	return &ParseError{Pos: t.pos, Msg: fmt.Sprintf(format, args...), Near: t.text}
}

func isKeyword(t token, kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func isPunct(t token, s string) bool {
	return t.kind == tokPunct && t.text == s
}

func isReserved(t token) bool {
	return t.kind == tokIdent && reserved[strings.ToUpper(t.text)]
}

func (p *parser) acceptKeyword(kw string) bool {
	if isKeyword(p.peek(), kw) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	t := p.peek()
	if !isKeyword(t, kw) {
		return p.errorf(t, "expected %s, found %s", kw, describe(t))
	}
	p.next()
	return nil
}

func (p *parser) acceptPunct(s string) bool {
	if isPunct(p.peek(), s) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expectPunct(s string) error {
	t := p.peek()
	if !isPunct(t, s) {
		return p.errorf(t, "expected %q, found %s", s, describe(t))
	}
	p.next()
	return nil
}

func describe(t token) string {
	if t.kind == tokEOF {
		return "end of query"
	}
	return fmt.Sprintf("%s %q", t.kind, t.text)
}

func (p *parser) span(from token) string {
	return strings.TrimSpace(p.src[from.pos:p.prev().end])
}

// parseQuery parses SELECT ... up to the end of the statement or, for a
// nested query, up to (not including) the closing parenthesis.
func (p *parser) parseQuery(nested bool) (*Query, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	q := &Query{}
	for {
		item, err := p.parseSelectItem(nested)
		if err != nil {
			return nil, err
		}
		q.Items = append(q.Items, item)
		q.Fields = append(q.Fields, item.Name())
		if !p.acceptPunct(",") {
			break
		}
	}

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	if err := p.parseFrom(q); err != nil {
		return nil, err
	}

	if p.acceptKeyword("USING") {
		if err := p.expectKeyword("SCOPE"); err != nil {
			return nil, err
		}
		if _, err := p.expectIdent("filter scope"); err != nil {
			return nil, err
		}
	}
	if p.acceptKeyword("WHERE") {
		start := p.peek()
		if err := p.parseCondition(); err != nil {
			return nil, err
		}
		q.Where = p.span(start)
	}
	if p.acceptKeyword("WITH") {
		if err := p.parseWith(); err != nil {
			return nil, err
		}
	}
	if isKeyword(p.peek(), "GROUP") {
		p.next()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		groups, err := p.parseGroupBy()
		if err != nil {
			return nil, err
		}
		q.GroupBy = groups
		if p.acceptKeyword("HAVING") {
			start := p.peek()
			if err := p.parseCondition(); err != nil {
				return nil, err
			}
			q.Having = p.span(start)
		}
	}
	if isKeyword(p.peek(), "ORDER") {
		p.next()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		order, err := p.parseOrderBy()
		if err != nil {
			return nil, err
		}
		q.OrderBy = order
	}
	if p.acceptKeyword("LIMIT") {
		n, err := p.parseInt("LIMIT")
		if err != nil {
			return nil, err
		}
		q.Limit = n
	}
	if p.acceptKeyword("OFFSET") {
		n, err := p.parseInt("OFFSET")
		if err != nil {
			return nil, err
		}
		q.Offset = n
	}
	if !nested {
		if err := p.parseForClauses(); err != nil {
			return nil, err
		}
	}
	return q, nil
}

func (p *parser) parseSelectItem(nested bool) (SelectItem, error) {
	t := p.peek()
	switch {
	case isPunct(t, "("):
		if nested {
			return SelectItem{}, p.errorf(t, "nested sub-queries are not supported")
		}
		p.next()
		sub, err := p.parseQuery(true)
		if err != nil {
			return SelectItem{}, err
		}
		if err := p.expectPunct(")"); err != nil {
			return SelectItem{}, err
		}
		return SelectItem{Expr: p.span(t), Subquery: sub}, nil
	case isKeyword(t, "TYPEOF"):
		p.next()
		name, err := p.parseTypeOf()
		if err != nil {
			return SelectItem{}, err
		}
		return SelectItem{Expr: name}, nil
	}

	expr, isCall, err := p.parseFieldExpr()
	if err != nil {
		return SelectItem{}, err
	}
	item := SelectItem{Expr: expr}
	if a := p.peek(); a.kind == tokIdent && !isReserved(a) {
		if !isCall {
			return SelectItem{}, p.errorf(a, "unexpected %s after field %s", describe(a), expr)
		}
		p.next()
		item.Alias = a.text
	}
	return item, nil
}

// parseTypeOf consumes a TYPEOF ... END block and returns the polymorphic field.
func (p *parser) parseTypeOf() (string, error) {
	field, err := p.parsePath()
	if err != nil {
		return "", err
	}
	whens := 0
	for p.acceptKeyword("WHEN") {
		if _, err := p.expectIdent("object type"); err != nil {
			return "", err
		}
		if err := p.expectKeyword("THEN"); err != nil {
			return "", err
		}
		if err := p.parsePathList(); err != nil {
			return "", err
		}
		whens++
	}
	if whens == 0 {
		return "", p.errorf(p.peek(), "expected WHEN in TYPEOF, found %s", describe(p.peek()))
	}
	if p.acceptKeyword("ELSE") {
		if err := p.parsePathList(); err != nil {
			return "", err
		}
	}
	if err := p.expectKeyword("END"); err != nil {
		return "", err
	}
	return field, nil
}

func (p *parser) parsePathList() error {
	for {
		if _, err := p.parsePath(); err != nil {
			return err
		}
		if !p.acceptPunct(",") {
			return nil
		}
	}
}

func (p *parser) expectIdent(what string) (token, error) {
	t := p.peek()
	if t.kind != tokIdent {
		return t, p.errorf(t, "expected %s, found %s", what, describe(t))
	}
	p.next()
	return t, nil
}

// parsePath parses Name or Relationship.Name, rejecting reserved words in
// the leading position.
func (p *parser) parsePath() (string, error) {
	t := p.peek()
	if t.kind != tokIdent || isReserved(t) {
		return "", p.errorf(t, "expected field, found %s", describe(t))
	}
	p.next()
	for p.acceptPunct(".") {
		if _, err := p.expectIdent("field after '.'"); err != nil {
			return "", err
		}
	}
	return p.span(t), nil
}

// parseFieldExpr parses a field path or a function call such as COUNT(Id),
// FORMAT(MIN(Amount)) or FIELDS(ALL).
func (p *parser) parseFieldExpr() (string, bool, error) {
	t := p.peek()
	if t.kind == tokIdent && !isReserved(t) && isPunct(p.peekAt(1), "(") {
		p.next()
		p.next()
		if !isPunct(p.peek(), ")") {
			for {
				if _, _, err := p.parseFieldExpr(); err != nil {
					return "", false, err
				}
				if !p.acceptPunct(",") {
					break
				}
			}
		}
		if err := p.expectPunct(")"); err != nil {
			return "", false, err
		}
		return p.span(t), true, nil
	}
	path, err := p.parsePath()
	return path, false, err
}

func (p *parser) parseFrom(q *Query) error {
	for first := true; ; first = false {
		t := p.peek()
		// Object names may collide with keywords (FROM Order).
		if t.kind != tokIdent {
			return p.errorf(t, "expected object name, found %s", describe(t))
		}
		p.next()
		for p.acceptPunct(".") {
			if _, err := p.expectIdent("relationship after '.'"); err != nil {
				return err
			}
		}
		name := p.span(t)
		alias := ""
		if a := p.peek(); a.kind == tokIdent && !isReserved(a) {
			p.next()
			alias = a.text
		}
		if first {
			q.Object = name
			q.Alias = alias
		}
		if !p.acceptPunct(",") {
			return nil
		}
	}
}

// parseCondition parses a boolean expression: OR of ANDs of optionally
// negated comparisons or parenthesised conditions.
func (p *parser) parseCondition() error {
	for {
		if err := p.parseAnd(); err != nil {
			return err
		}
		if !p.acceptKeyword("OR") {
			return nil
		}
	}
}

func (p *parser) parseAnd() error {
	for {
		if err := p.parseNot(); err != nil {
			return err
		}
		if !p.acceptKeyword("AND") {
			return nil
		}
	}
}

func (p *parser) parseNot() error {
	if p.acceptKeyword("NOT") {
		return p.parseNot()
	}
	if p.acceptPunct("(") {
		if err := p.parseCondition(); err != nil {
			return err
		}
		return p.expectPunct(")")
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() error {
	if _, _, err := p.parseFieldExpr(); err != nil {
		return err
	}
	t := p.peek()
	switch {
	case t.kind == tokPunct && isComparisonOp(t.text):
		p.next()
		return p.parseValue()
	case isKeyword(t, "LIKE"):
		p.next()
		return p.parseValue()
	case isKeyword(t, "IN"):
		p.next()
		return p.parseInList()
	case isKeyword(t, "NOT"):
		p.next()
		if err := p.expectKeyword("IN"); err != nil {
			return err
		}
		return p.parseInList()
	case isKeyword(t, "INCLUDES"), isKeyword(t, "EXCLUDES"):
		p.next()
		if err := p.expectPunct("("); err != nil {
			return err
		}
		if err := p.parseValueList(); err != nil {
			return err
		}
		return p.expectPunct(")")
	}
	return p.errorf(t, "expected comparison operator, found %s", describe(t))
}

func isComparisonOp(s string) bool {
	switch s {
	case "=", "!=", "<>", "<", "<=", ">", ">=":
		return true
	}
	return false
}

// parseInList parses either a bind variable, a value list or a semi-join
// sub-query after IN / NOT IN.
func (p *parser) parseInList() error {
	if isPunct(p.peek(), ":") {
		return p.parseValue()
	}
	if err := p.expectPunct("("); err != nil {
		return err
	}
	if isKeyword(p.peek(), "SELECT") {
		if _, err := p.parseQuery(true); err != nil {
			return err
		}
	} else if err := p.parseValueList(); err != nil {
		return err
	}
	return p.expectPunct(")")
}

func (p *parser) parseValueList() error {
	for {
		if err := p.parseValue(); err != nil {
			return err
		}
		if !p.acceptPunct(",") {
			return nil
		}
	}
}

func (p *parser) parseValue() error {
	t := p.peek()
	switch t.kind {
	case tokString, tokDate, tokDateTime:
		p.next()
		return nil
	case tokNumber:
		p.next()
		return nil
	case tokPunct:
		switch t.text {
		case "-", "+":
			p.next()
			if n := p.peek(); n.kind != tokNumber {
				return p.errorf(n, "expected number after %q, found %s", t.text, describe(n))
			}
			p.next()
			return nil
		case ":":
			p.next()
			_, err := p.expectIdent("bind variable")
			return err
		}
	case tokIdent:
		if isKeyword(t, "NULL") || isKeyword(t, "TRUE") || isKeyword(t, "FALSE") {
			p.next()
			return nil
		}
		if isReserved(t) {
			break
		}
		// Date literals (TODAY, LAST_N_DAYS:30) and currency literals (USD5000).
		p.next()
		if isPunct(p.peek(), ":") {
			p.next()
			if n := p.peek(); n.kind != tokNumber {
				return p.errorf(n, "expected number after %s:, found %s", t.text, describe(n))
			}
			p.next()
		}
		return nil
	}
	return p.errorf(t, "expected value, found %s", describe(t))
}

func (p *parser) parseWith() error {
	if p.acceptKeyword("DATA") {
		if err := p.expectKeyword("CATEGORY"); err != nil {
			return err
		}
		for {
			if _, err := p.expectIdent("data category group"); err != nil {
				return err
			}
			sel := p.peek()
			if !(isKeyword(sel, "AT") || isKeyword(sel, "ABOVE") || isKeyword(sel, "BELOW") || isKeyword(sel, "ABOVE_OR_BELOW")) {
				return p.errorf(sel, "expected AT, ABOVE, BELOW or ABOVE_OR_BELOW, found %s", describe(sel))
			}
			p.next()
			if p.acceptPunct("(") {
				if err := p.parseIdentList(); err != nil {
					return err
				}
				if err := p.expectPunct(")"); err != nil {
					return err
				}
			} else if _, err := p.expectIdent("data category"); err != nil {
				return err
			}
			if !p.acceptKeyword("AND") {
				return nil
			}
		}
	}
	t := p.peek()
	if t.kind != tokIdent || isReserved(t) {
		return p.errorf(t, "expected filter after WITH, found %s", describe(t))
	}
	p.next()
	return nil
}

func (p *parser) parseIdentList() error {
	for {
		if _, err := p.expectIdent("identifier"); err != nil {
			return err
		}
		if !p.acceptPunct(",") {
			return nil
		}
	}
}

func (p *parser) parseGroupBy() ([]string, error) {
	if isKeyword(p.peek(), "ROLLUP") || isKeyword(p.peek(), "CUBE") {
		p.next()
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		var fields []string
		for {
			f, err := p.parsePath()
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
			if !p.acceptPunct(",") {
				break
			}
		}
		return fields, p.expectPunct(")")
	}
	var fields []string
	for {
		f, _, err := p.parseFieldExpr()
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
		if !p.acceptPunct(",") {
			return fields, nil
		}
	}
}

func (p *parser) parseOrderBy() ([]string, error) {
	var items []string
	for {
		start := p.peek()
		if _, _, err := p.parseFieldExpr(); err != nil {
			return nil, err
		}
		if !p.acceptKeyword("ASC") {
			p.acceptKeyword("DESC")
		}
		if p.acceptKeyword("NULLS") {
			if !p.acceptKeyword("FIRST") {
				if err := p.expectKeyword("LAST"); err != nil {
					return nil, err
				}
			}
		}
		items = append(items, p.span(start))
		if !p.acceptPunct(",") {
			return items, nil
		}
	}
}

// parseInt returns nil for a bind variable, whose value is unknown here.
func (p *parser) parseInt(clause string) (*int, error) {
	t := p.peek()
	if isPunct(t, ":") {
		p.next()
		if _, err := p.expectIdent("bind variable"); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if t.kind != tokNumber || strings.Contains(t.text, ".") {
		return nil, p.errorf(t, "expected integer after %s, found %s", clause, describe(t))
	}
	p.next()
	n, err := strconv.Atoi(t.text)
	if err != nil {
		return nil, p.errorf(t, "invalid %s value: %v", clause, err)
	}
	return &n, nil
}

func (p *parser) parseForClauses() error {
	if p.acceptKeyword("FOR") {
		for {
			t := p.peek()
			if !(isKeyword(t, "VIEW") || isKeyword(t, "REFERENCE") || isKeyword(t, "UPDATE")) {
				return p.errorf(t, "expected VIEW, REFERENCE or UPDATE, found %s", describe(t))
			}
			p.next()
			if !p.acceptPunct(",") {
				break
			}
		}
	}
	if p.acceptKeyword("UPDATE") {
		t := p.peek()
		if !(isKeyword(t, "TRACKING") || isKeyword(t, "VIEWSTAT")) {
			return p.errorf(t, "expected TRACKING or VIEWSTAT, found %s", describe(t))
		}
		p.next()
	}
	return nil
}
