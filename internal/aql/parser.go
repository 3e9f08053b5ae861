package aql

import (
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/aqlengine/internal/ir"
	"github.com/roach88/aqlengine/internal/queryir"
)

// ---------------------------------------------------------------------------
// Recursive descent parser
//
// Grammar (keywords case-insensitive):
//   query     -> SELECT items FROM step (CONTAINS step)* [WHERE orExpr]
//                [ORDER BY order ("," order)*] [LIMIT INT] [OFFSET INT]
//   items     -> item ("," item)*
//   item      -> path [AS IDENT]
//   step      -> TYPE [IDENT] ["[" filter "]"]
//   filter    -> ARCHETYPE_ID | STRING | PARAM | relpath cmpop value
//   orExpr    -> andExpr (OR andExpr)*
//   andExpr   -> notExpr (AND notExpr)*
//   notExpr   -> NOT notExpr | primary
//   primary   -> "(" orExpr ")" | operand cmpop operand | operand MATCHES set
//   set       -> "{" [literal ("," literal)*] "}" | PARAM
//   operand   -> path | literal | PARAM
//   path      -> IDENT ("/" IDENT ["[" (IDENT | STRING) "]"])*
// ---------------------------------------------------------------------------

// Parse parses AQL query text.
//
// Besides grammar errors, Parse reports undeclared variables, duplicate
// variables and duplicate aliases as *SyntaxError. Paths in WHERE and ORDER BY
// that start with a SELECT alias are rewritten to the aliased path.
func Parse(text string) (*queryir.Query, error) {
	tokens, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := newParser(tokens)
	q, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	q.Text = text
	q.Params = p.params
	if err := resolveNames(q); err != nil {
		return nil, err
	}
	return q, nil
}

// ParseValueSet parses set syntax as written after MATCHES, either braced
// ({'a', 'b'}) or as a bare comma-separated literal list ('a', 'b').
func ParseValueSet(text string) ([]ir.Value, error) {
	tokens, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := newParser(tokens)
	var values []ir.Value
	if p.peek().Kind == tokLBrace {
		set, err := p.parseSetLiteral()
		if err != nil {
			return nil, err
		}
		values = set.Values
	} else {
		for {
			v, err := p.parseLiteral()
			if err != nil {
				return nil, err
			}
			values = append(values, v)
			if p.peek().Kind != tokComma {
				break
			}
			p.advance()
		}
	}
	if tok := p.peek(); tok.Kind != tokEOF {
		return nil, errorAt(tok, "unexpected token after value set")
	}
	return values, nil
}

type parser struct {
	tokens  []token
	pos     int
	params  []string
	seen    map[string]bool // parameter names already recorded
	vars    map[string]bool // declared step variables
	aliases map[string]bool
}

func newParser(tokens []token) *parser {
	return &parser{
		tokens:  tokens,
		seen:    make(map[string]bool),
		vars:    make(map[string]bool),
		aliases: make(map[string]bool),
	}
}

func (p *parser) peek() token {
	return p.peekAt(0)
}

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *parser) advance() token {
	tok := p.peek()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	tok := p.peek()
	if tok.Kind != kind {
		return tok, errorAt(tok, "expected %s", what)
	}
	return p.advance(), nil
}

func (p *parser) expectKeyword(kw string) error {
	tok := p.peek()
	if !tok.keyword(kw) {
		return errorAt(tok, "expected %s", kw)
	}
	p.advance()
	return nil
}

func (p *parser) parseQuery() (*queryir.Query, error) {
	q := &queryir.Query{}
	var err error

	if err = p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	if q.Select, err = p.parseSelect(); err != nil {
		return nil, err
	}
	if err = p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	if q.From, err = p.parseFrom(); err != nil {
		return nil, err
	}
	if p.peek().keyword("WHERE") {
		p.advance()
		if q.Where, err = p.parseOr(); err != nil {
			return nil, err
		}
	}
	if p.peek().keyword("ORDER") {
		p.advance()
		if err = p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		if q.OrderBy, err = p.parseOrderBy(); err != nil {
			return nil, err
		}
	}
	if p.peek().keyword("LIMIT") {
		p.advance()
		if q.Limit, err = p.parseCount("LIMIT"); err != nil {
			return nil, err
		}
	}
	if p.peek().keyword("OFFSET") {
		p.advance()
		if q.Offset, err = p.parseCount("OFFSET"); err != nil {
			return nil, err
		}
	}

	if tok := p.peek(); tok.Kind != tokEOF {
		if q.Where != nil && startsOperand(tok) {
			return nil, errorAt(tok, "conditions must be joined with AND or OR")
		}
		return nil, errorAt(tok, "unexpected token")
	}
	return q, nil
}

func (p *parser) parseSelect() ([]queryir.SelectItem, error) {
	var items []queryir.SelectItem
	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.peek().Kind != tokComma {
			return items, nil
		}
		p.advance()
	}
}

func (p *parser) parseSelectItem() (queryir.SelectItem, error) {
	path, err := p.parsePath()
	if err != nil {
		return queryir.SelectItem{}, err
	}
	item := queryir.SelectItem{Path: path, Pos: path.Pos}
	if !p.peek().keyword("AS") {
		return item, nil
	}
	p.advance()
	tok, err := p.expect(tokIdent, "alias after AS")
	if err != nil {
		return item, err
	}
	if isReserved(tok.Text) {
		return item, errorAt(tok, "reserved word cannot be used as an alias")
	}
	if p.aliases[tok.Text] {
		return item, errorAt(tok, "duplicate alias %q", tok.Text)
	}
	p.aliases[tok.Text] = true
	item.Alias = tok.Text
	return item, nil
}

func (p *parser) parseFrom() ([]queryir.Step, error) {
	root, err := p.parseStep()
	if err != nil {
		return nil, err
	}
	steps := []queryir.Step{root}
	for p.peek().keyword("CONTAINS") {
		p.advance()
		step, err := p.parseStep()
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	if err := checkChain(steps); err != nil {
		return nil, err
	}
	return steps, nil
}

// checkChain enforces where the record-level types may appear: EHR only as
// the root, COMPOSITION and EHR_STATUS as the root or directly inside it.
func checkChain(steps []queryir.Step) error {
	for i, s := range steps {
		switch s.Type {
		case "EHR":
			if i != 0 {
				return &SyntaxError{Pos: s.Pos, Token: s.Type, Message: "EHR must be the root of the containment chain"}
			}
		case "COMPOSITION", "EHR_STATUS":
			if i > 1 || (i == 1 && steps[0].Type != "EHR") {
				return &SyntaxError{Pos: s.Pos, Token: s.Type, Message: s.Type + " must be the root or directly contained in EHR"}
			}
		}
	}
	return nil
}

func (p *parser) parseStep() (queryir.Step, error) {
	typ, err := p.expect(tokIdent, "RM type name")
	if err != nil {
		return queryir.Step{}, err
	}
	rmType := strings.ToUpper(typ.Text)
	if !isRMType(rmType) {
		return queryir.Step{}, errorAt(typ, "expected RM type name")
	}
	step := queryir.Step{Type: rmType, Pos: typ.Pos}

	if tok := p.peek(); tok.Kind == tokIdent && !isReserved(tok.Text) {
		p.advance()
		if p.vars[tok.Text] {
			return step, errorAt(tok, "duplicate variable %q", tok.Text)
		}
		p.vars[tok.Text] = true
		step.Var = tok.Text
	}

	if p.peek().Kind == tokLBrack {
		filter, err := p.parseFilter(step.Var)
		if err != nil {
			return step, err
		}
		step.Filter = filter
	}
	return step, nil
}

func (p *parser) parseFilter(stepVar string) (queryir.StepFilter, error) {
	p.advance() // [
	tok := p.peek()
	next := p.peekAt(1).Kind

	var filter queryir.StepFilter
	switch {
	case tok.Kind == tokIdent && (next == tokSlash || next == tokLBrack || isCompareKind(next)):
		path := queryir.Path{Var: stepVar, Pos: tok.Pos}
		segs, err := p.parseSegments(true)
		if err != nil {
			return nil, err
		}
		path.Segments = segs
		op, err := p.parseCompareOp()
		if err != nil {
			return nil, err
		}
		right, err := p.parseValueOperand()
		if err != nil {
			return nil, err
		}
		filter = &queryir.NodeFilter{Condition: &queryir.Comparison{
			Left:  &queryir.PathRef{Path: path},
			Op:    op,
			Right: right,
		}}
	case tok.Kind == tokParam:
		p.advance()
		filter = &queryir.ArchetypeFilter{ID: p.param(tok)}
	case tok.Kind == tokIdent || tok.Kind == tokString:
		p.advance()
		filter = &queryir.ArchetypeFilter{ID: &queryir.Literal{Value: ir.String(tok.Text)}}
	default:
		return nil, errorAt(tok, "expected archetype id, parameter or path predicate")
	}

	if _, err := p.expect(tokRBrack, "]"); err != nil {
		return nil, err
	}
	return filter, nil
}

// parsePath reads var/seg[pred]/seg...
func (p *parser) parsePath() (queryir.Path, error) {
	tok, err := p.expect(tokIdent, "variable or alias")
	if err != nil {
		return queryir.Path{}, err
	}
	if isReserved(tok.Text) {
		return queryir.Path{}, errorAt(tok, "expected variable or alias")
	}
	path := queryir.Path{Var: tok.Text, Pos: tok.Pos}
	if p.peek().Kind != tokSlash {
		return path, nil
	}
	p.advance()
	if path.Segments, err = p.parseSegments(true); err != nil {
		return path, err
	}
	return path, nil
}

// parseSegments reads one or more slash-separated segments.
func (p *parser) parseSegments(first bool) ([]queryir.Segment, error) {
	var segs []queryir.Segment
	for first || p.peek().Kind == tokSlash {
		if !first {
			p.advance()
		}
		first = false
		label, err := p.expect(tokIdent, "path segment")
		if err != nil {
			return nil, err
		}
		seg := queryir.Segment{Label: label.Text}
		if p.peek().Kind == tokLBrack {
			p.advance()
			id := p.peek()
			if id.Kind != tokIdent && id.Kind != tokString {
				return nil, errorAt(id, "expected node id")
			}
			p.advance()
			seg.NodeID = id.Text
			if _, err := p.expect(tokRBrack, "]"); err != nil {
				return nil, err
			}
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

func (p *parser) parseOr() (queryir.Predicate, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().keyword("OR") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &queryir.Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (queryir.Predicate, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek().keyword("AND") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &queryir.And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (queryir.Predicate, error) {
	if p.peek().keyword("NOT") {
		p.advance()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &queryir.Not{Inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (queryir.Predicate, error) {
	if p.peek().Kind == tokLParen {
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if p.peek().keyword("MATCHES") {
		p.advance()
		set, err := p.parseSetOperand()
		if err != nil {
			return nil, err
		}
		return &queryir.Matches{Left: left, Set: set}, nil
	}
	op, err := p.parseCompareOp()
	if err != nil {
		return nil, err
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &queryir.Comparison{Left: left, Op: op, Right: right}, nil
}

func (p *parser) parseCompareOp() (queryir.CompareOp, error) {
	tok := p.peek()
	var op queryir.CompareOp
	switch tok.Kind {
	case tokEq:
		op = queryir.OpEq
	case tokNe:
		op = queryir.OpNe
	case tokGt:
		op = queryir.OpGt
	case tokGe:
		op = queryir.OpGe
	case tokLt:
		op = queryir.OpLt
	case tokLe:
		op = queryir.OpLe
	default:
		return 0, errorAt(tok, "expected comparison operator or MATCHES")
	}
	p.advance()
	return op, nil
}

func (p *parser) parseOperand() (queryir.Operand, error) {
	tok := p.peek()
	switch {
	case tok.Kind == tokParam:
		p.advance()
		return p.param(tok), nil
	case tok.Kind == tokString, tok.Kind == tokNumber, isLiteralKeyword(tok):
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return &queryir.Literal{Value: v}, nil
	case tok.Kind == tokIdent:
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		return &queryir.PathRef{Path: path}, nil
	default:
		return nil, errorAt(tok, "expected path, literal or parameter")
	}
}

// parseValueOperand reads the right-hand side of a node filter.
func (p *parser) parseValueOperand() (queryir.Operand, error) {
	tok := p.peek()
	if tok.Kind == tokParam {
		p.advance()
		return p.param(tok), nil
	}
	v, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return &queryir.Literal{Value: v}, nil
}

func (p *parser) parseSetOperand() (queryir.Operand, error) {
	tok := p.peek()
	switch tok.Kind {
	case tokParam:
		p.advance()
		return p.param(tok), nil
	case tokLBrace:
		return p.parseSetLiteral()
	default:
		return nil, errorAt(tok, "expected {value set} or $parameter after MATCHES")
	}
}

func (p *parser) parseSetLiteral() (*queryir.SetLiteral, error) {
	if _, err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}
	set := &queryir.SetLiteral{Values: []ir.Value{}}
	if p.peek().Kind == tokRBrace {
		p.advance()
		return set, nil
	}
	for {
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		set.Values = append(set.Values, v)
		tok := p.advance()
		switch tok.Kind {
		case tokComma:
			continue
		case tokRBrace:
			return set, nil
		default:
			return nil, errorAt(tok, "expected , or }")
		}
	}
}

func (p *parser) parseLiteral() (ir.Value, error) {
	tok := p.peek()
	switch {
	case tok.Kind == tokString:
		p.advance()
		return ir.String(tok.Text), nil
	case tok.Kind == tokNumber:
		p.advance()
		n, err := ir.NewNumber(tok.Text)
		if err != nil {
			return nil, errorAt(tok, "invalid number")
		}
		return n, nil
	case tok.keyword("true"):
		p.advance()
		return ir.Bool(true), nil
	case tok.keyword("false"):
		p.advance()
		return ir.Bool(false), nil
	case tok.keyword("null"):
		p.advance()
		return ir.Null{}, nil
	default:
		return nil, errorAt(tok, "expected literal value")
	}
}

func (p *parser) parseOrderBy() ([]queryir.OrderItem, error) {
	var items []queryir.OrderItem
	for {
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		item := queryir.OrderItem{Path: path}
		switch tok := p.peek(); {
		case tok.keyword("DESC"), tok.keyword("DESCENDING"):
			p.advance()
			item.Descending = true
		case tok.keyword("ASC"), tok.keyword("ASCENDING"):
			p.advance()
		}
		items = append(items, item)
		if p.peek().Kind != tokComma {
			return items, nil
		}
		p.advance()
	}
}

func (p *parser) parseCount(clause string) (*int, error) {
	tok := p.peek()
	n, err := strconv.Atoi(tok.Text)
	if tok.Kind != tokNumber || err != nil || n < 0 {
		return nil, errorAt(tok, "%s expects a non-negative integer", clause)
	}
	p.advance()
	return &n, nil
}

// param records a parameter reference in order of first appearance.
func (p *parser) param(tok token) *queryir.Param {
	if !p.seen[tok.Text] {
		p.seen[tok.Text] = true
		p.params = append(p.params, tok.Text)
	}
	return &queryir.Param{Name: tok.Text, Pos: tok.Pos}
}

func isCompareKind(k tokenKind) bool {
	switch k {
	case tokEq, tokNe, tokGt, tokGe, tokLt, tokLe:
		return true
	}
	return false
}

func isLiteralKeyword(tok token) bool {
	return tok.keyword("true") || tok.keyword("false") || tok.keyword("null")
}

func startsOperand(tok token) bool {
	switch tok.Kind {
	case tokString, tokNumber, tokParam, tokLParen:
		return true
	case tokIdent:
		return !isReserved(tok.Text) || isLiteralKeyword(tok) || tok.keyword("NOT")
	}
	return false
}

// isRMType reports whether s is an upper-cased RM type name such as
// OBSERVATION or EHR_STATUS.
func isRMType(s string) bool {
	if s == "" || s[0] < 'A' || s[0] > 'Z' {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '_' {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Name resolution
// ---------------------------------------------------------------------------

// resolveNames checks that every path starts at a declared variable, and
// rewrites WHERE and ORDER BY paths that start at a SELECT alias.
func resolveNames(q *queryir.Query) error {
	declared := make(map[string]bool)
	for _, s := range q.From {
		if s.Var != "" {
			declared[s.Var] = true
		}
	}
	aliased := make(map[string]queryir.Path)
	for _, item := range q.Select {
		if !declared[item.Path.Var] {
			return undeclared(item.Path)
		}
		if item.Alias != "" {
			aliased[item.Alias] = item.Path
		}
	}

	rewrite := func(path *queryir.Path) error {
		if declared[path.Var] {
			return nil
		}
		target, ok := aliased[path.Var]
		if !ok {
			return undeclared(*path)
		}
		path.Var = target.Var
		path.Segments = append(slices.Clone(target.Segments), path.Segments...)
		return nil
	}

	var err error
	queryir.WalkPredicate(q.Where, func(pred queryir.Predicate) {
		if err != nil {
			return
		}
		switch n := pred.(type) {
		case *queryir.Comparison:
			if err = rewriteOperand(n.Left, rewrite); err == nil {
				err = rewriteOperand(n.Right, rewrite)
			}
		case *queryir.Matches:
			err = rewriteOperand(n.Left, rewrite)
		}
	})
	if err != nil {
		return err
	}
	for i := range q.OrderBy {
		if err := rewrite(&q.OrderBy[i].Path); err != nil {
			return err
		}
	}
	return nil
}

func rewriteOperand(o queryir.Operand, rewrite func(*queryir.Path) error) error {
	if ref, ok := o.(*queryir.PathRef); ok {
		return rewrite(&ref.Path)
	}
	return nil
}

func undeclared(path queryir.Path) *SyntaxError {
	return &SyntaxError{Pos: path.Pos, Token: path.Var, Message: "undeclared variable " + strconv.Quote(path.Var)}
}
