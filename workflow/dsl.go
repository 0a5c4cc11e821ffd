package workflow

import (
	"strings"
	"unicode/utf8"
)

// Dependencies maps a node ID to its prerequisite node IDs. Prerequisites
// keep first-declaration order and contain no duplicates. Nodes absent from
// the map are roots.
type Dependencies map[string][]string

// Edge is a single dependency: To depends on From.
type Edge struct {
	From string
	To   string
}

// Add records that target depends on prereq, ignoring duplicates.
func (d Dependencies) Add(target, prereq string) {
	for _, p := range d[target] {
		if p == prereq {
			return
		}
	}
	d[target] = append(d[target], prereq)
}

// Clone returns a deep copy.
func (d Dependencies) Clone() Dependencies {
	out := make(Dependencies, len(d))
	for k, v := range d {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// FromEdges folds a flat edge list into a dependency map, unioning the
// prerequisite sets of each target.
func FromEdges(edges []Edge) Dependencies {
	deps := make(Dependencies)
	for _, e := range edges {
		deps.Add(e.To, e.From)
	}
	return deps
}

// ParseDSL parses a dependency expression such as "A->B, A->C, B&C->D".
//
// The grammar is
//
//	input  := clause (',' clause)*
//	clause := set ('->' set)*
//	set    := IDENT ('&' IDENT)*
//
// Every ID in a set depends on every ID in the set before it. "→" is
// accepted in place of "->". Blank input yields an empty map.
func ParseDSL(dsl string) (Dependencies, error) {
	edges, err := ParseEdges(dsl)
	if err != nil {
		return nil, err
	}
	return FromEdges(edges), nil
}

// ParseEdges parses a dependency expression into its flat edge list, in
// declaration order.
func ParseEdges(dsl string) ([]Edge, error) {
	toks, err := tokenize(dsl)
	if err != nil {
		return nil, err
	}
	p := &dslParser{input: dsl, toks: toks}
	if err := p.parseInput(); err != nil {
		return nil, err
	}
	return p.edges, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokArrow
	tokAmp
	tokComma
)

type token struct {
	kind   tokenKind
	text   string
	offset int
}

// tokenize splits the input on operators. Text between operators is trimmed
// and becomes a single identifier token.
func tokenize(input string) ([]token, error) {
	var (
		toks     []token
		segStart = 0
	)

	flush := func(end int) error {
		raw := input[segStart:end]
		text := strings.TrimSpace(raw)
		if text == "" {
			return nil
		}
		offset := segStart + strings.Index(raw, text)
		if reason := identProblem(text); reason != "" {
			return &DSLSyntaxError{Input: input, Offset: offset, Reason: reason}
		}
		toks = append(toks, token{kind: tokIdent, text: text, offset: offset})
		return nil
	}

	for i := 0; i < len(input); {
		var (
			kind  tokenKind
			width int
		)
		switch {
		case strings.HasPrefix(input[i:], "->"):
			kind, width = tokArrow, 2
		case strings.HasPrefix(input[i:], "→"):
			kind, width = tokArrow, len("→")
		case input[i] == '&':
			kind, width = tokAmp, 1
		case input[i] == ',':
			kind, width = tokComma, 1
		default:
			_, size := utf8.DecodeRuneInString(input[i:])
			i += size
			continue
		}
		if err := flush(i); err != nil {
			return nil, err
		}
		toks = append(toks, token{kind: kind, text: input[i : i+width], offset: i})
		i += width
		segStart = i
	}
	if err := flush(len(input)); err != nil {
		return nil, err
	}
	return toks, nil
}

// identProblem returns why text is not a valid node identifier, or "".
// Stray '<' '>' and leading or trailing '-' are fragments of a malformed
// arrow such as "A-->B" or "A->>B".
func identProblem(text string) string {
	switch {
	case strings.ContainsAny(text, "<>"):
		return "invalid identifier " + quote(text) + ": malformed arrow"
	case strings.HasPrefix(text, "-") || strings.HasSuffix(text, "-"):
		return "invalid identifier " + quote(text) + ": malformed arrow"
	}
	return ""
}

func quote(s string) string { return `"` + s + `"` }

type dslParser struct {
	input string
	toks  []token
	pos   int
	edges []Edge
}

func (p *dslParser) peek() token {
	if p.pos >= len(p.toks) {
		return token{kind: tokEOF, offset: len(p.input)}
	}
	return p.toks[p.pos]
}

func (p *dslParser) next() token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *dslParser) fail(offset int, reason string) error {
	return &DSLSyntaxError{Input: p.input, Offset: offset, Reason: reason}
}

func (p *dslParser) parseInput() error {
	if len(p.toks) == 0 {
		return nil
	}
	for {
		if err := p.parseClause(); err != nil {
			return err
		}
		t := p.next()
		switch t.kind {
		case tokEOF:
			return nil
		case tokComma:
			continue
		default:
			return p.fail(t.offset, "unexpected "+quote(t.text))
		}
	}
}

func (p *dslParser) parseClause() error {
	switch t := p.peek(); t.kind {
	case tokComma, tokEOF:
		return p.fail(t.offset, "empty clause")
	case tokArrow:
		return p.fail(t.offset, "arrow has no left-hand node set")
	}

	left, err := p.parseSet()
	if err != nil {
		return err
	}
	for p.peek().kind == tokArrow {
		arrow := p.next()
		if k := p.peek().kind; k != tokIdent && k != tokAmp {
			return p.fail(arrow.offset, "arrow has no right-hand node set")
		}
		right, err := p.parseSet()
		if err != nil {
			return err
		}
		for _, to := range right {
			for _, from := range left {
				p.edges = append(p.edges, Edge{From: from, To: to})
			}
		}
		left = right
	}
	return nil
}

func (p *dslParser) parseSet() ([]string, error) {
	t := p.next()
	if t.kind != tokIdent {
		return nil, p.fail(t.offset, "empty '&' member")
	}
	ids := []string{t.text}
	for p.peek().kind == tokAmp {
		amp := p.next()
		member := p.next()
		if member.kind != tokIdent {
			return nil, p.fail(amp.offset, "empty '&' member")
		}
		ids = append(ids, member.text)
	}
	return ids, nil
}
