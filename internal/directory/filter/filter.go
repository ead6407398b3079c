// Package filter builds LDAP search filters (RFC 4515) from a small
// expression algebra instead of ad-hoc string concatenation. Expressions
// compose: the result of one combination is a valid operand for an outer
// one, and empty operands vanish rather than matching everything.
package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// Combinator selects how sibling conditions are joined.
type Combinator string

const (
	AllOf Combinator = "allof"
	AnyOf Combinator = "anyof"
)

var errBadCombinator = errors.New("unknown combinator")

// Expr is a filter expression node. A nil Expr renders to the empty
// string, which callers must treat as "no constraint" and omit.
type Expr interface {
	render(b *strings.Builder)
}

type atom struct {
	s string
}

func (a atom) render(b *strings.Builder) { b.WriteString(a.s) }

type junction struct {
	op   byte // '&' or '|'
	kids []Expr
}

func (j junction) render(b *strings.Builder) {
	switch len(j.kids) {
	case 0:
	case 1:
		j.kids[0].render(b)
	default:
		b.WriteByte('(')
		b.WriteByte(j.op)
		for _, k := range j.kids {
			k.render(b)
		}
		b.WriteByte(')')
	}
}

type negation struct {
	kid Expr
}

func (n negation) render(b *strings.Builder) {
	var inner strings.Builder
	n.kid.render(&inner)
	if inner.Len() == 0 {
		return
	}
	b.WriteString("(!")
	b.WriteString(inner.String())
	b.WriteByte(')')
}

// group carries a flat run of conditions that inline into an enclosing
// junction, the shape produced by attribute/value pair lists.
type group struct {
	kids []Expr
}

func (g group) render(b *strings.Builder) {
	// standalone render only makes sense for a single atom; larger
	// groups must be combined first
	junction{op: '&', kids: g.kids}.render(b)
}

// Render serializes an expression to LDAP filter syntax. Nil and
// all-empty expressions render as "".
func Render(e Expr) string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	e.render(&b)
	return b.String()
}

func flatten(exprs []Expr) []Expr {
	var out []Expr
	for _, e := range exprs {
		switch v := e.(type) {
		case nil:
			continue
		case group:
			out = append(out, flatten(v.kids)...)
		case junction:
			if len(v.kids) == 0 {
				continue
			}
			out = append(out, v)
		default:
			if Render(v) == "" {
				continue
			}
			out = append(out, v)
		}
	}
	return out
}

// And joins conditions so that all must hold. Empty conditions are
// skipped; zero survivors render as "", a single survivor renders bare.
func And(exprs ...Expr) Expr {
	return junction{op: '&', kids: flatten(exprs)}
}

// Or joins conditions so that any one suffices.
func Or(exprs ...Expr) Expr {
	return junction{op: '|', kids: flatten(exprs)}
}

// Not negates a condition. Negating an empty condition yields "".
func Not(e Expr) Expr {
	if e == nil {
		return nil
	}
	return negation{kid: e}
}

// Combine dispatches to And or Or by combinator name.
func Combine(c Combinator, exprs ...Expr) (Expr, error) {
	switch c {
	case AllOf:
		return And(exprs...), nil
	case AnyOf:
		return Or(exprs...), nil
	default:
		return nil, fmt.Errorf("%w: %q", errBadCombinator, string(c))
	}
}

// Eq is an attribute equality atom. The value is filter-escaped.
func Eq(attr, value string) Expr {
	if attr == "" {
		return nil
	}
	return atom{s: "(" + attr + "=" + ldap.EscapeFilter(value) + ")"}
}

// Present matches entries that carry the attribute at all.
func Present(attr string) Expr {
	if attr == "" {
		return nil
	}
	return atom{s: "(" + attr + "=*)"}
}

// Contains is a case-insensitive substring match via the
// caseIgnoreIA5Match extensible rule, wrapping the value in wildcards.
func Contains(attr, value string) Expr {
	if attr == "" {
		return nil
	}
	return atom{s: "(" + attr + ":caseIgnoreIA5Match:=*" + ldap.EscapeFilter(value) + "*)"}
}

// Raw wraps a pre-rendered predicate, adding parentheses when the
// caller left them off. Empty input yields an empty expression.
func Raw(s string) Expr {
	if s == "" {
		return nil
	}
	if !strings.HasPrefix(s, "(") {
		s = "(" + s + ")"
	}
	return atom{s: s}
}

// Pairs turns a flat attribute/value list into a run of equality atoms
// that inline into an enclosing And/Or. An odd trailing key is ignored.
func Pairs(kv ...string) Expr {
	var kids []Expr
	for i := 0; i+1 < len(kv); i += 2 {
		kids = append(kids, Eq(kv[i], kv[i+1]))
	}
	if len(kids) == 0 {
		return nil
	}
	return group{kids: kids}
}
