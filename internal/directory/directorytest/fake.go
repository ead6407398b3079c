// Package directorytest provides an in-memory directory session for
// tests. Its evaluator covers exactly the filter grammar the resolvers
// emit: (&...), (|...), (!...), (attr=value), (attr=*) and
// (attr:caseIgnoreIA5Match:=*value*).
package directorytest

import (
	"context"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// FakeSession serves canned entries and records every filter it was
// asked to evaluate.
type FakeSession struct {
	Entries []*ldap.Entry
	Filters []string
	Fail    error
}

func (f *FakeSession) Search(ctx context.Context, base, filterStr string, attrs []string) ([]*ldap.Entry, error) {
	f.Filters = append(f.Filters, filterStr)
	if f.Fail != nil {
		return nil, f.Fail
	}
	var out []*ldap.Entry
	for _, e := range f.Entries {
		if !underBase(e.DN, base) {
			continue
		}
		if Match(filterStr, e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *FakeSession) ReadOne(ctx context.Context, dn, filterStr string, attrs []string) (*ldap.Entry, error) {
	f.Filters = append(f.Filters, filterStr)
	if f.Fail != nil {
		return nil, f.Fail
	}
	for _, e := range f.Entries {
		if strings.EqualFold(e.DN, dn) && Match(filterStr, e) {
			return e, nil
		}
	}
	return nil, nil
}

func underBase(dn, base string) bool {
	return strings.HasSuffix(strings.ToLower(dn), strings.ToLower(base))
}

// Match reports whether the entry satisfies the filter. The empty
// filter matches everything.
func Match(f string, e *ldap.Entry) bool {
	if f == "" {
		return true
	}
	ok, rest := evalNode(f, e)
	return ok && rest == ""
}

func evalNode(s string, e *ldap.Entry) (bool, string) {
	if len(s) < 2 || s[0] != '(' {
		return false, ""
	}
	switch s[1] {
	case '&', '|':
		all := s[1] == '&'
		rest := s[2:]
		result := all
		for len(rest) > 0 && rest[0] == '(' {
			var ok bool
			ok, rest = evalNode(rest, e)
			if all {
				result = result && ok
			} else {
				result = result || ok
			}
		}
		if len(rest) == 0 || rest[0] != ')' {
			return false, ""
		}
		return result, rest[1:]
	case '!':
		ok, rest := evalNode(s[2:], e)
		if len(rest) == 0 || rest[0] != ')' {
			return false, ""
		}
		return !ok, rest[1:]
	default:
		end := strings.IndexByte(s, ')')
		if end < 0 {
			return false, ""
		}
		return evalAtom(s[1:end], e), s[end+1:]
	}
}

func evalAtom(atom string, e *ldap.Entry) bool {
	if attr, val, ok := strings.Cut(atom, ":caseIgnoreIA5Match:="); ok {
		val = strings.Trim(val, "*")
		for _, v := range e.GetAttributeValues(attr) {
			if strings.Contains(strings.ToLower(v), strings.ToLower(val)) {
				return true
			}
		}
		return false
	}
	attr, val, ok := strings.Cut(atom, "=")
	if !ok {
		return false
	}
	if val == "*" {
		return len(e.GetAttributeValues(attr)) > 0
	}
	for _, v := range e.GetAttributeValues(attr) {
		if strings.EqualFold(v, val) {
			return true
		}
	}
	return false
}
