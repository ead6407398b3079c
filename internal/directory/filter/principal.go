package filter

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownProperty reports a search property with no directory
// attribute mapping. It must fail the whole query and surface to the
// client as a bad request, never as a silent skip.
var ErrUnknownProperty = errors.New("unknown search property")

// PrincipalSearch translates protocol-level property/value search pairs
// into substring conditions against mapped directory attributes.
// Property names are resolved through fieldMap; an unmapped name fails
// with ErrUnknownProperty. Properties are processed in sorted order so
// the rendered filter is deterministic.
func PrincipalSearch(searchProperties map[string]string, fieldMap map[string]string, c Combinator) (Expr, error) {
	if len(searchProperties) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(searchProperties))
	for name := range searchProperties {
		names = append(names, name)
	}
	sort.Strings(names)

	conds := make([]Expr, 0, len(names))
	for _, name := range names {
		attr, ok := fieldMap[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, name)
		}
		conds = append(conds, Contains(attr, searchProperties[name]))
	}
	return Combine(c, conds...)
}
