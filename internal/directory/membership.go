package directory

import (
	"github.com/sonroyaalmerol/ldap-principals/internal/config"
	"github.com/sonroyaalmerol/ldap-principals/internal/directory/filter"
)

// membershipExpr builds the allow-list gate: an entry passes when its
// membership attribute references any allow-listed group's DN, or, with
// includeSelf, when the entry is one of those groups itself. An empty
// allow-list yields no constraint at all.
//
// Only direct membership-attribute matches are checked here; nested
// reachability relies on the directory already reflecting indirect
// membership in that attribute.
func membershipExpr(cfg config.LDAPConfig, groups []string, includeSelf bool) filter.Expr {
	var conds []filter.Expr
	for _, g := range groups {
		if g == "" {
			continue
		}
		conds = append(conds, filter.Eq(cfg.MemberOfAttr, groupDN(cfg, g)))
		if includeSelf {
			conds = append(conds, filter.Eq(cfg.GroupNameAttr, g))
		}
	}
	return filter.Or(conds...)
}
