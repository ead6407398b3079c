package directory

import (
	"context"

	"github.com/sonroyaalmerol/ldap-principals/internal/config"
	"github.com/sonroyaalmerol/ldap-principals/internal/directory/filter"

	"github.com/rs/zerolog"
)

// Groups resolves directory entries under the group base into Group
// records. Visibility follows the nearest-allowed-ancestor rule: a
// group passes when it is allow-listed itself or when its membership
// attribute references an allow-listed group.
type Groups struct {
	cfg    config.LDAPConfig
	logger zerolog.Logger
}

func NewGroups(cfg config.LDAPConfig, logger zerolog.Logger) *Groups {
	return &Groups{cfg: cfg, logger: logger}
}

// FieldMap maps protocol search property names to group attributes.
// Groups carry no email address.
func (r *Groups) FieldMap() map[string]string {
	return map[string]string{
		"{DAV:}displayname": r.cfg.GroupNameAttr,
	}
}

func (r *Groups) searchExpr(searchProperties map[string]string, c filter.Combinator, allowedGroups []string) (filter.Expr, error) {
	props, err := filter.PrincipalSearch(searchProperties, r.FieldMap(), c)
	if err != nil {
		return nil, err
	}
	return filter.And(
		filter.Eq("objectClass", r.cfg.GroupObjectClass),
		membershipExpr(r.cfg, allowedGroups, true),
		props,
	), nil
}

// Search returns all groups matching the given search properties
// within the allow-list scope.
func (r *Groups) Search(ctx context.Context, s Session, searchProperties map[string]string, c filter.Combinator, allowedGroups []string) ([]*Group, error) {
	expr, err := r.searchExpr(searchProperties, c, allowedGroups)
	if err != nil {
		return nil, err
	}
	entries, err := s.Search(ctx, r.cfg.GroupBaseDN, filter.Render(expr), groupAttrs(r.cfg))
	if err != nil {
		return nil, err
	}
	out := make([]*Group, 0, len(entries))
	for _, e := range entries {
		g, err := groupFromEntry(r.cfg, e)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// Get resolves a single group by name; nil, nil when absent or not
// visible under the allow-list.
func (r *Groups) Get(ctx context.Context, s Session, name string, searchProperties map[string]string, c filter.Combinator, allowedGroups []string) (*Group, error) {
	expr, err := r.searchExpr(searchProperties, c, allowedGroups)
	if err != nil {
		return nil, err
	}
	e, err := s.ReadOne(ctx, groupDN(r.cfg, name), filter.Render(expr), groupAttrs(r.cfg))
	if err != nil {
		r.logger.Debug().Err(err).Str("group", name).Msg("group read failed, treating as absent")
		return nil, nil
	}
	if e == nil {
		return nil, nil
	}
	return groupFromEntry(r.cfg, e)
}

// Members returns the users whose membership attribute references the
// named group's DN, further constrained by the allow-list.
func (r *Groups) Members(ctx context.Context, s Session, name string, allowedGroups []string) ([]*User, error) {
	expr := filter.And(
		filter.Eq("objectClass", r.cfg.UserObjectClass),
		filter.Present(r.cfg.UserMailAttr),
		filter.Eq(r.cfg.MemberOfAttr, groupDN(r.cfg, name)),
		membershipExpr(r.cfg, allowedGroups, false),
	)
	entries, err := s.Search(ctx, r.cfg.UserBaseDN, filter.Render(expr), userAttrs(r.cfg))
	if err != nil {
		return nil, err
	}
	out := make([]*User, 0, len(entries))
	for _, e := range entries {
		u, err := userFromEntry(r.cfg, e)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}
