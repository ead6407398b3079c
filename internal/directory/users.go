package directory

import (
	"context"
	"strings"

	"github.com/sonroyaalmerol/ldap-principals/internal/config"
	"github.com/sonroyaalmerol/ldap-principals/internal/directory/filter"

	"github.com/rs/zerolog"
)

// Users resolves directory entries under the user base into User
// records. Authorization is enforced at query time through filter
// composition, never as a client-side post-filter.
type Users struct {
	cfg    config.LDAPConfig
	logger zerolog.Logger
}

func NewUsers(cfg config.LDAPConfig, logger zerolog.Logger) *Users {
	return &Users{cfg: cfg, logger: logger}
}

// FieldMap maps protocol search property names to user attributes.
func (r *Users) FieldMap() map[string]string {
	return map[string]string{
		"{DAV:}displayname":                     r.cfg.UserDisplayAttr,
		"{http://sabredav.org/ns}email-address": r.cfg.UserMailAttr,
	}
}

func (r *Users) baseExpr(allowedGroups []string) filter.Expr {
	return filter.And(
		filter.Eq("objectClass", r.cfg.UserObjectClass),
		filter.Present(r.cfg.UserMailAttr),
		membershipExpr(r.cfg, allowedGroups, false),
	)
}

func (r *Users) searchExpr(searchProperties map[string]string, c filter.Combinator, allowedGroups []string) (filter.Expr, error) {
	props, err := filter.PrincipalSearch(searchProperties, r.FieldMap(), c)
	if err != nil {
		return nil, err
	}
	return filter.And(r.baseExpr(allowedGroups), props), nil
}

// Search returns all users matching the given search properties within
// the allow-list scope. No match is an empty slice, not an error.
func (r *Users) Search(ctx context.Context, s Session, searchProperties map[string]string, c filter.Combinator, allowedGroups []string) ([]*User, error) {
	expr, err := r.searchExpr(searchProperties, c, allowedGroups)
	if err != nil {
		return nil, err
	}
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

// Get resolves a single user by name. Absence and exclusion by the
// allow-list are the same non-error outcome: nil, nil.
func (r *Users) Get(ctx context.Context, s Session, name string, searchProperties map[string]string, c filter.Combinator, allowedGroups []string) (*User, error) {
	expr, err := r.searchExpr(searchProperties, c, allowedGroups)
	if err != nil {
		return nil, err
	}
	e, err := s.ReadOne(ctx, userDN(r.cfg, name), filter.Render(expr), userAttrs(r.cfg))
	if err != nil {
		r.logger.Debug().Err(err).Str("user", name).Msg("user read failed, treating as absent")
		return nil, nil
	}
	if e == nil {
		return nil, nil
	}
	return userFromEntry(r.cfg, e)
}

// Memberships returns the groups the named user belongs to,
// intersected with the groups visible under the allow-list (the
// allow-listed groups themselves included). An unauthorized or unknown
// user yields an empty result.
func (r *Users) Memberships(ctx context.Context, s Session, name string, allowedGroups []string) ([]*Group, error) {
	u, err := r.Get(ctx, s, name, nil, filter.AllOf, allowedGroups)
	if err != nil {
		return nil, err
	}
	if u == nil || len(u.MemberOf) == 0 {
		return nil, nil
	}

	visibleExpr := filter.And(
		filter.Eq("objectClass", r.cfg.GroupObjectClass),
		membershipExpr(r.cfg, allowedGroups, true),
	)
	entries, err := s.Search(ctx, r.cfg.GroupBaseDN, filter.Render(visibleExpr), groupAttrs(r.cfg))
	if err != nil {
		return nil, err
	}
	visible := make(map[string]*Group, len(entries))
	for _, e := range entries {
		g, err := groupFromEntry(r.cfg, e)
		if err != nil {
			return nil, err
		}
		visible[strings.ToLower(e.DN)] = g
	}

	var out []*Group
	for _, dn := range u.MemberOf {
		if g, ok := visible[strings.ToLower(dn)]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}
