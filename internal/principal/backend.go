package principal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sonroyaalmerol/ldap-principals/internal/directory"
	"github.com/sonroyaalmerol/ldap-principals/internal/directory/filter"

	"github.com/rs/zerolog"
)

// Backend is a state-free adapter between principal paths and the
// directory resolvers. All visibility decisions are delegated to the
// resolvers' allow-list gating; directory failures fold into empty
// results on read paths.
type Backend struct {
	sess    directory.Session
	users   *directory.Users
	groups  *directory.Groups
	allowed []string
	prefix  string
	logger  zerolog.Logger
}

func NewBackend(sess directory.Session, users *directory.Users, groups *directory.Groups, allowedGroups []string, logger zerolog.Logger) *Backend {
	if len(allowedGroups) == 0 {
		logger.Warn().Msg("no allowed groups configured: every directory user and group is visible, which is expensive on large directories")
	}
	return &Backend{
		sess:    sess,
		users:   users,
		groups:  groups,
		allowed: allowedGroups,
		prefix:  DefaultPrefix,
		logger:  logger,
	}
}

// ListPrincipals returns every visible principal under the prefix
// path, users first, suppressing any group whose name collides with a
// user. Unknown prefixes yield empty results, not errors.
func (b *Backend) ListPrincipals(ctx context.Context, prefixPath string) ([]Principal, error) {
	segs := splitPath(prefixPath)
	if len(segs) != 1 || segs[0] != b.prefix {
		return nil, nil
	}

	users, err := b.users.Search(ctx, b.sess, nil, filter.AllOf, b.allowed)
	if err != nil {
		b.logger.Error().Err(err).Msg("user listing failed, returning empty")
		return nil, nil
	}
	groups, err := b.groups.Search(ctx, b.sess, nil, filter.AllOf, b.allowed)
	if err != nil {
		b.logger.Error().Err(err).Msg("group listing failed, returning empty")
		groups = nil
	}

	seen := make(map[string]struct{}, len(users))
	out := make([]Principal, 0, len(users)+len(groups))
	for _, u := range users {
		if _, dup := seen[u.Name]; dup {
			continue
		}
		seen[u.Name] = struct{}{}
		out = append(out, fromUser(b.prefix, u))
	}
	for _, g := range groups {
		if _, dup := seen[g.Name]; dup {
			continue
		}
		seen[g.Name] = struct{}{}
		out = append(out, fromGroup(b.prefix, g))
	}
	return out, nil
}

// GetPrincipalByPath resolves a single principal. Depth two is a name
// lookup with the user shadowing any same-named group; depth three is
// a proxy-child principal whose parent must exist. Anything else is
// absent.
func (b *Backend) GetPrincipalByPath(ctx context.Context, path string) (*Principal, error) {
	segs := splitPath(path)
	if len(segs) == 0 || segs[0] != b.prefix {
		return nil, nil
	}
	switch len(segs) {
	case 2:
		return b.getByName(ctx, segs[1])
	case 3:
		if segs[2] != ProxyRead && segs[2] != ProxyWrite {
			return nil, nil
		}
		parent, err := b.getByName(ctx, segs[1])
		if err != nil || parent == nil {
			return nil, err
		}
		return &Principal{URI: parent.URI + "/" + segs[2]}, nil
	default:
		return nil, nil
	}
}

func (b *Backend) getByName(ctx context.Context, name string) (*Principal, error) {
	u, err := b.users.Get(ctx, b.sess, name, nil, filter.AllOf, b.allowed)
	if err != nil {
		return nil, err
	}
	if u != nil {
		p := fromUser(b.prefix, u)
		return &p, nil
	}
	g, err := b.groups.Get(ctx, b.sess, name, nil, filter.AllOf, b.allowed)
	if err != nil {
		return nil, err
	}
	if g != nil {
		p := fromGroup(b.prefix, g)
		return &p, nil
	}
	return nil, nil
}

// SearchPrincipals returns the URIs of principals matching the search
// properties under the prefix path. Only the depth-one prefix yields
// results; deeper paths are empty by deliberate, non-fallthrough
// dispatch. A property with no attribute mapping anywhere fails the
// whole call.
func (b *Backend) SearchPrincipals(ctx context.Context, prefixPath string, searchProperties map[string]string, c filter.Combinator) ([]string, error) {
	segs := splitPath(prefixPath)
	if len(segs) != 1 || segs[0] != b.prefix {
		return nil, nil
	}
	if len(searchProperties) == 0 {
		principals, err := b.ListPrincipals(ctx, prefixPath)
		if err != nil {
			return nil, err
		}
		uris := make([]string, 0, len(principals))
		for _, p := range principals {
			uris = append(uris, p.URI)
		}
		return uris, nil
	}

	userMap := b.users.FieldMap()
	groupMap := b.groups.FieldMap()
	userSearchable, groupSearchable := true, true
	for name := range searchProperties {
		_, inUsers := userMap[name]
		_, inGroups := groupMap[name]
		if !inUsers && !inGroups {
			return nil, fmt.Errorf("%w: %s", filter.ErrUnknownProperty, name)
		}
		userSearchable = userSearchable && inUsers
		groupSearchable = groupSearchable && inGroups
	}

	var uris []string
	seen := make(map[string]struct{})
	if userSearchable {
		users, err := b.users.Search(ctx, b.sess, searchProperties, c, b.allowed)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			seen[u.Name] = struct{}{}
			uris = append(uris, b.prefix+"/"+u.Name)
		}
	}
	if groupSearchable {
		groups, err := b.groups.Search(ctx, b.sess, searchProperties, c, b.allowed)
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			if _, dup := seen[g.Name]; dup {
				continue
			}
			// The name may be owned by a user that did not match the
			// search; such a group stays suppressed here too.
			u, err := b.users.Get(ctx, b.sess, g.Name, nil, filter.AllOf, b.allowed)
			if err != nil {
				return nil, err
			}
			if u != nil {
				continue
			}
			uris = append(uris, b.prefix+"/"+g.Name)
		}
	}
	return uris, nil
}

// FindByURI maps a mailto: URI to the matching user principal, and any
// other URI through path lookup after verifying the prefix. Misses
// return the empty string.
func (b *Backend) FindByURI(ctx context.Context, uri string) (string, error) {
	if addr, ok := strings.CutPrefix(uri, "mailto:"); ok {
		if addr == "" {
			return "", nil
		}
		users, err := b.users.Search(ctx, b.sess,
			map[string]string{PropEmail: addr}, filter.AllOf, b.allowed)
		if err != nil {
			if errors.Is(err, filter.ErrUnknownProperty) {
				return "", err
			}
			b.logger.Error().Err(err).Msg("mail lookup failed, returning empty")
			return "", nil
		}
		for _, u := range users {
			for _, mail := range u.Mails {
				if strings.EqualFold(mail, addr) {
					return b.prefix + "/" + u.Name, nil
				}
			}
		}
		return "", nil
	}

	segs := splitPath(uri)
	if len(segs) == 0 || segs[0] != b.prefix {
		return "", nil
	}
	p, err := b.GetPrincipalByPath(ctx, uri)
	if err != nil || p == nil {
		return "", err
	}
	return p.URI, nil
}

// GroupMemberSet returns the member principal URIs of a group path. A
// user principal has no members and yields an empty set; a name that
// is neither user nor group is a hard ErrNotFound.
func (b *Backend) GroupMemberSet(ctx context.Context, path string) ([]string, error) {
	name, ok := b.leafName(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	u, err := b.users.Get(ctx, b.sess, name, nil, filter.AllOf, b.allowed)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return []string{}, nil
	}

	g, err := b.groups.Get(ctx, b.sess, name, nil, filter.AllOf, b.allowed)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	members, err := b.groups.Members(ctx, b.sess, name, b.allowed)
	if err != nil {
		return nil, err
	}
	uris := make([]string, 0, len(members))
	for _, m := range members {
		uris = append(uris, b.prefix+"/"+m.Name)
	}
	return uris, nil
}

// GroupMembership returns the group principal URIs a user path belongs
// to. A group principal has no memberships and yields an empty set; an
// unknown name is a hard ErrNotFound.
func (b *Backend) GroupMembership(ctx context.Context, path string) ([]string, error) {
	name, ok := b.leafName(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	u, err := b.users.Get(ctx, b.sess, name, nil, filter.AllOf, b.allowed)
	if err != nil {
		return nil, err
	}
	if u != nil {
		groups, err := b.users.Memberships(ctx, b.sess, name, b.allowed)
		if err != nil {
			return nil, err
		}
		uris := make([]string, 0, len(groups))
		for _, g := range groups {
			uris = append(uris, b.prefix+"/"+g.Name)
		}
		return uris, nil
	}

	g, err := b.groups.Get(ctx, b.sess, name, nil, filter.AllOf, b.allowed)
	if err != nil {
		return nil, err
	}
	if g != nil {
		return []string{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
}

// UpdatePrincipal always refuses: principal data lives in the
// directory and is read-only through this interface.
func (b *Backend) UpdatePrincipal(ctx context.Context, path string, props map[string]string) error {
	return ErrForbidden
}

// SetGroupMemberSet always refuses, for the same reason.
func (b *Backend) SetGroupMemberSet(ctx context.Context, path string, members []string) error {
	return ErrForbidden
}

func (b *Backend) leafName(path string) (string, bool) {
	segs := splitPath(path)
	if len(segs) != 2 || segs[0] != b.prefix {
		return "", false
	}
	return segs[1], true
}
