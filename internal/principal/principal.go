// Package principal adapts the directory resolvers to the protocol
// server's principal-lookup contract. Principals are transient records
// derived from directory users and groups; within the combined
// namespace a user always shadows a group of the same name.
package principal

import (
	"errors"

	"github.com/sonroyaalmerol/ldap-principals/internal/directory"
)

// Namespaced property keys of the principal record contract.
const (
	PropDisplayName = "{DAV:}displayname"
	PropEmail       = "{http://sabredav.org/ns}email-address"
)

// Fixed proxy-child principal names for delegated calendar access.
const (
	ProxyRead  = "calendar-proxy-read"
	ProxyWrite = "calendar-proxy-write"
)

var (
	// ErrNotFound is the hard failure for membership queries against a
	// name matching neither a user nor a group. Listing and lookup
	// paths never raise it; they fold absence into empty results.
	ErrNotFound = errors.New("principal not found")

	// ErrForbidden guards every mutation entry point: the directory is
	// read-only through this interface.
	ErrForbidden = errors.New("principal backend is read-only")
)

// Principal is a derived record, never stored.
type Principal struct {
	URI         string
	DisplayName string
	Email       string
}

// Props renders the record as the protocol's property mapping. The uri
// key is always present; the others only when set.
func (p Principal) Props() map[string]string {
	m := map[string]string{"uri": p.URI}
	if p.DisplayName != "" {
		m[PropDisplayName] = p.DisplayName
	}
	if p.Email != "" {
		m[PropEmail] = p.Email
	}
	return m
}

func fromUser(prefix string, u *directory.User) Principal {
	return Principal{
		URI:         prefix + "/" + u.Name,
		DisplayName: u.DisplayName,
		Email:       u.Mail,
	}
}

func fromGroup(prefix string, g *directory.Group) Principal {
	return Principal{
		URI:         prefix + "/" + g.Name,
		DisplayName: g.Description,
	}
}
