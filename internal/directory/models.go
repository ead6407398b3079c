package directory

import (
	"fmt"

	"github.com/sonroyaalmerol/ldap-principals/internal/config"

	"github.com/go-ldap/ldap/v3"
)

// User is an immutable record mapped from a directory entry. The mail
// attribute is required for an entry to count as a user at all; Mail
// holds its first value, Mails all of them.
type User struct {
	Name        string
	DisplayName string
	Mail        string
	Mails       []string
	DN          string
	MemberOf    []string
}

// Group is an immutable record mapped from a directory entry.
type Group struct {
	Name        string
	Description string
	DN          string
}

func userFromEntry(cfg config.LDAPConfig, e *ldap.Entry) (*User, error) {
	name := e.GetAttributeValue(cfg.UserNameAttr)
	if name == "" {
		return nil, fmt.Errorf("entry %s has no %s attribute", e.DN, cfg.UserNameAttr)
	}
	mails := e.GetAttributeValues(cfg.UserMailAttr)
	if len(mails) == 0 || mails[0] == "" {
		return nil, fmt.Errorf("entry %s has no %s attribute", e.DN, cfg.UserMailAttr)
	}
	display := e.GetAttributeValue(cfg.UserDisplayAttr)
	if display == "" {
		display = name
	}
	return &User{
		Name:        name,
		DisplayName: display,
		Mail:        mails[0],
		Mails:       mails,
		DN:          e.DN,
		MemberOf:    e.GetAttributeValues(cfg.MemberOfAttr),
	}, nil
}

func groupFromEntry(cfg config.LDAPConfig, e *ldap.Entry) (*Group, error) {
	name := e.GetAttributeValue(cfg.GroupNameAttr)
	if name == "" {
		return nil, fmt.Errorf("entry %s has no %s attribute", e.DN, cfg.GroupNameAttr)
	}
	desc := e.GetAttributeValue(cfg.GroupDescAttr)
	if desc == "" {
		desc = name
	}
	return &Group{
		Name:        name,
		Description: desc,
		DN:          e.DN,
	}, nil
}

func userAttrs(cfg config.LDAPConfig) []string {
	return []string{"dn", cfg.UserNameAttr, cfg.UserDisplayAttr, cfg.UserMailAttr, cfg.MemberOfAttr}
}

func groupAttrs(cfg config.LDAPConfig) []string {
	return []string{"dn", cfg.GroupNameAttr, cfg.GroupDescAttr}
}

func userDN(cfg config.LDAPConfig, name string) string {
	return cfg.UserNameAttr + "=" + ldap.EscapeDN(name) + "," + cfg.UserBaseDN
}

func groupDN(cfg config.LDAPConfig, name string) string {
	return cfg.GroupNameAttr + "=" + ldap.EscapeDN(name) + "," + cfg.GroupBaseDN
}
