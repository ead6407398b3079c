package principal

import (
	"context"
	"testing"
	"time"

	"github.com/sonroyaalmerol/ldap-principals/internal/config"
	"github.com/sonroyaalmerol/ldap-principals/internal/directory"
	"github.com/sonroyaalmerol/ldap-principals/internal/directory/directorytest"
	"github.com/sonroyaalmerol/ldap-principals/internal/directory/filter"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLDAPConfig() config.LDAPConfig {
	return config.LDAPConfig{
		BaseDN:           "dc=example,dc=com",
		UserBaseDN:       "ou=users,dc=example,dc=com",
		GroupBaseDN:      "ou=groups,dc=example,dc=com",
		UserObjectClass:  "inetOrgPerson",
		GroupObjectClass: "groupOfNames",
		UserNameAttr:     "uid",
		UserDisplayAttr:  "cn",
		UserMailAttr:     "mail",
		GroupNameAttr:    "cn",
		GroupDescAttr:    "description",
		MemberOfAttr:     "memberOf",
		Timeout:          time.Second,
	}
}

const davAccessDN = "cn=dav-access,ou=groups,dc=example,dc=com"

func userEntry(uid, cn, mail string, memberOf ...string) *ldap.Entry {
	return ldap.NewEntry("uid="+uid+",ou=users,dc=example,dc=com", map[string][]string{
		"objectClass": {"inetOrgPerson"},
		"uid":         {uid},
		"cn":          {cn},
		"mail":        {mail},
		"memberOf":    memberOf,
	})
}

func groupEntry(cn, description string, memberOf ...string) *ldap.Entry {
	return ldap.NewEntry("cn="+cn+",ou=groups,dc=example,dc=com", map[string][]string{
		"objectClass": {"groupOfNames"},
		"cn":          {cn},
		"description": {description},
		"memberOf":    memberOf,
	})
}

func newTestBackend(sess directory.Session, allowed []string) *Backend {
	cfg := testLDAPConfig()
	logger := zerolog.Nop()
	return NewBackend(sess, directory.NewUsers(cfg, logger), directory.NewGroups(cfg, logger), allowed, logger)
}

func nestedFixture() *directorytest.FakeSession {
	return &directorytest.FakeSession{Entries: []*ldap.Entry{
		groupEntry("dav-access", "DAV users"),
		groupEntry("accounting", "Accounting", davAccessDN),
		groupEntry("human-resources", "Human Resources", davAccessDN),
		groupEntry("unrelated", "Unrelated team"),
		userEntry("benedict", "Benedict", "benedict@example.com",
			"cn=accounting,ou=groups,dc=example,dc=com", davAccessDN),
		userEntry("leo", "Leo", "leo@example.com",
			"cn=human-resources,ou=groups,dc=example,dc=com", davAccessDN),
		userEntry("michael", "Michael", "michael@example.com", davAccessDN),
		userEntry("outsider", "Outsider", "outsider@example.com",
			"cn=unrelated,ou=groups,dc=example,dc=com"),
	}}
}

func uris(ps []Principal) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.URI)
	}
	return out
}

func TestListPrincipalsNestedAllowList(t *testing.T) {
	b := newTestBackend(nestedFixture(), []string{"dav-access"})

	ps, err := b.ListPrincipals(context.Background(), "principals")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"principals/benedict",
		"principals/leo",
		"principals/michael",
		"principals/dav-access",
		"principals/accounting",
		"principals/human-resources",
	}, uris(ps))
}

func TestListPrincipalsUserShadowsGroup(t *testing.T) {
	sess := nestedFixture()
	// a group sharing a user's name must be suppressed
	sess.Entries = append(sess.Entries, groupEntry("leo", "Leo's team", davAccessDN))
	b := newTestBackend(sess, []string{"dav-access"})

	ps, err := b.ListPrincipals(context.Background(), "principals")
	require.NoError(t, err)

	var leo []Principal
	for _, p := range ps {
		if p.URI == "principals/leo" {
			leo = append(leo, p)
		}
	}
	require.Len(t, leo, 1)
	assert.Equal(t, "leo@example.com", leo[0].Email)
}

func TestListPrincipalsUnknownPrefix(t *testing.T) {
	b := newTestBackend(nestedFixture(), nil)

	ps, err := b.ListPrincipals(context.Background(), "calendars")
	require.NoError(t, err)
	assert.Empty(t, ps)
}

func TestGetPrincipalByPath(t *testing.T) {
	sess := nestedFixture()
	sess.Entries = append(sess.Entries, groupEntry("leo", "Leo's team", davAccessDN))
	b := newTestBackend(sess, []string{"dav-access"})
	ctx := context.Background()

	p, err := b.GetPrincipalByPath(ctx, "principals/leo")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "principals/leo", p.URI)
	assert.Equal(t, "Leo", p.DisplayName)
	assert.Equal(t, "leo@example.com", p.Email)

	p, err = b.GetPrincipalByPath(ctx, "principals/accounting")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Accounting", p.DisplayName)
	assert.Empty(t, p.Email)

	p, err = b.GetPrincipalByPath(ctx, "principals/nobody")
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = b.GetPrincipalByPath(ctx, "wrong/leo")
	require.NoError(t, err)
	assert.Nil(t, p)

	// empty segments are discarded
	p, err = b.GetPrincipalByPath(ctx, "/principals//leo/")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "principals/leo", p.URI)
}

func TestGetPrincipalByPathProxyChildren(t *testing.T) {
	b := newTestBackend(nestedFixture(), []string{"dav-access"})
	ctx := context.Background()

	p, err := b.GetPrincipalByPath(ctx, "principals/leo/calendar-proxy-read")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "principals/leo/calendar-proxy-read", p.URI)
	assert.Empty(t, p.DisplayName)
	assert.Empty(t, p.Email)

	p, err = b.GetPrincipalByPath(ctx, "principals/leo/calendar-proxy-write")
	require.NoError(t, err)
	require.NotNil(t, p)

	p, err = b.GetPrincipalByPath(ctx, "principals/leo/other-child")
	require.NoError(t, err)
	assert.Nil(t, p)

	// parent must exist
	p, err = b.GetPrincipalByPath(ctx, "principals/nobody/calendar-proxy-read")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSearchPrincipals(t *testing.T) {
	b := newTestBackend(nestedFixture(), []string{"dav-access"})
	ctx := context.Background()

	got, err := b.SearchPrincipals(ctx, "principals",
		map[string]string{PropDisplayName: "le"}, filter.AllOf)
	require.NoError(t, err)
	assert.Equal(t, []string{"principals/leo"}, got)

	// email search applies to users only, groups have none
	got, err = b.SearchPrincipals(ctx, "principals",
		map[string]string{PropEmail: "benedict@example.com"}, filter.AllOf)
	require.NoError(t, err)
	assert.Equal(t, []string{"principals/benedict"}, got)

	_, err = b.SearchPrincipals(ctx, "principals",
		map[string]string{"unknown-prop": "x"}, filter.AllOf)
	require.ErrorIs(t, err, filter.ErrUnknownProperty)

	// depth dispatch is clean: deeper prefixes yield nothing
	got, err = b.SearchPrincipals(ctx, "principals/leo",
		map[string]string{PropDisplayName: "le"}, filter.AllOf)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchPrincipalsUserShadowsGroup(t *testing.T) {
	sess := nestedFixture()
	// the group matches the search, the same-named user does not; the
	// name is still owned by the user, so the group stays suppressed
	sess.Entries = append(sess.Entries,
		userEntry("leontes", "Winter King", "leontes@example.com", davAccessDN),
		groupEntry("leontes", "Sicilia", davAccessDN),
	)
	b := newTestBackend(sess, []string{"dav-access"})

	got, err := b.SearchPrincipals(context.Background(), "principals",
		map[string]string{PropDisplayName: "le"}, filter.AllOf)
	require.NoError(t, err)
	assert.Equal(t, []string{"principals/leo"}, got)
}

func TestFindByURI(t *testing.T) {
	b := newTestBackend(nestedFixture(), []string{"dav-access"})
	ctx := context.Background()

	uri, err := b.FindByURI(ctx, "mailto:leo@example.com")
	require.NoError(t, err)
	assert.Equal(t, "principals/leo", uri)

	uri, err = b.FindByURI(ctx, "mailto:ghost@example.com")
	require.NoError(t, err)
	assert.Empty(t, uri)

	uri, err = b.FindByURI(ctx, "principals/michael")
	require.NoError(t, err)
	assert.Equal(t, "principals/michael", uri)

	uri, err = b.FindByURI(ctx, "calendars/michael")
	require.NoError(t, err)
	assert.Empty(t, uri)
}

func TestFindByURISecondaryMail(t *testing.T) {
	sess := nestedFixture()
	sess.Entries = append(sess.Entries, ldap.NewEntry("uid=hermione,ou=users,dc=example,dc=com", map[string][]string{
		"objectClass": {"inetOrgPerson"},
		"uid":         {"hermione"},
		"cn":          {"Hermione"},
		"mail":        {"hermione@example.com", "h.granger@example.com"},
		"memberOf":    {davAccessDN},
	}))
	b := newTestBackend(sess, []string{"dav-access"})

	uri, err := b.FindByURI(context.Background(), "mailto:h.granger@example.com")
	require.NoError(t, err)
	assert.Equal(t, "principals/hermione", uri)
}

func TestGroupMemberSet(t *testing.T) {
	b := newTestBackend(nestedFixture(), []string{"dav-access"})
	ctx := context.Background()

	got, err := b.GroupMemberSet(ctx, "principals/accounting")
	require.NoError(t, err)
	assert.Equal(t, []string{"principals/benedict"}, got)

	// a user path has no members, and never errors
	got, err = b.GroupMemberSet(ctx, "principals/leo")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = b.GroupMemberSet(ctx, "principals/nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGroupMembership(t *testing.T) {
	b := newTestBackend(nestedFixture(), []string{"dav-access"})
	ctx := context.Background()

	got, err := b.GroupMembership(ctx, "principals/benedict")
	require.NoError(t, err)
	assert.Equal(t, []string{"principals/accounting", "principals/dav-access"}, got)

	got, err = b.GroupMembership(ctx, "principals/accounting")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = b.GroupMembership(ctx, "principals/nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMutationsAreForbidden(t *testing.T) {
	b := newTestBackend(nestedFixture(), nil)
	ctx := context.Background()

	err := b.UpdatePrincipal(ctx, "principals/leo", map[string]string{PropDisplayName: "Leonard"})
	require.ErrorIs(t, err, ErrForbidden)

	err = b.SetGroupMemberSet(ctx, "principals/accounting", []string{"principals/leo"})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestPrincipalProps(t *testing.T) {
	p := Principal{URI: "principals/leo", DisplayName: "Leo", Email: "leo@example.com"}
	assert.Equal(t, map[string]string{
		"uri":           "principals/leo",
		PropDisplayName: "Leo",
		PropEmail:       "leo@example.com",
	}, p.Props())

	proxy := Principal{URI: "principals/leo/calendar-proxy-read"}
	assert.Equal(t, map[string]string{"uri": "principals/leo/calendar-proxy-read"}, proxy.Props())
}
