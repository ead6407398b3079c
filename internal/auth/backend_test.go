package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/sonroyaalmerol/ldap-principals/internal/config"
	"github.com/sonroyaalmerol/ldap-principals/internal/directory"
	"github.com/sonroyaalmerol/ldap-principals/internal/directory/directorytest"
	"github.com/sonroyaalmerol/ldap-principals/internal/storage"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog"
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

// memStore collects provisioning calls so tests can assert on what the
// backend creates and, critically, on what it does not create twice.
type memStore struct {
	calendars []*storage.Calendar
	books     []*storage.AddressBook
	objects   []*storage.Object
	fail      error
}

func (m *memStore) Close() {}

func (m *memStore) ListCalendarsByOwner(ctx context.Context, owner string) ([]*storage.Calendar, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	var out []*storage.Calendar
	for _, c := range m.calendars {
		if c.OwnerUID == owner {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) CreateCalendar(ctx context.Context, c storage.Calendar) (*storage.Calendar, error) {
	c.ID = "cal-" + c.OwnerUID
	m.calendars = append(m.calendars, &c)
	return &c, nil
}

func (m *memStore) PutCalendarObject(ctx context.Context, o *storage.Object) error {
	m.objects = append(m.objects, o)
	return nil
}

func (m *memStore) ListAddressBooksByOwner(ctx context.Context, owner string) ([]*storage.AddressBook, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	var out []*storage.AddressBook
	for _, b := range m.books {
		if b.OwnerUID == owner {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) CreateAddressBook(ctx context.Context, a storage.AddressBook) (*storage.AddressBook, error) {
	a.ID = "book-" + a.OwnerUID
	m.books = append(m.books, &a)
	return &a, nil
}

func (m *memStore) PutAddressBookObject(ctx context.Context, o *storage.Object) error {
	m.objects = append(m.objects, o)
	return nil
}

func newTestBackend(t *testing.T, sess directory.Session, store storage.Store) *Backend {
	t.Helper()
	cfg := testLDAPConfig()
	users := directory.NewUsers(cfg, zerolog.Nop())
	var prov *Provisioner
	if store != nil {
		prov = NewProvisioner(store, zerolog.Nop())
	}
	return NewBackend("EXAMPLE", []string{"dav-access"}, sess, users, prov, zerolog.Nop())
}

func TestCheckIdentityNotSet(t *testing.T) {
	b := newTestBackend(t, &directorytest.FakeSession{}, nil)
	_, err := b.Check(context.Background(), "")
	require.ErrorIs(t, err, ErrIdentityNotSet)
}

func TestCheckRealm(t *testing.T) {
	sess := &directorytest.FakeSession{Entries: []*ldap.Entry{
		userEntry("benedict", "Benedict Cumberbatch", "benedict@example.com", davAccessDN),
	}}
	b := newTestBackend(t, sess, &memStore{})

	_, err := b.Check(context.Background(), "benedict@WRONG.REALM")
	require.ErrorIs(t, err, ErrUnknownRealm)

	uri, err := b.Check(context.Background(), "benedict@EXAMPLE")
	require.NoError(t, err)
	require.Equal(t, "principals/benedict", uri)
}

func TestCheckNotAuthorized(t *testing.T) {
	sess := &directorytest.FakeSession{Entries: []*ldap.Entry{
		userEntry("outsider", "Out Sider", "outsider@example.com", "cn=other,ou=groups,dc=example,dc=com"),
	}}
	b := newTestBackend(t, sess, nil)

	// Unknown user and user outside the allow-list are the same error.
	_, err := b.Check(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrNotAuthorized)

	_, err = b.Check(context.Background(), "outsider")
	require.ErrorIs(t, err, ErrNotAuthorized)
}

func TestCheckDirectoryFailure(t *testing.T) {
	sess := &directorytest.FakeSession{Fail: errors.New("ldap down")}
	b := newTestBackend(t, sess, nil)
	_, err := b.Check(context.Background(), "benedict")
	require.ErrorIs(t, err, ErrNotAuthorized)
}

func TestCheckProvisionsOnce(t *testing.T) {
	sess := &directorytest.FakeSession{Entries: []*ldap.Entry{
		userEntry("leo", "Leo Tolstoy", "leo@example.com", davAccessDN),
	}}
	store := &memStore{}
	b := newTestBackend(t, sess, store)

	for i := 0; i < 2; i++ {
		uri, err := b.Check(context.Background(), "leo")
		require.NoError(t, err)
		require.Equal(t, "principals/leo", uri)
	}

	require.Len(t, store.calendars, 1)
	require.Len(t, store.books, 1)
	require.Len(t, store.objects, 2)
	require.Equal(t, "default", store.calendars[0].URI)
	require.Equal(t, "default", store.books[0].URI)
	require.Contains(t, store.objects[0].Data, "BEGIN:VCALENDAR")
	require.Contains(t, store.objects[1].Data, "BEGIN:VCARD")
}

func TestCheckProvisioningFailure(t *testing.T) {
	sess := &directorytest.FakeSession{Entries: []*ldap.Entry{
		userEntry("leo", "Leo Tolstoy", "leo@example.com", davAccessDN),
	}}
	b := newTestBackend(t, sess, &memStore{fail: errors.New("store down")})
	_, err := b.Check(context.Background(), "leo")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotAuthorized)
}

type fakeChecker struct{ password string }

func (f fakeChecker) CheckPassword(ctx context.Context, username, password string) error {
	if password != f.password {
		return errors.New("invalid credentials")
	}
	return nil
}

func TestBasicAuthenticate(t *testing.T) {
	b := &Basic{Checker: fakeChecker{password: "s3cret"}, Logger: zerolog.Nop()}

	header := "Basic " + base64.StdEncoding.EncodeToString([]byte("leo:s3cret"))
	id, err := b.Authenticate(context.Background(), header)
	require.NoError(t, err)
	require.Equal(t, "leo", id)

	_, err = b.Authenticate(context.Background(), "Basic "+base64.StdEncoding.EncodeToString([]byte("leo:wrong")))
	require.Error(t, err)

	_, err = b.Authenticate(context.Background(), "Bearer abc")
	require.Error(t, err)

	_, err = b.Authenticate(context.Background(), "")
	require.Error(t, err)
}

func TestBearerRejectsWithoutJWKS(t *testing.T) {
	b := NewBearer(config.AuthConfig{}, zerolog.Nop())
	_, err := b.Authenticate(context.Background(), "Bearer sometoken")
	require.Error(t, err)

	_, err = b.Authenticate(context.Background(), "Basic abc")
	require.Error(t, err)
}
