// Package auth validates externally-authenticated identities against
// the directory and provisions default collections on first login.
// Credential verification itself happens at the transport layer (Basic
// bind or bearer token); this backend only re-validates realm and
// group eligibility.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sonroyaalmerol/ldap-principals/internal/directory"
	"github.com/sonroyaalmerol/ldap-principals/internal/directory/filter"
	"github.com/sonroyaalmerol/ldap-principals/internal/principal"

	"github.com/rs/zerolog"
)

var (
	ErrIdentityNotSet = errors.New("username not set")
	ErrUnknownRealm   = errors.New("unknown realm")

	// ErrNotAuthorized deliberately covers both "no such user" and
	// "user exists but fails group authorization", so a caller cannot
	// probe for account existence.
	ErrNotAuthorized = errors.New("failed group authorization")
)

type Backend struct {
	realm   string
	allowed []string
	sess    directory.Session
	users   *directory.Users
	prov    *Provisioner
	logger  zerolog.Logger
}

func NewBackend(realm string, allowedGroups []string, sess directory.Session, users *directory.Users, prov *Provisioner, logger zerolog.Logger) *Backend {
	return &Backend{
		realm:   realm,
		allowed: allowedGroups,
		sess:    sess,
		users:   users,
		prov:    prov,
		logger:  logger,
	}
}

// Check takes an identity of the form "name" or "name@REALM" and walks
// the login gates: realm match, directory resolution under the
// allow-list, then idempotent default-collection provisioning. It
// returns the authorized principal URI.
func (b *Backend) Check(ctx context.Context, identity string) (string, error) {
	if identity == "" {
		return "", ErrIdentityNotSet
	}

	name, realm, hasRealm := strings.Cut(identity, "@")
	if hasRealm && realm != b.realm {
		b.logger.Debug().Str("realm", realm).Msg("login rejected: realm mismatch")
		return "", ErrUnknownRealm
	}

	u, err := b.users.Get(ctx, b.sess, name, nil, filter.AllOf, b.allowed)
	if err != nil {
		b.logger.Error().Err(err).Str("user", name).Msg("directory lookup failed during login")
		return "", ErrNotAuthorized
	}
	if u == nil {
		b.logger.Debug().Str("user", name).Msg("login rejected: unknown or unauthorized")
		return "", ErrNotAuthorized
	}

	uri := principal.DefaultPrefix + "/" + u.Name
	if b.prov != nil {
		if err := b.prov.EnsureDefaults(ctx, u); err != nil {
			return "", fmt.Errorf("provisioning defaults for %s: %w", uri, err)
		}
	}
	return uri, nil
}

// Challenge intentionally writes nothing: the transport negotiates
// WWW-Authenticate, not this backend.
func (b *Backend) Challenge(w http.ResponseWriter, r *http.Request) {}
