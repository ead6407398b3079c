package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/sonroyaalmerol/ldap-principals/internal/config"
	"github.com/sonroyaalmerol/ldap-principals/internal/directory"

	"github.com/rs/zerolog"
)

type ctxKey int

const principalKey ctxKey = 0

// WithPrincipal stashes the authorized principal URI in the request
// context.
func WithPrincipal(ctx context.Context, uri string) context.Context {
	return context.WithValue(ctx, principalKey, uri)
}

// CurrentPrincipal returns the principal URI set by the auth
// middleware, if any.
func CurrentPrincipal(ctx context.Context) (string, bool) {
	uri, ok := ctx.Value(principalKey).(string)
	return uri, ok
}

// Chain tries the enabled credential mechanisms in order (Bearer
// first, then Basic) and runs the resulting identity through the
// login gates.
type Chain struct {
	cfg     config.AuthConfig
	basic   *Basic
	bearer  *Bearer
	backend *Backend
}

func NewChain(cfg config.AuthConfig, checker PasswordChecker, backend *Backend, logger zerolog.Logger) *Chain {
	c := &Chain{cfg: cfg, backend: backend}
	if cfg.EnableBasic {
		c.basic = &Basic{Checker: checker, Logger: logger}
	}
	if cfg.EnableBearer {
		c.bearer = NewBearer(cfg, logger)
	}
	return c
}

func (c *Chain) BasicEnabled() bool  { return c.basic != nil }
func (c *Chain) BearerEnabled() bool { return c.bearer != nil }

// Authenticate verifies the Authorization header and returns the
// authorized principal URI.
func (c *Chain) Authenticate(ctx context.Context, header string) (string, error) {
	lower := strings.ToLower(header)

	var (
		identity string
		err      error
	)
	switch {
	case strings.HasPrefix(lower, "bearer ") && c.BearerEnabled():
		identity, err = c.bearer.Authenticate(ctx, header)
	case c.BasicEnabled():
		identity, err = c.basic.Authenticate(ctx, header)
	default:
		return "", errors.New("no auth")
	}
	if err != nil {
		return "", err
	}

	return c.backend.Check(ctx, identity)
}

var _ PasswordChecker = (*directory.Conn)(nil)
