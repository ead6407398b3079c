package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sonroyaalmerol/ldap-principals/internal/cache"
	"github.com/sonroyaalmerol/ldap-principals/internal/config"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/rs/zerolog"
)

// Bearer validates JWT bearer tokens against a remote JWKS and yields
// the token subject as the authenticated identity.
type Bearer struct {
	cfg    config.AuthConfig
	logger zerolog.Logger

	ksMu   sync.Mutex
	keyset jwk.Set
	ksAt   time.Time
	ksTTL  time.Duration

	verCache *cache.Cache[string, string]
}

func NewBearer(cfg config.AuthConfig, logger zerolog.Logger) *Bearer {
	return &Bearer{
		cfg:      cfg,
		logger:   logger,
		ksTTL:    10 * time.Minute,
		verCache: cache.New[string, string](2 * time.Minute),
	}
}

func (b *Bearer) Authenticate(ctx context.Context, header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errors.New("not bearer")
	}
	token := parts[1]

	if id, ok := b.verCache.Get(token); ok && id != "" {
		return id, nil
	}

	if b.cfg.JWKSURL == "" {
		return "", errors.New("no jwt validation configured")
	}

	set, err := b.currentKeyset(ctx)
	if err != nil {
		return "", err
	}

	tok, err := jwt.Parse([]byte(token), jwt.WithKeySet(set), jwt.WithValidate(true))
	if err != nil {
		return "", err
	}
	if iss := tok.Issuer(); b.cfg.Issuer != "" && iss != b.cfg.Issuer {
		return "", errors.New("issuer mismatch")
	}
	if aud := tok.Audience(); len(aud) > 0 && b.cfg.Audience != "" {
		found := false
		for _, a := range aud {
			if a == b.cfg.Audience {
				found = true
				break
			}
		}
		if !found {
			return "", errors.New("audience mismatch")
		}
	}
	sub := tok.Subject()
	if sub == "" {
		return "", errors.New("no sub")
	}

	b.verCache.Set(token, sub)
	return sub, nil
}

// currentKeyset returns the cached JWKS, refreshing it under the lock
// once the TTL has passed.
func (b *Bearer) currentKeyset(ctx context.Context) (jwk.Set, error) {
	b.ksMu.Lock()
	defer b.ksMu.Unlock()
	if b.keyset != nil && time.Since(b.ksAt) <= b.ksTTL {
		return b.keyset, nil
	}
	set, err := jwk.Fetch(ctx, b.cfg.JWKSURL)
	if err != nil {
		return nil, err
	}
	b.keyset = set
	b.ksAt = time.Now()
	return set, nil
}
