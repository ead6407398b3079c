package directory

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/sonroyaalmerol/ldap-principals/internal/config"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog"
)

// Session is the query contract the resolvers consume. Both primitives
// are scoped under the configured base namespace; a failed or timed-out
// query surfaces as an error that callers uniformly treat as "no
// result". The concrete connection is not safe for concurrent use;
// callers that fan out must hold one session per worker.
type Session interface {
	Search(ctx context.Context, base, filterStr string, attrs []string) ([]*ldap.Entry, error)
	ReadOne(ctx context.Context, dn, filterStr string, attrs []string) (*ldap.Entry, error)
}

// Conn owns a single bound LDAP connection for the process lifetime.
type Conn struct {
	cfg    config.LDAPConfig
	logger zerolog.Logger
	conn   *ldap.Conn
}

var _ Session = (*Conn)(nil)

// Connect dials the directory and performs the service bind. It fails
// closed: no half-initialized connection is ever returned.
func Connect(cfg config.LDAPConfig, logger zerolog.Logger) (*Conn, error) {
	l, err := dialAuto(cfg)
	if err != nil {
		logger.Error().Err(err).Str("url", cfg.URL).Msg("failed to dial LDAP")
		return nil, err
	}
	if cfg.BindDN != "" {
		if err := l.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
			logger.Error().Err(err).Str("bind_dn", cfg.BindDN).Msg("service bind failed")
			l.Close()
			return nil, err
		}
	}
	return &Conn{cfg: cfg, logger: logger, conn: l}, nil
}

func (c *Conn) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// Search queries the whole subtree under base. The base must live
// inside the configured namespace root.
func (c *Conn) Search(ctx context.Context, base, filterStr string, attrs []string) ([]*ldap.Entry, error) {
	if err := c.checkBase(base); err != nil {
		return nil, err
	}
	if filterStr == "" {
		filterStr = "(objectClass=*)"
	}
	req := ldap.NewSearchRequest(
		base,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, int(c.cfg.Timeout.Seconds()), false,
		filterStr,
		attrs,
		nil,
	)
	res, err := c.conn.Search(req)
	if err != nil {
		c.logger.Error().Err(err).
			Str("base", base).
			Str("filter", filterStr).
			Msg("LDAP subtree search failed")
		return nil, err
	}
	return res.Entries, nil
}

// ReadOne fetches exactly one entry by DN, still subject to the given
// filter. A missing entry (or one the filter excludes) is a normal
// outcome and returns nil, nil.
func (c *Conn) ReadOne(ctx context.Context, dn, filterStr string, attrs []string) (*ldap.Entry, error) {
	if err := c.checkBase(dn); err != nil {
		return nil, err
	}
	if filterStr == "" {
		filterStr = "(objectClass=*)"
	}
	req := ldap.NewSearchRequest(
		dn,
		ldap.ScopeBaseObject, ldap.NeverDerefAliases, 1, int(c.cfg.Timeout.Seconds()), false,
		filterStr,
		attrs,
		nil,
	)
	res, err := c.conn.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			c.logger.Debug().Str("dn", dn).Msg("entry not found")
			return nil, nil
		}
		c.logger.Error().Err(err).
			Str("dn", dn).
			Str("filter", filterStr).
			Msg("LDAP base read failed")
		return nil, err
	}
	if len(res.Entries) == 0 {
		return nil, nil
	}
	return res.Entries[0], nil
}

// CheckPassword verifies user credentials by locating the entry under
// the user base and rebinding with its DN on a throwaway connection,
// leaving the service bind untouched.
func (c *Conn) CheckPassword(ctx context.Context, username, password string) error {
	nameCond := fmt.Sprintf("(%s=%s)", c.cfg.UserNameAttr, ldap.EscapeFilter(username))
	req := ldap.NewSearchRequest(
		c.cfg.UserBaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, int(c.cfg.Timeout.Seconds()), false,
		fmt.Sprintf("(&(objectClass=%s)%s)", c.cfg.UserObjectClass, nameCond),
		[]string{"dn"},
		nil,
	)
	res, err := c.conn.Search(req)
	if err != nil || len(res.Entries) == 0 {
		c.logger.Debug().Str("username", username).Msg("user not found for password check")
		return errors.New("user not found")
	}
	userDN := res.Entries[0].DN

	userConn, err := dialAuto(c.cfg)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to dial LDAP for user bind")
		return err
	}
	defer userConn.Close()
	if err := userConn.Bind(userDN, password); err != nil {
		c.logger.Debug().Err(err).Str("user_dn", userDN).Msg("user bind failed")
		return err
	}
	return nil
}

func (c *Conn) checkBase(dn string) error {
	if c.cfg.BaseDN == "" {
		return nil
	}
	if !strings.HasSuffix(strings.ToLower(dn), strings.ToLower(c.cfg.BaseDN)) {
		return fmt.Errorf("dn %q escapes base namespace %q", dn, c.cfg.BaseDN)
	}
	return nil
}

func dialAuto(cfg config.LDAPConfig) (*ldap.Conn, error) {
	u := strings.TrimSpace(cfg.URL)
	if u == "" {
		return nil, errors.New("LDAP URL is empty")
	}

	isLDAPS := strings.HasPrefix(strings.ToLower(u), "ldaps://")
	isLDAP := strings.HasPrefix(strings.ToLower(u), "ldap://")

	if !isLDAP && !isLDAPS {
		return nil, errors.New("URL must start with ldap:// or ldaps://")
	}

	if isLDAPS {
		tlsConfig := &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}
		hostPort := strings.TrimPrefix(u, "ldaps://")
		if host, _, err := net.SplitHostPort(hostPort); err == nil && host != "" {
			tlsConfig.ServerName = host
		} else {
			tlsConfig.ServerName = hostPort
		}
		return ldap.DialURL(u, ldap.DialWithTLSConfig(tlsConfig))
	}

	conn, err := ldap.DialURL(u)
	if err != nil {
		return nil, err
	}

	if cfg.RequireTLS {
		tlsConfig := &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}
		hostPort := strings.TrimPrefix(u, "ldap://")
		if host, _, err := net.SplitHostPort(hostPort); err == nil && host != "" {
			tlsConfig.ServerName = host
		} else {
			tlsConfig.ServerName = hostPort
		}
		if err := conn.StartTLS(tlsConfig); err != nil {
			conn.Close()
			return nil, fmt.Errorf("StartTLS failed: %w", err)
		}
	}

	return conn, nil
}
