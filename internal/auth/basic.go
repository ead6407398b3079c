package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// PasswordChecker verifies raw credentials against the directory.
type PasswordChecker interface {
	CheckPassword(ctx context.Context, username, password string) error
}

// Basic verifies HTTP Basic credentials by rebinding against the
// directory and yields the authenticated identity string.
type Basic struct {
	Checker PasswordChecker
	Logger  zerolog.Logger
}

func (b *Basic) Authenticate(ctx context.Context, header string) (string, error) {
	if header == "" {
		return "", errors.New("no auth")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "basic") {
		return "", errors.New("not basic")
	}
	dec, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", err
	}
	username, password, ok := strings.Cut(string(dec), ":")
	if !ok {
		return "", errors.New("malformed basic")
	}
	if err := b.Checker.CheckPassword(ctx, username, password); err != nil {
		return "", err
	}
	return username, nil
}
