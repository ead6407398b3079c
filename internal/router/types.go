package router

import (
	"github.com/sonroyaalmerol/ldap-principals/internal/auth"
	"github.com/sonroyaalmerol/ldap-principals/internal/config"
	"github.com/sonroyaalmerol/ldap-principals/internal/principal"

	"github.com/rs/zerolog"
)

type Router struct {
	config  *config.Config
	backend *principal.Backend
	auth    *auth.Chain
	logger  zerolog.Logger
}

type principalDoc struct {
	URI         string `json:"uri"`
	DisplayName string `json:"displayname,omitempty"`
	Email       string `json:"email,omitempty"`
}

type searchRequest struct {
	Test  string            `json:"test,omitempty"`
	Props map[string]string `json:"props"`
}

type urisDoc struct {
	URIs []string `json:"uris"`
}
