// Package router exposes the principal backend over a small JSON API
// and enforces authentication on everything except health and
// discovery endpoints.
package router

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/ldap-principals/internal/auth"
	"github.com/sonroyaalmerol/ldap-principals/internal/config"
	"github.com/sonroyaalmerol/ldap-principals/internal/directory/filter"
	"github.com/sonroyaalmerol/ldap-principals/internal/principal"
)

func New(cfg *config.Config, backend *principal.Backend, authn *auth.Chain, logger zerolog.Logger) http.Handler {
	r := &Router{
		config:  cfg,
		backend: backend,
		auth:    authn,
		logger:  logger,
	}
	return r.setupRoutes()
}

func (r *Router) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", r.handleHealth)

	base := r.getBasePath()
	mux.HandleFunc(base+principal.DefaultPrefix, r.handleRequest)
	mux.HandleFunc(base+principal.DefaultPrefix+"/", r.handleRequest)
	mux.HandleFunc(base+"resolve", r.handleResolve)

	return mux
}

func (r *Router) getBasePath() string {
	base := r.config.HTTP.BasePath
	if base == "" || base[0] != '/' {
		base = "/"
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// principalPath strips the configured base path, leaving the
// backend-facing principal path ("principals/...").
func (r *Router) principalPath(req *http.Request) string {
	return strings.TrimPrefix(req.URL.Path, r.getBasePath())
}

func (r *Router) handleRequest(w http.ResponseWriter, req *http.Request) {
	uri, err := r.auth.Authenticate(req.Context(), req.Header.Get("Authorization"))
	if err != nil {
		r.logAttempt(req, err)
		w.Header().Set("WWW-Authenticate", `Basic realm="`+r.config.Auth.Realm+`", charset="UTF-8"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	req = req.WithContext(auth.WithPrincipal(req.Context(), uri))

	r.route(w, req)
}

func (r *Router) route(w http.ResponseWriter, req *http.Request) {
	rec := &statusRecorder{ResponseWriter: w}
	done := r.startAccessLog(req, rec)
	defer done()

	path := r.principalPath(req)

	switch req.Method {
	case http.MethodGet:
		r.handleGet(rec, req, path)
	case http.MethodPost, "REPORT":
		r.handleSearch(rec, req, path)
	case http.MethodPatch, "PROPPATCH":
		r.writeError(rec, req, r.backend.UpdatePrincipal(req.Context(), path, nil))
	case http.MethodPut:
		r.writeError(rec, req, r.backend.SetGroupMemberSet(req.Context(), path, nil))
	default:
		http.Error(rec, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (r *Router) handleGet(w http.ResponseWriter, req *http.Request, path string) {
	ctx := req.Context()

	switch req.URL.Query().Get("view") {
	case "member-set":
		uris, err := r.backend.GroupMemberSet(ctx, path)
		if err != nil {
			r.writeError(w, req, err)
			return
		}
		r.writeJSON(w, urisDoc{URIs: uris})
		return
	case "membership":
		uris, err := r.backend.GroupMembership(ctx, path)
		if err != nil {
			r.writeError(w, req, err)
			return
		}
		r.writeJSON(w, urisDoc{URIs: uris})
		return
	}

	if strings.Trim(path, "/") == principal.DefaultPrefix {
		principals, err := r.backend.ListPrincipals(ctx, path)
		if err != nil {
			r.writeError(w, req, err)
			return
		}
		docs := make([]principalDoc, 0, len(principals))
		for _, p := range principals {
			docs = append(docs, principalDoc{URI: p.URI, DisplayName: p.DisplayName, Email: p.Email})
		}
		r.writeJSON(w, docs)
		return
	}

	p, err := r.backend.GetPrincipalByPath(ctx, path)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	if p == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	r.writeJSON(w, principalDoc{URI: p.URI, DisplayName: p.DisplayName, Email: p.Email})
}

func (r *Router) handleSearch(w http.ResponseWriter, req *http.Request, path string) {
	var body searchRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	c := filter.AllOf
	switch body.Test {
	case "", string(filter.AllOf):
	case string(filter.AnyOf):
		c = filter.AnyOf
	default:
		http.Error(w, "unknown test", http.StatusBadRequest)
		return
	}
	uris, err := r.backend.SearchPrincipals(req.Context(), path, body.Props, c)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	r.writeJSON(w, urisDoc{URIs: uris})
}

func (r *Router) handleResolve(w http.ResponseWriter, req *http.Request) {
	if _, err := r.auth.Authenticate(req.Context(), req.Header.Get("Authorization")); err != nil {
		r.logAttempt(req, err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	target := req.URL.Query().Get("uri")
	path, err := r.backend.FindByURI(req.Context(), target)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	if path == "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	r.writeJSON(w, map[string]string{"path": path})
}

func (r *Router) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		r.logger.Error().Err(err).Msg("response encoding failed")
	}
}

// writeError maps backend errors onto HTTP statuses. An unknown search
// property is the caller's fault; a missing principal on a hard-lookup
// path is 404; write attempts are always 403.
func (r *Router) writeError(w http.ResponseWriter, req *http.Request, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, filter.ErrUnknownProperty):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, principal.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, principal.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		r.logger.Error().Err(err).Str("path", req.URL.Path).Msg("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (r *Router) logAttempt(req *http.Request, authErr error) {
	authz := req.Header.Get("Authorization")
	authType := ""
	if i := strings.IndexByte(authz, ' '); i > 0 {
		authType = strings.ToLower(authz[:i])
	}

	ev := r.logger.Info().
		Bool("auth_success", false).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Str("ip", realIP(req)).
		Str("user_agent", req.Header.Get("User-Agent")).
		Str("auth_type", authType)
	if authErr != nil {
		ev = ev.Str("error", authErr.Error())
	}
	ev.Msg("auth attempt")
}
