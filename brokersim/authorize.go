package brokersim

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// OAuth2 error codes returned by the authorization and token endpoints
// (RFC 6749 §4.1.2.1 and §5.2).
const (
	errInvalidRequest          = "invalid_request"
	errInvalidClient           = "invalid_client"
	errInvalidGrant            = "invalid_grant"
	errInvalidScope            = "invalid_scope"
	errAccessDenied            = "access_denied"
	errUnsupportedResponseType = "unsupported_response_type"
	errUnsupportedGrantType    = "unsupported_grant_type"
)

// authorizeRequest holds the query parameters of one authorization
// request. The simulator only speaks the authorization code flow with
// mandatory S256 PKCE, the profile the brokerage enforces for public
// clients.
type authorizeRequest struct {
	ClientID            string
	ResponseType        string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

func authorizeRequestFromQuery(query url.Values) authorizeRequest {
	return authorizeRequest{
		ClientID:            query.Get("client_id"),
		ResponseType:        query.Get("response_type"),
		RedirectURI:         query.Get("redirect_uri"),
		Scope:               query.Get("scope"),
		State:               query.Get("state"),
		CodeChallenge:       query.Get("code_challenge"),
		CodeChallengeMethod: query.Get("code_challenge_method"),
	}
}

// validateClient checks the parts that must never trigger a redirect:
// an unknown client or an unregistered redirect URI means the redirect
// target itself cannot be trusted.
func (p authorizeRequest) validateClient(cfg Config) string {
	if p.ClientID != cfg.ClientID {
		return errInvalidClient
	}
	if !redirectRegistered(p.RedirectURI, cfg.RedirectURIs) {
		return errInvalidClient
	}
	return ""
}

// validate checks the remaining parameters; failures here are reported
// to the (already validated) redirect URI.
func (p authorizeRequest) validate() string {
	if p.ResponseType != "code" {
		return errUnsupportedResponseType
	}
	if err := validateState(p.State); err != "" {
		return err
	}
	if err := validatePKCE(p.CodeChallenge, p.CodeChallengeMethod); err != "" {
		return err
	}
	if strings.ContainsAny(p.Scope, "\n\r\t") {
		return errInvalidScope
	}
	return ""
}

func redirectRegistered(redirectURI string, registered []string) bool {
	for _, uri := range registered {
		if redirectURI == uri {
			return true
		}
	}
	return false
}

func validateState(state string) string {
	if state == "" {
		return errInvalidRequest
	}
	// Should be reasonably long for CSRF protection
	if len(state) < 8 || strings.TrimSpace(state) != state {
		return errInvalidRequest
	}
	return ""
}

// validatePKCE requires a challenge in the S256 length band and rejects
// the plain method outright.
func validatePKCE(codeChallenge, codeChallengeMethod string) string {
	if codeChallenge == "" || codeChallengeMethod == "" {
		return errInvalidRequest
	}
	if len(codeChallenge) < 43 || len(codeChallenge) > 128 {
		return errInvalidRequest
	}
	if codeChallengeMethod != "S256" {
		return errInvalidRequest
	}
	return ""
}

// AuthorizeHandler validates the authorization request, authenticates
// the account holder (HTTP Basic when present, the demo holder
// otherwise), and redirects back with a single-use code bound to the
// PKCE challenge.
func (s *Simulator) AuthorizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := authorizeRequestFromQuery(r.URL.Query())

		if errCode := params.validateClient(s.config); errCode != "" {
			log.Warn().Str("clientID", params.ClientID).Str("redirectURI", params.RedirectURI).
				Msg("Rejected authorization request")
			writeJSONError(w, errCode, http.StatusBadRequest)
			return
		}
		if errCode := params.validate(); errCode != "" {
			redirectWithError(w, r, params.RedirectURI, errCode, params.State)
			return
		}

		holder := s.holders.Default()
		if username, password, ok := r.BasicAuth(); ok {
			authenticated, err := s.holders.Authenticate(username, password)
			if err != nil {
				log.Warn().Str("username", username).Msg("Account holder login rejected")
				redirectWithError(w, r, params.RedirectURI, errAccessDenied, params.State)
				return
			}
			holder = authenticated
		}

		code, err := randomToken()
		if err != nil {
			writeJSONError(w, "server_error", http.StatusInternalServerError)
			return
		}
		s.codes.Put(code, &issuedCode{
			ClientID:      params.ClientID,
			RedirectURI:   params.RedirectURI,
			HolderID:      holder.ID,
			Scope:         params.Scope,
			CodeChallenge: params.CodeChallenge,
			ExpiresAt:     s.nowTime().Add(s.config.CodeTTL),
		})

		redirect, _ := url.Parse(params.RedirectURI)
		query := redirect.Query()
		query.Set("code", code)
		query.Set("state", params.State)
		redirect.RawQuery = query.Encode()

		log.Info().Str("holderID", holder.ID).Msg("Issued authorization code")
		http.Redirect(w, r, redirect.String(), http.StatusFound)
	}
}

// redirectWithError sends an RFC 6749 error response to a redirect URI
// that already passed the registration check.
func redirectWithError(w http.ResponseWriter, r *http.Request, redirectURI, errCode, state string) {
	redirect, err := url.Parse(redirectURI)
	if err != nil {
		writeJSONError(w, errCode, http.StatusBadRequest)
		return
	}
	query := redirect.Query()
	query.Set("error", errCode)
	if state != "" {
		query.Set("state", state)
	}
	redirect.RawQuery = query.Encode()
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}
