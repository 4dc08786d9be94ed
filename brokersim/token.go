package brokersim

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"brokergate/auth"
	"brokergate/internal/errors"
)

// TokenResponse is the RFC 6749 token endpoint response body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// tokenRequest holds the form body of one token endpoint call.
type tokenRequest struct {
	GrantType    string
	ClientID     string
	Code         string
	CodeVerifier string
	RedirectURI  string
	RefreshToken string
}

func tokenRequestFromForm(form url.Values) tokenRequest {
	return tokenRequest{
		GrantType:    form.Get("grant_type"),
		ClientID:     form.Get("client_id"),
		Code:         form.Get("code"),
		CodeVerifier: form.Get("code_verifier"),
		RedirectURI:  form.Get("redirect_uri"),
		RefreshToken: form.Get("refresh_token"),
	}
}

// TokenHandler redeems authorization codes and refresh tokens.
func (s *Simulator) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, errInvalidRequest, http.StatusBadRequest)
			return
		}
		req := tokenRequestFromForm(r.PostForm)

		if req.ClientID != s.config.ClientID {
			log.Warn().Str("clientID", req.ClientID).Msg("Token request from unknown client")
			writeJSONError(w, errInvalidClient, http.StatusUnauthorized)
			return
		}

		switch req.GrantType {
		case "authorization_code":
			s.redeemCode(w, req)
		case "refresh_token":
			s.redeemRefreshToken(w, req)
		default:
			writeJSONError(w, errUnsupportedGrantType, http.StatusBadRequest)
		}
	}
}

// redeemCode is the authorization_code grant: the code is consumed on
// first presentation, then the PKCE verifier and the bound redirect URI
// must both match what the code was issued against.
func (s *Simulator) redeemCode(w http.ResponseWriter, req tokenRequest) {
	if req.Code == "" {
		writeJSONError(w, errInvalidRequest, http.StatusBadRequest)
		return
	}
	// RFC 7636 length band
	if len(req.CodeVerifier) < 43 || len(req.CodeVerifier) > 128 {
		writeJSONError(w, errInvalidRequest, http.StatusBadRequest)
		return
	}

	issued, err := s.codes.Consume(req.Code, s.nowTime())
	if err != nil {
		writeJSONError(w, errInvalidGrant, http.StatusBadRequest)
		return
	}
	if issued.ClientID != req.ClientID || issued.RedirectURI != req.RedirectURI {
		writeJSONError(w, errInvalidGrant, http.StatusBadRequest)
		return
	}
	if auth.ChallengeS256(req.CodeVerifier) != issued.CodeChallenge {
		log.Warn().Str("holderID", issued.HolderID).Msg("PKCE verifier mismatch")
		writeJSONError(w, errInvalidGrant, http.StatusBadRequest)
		return
	}

	refreshToken, err := s.refresh.Issue(&refreshGrant{
		HolderID: issued.HolderID,
		ClientID: issued.ClientID,
		Scope:    issued.Scope,
		IssuedAt: s.nowTime(),
	})
	if err != nil {
		writeJSONError(w, "server_error", http.StatusInternalServerError)
		return
	}

	s.writeTokenResponse(w, issued.HolderID, issued.Scope, refreshToken)
}

// redeemRefreshToken is the refresh_token grant. With rotation enabled
// the presented token dies and a replacement is returned; with rotation
// disabled the response omits refresh_token and the presented one stays
// live, matching providers that reuse refresh tokens verbatim.
func (s *Simulator) redeemRefreshToken(w http.ResponseWriter, req tokenRequest) {
	if len(req.RefreshToken) < 10 {
		writeJSONError(w, errInvalidRequest, http.StatusBadRequest)
		return
	}

	var (
		grant       *refreshGrant
		replacement string
		err         error
	)
	if s.config.RotateRefresh {
		replacement, grant, err = s.refresh.Rotate(req.RefreshToken, s.nowTime())
	} else {
		grant, err = s.refresh.Lookup(req.RefreshToken)
	}
	if err != nil {
		writeJSONError(w, errInvalidGrant, http.StatusBadRequest)
		return
	}

	s.writeTokenResponse(w, grant.HolderID, grant.Scope, replacement)
}

func (s *Simulator) writeTokenResponse(w http.ResponseWriter, holderID, scope, refreshToken string) {
	accessToken, err := s.mintAccessToken(holderID, scope)
	if err != nil {
		log.Err(err).Msg("Minting access token")
		writeJSONError(w, "server_error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "bearer",
		ExpiresIn:    int(s.config.AccessTokenTTL.Seconds()),
		RefreshToken: refreshToken,
		Scope:        scope,
	})
}

// mintAccessToken signs a short-lived HS256 JWT for the data plane. The
// jti claim is what revocation keys on.
func (s *Simulator) mintAccessToken(holderID, scope string) (string, error) {
	now := s.nowTime()
	return s.signer.Sign(jwt.MapClaims{
		"iss":   s.config.Issuer,
		"sub":   holderID,
		"aud":   s.config.ClientID,
		"scope": scope,
		"iat":   now.Unix(),
		"exp":   now.Add(s.config.AccessTokenTTL).Unix(),
		"jti":   uuid.New().String(),
	})
}

// refreshGrant is the stored state behind one refresh token.
type refreshGrant struct {
	HolderID string
	ClientID string
	Scope    string
	IssuedAt time.Time
}

type refreshTokenStore struct {
	mu     sync.Mutex
	grants map[string]*refreshGrant
}

func newRefreshTokenStore() *refreshTokenStore {
	return &refreshTokenStore{grants: make(map[string]*refreshGrant)}
}

func (s *refreshTokenStore) Issue(grant *refreshGrant) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[token] = grant
	return token, nil
}

func (s *refreshTokenStore) Lookup(token string) (*refreshGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, exists := s.grants[token]
	if !exists {
		return nil, errors.ErrNotFound
	}
	return grant, nil
}

// Rotate kills the presented token and issues a replacement carrying the
// same grant, stamped with the rotation time.
func (s *refreshTokenStore) Rotate(token string, now time.Time) (string, *refreshGrant, error) {
	replacement, err := randomToken()
	if err != nil {
		return "", nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	grant, exists := s.grants[token]
	if !exists {
		return "", nil, errors.ErrNotFound
	}
	delete(s.grants, token)
	rotated := &refreshGrant{
		HolderID: grant.HolderID,
		ClientID: grant.ClientID,
		Scope:    grant.Scope,
		IssuedAt: now,
	}
	s.grants[replacement] = rotated
	return replacement, rotated, nil
}

// Revoke removes a refresh token, reporting whether it existed.
func (s *refreshTokenStore) Revoke(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.grants[token]
	delete(s.grants, token)
	return exists
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	// RFC 6749 §5.1: token material must never be cached
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, errCode string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{"error": errCode})
}
