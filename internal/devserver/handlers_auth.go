package devserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgauth "github.com/angelmondragon/packfinderz-storefront/pkg/auth"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/security"
	"github.com/angelmondragon/packfinderz-storefront/pkg/types"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPairResponse struct {
	User         types.Identity `json:"user"`
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[strings.ToLower(body.Email)]
	s.mu.Unlock()
	if !ok {
		writeError(r.Context(), s.logg, w, pkgerrors.New(pkgerrors.CodeAuthRequired, "invalid credentials"))
		return
	}

	match, err := security.VerifyPassword(body.Password, acct.passwordHash)
	if err != nil {
		writeError(r.Context(), s.logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verifying password"))
		return
	}
	if !match {
		writeError(r.Context(), s.logg, w, pkgerrors.New(pkgerrors.CodeAuthRequired, "invalid credentials"))
		return
	}

	pair, err := s.issueTokens(acct.identity)
	if err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}
	writeSuccess(w, pair)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}

	s.mu.Lock()
	userID, ok := s.refresh[body.RefreshToken]
	if ok {
		// single use: a presented token is burned whether or not a new
		// pair gets issued
		delete(s.refresh, body.RefreshToken)
	}
	s.mu.Unlock()
	if !ok {
		writeError(r.Context(), s.logg, w, pkgerrors.New(pkgerrors.CodeAuthRequired, "refresh token revoked"))
		return
	}

	identity, found := s.identityByID(userID)
	if !found {
		writeError(r.Context(), s.logg, w, pkgerrors.New(pkgerrors.CodeAuthRequired, "unknown account"))
		return
	}

	pair, err := s.issueTokens(identity)
	if err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}
	writeSuccess(w, pair)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var body logoutRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}

	s.mu.Lock()
	delete(s.refresh, body.RefreshToken)
	s.mu.Unlock()

	writeSuccess(w, map[string]bool{"revoked": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(r.Context(), s.logg, w, err)
		return
	}

	identity, found := s.identityByID(claims.UserID)
	if !found {
		writeError(r.Context(), s.logg, w, pkgerrors.New(pkgerrors.CodeAuthRequired, "unknown account"))
		return
	}
	writeSuccess(w, identity)
}

func (s *Server) issueTokens(identity types.Identity) (*tokenPairResponse, error) {
	now := time.Now()
	jti := uuid.NewString()
	access, err := pkgauth.MintAccessToken(s.cfg, now, pkgauth.AccessTokenPayload{
		UserID:      identity.UserID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		JTI:         jti,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}

	refreshToken := uuid.NewString()
	s.mu.Lock()
	s.refresh[refreshToken] = identity.UserID
	s.issuedAt[jti] = now
	s.mu.Unlock()

	return &tokenPairResponse{
		User:         identity,
		AccessToken:  access,
		RefreshToken: refreshToken,
	}, nil
}

func (s *Server) identityByID(userID uuid.UUID) (types.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if acct.identity.UserID == userID {
			return acct.identity, true
		}
	}
	return types.Identity{}, false
}
