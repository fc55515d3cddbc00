package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	pkgauth "github.com/angelmondragon/packfinderz-storefront/pkg/auth"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

type ctxKey string

const ctxClaims ctxKey = "claims"

func requestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}

			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"method": r.Method,
					"path":   r.URL.Path,
				})
			}

			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(rec, r.WithContext(ctx))

			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"status":      rec.status,
					"duration_ms": time.Since(start).Milliseconds(),
				})
				logg.Info(ctx, "request.complete")
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					err := fmt.Errorf("panic: %v", rec)
					ctx := r.Context()
					if logg != nil {
						ctx = logg.WithFields(ctx, map[string]any{"panic": rec})
						logg.Error(ctx, "panic.recovered", err)
					}
					writeError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requireAuth validates a bearer token and seeds the request context with
// its claims. Expired tokens are reported distinctly from invalid ones so
// the client knows a refresh is worth attempting. Tokens issued before the
// server's expiry cutoff count as expired.
func (s *Server) requireAuth() func(http.Handler) http.Handler {
	logg := s.logg
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				writeError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeAuthRequired, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				writeError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeAuthRequired, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseAccessToken(s.cfg, token)
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					writeError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeAuthExpired, err, "access token expired"))
					return
				}
				writeError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeAuthRequired, err, "invalid token"))
				return
			}

			if s.issuedBeforeCutoff(claims) {
				writeError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeAuthExpired, "access token expired"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxClaims, claims)
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) issuedBeforeCutoff(claims *pkgauth.AccessTokenClaims) bool {
	s.mu.Lock()
	cutoff := s.expireBefore
	issued, tracked := s.issuedAt[claims.ID]
	s.mu.Unlock()
	if cutoff.IsZero() {
		return false
	}
	if tracked {
		return issued.Before(cutoff)
	}
	if claims.IssuedAt == nil {
		return false
	}
	return claims.IssuedAt.Time.Before(cutoff)
}

func claimsFromContext(ctx context.Context) (*pkgauth.AccessTokenClaims, error) {
	claims, ok := ctx.Value(ctxClaims).(*pkgauth.AccessTokenClaims)
	if !ok || claims == nil {
		return nil, pkgerrors.New(pkgerrors.CodeAuthRequired, "missing credentials")
	}
	return claims, nil
}
