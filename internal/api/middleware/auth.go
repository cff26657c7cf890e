// Package middleware holds the ledger's HTTP middlewares: bearer-token
// authentication and Idempotency-Key replay.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"

	"cryptocard-ledger/internal/domain"
	"cryptocard-ledger/internal/util"
)

var (
	ErrInvalidToken = errors.New("token is invalid")
	ErrExpiredToken = errors.New("token is expired")
)

type contextKey string

const actorKey contextKey = "actor"

// Claims are issued by the external identity provider.
type Claims struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
	jwt.StandardClaims
}

// TokenVerifier checks HS256 tokens signed with a shared secret.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Issue signs a token for actor. The ledger only verifies tokens; Issue backs
// tests and local tooling.
func (v *TokenVerifier) Issue(actor domain.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: actor.UserID,
		Role:   actor.Role,
		StandardClaims: jwt.StandardClaims{
			Subject:   actor.UserID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify parses token and returns the actor it asserts.
func (v *TokenVerifier) Verify(token string) (domain.Actor, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		var validationErr *jwt.ValidationError
		if errors.As(err, &validationErr) && validationErr.Errors&jwt.ValidationErrorExpired != 0 {
			return domain.Actor{}, ErrExpiredToken
		}
		return domain.Actor{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return domain.Actor{}, ErrInvalidToken
	}
	role := claims.Role
	if role != domain.RoleAdmin {
		role = domain.RoleUser
	}
	return domain.Actor{UserID: claims.UserID, Role: role}, nil
}

// WithActor stores actor in ctx.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom returns the authenticated actor stored by Authenticate.
func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(domain.Actor)
	return actor, ok
}

// Authenticate requires a valid bearer token. Websocket clients, which cannot
// set headers from a browser, may pass it as the access_token query parameter.
func Authenticate(v *TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.URL.Query().Get("access_token")
			if header := r.Header.Get("Authorization"); header != "" {
				token = strings.TrimPrefix(header, "Bearer ")
				if token == header {
					writeJSONError(w, http.StatusUnauthorized, "invalid token format")
					return
				}
			}
			if token == "" {
				writeJSONError(w, http.StatusUnauthorized, "authorization header is required")
				return
			}

			actor, err := v.Verify(token)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequireAdmin rejects actors without administrator capability.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFrom(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, util.ErrUnauthorized.Error())
			return
		}
		if !actor.IsAdmin() {
			writeJSONError(w, http.StatusForbidden, "administrator capability required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
