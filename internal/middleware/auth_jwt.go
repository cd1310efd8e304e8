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

	"photobooth/internal/i18n"
)

const (
	RoleAdmin      = "admin"
	RoleOperations = "operations"

	tokenAudience = "authenticated"
)

// User is the caller identified by a Supabase access token.
type User struct {
	ID    string
	Email string
	Role  string
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

type userKey struct{}

// TokenClaims is the subset of a Supabase access token the server reads.
type TokenClaims struct {
	Sub          string
	Email        string
	Role         string
	Locale       string
	ExpiresAt    time.Time
	UserMetadata map[string]any
}

// SignJWT issues an HS256 token shaped like a Supabase access token.
func SignJWT(secret string, c TokenClaims) (string, error) {
	claims := jwt.MapClaims{
		"sub": c.Sub,
		"aud": tokenAudience,
	}
	if c.Email != "" {
		claims["email"] = c.Email
	}
	meta := map[string]any{}
	for k, v := range c.UserMetadata {
		meta[k] = v
	}
	if c.Role != "" {
		meta["role"] = c.Role
	}
	if c.Locale != "" {
		meta["locale"] = c.Locale
	}
	claims["user_metadata"] = meta
	if !c.ExpiresAt.IsZero() {
		claims["exp"] = c.ExpiresAt.Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

var (
	errTokenExpired  = errors.New("Token has expired")
	errMissingUserID = errors.New("Invalid token: missing user ID")
)

// VerifyJWT validates token and extracts the user. An empty secret decodes
// the claims without checking the signature; that mode exists for local
// development only.
func VerifyJWT(secret, token string) (*User, error) {
	claims := jwt.MapClaims{}
	if secret == "" {
		if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("Invalid token: %w", err)
		}
	} else {
		_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil {
			var ve *jwt.ValidationError
			if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
				return nil, errTokenExpired
			}
			return nil, fmt.Errorf("Invalid token: %w", err)
		}
		if !claims.VerifyAudience(tokenAudience, true) {
			return nil, errors.New("Invalid token: invalid audience")
		}
	}

	sub, _ := claims["sub"].(string)
	if strings.TrimSpace(sub) == "" {
		return nil, errMissingUserID
	}
	email, _ := claims["email"].(string)
	role := RoleOperations
	if meta, ok := claims["user_metadata"].(map[string]interface{}); ok {
		if r, ok := meta["role"].(string); ok && r != "" {
			role = r
		}
	}
	return &User{ID: sub, Email: email, Role: role}, nil
}

// Authenticate resolves an optional bearer token. Requests without one pass
// through anonymously; a token that is present but invalid is rejected.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				writeDetail(w, r, http.StatusUnauthorized, "Invalid token")
				return
			}
			user, err := VerifyJWT(secret, strings.TrimSpace(parts[1]))
			if err != nil {
				writeDetail(w, r, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// RequireAuth rejects anonymous callers with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			writeDetail(w, r, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects anonymous callers with 401 and non admins with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !UserFromContext(r.Context()).IsAdmin() {
			writeDetail(w, r, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func UserFromContext(ctx context.Context) *User {
	if v, ok := ctx.Value(userKey{}).(*User); ok {
		return v
	}
	return nil
}

func ContextWithUser(ctx context.Context, user *User) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, userKey{}, user)
}

func writeDetail(w http.ResponseWriter, r *http.Request, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": i18n.T(LocaleFromContext(r.Context()), detail)})
}
