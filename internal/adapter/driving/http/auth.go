package httphandler

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionTokenTTL is how long an issued session token stays valid.
const SessionTokenTTL = 24 * time.Hour

// devEmail is the identity assumed when the auth bypass is enabled and the
// request carries no X-Dev-Email header. The bypass is refused in production
// at config load, so this never appears outside local development.
const devEmail = "dev@example.com"

// sessionClaims is the JWT payload of a session token.
type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// IssueSessionToken signs an HS256 session token for the given identity.
// Tokens are minted by the deployment's sign-in front end, which shares the
// session secret with this server.
func IssueSessionToken(secret []byte, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Email: strings.ToLower(email),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return token, nil
}

// parseSessionToken validates a session token and returns the identity it
// carries. Only HS256 is accepted.
func parseSessionToken(secret []byte, tokenString string) (string, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("parsing session token: %w", err)
	}
	if claims.Email == "" {
		return "", errors.New("session token has no email claim")
	}
	return claims.Email, nil
}

// authenticate resolves the caller's identity from the Authorization header,
// or from the dev bypass when it is enabled.
func (h *Handler) authenticate(r *http.Request) (string, error) {
	if h.settings.SkipAuth {
		if email := r.Header.Get("X-Dev-Email"); email != "" {
			return strings.ToLower(email), nil
		}
		return devEmail, nil
	}

	authz := r.Header.Get("Authorization")
	tokenString, ok := strings.CutPrefix(authz, "Bearer ")
	if !ok || tokenString == "" {
		return "", errors.New("missing bearer token")
	}

	email, err := parseSessionToken(h.settings.SessionSecret, tokenString)
	if err != nil {
		return "", err
	}

	if domain := h.settings.AllowedDomain; domain != "" {
		if !strings.HasSuffix(strings.ToLower(email), "@"+domain) {
			return "", fmt.Errorf("email %q is outside the allowed domain", email)
		}
	}
	return email, nil
}

// withAuth wraps a handler that needs an authenticated identity.
func (h *Handler) withAuth(next func(w http.ResponseWriter, r *http.Request, email string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, err := h.authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r, email)
	}
}

// withAdmin wraps a handler restricted to configured administrators.
func (h *Handler) withAdmin(next func(w http.ResponseWriter, r *http.Request, email string)) http.HandlerFunc {
	return h.withAuth(func(w http.ResponseWriter, r *http.Request, email string) {
		if !h.directory.IsAdmin(email) {
			writeError(w, http.StatusForbidden, "administrator access required")
			return
		}
		next(w, r, email)
	})
}

// clientIP extracts the caller's address for logging and rate limiting,
// preferring proxy headers set by the deployment's ingress.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if real := r.Header.Get("X-Real-Ip"); real != "" {
		return real
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
