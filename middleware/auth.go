package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const accountContextKey contextKey = "account"

// Claim names checked for the acting account, in order.
const (
	jwtClaimAccountID = "account_id"
	jwtClaimSubject   = "sub"
)

var ErrNoAccount = errors.New("authenticated account not found in context")

// Authenticate verifies the HS256 bearer token issued by the auth service and
// stores the acting account in the request context. Browsers cannot set
// headers on websocket upgrades, so a token query parameter is accepted too.
func Authenticate(secret []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFromRequest(r)
			if raw == "" {
				writeUnauthorized(w, "authentication required")
				return
			}

			accountID, err := accountFromToken(raw, secret)
			if err != nil {
				logger.Debug("rejected bearer token", slog.String("path", r.URL.Path), slog.Any("error", err))
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccountID(r.Context(), accountID)))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func accountFromToken(raw string, secret []byte) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}

	for _, name := range []string{jwtClaimAccountID, jwtClaimSubject} {
		value, ok := claims[name]
		if !ok {
			continue
		}
		id, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("invalid type for '%s' claim: expected string, got %T", name, value)
		}
		if id = strings.TrimSpace(id); id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("missing '%s' or '%s' claim in token", jwtClaimAccountID, jwtClaimSubject)
}

func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountContextKey, accountID)
}

func GetAccountIDFromContext(ctx context.Context) (string, error) {
	accountID, ok := ctx.Value(accountContextKey).(string)
	if !ok || accountID == "" {
		return "", ErrNoAccount
	}
	return accountID, nil
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="badminton-platform"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
