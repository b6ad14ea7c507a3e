package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt"

	"farmnook-dispatch/internal/logx"
)

type adminKey struct{}

// WithAdminID stores the authenticated admin id on ctx.
func WithAdminID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, adminKey{}, id)
}

// AdminID returns the admin id set by Auth, or "".
func AdminID(ctx context.Context) string {
	id, _ := ctx.Value(adminKey{}).(string)
	return id
}

var errMissingSubject = errors.New("token has no subject")

// ParseAdminToken validates an HS256 token and returns its subject.
func ParseAdminToken(secret []byte, raw string) (string, error) {
	claims := &jwt.StandardClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errMissingSubject
	}
	return claims.Subject, nil
}

// Auth rejects requests without a valid "Authorization: Bearer <jwt>" header.
func Auth(secret []byte, logger logx.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearer(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, "missing bearer token")
				return
			}
			id, err := ParseAdminToken(secret, raw)
			if err != nil {
				logger.Warn("rejected bearer token",
					logx.String("path", r.URL.Path),
					logx.Err(err),
				)
				unauthorized(w, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAdminID(r.Context(), id)))
		})
	}
}

func bearer(h string) (string, bool) {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="farmnook"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
