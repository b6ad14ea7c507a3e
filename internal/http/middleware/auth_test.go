package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmnook-dispatch/internal/logx"
)

var testSecret = []byte("test-secret")

func signed(t *testing.T, method jwt.SigningMethod, key any, claims jwt.StandardClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return tok
}

func TestAuth(t *testing.T) {
	t.Parallel()

	valid := signed(t, jwt.SigningMethodHS256, testSecret, jwt.StandardClaims{
		Subject:   "admin-1",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	expired := signed(t, jwt.SigningMethodHS256, testSecret, jwt.StandardClaims{
		Subject:   "admin-1",
		ExpiresAt: time.Now().Add(-time.Hour).Unix(),
	})
	wrongKey := signed(t, jwt.SigningMethodHS256, []byte("other"), jwt.StandardClaims{Subject: "admin-1"})
	noSubject := signed(t, jwt.SigningMethodHS256, testSecret, jwt.StandardClaims{})

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"valid", "Bearer " + valid, http.StatusOK},
		{"lowercase scheme", "bearer " + valid, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"basic scheme", "Basic abc", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", "Bearer " + wrongKey, http.StatusUnauthorized},
		{"no subject", "Bearer " + noSubject, http.StatusUnauthorized},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var seen string
			h := Auth(testSecret, logx.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = AdminID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/requests/pending", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.code, rr.Code)
			if tt.code == http.StatusOK {
				assert.Equal(t, "admin-1", seen)
			} else {
				assert.Empty(t, seen)
				assert.Contains(t, rr.Body.String(), "error")
			}
		})
	}
}

func TestParseAdminToken_RejectsNoneAlgorithm(t *testing.T) {
	t.Parallel()

	tok := signed(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.StandardClaims{Subject: "admin-1"})
	_, err := ParseAdminToken(testSecret, tok)
	require.Error(t, err)
}
