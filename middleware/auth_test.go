package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestAuthenticate(t *testing.T) {
	future := time.Now().Add(time.Hour).Unix()
	past := time.Now().Add(-time.Hour).Unix()

	tests := []struct {
		name        string
		prepare     func(r *http.Request)
		wantStatus  int
		wantAccount string
	}{
		{
			name: "subject claim",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+sign(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "acc-1", "exp": future}))
			},
			wantStatus:  http.StatusOK,
			wantAccount: "acc-1",
		},
		{
			name: "account_id claim wins over subject",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "bearer "+sign(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "user-7", "account_id": "acc-2"}))
			},
			wantStatus:  http.StatusOK,
			wantAccount: "acc-2",
		},
		{
			name: "query token",
			prepare: func(r *http.Request) {
				q := r.URL.Query()
				q.Set("token", sign(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "acc-3"}))
				r.URL.RawQuery = q.Encode()
			},
			wantStatus:  http.StatusOK,
			wantAccount: "acc-3",
		},
		{
			name:       "missing token",
			prepare:    func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "not a bearer scheme",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Basic YTpi")
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "expired",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+sign(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "acc-1", "exp": past}))
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong secret",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "acc-1"}))
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "unsigned token",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{"sub": "acc-1"}))
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "no account claim",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+sign(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"role": "player"}))
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "numeric subject",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+sign(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"account_id": 42}))
			},
			wantStatus: http.StatusUnauthorized,
		},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAccount string
			handler := Authenticate(testSecret, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				id, err := GetAccountIDFromContext(r.Context())
				require.NoError(t, err)
				gotAccount = id
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/matches", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantAccount, gotAccount)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), `"error"`)
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestGetAccountIDFromContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := GetAccountIDFromContext(req.Context())
	assert.ErrorIs(t, err, ErrNoAccount)

	id, err := GetAccountIDFromContext(WithAccountID(req.Context(), "acc-9"))
	require.NoError(t, err)
	assert.Equal(t, "acc-9", id)
}
