package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func serveAdmin(t *testing.T, secret, authHeader string, next http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/admin/integrations", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	if next == nil {
		next = func(w http.ResponseWriter, r *http.Request) {}
	}
	AdminJWT(secret)(next).ServeHTTP(rec, req)
	return rec
}

func TestAdminJWTRejects(t *testing.T) {
	expired := signAdminToken(t, "secret", jwt.SigningMethodHS256, time.Now().Add(-time.Minute))
	cases := map[string]struct {
		secret string
		header string
	}{
		"disabled":       {secret: "", header: "Bearer " + signedAdminToken(t, "secret")},
		"missing header": {secret: "secret"},
		"wrong scheme":   {secret: "secret", header: "Basic abc"},
		"wrong secret":   {secret: "secret", header: "Bearer " + signedAdminToken(t, "wrong")},
		"expired":        {secret: "secret", header: "Bearer " + expired},
		"no expiry":      {secret: "secret", header: "Bearer " + signAdminToken(t, "secret", jwt.SigningMethodHS256, time.Time{})},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := serveAdmin(t, tc.secret, tc.header, nil)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected JSON error, got %q", ct)
			}
		})
	}
}

func TestAdminJWTValidToken(t *testing.T) {
	called := false
	rec := serveAdmin(t, "secret", "bearer "+signedAdminToken(t, "secret"), func(w http.ResponseWriter, r *http.Request) {
		called = true
		claims, ok := AdminClaimsFromContext(r.Context())
		if !ok || claims.Subject != "admin-user" {
			t.Fatalf("expected admin claims in context, got %+v", claims)
		}
		w.WriteHeader(http.StatusOK)
	})

	if !called {
		t.Fatalf("expected handler to be called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func signedAdminToken(t *testing.T, secret string) string {
	t.Helper()
	return signAdminToken(t, secret, jwt.SigningMethodHS256, time.Now().Add(5*time.Minute))
}

func signAdminToken(t *testing.T, secret string, method jwt.SigningMethod, expires time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "admin-user"}
	if !expires.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(expires)
	}
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
