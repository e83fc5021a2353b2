package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func callAuth(t *testing.T, enabled bool, token, header string) int {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := AuthMiddleware(enabled, token)(next)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestAuthMiddleware(t *testing.T) {
	cases := []struct {
		name    string
		enabled bool
		header  string
		want    int
	}{
		{"disabled passes without header", false, "", http.StatusNoContent},
		{"missing header", true, "", http.StatusUnauthorized},
		{"wrong scheme", true, "Basic c2VjcmV0", http.StatusUnauthorized},
		{"wrong token", true, "Bearer nope", http.StatusUnauthorized},
		{"bare scheme", true, "Bearer ", http.StatusUnauthorized},
		{"valid token", true, "Bearer secret", http.StatusNoContent},
		{"lowercase scheme", true, "bearer secret", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := callAuth(t, tc.enabled, "secret", tc.header); got != tc.want {
				t.Errorf("status = %d, want %d", got, tc.want)
			}
		})
	}
}
