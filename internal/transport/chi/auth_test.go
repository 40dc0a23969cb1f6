package chi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestBearerAuthMiddleware(t *testing.T) {
	t.Run("no keys disables auth", func(t *testing.T) {
		mw := BearerAuthMiddleware(nil)
		rec := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("valid token passes", func(t *testing.T) {
		mw := BearerAuthMiddleware([]string{"secret-key"})
		req := httptest.NewRequest(http.MethodPost, "/search", nil)
		req.Header.Set("Authorization", "Bearer secret-key")
		rec := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("missing header rejected", func(t *testing.T) {
		mw := BearerAuthMiddleware([]string{"secret-key"})
		rec := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search", nil))

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("wrong scheme rejected", func(t *testing.T) {
		mw := BearerAuthMiddleware([]string{"secret-key"})
		req := httptest.NewRequest(http.MethodPost, "/search", nil)
		req.Header.Set("Authorization", "Basic secret-key")
		rec := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("unknown token rejected", func(t *testing.T) {
		mw := BearerAuthMiddleware([]string{"secret-key"})
		req := httptest.NewRequest(http.MethodPost, "/search", nil)
		req.Header.Set("Authorization", "Bearer wrong-key")
		rec := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("health and metrics exempt", func(t *testing.T) {
		mw := BearerAuthMiddleware([]string{"secret-key"})
		for _, path := range []string{"/health", "/metrics"} {
			rec := httptest.NewRecorder()
			mw(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Code != http.StatusOK {
				t.Errorf("%s: status = %d, want %d", path, rec.Code, http.StatusOK)
			}
		}
	})
}
