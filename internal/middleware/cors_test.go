package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		configured string
		origin     string
		method     string
		wantOrigin string
		wantStatus int
	}{
		{"configured origin", "https://app.example.com", "https://app.example.com", http.MethodGet, "https://app.example.com", 200},
		{"foreign origin gets configured", "https://app.example.com", "https://evil.example", http.MethodGet, "https://app.example.com", 200},
		{"vercel preview", "https://app.example.com", "https://smart-apy-swap-git-feat.vercel.app", http.MethodGet, "https://smart-apy-swap-git-feat.vercel.app", 200},
		{"other vercel project", "https://app.example.com", "https://other-app.vercel.app", http.MethodGet, "https://app.example.com", 200},
		{"wildcard", "*", "https://anything.example", http.MethodGet, "https://anything.example", 200},
		{"local dev port", "http://localhost:5173", "http://localhost:8080", http.MethodGet, "http://localhost:8080", 200},
		{"preflight", "*", "https://x.example", http.MethodOptions, "https://x.example", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/protocols", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			CORS(tt.configured)(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("allow-origin = %q, want %q", got, tt.wantOrigin)
			}
		})
	}
}

func TestWrappersUnwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	if (&responseWriter{ResponseWriter: rec}).Unwrap() != rec {
		t.Error("responseWriter.Unwrap did not return the wrapped writer")
	}
	if (&statusRecorder{ResponseWriter: rec}).Unwrap() != rec {
		t.Error("statusRecorder.Unwrap did not return the wrapped writer")
	}
}
