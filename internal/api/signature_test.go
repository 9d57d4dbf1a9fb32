package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func signedRequest(t *testing.T, clientID, secret, method, target, body string, at time.Time) *http.Request {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ts := strconv.FormatInt(at.Unix(), 10)
	req.Header.Set("X-Client-ID", clientID)
	req.Header.Set("X-Timestamp", ts)
	req.Header.Set("X-Signature", signForTest(secret, method, req.URL.Path, req.URL.RawQuery, ts, body))
	return req
}

func runMiddleware(req *http.Request, secrets map[string]string) (*httptest.ResponseRecorder, bool, string) {
	rr := httptest.NewRecorder()
	called := false
	var seenBody string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		b, _ := io.ReadAll(r.Body)
		seenBody = string(b)
		w.WriteHeader(http.StatusNoContent)
	})
	NewRequestSignatureMiddleware(secrets, 5*time.Minute)(next).ServeHTTP(rr, req)
	return rr, called, seenBody
}

func TestRequestSignatureMiddleware_AllowsValidSignedRequest(t *testing.T) {
	req := signedRequest(t, "ios-app", "top-secret", http.MethodGet, "/v1/forecast?lat=60.1&lon=24.9", "", time.Now())

	rr, called, _ := runMiddleware(req, map[string]string{"ios-app": "top-secret"})
	if !called {
		t.Fatalf("expected next handler to be called")
	}
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rr.Code)
	}
}

func TestRequestSignatureMiddleware_SignsBodyAndRestoresIt(t *testing.T) {
	body := `{"ids":["b","a"]}`
	req := signedRequest(t, "ios-app", "top-secret", http.MethodPut, "/v1/favorites/order", body, time.Now())

	rr, called, seen := runMiddleware(req, map[string]string{"ios-app": "top-secret"})
	if !called || rr.Code != http.StatusNoContent {
		t.Fatalf("expected signed body to pass, got %d", rr.Code)
	}
	if seen != body {
		t.Fatalf("expected body %q downstream, got %q", body, seen)
	}
}

func TestRequestSignatureMiddleware_RejectsTamperedBody(t *testing.T) {
	req := signedRequest(t, "ios-app", "top-secret", http.MethodPut, "/v1/favorites/order", `{"ids":["a"]}`, time.Now())
	req.Body = io.NopCloser(strings.NewReader(`{"ids":["b"]}`))

	rr, called, _ := runMiddleware(req, map[string]string{"ios-app": "top-secret"})
	if called || rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestRequestSignatureMiddleware_Rejects(t *testing.T) {
	secrets := map[string]string{"ios-app": "top-secret"}
	tests := map[string]*http.Request{
		"unsigned":       httptest.NewRequest(http.MethodGet, "/v1/favorites", nil),
		"unknown client": signedRequest(t, "unknown", "wrong-secret", http.MethodGet, "/v1/favorites", "", time.Now()),
		"wrong secret":   signedRequest(t, "ios-app", "wrong-secret", http.MethodGet, "/v1/favorites", "", time.Now()),
		"stale":          signedRequest(t, "ios-app", "top-secret", http.MethodGet, "/v1/favorites", "", time.Now().Add(-10*time.Minute)),
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			rr, called, _ := runMiddleware(req, secrets)
			if called {
				t.Fatalf("next handler should not run")
			}
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
			}
		})
	}
}

func TestRequestSignatureMiddleware_RejectsOversizedBody(t *testing.T) {
	full := strings.Repeat("a", maxSignedBody+10)
	req := signedRequest(t, "ios-app", "top-secret", http.MethodPost, "/v1/favorites", full[:maxSignedBody], time.Now())
	req.Body = io.NopCloser(strings.NewReader(full))

	rr, called, _ := runMiddleware(req, map[string]string{"ios-app": "top-secret"})
	if called {
		t.Fatalf("expected oversized body to be rejected")
	}
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, rr.Code)
	}
}

func TestRequestSignatureMiddleware_AcceptsBodyAtLimit(t *testing.T) {
	body := strings.Repeat("a", maxSignedBody)
	req := signedRequest(t, "ios-app", "top-secret", http.MethodPost, "/v1/favorites", body, time.Now())

	rr, called, seen := runMiddleware(req, map[string]string{"ios-app": "top-secret"})
	if !called || rr.Code != http.StatusNoContent {
		t.Fatalf("expected body at the limit to pass, got status %d", rr.Code)
	}
	if len(seen) != maxSignedBody {
		t.Fatalf("expected handler to see %d bytes, got %d", maxSignedBody, len(seen))
	}
}

func TestRequestSignatureMiddleware_BypassesNonAPIRoutes(t *testing.T) {
	for _, path := range []string{"/health", "/metrics"} {
		rr, called, _ := runMiddleware(httptest.NewRequest(http.MethodGet, path, nil), map[string]string{"ios-app": "top-secret"})
		if !called {
			t.Fatalf("%s: expected next handler to be called", path)
		}
		if rr.Code != http.StatusNoContent {
			t.Fatalf("%s: expected status %d, got %d", path, http.StatusNoContent, rr.Code)
		}
	}
}

func signForTest(secret, method, path, rawQuery, ts, body string) string {
	digest := sha256.Sum256([]byte(body))
	msg := method + "\n" + path + "\n" + rawQuery + "\n" + ts + "\n" + hex.EncodeToString(digest[:])
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}
