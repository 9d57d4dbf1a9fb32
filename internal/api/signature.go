package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"weatherfav/internal/logger"
)

const (
	signatureHeaderClientID  = "X-Client-ID"
	signatureHeaderTimestamp = "X-Timestamp"
	signatureHeaderValue     = "X-Signature"

	maxSignedBody = 1 << 20

	reasonBodyTooLarge = "body too large"
)

var errBodyTooLarge = errors.New("request body exceeds signing limit")

// NewRequestSignatureMiddleware guards /v1/ routes with an HMAC-SHA256
// signature over method, path, query, timestamp and body digest.
func NewRequestSignatureMiddleware(clientSecrets map[string]string, maxAge time.Duration) func(http.Handler) http.Handler {
	log := logger.GetLogger().Named("signature")

	secretByClient := make(map[string][]byte, len(clientSecrets))
	for clientID, secret := range clientSecrets {
		id, s := strings.TrimSpace(clientID), strings.TrimSpace(secret)
		if id == "" || s == "" {
			continue
		}
		secretByClient[id] = []byte(s)
	}
	if maxAge <= 0 {
		maxAge = 5 * time.Minute
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/v1/") {
				next.ServeHTTP(w, r)
				return
			}
			if reason := verifyRequest(r, secretByClient, maxAge, time.Now()); reason != "" {
				log.Debugw("rejected request", "reason", reason, "path", r.URL.Path, "client", r.Header.Get(signatureHeaderClientID))
				if reason == reasonBodyTooLarge {
					writeJSONError(w, "request body too large", http.StatusRequestEntityTooLarge)
					return
				}
				writeJSONError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// verifyRequest returns an empty string for a valid request, otherwise the
// rejection reason. The body is restored for the next handler.
func verifyRequest(r *http.Request, secrets map[string][]byte, maxAge time.Duration, now time.Time) string {
	clientID := strings.TrimSpace(r.Header.Get(signatureHeaderClientID))
	timestamp := strings.TrimSpace(r.Header.Get(signatureHeaderTimestamp))
	signature := strings.TrimPrefix(strings.TrimSpace(r.Header.Get(signatureHeaderValue)), "sha256=")

	if clientID == "" || timestamp == "" || signature == "" {
		return "missing headers"
	}
	secret, ok := secrets[clientID]
	if !ok {
		return "unknown client"
	}
	if !isFreshTimestamp(timestamp, maxAge, now) {
		return "stale timestamp"
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return "malformed signature"
	}

	body, err := readBody(r)
	if errors.Is(err, errBodyTooLarge) {
		return reasonBodyTooLarge
	}
	if err != nil {
		return "unreadable body"
	}
	if !hmac.Equal(got, buildSignature(secret, r.Method, r.URL.Path, r.URL.RawQuery, timestamp, body)) {
		return "signature mismatch"
	}
	return ""
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBody+1))
	r.Body.Close()
	if err != nil {
		return nil, err
	}
	if len(body) > maxSignedBody {
		return nil, errBodyTooLarge
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func isFreshTimestamp(ts string, maxAge time.Duration, now time.Time) bool {
	epochSeconds, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	age := now.Sub(time.Unix(epochSeconds, 0))
	if age < 0 {
		age = -age
	}
	return age <= maxAge
}

func buildSignature(secret []byte, method, path, rawQuery, timestamp string, body []byte) []byte {
	digest := sha256.Sum256(body)
	mac := hmac.New(sha256.New, secret)
	for _, part := range []string{method, path, rawQuery, timestamp} {
		mac.Write([]byte(part))
		mac.Write([]byte("\n"))
	}
	mac.Write([]byte(hex.EncodeToString(digest[:])))
	return mac.Sum(nil)
}
