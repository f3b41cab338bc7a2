package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries "ts=<unix>;h1=<hex>" with one or more h1 entries.
const SignatureHeader = "Paddle-Signature"

var (
	ErrSecretNotConfigured = errors.New("webhook secret not configured")
	ErrMissingSignature    = errors.New("missing signature header")
	ErrMalformedSignature  = errors.New("malformed signature header")
	ErrSignatureMismatch   = errors.New("signature mismatch")
	ErrSignatureExpired    = errors.New("signature timestamp outside tolerance")
)

// Verifier checks Paddle webhook signatures. A zero Tolerance accepts any
// timestamp.
type Verifier struct {
	Secret    string
	Tolerance time.Duration
	Now       func() time.Time
}

func (v Verifier) Verify(header string, body []byte) error {
	if v.Secret == "" {
		return ErrSecretNotConfigured
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return ErrMissingSignature
	}

	var ts string
	var hashes []string
	for _, part := range strings.Split(header, ";") {
		key, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return ErrMalformedSignature
		}
		switch key {
		case "ts":
			ts = val
		case "h1":
			hashes = append(hashes, val)
		}
	}
	if ts == "" || len(hashes) == 0 {
		return ErrMalformedSignature
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrMalformedSignature
	}

	expected := []byte(Sign(v.Secret, ts, body))
	matched := false
	for _, h := range hashes {
		if hmac.Equal(expected, []byte(strings.ToLower(h))) {
			matched = true
		}
	}
	if !matched {
		return ErrSignatureMismatch
	}

	if v.Tolerance > 0 {
		age := v.now().Sub(time.Unix(unix, 0))
		if age < 0 {
			age = -age
		}
		if age > v.Tolerance {
			return ErrSignatureExpired
		}
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of "{ts}:{body}".
func Sign(secret, ts string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte(":"))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (v Verifier) now() time.Time {
	if v.Now == nil {
		return time.Now()
	}
	return v.Now()
}
