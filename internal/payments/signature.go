package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the provider's signature over the raw body.
const SignatureHeader = "Stripe-Signature"

var (
	ErrMissingSignature = errors.New("missing signature header")
	ErrBadSignature     = errors.New("signature verification failed")
	ErrStaleTimestamp   = errors.New("signature timestamp outside tolerance")
)

// VerifySignature checks the provider's signature scheme: the header holds
// `t=<unix>,v1=<hex>` pairs, and each v1 value is HMAC-SHA256(secret,
// "<t>.<raw body>"). The raw body must be verified exactly as received,
// before any parsing. Timestamps older than tolerance are rejected to bound
// replay of captured deliveries.
func VerifySignature(body []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if header == "" {
		return ErrMissingSignature
	}

	var timestamp int64
	var candidates []string
	for _, pair := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrBadSignature
			}
			timestamp = ts
		case "v1":
			candidates = append(candidates, v)
		}
	}
	if timestamp == 0 || len(candidates) == 0 {
		return ErrBadSignature
	}
	if tolerance > 0 {
		at := time.Unix(timestamp, 0)
		if now.Sub(at) > tolerance || at.Sub(now) > tolerance {
			return ErrStaleTimestamp
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, candidate := range candidates {
		sig, err := hex.DecodeString(candidate)
		if err != nil {
			continue
		}
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return ErrBadSignature
}

// SignPayload produces a signature header for body at the given time. Used by
// tests and by local tooling that replays events against a dev server.
func SignPayload(body []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}
