package gateways

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"hash"
	"strconv"
	"strings"
	"time"
)

func sign(h func() hash.Hash, secret string, payload []byte) string {
	mac := hmac.New(h, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func signSHA512(secret string, payload []byte) string {
	return sign(sha512.New, secret, payload)
}

func signSHA256(secret string, payload []byte) string {
	return sign(sha256.New, secret, payload)
}

// equalHex compares two hex digests in constant time, ignoring case.
func equalHex(expected, got string) bool {
	if expected == "" || got == "" {
		return false
	}
	return hmac.Equal([]byte(strings.ToLower(expected)), []byte(strings.ToLower(strings.TrimSpace(got))))
}

// sortedJSON re-encodes a JSON document with object keys sorted at every level,
// numbers kept as written and HTML characters left unescaped.
func sortedJSON(payload []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// stripeSignature is a parsed "t=...,v1=...,v1=..." header.
type stripeSignature struct {
	timestamp int64
	v1        []string
}

func parseStripeSignature(header string) (*stripeSignature, bool) {
	sig := &stripeSignature{}
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return nil, false
			}
			sig.timestamp = ts
		case "v1":
			sig.v1 = append(sig.v1, kv[1])
		}
	}
	if sig.timestamp == 0 || len(sig.v1) == 0 {
		return nil, false
	}
	return sig, true
}

// verifyStripe checks any v1 signature over "t.payload" and that t is within tolerance of now.
func verifyStripe(secret string, payload []byte, header string, tolerance time.Duration, now time.Time) bool {
	if secret == "" {
		return false
	}
	sig, ok := parseStripeSignature(header)
	if !ok {
		return false
	}
	signedAt := time.Unix(sig.timestamp, 0)
	if tolerance > 0 {
		if d := now.Sub(signedAt); d > tolerance || d < -tolerance {
			return false
		}
	}

	signed := make([]byte, 0, len(payload)+24)
	signed = append(signed, strconv.FormatInt(sig.timestamp, 10)...)
	signed = append(signed, '.')
	signed = append(signed, payload...)
	expected := signSHA256(secret, signed)
	for _, v := range sig.v1 {
		if equalHex(expected, v) {
			return true
		}
	}
	return false
}

// SignStripe builds a header value for payload signed at ts. Used by the replay tool and tests.
func SignStripe(secret string, payload []byte, ts time.Time) string {
	t := strconv.FormatInt(ts.Unix(), 10)
	return "t=" + t + ",v1=" + signSHA256(secret, append([]byte(t+"."), payload...))
}
