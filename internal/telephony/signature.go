package telephony

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

const SignatureHeader = "openphone-signature"

var ErrInvalidSignature = errors.New("telephony: invalid webhook signature")

// Verifier checks the openphone-signature header:
//
//	hmac;1;<unix millis>;<base64 HMAC-SHA256(timestamp + "." + body)>
//
// The signing key is the base64 secret from the OpenPhone console.
type Verifier struct {
	key []byte
	// Tolerance bounds clock skew between the signed timestamp and now.
	// Zero disables the check.
	Tolerance time.Duration
	Now       func() time.Time
}

func NewVerifier(secret string) (*Verifier, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(secret))
	if err != nil || len(key) == 0 {
		return nil, errors.New("telephony: webhook secret must be base64")
	}
	return &Verifier{key: key, Tolerance: 5 * time.Minute, Now: time.Now}, nil
}

func (v *Verifier) Verify(header string, body []byte) error {
	parts := strings.Split(strings.TrimSpace(header), ";")
	if len(parts) != 4 || parts[0] != "hmac" || parts[1] != "1" {
		return ErrInvalidSignature
	}
	ts, sig := parts[2], parts[3]

	if v.Tolerance > 0 {
		ms, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return ErrInvalidSignature
		}
		skew := v.Now().Sub(time.UnixMilli(ms))
		if skew < 0 {
			skew = -skew
		}
		if skew > v.Tolerance {
			return ErrInvalidSignature
		}
	}

	got, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(got, v.sign(ts, body)) {
		return ErrInvalidSignature
	}
	return nil
}

func (v *Verifier) sign(ts string, body []byte) []byte {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}

// Sign builds a header value for body at t. Used by tests and local replay tooling.
func (v *Verifier) Sign(t time.Time, body []byte) string {
	ts := strconv.FormatInt(t.UnixMilli(), 10)
	return "hmac;1;" + ts + ";" + base64.StdEncoding.EncodeToString(v.sign(ts, body))
}
