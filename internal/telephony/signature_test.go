package telephony

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
)

func testVerifier(t *testing.T, now time.Time) *Verifier {
	t.Helper()
	v, err := NewVerifier(base64.StdEncoding.EncodeToString([]byte("signing-key")))
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	v.Now = func() time.Time { return now }
	return v
}

func TestVerifier_AcceptsOwnSignature(t *testing.T) {
	now := time.Unix(1715781600, 0)
	v := testVerifier(t, now)
	body := []byte(`{"type":"call.completed"}`)
	if err := v.Verify(v.Sign(now, body), body); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerifier_Rejects(t *testing.T) {
	now := time.Unix(1715781600, 0)
	v := testVerifier(t, now)
	body := []byte(`{"type":"call.completed"}`)
	good := v.Sign(now, body)

	cases := map[string]struct {
		header string
		body   []byte
	}{
		"tampered body": {good, []byte(`{"type":"call.completed "}`)},
		"wrong scheme":  {strings.Replace(good, "hmac;1", "hmac;2", 1), body},
		"not base64":    {"hmac;1;" + "1715781600000" + ";***", body},
		"empty":         {"", body},
		"stale":         {v.Sign(now.Add(-10*time.Minute), body), body},
	}
	for name, tc := range cases {
		if err := v.Verify(tc.header, tc.body); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("%s: expected ErrInvalidSignature, got %v", name, err)
		}
	}
}

func TestNewVerifier_RequiresBase64(t *testing.T) {
	if _, err := NewVerifier("not base64!"); err == nil {
		t.Fatalf("expected error")
	}
}
