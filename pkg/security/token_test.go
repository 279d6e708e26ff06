package security

import (
	"errors"
	"testing"
)

func TestLoginTokenRoundTrip(t *testing.T) {
	token, err := NewLoginToken()
	if err != nil {
		t.Fatalf("new login token: %v", err)
	}

	parsed, err := ParseLoginToken(token.String())
	if err != nil {
		t.Fatalf("parse login token: %v", err)
	}
	if parsed.ID != token.ID {
		t.Fatalf("expected id %s, got %s", token.ID, parsed.ID)
	}
	if parsed.Secret != token.Secret {
		t.Fatal("secret not preserved")
	}
}

func TestParseLoginTokenRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "no-dot", "not-a-uuid.secret", "3f2c.", "."} {
		if _, err := ParseLoginToken(raw); !errors.Is(err, ErrMalformedToken) {
			t.Fatalf("expected malformed token error for %q, got %v", raw, err)
		}
	}
}

func TestDigestAndVerifySecret(t *testing.T) {
	token, err := NewLoginToken()
	if err != nil {
		t.Fatalf("new login token: %v", err)
	}

	digest, err := DigestSecret(token.Secret)
	if err != nil {
		t.Fatalf("digest secret: %v", err)
	}

	ok, err := VerifySecret(token.Secret, digest)
	if err != nil {
		t.Fatalf("verify secret: %v", err)
	}
	if !ok {
		t.Fatal("expected matching secret to verify")
	}

	ok, err = VerifySecret("wrong-secret", digest)
	if err != nil {
		t.Fatalf("verify wrong secret: %v", err)
	}
	if ok {
		t.Fatal("expected mismatched secret to fail")
	}
}

func TestVerifySecretRejectsMalformedHash(t *testing.T) {
	if _, err := VerifySecret("secret", "$not$a$hash"); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("expected invalid hash error, got %v", err)
	}
}

func TestDigestsAreSalted(t *testing.T) {
	a, err := DigestSecret("same-secret")
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	b, err := DigestSecret("same-secret")
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if a == b {
		t.Fatal("expected unique salts to produce different digests")
	}
}
