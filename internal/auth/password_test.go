package auth

import (
	"regexp"
	"testing"
)

func TestHashPasswordNonDeterministic(t *testing.T) {
	h1, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected distinct hashes for the same password")
	}
	if !VerifyPassword(h1, "s3cret") || !VerifyPassword(h2, "s3cret") {
		t.Fatal("both hashes must verify against the original password")
	}
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword(hash, "correct horse") {
		t.Fatal("expected match")
	}
	if VerifyPassword(hash, "wrong horse") {
		t.Fatal("expected mismatch")
	}
	if VerifyPassword("", "anything") {
		t.Fatal("empty hash must not verify")
	}
	if VerifyPassword("not-a-bcrypt-hash", "anything") {
		t.Fatal("malformed hash must not verify")
	}
}

func TestHashPasswordEmpty(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestGenerateOTPFormat(t *testing.T) {
	digits := regexp.MustCompile(`^\d{6}$`)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateOTP()
		if err != nil {
			t.Fatalf("GenerateOTP: %v", err)
		}
		if !digits.MatchString(code) {
			t.Fatalf("expected six digits, got %q", code)
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatal("expected varying codes across generations")
	}
}

func TestHashTokenDeterministic(t *testing.T) {
	a := HashToken("refresh-token-value")
	b := HashToken("refresh-token-value")
	if a != b {
		t.Fatal("same input must hash identically")
	}
	if a == HashToken("other-value") {
		t.Fatal("distinct inputs must not collide")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha-256 digest, got length %d", len(a))
	}
}
