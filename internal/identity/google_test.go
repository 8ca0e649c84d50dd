package identity

import (
	"context"
	"testing"

	"tasklane.app/internal/auth"
)

func TestGoogleVerifierRequiresClientID(t *testing.T) {
	v := NewGoogleVerifier("")
	if _, err := v.Verify(context.Background(), "any-token"); err == nil {
		t.Fatal("unconfigured verifier must fail closed")
	}
}

func TestStaticVerifier(t *testing.T) {
	v := StaticVerifier{
		"good": {Email: "user@example.test", Subject: "sub-1"},
	}

	ident, err := v.Verify(context.Background(), "good")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ident.Email != "user@example.test" || ident.Subject != "sub-1" {
		t.Fatalf("unexpected identity: %+v", ident)
	}

	if _, err := v.Verify(context.Background(), "bad"); err == nil {
		t.Fatal("unknown token must fail")
	}

	var _ auth.IdentityVerifier = v
}
