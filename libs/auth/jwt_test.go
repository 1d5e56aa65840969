package auth

import (
	"testing"
	"time"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	signer, err := NewSigner("test-secret-0123456789", "salon-service", time.Hour)
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}

	token, exp, err := signer.Issue("user-1", "ada@example.com", RoleCustomer)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expected future expiry, got %s", exp)
	}

	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Subject != "user-1" || claims.Role != RoleCustomer || claims.Email != "ada@example.com" {
		t.Fatalf("claims mismatch: got %+v", claims)
	}

	other, _ := NewSigner("another-secret-0123456789", "salon-service", time.Hour)
	if _, err := other.Verify(token); err == nil {
		t.Fatal("expected verification error with wrong secret")
	}
	wrongIssuer, _ := NewSigner("test-secret-0123456789", "someone-else", time.Hour)
	if _, err := wrongIssuer.Verify(token); err == nil {
		t.Fatal("expected verification error with wrong issuer")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	signer, _ := NewSigner("test-secret-0123456789", "salon-service", time.Hour)
	signer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := signer.Issue("user-2", "", RoleAdmin)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := signer.Verify(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestNewSignerRejectsShortSecret(t *testing.T) {
	if _, err := NewSigner("short", "x", time.Hour); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestBearerToken(t *testing.T) {
	if tok, ok := BearerToken("Bearer abc.def.ghi"); !ok || tok != "abc.def.ghi" {
		t.Fatalf("unexpected result %q %v", tok, ok)
	}
	if _, ok := BearerToken("Basic Zm9v"); ok {
		t.Fatal("expected basic auth to be rejected")
	}
	if _, ok := BearerToken("Bearer "); ok {
		t.Fatal("expected empty bearer to be rejected")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("pass1234")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if err := VerifyPassword(hash, "pass1234"); err != nil {
		t.Fatalf("VerifyPassword should succeed: %v", err)
	}
	if err := VerifyPassword(hash, "wrong-pass"); err == nil {
		t.Fatal("VerifyPassword should fail for wrong password")
	}
	if _, err := HashPassword("short"); err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}
