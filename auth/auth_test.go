package auth

import (
	"testing"
	"time"
)

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(Config{Enabled: true, Secret: "0123456789abcdef-test"})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return v
}

func TestIssueAndVerify(t *testing.T) {
	v := newTestVerifier(t)

	token, err := v.Issue("user-1", "meetings")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("expected subject user-1, got %q", claims.Subject)
	}
	if claims.Scope != "meetings" {
		t.Errorf("expected scope meetings, got %q", claims.Scope)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	v := newTestVerifier(t)
	token, err := v.Issue("user-1", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	v.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	if _, err := v.Verify(token); err == nil {
		t.Error("expected expired token to be rejected")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v := newTestVerifier(t)
	token, _ := v.Issue("user-1", "")

	other, err := NewVerifier(Config{Secret: "another-secret-value-xx"})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	if _, err := other.Verify(token); err == nil {
		t.Error("expected signature mismatch")
	}
	if _, err := v.Verify("not.a.token"); err == nil {
		t.Error("expected garbage token to be rejected")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Enabled: true, Secret: "short"}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Error("expected short secret to fail validation")
	}
	cfg = Config{}
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled auth should validate, got %v", err)
	}
}
