package auth

import (
	"errors"
	"testing"
	"time"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	ok, err := VerifyPassword(hash, "s3cret-pass")
	if err != nil || !ok {
		t.Fatalf("VerifyPassword(correct) = %v, %v; want true, nil", ok, err)
	}

	ok, err = VerifyPassword(hash, "wrong")
	if err != nil {
		t.Fatalf("VerifyPassword(wrong) error: %v", err)
	}
	if ok {
		t.Error("expected wrong password to be rejected")
	}
}

func TestIssueAndParse(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	want := Principal{UserID: 42, Username: "anna", Role: RoleSeller, ProfileID: 7}

	token, err := issuer.Issue(want)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	got, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got != want {
		t.Errorf("Parse() = %+v, want %+v", got, want)
	}

	if _, ok := got.CustomerID(); ok {
		t.Error("seller principal must not expose a customer id")
	}
	if id, ok := got.SellerID(); !ok || id != 7 {
		t.Errorf("SellerID() = %d, %v; want 7, true", id, ok)
	}
}

func TestParseRejects(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)
	p := Principal{UserID: 1, Username: "u", Role: RoleCustomer, ProfileID: 1}

	other, _ := NewIssuer("other-secret", time.Hour).Issue(p)
	expired, _ := NewIssuer("test-secret", -time.Minute).Issue(p)

	tests := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": other,
		"expired":      expired,
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := issuer.Parse(token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Parse() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}
