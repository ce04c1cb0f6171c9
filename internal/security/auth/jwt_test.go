package auth

import (
	"testing"
	"time"
)

func TestIssueAndValidate(t *testing.T) {
	tm := NewTokenManager("test-secret", "aquamonitor")

	before := time.Now()
	st, err := tm.Issue(7, "alice", []string{"user", "admin"}, 15*time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// expiresAt = now + validity
	want := before.Add(15 * time.Minute)
	if st.ExpiresAt.Before(want.Add(-2*time.Second)) || st.ExpiresAt.After(want.Add(2*time.Second)) {
		t.Errorf("ExpiresAt = %v, want ~%v", st.ExpiresAt, want)
	}

	claims, err := tm.ValidateToken(st.Token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != 7 || claims.Username != "alice" {
		t.Errorf("claims = %+v, want user 7/alice", claims)
	}
	if len(claims.Roles) != 2 || claims.Roles[1] != "admin" {
		t.Errorf("roles not round-tripped: %v", claims.Roles)
	}
}

func TestValidateRejectsOtherSecret(t *testing.T) {
	st, err := NewTokenManager("secret-a", "").Issue(1, "bob", nil, time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := NewTokenManager("secret-b", "").ValidateToken(st.Token); err == nil {
		t.Fatal("expected validation to fail after signing material change")
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	tm := NewTokenManager("test-secret", "")
	st, err := tm.Issue(1, "bob", nil, -time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := tm.ValidateToken(st.Token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestIssueRequiresIdentity(t *testing.T) {
	tm := NewTokenManager("test-secret", "")
	if _, err := tm.Issue(0, "x", nil, time.Minute); err == nil {
		t.Fatal("expected error for missing user id")
	}
	if _, err := tm.Issue(1, "", nil, time.Minute); err == nil {
		t.Fatal("expected error for missing username")
	}
}

func TestExtractToken(t *testing.T) {
	if tok, err := ExtractToken("Bearer abc.def.ghi"); err != nil || tok != "abc.def.ghi" {
		t.Fatalf("ExtractToken = %q, %v", tok, err)
	}
	for _, h := range []string{"", "abc", "Basic abc", "Bearer a b"} {
		if _, err := ExtractToken(h); err == nil {
			t.Errorf("expected error for header %q", h)
		}
	}
}
