package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := RandomSecret()

	token, err := IssueToken(secret, "u1", "u1@example.com", "Alice", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID() != "u1" || claims.Email != "u1@example.com" || claims.Name != "Alice" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	token, err := IssueToken(RandomSecret(), "u1", "u1@example.com", "", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := ParseToken(RandomSecret(), token); err == nil {
		t.Fatal("token signed with a different secret must not parse")
	}
}

func TestTokenRejectsExpired(t *testing.T) {
	secret := RandomSecret()
	token, err := IssueToken(secret, "u1", "u1@example.com", "", -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := ParseToken(secret, token); err == nil {
		t.Fatal("expired token must not parse")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "correct horse battery staple") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "wrong password") {
		t.Error("wrong password accepted")
	}
}
