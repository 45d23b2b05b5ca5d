package security

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestSignAndParseAdminToken(t *testing.T) {
	token, errSign := SignAdminToken("secret", time.Hour)
	if errSign != nil {
		t.Fatalf("sign: %v", errSign)
	}

	claims, errParse := ParseAdminToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.Subject != "admin" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}

	if _, errWrong := ParseAdminToken("other-secret", token); errWrong == nil {
		t.Fatalf("expected parse failure with wrong secret")
	}
}

func TestSignAdminTokenRequiresSecret(t *testing.T) {
	if _, errSign := SignAdminToken("  ", time.Hour); errSign == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestParseAdminTokenRejectsGarbage(t *testing.T) {
	if _, errParse := ParseAdminToken("secret", "not.a.token"); errParse == nil {
		t.Fatalf("expected parse failure")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, errHash := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	if !CheckPassword(string(hash), "hunter2") {
		t.Fatalf("expected password match")
	}
	if CheckPassword(string(hash), "wrong") {
		t.Fatalf("expected mismatch")
	}
}
