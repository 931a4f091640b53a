package jwtutil

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("secret", time.Hour, 12, "ops")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.OperatorID != 12 || claims.Username != "ops" || claims.Subject != "12" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseTokenRejects(t *testing.T) {
	token, _ := GenerateToken("secret", time.Hour, 1, "ops")
	if _, err := ParseToken("other", token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong secret: %v", err)
	}

	expired, _ := GenerateToken("secret", -time.Minute, 1, "ops")
	if _, err := ParseToken("secret", expired); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired: %v", err)
	}

	if _, err := GenerateToken("", time.Hour, 1, "ops"); err == nil {
		t.Error("empty secret should fail")
	}
}
