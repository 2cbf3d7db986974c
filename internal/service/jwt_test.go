package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTRoundTrip(t *testing.T) {
	InitJWT("test-secret", time.Hour)

	token, err := GenerateJWT("user-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseJWT(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("user id = %q", claims.UserID)
	}
	if claims.JTI == "" {
		t.Fatal("expected jti")
	}
	if time.Until(claims.ExpiresAt) <= 0 {
		t.Fatalf("expires at %v is in the past", claims.ExpiresAt)
	}

	other, _ := GenerateJWT("user-1")
	if c2, _ := ParseJWT(other); c2.JTI == claims.JTI {
		t.Fatal("jti must differ between tokens")
	}
}

func TestParseJWTRejects(t *testing.T) {
	InitJWT("test-secret", time.Hour)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-1",
		"exp":     time.Now().Add(-time.Minute).Unix(),
	})
	expiredStr, _ := expired.SignedString([]byte("test-secret"))

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-1",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	foreignStr, _ := foreign.SignedString([]byte("other-secret"))

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "user-1"})
	noExpStr, _ := noExp.SignedString([]byte("test-secret"))

	numericID := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 42,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	numericStr, _ := numericID.SignedString([]byte("test-secret"))

	cases := map[string]string{
		"garbage":    "not-a-token",
		"expired":    expiredStr,
		"foreign":    foreignStr,
		"no expiry":  noExpStr,
		"numeric id": numericStr,
	}
	for name, tok := range cases {
		if _, err := ParseJWT(tok); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
