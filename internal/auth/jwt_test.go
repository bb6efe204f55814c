package auth

import (
	"errors"
	"testing"
	"time"

	"fintrack/internal/core"
)

const testSecret = "test-secret-at-least-16-chars"

func TestTokenRoundTrip(t *testing.T) {
	user := &core.User{ID: 42, Email: "alice@example.com"}

	token, err := NewToken(user, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}

	sub, err := Subject(claims)
	if err != nil {
		t.Fatalf("Subject: %v", err)
	}
	if sub != user.Email {
		t.Errorf("subject = %q, want %q", sub, user.Email)
	}
	if uid, ok := claims["uid"].(float64); !ok || int64(uid) != user.ID {
		t.Errorf("uid claim = %v, want %d", claims["uid"], user.ID)
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	user := &core.User{ID: 1, Email: "bob@example.com"}
	token, err := NewToken(user, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}

	if _, err := ParseToken(token, "a-different-secret-entirely"); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("wrong secret error = %v, want ErrUnauthorized", err)
	}
}

func TestParseTokenExpired(t *testing.T) {
	user := &core.User{ID: 1, Email: "bob@example.com"}
	token, err := NewToken(user, testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}

	if _, err := ParseToken(token, testSecret); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("expired token error = %v, want ErrUnauthorized", err)
	}
}

func TestParseTokenGarbage(t *testing.T) {
	if _, err := ParseToken("not.a.token", testSecret); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("garbage token error = %v, want ErrUnauthorized", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-password", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret-password" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPassword(hash, "s3cret-password") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "wrong-password") {
		t.Error("wrong password accepted")
	}
}
