package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	v := NewVerifier("test-secret")
	raw, err := v.Sign(Actor{UserID: "user-1", Role: RoleAdmin})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	actor, err := v.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if actor.UserID != "user-1" || !actor.Admin() {
		t.Fatalf("actor = %+v", actor)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	raw, err := NewVerifier("secret-a").Sign(Actor{UserID: "user-1"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := NewVerifier("secret-b").Verify(raw); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestVerifyRejectsNonHMAC(t *testing.T) {
	// alg "none" must never be accepted
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1"})
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := NewVerifier("secret").Verify(raw); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	v := NewVerifier("secret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	raw, err := token.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := v.Verify(raw); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestVerifyRequiresSubject(t *testing.T) {
	v := NewVerifier("secret")
	raw, err := v.Sign(Actor{})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := v.Verify(raw); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestRoleDefaultsToUser(t *testing.T) {
	v := NewVerifier("secret")
	raw, err := v.Sign(Actor{UserID: "user-1"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	actor, err := v.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if actor.Role != RoleUser || actor.Admin() {
		t.Fatalf("actor = %+v, want plain user", actor)
	}
}

func TestFromAuthorization(t *testing.T) {
	v := NewVerifier("secret")
	raw, _ := v.Sign(Actor{UserID: "user-1"})

	if _, err := v.FromAuthorization("Token " + raw); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("non-bearer scheme accepted")
	}
	if _, err := v.FromAuthorization(""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("empty header accepted")
	}
	actor, err := v.FromAuthorization("Bearer " + raw)
	if err != nil || actor.UserID != "user-1" {
		t.Fatalf("actor = %+v, err = %v", actor, err)
	}
}

func TestActorContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if _, ok := ActorFrom(ctx); ok {
		t.Fatalf("empty context yields an actor")
	}
	ctx = WithActor(ctx, Actor{UserID: "user-1", Role: RoleUser})
	actor, ok := ActorFrom(ctx)
	if !ok || actor.UserID != "user-1" {
		t.Fatalf("actor = %+v, ok = %v", actor, ok)
	}
}
