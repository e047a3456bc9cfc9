package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAuthServiceRoundTrip(t *testing.T) {
	auth := NewAuthService("test-secret")

	token, err := auth.IssueStudentToken(42, 7, time.Hour)
	if err != nil {
		t.Fatalf("IssueStudentToken: %v", err)
	}
	claims, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != 42 || claims.ClassID != 7 || claims.TokenType != TokenTypeStudent {
		t.Errorf("claims = %+v", claims)
	}
}

func TestAuthServiceRejects(t *testing.T) {
	auth := NewAuthService("test-secret")

	expired, _ := auth.IssueStudentToken(1, 0, -time.Minute)
	if _, err := auth.ValidateToken(expired); err == nil {
		t.Error("expired token accepted")
	}

	foreign, _ := NewAuthService("other-secret").IssueStudentToken(1, 0, time.Hour)
	if _, err := auth.ValidateToken(foreign); err == nil {
		t.Error("token signed with another secret accepted")
	}
}

func TestAuthServiceLeewayAndIssuer(t *testing.T) {
	auth := NewAuthService("test-secret", WithIssuer("exstem"))

	// Expired a few seconds ago: inside the default leeway.
	recent, _ := auth.IssueStudentToken(3, 1, -5*time.Second)
	if _, err := auth.ValidateToken(recent); err != nil {
		t.Errorf("token within leeway rejected: %v", err)
	}

	strict := NewAuthService("test-secret", WithIssuer("exstem"), WithLeeway(0))
	if _, err := strict.ValidateToken(recent); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Errorf("err = %v, want ErrTokenExpired", err)
	}

	other, _ := NewAuthService("test-secret", WithIssuer("someone-else")).IssueStudentToken(3, 1, time.Hour)
	if _, err := auth.ValidateToken(other); err == nil {
		t.Error("token from another issuer accepted")
	}

	noUser, _ := NewAuthService("test-secret", WithIssuer("exstem")).IssueStudentToken(0, 1, time.Hour)
	if _, err := auth.ValidateToken(noUser); !errors.Is(err, ErrInvalidClaims) {
		t.Errorf("err = %v, want ErrInvalidClaims", err)
	}
}
