package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes student tokens from anything else the upstream issues.
type TokenType string

const (
	TokenTypeStudent TokenType = "student"
	TokenTypeAdmin   TokenType = "admin"
)

// defaultLeeway absorbs clock skew between the upstream that signs tokens and
// this gateway.
const defaultLeeway = 30 * time.Second

// ErrInvalidClaims is returned for a well-signed token without usable claims.
var ErrInvalidClaims = errors.New("invalid token claims")

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	UserID    int       `json:"user_id"`
	ClassID   int       `json:"class_id,omitempty"`
}

// AuthService validates the bearer tokens students present. The same secret
// is shared with the upstream API, which issues the tokens.
type AuthService struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithIssuer requires tokens to carry iss and stamps it on issued tokens.
func WithIssuer(issuer string) AuthOption {
	return func(s *AuthService) { s.issuer = issuer }
}

// WithLeeway overrides the allowed clock skew.
func WithLeeway(d time.Duration) AuthOption {
	return func(s *AuthService) { s.leeway = d }
}

// NewAuthService creates a new AuthService.
func NewAuthService(secret string, opts ...AuthOption) *AuthService {
	s := &AuthService{secret: []byte(secret), leeway: defaultLeeway}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueStudentToken signs a student token. Used by the mock upstream and the
// issue-token CLI; production tokens come from the upstream login.
func (s *AuthService) IssueStudentToken(studentID, classID int, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   strconv.Itoa(studentID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: TokenTypeStudent,
		UserID:    studentID,
		ClassID:   classID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims. Errors wrap
// the jwt sentinels, so callers can test for jwt.ErrTokenExpired.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(s.leeway),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}
