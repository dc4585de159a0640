package internal

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNotEntitled  = errors.New("not entitled")
)

const (
	RoleInstructor = "instructor"

	tokenLeeway = time.Minute
)

// ViewerClaims are issued by the platform's auth service.
type ViewerClaims struct {
	jwt.Claims
	Courses []string `json:"courses,omitempty"`
	Roles   []string `json:"roles,omitempty"`
}

// CanView reports whether the token grants access to courseID.
func (c *ViewerClaims) CanView(courseID string) bool {
	return slices.Contains(c.Courses, courseID)
}

// HasRole reports whether the token carries role.
func (c *ViewerClaims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// TokenVerifier checks HS256 bearer tokens from the auth service.
type TokenVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenVerifier creates a verifier for HS256 tokens from cfg.Issuer.
func NewTokenVerifier(cfg *AuthConfig) *TokenVerifier {
	return &TokenVerifier{secret: []byte(cfg.Secret), issuer: cfg.Issuer, now: time.Now}
}

// WithClock replaces the time source used to check expiry.
func (v *TokenVerifier) WithClock(now func() time.Time) *TokenVerifier {
	v.now = now
	return v
}

// Verify checks the signature, issuer and expiry of token.
func (v *TokenVerifier) Verify(token string) (*ViewerClaims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	tok, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims := &ViewerClaims{}
	if err := tok.Claims(v.secret, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Expiry == nil {
		return nil, fmt.Errorf("%w: token has no expiry", ErrInvalidToken)
	}
	expected := jwt.Expected{Issuer: v.issuer, Time: v.now()}
	if err := claims.ValidateWithLeeway(expected, tokenLeeway); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// Authorize verifies token and checks the holder may view courseID. When
// role is non-empty the holder must also have that role.
func (v *TokenVerifier) Authorize(token, courseID, role string) (*ViewerClaims, error) {
	claims, err := v.Verify(token)
	if err != nil {
		return nil, err
	}
	if !claims.CanView(courseID) {
		return nil, fmt.Errorf("%w: course %s", ErrNotEntitled, courseID)
	}
	if role != "" && !claims.HasRole(role) {
		return nil, fmt.Errorf("%w: role %s required", ErrNotEntitled, role)
	}
	return claims, nil
}
