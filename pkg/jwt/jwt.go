package jwt

import (
	"errors"
	"time"

	gojwt "github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// MinKeyLength is the shortest accepted HMAC-SHA256 signing key.
const MinKeyLength = 32

// Claims identify a tenant user. TenantID and UserID are required.
type Claims struct {
	TenantID uuid.UUID `json:"tid"`
	UserID   uuid.UUID `json:"uid"`
	Role     string    `json:"role,omitempty"`
	gojwt.RegisteredClaims
}

// Service signs and parses tokens with a shared HMAC key.
type Service struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
	parser *gojwt.Parser
}

// Option configures a Service.
type Option func(*Service)

// WithIssuer sets the iss claim of issued tokens and requires it on parse.
func WithIssuer(iss string) Option {
	return func(s *Service) { s.issuer = iss }
}

// WithTTL sets the lifetime of issued tokens. Defaults to DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides time.Now for issued timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// DefaultTTL is the token lifetime when WithTTL is not given.
const DefaultTTL = 12 * time.Hour

// New creates a Service. The key must be at least MinKeyLength bytes.
func New(key []byte, opts ...Option) (*Service, error) {
	if len(key) == 0 {
		return nil, ErrMissingSigningKey
	}
	if len(key) < MinKeyLength {
		return nil, ErrWeakSigningKey
	}
	s := &Service{
		key:    key,
		ttl:    DefaultTTL,
		now:    time.Now,
		parser: gojwt.NewParser(gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()})),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewFromString is New for string keys read from configuration.
func NewFromString(key string, opts ...Option) (*Service, error) {
	return New([]byte(key), opts...)
}

// TTL reports the lifetime of issued tokens.
func (s *Service) TTL() time.Duration { return s.ttl }

// Issue signs a token for the user of a tenant and returns it with its
// claims.
func (s *Service) Issue(tenantID, userID uuid.UUID, role string) (string, Claims, error) {
	if tenantID == uuid.Nil || userID == uuid.Nil {
		return "", Claims{}, ErrInvalidClaims
	}
	now := s.now().UTC()
	claims := Claims{
		TenantID: tenantID,
		UserID:   userID,
		Role:     role,
		RegisteredClaims: gojwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			Issuer:    s.issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			NotBefore: gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", Claims{}, errors.Join(ErrInvalidToken, err)
	}
	return token, claims, nil
}

// Parse verifies the signature and time claims of token and returns its
// claims. Tokens signed with anything but HS256 are rejected.
func (s *Service) Parse(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrMissingToken
	}
	var claims Claims
	_, err := s.parser.ParseWithClaims(token, &claims, func(*gojwt.Token) (any, error) {
		return s.key, nil
	})
	switch {
	case errors.Is(err, gojwt.ErrTokenExpired):
		return Claims{}, ErrExpiredToken
	case err != nil:
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}
	if claims.TenantID == uuid.Nil || claims.UserID == uuid.Nil {
		return Claims{}, ErrInvalidClaims
	}
	if s.issuer != "" && !claims.VerifyIssuer(s.issuer, true) {
		return Claims{}, ErrInvalidClaims
	}
	return claims, nil
}
