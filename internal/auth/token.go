package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/rsams/attendance-service/internal/domain"
)

// ErrInvalidToken is returned for every token that fails verification,
// whether malformed, tampered with or expired.
var ErrInvalidToken = errors.New("invalid token")

const defaultTokenTTL = 7 * 24 * time.Hour

// TokenIssuer signs and verifies bearer tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer builds a new issuer. A non-positive ttl falls back to seven days.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock overrides the time source.
func (ti *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	ti.now = now
	return ti
}

// TTL returns the token lifetime.
func (ti *TokenIssuer) TTL() time.Duration {
	return ti.ttl
}

// Claims describes JWT payload.
type Claims struct {
	SubjectID string      `json:"userId"`
	Role      domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issue builds and signs a token for the subject.
func (ti *TokenIssuer) Issue(subjectID string, role domain.Role) (domain.Token, error) {
	issuedAt := ti.now()
	expiresAt := issuedAt.Add(ti.ttl)
	claims := &Claims{
		SubjectID: subjectID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return domain.Token{}, err
	}
	return domain.Token{Value: signed, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
}

// Verify validates signature and expiry together and returns the claims.
func (ti *TokenIssuer) Verify(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return ti.secret, nil
	}, jwt.WithTimeFunc(ti.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.SubjectID == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
