package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/anoncommunity/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultTokenTTL = 24 * time.Hour

// Claims is what a session token asserts once decoded.
type Claims struct {
	Subject   string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// tokenClaims adds the exact expiry to the registered claims. The standard
// exp claim only has second precision, so it is rounded up and the
// nanosecond value decides.
type tokenClaims struct {
	jwt.RegisteredClaims
	ExpiresAtNano int64 `json:"exp_ns,omitempty"`
}

// TokenCodec issues and decodes HS256 session tokens. The key is fixed at
// construction, so a codec is safe for concurrent use.
type TokenCodec struct {
	secret []byte
}

func NewTokenCodec(secret []byte) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token signing secret is empty")
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenCodec{secret: key}, nil
}

// Issue signs a token for subject valid on [now, now+ttl). A non-positive
// ttl means DefaultTokenTTL.
func (c *TokenCodec) Issue(subject string, now time.Time, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("%w: empty token subject", common.ErrValidation)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	exp := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(ceilSecond(exp)),
		},
		ExpiresAtNano: exp.UnixNano(),
	})

	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tokenString, nil
}

// Decode verifies the signature before looking at any claim, so a forged
// token is reported as ErrInvalidSignature even if it is also expired.
func (c *TokenCodec) Decode(tokenString string, now time.Time) (*Claims, error) {
	tc := &tokenClaims{}

	_, err := jwt.ParseWithClaims(tokenString, tc,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidSignature, err)
	}

	rc := tc.RegisteredClaims
	exp := rc.ExpiresAt.Time
	if tc.ExpiresAtNano != 0 {
		exp = time.Unix(0, tc.ExpiresAtNano)
	}
	if !now.Before(exp) {
		return nil, common.ErrTokenExpired
	}

	claims := &Claims{
		Subject:   rc.Subject,
		TokenID:   rc.ID,
		ExpiresAt: exp.UTC(),
	}
	if rc.IssuedAt != nil {
		claims.IssuedAt = rc.IssuedAt.Time.UTC()
	}
	return claims, nil
}

func ceilSecond(t time.Time) time.Time {
	if s := t.Truncate(time.Second); !s.Equal(t) {
		return s.Add(time.Second)
	}
	return t
}
