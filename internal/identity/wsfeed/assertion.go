package wsfeed

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"rollcall/internal/identity"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// Claims is an identity assertion from the wallet bridge. Subject is the
// active account, or empty when no account is connected.
type Claims struct {
	jwt.RegisteredClaims
}

// Signer issues assertions. The bridge holds the same key as the Verifier.
type Signer struct {
	key    []byte
	issuer string
	now    func() time.Time
}

func NewSigner(key, issuer string) *Signer {
	return &Signer{key: []byte(key), issuer: issuer, now: time.Now}
}

// Sign encodes e as an HS256 token valid for ttl.
func (s *Signer) Sign(e identity.Event, ttl time.Duration) (string, error) {
	now := s.now()
	subject := ""
	if e.Present {
		subject = e.Address.String()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Verifier checks assertions and turns them into identity events.
type Verifier struct {
	key    []byte
	issuer string
}

// NewVerifier creates a verifier. An empty issuer accepts any issuer.
func NewVerifier(key, issuer string) *Verifier {
	return &Verifier{key: []byte(key), issuer: issuer}
}

// Verify returns the event and the token ID used for replay detection.
// Assertions must carry exp and jti.
func (v *Verifier) Verify(token string) (identity.Event, string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return identity.Event{}, "", dErrors.New(dErrors.CodeUnauthorized, "assertion has expired")
		}
		return identity.Event{}, "", dErrors.New(dErrors.CodeUnauthorized, "invalid assertion")
	}
	if !parsed.Valid {
		return identity.Event{}, "", dErrors.New(dErrors.CodeUnauthorized, "invalid assertion")
	}
	if claims.ID == "" {
		return identity.Event{}, "", dErrors.New(dErrors.CodeUnauthorized, "assertion must carry jti")
	}

	if claims.Subject == "" {
		return identity.None, claims.ID, nil
	}
	addr, err := id.ParseAddress(claims.Subject)
	if err != nil {
		return identity.Event{}, "", err
	}
	return identity.Changed(addr), claims.ID, nil
}
