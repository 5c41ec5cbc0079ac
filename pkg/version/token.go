package version

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	coreerrors "github.com/agentvfs/core/pkg/errors"
)

// Token is the opaque, monotonic-within-zone VersionToken of spec.md §3,
// encoded as an HMAC-signed JWT carrying {zone, revision, iat} — grounded
// on the teacher's JWTService (internal/controlplane/api/auth/jwt_service.go),
// generalized from a user-session token to an opaque revision token. Callers
// never decode it; they round-trip it through Signer.Sign/Signer.Parse.
type Token struct {
	Zone     string
	Revision uint64
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Zone     string `json:"zone"`
	Revision uint64 `json:"revision"`
}

// Signer mints and validates VersionTokens with a single HMAC key, mirroring
// the teacher's JWTService shape.
type Signer struct {
	secret []byte
	issuer string
}

// NewSigner builds a Signer. secret must be at least 32 bytes, matching the
// teacher's minimum HMAC secret length.
func NewSigner(secret []byte, issuer string) (*Signer, error) {
	if len(secret) < 32 {
		return nil, coreerrors.NewInvalidArgument("version token secret must be at least 32 bytes")
	}
	if issuer == "" {
		issuer = "agentvfs"
	}
	return &Signer{secret: secret, issuer: issuer}, nil
}

// Sign encodes tok as a JWT string.
func (s *Signer) Sign(tok Token) (string, error) {
	claims := &tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: s.issuer},
		Zone:             tok.Zone,
		Revision:         tok.Revision,
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := jt.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign version token: %w", err)
	}
	return signed, nil
}

// Parse validates and decodes a VersionToken string.
func (s *Signer) Parse(raw string) (Token, error) {
	parsed, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Token{}, coreerrors.NewInvalidArgument("version token expired")
		}
		return Token{}, coreerrors.NewInvalidArgument("malformed version token")
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Token{}, coreerrors.NewInvalidArgument("malformed version token")
	}
	return Token{Zone: claims.Zone, Revision: claims.Revision}, nil
}
