// Package token issues and verifies the signed tokens used for
// sessions. Access and refresh tokens share one signing scheme and are
// told apart by an obfuscated purpose claim.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"usersystem/internal/pkg/secretcodec"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Purpose tags what a token is good for.
type Purpose string

const (
	PurposeAccess  Purpose = "at"
	PurposeRefresh Purpose = "rt"
)

var (
	// ErrExpired means the signature checked out but exp is in the past.
	// Callers rely on telling this apart from ErrInvalid: logout treats
	// an expired refresh token as a no-op while an invalid one is a
	// hard rejection.
	ErrExpired = errors.New("token expired")
	// ErrInvalid covers bad signatures, malformed tokens, unsupported
	// algorithms and claim shape mismatches.
	ErrInvalid = errors.New("token invalid")
	// ErrWrongPurpose means a structurally valid token was presented to
	// an endpoint expecting the other token kind.
	ErrWrongPurpose = errors.New("token purpose mismatch")
)

// Claims is the wire shape of a signed token. Subject and Purpose are
// obfuscated with secretcodec before signing; TokenKey is carried raw.
type Claims struct {
	TokenKey string `json:"t"`
	Purpose  string `json:"p"`
	jwtlib.RegisteredClaims
}

// Payload is a verified, decoded token.
type Payload struct {
	UserID    int64
	Purpose   Purpose
	TokenKey  string
	ExpiresAt time.Time
}

// Service signs and verifies tokens with a configured HMAC secret and
// algorithm. Safe for concurrent use.
type Service struct {
	secret []byte
	method jwtlib.SigningMethod
	alg    string
}

func New(secret, algorithm string) (*Service, error) {
	if secret == "" {
		return nil, errors.New("token: empty signing secret")
	}
	switch algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return nil, errors.New("token: unsupported signing algorithm " + algorithm)
	}
	return &Service{
		secret: []byte(secret),
		method: jwtlib.GetSigningMethod(algorithm),
		alg:    algorithm,
	}, nil
}

// Issue signs a token for userID. The result is deterministic for
// identical inputs and secret.
func (s *Service) Issue(userID int64, purpose Purpose, tokenKey string, expiresAt time.Time) (string, error) {
	claims := Claims{
		TokenKey: tokenKey,
		Purpose:  secretcodec.Encode(string(purpose)),
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   secretcodec.Encode(strconv.FormatInt(userID, 10)),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt.UTC()),
		},
	}
	tok := jwtlib.NewWithClaims(s.method, claims)
	return tok.SignedString(s.secret)
}

// Verify checks signature and expiry, decodes the claims and enforces
// the expected purpose. Expiry is evaluated against the verification
// clock in UTC.
func (s *Service) Verify(tokenStr string, expected Purpose) (*Payload, error) {
	var claims Claims
	tok, err := jwtlib.ParseWithClaims(tokenStr, &claims, func(t *jwtlib.Token) (any, error) {
		return s.secret, nil
	}, jwtlib.WithValidMethods([]string{s.alg}), jwtlib.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	if !tok.Valid {
		return nil, ErrInvalid
	}

	purpose, err := secretcodec.Decode(claims.Purpose)
	if err != nil {
		return nil, ErrInvalid
	}
	if Purpose(purpose) != expected {
		return nil, ErrWrongPurpose
	}

	sub, err := secretcodec.Decode(claims.Subject)
	if err != nil {
		return nil, ErrInvalid
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return nil, ErrInvalid
	}
	if claims.TokenKey == "" {
		return nil, ErrInvalid
	}

	return &Payload{
		UserID:    userID,
		Purpose:   Purpose(purpose),
		TokenKey:  claims.TokenKey,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// RandomKey returns n bytes of entropy as a URL-safe string. Refresh
// keys use more entropy than access keys since they are the more
// powerful credential.
func RandomKey(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
