package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when a request carries no bearer credential.
	ErrMissingToken = errors.New("missing auth token")
	// ErrInvalidToken covers bad signatures, expiry, malformed input and missing claims.
	ErrInvalidToken = errors.New("invalid auth token")
)

// Claims defines the JWT claims structure.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Identity is the caller resolved from a verified token.
type Identity struct {
	UserID string
}

// TokenIssuer signs and verifies bearer tokens with a shared HMAC secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer. Every token it signs expires after ttl.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue creates a new JWT for a given user and returns it with its expiry.
func (i *TokenIssuer) Issue(userID string) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a JWT string.
func (i *TokenIssuer) Verify(tokenStr string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: claims.UserID}, nil
}

// Authenticate extracts the bearer token from r and verifies it.
func (i *TokenIssuer) Authenticate(r *http.Request) (Identity, error) {
	tokenStr, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return Identity{}, ErrMissingToken
	}
	return i.Verify(tokenStr)
}

// QueryFallback accepts a token from the given query parameter when the request
// has no Authorization header. Browsers cannot set headers on websocket upgrades.
type QueryFallback struct {
	Issuer *TokenIssuer
	Param  string
}

// Authenticate implements Authenticator.
func (q QueryFallback) Authenticate(r *http.Request) (Identity, error) {
	if strings.TrimSpace(r.Header.Get("Authorization")) != "" {
		return q.Issuer.Authenticate(r)
	}
	tokenStr := strings.TrimSpace(r.URL.Query().Get(q.Param))
	if tokenStr == "" {
		return Identity{}, ErrMissingToken
	}
	return q.Issuer.Verify(tokenStr)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
