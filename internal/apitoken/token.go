package apitoken

import (
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/myoungjelee/AI-Lookbook-Studio-sub001/internal/util"
)

const (
	// DefaultIssuer is the issuer claim stamped on history API tokens.
	DefaultIssuer = "lookbook-history"
	// DefaultTokenTTL is the default lifetime for client API tokens.
	DefaultTokenTTL = 24 * time.Hour
	// DefaultLeeway is clock skew tolerance for token validation.
	DefaultLeeway = 30 * time.Second
)

// Signer issues HS256 API tokens for history clients.
type Signer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// SignerOptions configures API token signing.
type SignerOptions struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// Verifier validates HS256 API tokens against the shared secret.
type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// VerifierOptions configures API token verification.
type VerifierOptions struct {
	Secret string
	Issuer string
	Leeway time.Duration
}

// NewSigner creates a signer backed by the shared secret.
func NewSigner(opts SignerOptions) (*Signer, error) {
	secret := strings.TrimSpace(opts.Secret)
	if secret == "" {
		return nil, errors.New("api token secret is required")
	}
	issuer := strings.TrimSpace(opts.Issuer)
	if issuer == "" {
		issuer = DefaultIssuer
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Signer{secret: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

// Sign issues a token for the given client subject.
func (s *Signer) Sign(subject string) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("api token subject is required")
	}
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		ID:        util.NewID(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// NewVerifier creates a verifier backed by the shared secret.
func NewVerifier(opts VerifierOptions) (*Verifier, error) {
	secret := strings.TrimSpace(opts.Secret)
	if secret == "" {
		return nil, errors.New("api token secret is required")
	}
	issuer := strings.TrimSpace(opts.Issuer)
	if issuer == "" {
		issuer = DefaultIssuer
	}
	leeway := opts.Leeway
	if leeway <= 0 {
		leeway = DefaultLeeway
	}
	return &Verifier{secret: []byte(secret), issuer: issuer, leeway: leeway}, nil
}

// Verify validates token signature, expiry, and issuer.
func (v *Verifier) Verify(token string) (jwt.RegisteredClaims, error) {
	claims := jwt.RegisteredClaims{}
	token = strings.TrimSpace(token)
	if token == "" {
		return claims, errors.New("token required")
	}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unsupported signing method")
		}
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return claims, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return claims, errors.New("subject required")
	}
	return claims, nil
}

// BearerToken extracts a bearer token from the request header.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
