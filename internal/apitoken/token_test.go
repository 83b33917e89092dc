package apitoken

import (
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	signer, err := NewSigner(SignerOptions{Secret: "studio-secret", TTL: time.Minute})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	verifier, err := NewVerifier(VerifierOptions{Secret: "studio-secret", Leeway: time.Second})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	token, err := signer.Sign("studio-ui")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Issuer != DefaultIssuer {
		t.Fatalf("unexpected issuer: %s", claims.Issuer)
	}
	if claims.Subject != "studio-ui" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
}

func TestSignerRequiresSecret(t *testing.T) {
	if _, err := NewSigner(SignerOptions{}); err == nil {
		t.Fatalf("expected missing secret to fail")
	}
}

func TestVerifierRejectsWrongSecret(t *testing.T) {
	signer, _ := NewSigner(SignerOptions{Secret: "studio-secret"})
	verifier, _ := NewVerifier(VerifierOptions{Secret: "another-secret"})
	token, _ := signer.Sign("studio-ui")
	if _, err := verifier.Verify(token); err == nil {
		t.Fatalf("expected signature mismatch")
	}
}

func TestVerifierRejectsWrongIssuer(t *testing.T) {
	signer, _ := NewSigner(SignerOptions{Secret: "studio-secret", Issuer: "someone-else"})
	verifier, _ := NewVerifier(VerifierOptions{Secret: "studio-secret"})
	token, _ := signer.Sign("studio-ui")
	if _, err := verifier.Verify(token); err == nil {
		t.Fatalf("expected issuer mismatch")
	}
}

func TestVerifierRejectsExpiredToken(t *testing.T) {
	verifier, err := NewVerifier(VerifierOptions{Secret: "studio-secret", Leeway: time.Second})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	past := time.Now().UTC().Add(-10 * time.Minute)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    DefaultIssuer,
		Subject:   "studio-ui",
		IssuedAt:  jwt.NewNumericDate(past),
		NotBefore: jwt.NewNumericDate(past),
		ExpiresAt: jwt.NewNumericDate(past.Add(time.Minute)),
		ID:        "jti-expired",
	})
	signed, err := token.SignedString([]byte("studio-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := verifier.Verify(signed); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestVerifierRejectsUnsupportedAlg(t *testing.T) {
	verifier, err := NewVerifier(VerifierOptions{Secret: "studio-secret"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Issuer:    DefaultIssuer,
		Subject:   "studio-ui",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		ID:        "jti-alg",
	})
	signed, err := token.SignedString([]byte("studio-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := verifier.Verify(signed); err == nil {
		t.Fatalf("expected non-HS256 token to fail")
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer abc")
	token, ok := BearerToken(req)
	if !ok || token != "abc" {
		t.Fatalf("expected bearer token")
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	if _, ok := BearerToken(req); ok {
		t.Fatalf("expected non-bearer scheme to be rejected")
	}
}
