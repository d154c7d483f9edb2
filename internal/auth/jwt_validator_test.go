package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

func buildToken(t *testing.T, now time.Time, edit func(*jwt.Builder) *jwt.Builder) jwt.Token {
	t.Helper()
	b := jwt.NewBuilder().
		Issuer("issuer").
		Audience([]string{"aud"}).
		Subject("sub").
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(time.Minute))
	if edit != nil {
		b = edit(b)
	}
	token, err := b.Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}
	return token
}

func TestTokenValidatorValidateSuccess(t *testing.T) {
	now := time.Now()
	token := buildToken(t, now, func(b *jwt.Builder) *jwt.Builder {
		return b.Claim(ScopeClaim, "checkout "+ScopeAdmin)
	})
	validator := TokenValidator{Issuer: "issuer", Audience: "aud", ClockSkew: time.Second, Algorithm: jwa.HS256, Scope: ScopeAdmin}
	if err := validator.Validate(token, jwa.HS256, now); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestTokenValidatorRejections(t *testing.T) {
	now := time.Now()
	cases := map[string]struct {
		token     jwt.Token
		algorithm jwa.SignatureAlgorithm
		validator TokenValidator
	}{
		"issuer mismatch": {
			token:     buildToken(t, now, func(b *jwt.Builder) *jwt.Builder { return b.Issuer("other") }),
			algorithm: jwa.HS256,
			validator: TokenValidator{Issuer: "issuer", Audience: "aud", Algorithm: jwa.HS256},
		},
		"expired": {
			token:     buildToken(t, now.Add(-2*time.Hour), nil),
			algorithm: jwa.HS256,
			validator: TokenValidator{Issuer: "issuer", Audience: "aud", Algorithm: jwa.HS256},
		},
		"not yet valid": {
			token:     buildToken(t, now, func(b *jwt.Builder) *jwt.Builder { return b.NotBefore(now.Add(5 * time.Minute)) }),
			algorithm: jwa.HS256,
			validator: TokenValidator{Issuer: "issuer", Audience: "aud", Algorithm: jwa.HS256, ClockSkew: time.Second},
		},
		"algorithm mismatch": {
			token:     buildToken(t, now, nil),
			algorithm: jwa.RS256,
			validator: TokenValidator{Issuer: "issuer", Audience: "aud", Algorithm: jwa.HS256},
		},
		"missing scope": {
			token:     buildToken(t, now, func(b *jwt.Builder) *jwt.Builder { return b.Claim(ScopeClaim, "checkout") }),
			algorithm: jwa.HS256,
			validator: TokenValidator{Algorithm: jwa.HS256, Scope: ScopeAdmin},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if err := tc.validator.Validate(tc.token, tc.algorithm, now); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestTokenValidatorScopeError(t *testing.T) {
	now := time.Now()
	validator := TokenValidator{Algorithm: jwa.HS256, Scope: ScopeAdmin}
	err := validator.Validate(buildToken(t, now, nil), jwa.HS256, now)
	if !errors.Is(err, errMissingScope) {
		t.Fatalf("expected missing scope error, got %v", err)
	}
}
