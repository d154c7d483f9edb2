package main

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/supermarket-teller/internal/auth"
	"github.com/noah-isme/supermarket-teller/internal/config"
	"github.com/noah-isme/supermarket-teller/internal/obs"
)

// admintoken prints a bearer token for the admin API signed with JWT_SECRET.
func main() {
	subject := flag.String("sub", "ops", "token subject")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	scopes := flag.String("scope", auth.ScopeAdmin, "space separated scopes")
	flag.Parse()

	logger := obs.NewLogger("console", "info")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if !cfg.AdminEnabled() {
		logger.Fatal().Msg("JWT_SECRET is not set")
	}
	verifier, err := auth.NewVerifier(auth.Config{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Scope:    auth.ScopeAdmin,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise verifier")
	}
	token, err := verifier.Sign(*subject, strings.Fields(*scopes), *ttl)
	if err != nil {
		logger.Fatal().Err(err).Msg("sign token")
	}
	fmt.Println(token)
}
