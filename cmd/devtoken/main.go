// Command devtoken mints a portal token for local development.
//
//	go run ./cmd/devtoken -user designer-1 -role designer -name Dana
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/GianDevelops/corex-portal/internal/auth"
	"github.com/GianDevelops/corex-portal/internal/config"
	"github.com/GianDevelops/corex-portal/internal/models"
	"github.com/GianDevelops/corex-portal/pkg/logger"
)

func main() {
	userID := flag.String("user", "", "user id (required)")
	role := flag.String("role", string(models.RoleClient), "designer or client")
	name := flag.String("name", "", "display name")
	email := flag.String("email", "", "email address")
	flag.Parse()

	log := logger.New()

	if *userID == "" || !models.ValidRoles[models.Role(*role)] {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	token, expires, err := tokens.Issue(models.Actor{
		UserID:      *userID,
		Role:        models.Role(*role),
		DisplayName: *name,
		Email:       *email,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue token")
	}

	log.Info().Str("user_id", *userID).Time("expires", expires).Msg("Token issued")
	fmt.Println(token)
}
