package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"serenity-booking/internal/config"
	"serenity-booking/internal/logging"
	"serenity-booking/internal/service/admin"
)

// admintoken prints a bcrypt hash for ADMIN_PASSWORD_HASH (-hash) or mints a
// bearer token for the admin API signed with ADMIN_JWT_SECRET.
func main() {
	var (
		hash    string
		subject string
	)
	flag.StringVar(&hash, "hash", "", "Password to hash for ADMIN_PASSWORD_HASH")
	flag.StringVar(&subject, "sub", "", "Token subject; defaults to ADMIN_USERNAME")
	flag.Parse()

	cfg := config.FromEnv()
	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("admintoken")

	if hash != "" {
		out, err := admin.HashPassword(hash)
		if err != nil {
			logger.Fatal("hash password", zap.Error(err))
		}
		fmt.Println(out)
		return
	}

	if subject == "" {
		subject = cfg.AdminUsername
	}
	if subject == "" {
		flag.Usage()
		os.Exit(2)
	}

	auth := admin.NewAuthenticator(cfg.AdminJWTSecret, cfg.AdminUsername, cfg.AdminPasswordHash, cfg.AdminTokenTTL)
	token, expires, err := auth.Mint(subject)
	if err != nil {
		logger.Fatal("mint token", zap.Error(err))
	}
	logger.Info("token minted", zap.String("sub", subject), zap.Time("expires_at", expires))
	fmt.Println(token)
}
