package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"

	"github.com/oksasatya/referral-tree/config"
	app "github.com/oksasatya/referral-tree/internal/application"
	"github.com/oksasatya/referral-tree/internal/application/tree"
	pginfra "github.com/oksasatya/referral-tree/internal/infrastructure/postgres"
	"github.com/oksasatya/referral-tree/pkg/cipher"
	"github.com/oksasatya/referral-tree/pkg/helpers"
)

// seed creates the admin root member in Postgres. Run it after migrations.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env, "")
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	if cfg.SeedAdminPassword == "" {
		logger.Fatal("SEED_ADMIN_PASSWORD is required")
	}

	ctx := context.Background()
	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
	if err != nil {
		logger.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	fc, err := cipher.New(cfg.CryptoSecretKey)
	if err != nil {
		logger.Fatalf("failed to init field cipher: %v", err)
	}
	engine := tree.NewEngine(pginfra.NewMemberRepository(pool), fc, cfg.RepoCallTimeout, logger)

	root, created, err := app.EnsureRootAdmin(ctx, engine, logger, cfg.SeedAdminEmail, cfg.SeedAdminName, cfg.SeedAdminPassword)
	if err != nil {
		logger.Fatalf("failed to seed root admin: %v", err)
	}
	if !created {
		fmt.Printf("root admin %s already exists; nothing to do\n", cfg.SeedAdminEmail)
		return
	}
	fmt.Printf("seeded root admin: id=%s email=%s name=%s\n", root.ID, root.Email, root.Name)
}
