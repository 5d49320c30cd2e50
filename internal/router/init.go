package router

import (
	"context"

	app "github.com/oksasatya/referral-tree/internal/application"
	"github.com/oksasatya/referral-tree/internal/application/policy"
	"github.com/oksasatya/referral-tree/internal/application/tree"
	"github.com/oksasatya/referral-tree/internal/container"
	repo "github.com/oksasatya/referral-tree/internal/domain/repository"
	"github.com/oksasatya/referral-tree/internal/infrastructure/memory"
	pginfra "github.com/oksasatya/referral-tree/internal/infrastructure/postgres"
	"github.com/oksasatya/referral-tree/internal/infrastructure/search"
	handlers "github.com/oksasatya/referral-tree/internal/interface/http"
	"github.com/oksasatya/referral-tree/internal/router/modules"
	"github.com/oksasatya/referral-tree/pkg/helpers"
)

type MemberModuleDeps struct {
	Repo          repo.MemberRepository
	Members       *app.MemberService
	Auth          *app.AuthService
	MemberHandler *handlers.MemberHandler
	AuthHandler   *handlers.AuthHandler
}

func buildRepository() repo.MemberRepository {
	if container.GetConfig().StorageDriver == "memory" {
		return memory.NewMemberRepository()
	}
	return pginfra.NewMemberRepository(container.GetPGPool())
}

func buildMemberDeps() MemberModuleDeps {
	cfg := container.GetConfig()
	logger := container.GetLogger()
	store := buildRepository()
	fc := container.GetCipher()

	engine := tree.NewEngine(store, fc, cfg.RepoCallTimeout, logger)
	traverser := tree.NewTraverser(store, fc, cfg.RepoCallTimeout, cfg.TreeMaxDepth, logger)

	members := app.NewMemberService(engine, traverser, policy.Default(), cfg, logger)
	members.Redis = container.GetRedis()
	// Assign optional collaborators only when present so the interfaces stay nil.
	if es := container.GetES(); es != nil {
		members.Index = search.NewMemberIndex(es, cfg.ESMembersIndex)
	}
	if pub := container.GetRabbitPub(); pub != nil {
		members.Events = pub
	}
	if gcs := container.GetGCS(); gcs != nil && cfg.GCSBucket != "" {
		members.Uploader = &helpers.GCSUploader{Client: gcs, Bucket: cfg.GCSBucket}
	}

	auth := app.NewAuthService(store, container.GetJWT(), container.GetRedis(), logger, cfg.RepoCallTimeout)

	// The memory store starts empty on every boot.
	if cfg.StorageDriver == "memory" && cfg.SeedAdminPassword != "" {
		if _, _, err := app.EnsureRootAdmin(context.Background(), engine, logger, cfg.SeedAdminEmail, cfg.SeedAdminName, cfg.SeedAdminPassword); err != nil {
			helpers.LogError(logger, "seed root admin failed", err, nil)
		}
	}

	return MemberModuleDeps{
		Repo:          store,
		Members:       members,
		Auth:          auth,
		MemberHandler: handlers.NewMemberHandler(members, logger),
		AuthHandler:   handlers.NewAuthHandler(auth, cfg.CookieDomain, cfg.CookieSecure, logger),
	}
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	deps := buildMemberDeps()
	r.Add(modules.NewAuthModule(deps.AuthHandler, deps.Auth))
	r.Add(modules.NewMemberModule(deps.MemberHandler, deps.Auth))
	if container.GetConfig().DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
