package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/referral-tree/internal/container"
	handlers "github.com/oksasatya/referral-tree/internal/interface/http"
	"github.com/oksasatya/referral-tree/internal/interface/middleware"
)

// MemberModule wires the referral tree endpoints. Every route requires a session;
// attach and export also require an admin.
type MemberModule struct {
	Handler *handlers.MemberHandler
	Auth    middleware.Authenticator
}

func NewMemberModule(h *handlers.MemberHandler, auth middleware.Authenticator) *MemberModule {
	return &MemberModule{Handler: h, Auth: auth}
}

func (m *MemberModule) Register(rg *gin.RouterGroup) {
	rdb := container.GetRedis()
	addLimiter := middleware.RateLimit(rdb, 30, time.Minute, middleware.KeyByMemberID(), nil)
	exportLimiter := middleware.RateLimit(rdb, 5, time.Minute, middleware.KeyByMemberID(), nil)

	members := rg.Group("/members")
	members.Use(middleware.Auth(m.Auth))
	members.Use(
		middleware.RateLimit(rdb, 300, time.Minute, middleware.KeyByIP(), nil),
		middleware.RateLimit(rdb, 120, time.Minute, middleware.KeyByMemberID(), nil),
	)
	{
		members.POST("", addLimiter, m.Handler.Add)
		members.GET("/children", m.Handler.Children)
		members.GET("/tree", m.Handler.MyTree)
		members.GET("/profile", m.Handler.Profile)
		members.GET("/search", m.Handler.Search)

		members.GET("/:id", m.Handler.Get)
		members.PUT("/:id", m.Handler.Update)
		members.DELETE("/:id", m.Handler.Delete)
		members.GET("/:id/tree", m.Handler.Subtree)
	}

	admin := members.Group("/")
	admin.Use(middleware.RequireAdmin())
	{
		admin.POST("/:id/attach", m.Handler.Attach)
		admin.POST("/:id/tree/export", exportLimiter, m.Handler.Export)
	}
}
