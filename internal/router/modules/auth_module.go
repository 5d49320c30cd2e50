package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/referral-tree/internal/container"
	handlers "github.com/oksasatya/referral-tree/internal/interface/http"
	"github.com/oksasatya/referral-tree/internal/interface/middleware"
)

// AuthModule wires session endpoints.
// Public: POST /api/auth/login, POST /api/auth/refresh
// Protected: POST /api/auth/logout
type AuthModule struct {
	Handler *handlers.AuthHandler
	Auth    middleware.Authenticator
}

func NewAuthModule(h *handlers.AuthHandler, auth middleware.Authenticator) *AuthModule {
	return &AuthModule{Handler: h, Auth: auth}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	loginLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIP(), nil)   // 10 req/min per IP
	refreshLimiter := middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByIP(), nil) // 60 req/min per IP

	rg.POST("/auth/login", loginLimiter, m.Handler.Login)
	rg.POST("/auth/refresh", refreshLimiter, m.Handler.Refresh)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.Auth))
	{
		auth.POST("/auth/logout", m.Handler.Logout)
	}
}
