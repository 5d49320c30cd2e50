package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/referral-tree/internal/domain/entity"
	"github.com/oksasatya/referral-tree/pkg/apperror"
	"github.com/oksasatya/referral-tree/pkg/helpers"
	"github.com/oksasatya/referral-tree/pkg/response"
)

const (
	CtxActorKey    = "actor"
	CtxMemberIDKey = "memberID"
)

// Authenticator resolves an access token to the acting member.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*entity.Member, error)
}

// bearerToken reads "Authorization: Bearer <token>", falling back to the access cookie.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	token, _ := c.Cookie(helpers.AccessCookie)
	return token
}

// Auth authenticates the request and stores the actor in the Gin context.
func Auth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			response.Fail(c, apperror.Unauthorized("missing access token"))
			c.Abort()
			return
		}
		actor, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.Fail(c, err)
			c.Abort()
			return
		}
		SetActor(c, actor)
		c.Next()
	}
}

// RequireAdmin must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ActorFrom(c)
		if actor == nil {
			response.Fail(c, apperror.Unauthorized("authentication required"))
			c.Abort()
			return
		}
		if !actor.IsAdmin {
			response.Error[any](c, http.StatusForbidden, "admin only", response.ErrorBody{Kind: apperror.KindForbidden, Code: "admin_only"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func SetActor(c *gin.Context, actor *entity.Member) {
	c.Set(CtxActorKey, actor)
	c.Set(CtxMemberIDKey, actor.ID)
}

// ActorFrom returns the authenticated member or nil.
func ActorFrom(c *gin.Context) *entity.Member {
	v, ok := c.Get(CtxActorKey)
	if !ok {
		return nil
	}
	actor, _ := v.(*entity.Member)
	return actor
}
