package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	app "github.com/oksasatya/referral-tree/internal/application"
	"github.com/oksasatya/referral-tree/internal/interface/middleware"
	"github.com/oksasatya/referral-tree/pkg/apperror"
	"github.com/oksasatya/referral-tree/pkg/helpers"
	"github.com/oksasatya/referral-tree/pkg/response"
	"github.com/oksasatya/referral-tree/pkg/validation"
)

type AuthHandler struct {
	Svc     *app.AuthService
	Cookies *helpers.Manager
	Logger  *logrus.Logger
}

func NewAuthHandler(svc *app.AuthService, cookieDomain string, cookieSecure bool, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{Svc: svc, Cookies: helpers.NewCookie(cookieDomain, cookieSecure), Logger: logger}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type tokenData struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

func tokenDataOf(p app.TokenPair) tokenData {
	return tokenData{AccessToken: p.AccessToken, ExpiresAt: p.AccessTokenExpiry.Unix()}
}

// Login POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, validation.ToDetails(err))
		return
	}
	res, pair, err := h.Svc.Login(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		response.Fail(c, err)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, gin.H{"member": res, "token": tokenDataOf(pair)}, "logged in", nil)
}

// Refresh POST /api/auth/refresh; the token comes from the cookie or {"refresh_token"}.
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, _ := c.Cookie(helpers.RefreshCookie)
	if token == "" {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = c.ShouldBindJSON(&body)
		token = body.RefreshToken
	}
	if token == "" {
		response.Fail(c, apperror.Unauthorized("missing refresh token"))
		return
	}
	pair, err := h.Svc.Refresh(c.Request.Context(), token)
	if err != nil {
		h.Cookies.Clear(c)
		response.Fail(c, err)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, tokenDataOf(pair), "token refreshed", nil)
}

// Logout POST /api/auth/logout (auth required)
func (h *AuthHandler) Logout(c *gin.Context) {
	if actor := middleware.ActorFrom(c); actor != nil {
		h.Svc.Logout(c.Request.Context(), actor.ID)
	}
	h.Cookies.Clear(c)
	response.Success(c, http.StatusOK, gin.H{"logged_out": true}, "logged out", nil)
}
