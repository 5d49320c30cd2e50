package application

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/referral-tree/internal/domain/entity"
	repo "github.com/oksasatya/referral-tree/internal/domain/repository"
	"github.com/oksasatya/referral-tree/pkg/apperror"
	"github.com/oksasatya/referral-tree/pkg/helpers"
)

var errInvalidCredentials = apperror.Unauthorized("invalid credentials")

// AuthService issues and checks member credentials. Sessions live in Redis
// when a client is configured; without one, tokens alone are trusted.
type AuthService struct {
	Repo        repo.MemberRepository
	JWT         *helpers.JWTManager
	Redis       *redis.Client
	Logger      *logrus.Logger
	CallTimeout time.Duration
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

type LoginResponse struct {
	MemberID string `json:"member_id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	IsAdmin  bool   `json:"is_admin"`
}

func sessionKey(memberID string) string {
	return "member:session:" + memberID
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func NewAuthService(r repo.MemberRepository, jwt *helpers.JWTManager, rdb *redis.Client, logger *logrus.Logger, callTimeout time.Duration) *AuthService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthService{Repo: r, JWT: jwt, Redis: rdb, Logger: logger, CallTimeout: callTimeout}
}

func (s *AuthService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.CallTimeout)
}

func (s *AuthService) find(ctx context.Context, byEmail bool, key string) (*entity.Member, error) {
	c, cancel := s.withTimeout(ctx)
	defer cancel()
	if byEmail {
		return s.Repo.FindByEmail(c, key)
	}
	return s.Repo.FindByID(c, key)
}

// Login checks email and password and starts a new session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResponse, TokenPair, error) {
	m, err := s.find(ctx, true, email)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, TokenPair{}, errInvalidCredentials
	}
	if err != nil {
		return nil, TokenPair{}, apperror.Internal("load member", err)
	}
	if m.PasswordHash == "" || !helpers.CompareHashAndPassword(m.PasswordHash, password) {
		return nil, TokenPair{}, errInvalidCredentials
	}
	pair, err := s.issue(ctx, m)
	if err != nil {
		return nil, TokenPair{}, err
	}
	s.Logger.WithField("member_id", m.ID).Info("member logged in")
	return &LoginResponse{MemberID: m.ID, Email: m.Email, Name: m.Name, IsAdmin: m.IsAdmin}, pair, nil
}

func (s *AuthService) issue(ctx context.Context, m *entity.Member) (TokenPair, error) {
	sid := uuid.NewString()
	access, aexp, err := s.JWT.GenerateAccessToken(m.ID, sid)
	if err != nil {
		s.Logger.WithError(err).WithField("member_id", m.ID).Error("generate access token failed")
		return TokenPair{}, apperror.Internal("issue token", err)
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(m.ID, sid)
	if err != nil {
		s.Logger.WithError(err).WithField("member_id", m.ID).Error("generate refresh token failed")
		return TokenPair{}, apperror.Internal("issue token", err)
	}

	if s.Redis != nil {
		key := sessionKey(m.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, map[string]any{
			"member_id":  m.ID,
			"email":      m.Email,
			"name":       m.Name,
			"is_admin":   strconv.FormatBool(m.IsAdmin),
			"sid":        sid,
			"created_at": nowRFC3339(),
		})
		pipe.Expire(ctx, key, s.JWT.RefreshTTL)
		if _, rErr := pipe.Exec(ctx); rErr != nil {
			s.Logger.WithError(rErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}
	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

// sessionMatches reports whether sid is the member's current session.
func (s *AuthService) sessionMatches(ctx context.Context, memberID, sid string) bool {
	if s.Redis == nil {
		return true
	}
	current, err := s.Redis.HGet(ctx, sessionKey(memberID), "sid").Result()
	return err == nil && current == sid
}

// Refresh rotates the session id and both tokens.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, apperror.Unauthorized("invalid refresh token")
	}
	if !s.sessionMatches(ctx, claims.MemberID, claims.SessionID) {
		return TokenPair{}, apperror.Unauthorized("session expired")
	}
	m, err := s.find(ctx, false, claims.MemberID)
	if err != nil {
		return TokenPair{}, apperror.Unauthorized("invalid refresh token")
	}
	return s.issue(ctx, m)
}

// Authenticate resolves an access token to the acting member.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*entity.Member, error) {
	claims, err := s.JWT.ParseAccessToken(accessToken)
	if err != nil {
		return nil, apperror.Unauthorized("invalid access token")
	}
	if !s.sessionMatches(ctx, claims.MemberID, claims.SessionID) {
		return nil, apperror.Unauthorized("session not found")
	}
	m, err := s.find(ctx, false, claims.MemberID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, apperror.Unauthorized("member no longer exists")
	}
	if err != nil {
		return nil, apperror.Internal("load actor", err)
	}
	return m, nil
}

// Logout ends the member's session.
func (s *AuthService) Logout(ctx context.Context, memberID string) {
	RevokeSession(ctx, s.Redis, s.Logger, memberID)
}

// RevokeSession drops the stored session so outstanding tokens stop working.
func RevokeSession(ctx context.Context, rdb *redis.Client, logger *logrus.Logger, memberID string) {
	if rdb == nil {
		return
	}
	if err := helpers.RedisDel(ctx, rdb, sessionKey(memberID)); err != nil {
		logger.WithError(err).WithField("member_id", memberID).Warn("session revoke failed")
	}
}
