package auth

import (
	"context"
	"time"

	"shopkeep/internal/apperr"
	"shopkeep/internal/model"
	"shopkeep/internal/pkg/clock"
	rediskey "shopkeep/pkg/redis"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AdminFinder 按用户名查管理员；不存在返回 (nil, nil)。
type AdminFinder interface {
	FindByUsername(ctx context.Context, username string) (*model.Admin, error)
	RecordLogin(ctx context.Context, h *model.LoginHistory) error
}

// Submitter 异步执行任务，ants.Pool 满足该接口。
type Submitter interface {
	Submit(task func()) error
}

// Session 一次有效登录。
type Session struct {
	Token     string    `json:"token,omitempty"`
	TokenID   string    `json:"-"`
	Username  string    `json:"username"`
	LoginAt   time.Time `json:"login_time"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginMeta 登录请求的来源信息，写入登录历史。
type LoginMeta struct {
	IP        string
	UserAgent string
}

// Service 会话门禁：登录签发、服务端校验、注销。
type Service struct {
	admins AdminFinder
	store  SessionStore
	tokens *TokenIssuer
	clock  clock.Clock
	ttl    time.Duration
	async  Submitter
	log    *zap.Logger
}

func NewService(admins AdminFinder, store SessionStore, tokens *TokenIssuer, clk clock.Clock, ttl time.Duration, async Submitter, log *zap.Logger) *Service {
	return &Service{
		admins: admins,
		store:  store,
		tokens: tokens,
		clock:  clk,
		ttl:    ttl,
		async:  async,
		log:    log,
	}
}

// TTL 会话新鲜度窗口。
func (s *Service) TTL() time.Duration { return s.ttl }

// Login 用户名精确匹配（不去空格、不折叠大小写）；用户不存在与密码错误统一返回 ErrInvalidCredentials。
func (s *Service) Login(ctx context.Context, username, password string, meta LoginMeta) (*Session, error) {
	if username == "" || password == "" {
		return nil, apperr.ErrInvalidCredentials
	}

	admin, err := s.admins.FindByUsername(ctx, username)
	if err != nil {
		return nil, errors.Wrap(apperr.ErrFetchFailed, err.Error())
	}
	if admin == nil {
		return nil, apperr.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.ErrInvalidCredentials
	}

	now := s.clock.Now()
	token, claims, err := s.tokens.Issue(admin.Username, now, s.ttl)
	if err != nil {
		return nil, err
	}
	sess := &Session{
		Token:     token,
		TokenID:   claims.ID,
		Username:  admin.Username,
		LoginAt:   now,
		ExpiresAt: now.Add(s.ttl),
	}
	err = s.store.Save(ctx, rediskey.SessionState{
		TokenID:   sess.TokenID,
		Username:  sess.Username,
		LoginAt:   sess.LoginAt,
		ExpiresAt: sess.ExpiresAt,
	}, s.ttl)
	if err != nil {
		return nil, errors.Wrap(err, "save session")
	}

	s.recordLogin(admin.Username, meta)
	s.log.Info("admin logged in", zap.String("username", admin.Username), zap.String("ip", meta.IP))
	return sess, nil
}

// Validate 服务端校验令牌：签名、会话记录存在、登录时间未超过窗口。
// 过期时顺带清除会话记录；从不续期。
func (s *Service) Validate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, apperr.ErrUnauthenticated
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, errors.Wrap(apperr.ErrUnauthenticated, err.Error())
	}

	loginAt := time.UnixMilli(claims.LoginAt)
	if s.clock.Now().Sub(loginAt) > s.ttl {
		if err := s.store.Delete(ctx, claims.ID, claims.Subject); err != nil {
			s.log.Warn("clear expired session", zap.String("jti", claims.ID), zap.Error(err))
		}
		return nil, apperr.ErrSessionExpired
	}

	state, found, err := s.store.Get(ctx, claims.ID)
	if err != nil {
		return nil, errors.Wrap(apperr.ErrFetchFailed, err.Error())
	}
	if !found || state.Username != claims.Subject {
		return nil, apperr.ErrUnauthenticated
	}

	return &Session{
		TokenID:   claims.ID,
		Username:  claims.Subject,
		LoginAt:   loginAt,
		ExpiresAt: loginAt.Add(s.ttl),
	}, nil
}

// Logout 无条件成功：令牌无效或会话已不存在时什么也不做。
func (s *Service) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return
	}
	if err := s.store.Delete(ctx, claims.ID, claims.Subject); err != nil {
		s.log.Warn("logout delete session", zap.String("jti", claims.ID), zap.Error(err))
		return
	}
	s.log.Info("admin logged out", zap.String("username", claims.Subject))
}

func (s *Service) recordLogin(username string, meta LoginMeta) {
	h := &model.LoginHistory{Username: username, IPAddress: meta.IP, UserAgent: truncate(meta.UserAgent, 255)}
	task := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.admins.RecordLogin(ctx, h); err != nil {
			s.log.Warn("record login history", zap.Error(err))
		}
	}
	if s.async == nil {
		task()
		return
	}
	if err := s.async.Submit(task); err != nil {
		s.log.Warn("submit login history", zap.Error(err))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
