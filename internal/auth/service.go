package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const msgInvalidPIN = "Invalid PIN"

type Service struct {
	users    UserStore
	sessions SessionStore
	limiter  *PinLimiter
	secret   string
	ttl      time.Duration
	log      *zap.Logger
	failures prometheus.Counter
}

type Options struct {
	Secret     string
	SessionTTL time.Duration
	Limiter    *PinLimiter
	// Failures counts rejected PINs; may be nil.
	Failures prometheus.Counter
}

func NewService(users UserStore, sessions SessionStore, opts Options, log *zap.Logger) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		limiter:  opts.Limiter,
		secret:   opts.Secret,
		ttl:      opts.SessionTTL,
		log:      log,
		failures: opts.Failures,
	}
}

type LoginResult struct {
	Token         string       `json:"token"`
	ExpiresAt     time.Time    `json:"expires_at"`
	User          *models.User `json:"user"`
	Screens       []Screen     `json:"screens"`
	DefaultScreen Screen       `json:"default_screen"`
}

// LoginWithPIN verifies pin against every active user's hash. clientKey
// identifies the caller for throttling.
func (s *Service) LoginWithPIN(ctx context.Context, clientKey, pin string) (*LoginResult, error) {
	if s.limiter != nil && !s.limiter.Allow(clientKey) {
		s.log.Warn("pin attempts throttled", zap.String("client", clientKey))
		return nil, apperr.RateLimited("Too many attempts, try again in a minute")
	}
	if err := ValidatePIN(pin); err != nil {
		return nil, err
	}

	users, err := s.users.ActiveUsers(ctx)
	if err != nil {
		return nil, err
	}
	var user *models.User
	for i := range users {
		if CheckPIN(users[i].PinHash, pin) {
			user = &users[i]
			break
		}
	}
	if user == nil {
		if s.failures != nil {
			s.failures.Inc()
		}
		return nil, apperr.Unauthorized(msgInvalidPIN, string(ScreenLogin))
	}

	token, sid, exp, err := GenerateToken(s.secret, user, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	sess := &Session{
		ID:            sid,
		UserID:        user.ID,
		Name:          user.Name,
		Role:          user.Role,
		Screens:       ScreensFor(user.Role),
		DefaultScreen: DefaultScreen(user.Role),
		CreatedAt:     time.Now(),
		ExpiresAt:     exp,
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	s.log.Info("user signed in", zap.Uint("user_id", user.ID), zap.String("role", string(user.Role)))

	return &LoginResult{
		Token:         token,
		ExpiresAt:     exp,
		User:          user,
		Screens:       sess.Screens,
		DefaultScreen: sess.DefaultScreen,
	}, nil
}

// Authenticate resolves a bearer token to its live session.
func (s *Service) Authenticate(ctx context.Context, token string) (*Session, error) {
	claims, err := ParseToken(s.secret, token)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired token", string(ScreenLogin))
	}
	sess, err := s.sessions.Get(ctx, claims.ID)
	if errors.Is(err, ErrNoSession) {
		return nil, apperr.Unauthorized("Session has ended, sign in again", string(ScreenLogin))
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	user, err := s.users.Get(ctx, sess.UserID)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("load session user: %w", err)
	}
	if user == nil || !user.IsActive {
		if err := s.sessions.Delete(ctx, sess.ID); err != nil {
			s.log.Warn("drop session of inactive user", zap.String("session_id", sess.ID), zap.Error(err))
		}
		return nil, apperr.Unauthorized("Account is disabled", string(ScreenLogin))
	}
	return sess, nil
}

func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Service) PurgeSessions(ctx context.Context) (int, error) {
	return s.sessions.Purge(ctx, time.Now())
}

type CreateUserInput struct {
	Name string          `json:"name"`
	Role models.UserRole `json:"role"`
	PIN  string          `json:"pin"`
}

// CreateUser adds a staff member. Two active users may not share a PIN,
// otherwise a login could not tell them apart.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperr.Validation("Name is required")
	}
	if !in.Role.Valid() {
		return nil, apperr.Validation("Unknown role %q", in.Role)
	}

	hash, err := s.freshPinHash(ctx, in.PIN, 0)
	if err != nil {
		return nil, err
	}
	u := &models.User{Name: in.Name, Role: in.Role, PinHash: hash, IsActive: true}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// BootstrapAdmin creates the first admin. It is refused once any admin exists.
func (s *Service) BootstrapAdmin(ctx context.Context, name, pin string) (*models.User, error) {
	n, err := s.users.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, apperr.Forbidden("An admin already exists", string(ScreenLogin))
	}
	return s.CreateUser(ctx, CreateUserInput{Name: name, Role: models.RoleAdmin, PIN: pin})
}

func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

// SetActive enables or disables a staff member. Disabled users lose their
// sessions on the next request. Re-enabling takes a new PIN, checked like a
// new user's.
func (s *Service) SetActive(ctx context.Context, id uint, active bool, pin string) error {
	u, err := s.users.Get(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return apperr.NotFound("User not found")
	}
	if err != nil {
		return err
	}

	var hash string
	if active && !u.IsActive {
		if pin == "" {
			return apperr.Validation("A new PIN is required to reactivate a user")
		}
		if hash, err = s.freshPinHash(ctx, pin, id); err != nil {
			return err
		}
	}

	err = s.users.SetActive(ctx, id, active, hash)
	if errors.Is(err, ErrUserNotFound) {
		return apperr.NotFound("User not found")
	}
	return err
}

// freshPinHash validates pin, checks that no other active user has it and
// returns its hash.
func (s *Service) freshPinHash(ctx context.Context, pin string, selfID uint) (string, error) {
	if err := ValidatePIN(pin); err != nil {
		return "", err
	}
	users, err := s.users.ActiveUsers(ctx)
	if err != nil {
		return "", err
	}
	for _, u := range users {
		if u.ID != selfID && CheckPIN(u.PinHash, pin) {
			return "", apperr.Conflict("PIN is already in use, choose another")
		}
	}
	hash, err := HashPIN(pin)
	if err != nil {
		return "", fmt.Errorf("hash pin: %w", err)
	}
	return hash, nil
}
