package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bgrizzle97/socialMedia/internal/auth"
	"github.com/bgrizzle97/socialMedia/internal/cache"
	apperrors "github.com/bgrizzle97/socialMedia/internal/errors"
	"github.com/bgrizzle97/socialMedia/internal/logging"
	"github.com/bgrizzle97/socialMedia/internal/metrics"
	"github.com/bgrizzle97/socialMedia/internal/model"
	"github.com/bgrizzle97/socialMedia/internal/notify"
)

// profileCacheTTL bounds how stale a cached profile may be.
const profileCacheTTL = 5 * time.Minute

// RegisterInput is the payload of a sign-up.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// ProfileInput is the payload of a profile edit. Nil fields are unchanged.
type ProfileInput struct {
	Username   *string
	Password   *string
	ProfilePic *string
}

// AuthResult is returned by every successful sign-in.
type AuthResult struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	User      model.PublicUser `json:"user"`
}

// AuthService handles registration, sign-in, password reset and profile reads.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	LoginExternal(ctx context.Context, provider, code string) (*AuthResult, error)
	RequestPasswordReset(ctx context.Context, email string) error
	CompletePasswordReset(ctx context.Context, email, token, password string) error
	GetCurrentUser(ctx context.Context, subject uuid.UUID) (*model.PublicUser, error)
	UpdateProfile(ctx context.Context, subject uuid.UUID, in ProfileInput) (*model.PublicUser, error)
}

// AuthOptions carries the optional collaborators of the auth service.
type AuthOptions struct {
	ResetLinkBaseURL string
	Providers        map[string]auth.ExternalIdentityProvider
	Cache            *cache.Client
	Metrics          *metrics.Recorder
	Logger           logging.Logger
}

type authService struct {
	credentials   *CredentialStore
	tokens        *auth.JWTService
	notifier      notify.ResetLinkNotifier
	resetLinkBase string
	providers     map[string]auth.ExternalIdentityProvider
	cache         *cache.Client
	metrics       *metrics.Recorder
	log           logging.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(credentials *CredentialStore, tokens *auth.JWTService, notifier notify.ResetLinkNotifier, opts AuthOptions) AuthService {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.ResetLinkBaseURL == "" {
		opts.ResetLinkBaseURL = "http://localhost:5173/set-new-password"
	}
	return &authService{
		credentials:   credentials,
		tokens:        tokens,
		notifier:      notifier,
		resetLinkBase: opts.ResetLinkBaseURL,
		providers:     opts.Providers,
		cache:         opts.Cache,
		metrics:       opts.Metrics,
		log:           opts.Logger,
	}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (res *AuthResult, err error) {
	defer func() { s.metrics.AuthEvent("register", err) }()

	if strings.TrimSpace(in.Username) == "" || strings.TrimSpace(in.Email) == "" ||
		in.Password == "" || in.ConfirmPassword == "" {
		return nil, apperrors.ErrAllFieldsRequired
	}
	if in.Password != in.ConfirmPassword {
		return nil, apperrors.ErrPasswordMismatch
	}
	if len(in.Password) < auth.MinPasswordLength {
		return nil, apperrors.ErrWeakPassword
	}

	user, err := s.credentials.Create(ctx, in.Username, in.Email, in.Password)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, email, password string) (res *AuthResult, err error) {
	defer func() { s.metrics.AuthEvent("login", err) }()

	if email == "" || password == "" {
		return nil, apperrors.ErrEmailPasswordRequired
	}

	user, ok, err := s.credentials.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.credentials.DummyVerify(password)
		return nil, apperrors.ErrInvalidCredentials
	}
	if !s.credentials.VerifyPassword(user, password) {
		return nil, apperrors.ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *authService) LoginExternal(ctx context.Context, provider, code string) (res *AuthResult, err error) {
	defer func() { s.metrics.AuthEvent("login_external", err) }()

	p, ok := s.providers[provider]
	if !ok {
		return nil, apperrors.ErrUnknownProvider
	}
	if code == "" {
		return nil, apperrors.ErrAllFieldsRequired
	}

	identity, err := p.Exchange(ctx, code)
	if err != nil {
		s.log.Warn(ctx, "external exchange failed", "provider", provider, "error", err)
		return nil, apperrors.ErrExternalAuthFailed
	}
	if identity.ExternalID == "" || identity.Email == "" {
		s.log.Warn(ctx, "external identity incomplete", "provider", provider)
		return nil, apperrors.ErrExternalAuthFailed
	}

	user, err := s.credentials.ResolveExternal(ctx, identity)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "external login", "provider", provider, "user_id", user.ID)
	return s.issue(user)
}

func (s *authService) issue(user *model.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user.Public()}, nil
}

func (s *authService) RequestPasswordReset(ctx context.Context, email string) (err error) {
	defer func() { s.metrics.AuthEvent("request_reset", err) }()

	if email == "" {
		return apperrors.ErrEmailRequired
	}

	token, expiresAt, err := s.credentials.IssueResetToken(ctx, email)
	if err != nil {
		return err
	}

	link := notify.ResetLink{
		Email:     email,
		Link:      s.resetLink(token, email),
		ExpiresAt: expiresAt,
	}
	if err := s.notifier.SendResetLink(ctx, link); err != nil {
		s.log.Error(ctx, "deliver reset link failed", "error", err)
		return apperrors.ErrNotificationFailed
	}
	return nil
}

// resetLink renders base?token=<t>&email=<e>, keeping any query already on base.
func (s *authService) resetLink(token, email string) string {
	sep := "?"
	if strings.Contains(s.resetLinkBase, "?") {
		sep = "&"
	}
	return s.resetLinkBase + sep + "token=" + url.QueryEscape(token) + "&email=" + url.QueryEscape(email)
}

func (s *authService) CompletePasswordReset(ctx context.Context, email, token, password string) (err error) {
	defer func() { s.metrics.AuthEvent("complete_reset", err) }()

	if email == "" || token == "" || password == "" {
		return apperrors.ErrAllFieldsRequired
	}
	if err := s.credentials.ConsumeResetToken(ctx, email, token, password); err != nil {
		return err
	}
	s.log.Info(ctx, "password reset completed")
	return nil
}

func profileCacheKey(id uuid.UUID) string {
	return "user:profile:" + id.String()
}

func (s *authService) GetCurrentUser(ctx context.Context, subject uuid.UUID) (*model.PublicUser, error) {
	var cached model.PublicUser
	if s.cache.GetJSON(ctx, profileCacheKey(subject), &cached) {
		return &cached, nil
	}

	user, ok, err := s.credentials.FindByID(ctx, subject)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}

	public := user.Public()
	s.cache.SetJSON(ctx, profileCacheKey(subject), public, profileCacheTTL)
	return &public, nil
}

func (s *authService) UpdateProfile(ctx context.Context, subject uuid.UUID, in ProfileInput) (res *model.PublicUser, err error) {
	defer func() { s.metrics.AuthEvent("update_profile", err) }()

	user, err := s.credentials.UpdateProfile(ctx, subject, ProfileChanges{
		Name:       in.Username,
		Password:   in.Password,
		ProfilePic: in.ProfilePic,
	})
	if err != nil {
		return nil, err
	}
	s.cache.Delete(ctx, profileCacheKey(subject))

	public := user.Public()
	return &public, nil
}
