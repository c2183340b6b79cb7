package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/marketplace/internal/auth"
	"github.com/utafrali/marketplace/internal/authz"
	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/event"
	"github.com/utafrali/marketplace/internal/repository"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

// AuthService registers and authenticates users.
type AuthService struct {
	users    repository.UserRepository
	hasher   auth.PasswordHasher
	tokens   *auth.JWTManager
	throttle auth.LoginThrottle
	events   *event.Emitter
	logger   *slog.Logger

	allowAdminRegistration bool
}

// AuthOptions holds the optional collaborators of AuthService.
type AuthOptions struct {
	// Throttle limits failed logins. Nil disables throttling.
	Throttle auth.LoginThrottle
	// AllowAdminRegistration lets the public Register path create admins.
	AllowAdminRegistration bool
}

// NewAuthService creates a new auth service.
func NewAuthService(
	users repository.UserRepository,
	hasher auth.PasswordHasher,
	tokens *auth.JWTManager,
	events *event.Emitter,
	logger *slog.Logger,
	opts AuthOptions,
) *AuthService {
	throttle := opts.Throttle
	if throttle == nil {
		throttle = auth.NoopThrottle{}
	}
	return &AuthService{
		users:                  users,
		hasher:                 hasher,
		tokens:                 tokens,
		throttle:               throttle,
		events:                 events,
		logger:                 logger,
		allowAdminRegistration: opts.AllowAdminRegistration,
	}
}

// RegisterInput holds the parameters for registering a user.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

// UpdateProfileInput lists the self-editable profile fields.
type UpdateProfileInput struct {
	Name *string
}

// Register creates an account through the public path. Admin accounts are
// refused unless admin registration is enabled.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if in.Role == "" {
		in.Role = domain.RoleCustomer
	}
	if in.Role == domain.RoleAdmin && !s.allowAdminRegistration {
		return nil, apperrors.Forbidden("admin accounts cannot be self-registered")
	}
	return s.register(ctx, in)
}

// CreateAdmin registers an admin account. It is used by operator tooling.
func (s *AuthService) CreateAdmin(ctx context.Context, email, password, name string) (*domain.User, error) {
	return s.register(ctx, RegisterInput{Email: email, Password: password, Name: name, Role: domain.RoleAdmin})
}

func (s *AuthService) register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if in.Email == "" || in.Password == "" || in.Name == "" {
		return nil, apperrors.Validation("email, password and name are required")
	}
	if !domain.IsValidRole(in.Role) {
		return nil, apperrors.Validation(fmt.Sprintf("invalid role %q", in.Role))
	}

	_, err := s.users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, apperrors.DuplicateEmail(in.Email)
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("check existing email: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		Role:         in.Role,
		IsApproved:   domain.ApprovedOnRegistration(in.Role),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, apperrors.DuplicateEmail(in.Email)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.events.UserRegistered(ctx, user)
	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("role", user.Role),
		slog.Bool("approved", user.IsApproved),
	)
	return user, nil
}

// Authenticate checks credentials and issues an access token. Unknown email
// and wrong password are indistinguishable to the caller. The ban flag is
// checked only after the password matched.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*LoginResult, error) {
	locked, err := s.throttle.Locked(ctx, email)
	if err != nil {
		s.logger.WarnContext(ctx, "login throttle unavailable", slog.String("error", err.Error()))
	}
	if locked {
		loginFailures.WithLabelValues("locked").Inc()
		return nil, apperrors.TooManyAttempts("too many failed login attempts, try again later")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.recordFailure(ctx, email, "unknown_email")
			return nil, apperrors.InvalidCredentials()
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	ok, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !ok {
		s.recordFailure(ctx, email, "bad_password")
		return nil, apperrors.InvalidCredentials()
	}

	if user.IsBanned {
		loginFailures.WithLabelValues("banned").Inc()
		return nil, apperrors.AccountBanned()
	}

	if err := s.throttle.Reset(ctx, email); err != nil {
		s.logger.WarnContext(ctx, "failed to reset login throttle", slog.String("error", err.Error()))
	}

	token, err := s.tokens.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return &LoginResult{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(s.tokens.TTL()),
		User:      user,
	}, nil
}

func (s *AuthService) recordFailure(ctx context.Context, email, reason string) {
	loginFailures.WithLabelValues(reason).Inc()
	if err := s.throttle.Fail(ctx, email); err != nil {
		s.logger.WarnContext(ctx, "failed to record login failure", slog.String("error", err.Error()))
	}
}

// ResolveIdentity loads the caller behind a verified token. The approval
// and ban flags come from the store, so moderation applies immediately.
func (s *AuthService) ResolveIdentity(ctx context.Context, userID string) (*domain.Identity, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthenticated("account no longer exists")
		}
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	return domain.IdentityOf(user), nil
}

// GetProfile returns the caller's account.
func (s *AuthService) GetProfile(ctx context.Context, id *domain.Identity) (*domain.User, error) {
	if err := authz.Authorize(id, authz.RequireAuthenticated()); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthenticated("account no longer exists")
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return user, nil
}

// UpdateProfile changes the caller's own profile fields.
func (s *AuthService) UpdateProfile(ctx context.Context, id *domain.Identity, in UpdateProfileInput) (*domain.User, error) {
	user, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperrors.Validation("name must not be empty")
		}
		user.Name = name
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}
