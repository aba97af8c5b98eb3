package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/errs"
	"storefront/internal/repository"
	"storefront/internal/token"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for bcrypt hashing
const BcryptCost = 10

// IdentityService defines the interface for administrator account business logic
type IdentityService interface {
	Signup(ctx context.Context, in domain.SignupInput, code string) (*domain.Identity, string, error)
	Login(ctx context.Context, email, password string) (*domain.Identity, string, error)
	CreateIdentity(ctx context.Context, in domain.SignupInput) (*domain.Identity, error)
	VerifyCredentials(ctx context.Context, email, password string) (*domain.Identity, error)
	ChangePassword(ctx context.Context, id uuid.UUID, currentPassword, newPassword string) error
	UpdateProfile(ctx context.Context, id uuid.UUID, patch domain.ProfilePatch) (*domain.Identity, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*domain.Identity, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error)
	Authenticate(ctx context.Context, tokenString string) (*domain.Identity, error)
}

type identityService struct {
	repo       repository.IdentityRepository
	tokens     *token.Manager
	signupCode string
	logger     *zap.Logger
}

// NewIdentityService creates a new instance of IdentityService. An empty
// signupCode disables the admin code check on signup.
func NewIdentityService(
	repo repository.IdentityRepository,
	tokens *token.Manager,
	signupCode string,
	logger *zap.Logger,
) IdentityService {
	return &identityService{
		repo:       repo,
		tokens:     tokens,
		signupCode: signupCode,
		logger:     logger,
	}
}

// Signup creates an admin account and returns it with a fresh session token.
// Self-service signup never grants the superadmin role.
func (s *identityService) Signup(ctx context.Context, in domain.SignupInput, code string) (*domain.Identity, string, error) {
	if s.signupCode != "" && subtle.ConstantTimeCompare([]byte(code), []byte(s.signupCode)) != 1 {
		return nil, "", errs.NewValidation("adminCode", "invalid admin authorization code")
	}

	in.Role = domain.RoleAdmin
	identity, err := s.CreateIdentity(ctx, in)
	if err != nil {
		return nil, "", err
	}

	tokenString, err := s.tokens.Issue(identity)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	return identity, tokenString, nil
}

// CreateIdentity validates the input, hashes the password and stores the account
func (s *identityService) CreateIdentity(ctx context.Context, in domain.SignupInput) (*domain.Identity, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil && !errors.Is(err, repository.ErrIdentityNotFound) {
		return nil, fmt.Errorf("failed to check existing identity: %w", err)
	}
	if existing != nil {
		return nil, repository.ErrIdentityAlreadyExists
	}

	hashedPassword, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	identity := &domain.Identity{
		ID:           newID(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hashedPassword,
		Role:         in.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The unique index still decides races between concurrent signups.
	if err := s.repo.Create(ctx, identity); err != nil {
		if errors.Is(err, errs.ErrDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	return identity, nil
}

// Login verifies the credentials, records the login time and issues a token
func (s *identityService) Login(ctx context.Context, email, password string) (*domain.Identity, string, error) {
	identity, err := s.VerifyCredentials(ctx, email, password)
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	if err := s.repo.TouchLastLogin(ctx, identity.ID, now); err != nil {
		s.logger.Warn("Failed to record last login",
			zap.String("identity_id", identity.ID.String()),
			zap.Error(err),
		)
	} else {
		identity.LastLoginAt = &now
	}

	tokenString, err := s.tokens.Issue(identity)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	return identity, tokenString, nil
}

// VerifyCredentials checks an email and password against the active accounts.
// Unknown email, inactive account and wrong password all return
// errs.ErrInvalidCredentials.
func (s *identityService) VerifyCredentials(ctx context.Context, email, password string) (*domain.Identity, error) {
	identity, err := s.repo.FindActiveByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrIdentityNotFound) {
			// Spend the same bcrypt work as a real comparison.
			_ = verifyPassword(dummyHash(), password)
			return nil, errs.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	if err := verifyPassword(identity.PasswordHash, password); err != nil {
		return nil, errs.ErrInvalidCredentials
	}

	return identity, nil
}

// ChangePassword replaces the password after checking the current one
func (s *identityService) ChangePassword(ctx context.Context, id uuid.UUID, currentPassword, newPassword string) error {
	identity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := verifyPassword(identity.PasswordHash, currentPassword); err != nil {
		return errs.ErrWrongPassword
	}
	if err := domain.ValidatePassword(newPassword); err != nil {
		return err
	}

	hashedPassword, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.repo.UpdatePassword(ctx, id, hashedPassword, time.Now().UTC())
}

// UpdateProfile changes the supplied profile fields
func (s *identityService) UpdateProfile(ctx context.Context, id uuid.UUID, patch domain.ProfilePatch) (*domain.Identity, error) {
	patch.Normalize()
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	identity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Email != nil && *patch.Email != identity.Email {
		other, err := s.repo.FindByEmail(ctx, *patch.Email)
		if err != nil && !errors.Is(err, repository.ErrIdentityNotFound) {
			return nil, fmt.Errorf("failed to check existing identity: %w", err)
		}
		if other != nil && other.ID != identity.ID {
			return nil, repository.ErrIdentityAlreadyExists
		}
		identity.Email = *patch.Email
	}
	if patch.Name != nil {
		identity.Name = *patch.Name
	}
	identity.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateProfile(ctx, identity); err != nil {
		return nil, err
	}

	return identity, nil
}

// SetActive enables or disables an account. Disabled accounts can neither log
// in nor use tokens issued before they were disabled.
func (s *identityService) SetActive(ctx context.Context, id uuid.UUID, active bool) (*domain.Identity, error) {
	if err := s.repo.SetActive(ctx, id, active, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

// GetByID retrieves an identity by ID
func (s *identityService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error) {
	return s.repo.FindByID(ctx, id)
}

// Authenticate resolves a bearer token to the active identity it was issued for
func (s *identityService) Authenticate(ctx context.Context, tokenString string) (*domain.Identity, error) {
	claims, err := s.tokens.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	identity, err := s.repo.FindByID(ctx, claims.IdentityID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("identity no longer exists: %w", errs.ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	if !identity.IsActive {
		return nil, fmt.Errorf("identity is disabled: %w", errs.ErrUnauthorized)
	}

	return identity, nil
}

// hashPassword hashes a password using bcrypt with cost factor 10
func hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// verifyPassword verifies a password against a bcrypt hash
func verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

var (
	dummyHashOnce  sync.Once
	dummyHashValue string
)

func dummyHash() string {
	dummyHashOnce.Do(func() {
		dummyHashValue, _ = hashPassword("storefront-dummy-password")
	})
	return dummyHashValue
}

// newID returns a time-ordered UUID so that ordering by id follows insertion.
func newID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}
