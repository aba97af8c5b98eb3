package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"
	"storefront/internal/errs"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrIdentityNotFound      = fmt.Errorf("identity %w", errs.ErrNotFound)
	ErrIdentityAlreadyExists = fmt.Errorf("identity with this email %w", errs.ErrDuplicate)
)

// IdentityRepository defines the interface for administrator account data access
type IdentityRepository interface {
	Create(ctx context.Context, identity *domain.Identity) error
	FindByEmail(ctx context.Context, email string) (*domain.Identity, error)
	FindActiveByEmail(ctx context.Context, email string) (*domain.Identity, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error)
	UpdateProfile(ctx context.Context, identity *domain.Identity) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, at time.Time) error
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	SetActive(ctx context.Context, id uuid.UUID, active bool, at time.Time) error
}

type identityRepository struct {
	db *DB
}

// NewIdentityRepository creates a new instance of IdentityRepository
func NewIdentityRepository(db *DB) IdentityRepository {
	return &identityRepository{db: db}
}

const identityColumns = `id, name, email, password_hash, role, is_active, last_login_at, created_at, updated_at`

func scanIdentity(row pgx.Row) (*domain.Identity, error) {
	identity := &domain.Identity{}
	err := row.Scan(
		&identity.ID,
		&identity.Name,
		&identity.Email,
		&identity.PasswordHash,
		&identity.Role,
		&identity.IsActive,
		&identity.LastLoginAt,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return identity, nil
}

// Create inserts a new identity. The email must already be normalized.
func (r *identityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	const query = `
		INSERT INTO admins (id, name, email, password_hash, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Pool.Exec(ctx, query,
		identity.ID,
		identity.Name,
		identity.Email,
		identity.PasswordHash,
		identity.Role,
		identity.IsActive,
		identity.CreatedAt,
		identity.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrIdentityAlreadyExists
		}
		return fmt.Errorf("failed to create identity: %w", err)
	}

	return nil
}

// FindByEmail retrieves an identity by email regardless of its active flag
func (r *identityRepository) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM admins WHERE email = $1`

	identity, err := scanIdentity(r.db.Pool.QueryRow(ctx, query, email))
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("failed to find identity by email: %w", err)
	}
	return identity, err
}

// FindActiveByEmail retrieves an active identity by email. Inactive identities
// are reported as not found.
func (r *identityRepository) FindActiveByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM admins WHERE email = $1 AND is_active = TRUE`

	identity, err := scanIdentity(r.db.Pool.QueryRow(ctx, query, email))
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("failed to find active identity by email: %w", err)
	}
	return identity, err
}

// FindByID retrieves an identity by ID
func (r *identityRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM admins WHERE id = $1`

	identity, err := scanIdentity(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("failed to find identity by ID: %w", err)
	}
	return identity, err
}

// UpdateProfile writes the name and email of identity
func (r *identityRepository) UpdateProfile(ctx context.Context, identity *domain.Identity) error {
	const query = `
		UPDATE admins
		SET name = $2, email = $3, updated_at = $4
		WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, identity.ID, identity.Name, identity.Email, identity.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrIdentityAlreadyExists
		}
		return fmt.Errorf("failed to update identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

// UpdatePassword replaces the stored password hash
func (r *identityRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, at time.Time) error {
	const query = `UPDATE admins SET password_hash = $2, updated_at = $3 WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, id, passwordHash, at)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

// TouchLastLogin records a successful login
func (r *identityRepository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	const query = `UPDATE admins SET last_login_at = $2 WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

// SetActive activates or deactivates an identity
func (r *identityRepository) SetActive(ctx context.Context, id uuid.UUID, active bool, at time.Time) error {
	const query = `UPDATE admins SET is_active = $2, updated_at = $3 WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, id, active, at)
	if err != nil {
		return fmt.Errorf("failed to set identity active flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIdentityNotFound
	}
	return nil
}
