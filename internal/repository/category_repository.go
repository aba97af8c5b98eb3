package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/errs"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrCategoryNotFound      = fmt.Errorf("category %w", errs.ErrNotFound)
	ErrCategoryAlreadyExists = fmt.Errorf("category with this name %w", errs.ErrDuplicate)
	ErrCategoryHasChildren   = errs.Wrap(errs.ErrConflict, "category has subcategories")
)

// maxCategoryDepth bounds the ancestor walk so that a corrupted parent chain
// cannot loop forever.
const maxCategoryDepth = 1000

// CategoryRepository defines the interface for category data access
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	List(ctx context.Context) ([]*domain.Category, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	Update(ctx context.Context, category *domain.Category) error
	Delete(ctx context.Context, id uuid.UUID) error
	HasChildren(ctx context.Context, id uuid.UUID) (bool, error)
	AncestorIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
}

type categoryRepository struct {
	db *DB
}

// NewCategoryRepository creates a new instance of CategoryRepository
func NewCategoryRepository(db *DB) CategoryRepository {
	return &categoryRepository{db: db}
}

// Create inserts a new category
func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	const query = `
		INSERT INTO categories (id, name, parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Pool.Exec(ctx, query,
		category.ID,
		category.Name,
		category.ParentID,
		category.CreatedAt,
		category.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCategoryAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return errs.NewValidation("super_category", "parent category not found")
		}
		return fmt.Errorf("failed to create category: %w", err)
	}

	return nil
}

// List retrieves all categories in ascending ID order
func (r *categoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	const query = `
		SELECT id, name, parent_id, created_at, updated_at
		FROM categories
		ORDER BY id ASC`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []*domain.Category{}
	for rows.Next() {
		category := &domain.Category{}
		if err := rows.Scan(
			&category.ID,
			&category.Name,
			&category.ParentID,
			&category.CreatedAt,
			&category.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

// FindByID retrieves a category by ID
func (r *categoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	const query = `
		SELECT id, name, parent_id, created_at, updated_at
		FROM categories
		WHERE id = $1`

	category := &domain.Category{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&category.ID,
		&category.Name,
		&category.ParentID,
		&category.CreatedAt,
		&category.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to find category by ID: %w", err)
	}

	return category, nil
}

// Update writes the name and parent of category
func (r *categoryRepository) Update(ctx context.Context, category *domain.Category) error {
	const query = `
		UPDATE categories
		SET name = $2, parent_id = $3, updated_at = $4
		WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, category.ID, category.Name, category.ParentID, category.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCategoryAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return errs.NewValidation("super_category", "parent category not found")
		}
		return fmt.Errorf("failed to update category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// Delete removes a category. Products in it keep existing without a category.
func (r *categoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM categories WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrCategoryHasChildren
		}
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// HasChildren reports whether any category names id as its parent
func (r *categoryRepository) HasChildren(ctx context.Context, id uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM categories WHERE parent_id = $1)`

	var exists bool
	if err := r.db.Pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check subcategories: %w", err)
	}
	return exists, nil
}

// AncestorIDs returns id followed by its ancestors, nearest first
func (r *categoryRepository) AncestorIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	const query = `
		WITH RECURSIVE chain AS (
			SELECT id, parent_id, 1 AS depth
			FROM categories
			WHERE id = $1
			UNION ALL
			SELECT c.id, c.parent_id, chain.depth + 1
			FROM categories c
			JOIN chain ON c.id = chain.parent_id
			WHERE chain.depth < $2
		)
		SELECT id FROM chain ORDER BY depth ASC`

	rows, err := r.db.Pool.Query(ctx, query, id, maxCategoryDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to walk category ancestors: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var ancestor uuid.UUID
		if err := rows.Scan(&ancestor); err != nil {
			return nil, fmt.Errorf("failed to scan category ancestor: %w", err)
		}
		ids = append(ids, ancestor)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category ancestors: %w", err)
	}

	return ids, nil
}
