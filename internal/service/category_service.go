package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"
	"storefront/internal/errs"
	"storefront/internal/repository"

	"github.com/google/uuid"
)

var (
	errParentNotFound = errs.NewValidation("super_category", "parent category not found")
	errSelfParent     = errs.NewValidation("super_category", "category cannot be its own parent")
	errParentCycle    = errs.NewValidation("super_category", "category cannot be moved under its own subcategory")
)

// CategoryService defines the interface for category business logic
type CategoryService interface {
	Create(ctx context.Context, in domain.CategoryInput) (*domain.Category, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	List(ctx context.Context) ([]*domain.Category, error)
	Tree(ctx context.Context) ([]*domain.CategoryNode, error)
	Update(ctx context.Context, id uuid.UUID, patch domain.CategoryPatch) (*domain.Category, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

type categoryService struct {
	repo repository.CategoryRepository
}

// NewCategoryService creates a new instance of CategoryService
func NewCategoryService(repo repository.CategoryRepository) CategoryService {
	return &categoryService{repo: repo}
}

// Create validates and stores a new category
func (s *categoryService) Create(ctx context.Context, in domain.CategoryInput) (*domain.Category, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if in.ParentID != nil {
		if err := s.ensureExists(ctx, *in.ParentID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	category := &domain.Category{
		ID:        newID(),
		Name:      in.Name,
		ParentID:  in.ParentID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, category); err != nil {
		return nil, err
	}

	return category, nil
}

// GetByID retrieves a category by ID
func (s *categoryService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns every category ordered by id
func (s *categoryService) List(ctx context.Context) ([]*domain.Category, error) {
	categories, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// Tree returns the categories nested under their parents
func (s *categoryService) Tree(ctx context.Context) ([]*domain.CategoryNode, error) {
	categories, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return domain.BuildCategoryTree(categories), nil
}

// Update renames or re-parents a category. A category may not become its own
// ancestor.
func (s *categoryService) Update(ctx context.Context, id uuid.UUID, patch domain.CategoryPatch) (*domain.Category, error) {
	if patch.Empty() {
		return nil, errs.NewValidation("", "nothing to update")
	}
	patch.Normalize()
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.ParentID != nil && !patch.ClearParent {
		if err := s.checkParent(ctx, id, *patch.ParentID); err != nil {
			return nil, err
		}
	}

	patch.Apply(category)
	category.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, category); err != nil {
		return nil, err
	}

	return category, nil
}

// Remove deletes a category without subcategories. Its products stay and lose
// their category.
func (s *categoryService) Remove(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}

	hasChildren, err := s.repo.HasChildren(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check subcategories: %w", err)
	}
	if hasChildren {
		return repository.ErrCategoryHasChildren
	}

	return s.repo.Delete(ctx, id)
}

func (s *categoryService) checkParent(ctx context.Context, id, parentID uuid.UUID) error {
	if parentID == id {
		return errSelfParent
	}
	if err := s.ensureExists(ctx, parentID); err != nil {
		return err
	}

	ancestors, err := s.repo.AncestorIDs(ctx, parentID)
	if err != nil {
		return fmt.Errorf("failed to load category ancestors: %w", err)
	}
	for _, ancestor := range ancestors {
		if ancestor == id {
			return errParentCycle
		}
	}
	return nil
}

func (s *categoryService) ensureExists(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errParentNotFound
		}
		return fmt.Errorf("failed to find parent category: %w", err)
	}
	return nil
}
