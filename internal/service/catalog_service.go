package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"storefront/internal/blobstore"
	"storefront/internal/domain"
	"storefront/internal/errs"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultListLimit = 30
	MaxListLimit     = 1000

	// AllCategories is the search category value that disables category narrowing.
	AllCategories = "All"
)

var (
	errCategoryNotFound = errs.NewValidation("category", "category not found")
	errEmptyImage       = errs.NewValidation("photo", "photo is empty")
)

// ListQuery holds the raw product listing parameters. Zero values select the defaults.
type ListQuery struct {
	SortBy string
	Order  string
	Limit  int
	Page   int
}

// SearchQuery holds the product search parameters.
type SearchQuery struct {
	Name     string
	Category string
}

// CatalogService defines the interface for product business logic
type CatalogService interface {
	Create(ctx context.Context, fields domain.ProductFields, image *blobstore.UploadInput) (*domain.Product, error)
	Update(ctx context.Context, id uuid.UUID, patch domain.ProductPatch, image *blobstore.UploadInput) (*domain.Product, error)
	Remove(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, q ListQuery) ([]*domain.Product, error)
	Search(ctx context.Context, q SearchQuery) ([]*domain.Product, error)
	LegacyPhoto(ctx context.Context, id uuid.UUID) (*domain.LegacyPhoto, error)
}

type catalogService struct {
	products      repository.ProductRepository
	categories    repository.CategoryRepository
	store         blobstore.Store
	maxImageBytes int64
	logger        *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService. A non-positive
// maxImageBytes selects domain.MaxImageBytes.
func NewCatalogService(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	store blobstore.Store,
	maxImageBytes int64,
	logger *zap.Logger,
) CatalogService {
	if maxImageBytes <= 0 {
		maxImageBytes = domain.MaxImageBytes
	}
	return &catalogService{
		products:      products,
		categories:    categories,
		store:         store,
		maxImageBytes: maxImageBytes,
		logger:        logger,
	}
}

// Create validates the fields, uploads the optional image and stores the
// product. No record is written when the upload fails.
func (s *catalogService) Create(ctx context.Context, fields domain.ProductFields, image *blobstore.UploadInput) (*domain.Product, error) {
	fields.Normalize()
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkImage(image); err != nil {
		return nil, err
	}

	var category *domain.Category
	if fields.CategoryID != nil {
		c, err := s.findCategory(ctx, *fields.CategoryID)
		if err != nil {
			return nil, err
		}
		category = c
	}

	product := fields.NewProduct(newID(), time.Now().UTC())
	product.Category = category

	if image != nil {
		ref, err := s.upload(ctx, image)
		if err != nil {
			return nil, err
		}
		product.Images = []domain.ProductImage{toProductImage(ref)}
	}

	if err := s.products.Create(ctx, product); err != nil {
		s.deleteImages(ctx, product.ID, product.Images)
		return nil, err
	}

	return product, nil
}

// Update merges the supplied fields into the product. A new image is uploaded
// before the record is saved and the replaced images are deleted afterwards.
func (s *catalogService) Update(ctx context.Context, id uuid.UUID, patch domain.ProductPatch, image *blobstore.UploadInput) (*domain.Product, error) {
	patch.Normalize()
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkImage(image); err != nil {
		return nil, err
	}

	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var category *domain.Category
	if patch.CategoryID != nil && !patch.ClearCategory {
		category, err = s.findCategory(ctx, *patch.CategoryID)
		if err != nil {
			return nil, err
		}
	}

	var replaced []domain.ProductImage
	if image != nil {
		ref, err := s.upload(ctx, image)
		if err != nil {
			return nil, err
		}
		replaced = product.Images
		product.Images = []domain.ProductImage{toProductImage(ref)}
	}

	patch.Apply(product)
	if category != nil {
		product.Category = category
	}
	product.UpdatedAt = time.Now().UTC()

	if err := s.products.Update(ctx, product); err != nil {
		if image != nil {
			s.deleteImages(ctx, product.ID, product.Images)
		}
		return nil, err
	}

	s.deleteImages(ctx, product.ID, replaced)
	return product, nil
}

// Remove deletes the product and then its images
func (s *catalogService) Remove(ctx context.Context, id uuid.UUID) error {
	images, err := s.products.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.deleteImages(ctx, id, images)
	return nil
}

// Get retrieves a product with its category resolved
func (s *catalogService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.products.FindByID(ctx, id)
}

// List returns one page of products
func (s *catalogService) List(ctx context.Context, q ListQuery) ([]*domain.Product, error) {
	opts, err := listOptions(q)
	if err != nil {
		return nil, err
	}
	return s.products.List(ctx, opts)
}

// Search finds products whose name contains q.Name, optionally within one category
func (s *catalogService) Search(ctx context.Context, q SearchQuery) ([]*domain.Product, error) {
	opts := repository.SearchOptions{Name: strings.TrimSpace(q.Name)}

	category := strings.TrimSpace(q.Category)
	if category != "" && category != AllCategories {
		id, err := uuid.Parse(category)
		if err != nil {
			return nil, errs.NewValidation("category", "invalid category id")
		}
		opts.CategoryID = &id
	}

	return s.products.Search(ctx, opts)
}

// LegacyPhoto returns the inline photo stored by older clients
func (s *catalogService) LegacyPhoto(ctx context.Context, id uuid.UUID) (*domain.LegacyPhoto, error) {
	return s.products.LegacyPhoto(ctx, id)
}

func listOptions(q ListQuery) (repository.ListOptions, error) {
	opts := repository.ListOptions{
		SortBy: q.SortBy,
		Order:  repository.SortOrderAsc,
		Limit:  q.Limit,
	}

	if opts.SortBy == "" {
		opts.SortBy = "id"
	}
	if !repository.IsSortableProductField(opts.SortBy) {
		return repository.ListOptions{}, errs.NewValidation("sortBy", fmt.Sprintf("cannot sort by %q", q.SortBy))
	}

	switch strings.ToLower(q.Order) {
	case "", "asc":
	case "desc":
		opts.Order = repository.SortOrderDesc
	default:
		return repository.ListOptions{}, errs.NewValidation("order", "order must be asc or desc")
	}

	switch {
	case opts.Limit <= 0:
		opts.Limit = DefaultListLimit
	case opts.Limit > MaxListLimit:
		opts.Limit = MaxListLimit
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	if page-1 > math.MaxInt32/opts.Limit {
		return repository.ListOptions{}, errs.NewValidation("page", "page is out of range")
	}
	opts.Offset = (page - 1) * opts.Limit

	return opts, nil
}

func (s *catalogService) checkImage(image *blobstore.UploadInput) error {
	if image == nil {
		return nil
	}
	if len(image.Data) == 0 {
		return errEmptyImage
	}
	if int64(len(image.Data)) > s.maxImageBytes {
		return errs.ErrImageTooLarge
	}
	return nil
}

func (s *catalogService) findCategory(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errCategoryNotFound
		}
		return nil, fmt.Errorf("failed to find category: %w", err)
	}
	return category, nil
}

func (s *catalogService) upload(ctx context.Context, image *blobstore.UploadInput) (blobstore.Reference, error) {
	ref, err := s.store.Upload(ctx, *image)
	if err != nil {
		return blobstore.Reference{}, fmt.Errorf("%w: %v", errs.ErrImageUploadFailed, err)
	}
	return ref, nil
}

// deleteImages removes images from the blob store. Failures are logged only.
func (s *catalogService) deleteImages(ctx context.Context, productID uuid.UUID, images []domain.ProductImage) {
	for _, image := range images {
		if image.StorageID == "" {
			continue
		}
		err := s.store.Delete(ctx, blobstore.Reference{
			URL:         image.URL,
			StorageID:   image.StorageID,
			ContentType: image.ContentType,
		})
		if err != nil {
			s.logger.Warn("Failed to delete product image",
				zap.String("product_id", productID.String()),
				zap.String("storage_id", image.StorageID),
				zap.Error(fmt.Errorf("%w: %v", errs.ErrImageDeleteFailed, err)),
			)
		}
	}
}

func toProductImage(ref blobstore.Reference) domain.ProductImage {
	return domain.ProductImage{
		URL:         ref.URL,
		StorageID:   ref.StorageID,
		ContentType: ref.ContentType,
	}
}
