package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/errs"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrProductNotFound     = fmt.Errorf("product %w", errs.ErrNotFound)
	ErrLegacyPhotoNotFound = fmt.Errorf("product photo %w", errs.ErrNotFound)
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// productSortColumns whitelists the sortable fields. "_id" is kept for older clients.
var productSortColumns = map[string]string{
	"id":         "p.id",
	"_id":        "p.id",
	"name":       "p.name",
	"price":      "p.price",
	"quantity":   "p.quantity",
	"created_at": "p.created_at",
	"createdAt":  "p.created_at",
	"updated_at": "p.updated_at",
	"updatedAt":  "p.updated_at",
}

// IsSortableProductField reports whether field may be used to sort product lists.
func IsSortableProductField(field string) bool {
	_, ok := productSortColumns[field]
	return ok
}

// ListOptions controls product listing. Callers apply defaults and bounds.
type ListOptions struct {
	SortBy string
	Order  SortOrder
	Limit  int
	Offset int
}

// SearchOptions narrows a product search. An empty Name matches every product.
type SearchOptions struct {
	Name       string
	CategoryID *uuid.UUID
}

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) ([]domain.ProductImage, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, opts ListOptions) ([]*domain.Product, error)
	Search(ctx context.Context, opts SearchOptions) ([]*domain.Product, error)
	LegacyPhoto(ctx context.Context, id uuid.UUID) (*domain.LegacyPhoto, error)
}

type productRepository struct {
	db *DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *DB) ProductRepository {
	return &productRepository{db: db}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var productColumns = []string{
	"p.id", "p.name", "p.description", "p.price", "p.quantity", "p.category_id",
	"p.images", "p.tags", "p.created_at", "p.updated_at",
	"c.id", "c.name", "c.parent_id", "c.created_at", "c.updated_at",
}

func selectProducts() squirrel.SelectBuilder {
	return psql.Select(productColumns...).
		From("products p").
		LeftJoin("categories c ON c.id = p.category_id")
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p         domain.Product
		images    []byte
		catID     *uuid.UUID
		catName   *string
		catParent *uuid.UUID
		catCreate *time.Time
		catUpdate *time.Time
	)

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Quantity,
		&p.CategoryID,
		&images,
		&p.Tags,
		&p.CreatedAt,
		&p.UpdatedAt,
		&catID,
		&catName,
		&catParent,
		&catCreate,
		&catUpdate,
	)
	if err != nil {
		return nil, err
	}

	p.Images = []domain.ProductImage{}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &p.Images); err != nil {
			return nil, fmt.Errorf("failed to decode product images: %w", err)
		}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}

	if catID != nil {
		category := &domain.Category{ID: *catID, ParentID: catParent}
		if catName != nil {
			category.Name = *catName
		}
		if catCreate != nil {
			category.CreatedAt = *catCreate
		}
		if catUpdate != nil {
			category.UpdatedAt = *catUpdate
		}
		p.Category = category
	}

	return &p, nil
}

func encodeImages(images []domain.ProductImage) ([]byte, error) {
	if images == nil {
		images = []domain.ProductImage{}
	}
	return json.Marshal(images)
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func (r *productRepository) queryProducts(ctx context.Context, builder squirrel.SelectBuilder) ([]*domain.Product, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build product query: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// Create inserts a new product
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	images, err := encodeImages(product.Images)
	if err != nil {
		return fmt.Errorf("failed to encode product images: %w", err)
	}

	query, args, err := psql.Insert("products").
		Columns("id", "name", "description", "price", "quantity", "category_id", "images", "tags", "created_at", "updated_at").
		Values(
			product.ID,
			product.Name,
			product.Description,
			product.Price,
			product.Quantity,
			product.CategoryID,
			images,
			tagsOrEmpty(product.Tags),
			product.CreatedAt,
			product.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build product insert: %w", err)
	}

	if _, err := r.db.Pool.Exec(ctx, query, args...); err != nil {
		if isForeignKeyViolation(err) {
			return errs.NewValidation("category", "category not found")
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update overwrites the mutable fields of an existing product
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	images, err := encodeImages(product.Images)
	if err != nil {
		return fmt.Errorf("failed to encode product images: %w", err)
	}

	query, args, err := psql.Update("products").
		Set("name", product.Name).
		Set("description", product.Description).
		Set("price", product.Price).
		Set("quantity", product.Quantity).
		Set("category_id", product.CategoryID).
		Set("images", images).
		Set("tags", tagsOrEmpty(product.Tags)).
		Set("updated_at", product.UpdatedAt).
		Where(squirrel.Expr("id = ?", product.ID)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build product update: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return errs.NewValidation("category", "category not found")
		}
		return fmt.Errorf("failed to update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}

	return nil
}

// Delete removes a product and returns the images it referenced
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) ([]domain.ProductImage, error) {
	query, args, err := psql.Delete("products").
		Where(squirrel.Expr("id = ?", id)).
		Suffix("RETURNING images").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build product delete: %w", err)
	}

	var raw []byte
	if err := r.db.Pool.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to delete product: %w", err)
	}

	images := []domain.ProductImage{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &images); err != nil {
			return nil, fmt.Errorf("failed to decode product images: %w", err)
		}
	}
	return images, nil
}

// FindByID retrieves a product with its category resolved
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query, args, err := selectProducts().
		Where(squirrel.Expr("p.id = ?", id)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build product query: %w", err)
	}

	product, err := scanProduct(r.db.Pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// List retrieves a page of products. Ties on the sort field break on ID.
func (r *productRepository) List(ctx context.Context, opts ListOptions) ([]*domain.Product, error) {
	column, ok := productSortColumns[opts.SortBy]
	if !ok {
		return nil, errs.NewValidation("sortBy", fmt.Sprintf("cannot sort by %q", opts.SortBy))
	}

	order := SortOrderAsc
	if strings.EqualFold(string(opts.Order), string(SortOrderDesc)) {
		order = SortOrderDesc
	}

	orderBy := []string{fmt.Sprintf("%s %s", column, order)}
	if column != "p.id" {
		orderBy = append(orderBy, "p.id ASC")
	}

	builder := selectProducts().OrderBy(orderBy...)
	if opts.Limit > 0 {
		builder = builder.Limit(uint64(opts.Limit))
	}
	if opts.Offset > 0 {
		builder = builder.Offset(uint64(opts.Offset))
	}

	return r.queryProducts(ctx, builder)
}

// Search finds products whose name contains opts.Name, case-insensitively
func (r *productRepository) Search(ctx context.Context, opts SearchOptions) ([]*domain.Product, error) {
	builder := selectProducts()

	if opts.Name != "" {
		builder = builder.Where(squirrel.Expr(`p.name ILIKE ? ESCAPE '\'`, "%"+escapeLike(opts.Name)+"%"))
	}
	if opts.CategoryID != nil {
		builder = builder.Where(squirrel.Expr("p.category_id = ?", *opts.CategoryID))
	}

	return r.queryProducts(ctx, builder.OrderBy("p.id ASC"))
}

// LegacyPhoto retrieves the inline photo stored by older clients
func (r *productRepository) LegacyPhoto(ctx context.Context, id uuid.UUID) (*domain.LegacyPhoto, error) {
	query, args, err := psql.Select("legacy_photo", "legacy_photo_type").
		From("products").
		Where(squirrel.Expr("id = ?", id)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build photo query: %w", err)
	}

	var (
		data        []byte
		contentType *string
	)
	if err := r.db.Pool.QueryRow(ctx, query, args...).Scan(&data, &contentType); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to load product photo: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrLegacyPhotoNotFound
	}

	photo := &domain.LegacyPhoto{Data: data, ContentType: "application/octet-stream"}
	if contentType != nil && *contentType != "" {
		photo.ContentType = *contentType
	}
	return photo, nil
}

// escapeLike escapes the LIKE wildcards so that s matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
