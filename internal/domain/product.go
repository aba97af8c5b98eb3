package domain

import (
	"encoding/json"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Storefront clients expect price as a JSON number.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	ProductNameMaxLen        = 100
	ProductDescriptionMaxLen = 3000

	// MaxImageBytes is the largest accepted product image. Exactly this size passes.
	MaxImageBytes = 10 << 20
)

// StockStatus is derived from the product quantity.
type StockStatus string

const (
	InStock    StockStatus = "in_stock"
	OutOfStock StockStatus = "out_of_stock"
)

// ProductImage references an image held in the blob store.
type ProductImage struct {
	URL         string `json:"url"`
	StorageID   string `json:"public_id"`
	ContentType string `json:"contentType"`
}

// Product represents a product in the catalog. Images[0] is the primary image.
type Product struct {
	ID          uuid.UUID       `json:"_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	CategoryID  *uuid.UUID      `json:"-"`
	Category    *Category       `json:"category"`
	Images      []ProductImage  `json:"photos"`
	Tags        []string        `json:"tags"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// StockStatus reports whether the product can currently be sold.
func (p *Product) StockStatus() StockStatus {
	if p.Quantity > 0 {
		return InStock
	}
	return OutOfStock
}

// PrimaryImage returns the first image, if any.
func (p *Product) PrimaryImage() (ProductImage, bool) {
	if len(p.Images) == 0 {
		return ProductImage{}, false
	}
	return p.Images[0], true
}

func (p Product) MarshalJSON() ([]byte, error) {
	type product Product
	return json.Marshal(struct {
		product
		StockStatus StockStatus `json:"stockStatus"`
	}{product(p), p.StockStatus()})
}

// LegacyPhoto is an image stored inline with a product row by older clients.
type LegacyPhoto struct {
	Data        []byte
	ContentType string
}

// ProductFields carries the fields of a new product.
type ProductFields struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Quantity    *int             `json:"quantity"`
	CategoryID  *uuid.UUID       `json:"category"`
	Tags        []string         `json:"tags"`
}

func (f *ProductFields) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
	f.Tags = dedupeTags(f.Tags)
}

func (f ProductFields) Validate() error {
	return toValidationError(validation.ValidateStruct(&f,
		validation.Field(&f.Name,
			validation.Required.Error("name is required"),
			validation.RuneLength(1, ProductNameMaxLen).Error("name must be at most 100 characters"),
		),
		validation.Field(&f.Description,
			validation.Required.Error("description is required"),
			validation.RuneLength(1, ProductDescriptionMaxLen).Error("description must be at most 3000 characters"),
		),
		validation.Field(&f.Price, validation.By(requiredPrice)),
		validation.Field(&f.Quantity, validation.Min(0).Error("quantity cannot be negative")),
	))
}

// NewProduct builds a product from validated fields.
func (f ProductFields) NewProduct(id uuid.UUID, now time.Time) *Product {
	p := &Product{
		ID:          id,
		Name:        f.Name,
		Description: f.Description,
		Price:       *f.Price,
		CategoryID:  f.CategoryID,
		Images:      []ProductImage{},
		Tags:        f.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if f.Quantity != nil {
		p.Quantity = *f.Quantity
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p
}

// ProductPatch carries the optional fields of a product update. Nil fields are
// left untouched. ClearCategory detaches the product from its category and takes
// precedence over CategoryID.
type ProductPatch struct {
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	Quantity      *int             `json:"quantity"`
	CategoryID    *uuid.UUID       `json:"category"`
	ClearCategory bool             `json:"-"`
	Tags          *[]string        `json:"tags"`
}

func (p *ProductPatch) Normalize() {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
	}
	if p.Description != nil {
		description := strings.TrimSpace(*p.Description)
		p.Description = &description
	}
	if p.Tags != nil {
		tags := dedupeTags(*p.Tags)
		p.Tags = &tags
	}
}

func (p ProductPatch) Validate() error {
	return toValidationError(validation.ValidateStruct(&p,
		validation.Field(&p.Name,
			validation.NilOrNotEmpty.Error("name cannot be blank"),
			validation.RuneLength(1, ProductNameMaxLen).Error("name must be at most 100 characters"),
		),
		validation.Field(&p.Description,
			validation.NilOrNotEmpty.Error("description cannot be blank"),
			validation.RuneLength(1, ProductDescriptionMaxLen).Error("description must be at most 3000 characters"),
		),
		validation.Field(&p.Price, validation.By(optionalPrice)),
		validation.Field(&p.Quantity, validation.Min(0).Error("quantity cannot be negative")),
	))
}

// Apply merges the supplied fields into product.
func (p ProductPatch) Apply(product *Product) {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.Quantity != nil {
		product.Quantity = *p.Quantity
	}
	switch {
	case p.ClearCategory:
		product.CategoryID = nil
		product.Category = nil
	case p.CategoryID != nil:
		id := *p.CategoryID
		product.CategoryID = &id
		if product.Category != nil && product.Category.ID != id {
			product.Category = nil
		}
	}
	if p.Tags != nil {
		product.Tags = append([]string{}, (*p.Tags)...)
	}
}

// NormalizeTags splits a comma-separated tag string. Tags are trimmed, empty
// entries dropped and duplicates removed keeping the first occurrence.
func NormalizeTags(raw string) []string {
	return dedupeTags(strings.Split(raw, ","))
}

func dedupeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func requiredPrice(value interface{}) error {
	price, _ := value.(*decimal.Decimal)
	if price == nil {
		return validation.NewError("validation_price_required", "price is required")
	}
	return optionalPrice(value)
}

func optionalPrice(value interface{}) error {
	price, _ := value.(*decimal.Decimal)
	if price != nil && price.IsNegative() {
		return validation.NewError("validation_price_negative", "price cannot be negative")
	}
	return nil
}
