package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"storefront/internal/errs"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProperty_NormalizeTagsDropsEmptiesAndDuplicates(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("normalized tags are trimmed, non-empty and unique", prop.ForAll(
		func(parts []string) bool {
			tags := NormalizeTags(strings.Join(parts, ","))

			seen := map[string]bool{}
			for _, tag := range tags {
				if tag == "" || tag != strings.TrimSpace(tag) || seen[tag] {
					t.Logf("FAIL: bad tag %q in %v", tag, tags)
					return false
				}
				seen[tag] = true
			}

			for _, part := range parts {
				trimmed := strings.TrimSpace(part)
				if trimmed != "" && !seen[trimmed] {
					t.Logf("FAIL: tag %q dropped", trimmed)
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.OneGenOf(
			gen.AlphaString(),
			gen.OneConstOf(" ", "", "  sale ", "sale", "new"),
		)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestNormalizeTags_KeepsFirstOccurrenceOrder(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, NormalizeTags(" b, a ,,b,c , a"))
	assert.Equal(t, []string{}, NormalizeTags(""))
	assert.Equal(t, []string{}, NormalizeTags(" , ,"))
}

func TestProperty_StockStatusFollowsQuantity(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("quantity zero is out of stock, positive is in stock", prop.ForAll(
		func(quantity int) bool {
			p := &Product{Quantity: quantity}
			if quantity == 0 {
				return p.StockStatus() == OutOfStock
			}
			return p.StockStatus() == InStock
		},
		gen.IntRange(0, 100000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func validFields() ProductFields {
	price := decimal.RequireFromString("19.99")
	return ProductFields{
		Name:        "Mug",
		Description: "A ceramic mug",
		Price:       &price,
	}
}

func TestProductFields_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *ProductFields)
		field  string
	}{
		{"valid", func(f *ProductFields) {}, ""},
		{"missing name", func(f *ProductFields) { f.Name = "" }, "name"},
		{"name too long", func(f *ProductFields) { f.Name = strings.Repeat("x", ProductNameMaxLen+1) }, "name"},
		{"name at limit", func(f *ProductFields) { f.Name = strings.Repeat("x", ProductNameMaxLen) }, ""},
		{"missing description", func(f *ProductFields) { f.Description = "" }, "description"},
		{"description too long", func(f *ProductFields) { f.Description = strings.Repeat("d", ProductDescriptionMaxLen+1) }, "description"},
		{"missing price", func(f *ProductFields) { f.Price = nil }, "price"},
		{"negative price", func(f *ProductFields) { p := decimal.NewFromInt(-1); f.Price = &p }, "price"},
		{"zero price", func(f *ProductFields) { p := decimal.Zero; f.Price = &p }, ""},
		{"negative quantity", func(f *ProductFields) { q := -1; f.Quantity = &q }, "quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFields()
			tt.mutate(&f)
			err := f.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, errs.ErrValidation)
			var ve *errs.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestProductFields_NewProductDefaults(t *testing.T) {
	f := validFields()
	f.Tags = []string{" a", "a", "b "}
	f.Normalize()

	p := f.NewProduct(uuid.New(), fixedNow)
	assert.Equal(t, 0, p.Quantity)
	assert.Equal(t, []string{"a", "b"}, p.Tags)
	assert.Empty(t, p.Images)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("19.99")))
}

func TestProductPatch_ApplyOnlySuppliedFields(t *testing.T) {
	catID := uuid.New()
	p := &Product{
		Name:        "Old",
		Description: "Old description",
		Price:       decimal.NewFromInt(5),
		Quantity:    3,
		CategoryID:  &catID,
		Tags:        []string{"x"},
	}

	name := "New"
	patch := ProductPatch{Name: &name}
	patch.Apply(p)

	assert.Equal(t, "New", p.Name)
	assert.Equal(t, "Old description", p.Description)
	assert.True(t, p.Price.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, 3, p.Quantity)
	assert.Equal(t, &catID, p.CategoryID)
	assert.Equal(t, []string{"x"}, p.Tags)

	ProductPatch{ClearCategory: true}.Apply(p)
	assert.Nil(t, p.CategoryID)
}

func TestProductPatch_ValidateRejectsBlankName(t *testing.T) {
	blank := "   "
	patch := ProductPatch{Name: &blank}
	patch.Normalize()
	assert.ErrorIs(t, patch.Validate(), errs.ErrValidation)
	assert.NoError(t, ProductPatch{}.Validate())
}

func TestProductPatch_ValidationNamesJSONFields(t *testing.T) {
	tests := []struct {
		name  string
		patch func() ProductPatch
		field string
	}{
		{"blank name", func() ProductPatch { s := ""; return ProductPatch{Name: &s} }, "name"},
		{"blank description", func() ProductPatch { s := ""; return ProductPatch{Description: &s} }, "description"},
		{"negative price", func() ProductPatch { p := decimal.NewFromInt(-5); return ProductPatch{Price: &p} }, "price"},
		{"negative quantity", func() ProductPatch { q := -2; return ProductPatch{Quantity: &q} }, "quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *errs.ValidationError
			require.ErrorAs(t, tt.patch().Validate(), &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestProduct_JSONShape(t *testing.T) {
	p := &Product{
		ID:       uuid.New(),
		Name:     "Lamp",
		Price:    decimal.RequireFromString("12.50"),
		Quantity: 0,
		Images:   []ProductImage{{URL: "http://cdn/x.png", StorageID: "products/x.png", ContentType: "image/png"}},
		Tags:     []string{"home"},
	}

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, p.ID.String(), decoded["_id"])
	assert.Equal(t, 12.5, decoded["price"])
	assert.Equal(t, "out_of_stock", decoded["stockStatus"])
	photos := decoded["photos"].([]any)
	assert.Equal(t, "products/x.png", photos[0].(map[string]any)["public_id"])
	_, hasCategoryID := decoded["CategoryID"]
	assert.False(t, hasCategoryID)
}
