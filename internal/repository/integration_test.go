//go:build integration

package repository

import (
	"context"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"storefront/internal/database"
	"storefront/internal/domain"
	"storefront/internal/errs"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

var testPool *pgxpool.Pool

func setupTestDB(ctx context.Context) (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	dbContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("storefront"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	connStr, err := dbContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return dbContainer.Terminate, err
	}

	testPool, err = pgxpool.New(ctx, connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	if err := database.RunMigrations(ctx, testPool, zap.NewNop()); err != nil {
		return dbContainer.Terminate, err
	}

	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	ctx := context.Background()
	teardown, err := setupTestDB(ctx)
	if err != nil {
		log.Fatalf("could not start postgres container: %v", err)
	}

	code := m.Run()

	testPool.Close()
	if err := teardown(ctx); err != nil {
		log.Printf("could not teardown postgres container: %v", err)
	}
	os.Exit(code)
}

func resetTables(t *testing.T) *DB {
	t.Helper()
	_, err := testPool.Exec(context.Background(), `TRUNCATE products, categories, admins`)
	require.NoError(t, err)
	return NewDB(testPool)
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func newCategory(name string, parent *uuid.UUID) *domain.Category {
	ts := now()
	return &domain.Category{ID: uuid.Must(uuid.NewV7()), Name: name, ParentID: parent, CreatedAt: ts, UpdatedAt: ts}
}

func newIdentity(email string) *domain.Identity {
	ts := now()
	return &domain.Identity{
		ID:           uuid.Must(uuid.NewV7()),
		Name:         "Ada",
		Email:        email,
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		Role:         domain.RoleAdmin,
		IsActive:     true,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
}

func TestIntegration_IdentityLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewIdentityRepository(resetTables(t))

	identity := newIdentity("ada@example.com")
	require.NoError(t, repo.Create(ctx, identity))

	err := repo.Create(ctx, newIdentity("ADA@example.com"))
	assert.ErrorIs(t, err, ErrIdentityAlreadyExists, "uniqueness ignores case")

	found, err := repo.FindActiveByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, identity.ID, found.ID)
	assert.Nil(t, found.LastLoginAt)

	loginAt := now()
	require.NoError(t, repo.TouchLastLogin(ctx, identity.ID, loginAt))
	require.NoError(t, repo.SetActive(ctx, identity.ID, false, now()))

	_, err = repo.FindActiveByEmail(ctx, "ada@example.com")
	assert.ErrorIs(t, err, ErrIdentityNotFound)

	found, err = repo.FindByID(ctx, identity.ID)
	require.NoError(t, err)
	assert.False(t, found.IsActive)
	require.NotNil(t, found.LastLoginAt)
	assert.True(t, loginAt.Equal(*found.LastLoginAt))
}

func TestIntegration_CategoryTreeConstraints(t *testing.T) {
	ctx := context.Background()
	repo := NewCategoryRepository(resetTables(t))

	kitchen := newCategory("Kitchen", nil)
	mugs := newCategory("Mugs", &kitchen.ID)
	espresso := newCategory("Espresso", &mugs.ID)
	for _, c := range []*domain.Category{kitchen, mugs, espresso} {
		require.NoError(t, repo.Create(ctx, c))
	}

	assert.ErrorIs(t, repo.Create(ctx, newCategory("Kitchen", nil)), errs.ErrDuplicate)

	missing := uuid.New()
	assert.ErrorIs(t, repo.Create(ctx, newCategory("Orphan", &missing)), errs.ErrValidation)

	ancestors, err := repo.AncestorIDs(ctx, espresso.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{espresso.ID, mugs.ID, kitchen.ID}, ancestors)

	hasChildren, err := repo.HasChildren(ctx, kitchen.ID)
	require.NoError(t, err)
	assert.True(t, hasChildren)

	assert.ErrorIs(t, repo.Delete(ctx, kitchen.ID), ErrCategoryHasChildren)
	require.NoError(t, repo.Delete(ctx, espresso.ID))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, kitchen.ID, all[0].ID)
}

func newProduct(name string, price string, quantity int, category *uuid.UUID) *domain.Product {
	ts := now()
	return &domain.Product{
		ID:          uuid.Must(uuid.NewV7()),
		Name:        name,
		Description: "A " + name,
		Price:       decimal.RequireFromString(price),
		Quantity:    quantity,
		CategoryID:  category,
		Images: []domain.ProductImage{
			{URL: "https://cdn.example.com/products/" + name + ".png", StorageID: "products/" + name + ".png", ContentType: "image/png"},
		},
		Tags:      []string{"kitchen"},
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func TestProperty_IntegrationProductRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := resetTables(t)
	products := NewProductRepository(db)
	categories := NewCategoryRepository(db)

	category := newCategory("Mugs", nil)
	require.NoError(t, categories.Create(ctx, category))

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("a stored product reads back unchanged", prop.ForAll(
		func(name string, cents int64, quantity int, tags []string) bool {
			product := newProduct(name, "0", quantity, &category.ID)
			product.Price = decimal.New(cents, -2)
			product.Tags = domain.NormalizeTags(strings.Join(tags, ","))

			if err := products.Create(ctx, product); err != nil {
				t.Logf("create failed: %v", err)
				return false
			}

			found, err := products.FindByID(ctx, product.ID)
			if err != nil {
				return false
			}

			return found.Name == product.Name &&
				found.Price.Equal(product.Price) &&
				found.Quantity == product.Quantity &&
				found.Category != nil && found.Category.Name == "Mugs" &&
				assert.ObjectsAreEqual(product.Images, found.Images) &&
				assert.ObjectsAreEqual(product.Tags, found.Tags)
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" && len(s) <= domain.ProductNameMaxLen }),
		gen.Int64Range(0, 10_000_000),
		gen.IntRange(0, 1000),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestIntegration_ProductUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	db := resetTables(t)
	products := NewProductRepository(db)
	categories := NewCategoryRepository(db)

	category := newCategory("Mugs", nil)
	require.NoError(t, categories.Create(ctx, category))

	product := newProduct("mug", "12.50", 3, &category.ID)
	require.NoError(t, products.Create(ctx, product))

	product.Quantity = 0
	product.Price = decimal.RequireFromString("9.99")
	product.Images = append([]domain.ProductImage{{URL: "https://cdn.example.com/new.png", StorageID: "products/new.png"}}, product.Images...)
	product.UpdatedAt = now()
	require.NoError(t, products.Update(ctx, product))

	found, err := products.FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutOfStock, found.StockStatus())
	assert.Equal(t, "9.99", found.Price.String())
	primary, ok := found.PrimaryImage()
	require.True(t, ok)
	assert.Equal(t, "products/new.png", primary.StorageID)

	require.NoError(t, categories.Delete(ctx, category.ID))
	found, err = products.FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Nil(t, found.CategoryID, "deleting a category detaches its products")

	images, err := products.Delete(ctx, product.ID)
	require.NoError(t, err)
	assert.Len(t, images, 2)

	_, err = products.FindByID(ctx, product.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)
	_, err = products.Delete(ctx, product.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestIntegration_ProductListAndSearch(t *testing.T) {
	ctx := context.Background()
	db := resetTables(t)
	products := NewProductRepository(db)

	for _, p := range []*domain.Product{
		newProduct("Red Mug", "5", 1, nil),
		newProduct("Blue Mug", "15", 1, nil),
		newProduct("100% Cotton Towel", "10", 1, nil),
	} {
		require.NoError(t, products.Create(ctx, p))
	}

	page, err := products.List(ctx, ListOptions{SortBy: "price", Order: SortOrderDesc, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "Blue Mug", page[0].Name)
	assert.Equal(t, "100% Cotton Towel", page[1].Name)

	page, err = products.List(ctx, ListOptions{SortBy: "price", Order: SortOrderDesc, Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Red Mug", page[0].Name)

	found, err := products.Search(ctx, SearchOptions{Name: "mug"})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = products.Search(ctx, SearchOptions{Name: "0%"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "100% Cotton Towel", found[0].Name)
}

func TestIntegration_LegacyPhoto(t *testing.T) {
	ctx := context.Background()
	products := NewProductRepository(resetTables(t))

	product := newProduct("mug", "1", 1, nil)
	require.NoError(t, products.Create(ctx, product))

	_, err := products.LegacyPhoto(ctx, product.ID)
	assert.ErrorIs(t, err, ErrLegacyPhotoNotFound)

	_, err = testPool.Exec(ctx, `UPDATE products SET legacy_photo = $2, legacy_photo_type = 'image/jpeg' WHERE id = $1`,
		product.ID, []byte{0xff, 0xd8, 0xff})
	require.NoError(t, err)

	photo, err := products.LegacyPhoto(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", photo.ContentType)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, photo.Data)
}
