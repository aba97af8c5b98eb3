package transport

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/blobstore"
	"storefront/internal/domain"
	"storefront/internal/errs"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// formOverheadBytes is allowed on top of the image limit for the other fields
// and the multipart framing.
const formOverheadBytes = 1 << 20

// ProductHandler handles HTTP requests for products
type ProductHandler struct {
	catalog       service.CatalogService
	maxImageBytes int64
	logger        *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(catalog service.CatalogService, maxImageBytes int64, logger *zap.Logger) *ProductHandler {
	if maxImageBytes <= 0 {
		maxImageBytes = domain.MaxImageBytes
	}
	return &ProductHandler{
		catalog:       catalog,
		maxImageBytes: maxImageBytes,
		logger:        logger,
	}
}

// RegisterRoutes registers all product routes. Mutations require an admin.
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Get("/products", h.List)
	r.Get("/products/search", h.Search)
	r.Get("/product/{id}", h.Get)
	r.Get("/product/photo/{id}", h.Photo)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireRole(h.logger, domain.RoleAdmin, domain.RoleSuperAdmin))
		r.Post("/product/create", h.Create)
		r.Put("/product/{id}", h.Update)
		r.Delete("/product/{id}", h.Delete)
	})
}

// List returns one page of products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit, err := queryInt(query.Get("limit"), "limit")
	if err != nil {
		writeServiceError(w, h.logger, err, "list products")
		return
	}
	page, err := queryInt(query.Get("page"), "page")
	if err != nil {
		writeServiceError(w, h.logger, err, "list products")
		return
	}

	products, err := h.catalog.List(r.Context(), service.ListQuery{
		SortBy: query.Get("sortBy"),
		Order:  query.Get("order"),
		Limit:  limit,
		Page:   page,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "list products")
		return
	}
	respondWithProducts(w, products)
}

// Search finds products by name, optionally within a category
func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	products, err := h.catalog.Search(r.Context(), service.SearchQuery{
		Name:     query.Get("search"),
		Category: query.Get("category"),
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "search products")
		return
	}
	respondWithProducts(w, products)
}

// Get returns one product
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "product")
	if err != nil {
		writeServiceError(w, h.logger, err, "get product")
		return
	}

	product, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "get product")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Photo streams the inline photo stored by older clients
func (h *ProductHandler) Photo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "product")
	if err != nil {
		writeServiceError(w, h.logger, err, "get product photo")
		return
	}

	photo, err := h.catalog.LegacyPhoto(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "get product photo")
		return
	}

	w.Header().Set("Content-Type", photo.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(photo.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(photo.Data)
}

// Create adds a product from a multipart form with an optional photo
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	form, files, err := h.readProductForm(w, r)
	if err != nil {
		writeServiceError(w, h.logger, err, "create product")
		return
	}

	fields, err := productFields(form)
	if err != nil {
		writeServiceError(w, h.logger, err, "create product")
		return
	}

	image, err := readPhoto(files)
	if err != nil {
		writeServiceError(w, h.logger, err, "create product")
		return
	}

	product, err := h.catalog.Create(r.Context(), fields, image)
	if err != nil {
		writeServiceError(w, h.logger, err, "create product")
		return
	}

	h.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.Bool("with_image", image != nil),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// Update merges the submitted fields into a product
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "product")
	if err != nil {
		writeServiceError(w, h.logger, err, "update product")
		return
	}

	form, files, err := h.readProductForm(w, r)
	if err != nil {
		writeServiceError(w, h.logger, err, "update product")
		return
	}

	patch, err := productPatch(form)
	if err != nil {
		writeServiceError(w, h.logger, err, "update product")
		return
	}

	image, err := readPhoto(files)
	if err != nil {
		writeServiceError(w, h.logger, err, "update product")
		return
	}

	product, err := h.catalog.Update(r.Context(), id, patch, image)
	if err != nil {
		writeServiceError(w, h.logger, err, "update product")
		return
	}

	h.logger.Info("Product updated",
		zap.String("product_id", product.ID.String()),
		zap.Bool("image_replaced", image != nil),
	)
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Delete removes a product and its images
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "product")
	if err != nil {
		writeServiceError(w, h.logger, err, "delete product")
		return
	}

	if err := h.catalog.Remove(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err, "delete product")
		return
	}

	h.logger.Info("Product deleted", zap.String("product_id", id.String()))
	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{Message: "Product deleted successfully"})
}

// readProductForm reads the form. A body over the limit can only be caused by
// the photo, so it is reported as an oversized image.
func (h *ProductHandler) readProductForm(w http.ResponseWriter, r *http.Request) (formValues, *multipart.Form, error) {
	form, files, err := readForm(w, r, h.maxImageBytes+formOverheadBytes)
	if errors.Is(err, errBodyTooLarge) {
		return nil, nil, errs.ErrImageTooLarge
	}
	return form, files, err
}

func productFields(form formValues) (domain.ProductFields, error) {
	fields := domain.ProductFields{
		Name:        form.get("name"),
		Description: form.get("description"),
		Tags:        domain.NormalizeTags(form.get("tags")),
	}

	if raw, ok := form.lookup("price"); ok && strings.TrimSpace(raw) != "" {
		price, err := parsePrice(raw)
		if err != nil {
			return domain.ProductFields{}, err
		}
		fields.Price = &price
	}
	if raw, ok := form.lookup("quantity"); ok && strings.TrimSpace(raw) != "" {
		quantity, err := parseQuantity(raw)
		if err != nil {
			return domain.ProductFields{}, err
		}
		fields.Quantity = &quantity
	}

	categoryID, err := parseOptionalID("category", form.get("category"))
	if err != nil {
		return domain.ProductFields{}, err
	}
	fields.CategoryID = categoryID

	return fields, nil
}

func productPatch(form formValues) (domain.ProductPatch, error) {
	var patch domain.ProductPatch

	if name, ok := form.lookup("name"); ok {
		patch.Name = &name
	}
	if description, ok := form.lookup("description"); ok {
		patch.Description = &description
	}
	if raw, ok := form.lookup("price"); ok {
		price, err := parsePrice(raw)
		if err != nil {
			return domain.ProductPatch{}, err
		}
		patch.Price = &price
	}
	if raw, ok := form.lookup("quantity"); ok {
		quantity, err := parseQuantity(raw)
		if err != nil {
			return domain.ProductPatch{}, err
		}
		patch.Quantity = &quantity
	}
	if raw, ok := form.lookup("category"); ok {
		categoryID, err := parseOptionalID("category", raw)
		if err != nil {
			return domain.ProductPatch{}, err
		}
		patch.CategoryID = categoryID
		patch.ClearCategory = categoryID == nil
	}
	if raw, ok := form.lookup("tags"); ok {
		tags := domain.NormalizeTags(raw)
		patch.Tags = &tags
	}

	return patch, nil
}

// readPhoto returns the uploaded photo, or nil when none was sent
func readPhoto(files *multipart.Form) (*blobstore.UploadInput, error) {
	if files == nil || len(files.File["photo"]) == 0 {
		return nil, nil
	}

	header := files.File["photo"][0]
	file, err := header.Open()
	if err != nil {
		return nil, errs.NewValidation("photo", "image could not be read")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errs.NewValidation("photo", "image could not be read")
	}

	return &blobstore.UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, errs.NewValidation("price", "price must be a number")
	}
	return price, nil
}

func parseQuantity(raw string) (int, error) {
	quantity, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, errs.NewValidation("quantity", "quantity must be a whole number")
	}
	return quantity, nil
}

func queryInt(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errs.NewValidation(field, field+" must be a whole number")
	}
	return n, nil
}

func respondWithProducts(w http.ResponseWriter, products []*domain.Product) {
	if products == nil {
		products = []*domain.Product{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}
