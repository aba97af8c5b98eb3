package transport

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxCategoryBodyBytes bounds category form bodies.
const maxCategoryBodyBytes = 64 << 10

// CategoryHandler handles HTTP requests for categories
type CategoryHandler struct {
	categories service.CategoryService
	logger     *zap.Logger
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(categories service.CategoryService, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{
		categories: categories,
		logger:     logger,
	}
}

// RegisterRoutes registers all category routes. Mutations require an admin.
func (h *CategoryHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Get("/categories", h.List)
	r.Get("/category/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireRole(h.logger, domain.RoleAdmin, domain.RoleSuperAdmin))
		r.Post("/category/create", h.Create)
		r.Put("/category/{id}", h.Update)
		r.Delete("/category/{id}", h.Delete)
	})
}

// List returns all categories, nested when view=tree
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("view") == "tree" {
		tree, err := h.categories.Tree(r.Context())
		if err != nil {
			writeServiceError(w, h.logger, err, "list categories")
			return
		}
		middleware.RespondWithJSON(w, http.StatusOK, tree)
		return
	}

	categories, err := h.categories.List(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "list categories")
		return
	}
	if categories == nil {
		categories = []*domain.Category{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

// Get returns one category
func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "category")
	if err != nil {
		writeServiceError(w, h.logger, err, "get category")
		return
	}

	category, err := h.categories.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "get category")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, category)
}

// Create adds a category from name and the optional super_category
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	form, _, err := readForm(w, r, maxCategoryBodyBytes)
	if err != nil {
		writeServiceError(w, h.logger, err, "create category")
		return
	}

	parentID, err := parseOptionalID("super_category", form.get("super_category"))
	if err != nil {
		writeServiceError(w, h.logger, err, "create category")
		return
	}

	category, err := h.categories.Create(r.Context(), domain.CategoryInput{
		Name:     form.get("name"),
		ParentID: parentID,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "create category")
		return
	}

	h.logger.Info("Category created",
		zap.String("category_id", category.ID.String()),
		zap.String("name", category.Name),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, category)
}

// Update renames or moves a category. An empty super_category makes it a root.
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "category")
	if err != nil {
		writeServiceError(w, h.logger, err, "update category")
		return
	}

	form, _, err := readForm(w, r, maxCategoryBodyBytes)
	if err != nil {
		writeServiceError(w, h.logger, err, "update category")
		return
	}

	var patch domain.CategoryPatch
	if name, ok := form.lookup("name"); ok {
		patch.Name = &name
	}
	if raw, ok := form.lookup("super_category"); ok {
		parentID, err := parseOptionalID("super_category", raw)
		if err != nil {
			writeServiceError(w, h.logger, err, "update category")
			return
		}
		patch.ParentID = parentID
		patch.ClearParent = parentID == nil
	}

	category, err := h.categories.Update(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, h.logger, err, "update category")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, category)
}

// Delete removes a category without subcategories
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "category")
	if err != nil {
		writeServiceError(w, h.logger, err, "delete category")
		return
	}

	if err := h.categories.Remove(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err, "delete category")
		return
	}

	h.logger.Info("Category deleted", zap.String("category_id", id.String()))
	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{Message: "Category deleted successfully"})
}
