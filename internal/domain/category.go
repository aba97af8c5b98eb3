package domain

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

const CategoryNameMaxLen = 32

// Category is a node of the catalog hierarchy. A nil ParentID marks a root.
type Category struct {
	ID        uuid.UUID  `json:"_id"`
	Name      string     `json:"name"`
	ParentID  *uuid.UUID `json:"super_category"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// IsRoot reports whether the category has no parent.
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}

// CategoryInput carries the fields of a new category.
type CategoryInput struct {
	Name     string     `json:"name"`
	ParentID *uuid.UUID `json:"super_category"`
}

func (in *CategoryInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
}

func (in CategoryInput) Validate() error {
	return toValidationError(validation.ValidateStruct(&in,
		validation.Field(&in.Name,
			validation.Required.Error("name is required"),
			validation.RuneLength(1, CategoryNameMaxLen).Error("name must be at most 32 characters"),
		),
	))
}

// CategoryPatch carries the optional fields of a category update. ClearParent
// turns the category into a root and takes precedence over ParentID.
type CategoryPatch struct {
	Name        *string    `json:"name"`
	ParentID    *uuid.UUID `json:"super_category"`
	ClearParent bool       `json:"-"`
}

func (p *CategoryPatch) Normalize() {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
	}
}

func (p CategoryPatch) Validate() error {
	return toValidationError(validation.ValidateStruct(&p,
		validation.Field(&p.Name,
			validation.NilOrNotEmpty.Error("name cannot be blank"),
			validation.RuneLength(1, CategoryNameMaxLen).Error("name must be at most 32 characters"),
		),
	))
}

// Empty reports whether the patch changes nothing.
func (p CategoryPatch) Empty() bool {
	return p.Name == nil && p.ParentID == nil && !p.ClearParent
}

// Apply merges the patch into c.
func (p CategoryPatch) Apply(c *Category) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	switch {
	case p.ClearParent:
		c.ParentID = nil
	case p.ParentID != nil:
		parent := *p.ParentID
		c.ParentID = &parent
	}
}

// CategoryNode is a category together with its direct children.
type CategoryNode struct {
	Category
	Children []*CategoryNode `json:"children"`
}

// BuildCategoryTree groups a flat category list by parent. Input order is kept
// among siblings. Categories whose parent is absent from the list become roots.
func BuildCategoryTree(categories []*Category) []*CategoryNode {
	nodes := make(map[uuid.UUID]*CategoryNode, len(categories))
	for _, c := range categories {
		nodes[c.ID] = &CategoryNode{Category: *c, Children: []*CategoryNode{}}
	}

	roots := []*CategoryNode{}
	for _, c := range categories {
		node := nodes[c.ID]
		if c.ParentID != nil && *c.ParentID != c.ID {
			if parent, ok := nodes[*c.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	return roots
}
