package models

type Category struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	Slug          string        `json:"slug"`
	Description   string        `json:"description,omitempty"`
	Icon          string        `json:"icon,omitempty"`
	Position      int           `json:"position"`
	Subcategories []Subcategory `json:"subcategories,omitempty"`
}

type Subcategory struct {
	ID           int64         `json:"id"`
	CategoryID   int64         `json:"category_id"`
	Name         string        `json:"name"`
	Slug         string        `json:"slug"`
	Position     int           `json:"position"`
	Subdivisions []Subdivision `json:"subdivisions,omitempty"`
}

type Subdivision struct {
	ID            int64  `json:"id"`
	SubcategoryID int64  `json:"subcategory_id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	Position      int    `json:"position"`
}

type County struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Areas []Area `json:"areas,omitempty"`
}

type Area struct {
	ID       int64  `json:"id"`
	CountyID int64  `json:"county_id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
}

// Taxonomy is the full tree served to listing filters.
type Taxonomy struct {
	Categories []Category `json:"categories"`
	Counties   []County   `json:"counties"`
}

// TaxonomyRequest creates or updates a node at any level. ParentID is the
// category for subcategories and the subcategory for subdivisions.
type TaxonomyRequest struct {
	ParentID    int64  `json:"parent_id"`
	Name        string `json:"name" validate:"required,min=2,max=80"`
	Slug        string `json:"slug" validate:"omitempty,slug,max=80"`
	Description string `json:"description" validate:"max=500"`
	Icon        string `json:"icon" validate:"max=80"`
	Position    int    `json:"position" validate:"gte=0"`
}
