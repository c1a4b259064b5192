package models

import (
	"time"
)

const (
	ServiceStatusPending   = "pending"
	ServiceStatusPublished = "published"
	ServiceStatusRejected  = "rejected"
	ServiceStatusInactive  = "inactive"
	ServiceStatusCanceled  = "canceled"
)

type Service struct {
	ID              int64          `json:"id"`
	ProfileID       int64          `json:"profile_id"`
	UserID          int64          `json:"user_id"`
	Title           string         `json:"title"`
	Slug            string         `json:"slug"`
	Description     string         `json:"description"`
	Price           float64        `json:"price"`
	FixedPrice      bool           `json:"fixed_price"`
	DurationDays    *int           `json:"duration_days,omitempty"`
	Online          bool           `json:"online"`
	CategoryID      int64          `json:"category_id"`
	SubcategoryID   int64          `json:"subcategory_id"`
	SubdivisionID   int64          `json:"subdivision_id"`
	CategorySlug    string         `json:"category_slug,omitempty"`
	SubcategorySlug string         `json:"subcategory_slug,omitempty"`
	SubdivisionSlug string         `json:"subdivision_slug,omitempty"`
	Tags            []string       `json:"tags"`
	Addons          []ServiceAddon `json:"addons"`
	FAQ             []ServiceFAQ   `json:"faq"`
	Images          []Image        `json:"images"`
	Status          string         `json:"status"`
	RejectionReason *string        `json:"rejection_reason,omitempty"`
	Rating          float64        `json:"rating"`
	ReviewsCount    int            `json:"reviews_count"`
	Saved           bool           `json:"saved,omitempty"`
	Profile         *ProfileBrief  `json:"profile,omitempty"`
	FormattedPrice  string         `json:"formatted_price,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       *time.Time     `json:"updated_at,omitempty"`
	PublishedAt     *time.Time     `json:"published_at,omitempty"`
}

// ProfileBrief is the owner summary embedded in service listings.
type ProfileBrief struct {
	ID           int64   `json:"id"`
	Username     string  `json:"username"`
	DisplayName  string  `json:"display_name"`
	AvatarURL    *string `json:"avatar_url,omitempty"`
	Rating       float64 `json:"rating"`
	ReviewsCount int     `json:"reviews_count"`
	Verified     bool    `json:"verified"`
}

type Image struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

type ServiceAddon struct {
	Title       string  `json:"title" validate:"required,min=3,max=50"`
	Description string  `json:"description" validate:"required,min=10,max=100"`
	Price       float64 `json:"price" validate:"required,gte=5,lte=50000"`
}

type ServiceFAQ struct {
	Question string `json:"question" validate:"required,min=10,max=150"`
	Answer   string `json:"answer" validate:"required,min=10,max=500"`
}

// ServiceRequest backs both create and edit actions.
type ServiceRequest struct {
	Title         string         `json:"title" validate:"required,min=10,max=100"`
	Description   string         `json:"description" validate:"required,min=80,max=5000"`
	Price         float64        `json:"price" validate:"required,gte=10,lte=50000"`
	FixedPrice    bool           `json:"fixed_price"`
	DurationDays  *int           `json:"duration_days" validate:"omitempty,gte=1,lte=365"`
	Online        bool           `json:"online"`
	CategoryID    int64          `json:"category_id" validate:"required,gt=0"`
	SubcategoryID int64          `json:"subcategory_id" validate:"required,gt=0"`
	SubdivisionID int64          `json:"subdivision_id" validate:"required,gt=0"`
	Tags          []string       `json:"tags" validate:"max=10,dive,min=2,max=30"`
	Addons        []ServiceAddon `json:"addons" validate:"max=3,dive"`
	FAQ           []ServiceFAQ   `json:"faq" validate:"max=10,dive"`
	KeepImages    []string       `json:"keep_images" validate:"max=10"`
}

type ServiceFilter struct {
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory"`
	Subdivision string  `json:"subdivision"`
	ProfileID   int64   `json:"profile_id"`
	PriceMin    float64 `json:"price_min"`
	PriceMax    float64 `json:"price_max"`
	Online      *bool   `json:"online"`
	Search      string  `json:"search"`
	Sort        string  `json:"sort"`
	Status      string  `json:"status"`
	Page        int     `json:"page"`
	Limit       int     `json:"limit"`
}

// Params returns the filter as cache key parameters.
func (f ServiceFilter) Params() map[string]any {
	return map[string]any{
		"category":    f.Category,
		"subcategory": f.Subcategory,
		"subdivision": f.Subdivision,
		"profile":     f.ProfileID,
		"min":         f.PriceMin,
		"max":         f.PriceMax,
		"online":      f.Online,
		"search":      f.Search,
		"sort":        f.Sort,
		"status":      f.Status,
		"page":        f.Page,
		"limit":       f.Limit,
	}
}

type ModerationRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason" validate:"required_if=Approve false,max=500"`
}
