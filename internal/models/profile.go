package models

import "time"

const (
	ProfileTypeFreelancer = "freelancer"
	ProfileTypeCompany    = "company"
)

type Profile struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	Username        string     `json:"username"`
	Type            string     `json:"type"`
	DisplayName     string     `json:"display_name"`
	Tagline         string     `json:"tagline"`
	Bio             string     `json:"bio"`
	Rate            *float64   `json:"rate,omitempty"`
	CategoryID      int64      `json:"category_id"`
	CategorySlug    string     `json:"category_slug,omitempty"`
	SubcategoryID   int64      `json:"subcategory_id"`
	SubcategorySlug string     `json:"subcategory_slug,omitempty"`
	Skills          []string   `json:"skills"`
	Online          bool       `json:"online"`
	CountyID        *int64     `json:"county_id,omitempty"`
	AreaIDs         []int64    `json:"area_ids"`
	Phone           string     `json:"phone,omitempty"`
	Website         string     `json:"website,omitempty"`
	ExperienceYears int        `json:"experience_years"`
	AvatarURL       *string    `json:"avatar_url,omitempty"`
	CoverURL        *string    `json:"cover_url,omitempty"`
	Rating          float64    `json:"rating"`
	ReviewsCount    int        `json:"reviews_count"`
	Verified        bool       `json:"verified"`
	Featured        bool       `json:"featured"`
	Published       bool       `json:"published"`
	Saved           bool       `json:"saved,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

type ProfileRequest struct {
	Type            string   `json:"type" validate:"required,oneof=freelancer company"`
	DisplayName     string   `json:"display_name" validate:"required,min=2,max=50"`
	Tagline         string   `json:"tagline" validate:"required,min=5,max=100"`
	Bio             string   `json:"bio" validate:"required,min=80,max=5000"`
	Rate            *float64 `json:"rate" validate:"omitempty,gte=10,lte=50000"`
	CategoryID      int64    `json:"category_id" validate:"required,gt=0"`
	SubcategoryID   int64    `json:"subcategory_id" validate:"required,gt=0"`
	Skills          []string `json:"skills" validate:"max=10,dive,min=2,max=30"`
	Online          bool     `json:"online"`
	CountyID        *int64   `json:"county_id" validate:"required_without=Online"`
	AreaIDs         []int64  `json:"area_ids" validate:"max=20,dive,gt=0"`
	Phone           string   `json:"phone" validate:"omitempty,greekphone"`
	Website         string   `json:"website" validate:"omitempty,url,max=200"`
	ExperienceYears int      `json:"experience_years" validate:"gte=0,lte=80"`
	Published       bool     `json:"published"`
}

type ProfileFilter struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	CountyID    int64  `json:"county_id"`
	Type        string `json:"type"`
	Online      *bool  `json:"online"`
	Verified    *bool  `json:"verified"`
	Search      string `json:"search"`
	Sort        string `json:"sort"`
	Page        int    `json:"page"`
	Limit       int    `json:"limit"`
}

// Params returns the filter as cache key parameters.
func (f ProfileFilter) Params() map[string]any {
	return map[string]any{
		"category":    f.Category,
		"subcategory": f.Subcategory,
		"county":      f.CountyID,
		"type":        f.Type,
		"online":      f.Online,
		"verified":    f.Verified,
		"search":      f.Search,
		"sort":        f.Sort,
		"page":        f.Page,
		"limit":       f.Limit,
	}
}
