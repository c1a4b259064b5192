// Package cache holds the tag vocabulary, key builder and TTL tiers used to
// cache reads, and the stores that back them.
package cache

import (
	"fmt"

	"doulitsa/internal/models"
)

const (
	TagServices     = "services"
	TagProfiles     = "profiles"
	TagTaxonomies   = "taxonomies"
	TagCategories   = "categories"
	TagAdminStats   = "admin:stats"
	TagAdminReports = "admin:reports"
)

func ServiceTag(id int64) string { return fmt.Sprintf("service:%d", id) }

func ServiceSlugTag(slug string) string { return "service:slug:" + slug }

func ServicesByProfileTag(profileID int64) string {
	return fmt.Sprintf("services:profile:%d", profileID)
}

func ServicesByCategoryTag(slug string) string { return "services:category:" + slug }

func ServicesBySubcategoryTag(slug string) string { return "services:subcategory:" + slug }

func ProfileTag(id int64) string { return fmt.Sprintf("profile:%d", id) }

func ProfileUsernameTag(username string) string { return "profile:username:" + username }

func ProfilesByCategoryTag(slug string) string { return "profiles:category:" + slug }

func ServiceReviewsTag(serviceID int64) string {
	return fmt.Sprintf("reviews:service:%d", serviceID)
}

func ProfileReviewsTag(profileID int64) string {
	return fmt.Sprintf("reviews:profile:%d", profileID)
}

func SubcategoriesTag(categorySlug string) string { return "subcategories:" + categorySlug }

func UserTag(id int64) string { return fmt.Sprintf("user:%d", id) }

func SavedTag(userID int64) string { return fmt.Sprintf("saved:%d", userID) }

func BookingsTag(userID int64) string { return fmt.Sprintf("bookings:%d", userID) }

// ServiceTags lists every tag a write to s invalidates.
func ServiceTags(s models.Service) []string {
	tags := []string{
		TagServices,
		TagAdminStats,
		ServiceTag(s.ID),
		ServicesByProfileTag(s.ProfileID),
		ProfileTag(s.ProfileID),
	}
	if s.Slug != "" {
		tags = append(tags, ServiceSlugTag(s.Slug))
	}
	if s.CategorySlug != "" {
		tags = append(tags, ServicesByCategoryTag(s.CategorySlug))
	}
	if s.SubcategorySlug != "" {
		tags = append(tags, ServicesBySubcategoryTag(s.SubcategorySlug))
	}
	return tags
}

// ProfileTags lists every tag a write to p invalidates.
func ProfileTags(p models.Profile) []string {
	tags := []string{
		TagProfiles,
		TagAdminStats,
		ProfileTag(p.ID),
		UserTag(p.UserID),
		ServicesByProfileTag(p.ID),
	}
	if p.Username != "" {
		tags = append(tags, ProfileUsernameTag(p.Username))
	}
	if p.CategorySlug != "" {
		tags = append(tags, ProfilesByCategoryTag(p.CategorySlug))
	}
	return tags
}

// ReviewTags lists the tags touched when a review of a service changes. The
// service and profile carry denormalised ratings, so their tags go too.
func ReviewTags(serviceID, profileID int64) []string {
	return []string{
		ServiceReviewsTag(serviceID),
		ProfileReviewsTag(profileID),
		ServiceTag(serviceID),
		ProfileTag(profileID),
		TagServices,
		TagProfiles,
		TagAdminStats,
	}
}
