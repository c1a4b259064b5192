package models

import "time"

const (
	SavedKindService = "service"
	SavedKindProfile = "profile"
)

type SavedItem struct {
	UserID    int64     `json:"user_id"`
	Kind      string    `json:"kind"`
	TargetID  int64     `json:"target_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SavedList groups a user's saved services and profiles.
type SavedList struct {
	Services []Service `json:"services"`
	Profiles []Profile `json:"profiles"`
}

type SavedIDs struct {
	Services []int64 `json:"services"`
	Profiles []int64 `json:"profiles"`
}
