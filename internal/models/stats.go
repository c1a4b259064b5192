package models

type AdminStats struct {
	Users            int            `json:"users"`
	BlockedUsers     int            `json:"blocked_users"`
	Profiles         int            `json:"profiles"`
	ServicesByStatus map[string]int `json:"services_by_status"`
	Reviews          int            `json:"reviews"`
	OpenReports      int            `json:"open_reports"`
	BookingsByStatus map[string]int `json:"bookings_by_status"`
	Subscriptions    map[string]int `json:"subscriptions"`
}

type RoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user freelancer company admin"`
}

type BlockRequest struct {
	Blocked bool `json:"blocked"`
}

type RevalidateRequest struct {
	Tags []string `json:"tags" validate:"required,min=1,max=50,dive,required,max=200"`
}

type FlagRequest struct {
	Value bool `json:"value"`
}
