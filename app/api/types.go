package api

import (
	"github.com/crystalsense/crystal/app/database"
	"github.com/crystalsense/crystal/app/ingest"
)

type Handler struct {
	itemRepo    database.ItemRepository
	targetRepo  database.TargetRepository
	runRepo     database.RunRepository
	accountRepo database.AccountRepository
	coordinator *ingest.Coordinator
}

// triggerRequest is the body of a manual cycle trigger. Date is optional;
// an empty date collects the previous calendar day.
type triggerRequest struct {
	Date string `json:"date"`
}

type targetRequest struct {
	Platform    string `json:"platform" binding:"required"`
	Type        string `json:"type" binding:"required"`
	ExternalID  string `json:"external_id"`
	Symbol      string `json:"symbol"`
	Keyword     string `json:"keyword"`
	DisplayName string `json:"display_name"`
	Enabled     *bool  `json:"enabled"`
}

type accountRequest struct {
	Platform    string            `json:"platform" binding:"required"`
	Username    string            `json:"username" binding:"required"`
	LoginType   string            `json:"login_type"`
	LoginStatus string            `json:"login_status"`
	Cookies     map[string]string `json:"cookies"`
	IsActive    *bool             `json:"is_active"`
}
