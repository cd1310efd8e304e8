package domain

import "time"

// GeneratedImage is an append-only usage record written after a tenant
// scoped generation.
type GeneratedImage struct {
	ID                string    `json:"id"`
	EventID           string    `json:"event_id"`
	PromptID          *string   `json:"prompt_id"`
	OriginalImageURL  *string   `json:"original_image_url"`
	GeneratedImageURL string    `json:"generated_image_url"`
	QRCodeURL         *string   `json:"qr_code_url"`
	ModelUsed         string    `json:"model_used"`
	TokensUsed        *int      `json:"tokens_used"`
	EstimatedCost     *float64  `json:"estimated_cost"`
	ProcessingTimeMS  *int      `json:"processing_time_ms"`
	CreatedAt         time.Time `json:"created_at"`
}

type EventStats struct {
	EventID     string  `json:"event_id"`
	EventName   string  `json:"event_name"`
	TotalImages int     `json:"total_images"`
	TotalCost   float64 `json:"total_cost"`
	ImagesToday int     `json:"images_today"`
	CostToday   float64 `json:"cost_today"`
}

type DashboardStats struct {
	TotalEvents  int              `json:"total_events"`
	ActiveEvents int              `json:"active_events"`
	TotalImages  int              `json:"total_images"`
	TotalCost    float64          `json:"total_cost"`
	RecentImages []GeneratedImage `json:"recent_images"`
}
