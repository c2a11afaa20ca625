package models

import "time"

// Reputation is the trust record of one identity. The zero value is a valid empty record.
type Reputation struct {
	Address   Address   `json:"address"`
	Score     int64     `json:"score"`
	Completed int64     `json:"completed_jobs"`
	Failed    int64     `json:"failed_jobs"`
	Earnings  int64     `json:"earnings"`
	Slashes   int64     `json:"slash_count"`
	UpdatedAt time.Time `json:"updated_at"`
}
