package domain

import "time"

// SaleRecord is a real-world sale event shown in the recent-sale toast stream.
type SaleRecord struct {
	ID                  string    `json:"id"`
	CustomerDisplayName string    `json:"customerDisplayName"`
	Location            string    `json:"location"`
	CampaignLabel       string    `json:"campaignLabel"`
	Timestamp           time.Time `json:"timestamp"`
}
