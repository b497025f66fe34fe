package entity

import "time"

// RouteCard is one ledger record: a form number that has been issued and the document it went to.
// Optional fields are nil rather than empty strings.
type RouteCard struct {
	ID            int       `json:"id"`
	FormNumber    string    `json:"form_number"`
	AccountNumber *string   `json:"account_number,omitempty"`
	ClusterNumber *string   `json:"cluster_number,omitempty"`
	Status        *string   `json:"status,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	OutputPath    string    `json:"output_path"`
}
