// Package models defines core data structures for courses, conversations, and API payloads.
package models

// Course is one catalog offering. Its position in the catalog is the row of its embedding.
type Course struct {
	OfferingID    string `json:"offering_id"`
	Name          string `json:"name"`
	Modality      string `json:"modality"`
	OfferType     string `json:"offer_type"`
	Description   string `json:"description,omitempty"`
	Area          string `json:"area,omitempty"`
	Unit          string `json:"unit,omitempty"`
	Department    string `json:"department,omitempty"`
	PortfolioCode string `json:"portfolio_code,omitempty"`
	CategoryLabel string `json:"category_label,omitempty"`
}
