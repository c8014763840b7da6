package domain

import "time"

// Document is an ingested source document. Its text arrives as ordered
// page strings from an upstream extraction step; pages are persisted so a
// restarted worker can re-run ingestion without the original upload.
type Document struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	PageCount int       `json:"page_count"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateDocument validates a document before persistence.
func ValidateDocument(d *Document) error {
	if d.ID == "" {
		return ErrValidation("document id is required")
	}
	if d.Name == "" {
		return ErrValidation("document name is required")
	}
	return nil
}
