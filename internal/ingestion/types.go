// Package ingestion defines the request and response types accepted by the
// document ingestion surface.
package ingestion

import "github.com/Adithya-Monish-Kumar-K/Distributed-Document-Search/internal/document"

// IngestRequest is the JSON body accepted by the ingestion endpoint. ID is a
// pointer so an absent id can be told apart from document 0.
type IngestRequest struct {
	ID          *int64 `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Language    string `json:"language"`
	ReleaseDate string `json:"releaseDate"`
	Content     string `json:"content"`
}

// Document converts a validated request into the stored representation.
func (r *IngestRequest) Document() *document.Document {
	var id int64
	if r.ID != nil {
		id = *r.ID
	}
	return &document.Document{
		ID:          id,
		Title:       r.Title,
		Author:      r.Author,
		Language:    r.Language,
		ReleaseDate: r.ReleaseDate,
		Content:     r.Content,
	}
}

// IngestResponse is returned to the caller after a document is accepted.
type IngestResponse struct {
	DocumentID int64  `json:"documentId"`
	Created    bool   `json:"created"`
	Status     string `json:"status"`
	Published  bool   `json:"published"`
}
