package models

import (
	"time"

	"github.com/lib/pq"
)

// Publication is a research paper submitted for moderation, carrying an
// uploaded PDF.
type Publication struct {
	ID              string         `db:"id" json:"id"`
	Title           string         `db:"title" json:"title"`
	Abstract        string         `db:"abstract" json:"abstract"`
	Authors         pq.StringArray `db:"authors" json:"authors"`
	PublicationYear string         `db:"publication_year" json:"publication_year"`
	Keywords        string         `db:"keywords" json:"keywords"`
	Lakes           pq.StringArray `db:"lakes" json:"lakes"`
	FilePath        string         `db:"file_path" json:"file,omitempty"`
	Uploader        string         `db:"uploader" json:"uploader"`
	Status          RecordStatus   `db:"status" json:"status"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}
