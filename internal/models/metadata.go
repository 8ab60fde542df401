package models

import "time"

// MetadataRecord describes a dataset held by a contributing organization,
// carrying an uploaded descriptor PDF.
type MetadataRecord struct {
	ID          string       `db:"id" json:"id"`
	Title       string       `db:"title" json:"title"`
	Email       string       `db:"email" json:"email"`
	Period      string       `db:"period" json:"period"`
	Description string       `db:"description" json:"description"`
	Lake        string       `db:"lake" json:"lake"`
	FilePath    string       `db:"file_path" json:"file,omitempty"`
	Uploader    string       `db:"uploader" json:"uploader"`
	Status      RecordStatus `db:"status" json:"status"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}
