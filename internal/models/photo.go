package models

import "time"

// Photo is a lake photograph submitted for moderation.
type Photo struct {
	ID          string       `db:"id" json:"id"`
	Description string       `db:"description" json:"description"`
	Lake        string       `db:"lake" json:"lake"`
	CaptureDate *time.Time   `db:"capture_date" json:"capture_date,omitempty"`
	ImagePath   string       `db:"image_path" json:"image,omitempty"`
	Uploader    string       `db:"uploader" json:"uploader"`
	Status      RecordStatus `db:"status" json:"status"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}
