package models

import "time"

// Project is a research project located on a lake, submitted for moderation.
type Project struct {
	ID          string       `db:"id" json:"id"`
	Title       string       `db:"title" json:"title"`
	Description string       `db:"description" json:"description"`
	Longitude   float64      `db:"longitude" json:"longitude"`
	Latitude    float64      `db:"latitude" json:"latitude"`
	Lake        string       `db:"lake" json:"lake"`
	Uploader    string       `db:"uploader" json:"uploader"`
	Status      RecordStatus `db:"status" json:"status"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}
