// Package client is a Go SDK for the lakes portal API. It owns the
// authenticated HTTP client pair, the session and record caches, and the
// refresh-and-retry behaviour around expired access tokens.
package client

import "time"

// Record statuses as they appear on the wire.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// StatusLabel maps a wire status to its display label. Unknown statuses
// yield an empty label.
func StatusLabel(status string) string {
	switch status {
	case StatusPending:
		return "Pending"
	case StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	}
	return ""
}

// UserProfile is the authenticated user's profile as served by /profile/me/.
type UserProfile struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Gender       string `json:"gender"`
	Organization string `json:"organization"`
	Designation  string `json:"designation"`
	Role         string `json:"role"`
	Photo        string `json:"photo,omitempty"`
}

// IsAdmin reports whether the profile carries the admin role.
func (u UserProfile) IsAdmin() bool {
	return u.Role == "ADMIN"
}

// Record is implemented by every cacheable resource item.
type Record interface {
	RecordID() string
}

// Publication mirrors the server publication payload.
type Publication struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Abstract        string    `json:"abstract"`
	Authors         []string  `json:"authors"`
	PublicationYear string    `json:"publication_year"`
	Keywords        string    `json:"keywords"`
	Lakes           []string  `json:"lakes"`
	File            string    `json:"file,omitempty"`
	Uploader        string    `json:"uploader"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// RecordID implements Record.
func (p Publication) RecordID() string { return p.ID }

// Metadata mirrors the server dataset metadata payload.
type Metadata struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Email       string    `json:"email"`
	Period      string    `json:"period"`
	Description string    `json:"description"`
	Lake        string    `json:"lake"`
	File        string    `json:"file,omitempty"`
	Uploader    string    `json:"uploader"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RecordID implements Record.
func (m Metadata) RecordID() string { return m.ID }

// Photo mirrors the server photo payload.
type Photo struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Lake        string     `json:"lake"`
	CaptureDate *time.Time `json:"capture_date,omitempty"`
	Image       string     `json:"image,omitempty"`
	Uploader    string     `json:"uploader"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// RecordID implements Record.
func (p Photo) RecordID() string { return p.ID }

// Project mirrors the server project payload.
type Project struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Longitude   float64   `json:"longitude"`
	Latitude    float64   `json:"latitude"`
	Lake        string    `json:"lake"`
	Uploader    string    `json:"uploader"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RecordID implements Record.
func (p Project) RecordID() string { return p.ID }

// Pagination mirrors the server list pagination envelope.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// APIError is the error body inside the server response envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}
