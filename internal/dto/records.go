package dto

import "github.com/lakewatch/lakes-portal-api/internal/models"

// ModerationRequest carries an admin approve/reject decision.
type ModerationRequest struct {
	Status models.RecordStatus `json:"status" binding:"required"`
}

// CreatePublicationRequest contains metadata submitted alongside a PDF upload.
type CreatePublicationRequest struct {
	Title           string   `form:"title" json:"title"`
	Abstract        string   `form:"abstract" json:"abstract"`
	Authors         []string `form:"authors" json:"authors"`
	PublicationYear string   `form:"publication_year" json:"publication_year"`
	Keywords        string   `form:"keywords" json:"keywords"`
	Lakes           []string `form:"lakes" json:"lakes"`
}

// UpdatePublicationRequest mirrors the create payload; every field is
// optional and the stored file is kept when no new one is attached.
type UpdatePublicationRequest struct {
	Title           *string  `form:"title" json:"title"`
	Abstract        *string  `form:"abstract" json:"abstract"`
	Authors         []string `form:"authors" json:"authors"`
	PublicationYear *string  `form:"publication_year" json:"publication_year"`
	Keywords        *string  `form:"keywords" json:"keywords"`
	Lakes           []string `form:"lakes" json:"lakes"`
}

// CreateMetadataRequest contains dataset metadata submitted with a PDF.
type CreateMetadataRequest struct {
	Title       string `form:"title" json:"title"`
	Email       string `form:"email" json:"email"`
	Period      string `form:"period" json:"period"`
	Description string `form:"description" json:"description"`
	Lake        string `form:"lake" json:"lake"`
}

// UpdateMetadataRequest is the optional-field variant for edits.
type UpdateMetadataRequest struct {
	Title       *string `form:"title" json:"title"`
	Email       *string `form:"email" json:"email"`
	Period      *string `form:"period" json:"period"`
	Description *string `form:"description" json:"description"`
	Lake        *string `form:"lake" json:"lake"`
}

// CreatePhotoRequest contains photo metadata submitted with an image.
type CreatePhotoRequest struct {
	Description string `form:"description" json:"description"`
	Lake        string `form:"lake" json:"lake"`
	CaptureDate string `form:"capture_date" json:"capture_date"`
}

// UpdatePhotoRequest is the optional-field variant for edits.
type UpdatePhotoRequest struct {
	Description *string `form:"description" json:"description"`
	Lake        *string `form:"lake" json:"lake"`
	CaptureDate *string `form:"capture_date" json:"capture_date"`
}

// CreateProjectRequest contains a research project submission.
type CreateProjectRequest struct {
	Title       string  `form:"title" json:"title" binding:"required"`
	Description string  `form:"description" json:"description" binding:"required"`
	Longitude   float64 `form:"longitude" json:"longitude"`
	Latitude    float64 `form:"latitude" json:"latitude"`
	Lake        string  `form:"lake" json:"lake" binding:"required"`
}

// UpdateProjectRequest is the optional-field variant for edits.
type UpdateProjectRequest struct {
	Title       *string  `form:"title" json:"title"`
	Description *string  `form:"description" json:"description"`
	Longitude   *float64 `form:"longitude" json:"longitude"`
	Latitude    *float64 `form:"latitude" json:"latitude"`
	Lake        *string  `form:"lake" json:"lake"`
}

// RecordDownloadResponse enriches a record with a signed download URL.
type RecordDownloadResponse struct {
	ID          string `json:"id"`
	DownloadURL string `json:"download_url"`
	ExpiresAt   string `json:"expires_at"`
}
