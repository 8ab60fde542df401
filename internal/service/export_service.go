package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lakewatch/lakes-portal-api/internal/models"
	appErrors "github.com/lakewatch/lakes-portal-api/pkg/errors"
	"github.com/lakewatch/lakes-portal-api/pkg/export"
	"github.com/lakewatch/lakes-portal-api/pkg/storage"
)

// Report formats accepted by the moderation report endpoint.
const (
	ReportFormatCSV = "csv"
	ReportFormatPDF = "pdf"
)

type reportRenderer interface {
	Render(report export.Report) ([]byte, error)
}

// ExportResult captures successful report generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       string
	ExpiresAt    time.Time
}

// ExportService renders admin moderation-queue reports as CSV or PDF files.
type ExportService struct {
	publications publicationRepository
	metadata     metadataRepository
	photos       photoRepository
	projects     projectRepository
	store        fileStore
	signer       *storage.SignedURLSigner
	csv          reportRenderer
	pdf          reportRenderer
	logger       *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(publications publicationRepository, metadata metadataRepository, photos photoRepository, projects projectRepository, store fileStore, signer *storage.SignedURLSigner, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		publications: publications,
		metadata:     metadata,
		photos:       photos,
		projects:     projects,
		store:        store,
		signer:       signer,
		csv:          export.NewCSVRenderer(),
		pdf:          export.NewPDFRenderer(),
		logger:       logger,
	}
}

// Generate builds the pending-queue dataset for a resource and stores the
// rendered report, returning a signed download link.
func (s *ExportService) Generate(ctx context.Context, resource, format string) (*ExportResult, error) {
	format = strings.ToLower(format)
	if format != ReportFormatCSV && format != ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	report, err := s.buildReport(ctx, resource)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if format == ReportFormatCSV {
		payload, err = s.csv.Render(report)
	} else {
		payload, err = s.pdf.Render(report)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	filename := fmt.Sprintf("exports/%s-pending-%s.%s", resource, time.Now().UTC().Format("20060102-150405"), format)
	relPath, err := s.store.SaveStream(filename, bytes.NewReader(payload))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report")
	}

	token, expiresAt, err := s.signer.Generate(resource, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign report link")
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          "/downloads/" + token,
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *ExportService) buildReport(ctx context.Context, resource string) (export.Report, error) {
	status := models.StatusPending
	filter := models.RecordFilter{Status: &status, Page: 1, PageSize: 100}
	report := export.Report{GeneratedAt: time.Now().UTC()}

	switch resource {
	case "publications":
		items, _, err := s.publications.List(ctx, filter)
		if err != nil {
			return export.Report{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending publications")
		}
		report.Title = "Pending publications"
		report.Columns = []export.Column{
			{Key: "id", Label: "ID"}, {Key: "title", Label: "Title"},
			{Key: "authors", Label: "Authors"}, {Key: "year", Label: "Year"},
			{Key: "lakes", Label: "Lakes"}, {Key: "uploader", Label: "Uploader"},
			{Key: "submitted", Label: "Submitted"},
		}
		for _, p := range items {
			report.Rows = append(report.Rows, map[string]string{
				"id":        p.ID,
				"title":     p.Title,
				"authors":   strings.Join(p.Authors, "; "),
				"year":      p.PublicationYear,
				"lakes":     strings.Join(p.Lakes, "; "),
				"uploader":  p.Uploader,
				"submitted": p.CreatedAt.Format(time.RFC3339),
			})
		}
	case "metadata":
		items, _, err := s.metadata.List(ctx, filter)
		if err != nil {
			return export.Report{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending metadata records")
		}
		report.Title = "Pending metadata records"
		report.Columns = []export.Column{
			{Key: "id", Label: "ID"}, {Key: "title", Label: "Title"},
			{Key: "lake", Label: "Lake"}, {Key: "period", Label: "Period"},
			{Key: "contact", Label: "Contact"}, {Key: "uploader", Label: "Uploader"},
			{Key: "submitted", Label: "Submitted"},
		}
		for _, m := range items {
			report.Rows = append(report.Rows, map[string]string{
				"id":        m.ID,
				"title":     m.Title,
				"lake":      m.Lake,
				"period":    m.Period,
				"contact":   m.Email,
				"uploader":  m.Uploader,
				"submitted": m.CreatedAt.Format(time.RFC3339),
			})
		}
	case "photos":
		items, _, err := s.photos.List(ctx, filter)
		if err != nil {
			return export.Report{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending photos")
		}
		report.Title = "Pending photos"
		report.Columns = []export.Column{
			{Key: "id", Label: "ID"}, {Key: "description", Label: "Description"},
			{Key: "lake", Label: "Lake"}, {Key: "captured", Label: "Captured"},
			{Key: "uploader", Label: "Uploader"}, {Key: "submitted", Label: "Submitted"},
		}
		for _, p := range items {
			captured := ""
			if p.CaptureDate != nil {
				captured = p.CaptureDate.Format(captureDateLayout)
			}
			report.Rows = append(report.Rows, map[string]string{
				"id":          p.ID,
				"description": p.Description,
				"lake":        p.Lake,
				"captured":    captured,
				"uploader":    p.Uploader,
				"submitted":   p.CreatedAt.Format(time.RFC3339),
			})
		}
	case "projects":
		items, _, err := s.projects.List(ctx, filter)
		if err != nil {
			return export.Report{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending projects")
		}
		report.Title = "Pending projects"
		report.Columns = []export.Column{
			{Key: "id", Label: "ID"}, {Key: "title", Label: "Title"},
			{Key: "lake", Label: "Lake"}, {Key: "longitude", Label: "Longitude"},
			{Key: "latitude", Label: "Latitude"}, {Key: "uploader", Label: "Uploader"},
			{Key: "submitted", Label: "Submitted"},
		}
		for _, p := range items {
			report.Rows = append(report.Rows, map[string]string{
				"id":        p.ID,
				"title":     p.Title,
				"lake":      p.Lake,
				"longitude": fmt.Sprintf("%.6f", p.Longitude),
				"latitude":  fmt.Sprintf("%.6f", p.Latitude),
				"uploader":  p.Uploader,
				"submitted": p.CreatedAt.Format(time.RFC3339),
			})
		}
	default:
		return export.Report{}, appErrors.Clone(appErrors.ErrValidation, "unknown report resource")
	}
	return report, nil
}
