package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lakewatch/lakes-portal-api/internal/dto"
	"github.com/lakewatch/lakes-portal-api/internal/models"
	appErrors "github.com/lakewatch/lakes-portal-api/pkg/errors"
)

type mockPhotoRepo struct {
	items map[string]*models.Photo
}

func newMockPhotoRepo() *mockPhotoRepo {
	return &mockPhotoRepo{items: make(map[string]*models.Photo)}
}

func (m *mockPhotoRepo) Create(ctx context.Context, p *models.Photo) error {
	if p.ID == "" {
		p.ID = "photo-1"
	}
	m.items[p.ID] = p
	return nil
}

func (m *mockPhotoRepo) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	if p, ok := m.items[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPhotoRepo) List(ctx context.Context, filter models.RecordFilter) ([]models.Photo, int, error) {
	var out []models.Photo
	for _, p := range m.items {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m *mockPhotoRepo) Update(ctx context.Context, p *models.Photo) error {
	m.items[p.ID] = p
	return nil
}

func (m *mockPhotoRepo) UpdateStatus(ctx context.Context, id string, status models.RecordStatus, ts time.Time) error {
	if p, ok := m.items[id]; ok {
		p.Status = status
	}
	return nil
}

func (m *mockPhotoRepo) Delete(ctx context.Context, id string) error {
	delete(m.items, id)
	return nil
}

func pngBytes() []byte {
	return []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
}

func newPhotoService(repo *mockPhotoRepo) *PhotoService {
	return NewPhotoService(repo, &mockAudit{}, nil, &mockFileStore{}, nil, validator.New(), zap.NewNop(), testUploads())
}

func TestPhotoServiceCreateParsesCaptureDate(t *testing.T) {
	repo := newMockPhotoRepo()
	svc := newPhotoService(repo)

	image := makeFileHeader(t, "image", "lake.png", pngBytes())
	p, err := svc.Create(context.Background(), "u1", dto.CreatePhotoRequest{
		Description: "Morning fog over the lake",
		Lake:        "Kaptai",
		CaptureDate: "2023-11-05",
	}, image)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, p.Status)
	require.NotNil(t, p.CaptureDate)
	assert.Equal(t, 2023, p.CaptureDate.Year())
	assert.Equal(t, time.November, p.CaptureDate.Month())
	assert.NotEmpty(t, p.ImagePath)
}

func TestPhotoServiceCreateRejectsBadCaptureDate(t *testing.T) {
	repo := newMockPhotoRepo()
	svc := newPhotoService(repo)

	image := makeFileHeader(t, "image", "lake.png", pngBytes())
	_, err := svc.Create(context.Background(), "u1", dto.CreatePhotoRequest{
		Lake:        "Kaptai",
		CaptureDate: "05/11/2023",
	}, image)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.items)
}

func TestPhotoServiceCreateRejectsNonImage(t *testing.T) {
	repo := newMockPhotoRepo()
	svc := newPhotoService(repo)

	file := makeFileHeader(t, "image", "paper.pdf", pdfBytes())
	_, err := svc.Create(context.Background(), "u1", dto.CreatePhotoRequest{Lake: "Kaptai"}, file)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnsupportedMedia.Code, appErrors.FromError(err).Code)
}
