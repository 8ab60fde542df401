package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"mime/multipart"
	"os"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lakewatch/lakes-portal-api/internal/dto"
	"github.com/lakewatch/lakes-portal-api/internal/models"
	"github.com/lakewatch/lakes-portal-api/pkg/config"
	appErrors "github.com/lakewatch/lakes-portal-api/pkg/errors"
)

type mockPublicationRepo struct {
	items           map[string]*models.Publication
	created         []*models.Publication
	deleted         []string
	createErr       error
	updateStatusErr error
	lastList        models.RecordFilter
}

func newMockPublicationRepo() *mockPublicationRepo {
	return &mockPublicationRepo{items: make(map[string]*models.Publication)}
}

func (m *mockPublicationRepo) Create(ctx context.Context, p *models.Publication) error {
	if m.createErr != nil {
		return m.createErr
	}
	if p.ID == "" {
		p.ID = "pub-1"
	}
	if p.Status == "" {
		p.Status = models.StatusPending
	}
	m.items[p.ID] = p
	m.created = append(m.created, p)
	return nil
}

func (m *mockPublicationRepo) GetByID(ctx context.Context, id string) (*models.Publication, error) {
	if p, ok := m.items[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPublicationRepo) List(ctx context.Context, filter models.RecordFilter) ([]models.Publication, int, error) {
	m.lastList = filter
	var out []models.Publication
	for _, p := range m.items {
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if filter.Uploader != "" && p.Uploader != filter.Uploader {
			continue
		}
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m *mockPublicationRepo) Update(ctx context.Context, p *models.Publication) error {
	m.items[p.ID] = p
	return nil
}

func (m *mockPublicationRepo) UpdateStatus(ctx context.Context, id string, status models.RecordStatus, ts time.Time) error {
	if m.updateStatusErr != nil {
		return m.updateStatusErr
	}
	if p, ok := m.items[id]; ok {
		p.Status = status
		p.UpdatedAt = ts
	}
	return nil
}

func (m *mockPublicationRepo) Delete(ctx context.Context, id string) error {
	delete(m.items, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockAudit struct {
	logs []*models.AuditLog
}

func (m *mockAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

type mockFileStore struct {
	saved   []string
	deleted []string
	saveErr error
}

func (m *mockFileStore) SaveStream(filename string, r io.Reader) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	m.saved = append(m.saved, filename)
	return filename, nil
}

func (m *mockFileStore) Open(filename string) (*os.File, error) {
	return nil, os.ErrNotExist
}

func (m *mockFileStore) Delete(filename string) error {
	m.deleted = append(m.deleted, filename)
	return nil
}

// makeFileHeader builds a real multipart.FileHeader by writing and re-parsing
// a multipart form in memory.
func makeFileHeader(t *testing.T, field, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	files := form.File[field]
	require.Len(t, files, 1)
	return files[0]
}

func pdfBytes() []byte {
	return []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")
}

func testUploads() config.UploadsConfig {
	return config.UploadsConfig{
		AllowedDocMIMEs:   []string{"application/pdf"},
		AllowedImageMIMEs: []string{"image/"},
		MaxDocumentBytes:  1 << 20,
		MaxImageBytes:     1 << 20,
	}
}

func newPublicationService(repo *mockPublicationRepo, audit *mockAudit, store *mockFileStore) *PublicationService {
	return NewPublicationService(repo, audit, nil, store, nil, validator.New(), zap.NewNop(), testUploads())
}

func TestPublicationServiceCreate(t *testing.T) {
	repo := newMockPublicationRepo()
	audit := &mockAudit{}
	store := &mockFileStore{}
	svc := newPublicationService(repo, audit, store)

	file := makeFileHeader(t, "file", "paper.pdf", pdfBytes())
	p, err := svc.Create(context.Background(), "u1", dto.CreatePublicationRequest{
		Title:           "Chlorophyll trends",
		Abstract:        "Seasonal study",
		Authors:         []string{"Karim"},
		PublicationYear: "2023",
	}, file)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, p.Status)
	assert.Equal(t, "u1", p.Uploader)
	assert.NotEmpty(t, p.FilePath)
	assert.Len(t, store.saved, 1)
	assert.NotEmpty(t, audit.logs)
}

func TestPublicationServiceCreateRejectsWrongType(t *testing.T) {
	repo := newMockPublicationRepo()
	store := &mockFileStore{}
	svc := newPublicationService(repo, &mockAudit{}, store)

	file := makeFileHeader(t, "file", "notes.txt", []byte("plain text, not a pdf"))
	_, err := svc.Create(context.Background(), "u1", dto.CreatePublicationRequest{Title: "Notes"}, file)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnsupportedMedia.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
	assert.Empty(t, store.saved)
}

func TestPublicationServiceCreateRollsBackOnUploadFailure(t *testing.T) {
	repo := newMockPublicationRepo()
	store := &mockFileStore{saveErr: os.ErrPermission}
	svc := newPublicationService(repo, &mockAudit{}, store)

	file := makeFileHeader(t, "file", "paper.pdf", pdfBytes())
	_, err := svc.Create(context.Background(), "u1", dto.CreatePublicationRequest{Title: "Paper"}, file)
	require.Error(t, err)
	assert.Empty(t, repo.items)
	assert.Contains(t, repo.deleted, "pub-1")
}

func TestPublicationServiceUpdateOwnerPendingOnly(t *testing.T) {
	repo := newMockPublicationRepo()
	repo.items["pub-1"] = &models.Publication{ID: "pub-1", Title: "Old", Uploader: "u1", Status: models.StatusApproved}
	svc := newPublicationService(repo, &mockAudit{}, &mockFileStore{})

	title := "New"
	_, err := svc.Update(context.Background(), "u1", false, "pub-1", dto.UpdatePublicationRequest{Title: &title}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrModerated.Code, appErrors.FromError(err).Code)
	assert.Equal(t, "Old", repo.items["pub-1"].Title)
}

func TestPublicationServiceUpdateForbiddenForOthers(t *testing.T) {
	repo := newMockPublicationRepo()
	repo.items["pub-1"] = &models.Publication{ID: "pub-1", Title: "Old", Uploader: "u1", Status: models.StatusPending}
	svc := newPublicationService(repo, &mockAudit{}, &mockFileStore{})

	title := "New"
	_, err := svc.Update(context.Background(), "u2", false, "pub-1", dto.UpdatePublicationRequest{Title: &title}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestPublicationServiceUpdateAdminOverridesLifecycle(t *testing.T) {
	repo := newMockPublicationRepo()
	repo.items["pub-1"] = &models.Publication{ID: "pub-1", Title: "Old", Uploader: "u1", Status: models.StatusApproved}
	svc := newPublicationService(repo, &mockAudit{}, &mockFileStore{})

	title := "New"
	p, err := svc.Update(context.Background(), "admin", true, "pub-1", dto.UpdatePublicationRequest{Title: &title}, nil)
	require.NoError(t, err)
	assert.Equal(t, "New", p.Title)
}

func TestPublicationServiceDeleteRemovesFile(t *testing.T) {
	repo := newMockPublicationRepo()
	store := &mockFileStore{}
	repo.items["pub-1"] = &models.Publication{ID: "pub-1", Uploader: "u1", Status: models.StatusPending, FilePath: "publications/pub-1/paper.pdf"}
	svc := newPublicationService(repo, &mockAudit{}, store)

	err := svc.Delete(context.Background(), "u1", false, "pub-1")
	require.NoError(t, err)
	assert.Empty(t, repo.items)
	assert.Contains(t, store.deleted, "publications/pub-1/paper.pdf")
}

func TestPublicationServiceModerate(t *testing.T) {
	repo := newMockPublicationRepo()
	audit := &mockAudit{}
	repo.items["pub-1"] = &models.Publication{ID: "pub-1", Uploader: "u1", Status: models.StatusPending}
	svc := newPublicationService(repo, audit, &mockFileStore{})

	p, err := svc.Moderate(context.Background(), "admin", "pub-1", models.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, p.Status)
	assert.Equal(t, models.StatusApproved, repo.items["pub-1"].Status)
	require.NotEmpty(t, audit.logs)
	assert.Equal(t, models.AuditActionRecordApprove, audit.logs[len(audit.logs)-1].Action)
}

func TestPublicationServiceModerateTwiceFails(t *testing.T) {
	repo := newMockPublicationRepo()
	repo.items["pub-1"] = &models.Publication{ID: "pub-1", Uploader: "u1", Status: models.StatusRejected}
	svc := newPublicationService(repo, &mockAudit{}, &mockFileStore{})

	_, err := svc.Moderate(context.Background(), "admin", "pub-1", models.StatusApproved)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrModerated.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.StatusRejected, repo.items["pub-1"].Status)
}

func TestPublicationServiceModerateLostRace(t *testing.T) {
	repo := newMockPublicationRepo()
	repo.items["pub-1"] = &models.Publication{ID: "pub-1", Uploader: "u1", Status: models.StatusPending}
	repo.updateStatusErr = sql.ErrNoRows
	svc := newPublicationService(repo, &mockAudit{}, &mockFileStore{})

	// The row read as pending but another moderator decided it in between.
	_, err := svc.Moderate(context.Background(), "admin", "pub-1", models.StatusApproved)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrModerated.Code, appErrors.FromError(err).Code)
}

func TestPublicationServiceModerateRejectsPendingStatus(t *testing.T) {
	repo := newMockPublicationRepo()
	repo.items["pub-1"] = &models.Publication{ID: "pub-1", Uploader: "u1", Status: models.StatusPending}
	svc := newPublicationService(repo, &mockAudit{}, &mockFileStore{})

	_, err := svc.Moderate(context.Background(), "admin", "pub-1", models.StatusPending)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPublicationServiceGetHidesUnapprovedFromOthers(t *testing.T) {
	repo := newMockPublicationRepo()
	repo.items["pub-1"] = &models.Publication{ID: "pub-1", Uploader: "u1", Status: models.StatusPending}
	svc := newPublicationService(repo, &mockAudit{}, &mockFileStore{})

	// Anonymous and unrelated callers see a not-found, not the pending row.
	_, err := svc.Get(context.Background(), "", false, "pub-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Get(context.Background(), "u2", false, "pub-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	owner, err := svc.Get(context.Background(), "u1", false, "pub-1")
	require.NoError(t, err)
	assert.Equal(t, "pub-1", owner.ID)

	admin, err := svc.Get(context.Background(), "admin", true, "pub-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, admin.Status)
}

func TestPublicationServiceGetApprovedIsPublic(t *testing.T) {
	repo := newMockPublicationRepo()
	repo.items["pub-1"] = &models.Publication{ID: "pub-1", Uploader: "u1", Status: models.StatusApproved}
	svc := newPublicationService(repo, &mockAudit{}, &mockFileStore{})

	p, err := svc.Get(context.Background(), "", false, "pub-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, p.Status)
}

func TestPublicationServiceListScopes(t *testing.T) {
	repo := newMockPublicationRepo()
	repo.items["a"] = &models.Publication{ID: "a", Uploader: "u1", Status: models.StatusApproved}
	repo.items["b"] = &models.Publication{ID: "b", Uploader: "u1", Status: models.StatusPending}
	repo.items["c"] = &models.Publication{ID: "c", Uploader: "u2", Status: models.StatusPending}
	svc := newPublicationService(repo, &mockAudit{}, &mockFileStore{})

	approved, page, err := svc.ListApproved(context.Background(), models.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, approved, 1)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, 20, page.PageSize)

	mine, _, err := svc.ListMine(context.Background(), "u1", models.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	pending, _, err := svc.ListPending(context.Background(), models.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, pending, 2)
	require.NotNil(t, repo.lastList.Status)
	assert.Equal(t, models.StatusPending, *repo.lastList.Status)
}
