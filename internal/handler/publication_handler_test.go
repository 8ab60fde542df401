package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakewatch/lakes-portal-api/internal/dto"
	"github.com/lakewatch/lakes-portal-api/internal/middleware"
	"github.com/lakewatch/lakes-portal-api/internal/models"
	"github.com/lakewatch/lakes-portal-api/internal/service"
	"github.com/lakewatch/lakes-portal-api/pkg/config"
	appErrors "github.com/lakewatch/lakes-portal-api/pkg/errors"
	"github.com/lakewatch/lakes-portal-api/pkg/response"
)

type publicationRepoStub struct {
	items map[string]*models.Publication
}

func (s *publicationRepoStub) Create(ctx context.Context, p *models.Publication) error {
	if p.ID == "" {
		p.ID = "pub-1"
	}
	s.items[p.ID] = p
	return nil
}

func (s *publicationRepoStub) GetByID(ctx context.Context, id string) (*models.Publication, error) {
	if p, ok := s.items[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *publicationRepoStub) List(ctx context.Context, filter models.RecordFilter) ([]models.Publication, int, error) {
	var out []models.Publication
	for _, p := range s.items {
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

func (s *publicationRepoStub) Update(ctx context.Context, p *models.Publication) error {
	s.items[p.ID] = p
	return nil
}

func (s *publicationRepoStub) UpdateStatus(ctx context.Context, id string, status models.RecordStatus, ts time.Time) error {
	if p, ok := s.items[id]; ok {
		p.Status = status
	}
	return nil
}

func (s *publicationRepoStub) Delete(ctx context.Context, id string) error {
	delete(s.items, id)
	return nil
}

type fileStoreStub struct{}

func (fileStoreStub) SaveStream(filename string, r io.Reader) (string, error) {
	_, _ = io.Copy(io.Discard, r)
	return filename, nil
}

func (fileStoreStub) Open(filename string) (*os.File, error) { return nil, os.ErrNotExist }

func (fileStoreStub) Delete(filename string) error { return nil }

func testUploadsConfig() config.UploadsConfig {
	return config.UploadsConfig{
		AllowedDocMIMEs:   []string{"application/pdf"},
		AllowedImageMIMEs: []string{"image/"},
		MaxDocumentBytes:  1 << 20,
		MaxImageBytes:     1 << 20,
	}
}

func newPublicationTest(repo *publicationRepoStub) *PublicationHandler {
	svc := service.NewPublicationService(repo, nil, nil, fileStoreStub{}, nil, nil, nil, testUploadsConfig())
	return NewPublicationHandler(svc, nil)
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin", Username: "admin", Role: models.RoleAdmin}
}

func memberClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Username: "member", Role: models.RoleMember}
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestPublicationHandlerModerate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &publicationRepoStub{items: map[string]*models.Publication{
		"pub-1": {ID: "pub-1", Title: "Paper", Uploader: "u1", Status: models.StatusPending},
	}}
	handler := newPublicationTest(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.ModerationRequest{Status: models.StatusApproved})
	req, _ := http.NewRequest(http.MethodPatch, "/publications/unpublished/pub-1/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "pub-1"}}
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.Moderate(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusApproved, repo.items["pub-1"].Status)
}

func TestPublicationHandlerModerateConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &publicationRepoStub{items: map[string]*models.Publication{
		"pub-1": {ID: "pub-1", Uploader: "u1", Status: models.StatusApproved},
	}}
	handler := newPublicationTest(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.ModerationRequest{Status: models.StatusRejected})
	req, _ := http.NewRequest(http.MethodPatch, "/publications/unpublished/pub-1/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "pub-1"}}
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.Moderate(c)
	require.Equal(t, http.StatusConflict, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrModerated.Code, env.Error.Code)
}

func TestPublicationHandlerCreateRequiresFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newPublicationTest(&publicationRepoStub{items: map[string]*models.Publication{}})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(map[string]string{"title": "Paper"})
	req, _ := http.NewRequest(http.MethodPost, "/publications/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, memberClaims("u1"))

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrFileRequired.Code, env.Error.Code)
}

func TestPublicationHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newPublicationTest(&publicationRepoStub{items: map[string]*models.Publication{}})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/publications/missing/", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublicationHandlerGetPendingHiddenFromAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &publicationRepoStub{items: map[string]*models.Publication{
		"pub-1": {ID: "pub-1", Uploader: "u1", Status: models.StatusPending},
	}}
	handler := newPublicationTest(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/publications/pub-1/", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "pub-1"}}

	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublicationHandlerGetPendingVisibleToOwner(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &publicationRepoStub{items: map[string]*models.Publication{
		"pub-1": {ID: "pub-1", Uploader: "u1", Status: models.StatusPending},
	}}
	handler := newPublicationTest(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/publications/pub-1/", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "pub-1"}}
	c.Set(middleware.ContextUserKey, memberClaims("u1"))

	handler.Get(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPublicationHandlerListMineRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newPublicationTest(&publicationRepoStub{items: map[string]*models.Publication{}})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/publications/me/", nil)
	c.Request = req

	handler.ListMine(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
