package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"mime/multipart"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lakewatch/lakes-portal-api/internal/dto"
	"github.com/lakewatch/lakes-portal-api/internal/models"
	"github.com/lakewatch/lakes-portal-api/pkg/config"
	appErrors "github.com/lakewatch/lakes-portal-api/pkg/errors"
	"github.com/lakewatch/lakes-portal-api/pkg/storage"
)

type metadataRepository interface {
	Create(ctx context.Context, m *models.MetadataRecord) error
	GetByID(ctx context.Context, id string) (*models.MetadataRecord, error)
	List(ctx context.Context, filter models.RecordFilter) ([]models.MetadataRecord, int, error)
	Update(ctx context.Context, m *models.MetadataRecord) error
	UpdateStatus(ctx context.Context, id string, status models.RecordStatus, ts time.Time) error
	Delete(ctx context.Context, id string) error
}

type metadataListPayload struct {
	Items      []models.MetadataRecord `json:"items"`
	Pagination models.Pagination       `json:"pagination"`
}

// MetadataService covers dataset metadata submissions and their moderation.
type MetadataService struct {
	repo      metadataRepository
	audit     auditWriter
	cache     *CacheService
	store     fileStore
	signer    *storage.SignedURLSigner
	validator *validator.Validate
	logger    *zap.Logger
	uploads   config.UploadsConfig
}

// NewMetadataService constructs a MetadataService instance.
func NewMetadataService(repo metadataRepository, audit auditWriter, cache *CacheService, store fileStore, signer *storage.SignedURLSigner, validate *validator.Validate, logger *zap.Logger, uploads config.UploadsConfig) *MetadataService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &MetadataService{
		repo: repo, audit: audit, cache: cache, store: store, signer: signer,
		validator: validate, logger: logger, uploads: uploads,
	}
}

// ListApproved returns the public view of metadata records.
func (s *MetadataService) ListApproved(ctx context.Context, filter models.RecordFilter) ([]models.MetadataRecord, *models.Pagination, error) {
	status := models.StatusApproved
	filter.Status = &status
	filter.Uploader = ""
	return s.list(ctx, filter)
}

// ListMine returns every metadata record submitted by the given user.
func (s *MetadataService) ListMine(ctx context.Context, uploaderID string, filter models.RecordFilter) ([]models.MetadataRecord, *models.Pagination, error) {
	filter.Uploader = uploaderID
	filter.Status = nil
	return s.list(ctx, filter)
}

// ListPending returns the moderation queue.
func (s *MetadataService) ListPending(ctx context.Context, filter models.RecordFilter) ([]models.MetadataRecord, *models.Pagination, error) {
	status := models.StatusPending
	filter.Status = &status
	filter.Uploader = ""
	return s.list(ctx, filter)
}

func (s *MetadataService) list(ctx context.Context, filter models.RecordFilter) ([]models.MetadataRecord, *models.Pagination, error) {
	key := ""
	if s.cache != nil {
		key = s.cache.ListKey("metadata", filter)
		var cached metadataListPayload
		if s.cache.GetList(ctx, key, &cached) {
			return cached.Items, &cached.Pagination, nil
		}
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list metadata records")
	}
	pagination := normalizePagination(filter, total)

	if s.cache != nil {
		s.cache.SetList(ctx, key, metadataListPayload{Items: items, Pagination: *pagination})
	}
	return items, pagination, nil
}

// Get returns a single metadata record. Unapproved records are visible only
// to their uploader or an admin.
func (s *MetadataService) Get(ctx context.Context, callerID string, isAdmin bool, id string) (*models.MetadataRecord, error) {
	m, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != models.StatusApproved && m.Uploader != callerID && !isAdmin {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "metadata record not found")
	}
	return m, nil
}

func (s *MetadataService) get(ctx context.Context, id string) (*models.MetadataRecord, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "metadata record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load metadata record")
	}
	return m, nil
}

// Create stores the descriptor PDF and inserts a pending metadata record.
func (s *MetadataService) Create(ctx context.Context, uploaderID string, req dto.CreateMetadataRequest, file *multipart.FileHeader) (*models.MetadataRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid metadata payload")
	}
	if req.Title == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title is required")
	}
	if err := checkUpload(file, s.uploads.AllowedDocMIMEs, s.uploads.MaxDocumentBytes); err != nil {
		return nil, err
	}

	m := &models.MetadataRecord{
		Title:       req.Title,
		Email:       req.Email,
		Period:      req.Period,
		Description: req.Description,
		Lake:        req.Lake,
		Uploader:    uploaderID,
		Status:      models.StatusPending,
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create metadata record")
	}

	stored, err := storeUpload(s.store, "metadata", m.ID, file)
	if err != nil {
		if delErr := s.repo.Delete(ctx, m.ID); delErr != nil {
			s.logger.Warn("failed to roll back metadata record after upload failure", zap.Error(delErr))
		}
		return nil, err
	}
	m.FilePath = stored
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach uploaded file")
	}

	s.invalidate(ctx)
	s.writeAudit(ctx, uploaderID, models.AuditActionRecordCreate, m.ID, nil, m)
	return m, nil
}

// Update edits an owned metadata record while it is still pending.
func (s *MetadataService) Update(ctx context.Context, callerID string, isAdmin bool, id string, req dto.UpdateMetadataRequest, file *multipart.FileHeader) (*models.MetadataRecord, error) {
	m, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canMutate(m.Uploader, m.Status, callerID, isAdmin); err != nil {
		return nil, err
	}

	old := *m
	if req.Title != nil {
		m.Title = *req.Title
	}
	if req.Email != nil {
		m.Email = *req.Email
	}
	if req.Period != nil {
		m.Period = *req.Period
	}
	if req.Description != nil {
		m.Description = *req.Description
	}
	if req.Lake != nil {
		m.Lake = *req.Lake
	}

	if file != nil {
		if err := checkUpload(file, s.uploads.AllowedDocMIMEs, s.uploads.MaxDocumentBytes); err != nil {
			return nil, err
		}
		stored, err := storeUpload(s.store, "metadata", m.ID, file)
		if err != nil {
			return nil, err
		}
		if m.FilePath != "" && m.FilePath != stored {
			if err := s.store.Delete(m.FilePath); err != nil {
				s.logger.Warn("failed to remove replaced metadata file", zap.Error(err))
			}
		}
		m.FilePath = stored
	}

	if err := s.repo.Update(ctx, m); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update metadata record")
	}

	s.invalidate(ctx)
	s.writeAudit(ctx, callerID, models.AuditActionRecordUpdate, m.ID, &old, m)
	return m, nil
}

// Delete removes an owned pending metadata record, or any record for admins.
func (s *MetadataService) Delete(ctx context.Context, callerID string, isAdmin bool, id string) error {
	m, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := canMutate(m.Uploader, m.Status, callerID, isAdmin); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete metadata record")
	}
	if m.FilePath != "" {
		if err := s.store.Delete(m.FilePath); err != nil {
			s.logger.Warn("failed to remove metadata file", zap.Error(err))
		}
	}

	s.invalidate(ctx)
	s.writeAudit(ctx, callerID, models.AuditActionRecordDelete, id, m, nil)
	return nil
}

// Moderate records an approve or reject decision on a pending record.
func (s *MetadataService) Moderate(ctx context.Context, adminID, id string, status models.RecordStatus) (*models.MetadataRecord, error) {
	if !status.Final() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be approved or rejected")
	}

	m, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != models.StatusPending {
		return nil, appErrors.Clone(appErrors.ErrModerated, "metadata record has already been moderated")
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, status, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrModerated, "metadata record has already been moderated")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update metadata status")
	}

	old := *m
	m.Status = status
	m.UpdatedAt = now

	action := models.AuditActionRecordApprove
	if status == models.StatusRejected {
		action = models.AuditActionRecordReject
	}
	s.invalidate(ctx)
	s.writeAudit(ctx, adminID, action, id, &old, m)
	return m, nil
}

// DownloadURL returns a signed link for the stored descriptor PDF.
func (s *MetadataService) DownloadURL(ctx context.Context, callerID string, isAdmin bool, id string) (*dto.RecordDownloadResponse, error) {
	m, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != models.StatusApproved && m.Uploader != callerID && !isAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "metadata record is not published")
	}
	if m.FilePath == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "metadata record has no stored file")
	}

	token, expiresAt, err := s.signer.Generate(m.ID, m.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return &dto.RecordDownloadResponse{
		ID:          m.ID,
		DownloadURL: "/downloads/" + token,
		ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func (s *MetadataService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateResource(ctx, "metadata")
	}
}

func (s *MetadataService) writeAudit(ctx context.Context, userID, action, resourceID string, oldVal, newVal interface{}) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "metadata",
		ResourceID: &resourceID,
	}
	if oldVal != nil {
		if raw, err := json.Marshal(oldVal); err == nil {
			log.OldValues = raw
		}
	}
	if newVal != nil {
		if raw, err := json.Marshal(newVal); err == nil {
			log.NewValues = raw
		}
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record metadata audit log", zap.Error(err))
	}
}
