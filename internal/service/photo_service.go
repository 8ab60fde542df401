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

type photoRepository interface {
	Create(ctx context.Context, p *models.Photo) error
	GetByID(ctx context.Context, id string) (*models.Photo, error)
	List(ctx context.Context, filter models.RecordFilter) ([]models.Photo, int, error)
	Update(ctx context.Context, p *models.Photo) error
	UpdateStatus(ctx context.Context, id string, status models.RecordStatus, ts time.Time) error
	Delete(ctx context.Context, id string) error
}

type photoListPayload struct {
	Items      []models.Photo    `json:"items"`
	Pagination models.Pagination `json:"pagination"`
}

// captureDateLayout is the wire format for photo capture dates.
const captureDateLayout = "2006-01-02"

// PhotoService covers lake photo submissions and their moderation.
type PhotoService struct {
	repo      photoRepository
	audit     auditWriter
	cache     *CacheService
	store     fileStore
	signer    *storage.SignedURLSigner
	validator *validator.Validate
	logger    *zap.Logger
	uploads   config.UploadsConfig
}

// NewPhotoService constructs a PhotoService instance.
func NewPhotoService(repo photoRepository, audit auditWriter, cache *CacheService, store fileStore, signer *storage.SignedURLSigner, validate *validator.Validate, logger *zap.Logger, uploads config.UploadsConfig) *PhotoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PhotoService{
		repo: repo, audit: audit, cache: cache, store: store, signer: signer,
		validator: validate, logger: logger, uploads: uploads,
	}
}

// ListApproved returns the public gallery.
func (s *PhotoService) ListApproved(ctx context.Context, filter models.RecordFilter) ([]models.Photo, *models.Pagination, error) {
	status := models.StatusApproved
	filter.Status = &status
	filter.Uploader = ""
	return s.list(ctx, filter)
}

// ListMine returns every photo submitted by the given user.
func (s *PhotoService) ListMine(ctx context.Context, uploaderID string, filter models.RecordFilter) ([]models.Photo, *models.Pagination, error) {
	filter.Uploader = uploaderID
	filter.Status = nil
	return s.list(ctx, filter)
}

// ListPending returns the moderation queue.
func (s *PhotoService) ListPending(ctx context.Context, filter models.RecordFilter) ([]models.Photo, *models.Pagination, error) {
	status := models.StatusPending
	filter.Status = &status
	filter.Uploader = ""
	return s.list(ctx, filter)
}

func (s *PhotoService) list(ctx context.Context, filter models.RecordFilter) ([]models.Photo, *models.Pagination, error) {
	key := ""
	if s.cache != nil {
		key = s.cache.ListKey("photos", filter)
		var cached photoListPayload
		if s.cache.GetList(ctx, key, &cached) {
			return cached.Items, &cached.Pagination, nil
		}
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list photos")
	}
	pagination := normalizePagination(filter, total)

	if s.cache != nil {
		s.cache.SetList(ctx, key, photoListPayload{Items: items, Pagination: *pagination})
	}
	return items, pagination, nil
}

// Get returns a single photo. Unapproved photos are visible only to their
// uploader or an admin.
func (s *PhotoService) Get(ctx context.Context, callerID string, isAdmin bool, id string) (*models.Photo, error) {
	p, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.StatusApproved && p.Uploader != callerID && !isAdmin {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "photo not found")
	}
	return p, nil
}

func (s *PhotoService) get(ctx context.Context, id string) (*models.Photo, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "photo not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load photo")
	}
	return p, nil
}

// Create stores the uploaded image and inserts a pending photo.
func (s *PhotoService) Create(ctx context.Context, uploaderID string, req dto.CreatePhotoRequest, image *multipart.FileHeader) (*models.Photo, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid photo payload")
	}
	if err := checkUpload(image, s.uploads.AllowedImageMIMEs, s.uploads.MaxImageBytes); err != nil {
		return nil, err
	}

	p := &models.Photo{
		Description: req.Description,
		Lake:        req.Lake,
		Uploader:    uploaderID,
		Status:      models.StatusPending,
	}
	if req.CaptureDate != "" {
		captured, err := time.Parse(captureDateLayout, req.CaptureDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "capture_date must be formatted YYYY-MM-DD")
		}
		p.CaptureDate = &captured
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create photo")
	}

	stored, err := storeUpload(s.store, "photos", p.ID, image)
	if err != nil {
		if delErr := s.repo.Delete(ctx, p.ID); delErr != nil {
			s.logger.Warn("failed to roll back photo after upload failure", zap.Error(delErr))
		}
		return nil, err
	}
	p.ImagePath = stored
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach uploaded image")
	}

	s.invalidate(ctx)
	s.writeAudit(ctx, uploaderID, models.AuditActionRecordCreate, p.ID, nil, p)
	return p, nil
}

// Update edits an owned photo while it is still pending.
func (s *PhotoService) Update(ctx context.Context, callerID string, isAdmin bool, id string, req dto.UpdatePhotoRequest, image *multipart.FileHeader) (*models.Photo, error) {
	p, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canMutate(p.Uploader, p.Status, callerID, isAdmin); err != nil {
		return nil, err
	}

	old := *p
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Lake != nil {
		p.Lake = *req.Lake
	}
	if req.CaptureDate != nil {
		if *req.CaptureDate == "" {
			p.CaptureDate = nil
		} else {
			captured, err := time.Parse(captureDateLayout, *req.CaptureDate)
			if err != nil {
				return nil, appErrors.Clone(appErrors.ErrValidation, "capture_date must be formatted YYYY-MM-DD")
			}
			p.CaptureDate = &captured
		}
	}

	if image != nil {
		if err := checkUpload(image, s.uploads.AllowedImageMIMEs, s.uploads.MaxImageBytes); err != nil {
			return nil, err
		}
		stored, err := storeUpload(s.store, "photos", p.ID, image)
		if err != nil {
			return nil, err
		}
		if p.ImagePath != "" && p.ImagePath != stored {
			if err := s.store.Delete(p.ImagePath); err != nil {
				s.logger.Warn("failed to remove replaced photo image", zap.Error(err))
			}
		}
		p.ImagePath = stored
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update photo")
	}

	s.invalidate(ctx)
	s.writeAudit(ctx, callerID, models.AuditActionRecordUpdate, p.ID, &old, p)
	return p, nil
}

// Delete removes an owned pending photo, or any photo for admins.
func (s *PhotoService) Delete(ctx context.Context, callerID string, isAdmin bool, id string) error {
	p, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := canMutate(p.Uploader, p.Status, callerID, isAdmin); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete photo")
	}
	if p.ImagePath != "" {
		if err := s.store.Delete(p.ImagePath); err != nil {
			s.logger.Warn("failed to remove photo image", zap.Error(err))
		}
	}

	s.invalidate(ctx)
	s.writeAudit(ctx, callerID, models.AuditActionRecordDelete, id, p, nil)
	return nil
}

// Moderate records an approve or reject decision on a pending photo.
func (s *PhotoService) Moderate(ctx context.Context, adminID, id string, status models.RecordStatus) (*models.Photo, error) {
	if !status.Final() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be approved or rejected")
	}

	p, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.StatusPending {
		return nil, appErrors.Clone(appErrors.ErrModerated, "photo has already been moderated")
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, status, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrModerated, "photo has already been moderated")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update photo status")
	}

	old := *p
	p.Status = status
	p.UpdatedAt = now

	action := models.AuditActionRecordApprove
	if status == models.StatusRejected {
		action = models.AuditActionRecordReject
	}
	s.invalidate(ctx)
	s.writeAudit(ctx, adminID, action, id, &old, p)
	return p, nil
}

// DownloadURL returns a signed link for the stored image.
func (s *PhotoService) DownloadURL(ctx context.Context, callerID string, isAdmin bool, id string) (*dto.RecordDownloadResponse, error) {
	p, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.StatusApproved && p.Uploader != callerID && !isAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "photo is not published")
	}
	if p.ImagePath == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "photo has no stored image")
	}

	token, expiresAt, err := s.signer.Generate(p.ID, p.ImagePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return &dto.RecordDownloadResponse{
		ID:          p.ID,
		DownloadURL: "/downloads/" + token,
		ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func (s *PhotoService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateResource(ctx, "photos")
	}
}

func (s *PhotoService) writeAudit(ctx context.Context, userID, action, resourceID string, oldVal, newVal interface{}) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "photos",
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
		s.logger.Warn("failed to record photo audit log", zap.Error(err))
	}
}
