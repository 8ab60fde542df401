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

type publicationRepository interface {
	Create(ctx context.Context, p *models.Publication) error
	GetByID(ctx context.Context, id string) (*models.Publication, error)
	List(ctx context.Context, filter models.RecordFilter) ([]models.Publication, int, error)
	Update(ctx context.Context, p *models.Publication) error
	UpdateStatus(ctx context.Context, id string, status models.RecordStatus, ts time.Time) error
	Delete(ctx context.Context, id string) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type publicationListPayload struct {
	Items      []models.Publication `json:"items"`
	Pagination models.Pagination    `json:"pagination"`
}

// PublicationService covers submission, listing, editing and moderation of
// research publications.
type PublicationService struct {
	repo      publicationRepository
	audit     auditWriter
	cache     *CacheService
	store     fileStore
	signer    *storage.SignedURLSigner
	validator *validator.Validate
	logger    *zap.Logger
	uploads   config.UploadsConfig
}

// NewPublicationService constructs a PublicationService instance.
func NewPublicationService(repo publicationRepository, audit auditWriter, cache *CacheService, store fileStore, signer *storage.SignedURLSigner, validate *validator.Validate, logger *zap.Logger, uploads config.UploadsConfig) *PublicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PublicationService{
		repo: repo, audit: audit, cache: cache, store: store, signer: signer,
		validator: validate, logger: logger, uploads: uploads,
	}
}

// ListApproved returns the public view of publications.
func (s *PublicationService) ListApproved(ctx context.Context, filter models.RecordFilter) ([]models.Publication, *models.Pagination, error) {
	status := models.StatusApproved
	filter.Status = &status
	filter.Uploader = ""
	return s.list(ctx, filter)
}

// ListMine returns every publication submitted by the given user.
func (s *PublicationService) ListMine(ctx context.Context, uploaderID string, filter models.RecordFilter) ([]models.Publication, *models.Pagination, error) {
	filter.Uploader = uploaderID
	filter.Status = nil
	return s.list(ctx, filter)
}

// ListPending returns the moderation queue.
func (s *PublicationService) ListPending(ctx context.Context, filter models.RecordFilter) ([]models.Publication, *models.Pagination, error) {
	status := models.StatusPending
	filter.Status = &status
	filter.Uploader = ""
	return s.list(ctx, filter)
}

func (s *PublicationService) list(ctx context.Context, filter models.RecordFilter) ([]models.Publication, *models.Pagination, error) {
	key := ""
	if s.cache != nil {
		key = s.cache.ListKey("publications", filter)
		var cached publicationListPayload
		if s.cache.GetList(ctx, key, &cached) {
			return cached.Items, &cached.Pagination, nil
		}
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list publications")
	}
	pagination := normalizePagination(filter, total)

	if s.cache != nil {
		s.cache.SetList(ctx, key, publicationListPayload{Items: items, Pagination: *pagination})
	}
	return items, pagination, nil
}

// Get returns a single publication. Records that are still pending or were
// rejected are visible only to their uploader or an admin; everyone else sees
// a not-found so unmoderated submissions stay hidden.
func (s *PublicationService) Get(ctx context.Context, callerID string, isAdmin bool, id string) (*models.Publication, error) {
	p, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.StatusApproved && p.Uploader != callerID && !isAdmin {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "publication not found")
	}
	return p, nil
}

func (s *PublicationService) get(ctx context.Context, id string) (*models.Publication, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "publication not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load publication")
	}
	return p, nil
}

// Create stores the uploaded PDF and inserts a pending publication.
func (s *PublicationService) Create(ctx context.Context, uploaderID string, req dto.CreatePublicationRequest, file *multipart.FileHeader) (*models.Publication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid publication payload")
	}
	if req.Title == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title is required")
	}
	if err := checkUpload(file, s.uploads.AllowedDocMIMEs, s.uploads.MaxDocumentBytes); err != nil {
		return nil, err
	}

	p := &models.Publication{
		Title:           req.Title,
		Abstract:        req.Abstract,
		Authors:         req.Authors,
		PublicationYear: req.PublicationYear,
		Keywords:        req.Keywords,
		Lakes:           req.Lakes,
		Uploader:        uploaderID,
		Status:          models.StatusPending,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create publication")
	}

	stored, err := storeUpload(s.store, "publications", p.ID, file)
	if err != nil {
		if delErr := s.repo.Delete(ctx, p.ID); delErr != nil {
			s.logger.Warn("failed to roll back publication after upload failure", zap.Error(delErr))
		}
		return nil, err
	}
	p.FilePath = stored
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach uploaded file")
	}

	s.invalidate(ctx)
	s.writeAudit(ctx, uploaderID, models.AuditActionRecordCreate, p.ID, nil, p)
	return p, nil
}

// Update edits an owned publication while it is still pending.
func (s *PublicationService) Update(ctx context.Context, callerID string, isAdmin bool, id string, req dto.UpdatePublicationRequest, file *multipart.FileHeader) (*models.Publication, error) {
	p, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canMutate(p.Uploader, p.Status, callerID, isAdmin); err != nil {
		return nil, err
	}

	old := *p
	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.Abstract != nil {
		p.Abstract = *req.Abstract
	}
	if req.Authors != nil {
		p.Authors = req.Authors
	}
	if req.PublicationYear != nil {
		p.PublicationYear = *req.PublicationYear
	}
	if req.Keywords != nil {
		p.Keywords = *req.Keywords
	}
	if req.Lakes != nil {
		p.Lakes = req.Lakes
	}

	if file != nil {
		if err := checkUpload(file, s.uploads.AllowedDocMIMEs, s.uploads.MaxDocumentBytes); err != nil {
			return nil, err
		}
		stored, err := storeUpload(s.store, "publications", p.ID, file)
		if err != nil {
			return nil, err
		}
		if p.FilePath != "" && p.FilePath != stored {
			if err := s.store.Delete(p.FilePath); err != nil {
				s.logger.Warn("failed to remove replaced publication file", zap.Error(err))
			}
		}
		p.FilePath = stored
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update publication")
	}

	s.invalidate(ctx)
	s.writeAudit(ctx, callerID, models.AuditActionRecordUpdate, p.ID, &old, p)
	return p, nil
}

// Delete removes an owned pending publication, or any publication for admins.
func (s *PublicationService) Delete(ctx context.Context, callerID string, isAdmin bool, id string) error {
	p, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := canMutate(p.Uploader, p.Status, callerID, isAdmin); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete publication")
	}
	if p.FilePath != "" {
		if err := s.store.Delete(p.FilePath); err != nil {
			s.logger.Warn("failed to remove publication file", zap.Error(err))
		}
	}

	s.invalidate(ctx)
	s.writeAudit(ctx, callerID, models.AuditActionRecordDelete, id, p, nil)
	return nil
}

// Moderate records an approve or reject decision on a pending publication.
func (s *PublicationService) Moderate(ctx context.Context, adminID, id string, status models.RecordStatus) (*models.Publication, error) {
	if !status.Final() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be approved or rejected")
	}

	p, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.StatusPending {
		return nil, appErrors.Clone(appErrors.ErrModerated, "publication has already been moderated")
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, status, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrModerated, "publication has already been moderated")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update publication status")
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

// DownloadURL returns a signed link for the stored PDF. Unapproved files are
// only reachable by their owner or an admin.
func (s *PublicationService) DownloadURL(ctx context.Context, callerID string, isAdmin bool, id string) (*dto.RecordDownloadResponse, error) {
	p, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.StatusApproved && p.Uploader != callerID && !isAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "publication is not published")
	}
	if p.FilePath == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "publication has no stored file")
	}

	token, expiresAt, err := s.signer.Generate(p.ID, p.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return &dto.RecordDownloadResponse{
		ID:          p.ID,
		DownloadURL: "/downloads/" + token,
		ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func (s *PublicationService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateResource(ctx, "publications")
	}
}

func (s *PublicationService) writeAudit(ctx context.Context, userID, action, resourceID string, oldVal, newVal interface{}) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "publications",
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
		s.logger.Warn("failed to record publication audit log", zap.Error(err))
	}
}

// canMutate enforces the ownership and lifecycle rules shared by every
// moderated resource: owners may edit or delete only while pending, admins
// may always act.
func canMutate(uploader string, status models.RecordStatus, callerID string, isAdmin bool) error {
	if isAdmin {
		return nil
	}
	if uploader != callerID {
		return appErrors.Clone(appErrors.ErrForbidden, "record belongs to another user")
	}
	if status != models.StatusPending {
		return appErrors.Clone(appErrors.ErrModerated, "record can no longer be modified after moderation")
	}
	return nil
}

// normalizePagination mirrors the page clamping applied by the repositories.
func normalizePagination(filter models.RecordFilter, total int) *models.Pagination {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}
