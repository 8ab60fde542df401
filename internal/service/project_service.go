package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lakewatch/lakes-portal-api/internal/dto"
	"github.com/lakewatch/lakes-portal-api/internal/models"
	appErrors "github.com/lakewatch/lakes-portal-api/pkg/errors"
)

type projectRepository interface {
	Create(ctx context.Context, p *models.Project) error
	GetByID(ctx context.Context, id string) (*models.Project, error)
	List(ctx context.Context, filter models.RecordFilter) ([]models.Project, int, error)
	Update(ctx context.Context, p *models.Project) error
	UpdateStatus(ctx context.Context, id string, status models.RecordStatus, ts time.Time) error
	Delete(ctx context.Context, id string) error
}

type projectListPayload struct {
	Items      []models.Project  `json:"items"`
	Pagination models.Pagination `json:"pagination"`
}

// ProjectService covers research project submissions and their moderation.
// Projects carry no file attachment, only coordinates on a lake.
type ProjectService struct {
	repo      projectRepository
	audit     auditWriter
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProjectService constructs a ProjectService instance.
func NewProjectService(repo projectRepository, audit auditWriter, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ProjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ProjectService{repo: repo, audit: audit, cache: cache, validator: validate, logger: logger}
}

// ListApproved returns the public view of projects.
func (s *ProjectService) ListApproved(ctx context.Context, filter models.RecordFilter) ([]models.Project, *models.Pagination, error) {
	status := models.StatusApproved
	filter.Status = &status
	filter.Uploader = ""
	return s.list(ctx, filter)
}

// ListMine returns every project submitted by the given user.
func (s *ProjectService) ListMine(ctx context.Context, uploaderID string, filter models.RecordFilter) ([]models.Project, *models.Pagination, error) {
	filter.Uploader = uploaderID
	filter.Status = nil
	return s.list(ctx, filter)
}

// ListPending returns the moderation queue.
func (s *ProjectService) ListPending(ctx context.Context, filter models.RecordFilter) ([]models.Project, *models.Pagination, error) {
	status := models.StatusPending
	filter.Status = &status
	filter.Uploader = ""
	return s.list(ctx, filter)
}

func (s *ProjectService) list(ctx context.Context, filter models.RecordFilter) ([]models.Project, *models.Pagination, error) {
	key := ""
	if s.cache != nil {
		key = s.cache.ListKey("projects", filter)
		var cached projectListPayload
		if s.cache.GetList(ctx, key, &cached) {
			return cached.Items, &cached.Pagination, nil
		}
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list projects")
	}
	pagination := normalizePagination(filter, total)

	if s.cache != nil {
		s.cache.SetList(ctx, key, projectListPayload{Items: items, Pagination: *pagination})
	}
	return items, pagination, nil
}

// Get returns a single project. Unapproved projects are visible only to
// their uploader or an admin.
func (s *ProjectService) Get(ctx context.Context, callerID string, isAdmin bool, id string) (*models.Project, error) {
	p, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.StatusApproved && p.Uploader != callerID && !isAdmin {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
	}
	return p, nil
}

func (s *ProjectService) get(ctx context.Context, id string) (*models.Project, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	return p, nil
}

// Create inserts a pending project.
func (s *ProjectService) Create(ctx context.Context, uploaderID string, req dto.CreateProjectRequest) (*models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid project payload")
	}
	if req.Title == "" || req.Description == "" || req.Lake == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title, description and lake are required")
	}

	p := &models.Project{
		Title:       req.Title,
		Description: req.Description,
		Longitude:   req.Longitude,
		Latitude:    req.Latitude,
		Lake:        req.Lake,
		Uploader:    uploaderID,
		Status:      models.StatusPending,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create project")
	}

	s.invalidate(ctx)
	s.writeAudit(ctx, uploaderID, models.AuditActionRecordCreate, p.ID, nil, p)
	return p, nil
}

// Update edits an owned project while it is still pending.
func (s *ProjectService) Update(ctx context.Context, callerID string, isAdmin bool, id string, req dto.UpdateProjectRequest) (*models.Project, error) {
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
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Longitude != nil {
		p.Longitude = *req.Longitude
	}
	if req.Latitude != nil {
		p.Latitude = *req.Latitude
	}
	if req.Lake != nil {
		p.Lake = *req.Lake
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update project")
	}

	s.invalidate(ctx)
	s.writeAudit(ctx, callerID, models.AuditActionRecordUpdate, p.ID, &old, p)
	return p, nil
}

// Delete removes an owned pending project, or any project for admins.
func (s *ProjectService) Delete(ctx context.Context, callerID string, isAdmin bool, id string) error {
	p, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := canMutate(p.Uploader, p.Status, callerID, isAdmin); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete project")
	}

	s.invalidate(ctx)
	s.writeAudit(ctx, callerID, models.AuditActionRecordDelete, id, p, nil)
	return nil
}

// Moderate records an approve or reject decision on a pending project.
func (s *ProjectService) Moderate(ctx context.Context, adminID, id string, status models.RecordStatus) (*models.Project, error) {
	if !status.Final() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be approved or rejected")
	}

	p, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.StatusPending {
		return nil, appErrors.Clone(appErrors.ErrModerated, "project has already been moderated")
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, status, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrModerated, "project has already been moderated")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update project status")
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

func (s *ProjectService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateResource(ctx, "projects")
	}
}

func (s *ProjectService) writeAudit(ctx context.Context, userID, action, resourceID string, oldVal, newVal interface{}) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "projects",
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
		s.logger.Warn("failed to record project audit log", zap.Error(err))
	}
}
