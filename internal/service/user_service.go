package service

import (
	"context"
	"database/sql"
	"errors"
	"mime/multipart"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lakewatch/lakes-portal-api/internal/dto"
	"github.com/lakewatch/lakes-portal-api/internal/models"
	"github.com/lakewatch/lakes-portal-api/pkg/config"
	appErrors "github.com/lakewatch/lakes-portal-api/pkg/errors"
)

type profileRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

// UserService serves profile reads and updates.
type UserService struct {
	repo      profileRepository
	store     fileStore
	validator *validator.Validate
	logger    *zap.Logger
	uploads   config.UploadsConfig
}

// NewUserService constructs a UserService instance.
func NewUserService(repo profileRepository, store fileStore, validate *validator.Validate, logger *zap.Logger, uploads config.UploadsConfig) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, store: store, validator: validate, logger: logger, uploads: uploads}
}

// Me returns the profile of the given user ID.
func (s *UserService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return user, nil
}

// UpdateProfile applies partial profile changes for the given username. Only
// the account owner may update it.
func (s *UserService) UpdateProfile(ctx context.Context, callerID, username string, req dto.UpdateProfileRequest, photo *multipart.FileHeader) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}

	if user.ID != callerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot update another user's profile")
	}

	if req.Email != nil && *req.Email != user.Email {
		if existing, err := s.repo.FindByEmail(ctx, *req.Email); err == nil && existing.ID != user.ID {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email is already registered")
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
		}
		user.Email = *req.Email
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Gender != nil {
		user.Gender = *req.Gender
	}
	if req.Organization != nil {
		user.Organization = *req.Organization
	}
	if req.Designation != nil {
		user.Designation = *req.Designation
	}

	if photo != nil {
		if err := checkUpload(photo, s.uploads.AllowedImageMIMEs, s.uploads.MaxImageBytes); err != nil {
			return nil, err
		}
		stored, err := storeUpload(s.store, "profiles", user.ID, photo)
		if err != nil {
			return nil, err
		}
		if user.PhotoPath != "" && user.PhotoPath != stored {
			if err := s.store.Delete(user.PhotoPath); err != nil {
				s.logger.Warn("failed to remove previous profile photo", zap.Error(err))
			}
		}
		user.PhotoPath = stored
	}

	user.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}

	return user, nil
}
