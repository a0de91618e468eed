package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/pkg/apperrors"
	"github.com/schoollib/library/internal/pkg/auth"
)

// SchoolService manages schools and the accounts working in them
type SchoolService interface {
	CreateSchool(ctx context.Context, scope models.Scope, req *dto.SchoolRequest) (*models.School, error)
	GetSchool(ctx context.Context, scope models.Scope, id int64) (*models.School, error)
	ListSchools(ctx context.Context, scope models.Scope) ([]dto.SchoolSummary, error)
	UpdateSchool(ctx context.Context, scope models.Scope, id int64, req *dto.SchoolRequest) (*models.School, error)
	DeleteSchool(ctx context.Context, scope models.Scope, id int64) error

	CreateUser(ctx context.Context, scope models.Scope, req *dto.CreateUserRequest) (*models.User, error)
	ListUsers(ctx context.Context, scope models.Scope) ([]*models.User, error)
	UpdateProfile(ctx context.Context, scope models.Scope, userID int64, req *dto.UpdateProfileRequest) (*models.User, error)
	SetUserActive(ctx context.Context, scope models.Scope, userID int64, active bool) error
	ChangePassword(ctx context.Context, scope models.Scope, req *dto.ChangePasswordRequest) error
	GetSettings(ctx context.Context, scope models.Scope) (*models.User, error)
}

type schoolServiceImpl struct {
	schoolRepo SchoolStore
	userRepo   UserStore
	logger     zerolog.Logger
}

// NewSchoolService creates a new SchoolService
func NewSchoolService(schoolRepo SchoolStore, userRepo UserStore, logger zerolog.Logger) SchoolService {
	return &schoolServiceImpl{
		schoolRepo: schoolRepo,
		userRepo:   userRepo,
		logger:     logger,
	}
}

func applySchoolRequest(school *models.School, req *dto.SchoolRequest) {
	school.Name = strings.TrimSpace(req.Name)
	school.ShortName = strings.TrimSpace(req.ShortName)
	school.Address = req.Address
	school.Phone = req.Phone
	school.Email = req.Email
	if req.IsActive != nil {
		school.IsActive = *req.IsActive
	}
}

// CreateSchool adds a school; superusers only
func (s *schoolServiceImpl) CreateSchool(ctx context.Context, scope models.Scope, req *dto.SchoolRequest) (*models.School, error) {
	if err := requireSuperuser(scope); err != nil {
		return nil, err
	}
	school := &models.School{IsActive: true}
	applySchoolRequest(school, req)
	if err := s.schoolRepo.Create(ctx, school); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("schoolId", school.ID).Str("name", school.Name).Msg("School created")
	return school, nil
}

// GetSchool returns a school the caller may see
func (s *schoolServiceImpl) GetSchool(ctx context.Context, scope models.Scope, id int64) (*models.School, error) {
	if !scope.CanAccessSchool(id) {
		return nil, apperrors.ErrSchoolNotFound
	}
	return s.schoolRepo.GetByID(ctx, id)
}

// ListSchools lists every school for superusers and the caller's own school otherwise
func (s *schoolServiceImpl) ListSchools(ctx context.Context, scope models.Scope) ([]dto.SchoolSummary, error) {
	summaries, err := s.schoolRepo.ListSummaries(ctx)
	if err != nil {
		return nil, err
	}
	if scope.IsSuperuser {
		return summaries, nil
	}
	visible := make([]dto.SchoolSummary, 0, 1)
	for _, summary := range summaries {
		if scope.CanAccessSchool(summary.ID) {
			visible = append(visible, summary)
		}
	}
	return visible, nil
}

// UpdateSchool edits a school; superusers only
func (s *schoolServiceImpl) UpdateSchool(ctx context.Context, scope models.Scope, id int64, req *dto.SchoolRequest) (*models.School, error) {
	if err := requireSuperuser(scope); err != nil {
		return nil, err
	}
	school, err := s.schoolRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	applySchoolRequest(school, req)
	if err := s.schoolRepo.Update(ctx, school); err != nil {
		return nil, err
	}
	return school, nil
}

// DeleteSchool removes a school that owns nothing; superusers only
func (s *schoolServiceImpl) DeleteSchool(ctx context.Context, scope models.Scope, id int64) error {
	if err := requireSuperuser(scope); err != nil {
		return err
	}
	return s.schoolRepo.Delete(ctx, id)
}

// CreateUser creates an account with an optional school profile; superusers only
func (s *schoolServiceImpl) CreateUser(ctx context.Context, scope models.Scope, req *dto.CreateUserRequest) (*models.User, error) {
	if err := requireSuperuser(scope); err != nil {
		return nil, err
	}
	if req.SchoolID != nil {
		if _, err := s.schoolRepo.GetByID(ctx, *req.SchoolID); err != nil {
			return nil, err
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		Username:    strings.TrimSpace(req.Username),
		Email:       req.Email,
		Password:    hash,
		FullName:    req.FullName,
		IsSuperuser: req.IsSuperuser,
		IsActive:    true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	profile := &models.UserProfile{UserID: user.ID, SchoolID: req.SchoolID, IsLibrarian: req.IsLibrarian}
	if err := s.userRepo.UpsertProfile(ctx, profile); err != nil {
		return nil, err
	}
	user.Profile = profile

	s.logger.Info().Int64("userId", user.ID).Str("username", user.Username).Msg("User created")
	return user, nil
}

// ListUsers lists the accounts in the caller's scope
func (s *schoolServiceImpl) ListUsers(ctx context.Context, scope models.Scope) ([]*models.User, error) {
	if err := requireLibrarian(scope); err != nil {
		return nil, err
	}
	return s.userRepo.List(ctx, scope.SchoolFilter())
}

// UpdateProfile assigns a school and librarian flag; superusers only
func (s *schoolServiceImpl) UpdateProfile(ctx context.Context, scope models.Scope, userID int64, req *dto.UpdateProfileRequest) (*models.User, error) {
	if err := requireSuperuser(scope); err != nil {
		return nil, err
	}
	if req.SchoolID != nil {
		if _, err := s.schoolRepo.GetByID(ctx, *req.SchoolID); err != nil {
			return nil, err
		}
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	profile := &models.UserProfile{UserID: userID, SchoolID: req.SchoolID, IsLibrarian: req.IsLibrarian}
	if err := s.userRepo.UpsertProfile(ctx, profile); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, userID)
}

// SetUserActive enables or disables an account; superusers only
func (s *schoolServiceImpl) SetUserActive(ctx context.Context, scope models.Scope, userID int64, active bool) error {
	if err := requireSuperuser(scope); err != nil {
		return err
	}
	if userID == scope.UserID && !active {
		return apperrors.NewValidationError("you cannot disable your own account")
	}
	return s.userRepo.SetActive(ctx, userID, active)
}

// ChangePassword replaces the caller's password after checking the current one
func (s *schoolServiceImpl) ChangePassword(ctx context.Context, scope models.Scope, req *dto.ChangePasswordRequest) error {
	user, err := s.userRepo.GetByID(ctx, scope.UserID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.Password, req.CurrentPassword) {
		return apperrors.NewValidationError("current password is incorrect")
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}
	return s.userRepo.UpdatePassword(ctx, user.ID, hash)
}

// GetSettings returns the caller's account with its school profile
func (s *schoolServiceImpl) GetSettings(ctx context.Context, scope models.Scope) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, scope.UserID)
	if err != nil {
		return nil, err
	}
	if user.Profile == nil {
		return nil, apperrors.ErrProfileNotFound
	}
	if user.Profile.SchoolID != nil {
		school, err := s.schoolRepo.GetByID(ctx, *user.Profile.SchoolID)
		if err != nil && !errors.Is(err, apperrors.ErrSchoolNotFound) {
			return nil, err
		}
		user.Profile.School = school
	}
	return user, nil
}
