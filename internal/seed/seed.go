package seed

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	appModels "github.com/schoollib/library/internal/app/models"
	appRepos "github.com/schoollib/library/internal/app/repositories"
	"github.com/schoollib/library/internal/pkg/apperrors"
	"github.com/schoollib/library/internal/pkg/auth"
)

// DefaultCategories are created on first start so the catalog is usable immediately.
var DefaultCategories = []string{"Fiction", "Science", "Mathematics", "History", "Languages", "Reference"}

// AdminAccount is the superuser created when no account with its username exists.
type AdminAccount struct {
	Username string
	Password string
}

// CreateDefaultData creates the default school, categories and superuser if they
// don't exist. Each step is attempted even when an earlier one fails.
func CreateDefaultData(ctx context.Context, repos *appRepos.Repositories, admin AdminAccount, lgr zerolog.Logger) error {
	lgr.Info().Msg("Checking/Creating default data (school, categories, superuser)...")
	var finalErr error

	// --- Default school --- //
	school := &appModels.School{Name: "Main School", ShortName: "MAIN", IsActive: true}
	err := repos.SchoolRepository.Create(ctx, school)
	if err != nil && !errors.Is(err, apperrors.ErrSchoolAlreadyExists) {
		lgr.Error().Err(err).Msg("Error creating default school")
		finalErr = errors.Join(finalErr, err)
	}

	// --- Categories --- //
	for _, name := range DefaultCategories {
		if _, err := repos.CategoryRepository.GetOrCreate(ctx, name); err != nil {
			lgr.Error().Err(err).Str("category", name).Msg("Error creating default category")
			finalErr = errors.Join(finalErr, err)
		}
	}

	// --- Superuser --- //
	if admin.Username == "" || admin.Password == "" {
		lgr.Warn().Msg("Seed admin credentials not configured, skipping superuser creation")
		return finalErr
	}

	_, err = repos.UserRepository.GetByUsername(ctx, admin.Username)
	switch {
	case err == nil:
		lgr.Debug().Str("username", admin.Username).Msg("Superuser already exists")
	case errors.Is(err, apperrors.ErrUserNotFound):
		hash, hashErr := auth.HashPassword(admin.Password)
		if hashErr != nil {
			lgr.Error().Err(hashErr).Msg("Error hashing admin password")
			return errors.Join(finalErr, hashErr)
		}
		user := &appModels.User{
			Username:    admin.Username,
			Password:    hash,
			FullName:    "Administrator",
			IsSuperuser: true,
			IsActive:    true,
		}
		if err := repos.UserRepository.Create(ctx, user); err != nil {
			lgr.Error().Err(err).Msg("Error creating superuser")
			finalErr = errors.Join(finalErr, err)
		} else {
			lgr.Info().Str("username", admin.Username).Msg("Default superuser created")
		}
	default:
		lgr.Error().Err(err).Msg("Error checking if superuser exists")
		finalErr = errors.Join(finalErr, err)
	}

	return finalErr
}
