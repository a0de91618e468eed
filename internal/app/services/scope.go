package services

import (
	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/pkg/apperrors"
)

// owningSchool picks the school a new record belongs to. Superusers must name
// one; everyone else always writes into their own school.
func owningSchool(scope models.Scope, requested *int64) (int64, error) {
	if scope.IsSuperuser {
		if requested != nil {
			return *requested, nil
		}
		if scope.SchoolID != nil {
			return *scope.SchoolID, nil
		}
		return 0, apperrors.NewValidationError("school is required")
	}
	if scope.SchoolID == nil {
		return 0, apperrors.ErrNoSchoolAssigned
	}
	return *scope.SchoolID, nil
}

func requireLibrarian(scope models.Scope) error {
	if !scope.CanManageLibrary() {
		return apperrors.NewForbiddenError("librarian access required")
	}
	if !scope.IsSuperuser && !scope.HasSchool() {
		return apperrors.ErrNoSchoolAssigned
	}
	return nil
}

func requireSuperuser(scope models.Scope) error {
	if !scope.IsSuperuser {
		return apperrors.NewForbiddenError("superuser access required")
	}
	return nil
}
