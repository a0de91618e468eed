package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/pkg/apperrors"
	"github.com/schoollib/library/internal/pkg/dates"
	"github.com/schoollib/library/internal/pkg/helpers"
)

// StudentService manages class groups and students
type StudentService interface {
	CreateClassGroup(ctx context.Context, scope models.Scope, req *dto.ClassGroupRequest) (*models.ClassGroup, error)
	GetClassGroup(ctx context.Context, scope models.Scope, id int64) (*models.ClassGroup, error)
	ListClassGroups(ctx context.Context, scope models.Scope) ([]*models.ClassGroup, error)
	UpdateClassGroup(ctx context.Context, scope models.Scope, id int64, req *dto.ClassGroupRequest) (*models.ClassGroup, error)
	DeleteClassGroup(ctx context.Context, scope models.Scope, id int64) error

	CreateStudent(ctx context.Context, scope models.Scope, req *dto.StudentRequest) (*models.Student, error)
	GetStudent(ctx context.Context, scope models.Scope, id int64) (*models.Student, error)
	ListStudents(ctx context.Context, scope models.Scope, filter dto.StudentFilter) (*dto.StudentListResponse, error)
	UpdateStudent(ctx context.Context, scope models.Scope, id int64, req *dto.StudentRequest) (*models.Student, error)
	DeleteStudent(ctx context.Context, scope models.Scope, id int64) error
}

type studentServiceImpl struct {
	classGroupRepo ClassGroupStore
	studentRepo    StudentStore
	logger         zerolog.Logger
}

// NewStudentService creates a new StudentService
func NewStudentService(classGroupRepo ClassGroupStore, studentRepo StudentStore, logger zerolog.Logger) StudentService {
	return &studentServiceImpl{
		classGroupRepo: classGroupRepo,
		studentRepo:    studentRepo,
		logger:         logger,
	}
}

func applyClassGroupRequest(cg *models.ClassGroup, req *dto.ClassGroupRequest) {
	cg.Name = strings.TrimSpace(req.Name)
	cg.ShortCode = strings.TrimSpace(req.ShortCode)
	cg.TeacherName = strings.TrimSpace(req.TeacherName)
	cg.AcademicYear = strings.TrimSpace(req.AcademicYear)
	if cg.AcademicYear == "" {
		cg.AcademicYear = models.DefaultAcademicYear
	}
}

// CreateClassGroup adds a class to the caller's school
func (s *studentServiceImpl) CreateClassGroup(ctx context.Context, scope models.Scope, req *dto.ClassGroupRequest) (*models.ClassGroup, error) {
	if err := requireLibrarian(scope); err != nil {
		return nil, err
	}
	schoolID, err := owningSchool(scope, req.SchoolID)
	if err != nil {
		return nil, err
	}
	cg := &models.ClassGroup{SchoolID: schoolID}
	applyClassGroupRequest(cg, req)
	if err := s.classGroupRepo.Create(ctx, cg); err != nil {
		return nil, err
	}
	return cg, nil
}

// GetClassGroup returns a class in the caller's school
func (s *studentServiceImpl) GetClassGroup(ctx context.Context, scope models.Scope, id int64) (*models.ClassGroup, error) {
	return s.classGroupRepo.GetByID(ctx, id, scope.SchoolFilter())
}

// ListClassGroups lists the classes in scope
func (s *studentServiceImpl) ListClassGroups(ctx context.Context, scope models.Scope) ([]*models.ClassGroup, error) {
	return s.classGroupRepo.List(ctx, scope.SchoolFilter())
}

// UpdateClassGroup edits a class; it never moves between schools
func (s *studentServiceImpl) UpdateClassGroup(ctx context.Context, scope models.Scope, id int64, req *dto.ClassGroupRequest) (*models.ClassGroup, error) {
	if err := requireLibrarian(scope); err != nil {
		return nil, err
	}
	cg, err := s.classGroupRepo.GetByID(ctx, id, scope.SchoolFilter())
	if err != nil {
		return nil, err
	}
	applyClassGroupRequest(cg, req)
	if err := s.classGroupRepo.Update(ctx, cg); err != nil {
		return nil, err
	}
	return cg, nil
}

// DeleteClassGroup removes a class
func (s *studentServiceImpl) DeleteClassGroup(ctx context.Context, scope models.Scope, id int64) error {
	if err := requireLibrarian(scope); err != nil {
		return err
	}
	if _, err := s.classGroupRepo.GetByID(ctx, id, scope.SchoolFilter()); err != nil {
		return err
	}
	return s.classGroupRepo.Delete(ctx, id)
}

// buildStudent validates req and copies it onto st. The class group, when
// given, must belong to the student's school.
func (s *studentServiceImpl) buildStudent(ctx context.Context, st *models.Student, req *dto.StudentRequest) error {
	st.StudentID = strings.TrimSpace(req.StudentID)
	st.Name = strings.TrimSpace(req.Name)
	st.RollNumber = helpers.NullIfBlank(req.RollNumber)
	st.Email = helpers.NullIfBlank(req.Email)
	st.Phone = helpers.NullIfBlank(req.Phone)
	st.UserID = req.UserID
	if req.IsActive != nil {
		st.IsActive = *req.IsActive
	}

	st.Gender = nil
	if req.Gender != "" {
		g, ok := models.ParseGender(req.Gender)
		if !ok {
			return apperrors.NewValidationError("invalid gender: " + req.Gender)
		}
		st.Gender = &g
	}

	st.AdmissionDate = nil
	if req.AdmissionDate != nil && strings.TrimSpace(*req.AdmissionDate) != "" {
		d, err := dates.Parse(*req.AdmissionDate)
		if err != nil {
			return apperrors.NewValidationError("invalid admission date: " + *req.AdmissionDate)
		}
		st.AdmissionDate = &d
	}

	st.ClassGroupID = req.ClassGroupID
	if req.ClassGroupID != nil {
		if _, err := s.classGroupRepo.GetByID(ctx, *req.ClassGroupID, &st.SchoolID); err != nil {
			if errors.Is(err, apperrors.ErrClassGroupNotFound) {
				return apperrors.NewValidationError("class group does not belong to the student's school")
			}
			return err
		}
	}
	return nil
}

// CreateStudent enrols a student in the caller's school
func (s *studentServiceImpl) CreateStudent(ctx context.Context, scope models.Scope, req *dto.StudentRequest) (*models.Student, error) {
	if err := requireLibrarian(scope); err != nil {
		return nil, err
	}
	schoolID, err := owningSchool(scope, req.SchoolID)
	if err != nil {
		return nil, err
	}
	st := &models.Student{SchoolID: schoolID, IsActive: true}
	if err := s.buildStudent(ctx, st, req); err != nil {
		return nil, err
	}
	if err := s.studentRepo.Create(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// GetStudent returns a student in the caller's school
func (s *studentServiceImpl) GetStudent(ctx context.Context, scope models.Scope, id int64) (*models.Student, error) {
	return s.studentRepo.GetByID(ctx, id, scope.SchoolFilter())
}

// ListStudents searches students in scope
func (s *studentServiceImpl) ListStudents(ctx context.Context, scope models.Scope, filter dto.StudentFilter) (*dto.StudentListResponse, error) {
	filter.SchoolID = scope.SchoolFilter()
	students, total, err := s.studentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &dto.StudentListResponse{
		Students:       students,
		Query:          filter.Query,
		PaginationInfo: helpers.NewPaginationInfo(total, filter.Page, filter.Size),
	}, nil
}

// UpdateStudent edits a student; the school never changes
func (s *studentServiceImpl) UpdateStudent(ctx context.Context, scope models.Scope, id int64, req *dto.StudentRequest) (*models.Student, error) {
	if err := requireLibrarian(scope); err != nil {
		return nil, err
	}
	st, err := s.studentRepo.GetByID(ctx, id, scope.SchoolFilter())
	if err != nil {
		return nil, err
	}
	if err := s.buildStudent(ctx, st, req); err != nil {
		return nil, err
	}
	if err := s.studentRepo.Update(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// DeleteStudent removes a student with no borrow history
func (s *studentServiceImpl) DeleteStudent(ctx context.Context, scope models.Scope, id int64) error {
	if err := requireLibrarian(scope); err != nil {
		return err
	}
	if _, err := s.studentRepo.GetByID(ctx, id, scope.SchoolFilter()); err != nil {
		return err
	}
	return s.studentRepo.Delete(ctx, id)
}
