package models

// Scope is the caller's view of the data, resolved once per request from the
// user's profile. Superusers see every school; everyone else is pinned to the
// school on their profile.
type Scope struct {
	UserID      int64
	SchoolID    *int64
	IsLibrarian bool
	IsSuperuser bool
}

// SchoolFilter returns the school id every query must be restricted to, or nil
// when the caller may see all schools.
func (s Scope) SchoolFilter() *int64 {
	if s.IsSuperuser {
		return nil
	}
	if s.SchoolID == nil {
		// Callers without a school see nothing; -1 never matches a row.
		none := int64(-1)
		return &none
	}
	return s.SchoolID
}

// CanAccessSchool reports whether a record owned by schoolID is visible.
func (s Scope) CanAccessSchool(schoolID int64) bool {
	if s.IsSuperuser {
		return true
	}
	return s.SchoolID != nil && *s.SchoolID == schoolID
}

// HasSchool reports whether the caller is pinned to a school.
func (s Scope) HasSchool() bool {
	return s.SchoolID != nil
}

// CanManageLibrary reports librarian-level access.
func (s Scope) CanManageLibrary() bool {
	return s.IsSuperuser || s.IsLibrarian
}
