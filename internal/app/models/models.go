package models

import "strings"

// TransactionStatus is the lifecycle state of a borrow transaction
type TransactionStatus string

const (
	StatusIssued    TransactionStatus = "ISSUED"
	StatusOverdue   TransactionStatus = "OVERDUE"
	StatusReturned  TransactionStatus = "RETURNED"
	StatusLost      TransactionStatus = "LOST"
	StatusDamaged   TransactionStatus = "DAMAGED"
	StatusCancelled TransactionStatus = "CANCELLED"
)

// ActiveStatuses are the states in which a copy is still out with the borrower.
var ActiveStatuses = []TransactionStatus{StatusIssued, StatusOverdue}

// IsValid reports whether s is one of the known statuses
func (s TransactionStatus) IsValid() bool {
	switch s {
	case StatusIssued, StatusOverdue, StatusReturned, StatusLost, StatusDamaged, StatusCancelled:
		return true
	}
	return false
}

// IsActive reports ISSUED or OVERDUE.
func (s TransactionStatus) IsActive() bool {
	return s == StatusIssued || s == StatusOverdue
}

// IsTerminal reports whether no further transition is allowed.
func (s TransactionStatus) IsTerminal() bool {
	return s.IsValid() && !s.IsActive()
}

// Gender codes stored on students
type Gender string

const (
	GenderMale           Gender = "M"
	GenderFemale         Gender = "F"
	GenderOther          Gender = "O"
	GenderPreferNotToSay Gender = "P"
)

// ParseGender accepts the stored code or the display label, case-insensitively.
func ParseGender(s string) (Gender, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "male":
		return GenderMale, true
	case "f", "female":
		return GenderFemale, true
	case "o", "other":
		return GenderOther, true
	case "p", "prefer not to say":
		return GenderPreferNotToSay, true
	}
	return "", false
}
