package pedigree

import (
	"errors"
	"fmt"
)

// Reason classifies a rejected parent assignment.
type Reason string

const (
	ReasonSelfParent    Reason = "self_parent"
	ReasonUnknownParent Reason = "unknown_parent"
	ReasonWrongSex      Reason = "wrong_sex"
	ReasonAncestryCycle Reason = "ancestry_cycle"
)

// Role is the parent slot an edge fills.
type Role string

const (
	RoleSire Role = "sire"
	RoleDam  Role = "dam"
)

var (
	ErrSelfParent    = errors.New("an animal cannot be its own parent")
	ErrUnknownParent = errors.New("parent does not exist")
	ErrWrongSex      = errors.New("parent sex does not match its role")
	ErrAncestryCycle = errors.New("parent link would create an ancestry cycle")
)

// Rejection is returned by Guard.Validate when a proposed edge is not allowed.
// It unwraps to the sentinel for its Reason.
type Rejection struct {
	Reason   Reason
	Role     Role
	ParentID int64
}

func (r *Rejection) Error() string {
	switch r.Reason {
	case ReasonWrongSex:
		if r.Role == RoleSire {
			return "sire must be male"
		}
		return "dam must be female"
	case ReasonUnknownParent:
		return fmt.Sprintf("%s %d does not exist", r.Role, r.ParentID)
	default:
		return r.Unwrap().Error()
	}
}

func (r *Rejection) Unwrap() error {
	switch r.Reason {
	case ReasonSelfParent:
		return ErrSelfParent
	case ReasonUnknownParent:
		return ErrUnknownParent
	case ReasonWrongSex:
		return ErrWrongSex
	default:
		return ErrAncestryCycle
	}
}

// AsRejection extracts a *Rejection from err.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
