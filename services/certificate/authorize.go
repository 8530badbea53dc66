package certificate

import (
	"certportal/apperror"
	"certportal/models"
)

type capability int

const (
	// capRequester is any authenticated account.
	capRequester capability = iota
	// capReviewer is admin only.
	capReviewer
	// capStudent is a user account; reviewers do not file requests.
	capStudent
)

// authorize is the single role gate in front of every engine operation.
// Ownership is checked separately against the loaded record.
func authorize(actor models.Actor, need capability) error {
	if actor.IsZero() {
		return apperror.Unauthorized("Authorization token required")
	}
	switch need {
	case capRequester:
		if actor.Role != models.RoleUser && actor.Role != models.RoleAdmin {
			return apperror.Forbidden("Unknown role!")
		}
	case capReviewer:
		if !actor.IsAdmin() {
			return apperror.Forbidden("Access denied! Admin only.")
		}
	case capStudent:
		if actor.Role != models.RoleUser {
			return apperror.Forbidden("Only students can request certificates!")
		}
	}
	return nil
}
