package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-portal/internal/model"
	apperrors "github.com/jwalitptl/clinic-portal/pkg/errors"
)

// CanSeePatient reports whether the session may read or change records owned
// by patientID. Doctors see every patient; patients only themselves.
func CanSeePatient(s *model.Session, patientID int64) bool {
	if s == nil || s.Guest {
		return false
	}
	return s.Role == model.RoleDoctor || s.UserID == patientID
}

// RequirePatientAccess writes a 403 and returns false when the session
// may not touch patientID's records.
func RequirePatientAccess(c *gin.Context, s *model.Session, patientID int64) bool {
	if CanSeePatient(s, patientID) {
		return true
	}
	RespondError(c, apperrors.Forbidden("Permission denied"))
	return false
}
