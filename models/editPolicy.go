package models

import (
	"time"

	"github.com/mmdatafocus/printworks_backend/config"
	"github.com/mmdatafocus/printworks_backend/utils"
)

const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

// CanEdit is the edit-window policy. Admins and managers may always edit;
// employees only their own records, and only while the record is younger
// than the configured window. Unknown roles may not edit.
func CanEdit(role string, recordAge time.Duration, isOwner bool) bool {
	return canEditWithin(role, recordAge, isOwner, config.EmployeeEditWindow())
}

func canEditWithin(role string, recordAge time.Duration, isOwner bool, window time.Duration) bool {
	switch role {
	case RoleAdmin, RoleManager:
		return true
	case RoleEmployee:
		return isOwner && recordAge >= 0 && recordAge < window
	default:
		return false
	}
}

type ownedRecord interface {
	GetCreatedBy() int
	GetCreatedAt() time.Time
}

func ensureCanEdit(actor utils.Actor, record ownedRecord) error {
	age := config.Now().Sub(record.GetCreatedAt())
	if !CanEdit(actor.Role, age, record.GetCreatedBy() == actor.ID) {
		return utils.NewBusinessRuleError("edit_not_permitted", "role %q may not edit this record", actor.Role)
	}
	return nil
}
