package models

import (
	"errors"
	"time"

	"github.com/mmdatafocus/printworks_backend/utils"
	"gorm.io/gorm"
)

// AuditFields is embedded in every persisted entity. created_by/updated_by are
// stamped by the audit guard plugin; the delete columns by utils.SoftDelete.
// Rows are never physically removed.
type AuditFields struct {
	CreatedBy int        `gorm:"index;not null;default:0" json:"created_by"`
	UpdatedBy int        `gorm:"not null;default:0" json:"updated_by"`
	IsDeleted bool       `gorm:"index;not null;default:false" json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy int        `gorm:"not null;default:0" json:"deleted_by,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a AuditFields) GetCreatedBy() int { return a.CreatedBy }

func (a AuditFields) GetCreatedAt() time.Time { return a.CreatedAt }

// saveModel writes every column of a row loaded earlier in the same transaction.
// Selecting "*" keeps gorm from falling back to an insert when MySQL reports zero
// changed rows.
func saveModel(tx *gorm.DB, value any) error {
	return tx.Select("*").Save(value).Error
}

// notFoundOr turns gorm's not-found into a NotFoundError naming the entity.
func notFoundOr(err error, entity string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.NewNotFoundError(entity, id)
	}
	return err
}
