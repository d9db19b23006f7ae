package utils

import (
	"context"
	"errors"
	"sort"

	"github.com/mmdatafocus/printworks_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

/* DB fetching */

// FetchModel reads one live row by id outside any transaction.
// (may return NotFoundError)
func FetchModel[T any](ctx context.Context, id int, associations ...string) (*T, error) {
	dbCtx := config.GetDB().WithContext(ctx)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	if err := dbCtx.First(&result, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError(GetTypeName[T](), id)
		}
		return nil, ClassifyDBError(err)
	}
	return &result, nil
}

// LockModel reads one live row by id with SELECT ... FOR UPDATE inside tx.
func LockModel[T any](tx *gorm.DB, id int) (*T, error) {
	var result T
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&result, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError(GetTypeName[T](), id)
		}
		return nil, err
	}
	return &result, nil
}

// LockModels locks every id in ascending order so concurrent callers acquire
// row locks in the same sequence. Missing ids yield NotFoundError.
func LockModels[T any](tx *gorm.DB, ids []int) (map[int]*T, error) {
	unq := UniqueSlice(ids)
	sort.Ints(unq)
	result := make(map[int]*T, len(unq))
	for _, id := range unq {
		m, err := LockModel[T](tx, id)
		if err != nil {
			return nil, err
		}
		result[id] = m
	}
	return result, nil
}

// SoftDelete marks a live row deleted and stamps who deleted it.
func SoftDelete[T any](tx *gorm.DB, id int) error {
	var model T
	actorId, _ := GetUserIdFromContext(tx.Statement.Context)
	res := tx.Model(&model).Where("id = ?", id).Updates(map[string]interface{}{
		"is_deleted": true,
		"deleted_at": config.Now(),
		"deleted_by": actorId,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return NewNotFoundError(GetTypeName[T](), id)
	}
	return nil
}

// ResourceCountWhere counts live rows matching condition.
func ResourceCountWhere[T any](tx *gorm.DB, condition string, value ...interface{}) (int64, error) {
	var model T
	var count int64
	if err := tx.Model(&model).Where(condition, value...).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
