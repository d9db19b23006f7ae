package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/printworks_backend/config"
	"github.com/mmdatafocus/printworks_backend/utils"
	"gorm.io/gorm"
)

// ProductionStageLog records every stage transition of an order item.
type ProductionStageLog struct {
	ID          int             `gorm:"primary_key" json:"id"`
	OrderItemId int             `gorm:"index;not null" json:"order_item_id"`
	FromStage   ProductionStage `gorm:"size:20;not null" json:"from_stage"`
	ToStage     ProductionStage `gorm:"size:20;not null" json:"to_stage"`
	Notes       string          `gorm:"type:text" json:"notes"`
	ActorId     int             `gorm:"not null" json:"actor_id"`
	CompletedAt time.Time       `gorm:"not null" json:"completed_at"`
	AuditFields
}

// AdvanceStage moves an item to the immediate successor of its current stage.
// Stages never move backward and cannot be skipped.
func AdvanceStage(ctx context.Context, itemId int, target ProductionStage, notes string) (*OrderItem, error) {
	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !target.IsValid() {
		return nil, utils.NewValidationError("invalid_stage", "unknown production stage %q", target)
	}

	var item *OrderItem
	err = utils.RunInTransaction(ctx, "AdvanceStage", func(tx *gorm.DB) error {
		var ref OrderItem
		if err := tx.Select("id", "order_id").First(&ref, itemId).Error; err != nil {
			return notFoundOr(err, "OrderItem", itemId)
		}
		order, err := utils.LockModel[Order](tx, ref.OrderId)
		if err != nil {
			return err
		}
		item, err = utils.LockModel[OrderItem](tx, itemId)
		if err != nil {
			return err
		}
		if order.Status == OrderStatusCancelled {
			return utils.NewBusinessRuleError("order_cancelled", "order %s is cancelled", order.OrderNumber)
		}

		next, ok := item.ProductionStage.Next()
		if !ok || next != target {
			return utils.NewBusinessRuleError("illegal_stage_transition", "item %d cannot move from %s to %s", itemId, item.ProductionStage, target)
		}

		now := config.Now()
		err = tx.Model(&OrderItem{}).Where("id = ?", itemId).Updates(map[string]interface{}{
			"production_stage":   target,
			"stage_completed_at": now,
			"stage_completed_by": actor.ID,
		}).Error
		if err != nil {
			return err
		}
		stageLog := ProductionStageLog{
			OrderItemId: itemId,
			FromStage:   item.ProductionStage,
			ToStage:     target,
			Notes:       notes,
			ActorId:     actor.ID,
			CompletedAt: now,
		}
		if err := tx.Create(&stageLog).Error; err != nil {
			return err
		}
		item.ProductionStage = target
		item.StageCompletedAt = &now
		item.StageCompletedBy = actor.ID

		// work has started on the order
		if order.Status == OrderStatusPending {
			if err := transitionOrder(tx, order, OrderStatusInProgress, "", actor); err != nil {
				return err
			}
		}
		description := fmt.Sprintf("Item %d of order %s: %s -> %s", itemId, order.OrderNumber, stageLog.FromStage, target)
		return createHistory(tx, HistoryActionStatus, itemId, ReferenceTypeOrderItem, nil, &stageLog, description)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// GetStageHistory lists the stage transitions of one item, oldest first.
func GetStageHistory(ctx context.Context, itemId int) ([]*ProductionStageLog, error) {
	var logs []*ProductionStageLog
	err := config.GetDB().WithContext(ctx).Where("order_item_id = ?", itemId).Order("id").Find(&logs).Error
	if err != nil {
		return nil, utils.ClassifyDBError(err)
	}
	return logs, nil
}
