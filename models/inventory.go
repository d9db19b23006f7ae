package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/printworks_backend/config"
	"github.com/mmdatafocus/printworks_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryItem is a consumable (dye, chemical). CurrentStock is never negative
// and only moves through AdjustStock.
type InventoryItem struct {
	ID           int               `gorm:"primary_key" json:"id"`
	Name         string            `gorm:"size:100;not null" json:"name"`
	Category     InventoryCategory `gorm:"size:20;not null" json:"category"`
	Unit         string            `gorm:"size:20;not null" json:"unit"`
	CurrentStock decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0" json:"current_stock"`
	ReorderLevel decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0" json:"reorder_level"`
	CostPerUnit  decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0" json:"cost_per_unit"`
	AuditFields
}

// IsLowStock is derived, never stored.
func (item *InventoryItem) IsLowStock() bool {
	return item.CurrentStock.LessThanOrEqual(item.ReorderLevel)
}

// InventoryAdjustment is an immutable stock movement.
type InventoryAdjustment struct {
	ID              int             `gorm:"primary_key" json:"id"`
	InventoryItemId int             `gorm:"index;not null" json:"inventory_item_id"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	StockBefore     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"stock_before"`
	StockAfter      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"stock_after"`
	Reason          string          `gorm:"type:text;not null" json:"reason"`
	ActorId         int             `gorm:"not null" json:"actor_id"`
	AdjustedAt      time.Time       `gorm:"not null" json:"adjusted_at"`
	AuditFields
}

type NewInventoryItem struct {
	Name         string            `json:"name" validate:"required,max=100"`
	Category     InventoryCategory `json:"category" validate:"required,oneof=dye chemical other"`
	Unit         string            `json:"unit" validate:"required,max=20"`
	OpeningStock decimal.Decimal   `json:"opening_stock" validate:"gte=0,dp=4"`
	ReorderLevel decimal.Decimal   `json:"reorder_level" validate:"gte=0,dp=4"`
	CostPerUnit  decimal.Decimal   `json:"cost_per_unit" validate:"gte=0,dp=4"`
}

// CreateInventoryItem records any opening stock as the item's first adjustment.
func CreateInventoryItem(ctx context.Context, input *NewInventoryItem) (*InventoryItem, error) {
	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	var item InventoryItem
	err = utils.RunInTransaction(ctx, "CreateInventoryItem", func(tx *gorm.DB) error {
		item = InventoryItem{
			Name:         strings.TrimSpace(input.Name),
			Category:     input.Category,
			Unit:         strings.TrimSpace(input.Unit),
			ReorderLevel: input.ReorderLevel,
			CostPerUnit:  input.CostPerUnit,
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		if input.OpeningStock.IsPositive() {
			if _, err := applyStockDelta(tx, &item, input.OpeningStock, "opening stock", actor); err != nil {
				return err
			}
		}
		return createHistory(tx, HistoryActionCreate, item.ID, ReferenceTypeInventoryItem, nil, &item, "Created inventory item "+item.Name)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// AdjustStock applies a signed delta under the item's row lock and appends the
// adjustment. A delta that would take stock below zero is rejected.
func AdjustStock(ctx context.Context, itemId int, delta decimal.Decimal, reason string) (*InventoryAdjustment, error) {
	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if delta.IsZero() {
		return nil, utils.NewValidationError("zero_delta", "stock adjustment must be non-zero")
	}
	if !delta.Equal(delta.Round(4)) {
		return nil, utils.NewValidationError("invalid_delta", "stock adjustment %s has more than 4 decimal places", delta.String())
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, utils.NewValidationError("reason_required", "stock adjustment needs a reason")
	}

	var adjustment *InventoryAdjustment
	err = utils.RunInTransaction(ctx, "AdjustStock", func(tx *gorm.DB) error {
		item, err := utils.LockModel[InventoryItem](tx, itemId)
		if err != nil {
			return err
		}
		adjustment, err = applyStockDelta(tx, item, delta, reason, actor)
		if err != nil {
			return err
		}
		description := fmt.Sprintf("Stock of %s %s -> %s (%s)", item.Name, adjustment.StockBefore.String(), adjustment.StockAfter.String(), reason)
		return createHistory(tx, HistoryActionUpdate, itemId, ReferenceTypeInventoryItem, nil, adjustment, description)
	})
	if err != nil {
		return nil, err
	}
	return adjustment, nil
}

// applyStockDelta expects item to be locked (or just created) in tx.
func applyStockDelta(tx *gorm.DB, item *InventoryItem, delta decimal.Decimal, reason string, actor utils.Actor) (*InventoryAdjustment, error) {
	newStock := item.CurrentStock.Add(delta)
	if newStock.IsNegative() {
		return nil, utils.NewBusinessRuleError("insufficient_stock",
			"%s: stock %s cannot go down by %s", item.Name, item.CurrentStock.String(), delta.Abs().String())
	}
	if err := tx.Model(&InventoryItem{}).Where("id = ?", item.ID).Update("current_stock", newStock).Error; err != nil {
		return nil, err
	}
	adjustment := InventoryAdjustment{
		InventoryItemId: item.ID,
		Quantity:        delta,
		StockBefore:     item.CurrentStock,
		StockAfter:      newStock,
		Reason:          reason,
		ActorId:         actor.ID,
		AdjustedAt:      config.Now(),
	}
	if err := tx.Create(&adjustment).Error; err != nil {
		return nil, err
	}
	item.CurrentStock = newStock
	return &adjustment, nil
}

func GetInventoryItem(ctx context.Context, id int) (*InventoryItem, error) {
	return utils.FetchModel[InventoryItem](ctx, id)
}

// ListLowStockItems returns live items at or below their reorder level.
func ListLowStockItems(ctx context.Context) ([]*InventoryItem, error) {
	var items []*InventoryItem
	err := config.GetDB().WithContext(ctx).Where("current_stock <= reorder_level").Order("name").Find(&items).Error
	if err != nil {
		return nil, utils.ClassifyDBError(err)
	}
	return items, nil
}

func ListAdjustments(ctx context.Context, itemId int) ([]*InventoryAdjustment, error) {
	var results []*InventoryAdjustment
	err := config.GetDB().WithContext(ctx).Where("inventory_item_id = ?", itemId).Order("id").Find(&results).Error
	if err != nil {
		return nil, utils.ClassifyDBError(err)
	}
	return results, nil
}
