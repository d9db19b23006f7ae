package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/printworks_backend/config"
	"github.com/mmdatafocus/printworks_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeliveryChallan is a delivery note grouping order-item quantities sent to one customer.
type DeliveryChallan struct {
	ID            int           `gorm:"primary_key" json:"id"`
	ChallanNumber string        `gorm:"size:20;not null;uniqueIndex" json:"challan_number"`
	CustomerId    int           `gorm:"index;not null" json:"customer_id"`
	ChallanDate   time.Time     `gorm:"not null" json:"challan_date"`
	Notes         string        `gorm:"type:text" json:"notes"`
	IsDelivered   bool          `gorm:"not null;default:false" json:"is_delivered"`
	DeliveredAt   *time.Time    `json:"delivered_at"`
	DeliveredBy   int           `gorm:"not null;default:0" json:"delivered_by"`
	Items         []ChallanItem `gorm:"foreignKey:ChallanId" json:"items"`
	AuditFields
}

// ChallanItem is how much of one order item went on one challan.
type ChallanItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	ChallanId   int             `gorm:"index;not null" json:"challan_id"`
	OrderItemId int             `gorm:"index;not null" json:"order_item_id"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	AuditFields
}

type NewChallan struct {
	CustomerId  int              `json:"customer_id" validate:"required,gt=0"`
	ChallanDate *time.Time       `json:"challan_date"`
	Notes       string           `json:"notes"`
	Items       []NewChallanItem `json:"items" validate:"required,min=1,dive"`
}

type NewChallanItem struct {
	OrderItemId int             `json:"order_item_id" validate:"required,gt=0"`
	Quantity    decimal.Decimal `json:"quantity" validate:"gt=0,dp=4"`
}

// challanedQuantity is the quantity of an order item on live challans.
func challanedQuantity(tx *gorm.DB, orderItemId int) (decimal.Decimal, error) {
	var agg struct {
		Total decimal.Decimal
	}
	err := tx.Model(&ChallanItem{}).
		Select("COALESCE(SUM(quantity), 0) AS total").
		Where("order_item_id = ?", orderItemId).
		Scan(&agg).Error
	return agg.Total.Round(4), err
}

// RemainingQuantity is ordered quantity minus what live challans already carry.
// Callers that act on the result must hold the order item's row lock.
func RemainingQuantity(tx *gorm.DB, orderItemId int) (decimal.Decimal, error) {
	var item OrderItem
	if err := tx.Select("id", "quantity").First(&item, orderItemId).Error; err != nil {
		return decimal.Zero, notFoundOr(err, "OrderItem", orderItemId)
	}
	used, err := challanedQuantity(tx, orderItemId)
	if err != nil {
		return decimal.Zero, err
	}
	return item.Quantity.Sub(used), nil
}

func CreateChallan(ctx context.Context, input *NewChallan) (*DeliveryChallan, error) {
	if _, err := utils.ActorFromContext(ctx); err != nil {
		return nil, err
	}
	if len(input.Items) == 0 {
		return nil, utils.NewValidationError("empty_items", "a challan needs at least one item")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	challanDate := config.Now()
	if input.ChallanDate != nil {
		challanDate = input.ChallanDate.UTC()
	}

	// the same item listed twice is checked against remaining as one request
	requested := make(map[int]decimal.Decimal)
	for _, it := range input.Items {
		requested[it.OrderItemId] = requested[it.OrderItemId].Add(it.Quantity)
	}
	itemIds := sortedKeys(requested)

	var challan DeliveryChallan
	err := utils.RunInTransaction(ctx, "CreateChallan", func(tx *gorm.DB) error {
		if err := customerExists(tx, input.CustomerId); err != nil {
			return err
		}
		// ascending id order, held until commit: the remaining check and the
		// inserts below cannot interleave with another challan for these items
		items, err := utils.LockModels[OrderItem](tx, itemIds)
		if err != nil {
			return err
		}

		orders := make(map[int]*Order)
		for _, id := range itemIds {
			item := items[id]
			order, ok := orders[item.OrderId]
			if !ok {
				order = &Order{}
				if err := tx.First(order, item.OrderId).Error; err != nil {
					return notFoundOr(err, "Order", item.OrderId)
				}
				orders[item.OrderId] = order
			}
			if order.CustomerId != input.CustomerId {
				return utils.NewBusinessRuleError("customer_mismatch", "item %d belongs to order %s of another customer", id, order.OrderNumber)
			}
			if order.Status == OrderStatusCancelled {
				return utils.NewBusinessRuleError("order_cancelled", "item %d belongs to cancelled order %s", id, order.OrderNumber)
			}
			if config.StrictStageForDelivery() && item.ProductionStage != StagePostProcess {
				return utils.NewBusinessRuleError("item_not_ready", "item %d is at %s, not %s", id, item.ProductionStage, StagePostProcess)
			}

			remaining, err := RemainingQuantity(tx, id)
			if err != nil {
				return err
			}
			if requested[id].GreaterThan(remaining) {
				return utils.NewBusinessRuleError("quantity_exceeds_remaining",
					"item %d: requested %s, remaining %s", id, requested[id].String(), remaining.String())
			}
		}

		number, err := NextNumber(tx, PrefixChallan, DocumentYear(challanDate))
		if err != nil {
			return err
		}
		challan = DeliveryChallan{
			ChallanNumber: number,
			CustomerId:    input.CustomerId,
			ChallanDate:   challanDate,
			Notes:         input.Notes,
		}
		if err := tx.Omit(clause.Associations).Create(&challan).Error; err != nil {
			return err
		}
		lines := make([]ChallanItem, 0, len(input.Items))
		for _, it := range input.Items {
			lines = append(lines, ChallanItem{
				ChallanId:   challan.ID,
				OrderItemId: it.OrderItemId,
				Quantity:    it.Quantity,
			})
		}
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}
		challan.Items = lines

		description := fmt.Sprintf("Challan %s created with %d lines", number, len(lines))
		return createHistory(tx, HistoryActionCreate, challan.ID, ReferenceTypeChallan, nil, &challan, description)
	})
	if err != nil {
		return nil, err
	}
	return &challan, nil
}

// MarkDelivered flags a challan delivered. Delivering twice is a no-op; the
// first delivery records one material.dispatched outbox message.
func MarkDelivered(ctx context.Context, challanId int) (*DeliveryChallan, error) {
	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var challan *DeliveryChallan
	err = utils.RunInTransaction(ctx, "MarkDelivered", func(tx *gorm.DB) error {
		var err error
		challan, err = utils.LockModel[DeliveryChallan](tx, challanId)
		if err != nil {
			return err
		}
		if err := tx.Where("challan_id = ?", challanId).Order("id").Find(&challan.Items).Error; err != nil {
			return err
		}
		if challan.IsDelivered {
			return nil
		}

		now := config.Now()
		err = tx.Model(&DeliveryChallan{}).Where("id = ?", challanId).Updates(map[string]interface{}{
			"is_delivered": true,
			"delivered_at": now,
			"delivered_by": actor.ID,
		}).Error
		if err != nil {
			return err
		}
		challan.IsDelivered = true
		challan.DeliveredAt = &now
		challan.DeliveredBy = actor.ID

		event, err := materialDispatchedEvent(tx, challan)
		if err != nil {
			return err
		}
		if err := enqueueOutbox(tx, ReferenceTypeChallan, challanId, EventMaterialDispatched, event); err != nil {
			return err
		}
		return createHistory(tx, HistoryActionStatus, challanId, ReferenceTypeChallan,
			map[string]any{"is_delivered": false}, map[string]any{"is_delivered": true},
			fmt.Sprintf("Challan %s delivered", challan.ChallanNumber))
	})
	if err != nil {
		return nil, err
	}
	return challan, nil
}

func materialDispatchedEvent(tx *gorm.DB, challan *DeliveryChallan) (*MaterialDispatchedEvent, error) {
	ids := make([]int, 0, len(challan.Items))
	for _, ci := range challan.Items {
		ids = append(ids, ci.OrderItemId)
	}
	var items []OrderItem
	if err := tx.Select("id", "material_type").Where("id IN ?", utils.UniqueSlice(ids)).Find(&items).Error; err != nil {
		return nil, err
	}
	materials := make(map[int]string, len(items))
	for _, it := range items {
		materials[it.ID] = it.MaterialType
	}

	event := &MaterialDispatchedEvent{
		ChallanId:     challan.ID,
		ChallanNumber: challan.ChallanNumber,
		CustomerId:    challan.CustomerId,
		DeliveredAt:   *challan.DeliveredAt,
		DeliveredBy:   challan.DeliveredBy,
	}
	for _, ci := range challan.Items {
		event.Items = append(event.Items, MaterialDispatchedLine{
			OrderItemId:  ci.OrderItemId,
			MaterialType: materials[ci.OrderItemId],
			Quantity:     ci.Quantity.String(),
		})
	}
	return event, nil
}

// DeleteChallan soft-deletes an undelivered, uninvoiced challan and its lines,
// which returns their quantities to the items' remaining.
func DeleteChallan(ctx context.Context, challanId int) error {
	if _, err := utils.ActorFromContext(ctx); err != nil {
		return err
	}

	return utils.RunInTransaction(ctx, "DeleteChallan", func(tx *gorm.DB) error {
		challan, err := utils.LockModel[DeliveryChallan](tx, challanId)
		if err != nil {
			return err
		}
		if challan.IsDelivered {
			return utils.NewBusinessRuleError("challan_delivered", "challan %s is delivered", challan.ChallanNumber)
		}
		invoiced, err := utils.ResourceCountWhere[InvoiceChallan](tx, "challan_id = ?", challanId)
		if err != nil {
			return err
		}
		if invoiced > 0 {
			return utils.NewBusinessRuleError("challan_already_invoiced", "challan %s is invoiced", challan.ChallanNumber)
		}

		var lines []ChallanItem
		if err := tx.Where("challan_id = ?", challanId).Find(&lines).Error; err != nil {
			return err
		}
		for _, line := range lines {
			if err := utils.SoftDelete[ChallanItem](tx, line.ID); err != nil {
				return err
			}
		}
		if err := utils.SoftDelete[DeliveryChallan](tx, challanId); err != nil {
			return err
		}
		return createHistory(tx, HistoryActionDelete, challanId, ReferenceTypeChallan, challan, nil,
			fmt.Sprintf("Challan %s deleted", challan.ChallanNumber))
	})
}

func GetChallan(ctx context.Context, id int) (*DeliveryChallan, error) {
	return utils.FetchModel[DeliveryChallan](ctx, id, "Items")
}
