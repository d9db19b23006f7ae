package models

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mmdatafocus/printworks_backend/config"
	"github.com/mmdatafocus/printworks_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Order struct {
	ID                   int             `gorm:"primary_key" json:"id"`
	OrderNumber          string          `gorm:"size:20;not null;uniqueIndex" json:"order_number"`
	CustomerId           int             `gorm:"index;not null" json:"customer_id"`
	OrderDate            time.Time       `gorm:"not null" json:"order_date"`
	ExpectedDeliveryDate *time.Time      `json:"expected_delivery_date"`
	Status               OrderStatus     `gorm:"size:20;not null;default:pending;index" json:"status"`
	TotalAmount          decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_amount"`
	Notes                string          `gorm:"type:text" json:"notes"`
	CancelReason         string          `gorm:"type:text" json:"cancel_reason,omitempty"`
	StatusChangedAt      *time.Time      `json:"status_changed_at"`
	StatusChangedBy      int             `gorm:"not null;default:0" json:"status_changed_by"`
	Items                []OrderItem     `gorm:"foreignKey:OrderId" json:"items"`
	AuditFields
}

type OrderItem struct {
	ID               int             `gorm:"primary_key" json:"id"`
	OrderId          int             `gorm:"index;not null" json:"order_id"`
	MaterialType     string          `gorm:"size:100;not null" json:"material_type"`
	Description      string          `gorm:"type:text" json:"description"`
	Customization    string          `gorm:"type:text" json:"customization"`
	Quantity         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	Amount           decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"amount"`
	ProductionStage  ProductionStage `gorm:"size:20;not null;default:pre_treatment" json:"production_stage"`
	StageCompletedAt *time.Time      `json:"stage_completed_at"`
	StageCompletedBy int             `gorm:"not null;default:0" json:"stage_completed_by"`
	AuditFields
}

type NewOrder struct {
	CustomerId           int            `json:"customer_id" validate:"required,gt=0"`
	OrderDate            *time.Time     `json:"order_date"`
	ExpectedDeliveryDate *time.Time     `json:"expected_delivery_date"`
	Notes                string         `json:"notes"`
	Items                []NewOrderItem `json:"items" validate:"required,min=1,dive"`
}

type NewOrderItem struct {
	MaterialType  string          `json:"material_type" validate:"required,max=100"`
	Description   string          `json:"description"`
	Customization string          `json:"customization"`
	Quantity      decimal.Decimal `json:"quantity" validate:"gt=0,dp=4"`
	UnitPrice     decimal.Decimal `json:"unit_price" validate:"gte=0,dp=4"`
}

type OrderItemAction string

const (
	OrderItemActionAdd    OrderItemAction = "add"
	OrderItemActionUpdate OrderItemAction = "update"
	OrderItemActionRemove OrderItemAction = "remove"
)

// OrderItemMutation is one add/update/remove of UpdateOrderItems. For update,
// nil fields are left unchanged.
type OrderItemMutation struct {
	Action        OrderItemAction  `json:"action" validate:"required,oneof=add update remove"`
	ItemId        int              `json:"item_id" validate:"required_unless=Action add"`
	MaterialType  *string          `json:"material_type"`
	Description   *string          `json:"description"`
	Customization *string          `json:"customization"`
	Quantity      *decimal.Decimal `json:"quantity" validate:"omitempty,gt=0,dp=4"`
	UnitPrice     *decimal.Decimal `json:"unit_price" validate:"omitempty,gte=0,dp=4"`
}

func lineAmount(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Round(4)
}

func (input *NewOrder) validate() error {
	if len(input.Items) == 0 {
		return utils.NewValidationError("empty_items", "an order needs at least one item")
	}
	return utils.ValidateStruct(input)
}

func CreateOrder(ctx context.Context, input *NewOrder) (*Order, error) {
	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	orderDate := config.Now()
	if input.OrderDate != nil {
		orderDate = input.OrderDate.UTC()
	}

	var order Order
	err = utils.RunInTransaction(ctx, "CreateOrder", func(tx *gorm.DB) error {
		if err := customerExists(tx, input.CustomerId); err != nil {
			return err
		}
		number, err := NextNumber(tx, PrefixOrder, DocumentYear(orderDate))
		if err != nil {
			return err
		}

		order = Order{
			OrderNumber:          number,
			CustomerId:           input.CustomerId,
			OrderDate:            orderDate,
			ExpectedDeliveryDate: input.ExpectedDeliveryDate,
			Status:               OrderStatusPending,
			Notes:                input.Notes,
		}
		var items []OrderItem
		for _, in := range input.Items {
			item := OrderItem{
				MaterialType:    strings.TrimSpace(in.MaterialType),
				Description:     in.Description,
				Customization:   in.Customization,
				Quantity:        in.Quantity,
				UnitPrice:       in.UnitPrice,
				Amount:          lineAmount(in.Quantity, in.UnitPrice),
				ProductionStage: StagePreTreatment,
			}
			order.TotalAmount = order.TotalAmount.Add(item.Amount)
			items = append(items, item)
		}

		if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].OrderId = order.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		order.Items = items

		description := fmt.Sprintf("Order %s created by %s with %d items, total %s", number, actor.Name, len(items), order.TotalAmount.StringFixed(2))
		return createHistory(tx, HistoryActionCreate, order.ID, ReferenceTypeOrder, nil, &order, description)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderItems applies item mutations and recomputes the order total in the
// same transaction. Quantities already placed on challans or returned cannot be
// taken away, and the price of an item that has been delivered is frozen.
func UpdateOrderItems(ctx context.Context, orderId int, mutations []OrderItemMutation) (*Order, error) {
	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if len(mutations) == 0 {
		return nil, utils.NewValidationError("empty_mutations", "no item mutations given")
	}
	// at most one mutation per existing item
	seen := make(map[int]bool, len(mutations))
	for i := range mutations {
		if err := utils.ValidateStruct(&mutations[i]); err != nil {
			return nil, err
		}
		m := mutations[i]
		if m.Action != OrderItemActionAdd {
			if seen[m.ItemId] {
				return nil, utils.NewValidationError("duplicate_item", "item %d appears in more than one mutation", m.ItemId)
			}
			seen[m.ItemId] = true
		}
		if m.Action == OrderItemActionAdd {
			if m.MaterialType == nil || strings.TrimSpace(*m.MaterialType) == "" {
				return nil, utils.NewValidationError("invalid_material_type", "material_type is required for a new item")
			}
			if m.Quantity == nil || m.UnitPrice == nil {
				return nil, utils.NewValidationError("invalid_quantity", "quantity and unit_price are required for a new item")
			}
		}
	}

	var order *Order
	err = utils.RunInTransaction(ctx, "UpdateOrderItems", func(tx *gorm.DB) error {
		var err error
		// order row first, then item rows: same lock order as AdvanceStage
		order, err = utils.LockModel[Order](tx, orderId)
		if err != nil {
			return err
		}
		if err := ensureCanEdit(actor, order); err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return utils.NewBusinessRuleError("order_closed", "order %s is %s", order.OrderNumber, order.Status)
		}

		touched := make([]int, 0, len(mutations))
		for _, m := range mutations {
			if m.Action != OrderItemActionAdd {
				touched = append(touched, m.ItemId)
			}
		}
		locked, err := utils.LockModels[OrderItem](tx, touched)
		if err != nil {
			return err
		}

		for _, m := range mutations {
			switch m.Action {
			case OrderItemActionAdd:
				item := OrderItem{
					OrderId:         orderId,
					MaterialType:    strings.TrimSpace(*m.MaterialType),
					Quantity:        *m.Quantity,
					UnitPrice:       *m.UnitPrice,
					Amount:          lineAmount(*m.Quantity, *m.UnitPrice),
					ProductionStage: StagePreTreatment,
				}
				if m.Description != nil {
					item.Description = *m.Description
				}
				if m.Customization != nil {
					item.Customization = *m.Customization
				}
				if err := tx.Create(&item).Error; err != nil {
					return err
				}
			case OrderItemActionUpdate:
				item := locked[m.ItemId]
				if item.OrderId != orderId {
					return utils.NewNotFoundError("OrderItem", m.ItemId)
				}
				if err := applyItemUpdate(tx, item, m); err != nil {
					return err
				}
			case OrderItemActionRemove:
				item := locked[m.ItemId]
				if item.OrderId != orderId {
					return utils.NewNotFoundError("OrderItem", m.ItemId)
				}
				if err := ensureItemRemovable(tx, item); err != nil {
					return err
				}
				if err := utils.SoftDelete[OrderItem](tx, item.ID); err != nil {
					return err
				}
			}
		}

		before := order.TotalAmount
		if err := RecalculateOrderTotal(tx, order); err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", orderId).Order("id").Find(&order.Items).Error; err != nil {
			return err
		}
		if len(order.Items) == 0 {
			return utils.NewBusinessRuleError("order_requires_items", "order %s would have no items", order.OrderNumber)
		}
		description := fmt.Sprintf("Order %s items changed (%d mutations), total %s -> %s",
			order.OrderNumber, len(mutations), before.StringFixed(2), order.TotalAmount.StringFixed(2))
		return createHistory(tx, HistoryActionUpdate, orderId, ReferenceTypeOrder, nil, order, description)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func applyItemUpdate(tx *gorm.DB, item *OrderItem, m OrderItemMutation) error {
	challaned, err := challanedQuantity(tx, item.ID)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{}
	quantity, unitPrice := item.Quantity, item.UnitPrice

	if m.Quantity != nil && !m.Quantity.Equal(item.Quantity) {
		returned, err := returnedQuantity(tx, item.ID)
		if err != nil {
			return err
		}
		floor := decimal.Max(challaned, returned)
		if m.Quantity.LessThan(floor) {
			return utils.NewBusinessRuleError("quantity_below_committed",
				"item %d quantity %s is below the %s already delivered or returned", item.ID, m.Quantity.String(), floor.String())
		}
		quantity = *m.Quantity
		updates["quantity"] = quantity
	}
	if m.UnitPrice != nil && !m.UnitPrice.Equal(item.UnitPrice) {
		if challaned.IsPositive() {
			return utils.NewBusinessRuleError("price_locked_by_challan", "item %d is already on a challan; its price cannot change", item.ID)
		}
		unitPrice = *m.UnitPrice
		updates["unit_price"] = unitPrice
	}
	if m.MaterialType != nil {
		if strings.TrimSpace(*m.MaterialType) == "" {
			return utils.NewValidationError("invalid_material_type", "material_type cannot be blank")
		}
		updates["material_type"] = strings.TrimSpace(*m.MaterialType)
	}
	if m.Description != nil {
		updates["description"] = *m.Description
	}
	if m.Customization != nil {
		updates["customization"] = *m.Customization
	}
	if len(updates) == 0 {
		return nil
	}
	updates["amount"] = lineAmount(quantity, unitPrice)
	return tx.Model(&OrderItem{}).Where("id = ?", item.ID).Updates(updates).Error
}

func ensureItemRemovable(tx *gorm.DB, item *OrderItem) error {
	challaned, err := challanedQuantity(tx, item.ID)
	if err != nil {
		return err
	}
	if challaned.IsPositive() {
		return utils.NewBusinessRuleError("item_on_challan", "item %d is on a challan and cannot be removed", item.ID)
	}
	returned, err := returnedQuantity(tx, item.ID)
	if err != nil {
		return err
	}
	if returned.IsPositive() {
		return utils.NewBusinessRuleError("item_has_returns", "item %d has returns and cannot be removed", item.ID)
	}
	return nil
}

// RecalculateOrderTotal sets total_amount to the sum of quantity x unit_price over
// the order's live items. Must run inside the transaction that changed the items.
func RecalculateOrderTotal(tx *gorm.DB, order *Order) error {
	var items []OrderItem
	if err := tx.Select("id", "quantity", "unit_price").Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
		return err
	}
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(lineAmount(it.Quantity, it.UnitPrice))
	}
	if err := tx.Model(&Order{}).Where("id = ?", order.ID).Update("total_amount", total).Error; err != nil {
		return err
	}
	order.TotalAmount = total
	return nil
}

// UpdateOrderStatus moves an order along pending -> in_progress -> completed;
// any open order may be cancelled with a reason.
func UpdateOrderStatus(ctx context.Context, orderId int, newStatus OrderStatus, reason string) (*Order, error) {
	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !newStatus.IsValid() {
		return nil, utils.NewValidationError("invalid_status", "unknown order status %q", newStatus)
	}
	reason = strings.TrimSpace(reason)
	if newStatus == OrderStatusCancelled && reason == "" {
		return nil, utils.NewValidationError("cancel_reason_required", "cancelling an order requires a reason")
	}

	var order *Order
	err = utils.RunInTransaction(ctx, "UpdateOrderStatus", func(tx *gorm.DB) error {
		var err error
		order, err = utils.LockModel[Order](tx, orderId)
		if err != nil {
			return err
		}
		if err := transitionOrder(tx, order, newStatus, reason, actor); err != nil {
			return err
		}
		return tx.Where("order_id = ?", orderId).Order("id").Find(&order.Items).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// transitionOrder expects the order row to be locked by the caller.
func transitionOrder(tx *gorm.DB, order *Order, newStatus OrderStatus, reason string, actor utils.Actor) error {
	if !order.Status.CanTransitionTo(newStatus) {
		return utils.NewBusinessRuleError("illegal_status_transition", "order %s cannot move from %s to %s", order.OrderNumber, order.Status, newStatus)
	}
	now := config.Now()
	updates := map[string]interface{}{
		"status":            newStatus,
		"status_changed_at": now,
		"status_changed_by": actor.ID,
	}
	if newStatus == OrderStatusCancelled {
		updates["cancel_reason"] = reason
	}
	if err := tx.Model(&Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
		return err
	}
	previous := order.Status
	order.Status = newStatus
	order.StatusChangedAt = &now
	order.StatusChangedBy = actor.ID
	if newStatus == OrderStatusCancelled {
		order.CancelReason = reason
	}
	description := fmt.Sprintf("Order %s %s -> %s", order.OrderNumber, previous, newStatus)
	if reason != "" {
		description += ": " + reason
	}
	return createHistory(tx, HistoryActionStatus, order.ID, ReferenceTypeOrder, map[string]any{"status": previous}, map[string]any{"status": newStatus}, description)
}

func GetOrder(ctx context.Context, id int) (*Order, error) {
	return utils.FetchModel[Order](ctx, id, "Items")
}

// ListCustomerOrders returns a customer's live orders, newest first.
func ListCustomerOrders(ctx context.Context, customerId int) ([]*Order, error) {
	var orders []*Order
	err := config.GetDB().WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("customer_id = ?", customerId).
		Order("id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, utils.ClassifyDBError(err)
	}
	return orders, nil
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
