package models_test

import (
	"context"
	"testing"
	"time"

	"github.com/mmdatafocus/printworks_backend/config"
	"github.com/mmdatafocus/printworks_backend/models"
	"github.com/mmdatafocus/printworks_backend/utils"
	"github.com/shopspring/decimal"
)

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func strPtr(s string) *string { return &s }

func TestOrderTotalFollowsItemMutations(t *testing.T) {
	ctx, _ := setupTestDB(t)
	customer := mustCustomer(t, ctx)

	order := mustOrder(t, ctx, customer.ID, item("cotton", "5", "100"), item("silk", "3", "50"))
	decEqual(t, "total after create", order.TotalAmount, "650")
	if order.Status != models.OrderStatusPending {
		t.Fatalf("expected pending; got %s", order.Status)
	}

	first := order.Items[0].ID
	order, err := models.UpdateOrderItems(ctx, order.ID, []models.OrderItemMutation{
		{Action: models.OrderItemActionUpdate, ItemId: first, Quantity: decPtr("2")},
	})
	if err != nil {
		t.Fatalf("UpdateOrderItems: %v", err)
	}
	decEqual(t, "total after reducing item 1", order.TotalAmount, "450")

	order, err = models.UpdateOrderItems(ctx, order.ID, []models.OrderItemMutation{
		{Action: models.OrderItemActionAdd, MaterialType: strPtr("linen"), Quantity: decPtr("1.5"), UnitPrice: decPtr("20")},
		{Action: models.OrderItemActionRemove, ItemId: order.Items[1].ID},
	})
	if err != nil {
		t.Fatalf("UpdateOrderItems add/remove: %v", err)
	}
	decEqual(t, "total after add/remove", order.TotalAmount, "230")
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 live items; got %d", len(order.Items))
	}

	stored, err := models.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	sum := decimal.Zero
	for _, it := range stored.Items {
		sum = sum.Add(it.Quantity.Mul(it.UnitPrice))
	}
	if !stored.TotalAmount.Equal(sum) {
		t.Fatalf("stored total %s != sum of live items %s", stored.TotalAmount, sum)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	ctx, _ := setupTestDB(t)
	customer := mustCustomer(t, ctx)

	_, err := models.CreateOrder(ctx, &models.NewOrder{CustomerId: customer.ID})
	expectRule(t, err, utils.KindValidation, "empty_items")

	_, err = models.CreateOrder(ctx, &models.NewOrder{CustomerId: customer.ID, Items: []models.NewOrderItem{item("cotton", "-1", "10")}})
	expectRule(t, err, utils.KindValidation, "invalid_quantity")

	_, err = models.CreateOrder(ctx, &models.NewOrder{CustomerId: 999, Items: []models.NewOrderItem{item("cotton", "1", "10")}})
	expectRule(t, err, utils.KindNotFound, "customer_not_found")
}

func TestOrderNumbersAreSequentialPerYear(t *testing.T) {
	ctx, _ := setupTestDB(t)
	restore := config.SetClock(func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) })
	defer restore()
	customer := mustCustomer(t, ctx)

	a := mustOrder(t, ctx, customer.ID, item("cotton", "1", "1"))
	b := mustOrder(t, ctx, customer.ID, item("cotton", "1", "1"))
	if a.OrderNumber != "ORD-2026-0001" || b.OrderNumber != "ORD-2026-0002" {
		t.Fatalf("unexpected numbers %s, %s", a.OrderNumber, b.OrderNumber)
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	ctx, _ := setupTestDB(t)
	customer := mustCustomer(t, ctx)

	tests := []struct {
		name   string
		path   []models.OrderStatus
		reason string
		rule   string
	}{
		{name: "pending to completed is skipped", path: []models.OrderStatus{models.OrderStatusCompleted}, rule: "illegal_status_transition"},
		{name: "full lifecycle", path: []models.OrderStatus{models.OrderStatusInProgress, models.OrderStatusCompleted}},
		{name: "completed cannot reopen", path: []models.OrderStatus{models.OrderStatusInProgress, models.OrderStatusCompleted, models.OrderStatusInProgress}, rule: "illegal_status_transition"},
		{name: "cancel needs reason", path: []models.OrderStatus{models.OrderStatusCancelled}, rule: "cancel_reason_required"},
		{name: "cancel with reason", path: []models.OrderStatus{models.OrderStatusCancelled}, reason: "customer withdrew"},
		{name: "cancelled is terminal", path: []models.OrderStatus{models.OrderStatusCancelled, models.OrderStatusPending}, reason: "dup", rule: "illegal_status_transition"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := mustOrder(t, ctx, customer.ID, item("cotton", "1", "10"))
			var err error
			for _, st := range tt.path {
				_, err = models.UpdateOrderStatus(ctx, order.ID, st, tt.reason)
				if err != nil {
					break
				}
			}
			if tt.rule == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if utils.RuleOf(err) != tt.rule {
				t.Fatalf("expected rule %s; got %v", tt.rule, err)
			}
		})
	}

	order := mustOrder(t, ctx, customer.ID, item("cotton", "1", "10"))
	cancelled, err := models.UpdateOrderStatus(ctx, order.ID, models.OrderStatusCancelled, "customer withdrew")
	if err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}
	if cancelled.CancelReason != "customer withdrew" || cancelled.StatusChangedBy != adminActor.ID {
		t.Fatalf("cancel not recorded: %+v", cancelled)
	}
	_, err = models.UpdateOrderItems(ctx, order.ID, []models.OrderItemMutation{
		{Action: models.OrderItemActionUpdate, ItemId: cancelled.Items[0].ID, Quantity: decPtr("2")},
	})
	expectRule(t, err, utils.KindBusinessRule, "order_closed")

	history, err := models.ListHistory(ctx, models.ReferenceTypeOrder, order.ID)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(history) != 2 || history[1].ActionType != models.HistoryActionStatus {
		t.Fatalf("expected CREATE + STATUS history; got %+v", history)
	}
}

func TestUpdateOrderItemsProtectsDeliveredQuantities(t *testing.T) {
	ctx, _ := setupTestDB(t)
	customer := mustCustomer(t, ctx)
	order := mustOrder(t, ctx, customer.ID, item("cotton", "10", "100"), item("silk", "4", "50"))
	cotton, silk := order.Items[0].ID, order.Items[1].ID
	mustChallan(t, ctx, customer.ID, line(cotton, "6"))

	_, err := models.UpdateOrderItems(ctx, order.ID, []models.OrderItemMutation{
		{Action: models.OrderItemActionUpdate, ItemId: cotton, Quantity: decPtr("5")},
	})
	expectRule(t, err, utils.KindBusinessRule, "quantity_below_committed")

	_, err = models.UpdateOrderItems(ctx, order.ID, []models.OrderItemMutation{
		{Action: models.OrderItemActionUpdate, ItemId: cotton, UnitPrice: decPtr("90")},
	})
	expectRule(t, err, utils.KindBusinessRule, "price_locked_by_challan")

	_, err = models.UpdateOrderItems(ctx, order.ID, []models.OrderItemMutation{
		{Action: models.OrderItemActionRemove, ItemId: cotton},
	})
	expectRule(t, err, utils.KindBusinessRule, "item_on_challan")

	// a failed batch leaves nothing behind
	_, err = models.UpdateOrderItems(ctx, order.ID, []models.OrderItemMutation{
		{Action: models.OrderItemActionUpdate, ItemId: silk, Quantity: decPtr("1")},
		{Action: models.OrderItemActionUpdate, ItemId: cotton, Quantity: decPtr("1")},
	})
	expectRule(t, err, utils.KindBusinessRule, "quantity_below_committed")
	stored, err := models.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	decEqual(t, "silk quantity after rollback", stored.Items[1].Quantity, "4")
	decEqual(t, "total after rollback", stored.TotalAmount, "1200")

	updated, err := models.UpdateOrderItems(ctx, order.ID, []models.OrderItemMutation{
		{Action: models.OrderItemActionUpdate, ItemId: cotton, Quantity: decPtr("6")},
		{Action: models.OrderItemActionRemove, ItemId: silk},
	})
	if err != nil {
		t.Fatalf("UpdateOrderItems: %v", err)
	}
	decEqual(t, "total", updated.TotalAmount, "600")

	_, err = models.UpdateOrderItems(ctx, order.ID, []models.OrderItemMutation{
		{Action: models.OrderItemActionRemove, ItemId: silk},
	})
	expectRule(t, err, utils.KindNotFound, "orderitem_not_found")
}

func TestUpdateOrderItemsRejectsForeignItem(t *testing.T) {
	ctx, _ := setupTestDB(t)
	customer := mustCustomer(t, ctx)
	a := mustOrder(t, ctx, customer.ID, item("cotton", "1", "10"))
	b := mustOrder(t, ctx, customer.ID, item("silk", "1", "10"))

	_, err := models.UpdateOrderItems(ctx, a.ID, []models.OrderItemMutation{
		{Action: models.OrderItemActionUpdate, ItemId: b.Items[0].ID, Quantity: decPtr("3")},
	})
	expectRule(t, err, utils.KindNotFound, "orderitem_not_found")
}

func TestUpdateOrderItemsEditWindow(t *testing.T) {
	ctx, _ := setupTestDB(t)
	start := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	now := start
	restore := config.SetClock(func() time.Time { return now })
	defer restore()

	customer := mustCustomer(t, ctx)
	employeeCtx := utils.WithActor(ctx, employeeActor)
	order := mustOrder(t, employeeCtx, customer.ID, item("cotton", "2", "10"))
	bump := []models.OrderItemMutation{{Action: models.OrderItemActionUpdate, ItemId: order.Items[0].ID, Quantity: decPtr("3")}}

	other := utils.WithActor(ctx, utils.Actor{ID: 8, Name: "Meena", Role: models.RoleEmployee})
	_, err := models.UpdateOrderItems(other, order.ID, bump)
	expectRule(t, err, utils.KindBusinessRule, "edit_not_permitted")

	now = start.Add(time.Hour)
	if _, err := models.UpdateOrderItems(employeeCtx, order.ID, bump); err != nil {
		t.Fatalf("owner within window: %v", err)
	}

	now = start.Add(25 * time.Hour)
	_, err = models.UpdateOrderItems(employeeCtx, order.ID, bump)
	expectRule(t, err, utils.KindBusinessRule, "edit_not_permitted")

	manager := utils.WithActor(ctx, utils.Actor{ID: 3, Name: "Priya", Role: models.RoleManager})
	if _, err := models.UpdateOrderItems(manager, order.ID, bump); err != nil {
		t.Fatalf("manager after window: %v", err)
	}
}

func TestMutationsRequireActor(t *testing.T) {
	setupTestDB(t)
	_, err := models.CreateCustomer(context.Background(), &models.NewCustomer{Name: "x", Phone: "9876543210"})
	expectRule(t, err, utils.KindValidation, "actor_required")
}

func TestUpdateOrderItemsRejectsRepeatedItem(t *testing.T) {
	ctx, _ := setupTestDB(t)
	customer := mustCustomer(t, ctx)
	order := mustOrder(t, ctx, customer.ID, item("cotton", "5", "100"), item("silk", "3", "50"))
	cotton := order.Items[0].ID

	_, err := models.UpdateOrderItems(ctx, order.ID, []models.OrderItemMutation{
		{Action: models.OrderItemActionUpdate, ItemId: cotton, Quantity: decPtr("2")},
		{Action: models.OrderItemActionUpdate, ItemId: cotton, UnitPrice: decPtr("10")},
	})
	expectRule(t, err, utils.KindValidation, "duplicate_item")

	_, err = models.UpdateOrderItems(ctx, order.ID, []models.OrderItemMutation{
		{Action: models.OrderItemActionRemove, ItemId: cotton},
		{Action: models.OrderItemActionUpdate, ItemId: cotton, Quantity: decPtr("4")},
	})
	expectRule(t, err, utils.KindValidation, "duplicate_item")

	stored, err := models.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if len(stored.Items) != 2 {
		t.Fatalf("expected 2 live items; got %d", len(stored.Items))
	}
	decEqual(t, "cotton quantity", stored.Items[0].Quantity, "5")
	decEqual(t, "total", stored.TotalAmount, "650")

	// both changes in one mutation keep amount = quantity x unit_price
	updated, err := models.UpdateOrderItems(ctx, order.ID, []models.OrderItemMutation{
		{Action: models.OrderItemActionUpdate, ItemId: cotton, Quantity: decPtr("2"), UnitPrice: decPtr("10")},
	})
	if err != nil {
		t.Fatalf("UpdateOrderItems: %v", err)
	}
	decEqual(t, "cotton amount", updated.Items[0].Amount, "20")
	decEqual(t, "total", updated.TotalAmount, "170")
}

func TestOrderQuantitiesFitColumnScale(t *testing.T) {
	ctx, _ := setupTestDB(t)
	customer := mustCustomer(t, ctx)

	_, err := models.CreateOrder(ctx, &models.NewOrder{CustomerId: customer.ID, Items: []models.NewOrderItem{item("cotton", "0.00001", "10")}})
	expectRule(t, err, utils.KindValidation, "invalid_quantity")

	_, err = models.CreateOrder(ctx, &models.NewOrder{CustomerId: customer.ID, Items: []models.NewOrderItem{item("cotton", "1", "10.12345")}})
	expectRule(t, err, utils.KindValidation, "invalid_unit_price")

	order := mustOrder(t, ctx, customer.ID, item("cotton", "1.2345", "10.5"))
	_, err = models.UpdateOrderItems(ctx, order.ID, []models.OrderItemMutation{
		{Action: models.OrderItemActionUpdate, ItemId: order.Items[0].ID, Quantity: decPtr("2.00001")},
	})
	expectRule(t, err, utils.KindValidation, "invalid_quantity")
}
