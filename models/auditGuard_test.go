package models_test

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/printworks_backend/config"
	"github.com/mmdatafocus/printworks_backend/models"
	"github.com/mmdatafocus/printworks_backend/utils"
)

func TestAuditGuardStampsActor(t *testing.T) {
	ctx, _ := setupTestDB(t)
	customer := mustCustomer(t, ctx)
	if customer.CreatedBy != adminActor.ID || customer.UpdatedBy != adminActor.ID {
		t.Fatalf("create not stamped: created_by=%d updated_by=%d", customer.CreatedBy, customer.UpdatedBy)
	}

	order := mustOrder(t, utils.WithActor(ctx, employeeActor), customer.ID, item("cotton", "1", "10"), item("silk", "1", "10"))
	for _, it := range order.Items {
		if it.CreatedBy != employeeActor.ID {
			t.Fatalf("batch insert not stamped: %+v", it)
		}
	}

	manager := utils.WithActor(ctx, utils.Actor{ID: 3, Name: "Priya", Role: models.RoleManager})
	updated, err := models.UpdateCustomer(manager, customer.ID, &models.NewCustomer{Name: "Renamed", Phone: customer.Phone})
	if err != nil {
		t.Fatalf("UpdateCustomer: %v", err)
	}
	if updated.UpdatedBy != 3 || updated.CreatedBy != adminActor.ID {
		t.Fatalf("update stamping wrong: created_by=%d updated_by=%d", updated.CreatedBy, updated.UpdatedBy)
	}
}

func TestAuditGuardHidesSoftDeletedRows(t *testing.T) {
	ctx, db := setupTestDB(t)
	customer := mustCustomer(t, ctx)
	if err := models.DeleteCustomer(ctx, customer.ID); err != nil {
		t.Fatalf("DeleteCustomer: %v", err)
	}

	_, err := models.GetCustomer(ctx, customer.ID)
	expectRule(t, err, utils.KindNotFound, "customer_not_found")

	var count int64
	if err := db.WithContext(ctx).Model(&models.Customer{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("soft-deleted customer counted: %d", count)
	}

	deleted, err := models.GetCustomer(utils.WithDeleted(ctx), customer.ID)
	if err != nil {
		t.Fatalf("GetCustomer with deleted: %v", err)
	}
	if !deleted.IsDeleted || deleted.DeletedAt == nil || deleted.DeletedBy != adminActor.ID {
		t.Fatalf("delete columns not stamped: %+v", deleted.AuditFields)
	}

	history, err := models.ListHistory(ctx, models.ReferenceTypeCustomer, customer.ID)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(history) != 2 || history[1].ActionType != models.HistoryActionDelete || history[1].UserId != adminActor.ID {
		t.Fatalf("expected CREATE + DELETE history; got %+v", history)
	}
}

func TestAuditGuardRejectsHardDelete(t *testing.T) {
	ctx, db := setupTestDB(t)
	customer := mustCustomer(t, ctx)

	err := db.WithContext(ctx).Delete(&models.Customer{}, customer.ID).Error
	if !errors.Is(err, config.ErrHardDelete) {
		t.Fatalf("expected ErrHardDelete; got %v", err)
	}
	expectRule(t, utils.ClassifyDBError(err), utils.KindBusinessRule, "hard_delete_forbidden")

	if _, err := models.GetCustomer(ctx, customer.ID); err != nil {
		t.Fatalf("customer should survive: %v", err)
	}
}

func TestSoftDeletedItemsLeaveAggregates(t *testing.T) {
	ctx, _ := setupTestDB(t)
	customer := mustCustomer(t, ctx)
	order := mustOrder(t, ctx, customer.ID, item("cotton", "2", "100"), item("silk", "1", "50"))

	updated, err := models.UpdateOrderItems(ctx, order.ID, []models.OrderItemMutation{
		{Action: models.OrderItemActionRemove, ItemId: order.Items[1].ID},
	})
	if err != nil {
		t.Fatalf("UpdateOrderItems: %v", err)
	}
	decEqual(t, "total without removed item", updated.TotalAmount, "200")

	_, err = models.RemainingQuantity(config.GetDB().WithContext(ctx), order.Items[1].ID)
	expectRule(t, err, utils.KindNotFound, "orderitem_not_found")

	withDeleted, err := models.GetOrder(utils.WithDeleted(ctx), order.ID)
	if err != nil {
		t.Fatalf("GetOrder with deleted: %v", err)
	}
	if len(withDeleted.Items) != 2 {
		t.Fatalf("audit read should see both items; got %d", len(withDeleted.Items))
	}
}
