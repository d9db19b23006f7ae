package models_test

import (
	"sync"
	"testing"

	"github.com/mmdatafocus/printworks_backend/config"
	"github.com/mmdatafocus/printworks_backend/models"
	"github.com/mmdatafocus/printworks_backend/utils"
	"github.com/shopspring/decimal"
)

func remaining(t *testing.T, itemId int) decimal.Decimal {
	t.Helper()
	r, err := models.RemainingQuantity(config.GetDB(), itemId)
	if err != nil {
		t.Fatalf("RemainingQuantity: %v", err)
	}
	return r
}

func TestChallansConsumeRemainingQuantity(t *testing.T) {
	ctx, _ := setupTestDB(t)
	customer := mustCustomer(t, ctx)
	order := mustOrder(t, ctx, customer.ID, item("cotton", "5", "100"))
	itemId := order.Items[0].ID

	mustChallan(t, ctx, customer.ID, line(itemId, "3"))
	decEqual(t, "remaining after first challan", remaining(t, itemId), "2")

	mustChallan(t, ctx, customer.ID, line(itemId, "2"))
	decEqual(t, "remaining after second challan", remaining(t, itemId), "0")

	_, err := models.CreateChallan(ctx, &models.NewChallan{CustomerId: customer.ID, Items: []models.NewChallanItem{line(itemId, "1")}})
	expectRule(t, err, utils.KindBusinessRule, "quantity_exceeds_remaining")
	decEqual(t, "remaining after rejection", remaining(t, itemId), "0")
}

func TestConcurrentChallansNeverOvercommit(t *testing.T) {
	ctx, _ := setupTestDB(t)
	customer := mustCustomer(t, ctx)
	order := mustOrder(t, ctx, customer.ID, item("cotton", "10", "100"))
	itemId := order.Items[0].ID

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = models.CreateChallan(ctx, &models.NewChallan{
				CustomerId: customer.ID,
				Items:      []models.NewChallanItem{line(itemId, "3")},
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case utils.RuleOf(err) == "quantity_exceeds_remaining", utils.IsRetryable(err):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 3 {
		t.Fatalf("expected 3 challans to fit into 10; got %d", succeeded)
	}
	decEqual(t, "remaining", remaining(t, itemId), "1")
}

func TestChallanDuplicateLinesAreSummed(t *testing.T) {
	ctx, _ := setupTestDB(t)
	customer := mustCustomer(t, ctx)
	order := mustOrder(t, ctx, customer.ID, item("cotton", "5", "100"))
	itemId := order.Items[0].ID

	_, err := models.CreateChallan(ctx, &models.NewChallan{
		CustomerId: customer.ID,
		Items:      []models.NewChallanItem{line(itemId, "3"), line(itemId, "3")},
	})
	expectRule(t, err, utils.KindBusinessRule, "quantity_exceeds_remaining")

	challan := mustChallan(t, ctx, customer.ID, line(itemId, "2"), line(itemId, "3"))
	if len(challan.Items) != 2 {
		t.Fatalf("expected 2 lines; got %d", len(challan.Items))
	}
	decEqual(t, "remaining", remaining(t, itemId), "0")
}

func TestChallanRules(t *testing.T) {
	ctx, _ := setupTestDB(t)
	customer := mustCustomer(t, ctx)
	other := mustCustomer(t, ctx)
	order := mustOrder(t, ctx, customer.ID, item("cotton", "5", "100"))
	itemId := order.Items[0].ID

	_, err := models.CreateChallan(ctx, &models.NewChallan{CustomerId: other.ID, Items: []models.NewChallanItem{line(itemId, "1")}})
	expectRule(t, err, utils.KindBusinessRule, "customer_mismatch")

	_, err = models.CreateChallan(ctx, &models.NewChallan{CustomerId: customer.ID})
	expectRule(t, err, utils.KindValidation, "empty_items")

	_, err = models.CreateChallan(ctx, &models.NewChallan{CustomerId: customer.ID, Items: []models.NewChallanItem{line(itemId, "0")}})
	expectRule(t, err, utils.KindValidation, "invalid_quantity")

	_, err = models.CreateChallan(ctx, &models.NewChallan{CustomerId: customer.ID, Items: []models.NewChallanItem{line(9999, "1")}})
	expectRule(t, err, utils.KindNotFound, "orderitem_not_found")

	t.Setenv("STRICT_STAGE_FOR_DELIVERY", "true")
	_, err = models.CreateChallan(ctx, &models.NewChallan{CustomerId: customer.ID, Items: []models.NewChallanItem{line(itemId, "1")}})
	expectRule(t, err, utils.KindBusinessRule, "item_not_ready")
	for _, stage := range []models.ProductionStage{models.StagePrinting, models.StagePostProcess} {
		if _, err := models.AdvanceStage(ctx, itemId, stage, ""); err != nil {
			t.Fatalf("AdvanceStage %s: %v", stage, err)
		}
	}
	mustChallan(t, ctx, customer.ID, line(itemId, "1"))

	if _, err := models.UpdateOrderStatus(ctx, order.ID, models.OrderStatusCancelled, "stopped"); err != nil {
		t.Fatalf("UpdateOrderStatus: %v", err)
	}
	_, err = models.CreateChallan(ctx, &models.NewChallan{CustomerId: customer.ID, Items: []models.NewChallanItem{line(itemId, "1")}})
	expectRule(t, err, utils.KindBusinessRule, "order_cancelled")
}

func TestMarkDeliveredIsIdempotent(t *testing.T) {
	ctx, db := setupTestDB(t)
	customer := mustCustomer(t, ctx)
	order := mustOrder(t, ctx, customer.ID, item("cotton", "5", "100"))
	challan := mustChallan(t, ctx, customer.ID, line(order.Items[0].ID, "5"))

	first, err := models.MarkDelivered(ctx, challan.ID)
	if err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if !first.IsDelivered || first.DeliveredAt == nil || first.DeliveredBy != adminActor.ID {
		t.Fatalf("delivery not stamped: %+v", first)
	}
	second, err := models.MarkDelivered(ctx, challan.ID)
	if err != nil {
		t.Fatalf("MarkDelivered again: %v", err)
	}
	if !second.DeliveredAt.Equal(*first.DeliveredAt) {
		t.Fatalf("second delivery moved delivered_at: %v -> %v", first.DeliveredAt, second.DeliveredAt)
	}

	messages, err := models.ListOutboxMessages(ctx, db, models.ReferenceTypeChallan, challan.ID)
	if err != nil {
		t.Fatalf("ListOutboxMessages: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected one outbox message; got %d", len(messages))
	}
	if messages[0].EventType != models.EventMaterialDispatched || messages[0].PublishStatus != models.OutboxPublishStatusPending {
		t.Fatalf("unexpected outbox message %+v", messages[0])
	}
}

func TestDeleteChallanFreesQuantity(t *testing.T) {
	ctx, _ := setupTestDB(t)
	customer := mustCustomer(t, ctx)
	order := mustOrder(t, ctx, customer.ID, item("cotton", "5", "100"))
	itemId := order.Items[0].ID

	draft := mustChallan(t, ctx, customer.ID, line(itemId, "4"))
	decEqual(t, "remaining with draft", remaining(t, itemId), "1")
	if err := models.DeleteChallan(ctx, draft.ID); err != nil {
		t.Fatalf("DeleteChallan: %v", err)
	}
	decEqual(t, "remaining after delete", remaining(t, itemId), "5")

	_, err := models.GetChallan(ctx, draft.ID)
	expectRule(t, err, utils.KindNotFound, "deliverychallan_not_found")
	if _, err := models.GetChallan(utils.WithDeleted(ctx), draft.ID); err != nil {
		t.Fatalf("deleted challan should stay readable for audit: %v", err)
	}

	delivered := mustDeliveredChallan(t, ctx, customer.ID, line(itemId, "5"))
	err = models.DeleteChallan(ctx, delivered.ID)
	expectRule(t, err, utils.KindBusinessRule, "challan_delivered")
}
