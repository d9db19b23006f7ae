package models_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/mmdatafocus/printworks_backend/config"
	"github.com/mmdatafocus/printworks_backend/models"
	"github.com/mmdatafocus/printworks_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	adminActor    = utils.Actor{ID: 1, Name: "Admin", Role: models.RoleAdmin}
	employeeActor = utils.Actor{ID: 7, Name: "Ravi", Role: models.RoleEmployee}
)

// setupTestDB opens a file-backed SQLite store with the audit guard installed
// and one connection, so concurrent transactions queue at the pool.
func setupTestDB(t *testing.T) (context.Context, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "printworks.db")), config.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := config.UseAuditGuard(db); err != nil {
		t.Fatalf("UseAuditGuard: %v", err)
	}
	config.SetDB(db)
	t.Cleanup(func() {
		config.SetDB(nil)
		_ = sqlDB.Close()
	})
	if err := models.MigrateTable(); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}
	return utils.WithActor(context.Background(), adminActor), db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decEqual(t *testing.T, what string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s: expected %s; got %s", what, want, got.String())
	}
}

func expectRule(t *testing.T, err error, kind utils.ErrorKind, rule string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s (%s); got nil", kind, rule)
	}
	if utils.KindOf(err) != kind || utils.RuleOf(err) != rule {
		t.Fatalf("expected %s (%s); got %s (%s): %v", kind, rule, utils.KindOf(err), utils.RuleOf(err), err)
	}
}

var phoneSeq int64

func mustCustomer(t *testing.T, ctx context.Context) *models.Customer {
	t.Helper()
	n := atomic.AddInt64(&phoneSeq, 1)
	c, err := models.CreateCustomer(ctx, &models.NewCustomer{
		Name:  fmt.Sprintf("Customer %d", n),
		Phone: fmt.Sprintf("98765%05d", n),
	})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	return c
}

func item(material, qty, price string) models.NewOrderItem {
	return models.NewOrderItem{MaterialType: material, Quantity: dec(qty), UnitPrice: dec(price)}
}

func mustOrder(t *testing.T, ctx context.Context, customerId int, items ...models.NewOrderItem) *models.Order {
	t.Helper()
	o, err := models.CreateOrder(ctx, &models.NewOrder{CustomerId: customerId, Items: items})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return o
}

func mustChallan(t *testing.T, ctx context.Context, customerId int, lines ...models.NewChallanItem) *models.DeliveryChallan {
	t.Helper()
	c, err := models.CreateChallan(ctx, &models.NewChallan{CustomerId: customerId, Items: lines})
	if err != nil {
		t.Fatalf("CreateChallan: %v", err)
	}
	return c
}

func mustDeliveredChallan(t *testing.T, ctx context.Context, customerId int, lines ...models.NewChallanItem) *models.DeliveryChallan {
	t.Helper()
	c := mustChallan(t, ctx, customerId, lines...)
	c, err := models.MarkDelivered(ctx, c.ID)
	if err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	return c
}

func line(orderItemId int, qty string) models.NewChallanItem {
	return models.NewChallanItem{OrderItemId: orderItemId, Quantity: dec(qty)}
}

// mustInvoice bills delivered challans with intra-state GST.
func mustInvoice(t *testing.T, ctx context.Context, customerId int, challanIds []int, cgst, sgst string) *models.Invoice {
	t.Helper()
	inv, err := models.CreateInvoice(ctx, &models.NewInvoice{
		CustomerId: customerId,
		ChallanIds: challanIds,
		CgstRate:   dec(cgst),
		SgstRate:   dec(sgst),
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	return inv
}
