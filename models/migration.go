package models

import (
	"github.com/mmdatafocus/printworks_backend/config"
)

// AllModels is every persisted entity, in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&NumberSeries{},
		&Customer{},
		&Order{}, &OrderItem{}, &ProductionStageLog{},
		&DeliveryChallan{}, &ChallanItem{},
		&Invoice{}, &InvoiceChallan{},
		&Payment{}, &ItemReturn{},
		&InventoryItem{}, &InventoryAdjustment{},
		&History{}, &OutboxMessage{},
	}
}

func MigrateTable() error {
	return config.GetDB().AutoMigrate(AllModels()...)
}
