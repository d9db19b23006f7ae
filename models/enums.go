package models

import (
	"encoding/json"
	"fmt"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusInProgress, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// legal order status transitions; cancelled additionally needs a reason
var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusInProgress, OrderStatusCancelled},
	OrderStatusInProgress: {OrderStatusCompleted, OrderStatusCancelled},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s *OrderStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	v := OrderStatus(str)
	if !v.IsValid() {
		return fmt.Errorf("invalid order status %q", str)
	}
	*s = v
	return nil
}

// ProductionStage is where an order item is in the print pipeline.
type ProductionStage string

const (
	StagePreTreatment ProductionStage = "pre_treatment"
	StagePrinting     ProductionStage = "printing"
	StagePostProcess  ProductionStage = "post_process"
)

var productionStages = []ProductionStage{StagePreTreatment, StagePrinting, StagePostProcess}

func (s ProductionStage) index() int {
	for i, v := range productionStages {
		if v == s {
			return i
		}
	}
	return -1
}

func (s ProductionStage) IsValid() bool { return s.index() >= 0 }

// Next returns the immediate successor, false at the last stage.
func (s ProductionStage) Next() (ProductionStage, bool) {
	i := s.index()
	if i < 0 || i+1 >= len(productionStages) {
		return "", false
	}
	return productionStages[i+1], true
}

type InvoiceStatus string

const (
	InvoiceStatusUnpaid        InvoiceStatus = "unpaid"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
)

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodUpi          PaymentMethod = "upi"
	PaymentMethodCheque       PaymentMethod = "cheque"
	PaymentMethodCard         PaymentMethod = "card"
)

type InventoryCategory string

const (
	InventoryCategoryDye      InventoryCategory = "dye"
	InventoryCategoryChemical InventoryCategory = "chemical"
	InventoryCategoryOther    InventoryCategory = "other"
)

// document number prefixes
const (
	PrefixOrder   = "ORD"
	PrefixChallan = "DC"
	PrefixInvoice = "INV"
	PrefixPayment = "PAY"
	PrefixReturn  = "RET"
)

// history reference types
const (
	ReferenceTypeCustomer      = "customers"
	ReferenceTypeOrder         = "orders"
	ReferenceTypeOrderItem     = "order_items"
	ReferenceTypeChallan       = "delivery_challans"
	ReferenceTypeInvoice       = "invoices"
	ReferenceTypePayment       = "payments"
	ReferenceTypeReturn        = "item_returns"
	ReferenceTypeInventoryItem = "inventory_items"
)

const (
	HistoryActionCreate = "CREATE"
	HistoryActionUpdate = "UPDATE"
	HistoryActionDelete = "DELETE"
	HistoryActionStatus = "STATUS"
)
