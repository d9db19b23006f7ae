package models

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/printworks_backend/config"
	"github.com/mmdatafocus/printworks_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ItemReturn registers goods coming back against an order item.
//
// With IsAdjustment the refund reduces receivables: if exactly one live invoice
// billed the item, up to its outstanding goes to InvoiceAdjustedAmount on that
// invoice and the rest to CreditAmount on the customer; otherwise all of it is
// customer credit. Without IsAdjustment the refund is only an obligation.
type ItemReturn struct {
	ID                    int             `gorm:"primary_key" json:"id"`
	ReturnNumber          string          `gorm:"size:20;not null;uniqueIndex" json:"return_number"`
	OrderItemId           int             `gorm:"index;not null" json:"order_item_id"`
	CustomerId            int             `gorm:"index;not null" json:"customer_id"`
	Quantity              decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Reason                string          `gorm:"type:text;not null" json:"reason"`
	RefundAmount          decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"refund_amount"`
	IsAdjustment          bool            `gorm:"not null;default:false" json:"is_adjustment"`
	AdjustedInvoiceId     *int            `gorm:"index" json:"adjusted_invoice_id"`
	InvoiceAdjustedAmount decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"invoice_adjusted_amount"`
	CreditAmount          decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"credit_amount"`
	Notes                 string          `gorm:"type:text" json:"notes"`
	AuditFields
}

type NewReturn struct {
	OrderItemId  int             `json:"order_item_id" validate:"required,gt=0"`
	Quantity     decimal.Decimal `json:"quantity" validate:"gt=0,dp=4"`
	Reason       string          `json:"reason" validate:"required"`
	RefundAmount decimal.Decimal `json:"refund_amount" validate:"gte=0,dp=2"`
	IsAdjustment bool            `json:"is_adjustment"`
	Notes        string          `json:"notes"`
}

// returnedQuantity is the quantity of an order item on live returns.
func returnedQuantity(tx *gorm.DB, orderItemId int) (decimal.Decimal, error) {
	var agg struct {
		Total decimal.Decimal
	}
	err := tx.Model(&ItemReturn{}).
		Select("COALESCE(SUM(quantity), 0) AS total").
		Where("order_item_id = ?", orderItemId).
		Scan(&agg).Error
	return agg.Total.Round(4), err
}

// invoicesBillingItem lists the live invoices whose live challans carry the item.
func invoicesBillingItem(tx *gorm.DB, orderItemId int) ([]int, error) {
	var ids []int
	err := tx.Model(&InvoiceChallan{}).
		Distinct("invoice_challans.invoice_id").
		Joins("JOIN challan_items ON challan_items.challan_id = invoice_challans.challan_id AND challan_items.is_deleted = ?", false).
		Joins("JOIN invoices ON invoices.id = invoice_challans.invoice_id AND invoices.is_deleted = ?", false).
		Where("challan_items.order_item_id = ?", orderItemId).
		Order("invoice_challans.invoice_id").
		Pluck("invoice_challans.invoice_id", &ids).Error
	return ids, err
}

func RecordReturn(ctx context.Context, input *NewReturn) (*ItemReturn, error) {
	if _, err := utils.ActorFromContext(ctx); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	var itemReturn ItemReturn
	var creditedCustomer int
	err := utils.RunInTransaction(ctx, "RecordReturn", func(tx *gorm.DB) error {
		item, err := utils.LockModel[OrderItem](tx, input.OrderItemId)
		if err != nil {
			return err
		}
		var order Order
		if err := tx.First(&order, item.OrderId).Error; err != nil {
			return notFoundOr(err, "Order", item.OrderId)
		}

		returned, err := returnedQuantity(tx, item.ID)
		if err != nil {
			return err
		}
		returnable := item.Quantity.Sub(returned)
		if input.Quantity.GreaterThan(returnable) {
			return utils.NewBusinessRuleError("return_exceeds_quantity",
				"item %d: returning %s, returnable %s", item.ID, input.Quantity.String(), returnable.String())
		}

		number, err := NextNumber(tx, PrefixReturn, DocumentYear(config.Now()))
		if err != nil {
			return err
		}
		itemReturn = ItemReturn{
			ReturnNumber: number,
			OrderItemId:  item.ID,
			CustomerId:   order.CustomerId,
			Quantity:     input.Quantity,
			Reason:       input.Reason,
			RefundAmount: input.RefundAmount,
			IsAdjustment: input.IsAdjustment,
			Notes:        input.Notes,
		}

		if input.IsAdjustment && input.RefundAmount.IsPositive() {
			if err := applyReturnAdjustment(tx, &itemReturn); err != nil {
				return err
			}
			if itemReturn.CreditAmount.IsPositive() {
				creditedCustomer = order.CustomerId
			}
		}

		if err := tx.Create(&itemReturn).Error; err != nil {
			return err
		}
		description := fmt.Sprintf("Return %s of %s on item %d, refund %s", number, input.Quantity.String(), item.ID, input.RefundAmount.StringFixed(2))
		if input.IsAdjustment {
			description += fmt.Sprintf(" adjusted (invoice %s, credit %s)", itemReturn.InvoiceAdjustedAmount.StringFixed(2), itemReturn.CreditAmount.StringFixed(2))
		}
		return createHistory(tx, HistoryActionCreate, itemReturn.ID, ReferenceTypeReturn, nil, &itemReturn, description)
	})
	if err != nil {
		return nil, err
	}
	if creditedCustomer != 0 {
		invalidateCustomer(creditedCustomer)
	}
	return &itemReturn, nil
}

// applyReturnAdjustment splits the refund between the single billing invoice
// and customer credit. Lock order: item (caller), invoice, customer.
func applyReturnAdjustment(tx *gorm.DB, r *ItemReturn) error {
	remaining := r.RefundAmount

	invoiceIds, err := invoicesBillingItem(tx, r.OrderItemId)
	if err != nil {
		return err
	}
	if len(invoiceIds) == 1 {
		invoice, err := utils.LockModel[Invoice](tx, invoiceIds[0])
		if err != nil {
			return err
		}
		applied := decimal.Min(remaining, invoice.OutstandingAmount)
		if applied.IsPositive() {
			if err := setInvoiceBalances(tx, invoice, invoice.PaidAmount, invoice.AdjustedAmount.Add(applied)); err != nil {
				return err
			}
			id := invoice.ID
			r.AdjustedInvoiceId = &id
			r.InvoiceAdjustedAmount = applied
			remaining = remaining.Sub(applied)
		}
	}

	if remaining.IsPositive() {
		customer, err := lockCustomer(tx, r.CustomerId)
		if err != nil {
			return err
		}
		balance := customer.CreditBalance.Add(remaining)
		if err := tx.Model(&Customer{}).Where("id = ?", customer.ID).Update("credit_balance", balance).Error; err != nil {
			return err
		}
		r.CreditAmount = remaining
	}
	return nil
}

func ListItemReturns(ctx context.Context, orderItemId int) ([]*ItemReturn, error) {
	var results []*ItemReturn
	err := config.GetDB().WithContext(ctx).Where("order_item_id = ?", orderItemId).Order("id").Find(&results).Error
	if err != nil {
		return nil, utils.ClassifyDBError(err)
	}
	return results, nil
}
