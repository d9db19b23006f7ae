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

// Invoice is a GST tax invoice consolidating delivered challans of one customer.
// OutstandingAmount = FinalAmount - PaidAmount - AdjustedAmount, never negative.
type Invoice struct {
	ID                int              `gorm:"primary_key" json:"id"`
	InvoiceNumber     string           `gorm:"size:20;not null;uniqueIndex" json:"invoice_number"`
	CustomerId        int              `gorm:"index;not null" json:"customer_id"`
	InvoiceDate       time.Time        `gorm:"not null" json:"invoice_date"`
	DueDate           time.Time        `gorm:"not null" json:"due_date"`
	Subtotal          decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"subtotal"`
	CgstRate          decimal.Decimal  `gorm:"type:decimal(7,4);not null;default:0" json:"cgst_rate"`
	SgstRate          decimal.Decimal  `gorm:"type:decimal(7,4);not null;default:0" json:"sgst_rate"`
	IgstRate          decimal.Decimal  `gorm:"type:decimal(7,4);not null;default:0" json:"igst_rate"`
	CgstAmount        decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"cgst_amount"`
	SgstAmount        decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"sgst_amount"`
	IgstAmount        decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"igst_amount"`
	FinalAmount       decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"final_amount"`
	PaidAmount        decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"paid_amount"`
	AdjustedAmount    decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"adjusted_amount"`
	OutstandingAmount decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"outstanding_amount"`
	Status            InvoiceStatus    `gorm:"size:20;not null;default:unpaid;index" json:"status"`
	Notes             string           `gorm:"type:text" json:"notes"`
	Challans          []InvoiceChallan `gorm:"foreignKey:InvoiceId" json:"challans"`
	AuditFields
}

// InvoiceChallan links a challan to the one invoice that bills it.
type InvoiceChallan struct {
	ID        int `gorm:"primary_key" json:"id"`
	InvoiceId int `gorm:"index;not null" json:"invoice_id"`
	ChallanId int `gorm:"index;not null" json:"challan_id"`
	AuditFields
}

type NewInvoice struct {
	CustomerId  int             `json:"customer_id" validate:"required,gt=0"`
	ChallanIds  []int           `json:"challan_ids" validate:"required,min=1,dive,gt=0"`
	CgstRate    decimal.Decimal `json:"cgst_rate" validate:"gte=0,lte=100"`
	SgstRate    decimal.Decimal `json:"sgst_rate" validate:"gte=0,lte=100"`
	IgstRate    decimal.Decimal `json:"igst_rate" validate:"gte=0,lte=100"`
	InvoiceDate *time.Time      `json:"invoice_date"`
	Notes       string          `json:"notes"`
}

type GstRates struct {
	Cgst decimal.Decimal
	Sgst decimal.Decimal
	Igst decimal.Decimal
}

type GstBreakdown struct {
	Subtotal    decimal.Decimal
	CgstAmount  decimal.Decimal
	SgstAmount  decimal.Decimal
	IgstAmount  decimal.Decimal
	FinalAmount decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// CalculateGst computes each component as subtotal x rate / 100 rounded to paise.
// Which components are non-zero is the caller's choice.
func CalculateGst(subtotal decimal.Decimal, rates GstRates) GstBreakdown {
	b := GstBreakdown{Subtotal: subtotal.Round(2)}
	b.CgstAmount = b.Subtotal.Mul(rates.Cgst).Div(hundred).Round(2)
	b.SgstAmount = b.Subtotal.Mul(rates.Sgst).Div(hundred).Round(2)
	b.IgstAmount = b.Subtotal.Mul(rates.Igst).Div(hundred).Round(2)
	b.FinalAmount = b.Subtotal.Add(b.CgstAmount).Add(b.SgstAmount).Add(b.IgstAmount)
	return b
}

func (input *NewInvoice) validate() error {
	if len(input.ChallanIds) == 0 {
		return utils.NewValidationError("empty_challans", "an invoice needs at least one challan")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.IgstRate.IsPositive() && (input.CgstRate.IsPositive() || input.SgstRate.IsPositive()) {
		return utils.NewValidationError("mixed_gst_components", "IGST cannot be combined with CGST/SGST")
	}
	if len(utils.UniqueSlice(input.ChallanIds)) != len(input.ChallanIds) {
		return utils.NewValidationError("duplicate_challan", "a challan is listed more than once")
	}
	return nil
}

func invoiceStatusFor(final, outstanding decimal.Decimal) InvoiceStatus {
	switch {
	case outstanding.IsZero():
		return InvoiceStatusPaid
	case outstanding.LessThan(final):
		return InvoiceStatusPartiallyPaid
	default:
		return InvoiceStatusUnpaid
	}
}

func CreateInvoice(ctx context.Context, input *NewInvoice) (*Invoice, error) {
	if _, err := utils.ActorFromContext(ctx); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	invoiceDate := config.Now()
	if input.InvoiceDate != nil {
		invoiceDate = input.InvoiceDate.UTC()
	}

	var invoice Invoice
	err := utils.RunInTransaction(ctx, "CreateInvoice", func(tx *gorm.DB) error {
		if err := customerExists(tx, input.CustomerId); err != nil {
			return err
		}
		// locked in ascending id order for the check-and-link below
		challans, err := utils.LockModels[DeliveryChallan](tx, input.ChallanIds)
		if err != nil {
			return err
		}
		for _, id := range sortedKeys(challans) {
			c := challans[id]
			if c.CustomerId != input.CustomerId {
				return utils.NewBusinessRuleError("customer_mismatch", "challan %s belongs to another customer", c.ChallanNumber)
			}
			if !c.IsDelivered {
				return utils.NewBusinessRuleError("challan_not_delivered", "challan %s is not delivered", c.ChallanNumber)
			}
			linked, err := utils.ResourceCountWhere[InvoiceChallan](tx, "challan_id = ?", id)
			if err != nil {
				return err
			}
			if linked > 0 {
				return utils.NewBusinessRuleError("challan_already_invoiced", "challan %s is already invoiced", c.ChallanNumber)
			}
		}

		subtotal, err := challansSubtotal(tx, input.CustomerId, input.ChallanIds)
		if err != nil {
			return err
		}
		gst := CalculateGst(subtotal, GstRates{Cgst: input.CgstRate, Sgst: input.SgstRate, Igst: input.IgstRate})

		number, err := NextNumber(tx, PrefixInvoice, DocumentYear(invoiceDate))
		if err != nil {
			return err
		}
		invoice = Invoice{
			InvoiceNumber:     number,
			CustomerId:        input.CustomerId,
			InvoiceDate:       invoiceDate,
			DueDate:           invoiceDate.AddDate(0, 0, config.PaymentTermsDays()),
			Subtotal:          gst.Subtotal,
			CgstRate:          input.CgstRate,
			SgstRate:          input.SgstRate,
			IgstRate:          input.IgstRate,
			CgstAmount:        gst.CgstAmount,
			SgstAmount:        gst.SgstAmount,
			IgstAmount:        gst.IgstAmount,
			FinalAmount:       gst.FinalAmount,
			OutstandingAmount: gst.FinalAmount,
			Status:            invoiceStatusFor(gst.FinalAmount, gst.FinalAmount),
			Notes:             input.Notes,
		}
		if invoice.FinalAmount.IsZero() {
			invoice.Status = InvoiceStatusPaid
		}
		if err := tx.Omit(clause.Associations).Create(&invoice).Error; err != nil {
			return err
		}
		links := make([]InvoiceChallan, 0, len(input.ChallanIds))
		for _, id := range sortedKeys(challans) {
			links = append(links, InvoiceChallan{InvoiceId: invoice.ID, ChallanId: id})
		}
		if err := tx.Create(&links).Error; err != nil {
			return err
		}
		invoice.Challans = links

		description := fmt.Sprintf("Invoice %s for %d challans, final %s", number, len(links), invoice.FinalAmount.StringFixed(2))
		return createHistory(tx, HistoryActionCreate, invoice.ID, ReferenceTypeInvoice, nil, &invoice, description)
	})
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// challansSubtotal sums quantity x originating unit price over the live lines
// of the given challans, and re-checks every line's order belongs to customerId.
func challansSubtotal(tx *gorm.DB, customerId int, challanIds []int) (decimal.Decimal, error) {
	var lines []ChallanItem
	if err := tx.Where("challan_id IN ?", challanIds).Find(&lines).Error; err != nil {
		return decimal.Zero, err
	}
	if len(lines) == 0 {
		return decimal.Zero, nil
	}
	itemIds := make([]int, 0, len(lines))
	for _, l := range lines {
		itemIds = append(itemIds, l.OrderItemId)
	}

	var rows []struct {
		ID         int
		UnitPrice  decimal.Decimal
		CustomerId int
	}
	err := tx.Model(&OrderItem{}).
		Select("order_items.id, order_items.unit_price, orders.customer_id").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("order_items.id IN ?", utils.UniqueSlice(itemIds)).
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, err
	}
	prices := make(map[int]decimal.Decimal, len(rows))
	for _, r := range rows {
		if r.CustomerId != customerId {
			return decimal.Zero, utils.NewBusinessRuleError("customer_mismatch", "order item %d belongs to another customer", r.ID)
		}
		prices[r.ID] = r.UnitPrice
	}

	subtotal := decimal.Zero
	for _, l := range lines {
		price, ok := prices[l.OrderItemId]
		if !ok {
			return decimal.Zero, utils.NewNotFoundError("OrderItem", l.OrderItemId)
		}
		subtotal = subtotal.Add(lineAmount(l.Quantity, price))
	}
	return subtotal, nil
}

func GetInvoice(ctx context.Context, id int) (*Invoice, error) {
	return utils.FetchModel[Invoice](ctx, id, "Challans")
}

// recomputeOutstanding re-sums live payments and applied return adjustments.
// The invoice row must be locked by the caller.
func recomputeOutstanding(tx *gorm.DB, invoice *Invoice) error {
	var paid struct {
		Total decimal.Decimal
	}
	if err := tx.Model(&Payment{}).Select("COALESCE(SUM(amount), 0) AS total").Where("invoice_id = ?", invoice.ID).Scan(&paid).Error; err != nil {
		return err
	}
	var adjusted struct {
		Total decimal.Decimal
	}
	if err := tx.Model(&ItemReturn{}).Select("COALESCE(SUM(invoice_adjusted_amount), 0) AS total").Where("adjusted_invoice_id = ?", invoice.ID).Scan(&adjusted).Error; err != nil {
		return err
	}
	outstanding := invoice.FinalAmount.Sub(paid.Total.Round(4)).Sub(adjusted.Total.Round(4))
	if outstanding.IsNegative() {
		// only reachable if rows were edited outside these operations
		return utils.NewBusinessRuleError("negative_outstanding", "invoice %s would go negative", invoice.InvoiceNumber)
	}
	return setInvoiceBalances(tx, invoice, paid.Total.Round(4), adjusted.Total.Round(4))
}

func setInvoiceBalances(tx *gorm.DB, invoice *Invoice, paid, adjusted decimal.Decimal) error {
	outstanding := invoice.FinalAmount.Sub(paid).Sub(adjusted)
	status := invoiceStatusFor(invoice.FinalAmount, outstanding)
	err := tx.Model(&Invoice{}).Where("id = ?", invoice.ID).Updates(map[string]interface{}{
		"paid_amount":        paid,
		"adjusted_amount":    adjusted,
		"outstanding_amount": outstanding,
		"status":             status,
	}).Error
	if err != nil {
		return err
	}
	invoice.PaidAmount = paid
	invoice.AdjustedAmount = adjusted
	invoice.OutstandingAmount = outstanding
	invoice.Status = status
	return nil
}
