package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/printworks_backend/config"
	"github.com/mmdatafocus/printworks_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Payment struct {
	ID            int             `gorm:"primary_key" json:"id"`
	PaymentNumber string          `gorm:"size:20;not null;uniqueIndex" json:"payment_number"`
	InvoiceId     int             `gorm:"index;not null" json:"invoice_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Method        PaymentMethod   `gorm:"size:20;not null" json:"method"`
	Reference     string          `gorm:"size:100" json:"reference"`
	PaymentDate   time.Time       `gorm:"not null" json:"payment_date"`
	Notes         string          `gorm:"type:text" json:"notes"`
	AuditFields
}

type NewPayment struct {
	InvoiceId   int             `json:"invoice_id" validate:"required,gt=0"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0,dp=2"`
	Method      PaymentMethod   `json:"method" validate:"required,oneof=cash bank_transfer upi cheque card"`
	Reference   string          `json:"reference" validate:"max=100"`
	PaymentDate *time.Time      `json:"payment_date"`
	Notes       string          `json:"notes"`
}

// RecordPayment applies a payment against an invoice. It can never take the
// outstanding below zero.
func RecordPayment(ctx context.Context, input *NewPayment) (*Payment, error) {
	if _, err := utils.ActorFromContext(ctx); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, utils.NewValidationError("non_positive_amount", "payment amount must be positive")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	paymentDate := config.Now()
	if input.PaymentDate != nil {
		paymentDate = input.PaymentDate.UTC()
	}

	var payment Payment
	err := utils.RunInTransaction(ctx, "RecordPayment", func(tx *gorm.DB) error {
		invoice, err := utils.LockModel[Invoice](tx, input.InvoiceId)
		if err != nil {
			return err
		}
		if invoice.OutstandingAmount.IsZero() {
			return utils.NewBusinessRuleError("invoice_fully_paid", "invoice %s has nothing outstanding", invoice.InvoiceNumber)
		}
		if input.Amount.GreaterThan(invoice.OutstandingAmount) {
			return utils.NewBusinessRuleError("overpayment", "payment %s exceeds outstanding %s on invoice %s",
				input.Amount.StringFixed(2), invoice.OutstandingAmount.StringFixed(2), invoice.InvoiceNumber)
		}

		number, err := NextNumber(tx, PrefixPayment, DocumentYear(paymentDate))
		if err != nil {
			return err
		}
		payment = Payment{
			PaymentNumber: number,
			InvoiceId:     invoice.ID,
			Amount:        input.Amount,
			Method:        input.Method,
			Reference:     input.Reference,
			PaymentDate:   paymentDate,
			Notes:         input.Notes,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		if err := setInvoiceBalances(tx, invoice, invoice.PaidAmount.Add(input.Amount), invoice.AdjustedAmount); err != nil {
			return err
		}

		description := fmt.Sprintf("Payment %s of %s (%s) on invoice %s, outstanding %s",
			number, input.Amount.StringFixed(2), input.Method, invoice.InvoiceNumber, invoice.OutstandingAmount.StringFixed(2))
		return createHistory(tx, HistoryActionCreate, payment.ID, ReferenceTypePayment, nil, &payment, description)
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// DeletePayment soft-deletes a payment and recomputes the invoice's outstanding
// by re-summing what is left, never by reversing the amount.
func DeletePayment(ctx context.Context, paymentId int) (*Invoice, error) {
	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var invoice *Invoice
	err = utils.RunInTransaction(ctx, "DeletePayment", func(tx *gorm.DB) error {
		var payment Payment
		if err := tx.First(&payment, paymentId).Error; err != nil {
			return notFoundOr(err, "Payment", paymentId)
		}
		if err := ensureCanEdit(actor, &payment); err != nil {
			return err
		}
		invoice, err = utils.LockModel[Invoice](tx, payment.InvoiceId)
		if err != nil {
			return err
		}
		// the payment may have been deleted while we waited for the invoice lock
		if err := utils.SoftDelete[Payment](tx, paymentId); err != nil {
			return err
		}
		if err := recomputeOutstanding(tx, invoice); err != nil {
			return err
		}
		description := fmt.Sprintf("Payment %s deleted, invoice %s outstanding %s",
			payment.PaymentNumber, invoice.InvoiceNumber, invoice.OutstandingAmount.StringFixed(2))
		return createHistory(tx, HistoryActionDelete, paymentId, ReferenceTypePayment, &payment, nil, description)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func ListInvoicePayments(ctx context.Context, invoiceId int) ([]*Payment, error) {
	var payments []*Payment
	err := config.GetDB().WithContext(ctx).Where("invoice_id = ?", invoiceId).Order("id").Find(&payments).Error
	if err != nil {
		return nil, utils.ClassifyDBError(err)
	}
	return payments, nil
}
