package models

import (
	"context"
	"strings"

	"github.com/mmdatafocus/printworks_backend/config"
	"github.com/mmdatafocus/printworks_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Customer struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Name          string          `gorm:"size:100;not null" json:"name"`
	Phone         string          `gorm:"size:20;not null;index" json:"phone"`
	Email         string          `gorm:"size:100" json:"email"`
	Address       string          `gorm:"type:text" json:"address"`
	Gstin         string          `gorm:"size:15" json:"gstin"`
	StateCode     string          `gorm:"size:2" json:"state_code"`
	CreditBalance decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"credit_balance"`
	// LivePhone is NULL once the row is soft-deleted, so the unique index only
	// covers live customers.
	LivePhone *string `gorm:"->;type:varchar(20) GENERATED ALWAYS AS (CASE WHEN is_deleted THEN NULL ELSE phone END) VIRTUAL;uniqueIndex" json:"-"`
	AuditFields
}

type NewCustomer struct {
	Name      string `json:"name" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"required"`
	Email     string `json:"email" validate:"omitempty,email,max=100"`
	Address   string `json:"address"`
	Gstin     string `json:"gstin" validate:"omitempty,len=15,alphanum"`
	StateCode string `json:"state_code" validate:"omitempty,len=2,numeric"`
}

func (input *NewCustomer) validate(tx *gorm.DB, id int) (string, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return "", err
	}
	phone, err := utils.NormalizePhone(input.Phone, config.PhoneRegion())
	if err != nil {
		return "", err
	}
	// unique among live customers only; a soft-deleted customer frees its number
	count, err := utils.ResourceCountWhere[Customer](tx, "phone = ? AND id <> ?", phone, id)
	if err != nil {
		return "", err
	}
	if count > 0 {
		return "", utils.NewBusinessRuleError("duplicate_phone", "phone %s already belongs to another customer", phone)
	}
	return phone, nil
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {
	if _, err := utils.ActorFromContext(ctx); err != nil {
		return nil, err
	}

	var customer Customer
	err := utils.RunInTransaction(ctx, "CreateCustomer", func(tx *gorm.DB) error {
		phone, err := input.validate(tx, 0)
		if err != nil {
			return err
		}
		customer = Customer{
			Name:      strings.TrimSpace(input.Name),
			Phone:     phone,
			Email:     input.Email,
			Address:   input.Address,
			Gstin:     strings.ToUpper(input.Gstin),
			StateCode: input.StateCode,
		}
		if err := tx.Create(&customer).Error; err != nil {
			return phoneTaken(err, phone)
		}
		return createHistory(tx, HistoryActionCreate, customer.ID, ReferenceTypeCustomer, nil, &customer, "Created customer "+customer.Name)
	})
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func UpdateCustomer(ctx context.Context, id int, input *NewCustomer) (*Customer, error) {
	if _, err := utils.ActorFromContext(ctx); err != nil {
		return nil, err
	}

	var customer *Customer
	err := utils.RunInTransaction(ctx, "UpdateCustomer", func(tx *gorm.DB) error {
		var err error
		customer, err = utils.LockModel[Customer](tx, id)
		if err != nil {
			return err
		}
		before := *customer
		phone, err := input.validate(tx, id)
		if err != nil {
			return err
		}
		customer.Name = strings.TrimSpace(input.Name)
		customer.Phone = phone
		customer.Email = input.Email
		customer.Address = input.Address
		customer.Gstin = strings.ToUpper(input.Gstin)
		customer.StateCode = input.StateCode
		if err := saveModel(tx, customer); err != nil {
			return phoneTaken(err, phone)
		}
		return createHistory(tx, HistoryActionUpdate, id, ReferenceTypeCustomer, &before, customer, "Updated customer "+customer.Name)
	})
	if err != nil {
		return nil, err
	}
	invalidateCustomer(id)
	return customer, nil
}

// DeleteCustomer soft-deletes a customer without open orders.
func DeleteCustomer(ctx context.Context, id int) error {
	if _, err := utils.ActorFromContext(ctx); err != nil {
		return err
	}

	err := utils.RunInTransaction(ctx, "DeleteCustomer", func(tx *gorm.DB) error {
		customer, err := utils.LockModel[Customer](tx, id)
		if err != nil {
			return err
		}
		open, err := utils.ResourceCountWhere[Order](tx, "customer_id = ? AND status IN ?", id,
			[]OrderStatus{OrderStatusPending, OrderStatusInProgress})
		if err != nil {
			return err
		}
		if open > 0 {
			return utils.NewBusinessRuleError("customer_has_open_orders", "customer %d has %d open orders", id, open)
		}
		if err := utils.SoftDelete[Customer](tx, id); err != nil {
			return err
		}
		return createHistory(tx, HistoryActionDelete, id, ReferenceTypeCustomer, customer, nil, "Deleted customer "+customer.Name)
	})
	if err != nil {
		return err
	}
	invalidateCustomer(id)
	return nil
}

// GetCustomer reads through the redis cache.
func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	cached, err := utils.RetrieveRedis[Customer](id)
	if err == nil && cached != nil {
		return cached, nil
	}
	customer, err := utils.FetchModel[Customer](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedis(customer, id); err != nil {
		config.GetLogger().WithField("customer_id", id).Warn("cache customer: " + err.Error())
	}
	return customer, nil
}

func GetCustomerByPhone(ctx context.Context, phone string) (*Customer, error) {
	normalized, err := utils.NormalizePhone(phone, config.PhoneRegion())
	if err != nil {
		return nil, err
	}
	var customer Customer
	if err := config.GetDB().WithContext(ctx).Where("phone = ?", normalized).First(&customer).Error; err != nil {
		if utils.KindOf(utils.ClassifyDBError(err)) == utils.KindNotFound {
			return nil, utils.NewNotFoundError("Customer", normalized)
		}
		return nil, utils.ClassifyDBError(err)
	}
	return &customer, nil
}

// phoneTaken reports a lost race on the live phone index as duplicate_phone.
func phoneTaken(err error, phone string) error {
	if utils.RuleOf(utils.ClassifyDBError(err)) == "duplicate_key" {
		return utils.NewBusinessRuleError("duplicate_phone", "phone %s already belongs to another customer", phone)
	}
	return err
}

func invalidateCustomer(id int) {
	if err := utils.RemoveRedis[Customer](id); err != nil {
		config.GetLogger().WithField("customer_id", id).Warn("evict customer: " + err.Error())
	}
}

// lockCustomer is used by operations that move the customer's credit balance.
func lockCustomer(tx *gorm.DB, id int) (*Customer, error) {
	return utils.LockModel[Customer](tx, id)
}

// customerExists resolves a live customer inside tx.
func customerExists(tx *gorm.DB, id int) error {
	count, err := utils.ResourceCountWhere[Customer](tx, "id = ?", id)
	if err != nil {
		return err
	}
	if count == 0 {
		return utils.NewNotFoundError("Customer", id)
	}
	return nil
}
